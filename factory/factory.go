// Copyright (C) MongoDB, Inc. 2026-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package factory implements the connection-factory family:
// ProxiedFactory (the common decorator base), SocketConnectionFactory,
// ReplicaSetConnectionFactory, ShardedConnectionFactory, and
// BootstrapConnectionFactory. Each factory wraps a delegate and returns
// the delegate's connection, possibly after doing its own work first —
// a bootstrap-then-delegate composition where BootstrapConnectionFactory
// probes a seed list, classifies the deployment, and builds the matching
// delegate chain.
package factory

import (
	"context"
	"net"

	"github.com/youseeus/mongodb-async-driver/model"
	"github.com/youseeus/mongodb-async-driver/socket"
)

// Factory opens a Connection to a Server. Every connection factory in
// this package, and the authenticating wrapper in package auth, satisfies
// this interface so they can be composed freely.
type Factory interface {
	Connect(ctx context.Context, server *model.Server) (*socket.Connection, error)
}

// FactoryFunc adapts a plain function to Factory.
type FactoryFunc func(ctx context.Context, server *model.Server) (*socket.Connection, error)

// Connect implements Factory.
func (f FactoryFunc) Connect(ctx context.Context, server *model.Server) (*socket.Connection, error) {
	return f(ctx, server)
}

// ProxiedFactory is the common base every decorating factory in this
// package embeds: it forwards Connect to Delegate unless overridden, so
// a concrete factory only needs to implement the behavior it changes.
type ProxiedFactory struct {
	Delegate Factory
}

// Connect forwards to the delegate.
func (p *ProxiedFactory) Connect(ctx context.Context, server *model.Server) (*socket.Connection, error) {
	return p.Delegate.Connect(ctx, server)
}

// SocketConnectionFactory opens a plain TCP connection and wraps it in a
// socket.Connection. It is the innermost factory in every composition
// chain — nothing below it talks to the network directly.
type SocketConnectionFactory struct {
	Dialer  *net.Dialer
	Options []socket.Option
}

// NewSocketConnectionFactory builds a SocketConnectionFactory using the
// zero-value net.Dialer unless overridden.
func NewSocketConnectionFactory(opts ...socket.Option) *SocketConnectionFactory {
	return &SocketConnectionFactory{Dialer: &net.Dialer{}, Options: opts}
}

// Connect dials server.Name over TCP and opens a socket.Connection on it.
func (f *SocketConnectionFactory) Connect(ctx context.Context, server *model.Server) (*socket.Connection, error) {
	dial := func(ctx context.Context) (net.Conn, error) {
		return f.Dialer.DialContext(ctx, "tcp", server.Name)
	}
	return socket.Open(ctx, server, dial, f.Options...)
}
