// Copyright (C) MongoDB, Inc. 2026-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package reconnect implements the ReconnectStrategy: given a Connection
// that has failed, produce a replacement. SimpleReconnectStrategy retries
// the same server first, then falls back to a ServerSelector's candidate
// list, probing each with an identity command before accepting it.
package reconnect

import (
	"context"
	"errors"

	"github.com/youseeus/mongodb-async-driver/model"
	"github.com/youseeus/mongodb-async-driver/selector"
	"github.com/youseeus/mongodb-async-driver/socket"
	"github.com/youseeus/mongodb-async-driver/wire"
)

// ErrNoServerAvailable is returned when neither the original server nor
// any selector candidate could be reconnected to and confirmed.
var ErrNoServerAvailable = errors.New("reconnect: no server available")

// Strategy produces a replacement Connection for one that failed against
// oldServer. Both SimpleReconnectStrategy and ReplicaSetReconnectStrategy
// satisfy it, so a BootstrapConnectionFactory can hold whichever one it
// built without caring which.
type Strategy interface {
	Reconnect(ctx context.Context, oldServer *model.Server) (*socket.Connection, error)
}

// ConnectionFactory opens a new Connection to a Server. Production callers
// satisfy this with factory.SocketConnectionFactory (or an authenticating
// wrapper around it); tests supply a fake.
type ConnectionFactory interface {
	Connect(ctx context.Context, server *model.Server) (*socket.Connection, error)
}

// Prober confirms a freshly-opened Connection is actually answering before
// a reconnect strategy commits to it, mirroring the IsMaster/ServerStatus
// probe SimpleReconnectStrategy sends before returning its new connection.
type Prober interface {
	Confirm(ctx context.Context, conn *socket.Connection, server *model.Server) bool
}

// identityProber sends a real identity command over the connection and
// treats an error-free reply as confirmation.
type identityProber struct{}

func (identityProber) Confirm(ctx context.Context, conn *socket.Connection, server *model.Server) bool {
	result := make(chan bool, 1)
	cmd := wire.NewCommand("admin", true, map[string]interface{}{"ismaster": 1})
	err := conn.Send(ctx, cmd, func(reply *wire.Reply, err error) {
		result <- err == nil && reply != nil && !reply.QueryFailed()
	})
	if err != nil {
		return false
	}
	select {
	case ok := <-result:
		return ok
	case <-ctx.Done():
		return false
	}
}

// DefaultProber is the identity-command confirmation every ReconnectStrategy
// uses unless a test overrides it.
var DefaultProber Prober = identityProber{}

// SimpleReconnectStrategy reconnects to the same server a Connection was
// pointed at, falling back to a ServerSelector's candidates if that fails.
type SimpleReconnectStrategy struct {
	Factory  ConnectionFactory
	Cluster  *model.Cluster
	Selector selector.ServerSelector
	Prober   Prober
}

// NewSimpleReconnectStrategy builds a SimpleReconnectStrategy with the
// default identity-command prober.
func NewSimpleReconnectStrategy(factory ConnectionFactory, cluster *model.Cluster, sel selector.ServerSelector) *SimpleReconnectStrategy {
	return &SimpleReconnectStrategy{Factory: factory, Cluster: cluster, Selector: sel, Prober: DefaultProber}
}

// Reconnect produces a replacement for a Connection that failed against
// oldServer. It tries oldServer itself first — a transient failure doesn't
// necessarily mean the server is gone — then consults the Selector for
// alternatives.
func (s *SimpleReconnectStrategy) Reconnect(ctx context.Context, oldServer *model.Server) (*socket.Connection, error) {
	if conn, ok := s.tryConnect(ctx, oldServer); ok {
		return conn, nil
	}

	candidates, err := s.Selector(s.Cluster, s.Cluster.Servers())
	if err != nil {
		return nil, err
	}

	for _, candidate := range candidates {
		if conn, ok := s.tryConnect(ctx, candidate); ok {
			return conn, nil
		}
	}

	return nil, ErrNoServerAvailable
}

func (s *SimpleReconnectStrategy) tryConnect(ctx context.Context, server *model.Server) (*socket.Connection, bool) {
	conn, err := s.Factory.Connect(ctx, server)
	if err != nil {
		return nil, false
	}
	if !s.Prober.Confirm(ctx, conn, server) {
		conn.Shutdown(ctx, true)
		return nil, false
	}
	return conn, true
}
