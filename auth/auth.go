// Copyright (C) MongoDB, Inc. 2026-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package auth implements the SASL/SCRAM authentication handshake that
// plugs into the connection-factory family: an AuthenticatingFactory wraps
// any factory.Factory and runs a conversation over the freshly-opened
// connection before handing it back. One mechanism-parameterized
// authenticator covers both SCRAM-SHA-1 and SCRAM-SHA-256 via
// xdg/scram/xdg/stringprep rather than keeping two near-duplicate
// per-mechanism implementations.
package auth

import (
	"context"
	"fmt"

	"github.com/youseeus/mongodb-async-driver/factory"
	"github.com/youseeus/mongodb-async-driver/internal"
	"github.com/youseeus/mongodb-async-driver/model"
	"github.com/youseeus/mongodb-async-driver/socket"
)

// Cred holds the credentials an Authenticator negotiates with.
type Cred struct {
	Username string
	Password string
	Source   string
}

// Authenticator runs one authentication mechanism's handshake over an
// already-open connection.
type Authenticator interface {
	Authenticate(ctx context.Context, conn *socket.Connection) error
}

// Error wraps a failure from a specific mechanism. It implements
// internal.WrappedError so Error() rolls up through inner's own message
// instead of double-reporting it.
type Error struct {
	mechanism string
	inner     error
}

func newError(mechanism string, err error) *Error { return &Error{mechanism: mechanism, inner: err} }

func (e *Error) Message() string { return fmt.Sprintf("mechanism %q", e.mechanism) }

func (e *Error) Error() string { return internal.RolledUpErrorMessage(e) }

func (e *Error) Inner() error { return e.inner }

// Unwrap exposes the wrapped error to errors.Is/As.
func (e *Error) Unwrap() error { return e.inner }

// NewAuthenticator builds the Authenticator for mechanism, one of
// "SCRAM-SHA-1" or "SCRAM-SHA-256".
func NewAuthenticator(mechanism string, cred *Cred) (Authenticator, error) {
	switch mechanism {
	case ScramSHA1:
		return newScramAuthenticator(ScramSHA1, cred)
	case ScramSHA256:
		return newScramAuthenticator(ScramSHA256, cred)
	default:
		return nil, fmt.Errorf("auth: unsupported mechanism %q", mechanism)
	}
}

// AuthenticatingFactory decorates a factory.Factory so every connection it
// opens is authenticated with Cred/Mechanism before being returned: dial,
// then authenticate, then hand back the connection or close it on failure.
type AuthenticatingFactory struct {
	factory.ProxiedFactory
	Mechanism string
	Cred      *Cred
}

// NewAuthenticatingFactory wraps delegate so every Connect also
// authenticates as cred using mechanism.
func NewAuthenticatingFactory(delegate factory.Factory, mechanism string, cred *Cred) *AuthenticatingFactory {
	return &AuthenticatingFactory{ProxiedFactory: factory.ProxiedFactory{Delegate: delegate}, Mechanism: mechanism, Cred: cred}
}

// Connect opens a connection through the delegate and authenticates it,
// closing it and returning an error if authentication fails.
func (f *AuthenticatingFactory) Connect(ctx context.Context, server *model.Server) (*socket.Connection, error) {
	conn, err := f.Delegate.Connect(ctx, server)
	if err != nil {
		return nil, err
	}

	authenticator, err := NewAuthenticator(f.Mechanism, f.Cred)
	if err != nil {
		conn.Shutdown(ctx, true)
		return nil, err
	}

	if err := authenticator.Authenticate(ctx, conn); err != nil {
		conn.Shutdown(ctx, true)
		return nil, err
	}

	return conn, nil
}
