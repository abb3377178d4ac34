// Copyright (C) MongoDB, Inc. 2026-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package auth

import (
	"context"
	"errors"

	"github.com/xdg/scram"
	"github.com/xdg/stringprep"

	"github.com/youseeus/mongodb-async-driver/socket"
)

// Mechanism names, matching the wire protocol's saslStart.mechanism value.
const (
	ScramSHA1   = "SCRAM-SHA-1"
	ScramSHA256 = "SCRAM-SHA-256"
)

var errSaslNoReply = errors.New("auth: sasl command received no reply")
var errSaslServerRejected = errors.New("auth: server rejected sasl step")

// scramAuthenticator authenticates over SASL using the mechanism's
// xdg/scram client, parameterized to accept either hash function instead
// of hard-coding SHA-256.
type scramAuthenticator struct {
	db        string
	mechanism string
	client    *scram.Client
}

func newScramAuthenticator(mechanism string, cred *Cred) (Authenticator, error) {
	hash := scram.SHA1
	if mechanism == ScramSHA256 {
		hash = scram.SHA256
	}

	password, err := stringprep.SASLprep.Prepare(cred.Password)
	if err != nil {
		return nil, newError(mechanism, err)
	}

	client, err := hash.NewClientUnprepped(cred.Username, password, "")
	if err != nil {
		return nil, newError(mechanism, err)
	}
	client.WithMinIterations(4096)

	return &scramAuthenticator{db: cred.Source, mechanism: mechanism, client: client}, nil
}

// Authenticate runs the SCRAM conversation over conn.
func (a *scramAuthenticator) Authenticate(ctx context.Context, conn *socket.Connection) error {
	adapter := &scramSaslAdapter{mechanism: a.mechanism, conversation: a.client.NewConversation()}
	return conductSaslConversation(ctx, conn, a.db, adapter)
}

// scramSaslAdapter adapts an xdg/scram.ClientConversation to saslClient.
type scramSaslAdapter struct {
	mechanism    string
	conversation *scram.ClientConversation
}

func (a *scramSaslAdapter) Start() (string, []byte, error) {
	step, err := a.conversation.Step("")
	if err != nil {
		return a.mechanism, nil, err
	}
	return a.mechanism, []byte(step), nil
}

func (a *scramSaslAdapter) Next(challenge []byte) ([]byte, error) {
	step, err := a.conversation.Step(string(challenge))
	if err != nil {
		return nil, err
	}
	return []byte(step), nil
}

func (a *scramSaslAdapter) Completed() bool {
	return a.conversation.Done()
}
