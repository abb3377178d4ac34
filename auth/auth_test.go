// Copyright (C) MongoDB, Inc. 2026-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package auth_test

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/youseeus/mongodb-async-driver/auth"
	"github.com/youseeus/mongodb-async-driver/model"
	"github.com/youseeus/mongodb-async-driver/socket"
	"github.com/youseeus/mongodb-async-driver/wire"
)

func TestScramSHA1AuthenticatorFailsOnServerRejection(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer serverConn.Close()

	server := &model.Server{Name: "fake:27017"}
	conn, err := socket.Open(context.Background(), server, func(context.Context) (net.Conn, error) {
		return clientConn, nil
	})
	require.NoError(t, err)

	go func() {
		codec := wire.NewCodec()
		msg, decodeErr := codec.Decode(serverConn)
		if decodeErr != nil {
			return
		}
		start := msg.(*wire.Query)
		_ = codec.Encode(serverConn, wire.NewReply(start.RequestID(), bson.M{
			"ok": 1, "conversationId": 1, "done": true, "code": 18,
		}))
	}()

	authenticator, err := auth.NewAuthenticator(auth.ScramSHA1, &auth.Cred{
		Username: "tester", Password: "pencil", Source: "admin",
	})
	require.NoError(t, err)

	err = authenticator.Authenticate(context.Background(), conn)
	require.Error(t, err)
}

func TestNewAuthenticatorRejectsUnknownMechanism(t *testing.T) {
	_, err := auth.NewAuthenticator("GSSAPI", &auth.Cred{})
	require.Error(t, err)
}
