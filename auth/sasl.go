// Copyright (C) MongoDB, Inc. 2026-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package auth

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/youseeus/mongodb-async-driver/socket"
	"github.com/youseeus/mongodb-async-driver/wire"
)

const defaultAuthSource = "admin"

// saslClient drives one mechanism's half of a SASL conversation.
// scramSaslAdapter, which covers both SCRAM mechanisms, satisfies it.
type saslClient interface {
	Start() (mechanism string, payload []byte, err error)
	Next(challenge []byte) ([]byte, error)
	Completed() bool
}

type saslResponse struct {
	ConversationID int    `bson:"conversationId"`
	Code           int    `bson:"code"`
	Done           bool   `bson:"done"`
	Payload        []byte `bson:"payload"`
}

// conductSaslConversation runs a full saslStart/saslContinue exchange over
// conn, driven by client, using this package's Connection.Send/callback
// shape rather than a synchronous command-execution helper.
func conductSaslConversation(ctx context.Context, conn *socket.Connection, db string, client saslClient) error {
	if db == "" {
		db = defaultAuthSource
	}

	mechanism, payload, err := client.Start()
	if err != nil {
		return newError(mechanism, err)
	}

	resp, err := runSaslCommand(ctx, conn, db, bson.D{
		{Key: "saslStart", Value: 1},
		{Key: "mechanism", Value: mechanism},
		{Key: "payload", Value: payload},
		{Key: "autoAuthorize", Value: 1},
	})
	if err != nil {
		return newError(mechanism, err)
	}

	for {
		if resp.Done && client.Completed() {
			return nil
		}

		payload, err = client.Next(resp.Payload)
		if err != nil {
			return newError(mechanism, err)
		}

		if resp.Done && client.Completed() {
			return nil
		}

		resp, err = runSaslCommand(ctx, conn, db, bson.D{
			{Key: "saslContinue", Value: 1},
			{Key: "conversationId", Value: resp.ConversationID},
			{Key: "payload", Value: payload},
		})
		if err != nil {
			return newError(mechanism, err)
		}
	}
}

func runSaslCommand(ctx context.Context, conn *socket.Connection, db string, cmd bson.D) (*saslResponse, error) {
	type result struct {
		reply *wire.Reply
		err   error
	}
	done := make(chan result, 1)

	req := wire.NewCommand(db, true, cmd)
	if err := conn.Send(ctx, req, func(reply *wire.Reply, err error) {
		done <- result{reply, err}
	}); err != nil {
		return nil, err
	}

	select {
	case r := <-done:
		if r.err != nil {
			return nil, r.err
		}
		return decodeSaslResponse(r.reply)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func decodeSaslResponse(reply *wire.Reply) (*saslResponse, error) {
	if reply == nil || reply.QueryFailed() || len(reply.Documents) == 0 {
		return nil, errSaslNoReply
	}
	raw, err := bson.Marshal(reply.Documents[0])
	if err != nil {
		return nil, err
	}
	var resp saslResponse
	if err := bson.Unmarshal(raw, &resp); err != nil {
		return nil, err
	}
	if resp.Code != 0 {
		return nil, errSaslServerRejected
	}
	return &resp, nil
}
