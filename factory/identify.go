// Copyright (C) MongoDB, Inc. 2026-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package factory

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/youseeus/mongodb-async-driver/internal"
	"github.com/youseeus/mongodb-async-driver/model"
	"github.com/youseeus/mongodb-async-driver/socket"
	"github.com/youseeus/mongodb-async-driver/wire"
)

// errIdentifyFailed is returned when a freshly-opened connection's identity
// command comes back with ok != 1 or never replies.
var errIdentifyFailed = errors.New("factory: identity command failed")

// identify sends the ismaster-style identity command over conn and decodes
// the result into a model.IdentityReply. BootstrapConnectionFactory uses
// this to classify a seed from the reply's role fields, decoded through
// the same bson collaborator the rest of this module uses instead of
// hand-picking fields out of the raw document.
func identify(ctx context.Context, conn *socket.Connection) (*model.IdentityReply, error) {
	cmd := wire.NewCommand("admin", true, bson.M{"ismaster": 1})

	type result struct {
		reply *wire.Reply
		err   error
	}
	done := make(chan result, 1)
	if err := conn.Send(ctx, cmd, func(reply *wire.Reply, err error) {
		done <- result{reply, err}
	}); err != nil {
		return nil, internal.WrapErrorf(err, "failed sending identify command")
	}

	select {
	case r := <-done:
		if r.err != nil {
			return nil, r.err
		}
		return decodeIdentityReply(r.reply)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// decodeIdentityReply unmarshals the first document of reply into a
// model.IdentityReply. The wire codec already decoded the document into a
// bson.M; round-tripping it through bson.Marshal/Unmarshal against the
// tagged struct lets model.IdentityReply stay the single source of truth
// for the field mapping instead of duplicating it here.
func decodeIdentityReply(reply *wire.Reply) (*model.IdentityReply, error) {
	if reply == nil || reply.QueryFailed() || len(reply.Documents) == 0 {
		return nil, errIdentifyFailed
	}

	raw, err := bson.Marshal(reply.Documents[0])
	if err != nil {
		return nil, err
	}

	var out model.IdentityReply
	if err := bson.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
