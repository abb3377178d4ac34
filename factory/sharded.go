// Copyright (C) MongoDB, Inc. 2026-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package factory

import (
	"context"

	"github.com/youseeus/mongodb-async-driver/model"
	"github.com/youseeus/mongodb-async-driver/socket"
)

// ShardedConnectionFactory connects directly to mongos routers through
// Delegate, without the replica-set member-discovery ReplicaSetConnectionFactory
// performs — a mongos seed list is already the full routing tier.
type ShardedConnectionFactory struct {
	ProxiedFactory
	Cluster *model.Cluster
}

// NewShardedConnectionFactory builds a ShardedConnectionFactory and marks
// cluster as sharded.
func NewShardedConnectionFactory(delegate Factory, cluster *model.Cluster) *ShardedConnectionFactory {
	cluster.SetKind(model.Sharded)
	return &ShardedConnectionFactory{ProxiedFactory: ProxiedFactory{Delegate: delegate}, Cluster: cluster}
}

// Connect opens a connection through the delegate and updates the router's
// recorded identity, but performs no member discovery. Which router server
// gets passed in here is decided upstream by selector.ReadPreference's
// sharded branch (for a fresh connection) or the reconnect strategy's
// selector.ByLatency-ordered candidate list (for a replacement one) — this
// method only dials whichever one it's handed.
func (f *ShardedConnectionFactory) Connect(ctx context.Context, server *model.Server) (*socket.Connection, error) {
	conn, err := f.Delegate.Connect(ctx, server)
	if err != nil {
		return nil, err
	}

	if reply, err := identify(ctx, conn); err == nil {
		server.UpdateFrom(reply, 0)
	}

	return conn, nil
}
