// Copyright (C) MongoDB, Inc. 2026-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package factory_test

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/youseeus/mongodb-async-driver/factory"
	"github.com/youseeus/mongodb-async-driver/model"
	"github.com/youseeus/mongodb-async-driver/socket"
	"github.com/youseeus/mongodb-async-driver/wire"
)

// fakeDialer answers every dial with one end of a net.Pipe and replies to
// the identity command sent down the other end with doc, so tests can
// script exactly what BootstrapConnectionFactory sees without a real
// mongod/mongos.
type fakeDialer struct {
	doc bson.M
}

func (d *fakeDialer) Connect(ctx context.Context, server *model.Server) (*socket.Connection, error) {
	clientConn, serverConn := net.Pipe()

	go func() {
		codec := wire.NewCodec()
		msg, err := codec.Decode(serverConn)
		if err != nil {
			return
		}
		q := msg.(*wire.Query)
		_ = codec.Encode(serverConn, wire.NewReply(q.RequestID(), d.doc))
	}()

	return socket.Open(ctx, server, func(context.Context) (net.Conn, error) {
		return clientConn, nil
	})
}

func TestBootstrapClassifiesReplicaSet(t *testing.T) {
	cluster := model.NewCluster()
	base := &fakeDialer{doc: bson.M{
		"ok": 1, "ismaster": true, "setName": "rs0",
		"hosts": []string{"seed:27017", "other:27017"},
	}}

	f := factory.NewBootstrapConnectionFactory(base, cluster, "seed:27017")
	require.NoError(t, f.Bootstrap(context.Background()))

	require.Equal(t, model.ReplicaSet, f.ClusterType())
	require.Equal(t, model.ReplicaSet, cluster.Kind())
	require.IsType(t, &factory.ReplicaSetConnectionFactory{}, f.GetDelegate())
	require.NotNil(t, f.Strategy())
	_, ok := cluster.Lookup("other:27017")
	require.True(t, ok)
}

func TestBootstrapClassifiesSharded(t *testing.T) {
	cluster := model.NewCluster()
	base := &fakeDialer{doc: bson.M{"ok": 1, "msg": "isdbgrid"}}

	f := factory.NewBootstrapConnectionFactory(base, cluster, "seed:27017")
	require.NoError(t, f.Bootstrap(context.Background()))

	require.Equal(t, model.Sharded, f.ClusterType())
	require.Equal(t, model.Sharded, cluster.Kind())
	require.IsType(t, &factory.ShardedConnectionFactory{}, f.GetDelegate())
}

func TestBootstrapClassifiesStandalone(t *testing.T) {
	cluster := model.NewCluster()
	base := &fakeDialer{doc: bson.M{"ok": 1, "ismaster": true}}

	f := factory.NewBootstrapConnectionFactory(base, cluster, "seed:27017")
	require.NoError(t, f.Bootstrap(context.Background()))

	require.Equal(t, model.SingleCluster, f.ClusterType())
	require.Same(t, base, f.GetDelegate())
}

func TestBootstrapFailsWhenNoSeedAnswers(t *testing.T) {
	cluster := model.NewCluster()
	f := factory.NewBootstrapConnectionFactory(&refusingDialer{}, cluster, "dead:27017")

	err := f.Bootstrap(context.Background())

	require.ErrorIs(t, err, factory.ErrBootstrapFailed)
	require.Nil(t, f.GetDelegate())
}

type refusingDialer struct{}

func (refusingDialer) Connect(ctx context.Context, server *model.Server) (*socket.Connection, error) {
	return nil, context.DeadlineExceeded
}
