// Copyright (C) MongoDB, Inc. 2026-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package reconnect_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/youseeus/mongodb-async-driver/model"
	"github.com/youseeus/mongodb-async-driver/reconnect"
	"github.com/youseeus/mongodb-async-driver/selector"
	"github.com/youseeus/mongodb-async-driver/socket"
)

// fakeAsker reports a fixed opinion per member name, standing in for a
// fresh identity-command poll so tests don't need a real wire round trip.
type fakeAsker struct {
	votes map[string]string
}

func (f *fakeAsker) AskPrimary(ctx context.Context, member *model.Server) string {
	return f.votes[member.Name]
}

type fakeFactory struct {
	fail    map[string]bool
	opened  []string
}

func (f *fakeFactory) Connect(ctx context.Context, server *model.Server) (*socket.Connection, error) {
	f.opened = append(f.opened, server.Name)
	if f.fail[server.Name] {
		return nil, errors.New("fake: dial refused")
	}
	return &socket.Connection{}, nil
}

type fakeProber struct {
	confirm map[string]bool
}

func (f *fakeProber) Confirm(ctx context.Context, conn *socket.Connection, server *model.Server) bool {
	return f.confirm[server.Name]
}

func TestSimpleReconnectPrefersOriginalServer(t *testing.T) {
	cluster := model.NewCluster()
	original := cluster.Add("foo:27017")

	factory := &fakeFactory{}
	strategy := reconnect.NewSimpleReconnectStrategy(factory, cluster, selector.Write())
	strategy.Prober = &fakeProber{confirm: map[string]bool{"foo:27017": true}}

	conn, err := strategy.Reconnect(context.Background(), original)

	require.NoError(t, err)
	require.NotNil(t, conn)
	require.Equal(t, []string{"foo:27017"}, factory.opened)
}

func TestSimpleReconnectFallsBackToSelector(t *testing.T) {
	cluster := model.NewCluster()
	original := cluster.Add("foo:27017")
	alt := cluster.Add("bar:27017")
	alt.UpdateFrom(&model.IdentityReply{OK: true, IsMaster: true}, 0)
	cluster.SetKind(model.ReplicaSet)

	factory := &fakeFactory{fail: map[string]bool{"foo:27017": true}}
	strategy := reconnect.NewSimpleReconnectStrategy(factory, cluster, selector.Write())
	strategy.Prober = &fakeProber{confirm: map[string]bool{"bar:27017": true}}

	conn, err := strategy.Reconnect(context.Background(), original)

	require.NoError(t, err)
	require.NotNil(t, conn)
}

func TestSimpleReconnectReturnsErrorWhenNothingWorks(t *testing.T) {
	cluster := model.NewCluster()
	original := cluster.Add("foo:27017")

	factory := &fakeFactory{fail: map[string]bool{"foo:27017": true}}
	strategy := reconnect.NewSimpleReconnectStrategy(factory, cluster, selector.Write())
	strategy.Prober = &fakeProber{}

	conn, err := strategy.Reconnect(context.Background(), original)

	require.Error(t, err)
	require.Nil(t, conn)
}

func TestReplicaSetReconnectPromotesNewPrimaryAndDemotesOld(t *testing.T) {
	cluster := model.NewCluster()
	cluster.SetKind(model.ReplicaSet)
	oldPrimary := cluster.Add("old:27017")
	newPrimary := cluster.Add("new:27017")
	// Stale: the cluster still believes oldPrimary is writable, even
	// though both members now agree the primary has moved.
	oldPrimary.UpdateFrom(&model.IdentityReply{OK: true, IsMaster: true}, 0)

	factory := &fakeFactory{}
	simple := reconnect.NewSimpleReconnectStrategy(factory, cluster, selector.Write())
	simple.Prober = &fakeProber{confirm: map[string]bool{"new:27017": true}}

	strategy := reconnect.NewReplicaSetReconnectStrategy(simple, cluster)
	strategy.Asker = &fakeAsker{votes: map[string]string{
		"old:27017": "new:27017",
		"new:27017": "new:27017",
	}}

	conn, err := strategy.Reconnect(context.Background(), oldPrimary)

	require.NoError(t, err)
	require.NotNil(t, conn)
	require.Equal(t, []*model.Server{newPrimary}, cluster.Writable())
	require.Equal(t, model.RoleNonWritable, oldPrimary.Role())
}

func TestReplicaSetReconnectReturnsNilWhenQuorumNotReached(t *testing.T) {
	cluster := model.NewCluster()
	cluster.SetKind(model.ReplicaSet)
	lone := cluster.Add("lone:27017")
	lone.UpdateFrom(&model.IdentityReply{OK: true, IsMaster: true}, 0)

	factory := &fakeFactory{}
	simple := reconnect.NewSimpleReconnectStrategy(factory, cluster, selector.Write())
	simple.Prober = &fakeProber{confirm: map[string]bool{"lone:27017": true}}

	strategy := reconnect.NewReplicaSetReconnectStrategy(simple, cluster)
	strategy.Quorum = 2
	strategy.Timeout = 50 * time.Millisecond
	strategy.Asker = &fakeAsker{votes: map[string]string{"lone:27017": "lone:27017"}}

	conn, err := strategy.Reconnect(context.Background(), lone)

	require.Error(t, err)
	require.Nil(t, conn)
	require.Empty(t, cluster.Writable())
}
