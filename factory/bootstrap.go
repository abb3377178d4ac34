// Copyright (C) MongoDB, Inc. 2026-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package factory

import (
	"context"
	"errors"

	"github.com/youseeus/mongodb-async-driver/model"
	"github.com/youseeus/mongodb-async-driver/reconnect"
	"github.com/youseeus/mongodb-async-driver/selector"
	"github.com/youseeus/mongodb-async-driver/socket"
)

// ErrBootstrapFailed is returned when none of the configured seeds could be
// identified, mirroring testBootstrapAllFail's getDelegate() staying nil.
var ErrBootstrapFailed = errors.New("factory: could not identify any seed")

// BootstrapConnectionFactory probes a list of seed servers with the
// identity command and, from the first one that answers, classifies the
// deployment and builds the matching delegate factory and reconnect
// strategy: ReplicaSetConnectionFactory+ReplicaSetReconnectStrategy for a
// replica set, ShardedConnectionFactory+SimpleReconnectStrategy for a
// mongos tier, and a bare SocketConnectionFactory+SimpleReconnectStrategy
// otherwise.
type BootstrapConnectionFactory struct {
	ProxiedFactory
	Cluster     *model.Cluster
	Seeds       []string
	Base        Factory
	strategy    reconnect.Strategy
	clusterKind model.ClusterKind
}

// NewBootstrapConnectionFactory builds a BootstrapConnectionFactory that
// will classify base against cluster using seeds, in order, stopping at
// the first seed that answers the identity command.
func NewBootstrapConnectionFactory(base Factory, cluster *model.Cluster, seeds ...string) *BootstrapConnectionFactory {
	return &BootstrapConnectionFactory{Base: base, Cluster: cluster, Seeds: seeds}
}

// Bootstrap probes the configured seeds in order and classifies the
// deployment from the first successful identity reply. It must be called
// before Connect/Reconnect are used; a zero-value BootstrapConnectionFactory
// has no delegate, matching testBootstrapAllFail's assertNull(getDelegate()).
func (f *BootstrapConnectionFactory) Bootstrap(ctx context.Context) error {
	for _, seed := range f.Seeds {
		server := f.Cluster.Add(seed)
		conn, err := f.Base.Connect(ctx, server)
		if err != nil {
			continue
		}
		reply, err := identify(ctx, conn)
		conn.Shutdown(ctx, false)
		if err != nil {
			continue
		}

		server.UpdateFrom(reply, 0)
		f.classify(reply)
		return nil
	}
	return ErrBootstrapFailed
}

func (f *BootstrapConnectionFactory) classify(reply *model.IdentityReply) {
	switch {
	case reply.Kind()&model.RSMember != 0:
		f.clusterKind = model.ReplicaSet
		f.Cluster.SetKind(model.ReplicaSet)
		delegate := NewReplicaSetConnectionFactory(f.Base, f.Cluster)
		discoverMembers(f.Cluster, reply)
		f.Delegate = delegate
		simple := reconnect.NewSimpleReconnectStrategy(delegate, f.Cluster, selector.Write())
		f.strategy = reconnect.NewReplicaSetReconnectStrategy(simple, f.Cluster)
	case reply.Kind() == model.Mongos:
		f.clusterKind = model.Sharded
		f.Cluster.SetKind(model.Sharded)
		delegate := NewShardedConnectionFactory(f.Base, f.Cluster)
		f.Delegate = delegate
		f.strategy = reconnect.NewSimpleReconnectStrategy(delegate, f.Cluster, selector.Composite(selector.Write(), selector.ByLatency()))
	default:
		f.clusterKind = model.SingleCluster
		f.Cluster.SetKind(model.SingleCluster)
		f.Delegate = f.Base
		f.strategy = reconnect.NewSimpleReconnectStrategy(f.Base, f.Cluster, selector.Write())
	}
}

// GetDelegate returns the factory Bootstrap chose, or nil if Bootstrap
// hasn't run or every seed failed to identify.
func (f *BootstrapConnectionFactory) GetDelegate() Factory { return f.Delegate }

// ClusterType returns the topology Bootstrap classified.
func (f *BootstrapConnectionFactory) ClusterType() model.ClusterKind { return f.clusterKind }

// Strategy returns the reconnect.ReplicaSetReconnectStrategy or
// reconnect.SimpleReconnectStrategy Bootstrap built for this deployment.
func (f *BootstrapConnectionFactory) Strategy() reconnect.Strategy { return f.strategy }

// Connect delegates to whatever factory Bootstrap selected. Calling it
// before a successful Bootstrap is a programmer error: Delegate (what
// GetDelegate returns) stays nil until classification succeeds, so this
// call nil-panics.
func (f *BootstrapConnectionFactory) Connect(ctx context.Context, server *model.Server) (*socket.Connection, error) {
	return f.Delegate.Connect(ctx, server)
}
