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

// ReplicaSetConnectionFactory connects through Delegate and, on every
// successful connect, folds the freshly-identified server's reported
// Hosts/Passives/Arbiters into Cluster so later selector/reconnect passes
// see the full member set without a separate discovery round.
type ReplicaSetConnectionFactory struct {
	ProxiedFactory
	Cluster *model.Cluster
}

// NewReplicaSetConnectionFactory builds a ReplicaSetConnectionFactory and
// marks cluster as a replica set.
func NewReplicaSetConnectionFactory(delegate Factory, cluster *model.Cluster) *ReplicaSetConnectionFactory {
	cluster.SetKind(model.ReplicaSet)
	return &ReplicaSetConnectionFactory{ProxiedFactory: ProxiedFactory{Delegate: delegate}, Cluster: cluster}
}

// Connect opens a connection through the delegate, then identifies the
// server so its role and discovered peers are folded into Cluster before
// the connection is handed back.
func (f *ReplicaSetConnectionFactory) Connect(ctx context.Context, server *model.Server) (*socket.Connection, error) {
	conn, err := f.Delegate.Connect(ctx, server)
	if err != nil {
		return nil, err
	}

	reply, err := identify(ctx, conn)
	if err != nil {
		// A server that can't identify itself is still usable; the next
		// ClusterPinger sweep will retry and can mark it failed.
		return conn, nil
	}

	server.UpdateFrom(reply, 0)
	discoverMembers(f.Cluster, reply)

	return conn, nil
}

// discoverMembers folds every host an identity reply names — primary,
// secondaries, passives, and arbiters — into cluster. Shared by
// ReplicaSetConnectionFactory.Connect and BootstrapConnectionFactory's
// initial classification, since both are reacting to the same kind of
// reply.
func discoverMembers(cluster *model.Cluster, reply *model.IdentityReply) {
	for _, host := range reply.Hosts {
		cluster.Add(host)
	}
	for _, host := range reply.Passives {
		cluster.Add(host)
	}
	for _, host := range reply.Arbiters {
		cluster.Add(host)
	}
}
