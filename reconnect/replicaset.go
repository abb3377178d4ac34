// Copyright (C) MongoDB, Inc. 2026-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package reconnect

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/youseeus/mongodb-async-driver/model"
	"github.com/youseeus/mongodb-async-driver/socket"
	"github.com/youseeus/mongodb-async-driver/wire"
)

// DefaultQuorum is the number of independent members that must agree on
// the same primary before ReplicaSetReconnectStrategy accepts it: one
// server's opinion of who the primary is isn't enough, since it could
// itself be partitioned from the rest of the set.
const DefaultQuorum = 2

// DefaultReconnectTimeout bounds how long Reconnect keeps polling members
// for a fresh quorum before giving up.
const DefaultReconnectTimeout = 10 * time.Second

// quorumPollInterval is how long Reconnect waits between rounds of polling
// every member for its opinion of the primary, while a quorum hasn't yet
// been reached and the deadline hasn't yet elapsed.
const quorumPollInterval = 200 * time.Millisecond

var errNoIdentityReply = errors.New("reconnect: identity command returned no usable reply")

// PrimaryAsker reports one member's current opinion of who the primary
// is, freshly queried rather than read from a cached state. Production
// callers satisfy this by dialing the member and issuing a real identity
// command; tests supply a fake.
type PrimaryAsker interface {
	AskPrimary(ctx context.Context, member *model.Server) string
}

// dialingPrimaryAsker asks a member's opinion of the primary by opening a
// connection through factory and issuing the ismaster-style identity
// command over it.
type dialingPrimaryAsker struct {
	factory ConnectionFactory
}

func (a dialingPrimaryAsker) AskPrimary(ctx context.Context, member *model.Server) string {
	conn, err := a.factory.Connect(ctx, member)
	if err != nil {
		return ""
	}
	defer conn.Shutdown(ctx, true)

	reply, err := sendIdentityCommand(ctx, conn)
	if err != nil {
		return ""
	}
	if reply.IsMaster {
		return member.Name
	}
	if reply.Primary != "" {
		return model.CanonicalName(reply.Primary)
	}
	return ""
}

// ReplicaSetReconnectStrategy reconnects by polling every known member of
// a replica set, in parallel, for its opinion of the current primary via a
// fresh identity command — repeating the poll until at least Quorum
// independent members agree on the same primary, or Timeout elapses. A
// member's cached last-seen opinion is not trusted: only a response to a
// query issued during this call counts as a vote, since the whole point
// of reconnecting is that the cached topology may already be stale.
type ReplicaSetReconnectStrategy struct {
	Simple  *SimpleReconnectStrategy
	Cluster *model.Cluster
	Prober  Prober
	Asker   PrimaryAsker
	Quorum  int
	Timeout time.Duration
}

// NewReplicaSetReconnectStrategy builds a ReplicaSetReconnectStrategy
// layered on top of simple.
func NewReplicaSetReconnectStrategy(simple *SimpleReconnectStrategy, cluster *model.Cluster) *ReplicaSetReconnectStrategy {
	return &ReplicaSetReconnectStrategy{
		Simple:  simple,
		Cluster: cluster,
		Prober:  simple.Prober,
		Asker:   dialingPrimaryAsker{factory: simple.Factory},
		Quorum:  DefaultQuorum,
		Timeout: DefaultReconnectTimeout,
	}
}

// Reconnect repeatedly polls every member for its reported primary until
// Quorum of them (by independent server identity) name the same
// host:port, or Timeout elapses. On quorum, the winner is promoted to the
// cluster's sole writable server and a connection to it is returned. On
// timeout or disagreement, every server the cluster still considers
// writable is demoted and Reconnect returns nil with
// ErrNoServerAvailable, rather than falling back to the simple
// same-server-then-selector behavior — a replica set with no agreed
// primary has no writable server to fall back to.
func (s *ReplicaSetReconnectStrategy) Reconnect(ctx context.Context, oldServer *model.Server) (*socket.Connection, error) {
	deadline, cancel := context.WithTimeout(ctx, s.timeout())
	defer cancel()

	ticker := time.NewTicker(quorumPollInterval)
	defer ticker.Stop()

	for {
		votes := s.pollPrimaryVotes(deadline)
		if winner, count := mostVotedPrimary(votes); count >= s.quorum() && winner != "" {
			return s.acceptPrimary(deadline, winner)
		}

		select {
		case <-deadline.Done():
			s.demoteAllWritable()
			return nil, ErrNoServerAvailable
		case <-ticker.C:
		}
	}
}

// acceptPrimary connects to winner, and if that succeeds, makes it the
// cluster's sole writable server: winner is promoted, and every other
// server the cluster still considers writable is demoted.
func (s *ReplicaSetReconnectStrategy) acceptPrimary(ctx context.Context, winner string) (*socket.Connection, error) {
	primary := s.Cluster.Add(winner)
	conn, ok := s.Simple.tryConnect(ctx, primary)
	if !ok {
		return nil, ErrNoServerAvailable
	}

	for _, w := range s.Cluster.Writable() {
		if w.Name != primary.Name {
			w.Demote()
		}
	}
	primary.Promote()

	return conn, nil
}

func (s *ReplicaSetReconnectStrategy) demoteAllWritable() {
	for _, w := range s.Cluster.Writable() {
		w.Demote()
	}
}

func (s *ReplicaSetReconnectStrategy) quorum() int {
	if s.Quorum <= 0 {
		return DefaultQuorum
	}
	return s.Quorum
}

func (s *ReplicaSetReconnectStrategy) timeout() time.Duration {
	if s.Timeout <= 0 {
		return DefaultReconnectTimeout
	}
	return s.Timeout
}

// pollPrimaryVotes asks every known member who it believes the primary is,
// in parallel, and collects the non-empty answers. A member that doesn't
// answer (connection failure, no opinion yet) simply casts no vote.
func (s *ReplicaSetReconnectStrategy) pollPrimaryVotes(ctx context.Context) []string {
	members := s.Cluster.Servers()
	votes := make([]string, 0, len(members))

	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, member := range members {
		member := member
		wg.Add(1)
		go func() {
			defer wg.Done()
			if primary := s.Asker.AskPrimary(ctx, member); primary != "" {
				mu.Lock()
				votes = append(votes, primary)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return votes
}

// sendIdentityCommand issues the ismaster-style identity command over conn
// and decodes the result, the same command identityProber sends to
// confirm a freshly reconnected server.
func sendIdentityCommand(ctx context.Context, conn *socket.Connection) (*model.IdentityReply, error) {
	cmd := wire.NewCommand("admin", true, map[string]interface{}{"ismaster": 1})

	type result struct {
		reply *wire.Reply
		err   error
	}
	done := make(chan result, 1)
	if err := conn.Send(ctx, cmd, func(reply *wire.Reply, err error) {
		done <- result{reply, err}
	}); err != nil {
		return nil, err
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

func decodeIdentityReply(reply *wire.Reply) (*model.IdentityReply, error) {
	if reply == nil || reply.QueryFailed() || len(reply.Documents) == 0 {
		return nil, errNoIdentityReply
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

func mostVotedPrimary(votes []string) (string, int) {
	counts := make(map[string]int, len(votes))
	for _, v := range votes {
		counts[v]++
	}
	var winner string
	var max int
	for name, n := range counts {
		if n > max {
			winner, max = name, n
		}
	}
	return winner, max
}
