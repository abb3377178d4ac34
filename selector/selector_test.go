// Copyright (C) MongoDB, Inc. 2026-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package selector_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/youseeus/mongodb-async-driver/model"
	"github.com/youseeus/mongodb-async-driver/selector"
)

func serverWithRTT(t *testing.T, name string, rtt time.Duration, set bool) *model.Server {
	s := &model.Server{Name: name}
	if set {
		s.UpdateFrom(&model.IdentityReply{OK: true}, rtt)
	}
	return s
}

func TestLatencyNoRTTSetPassesAllThrough(t *testing.T) {
	c := model.NewCluster()
	a := serverWithRTT(t, "a:27017", 0, false)
	b := serverWithRTT(t, "b:27017", 0, false)

	result, err := selector.Latency(20 * time.Second)(c, []*model.Server{a, b})

	require.NoError(t, err)
	require.Len(t, result, 2)
}

func TestLatencyFiltersOutsideWindow(t *testing.T) {
	c := model.NewCluster()
	fast := serverWithRTT(t, "fast:27017", 5*time.Second, true)
	mid := serverWithRTT(t, "mid:27017", 10*time.Second, true)
	slow := serverWithRTT(t, "slow:27017", 26*time.Second, true)

	result, err := selector.Latency(20 * time.Second)(c, []*model.Server{fast, mid, slow})

	require.NoError(t, err)
	require.ElementsMatch(t, []*model.Server{fast, mid}, result)
}

func TestByLatencyOrdersAscendingAndPushesUnsampledLast(t *testing.T) {
	c := model.NewCluster()
	slow := serverWithRTT(t, "slow:27017", 50*time.Millisecond, true)
	fast := serverWithRTT(t, "fast:27017", 5*time.Millisecond, true)
	unsampled := serverWithRTT(t, "unsampled:27017", 0, false)
	tiedA := serverWithRTT(t, "tiedA:27017", 10*time.Millisecond, true)
	tiedB := serverWithRTT(t, "tiedB:27017", 10*time.Millisecond, true)

	result, err := selector.ByLatency()(c, []*model.Server{slow, tiedA, fast, tiedB, unsampled})

	require.NoError(t, err)
	require.Equal(t, []*model.Server{fast, tiedA, tiedB, slow, unsampled}, result)
}

func TestReadPreferenceOrdersShardedByLatency(t *testing.T) {
	c := model.NewCluster()
	c.SetKind(model.Sharded)
	slow := serverWithRTT(t, "slow:27017", 50*time.Millisecond, true)
	fast := serverWithRTT(t, "fast:27017", 5*time.Millisecond, true)

	result, err := selector.ReadPreference(selector.Primary())(c, []*model.Server{slow, fast})

	require.NoError(t, err)
	require.Equal(t, []*model.Server{fast, slow}, result)
}

func TestWriteSelectorSingleClusterPassesThrough(t *testing.T) {
	c := model.NewCluster()
	c.SetKind(model.SingleCluster)
	s := serverWithRTT(t, "a:27017", 0, false)

	result, err := selector.Write()(c, []*model.Server{s})

	require.NoError(t, err)
	require.Equal(t, []*model.Server{s}, result)
}

func TestWriteSelectorReplicaSetFiltersToPrimary(t *testing.T) {
	c := model.NewCluster()
	c.SetKind(model.ReplicaSet)
	primary := c.Add("primary:27017")
	secondary := c.Add("secondary:27017")
	primary.UpdateFrom(&model.IdentityReply{OK: true, IsMaster: true}, 0)
	secondary.UpdateFrom(&model.IdentityReply{OK: true, Secondary: true}, 0)

	result, err := selector.Write()(c, c.Servers())

	require.NoError(t, err)
	require.Equal(t, []*model.Server{primary}, result)
}

func TestReadPreferencePrimaryPreferredFallsBackToSecondary(t *testing.T) {
	c := model.NewCluster()
	c.SetKind(model.ReplicaSet)
	secondary := c.Add("secondary:27017")
	secondary.UpdateFrom(&model.IdentityReply{OK: true, Secondary: true}, 0)

	result, err := selector.ReadPreference(&selector.ReadPref{Mode: selector.PrimaryPreferredMode})(c, c.Servers())

	require.NoError(t, err)
	require.Equal(t, []*model.Server{secondary}, result)
}

func TestReadPreferenceSecondaryMatchesTags(t *testing.T) {
	c := model.NewCluster()
	c.SetKind(model.ReplicaSet)
	east := c.Add("east:27017")
	west := c.Add("west:27017")
	east.UpdateFrom(&model.IdentityReply{OK: true, Secondary: true, Tags: map[string]string{"dc": "east"}}, 0)
	west.UpdateFrom(&model.IdentityReply{OK: true, Secondary: true, Tags: map[string]string{"dc": "west"}}, 0)

	rp := &selector.ReadPref{Mode: selector.SecondaryMode, TagSets: []model.TagSet{model.NewTagSetFromMap(map[string]string{"dc": "east"})}}
	result, err := selector.ReadPreference(rp)(c, c.Servers())

	require.NoError(t, err)
	require.Equal(t, []*model.Server{east}, result)
}
