// Copyright (C) MongoDB, Inc. 2026-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package selector implements the ServerSelector: a function that narrows
// a Cluster's Servers down to the ones eligible to carry an operation.
// Selectors compose, so individual filters (role, latency window, tag
// match) can be layered into one.
package selector

import (
	"math"
	"sort"
	"time"

	"github.com/youseeus/mongodb-async-driver/model"
)

// ServerSelector narrows candidates down to the servers eligible for an
// operation. Implementations must not mutate candidates or the Cluster.
type ServerSelector func(c *model.Cluster, candidates []*model.Server) ([]*model.Server, error)

// Composite runs selectors in order, feeding each one's output into the
// next.
func Composite(selectors ...ServerSelector) ServerSelector {
	return func(c *model.Cluster, candidates []*model.Server) ([]*model.Server, error) {
		var err error
		for _, sel := range selectors {
			candidates, err = sel(c, candidates)
			if err != nil {
				return nil, err
			}
		}
		return candidates, nil
	}
}

// Latency selects the servers whose average RTT falls within window of the
// fastest candidate's average RTT. Servers with no RTT sample yet are
// dropped once any candidate does have one; if none do, all candidates
// pass through unfiltered so a freshly-discovered cluster isn't starved.
func Latency(window time.Duration) ServerSelector {
	return func(c *model.Cluster, candidates []*model.Server) ([]*model.Server, error) {
		if window < 0 || len(candidates) < 2 {
			return candidates, nil
		}

		min := time.Duration(math.MaxInt64)
		for _, s := range candidates {
			if rtt := s.AverageRTT(); rtt >= 0 && rtt < min {
				min = rtt
			}
		}
		if min == math.MaxInt64 {
			return candidates, nil
		}

		max := min + window
		var result []*model.Server
		for _, s := range candidates {
			if rtt := s.AverageRTT(); rtt >= 0 && rtt <= max {
				result = append(result, s)
			}
		}
		return result, nil
	}
}

// ByLatency orders candidates by ascending average RTT, stable on ties so
// insertion order breaks them, the way ReadPreference's sharded branch
// picks the nearest router and SimpleReconnectStrategy tries router
// candidates fastest-first. A server with no RTT sample yet sorts after
// every server that has one, since an unmeasured server can't be
// preferred over a measured one; among several unmeasured servers,
// insertion order applies just like any other tie.
func ByLatency() ServerSelector {
	return func(c *model.Cluster, candidates []*model.Server) ([]*model.Server, error) {
		sorted := make([]*model.Server, len(candidates))
		copy(sorted, candidates)
		sort.SliceStable(sorted, func(i, j int) bool {
			ri, rj := sorted[i].AverageRTT(), sorted[j].AverageRTT()
			if ri < 0 || rj < 0 {
				return ri >= 0
			}
			return ri < rj
		})
		return sorted, nil
	}
}

// Write selects the servers that can accept writes: every server in a
// single-server cluster, or the writable members of a replica set/sharded
// cluster.
func Write() ServerSelector {
	return func(c *model.Cluster, candidates []*model.Server) ([]*model.Server, error) {
		if c.Kind() == model.SingleCluster {
			return candidates, nil
		}

		var result []*model.Server
		for _, s := range candidates {
			if s.Role() == model.RoleWritable {
				result = append(result, s)
			}
		}
		return result, nil
	}
}
