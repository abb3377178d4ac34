// Copyright (C) MongoDB, Inc. 2026-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package model

import "sync"

// Cluster is the set of Servers a client has discovered, keyed by
// canonical name. A Server, once created, is never replaced — Add is
// idempotent on name.
type Cluster struct {
	mu      sync.RWMutex
	servers map[string]*Server
	order   []string // insertion order, for selector tie-breaking
	kind    ClusterKind
}

// NewCluster creates an empty Cluster.
func NewCluster() *Cluster {
	return &Cluster{servers: make(map[string]*Server)}
}

// Add canonicalizes name and returns its Server, creating one in the
// Unknown role if this is the first time the name has been seen.
func (c *Cluster) Add(name string) *Server {
	canonical := CanonicalName(name)

	c.mu.RLock()
	if s, ok := c.servers[canonical]; ok {
		c.mu.RUnlock()
		return s
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.servers[canonical]; ok {
		return s
	}
	s := NewServer(canonical)
	c.servers[canonical] = s
	c.order = append(c.order, canonical)
	return s
}

// Remove drops a server from the cluster. No factory or ClusterPinger in
// this module calls it: a server marked unreachable stays in the cluster
// until a caller removes it.
func (c *Cluster) Remove(name string) {
	canonical := CanonicalName(name)
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.servers[canonical]; !ok {
		return
	}
	delete(c.servers, canonical)
	for i, n := range c.order {
		if n == canonical {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// Lookup returns the Server for name if it exists.
func (c *Cluster) Lookup(name string) (*Server, bool) {
	canonical := CanonicalName(name)
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.servers[canonical]
	return s, ok
}

// Servers returns a stable-ordered snapshot of every known Server.
func (c *Cluster) Servers() []*Server {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Server, 0, len(c.order))
	for _, n := range c.order {
		out = append(out, c.servers[n])
	}
	return out
}

// Writable returns every Server currently in the writable role.
func (c *Cluster) Writable() []*Server {
	return c.Matching(func(s *Server) bool { return s.Role() == RoleWritable })
}

// Matching returns every Server for which pred returns true, in insertion
// order. Enumerations see a consistent snapshot of the server set but may
// race with concurrent role/latency updates on individual servers —
// selectors are expected to tolerate that staleness.
func (c *Cluster) Matching(pred func(*Server) bool) []*Server {
	var out []*Server
	for _, s := range c.Servers() {
		if pred(s) {
			out = append(out, s)
		}
	}
	return out
}

// Kind returns the cluster's topology classification.
func (c *Cluster) Kind() ClusterKind {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.kind
}

// SetKind sets the cluster's topology classification. Called by the
// BootstrapConnectionFactory after it classifies the deployment, and by the
// replica-set and sharded factory constructors.
func (c *Cluster) SetKind(k ClusterKind) {
	c.mu.Lock()
	c.kind = k
	c.mu.Unlock()
}

// VersionRange returns the minimum and maximum Version reported across
// every known Server, for aggregate compatibility checks.
func (c *Cluster) VersionRange() (min, max Version) {
	servers := c.Servers()
	for i, s := range servers {
		v := s.Version()
		if i == 0 {
			min, max = v, v
			continue
		}
		if versionLess(v, min) {
			min = v
		}
		if versionLess(max, v) {
			max = v
		}
	}
	return min, max
}

func versionLess(a, b Version) bool {
	for i := 0; i < len(a.Parts) && i < len(b.Parts); i++ {
		if a.Parts[i] != b.Parts[i] {
			return a.Parts[i] < b.Parts[i]
		}
	}
	return len(a.Parts) < len(b.Parts)
}
