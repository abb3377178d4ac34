// Copyright (C) MongoDB, Inc. 2026-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClusterAddIsIdempotent(t *testing.T) {
	c := NewCluster()

	s1 := c.Add("foo:27017")
	s2 := c.Add("FOO:27017")

	require.Same(t, s1, s2)
	require.Len(t, c.Servers(), 1)
}

func TestClusterAddCanonicalizesMissingPort(t *testing.T) {
	c := NewCluster()

	s := c.Add("foo")

	require.Equal(t, "foo:27017", s.Name)
}

func TestClusterWritable(t *testing.T) {
	c := NewCluster()
	primary := c.Add("primary:27017")
	secondary := c.Add("secondary:27017")

	primary.UpdateFrom(&IdentityReply{OK: true, IsMaster: true}, 0)
	secondary.UpdateFrom(&IdentityReply{OK: true, Secondary: true}, 0)

	require.Equal(t, []*Server{primary}, c.Writable())
}

func TestClusterRemove(t *testing.T) {
	c := NewCluster()
	c.Add("foo:27017")
	c.Add("bar:27017")

	c.Remove("foo:27017")

	require.Len(t, c.Servers(), 1)
	_, ok := c.Lookup("foo:27017")
	require.False(t, ok)
}
