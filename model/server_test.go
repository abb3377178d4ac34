// Copyright (C) MongoDB, Inc. 2026-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestServerUpdateFromPromotesOnPositiveIdentity(t *testing.T) {
	s := &Server{Name: "foo:27017"}

	s.UpdateFrom(&IdentityReply{OK: true, IsMaster: true, MaxBSONObjectSize: 16777216}, 5*time.Millisecond)

	require.Equal(t, RoleWritable, s.Role())
	require.Equal(t, uint32(16777216), s.MaxDocumentSize())
}

func TestServerUpdateFromDemotesImmediatelyOnContradiction(t *testing.T) {
	s := &Server{Name: "foo:27017"}
	s.UpdateFrom(&IdentityReply{OK: true, IsMaster: true}, 0)
	require.Equal(t, RoleWritable, s.Role())

	s.UpdateFrom(&IdentityReply{OK: true, Secondary: true}, 0)

	require.Equal(t, RoleNonWritable, s.Role())
}

func TestServerUpdateFromPromotesByPrimaryField(t *testing.T) {
	s := &Server{Name: "foo:27017"}

	s.UpdateFrom(&IdentityReply{OK: true, Primary: "foo:27017"}, 0)

	require.Equal(t, RoleWritable, s.Role())
}

func TestServerAverageRTTIsEWMA(t *testing.T) {
	s := &Server{Name: "foo:27017"}

	s.UpdateFrom(&IdentityReply{OK: true}, 100*time.Millisecond)
	require.Equal(t, 100*time.Millisecond, s.AverageRTT())

	s.UpdateFrom(&IdentityReply{OK: true}, 0)
	want := time.Duration(latencyAlpha*float64(0) + (1-latencyAlpha)*float64(100*time.Millisecond))
	require.Equal(t, want, s.AverageRTT())
}

func TestServerMarkFailedDemotesAndCounts(t *testing.T) {
	s := &Server{Name: "foo:27017"}
	s.UpdateFrom(&IdentityReply{OK: true, IsMaster: true}, 0)

	n := s.MarkFailed(require.AnError)

	require.Equal(t, 1, n)
	require.Equal(t, RoleUnknown, s.Role())
	require.ErrorIs(t, s.LastError(), require.AnError)
}

func TestCanonicalName(t *testing.T) {
	require.Equal(t, "foo:27017", CanonicalName("FOO"))
	require.Equal(t, "foo:27018", CanonicalName("foo:27018"))
}
