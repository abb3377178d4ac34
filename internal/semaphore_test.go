// Copyright (C) MongoDB, Inc. 2026-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package internal_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	. "github.com/youseeus/mongodb-async-driver/internal"
)

func TestSemaphoreWait(t *testing.T) {
	s := NewSemaphore(3)
	require.NoError(t, s.Wait(context.Background()))
	require.NoError(t, s.Wait(context.Background()))
	require.NoError(t, s.Wait(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- s.Wait(ctx) }()

	select {
	case err := <-errCh:
		t.Fatalf("Wait returned before a permit was freed or ctx canceled: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	cancel()
	require.ErrorIs(t, <-errCh, context.Canceled)
}

func TestSemaphoreRelease(t *testing.T) {
	s := NewSemaphore(1)
	require.NoError(t, s.Wait(context.Background()))

	errCh := make(chan error, 1)
	go func() { errCh <- s.Wait(context.Background()) }()

	select {
	case err := <-errCh:
		t.Fatalf("Wait returned before Release: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	s.Release()
	require.NoError(t, <-errCh)
}
