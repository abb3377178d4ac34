// Copyright (C) MongoDB, Inc. 2026-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package internal

import "context"

// NewSemaphore creates a semaphore with the given number of permits.
func NewSemaphore(max uint64) *Semaphore {
	return &Semaphore{permits: make(chan struct{}, max)}
}

// Semaphore is a counting semaphore bounded by a fixed number of permits.
type Semaphore struct {
	permits chan struct{}
}

// Wait blocks until a permit is available or ctx is done.
func (s *Semaphore) Wait(ctx context.Context) error {
	select {
	case s.permits <- struct{}{}:
		return nil
	default:
	}

	select {
	case s.permits <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release returns a permit to the semaphore.
func (s *Semaphore) Release() {
	select {
	case <-s.permits:
	default:
	}
}
