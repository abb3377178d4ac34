// Copyright (C) MongoDB, Inc. 2026-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package socket

import (
	"context"
	"sync"
	"time"

	"github.com/youseeus/mongodb-async-driver/internal"
	"github.com/youseeus/mongodb-async-driver/wire"
)

// ReplyCallback is invoked once with the Reply to a Request, or with a
// non-nil error if the connection could not deliver one (the request was
// skipped over by a later reply, or the connection shut down with it still
// pending).
type ReplyCallback func(reply *wire.Reply, err error)

// pendingMessage is the record kept for a sent Request until its Reply
// (or its failure) arrives.
type pendingMessage struct {
	id       int32
	request  wire.Request
	callback ReplyCallback
	sentAt   time.Time
}

func (m *pendingMessage) timestampNow() {
	m.sentAt = time.Now()
}

// latency returns how long this message has been pending. Zero if it was
// never timestamped.
func (m *pendingMessage) latency() time.Duration {
	if m.sentAt.IsZero() {
		return 0
	}
	return time.Since(m.sentAt)
}

// pendingQueue is a bounded, blocking-put FIFO: a send blocks once the
// queue is full rather than growing without limit, and a reply is
// correlated by walking the queue in order and skipping (not by hash
// lookup) — a "FIFO-skip" rule that tolerates requests the server never
// answers without needing a request-ID index. A reply that arrives after a
// later request's reply has already been matched finds its entry gone and
// is discarded.
type pendingQueue struct {
	mu    sync.Mutex
	items []*pendingMessage
	sem   *internal.Semaphore
}

func newPendingQueue(capacity uint64) *pendingQueue {
	return &pendingQueue{sem: internal.NewSemaphore(capacity)}
}

// put blocks until there is room in the queue or ctx is done.
func (q *pendingQueue) put(ctx context.Context, m *pendingMessage) error {
	if err := q.sem.Wait(ctx); err != nil {
		return err
	}
	q.mu.Lock()
	q.items = append(q.items, m)
	q.mu.Unlock()
	return nil
}

// putReentrant enqueues m without waiting on the capacity semaphore, for a
// send issued from inside a reply callback on the reader goroutine. The
// reader is the only goroutine that ever drains the queue via poll, so a
// blocking put there — if the queue happens to be full — would deadlock
// the reader against itself waiting for room only it can free. Bypassing
// the bound here trades a temporary overshoot of queueCapacity for
// correctness.
func (q *pendingQueue) putReentrant(m *pendingMessage) {
	q.mu.Lock()
	q.items = append(q.items, m)
	q.mu.Unlock()
}

// poll removes and returns the oldest pending message, if any.
func (q *pendingQueue) poll() (*pendingMessage, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, false
	}
	m := q.items[0]
	q.items = q.items[1:]
	q.sem.Release()
	return m, true
}

func (q *pendingQueue) isEmpty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) == 0
}

func (q *pendingQueue) size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// drain empties the queue, returning everything that was pending. Used on
// shutdown to raise an error on every message that will now never get a
// reply.
func (q *pendingQueue) drain() []*pendingMessage {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items
	q.items = nil
	for range items {
		q.sem.Release()
	}
	return items
}
