// Copyright (C) MongoDB, Inc. 2026-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package socket implements a pipelined, callback-driven connection to
// one server. A single reader goroutine decodes replies off the socket
// and correlates them to pending sends FIFO-skip style; sends may come
// from any goroutine, including reentrantly from inside a reply callback.
// Uses functional-options and channel idioms throughout rather than a
// thread-per-connection model.
package socket

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/youseeus/mongodb-async-driver/model"
	"github.com/youseeus/mongodb-async-driver/wire"
)

// State is a Connection's position in its Opening/Open/ShuttingDown/Closed
// lifecycle.
type State int32

// State constants.
const (
	StateOpening State = iota
	StateOpen
	StateShuttingDown
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateOpening:
		return "opening"
	case StateOpen:
		return "open"
	case StateShuttingDown:
		return "shutting-down"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// DefaultMaxIdleTicks is the number of consecutive read timeouts a
// Connection tolerates before it closes itself. That close does not wait
// for outstanding replies: any still-pending send is failed with
// ErrConnectionLost.
const DefaultMaxIdleTicks = 10

// DefaultReadTimeout bounds each read so the reader goroutine can notice
// idle ticks and a shutdown request without blocking forever.
const DefaultReadTimeout = 10 * time.Second

// DefaultQueueCapacity bounds how many sends with an outstanding reply can
// be in flight on one connection before Send blocks.
const DefaultQueueCapacity = 1024

// ErrClosed is returned by Send once the connection has shut down.
var ErrClosed = errors.New("socket: connection closed")

// ErrNoReply is delivered to a pending callback that gets skipped over,
// in FIFO order, by a reply meant for a later send.
var ErrNoReply = errors.New("socket: no reply received")

// ErrConnectionLost is delivered to every still-pending callback once the
// connection's socket fails or goes idle past its tolerance, distinct from
// ErrClosed (returned by Send itself once the connection is no longer
// open) and from ErrNoReply (a single skipped-over send, not a dead
// connection).
var ErrConnectionLost = errors.New("socket: connection lost")

type config struct {
	maxIdleTicks  int
	readTimeout   time.Duration
	queueCapacity uint64
	logger        *logrus.Entry
}

func newConfig(opts ...Option) *config {
	cfg := &config{
		maxIdleTicks:  DefaultMaxIdleTicks,
		readTimeout:   DefaultReadTimeout,
		queueCapacity: DefaultQueueCapacity,
		logger:        logrus.WithField("component", "socket"),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Option configures a Connection.
type Option func(*config)

// WithMaxIdleTicks overrides DefaultMaxIdleTicks.
func WithMaxIdleTicks(n int) Option { return func(cfg *config) { cfg.maxIdleTicks = n } }

// WithReadTimeout overrides DefaultReadTimeout.
func WithReadTimeout(d time.Duration) Option { return func(cfg *config) { cfg.readTimeout = d } }

// WithQueueCapacity overrides DefaultQueueCapacity.
func WithQueueCapacity(n uint64) Option { return func(cfg *config) { cfg.queueCapacity = n } }

// WithLogger overrides the connection's logger.
func WithLogger(log *logrus.Entry) Option { return func(cfg *config) { cfg.logger = log } }

// Connection is a single pipelined connection to one Server.
type Connection struct {
	cfg    *config
	server *model.Server
	conn   net.Conn
	codec  wire.Codec

	writeMu     sync.Mutex
	writer      *bufio.Writer
	dispatching bool
	needsFlush  int

	pending *pendingQueue
	nextID  int32

	state     int32
	idleTicks int

	closeOnce sync.Once
	doneCh    chan struct{}
}

// Open dials a connection to server using dial, then starts its reader
// goroutine. The caller owns picking the dial strategy (plain TCP, TLS,
// authenticating wrapper) — Open itself only frames messages.
func Open(ctx context.Context, server *model.Server, dial func(context.Context) (net.Conn, error), opts ...Option) (*Connection, error) {
	cfg := newConfig(opts...)

	nc, err := dial(ctx)
	if err != nil {
		server.IncConnectionFailures()
		return nil, fmt.Errorf("socket: dial %s: %w", server.Name, err)
	}

	c := &Connection{
		cfg:     cfg,
		server:  server,
		conn:    nc,
		codec:   wire.NewCodec(),
		writer:  bufio.NewWriter(nc),
		pending: newPendingQueue(cfg.queueCapacity),
		doneCh:  make(chan struct{}),
	}
	atomic.StoreInt32(&c.state, int32(StateOpen))
	server.IncConnectionsOpened()

	go c.readLoop()

	return c, nil
}

// State returns the connection's current lifecycle state.
func (c *Connection) State() State { return State(atomic.LoadInt32(&c.state)) }

// IsAvailable reports whether the connection can currently accept sends.
func (c *Connection) IsAvailable() bool { return c.State() == StateOpen }

// IsIdle reports whether the connection has no sends awaiting a reply.
func (c *Connection) IsIdle() bool { return c.pending.isEmpty() }

// PendingCount returns the number of sends currently awaiting a reply.
func (c *Connection) PendingCount() int { return c.pending.size() }

// Send frames req, assigns it a request id from this connection's
// per-connection counter, and writes it to the socket. If cb is non-nil,
// it is invoked exactly once: with the Reply, or with a non-nil error if
// the connection shuts down (or skips past it) before one arrives — this
// applies even to a fire-and-forget request (one whose ExpectsReply is
// false), since a caller that supplied a callback still wants to know if
// it never got a reply to correlate a later one against. A send with no
// callback at all isn't queued, since there's nothing to notify. The
// pending entry is queued before the bytes are written, so the reader
// goroutine can rely on "queue empty" meaning "no reply is outstanding".
func (c *Connection) Send(ctx context.Context, req wire.Request, cb ReplyCallback) error {
	if c.State() != StateOpen && c.State() != StateShuttingDown {
		return ErrClosed
	}

	id := atomic.AddInt32(&c.nextID, 1)
	req.SetRequestID(id)

	if cb != nil {
		pm := &pendingMessage{id: id, request: req, callback: cb}
		pm.timestampNow()
		if c.isDispatching() {
			c.pending.putReentrant(pm)
		} else if err := c.pending.put(ctx, pm); err != nil {
			return err
		}
	}

	if err := c.writeMessage(req); err != nil {
		return fmt.Errorf("socket: send to %s: %w", c.server.Name, err)
	}
	c.server.IncMessagesSent()

	if c.State() == StateShuttingDown {
		c.flushNow()
	}
	return nil
}

// writeMessage encodes req and flushes it, unless the calling goroutine is
// the reader dispatching a reply callback — in that case flushing here
// would be a reentrant write interleaved with the reader's own bookkeeping,
// so the write is buffered and the flush deferred to when dispatch
// finishes. This mirrors markReaderNeedsToFlush/doReceiverFlush.
func (c *Connection) writeMessage(req wire.Request) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.codec.Encode(c.writer, req); err != nil {
		return err
	}
	if c.dispatching {
		c.needsFlush++
		return nil
	}
	return c.writer.Flush()
}

// isDispatching reports whether the calling goroutine is the reader,
// currently inside a reply callback — the same flag writeMessage checks to
// decide whether to defer its flush.
func (c *Connection) isDispatching() bool {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.dispatching
}

func (c *Connection) flushNow() {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.writer.Flush()
}

func (c *Connection) readLoop() {
	defer c.closeSocket()

	for {
		if c.State() == StateClosed {
			return
		}

		_ = c.conn.SetReadDeadline(time.Now().Add(c.cfg.readTimeout))
		msg, err := c.codec.Decode(c.conn)
		if err != nil {
			if isTimeout(err) {
				if c.onIdleTick() {
					return
				}
				continue
			}
			c.shutdown(fmt.Errorf("socket: read from %s: %w", c.server.Name, err), true)
			return
		}
		c.idleTicks = 0

		reply, ok := msg.(*wire.Reply)
		if !ok {
			c.shutdown(fmt.Errorf("socket: received non-reply message %T from %s", msg, c.server.Name), true)
			return
		}
		c.dispatchReply(reply)
		if c.State() == StateShuttingDown && c.pending.isEmpty() {
			c.shutdown(nil, false)
			return
		}
	}
}

// onIdleTick records a read timeout and reports whether it crossed the
// threshold at which the connection closes (see DefaultMaxIdleTicks).
func (c *Connection) onIdleTick() bool {
	c.idleTicks++
	if c.idleTicks >= c.cfg.maxIdleTicks {
		c.shutdown(nil, false)
		return true
	}
	return false
}

// dispatchReply walks the pending queue in order, delivering ErrNoReply to
// every entry it skips past before the one the reply is actually for.
func (c *Connection) dispatchReply(reply *wire.Reply) {
	for {
		pm, ok := c.pending.poll()
		if !ok {
			c.cfg.logger.WithField("responseTo", reply.ResponseTo()).Warn("could not find callback for reply")
			break
		}
		if pm.id != reply.ResponseTo() {
			c.runCallback(pm, nil, ErrNoReply)
			continue
		}
		c.server.IncRepliesReceived()
		c.server.RecordRTT(pm.latency())
		c.runCallback(pm, reply, nil)
		break
	}
	c.flushIfNeeded()
}

func (c *Connection) runCallback(pm *pendingMessage, reply *wire.Reply, err error) {
	c.writeMu.Lock()
	c.dispatching = true
	c.writeMu.Unlock()

	if pm.callback != nil {
		pm.callback(reply, err)
	}

	c.writeMu.Lock()
	c.dispatching = false
	c.writeMu.Unlock()
}

func (c *Connection) flushIfNeeded() {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.needsFlush > 0 {
		c.needsFlush = 0
		_ = c.writer.Flush()
	}
}

// Shutdown begins closing the connection. A force shutdown closes the
// socket immediately, raising ErrConnectionLost on every pending send. A
// graceful shutdown marks the connection as shutting down and lets the
// reader notice naturally — through a reply, or through idle ticks —
// rather than abandoning in-flight requests.
func (c *Connection) Shutdown(ctx context.Context, force bool) {
	if force {
		c.shutdown(ErrConnectionLost, false)
		return
	}

	if !atomic.CompareAndSwapInt32(&c.state, int32(StateOpen), int32(StateShuttingDown)) {
		return
	}
	// Wake the reader in case it's blocked on a read timeout waiting for
	// traffic that will never come otherwise.
	_ = c.Send(ctx, wire.NewCommand("admin", true, map[string]interface{}{"ping": 1}), func(*wire.Reply, error) {})
}

func (c *Connection) shutdown(err error, receiveError bool) {
	transitioned := atomic.CompareAndSwapInt32(&c.state, int32(StateOpen), int32(StateClosed))
	if !transitioned {
		transitioned = atomic.CompareAndSwapInt32(&c.state, int32(StateShuttingDown), int32(StateClosed))
	}
	if !transitioned {
		return
	}

	raiseErr := err
	if raiseErr == nil {
		raiseErr = ErrConnectionLost
	} else if !errors.Is(raiseErr, ErrConnectionLost) {
		raiseErr = fmt.Errorf("%w: %w", ErrConnectionLost, err)
	}
	for _, pm := range c.pending.drain() {
		if pm.callback != nil {
			pm.callback(nil, raiseErr)
		}
	}

	if receiveError {
		c.server.MarkFailed(err)
	}

	c.closeSocket()
}

func (c *Connection) closeSocket() {
	c.closeOnce.Do(func() {
		_ = c.conn.Close()
		close(c.doneCh)
	})
}

// Done returns a channel closed once the connection's socket has closed.
func (c *Connection) Done() <-chan struct{} { return c.doneCh }

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
