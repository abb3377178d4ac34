// Copyright (C) MongoDB, Inc. 2026-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package client

import (
	"context"
	"sync"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/youseeus/mongodb-async-driver/factory"
	"github.com/youseeus/mongodb-async-driver/internal"
	"github.com/youseeus/mongodb-async-driver/model"
	"github.com/youseeus/mongodb-async-driver/reconnect"
	"github.com/youseeus/mongodb-async-driver/selector"
	"github.com/youseeus/mongodb-async-driver/socket"
	"github.com/youseeus/mongodb-async-driver/wire"
)

// Client is the top-level entry point: pick a server via the configured
// read preference, reuse or open a connection to it, and send a message
// (or a linked pair) through it. Higher layers (a collection/database/
// cursor API, out of scope here) are the only intended callers.
type Client struct {
	cluster    *model.Cluster
	factory    factory.Factory
	reconnect  reconnect.Strategy
	selector   selector.ServerSelector
	readPref   *selector.ReadPref
	durability Durability

	mu    sync.Mutex
	conns map[string]*socket.Connection
}

// New builds a Client bound to cluster, opening connections through f
// and recovering from connection loss via strategy.
func New(cluster *model.Cluster, f factory.Factory, strategy reconnect.Strategy, opts ...Option) *Client {
	c := &Client{
		cluster:    cluster,
		factory:    f,
		reconnect:  strategy,
		readPref:   selector.Primary(),
		durability: Acknowledged(),
		conns:      make(map[string]*socket.Connection),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.selector == nil {
		c.selector = selector.ReadPreference(c.readPref)
	}
	return c
}

// DefaultDurability returns the write concern new writes use unless
// overridden.
func (c *Client) DefaultDurability() Durability { return c.durability }

// DefaultReadPreference returns the read preference server selection
// uses unless overridden.
func (c *Client) DefaultReadPreference() *selector.ReadPref { return c.readPref }

// ClusterType returns the topology classification the bootstrap factory
// assigned to this Client's Cluster.
func (c *Client) ClusterType() model.ClusterKind { return c.cluster.Kind() }

// Send picks a server via the configured read preference, acquires a
// connection to it, and sends req, invoking cb with the reply. It
// returns the name of the server the message was sent to.
func (c *Client) Send(ctx context.Context, req wire.Request, cb socket.ReplyCallback) (string, error) {
	server, err := c.selectServer()
	if err != nil {
		return "", err
	}

	if err := c.checkMessage(req, server); err != nil {
		return "", err
	}

	conn, err := c.connectionFor(ctx, server)
	if err != nil {
		return "", err
	}

	if err := conn.Send(ctx, req, c.wrapCallback(cb)); err != nil {
		return "", err
	}
	return server.Name, nil
}

// SendPair sends first without waiting on a reply (e.g. an insert that
// doesn't request one) immediately followed by second on the same
// connection, invoking cb only with second's reply — the linked-message
// shape needed for patterns like insert+getLastError.
func (c *Client) SendPair(ctx context.Context, first, second wire.Request, cb socket.ReplyCallback) (string, error) {
	server, err := c.selectServer()
	if err != nil {
		return "", err
	}
	if err := c.checkMessage(first, server); err != nil {
		return "", err
	}
	if err := c.checkMessage(second, server); err != nil {
		return "", err
	}

	conn, err := c.connectionFor(ctx, server)
	if err != nil {
		return "", err
	}

	if first.ExpectsReply() {
		if err := conn.Send(ctx, first, func(*wire.Reply, error) {}); err != nil {
			return "", err
		}
	} else if err := conn.Send(ctx, first, nil); err != nil {
		return "", err
	}

	if err := conn.Send(ctx, second, c.wrapCallback(cb)); err != nil {
		return "", err
	}
	return server.Name, nil
}

// Close shuts down every connection this Client has opened.
func (c *Client) Close() error {
	c.mu.Lock()
	conns := c.conns
	c.conns = make(map[string]*socket.Connection)
	c.mu.Unlock()

	for _, conn := range conns {
		conn.Shutdown(context.Background(), false)
	}
	return nil
}

func (c *Client) selectServer() (*model.Server, error) {
	candidates, err := c.selector(c.cluster, c.cluster.Servers())
	if err != nil {
		return nil, internal.WrapError(err, "server selection failed")
	}
	if len(candidates) == 0 {
		return nil, reconnect.ErrNoServerAvailable
	}
	return candidates[0], nil
}

// connectionFor returns a cached, available connection to server,
// opening (or reopening via the reconnect strategy) one if necessary.
func (c *Client) connectionFor(ctx context.Context, server *model.Server) (*socket.Connection, error) {
	c.mu.Lock()
	conn, ok := c.conns[server.Name]
	c.mu.Unlock()
	if ok && conn.IsAvailable() {
		return conn, nil
	}

	var err error
	if ok {
		conn, err = c.reconnect.Reconnect(ctx, server)
	} else {
		conn, err = c.factory.Connect(ctx, server)
	}
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.conns[server.Name] = conn
	c.mu.Unlock()
	return conn, nil
}

// checkMessage runs synchronous, pre-send validations: a document too
// large for the target server, or a message that requires a wire-version
// range the server is outside of.
func (c *Client) checkMessage(req wire.Request, server *model.Server) error {
	if va, ok := req.(VersionAware); ok {
		required := va.RequiredWireVersion()
		actual := server.WireVersion()
		if !actual.Includes(required.Min) || !actual.Includes(required.Max) {
			return &ServerVersionMismatchError{Required: required, Actual: actual}
		}
	}

	if server.MaxDocumentSize() == 0 {
		return nil
	}
	for _, doc := range documentsOf(req) {
		raw, err := bson.Marshal(doc)
		if err == nil && uint32(len(raw)) > server.MaxDocumentSize() {
			return ErrDocumentTooLarge
		}
	}
	return nil
}

// documentsOf returns the BSON document bodies req would put on the wire,
// the ones checkMessage must size-check against the server's
// maxBsonObjectSize before sending.
func documentsOf(req wire.Request) []interface{} {
	switch r := req.(type) {
	case *wire.Query:
		return []interface{}{r.Query}
	case *wire.Insert:
		return r.Documents
	case *wire.Update:
		return []interface{}{r.Selector, r.Update}
	case *wire.Delete:
		return []interface{}{r.Selector}
	default:
		return nil
	}
}

// wrapCallback translates a reply carrying query_failed or ok:0 into a
// ReplyError before handing it to cb.
func (c *Client) wrapCallback(cb socket.ReplyCallback) socket.ReplyCallback {
	if cb == nil {
		return nil
	}
	return func(reply *wire.Reply, err error) {
		if err != nil {
			cb(reply, err)
			return
		}
		if replyErr := checkReply(reply); replyErr != nil {
			cb(reply, replyErr)
			return
		}
		cb(reply, nil)
	}
}

func checkReply(reply *wire.Reply) error {
	if reply == nil {
		return nil
	}
	if reply.IsCursorNotFound() {
		return &ReplyError{Kind: CursorNotFound, Message: "cursor not found"}
	}
	if reply.Flags&wire.ShardConfigStale != 0 {
		return &ReplyError{Kind: ShardConfigStale, Message: "shard config stale"}
	}
	if reply.QueryFailed() {
		return &ReplyError{Kind: ReplyErrorGeneric, Message: "query failed"}
	}
	if len(reply.Documents) == 0 {
		return nil
	}
	doc, ok := reply.Documents[0].(bson.M)
	if !ok || isOK(doc) {
		return nil
	}
	return classifyCommandError(doc)
}
