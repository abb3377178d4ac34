// Copyright (C) MongoDB, Inc. 2026-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package socket_test

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/youseeus/mongodb-async-driver/model"
	"github.com/youseeus/mongodb-async-driver/socket"
	"github.com/youseeus/mongodb-async-driver/wire"
)

// fakeServer decodes requests off one end of a net.Pipe and lets a test
// script reply to them in whatever order it likes, so tests can exercise
// FIFO-skip correlation deterministically.
type fakeServer struct {
	conn  net.Conn
	codec wire.Codec

	mu  sync.Mutex
	seen []int32
}

func newFakeServer(conn net.Conn) *fakeServer {
	return &fakeServer{conn: conn, codec: wire.NewCodec()}
}

func (f *fakeServer) nextRequestID(t *testing.T) int32 {
	t.Helper()
	msg, err := f.codec.Decode(f.conn)
	require.NoError(t, err)
	req, ok := msg.(wire.Request)
	require.True(t, ok)
	f.mu.Lock()
	f.seen = append(f.seen, req.RequestID())
	f.mu.Unlock()
	return req.RequestID()
}

func (f *fakeServer) replyTo(t *testing.T, requestID int32) {
	t.Helper()
	require.NoError(t, f.codec.Encode(f.conn, wire.NewReply(requestID)))
}

func TestSendReceivesMatchingReply(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer serverConn.Close()
	srv := newFakeServer(serverConn)

	server := &model.Server{Name: "fake:27017"}
	conn, err := socket.Open(context.Background(), server, func(context.Context) (net.Conn, error) {
		return clientConn, nil
	})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		id := srv.nextRequestID(t)
		srv.replyTo(t, id)
		close(done)
	}()

	replyCh := make(chan error, 1)
	q := wire.NewCommand("admin", false, map[string]interface{}{"ping": 1})
	require.NoError(t, conn.Send(context.Background(), q, func(reply *wire.Reply, err error) {
		replyCh <- err
	}))

	select {
	case err := <-replyCh:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reply callback")
	}
	<-done
}

func TestShutdownForceFailsPendingSends(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer serverConn.Close()

	server := &model.Server{Name: "fake:27017"}
	conn, err := socket.Open(context.Background(), server, func(context.Context) (net.Conn, error) {
		return clientConn, nil
	})
	require.NoError(t, err)

	// net.Pipe has no buffering: the request must be read off the server
	// end for Send's flush to complete. It is never answered.
	srv := newFakeServer(serverConn)
	go srv.nextRequestID(t)

	replyCh := make(chan error, 1)
	q := wire.NewCommand("admin", false, map[string]interface{}{"ping": 1})
	require.NoError(t, conn.Send(context.Background(), q, func(reply *wire.Reply, err error) {
		replyCh <- err
	}))

	conn.Shutdown(context.Background(), true)

	select {
	case err := <-replyCh:
		require.ErrorIs(t, err, socket.ErrConnectionLost)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for shutdown to fail pending send")
	}
	require.Equal(t, socket.StateClosed, conn.State())
}

func TestSkippedSendReceivesNoReplyBeforeItsMatchingReplyArrives(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer serverConn.Close()
	srv := newFakeServer(serverConn)

	server := &model.Server{Name: "fake:27017"}
	conn, err := socket.Open(context.Background(), server, func(context.Context) (net.Conn, error) {
		return clientConn, nil
	})
	require.NoError(t, err)

	// The server side reads before the sends start: net.Pipe has no
	// buffering, so each Send's flush waits for the read.
	done := make(chan struct{})
	go func() {
		srv.nextRequestID(t) // the fire-and-forget send, left unanswered
		id8 := srv.nextRequestID(t)
		id9 := srv.nextRequestID(t)
		srv.replyTo(t, id8)
		srv.replyTo(t, id9)
		close(done)
	}()

	fireAndForgetCh := make(chan error, 1)
	fireAndForget := &wire.Insert{FullCollectionName: "db.coll", Documents: []interface{}{map[string]interface{}{"x": 1}}}
	require.NoError(t, conn.Send(context.Background(), fireAndForget, func(reply *wire.Reply, err error) {
		fireAndForgetCh <- err
	}))

	q8Ch := make(chan error, 1)
	q8 := wire.NewCommand("admin", false, map[string]interface{}{"q": 8})
	require.NoError(t, conn.Send(context.Background(), q8, func(reply *wire.Reply, err error) {
		q8Ch <- err
	}))

	q9Ch := make(chan error, 1)
	q9 := wire.NewCommand("admin", false, map[string]interface{}{"q": 9})
	require.NoError(t, conn.Send(context.Background(), q9, func(reply *wire.Reply, err error) {
		q9Ch <- err
	}))

	select {
	case err := <-fireAndForgetCh:
		require.ErrorIs(t, err, socket.ErrNoReply)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for fire-and-forget callback")
	}
	select {
	case err := <-q8Ch:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for q8 callback")
	}
	select {
	case err := <-q9Ch:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for q9 callback")
	}
	<-done
}
