// Copyright (C) MongoDB, Inc. 2026-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package wire

// QueryFlags are the bit flags carried in a Query's body.
type QueryFlags int32

// QueryFlags constants.
const (
	TailableCursor  QueryFlags = 1 << 1
	SlaveOK         QueryFlags = 1 << 2
	NoCursorTimeout QueryFlags = 1 << 4
	AwaitData       QueryFlags = 1 << 5
	Exhaust         QueryFlags = 1 << 6
)

// Query is a client-originated QUERY message, used both for real queries
// and for commands (a command is a query against "$cmd" with
// NumberToReturn == -1).
type Query struct {
	reqID                int32
	FullCollectionName   string
	Flags                QueryFlags
	NumberToSkip         int32
	NumberToReturn       int32
	Query                interface{}
	ReturnFieldsSelector interface{}
	noReply              bool
}

// NewCommand builds a Query that runs cmd as a command against db.
func NewCommand(db string, slaveOK bool, cmd interface{}) *Query {
	flags := QueryFlags(0)
	if slaveOK {
		flags |= SlaveOK
	}
	return &Query{
		FullCollectionName: db + ".$cmd",
		Flags:              flags,
		NumberToReturn:     -1,
		Query:              cmd,
	}
}

func (q *Query) RequestID() int32      { return q.reqID }
func (q *Query) SetRequestID(id int32) { q.reqID = id }
func (q *Query) ExpectsReply() bool    { return !q.noReply }

// Update is a client-originated UPDATE message. It never expects a reply;
// callers that need write acknowledgement pair it with a getLastError
// Query via Client.SendPair's linked-message form.
type Update struct {
	reqID              int32
	FullCollectionName string
	Flags              int32
	Selector           interface{}
	Update             interface{}
}

func (u *Update) RequestID() int32      { return u.reqID }
func (u *Update) SetRequestID(id int32) { u.reqID = id }
func (u *Update) ExpectsReply() bool    { return false }

// Insert is a client-originated INSERT message. Never expects a reply.
type Insert struct {
	reqID              int32
	Flags              int32
	FullCollectionName string
	Documents          []interface{}
}

func (i *Insert) RequestID() int32      { return i.reqID }
func (i *Insert) SetRequestID(id int32) { i.reqID = id }
func (i *Insert) ExpectsReply() bool    { return false }

// GetMore is a client-originated GET_MORE message. It always expects a
// reply — that is its entire purpose.
type GetMore struct {
	reqID              int32
	FullCollectionName string
	NumberToReturn     int32
	CursorID           int64
}

func (g *GetMore) RequestID() int32      { return g.reqID }
func (g *GetMore) SetRequestID(id int32) { g.reqID = id }
func (g *GetMore) ExpectsReply() bool    { return true }

// Delete is a client-originated DELETE message. Never expects a reply.
type Delete struct {
	reqID              int32
	FullCollectionName string
	Flags              int32
	Selector           interface{}
}

func (d *Delete) RequestID() int32      { return d.reqID }
func (d *Delete) SetRequestID(id int32) { d.reqID = id }
func (d *Delete) ExpectsReply() bool    { return false }

// KillCursors is a client-originated KILL_CURSORS message. Never expects a
// reply.
type KillCursors struct {
	reqID     int32
	CursorIDs []int64
}

func (k *KillCursors) RequestID() int32      { return k.reqID }
func (k *KillCursors) SetRequestID(id int32) { k.reqID = id }
func (k *KillCursors) ExpectsReply() bool    { return false }
