// Copyright (C) MongoDB, Inc. 2026-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package wire implements the length-prefixed binary framing used on the
// socket: the message header, the opcode-specific bodies that need
// framing, and the codec that turns them into bytes. Document encoding
// within a message body is delegated to go.mongodb.org/mongo-driver/bson
// as an external collaborator.
package wire

// OpCode identifies the body layout that follows a message header.
type OpCode int32

// OpCode constants for the subset of the wire protocol this package frames.
const (
	OpReply       OpCode = 1
	OpUpdate      OpCode = 2001
	OpInsert      OpCode = 2002
	OpQuery       OpCode = 2004
	OpGetMore     OpCode = 2005
	OpDelete      OpCode = 2006
	OpKillCursors OpCode = 2007
)

// HeaderLength is the fixed size, in bytes, of every message header.
const HeaderLength = 16

// Header is the four-field tuple that precedes every frame on the wire.
type Header struct {
	Length     int32
	RequestID  int32
	ResponseTo int32
	OpCode     OpCode
}

// Message is anything that can be framed onto the wire.
type Message interface {
	message()
}

// Request is a message sent to the server. RequestID is assigned by the
// owning SocketConnection at send time, not by this package: request IDs
// are allocated from a per-connection counter, not a process-global one.
type Request interface {
	Message
	RequestID() int32
	SetRequestID(id int32)
	// ExpectsReply reports whether the server is expected to produce a
	// reply to this request (false for fire-and-forget writes).
	ExpectsReply() bool
}

// Response is a message received from the server.
type Response interface {
	Message
	ResponseTo() int32
}

func (*Query) message()       {}
func (*Update) message()      {}
func (*Insert) message()      {}
func (*GetMore) message()     {}
func (*Delete) message()      {}
func (*KillCursors) message() {}
func (*Reply) message()       {}
