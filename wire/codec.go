// Copyright (C) MongoDB, Inc. 2026-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package wire

import (
	"fmt"
	"io"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/youseeus/mongodb-async-driver/internal"
)

// Codec turns Messages into bytes and back, per the little-endian,
// length-prefixed wire protocol layout. It is the sole point at which
// this package touches the socket's byte stream.
type Codec interface {
	Encode(w io.Writer, msgs ...Message) error
	Decode(r io.Reader) (Message, error)
}

// NewCodec creates the Codec used by every SocketConnection.
func NewCodec() Codec {
	return &wireCodec{lengthBytes: make([]byte, 4)}
}

type wireCodec struct {
	lengthBytes []byte
}

func (c *wireCodec) Decode(r io.Reader) (Message, error) {
	if _, err := io.ReadFull(r, c.lengthBytes); err != nil {
		return nil, internal.WrapError(err, "unable to decode message length")
	}

	length := readInt32(c.lengthBytes, 0)
	if length < HeaderLength {
		return nil, fmt.Errorf("wire: message length %d shorter than header", length)
	}

	b := make([]byte, length)
	copy(b, c.lengthBytes)
	if _, err := io.ReadFull(r, b[4:]); err != nil {
		return nil, internal.WrapError(err, "unable to decode message")
	}

	return decodeBody(b)
}

func (c *wireCodec) Encode(w io.Writer, msgs ...Message) error {
	b := make([]byte, 0, 256)

	for _, m := range msgs {
		start := len(b)
		var err error

		switch typed := m.(type) {
		case *Query:
			b = addHeader(b, 0, typed.reqID, 0, int32(OpQuery))
			b = addInt32(b, int32(typed.Flags))
			b = addCString(b, typed.FullCollectionName)
			b = addInt32(b, typed.NumberToSkip)
			b = addInt32(b, typed.NumberToReturn)
			b, err = addMarshalled(b, typed.Query)
			if err != nil {
				return fmt.Errorf("wire: marshal query: %w", err)
			}
			if typed.ReturnFieldsSelector != nil {
				b, err = addMarshalled(b, typed.ReturnFieldsSelector)
				if err != nil {
					return fmt.Errorf("wire: marshal return fields selector: %w", err)
				}
			}
		case *Update:
			b = addHeader(b, 0, typed.reqID, 0, int32(OpUpdate))
			b = addInt32(b, 0)
			b = addCString(b, typed.FullCollectionName)
			b = addInt32(b, typed.Flags)
			b, err = addMarshalled(b, typed.Selector)
			if err != nil {
				return fmt.Errorf("wire: marshal update selector: %w", err)
			}
			b, err = addMarshalled(b, typed.Update)
			if err != nil {
				return fmt.Errorf("wire: marshal update document: %w", err)
			}
		case *Insert:
			b = addHeader(b, 0, typed.reqID, 0, int32(OpInsert))
			b = addInt32(b, typed.Flags)
			b = addCString(b, typed.FullCollectionName)
			for _, doc := range typed.Documents {
				b, err = addMarshalled(b, doc)
				if err != nil {
					return fmt.Errorf("wire: marshal insert document: %w", err)
				}
			}
		case *GetMore:
			b = addHeader(b, 0, typed.reqID, 0, int32(OpGetMore))
			b = addInt32(b, 0)
			b = addCString(b, typed.FullCollectionName)
			b = addInt32(b, typed.NumberToReturn)
			b = addInt64(b, typed.CursorID)
		case *Delete:
			b = addHeader(b, 0, typed.reqID, 0, int32(OpDelete))
			b = addInt32(b, 0)
			b = addCString(b, typed.FullCollectionName)
			b = addInt32(b, typed.Flags)
			b, err = addMarshalled(b, typed.Selector)
			if err != nil {
				return fmt.Errorf("wire: marshal delete selector: %w", err)
			}
		case *KillCursors:
			b = addHeader(b, 0, typed.reqID, 0, int32(OpKillCursors))
			b = addInt32(b, 0)
			b = addInt32(b, int32(len(typed.CursorIDs)))
			for _, id := range typed.CursorIDs {
				b = addInt64(b, id)
			}
		case *Reply:
			b = addHeader(b, 0, 0, typed.responseTo, int32(OpReply))
			b = addInt32(b, int32(typed.Flags))
			b = addInt64(b, typed.CursorID)
			b = addInt32(b, typed.StartingFrom)
			b = addInt32(b, typed.NumberReturned)
			for _, doc := range typed.Documents {
				b, err = addMarshalled(b, doc)
				if err != nil {
					return fmt.Errorf("wire: marshal reply document: %w", err)
				}
			}
		default:
			return fmt.Errorf("wire: encode: unsupported message type %T", m)
		}

		setInt32(b, start, int32(len(b)-start))
	}

	if _, err := w.Write(b); err != nil {
		return fmt.Errorf("wire: write: %w", err)
	}
	return nil
}

func decodeBody(b []byte) (Message, error) {
	requestID := readInt32(b, 4)
	responseTo := readInt32(b, 8)
	op := OpCode(readInt32(b, 12))

	switch op {
	case OpReply:
		return decodeReplyBody(b, responseTo)
	case OpQuery:
		return decodeQueryBody(b, requestID)
	case OpUpdate:
		return decodeUpdateBody(b, requestID)
	case OpInsert:
		return decodeInsertBody(b, requestID)
	case OpGetMore:
		return decodeGetMoreBody(b, requestID)
	case OpDelete:
		return decodeDeleteBody(b, requestID)
	case OpKillCursors:
		return decodeKillCursorsBody(b, requestID)
	default:
		return nil, fmt.Errorf("wire: decode: opcode %d not supported for decode", op)
	}
}

func decodeReplyBody(b []byte, responseTo int32) (Message, error) {
	reply := &Reply{
		responseTo: responseTo,
		Flags:      ReplyFlags(readInt32(b, 16)),
		CursorID:   readInt64(b, 20),
	}
	reply.StartingFrom = readInt32(b, 28)
	reply.NumberReturned = readInt32(b, 32)

	docs, err := unmarshalDocuments(b[36:], int(reply.NumberReturned))
	if err != nil {
		return nil, fmt.Errorf("wire: decode: unmarshal documents: %w", err)
	}
	reply.Documents = docs

	return reply, nil
}

func decodeQueryBody(b []byte, requestID int32) (Message, error) {
	offset := HeaderLength
	flags := readInt32(b, offset)
	offset += 4
	name, offset := readCString(b, offset)
	skip := readInt32(b, offset)
	offset += 4
	numberToReturn := readInt32(b, offset)
	offset += 4

	query, offset, err := readDocument(b, offset)
	if err != nil {
		return nil, fmt.Errorf("wire: decode: unmarshal query: %w", err)
	}

	q := &Query{
		reqID:              requestID,
		FullCollectionName: name,
		Flags:              QueryFlags(flags),
		NumberToSkip:       skip,
		NumberToReturn:     numberToReturn,
		Query:              query,
	}
	if offset < len(b) {
		selector, _, err := readDocument(b, offset)
		if err != nil {
			return nil, fmt.Errorf("wire: decode: unmarshal return fields selector: %w", err)
		}
		q.ReturnFieldsSelector = selector
	}
	return q, nil
}

func decodeUpdateBody(b []byte, requestID int32) (Message, error) {
	offset := HeaderLength + 4 // reserved int32
	name, offset := readCString(b, offset)
	flags := readInt32(b, offset)
	offset += 4

	selector, offset, err := readDocument(b, offset)
	if err != nil {
		return nil, fmt.Errorf("wire: decode: unmarshal update selector: %w", err)
	}
	update, _, err := readDocument(b, offset)
	if err != nil {
		return nil, fmt.Errorf("wire: decode: unmarshal update document: %w", err)
	}

	return &Update{
		reqID:              requestID,
		FullCollectionName: name,
		Flags:              flags,
		Selector:           selector,
		Update:             update,
	}, nil
}

func decodeInsertBody(b []byte, requestID int32) (Message, error) {
	offset := HeaderLength
	flags := readInt32(b, offset)
	offset += 4
	name, offset := readCString(b, offset)

	var docs []interface{}
	for offset < len(b) {
		var doc interface{}
		var err error
		doc, offset, err = readDocument(b, offset)
		if err != nil {
			return nil, fmt.Errorf("wire: decode: unmarshal insert document: %w", err)
		}
		docs = append(docs, doc)
	}

	return &Insert{
		reqID:              requestID,
		Flags:              flags,
		FullCollectionName: name,
		Documents:          docs,
	}, nil
}

func decodeGetMoreBody(b []byte, requestID int32) (Message, error) {
	offset := HeaderLength + 4 // reserved int32
	name, offset := readCString(b, offset)
	numberToReturn := readInt32(b, offset)
	offset += 4
	cursorID := readInt64(b, offset)

	return &GetMore{
		reqID:              requestID,
		FullCollectionName: name,
		NumberToReturn:     numberToReturn,
		CursorID:           cursorID,
	}, nil
}

func decodeDeleteBody(b []byte, requestID int32) (Message, error) {
	offset := HeaderLength + 4 // reserved int32
	name, offset := readCString(b, offset)
	flags := readInt32(b, offset)
	offset += 4

	selector, _, err := readDocument(b, offset)
	if err != nil {
		return nil, fmt.Errorf("wire: decode: unmarshal delete selector: %w", err)
	}

	return &Delete{
		reqID:              requestID,
		FullCollectionName: name,
		Flags:              flags,
		Selector:           selector,
	}, nil
}

func decodeKillCursorsBody(b []byte, requestID int32) (Message, error) {
	offset := HeaderLength + 4 // reserved int32
	n := int(readInt32(b, offset))
	offset += 4

	ids := make([]int64, 0, n)
	for i := 0; i < n; i++ {
		ids = append(ids, readInt64(b, offset))
		offset += 8
	}

	return &KillCursors{reqID: requestID, CursorIDs: ids}, nil
}

// readCString reads a NUL-terminated string starting at offset, returning
// it along with the offset of the byte following the NUL.
func readCString(b []byte, offset int) (string, int) {
	end := offset
	for b[end] != 0 {
		end++
	}
	return string(b[offset:end]), end + 1
}

// readDocument reads one length-prefixed BSON document starting at offset,
// returning it decoded along with the offset following it.
func readDocument(b []byte, offset int) (interface{}, int, error) {
	size := int(readInt32(b, offset))
	if size < 4 || offset+size > len(b) {
		return nil, 0, fmt.Errorf("invalid document size %d", size)
	}
	var m bson.M
	if err := bson.Unmarshal(bson.Raw(b[offset:offset+size]), &m); err != nil {
		return nil, 0, err
	}
	return m, offset + size, nil
}

func unmarshalDocuments(b []byte, n int) ([]interface{}, error) {
	docs := make([]interface{}, 0, n)
	for len(b) > 0 {
		if len(b) < 4 {
			return nil, fmt.Errorf("truncated document")
		}
		size := int(readInt32(b, 0))
		if size < 0 || size > len(b) {
			return nil, fmt.Errorf("invalid document size %d", size)
		}

		var doc bson.Raw = b[:size]
		var m bson.M
		if err := bson.Unmarshal(doc, &m); err != nil {
			return nil, err
		}
		docs = append(docs, m)
		b = b[size:]
	}
	return docs, nil
}

func addCString(b []byte, s string) []byte {
	b = append(b, []byte(s)...)
	return append(b, 0)
}

func addInt32(b []byte, i int32) []byte {
	return append(b, byte(i), byte(i>>8), byte(i>>16), byte(i>>24))
}

func addInt64(b []byte, i int64) []byte {
	return append(b,
		byte(i), byte(i>>8), byte(i>>16), byte(i>>24),
		byte(i>>32), byte(i>>40), byte(i>>48), byte(i>>56))
}

func addMarshalled(b []byte, data interface{}) ([]byte, error) {
	if data == nil {
		return append(b, 5, 0, 0, 0, 0), nil
	}

	encoded, err := bson.Marshal(data)
	if err != nil {
		return nil, err
	}
	return append(b, encoded...), nil
}

func addHeader(b []byte, length, requestID, responseTo, opCode int32) []byte {
	b = addInt32(b, length)
	b = addInt32(b, requestID)
	b = addInt32(b, responseTo)
	return addInt32(b, opCode)
}

func setInt32(b []byte, pos int, i int32) {
	b[pos] = byte(i)
	b[pos+1] = byte(i >> 8)
	b[pos+2] = byte(i >> 16)
	b[pos+3] = byte(i >> 24)
}

func readInt32(b []byte, pos int) int32 {
	return int32(b[pos]) | int32(b[pos+1])<<8 | int32(b[pos+2])<<16 | int32(b[pos+3])<<24
}

func readInt64(b []byte, pos int) int64 {
	return int64(b[pos]) | int64(b[pos+1])<<8 | int64(b[pos+2])<<16 | int64(b[pos+3])<<24 |
		int64(b[pos+4])<<32 | int64(b[pos+5])<<40 | int64(b[pos+6])<<48 | int64(b[pos+7])<<56
}
