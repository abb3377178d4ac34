// Copyright (C) MongoDB, Inc. 2026-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package client implements the top-level Client surface: send a message
// (or a linked pair) to whichever server the configured read preference
// selects, and translate its reply into one of a small set of error
// kinds: pick a server, open or reuse its connection, run the command,
// decode the result.
package client

import (
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/youseeus/mongodb-async-driver/model"
)

// ErrDocumentTooLarge is returned synchronously by Send, before any bytes
// reach the socket, when an outgoing document exceeds the target
// server's MaxDocumentSize.
var ErrDocumentTooLarge = errors.New("client: document exceeds server's maximum document size")

// ServerVersionMismatchError is returned synchronously by Send when a
// message declares (via VersionAware) a wire-version range the selected
// server falls outside of.
type ServerVersionMismatchError struct {
	Required model.Range
	Actual   model.Range
}

func (e *ServerVersionMismatchError) Error() string {
	return fmt.Sprintf("client: server wire version %+v outside required range %+v", e.Actual, e.Required)
}

// VersionAware is satisfied by a wire.Request that needs a specific
// server wire-version range; Send checks it against the selected
// server before writing anything to the socket.
type VersionAware interface {
	RequiredWireVersion() model.Range
}

// ReplyErrorKind classifies a reply that completed but reported failure.
type ReplyErrorKind int

// ReplyErrorKind values.
const (
	ReplyErrorGeneric ReplyErrorKind = iota
	CursorNotFound
	ShardConfigStale
	DuplicateKey
	DurabilityFailure
	MaximumTimeLimitExceeded
)

func (k ReplyErrorKind) String() string {
	switch k {
	case CursorNotFound:
		return "CursorNotFound"
	case ShardConfigStale:
		return "ShardConfigStale"
	case DuplicateKey:
		return "DuplicateKey"
	case DurabilityFailure:
		return "DurabilityFailure"
	case MaximumTimeLimitExceeded:
		return "MaximumTimeLimitExceeded"
	default:
		return "ReplyError"
	}
}

// ReplyError wraps a reply that the server answered but rejected: either
// the wire-level query_failed flag was set, or a command reply came back
// with ok:0.
type ReplyError struct {
	Kind    ReplyErrorKind
	Code    int
	Message string
}

func (e *ReplyError) Error() string {
	return fmt.Sprintf("client: %s (code %d): %s", e.Kind, e.Code, e.Message)
}

var durabilityFailureMarkers = []string{"wtimeout", "wnote", "jnote", "badGLE"}

// classifyCommandError inspects a command reply document that reported
// ok:0 and produces a ReplyError with the matching subkind, by code and
// field-name. Wire-level flags (CursorNotFound, ShardConfigStale) are
// checked separately by the caller, since those come from the reply
// header rather than the document body.
func classifyCommandError(doc bson.M) *ReplyError {
	code := intField(doc, "code")
	msg := stringField(doc, "errmsg")
	if msg == "" {
		msg = stringField(doc, "$err")
	}

	switch {
	case code == 50 || code == 13475 || code == 16711:
		return &ReplyError{Kind: MaximumTimeLimitExceeded, Code: code, Message: msg}
	case code == 11000 || code == 11001 || strings.HasPrefix(msg, "E11000"):
		return &ReplyError{Kind: DuplicateKey, Code: code, Message: msg}
	case hasAny(doc, durabilityFailureMarkers) || strings.Contains(msg, "wtimeout"):
		return &ReplyError{Kind: DurabilityFailure, Code: code, Message: msg}
	default:
		return &ReplyError{Kind: ReplyErrorGeneric, Code: code, Message: msg}
	}
}

func hasAny(doc bson.M, keys []string) bool {
	for _, k := range keys {
		if _, ok := doc[k]; ok {
			return true
		}
	}
	return false
}

func intField(doc bson.M, key string) int {
	switch v := doc[key].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

func stringField(doc bson.M, key string) string {
	s, _ := doc[key].(string)
	return s
}

// isOK reports whether a command reply document's "ok" field is truthy.
func isOK(doc bson.M) bool {
	switch v := doc["ok"].(type) {
	case float64:
		return v != 0
	case int32:
		return v != 0
	case int64:
		return v != 0
	case bool:
		return v
	default:
		// A reply with no "ok" field at all (e.g. a find's first batch)
		// isn't a command reply and can't have failed this way.
		return true
	}
}
