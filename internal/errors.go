// Copyright (C) MongoDB, Inc. 2026-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package internal holds small helpers shared across the driver's
// packages that don't belong on any one public type.
package internal

import "fmt"

// WrappedError is an error that wraps another error, carrying its own
// message separately from the wrapped error's.
type WrappedError interface {
	Message() string
	Inner() error
}

// RolledUpErrorMessage flattens a chain of WrappedErrors into a single
// colon-separated message.
func RolledUpErrorMessage(err error) string {
	if wrapped, ok := err.(WrappedError); ok {
		if inner := wrapped.Inner(); inner != nil {
			return fmt.Sprintf("%s: %s", wrapped.Message(), RolledUpErrorMessage(inner))
		}
		return wrapped.Message()
	}
	return err.Error()
}

// WrapError wraps inner with a message.
func WrapError(inner error, message string) error {
	return &wrappedError{message, inner}
}

// WrapErrorf wraps inner with a formatted message.
func WrapErrorf(inner error, format string, args ...interface{}) error {
	return &wrappedError{fmt.Sprintf(format, args...), inner}
}

type wrappedError struct {
	message string
	inner   error
}

func (e *wrappedError) Message() string { return e.message }
func (e *wrappedError) Error() string   { return RolledUpErrorMessage(e) }
func (e *wrappedError) Inner() error    { return e.inner }
func (e *wrappedError) Unwrap() error   { return e.inner }
