// Copyright (C) MongoDB, Inc. 2026-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package internal_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/youseeus/mongodb-async-driver/internal"
)

func TestRolledUpErrorMessageFlattensChain(t *testing.T) {
	root := errors.New("connection refused")
	wrapped := internal.WrapErrorf(root, "failed sending commands(%d)", 2)

	require.Equal(t, "failed sending commands(2): connection refused", wrapped.Error())
}

func TestRolledUpErrorMessagePlainError(t *testing.T) {
	require.Equal(t, "boom", internal.RolledUpErrorMessage(errors.New("boom")))
}
