// Copyright (C) MongoDB, Inc. 2026-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package client

import "github.com/youseeus/mongodb-async-driver/selector"

// Option configures a Client at construction time, following the
// functional-options pattern used throughout this module (pinger.Option,
// socket.Option).
type Option func(*Client)

// WithReadPreference overrides the read preference server selection uses.
func WithReadPreference(rp *selector.ReadPref) Option {
	return func(c *Client) {
		c.readPref = rp
		c.selector = selector.ReadPreference(rp)
	}
}

// WithDurability overrides the default write concern DefaultDurability
// reports.
func WithDurability(d Durability) Option {
	return func(c *Client) { c.durability = d }
}

// WithSelector overrides server selection entirely, bypassing the
// read-preference-derived selector WithReadPreference builds.
func WithSelector(sel selector.ServerSelector) Option {
	return func(c *Client) { c.selector = sel }
}
