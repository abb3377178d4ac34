// Copyright (C) MongoDB, Inc. 2026-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package client

import "time"

// Durability describes how many servers must acknowledge a write, and
// with what guarantees, before it's considered complete — the "w"/"j"/
// "wtimeout" triple every MongoDB write concern boils down to. It's the
// opaque value Client.DefaultDurability returns.
type Durability struct {
	// W is the acknowledgment level: an int (number of members), the
	// string "majority", or a custom tag set name.
	W       interface{}
	Journal bool
	Timeout time.Duration
}

// Acknowledged is the default Durability: acknowledgment from the
// primary alone, no journal requirement, no timeout.
func Acknowledged() Durability { return Durability{W: 1} }

// Document renders the durability as the getLastError-style document a
// write command's writeConcern field expects.
func (d Durability) Document() map[string]interface{} {
	doc := map[string]interface{}{}
	if d.W != nil {
		doc["w"] = d.W
	}
	if d.Journal {
		doc["j"] = true
	}
	if d.Timeout > 0 {
		doc["wtimeout"] = int64(d.Timeout / time.Millisecond)
	}
	return doc
}
