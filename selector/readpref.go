// Copyright (C) MongoDB, Inc. 2026-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package selector

import "github.com/youseeus/mongodb-async-driver/model"

// Mode is a read preference mode.
type Mode int

// Mode constants.
const (
	PrimaryMode Mode = iota
	PrimaryPreferredMode
	SecondaryMode
	SecondaryPreferredMode
	NearestMode
)

func (m Mode) String() string {
	switch m {
	case PrimaryMode:
		return "primary"
	case PrimaryPreferredMode:
		return "primaryPreferred"
	case SecondaryMode:
		return "secondary"
	case SecondaryPreferredMode:
		return "secondaryPreferred"
	case NearestMode:
		return "nearest"
	default:
		return "unknown"
	}
}

// ReadPref is a read preference: a mode plus the tag sets a non-primary
// mode must match.
type ReadPref struct {
	Mode    Mode
	TagSets []model.TagSet
}

// Primary is the default read preference: only the writable member.
func Primary() *ReadPref { return &ReadPref{Mode: PrimaryMode} }

// ReadPreference selects candidates eligible under rp. A single-server
// cluster is always eligible regardless of mode, since read preference has
// no meaning once there's no replica set to prefer within. A sharded
// cluster is likewise always eligible, but is additionally ordered by
// ascending average latency, so the nearest mongos router is tried first.
func ReadPreference(rp *ReadPref) ServerSelector {
	return func(c *model.Cluster, candidates []*model.Server) ([]*model.Server, error) {
		if c.Kind() == model.SingleCluster {
			return candidates, nil
		}
		if c.Kind() == model.Sharded {
			return ByLatency()(c, candidates)
		}

		switch rp.Mode {
		case PrimaryMode:
			return filterByRole(candidates, model.RoleWritable), nil
		case PrimaryPreferredMode:
			if primaries := filterByRole(candidates, model.RoleWritable); len(primaries) > 0 {
				return primaries, nil
			}
			return matchTags(filterByRole(candidates, model.RoleNonWritable), rp.TagSets), nil
		case SecondaryMode:
			return matchTags(filterByRole(candidates, model.RoleNonWritable), rp.TagSets), nil
		case SecondaryPreferredMode:
			secondaries := matchTags(filterByRole(candidates, model.RoleNonWritable), rp.TagSets)
			if len(secondaries) > 0 {
				return secondaries, nil
			}
			return filterByRole(candidates, model.RoleWritable), nil
		case NearestMode:
			return matchTags(candidates, rp.TagSets), nil
		default:
			return candidates, nil
		}
	}
}

func filterByRole(candidates []*model.Server, role model.Role) []*model.Server {
	var result []*model.Server
	for _, s := range candidates {
		if s.Role() == role {
			result = append(result, s)
		}
	}
	return result
}

// matchTags keeps only servers whose tags satisfy at least one of the
// given tag sets. An empty tagSets list matches everything.
func matchTags(candidates []*model.Server, tagSets []model.TagSet) []*model.Server {
	if len(tagSets) == 0 {
		return candidates
	}

	var result []*model.Server
	for _, s := range candidates {
		for _, ts := range tagSets {
			if s.Tags().ContainsAll(ts) {
				result = append(result, s)
				break
			}
		}
	}
	return result
}
