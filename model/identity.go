// Copyright (C) MongoDB, Inc. 2026-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package model

import "time"

// IdentityReply is the decoded result of the server's identity/status
// command (the "ismaster"-style reply). The wire-level document decode is
// delegated to the codec collaborator; this struct is what Server.UpdateFrom
// consumes.
type IdentityReply struct {
	OK                  bool              `bson:"ok"`
	IsMaster            bool              `bson:"ismaster"`
	Secondary           bool              `bson:"secondary"`
	Hidden              bool              `bson:"hidden"`
	ArbiterOnly         bool              `bson:"arbiterOnly"`
	IsReplicaSet        bool              `bson:"isreplicaset"`
	Me                  string            `bson:"me"`
	Primary             string            `bson:"primary"`
	SetName             string            `bson:"setName"`
	SetVersion          uint32            `bson:"setVersion"`
	Hosts               []string          `bson:"hosts"`
	Passives            []string          `bson:"passives"`
	Arbiters            []string          `bson:"arbiters"`
	Tags                map[string]string `bson:"tags"`
	MaxBSONObjectSize   uint32            `bson:"maxBsonObjectSize"`
	MaxMessageSizeBytes uint32            `bson:"maxMessageSizeBytes"`
	MaxWriteBatchSize   uint16            `bson:"maxWriteBatchSize"`
	MinWireVersion      uint8             `bson:"minWireVersion"`
	MaxWireVersion      uint8             `bson:"maxWireVersion"`
	Msg                 string            `bson:"msg"`
	LastWriteTimestamp  time.Time         `bson:"lastWriteDate"`
}

// BuildInfoReply is the decoded result of the server's build-info command.
type BuildInfoReply struct {
	GitVersion   string  `bson:"gitVersion"`
	Version      string  `bson:"version"`
	VersionArray []uint8 `bson:"versionArray"`
}

// Kind classifies the process that produced the reply.
func (r *IdentityReply) Kind() ServerKind {
	if !r.OK {
		return UnknownKind
	}
	switch {
	case r.IsReplicaSet:
		return RSGhost
	case r.SetName != "":
		switch {
		case r.IsMaster:
			return RSPrimary
		case r.Hidden:
			return RSMember
		case r.Secondary:
			return RSSecondary
		case r.ArbiterOnly:
			return RSArbiter
		default:
			return RSMember
		}
	case r.Msg == "isdbgrid":
		return Mongos
	default:
		return Standalone
	}
}
