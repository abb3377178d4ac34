// Copyright (C) MongoDB, Inc. 2026-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package factory

import (
	"context"
	"time"

	"github.com/youseeus/mongodb-async-driver/model"
	"github.com/youseeus/mongodb-async-driver/pinger"
)

// prober adapts a Factory into a pinger.Prober by opening a short-lived
// connection, timing its identity command, and shutting it back down —
// the same identity-command probe reconnect.identityProber runs, just
// measured for latency instead of used as a pass/fail confirmation.
type prober struct {
	factory Factory
}

// NewProber builds a pinger.Prober that probes through f.
func NewProber(f Factory) pinger.Prober {
	return &prober{factory: f}
}

func (p *prober) Probe(ctx context.Context, s *model.Server) (*model.IdentityReply, time.Duration, error) {
	start := time.Now()
	conn, err := p.factory.Connect(ctx, s)
	if err != nil {
		return nil, 0, err
	}
	defer conn.Shutdown(ctx, false)

	reply, err := identify(ctx, conn)
	if err != nil {
		return nil, 0, err
	}
	return reply, time.Since(start), nil
}
