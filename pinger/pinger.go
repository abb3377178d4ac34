// Copyright (C) MongoDB, Inc. 2026-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package pinger implements the ClusterPinger: a background loop that
// periodically probes every known Server with an identity command,
// feeding the result into model.Server.UpdateFrom/MarkFailed and
// publishing topology changes to subscribers.
package pinger

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/montanaflynn/stats"
	"github.com/sirupsen/logrus"

	"github.com/youseeus/mongodb-async-driver/model"
)

const minHeartbeatInterval = 500 * time.Millisecond

// DefaultInterval is the probe interval used when no Option overrides it.
const DefaultInterval = 10 * time.Second

// UnreachableThreshold is the number of consecutive failed probes after
// which a Server is considered unreachable by Server.Unreachable — the
// first two failed probes are tolerated as transient blips before a server
// is treated as actually down.
const UnreachableThreshold = 3

const (
	minRTTSamples = 10
	maxRTTSamples = 500
)

// Prober runs the identity command against a Server and reports its round
// trip time. Production callers satisfy this with factory.NewProber, which
// times a real identity-command round trip; tests supply a fake.
type Prober interface {
	Probe(ctx context.Context, s *model.Server) (*model.IdentityReply, time.Duration, error)
}

type config struct {
	interval time.Duration
	logger   *logrus.Entry
}

func newConfig(opts ...Option) *config {
	cfg := &config{interval: DefaultInterval, logger: logrus.WithField("component", "pinger")}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.interval < minHeartbeatInterval {
		cfg.interval = minHeartbeatInterval
	}
	return cfg
}

// Option configures a ClusterPinger.
type Option func(*config)

// WithInterval overrides the probe interval.
func WithInterval(d time.Duration) Option {
	return func(cfg *config) { cfg.interval = d }
}

// WithLogger overrides the logger.
func WithLogger(log *logrus.Entry) Option {
	return func(cfg *config) { cfg.logger = log }
}

// ClusterPinger periodically probes every Server in a Cluster, updating
// health state and publishing a change notification to subscribers.
type ClusterPinger struct {
	cfg     *config
	cluster *model.Cluster
	prober  Prober

	samples map[string]*rttSampler
	smu     sync.Mutex

	subscribers   map[int64]chan struct{}
	lastSubID     int64
	subMu         sync.Mutex
	subsClosed    bool

	checkNow chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// Start creates a ClusterPinger for cluster and begins probing immediately,
// blocking until the first sweep across every currently-known Server
// completes before returning control to its caller.
func Start(cluster *model.Cluster, prober Prober, opts ...Option) *ClusterPinger {
	p := &ClusterPinger{
		cfg:         newConfig(opts...),
		cluster:     cluster,
		prober:      prober,
		samples:     make(map[string]*rttSampler),
		subscribers: make(map[int64]chan struct{}),
		checkNow:    make(chan struct{}, 1),
		done:        make(chan struct{}),
	}

	p.sweep(context.Background())

	p.wg.Add(1)
	go p.run()

	return p
}

func (p *ClusterPinger) run() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.sweep(context.Background())
			p.notify()
		case <-p.checkNow:
			p.sweep(context.Background())
			p.notify()
		case <-p.done:
			return
		}
	}
}

// CheckNow requests an immediate sweep outside the regular interval, the
// way a ReconnectStrategy asks for a fresh read right after a connection
// loss instead of waiting out the rest of the current period.
func (p *ClusterPinger) CheckNow() {
	select {
	case p.checkNow <- struct{}{}:
	default:
	}
}

// Stop halts the pinger and closes every subscriber channel.
func (p *ClusterPinger) Stop() {
	p.stopOnce.Do(func() {
		close(p.done)
		p.wg.Wait()

		p.subMu.Lock()
		for id, ch := range p.subscribers {
			close(ch)
			delete(p.subscribers, id)
		}
		p.subsClosed = true
		p.subMu.Unlock()
	})
}

// Subscribe returns a channel that receives a value after every sweep and
// an unsubscribe function. The channel is buffered(1) and pre-populated so
// a subscriber that hasn't read yet still observes that at least one
// sweep has happened.
func (p *ClusterPinger) Subscribe() (<-chan struct{}, func(), error) {
	ch := make(chan struct{}, 1)
	ch <- struct{}{}

	p.subMu.Lock()
	defer p.subMu.Unlock()
	if p.subsClosed {
		close(ch)
		return nil, nil, errSubscribeAfterStop
	}
	p.lastSubID++
	id := p.lastSubID
	p.subscribers[id] = ch

	unsubscribe := func() {
		p.subMu.Lock()
		defer p.subMu.Unlock()
		if ch, ok := p.subscribers[id]; ok {
			close(ch)
			delete(p.subscribers, id)
		}
	}
	return ch, unsubscribe, nil
}

func (p *ClusterPinger) notify() {
	p.subMu.Lock()
	defer p.subMu.Unlock()
	for _, ch := range p.subscribers {
		select {
		case <-ch:
		default:
		}
		ch <- struct{}{}
	}
}

func (p *ClusterPinger) sweep(ctx context.Context) {
	for _, s := range p.cluster.Servers() {
		p.probeOne(ctx, s)
	}
}

func (p *ClusterPinger) probeOne(ctx context.Context, s *model.Server) {
	reply, rtt, err := p.prober.Probe(ctx, s)
	if err != nil {
		n := s.MarkFailed(err)
		p.cfg.logger.WithFields(logrus.Fields{"server": s.Name, "failures": n}).Warn("probe failed")
		return
	}

	s.UpdateFrom(reply, rtt)
	s.SetRTT90(p.sample(s.Name, rtt))
}

// sample records rtt in the server's rolling window and returns the
// current 90th-percentile sample, mirroring x/mongo/driver/topology's
// rttMonitor.addSample: a fixed-size circular buffer, no percentile
// reported until minRTTSamples have been collected.
func (p *ClusterPinger) sample(name string, rtt time.Duration) time.Duration {
	p.smu.Lock()
	defer p.smu.Unlock()

	s, ok := p.samples[name]
	if !ok {
		s = newRTTSampler(maxRTTSamples)
		p.samples[name] = s
	}
	return s.add(rtt)
}

type rttSampler struct {
	samples []time.Duration
	offset  int
}

func newRTTSampler(size int) *rttSampler {
	return &rttSampler{samples: make([]time.Duration, size)}
}

func (s *rttSampler) add(rtt time.Duration) time.Duration {
	s.samples[s.offset] = rtt
	s.offset = (s.offset + 1) % len(s.samples)

	floats := make([]float64, 0, len(s.samples))
	for _, d := range s.samples {
		if d > 0 {
			floats = append(floats, float64(d))
		}
	}
	if len(floats) < minRTTSamples {
		return 0
	}

	p90, err := stats.Percentile(floats, 90.0)
	if err != nil {
		return 0
	}
	return time.Duration(math.Round(p90))
}

var errSubscribeAfterStop = subscribeAfterStopError{}

type subscribeAfterStopError struct{}

func (subscribeAfterStopError) Error() string {
	return "pinger: cannot subscribe after Stop"
}
