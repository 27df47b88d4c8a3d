/*
Copyright 2022-Present Couchbase, Inc.

Use of this software is governed by the Business Source License included in
the file licenses/BSL-Couchbase.txt.  As of the Change Date specified in that
file, in accordance with the Business Source License, use of this software will
be governed by the Apache License, Version 2.0, included in the file
licenses/APL2.txt.
*/

package client

import (
	"sync"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
)

const (
	DefaultMinNodeBackoff = 250 * time.Millisecond
	DefaultMaxNodeBackoff = 30 * time.Minute
)

type HealthPolicyOptions struct {
	MinBackoff time.Duration
	MaxBackoff time.Duration
}

// healthPolicy decides how long a failing node is excluded from selection.
// Each node has its own exponential backoff, which keeps growing with
// consecutive failures and is reset by a success.  Backoff state is only kept
// for nodes of the current topology.
type healthPolicy struct {
	minBackoff time.Duration
	maxBackoff time.Duration
	current    func() *Topology

	lock     sync.Mutex
	backoffs map[NodeID]*backoff.ExponentialBackOff
}

func newHealthPolicy(opts HealthPolicyOptions, current func() *Topology) *healthPolicy {
	if opts.MinBackoff <= 0 {
		opts.MinBackoff = DefaultMinNodeBackoff
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = DefaultMaxNodeBackoff
	}
	if opts.MaxBackoff < opts.MinBackoff {
		opts.MaxBackoff = opts.MinBackoff
	}

	return &healthPolicy{
		minBackoff: opts.MinBackoff,
		maxBackoff: opts.MaxBackoff,
		current:    current,
		backoffs:   make(map[NodeID]*backoff.ExponentialBackOff),
	}
}

func (p *healthPolicy) newBackoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.minBackoff
	b.MaxInterval = p.maxBackoff
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// failure applies the next backoff step of the node to its health and
// returns the duration applied.  A node which has already left the topology
// gets the initial step without any state being recorded for it.
func (p *healthPolicy) failure(nodeID NodeID, health *NodeHealth, now time.Time) time.Duration {
	p.lock.Lock()
	b := p.backoffs[nodeID]
	if b == nil {
		b = p.newBackoff()
		if p.current().Contains(nodeID) {
			p.backoffs[nodeID] = b
		}
	}
	delay := b.NextBackOff()
	p.lock.Unlock()

	health.MarkUnhealthy(now, delay)
	return delay
}

func (p *healthPolicy) success(nodeID NodeID, health *NodeHealth, now time.Time) {
	p.lock.Lock()
	delete(p.backoffs, nodeID)
	p.lock.Unlock()

	health.MarkHealthy(now)
}

// retain drops the backoff state of every node not in the current topology.
// It must be called after every topology swap.
func (p *healthPolicy) retain() {
	p.lock.Lock()
	topology := p.current()
	for nodeID := range p.backoffs {
		if !topology.Contains(nodeID) {
			delete(p.backoffs, nodeID)
		}
	}
	p.lock.Unlock()
}
