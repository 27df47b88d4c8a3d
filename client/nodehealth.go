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
	"sync/atomic"
	"time"
)

// recentlyUsedWindow is how long after its last use a node still counts as
// recently used.
const recentlyUsedWindow = 15 * time.Minute

// NodeHealth holds the liveness hints for a single node.  A NodeHealth is
// shared by pointer between every Topology that contains its node, so health
// learned through an old snapshot remains visible after a refresh.
//
// Both fields are unix nanosecond timestamps, zero meaning unset.  They are
// advisory only, so no ordering is enforced between them.
type NodeHealth struct {
	unhealthyUntil atomic.Int64
	lastUsed       atomic.Int64
}

func newNodeHealth() *NodeHealth {
	return &NodeHealth{}
}

// MarkUsed records that the node was selected to serve a request.
func (h *NodeHealth) MarkUsed(now time.Time) {
	h.lastUsed.Store(now.UnixNano())
}

// MarkUnhealthy excludes the node from selection until now+backoff.
func (h *NodeHealth) MarkUnhealthy(now time.Time, backoff time.Duration) {
	h.unhealthyUntil.Store(now.Add(backoff).UnixNano())
}

// MarkHealthy clears any pending backoff and records the use.
func (h *NodeHealth) MarkHealthy(now time.Time) {
	h.unhealthyUntil.Store(0)
	h.lastUsed.Store(now.UnixNano())
}

func (h *NodeHealth) IsHealthy(now time.Time) bool {
	return h.unhealthyUntil.Load() < now.UnixNano()
}

func (h *NodeHealth) RecentlyUsed(now time.Time) bool {
	lastUsed := h.lastUsed.Load()
	if lastUsed == 0 {
		return false
	}
	return lastUsed > now.Add(-recentlyUsedWindow).UnixNano()
}

// UnhealthyUntil returns the zero time when the node has never been marked
// unhealthy or was since marked healthy.
func (h *NodeHealth) UnhealthyUntil() time.Time {
	return nanosToTime(h.unhealthyUntil.Load())
}

func (h *NodeHealth) LastUsed() time.Time {
	return nanosToTime(h.lastUsed.Load())
}

func nanosToTime(nanos int64) time.Time {
	if nanos == 0 {
		return time.Time{}
	}
	return time.Unix(0, nanos)
}
