package client

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func staticTopology(topology *Topology) func() *Topology {
	return func() *Topology {
		return topology
	}
}

func TestHealthPolicyBacksOffExponentially(t *testing.T) {
	policy := newHealthPolicy(HealthPolicyOptions{
		MinBackoff: 250 * time.Millisecond,
		MaxBackoff: 2 * time.Second,
	}, staticTopology(testNodeTopology(t, 1)))

	nodeID := NewNodeID(3)
	health := newNodeHealth()
	now := time.Now()

	var delays []time.Duration
	for i := 0; i < 6; i++ {
		delays = append(delays, policy.failure(nodeID, health, now))
	}

	assert.Equal(t, []time.Duration{
		250 * time.Millisecond,
		500 * time.Millisecond,
		time.Second,
		2 * time.Second,
		2 * time.Second,
		2 * time.Second,
	}, delays)
	assert.False(t, health.IsHealthy(now.Add(time.Second)))

	policy.success(nodeID, health, now)
	assert.True(t, health.IsHealthy(now))
	assert.Equal(t, 250*time.Millisecond, policy.failure(nodeID, health, now))
}

func TestHealthPolicyDefaults(t *testing.T) {
	policy := newHealthPolicy(HealthPolicyOptions{}, staticTopology(emptyTopology()))
	assert.Equal(t, DefaultMinNodeBackoff, policy.minBackoff)
	assert.Equal(t, DefaultMaxNodeBackoff, policy.maxBackoff)
}

func TestHealthPolicyRetain(t *testing.T) {
	current := testTopology(t, map[string]NodeID{
		"10.0.0.1:50211":  NewNodeID(3),
		"10.0.0.40:50211": NewNodeID(40),
	})
	policy := newHealthPolicy(HealthPolicyOptions{}, func() *Topology {
		return current
	})
	now := time.Now()

	policy.failure(NewNodeID(3), newNodeHealth(), now)
	policy.failure(NewNodeID(40), newNodeHealth(), now)
	assert.Len(t, policy.backoffs, 2)

	current = testNodeTopology(t, 1)
	policy.retain()

	assert.Len(t, policy.backoffs, 1)
	assert.Contains(t, policy.backoffs, NewNodeID(3))
}

func TestHealthPolicyFailureAfterNodeRemoved(t *testing.T) {
	policy := newHealthPolicy(HealthPolicyOptions{
		MinBackoff: 250 * time.Millisecond,
		MaxBackoff: 2 * time.Second,
	}, staticTopology(testNodeTopology(t, 1)))

	// node 0.0.40 was dropped by a swap whose retain already ran, but a
	// caller still holds its health from the old topology
	health := newNodeHealth()
	now := time.Now()

	assert.Equal(t, 250*time.Millisecond, policy.failure(NewNodeID(40), health, now))
	assert.Equal(t, 250*time.Millisecond, policy.failure(NewNodeID(40), health, now))
	assert.False(t, health.IsHealthy(now))
	assert.Empty(t, policy.backoffs)
}
