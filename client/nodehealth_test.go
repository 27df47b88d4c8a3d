package client

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNodeHealth(t *testing.T) {
	now := time.Now()
	health := newNodeHealth()

	assert.True(t, health.IsHealthy(now))
	assert.False(t, health.RecentlyUsed(now))
	assert.True(t, health.UnhealthyUntil().IsZero())

	health.MarkUsed(now)
	assert.True(t, health.RecentlyUsed(now.Add(time.Minute)))
	assert.False(t, health.RecentlyUsed(now.Add(recentlyUsedWindow+time.Second)))

	health.MarkUnhealthy(now, time.Second)
	assert.False(t, health.IsHealthy(now))
	assert.False(t, health.IsHealthy(now.Add(time.Second)))
	assert.True(t, health.IsHealthy(now.Add(time.Second+time.Nanosecond)))
	assert.Equal(t, now.Add(time.Second).UnixNano(), health.UnhealthyUntil().UnixNano())

	later := now.Add(time.Millisecond)
	health.MarkHealthy(later)
	assert.True(t, health.IsHealthy(later))
	assert.Equal(t, later.UnixNano(), health.LastUsed().UnixNano())
}
