/*
Copyright 2023-Present Couchbase, Inc.

Use of this software is governed by the Business Source License included in
the file licenses/BSL-Couchbase.txt.  As of the Change Date specified in that
file, in accordance with the Business Source License, use of this software will
be governed by the Apache License, Version 2.0, included in the file
licenses/APL2.txt.
*/

package metrics

import (
	"runtime/debug"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

type NetMetrics struct {
	Refreshes          metric.Int64Counter
	RefreshFailures    metric.Int64Counter
	RefreshDuration    metric.Float64Histogram
	ConnectionsCreated metric.Int64Counter
	ConnectionsReused  metric.Int64Counter
	NodesUnhealthy     metric.Int64Counter
}

var (
	netMetrics     *NetMetrics
	netMetricsLock sync.Mutex
)

func GetNetMetrics() *NetMetrics {
	netMetricsLock.Lock()

	if netMetrics != nil {
		netMetricsLock.Unlock()
		return netMetrics
	}

	netMetrics = newNetMetrics()

	netMetricsLock.Unlock()
	return netMetrics
}

func getBuildVersion() string {
	info, ok := debug.ReadBuildInfo()
	if !ok || info.Main.Version == "" {
		return "(devel)"
	}
	return info.Main.Version
}

func newNetMetrics() *NetMetrics {
	meter := otel.Meter(
		"github.com/ledgerkit/nodenet",
		metric.WithInstrumentationVersion(getBuildVersion()))

	refreshes, _ := meter.Int64Counter("network_refreshes_total",
		metric.WithDescription("Address book refreshes which were applied."))
	refreshFailures, _ := meter.Int64Counter("network_refresh_failures_total",
		metric.WithDescription("Address book refreshes which failed and were skipped."))
	refreshDuration, _ := meter.Float64Histogram("network_refresh_duration_seconds",
		metric.WithUnit("s"))
	connectionsCreated, _ := meter.Int64Counter("node_connections_created_total")
	connectionsReused, _ := meter.Int64Counter("node_connections_reused_total")
	nodesUnhealthy, _ := meter.Int64Counter("node_marked_unhealthy_total")

	return &NetMetrics{
		Refreshes:          refreshes,
		RefreshFailures:    refreshFailures,
		RefreshDuration:    refreshDuration,
		ConnectionsCreated: connectionsCreated,
		ConnectionsReused:  connectionsReused,
		NodesUnhealthy:     nodesUnhealthy,
	}
}
