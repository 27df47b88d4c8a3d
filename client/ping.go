package client

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// maxConcurrentPings bounds the number of nodes PingAll connects to at once.
const maxConcurrentPings = 8

// Ping connects to a node and waits for the channel to become ready.  The
// outcome is recorded in the node health.
func (m *NetworkManager) Ping(ctx context.Context, nodeID NodeID) error {
	topology := m.topology.Load()

	_, conn, err := topology.ChannelFor(nodeID)
	if err != nil {
		return err
	}

	health, err := topology.Health(nodeID)
	if err != nil {
		return err
	}

	err = conn.WaitReady(ctx)
	if err != nil {
		delay := m.healthPolicy.failure(nodeID, health, time.Now())
		m.metrics.NodesUnhealthy.Add(context.Background(), 1)

		m.logger.Debug("node failed ping",
			zap.Stringer("nodeId", nodeID),
			zap.Duration("backoff", delay),
			zap.Error(err))

		return errors.Wrapf(err, "failed to ping node %s", nodeID)
	}

	m.healthPolicy.success(nodeID, health, time.Now())
	return nil
}

// PingAll pings every node of the current topology, failing with the first
// error encountered.  Remaining pings are cancelled on failure.
func (m *NetworkManager) PingAll(ctx context.Context) error {
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(maxConcurrentPings)

	for _, nodeID := range m.AllNodeIDs() {
		nodeID := nodeID
		group.Go(func() error {
			return m.Ping(groupCtx, nodeID)
		})
	}

	return group.Wait()
}
