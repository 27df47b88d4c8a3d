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
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/ledgerkit/nodenet/contrib/addressbook"
	"github.com/ledgerkit/nodenet/pkg/interceptors"
	"github.com/ledgerkit/nodenet/pkg/metrics"
)

const (
	DefaultRefreshInterval      = 24 * time.Hour
	DefaultInitialRefreshDelay  = 10 * time.Second
	DefaultConnectionDrainDelay = 30 * time.Second
)

type NetworkOptions struct {
	Logger *zap.Logger

	// RefreshInterval defaults to DefaultRefreshInterval, set DisableRefresh
	// to never refresh from the mirror network.
	RefreshInterval     time.Duration
	DisableRefresh      bool
	InitialRefreshDelay time.Duration

	// ConnectionDrainDelay is how long connections dropped from the topology
	// stay open for calls already routed to them.
	ConnectionDrainDelay time.Duration

	// MirrorAddresses replaces the mirror network of a preset.
	MirrorAddresses  []string
	DirectoryFetcher DirectoryFetcher

	HealthPolicy HealthPolicyOptions

	NodeDialOptions   []grpc.DialOption
	MirrorDialOptions []grpc.DialOption
	MirrorPlaintext   bool

	Debug bool
}

// NetworkManager owns the consensus node topology of a client.  Readers load
// the current Topology without locking.  Writers build a successor and
// publish it with a compare-and-swap, so a Topology returned from any method
// stays valid and consistent even while a refresh is running.
type NetworkManager struct {
	id      uuid.UUID
	logger  *zap.Logger
	metrics *metrics.NetMetrics

	topology     *atomicTopology
	mirror       atomic.Pointer[MirrorEndpointSet]
	fetcher      DirectoryFetcher
	healthPolicy *healthPolicy
	refresher    *refreshScheduler

	nodeDialOpts   []grpc.DialOption
	mirrorDialOpts []grpc.DialOption
	drainDelay     time.Duration

	lock        sync.Mutex
	closed      bool
	drainCtx    context.Context
	drainCancel func()
	drainWg     sync.WaitGroup
}

// ForPreset creates a manager for one of the public networks: mainnet,
// testnet or previewnet.
func ForPreset(name string, opts *NetworkOptions) (*NetworkManager, error) {
	preset, err := presetByName(name)
	if err != nil {
		return nil, err
	}

	if opts == nil {
		opts = &NetworkOptions{}
	}

	mirrorAddrs := preset.Mirror
	if len(opts.MirrorAddresses) > 0 {
		mirrorAddrs = opts.MirrorAddresses
	}

	return newNetworkManager(preset.entries(), mirrorAddrs, opts)
}

func ForMainnet(opts *NetworkOptions) (*NetworkManager, error) {
	return ForPreset(mainnetPreset.Name, opts)
}

func ForTestnet(opts *NetworkOptions) (*NetworkManager, error) {
	return ForPreset(testnetPreset.Name, opts)
}

func ForPreviewnet(opts *NetworkOptions) (*NetworkManager, error) {
	return ForPreset(previewnetPreset.Name, opts)
}

// ForAddresses creates a manager for an explicit `{address: node}` map.  The
// mirror network is taken from the options and may be empty.
func ForAddresses(addresses map[string]NodeID, opts *NetworkOptions) (*NetworkManager, error) {
	entries, err := entriesFromAddressMap(addresses)
	if err != nil {
		return nil, err
	}

	if opts == nil {
		opts = &NetworkOptions{}
	}

	return newNetworkManager(entries, opts.MirrorAddresses, opts)
}

func newNetworkManager(entries []nodeEntry, mirrorAddrs []string, opts *NetworkOptions) (*NetworkManager, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	id := uuid.New()
	logger = logger.Named("network").With(zap.String("managerId", id.String()))

	fetcher := opts.DirectoryFetcher
	if fetcher == nil {
		fetcher = addressbook.NewFetcher(addressbook.FetcherOptions{
			Timeout: time.Minute,
			Logger:  logger.Named("addressbook"),
		})
	}

	drainDelay := opts.ConnectionDrainDelay
	if drainDelay <= 0 {
		drainDelay = DefaultConnectionDrainDelay
	}

	nodeDialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
	}
	if opts.Debug {
		debugInterceptor := interceptors.NewDebugInterceptor(logger.Named("grpc-debug"))
		nodeDialOpts = append(nodeDialOpts,
			grpc.WithChainUnaryInterceptor(debugInterceptor.UnaryClientInterceptor()),
			grpc.WithChainStreamInterceptor(debugInterceptor.StreamClientInterceptor()))
	}
	nodeDialOpts = append(nodeDialOpts, opts.NodeDialOptions...)

	mirrorDialOpts := mirrorDialOptions(opts.MirrorPlaintext, append([]grpc.DialOption{
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
	}, opts.MirrorDialOptions...))

	drainCtx, drainCancel := context.WithCancel(context.Background())

	m := &NetworkManager{
		id:             id,
		logger:         logger,
		metrics:        metrics.GetNetMetrics(),
		fetcher:        fetcher,
		nodeDialOpts:   nodeDialOpts,
		mirrorDialOpts: mirrorDialOpts,
		drainDelay:     drainDelay,
		drainCtx:       drainCtx,
		drainCancel:    drainCancel,
	}

	initial, diff, err := mergeTopology(emptyTopology(), entries, m.dialNode)
	if err != nil {
		drainCancel()
		return nil, err
	}
	m.topology = newAtomicTopology(initial)
	m.healthPolicy = newHealthPolicy(opts.HealthPolicy, m.topology.Load)
	m.recordDiff(diff)

	mirror, err := newMirrorEndpointSet(mirrorAddrs, mirrorDialOpts)
	if err != nil {
		drainCancel()
		for _, conn := range diff.Created {
			_ = conn.Close()
		}
		return nil, err
	}
	m.mirror.Store(mirror)

	m.refresher = newRefreshScheduler(&refreshSchedulerOptions{
		Logger:  logger.Named("refresher"),
		Refresh: m.Refresh,
	})

	if !opts.DisableRefresh {
		refreshInterval := opts.RefreshInterval
		if refreshInterval <= 0 {
			refreshInterval = DefaultRefreshInterval
		}

		initialDelay := opts.InitialRefreshDelay
		if initialDelay <= 0 {
			initialDelay = DefaultInitialRefreshDelay
		}

		m.refresher.Start(refreshInterval, initialDelay)
	}

	m.logger.Info("network manager started",
		zap.Int("numNodes", initial.Len()),
		zap.Strings("mirrorAddresses", mirror.Addresses()))

	return m, nil
}

func (m *NetworkManager) dialNode(addresses []HostAddress) (*NodeConnection, error) {
	return dialNodeConnection(addresses, m.nodeDialOpts)
}

func (m *NetworkManager) isClosed() bool {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.closed
}

// ID returns the unique id of this manager, which is attached to its logs.
func (m *NetworkManager) ID() uuid.UUID {
	return m.id
}

// Topology returns the current topology snapshot.
func (m *NetworkManager) Topology() *Topology {
	return m.topology.Load()
}

func (m *NetworkManager) HealthyNodeIDs() []NodeID {
	return m.topology.Load().HealthyNodeIDs(time.Now())
}

func (m *NetworkManager) AllNodeIDs() []NodeID {
	return m.topology.Load().NodeIDs()
}

func (m *NetworkManager) Addresses() map[string]NodeID {
	return m.topology.Load().Addresses()
}

// Channel returns the connection of a node in the current topology.
func (m *NetworkManager) Channel(nodeID NodeID) (*NodeConnection, error) {
	_, conn, err := m.topology.Load().ChannelFor(nodeID)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func (m *NetworkManager) MirrorAddresses() []string {
	return m.mirror.Load().Addresses()
}

func (m *NetworkManager) MirrorChannel() (grpc.ClientConnInterface, error) {
	conn := m.mirror.Load().Channel()
	if conn == nil {
		return nil, ErrNoMirrorNetwork
	}
	return conn, nil
}

// SetAddresses replaces the node table with an explicit `{address: node}`
// map.  Nodes whose addresses are unchanged keep their connection, and
// every surviving node keeps its health.
func (m *NetworkManager) SetAddresses(addresses map[string]NodeID) error {
	entries, err := entriesFromAddressMap(addresses)
	if err != nil {
		return err
	}

	return m.applyEntries(entries)
}

func (m *NetworkManager) applyEntries(entries []nodeEntry) error {
	if m.isClosed() {
		return ErrClosed
	}

	topology, diff, err := m.topology.update(func(old *Topology) (*Topology, *topologyDiff, error) {
		return mergeTopology(old, entries, m.dialNode)
	})
	if err != nil {
		return err
	}

	m.recordDiff(diff)
	m.healthPolicy.retain()

	for _, conn := range diff.Released {
		m.releaseLater(conn)
	}

	// Close can race with the swap, in which case it may have missed the
	// connections we just published.
	if m.isClosed() {
		for _, conn := range diff.Created {
			_ = conn.Close()
		}
		return ErrClosed
	}

	m.logger.Debug("applied new topology",
		zap.Int("numNodes", topology.Len()),
		zap.Int("created", len(diff.Created)),
		zap.Int("reused", diff.Reused),
		zap.Int("released", len(diff.Released)))

	return nil
}

func (m *NetworkManager) recordDiff(diff *topologyDiff) {
	ctx := context.Background()
	m.metrics.ConnectionsCreated.Add(ctx, int64(len(diff.Created)))
	m.metrics.ConnectionsReused.Add(ctx, int64(diff.Reused))
}

type closer interface {
	Close() error
}

// releaseLater closes c once the drain delay has passed, or immediately if
// the manager has been closed.
func (m *NetworkManager) releaseLater(c closer) {
	m.lock.Lock()
	if m.closed {
		m.lock.Unlock()
		_ = c.Close()
		return
	}
	m.drainWg.Add(1)
	m.lock.Unlock()

	go func() {
		defer m.drainWg.Done()

		timer := time.NewTimer(m.drainDelay)
		defer timer.Stop()

		select {
		case <-timer.C:
		case <-m.drainCtx.Done():
		}

		err := c.Close()
		if err != nil {
			m.logger.Debug("failed to close released connection", zap.Error(err))
		}
	}()
}

// SetMirrorAddresses replaces the mirror network used for refreshes.  The
// previous mirror channel is closed after the drain delay.
func (m *NetworkManager) SetMirrorAddresses(addresses []string) error {
	if m.isClosed() {
		return ErrClosed
	}

	mirror, err := newMirrorEndpointSet(addresses, m.mirrorDialOpts)
	if err != nil {
		return err
	}

	old := m.mirror.Swap(mirror)
	m.releaseLater(old)

	if m.isClosed() {
		_ = mirror.Close()
		return ErrClosed
	}

	return nil
}

// SetRefreshInterval changes the refresh period, restarting the refresh loop
// without an initial delay.  A zero interval disables refreshing.
func (m *NetworkManager) SetRefreshInterval(interval time.Duration) error {
	if m.isClosed() {
		return ErrClosed
	}

	m.refresher.SetInterval(interval)
	return nil
}

func (m *NetworkManager) RefreshInterval() time.Duration {
	return m.refresher.Interval()
}

// Refresh fetches the address book from the mirror network and merges it
// into the topology.  On any failure the current topology is left as is.
func (m *NetworkManager) Refresh(ctx context.Context) error {
	if m.isClosed() {
		return ErrClosed
	}

	stime := time.Now()

	err := m.refresh(ctx)
	if err != nil {
		m.metrics.RefreshFailures.Add(ctx, 1)
		return err
	}

	m.metrics.Refreshes.Add(ctx, 1)
	m.metrics.RefreshDuration.Record(ctx, time.Since(stime).Seconds())

	return nil
}

func (m *NetworkManager) refresh(ctx context.Context) error {
	conn := m.mirror.Load().Channel()
	if conn == nil {
		return ErrNoMirrorNetwork
	}

	nodes, err := m.fetcher.FetchNodeAddresses(ctx, conn)
	if err != nil {
		return errors.Wrap(err, "failed to fetch address book")
	}

	entries := entriesFromAddressBook(nodes, m.logger)
	if len(entries) == 0 {
		return ErrEmptyAddressBook
	}

	return m.applyEntries(entries)
}

func (m *NetworkManager) healthFor(nodeID NodeID) (*NodeHealth, error) {
	return m.topology.Load().Health(nodeID)
}

// MarkNodeUsed records that a request was sent to the node.
func (m *NetworkManager) MarkNodeUsed(nodeID NodeID) error {
	health, err := m.healthFor(nodeID)
	if err != nil {
		return err
	}

	health.MarkUsed(time.Now())
	return nil
}

// MarkNodeUnhealthy excludes the node from selection for its next backoff
// step, which is returned.
func (m *NetworkManager) MarkNodeUnhealthy(nodeID NodeID) (time.Duration, error) {
	health, err := m.healthFor(nodeID)
	if err != nil {
		return 0, err
	}

	m.metrics.NodesUnhealthy.Add(context.Background(), 1)
	return m.healthPolicy.failure(nodeID, health, time.Now()), nil
}

func (m *NetworkManager) MarkNodeHealthy(nodeID NodeID) error {
	health, err := m.healthFor(nodeID)
	if err != nil {
		return err
	}

	m.healthPolicy.success(nodeID, health, time.Now())
	return nil
}

func (m *NetworkManager) IsNodeHealthy(nodeID NodeID) (bool, error) {
	health, err := m.healthFor(nodeID)
	if err != nil {
		return false, err
	}

	return health.IsHealthy(time.Now()), nil
}

func (m *NetworkManager) NodeRecentlyUsed(nodeID NodeID) (bool, error) {
	health, err := m.healthFor(nodeID)
	if err != nil {
		return false, err
	}

	return health.RecentlyUsed(time.Now()), nil
}

// Close stops refreshing and closes every connection, including ones still
// draining.  Calling Close again has no effect.
func (m *NetworkManager) Close() error {
	m.lock.Lock()
	if m.closed {
		m.lock.Unlock()
		return nil
	}
	m.closed = true
	m.lock.Unlock()

	m.refresher.Stop()

	m.drainCancel()
	m.drainWg.Wait()

	var errs []error
	for _, conn := range m.topology.Load().connections {
		errs = append(errs, conn.Close())
	}
	errs = append(errs, m.mirror.Load().Close())

	m.logger.Info("network manager closed")

	return multierr.Combine(errs...)
}
