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
	"math/rand"
	"time"

	"golang.org/x/exp/slices"
)

// Topology is an immutable snapshot of the node table.  The ids, health and
// connections slices are index aligned, and idToIndex maps every id to its
// position.  A Topology is never modified after construction, changes always
// produce a new one.
type Topology struct {
	idToIndex   map[NodeID]int
	ids         []NodeID
	health      []*NodeHealth
	connections []*NodeConnection
}

// nodeEntry is one node of incoming address data.
type nodeEntry struct {
	ID        NodeID
	Addresses []HostAddress
}

type connDialer func(addresses []HostAddress) (*NodeConnection, error)

// topologyDiff describes the connection bookkeeping of a merge.
type topologyDiff struct {
	// Created holds the connections built for the new topology.
	Created []*NodeConnection
	// Released holds the connections of the old topology which the new one
	// no longer references.
	Released []*NodeConnection
	Reused   int
}

func emptyTopology() *Topology {
	return &Topology{
		idToIndex: make(map[NodeID]int),
	}
}

// mergeTopology builds the successor of old from entries, which must have
// unique ids.  For a node present in both, the NodeHealth is always carried
// over by pointer and the NodeConnection is reused when the address sets are
// equal.  New nodes get fresh state, and nodes missing from entries are
// dropped.  The order of the result follows entries.
func mergeTopology(old *Topology, entries []nodeEntry, dial connDialer) (*Topology, *topologyDiff, error) {
	topology := &Topology{
		idToIndex:   make(map[NodeID]int, len(entries)),
		ids:         make([]NodeID, 0, len(entries)),
		health:      make([]*NodeHealth, 0, len(entries)),
		connections: make([]*NodeConnection, 0, len(entries)),
	}
	diff := &topologyDiff{}

	for _, entry := range entries {
		var health *NodeHealth
		var conn *NodeConnection

		if oldIdx, ok := old.idToIndex[entry.ID]; ok {
			health = old.health[oldIdx]

			oldConn := old.connections[oldIdx]
			if sameAddresses(oldConn.addresses, entry.Addresses) {
				conn = oldConn
				diff.Reused++
			}
		}

		if health == nil {
			health = newNodeHealth()
		}

		if conn == nil {
			newConn, err := dial(entry.Addresses)
			if err != nil {
				for _, created := range diff.Created {
					_ = created.Close()
				}
				return nil, nil, err
			}

			conn = newConn
			diff.Created = append(diff.Created, newConn)
		}

		topology.idToIndex[entry.ID] = len(topology.ids)
		topology.ids = append(topology.ids, entry.ID)
		topology.health = append(topology.health, health)
		topology.connections = append(topology.connections, conn)
	}

	kept := make(map[*NodeConnection]struct{}, len(topology.connections))
	for _, conn := range topology.connections {
		kept[conn] = struct{}{}
	}
	for _, conn := range old.connections {
		if _, ok := kept[conn]; !ok {
			diff.Released = append(diff.Released, conn)
		}
	}

	return topology, diff, nil
}

// entriesFromAddressMap groups a `{address: node}` map by node, unioning the
// addresses of each node.  Nodes are ordered by id.
func entriesFromAddressMap(addresses map[string]NodeID) ([]nodeEntry, error) {
	grouped := make(map[NodeID][]HostAddress)
	for addressStr, nodeID := range addresses {
		address, err := ParseHostAddress(addressStr)
		if err != nil {
			return nil, err
		}

		grouped[nodeID] = append(grouped[nodeID], address)
	}

	entries := make([]nodeEntry, 0, len(grouped))
	for nodeID, nodeAddrs := range grouped {
		entries = append(entries, nodeEntry{
			ID:        nodeID,
			Addresses: canonicalAddresses(nodeAddrs),
		})
	}

	slices.SortFunc(entries, func(a, b nodeEntry) int {
		return compareNodeID(a.ID, b.ID)
	})

	return entries, nil
}

func (t *Topology) Len() int {
	return len(t.ids)
}

// NodeIDs returns every node id in topology order.
func (t *Topology) NodeIDs() []NodeID {
	out := make([]NodeID, len(t.ids))
	copy(out, t.ids)
	return out
}

func (t *Topology) Contains(nodeID NodeID) bool {
	_, ok := t.idToIndex[nodeID]
	return ok
}

func (t *Topology) indexOf(nodeID NodeID) (int, error) {
	idx, ok := t.idToIndex[nodeID]
	if !ok {
		return -1, &NodeAccountUnknownError{NodeID: nodeID}
	}
	return idx, nil
}

func (t *Topology) Health(nodeID NodeID) (*NodeHealth, error) {
	idx, err := t.indexOf(nodeID)
	if err != nil {
		return nil, err
	}
	return t.health[idx], nil
}

func (t *Topology) Connection(nodeID NodeID) (*NodeConnection, error) {
	idx, err := t.indexOf(nodeID)
	if err != nil {
		return nil, err
	}
	return t.connections[idx], nil
}

// ChannelFor routes to a node by id.  Unknown ids yield an error matching
// ErrNodeAccountUnknown.
func (t *Topology) ChannelFor(nodeID NodeID) (NodeID, *NodeConnection, error) {
	idx, err := t.indexOf(nodeID)
	if err != nil {
		return NodeID{}, nil, err
	}
	return t.ids[idx], t.connections[idx], nil
}

// NodeIndexesForIDs resolves a list of ids, failing on the first unknown one.
func (t *Topology) NodeIndexesForIDs(nodeIDs []NodeID) ([]int, error) {
	out := make([]int, len(nodeIDs))
	for i, nodeID := range nodeIDs {
		idx, err := t.indexOf(nodeID)
		if err != nil {
			return nil, err
		}
		out[i] = idx
	}
	return out, nil
}

// HealthyNodeIndexes returns the indexes of every node which is not backing off.
func (t *Topology) HealthyNodeIndexes(now time.Time) []int {
	var out []int
	for idx, health := range t.health {
		if health.IsHealthy(now) {
			out = append(out, idx)
		}
	}
	return out
}

// HealthyNodeIDs draws ceil(n/3) distinct nodes at random from the n healthy
// nodes.  When no node is healthy, every node is eligible instead, so the
// result is only empty for an empty topology.
func (t *Topology) HealthyNodeIDs(now time.Time) []NodeID {
	eligible := t.HealthyNodeIndexes(now)
	if len(eligible) == 0 {
		eligible = make([]int, len(t.ids))
		for idx := range eligible {
			eligible[idx] = idx
		}
	}

	sampleSize := (len(eligible) + 2) / 3

	out := make([]NodeID, 0, sampleSize)
	for _, pick := range randomIndexes(len(eligible), sampleSize) {
		out = append(out, t.ids[eligible[pick]])
	}
	return out
}

// Addresses returns an `{address: node}` view of the topology.
func (t *Topology) Addresses() map[string]NodeID {
	out := make(map[string]NodeID)
	for idx, conn := range t.connections {
		for _, address := range conn.addresses {
			if _, ok := out[address.String()]; !ok {
				out[address.String()] = t.ids[idx]
			}
		}
	}
	return out
}

// randomIndexes picks amount distinct values from [0, n) using a partial
// Fisher-Yates shuffle.
func randomIndexes(n, amount int) []int {
	if amount > n {
		amount = n
	}

	idxs := make([]int, n)
	for i := range idxs {
		idxs[i] = i
	}

	for i := 0; i < amount; i++ {
		j := i + rand.Intn(n-i)
		idxs[i], idxs[j] = idxs[j], idxs[i]
	}

	return idxs[:amount]
}
