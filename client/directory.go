package client

import (
	"context"

	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/ledgerkit/nodenet/contrib/addressbook"
	"github.com/ledgerkit/nodenet/utils/sliceutils"
)

// DirectoryFetcher reads the current address book from the directory
// service reachable through cc.
type DirectoryFetcher interface {
	FetchNodeAddresses(ctx context.Context, cc grpc.ClientConnInterface) ([]*addressbook.NodeAddress, error)
}

var _ DirectoryFetcher = (*addressbook.Fetcher)(nil)

func nodeIDFromAccount(account addressbook.AccountID) NodeID {
	return NodeID{
		Shard: uint64(account.Shard),
		Realm: uint64(account.Realm),
		Num:   uint64(account.Num),
	}
}

// entriesFromAddressBook converts an address book into merge entries.  Only
// endpoints on the plaintext node port (or one of its aliases) are kept.
// Entries for the same node are unioned at the position of the first one, and
// nodes which end up with no usable endpoint are skipped.
func entriesFromAddressBook(nodes []*addressbook.NodeAddress, logger *zap.Logger) []nodeEntry {
	entries := make([]nodeEntry, 0, len(nodes))
	entryIdxs := make(map[NodeID]int, len(nodes))

	for _, node := range nodes {
		nodeID := nodeIDFromAccount(node.NodeAccountID)

		var nodeAddrs []HostAddress
		for _, endpoint := range node.ServiceEndpoints {
			if endpoint.Port < 0 || endpoint.Port > 0xffff {
				continue
			}

			port, ok := normalizeNodePort(uint16(endpoint.Port))
			if !ok {
				continue
			}

			address, err := NewHostAddress(endpoint.Host(), port)
			if err != nil {
				continue
			}

			nodeAddrs = append(nodeAddrs, address)
		}

		if entryIdx, ok := entryIdxs[nodeID]; ok {
			entries[entryIdx].Addresses = sliceutils.Union(entries[entryIdx].Addresses, nodeAddrs)
			continue
		}

		entryIdxs[nodeID] = len(entries)
		entries = append(entries, nodeEntry{
			ID:        nodeID,
			Addresses: nodeAddrs,
		})
	}

	out := entries[:0]
	for _, entry := range entries {
		if len(entry.Addresses) == 0 {
			logger.Debug("skipping node without usable endpoints",
				zap.Stringer("nodeId", entry.ID))
			continue
		}

		entry.Addresses = canonicalAddresses(entry.Addresses)
		out = append(out, entry)
	}

	return out
}
