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
	"crypto/tls"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
)

// MirrorEndpointSet is the set of directory service endpoints used to refresh
// the address book.  It is immutable, replacing the mirror network builds a
// new set.
type MirrorEndpointSet struct {
	addresses []string
	conn      *NodeConnection
}

// mirrorDialOptions builds the dial options for mirror channels.  Mirrors
// are served over TLS unless plaintext is explicitly requested.
func mirrorDialOptions(plaintext bool, extra []grpc.DialOption) []grpc.DialOption {
	var dialOpts []grpc.DialOption
	if plaintext {
		dialOpts = append(dialOpts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	} else {
		dialOpts = append(dialOpts, grpc.WithTransportCredentials(credentials.NewTLS(&tls.Config{
			MinVersion: tls.VersionTLS12,
		})))
	}

	return append(dialOpts, extra...)
}

// newMirrorEndpointSet creates the set for addresses.  An empty list gives an
// empty set with no channel.
func newMirrorEndpointSet(addresses []string, dialOpts []grpc.DialOption) (*MirrorEndpointSet, error) {
	set := &MirrorEndpointSet{
		addresses: make([]string, len(addresses)),
	}
	copy(set.addresses, addresses)

	if len(addresses) == 0 {
		return set, nil
	}

	hostAddrs := make([]HostAddress, 0, len(addresses))
	for _, address := range addresses {
		hostAddrs = append(hostAddrs, parseHostAddressLenient(address))
	}

	conn, err := dialNodeConnection(hostAddrs, dialOpts)
	if err != nil {
		return nil, err
	}
	set.conn = conn

	return set, nil
}

func (s *MirrorEndpointSet) Len() int {
	return len(s.addresses)
}

// Addresses returns the addresses in the order they were configured.
func (s *MirrorEndpointSet) Addresses() []string {
	out := make([]string, len(s.addresses))
	copy(out, s.addresses)
	return out
}

// Channel returns the channel to the mirror network, nil for an empty set.
func (s *MirrorEndpointSet) Channel() *NodeConnection {
	return s.conn
}

func (s *MirrorEndpointSet) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}
