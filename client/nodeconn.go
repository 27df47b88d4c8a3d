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
	"fmt"
	"math/rand"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
)

// NodeConnection is a multiplexed channel to one logical node which may be
// reachable through several equivalent addresses.  Each call is routed to one
// of the addresses picked uniformly at random.
type NodeConnection struct {
	addresses []HostAddress
	conns     []*grpc.ClientConn

	closeOnce sync.Once
	closeErr  error
}

// Verify that NodeConnection can be used as a grpc channel
var _ grpc.ClientConnInterface = (*NodeConnection)(nil)

// dialNodeConnection creates one lazily connecting grpc client per address.
// No network activity happens until the first call or WaitReady.
func dialNodeConnection(addresses []HostAddress, dialOpts []grpc.DialOption) (*NodeConnection, error) {
	addresses = canonicalAddresses(addresses)
	if len(addresses) == 0 {
		return nil, ErrNoAddresses
	}

	conns := make([]*grpc.ClientConn, 0, len(addresses))
	for _, address := range addresses {
		conn, err := grpc.NewClient(address.String(), dialOpts...)
		if err != nil {
			for _, conn := range conns {
				_ = conn.Close()
			}
			return nil, errors.Wrapf(err, "failed to create channel to %s", address)
		}

		conns = append(conns, conn)
	}

	return &NodeConnection{
		addresses: addresses,
		conns:     conns,
	}, nil
}

// Addresses returns the sorted address set of this connection.
func (c *NodeConnection) Addresses() []HostAddress {
	out := make([]HostAddress, len(c.addresses))
	copy(out, c.addresses)
	return out
}

func (c *NodeConnection) pickConn() *grpc.ClientConn {
	if len(c.conns) == 1 {
		return c.conns[0]
	}
	return c.conns[rand.Intn(len(c.conns))]
}

func (c *NodeConnection) Invoke(ctx context.Context, method string, args any, reply any, opts ...grpc.CallOption) error {
	return c.pickConn().Invoke(ctx, method, args, reply, opts...)
}

func (c *NodeConnection) NewStream(ctx context.Context, desc *grpc.StreamDesc, method string, opts ...grpc.CallOption) (grpc.ClientStream, error) {
	return c.pickConn().NewStream(ctx, desc, method, opts...)
}

// WaitReady forces one of the underlying channels to connect and waits for it
// to either become ready or fail.
func (c *NodeConnection) WaitReady(ctx context.Context) error {
	conn := c.pickConn()
	conn.Connect()

	for {
		state := conn.GetState()
		switch state {
		case connectivity.Ready:
			return nil
		case connectivity.TransientFailure:
			return fmt.Errorf("failed to connect to %s", conn.Target())
		case connectivity.Shutdown:
			return fmt.Errorf("channel to %s is shut down", conn.Target())
		}

		if !conn.WaitForStateChange(ctx, state) {
			return ctx.Err()
		}
	}
}

// Close shuts down every underlying channel, waiting for all of them.  It is
// safe to call Close multiple times.
func (c *NodeConnection) Close() error {
	c.closeOnce.Do(func() {
		errs := make([]error, len(c.conns))

		var wg sync.WaitGroup
		for connIdx, conn := range c.conns {
			wg.Add(1)
			go func(connIdx int, conn *grpc.ClientConn) {
				defer wg.Done()
				errs[connIdx] = conn.Close()
			}(connIdx, conn)
		}
		wg.Wait()

		c.closeErr = multierr.Combine(errs...)
	})

	return c.closeErr
}
