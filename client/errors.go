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
	"errors"
	"fmt"
)

var (
	ErrParse              = errors.New("parse error")
	ErrUnknownNetwork     = fmt.Errorf("unknown network name: %w", ErrParse)
	ErrNodeAccountUnknown = errors.New("node account unknown")
	ErrNoAddresses        = errors.New("node has no usable addresses")
	ErrClosed             = errors.New("network manager closed")
	ErrNoMirrorNetwork    = errors.New("no mirror network configured")
	ErrEmptyAddressBook   = errors.New("address book contained no usable nodes")
)

// NodeAccountUnknownError is returned when a request is routed to a node which
// is not part of the current topology.
type NodeAccountUnknownError struct {
	NodeID NodeID
}

func (e *NodeAccountUnknownError) Error() string {
	return fmt.Sprintf("node account %s is unknown", e.NodeID)
}

func (e *NodeAccountUnknownError) Is(target error) bool {
	return target == ErrNodeAccountUnknown
}
