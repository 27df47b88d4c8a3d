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
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/exp/slices"

	"github.com/ledgerkit/nodenet/utils/sliceutils"
)

const (
	// DefaultTLSPort is used for user supplied endpoints which omit a port.
	DefaultTLSPort uint16 = 443

	// PlaintextNodePort is the consensus node port learned from the address book.
	PlaintextNodePort uint16 = 50211

	// LegacyNodePort is an alias of PlaintextNodePort still advertised by some
	// address book entries.
	LegacyNodePort uint16 = 50111
)

// HostAddress is a resolved host/port pair.  It is a plain value and can be
// used as a map key.  A HostAddress with an empty Host is not a valid address
// and does not survive String/ParseHostAddress, use NewHostAddress or
// ParseHostAddress to build checked values.
type HostAddress struct {
	Host string
	Port uint16
}

// NewHostAddress returns the address host:port, rejecting an empty host.
func NewHostAddress(host string, port uint16) (HostAddress, error) {
	if host == "" {
		return HostAddress{}, errors.Wrap(ErrParse, "empty host")
	}

	return HostAddress{Host: host, Port: port}, nil
}

func (a HostAddress) String() string {
	return fmt.Sprintf("%s:%d", a.Host, a.Port)
}

func compareHostAddress(a, b HostAddress) int {
	if c := strings.Compare(a.Host, b.Host); c != 0 {
		return c
	}
	if a.Port < b.Port {
		return -1
	} else if a.Port > b.Port {
		return 1
	}
	return 0
}

// ParseHostAddress parses a `host[:port]` string.  The string is split on the
// last colon, and a missing port defaults to DefaultTLSPort.
func ParseHostAddress(s string) (HostAddress, error) {
	idx := strings.LastIndexByte(s, ':')
	if idx < 0 {
		if s == "" {
			return HostAddress{}, errors.Wrap(ErrParse, "empty address")
		}

		return HostAddress{Host: s, Port: DefaultTLSPort}, nil
	}

	host, portStr := s[:idx], s[idx+1:]
	if host == "" {
		return HostAddress{}, errors.Wrapf(ErrParse, "address `%s` has an empty host", s)
	}

	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return HostAddress{}, errors.Wrapf(ErrParse, "address `%s` has an invalid port", s)
	}

	return HostAddress{Host: host, Port: uint16(port)}, nil
}

// parseHostAddressLenient is used for mirror endpoints, where anything that
// isn't a valid port falls back to the TLS port rather than failing.
func parseHostAddressLenient(s string) HostAddress {
	idx := strings.LastIndexByte(s, ':')
	if idx < 0 {
		return HostAddress{Host: s, Port: DefaultTLSPort}
	}

	port, err := strconv.ParseUint(s[idx+1:], 10, 16)
	if err != nil {
		return HostAddress{Host: s[:idx], Port: DefaultTLSPort}
	}

	return HostAddress{Host: s[:idx], Port: uint16(port)}
}

// canonicalAddresses returns a sorted, duplicate free copy of addrs.  Two
// address sets are equal exactly when their canonical forms are.
func canonicalAddresses(addrs []HostAddress) []HostAddress {
	out := sliceutils.RemoveDuplicates(addrs)
	slices.SortFunc(out, compareHostAddress)
	return out
}

func sameAddresses(a, b []HostAddress) bool {
	return slices.Equal(canonicalAddresses(a), canonicalAddresses(b))
}

// normalizeNodePort maps the ports advertised by the address book onto the
// plaintext consensus port.  It returns false for endpoints which should not
// be used for node connections.
func normalizeNodePort(port uint16) (uint16, bool) {
	switch port {
	case 0, LegacyNodePort, PlaintextNodePort:
		return PlaintextNodePort, true
	default:
		return 0, false
	}
}
