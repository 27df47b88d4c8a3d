/*
Copyright 2022-Present Couchbase, Inc.

Use of this software is governed by the Business Source License included in
the file licenses/BSL-Couchbase.txt.  As of the Change Date specified in that
file, in accordance with the Business Source License, use of this software will
be governed by the Apache License, Version 2.0, included in the file
licenses/APL2.txt.
*/

package addressbook

import (
	"fmt"
	"net"
)

type FileID struct {
	Shard int64
	Realm int64
	Num   int64
}

// AddressBookFileID is the file holding the full node address book.
var AddressBookFileID = FileID{Shard: 0, Realm: 0, Num: 102}

type AccountID struct {
	Shard int64
	Realm int64
	Num   int64
}

func (a AccountID) String() string {
	return fmt.Sprintf("%d.%d.%d", a.Shard, a.Realm, a.Num)
}

type ServiceEndpoint struct {
	IPAddressV4 []byte
	Port        int32
	DomainName  string
}

// Host returns the dotted IPv4 address of the endpoint, falling back to its
// domain name.  An empty string means the endpoint has no usable host.
func (e ServiceEndpoint) Host() string {
	if len(e.IPAddressV4) == net.IPv4len {
		return net.IP(e.IPAddressV4).String()
	}
	return e.DomainName
}

type NodeAddress struct {
	NodeID           int64
	NodeAccountID    AccountID
	RSAPublicKey     string
	CertHash         []byte
	ServiceEndpoints []ServiceEndpoint
	Description      string
}
