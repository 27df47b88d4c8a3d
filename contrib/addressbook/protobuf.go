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
	"net"
	"strings"

	"github.com/hashgraph/hedera-protobufs-go/services"
)

func (id FileID) ToProtobuf() *services.FileID {
	return &services.FileID{
		ShardNum: id.Shard,
		RealmNum: id.Realm,
		FileNum:  id.Num,
	}
}

func FileIDFromProtobuf(pb *services.FileID) FileID {
	return FileID{
		Shard: pb.GetShardNum(),
		Realm: pb.GetRealmNum(),
		Num:   pb.GetFileNum(),
	}
}

func (id AccountID) ToProtobuf() *services.AccountID {
	return &services.AccountID{
		ShardNum: id.Shard,
		RealmNum: id.Realm,
		Account: &services.AccountID_AccountNum{
			AccountNum: id.Num,
		},
	}
}

// AccountIDFromProtobuf reads a numeric account id.  Alias accounts are never
// used by nodes and come back with a zero Num.
func AccountIDFromProtobuf(pb *services.AccountID) AccountID {
	return AccountID{
		Shard: pb.GetShardNum(),
		Realm: pb.GetRealmNum(),
		Num:   pb.GetAccountNum(),
	}
}

func (e ServiceEndpoint) ToProtobuf() *services.ServiceEndpoint {
	return &services.ServiceEndpoint{
		IpAddressV4: e.IPAddressV4,
		Port:        e.Port,
		DomainName:  e.DomainName,
	}
}

func ServiceEndpointFromProtobuf(pb *services.ServiceEndpoint) ServiceEndpoint {
	return ServiceEndpoint{
		IPAddressV4: pb.GetIpAddressV4(),
		Port:        pb.GetPort(),
		DomainName:  pb.GetDomainName(),
	}
}

// legacyEndpoint converts the deprecated ipAddress/portno pair.  Unlike
// ipAddressV4, ipAddress holds the address as text.
func legacyEndpoint(ipAddress []byte, port int32) (ServiceEndpoint, bool) {
	host := strings.TrimSpace(string(ipAddress))
	if host == "" {
		return ServiceEndpoint{}, false
	}

	if ip := net.ParseIP(host).To4(); ip != nil {
		return ServiceEndpoint{IPAddressV4: ip, Port: port}, true
	}

	return ServiceEndpoint{DomainName: host, Port: port}, true
}

func (a *NodeAddress) ToProtobuf() *services.NodeAddress {
	pb := &services.NodeAddress{
		RSA_PubKey:    a.RSAPublicKey,
		NodeId:        a.NodeID,
		NodeAccountId: a.NodeAccountID.ToProtobuf(),
		NodeCertHash:  a.CertHash,
		Description:   a.Description,
	}

	for _, endpoint := range a.ServiceEndpoints {
		pb.ServiceEndpoint = append(pb.ServiceEndpoint, endpoint.ToProtobuf())
	}

	return pb
}

// NodeAddressFromProtobuf converts one streamed address book entry.  The
// deprecated ipAddress/portno pair, when set, becomes the first service
// endpoint.
func NodeAddressFromProtobuf(pb *services.NodeAddress) *NodeAddress {
	addr := &NodeAddress{
		NodeID:        pb.GetNodeId(),
		NodeAccountID: AccountIDFromProtobuf(pb.GetNodeAccountId()),
		RSAPublicKey:  pb.GetRSA_PubKey(),
		CertHash:      pb.GetNodeCertHash(),
		Description:   pb.GetDescription(),
	}

	if endpoint, ok := legacyEndpoint(pb.GetIpAddress(), pb.GetPortno()); ok {
		addr.ServiceEndpoints = append(addr.ServiceEndpoints, endpoint)
	}

	for _, endpoint := range pb.GetServiceEndpoint() {
		addr.ServiceEndpoints = append(addr.ServiceEndpoints, ServiceEndpointFromProtobuf(endpoint))
	}

	return addr
}
