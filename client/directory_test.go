package client

import (
	"testing"

	"github.com/hashgraph/hedera-protobufs-go/services"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/ledgerkit/nodenet/contrib/addressbook"
	"github.com/ledgerkit/nodenet/testutils"
)

func TestEntriesFromAddressBook(t *testing.T) {
	nodes := []*addressbook.NodeAddress{
		testutils.NodeAddress(5,
			testutils.Endpoint("10.0.0.5", 50211),
			testutils.Endpoint("10.0.0.5", 50212)),
		testutils.NodeAddress(3,
			testutils.Endpoint("10.0.0.3", 50111),
			testutils.Endpoint("10.0.0.33", 0),
			testutils.Endpoint("10.0.0.34", 443)),
		// only TLS endpoints, no usable address
		testutils.NodeAddress(4,
			testutils.Endpoint("10.0.0.4", 50212)),
		testutils.NodeAddress(5,
			testutils.Endpoint("10.0.0.55", 50211)),
		{
			NodeAccountID: addressbook.AccountID{Num: 6},
			ServiceEndpoints: []addressbook.ServiceEndpoint{
				{DomainName: "node6.example.com", Port: 50211},
				{Port: 50211},
			},
		},
	}

	entries := entriesFromAddressBook(nodes, zap.NewNop())

	assert.Equal(t, []nodeEntry{
		{ID: NewNodeID(5), Addresses: []HostAddress{{"10.0.0.5", 50211}, {"10.0.0.55", 50211}}},
		{ID: NewNodeID(3), Addresses: []HostAddress{{"10.0.0.3", 50211}, {"10.0.0.33", 50211}}},
		{ID: NewNodeID(6), Addresses: []HostAddress{{"node6.example.com", 50211}}},
	}, entries)
}

func TestEntriesFromEmptyAddressBook(t *testing.T) {
	assert.Empty(t, entriesFromAddressBook(nil, zap.NewNop()))
}

func TestEntriesFromAddressBookLegacyAddress(t *testing.T) {
	nodes := []*addressbook.NodeAddress{
		addressbook.NodeAddressFromProtobuf(&services.NodeAddress{
			IpAddress:     []byte("35.237.200.180"),
			Portno:        50211,
			NodeAccountId: addressbook.AccountID{Num: 3}.ToProtobuf(),
		}),
	}

	entries := entriesFromAddressBook(nodes, zap.NewNop())

	assert.Equal(t, []nodeEntry{
		{ID: NewNodeID(3), Addresses: []HostAddress{{"35.237.200.180", 50211}}},
	}, entries)
}
