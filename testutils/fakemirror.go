package testutils

import (
	"net"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/hashgraph/hedera-protobufs-go/mirror"
	"github.com/hashgraph/hedera-protobufs-go/services"
	"google.golang.org/grpc"

	"github.com/ledgerkit/nodenet/contrib/addressbook"
)

/*
FakeMirror is a minimal mirror node serving the address book stream on a
loopback port.  The served node list and any injected failure can be changed
while it is running.
*/
type FakeMirror struct {
	mirror.UnimplementedNetworkServiceServer

	listener net.Listener
	server   *grpc.Server

	lock    sync.Mutex
	nodes   []*services.NodeAddress
	failErr error

	numRequests atomic.Int64
	lastFileID  atomic.Pointer[addressbook.FileID]
}

// StartFakeMirror starts a FakeMirror which is stopped when the test ends.
func StartFakeMirror(t testing.TB) *FakeMirror {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen for fake mirror: %s", err)
	}

	m := &FakeMirror{
		listener: lis,
		server:   grpc.NewServer(),
	}
	mirror.RegisterNetworkServiceServer(m.server, m)

	go func() {
		_ = m.server.Serve(lis)
	}()

	t.Cleanup(m.server.Stop)
	return m
}

func (m *FakeMirror) Address() string {
	return m.listener.Addr().String()
}

func (m *FakeMirror) SetNodes(nodes []*addressbook.NodeAddress) {
	pbNodes := make([]*services.NodeAddress, 0, len(nodes))
	for _, node := range nodes {
		pbNodes = append(pbNodes, node.ToProtobuf())
	}

	m.SetProtobufNodes(pbNodes)
}

// SetProtobufNodes serves nodes exactly as given, which allows serving
// fields that NodeAddress has no equivalent for.
func (m *FakeMirror) SetProtobufNodes(nodes []*services.NodeAddress) {
	m.lock.Lock()
	m.nodes = nodes
	m.lock.Unlock()
}

// SetError makes every following request fail with err, nil restores
// normal service.
func (m *FakeMirror) SetError(err error) {
	m.lock.Lock()
	m.failErr = err
	m.lock.Unlock()
}

func (m *FakeMirror) NumRequests() int {
	return int(m.numRequests.Load())
}

// LastFileID returns the file requested by the most recent query.
func (m *FakeMirror) LastFileID() *addressbook.FileID {
	return m.lastFileID.Load()
}

func (m *FakeMirror) GetNodes(req *mirror.AddressBookQuery, stream mirror.NetworkService_GetNodesServer) error {
	fileID := addressbook.FileIDFromProtobuf(req.GetFileId())

	m.numRequests.Add(1)
	m.lastFileID.Store(&fileID)

	m.lock.Lock()
	nodes := m.nodes
	failErr := m.failErr
	m.lock.Unlock()

	if failErr != nil {
		return failErr
	}

	limit := int(req.GetLimit())
	for nodeIdx, node := range nodes {
		if limit > 0 && nodeIdx >= limit {
			break
		}

		err := stream.Send(node)
		if err != nil {
			return err
		}
	}

	return nil
}

// NodeAddress builds an address book entry for account 0.0.num.
func NodeAddress(num int64, endpoints ...addressbook.ServiceEndpoint) *addressbook.NodeAddress {
	return &addressbook.NodeAddress{
		NodeID:           num - 3,
		NodeAccountID:    addressbook.AccountID{Num: num},
		ServiceEndpoints: endpoints,
	}
}

// Endpoint builds an IPv4 service endpoint, ip must be a dotted quad.
func Endpoint(ip string, port int32) addressbook.ServiceEndpoint {
	return addressbook.ServiceEndpoint{
		IPAddressV4: net.ParseIP(ip).To4(),
		Port:        port,
	}
}
