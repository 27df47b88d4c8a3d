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
	"context"
	"errors"
	"io"
	"time"

	"github.com/hashgraph/hedera-protobufs-go/mirror"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

type FetcherOptions struct {
	FileID  *FileID
	Limit   int32
	Timeout time.Duration
	Logger  *zap.Logger
}

// Fetcher reads the node address book from a mirror node.
type Fetcher struct {
	fileID  FileID
	limit   int32
	timeout time.Duration
	logger  *zap.Logger
}

func NewFetcher(opts FetcherOptions) *Fetcher {
	fileID := AddressBookFileID
	if opts.FileID != nil {
		fileID = *opts.FileID
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Fetcher{
		fileID:  fileID,
		limit:   opts.Limit,
		timeout: opts.Timeout,
		logger:  logger,
	}
}

// FetchNodeAddresses streams the full address book over the given mirror
// channel.  Either every entry is returned or an error is.
func (f *Fetcher) FetchNodeAddresses(ctx context.Context, cc grpc.ClientConnInterface) ([]*NodeAddress, error) {
	var cancel context.CancelFunc
	if f.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	client := mirror.NewNetworkServiceClient(cc)

	stream, err := client.GetNodes(ctx, &mirror.AddressBookQuery{
		FileId: f.fileID.ToProtobuf(),
		Limit:  f.limit,
	})
	if err != nil {
		return nil, err
	}

	var addresses []*NodeAddress
	for {
		pb, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			return nil, err
		}

		addresses = append(addresses, NodeAddressFromProtobuf(pb))
	}

	f.logger.Debug("fetched node address book",
		zap.Int("numNodes", len(addresses)))

	return addresses, nil
}
