package client

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// NodeID is the logical identity of a consensus node, expressed as the
// `shard.realm.num` account which the node is paid through.
type NodeID struct {
	Shard uint64
	Realm uint64
	Num   uint64
}

// NewNodeID returns the node id `0.0.num`.
func NewNodeID(num uint64) NodeID {
	return NodeID{Num: num}
}

// ParseNodeID parses either `shard.realm.num` or a bare `num`.
func ParseNodeID(s string) (NodeID, error) {
	parts := strings.Split(s, ".")

	var nums [3]uint64
	switch len(parts) {
	case 1:
		num, err := strconv.ParseUint(parts[0], 10, 64)
		if err != nil {
			return NodeID{}, errors.Wrapf(ErrParse, "invalid node id `%s`", s)
		}
		return NewNodeID(num), nil
	case 3:
		for i, part := range parts {
			num, err := strconv.ParseUint(part, 10, 64)
			if err != nil {
				return NodeID{}, errors.Wrapf(ErrParse, "invalid node id `%s`", s)
			}
			nums[i] = num
		}
		return NodeID{Shard: nums[0], Realm: nums[1], Num: nums[2]}, nil
	default:
		return NodeID{}, errors.Wrapf(ErrParse, "invalid node id `%s`", s)
	}
}

func (id NodeID) String() string {
	return fmt.Sprintf("%d.%d.%d", id.Shard, id.Realm, id.Num)
}

func compareNodeID(a, b NodeID) int {
	switch {
	case a.Shard != b.Shard:
		return cmpUint64(a.Shard, b.Shard)
	case a.Realm != b.Realm:
		return cmpUint64(a.Realm, b.Realm)
	default:
		return cmpUint64(a.Num, b.Num)
	}
}

func cmpUint64(a, b uint64) int {
	if a < b {
		return -1
	} else if a > b {
		return 1
	}
	return 0
}
