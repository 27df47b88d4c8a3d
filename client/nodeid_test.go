package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNodeID(t *testing.T) {
	nodeID, err := ParseNodeID("0.0.3")
	require.NoError(t, err)
	assert.Equal(t, NewNodeID(3), nodeID)

	nodeID, err = ParseNodeID("1.2.30")
	require.NoError(t, err)
	assert.Equal(t, NodeID{Shard: 1, Realm: 2, Num: 30}, nodeID)
	assert.Equal(t, "1.2.30", nodeID.String())

	nodeID, err = ParseNodeID("7")
	require.NoError(t, err)
	assert.Equal(t, NewNodeID(7), nodeID)

	for _, input := range []string{"", "0.0", "a.b.c", "0.0.-1", "0.0.3.4"} {
		_, err := ParseNodeID(input)
		assert.ErrorIs(t, err, ErrParse, "input `%s`", input)
	}
}

func TestCompareNodeID(t *testing.T) {
	assert.Equal(t, 0, compareNodeID(NewNodeID(3), NewNodeID(3)))
	assert.Equal(t, -1, compareNodeID(NewNodeID(3), NewNodeID(4)))
	assert.Equal(t, 1, compareNodeID(NodeID{Realm: 1}, NewNodeID(100)))
	assert.Equal(t, -1, compareNodeID(NodeID{Realm: 5}, NodeID{Shard: 1}))
}
