package app_config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ledgerkit/nodenet/client"
)

func TestReadNetworkConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "netctl.yaml")
	err := os.WriteFile(path, []byte(`
network: testnet
nodes:
  "10.0.0.3:50211": "0.0.3"
  "10.0.0.4:50211": "4"
mirror-addresses:
  - mirror.example.com:443
refresh-interval: 1h
`), 0600)
	require.NoError(t, err)

	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	config := ReadNetworkConfig(v)
	assert.Equal(t, "testnet", config.Network)
	assert.Equal(t, []string{"mirror.example.com:443"}, config.MirrorAddresses)
	assert.Equal(t, time.Hour, config.RefreshInterval)

	addresses, err := config.NodeAddresses()
	require.NoError(t, err)
	assert.Equal(t, map[string]client.NodeID{
		"10.0.0.3:50211": client.NewNodeID(3),
		"10.0.0.4:50211": client.NewNodeID(4),
	}, addresses)
}

func TestNodeAddressesInvalidNodeID(t *testing.T) {
	config := &NetworkConfig{
		Nodes: map[string]string{"10.0.0.3:50211": "node-three"},
	}

	_, err := config.NodeAddresses()
	assert.ErrorIs(t, err, client.ErrParse)
}

func TestNewNetworkManager(t *testing.T) {
	config := &NetworkConfig{Network: "previewnet"}
	m, err := config.NewNetworkManager(client.NetworkOptions{DisableRefresh: true})
	require.NoError(t, err)
	defer m.Close()
	assert.Equal(t, []string{"previewnet.mirrornode.hedera.com:443"}, m.MirrorAddresses())

	_, err = (&NetworkConfig{}).NewNetworkManager(client.NetworkOptions{DisableRefresh: true})
	assert.Error(t, err)

	_, err = (&NetworkConfig{Network: "devnet"}).NewNetworkManager(client.NetworkOptions{DisableRefresh: true})
	assert.ErrorIs(t, err, client.ErrUnknownNetwork)
}

func TestApplyConfigChanges(t *testing.T) {
	old := &NetworkConfig{
		Nodes: map[string]string{"10.0.0.3:50211": "0.0.3"},
	}

	m, err := old.NewNetworkManager(client.NetworkOptions{
		DisableRefresh:       true,
		ConnectionDrainDelay: time.Millisecond,
	})
	require.NoError(t, err)
	defer m.Close()

	updated := &NetworkConfig{
		Nodes: map[string]string{
			"10.0.0.3:50211": "0.0.3",
			"10.0.0.4:50211": "0.0.4",
		},
		MirrorAddresses: []string{"mirror.example.com"},
		RefreshInterval: time.Hour,
	}

	require.NoError(t, updated.Apply(m, old, zap.NewNop()))

	assert.Equal(t, []client.NodeID{client.NewNodeID(3), client.NewNodeID(4)}, m.AllNodeIDs())
	assert.Equal(t, []string{"mirror.example.com"}, m.MirrorAddresses())
	assert.Equal(t, time.Hour, m.RefreshInterval())
}

func TestApplyRemovedRefreshInterval(t *testing.T) {
	old := &NetworkConfig{
		Nodes:           map[string]string{"10.0.0.3:50211": "0.0.3"},
		RefreshInterval: time.Hour,
	}

	m, err := old.NewNetworkManager(client.NetworkOptions{})
	require.NoError(t, err)
	defer m.Close()
	assert.Equal(t, time.Hour, m.RefreshInterval())

	updated := &NetworkConfig{
		Nodes: old.Nodes,
	}
	require.NoError(t, updated.Apply(m, old, zap.NewNop()))
	assert.Equal(t, client.DefaultRefreshInterval, m.RefreshInterval())

	fresh, err := updated.NewNetworkManager(client.NetworkOptions{})
	require.NoError(t, err)
	defer fresh.Close()
	assert.Equal(t, fresh.RefreshInterval(), m.RefreshInterval())
}

func TestNegativeRefreshIntervalDisablesRefresh(t *testing.T) {
	disabled := &NetworkConfig{
		Nodes:           map[string]string{"10.0.0.3:50211": "0.0.3"},
		RefreshInterval: -1,
	}
	assert.Equal(t, time.Duration(0), disabled.EffectiveRefreshInterval())

	m, err := disabled.NewNetworkManager(client.NetworkOptions{})
	require.NoError(t, err)
	defer m.Close()
	assert.Equal(t, time.Duration(0), m.RefreshInterval())

	enabled := &NetworkConfig{
		Nodes: disabled.Nodes,
	}
	require.NoError(t, enabled.Apply(m, disabled, zap.NewNop()))
	assert.Equal(t, client.DefaultRefreshInterval, m.RefreshInterval())

	require.NoError(t, disabled.Apply(m, enabled, zap.NewNop()))
	assert.Equal(t, time.Duration(0), m.RefreshInterval())
}
