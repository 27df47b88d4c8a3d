package app_config

import (
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/ledgerkit/nodenet/client"
)

// NetworkConfig selects the network a NetworkManager connects to.  Either a
// preset network name or an explicit node map must be given, with the node
// map taking precedence.
type NetworkConfig struct {
	Network         string            `json:"network"`
	Nodes           map[string]string `json:"nodes"`
	MirrorAddresses []string          `json:"mirrorAddresses"`
	RefreshInterval time.Duration     `json:"refreshInterval"`
}

// ReadNetworkConfig reads the network keys from v.  Nodes are read from the
// `nodes` map of `address: node-id` pairs.
func ReadNetworkConfig(v *viper.Viper) *NetworkConfig {
	return &NetworkConfig{
		Network:         v.GetString("network"),
		Nodes:           v.GetStringMapString("nodes"),
		MirrorAddresses: v.GetStringSlice("mirror-addresses"),
		RefreshInterval: v.GetDuration("refresh-interval"),
	}
}

func (c *NetworkConfig) LogFields() []zap.Field {
	return []zap.Field{
		zap.String("network", c.Network),
		zap.Int("numNodes", len(c.Nodes)),
		zap.Strings("mirrorAddresses", c.MirrorAddresses),
		zap.Duration("refreshInterval", c.RefreshInterval),
	}
}

// NodeAddresses parses the node map into the form used by the client.
func (c *NetworkConfig) NodeAddresses() (map[string]client.NodeID, error) {
	addresses := make(map[string]client.NodeID, len(c.Nodes))
	for address, nodeIDStr := range c.Nodes {
		nodeID, err := client.ParseNodeID(nodeIDStr)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid node for address `%s`", address)
		}
		addresses[address] = nodeID
	}
	return addresses, nil
}

// EffectiveRefreshInterval resolves the configured refresh interval.  An
// unset interval selects client.DefaultRefreshInterval, a negative one
// disables refreshing and yields zero.
func (c *NetworkConfig) EffectiveRefreshInterval() time.Duration {
	switch {
	case c.RefreshInterval == 0:
		return client.DefaultRefreshInterval
	case c.RefreshInterval < 0:
		return 0
	default:
		return c.RefreshInterval
	}
}

// NewNetworkManager creates a manager for this configuration.  Fields of opts
// which the configuration controls are overwritten.
func (c *NetworkConfig) NewNetworkManager(opts client.NetworkOptions) (*client.NetworkManager, error) {
	if len(c.MirrorAddresses) > 0 {
		opts.MirrorAddresses = c.MirrorAddresses
	}

	refreshInterval := c.EffectiveRefreshInterval()
	if refreshInterval > 0 {
		opts.RefreshInterval = refreshInterval
	} else {
		opts.DisableRefresh = true
	}

	if len(c.Nodes) > 0 {
		addresses, err := c.NodeAddresses()
		if err != nil {
			return nil, err
		}

		return client.ForAddresses(addresses, &opts)
	}

	if c.Network == "" {
		return nil, errors.New("either a network or a node map must be configured")
	}

	return client.ForPreset(c.Network, &opts)
}

// Apply pushes the differences between old and c into a running manager.
// Switching between a preset and an explicit node map requires a restart.
func (c *NetworkConfig) Apply(m *client.NetworkManager, old *NetworkConfig, logger *zap.Logger) error {
	if c.Network != old.Network {
		logger.Warn("config changes for network require a restart")
	}

	if !maps.Equal(c.Nodes, old.Nodes) {
		if len(c.Nodes) == 0 {
			logger.Warn("removing the node map requires a restart")
		} else {
			addresses, err := c.NodeAddresses()
			if err != nil {
				return err
			}

			err = m.SetAddresses(addresses)
			if err != nil {
				return errors.Wrap(err, "failed to apply node map")
			}

			logger.Info("applied updated node map", zap.Int("numNodes", len(addresses)))
		}
	}

	if !slices.Equal(c.MirrorAddresses, old.MirrorAddresses) {
		err := m.SetMirrorAddresses(c.MirrorAddresses)
		if err != nil {
			return errors.Wrap(err, "failed to apply mirror addresses")
		}

		logger.Info("applied updated mirror addresses", zap.Strings("mirrorAddresses", c.MirrorAddresses))
	}

	refreshInterval := c.EffectiveRefreshInterval()
	if refreshInterval != old.EffectiveRefreshInterval() {
		err := m.SetRefreshInterval(refreshInterval)
		if err != nil {
			return errors.Wrap(err, "failed to apply refresh interval")
		}

		logger.Info("applied updated refresh interval", zap.Duration("refreshInterval", refreshInterval))
	}

	return nil
}
