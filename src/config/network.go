package config

import "github.com/playergold/goldnode/src/common"

// Network describes a named PlayerGold network profile. The profile fixes
// the identifiers and ports that all nodes of a network must share; peers
// probed during discovery are discarded when their network id differs.
type Network struct {
	// ID is the stable identifier exchanged in probes and recorded in the
	// genesis network configuration.
	ID string `mapstructure:"id"`

	// Name is the profile name used on the command line.
	Name string `mapstructure:"name"`

	// P2PPort is the default port of the bootstrap protocol.
	P2PPort int `mapstructure:"p2p-port"`

	// APIPort is the default port of the HTTP service.
	APIPort int `mapstructure:"api-port"`
}

var networks = map[string]Network{
	"playergold-testnet": {
		ID:      "playergold-testnet",
		Name:    "playergold-testnet",
		P2PPort: 18333,
		APIPort: 18080,
	},
	"playergold-mainnet": {
		ID:      "playergold-mainnet",
		Name:    "playergold-mainnet",
		P2PPort: 8333,
		APIPort: 8080,
	},
}

// NetworkByName returns the profile registered under name.
func NetworkByName(name string) (Network, error) {
	n, ok := networks[name]
	if !ok {
		return Network{}, common.Errorf(common.InvalidArgument, "NetworkByName", "unknown network %s", name)
	}
	return n, nil
}

// NetworkProfile resolves the configured network name.
func (c *Config) NetworkProfile() (Network, error) {
	return NetworkByName(c.Network)
}
