// Package netstate derives the canonical network state of a goldnode and is
// the single source of truth for which operations the wallet may perform.
package netstate

// State captures the derived network state of a goldnode: Disconnected,
// Connecting, BootstrapPioneer, BootstrapDiscovery, BootstrapGenesis, or
// Active. It is computed from genesis existence and the bootstrap mode; it
// is never stored authoritatively.
type State uint32

const (
	// Disconnected is the state before a bootstrap controller is attached.
	Disconnected State = iota
	// Connecting is the state while the transport is being established and
	// no genesis exists.
	Connecting
	// BootstrapPioneer mirrors bootstrap mode pioneer.
	BootstrapPioneer
	// BootstrapDiscovery mirrors bootstrap mode discovery.
	BootstrapDiscovery
	// BootstrapGenesis mirrors bootstrap mode genesis.
	BootstrapGenesis
	// Active is the state of full network membership, once a genesis block
	// exists.
	Active
)

// String ...
func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case BootstrapPioneer:
		return "bootstrap_pioneer"
	case BootstrapDiscovery:
		return "bootstrap_discovery"
	case BootstrapGenesis:
		return "bootstrap_genesis"
	case Active:
		return "active"
	default:
		return "unknown"
	}
}

// derive computes the State from its inputs. Genesis existence dominates the
// bootstrap mode: a node that observes a genesis block is active no matter
// which bootstrap sub-mode it was in.
func derive(attached, connecting, genesisExists bool, bootstrapMode string) State {
	if !attached {
		return Disconnected
	}

	if genesisExists {
		return Active
	}

	if connecting {
		return Connecting
	}

	switch bootstrapMode {
	case "pioneer":
		return BootstrapPioneer
	case "discovery":
		return BootstrapDiscovery
	case "genesis":
		return BootstrapGenesis
	case "network":
		// mode network without a genesis record should not happen; treat it
		// as still forming
		return BootstrapGenesis
	default:
		return Disconnected
	}
}

// Significant reports whether the transition from previous to new must
// invalidate downstream caches: any transition into or out of Active, and
// the transition from BootstrapDiscovery into BootstrapGenesis. Every other
// transition may be absorbed.
func Significant(previous, new State) bool {
	if previous == new {
		return false
	}
	if previous == Active || new == Active {
		return true
	}
	if previous == BootstrapDiscovery && new == BootstrapGenesis {
		return true
	}
	return false
}
