package boot

// Wallet features gated by the bootstrap mode. The network state manager
// gates operations by the derived network state; these constants name the
// same capabilities from the wallet's point of view, plus the local ones
// that are never restricted.
const (
	FeatureBalanceDisplay         = "balance_display"
	FeatureKeyManagement          = "key_management"
	FeatureSendTransaction        = "send_transaction"
	FeatureRequestFaucet          = "request_faucet"
	FeatureMiningOperations       = "mining_operations"
	FeatureConsensusParticipation = "consensus_participation"
	FeatureBlockValidation        = "block_validation"
)

// localFeatures are available in every mode.
var localFeatures = []string{
	FeatureBalanceDisplay,
	FeatureKeyManagement,
}

// networkFeatures require the Network mode.
var networkFeatures = []string{
	FeatureSendTransaction,
	FeatureRequestFaucet,
	FeatureMiningOperations,
	FeatureConsensusParticipation,
	FeatureBlockValidation,
}

// featureAvailable is a pure function of the mode. Before Network only the
// local features are available; in Network everything is.
func featureAvailable(m Mode, feature string) bool {
	if m == Network {
		return true
	}
	for _, f := range localFeatures {
		if f == feature {
			return true
		}
	}
	return false
}

// restrictedFeatures returns the features denied in mode m, in a stable
// order.
func restrictedFeatures(m Mode) []string {
	if m == Network {
		return []string{}
	}
	res := make([]string, len(networkFeatures))
	copy(res, networkFeatures)
	return res
}
