package netstate

// Operation names a wallet operation gated by the network state.
type Operation string

const (
	// BalanceQuery is the local balance display; it is always allowed.
	BalanceQuery Operation = "balance_query"
	// SendTransaction ...
	SendTransaction Operation = "send_transaction"
	// RequestFaucet ...
	RequestFaucet Operation = "request_faucet"
	// MiningOperations ...
	MiningOperations Operation = "mining_operations"
	// ConsensusParticipation ...
	ConsensusParticipation Operation = "consensus_participation"
	// BlockValidation ...
	BlockValidation Operation = "block_validation"
)

// networkOperations are the operations that require an active network. They
// are denied in every other state.
var networkOperations = []Operation{
	SendTransaction,
	RequestFaucet,
	MiningOperations,
	ConsensusParticipation,
	BlockValidation,
}

// allowed implements the operation allow-list. Local operations are always
// allowed; everything else requires the Active state.
func allowed(s State, op Operation) bool {
	if op == BalanceQuery {
		return true
	}
	for _, o := range networkOperations {
		if o == op {
			return s == Active
		}
	}
	// unknown operations are treated as network-dependent
	return s == Active
}

// restricted returns the operations denied in state s, in a stable order.
func restricted(s State) []Operation {
	if s == Active {
		return []Operation{}
	}
	res := make([]Operation, len(networkOperations))
	copy(res, networkOperations)
	return res
}
