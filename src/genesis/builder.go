package genesis

import (
	"strings"

	"github.com/playergold/goldnode/src/common"
	"github.com/playergold/goldnode/src/peers"
)

// BuildParams are the network-profile inputs of a genesis document. Every
// participant derives them from the same configuration, so two nodes
// building from the same participant set and timestamp produce identical
// documents.
type BuildParams struct {
	NetworkID   string
	NetworkName string
	P2PPort     int
	APIPort     int

	// CreatedBy is the public key hex of the proposer.
	CreatedBy string

	// Timestamp is the proposer's creation time, in Unix seconds. It is
	// carried by the proposal so acceptors can reproduce the document.
	Timestamp int64
}

// Proposer returns the participant that proposes the genesis document: the
// one with the lowest identifier. The rule is arbitrary but deterministic
// and order-independent, which is what guarantees that overlapping groups
// elect the same proposer.
func Proposer(participants *peers.PeerSet) *peers.Peer {
	sorted := participants.SortedByID()
	if len(sorted) == 0 {
		return nil
	}
	return sorted[0]
}

// Build assembles and seals a genesis document from the participant set and
// the build parameters. Participants are recorded in identifier order.
func Build(params BuildParams, participants *peers.PeerSet) (*Document, error) {
	if participants == nil || participants.Len() == 0 {
		return nil, common.NewError(common.InvalidArgument, "genesis.Build", "empty participant set")
	}

	sorted := participants.SortedByID()

	parts := make([]string, len(sorted))
	for i, p := range sorted {
		parts[i] = p.PubKeyString()
	}

	doc := &Document{
		Block: Block{
			Index:        0,
			PreviousHash: strings.Repeat("0", 64),
			Timestamp:    params.Timestamp,
			CreatedBy:    params.CreatedBy,
			Participants: parts,
		},
		NetworkConfig: NetworkConfig{
			NetworkID:   params.NetworkID,
			NetworkName: params.NetworkName,
			P2PPort:     params.P2PPort,
			APIPort:     params.APIPort,
			ChainParams: DefaultChainParams(),
		},
	}

	if err := doc.Seal(); err != nil {
		return nil, err
	}

	return doc, nil
}
