// Package genesis defines the genesis document negotiated during bootstrap
// and the coordinator that drives the negotiation.
//
// The genesis document is the payload all forming nodes must agree on. Its
// hash is the SHA256 of its canonical JSON encoding with the hash field
// blanked, so any node can recompute it from the document's inputs and
// detect a conflicting proposal. Two overlapping peer groups negotiating
// over the same participant set therefore converge on the same block, or
// fail loudly with a conflict; they can never fork silently.
package genesis

import (
	"bytes"
	"encoding/hex"

	"github.com/playergold/goldnode/src/crypto"
	"github.com/ugorji/go/codec"
)

// Founding economic constants of a PlayerGold network. They are recorded in
// the genesis network configuration.
const (
	// LiquidityPoolInitial is the initial endowment of the liquidity pool,
	// in PRGLD.
	LiquidityPoolInitial int64 = 1024000000

	// InitialBlockReward is the block reward at height zero, in PRGLD.
	InitialBlockReward int64 = 1024

	// HalvingInterval is the number of blocks between reward halvings.
	HalvingInterval int = 100000

	// Fee distribution, in percent.
	DeveloperFeePercent int = 30
	LiquidityFeePercent int = 10
	BurnFeePercent      int = 60
)

// Block is the founding ledger block of a network.
type Block struct {
	Index        int      `json:"index"`
	Hash         string   `json:"hash"`
	PreviousHash string   `json:"previousHash"`
	Timestamp    int64    `json:"timestamp"`
	CreatedBy    string   `json:"createdBy"`
	Participants []string `json:"participants"`
}

// ChainParams carries the economic constants recorded at genesis.
type ChainParams struct {
	LiquidityPoolInitial int64 `json:"liquidityPoolInitial"`
	InitialBlockReward   int64 `json:"initialBlockReward"`
	HalvingInterval      int   `json:"halvingInterval"`
	DeveloperFeePercent  int   `json:"developerFeePercent"`
	LiquidityFeePercent  int   `json:"liquidityFeePercent"`
	BurnFeePercent       int   `json:"burnFeePercent"`
}

// DefaultChainParams returns the chain parameters every new PlayerGold
// network starts with.
func DefaultChainParams() ChainParams {
	return ChainParams{
		LiquidityPoolInitial: LiquidityPoolInitial,
		InitialBlockReward:   InitialBlockReward,
		HalvingInterval:      HalvingInterval,
		DeveloperFeePercent:  DeveloperFeePercent,
		LiquidityFeePercent:  LiquidityFeePercent,
		BurnFeePercent:       BurnFeePercent,
	}
}

// NetworkConfig is the network configuration created together with the
// genesis block.
type NetworkConfig struct {
	NetworkID   string      `json:"networkId"`
	NetworkName string      `json:"networkName"`
	P2PPort     int         `json:"p2pPort"`
	APIPort     int         `json:"apiPort"`
	ChainParams ChainParams `json:"chainParams"`
}

// Document is the {block, networkConfig} pair produced by a successful
// negotiation. Both parts are immutable once created.
type Document struct {
	Block         Block         `json:"block"`
	NetworkConfig NetworkConfig `json:"networkConfig"`
}

// Record is the derived view of genesis existence queried by the network
// state manager and the wallet display cache.
type Record struct {
	Exists       bool     `json:"exists"`
	Hash         string   `json:"hash"`
	Timestamp    int64    `json:"timestamp"`
	Participants []string `json:"participants"`
}

// Marshal - canonical json encoding of the Document.
func (d *Document) Marshal() ([]byte, error) {
	b := new(bytes.Buffer)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	enc := codec.NewEncoder(b, jh)

	if err := enc.Encode(d); err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}

// Unmarshal ...
func (d *Document) Unmarshal(data []byte) error {
	b := bytes.NewBuffer(data)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	dec := codec.NewDecoder(b, jh)

	if err := dec.Decode(d); err != nil {
		return err
	}

	return nil
}

// Hash computes the document hash: SHA256 over the canonical encoding with
// the block hash field blanked. The stored Block.Hash does not influence the
// computation, so a receiver can verify a proposal by recomputing.
func (d *Document) Hash() ([]byte, error) {
	blanked := *d
	blanked.Block.Hash = ""

	hashBytes, err := blanked.Marshal()
	if err != nil {
		return nil, err
	}
	return crypto.SHA256(hashBytes), nil
}

// HashHex returns the lower-case hex form of Hash. It is the value carried
// in Block.Hash.
func (d *Document) HashHex() (string, error) {
	hash, err := d.Hash()
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(hash), nil
}

// Seal computes the document hash and writes it into Block.Hash.
func (d *Document) Seal() error {
	hex, err := d.HashHex()
	if err != nil {
		return err
	}
	d.Block.Hash = hex
	return nil
}

// Verify recomputes the hash and compares it to Block.Hash.
func (d *Document) Verify() (bool, error) {
	hex, err := d.HashHex()
	if err != nil {
		return false, err
	}
	return d.Block.Hash == hex, nil
}

// Record derives the Record view of the document.
func (d *Document) Record() Record {
	participants := make([]string, len(d.Block.Participants))
	copy(participants, d.Block.Participants)

	return Record{
		Exists:       true,
		Hash:         d.Block.Hash,
		Timestamp:    d.Block.Timestamp,
		Participants: participants,
	}
}
