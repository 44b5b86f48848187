// Package store persists the node's bootstrap state so that a restart
// resumes from where the previous run left off instead of starting a fresh
// formation round.
package store

import (
	"bytes"

	"github.com/playergold/goldnode/src/genesis"
	"github.com/playergold/goldnode/src/peers"
	"github.com/ugorji/go/codec"
)

// Record is the persistent bootstrap record. It tracks how far the node got:
// the mode it was in, the wallet address and resource registration that
// started the process, and the readiness flag.
type Record struct {
	Mode          string `json:"mode"`
	WalletAddress string `json:"walletAddress"`
	Resource      string `json:"resource"`
	MiningReady   bool   `json:"miningReady"`
	NetworkID     string `json:"networkId"`
	CreatedAt     int64  `json:"createdAt"`
	UpdatedAt     int64  `json:"updatedAt"`
}

// Marshal - json encoding of the Record.
func (r *Record) Marshal() ([]byte, error) {
	b := new(bytes.Buffer)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	enc := codec.NewEncoder(b, jh)

	if err := enc.Encode(r); err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}

// Unmarshal ...
func (r *Record) Unmarshal(data []byte) error {
	b := bytes.NewBuffer(data)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	dec := codec.NewDecoder(b, jh)

	return dec.Decode(r)
}

// Store is an interface for backend stores.
type Store interface {
	// CacheSize retrieves the cacheSize setting that bounds in-memory
	// collections derived from the store, like the wallet's transaction
	// history.
	CacheSize() int
	// GetRecord returns the bootstrap record.
	GetRecord() (*Record, error)
	// SetRecord saves the bootstrap record.
	SetRecord(*Record) error
	// GetGenesis returns the committed genesis document.
	GetGenesis() (*genesis.Document, error)
	// SetGenesis saves the committed genesis document.
	SetGenesis(*genesis.Document) error
	// GetPeerSet returns the saved peer registry.
	GetPeerSet() (*peers.PeerSet, error)
	// SetPeerSet saves the peer registry.
	SetPeerSet(*peers.PeerSet) error
	// NeedBootstrap reports whether the store was loaded from an existing
	// database, in which case the controller resumes from the saved record.
	NeedBootstrap() bool
	// StorePath returns the filepath of the underlying database.
	StorePath() string
	// Close closes the underlying database.
	Close() error
}
