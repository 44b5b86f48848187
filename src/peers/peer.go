package peers

import (
	"strings"

	"github.com/playergold/goldnode/src/common"
	"github.com/playergold/goldnode/src/crypto/keys"
)

// Peer is a node known to the bootstrap protocol. Peers are created by peer
// discovery and are not mutated by any other component.
type Peer struct {
	NetAddr   string `json:"NetAddr"`
	PubKeyHex string `json:"PubKeyHex"`
	Moniker   string `json:"Moniker"`

	// Ready indicates that the peer has completed its own wallet and
	// resource setup, and is eligible to participate in genesis negotiation.
	// It is set only after a successful readiness probe.
	Ready bool `json:"Ready"`

	id uint32
}

// NewPeer instantiates a new Peer from a public key, network address, and
// moniker.
func NewPeer(pubKeyHex, netAddr, moniker string) *Peer {
	peer := &Peer{
		PubKeyHex: pubKeyHex,
		NetAddr:   netAddr,
		Moniker:   moniker,
	}

	return peer
}

// ID returns the identifier derived from the peer's public key. It is
// computed lazily and cached.
func (p *Peer) ID() uint32 {
	if p.id == 0 {
		p.id = keys.PublicKeyID(p.PubKeyBytes())
	}
	return p.id
}

// PubKeyBytes returns the byte slice representation of the peer's public key.
func (p *Peer) PubKeyBytes() []byte {
	res, _ := common.DecodeFromString(p.PubKeyHex)
	return res
}

// PubKeyString returns the upper-case version of PubKeyHex. It is used for
// indexing in maps with string keys.
func (p *Peer) PubKeyString() string {
	return strings.ToUpper(p.PubKeyHex)
}
