package peers

import (
	"bytes"
	"encoding/json"
	"math"
	"sort"

	"github.com/playergold/goldnode/src/common"
	"github.com/playergold/goldnode/src/crypto"
)

// PeerSet is a collection of Peers, unique by identifier.
type PeerSet struct {
	Peers    []*Peer          `json:"peers"`
	ByPubKey map[string]*Peer `json:"-"`
	ByID     map[uint32]*Peer `json:"-"`

	//cached values
	hash []byte
	hex  string
}

/* Constructors */

// NewPeerSet creates a new PeerSet from a list of Peers.
func NewPeerSet(peers []*Peer) *PeerSet {
	peerSet := &PeerSet{
		ByPubKey: make(map[string]*Peer),
		ByID:     make(map[uint32]*Peer),
	}

	res := []*Peer{}
	for _, peer := range peers {
		if _, ok := peerSet.ByID[peer.ID()]; ok {
			continue
		}
		peerSet.ByPubKey[peer.PubKeyString()] = peer
		peerSet.ByID[peer.ID()] = peer
		res = append(res, peer)
	}

	peerSet.Peers = res

	return peerSet
}

// NewPeerSetFromPeerSliceBytes creates a new PeerSet from a peer slice in
// JSON format.
func NewPeerSetFromPeerSliceBytes(peerSliceBytes []byte) (*PeerSet, error) {
	peers := []*Peer{}

	b := bytes.NewBuffer(peerSliceBytes)
	dec := json.NewDecoder(b)

	err := dec.Decode(&peers)
	if err != nil {
		return nil, err
	}

	return NewPeerSet(peers), nil
}

// WithNewPeer returns a new PeerSet with a list of peers including the new
// one. Adding a peer that is already in the set returns an equivalent set.
func (peerSet *PeerSet) WithNewPeer(peer *Peer) *PeerSet {
	peers := peerSet.Peers

	if _, ok := peerSet.ByID[peer.ID()]; !ok {
		peers = append(peers, peer)
	}

	return NewPeerSet(peers)
}

// WithRemovedPeer returns a new PeerSet with a list of peers excluding the
// provided one.
func (peerSet *PeerSet) WithRemovedPeer(peer *Peer) *PeerSet {
	peers := []*Peer{}
	for _, p := range peerSet.Peers {
		if p.PubKeyString() != peer.PubKeyString() {
			peers = append(peers, p)
		}
	}
	return NewPeerSet(peers)
}

/* ToSlice Methods */

// PubKeys returns the PeerSet's slice of public keys.
func (peerSet *PeerSet) PubKeys() []string {
	res := []string{}

	for _, peer := range peerSet.Peers {
		res = append(res, peer.PubKeyString())
	}

	return res
}

// IDs returns the PeerSet's slice of IDs.
func (peerSet *PeerSet) IDs() []uint32 {
	res := []uint32{}

	for _, peer := range peerSet.Peers {
		res = append(res, peer.ID())
	}

	return res
}

/* Utilities */

// Len returns the number of Peers in the PeerSet.
func (peerSet *PeerSet) Len() int {
	return len(peerSet.ByPubKey)
}

// Ready returns the subset of peers whose readiness probe succeeded.
func (peerSet *PeerSet) Ready() *PeerSet {
	res := []*Peer{}
	for _, p := range peerSet.Peers {
		if p.Ready {
			res = append(res, p)
		}
	}
	return NewPeerSet(res)
}

// SortedByID returns the peers sorted by ascending identifier. Identifiers
// are fixed-width, so numeric order equals the lexicographic order of their
// hex form; the first element is the genesis proposer.
func (peerSet *PeerSet) SortedByID() []*Peer {
	res := make([]*Peer, len(peerSet.Peers))
	copy(res, peerSet.Peers)
	sort.Slice(res, func(i, j int) bool {
		return res[i].ID() < res[j].ID()
	})
	return res
}

// Hash uniquely identifies a PeerSet. It is computed by hashing (SHA256) the
// public keys together, one by one, in ID order so that any permutation of
// the same peers produces the same hash.
func (peerSet *PeerSet) Hash() ([]byte, error) {
	if len(peerSet.hash) == 0 {
		hash := []byte{}
		for _, p := range peerSet.SortedByID() {
			pk := p.PubKeyBytes()
			hash = crypto.SHA256(append(hash, pk...))
		}
		peerSet.hash = hash
	}
	return peerSet.hash, nil
}

// Hex is the hexadecimal representation of Hash.
func (peerSet *PeerSet) Hex() string {
	if len(peerSet.hex) == 0 {
		hash, _ := peerSet.Hash()
		peerSet.hex = common.EncodeToString(hash)
	}
	return peerSet.hex
}

// Marshal marshals the peer list as JSON.
func (peerSet *PeerSet) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	if err := enc.Encode(peerSet.Peers); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Quorum returns the number of ready participants required before genesis
// negotiation starts: max(floor, ceil(0.66 * len)). The floor keeps a
// singleton node from forming a network alone.
func (peerSet *PeerSet) Quorum(floor int) int {
	val := int(math.Ceil(0.66 * float64(peerSet.Len())))
	if val < floor {
		val = floor
	}
	return val
}
