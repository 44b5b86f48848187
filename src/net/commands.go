package net

import (
	"github.com/playergold/goldnode/src/genesis"
	"github.com/playergold/goldnode/src/peers"
)

// ProbeRequest is sent by the discovery scanner to a candidate address to
// find out whether a PlayerGold node is listening there. The request carries
// the caller's own identity so that the responder can register the caller in
// its own peer registry; discovery is bidirectional.
type ProbeRequest struct {
	FromID      uint32
	FromPubKey  string
	FromAddr    string
	FromMoniker string
	NetworkID   string
	Ready       bool
}

// ProbeResponse describes the responding node. NetworkID lets the caller
// discard nodes configured for a different network. GenesisHash is empty
// until the responder holds a committed genesis document; a non-empty value
// tells the caller that a network already exists and it should fetch the
// document instead of negotiating a new one. KnownPeers carries the
// responder's current view of the forming group so that discovery spreads
// faster than the address scan alone.
type ProbeResponse struct {
	FromID      uint32
	PubKey      string
	Moniker     string
	NetworkID   string
	Mode        string
	Ready       bool
	GenesisHash string
	KnownPeers  []*peers.Peer
}

// GenesisProposalRequest submits a signed genesis proposal to a participant.
type GenesisProposalRequest struct {
	FromID   uint32
	Proposal *genesis.Proposal
}

// GenesisProposalResponse indicates whether the participant accepted the
// proposal. HashHex echoes the hash the responder computed, which makes a
// rejection diagnosable. Message carries the rejection reason.
type GenesisProposalResponse struct {
	FromID   uint32
	Accepted bool
	HashHex  string
	Message  string
}

// GenesisCommitRequest announces the final genesis document to a participant
// that previously accepted the proposal. It is also how a node that joins
// after formation retrieves the document.
type GenesisCommitRequest struct {
	FromID   uint32
	Document *genesis.Document
}

// GenesisCommitResponse indicates the success or failure of a
// GenesisCommitRequest.
type GenesisCommitResponse struct {
	FromID      uint32
	Success     bool
	GenesisHash string
}
