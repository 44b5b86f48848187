// Package peers defines the concept of a goldnode peer and implements
// functions to manage collections of peers.
//
// A peer is an entity that operates a goldnode. During bootstrap, peers are
// found by discovery and annotated with a readiness flag once they confirm
// that their own wallet and resource setup is complete. Ready peers become
// participants of the genesis negotiation, after which the recorded peer
// collections are only kept for display and persistence.
//
// Peers are identified by their public keys, and optionally a moniker which
// is a non-unique user-friendly name. When WebRTC is not activated, a peer
// should also specify an IP address and port where it can be reached by
// other peers. With WebRTC, the public key is enough to identify a peer
// within the signaling server.
//
// Two JSON files in the data directory persist peer collections: peers.json
// holds the peers recorded by discovery, and peers.genesis.json holds the
// participant set that negotiated the genesis block.
package peers
