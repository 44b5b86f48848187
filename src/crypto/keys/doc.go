// Package keys implements the public key cryptography identifying goldnodes.
//
// An instance of a goldnode, also referred to as a peer or participant, owns
// a cryptographic key-pair that identifies it on the bootstrap protocol and
// signs genesis proposals. The private key is secret but the public key is
// shared with other nodes, which derive the peer's identifier from it.
//
// Node keys use elliptic curve cryptography (ECDSA) with the secp256k1 curve,
// the curve used by Bitcoin and Ethereum. These keys identify nodes on the
// network; they are unrelated to the wallet spend keys managed by the wallet
// application.
package keys
