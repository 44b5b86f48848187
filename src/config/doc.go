// Package config defines the configuration for a goldnode.
//
// Regardless of how a goldnode is started, directly from Go code or as a
// standalone process from the command line, it uses the Config object defined
// in this package to store and forward configuration options. On top of these
// configuration options, a goldnode relies on a data directory, defined by
// Config.DataDir, where it expects to find a few additional files:
//
//  priv_key // a plain text file containing the raw private key (cf. goldnode keygen).
//  peers.json // a JSON file containing the peers recorded by discovery.
//  peers.genesis.json // a JSON file containing the genesis participants.
//  cert.pem // (optional) an x509 certificate for the WebRTC signaling server.
//  badger_db // the database folder holding the persisted bootstrap record.
package config
