package signal

import "github.com/pion/webrtc/v2"

// Signal defines an interface for systems to exchange SDP offers and answers
// to establish WebRTC PeerConnections
type Signal interface {
	// ID returns the identifier under which this end of a connection is
	// reachable through the signaling system
	ID() string

	// Listen is called to listen for incoming SDP offers, and forward them to
	// the Consumer channel
	Listen() error

	// Consumer is the channel through which incoming SDP offers are passed to
	// the WebRTCStreamLayer. SDP offers are wrapped around a promise object
	// which offers a response mechanism.
	Consumer() <-chan OfferPromise

	// Offer sends an SDP offer and waits for an answer
	Offer(target string, offer webrtc.SessionDescription) (*webrtc.SessionDescription, error)

	// Close tears down the connection to the signaling system
	Close() error
}
