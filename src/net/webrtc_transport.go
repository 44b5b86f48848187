package net

import (
	"time"

	webrtc "github.com/pion/webrtc/v2"
	"github.com/playergold/goldnode/src/net/signal"
	"github.com/sirupsen/logrus"
)

// NewWebRTCTransport returns a NetworkTransport that is built on top of a
// WebRTC StreamLayer. The signal is a mechanism for peers to exchange
// connection information prior to establishing a direct p2p link. The
// connecting callback, if not nil, is fired with true/false around each
// outbound ICE negotiation.
func NewWebRTCTransport(
	signal signal.Signal,
	iceServers []webrtc.ICEServer,
	maxPool int,
	timeout time.Duration,
	negotiationTimeout time.Duration,
	connecting func(bool),
	logger *logrus.Entry,
) (*NetworkTransport, error) {
	return newWebRTCTransport(signal, iceServers, connecting, logger, func(stream StreamLayer) *NetworkTransport {
		return NewNetworkTransport(stream, maxPool, timeout, negotiationTimeout, logger)
	})
}

func newWebRTCTransport(
	signal signal.Signal,
	iceServers []webrtc.ICEServer,
	connecting func(bool),
	logger *logrus.Entry,
	transportCreator func(stream StreamLayer) *NetworkTransport) (*NetworkTransport, error) {

	// Create stream
	stream := NewWebRTCStreamLayer(signal, iceServers, logger)

	if connecting != nil {
		stream.OnConnecting(connecting)
	}

	go stream.listen()

	// Create the network transport
	trans := transportCreator(stream)
	return trans, nil
}
