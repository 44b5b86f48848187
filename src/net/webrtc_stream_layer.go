package net

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/pion/datachannel"
	webrtc "github.com/pion/webrtc/v2"
	"github.com/playergold/goldnode/src/net/signal"
	"github.com/sirupsen/logrus"
)

// WebRTCStreamLayer implements the StreamLayer interface for WebRTC
type WebRTCStreamLayer struct {
	sync.Mutex
	peerConnections        map[string]*webrtc.PeerConnection
	dataChannels           map[uint16]datachannel.ReadWriteCloser
	signal                 signal.Signal
	iceServers             []webrtc.ICEServer
	incomingConnAggregator chan net.Conn
	onConnecting           func(bool)
	logger                 *logrus.Entry
}

// NewWebRTCStreamLayer instantiates a WebRTCStreamLayer. The signal carries
// SDP offers and answers between peers; iceServers configures the STUN/TURN
// servers used during ICE negotiation.
func NewWebRTCStreamLayer(
	signal signal.Signal,
	iceServers []webrtc.ICEServer,
	logger *logrus.Entry,
) *WebRTCStreamLayer {
	stream := &WebRTCStreamLayer{
		peerConnections:        make(map[string]*webrtc.PeerConnection),
		dataChannels:           make(map[uint16]datachannel.ReadWriteCloser),
		signal:                 signal,
		iceServers:             iceServers,
		incomingConnAggregator: make(chan net.Conn),
		logger:                 logger,
	}
	return stream
}

// OnConnecting registers a callback fired with true when an outbound ICE
// negotiation starts, and false when it completes or fails. It must be set
// before the stream layer is used.
func (w *WebRTCStreamLayer) OnConnecting(fn func(bool)) {
	w.onConnecting = fn
}

// listen receives SDP offers from the Signal, creates corresponding
// PeerConnections and responds. The PeerConnection's DataChannel is piped
// into the connection aggregator.
func (w *WebRTCStreamLayer) listen() error {
	// Start the Signal listener
	go w.signal.Listen()

	consumer := w.signal.Consumer()

	// Process incoming offers
	for offerPromise := range consumer {
		w.logger.Debug("WebRTCStreamLayer processing offer")

		peerConnection, err := w.newPeerConnection(w.incomingConnAggregator, false)
		if err != nil {
			return err
		}

		// Set the remote SessionDescription
		if err := peerConnection.SetRemoteDescription(offerPromise.Offer); err != nil {
			return err
		}

		// Create answer
		answer, err := peerConnection.CreateAnswer(nil)
		if err != nil {
			return err
		}

		// Sets the LocalDescription, and starts our UDP listeners
		if err := peerConnection.SetLocalDescription(answer); err != nil {
			return err
		}

		offerPromise.Respond(&answer, nil)

		w.Lock()
		w.peerConnections[offerPromise.From] = peerConnection
		w.Unlock()
	}

	return nil
}

// newPeerConnection creates a PeerConnection and pipes corresponding
// DataChannel connections into the provided channel. The createDataChannel
// parameter determines whether a new DataChannel is created for the
// PeerConnection or if we just bind to its OnDataChannel handler. Basically,
// set it to true when actively creating a PeerConnection (you are making the
// offer) and vice-versa.
func (w *WebRTCStreamLayer) newPeerConnection(connCh chan net.Conn, createDataChannel bool) (*webrtc.PeerConnection, error) {
	// Create a SettingEngine and enable Detach
	s := webrtc.SettingEngine{}
	s.DetachDataChannels()

	// Create an API object with the engine
	api := webrtc.NewAPI(webrtc.WithSettingEngine(s))

	config := webrtc.Configuration{
		ICEServers: w.iceServers,
	}

	// Create a new RTCPeerConnection using the API object
	peerConnection, err := api.NewPeerConnection(config)
	if err != nil {
		return nil, err
	}

	peerConnection.OnICEConnectionStateChange(func(connectionState webrtc.ICEConnectionState) {
		w.logger.WithField("state", connectionState.String()).Debug("ICE Connection State has changed")
	})

	if createDataChannel {
		// Create a datachannel with label 'data'
		dataChannel, err := peerConnection.CreateDataChannel("data", nil)
		if err != nil {
			return nil, err
		}

		w.pipeDataChannel(dataChannel, connCh)
	} else {
		// Register data channel creation handling
		peerConnection.OnDataChannel(func(d *webrtc.DataChannel) {
			w.pipeDataChannel(d, connCh)
		})
	}

	return peerConnection, nil
}

func (w *WebRTCStreamLayer) pipeDataChannel(dataChannel *webrtc.DataChannel, connCh chan net.Conn) error {
	// Register channel opening handling
	dataChannel.OnOpen(func() {
		dataChannel.OnError(func(err error) {
			w.logger.Debugf("DataChannel OnError: %v", err)
		})

		// Detach the data channel
		raw, err := dataChannel.Detach()
		if err != nil {
			w.logger.WithError(err).Error("Error detaching DataChannel")
		}

		w.Lock()
		w.dataChannels[*dataChannel.ID()] = raw
		w.Unlock()

		connCh <- NewWebRTCConn(raw)
	})

	return nil
}

// Dial implements the StreamLayer interface.
// - Create a PeerConnection associated with the target
// - Create a DataChannel and detach it in its OnOpen handler
// - ICE negotiation
// - Return a net.Conn wrapping the detached datachannel
func (w *WebRTCStreamLayer) Dial(target string, timeout time.Duration) (net.Conn, error) {
	if w.onConnecting != nil {
		w.onConnecting(true)
		defer w.onConnecting(false)
	}

	// connCh is a channel for receiving net.Conn objects asynchronously when
	// the DataChannel's OnOpen callback is fired.
	connCh := make(chan net.Conn)

	// Create PeerConnection and pipe DataChannel connections to connCh
	pc, err := w.newPeerConnection(connCh, true)
	if err != nil {
		return nil, err
	}

	// Create an offer to send to the signaling system
	offer, err := pc.CreateOffer(nil)
	if err != nil {
		return nil, err
	}

	// Sets the LocalDescription, and starts our UDP listeners
	if err := pc.SetLocalDescription(offer); err != nil {
		return nil, err
	}

	// synchronous offer/answer RPC request through signal to exchange SDP
	// information.
	answer, err := w.signal.Offer(target, offer)
	if err != nil {
		return nil, err
	}

	if answer == nil {
		return nil, fmt.Errorf("no answer")
	}

	// Apply the answer as the remote description
	if err := pc.SetRemoteDescription(*answer); err != nil {
		return nil, err
	}

	w.Lock()
	w.peerConnections[target] = pc
	w.Unlock()

	// Wait for DataChannel opening
	timer := time.After(timeout)
	select {
	case <-timer:
		return nil, fmt.Errorf("dial timeout")
	case conn := <-connCh:
		return conn, nil
	}
}

// Accept consumes the incoming connection aggregator fed by the 'listen'
// routine. It aggregates the connections from all DataChannels formed with
// PeerConnections.
func (w *WebRTCStreamLayer) Accept() (c net.Conn, err error) {
	nextConn := <-w.incomingConnAggregator
	return nextConn, nil
}

// Close implements the net.Listener interface. It closes the Signal and all
// the PeerConnections
func (w *WebRTCStreamLayer) Close() (err error) {
	// Close the connection to the signal server
	w.signal.Close()

	w.Lock()
	defer w.Unlock()

	// Close all peer connections
	for _, pc := range w.peerConnections {
		pc.Close()
	}

	// Close all data channels
	for _, dc := range w.dataChannels {
		dc.Close()
	}
	return nil
}

// Addr implements the net.Listener interface
func (w *WebRTCStreamLayer) Addr() net.Addr {
	return nil
}

// AdvertiseAddr implements the StreamLayer interface. Peers are addressed by
// their signal identifier rather than an IP address.
func (w *WebRTCStreamLayer) AdvertiseAddr() string {
	return w.signal.ID()
}
