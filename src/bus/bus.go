// Package bus implements the typed notification bus connecting the bootstrap
// components to each other and to external consumers.
//
// The set of notification types is fixed and enumerated by the Event union.
// Payloads carry display-level values only; a consumer that needs
// authoritative data queries the owning component instead of trusting an
// event payload. Subscribers receive events in publication order. A
// subscriber that stops draining its channel loses events rather than
// blocking or reordering the publisher.
package bus

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Event is the union of all notification types. Exactly one field is non-nil
// per event.
type Event struct {
	ModeChanged         *ModeChanged
	PeerDiscoveryStatus *PeerDiscoveryStatus
	GenesisProgress     *GenesisProgress
	GenesisCreated      *GenesisCreated
	GenesisStateChanged *GenesisStateChanged
	NetworkStateChanged *NetworkStateChanged
	NetworkActivated    *NetworkActivated
	ErrorOccurred       *ErrorOccurred
	Success             *Success
}

// ModeChanged reports a bootstrap mode transition.
type ModeChanged struct {
	New      string
	Previous string
}

// PeerDiscoveryStatus reports discovery progress.
type PeerDiscoveryStatus struct {
	Percentage   int
	CurrentRange string
	PeersFound   int
	StatusText   string
}

// GenesisProgress reports the state of a genesis negotiation round.
type GenesisProgress struct {
	Phase        string
	Percentage   int
	Message      string
	Participants []string
}

// GenesisCreated reports that a genesis block was agreed. The full document
// is held by the bootstrap controller and the store.
type GenesisCreated struct {
	BlockHash string
	NetworkID string
}

// GenesisStateChanged reports a change of genesis existence.
type GenesisStateChanged struct {
	Exists bool
}

// NetworkStateChanged reports a derived network state transition.
type NetworkStateChanged struct {
	New         string
	Previous    string
	Significant bool
}

// NetworkActivated reports entry into the active network state.
type NetworkActivated struct {
}

// ErrorOccurred reports a failure surfaced to consumers.
type ErrorOccurred struct {
	Kind    string
	Op      string
	Message string
}

// Success reports a user-visible success message.
type Success struct {
	Message string
}

// Bus fans events out to subscribers.
type Bus struct {
	l          sync.Mutex
	subs       map[int]chan Event
	nextSub    int
	bufferSize int
	closed     bool
	logger     *logrus.Entry
}

// NewBus instantiates a Bus. bufferSize is the per-subscriber channel buffer.
func NewBus(bufferSize int, logger *logrus.Entry) *Bus {
	return &Bus{
		subs:       make(map[int]chan Event),
		bufferSize: bufferSize,
		logger:     logger,
	}
}

// Subscribe registers a new subscriber and returns its channel along with a
// cancel function. The cancel function closes the channel; it is safe to
// call more than once.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.l.Lock()
	defer b.l.Unlock()

	if b.closed {
		ch := make(chan Event)
		close(ch)
		return ch, func() {}
	}

	id := b.nextSub
	b.nextSub++

	ch := make(chan Event, b.bufferSize)
	b.subs[id] = ch

	cancel := func() {
		b.l.Lock()
		defer b.l.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}

	return ch, cancel
}

// Close closes all subscriber channels. Publishing after Close is a no-op.
func (b *Bus) Close() {
	b.l.Lock()
	defer b.l.Unlock()

	if b.closed {
		return
	}
	b.closed = true

	for id, sub := range b.subs {
		delete(b.subs, id)
		close(sub)
	}
}

// publish fans an event out under the lock, so every subscriber observes
// events in the same order they were published. A subscriber with a full
// buffer misses the event.
func (b *Bus) publish(e Event) {
	b.l.Lock()
	defer b.l.Unlock()

	if b.closed {
		return
	}

	for id, sub := range b.subs {
		select {
		case sub <- e:
		default:
			if b.logger != nil {
				b.logger.WithField("subscriber", id).Warn("Dropping event, subscriber buffer full")
			}
		}
	}
}

// PublishModeChanged ...
func (b *Bus) PublishModeChanged(newMode, previousMode string) {
	b.publish(Event{ModeChanged: &ModeChanged{New: newMode, Previous: previousMode}})
}

// PublishPeerDiscoveryStatus ...
func (b *Bus) PublishPeerDiscoveryStatus(p PeerDiscoveryStatus) {
	b.publish(Event{PeerDiscoveryStatus: &p})
}

// PublishGenesisProgress ...
func (b *Bus) PublishGenesisProgress(p GenesisProgress) {
	b.publish(Event{GenesisProgress: &p})
}

// PublishGenesisCreated ...
func (b *Bus) PublishGenesisCreated(blockHash, networkID string) {
	b.publish(Event{GenesisCreated: &GenesisCreated{BlockHash: blockHash, NetworkID: networkID}})
}

// PublishGenesisStateChanged ...
func (b *Bus) PublishGenesisStateChanged(exists bool) {
	b.publish(Event{GenesisStateChanged: &GenesisStateChanged{Exists: exists}})
}

// PublishNetworkStateChanged ...
func (b *Bus) PublishNetworkStateChanged(newState, previousState string, significant bool) {
	b.publish(Event{NetworkStateChanged: &NetworkStateChanged{
		New:         newState,
		Previous:    previousState,
		Significant: significant,
	}})
}

// PublishNetworkActivated ...
func (b *Bus) PublishNetworkActivated() {
	b.publish(Event{NetworkActivated: &NetworkActivated{}})
}

// PublishError ...
func (b *Bus) PublishError(kind, op, message string) {
	b.publish(Event{ErrorOccurred: &ErrorOccurred{Kind: kind, Op: op, Message: message}})
}

// PublishSuccess ...
func (b *Bus) PublishSuccess(message string) {
	b.publish(Event{Success: &Success{Message: message}})
}
