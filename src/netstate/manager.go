package netstate

import (
	"sync"

	"github.com/playergold/goldnode/src/bus"
	"github.com/sirupsen/logrus"
)

// Manager is the single authority deriving the network state. The bootstrap
// controller feeds it mode transitions and genesis existence; consumers
// query it or subscribe to its notifications on the bus.
type Manager struct {
	l sync.Mutex

	attached      bool
	connecting    bool
	genesisExists bool
	bootstrapMode string

	current State

	bus    *bus.Bus
	logger *logrus.Entry
}

// NewManager instantiates a Manager in the Disconnected state.
func NewManager(b *bus.Bus, logger *logrus.Entry) *Manager {
	return &Manager{
		current: Disconnected,
		bus:     b,
		logger:  logger,
	}
}

// Attach marks a bootstrap controller as attached, with its initial mode.
func (m *Manager) Attach(bootstrapMode string) {
	m.l.Lock()
	defer m.l.Unlock()

	m.attached = true
	m.bootstrapMode = bootstrapMode
	m.recompute()
}

// SetConnecting flags a transport dial or handshake in flight.
func (m *Manager) SetConnecting(connecting bool) {
	m.l.Lock()
	defer m.l.Unlock()

	m.connecting = connecting
	m.recompute()
}

// SetBootstrapMode records a bootstrap mode transition.
func (m *Manager) SetBootstrapMode(bootstrapMode string) {
	m.l.Lock()
	defer m.l.Unlock()

	m.bootstrapMode = bootstrapMode
	m.recompute()
}

// SetGenesisExists records whether a genesis block exists.
func (m *Manager) SetGenesisExists(exists bool) {
	m.l.Lock()
	defer m.l.Unlock()

	if m.genesisExists != exists {
		m.genesisExists = exists
		if m.bus != nil {
			m.bus.PublishGenesisStateChanged(exists)
		}
	}
	m.recompute()
}

// State returns the current derived state.
func (m *Manager) State() State {
	m.l.Lock()
	defer m.l.Unlock()

	return m.current
}

// GenesisExists ...
func (m *Manager) GenesisExists() bool {
	m.l.Lock()
	defer m.l.Unlock()

	return m.genesisExists
}

// IsOperationAllowed answers whether the operation is allowed in the current
// state.
func (m *Manager) IsOperationAllowed(op Operation) bool {
	return allowed(m.State(), op)
}

// RestrictedOperations returns the operations denied in the current state.
func (m *Manager) RestrictedOperations() []Operation {
	return restricted(m.State())
}

// recompute derives the state from the current inputs and publishes a
// notification if it changed. Callers hold the lock.
func (m *Manager) recompute() {
	newState := derive(m.attached, m.connecting, m.genesisExists, m.bootstrapMode)

	if newState == m.current {
		return
	}

	previous := m.current
	m.current = newState

	significant := Significant(previous, newState)

	if m.logger != nil {
		m.logger.WithFields(logrus.Fields{
			"previous":    previous.String(),
			"new":         newState.String(),
			"significant": significant,
		}).Debug("Network state changed")
	}

	if m.bus != nil {
		m.bus.PublishNetworkStateChanged(newState.String(), previous.String(), significant)
		if newState == Active {
			m.bus.PublishNetworkActivated()
		}
	}
}
