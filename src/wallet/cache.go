package wallet

import (
	"sort"
	"sync"
	"time"

	"github.com/playergold/goldnode/src/bus"
	"github.com/playergold/goldnode/src/common"
	"github.com/playergold/goldnode/src/netstate"
	"github.com/sirupsen/logrus"
)

// DisplayState is the per-wallet snapshot consumed by the wallet UI. It
// bundles everything the UI shows at once so a single query answers a whole
// screen refresh.
type DisplayState struct {
	WalletID            string        `json:"walletId"`
	Balance             string        `json:"balance"`
	Transactions        []Transaction `json:"transactions"`
	CanSendTransactions bool          `json:"canSendTransactions"`
	CanRequestFaucet    bool          `json:"canRequestFaucet"`
	NetworkState        string        `json:"networkState"`
	GenesisExists       bool          `json:"genesisExists"`
	StatusMessage       string        `json:"statusMessage"`
	LastUpdated         time.Time     `json:"lastUpdated"`
	IsLoading           bool          `json:"isLoading"`
	Error               string        `json:"error,omitempty"`
}

// Cache computes and caches DisplayStates. States older than maxAge are
// recomputed on access. A control timer refreshes every cached wallet
// periodically, and a bus subscription clears the whole cache on significant
// network-state transitions and on genesis creation, so the next access
// recomputes from scratch.
type Cache struct {
	l      sync.Mutex
	states map[string]DisplayState

	ledger   Ledger
	netstate *netstate.Manager

	maxAge          time.Duration
	refreshInterval time.Duration
	maxTransactions int

	refreshTimer *common.ControlTimer
	subCancel    func()
	shutdownCh   chan struct{}
	shutdownOnce sync.Once
	wg           sync.WaitGroup

	logger *logrus.Entry
}

// NewCache instantiates a Cache and starts its refresh timer and bus
// subscription. maxTransactions bounds the history entries kept per wallet;
// it is normally the store's cache size.
func NewCache(
	ledger Ledger,
	nsm *netstate.Manager,
	b *bus.Bus,
	maxAge time.Duration,
	refreshInterval time.Duration,
	maxTransactions int,
	logger *logrus.Entry) *Cache {

	c := &Cache{
		states:          make(map[string]DisplayState),
		ledger:          ledger,
		netstate:        nsm,
		maxAge:          maxAge,
		refreshInterval: refreshInterval,
		maxTransactions: maxTransactions,
		refreshTimer:    common.NewFixedControlTimer(),
		shutdownCh:      make(chan struct{}),
		logger:          logger,
	}

	go c.refreshTimer.Run(c.refreshInterval)

	c.goFunc(c.refreshLoop)

	if b != nil {
		events, cancel := b.Subscribe()
		c.subCancel = cancel
		c.goFunc(func() { c.watchBus(events) })
	}

	return c
}

// Get returns the display state of a wallet. A cached state younger than
// maxAge is returned as is; otherwise the state is recomputed from the
// network state, genesis record, and ledger. Concurrent callers observe the
// previous state with IsLoading set while a recompute is in flight.
func (c *Cache) Get(walletID string) DisplayState {
	c.l.Lock()

	state, ok := c.states[walletID]
	if ok && time.Since(state.LastUpdated) <= c.maxAge {
		c.l.Unlock()
		return state
	}

	// Mark the entry as loading before releasing the lock. The ledger may
	// be slow and must not be queried under the cache lock.
	state.WalletID = walletID
	state.IsLoading = true
	if state.Balance == "" {
		state.Balance = "0"
	}
	c.states[walletID] = state
	c.l.Unlock()

	fresh := c.compute(walletID)

	c.l.Lock()
	c.states[walletID] = fresh
	c.l.Unlock()

	return fresh
}

// Invalidate clears the whole cache. Every wallet is recomputed on its next
// access.
func (c *Cache) Invalidate() {
	c.l.Lock()
	defer c.l.Unlock()

	if c.logger != nil {
		c.logger.WithField("wallets", len(c.states)).Debug("Invalidating wallet cache")
	}

	c.states = make(map[string]DisplayState)
}

// Size returns the number of cached wallets.
func (c *Cache) Size() int {
	c.l.Lock()
	defer c.l.Unlock()

	return len(c.states)
}

// Close stops the refresh timer and the bus subscription and waits for the
// background routines to drain. It is safe to call more than once.
func (c *Cache) Close() {
	c.shutdownOnce.Do(func() {
		close(c.shutdownCh)

		if c.subCancel != nil {
			c.subCancel()
		}

		c.wg.Wait()

		// The timer keeps servicing ResetCh until every routine is done.
		c.refreshTimer.Shutdown()
	})
}

func (c *Cache) goFunc(f func()) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		f()
	}()
}

// refreshLoop recomputes every cached wallet on each timer tick.
func (c *Cache) refreshLoop() {
	for {
		select {
		case <-c.refreshTimer.TickCh:
			c.refreshAll()
			c.refreshTimer.ResetCh <- c.refreshInterval
		case <-c.shutdownCh:
			return
		}
	}
}

// watchBus clears the cache when a significant network-state transition or a
// genesis creation is notified.
func (c *Cache) watchBus(events <-chan bus.Event) {
	for {
		select {
		case e, ok := <-events:
			if !ok {
				return
			}
			switch {
			case e.GenesisCreated != nil:
				c.Invalidate()
			case e.NetworkStateChanged != nil && e.NetworkStateChanged.Significant:
				c.Invalidate()
			}
		case <-c.shutdownCh:
			return
		}
	}
}

func (c *Cache) refreshAll() {
	c.l.Lock()
	walletIDs := make([]string, 0, len(c.states))
	for id := range c.states {
		walletIDs = append(walletIDs, id)
	}
	c.l.Unlock()

	for _, id := range walletIDs {
		fresh := c.compute(id)

		c.l.Lock()
		// An invalidation between the snapshot and the recompute wins; do
		// not resurrect a deleted entry with possibly stale inputs.
		if _, ok := c.states[id]; ok {
			c.states[id] = fresh
		}
		c.l.Unlock()
	}
}

// compute assembles a fresh DisplayState. Capability flags are derived from
// the network-state allow-list and are only set when the backing ledger
// queries succeed; no failure path fabricates success data.
func (c *Cache) compute(walletID string) DisplayState {
	ns := c.netstate.State()
	genesisExists := c.netstate.GenesisExists()

	state := DisplayState{
		WalletID:      walletID,
		Balance:       "0",
		Transactions:  []Transaction{},
		NetworkState:  ns.String(),
		GenesisExists: genesisExists,
		LastUpdated:   time.Now(),
	}

	if walletID == "" {
		state.Error = common.NewError(common.InvalidArgument, "wallet.get", "empty wallet id").Error()
		state.StatusMessage = "Wallet data unavailable."
		return state
	}

	if !genesisExists {
		state.StatusMessage = formingMessage(ns)
		return state
	}

	balance, err := c.ledger.Balance(walletID)
	if err != nil {
		if c.logger != nil {
			c.logger.WithError(err).WithField("wallet", walletID).Error("Ledger balance query failed")
		}
		state.Error = err.Error()
		state.StatusMessage = "Wallet data unavailable."
		return state
	}

	txs, err := c.ledger.Transactions(walletID, c.maxTransactions)
	if err != nil {
		if c.logger != nil {
			c.logger.WithError(err).WithField("wallet", walletID).Error("Ledger history query failed")
		}
		state.Error = err.Error()
		state.StatusMessage = "Wallet data unavailable."
		return state
	}

	sort.Slice(txs, func(i, j int) bool {
		return txs[i].Timestamp > txs[j].Timestamp
	})

	state.Balance = balance
	state.Transactions = txs
	state.CanSendTransactions = c.netstate.IsOperationAllowed(netstate.SendTransaction)
	state.CanRequestFaucet = c.netstate.IsOperationAllowed(netstate.RequestFaucet)

	if state.CanSendTransactions {
		state.StatusMessage = "Wallet synchronized."
	} else {
		state.StatusMessage = formingMessage(ns)
	}

	return state
}

// formingMessage describes a not-yet-active network without claiming any
// capability the allow-list denies.
func formingMessage(ns netstate.State) string {
	switch ns {
	case netstate.BootstrapPioneer:
		return "Waiting for network formation. Transactions are disabled."
	case netstate.BootstrapDiscovery:
		return "Searching for peers. Transactions are disabled."
	case netstate.BootstrapGenesis:
		return "Creating the network. Transactions are disabled."
	case netstate.Connecting:
		return "Connecting. Transactions are disabled."
	case netstate.Active:
		return "Network active. Wallet data is being fetched."
	default:
		return "Disconnected. Transactions are disabled."
	}
}
