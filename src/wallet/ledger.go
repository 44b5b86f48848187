// Package wallet implements the wallet display state cache. It assembles a
// per-wallet snapshot of everything the wallet UI shows at once: balance,
// transaction history, network state, and the capability flags derived from
// the network-state allow-list.
package wallet

import (
	"sort"
	"sync"
)

// Transaction is one entry of a wallet's transaction history, as displayed
// by the wallet UI.
type Transaction struct {
	TxID          string `json:"txid"`
	Direction     string `json:"direction"`
	Amount        string `json:"amount"`
	Counterparty  string `json:"counterparty"`
	Timestamp     int64  `json:"timestamp"`
	Confirmations int    `json:"confirmations"`
}

// Ledger answers balance and transaction-history queries for a wallet. The
// production implementation queries the blockchain node process; tests use
// an InmemLedger.
type Ledger interface {
	// Balance returns the spendable balance of a wallet, as a decimal
	// string in PRGLD.
	Balance(walletID string) (string, error)

	// Transactions returns up to max history entries for a wallet, most
	// recent first.
	Transactions(walletID string, max int) ([]Transaction, error)
}

// InmemLedger is a Ledger backed by in-memory maps. It is used by tests and
// by nodes that run without a blockchain process attached.
type InmemLedger struct {
	sync.Mutex
	balances     map[string]string
	transactions map[string][]Transaction
	err          error
}

// NewInmemLedger instantiates an empty InmemLedger.
func NewInmemLedger() *InmemLedger {
	return &InmemLedger{
		balances:     make(map[string]string),
		transactions: make(map[string][]Transaction),
	}
}

// SetBalance records a wallet balance.
func (l *InmemLedger) SetBalance(walletID string, balance string) {
	l.Lock()
	defer l.Unlock()
	l.balances[walletID] = balance
}

// AddTransaction appends a history entry for a wallet.
func (l *InmemLedger) AddTransaction(walletID string, tx Transaction) {
	l.Lock()
	defer l.Unlock()
	l.transactions[walletID] = append(l.transactions[walletID], tx)
}

// Fail makes every subsequent query return err. Passing nil restores normal
// operation.
func (l *InmemLedger) Fail(err error) {
	l.Lock()
	defer l.Unlock()
	l.err = err
}

// Balance implements the Ledger interface. Unknown wallets have a zero
// balance.
func (l *InmemLedger) Balance(walletID string) (string, error) {
	l.Lock()
	defer l.Unlock()

	if l.err != nil {
		return "", l.err
	}

	balance, ok := l.balances[walletID]
	if !ok {
		return "0", nil
	}
	return balance, nil
}

// Transactions implements the Ledger interface. Entries are returned most
// recent first.
func (l *InmemLedger) Transactions(walletID string, max int) ([]Transaction, error) {
	l.Lock()
	defer l.Unlock()

	if l.err != nil {
		return nil, l.err
	}

	txs := make([]Transaction, len(l.transactions[walletID]))
	copy(txs, l.transactions[walletID])

	sort.Slice(txs, func(i, j int) bool {
		return txs[i].Timestamp > txs[j].Timestamp
	})

	if max > 0 && len(txs) > max {
		txs = txs[:max]
	}

	return txs, nil
}
