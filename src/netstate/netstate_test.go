package netstate

import (
	"testing"

	"github.com/playergold/goldnode/src/bus"
	"github.com/playergold/goldnode/src/common"
	"github.com/sirupsen/logrus"
)

func newTestManager(t *testing.T) (*Manager, <-chan bus.Event, func()) {
	logger := common.NewTestEntry(t, "netstate", logrus.DebugLevel)
	b := bus.NewBus(64, logger)
	events, cancel := b.Subscribe()
	m := NewManager(b, logger)
	return m, events, func() {
		cancel()
		b.Close()
	}
}

func TestDerive(t *testing.T) {
	for _, c := range []struct {
		attached   bool
		connecting bool
		genesis    bool
		mode       string
		out        State
	}{
		{false, false, false, "", Disconnected},
		{false, false, true, "network", Disconnected},
		{true, true, false, "pioneer", Connecting},
		{true, false, false, "pioneer", BootstrapPioneer},
		{true, false, false, "discovery", BootstrapDiscovery},
		{true, false, false, "genesis", BootstrapGenesis},
		{true, false, true, "pioneer", Active},
		{true, false, true, "discovery", Active},
		{true, true, true, "genesis", Active},
		{true, false, true, "network", Active},
		{true, false, false, "network", BootstrapGenesis},
	} {
		got := derive(c.attached, c.connecting, c.genesis, c.mode)
		if got != c.out {
			t.Errorf("derive(%v,%v,%v,%s) => %s != %s",
				c.attached, c.connecting, c.genesis, c.mode, got, c.out)
		}
	}
}

func TestSignificant(t *testing.T) {
	for _, c := range []struct {
		previous State
		new      State
		out      bool
	}{
		{BootstrapGenesis, Active, true},
		{Disconnected, Active, true},
		{Active, Disconnected, true},
		{BootstrapDiscovery, BootstrapGenesis, true},
		{BootstrapPioneer, BootstrapDiscovery, false},
		{Disconnected, Connecting, false},
		{Connecting, BootstrapPioneer, false},
		{Active, Active, false},
	} {
		if got := Significant(c.previous, c.new); got != c.out {
			t.Errorf("Significant(%s, %s) => %v != %v", c.previous, c.new, got, c.out)
		}
	}
}

func TestOperationGate(t *testing.T) {
	networkOps := []Operation{
		SendTransaction,
		RequestFaucet,
		MiningOperations,
		ConsensusParticipation,
		BlockValidation,
	}

	bootstrapStates := []State{
		Disconnected,
		Connecting,
		BootstrapPioneer,
		BootstrapDiscovery,
		BootstrapGenesis,
	}

	for _, s := range bootstrapStates {
		if !allowed(s, BalanceQuery) {
			t.Errorf("balance_query should be allowed in %s", s)
		}
		for _, op := range networkOps {
			if allowed(s, op) {
				t.Errorf("%s should be denied in %s", op, s)
			}
		}
		if len(restricted(s)) != len(networkOps) {
			t.Errorf("restricted(%s) should list %d operations", s, len(networkOps))
		}
	}

	for _, op := range append([]Operation{BalanceQuery}, networkOps...) {
		if !allowed(Active, op) {
			t.Errorf("%s should be allowed in active", op)
		}
	}

	if len(restricted(Active)) != 0 {
		t.Errorf("restricted(active) should be empty")
	}
}

func TestManagerTransitions(t *testing.T) {
	m, events, teardown := newTestManager(t)
	defer teardown()

	if m.State() != Disconnected {
		t.Fatalf("initial state should be disconnected, not %s", m.State())
	}

	m.Attach("pioneer")
	if m.State() != BootstrapPioneer {
		t.Fatalf("state should be bootstrap_pioneer, not %s", m.State())
	}

	m.SetBootstrapMode("discovery")
	m.SetBootstrapMode("genesis")
	m.SetGenesisExists(true)

	if m.State() != Active {
		t.Fatalf("state should be active, not %s", m.State())
	}

	expected := []struct {
		new         string
		significant bool
	}{
		{"bootstrap_pioneer", false},
		{"bootstrap_discovery", false},
		{"bootstrap_genesis", true},
	}

	for _, exp := range expected {
		e := <-events
		if e.NetworkStateChanged == nil {
			t.Fatalf("expected NetworkStateChanged, got %+v", e)
		}
		if e.NetworkStateChanged.New != exp.new {
			t.Fatalf("expected transition to %s, got %s", exp.new, e.NetworkStateChanged.New)
		}
		if e.NetworkStateChanged.Significant != exp.significant {
			t.Fatalf("transition to %s: significant should be %v", exp.new, exp.significant)
		}
	}

	// genesis first fires GenesisStateChanged, then the state change, then
	// activation
	e := <-events
	if e.GenesisStateChanged == nil || !e.GenesisStateChanged.Exists {
		t.Fatalf("expected GenesisStateChanged{true}, got %+v", e)
	}

	e = <-events
	if e.NetworkStateChanged == nil || e.NetworkStateChanged.New != "active" {
		t.Fatalf("expected transition to active, got %+v", e)
	}
	if !e.NetworkStateChanged.Significant {
		t.Fatalf("transition to active should be significant")
	}

	e = <-events
	if e.NetworkActivated == nil {
		t.Fatalf("expected NetworkActivated, got %+v", e)
	}
}

func TestManagerIdempotentGenesis(t *testing.T) {
	m, events, teardown := newTestManager(t)
	defer teardown()

	m.Attach("genesis")
	m.SetGenesisExists(true)
	drain(events)

	// second application of the same genesis state publishes nothing
	m.SetGenesisExists(true)

	select {
	case e := <-events:
		t.Fatalf("no event expected, got %+v", e)
	default:
	}
}

func drain(events <-chan bus.Event) {
	for {
		select {
		case <-events:
		default:
			return
		}
	}
}
