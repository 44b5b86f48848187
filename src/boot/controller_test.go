package boot

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/playergold/goldnode/src/bus"
	"github.com/playergold/goldnode/src/common"
	"github.com/playergold/goldnode/src/config"
	"github.com/playergold/goldnode/src/crypto/keys"
	"github.com/playergold/goldnode/src/genesis"
	"github.com/playergold/goldnode/src/net"
	"github.com/playergold/goldnode/src/netstate"
	"github.com/playergold/goldnode/src/peers"
	"github.com/playergold/goldnode/src/store"
	"github.com/sirupsen/logrus"
)

type testNode struct {
	conf  *config.Config
	self  *peers.Peer
	trans *net.InmemTransport
	store store.Store
	bus   *bus.Bus
	nsm   *netstate.Manager
	ctrl  *Controller
}

func newTestNode(t *testing.T, addr, moniker string, ranges []string, st store.Store) *testNode {
	t.Helper()

	conf := config.NewTestConfig(t, logrus.DebugLevel)
	conf.DataDir = t.TempDir()
	conf.Moniker = moniker
	conf.ScanRanges = ranges
	conf.ScanInterval = 20 * time.Millisecond
	conf.ScanTimeout = 30 * time.Second
	conf.NegotiationTimeout = time.Second
	conf.RetryBudget = 5

	key, err := keys.GenerateECDSAKey()
	if err != nil {
		t.Fatal(err)
	}

	self := peers.NewPeer(keys.PublicKeyHex(&key.PublicKey), addr, moniker)

	_, trans := net.NewInmemTransport(addr)

	if st == nil {
		st = store.NewInmemStore(conf.CacheSize)
	}

	logger := conf.Logger()

	b := bus.NewBus(256, logger)
	nsm := netstate.NewManager(b, logger)

	ctrl, err := NewController(conf, self, key, st, trans, nsm, b)
	if err != nil {
		t.Fatal(err)
	}

	n := &testNode{
		conf:  conf,
		self:  self,
		trans: trans,
		store: st,
		bus:   b,
		nsm:   nsm,
		ctrl:  ctrl,
	}

	t.Cleanup(func() {
		n.ctrl.Shutdown()
		n.bus.Close()
	})

	return n
}

func (n *testNode) init(t *testing.T) {
	t.Helper()
	if err := n.ctrl.Init(); err != nil {
		t.Fatal(err)
	}
}

func (n *testNode) start(t *testing.T) {
	t.Helper()
	n.init(t)
	go n.ctrl.Run()
}

func (n *testNode) register(t *testing.T, address string) {
	t.Helper()
	if err := n.ctrl.OnWalletAddressCreated(address); err != nil {
		t.Fatal(err)
	}
	if err := n.ctrl.OnMiningReadiness("rig-standard"); err != nil {
		t.Fatal(err)
	}
}

func connectAll(nodes ...*testNode) {
	for _, a := range nodes {
		for _, b := range nodes {
			if a != b {
				a.trans.Connect(b.self.NetAddr, b.trans)
			}
		}
	}
}

func testAddress(c byte) string {
	return "PG" + strings.Repeat(string(c), 38)
}

func testGenesisDoc(t *testing.T, self *peers.Peer, timestamp int64) *genesis.Document {
	t.Helper()

	otherKey, err := keys.GenerateECDSAKey()
	if err != nil {
		t.Fatal(err)
	}
	other := peers.NewPeer(keys.PublicKeyHex(&otherKey.PublicKey), "10.0.9.9:18333", "other")

	doc, err := genesis.Build(genesis.BuildParams{
		NetworkID:   "playergold-testnet",
		NetworkName: "playergold-testnet",
		P2PPort:     18333,
		APIPort:     18080,
		CreatedBy:   self.PubKeyString(),
		Timestamp:   timestamp,
	}, peers.NewPeerSet([]*peers.Peer{self, other}))
	if err != nil {
		t.Fatal(err)
	}

	return doc
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal(msg)
}

// countEvents drains the channel for the window and counts matching events.
func countEvents(events <-chan bus.Event, window time.Duration, match func(bus.Event) bool) int {
	count := 0
	deadline := time.After(window)
	for {
		select {
		case e := <-events:
			if match(e) {
				count++
			}
		case <-deadline:
			return count
		}
	}
}

func TestWalletAddressRegistration(t *testing.T) {
	node := newTestNode(t, "10.0.0.1:18333", "node1", nil, nil)
	node.init(t)

	if err := node.ctrl.OnWalletAddressCreated(""); !common.Is(err, common.InvalidArgument) {
		t.Fatalf("expected invalid_argument, got %v", err)
	}

	address := testAddress('m')

	if err := node.ctrl.OnWalletAddressCreated(address); err != nil {
		t.Fatalf("err: %v", err)
	}

	// same address again is a no-op
	if err := node.ctrl.OnWalletAddressCreated(address); err != nil {
		t.Fatalf("err: %v", err)
	}

	// a different address is rejected
	if err := node.ctrl.OnWalletAddressCreated(testAddress('n')); !common.Is(err, common.InvalidArgument) {
		t.Fatalf("expected invalid_argument, got %v", err)
	}

	record, err := node.store.GetRecord()
	if err != nil {
		t.Fatal(err)
	}
	if record.WalletAddress != address {
		t.Fatalf("record address => %s", record.WalletAddress)
	}
	if record.MiningReady {
		t.Fatal("node should not be ready without a resource")
	}
}

func TestStartPeerDiscoveryPrecondition(t *testing.T) {
	node := newTestNode(t, "10.0.0.1:18333", "node1", nil, nil)
	node.init(t)

	if err := node.ctrl.StartPeerDiscovery(); !common.Is(err, common.PreconditionFailed) {
		t.Fatalf("expected precondition_failed, got %v", err)
	}
	if node.ctrl.Mode() != Pioneer {
		t.Fatal("failed precondition must not change the mode")
	}

	if err := node.ctrl.OnWalletAddressCreated(testAddress('m')); err != nil {
		t.Fatal(err)
	}

	// an address alone is not enough
	if err := node.ctrl.StartPeerDiscovery(); !common.Is(err, common.PreconditionFailed) {
		t.Fatalf("expected precondition_failed, got %v", err)
	}

	if err := node.ctrl.OnMiningReadiness("rig-standard"); err != nil {
		t.Fatal(err)
	}

	if !node.ctrl.IsReady() {
		t.Fatal("node should be ready with address and resource")
	}

	if err := node.ctrl.StartPeerDiscovery(); err != nil {
		t.Fatalf("err: %v", err)
	}
	if node.ctrl.Mode() != Discovery {
		t.Fatalf("mode => %s", node.ctrl.Mode())
	}

	// repeated calls are no-ops
	if err := node.ctrl.StartPeerDiscovery(); err != nil {
		t.Fatalf("err: %v", err)
	}
	if node.ctrl.Mode() != Discovery {
		t.Fatalf("mode => %s", node.ctrl.Mode())
	}
}

func TestOnGenesisCreatedIdempotent(t *testing.T) {
	node := newTestNode(t, "10.0.0.1:18333", "node1", nil, nil)
	node.init(t)

	events, cancel := node.bus.Subscribe()
	defer cancel()

	doc := testGenesisDoc(t, node.self, time.Now().Unix())

	if err := node.ctrl.OnGenesisCreated(doc); err != nil {
		t.Fatalf("err: %v", err)
	}

	if node.ctrl.Mode() != Network {
		t.Fatalf("mode => %s", node.ctrl.Mode())
	}
	if node.nsm.State() != netstate.Active {
		t.Fatalf("network state => %s", node.nsm.State())
	}
	if !node.ctrl.GenesisRecord().Exists {
		t.Fatal("genesis record should exist")
	}

	created := countEvents(events, 200*time.Millisecond, func(e bus.Event) bool {
		return e.GenesisCreated != nil
	})
	if created != 1 {
		t.Fatalf("GenesisCreated fired %d times, expected 1", created)
	}

	// applying an equivalent result must not re-fire anything
	if err := node.ctrl.OnGenesisCreated(doc); err != nil {
		t.Fatalf("err: %v", err)
	}

	again := countEvents(events, 200*time.Millisecond, func(e bus.Event) bool {
		return e.GenesisCreated != nil || e.NetworkStateChanged != nil
	})
	if again != 0 {
		t.Fatalf("second application fired %d events, expected 0", again)
	}

	// a different document is a conflict
	other := testGenesisDoc(t, node.self, time.Now().Unix()+1)
	if err := node.ctrl.OnGenesisCreated(other); !common.Is(err, common.GenesisConflict) {
		t.Fatalf("expected genesis_conflict, got %v", err)
	}

	// the mode never regresses
	node.ctrl.setMode(Discovery)
	if node.ctrl.Mode() != Network {
		t.Fatalf("mode regressed to %s", node.ctrl.Mode())
	}
}

func TestProbeServing(t *testing.T) {
	node := newTestNode(t, "10.0.0.1:18333", "node1", nil, nil)
	node.start(t)

	proberKey, err := keys.GenerateECDSAKey()
	if err != nil {
		t.Fatal(err)
	}

	_, proberTrans := net.NewInmemTransport("10.0.0.99:18333")
	proberTrans.Connect(node.self.NetAddr, node.trans)

	args := &net.ProbeRequest{
		FromPubKey:  keys.PublicKeyHex(&proberKey.PublicKey),
		FromAddr:    "10.0.0.99:18333",
		FromMoniker: "prober",
		NetworkID:   "playergold-testnet",
	}

	var resp net.ProbeResponse

	waitFor(t, 2*time.Second, func() bool {
		return proberTrans.Probe(node.self.NetAddr, args, &resp) == nil
	}, "node should answer probes")

	if resp.Mode != "pioneer" {
		t.Fatalf("mode => %s", resp.Mode)
	}
	if resp.Ready {
		t.Fatal("unregistered node should not be ready")
	}
	if resp.NetworkID != "playergold-testnet" {
		t.Fatalf("network id => %s", resp.NetworkID)
	}

	// the probe seeded the responder's registry
	waitFor(t, 2*time.Second, func() bool {
		return node.ctrl.KnownPeers().Len() == 1
	}, "probe should register the prober")

	node.register(t, testAddress('m'))

	waitFor(t, 2*time.Second, func() bool {
		err := proberTrans.Probe(node.self.NetAddr, args, &resp)
		return err == nil && resp.Ready
	}, "registered node should answer ready")
}

func TestSingletonDoesNotFormNetwork(t *testing.T) {
	node := newTestNode(t, "10.0.0.1:18333", "node1", []string{"10.0.0.1:18333"}, nil)
	node.start(t)
	node.register(t, testAddress('m'))

	if err := node.ctrl.StartPeerDiscovery(); err != nil {
		t.Fatal(err)
	}

	time.Sleep(500 * time.Millisecond)

	if node.ctrl.Mode() != Discovery {
		t.Fatalf("a singleton should stay in discovery, not %s", node.ctrl.Mode())
	}
	if node.ctrl.GenesisRecord().Exists {
		t.Fatal("a singleton must never form a network alone")
	}
}

func TestNetworkFormation(t *testing.T) {
	ranges := []string{"10.0.0.1-10.0.0.3:18333"}

	a := newTestNode(t, "10.0.0.1:18333", "nodeA", ranges, nil)
	b := newTestNode(t, "10.0.0.2:18333", "nodeB", ranges, nil)
	c := newTestNode(t, "10.0.0.3:18333", "nodeC", ranges, nil)

	nodes := []*testNode{a, b, c}
	connectAll(nodes...)

	for i, n := range nodes {
		n.start(t)
		n.register(t, testAddress('m'+byte(i)))
		if err := n.ctrl.StartPeerDiscovery(); err != nil {
			t.Fatal(err)
		}
	}

	waitFor(t, 20*time.Second, func() bool {
		for _, n := range nodes {
			if n.ctrl.Mode() != Network || !n.ctrl.GenesisRecord().Exists {
				return false
			}
		}
		return true
	}, "all nodes should reach the network mode")

	hash := a.ctrl.GenesisRecord().Hash
	if hash == "" {
		t.Fatal("empty genesis hash")
	}

	for _, n := range nodes {
		record := n.ctrl.GenesisRecord()
		if record.Hash != hash {
			t.Fatalf("%s holds genesis %s, expected %s", n.self.Moniker, record.Hash, hash)
		}
		if len(record.Participants) < 2 {
			t.Fatalf("%s records %d founders", n.self.Moniker, len(record.Participants))
		}
		if n.nsm.State() != netstate.Active {
			t.Fatalf("%s network state => %s", n.self.Moniker, n.nsm.State())
		}
		if !n.ctrl.IsFeatureAvailable(FeatureSendTransaction) {
			t.Fatalf("%s should allow transactions", n.self.Moniker)
		}
		if len(n.ctrl.RestrictedFeatures()) != 0 {
			t.Fatalf("%s still restricts features", n.self.Moniker)
		}
	}

	// the formed network is persisted
	for _, n := range nodes {
		doc, err := n.store.GetGenesis()
		if err != nil {
			t.Fatalf("%s: %v", n.self.Moniker, err)
		}
		if doc.Block.Hash != hash {
			t.Fatalf("%s persisted genesis %s", n.self.Moniker, doc.Block.Hash)
		}
	}
}

func TestLateJoiner(t *testing.T) {
	ranges := []string{"10.0.0.1-10.0.0.2:18333"}

	a := newTestNode(t, "10.0.0.1:18333", "nodeA", ranges, nil)
	b := newTestNode(t, "10.0.0.2:18333", "nodeB", ranges, nil)

	connectAll(a, b)

	for i, n := range []*testNode{a, b} {
		n.start(t)
		n.register(t, testAddress('m'+byte(i)))
		if err := n.ctrl.StartPeerDiscovery(); err != nil {
			t.Fatal(err)
		}
	}

	waitFor(t, 20*time.Second, func() bool {
		return a.ctrl.Mode() == Network && b.ctrl.Mode() == Network
	}, "founders should form the network")

	hash := a.ctrl.GenesisRecord().Hash

	// a third node starts scanning after the network formed; a founder
	// answers its probe and pushes the genesis document
	late := newTestNode(t, "10.0.0.3:18333", "late", []string{"10.0.0.1-10.0.0.3:18333"}, nil)
	late.trans.Connect(a.self.NetAddr, a.trans)
	late.trans.Connect(b.self.NetAddr, b.trans)
	a.trans.Connect(late.self.NetAddr, late.trans)
	b.trans.Connect(late.self.NetAddr, late.trans)

	late.start(t)
	late.register(t, testAddress('p'))
	if err := late.ctrl.StartPeerDiscovery(); err != nil {
		t.Fatal(err)
	}

	waitFor(t, 20*time.Second, func() bool {
		return late.ctrl.Mode() == Network
	}, "late joiner should adopt the existing network")

	if got := late.ctrl.GenesisRecord().Hash; got != hash {
		t.Fatalf("late joiner holds genesis %s, expected %s", got, hash)
	}
}

func TestResumeFromStore(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "badger")

	st, err := store.NewBadgerStore(100, dir)
	if err != nil {
		t.Fatal(err)
	}

	node := newTestNode(t, "10.0.0.1:18333", "node1", nil, st)
	node.init(t)
	node.register(t, testAddress('m'))

	doc := testGenesisDoc(t, node.self, time.Now().Unix())
	if err := node.ctrl.OnGenesisCreated(doc); err != nil {
		t.Fatal(err)
	}

	node.ctrl.Shutdown()

	loaded, err := store.LoadBadgerStore(100, dir)
	if err != nil {
		t.Fatal(err)
	}

	resumed := newTestNode(t, "10.0.0.1:18333", "node1", nil, loaded)
	resumed.init(t)

	if resumed.ctrl.Mode() != Network {
		t.Fatalf("resumed mode => %s", resumed.ctrl.Mode())
	}
	if got := resumed.ctrl.GenesisRecord().Hash; got != doc.Block.Hash {
		t.Fatalf("resumed genesis => %s", got)
	}
	if got := resumed.ctrl.BootstrapRecord().WalletAddress; got != testAddress('m') {
		t.Fatalf("resumed address => %s", got)
	}
	if resumed.nsm.State() != netstate.Active {
		t.Fatalf("resumed network state => %s", resumed.nsm.State())
	}
}
