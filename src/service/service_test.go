package service

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/playergold/goldnode/src/boot"
	"github.com/playergold/goldnode/src/bus"
	"github.com/playergold/goldnode/src/config"
	"github.com/playergold/goldnode/src/crypto/keys"
	"github.com/playergold/goldnode/src/genesis"
	"github.com/playergold/goldnode/src/net"
	"github.com/playergold/goldnode/src/netstate"
	"github.com/playergold/goldnode/src/peers"
	"github.com/playergold/goldnode/src/store"
	"github.com/playergold/goldnode/src/wallet"
	"github.com/sirupsen/logrus"
)

type testRig struct {
	conf   *config.Config
	self   *peers.Peer
	ctrl   *boot.Controller
	ledger *wallet.InmemLedger
	cache  *wallet.Cache
	nsm    *netstate.Manager
	svc    *Service
}

func newTestRig(t *testing.T) *testRig {
	conf := config.NewTestConfig(t, logrus.DebugLevel)
	conf.DataDir = t.TempDir()

	key, err := keys.GenerateECDSAKey()
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	conf.Key = key

	self := peers.NewPeer(keys.PublicKeyHex(&key.PublicKey), "10.0.0.1:18333", "service-node")

	_, trans := net.NewInmemTransport("10.0.0.1:18333")
	st := store.NewInmemStore(conf.CacheSize)
	b := bus.NewBus(64, conf.Logger())
	nsm := netstate.NewManager(b, conf.Logger())

	ctrl, err := boot.NewController(conf, self, key, st, trans, nsm, b)
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	if err := ctrl.Init(); err != nil {
		t.Fatalf("err: %v", err)
	}

	ledger := wallet.NewInmemLedger()

	cache := wallet.NewCache(ledger, nsm, b, time.Second, time.Minute, 100, conf.Logger())

	svc := &Service{
		controller: ctrl,
		wallet:     cache,
		netstate:   nsm,
		logger:     conf.Logger(),
	}

	t.Cleanup(func() {
		cache.Close()
		ctrl.Shutdown()
		b.Close()
	})

	return &testRig{
		conf:   conf,
		self:   self,
		ctrl:   ctrl,
		ledger: ledger,
		cache:  cache,
		nsm:    nsm,
		svc:    svc,
	}
}

// get drives a handler through the makeHandler wrapper, the way requests
// arrive through the mux.
func (rig *testRig) get(handler func(http.ResponseWriter, *http.Request), path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("GET", path, nil)
	rec := httptest.NewRecorder()

	rig.svc.makeHandler(handler)(rec, req)

	return rec
}

func (rig *testRig) applyGenesis(t *testing.T) *genesis.Document {
	doc, err := genesis.Build(
		genesis.BuildParams{
			NetworkID:   "playergold-testnet",
			NetworkName: "playergold-testnet",
			P2PPort:     18333,
			APIPort:     18080,
			CreatedBy:   rig.self.PubKeyHex,
			Timestamp:   time.Now().Unix(),
		},
		peers.NewPeerSet([]*peers.Peer{rig.self}),
	)
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	if err := rig.ctrl.OnGenesisCreated(doc); err != nil {
		t.Fatalf("err: %v", err)
	}

	return doc
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorPayload {
	var payload ErrorPayload
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("err: %v", err)
	}
	return payload
}

func TestServiceStatus(t *testing.T) {
	rig := newTestRig(t)

	rec := rig.get(rig.svc.GetStatus, "/status")

	if rec.Code != http.StatusOK {
		t.Fatalf("status code should be %d, not %d", http.StatusOK, rec.Code)
	}

	if cors := rec.Header().Get("Access-Control-Allow-Origin"); cors != "*" {
		t.Fatalf("CORS header should be *, not %q", cors)
	}

	var status Status
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("err: %v", err)
	}

	if status.Mode != "pioneer" {
		t.Fatalf("mode should be pioneer, not %s", status.Mode)
	}

	if status.Ready {
		t.Fatalf("fresh node should not be ready")
	}

	if status.NetworkState != "bootstrap_pioneer" {
		t.Fatalf("network state should be bootstrap_pioneer, not %s", status.NetworkState)
	}

	if status.NetworkID != "playergold-testnet" {
		t.Fatalf("network id should be playergold-testnet, not %s", status.NetworkID)
	}

	if status.Genesis.Exists {
		t.Fatalf("fresh node should not have a genesis record")
	}

	if len(status.RestrictedFeatures) == 0 {
		t.Fatalf("fresh node should have restricted features")
	}
}

func TestServiceGenesisGate(t *testing.T) {
	rig := newTestRig(t)

	rec := rig.get(rig.svc.GetGenesis, "/genesis")

	if rec.Code != http.StatusPreconditionFailed {
		t.Fatalf("status code should be %d, not %d", http.StatusPreconditionFailed, rec.Code)
	}

	if payload := decodeError(t, rec); payload.Kind != "precondition_failed" {
		t.Fatalf("error kind should be precondition_failed, not %s", payload.Kind)
	}

	rec = rig.get(rig.svc.GetNetwork, "/network")

	if rec.Code != http.StatusPreconditionFailed {
		t.Fatalf("status code should be %d, not %d", http.StatusPreconditionFailed, rec.Code)
	}

	if payload := decodeError(t, rec); payload.Kind != "precondition_failed" {
		t.Fatalf("error kind should be precondition_failed, not %s", payload.Kind)
	}

	doc := rig.applyGenesis(t)

	rec = rig.get(rig.svc.GetGenesis, "/genesis")

	if rec.Code != http.StatusOK {
		t.Fatalf("status code should be %d, not %d", http.StatusOK, rec.Code)
	}

	var served genesis.Document
	if err := json.Unmarshal(rec.Body.Bytes(), &served); err != nil {
		t.Fatalf("err: %v", err)
	}

	if served.Block.Hash != doc.Block.Hash {
		t.Fatalf("served genesis hash should be %s, not %s", doc.Block.Hash, served.Block.Hash)
	}

	rec = rig.get(rig.svc.GetNetwork, "/network")

	if rec.Code != http.StatusOK {
		t.Fatalf("status code should be %d, not %d", http.StatusOK, rec.Code)
	}

	var info NetworkInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &info); err != nil {
		t.Fatalf("err: %v", err)
	}

	if info.State != "active" {
		t.Fatalf("network state should be active, not %s", info.State)
	}

	if info.NetworkID != "playergold-testnet" {
		t.Fatalf("network id should be playergold-testnet, not %s", info.NetworkID)
	}
}

func TestServiceWallet(t *testing.T) {
	rig := newTestRig(t)

	rec := rig.get(rig.svc.GetWallet, "/wallet/")

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status code should be %d, not %d", http.StatusBadRequest, rec.Code)
	}

	if payload := decodeError(t, rec); payload.Kind != "invalid_argument" {
		t.Fatalf("error kind should be invalid_argument, not %s", payload.Kind)
	}

	address := "PG" + strings.Repeat("a", 38)

	rec = rig.get(rig.svc.GetWallet, "/wallet/"+address)

	if rec.Code != http.StatusOK {
		t.Fatalf("status code should be %d, not %d", http.StatusOK, rec.Code)
	}

	var state wallet.DisplayState
	if err := json.Unmarshal(rec.Body.Bytes(), &state); err != nil {
		t.Fatalf("err: %v", err)
	}

	if state.Balance != "0" {
		t.Fatalf("balance should be 0 before genesis, not %s", state.Balance)
	}

	if state.CanSendTransactions || state.CanRequestFaucet {
		t.Fatalf("capabilities should be denied before genesis")
	}

	rig.ledger.SetBalance(address, "42")
	rig.applyGenesis(t)

	// The bus notification clears the cache asynchronously; force it so the
	// next read cannot serve the pre-genesis state.
	rig.cache.Invalidate()

	rec = rig.get(rig.svc.GetWallet, "/wallet/"+address)

	if rec.Code != http.StatusOK {
		t.Fatalf("status code should be %d, not %d", http.StatusOK, rec.Code)
	}

	if err := json.Unmarshal(rec.Body.Bytes(), &state); err != nil {
		t.Fatalf("err: %v", err)
	}

	if state.Balance != "42" {
		t.Fatalf("balance should be 42, not %s", state.Balance)
	}

	if !state.CanSendTransactions {
		t.Fatalf("send should be allowed once the network is active")
	}

	if state.NetworkState != "active" {
		t.Fatalf("network state should be active, not %s", state.NetworkState)
	}
}

// TestServiceMux exercises handler registration on the DefaultServeMux. It
// must be the only test instantiating the service through NewService; a
// second registration of the same patterns panics.
func TestServiceMux(t *testing.T) {
	rig := newTestRig(t)

	NewService("", rig.ctrl, rig.cache, rig.nsm, rig.conf.Logger())

	req := httptest.NewRequest("GET", "/status", nil)
	rec := httptest.NewRecorder()

	http.DefaultServeMux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status code should be %d, not %d", http.StatusOK, rec.Code)
	}

	if cors := rec.Header().Get("Access-Control-Allow-Origin"); cors != "*" {
		t.Fatalf("CORS header should be *, not %q", cors)
	}

	req = httptest.NewRequest("GET", "/peers", nil)
	rec = httptest.NewRecorder()

	http.DefaultServeMux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status code should be %d, not %d", http.StatusOK, rec.Code)
	}

	var known []*peers.Peer
	if err := json.Unmarshal(rec.Body.Bytes(), &known); err != nil {
		t.Fatalf("err: %v", err)
	}

	if len(known) != 0 {
		t.Fatalf("fresh node should know no peers, found %d", len(known))
	}

	req = httptest.NewRequest("GET", "/wallet/", nil)
	rec = httptest.NewRecorder()

	http.DefaultServeMux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status code should be %d, not %d", http.StatusBadRequest, rec.Code)
	}
}
