package store

import (
	"fmt"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/playergold/goldnode/src/common"
	"github.com/playergold/goldnode/src/crypto/keys"
	"github.com/playergold/goldnode/src/genesis"
	"github.com/playergold/goldnode/src/peers"
)

func testRecord() *Record {
	return &Record{
		Mode:          "pioneer",
		WalletAddress: "PG5KJvsngHeMpm884wtkJNzkM9SRTAxSkDCyfAqd",
		Resource:      "gold-resource-1",
		MiningReady:   true,
		NetworkID:     "t1",
		CreatedAt:     1700000000,
		UpdatedAt:     1700000050,
	}
}

func testStorePeers(t *testing.T) *peers.PeerSet {
	t.Helper()

	pirs := []*peers.Peer{}
	for i := 0; i < 3; i++ {
		key, err := keys.GenerateECDSAKey()
		if err != nil {
			t.Fatal(err)
		}
		peer := peers.NewPeer(
			keys.PublicKeyHex(&key.PublicKey),
			fmt.Sprintf("127.0.0.1:%d", 18330+i),
			fmt.Sprintf("node%d", i),
		)
		peer.Ready = true
		pirs = append(pirs, peer)
	}

	return peers.NewPeerSet(pirs)
}

func testStoreGenesis(t *testing.T, ps *peers.PeerSet) *genesis.Document {
	t.Helper()

	doc, err := genesis.Build(genesis.BuildParams{
		NetworkID:   "t1",
		NetworkName: "playergold-testnet",
		P2PPort:     18333,
		APIPort:     18080,
		CreatedBy:   ps.SortedByID()[0].PubKeyString(),
		Timestamp:   1700000000,
	}, ps)
	if err != nil {
		t.Fatal(err)
	}

	return doc
}

func TestInmemStore(t *testing.T) {
	store := NewInmemStore(100)

	if cs := store.CacheSize(); cs != 100 {
		t.Fatalf("CacheSize should be 100, not %d", cs)
	}

	if store.NeedBootstrap() {
		t.Fatal("NeedBootstrap should be false for an InmemStore")
	}

	if _, err := store.GetRecord(); !common.Is(err, common.KeyNotFound) {
		t.Fatalf("GetRecord should return a KeyNotFound error, got %v", err)
	}

	if err := store.SetRecord(nil); !common.Is(err, common.InvalidArgument) {
		t.Fatalf("SetRecord(nil) should return an InvalidArgument error, got %v", err)
	}

	rec := testRecord()
	if err := store.SetRecord(rec); err != nil {
		t.Fatal(err)
	}

	gotRec, err := store.GetRecord()
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(rec, gotRec) {
		t.Fatalf("record should be %#v, not %#v", rec, gotRec)
	}

	ps := testStorePeers(t)
	if err := store.SetPeerSet(ps); err != nil {
		t.Fatal(err)
	}

	gotPs, err := store.GetPeerSet()
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(ps, gotPs) {
		t.Fatal("peer set round trip should preserve the peer set")
	}

	doc := testStoreGenesis(t, ps)
	if err := store.SetGenesis(doc); err != nil {
		t.Fatal(err)
	}

	gotDoc, err := store.GetGenesis()
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(doc, gotDoc) {
		t.Fatal("genesis round trip should preserve the document")
	}
}

func TestBadgerStore(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "badger")

	store, err := NewBadgerStore(100, dir)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	if store.NeedBootstrap() {
		t.Fatal("NeedBootstrap should be false for a new database")
	}

	if p := store.StorePath(); p != dir {
		t.Fatalf("StorePath should be %s, not %s", dir, p)
	}

	if _, err := store.GetGenesis(); !common.Is(err, common.KeyNotFound) {
		t.Fatalf("GetGenesis should return a KeyNotFound error, got %v", err)
	}

	rec := testRecord()
	if err := store.SetRecord(rec); err != nil {
		t.Fatal(err)
	}

	gotRec, err := store.GetRecord()
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(rec, gotRec) {
		t.Fatalf("record should be %#v, not %#v", rec, gotRec)
	}

	//check also that the record reached the db
	dbRec, err := store.dbGetRecord()
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(rec, dbRec) {
		t.Fatalf("db record should be %#v, not %#v", rec, dbRec)
	}

	ps := testStorePeers(t)
	if err := store.SetPeerSet(ps); err != nil {
		t.Fatal(err)
	}

	dbPs, err := store.dbGetPeerSet()
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(ps, dbPs) {
		t.Fatal("db peer set should match the saved peer set")
	}

	doc := testStoreGenesis(t, ps)
	if err := store.SetGenesis(doc); err != nil {
		t.Fatal(err)
	}

	dbDoc, err := store.dbGetGenesis()
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(doc, dbDoc) {
		t.Fatal("db genesis should match the saved document")
	}
}

func TestLoadBadgerStore(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "badger")

	store, err := NewBadgerStore(100, dir)
	if err != nil {
		t.Fatal(err)
	}

	rec := testRecord()
	ps := testStorePeers(t)
	doc := testStoreGenesis(t, ps)

	if err := store.SetRecord(rec); err != nil {
		t.Fatal(err)
	}
	if err := store.SetPeerSet(ps); err != nil {
		t.Fatal(err)
	}
	if err := store.SetGenesis(doc); err != nil {
		t.Fatal(err)
	}

	if err := store.Close(); err != nil {
		t.Fatal(err)
	}

	loaded, err := LoadBadgerStore(100, dir)
	if err != nil {
		t.Fatal(err)
	}
	defer loaded.Close()

	if !loaded.NeedBootstrap() {
		t.Fatal("NeedBootstrap should be true for a loaded database")
	}

	gotRec, err := loaded.GetRecord()
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(rec, gotRec) {
		t.Fatalf("record should be %#v, not %#v", rec, gotRec)
	}

	gotPs, err := loaded.GetPeerSet()
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(ps, gotPs) {
		t.Fatal("reloaded peer set should match the saved peer set")
	}

	gotDoc, err := loaded.GetGenesis()
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(doc, gotDoc) {
		t.Fatal("reloaded genesis should match the saved document")
	}

	if ok, err := gotDoc.Verify(); err != nil || !ok {
		t.Fatalf("reloaded genesis document should verify, got ok=%v err=%v", ok, err)
	}
}

func TestLoadOrCreateBadgerStore(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "badger")

	//no database exists yet: create one
	store, err := LoadOrCreateBadgerStore(100, dir)
	if err != nil {
		t.Fatal(err)
	}

	if store.NeedBootstrap() {
		t.Fatal("NeedBootstrap should be false for a new database")
	}

	if err := store.SetRecord(testRecord()); err != nil {
		t.Fatal(err)
	}
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}

	//the database exists now: load it
	store, err = LoadOrCreateBadgerStore(100, dir)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	if !store.NeedBootstrap() {
		t.Fatal("NeedBootstrap should be true for a loaded database")
	}

	rec, err := store.GetRecord()
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(testRecord(), rec) {
		t.Fatalf("record should be %#v, not %#v", testRecord(), rec)
	}
}

func TestLoadOrCreateBadgerStoreEmptyDB(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "badger")

	store, err := NewBadgerStore(100, dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}

	//the database exists but holds no record: fall back to a fresh store
	store, err = LoadOrCreateBadgerStore(100, dir)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	if store.NeedBootstrap() {
		t.Fatal("NeedBootstrap should be false when no record was saved")
	}
}
