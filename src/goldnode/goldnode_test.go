package goldnode

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/playergold/goldnode/src/boot"
	"github.com/playergold/goldnode/src/config"
	"github.com/playergold/goldnode/src/crypto/keys"
	"github.com/playergold/goldnode/src/netstate"
	"github.com/playergold/goldnode/src/store"
	"github.com/sirupsen/logrus"
)

func testConfig(t *testing.T) *config.Config {
	conf := config.NewTestConfig(t, logrus.DebugLevel)
	conf.SetDataDir(t.TempDir())
	conf.BindAddr = "127.0.0.1:0"

	// The service registers its endpoints on the shared DefaultServeMux,
	// which panics on duplicate patterns when multiple engines are created in
	// the same test binary.
	conf.NoService = true

	return conf
}

func TestGoldnodeInit(t *testing.T) {
	conf := testConfig(t)

	engine := NewGoldnode(conf)

	if err := engine.Init(); err != nil {
		t.Fatalf("err: %v", err)
	}
	defer engine.Shutdown()

	// initKey found no keyfile, so it must have generated one
	if _, err := os.Stat(conf.Keyfile()); err != nil {
		t.Fatalf("err: %v", err)
	}

	if m := engine.Controller.Mode(); m != boot.Pioneer {
		t.Fatalf("Mode should be %v, not %v", boot.Pioneer, m)
	}

	if s := engine.NetState.State(); s != netstate.BootstrapPioneer {
		t.Fatalf("State should be %v, not %v", netstate.BootstrapPioneer, s)
	}

	if engine.Self.NetAddr == "" {
		t.Fatal("Self.NetAddr should not be empty")
	}

	if engine.Wallet == nil {
		t.Fatal("Wallet should not be nil")
	}

	if engine.Service != nil {
		t.Fatal("Service should be nil with NoService")
	}

	// a second engine on the same datadir reloads the key instead of
	// generating a new one
	conf2 := config.NewTestConfig(t, logrus.DebugLevel)
	conf2.SetDataDir(conf.DataDir)
	conf2.BindAddr = "127.0.0.1:0"
	conf2.NoService = true

	engine2 := NewGoldnode(conf2)

	if err := engine2.Init(); err != nil {
		t.Fatalf("err: %v", err)
	}
	defer engine2.Shutdown()

	pub := keys.PublicKeyHex(&conf.Key.PublicKey)
	pub2 := keys.PublicKeyHex(&conf2.Key.PublicKey)

	if pub != pub2 {
		t.Fatalf("reloaded key should be %s, not %s", pub, pub2)
	}
}

func TestGoldnodeInitStore(t *testing.T) {
	conf := testConfig(t)
	conf.Store = true

	engine := NewGoldnode(conf)

	if err := engine.initStore(); err != nil {
		t.Fatal(err)
	}

	if engine.Store.NeedBootstrap() {
		t.Fatal("fresh database should not need bootstrap")
	}

	record := &store.Record{
		Mode:          "discovery",
		WalletAddress: "PG" + strings.Repeat("a", 38),
		Resource:      "rig-standard",
		MiningReady:   true,
		NetworkID:     "playergold-testnet",
		CreatedAt:     time.Now().Unix(),
		UpdatedAt:     time.Now().Unix(),
	}

	if err := engine.Store.SetRecord(record); err != nil {
		t.Fatalf("err: %v", err)
	}

	if err := engine.Store.Close(); err != nil {
		t.Fatalf("err: %v", err)
	}

	//check that with Bootstrap, a second engine reopens the same database and
	//resumes from the saved record
	conf.Bootstrap = true

	engine2 := NewGoldnode(conf)

	if err := engine2.initStore(); err != nil {
		t.Fatal(err)
	}
	defer engine2.Store.Close()

	if !engine2.Store.NeedBootstrap() {
		t.Fatal("reloaded database should need bootstrap")
	}

	loaded, err := engine2.Store.GetRecord()
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	if loaded.Mode != record.Mode {
		t.Fatalf("Record.Mode should be %s, not %s", record.Mode, loaded.Mode)
	}

	if loaded.WalletAddress != record.WalletAddress {
		t.Fatalf("Record.WalletAddress should be %s, not %s",
			record.WalletAddress,
			loaded.WalletAddress)
	}
}

func TestKeygen(t *testing.T) {
	keyfile := filepath.Join(t.TempDir(), "priv_key")

	key, err := Keygen(keyfile)
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	if _, err := Keygen(keyfile); err == nil {
		t.Fatal("Keygen should refuse to overwrite an existing key")
	}

	read, err := keys.NewSimpleKeyfile(keyfile).ReadKey()
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	if keys.PublicKeyHex(&read.PublicKey) != keys.PublicKeyHex(&key.PublicKey) {
		t.Fatal("keyfile does not contain the generated key")
	}
}
