// Package goldnode wires all the components of a PlayerGold node together:
// key, store, transport, bootstrap controller, wallet cache, and API service.
package goldnode

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/playergold/goldnode/src/boot"
	"github.com/playergold/goldnode/src/bus"
	"github.com/playergold/goldnode/src/config"
	"github.com/playergold/goldnode/src/crypto/keys"
	"github.com/playergold/goldnode/src/net"
	"github.com/playergold/goldnode/src/net/signal/wamp"
	"github.com/playergold/goldnode/src/netstate"
	"github.com/playergold/goldnode/src/peers"
	"github.com/playergold/goldnode/src/service"
	"github.com/playergold/goldnode/src/store"
	"github.com/playergold/goldnode/src/wallet"
	"github.com/sirupsen/logrus"
)

// busBufferSize is the capacity of each bus subscriber channel. Slow
// subscribers drop events beyond this backlog.
const busBufferSize = 256

// Goldnode is the top-level object assembling a PlayerGold node.
type Goldnode struct {
	Config     *config.Config
	Self       *peers.Peer
	Store      store.Store
	Transport  net.Transport
	Bus        *bus.Bus
	NetState   *netstate.Manager
	Controller *boot.Controller
	Wallet     *wallet.Cache
	Service    *service.Service
}

// NewGoldnode instantiates a Goldnode with a config object. Call Init before
// Run.
func NewGoldnode(config *config.Config) *Goldnode {
	engine := &Goldnode{
		Config: config,
	}

	return engine
}

func (g *Goldnode) initKey() error {
	if g.Config.Key == nil {
		simpleKeyfile := keys.NewSimpleKeyfile(g.Config.Keyfile())

		privKey, err := simpleKeyfile.ReadKey()

		if err != nil {
			g.Config.Logger().Warn("Cannot read private key from file", err)

			privKey, err = Keygen(g.Config.Keyfile())

			if err != nil {
				g.Config.Logger().Error("Cannot generate a new private key", err)

				return err
			}

			g.Config.Logger().Info("Created a new key:", keys.PublicKeyHex(&privKey.PublicKey))
		}

		g.Config.Key = privKey
	}

	return nil
}

func (g *Goldnode) initStore() error {
	// Resuming requires persistence.
	if g.Config.Bootstrap {
		g.Config.Store = true
	}

	if !g.Config.Store {
		g.Store = store.NewInmemStore(g.Config.CacheSize)

		g.Config.Logger().Debug("Created new in-mem store")

		return nil
	}

	g.Config.Logger().WithField("path", g.Config.DatabaseDir).Debug("Attempting to load or create database")

	var err error

	if g.Config.Bootstrap {
		g.Store, err = store.LoadOrCreateBadgerStore(g.Config.CacheSize, g.Config.DatabaseDir)
	} else {
		g.Store, err = store.NewBadgerStore(g.Config.CacheSize, g.Config.DatabaseDir)
	}

	if err != nil {
		return err
	}

	if g.Store.NeedBootstrap() {
		g.Config.Logger().Debug("Loaded badger store from existing database")
	} else {
		g.Config.Logger().Debug("Created new badger store from fresh database")
	}

	return nil
}

func (g *Goldnode) initBus() error {
	g.Bus = bus.NewBus(busBufferSize, g.Config.Logger())
	g.NetState = netstate.NewManager(g.Bus, g.Config.Logger())

	return nil
}

func (g *Goldnode) initTransport() error {
	if g.Config.WebRTC {
		signalClient, err := wamp.NewClient(
			g.Config.SignalAddr,
			g.Config.SignalRealm,
			keys.PublicKeyHex(&g.Config.Key.PublicKey),
			g.Config.CertFile(),
			g.Config.SignalSkipVerify,
			g.Config.TCPTimeout,
			g.Config.Logger(),
		)

		if err != nil {
			return err
		}

		transport, err := net.NewWebRTCTransport(
			signalClient,
			g.Config.ICEServers(),
			g.Config.MaxPool,
			g.Config.TCPTimeout,
			g.Config.NegotiationTimeout,
			g.NetState.SetConnecting,
			g.Config.Logger(),
		)

		if err != nil {
			return err
		}

		g.Transport = transport

		return nil
	}

	transport, err := net.NewTCPTransport(
		g.Config.BindAddr,
		g.Config.AdvertiseAddr,
		g.Config.MaxPool,
		g.Config.TCPTimeout,
		g.Config.NegotiationTimeout,
		g.Config.Logger(),
	)

	if err != nil {
		return err
	}

	g.Transport = transport

	return nil
}

func (g *Goldnode) initController() error {
	key := g.Config.Key

	g.Self = peers.NewPeer(
		keys.PublicKeyHex(&key.PublicKey),
		g.Transport.AdvertiseAddr(),
		g.Config.Moniker,
	)

	g.Config.Logger().WithFields(logrus.Fields{
		"id":      g.Self.ID(),
		"moniker": g.Self.Moniker,
		"addr":    g.Self.NetAddr,
	}).Debug("This node")

	controller, err := boot.NewController(
		g.Config,
		g.Self,
		key,
		g.Store,
		g.Transport,
		g.NetState,
		g.Bus,
	)

	if err != nil {
		return err
	}

	if err := controller.Init(); err != nil {
		return fmt.Errorf("failed to initialize controller: %s", err)
	}

	g.Controller = controller

	return nil
}

func (g *Goldnode) initWallet() error {
	ledger := g.Config.Ledger

	if ledger == nil {
		g.Config.Logger().Debug("No ledger attached; using in-mem ledger")

		ledger = wallet.NewInmemLedger()
	}

	g.Wallet = wallet.NewCache(
		ledger,
		g.NetState,
		g.Bus,
		g.Config.MaxStateAge,
		g.Config.RefreshInterval,
		g.Config.CacheSize,
		g.Config.Logger(),
	)

	return nil
}

func (g *Goldnode) initService() error {
	if !g.Config.NoService {
		g.Service = service.NewService(
			g.Config.ServiceAddr,
			g.Controller,
			g.Wallet,
			g.NetState,
			g.Config.Logger(),
		)
	}

	return nil
}

// Init initializes all the components in dependency order. It must complete
// before Run.
func (g *Goldnode) Init() error {
	if err := g.initKey(); err != nil {
		return err
	}

	if err := g.initStore(); err != nil {
		return err
	}

	if err := g.initBus(); err != nil {
		return err
	}

	if err := g.initTransport(); err != nil {
		return err
	}

	if err := g.initController(); err != nil {
		return err
	}

	if err := g.initWallet(); err != nil {
		return err
	}

	if err := g.initService(); err != nil {
		return err
	}

	return nil
}

// Run starts the transport listener and the API service, then runs the
// bootstrap controller. It only returns after the controller is shut down.
func (g *Goldnode) Run() {
	go g.Transport.Listen()

	if g.Service != nil {
		go g.Service.Serve()
	}

	g.Controller.Run()
}

// Shutdown stops all the components. The controller closes the transport and
// the store on its way out. Safe to call more than once.
func (g *Goldnode) Shutdown() {
	if g.Wallet != nil {
		g.Wallet.Close()
	}

	if g.Controller != nil {
		g.Controller.Shutdown()
	}

	if g.Bus != nil {
		g.Bus.Close()
	}
}

// Keygen generates a new ECDSA key and writes it to keyfile. It refuses to
// overwrite an existing key.
func Keygen(keyfile string) (*ecdsa.PrivateKey, error) {
	simpleKeyfile := keys.NewSimpleKeyfile(keyfile)

	if _, err := simpleKeyfile.ReadKey(); err == nil {
		return nil, fmt.Errorf("another key already lives under %s", keyfile)
	}

	privKey, err := keys.GenerateECDSAKey()

	if err != nil {
		return nil, err
	}

	if err := simpleKeyfile.WriteKey(privKey); err != nil {
		return nil, err
	}

	return privKey, nil
}
