package config

import (
	"crypto/ecdsa"
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	webrtc "github.com/pion/webrtc/v2"
	"github.com/playergold/goldnode/src/common"
	"github.com/playergold/goldnode/src/wallet"
	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

// Default filenames.
const (
	// DefaultKeyfile is the default name of the file containing the node's
	// private key
	DefaultKeyfile = "priv_key"

	// DefaultBadgerFile is the default name of the folder containing the Badger
	// database
	DefaultBadgerFile = "badger_db"

	// DefaultCertFile is the default name of the file containing the TLS
	// certificate for connecting to the signaling server.
	DefaultCertFile = "cert.pem"
)

// Default configuration values.
const (
	DefaultLogLevel           = "debug"
	DefaultNetwork            = "playergold-testnet"
	DefaultBindAddr           = "127.0.0.1:18333"
	DefaultServiceAddr        = "127.0.0.1:18080"
	DefaultTCPTimeout         = 1000 * time.Millisecond
	DefaultScanInterval       = 1000 * time.Millisecond
	DefaultScanTimeout        = 30 * time.Second
	DefaultNegotiationTimeout = 10 * time.Second
	DefaultRetryBudget        = 3
	DefaultQuorumFloor        = 2
	DefaultMaxPeers           = 50
	DefaultMaxPool            = 2
	DefaultCacheSize          = 10000
	DefaultRefreshInterval    = 10 * time.Second
	DefaultMaxStateAge        = 30 * time.Second
	DefaultStore              = false
	DefaultWebRTC             = false
	DefaultSignalAddr         = "127.0.0.1:2443"
	DefaultSignalRealm        = "playergold"
	DefaultSignalSkipVerify   = false
	DefaultICEAddress         = "stun:stun.l.google.com:19302"
	DefaultICEUsername        = ""
	DefaultICEPassword        = ""
)

// Config contains all the configuration properties of a goldnode.
type Config struct {
	// DataDir is the top-level directory containing goldnode configuration
	// and data
	DataDir string `mapstructure:"datadir"`

	// LogLevel determines the chattiness of the log output.
	LogLevel string `mapstructure:"log"`

	// Network is the name of the network profile this node bootstraps into:
	// playergold-testnet or playergold-mainnet. Peers answering probes with a
	// different network id are discarded.
	Network string `mapstructure:"network"`

	// BindAddr is the local address:port where this node speaks the bootstrap
	// protocol with other nodes. In some cases, there may be a routable
	// address that cannot be bound. Use AdvertiseAddr to advertise a different
	// address to support this.
	BindAddr string `mapstructure:"listen"`

	// AdvertiseAddr is used to change the address that we advertise to other
	// nodes.
	AdvertiseAddr string `mapstructure:"advertise"`

	// NoService disables the HTTP API service.
	NoService bool `mapstructure:"no-service"`

	// ServiceAddr is the address:port of the optional HTTP service. If not
	// specified, and "no-service" is not set, the API handlers are registered
	// with the DefaultServerMux of the http package.
	ServiceAddr string `mapstructure:"service-listen"`

	// Moniker defines the friendly name of this node
	Moniker string `mapstructure:"moniker"`

	// ScanRanges are the address ranges probed by peer discovery. A range is
	// either a single host:port or a dashed span like
	// 192.168.1.10-192.168.1.20:18333.
	ScanRanges []string `mapstructure:"scan-range"`

	// Seeds are individual host:port entries probed before the ranges. They
	// correspond to well-known bootstrap nodes.
	Seeds []string `mapstructure:"seed"`

	// TCPTimeout is the timeout of bootstrap RPC connections. It also applies
	// to WebRTC connections.
	TCPTimeout time.Duration `mapstructure:"timeout"`

	// ScanInterval is the pause between two discovery passes over the
	// configured ranges.
	ScanInterval time.Duration `mapstructure:"scan-interval"`

	// ScanTimeout is the overall time budget of a discovery run. On expiry
	// the run reports a network_timeout but keeps the peers found so far.
	ScanTimeout time.Duration `mapstructure:"scan-timeout"`

	// NegotiationTimeout is the time budget of one genesis negotiation round.
	NegotiationTimeout time.Duration `mapstructure:"negotiation-timeout"`

	// RetryBudget is the number of recoverable failures (timeouts, lost
	// peers) tolerated before a negotiation failure is surfaced to the user.
	RetryBudget int `mapstructure:"retry-budget"`

	// QuorumFloor is the minimum number of ready peers, including this node,
	// required before genesis negotiation starts. The effective quorum is
	// max(QuorumFloor, ceil(0.66 * ready)).
	QuorumFloor int `mapstructure:"quorum-floor"`

	// MaxPeers caps the discovery registry.
	MaxPeers int `mapstructure:"max-peers"`

	// MaxPool controls how many connections are pooled per target.
	MaxPool int `mapstructure:"max-pool"`

	// RefreshInterval is the period of the wallet display cache auto-refresh.
	RefreshInterval time.Duration `mapstructure:"refresh-interval"`

	// MaxStateAge is the maximum age of a cached wallet display state before
	// it is recomputed on access.
	MaxStateAge time.Duration `mapstructure:"max-state-age"`

	// Store activates persistent storage of the bootstrap record.
	Store bool `mapstructure:"store"`

	// DatabaseDir is the directory containing database files.
	DatabaseDir string `mapstructure:"db"`

	// CacheSize is the max number of items in in-memory caches.
	CacheSize int `mapstructure:"cache-size"`

	// Bootstrap determines whether to resume from an existing bootstrap
	// record in the database. Forces Store.
	Bootstrap bool `mapstructure:"bootstrap"`

	// WebRTC determines whether to use a WebRTC transport. WebRTC enables
	// peers to connect directly even with multiple layers of NAT between
	// them. It relies on a signaling server whose address is specified by
	// SignalAddr. When WebRTC is enabled, BindAddr and AdvertiseAddr are
	// ignored.
	WebRTC bool `mapstructure:"webrtc"`

	// SignalAddr is the IP:PORT of the WebRTC signaling server. It is ignored
	// when WebRTC is not enabled. The connection is over secured web-sockets,
	// wss, and it is possible to include a self-signed certificate in a file
	// called cert.pem in the datadir.
	SignalAddr string `mapstructure:"signal-addr"`

	// SignalRealm is an administrative domain within the WebRTC signaling
	// server. Signaling messages are only routed within a Realm.
	SignalRealm string `mapstructure:"signal-realm"`

	// SignalSkipVerify controls whether the signal client verifies the
	// server's certificate chain and host name. This should be used only for
	// testing.
	SignalSkipVerify bool `mapstructure:"signal-skip-verify"`

	// ICEAddress is the URI of a server providing services for ICE, such as
	// STUN and TURN. Username and password can be empty if the ICE server
	// does not use authentication.
	ICEAddress string `mapstructure:"ice-addr"`

	// ICEUsername is the username that will be used to authenticate with the
	// ICE server defined in ICEAddress.
	ICEUsername string `mapstructure:"ice-username"`

	// ICEPassword is the password that will be used to authenticate with the
	// ICE server defined in ICEAddress.
	ICEPassword string `mapstructure:"ice-password"`

	// Ledger is the interface to the blockchain node process that answers
	// balance and transaction-history queries for the wallet display cache.
	Ledger wallet.Ledger

	// Key is the private key identifying the node.
	Key *ecdsa.PrivateKey

	logger *logrus.Logger
}

// NewDefaultConfig returns a config object with default values. All the
// default configuration values are set, even if they cancel each other out.
// For example, when WebRTC = false, all the Signal options are ignored.
func NewDefaultConfig() *Config {
	config := &Config{
		DataDir:            DefaultDataDir(),
		LogLevel:           DefaultLogLevel,
		Network:            DefaultNetwork,
		BindAddr:           DefaultBindAddr,
		ServiceAddr:        DefaultServiceAddr,
		TCPTimeout:         DefaultTCPTimeout,
		ScanInterval:       DefaultScanInterval,
		ScanTimeout:        DefaultScanTimeout,
		NegotiationTimeout: DefaultNegotiationTimeout,
		RetryBudget:        DefaultRetryBudget,
		QuorumFloor:        DefaultQuorumFloor,
		MaxPeers:           DefaultMaxPeers,
		MaxPool:            DefaultMaxPool,
		RefreshInterval:    DefaultRefreshInterval,
		MaxStateAge:        DefaultMaxStateAge,
		Store:              DefaultStore,
		DatabaseDir:        DefaultDatabaseDir(),
		CacheSize:          DefaultCacheSize,
		WebRTC:             DefaultWebRTC,
		SignalAddr:         DefaultSignalAddr,
		SignalRealm:        DefaultSignalRealm,
		SignalSkipVerify:   DefaultSignalSkipVerify,
		ICEAddress:         DefaultICEAddress,
		ICEUsername:        DefaultICEUsername,
		ICEPassword:        DefaultICEPassword,
	}

	return config
}

// NewTestConfig returns a config object with default values and a special
// logger for debugging tests.
func NewTestConfig(t testing.TB, level logrus.Level) *Config {
	config := NewDefaultConfig()
	config.logger = common.NewTestLogger(t, level)
	return config
}

// SetDataDir sets the top-level goldnode directory, and updates the database
// directory if it is currently set to the default value. If the database
// directory is not currently the default, it means the user has explicitly
// set it to something else, so avoid changing it again here.
func (c *Config) SetDataDir(dataDir string) {
	c.DataDir = dataDir
	if c.DatabaseDir == DefaultDatabaseDir() {
		c.DatabaseDir = filepath.Join(dataDir, DefaultBadgerFile)
	}
}

// Keyfile returns the full path of the file containing the private key.
func (c *Config) Keyfile() string {
	return filepath.Join(c.DataDir, DefaultKeyfile)
}

// CertFile returns the full path of the file containing the signal-server TLS
// certificate.
func (c *Config) CertFile() string {
	return filepath.Join(c.DataDir, DefaultCertFile)
}

// ICEServers returns a list of ICE servers used by the WebRTCStreamLayer to
// connect to peers. The list contains a single item which is based on the
// configuration passed through the config object.
func (c *Config) ICEServers() []webrtc.ICEServer {
	return []webrtc.ICEServer{
		{
			URLs:           []string{c.ICEAddress},
			Username:       c.ICEUsername,
			Credential:     c.ICEPassword,
			CredentialType: webrtc.ICECredentialTypePassword,
		},
	}
}

// Logger returns a formatted logrus Entry, with prefix set to "goldnode".
func (c *Config) Logger() *logrus.Entry {
	if c.logger == nil {
		c.logger = logrus.New()
		c.logger.Level = LogLevel(c.LogLevel)
		c.logger.Formatter = new(prefixed.TextFormatter)
	}
	return c.logger.WithField("prefix", "goldnode")
}

// SetLogger replaces the logger that Logger() derives its entries from. The
// CLI uses it to install a logger with file hooks.
func (c *Config) SetLogger(logger *logrus.Logger) {
	c.logger = logger
}

// DefaultDatabaseDir returns the default path for the badger database files.
func DefaultDatabaseDir() string {
	return filepath.Join(DefaultDataDir(), DefaultBadgerFile)
}

// DefaultDataDir returns the default directory name for top-level goldnode
// config based on the underlying OS, attempting to respect conventions.
func DefaultDataDir() string {
	// Try to place the data folder in the user's home dir
	home := HomeDir()
	if home != "" {
		if runtime.GOOS == "darwin" {
			return filepath.Join(home, ".Goldnode")
		} else if runtime.GOOS == "windows" {
			return filepath.Join(home, "AppData", "Roaming", "Goldnode")
		} else {
			return filepath.Join(home, ".goldnode")
		}
	}
	// As we cannot guess a stable location, return empty and handle later
	return ""
}

// HomeDir returns the user's home directory.
func HomeDir() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	if usr, err := user.Current(); err == nil {
		return usr.HomeDir
	}
	return ""
}

// LogLevel parses a string into a Logrus log level.
func LogLevel(l string) logrus.Level {
	switch l {
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	case "panic":
		return logrus.PanicLevel
	default:
		return logrus.DebugLevel
	}
}

// DefaultICEServers returns the default ICE configuration with one URL
// pointing to a public Google STUN server.
func DefaultICEServers() []webrtc.ICEServer {
	return []webrtc.ICEServer{
		{
			URLs: []string{DefaultICEAddress},
		},
	}
}
