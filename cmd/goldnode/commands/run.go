package commands

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/playergold/goldnode/src/goldnode"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

//NewRunCmd returns the command that starts a goldnode
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "run",
		Short:   "Run node",
		PreRunE: loadConfig,
		RunE:    runGoldnode,
	}
	AddRunFlags(cmd)
	return cmd
}

/*******************************************************************************
* RUN
*******************************************************************************/

func runGoldnode(cmd *cobra.Command, args []string) error {
	engine := goldnode.NewGoldnode(_config)

	if err := engine.Init(); err != nil {
		_config.Logger().Error("Cannot initialize engine:", err)
		return err
	}

	//Relay SIGINT and SIGTERM to the engine shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		engine.Shutdown()
	}()

	engine.Run()

	return nil
}

/*******************************************************************************
* CONFIG
*******************************************************************************/

//AddRunFlags adds flags to the Run command
func AddRunFlags(cmd *cobra.Command) {

	cmd.Flags().String("datadir", _config.DataDir, "Top-level directory for configuration and data")
	cmd.Flags().String("log", _config.LogLevel, "debug, info, warn, error, fatal, panic")
	cmd.Flags().String("moniker", _config.Moniker, "Optional name")
	cmd.Flags().String("network", _config.Network, "playergold-testnet or playergold-mainnet")

	// Network
	cmd.Flags().StringP("listen", "l", _config.BindAddr, "Listen IP:Port for the bootstrap protocol")
	cmd.Flags().StringP("advertise", "a", _config.AdvertiseAddr, "Advertise IP:Port for the bootstrap protocol")
	cmd.Flags().DurationP("timeout", "t", _config.TCPTimeout, "TCP Timeout")
	cmd.Flags().Int("max-pool", _config.MaxPool, "Connection pool size max")

	// Discovery
	cmd.Flags().StringSlice("scan-range", _config.ScanRanges, "Address range to probe, e.g. 192.168.1.10-192.168.1.50:18333")
	cmd.Flags().StringSlice("seed", _config.Seeds, "Well-known host:port probed before the ranges")
	cmd.Flags().Duration("scan-interval", _config.ScanInterval, "Pause between two discovery passes")
	cmd.Flags().Duration("scan-timeout", _config.ScanTimeout, "Time budget of a discovery run")
	cmd.Flags().Int("max-peers", _config.MaxPeers, "Cap on the discovery registry")

	// Genesis
	cmd.Flags().Duration("negotiation-timeout", _config.NegotiationTimeout, "Time budget of one genesis negotiation round")
	cmd.Flags().Int("retry-budget", _config.RetryBudget, "Recoverable failures tolerated before a negotiation error is surfaced")
	cmd.Flags().Int("quorum-floor", _config.QuorumFloor, "Minimum number of ready peers, including this node")

	// Service
	cmd.Flags().StringP("service-listen", "s", _config.ServiceAddr, "Listen IP:Port for HTTP service")
	cmd.Flags().Bool("no-service", _config.NoService, "Disable the HTTP service")

	// Store
	cmd.Flags().Bool("store", _config.Store, "Use badgerDB instead of in-mem DB")
	cmd.Flags().String("db", _config.DatabaseDir, "Dabatabase directory")
	cmd.Flags().Bool("bootstrap", _config.Bootstrap, "Load from database")
	cmd.Flags().Int("cache-size", _config.CacheSize, "Number of items in LRU caches")

	// Wallet
	cmd.Flags().Duration("refresh-interval", _config.RefreshInterval, "Period of the wallet cache auto-refresh")
	cmd.Flags().Duration("max-state-age", _config.MaxStateAge, "Max age of a cached wallet display state")

	// WebRTC
	cmd.Flags().Bool("webrtc", _config.WebRTC, "Use a WebRTC transport")
	cmd.Flags().String("signal-addr", _config.SignalAddr, "IP:Port of the WebRTC signaling server")
	cmd.Flags().String("signal-realm", _config.SignalRealm, "Administrative routing domain within the signaling server")
	cmd.Flags().Bool("signal-skip-verify", _config.SignalSkipVerify, "(Insecure) Accept any certificate presented by the signaling server")
	cmd.Flags().String("ice-addr", _config.ICEAddress, "URI of an ICE server (STUN or TURN)")
	cmd.Flags().String("ice-username", _config.ICEUsername, "Username for the ICE server")
	cmd.Flags().String("ice-password", _config.ICEPassword, "Password for the ICE server")
}

func loadConfig(cmd *cobra.Command, args []string) error {

	err := bindFlagsLoadViper(cmd)
	if err != nil {
		return err
	}

	// If --datadir was explicitely set, but not --db, this will update the
	// default database dir to be inside the new datadir
	_config.SetDataDir(_config.DataDir)

	_config.SetLogger(newLogger(_config.LogLevel))

	logFields := logrus.Fields{
		"datadir":             _config.DataDir,
		"network":             _config.Network,
		"listen":              _config.BindAddr,
		"advertise":           _config.AdvertiseAddr,
		"service-listen":      _config.ServiceAddr,
		"no-service":          _config.NoService,
		"moniker":             _config.Moniker,
		"scan-range":          _config.ScanRanges,
		"seed":                _config.Seeds,
		"scan-interval":       _config.ScanInterval,
		"scan-timeout":        _config.ScanTimeout,
		"negotiation-timeout": _config.NegotiationTimeout,
		"retry-budget":        _config.RetryBudget,
		"quorum-floor":        _config.QuorumFloor,
		"max-pool":            _config.MaxPool,
		"timeout":             _config.TCPTimeout,
		"cache-size":          _config.CacheSize,
		"store":               _config.Store,
		"webrtc":              _config.WebRTC,
		"log":                 _config.LogLevel,
	}

	if _config.Store {
		logFields["db"] = _config.DatabaseDir
		logFields["bootstrap"] = _config.Bootstrap
	}

	if _config.WebRTC {
		logFields["signal-addr"] = _config.SignalAddr
		logFields["signal-realm"] = _config.SignalRealm
		logFields["ice-addr"] = _config.ICEAddress
	}

	_config.Logger().WithFields(logFields).Debug("RUN")

	return nil
}

// Bind all flags and read the config into viper
func bindFlagsLoadViper(cmd *cobra.Command) error {
	// Register flags with viper. Include flags from this command and all other
	// persistent flags from the parent
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// first unmarshal to read from CLI flags
	if err := viper.Unmarshal(_config); err != nil {
		return err
	}

	// look for config file in [datadir]/goldnode.toml (.json, .yaml also work)
	viper.SetConfigName("goldnode")      // name of config file (without extension)
	viper.AddConfigPath(_config.DataDir) // search root directory

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		_config.Logger().Debugf("Using config file: %s", viper.ConfigFileUsed())
	} else if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		_config.Logger().Debugf("No config file found in: %s", _config.DataDir)
	} else {
		return err
	}

	// second unmarshal to read from config file
	return viper.Unmarshal(_config)
}
