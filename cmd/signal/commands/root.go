package commands

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/playergold/goldnode/src/config"
	"github.com/playergold/goldnode/src/net/signal/wamp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

var (
	address  = "localhost:2443"
	realm    = config.DefaultSignalRealm
	certFile = ""
	keyFile  = ""
	logLevel = "debug"
)

func init() {
	RootCmd.Flags().StringVar(&address, "listen", address, "Listen IP:Port of the signaling server")
	RootCmd.Flags().StringVar(&realm, "realm", realm, "Administrative routing domain; nodes of a network share one realm")
	RootCmd.Flags().StringVar(&certFile, "cert", certFile, "File containing the TLS certificate")
	RootCmd.Flags().StringVar(&keyFile, "key", keyFile, "File containing the TLS private key")
	RootCmd.Flags().StringVar(&logLevel, "log", logLevel, "debug, info, warn, error, fatal, panic")
}

//RootCmd is the root command for the signaling server
var RootCmd = &cobra.Command{
	Use:   "signal",
	Short: "WebRTC signaling server using WebSockets",
	RunE:  runServer,
}

// runServer starts the WAMP server and waits for a SIGINT or SIGTERM
func runServer(cmd *cobra.Command, args []string) error {
	logger := logrus.New()
	logger.Level = config.LogLevel(logLevel)
	logger.Formatter = new(prefixed.TextFormatter)

	server, err := wamp.NewServer(
		address,
		realm,
		certFile,
		keyFile,
		logger.WithField("prefix", "signal"),
	)
	if err != nil {
		return err
	}

	go server.Run()

	//Prepare sigCh to relay SIGINT and SIGTERM system calls
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	<-sigCh

	server.Shutdown()

	return nil
}
