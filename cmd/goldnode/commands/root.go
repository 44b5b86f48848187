package commands

import (
	"os"

	"github.com/playergold/goldnode/src/config"
	"github.com/rifflock/lfshook"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

var (
	_config = config.NewDefaultConfig()
)

//RootCmd is the root command for goldnode
var RootCmd = &cobra.Command{
	Use:              "goldnode",
	Short:            "PlayerGold network node",
	TraverseChildren: true,
}

func init() {
	RootCmd.AddCommand(
		NewRunCmd(),
		NewKeygenCmd(),
		VersionCmd,
	)
}

//newLogger builds a logger that also mirrors info and debug lines to files
//through lfshook. Console output keeps going to stderr.
func newLogger(level string) *logrus.Logger {
	logger := logrus.New()
	logger.Level = config.LogLevel(level)
	logger.Formatter = new(prefixed.TextFormatter)

	pathMap := lfshook.PathMap{}

	_, err := os.OpenFile("goldnode_info.log", os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		logger.Info("Failed to open goldnode_info.log file, using default stderr")
	} else {
		pathMap[logrus.InfoLevel] = "goldnode_info.log"
	}

	_, err = os.OpenFile("goldnode_debug.log", os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		logger.Info("Failed to open goldnode_debug.log file, using default stderr")
	} else {
		pathMap[logrus.DebugLevel] = "goldnode_debug.log"
	}

	logger.Hooks.Add(lfshook.NewHook(
		pathMap,
		&logrus.TextFormatter{},
	))

	return logger
}
