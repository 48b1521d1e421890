package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/TheSmallBoat/tcpsocket/config"
	"github.com/TheSmallBoat/tcpsocket/tcpsocket"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "tcpsocket",
	Short: "Managed TCP client driver",
	Long: `tcpsocket drives a managed TCP client connection.

Commands:
  connect  - connect to an endpoint and send fixed-size buffers at an interval
  echo     - run a plain TCP echo server to connect to`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (.toml, .yaml or .yml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

func loadConfig() (*config.File, error) {
	if cfgFile == "" {
		return config.Default(), nil
	}
	return config.Load(cfgFile)
}

func newLogger() *tcpsocket.ZeroLogger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}

	l := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.StampMicro}).
		Level(level).
		With().Timestamp().Logger()
	return tcpsocket.NewZeroLogger(l)
}

func printError(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
}
