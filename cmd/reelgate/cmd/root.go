// Package cmd provides the CLI commands for reelgate.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/reelgate/reelgate/internal/config"
)

var (
	cfgFile     string
	debug       bool
	traceOutput bool
	metricsAddr string
)

var rootCmd = &cobra.Command{
	Use:   "reelgate",
	Short: "reelgate - video directory client with session and verification gating",
	Long: `reelgate is a command-line client for the video link directory.

Every request carries the stored session credential. When the directory
asks for human verification, requests are held, a challenge is shown, and
the held requests are sent once the challenge is solved.

Quick start:
  1. Create a config file with api.base_url: reelgate.yaml
  2. Run: reelgate login --username you
  3. Run: reelgate videos "search terms"

Configuration:
  Config is loaded from reelgate.yaml in the current directory,
  $HOME/.reelgate/, or /etc/reelgate/.

  Environment variables can override config values with the REELGATE_ prefix.
  Example: REELGATE_API_BASE_URL=https://videos.example.com/api`,
	SilenceUsage: true,
}

// Execute runs the root command. Ctrl+C cancels the command's context,
// which also fails any request held for verification.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), gracefulSignals()...)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./reelgate.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&traceOutput, "trace", false, "Print spans and API metrics to stderr")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while the command runs")
}

func initConfig() {
	config.InitViper(cfgFile)
}
