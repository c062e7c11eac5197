package main

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/danilokhury/termdock/internal/gateway"
	"github.com/danilokhury/termdock/internal/infrastructure/config"
)

var (
	flagGatewayURL string
	flagTimeout    time.Duration
)

var rootCmd = &cobra.Command{
	Use:           "termdock",
	Short:         "Terminal session client for the termdock gateway",
	Long:          "termdock manages terminal sessions on a termdock gateway: create them, list them, attach to them from the current TTY, and inspect saved layout snapshots.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	cfg := config.LoadOrDefault()
	rootCmd.PersistentFlags().StringVar(&flagGatewayURL, "gateway", cfg.Gateway.BaseURL, "Gateway base URL")
	rootCmd.PersistentFlags().DurationVar(&flagTimeout, "timeout", cfg.Gateway.Timeout, "Gateway request timeout")

	rootCmd.AddCommand(newCmd, lsCmd, killCmd, attachCmd, snapshotCmd)
}

func gatewayClient() *gateway.Client {
	return gateway.New(flagGatewayURL, flagTimeout)
}

// statePath resolves the client state database location.
func statePath() (string, error) {
	cfg := config.LoadOrDefault()
	if cfg.State.Path != "" {
		return cfg.State.Path, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(base, "termdock")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return filepath.Join(dir, "state.db"), nil
}
