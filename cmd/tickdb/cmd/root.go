/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/ssargent/tickdb/pkg/config"
	"github.com/ssargent/tickdb/pkg/di"
	"github.com/ssargent/tickdb/pkg/storage"
)

var (
	container  *di.Container
	cfg        *config.Config
	configPath string
	logger     *slog.Logger
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tickdb",
	Short: "TickDB - chunked time-series store for market ticks",
	Long: `TickDB stores market ticks under fixed-width binary keys. Each
instrument is split into time chunks so that a range scan is a single
ordered walk over the key space.

Examples:
  tickdb init --data-dir ./data
  tickdb put --market S --code 600000 --price 1050 --qty 200
  tickdb scan S 600000 --from 2024-01-02T09:30:00Z --to 2024-01-02T10:00:00Z
  tickdb serve`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadSettings(cmd)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// SetContainer injects the dependency container used by the commands.
func SetContainer(c *di.Container) {
	container = c
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/tickdb/config.yaml)")
	rootCmd.PersistentFlags().StringP("data-dir", "d", "./data", "Data directory for the store")
	rootCmd.PersistentFlags().Duration("chunk", 0, "Chunk duration for a new store (default: the store's recorded duration, or 1h)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
}

// loadSettings reads the config file, if any, and applies flag overrides.
func loadSettings(cmd *cobra.Command) error {
	configPath, _ = cmd.Flags().GetString("config")
	if configPath == "" {
		configPath = config.GetDefaultConfigPath()
	}

	c := config.DefaultConfig()
	if config.ConfigExists(configPath) {
		loaded, err := config.LoadConfig(configPath)
		if err != nil {
			return err
		}
		c = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("data-dir") {
		c.DataDir, _ = flags.GetString("data-dir")
	}
	if flags.Changed("chunk") {
		d, _ := flags.GetDuration("chunk")
		c.Storage.ChunkDuration = config.Duration(d)
	}
	if flags.Changed("log-level") {
		c.Logging.Level, _ = flags.GetString("log-level")
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	l, err := c.Logging.NewLogger(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	cfg = c
	logger = l
	return nil
}

// openStore opens the tick store in the configured data directory.
func openStore() (*storage.TickStore, error) {
	if err := os.MkdirAll(cfg.DataDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}
	s, err := storage.Open(cfg.DataDir, cfg.StorageOptions(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	return s, nil
}
