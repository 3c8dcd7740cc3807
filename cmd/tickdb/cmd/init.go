/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/ssargent/tickdb/pkg/config"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a config file and data directory",
	Long: `Create the TickDB configuration with a generated API key and prepare
the data directory. The chunk duration given with --chunk (1h when omitted)
is recorded in the store and cannot be changed for that store afterwards.

Examples:
  tickdb init
  tickdb init --data-dir ./data --chunk 10m
  tickdb init --config ./tickdb.yaml --force`,
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")

		if config.ConfigExists(configPath) && !force {
			cmd.Printf("Configuration already exists at %s. Use --force to overwrite.\n", configPath)
			return nil
		}

		c, err := config.BootstrapConfig(configPath, cfg.DataDir)
		if err != nil {
			return err
		}
		c.Storage = cfg.Storage
		c.Logging = cfg.Logging
		if err := config.SaveConfig(c, configPath); err != nil {
			return err
		}
		cfg = c

		if err := os.MkdirAll(cfg.DataDir, 0750); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}
		store, err := openStore()
		if err != nil {
			return err
		}
		chunk := store.Chunker().Duration()
		if err := store.Close(); err != nil {
			return fmt.Errorf("failed to close store: %w", err)
		}

		cmd.Printf("✅ TickDB initialized\n")
		cmd.Printf("Config file: %s\n", configPath)
		cmd.Printf("Data directory: %s\n", cfg.DataDir)
		cmd.Printf("Chunk duration: %s\n", chunk)
		cmd.Printf("API key: %s\n", cfg.Security.APIKey)
		cmd.Printf("\nStart the server with:\n  tickdb serve --config %s\n", configPath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().Bool("force", false, "Overwrite an existing config file")
}
