/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/ssargent/tickdb/pkg/api"
	"github.com/ssargent/tickdb/pkg/config"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long: `Start the TickDB REST API server. Requests to /api/v1 need the API key
from the config file in the X-API-Key header. Prometheus metrics are served
on /metrics and the API documentation on /swagger/index.html.

Examples:
  tickdb serve
  tickdb serve --port 9000 --bind 0.0.0.0
  tickdb serve --config ./tickdb.yaml --api-key mysecretkey`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		if flags.Changed("port") {
			cfg.Port, _ = flags.GetInt("port")
		}
		if flags.Changed("bind") {
			cfg.Bind, _ = flags.GetString("bind")
		}
		if flags.Changed("api-key") {
			cfg.Security.APIKey, _ = flags.GetString("api-key")
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		if cfg.Security.APIKey == "" || cfg.Security.APIKey == "auto" {
			key, err := config.GenerateSecureKey(32)
			if err != nil {
				return err
			}
			cfg.Security.APIKey = key
			cmd.Printf("Generated API key for this run: %s\n", key)
		}

		if container == nil {
			return fmt.Errorf("dependency container not initialized")
		}

		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		starter := container.GetServerFactory().CreateServerStarter()
		if err := starter.StartServer(ctx, store, api.ServerConfig{
			Port:   cfg.Port,
			Bind:   cfg.Bind,
			APIKey: cfg.Security.APIKey,
			Logger: logger,
		}); err != nil {
			return fmt.Errorf("error starting server: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntP("port", "p", 8080, "Port to listen on")
	serveCmd.Flags().String("bind", "127.0.0.1", "Address to bind to")
	serveCmd.Flags().String("api-key", "", "API key for client requests (overrides the config file)")
}
