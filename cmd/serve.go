package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/voyago/voyago/api"
	"github.com/voyago/voyago/internal/app"
	"github.com/voyago/voyago/internal/config"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

// runServe initializes the application and runs the HTTP server until
// SIGINT/SIGTERM.
func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := slog.Default()
	logger.Info("starting voyago", "version", Version)

	a, err := app.Setup(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	srv, err := api.NewServer(api.ServerConfig{
		Logger:     logger,
		Chat:       a.Chat,
		History:    a.Memory,
		Pool:       a.DBPool,
		RateRPS:    cfg.RateRPS,
		RateBurst:  cfg.RateBurst,
		TrustProxy: cfg.TrustProxy,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	addr := serveAddr
	if addr == "" {
		addr = cfg.Addr
	}

	return srv.Run(ctx, addr)
}
