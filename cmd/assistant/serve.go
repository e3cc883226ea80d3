// cmd/assistant/serve.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"banking-assistant/internal/api"
	"banking-assistant/internal/common/config"

	"github.com/spf13/cobra"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the assistant over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg)
		},
	}
}

func runServe(ctx context.Context, cfg *config.Config) error {
	a, err := wireApp(ctx, cfg, wireOptions{metrics: true, audit: true, retries: 15})
	if err != nil {
		return err
	}
	defer a.close()

	opts := a.readinessChecks()
	if cfg.Server.RateLimit.Enabled {
		opts = append(opts, api.WithRateLimiter(api.NewRateLimiter(
			a.redis.Client,
			cfg.Database.Redis.KeyPrefix,
			cfg.Server.RateLimit.Requests,
			time.Duration(cfg.Server.RateLimit.WindowSec)*time.Second,
		)))
	}
	server := api.NewServer(a.orch, newIdentifier(cfg.Auth), a.logger, opts...)

	srv := &http.Server{
		Addr:         cfg.Server.ListenAddr,
		Handler:      server.Routes(),
		ReadTimeout:  config.GetDuration(cfg.Server.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.Server.WriteTimeout),
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server listening", map[string]interface{}{"addr": srv.Addr, "authMode": cfg.Auth.Mode})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			a.logger.Error("HTTP server failed", map[string]interface{}{"error": err})
			return err
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("Shutdown signal received, draining requests...", nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("HTTP server shutdown failed", map[string]interface{}{"error": err})
		return err
	}
	a.logger.Info("HTTP server stopped gracefully", nil)
	return nil
}
