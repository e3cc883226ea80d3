// cmd/assistant/worker.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"banking-assistant/internal/common/camunda"
	"banking-assistant/internal/common/config"
	processmessage "banking-assistant/internal/workers/assistant/process-message"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

func newWorkerCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the assistant as a Zeebe job worker",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runWorker(ctx, cfg)
		},
	}
}

func runWorker(ctx context.Context, cfg *config.Config) error {
	if cfg.Camunda.BrokerAddress == "" {
		return fmt.Errorf("camunda.broker_address is required to run the worker")
	}

	a, err := wireApp(ctx, cfg, wireOptions{metrics: true, audit: true, retries: 15})
	if err != nil {
		return err
	}
	defer a.close()

	// --- Init Zeebe Client with retry ---
	var zeebe *camunda.Client
	err = retryWithBackoff(func() error {
		var err error
		zeebe, err = camunda.NewClient(cfg.Camunda.BrokerAddress)
		return err
	}, 10, 2*time.Second, a.logger, "Zeebe client initialization")
	if err != nil {
		return err
	}
	defer func() {
		if err := zeebe.Close(); err != nil {
			a.logger.Error("Error closing Zeebe client", map[string]interface{}{"error": err})
		}
	}()
	a.logger.Info("Zeebe client connected successfully", nil)

	handler, err := processmessage.NewHandler(processmessage.HandlerOptions{
		AppConfig: cfg,
		Processor: a.orch,
		Logger:    a.logger,
	})
	if err != nil {
		return err
	}
	if !handler.Config().Enabled {
		a.logger.Warn("worker disabled", map[string]interface{}{"taskType": processmessage.TaskType})
		return nil
	}
	w := camunda.NewWorker(zeebe.GetClient(), processmessage.TaskType,
		handler.Config().MaxJobsActive, handler.Config().Timeout, handler, a.logger)

	// --- Health & Metrics Server ---
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(rw http.ResponseWriter, r *http.Request) {
		status, code := "healthy", http.StatusOK
		if err := zeebe.HealthCheck(r.Context()); err != nil {
			status, code = "unhealthy", http.StatusServiceUnavailable
		}
		rw.Header().Set("Content-Type", "application/json")
		rw.WriteHeader(code)
		_ = json.NewEncoder(rw).Encode(map[string]string{
			"status": status,
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	mux.Handle("/metrics", promhttp.Handler())
	probe := &http.Server{Addr: cfg.Server.ListenAddr, Handler: mux}
	go func() {
		a.logger.Info("Health/Metrics server listening", map[string]interface{}{"addr": probe.Addr})
		if err := probe.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("Health/Metrics server failed", map[string]interface{}{"error": err})
		}
	}()

	// --- Graceful Shutdown ---
	<-ctx.Done()
	a.logger.Info("Shutdown signal received, stopping worker...", nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()

	w.Stop(shutdownCtx)
	_ = probe.Shutdown(shutdownCtx)
	a.logger.Info("Worker stopped gracefully", nil)
	return nil
}
