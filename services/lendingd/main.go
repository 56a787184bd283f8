package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"lendhub/native/lending"
	"lendhub/observability/logging"
	"lendhub/observability/otel"
	"lendhub/services/lendingd/config"
	"lendhub/services/lendingd/server"
	"lendhub/storage"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "lendingd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "lendingd.yaml", "path to the daemon configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	logger := logging.SetupWithOptions("lendingd", cfg.Environment, logging.Options{FilePath: cfg.LogFile})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if endpoint := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")); endpoint != "" {
		insecure, _ := strconv.ParseBool(os.Getenv("OTEL_EXPORTER_INSECURE"))
		shutdown, err := otel.Init(ctx, otel.Config{
			ServiceName: "lendingd",
			Environment: cfg.Environment,
			Endpoint:    endpoint,
			Insecure:    insecure,
			Headers:     otel.ParseHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS")),
			Metrics:     true,
			Traces:      true,
		})
		if err != nil {
			return fmt.Errorf("init telemetry: %w", err)
		}
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(flushCtx); err != nil {
				logger.Warn("telemetry shutdown failed", slog.String("error", err.Error()))
			}
		}()
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	store, err := storage.Open(filepath.Join(cfg.DataDir, "lending.db"))
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()
	ledger, err := storage.OpenLedger(filepath.Join(cfg.DataDir, "ledger.db"))
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer ledger.Close()

	protocol := lending.DefaultConfig()
	if cfg.ProtocolFile != "" {
		protocol, err = lending.LoadConfig(cfg.ProtocolFile)
		if err != nil {
			return fmt.Errorf("load protocol config: %w", err)
		}
	}

	srv := server.New(store, ledger, server.NewOracle(cfg.Oracle.Feeds), logger, server.Options{
		Authority:         cfg.Accounts.Authority,
		Treasury:          cfg.Accounts.Treasury,
		ReserveAccount:    cfg.Accounts.Reserve,
		CollateralAccount: cfg.Accounts.Collateral,
		APITokens:         cfg.Auth.APITokens,
		RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
		Burst:             cfg.RateLimit.Burst,
		Protocol:          protocol,
	})

	httpServer := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", slog.String("address", cfg.ListenAddress))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
