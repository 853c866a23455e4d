package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"transfertracker/internal/config"
	"transfertracker/internal/infrastructure/logging"
	"transfertracker/internal/infrastructure/subgraph"
	"transfertracker/internal/infrastructure/telemetry"
	"transfertracker/internal/interfaces/gateway"
)

var version = "dev"

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		slog.Error("config error", "err", err)
		os.Exit(1)
	}
	if err := cfg.RequireGateway(); err != nil {
		slog.Error("config error", "err", err)
		os.Exit(1)
	}

	logWriter, err := logging.Init(logging.Config{
		Service:    "gateway",
		Level:      cfg.LogLevel,
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
	})
	if err != nil {
		slog.Error("logger init error", "err", err)
	} else if logWriter != nil {
		defer logWriter.Close()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	shutdownTracing, err := telemetry.InitTracer(ctx, "transfertracker-gateway", version, cfg.OtelEndpoint)
	if err != nil {
		slog.Warn("tracing init error", "err", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			slog.Warn("tracing shutdown error", "err", err)
		}
	}()

	client, err := subgraph.NewClient(cfg.SubgraphURL, &http.Client{})
	if err != nil {
		slog.Error("subgraph client error", "err", err)
		os.Exit(1)
	}
	server, err := gateway.NewServer(client, cfg.TargetAddress)
	if err != nil {
		slog.Error("gateway error", "err", err)
		os.Exit(1)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	slog.Info("server running", "port", cfg.Port, "subgraph", cfg.SubgraphURL)
	if err := server.ListenAndServe(ctx, addr); err != nil {
		slog.Error("gateway stopped", "err", err)
		os.Exit(1)
	}
}
