package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"transfertracker/internal/config"
	"transfertracker/internal/infrastructure/logging"
	"transfertracker/internal/interfaces/webui"
)

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		slog.Error("config error", "err", err)
		os.Exit(1)
	}

	logWriter, err := logging.Init(logging.Config{
		Service:    "web",
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

	server, err := webui.NewServer(webui.NewClient(cfg.WebAPIBaseURL, &http.Client{}), cfg.GatewayURL)
	if err != nil {
		slog.Error("web server error", "err", err)
		os.Exit(1)
	}

	slog.Info("web listening", "addr", cfg.WebAddr, "gateway", cfg.GatewayURL)
	if err := server.ListenAndServe(ctx, cfg.WebAddr); err != nil {
		slog.Error("web stopped", "err", err)
		os.Exit(1)
	}
}
