package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"transfertracker/internal/application"
	"transfertracker/internal/config"
	"transfertracker/internal/infrastructure/ethrpc"
	"transfertracker/internal/infrastructure/kafka"
	"transfertracker/internal/infrastructure/logging"
	"transfertracker/internal/infrastructure/storage"
	"transfertracker/internal/infrastructure/telemetry"
	"transfertracker/internal/interfaces/httpapi"
)

var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		slog.Error("config error", "err", err)
		os.Exit(1)
	}
	if err := cfg.RequireIndexer(); err != nil {
		slog.Error("config error", "err", err)
		os.Exit(1)
	}

	logFile := cfg.LogFile
	if logFile == "" {
		logFile = "logs/indexer.log"
	}
	logWriter, err := logging.Init(logging.Config{
		Service:    "indexer",
		Level:      cfg.LogLevel,
		File:       logFile,
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

	shutdownTracing, err := telemetry.InitTracer(ctx, "transfertracker-indexer", version, cfg.OtelEndpoint)
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

	repo, err := storage.Open(storage.Config{
		Driver:    cfg.DBDriver,
		DSN:       cfg.DBDSN,
		RedisAddr: cfg.RedisAddr,
		CacheTTL:  cfg.CacheTTL,
	})
	if err != nil {
		slog.Error("db error", "err", err)
		os.Exit(1)
	}
	defer repo.Close()

	rpcClient, err := ethrpc.NewClient(ethrpc.Config{
		URL:     cfg.RPCURL,
		Address: cfg.ContractAddress,
		Topic0:  application.TransferTopic,
		ChainID: cfg.ChainID,
	})
	if err != nil {
		slog.Error("rpc error", "err", err)
		os.Exit(1)
	}

	metrics := httpapi.NewMetrics()
	if last, ok, err := repo.LastProcessedBlock(ctx, cfg.ChainID); err == nil && ok {
		metrics.SetLastProcessed(last)
	}

	var sink application.EventSink
	if cfg.StreamingEnabled() {
		producer, err := kafka.NewProducer(kafka.ProducerConfig{
			Brokers:     cfg.KafkaBrokers,
			TopicPrefix: cfg.KafkaTopicPrefix,
		})
		if err != nil {
			slog.Error("kafka producer error", "err", err)
			os.Exit(1)
		}
		defer producer.Close()
		sink = producer
		slog.Info("publishing transfers to kafka", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic())
	} else {
		// no broker: map in-process and serve the store from here
		sink = application.StoreSink{Writer: repo}
		httpServer, err := httpapi.NewServer(repo, metrics, httpapi.BuildInfo{
			Version:   version,
			Commit:    commit,
			BuildTime: buildTime,
		})
		if err != nil {
			slog.Error("http server error", "err", err)
			os.Exit(1)
		}
		go func() {
			slog.Info("query server listening", "addr", cfg.QueryAddr)
			if err := httpServer.ListenAndServe(ctx, cfg.QueryAddr); err != nil {
				slog.Error("query server error", "err", err)
				cancel()
			}
		}()
	}

	indexer, err := application.NewIndexer(rpcClient, sink, repo, metrics, application.IndexerConfig{
		StartBlock:    cfg.StartBlock,
		Confirmations: cfg.Confirmations,
		PollInterval:  cfg.PollInterval,
		BatchSize:     cfg.BatchSize,
	})
	if err != nil {
		slog.Error("indexer error", "err", err)
		os.Exit(1)
	}

	slog.Info("indexer started",
		"chain_id", cfg.ChainID,
		"contract", cfg.ContractAddress,
		"start_block", cfg.StartBlock,
		"confirmations", cfg.Confirmations,
	)
	if err := indexer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("indexer stopped", "err", err)
		os.Exit(1)
	}
	slog.Info("indexer stopped")
}
