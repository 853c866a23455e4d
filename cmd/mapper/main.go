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
	"transfertracker/internal/infrastructure/kafka"
	"transfertracker/internal/infrastructure/logging"
	"transfertracker/internal/infrastructure/storage"
	"transfertracker/internal/infrastructure/telemetry"
	"transfertracker/internal/interfaces/httpapi"
	"transfertracker/internal/streaming"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
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

	logFile := cfg.LogFile
	if logFile == "" {
		logFile = "logs/mapper.log"
	}
	logWriter, err := logging.Init(logging.Config{
		Service:    "mapper",
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

	if !cfg.StreamingEnabled() {
		slog.Error("KAFKA_BROKERS is required for the mapper")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	shutdownTracing, err := telemetry.InitTracer(ctx, "transfertracker-mapper", version, cfg.OtelEndpoint)
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

	metrics := httpapi.NewMetrics()
	if last, ok, err := repo.LastProcessedBlock(ctx, cfg.ChainID); err == nil && ok {
		metrics.SetLastProcessed(last)
	}

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

	consumer, err := kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers: cfg.KafkaBrokers,
		Topic:   cfg.KafkaTopic(),
		GroupID: cfg.KafkaGroupID,
	})
	if err != nil {
		slog.Error("kafka consumer error", "err", err)
		os.Exit(1)
	}
	defer consumer.Close()

	slog.Info("mapper started", "topic", cfg.KafkaTopic(), "group", cfg.KafkaGroupID)
	consumeStream(ctx, consumer, repo, metrics, cfg)
	slog.Info("mapper stopped")
}

func consumeStream(ctx context.Context, consumer *kafka.Consumer, writer application.TransferWriter, metrics *httpapi.Metrics, cfg config.Config) {
	tracer := otel.Tracer("transfertracker/mapper")
	batch := application.NewBatch()

	flushInterval := cfg.MapperFlushInterval
	if flushInterval <= 0 {
		flushInterval = time.Second
	}
	batchSize := cfg.MapperBatchSize
	if batchSize <= 0 {
		batchSize = 100
	}

	flush := func(reason string) {
		if batch.Len() == 0 {
			return
		}
		count := batch.TransferCount()
		// the batch is kept on failure and retried on the next flush
		if err := batch.Flush(ctx, writer, consumer); err != nil {
			slog.Error("batch flush error", "reason", reason, "err", err)
			metrics.IncKafkaCommitErr()
			return
		}
		metrics.AddTransfers(count)
	}

	for {
		fetchCtx, cancelFetch := context.WithTimeout(ctx, flushInterval)
		message, err := consumer.FetchMessage(fetchCtx)
		cancelFetch()

		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, context.DeadlineExceeded) {
				flush("interval")
				continue
			}
			metrics.IncKafkaFetchErr()
			slog.Error("kafka fetch error", "err", err)
			time.Sleep(100 * time.Millisecond)
			continue
		}
		metrics.ObserveKafkaMessage(message.Offset, message.Time)

		decoded, err := streaming.Decode(message.Value)
		if err != nil {
			slog.Warn("message decode error", "offset", message.Offset, "err", err)
			metrics.IncKafkaDecodeErr()
			batch.Skip(message)
		} else {
			messageCtx := telemetry.TransferContext(ctx, message.Headers, decoded.TraceID)
			_, span := tracer.Start(messageCtx, "mapper.handle_transfer", trace.WithSpanKind(trace.SpanKindConsumer))
			span.SetAttributes(
				attribute.Int64("chain.id", int64(decoded.ChainID)),
				attribute.Int64("block.number", int64(decoded.BlockNumber)),
				attribute.String("tx.hash", decoded.TxHash),
			)
			if err := batch.Add(decoded, message); err != nil {
				slog.Warn("skip unmappable transfer", "tx_hash", decoded.TxHash, "err", err)
				metrics.IncKafkaApplyErr()
				telemetry.Fail(span, err)
			}
			span.End()
		}

		if batch.Len() >= batchSize {
			flush("size")
		}
	}
}
