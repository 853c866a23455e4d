package kafka

import (
	"context"
	"fmt"
	"strings"
	"time"

	"transfertracker/internal/application"
	"transfertracker/internal/domain"
	"transfertracker/internal/infrastructure/telemetry"
	"transfertracker/internal/streaming"

	"github.com/cockroachdb/errors"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const defaultTopicPrefix = "transfers"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Producer struct {
	writer messageWriter
	prefix string
}

type ProducerConfig struct {
	Brokers     []string
	TopicPrefix string
}

func NewProducer(cfg ProducerConfig) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	writer := &kafka.Writer{
		Addr: kafka.TCP(cfg.Brokers...),
		// same tx hash, same partition, so duplicates keep their order
		Balancer:     &kafka.Hash{},
		BatchTimeout: 500 * time.Millisecond,
	}
	return newProducer(writer, cfg.TopicPrefix), nil
}

func newProducer(writer messageWriter, prefix string) *Producer {
	if strings.TrimSpace(prefix) == "" {
		prefix = defaultTopicPrefix
	}
	return &Producer{writer: writer, prefix: prefix}
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

// PublishTransfers writes one message per event, keyed by transaction hash.
func (p *Producer) PublishTransfers(ctx context.Context, events []domain.TransferEvent) error {
	if len(events) == 0 {
		return nil
	}
	tracer := otel.Tracer("transfertracker/kafka")
	messages := make([]kafka.Message, 0, len(events))
	spans := make([]trace.Span, 0, len(events))
	for _, event := range events {
		traceCtx, span := tracer.Start(ctx, "indexer.publish_transfer", trace.WithSpanKind(trace.SpanKindProducer))
		span.SetAttributes(
			attribute.Int64("chain.id", int64(event.ChainID)),
			attribute.Int64("block.number", int64(event.Block.Number)),
			attribute.Int64("log.index", int64(event.LogIndex)),
			attribute.String("tx.hash", event.TransactionHash),
		)

		msg := application.EventToMessage(event)
		if sc := span.SpanContext(); sc.HasTraceID() {
			msg.TraceID = sc.TraceID().String()
		} else if _, traceIDHex, ok := telemetry.NewTraceID(); ok {
			msg.TraceID = traceIDHex
		}
		payload, err := streaming.Encode(msg)
		if err != nil {
			telemetry.Fail(span, err)
			span.End()
			for _, pending := range spans {
				pending.End()
			}
			return err
		}
		messages = append(messages, kafka.Message{
			Topic:   p.topicForChain(event.ChainID),
			Key:     []byte(event.TransactionHash),
			Value:   payload,
			Headers: telemetry.TransferHeaders(traceCtx, msg.TraceID),
		})
		spans = append(spans, span)
	}
	err := p.writer.WriteMessages(ctx, messages...)
	for _, span := range spans {
		telemetry.Fail(span, err)
		span.End()
	}
	if err != nil {
		return errors.Wrapf(err, "publish %d transfers", len(messages))
	}
	return nil
}

func (p *Producer) topicForChain(chainID uint64) string {
	return fmt.Sprintf("%s-%d", p.prefix, chainID)
}
