package telemetry

import (
	"context"
	"strings"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// HeaderTraceID carries the transfer's hex trace ID alongside the propagator
// headers.
const HeaderTraceID = "transfer-trace-id"

type headerCarrier []kafka.Header

func (c headerCarrier) Get(key string) string {
	if i := c.index(key); i >= 0 {
		return string(c[i].Value)
	}
	return ""
}

func (c *headerCarrier) Set(key, value string) {
	if i := c.index(key); i >= 0 {
		(*c)[i].Value = []byte(value)
		return
	}
	*c = append(*c, kafka.Header{Key: key, Value: []byte(value)})
}

func (c headerCarrier) Keys() []string {
	keys := make([]string, len(c))
	for i, header := range c {
		keys[i] = header.Key
	}
	return keys
}

func (c headerCarrier) index(key string) int {
	for i, header := range c {
		if strings.EqualFold(header.Key, key) {
			return i
		}
	}
	return -1
}

// TransferHeaders returns the Kafka headers for one published transfer.
func TransferHeaders(ctx context.Context, traceID string) []kafka.Header {
	carrier := make(headerCarrier, 0, 3)
	otel.GetTextMapPropagator().Inject(ctx, &carrier)
	if traceID != "" {
		carrier.Set(HeaderTraceID, traceID)
	}
	return carrier
}

// TransferContext restores the trace context of a consumed transfer. The
// propagator headers win, then the transfer-trace-id header, then
// fallbackTraceID from the payload.
func TransferContext(ctx context.Context, headers []kafka.Header, fallbackTraceID string) context.Context {
	carrier := headerCarrier(headers)
	extracted := otel.GetTextMapPropagator().Extract(ctx, &carrier)
	if trace.SpanContextFromContext(extracted).IsValid() {
		return extracted
	}
	for _, traceID := range []string{carrier.Get(HeaderTraceID), fallbackTraceID} {
		if traceID == "" {
			continue
		}
		if withTrace, ok := ContextWithTraceID(extracted, traceID); ok {
			return withTrace
		}
	}
	return extracted
}
