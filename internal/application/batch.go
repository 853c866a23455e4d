package application

import (
	"context"
	"log/slog"
	"time"

	"transfertracker/internal/domain"
	"transfertracker/internal/streaming"

	"github.com/cockroachdb/errors"
	"github.com/segmentio/kafka-go"
)

// Batch accumulates mapped transfers and the Kafka messages they came from so
// offsets are committed only after the records are stored.
type Batch struct {
	transfers []domain.Transfer
	messages  []kafka.Message
	minOffset map[int]int64
	maxOffset map[int]int64
}

func NewBatch() *Batch {
	return &Batch{
		minOffset: make(map[int]int64),
		maxOffset: make(map[int]int64),
	}
}

// Add maps msg into the batch. The Kafka message is tracked for commit even
// when mapping fails, so a poison message is skipped rather than replayed.
func (b *Batch) Add(msg streaming.Message, kafkaMsg kafka.Message) error {
	b.messages = append(b.messages, kafkaMsg)

	partition := kafkaMsg.Partition
	offset := kafkaMsg.Offset
	if min, ok := b.minOffset[partition]; !ok || offset < min {
		b.minOffset[partition] = offset
	}
	if max, ok := b.maxOffset[partition]; !ok || offset > max {
		b.maxOffset[partition] = offset
	}

	event, err := MessageToEvent(msg)
	if err != nil {
		return err
	}
	b.transfers = append(b.transfers, MapTransfer(event))
	return nil
}

// Skip tracks a Kafka message that could not be decoded at all.
func (b *Batch) Skip(kafkaMsg kafka.Message) {
	b.messages = append(b.messages, kafkaMsg)
}

func (b *Batch) Len() int {
	return len(b.messages)
}

// TransferCount is the number of records the next Flush will store.
func (b *Batch) TransferCount() int {
	return len(b.transfers)
}

type Committer interface {
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Flush stores the batch in arrival order, then commits offsets. On error
// nothing is committed and the batch is left intact for a retry.
func (b *Batch) Flush(ctx context.Context, writer TransferWriter, committer Committer) error {
	if b.Len() == 0 {
		return nil
	}

	start := time.Now()

	if len(b.transfers) > 0 {
		if err := writer.SaveTransfers(ctx, b.transfers); err != nil {
			return errors.Wrap(err, "failed to store transfers")
		}
	}

	if err := committer.CommitMessages(ctx, b.messages...); err != nil {
		return errors.Wrap(err, "failed to commit kafka messages")
	}

	slog.Info("flushed batch",
		"count", b.Len(),
		"transfers", len(b.transfers),
		"offsets", b.offsetRanges(),
		"duration", time.Since(start),
	)

	b.Reset()
	return nil
}

func (b *Batch) offsetRanges() map[int][2]int64 {
	ranges := make(map[int][2]int64, len(b.minOffset))
	for partition, min := range b.minOffset {
		ranges[partition] = [2]int64{min, b.maxOffset[partition]}
	}
	return ranges
}

func (b *Batch) Reset() {
	b.transfers = b.transfers[:0]
	b.messages = b.messages[:0]
	clear(b.minOffset)
	clear(b.maxOffset)
}
