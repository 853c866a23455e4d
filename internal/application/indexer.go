package application

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"transfertracker/internal/domain"

	"github.com/cockroachdb/errors"
)

type LogSource interface {
	ChainID(ctx context.Context) (uint64, error)
	LatestBlockNumber(ctx context.Context) (uint64, error)
	FetchLogs(ctx context.Context, fromBlock, toBlock uint64) ([]domain.LogEntry, error)
	BlockTimestamp(ctx context.Context, blockNumber uint64) (uint64, bool, error)
}

// EventSink receives decoded events in block and log order.
type EventSink interface {
	PublishTransfers(ctx context.Context, events []domain.TransferEvent) error
}

type StateRepository interface {
	LastProcessedBlock(ctx context.Context, chainID uint64) (uint64, bool, error)
	SetLastProcessedBlock(ctx context.Context, chainID uint64, block uint64) error
}

type IndexerObserver interface {
	OnLatestBlock(block uint64)
	OnBatchProcessed(fromBlock, toBlock uint64, eventCount int)
}

type IndexerConfig struct {
	StartBlock    uint64
	Confirmations uint64
	PollInterval  time.Duration
	BatchSize     uint64
}

type Indexer struct {
	source   LogSource
	sink     EventSink
	state    StateRepository
	observer IndexerObserver
	cfg      IndexerConfig
}

var ErrBlockUnavailable = errors.New("block unavailable")

func NewIndexer(source LogSource, sink EventSink, state StateRepository, observer IndexerObserver, cfg IndexerConfig) (*Indexer, error) {
	if source == nil || sink == nil || state == nil {
		return nil, errors.New("indexer dependencies must not be nil")
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 1000
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	return &Indexer{source: source, sink: sink, state: state, observer: observer, cfg: cfg}, nil
}

// Run polls until ctx is done or a step fails with anything other than
// ErrBlockUnavailable.
func (i *Indexer) Run(ctx context.Context) error {
	chainID, err := i.source.ChainID(ctx)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		caughtUp, err := i.Step(ctx, chainID)
		if err != nil && !errors.Is(err, ErrBlockUnavailable) {
			return err
		}
		if err == nil && !caughtUp {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(i.cfg.PollInterval):
		}
	}
}

// Step processes at most one batch of blocks. It reports true when there was
// nothing confirmed to process.
func (i *Indexer) Step(ctx context.Context, chainID uint64) (bool, error) {
	current := i.cfg.StartBlock
	if last, ok, err := i.state.LastProcessedBlock(ctx, chainID); err != nil {
		return false, err
	} else if ok {
		current = last + 1
	}

	latest, err := i.source.LatestBlockNumber(ctx)
	if err != nil {
		return false, err
	}
	if i.observer != nil {
		i.observer.OnLatestBlock(latest)
	}
	if latest < i.cfg.Confirmations {
		return true, nil
	}
	latest -= i.cfg.Confirmations
	if current > latest {
		return true, nil
	}

	toBlock := current + i.cfg.BatchSize - 1
	if toBlock > latest {
		toBlock = latest
	}

	logs, err := i.source.FetchLogs(ctx, current, toBlock)
	if err != nil {
		return false, err
	}
	sort.Slice(logs, func(a, b int) bool {
		if logs[a].BlockNumber == logs[b].BlockNumber {
			return logs[a].LogIndex < logs[b].LogIndex
		}
		return logs[a].BlockNumber < logs[b].BlockNumber
	})

	events, err := i.decodeLogs(ctx, chainID, logs)
	if err != nil {
		return false, err
	}
	if err := i.sink.PublishTransfers(ctx, events); err != nil {
		return false, err
	}
	if err := i.state.SetLastProcessedBlock(ctx, chainID, toBlock); err != nil {
		return false, err
	}
	if i.observer != nil {
		i.observer.OnBatchProcessed(current, toBlock, len(events))
	}
	return false, nil
}

func (i *Indexer) decodeLogs(ctx context.Context, chainID uint64, logs []domain.LogEntry) ([]domain.TransferEvent, error) {
	timestamps := make(map[uint64]uint64)
	events := make([]domain.TransferEvent, 0, len(logs))
	for _, entry := range logs {
		if entry.Removed {
			continue
		}
		ts, ok := timestamps[entry.BlockNumber]
		if !ok {
			var found bool
			var err error
			ts, found, err = i.source.BlockTimestamp(ctx, entry.BlockNumber)
			if err != nil {
				return nil, err
			}
			if !found {
				return nil, ErrBlockUnavailable
			}
			timestamps[entry.BlockNumber] = ts
		}

		entry.ChainID = chainID
		event, err := DecodeTransferLog(entry, ts)
		if errors.Is(err, ErrNotTransfer) {
			continue
		}
		if err != nil {
			slog.Warn("skip undecodable log", "tx_hash", entry.TxHash, "log_index", entry.LogIndex, "err", err)
			continue
		}
		events = append(events, event)
	}
	return events, nil
}
