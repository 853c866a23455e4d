package httpapi

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// Metrics implements application.IndexerObserver and the counters the mapper
// consumer and GraphQL resolvers report. It renders Prometheus text format.
type Metrics struct {
	mu              sync.RWMutex
	startTime       time.Time
	latestBlock     uint64
	lastProcessed   uint64
	lastBatchFrom   uint64
	lastBatchTo     uint64
	lastBatchCount  int
	totalTransfers  uint64
	kafkaMessages   uint64
	kafkaDecodeErrs uint64
	kafkaApplyErrs  uint64
	kafkaCommitErrs uint64
	kafkaFetchErrs  uint64
	kafkaLastOffset int64
	kafkaLastLag    time.Duration
	kafkaMaxLag     time.Duration
	queries         uint64
	queryErrs       uint64
}

func NewMetrics() *Metrics {
	return &Metrics{startTime: time.Now()}
}

func (m *Metrics) OnLatestBlock(block uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latestBlock = block
}

func (m *Metrics) OnBatchProcessed(fromBlock, toBlock uint64, eventCount int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastProcessed = toBlock
	m.lastBatchFrom = fromBlock
	m.lastBatchTo = toBlock
	m.lastBatchCount = eventCount
	m.totalTransfers += uint64(eventCount)
}

func (m *Metrics) SetLastProcessed(block uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastProcessed = block
}

func (m *Metrics) AddTransfers(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totalTransfers += uint64(n)
}

func (m *Metrics) IncKafkaDecodeErr() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.kafkaDecodeErrs++
}

func (m *Metrics) IncKafkaApplyErr() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.kafkaApplyErrs++
}

func (m *Metrics) IncKafkaCommitErr() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.kafkaCommitErrs++
}

func (m *Metrics) IncKafkaFetchErr() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.kafkaFetchErrs++
}

func (m *Metrics) ObserveKafkaMessage(offset int64, ts time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.kafkaMessages++
	m.kafkaLastOffset = offset
	if !ts.IsZero() {
		lag := time.Since(ts)
		m.kafkaLastLag = lag
		if lag > m.kafkaMaxLag {
			m.kafkaMaxLag = lag
		}
	}
}

func (m *Metrics) IncQuery() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries++
}

func (m *Metrics) IncQueryErr() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queryErrs++
}

type Snapshot struct {
	StartTime       time.Time
	LatestBlock     uint64
	LastProcessed   uint64
	LastBatchFrom   uint64
	LastBatchTo     uint64
	LastBatchCount  int
	TotalTransfers  uint64
	KafkaMessages   uint64
	KafkaDecodeErrs uint64
	KafkaApplyErrs  uint64
	KafkaCommitErrs uint64
	KafkaFetchErrs  uint64
	KafkaLastOffset int64
	KafkaLastLag    time.Duration
	KafkaMaxLag     time.Duration
	Queries         uint64
	QueryErrs       uint64
}

func (m *Metrics) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Snapshot{
		StartTime:       m.startTime,
		LatestBlock:     m.latestBlock,
		LastProcessed:   m.lastProcessed,
		LastBatchFrom:   m.lastBatchFrom,
		LastBatchTo:     m.lastBatchTo,
		LastBatchCount:  m.lastBatchCount,
		TotalTransfers:  m.totalTransfers,
		KafkaMessages:   m.kafkaMessages,
		KafkaDecodeErrs: m.kafkaDecodeErrs,
		KafkaApplyErrs:  m.kafkaApplyErrs,
		KafkaCommitErrs: m.kafkaCommitErrs,
		KafkaFetchErrs:  m.kafkaFetchErrs,
		KafkaLastOffset: m.kafkaLastOffset,
		KafkaLastLag:    m.kafkaLastLag,
		KafkaMaxLag:     m.kafkaMaxLag,
		Queries:         m.queries,
		QueryErrs:       m.queryErrs,
	}
}

// WriteText renders the snapshot in Prometheus text exposition format.
func (s Snapshot) WriteText(w io.Writer) {
	lag := uint64(0)
	if s.LastProcessed > 0 && s.LatestBlock >= s.LastProcessed {
		lag = s.LatestBlock - s.LastProcessed
	}

	fmt.Fprintf(w, "transfertracker_uptime_seconds %.0f\n", time.Since(s.StartTime).Seconds())
	fmt.Fprintf(w, "transfertracker_latest_block %d\n", s.LatestBlock)
	fmt.Fprintf(w, "transfertracker_last_processed_block %d\n", s.LastProcessed)
	fmt.Fprintf(w, "transfertracker_block_lag %d\n", lag)
	fmt.Fprintf(w, "transfertracker_last_batch_from %d\n", s.LastBatchFrom)
	fmt.Fprintf(w, "transfertracker_last_batch_to %d\n", s.LastBatchTo)
	fmt.Fprintf(w, "transfertracker_last_batch_count %d\n", s.LastBatchCount)
	fmt.Fprintf(w, "transfertracker_transfers_total %d\n", s.TotalTransfers)
	fmt.Fprintf(w, "transfertracker_kafka_messages_total %d\n", s.KafkaMessages)
	fmt.Fprintf(w, "transfertracker_kafka_decode_errors_total %d\n", s.KafkaDecodeErrs)
	fmt.Fprintf(w, "transfertracker_kafka_apply_errors_total %d\n", s.KafkaApplyErrs)
	fmt.Fprintf(w, "transfertracker_kafka_commit_errors_total %d\n", s.KafkaCommitErrs)
	fmt.Fprintf(w, "transfertracker_kafka_fetch_errors_total %d\n", s.KafkaFetchErrs)
	fmt.Fprintf(w, "transfertracker_kafka_last_offset %d\n", s.KafkaLastOffset)
	fmt.Fprintf(w, "transfertracker_kafka_last_lag_seconds %.3f\n", s.KafkaLastLag.Seconds())
	fmt.Fprintf(w, "transfertracker_kafka_max_lag_seconds %.3f\n", s.KafkaMaxLag.Seconds())
	fmt.Fprintf(w, "transfertracker_graphql_queries_total %d\n", s.Queries)
	fmt.Fprintf(w, "transfertracker_graphql_query_errors_total %d\n", s.QueryErrs)
}
