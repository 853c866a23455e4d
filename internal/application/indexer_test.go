package application

import (
	"context"
	"testing"

	"transfertracker/internal/domain"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	latest     uint64
	logs       []domain.LogEntry
	timestamps map[uint64]uint64
	fetched    [][2]uint64
	tsCalls    int
}

func (f *fakeSource) ChainID(ctx context.Context) (uint64, error) { return 1, nil }

func (f *fakeSource) LatestBlockNumber(ctx context.Context) (uint64, error) { return f.latest, nil }

func (f *fakeSource) FetchLogs(ctx context.Context, fromBlock, toBlock uint64) ([]domain.LogEntry, error) {
	f.fetched = append(f.fetched, [2]uint64{fromBlock, toBlock})
	var out []domain.LogEntry
	for _, entry := range f.logs {
		if entry.BlockNumber >= fromBlock && entry.BlockNumber <= toBlock {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (f *fakeSource) BlockTimestamp(ctx context.Context, blockNumber uint64) (uint64, bool, error) {
	f.tsCalls++
	ts, ok := f.timestamps[blockNumber]
	return ts, ok, nil
}

type recordingSink struct {
	events []domain.TransferEvent
}

func (s *recordingSink) PublishTransfers(ctx context.Context, events []domain.TransferEvent) error {
	s.events = append(s.events, events...)
	return nil
}

type memoryState struct {
	blocks map[uint64]uint64
}

func (m *memoryState) LastProcessedBlock(ctx context.Context, chainID uint64) (uint64, bool, error) {
	block, ok := m.blocks[chainID]
	return block, ok, nil
}

func (m *memoryState) SetLastProcessedBlock(ctx context.Context, chainID uint64, block uint64) error {
	if m.blocks == nil {
		m.blocks = make(map[uint64]uint64)
	}
	m.blocks[chainID] = block
	return nil
}

func TestIndexerStepPublishesOrderedEventsAndCheckpoints(t *testing.T) {
	source := &fakeSource{
		latest: 12,
		logs: []domain.LogEntry{
			transferLog("0xb", 11, 3),
			transferLog("0xa", 11, 1),
			transferLog("0x9", 10, 0),
		},
		timestamps: map[uint64]uint64{10: 1000, 11: 1012},
	}
	sink := &recordingSink{}
	state := &memoryState{}
	indexer, err := NewIndexer(source, sink, state, nil, IndexerConfig{StartBlock: 10, Confirmations: 1, BatchSize: 100})
	require.NoError(t, err)

	caughtUp, err := indexer.Step(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, caughtUp)

	assert.Equal(t, [][2]uint64{{10, 11}}, source.fetched)
	require.Len(t, sink.events, 3)
	assert.Equal(t, "0x9", sink.events[0].TransactionHash)
	assert.Equal(t, "0xa", sink.events[1].TransactionHash)
	assert.Equal(t, "0xb", sink.events[2].TransactionHash)
	assert.Equal(t, uint64(1012), sink.events[2].Block.Timestamp)
	assert.Equal(t, 2, source.tsCalls, "timestamps are memoised per block")
	assert.Equal(t, uint64(11), state.blocks[1])

	caughtUp, err = indexer.Step(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, caughtUp)
}

func TestIndexerStepResumesFromCheckpoint(t *testing.T) {
	source := &fakeSource{latest: 50, timestamps: map[uint64]uint64{}}
	state := &memoryState{blocks: map[uint64]uint64{1: 39}}
	indexer, err := NewIndexer(source, &recordingSink{}, state, nil, IndexerConfig{StartBlock: 0, BatchSize: 5})
	require.NoError(t, err)

	_, err = indexer.Step(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, [][2]uint64{{40, 44}}, source.fetched)
	assert.Equal(t, uint64(44), state.blocks[1])
}

func TestIndexerStepWaitsForMissingBlock(t *testing.T) {
	source := &fakeSource{
		latest:     5,
		logs:       []domain.LogEntry{transferLog("0x1", 5, 0)},
		timestamps: map[uint64]uint64{},
	}
	state := &memoryState{}
	indexer, err := NewIndexer(source, &recordingSink{}, state, nil, IndexerConfig{StartBlock: 5})
	require.NoError(t, err)

	_, err = indexer.Step(context.Background(), 1)
	assert.True(t, errors.Is(err, ErrBlockUnavailable))
	_, ok := state.blocks[1]
	assert.False(t, ok, "checkpoint must not advance")
}

func TestNewIndexerRequiresDependencies(t *testing.T) {
	_, err := NewIndexer(nil, &recordingSink{}, &memoryState{}, nil, IndexerConfig{})
	assert.Error(t, err)
}
