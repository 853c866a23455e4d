package application

import (
	"testing"

	"transfertracker/internal/domain"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	topicFrom = "0x000000000000000000000000aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	topicTo   = "0x000000000000000000000000bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	// 1_000_000 (one USDC at six decimals)
	dataOneUSDC = "0x00000000000000000000000000000000000000000000000000000000000f4240"
)

func transferLog(txHash string, block, index uint64) domain.LogEntry {
	return domain.LogEntry{
		BlockNumber: block,
		TxHash:      txHash,
		LogIndex:    index,
		Address:     "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48",
		Data:        dataOneUSDC,
		Topics:      []string{TransferTopic, topicFrom, topicTo},
	}
}

func TestDecodeTransferLog(t *testing.T) {
	event, err := DecodeTransferLog(transferLog("0xfeed", 19000000, 7), 1700000000)
	require.NoError(t, err)

	assert.Equal(t, "0xfeed", event.TransactionHash)
	assert.Equal(t, "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", event.Params.From)
	assert.Equal(t, "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb", event.Params.To)
	assert.Equal(t, "1000000", event.Params.Value.String())
	assert.Equal(t, uint64(19000000), event.Block.Number)
	assert.Equal(t, uint64(1700000000), event.Block.Timestamp)
	assert.Equal(t, uint64(7), event.LogIndex)
}

func TestDecodeTransferLogSkipsOtherEvents(t *testing.T) {
	approval := transferLog("0x1", 1, 0)
	approval.Topics[0] = "0x8c5be1e5ebec7d5bd14f71427d1e84f3dd0314c0f7b2291e5b200ac8c7c3b925"
	_, err := DecodeTransferLog(approval, 1)
	assert.True(t, errors.Is(err, ErrNotTransfer))

	nft := transferLog("0x1", 1, 0)
	nft.Topics = append(nft.Topics, "0x01")
	_, err = DecodeTransferLog(nft, 1)
	assert.True(t, errors.Is(err, ErrNotTransfer))
}

func TestDecodeTransferLogRejectsShortData(t *testing.T) {
	entry := transferLog("0x1", 1, 0)
	entry.Data = "0x01"
	_, err := DecodeTransferLog(entry, 1)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotTransfer))
}
