package application

import (
	"context"
	"math/big"
	"testing"

	"transfertracker/internal/domain"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEvent(hash, from, to string, value int64, ts uint64) domain.TransferEvent {
	return domain.TransferEvent{
		ChainID:         1,
		TransactionHash: hash,
		Params: domain.TransferParams{
			From:  from,
			To:    to,
			Value: big.NewInt(value),
		},
		Block: domain.EventBlock{Number: 10, Timestamp: ts},
	}
}

func TestMapTransferCopiesFieldsVerbatim(t *testing.T) {
	wide, ok := new(big.Int).SetString("123456789012345678901234567890", 10)
	require.True(t, ok)
	event := sampleEvent("0xHash", "0xA", "0xB", 0, 1000)
	event.Params.Value = wide

	transfer := MapTransfer(event)

	assert.Equal(t, "0xHash", transfer.ID)
	assert.Equal(t, "0xA", transfer.From)
	assert.Equal(t, "0xB", transfer.To)
	assert.Equal(t, uint64(1000), transfer.Timestamp)
	assert.Equal(t, 0, wide.Cmp(transfer.Value))

	wide.SetInt64(1)
	assert.Equal(t, "123456789012345678901234567890", transfer.Value.String(), "record must not alias the event value")
}

func TestHandleTransferPersistsOneRecord(t *testing.T) {
	writer := &memoryWriter{}
	require.NoError(t, HandleTransfer(context.Background(), writer, sampleEvent("0x1", "0xA", "0xB", 100, 1000)))

	require.Len(t, writer.saved, 1)
	assert.Equal(t, "0x1", writer.saved[0].ID)
}

func TestHandleTransferDuplicateHashLastWriteWins(t *testing.T) {
	writer := &memoryWriter{}
	ctx := context.Background()
	require.NoError(t, HandleTransfer(ctx, writer, sampleEvent("0xdup", "0xA", "0xB", 1, 1000)))
	require.NoError(t, HandleTransfer(ctx, writer, sampleEvent("0xdup", "0xC", "0xD", 2, 1000)))

	got := writer.byID["0xdup"]
	assert.Equal(t, "0xC", got.From)
	assert.Equal(t, "0xD", got.To)
	assert.Equal(t, int64(2), got.Value.Int64())
}

func TestHandleTransferReturnsPersistenceError(t *testing.T) {
	writer := &memoryWriter{err: errStoreDown}
	err := HandleTransfer(context.Background(), writer, sampleEvent("0x1", "0xA", "0xB", 1, 1))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errStoreDown))
}

func TestStoreSinkAppliesEventsInOrder(t *testing.T) {
	writer := &memoryWriter{}
	sink := StoreSink{Writer: writer}
	err := sink.PublishTransfers(context.Background(), []domain.TransferEvent{
		sampleEvent("0x1", "0xA", "0xB", 1, 1),
		sampleEvent("0x2", "0xA", "0xB", 2, 2),
	})
	require.NoError(t, err)
	require.Len(t, writer.saved, 2)
	assert.Equal(t, "0x1", writer.saved[0].ID)
	assert.Equal(t, "0x2", writer.saved[1].ID)
}

func TestMessageRoundTripThroughEvent(t *testing.T) {
	event := sampleEvent("0xabc", "0xA", "0xB", 42, 1700000000)
	msg := EventToMessage(event)
	assert.Equal(t, "42", msg.Value)

	back, err := MessageToEvent(msg)
	require.NoError(t, err)
	assert.Equal(t, MapTransfer(event), MapTransfer(back))
}

func TestMessageToEventRejectsBadValue(t *testing.T) {
	msg := EventToMessage(sampleEvent("0xabc", "0xA", "0xB", 1, 1))
	msg.Value = "12abc"
	_, err := MessageToEvent(msg)
	assert.Error(t, err)

	msg.Value = "-5"
	_, err = MessageToEvent(msg)
	assert.Error(t, err)
}
