package application

import (
	"context"
	"log/slog"
	"math/big"

	"transfertracker/internal/domain"
	"transfertracker/internal/streaming"

	"github.com/cockroachdb/errors"
)

// ApplyMessage runs the mapper for a single stream message.
func ApplyMessage(ctx context.Context, writer TransferWriter, msg streaming.Message) error {
	slog.Debug("consume message",
		"type", msg.Type,
		"chain_id", msg.ChainID,
		"block_number", msg.BlockNumber,
		"tx_hash", msg.TxHash,
	)

	event, err := MessageToEvent(msg)
	if err != nil {
		return err
	}
	return HandleTransfer(ctx, writer, event)
}

func EventToMessage(event domain.TransferEvent) streaming.Message {
	value := "0"
	if event.Params.Value != nil {
		value = event.Params.Value.String()
	}
	return streaming.Message{
		Type:        streaming.MessageTypeTransfer,
		ChainID:     event.ChainID,
		TxHash:      event.TransactionHash,
		LogIndex:    event.LogIndex,
		BlockNumber: event.Block.Number,
		Timestamp:   event.Block.Timestamp,
		From:        event.Params.From,
		To:          event.Params.To,
		Value:       value,
	}
}

func MessageToEvent(msg streaming.Message) (domain.TransferEvent, error) {
	if msg.Type != streaming.MessageTypeTransfer {
		return domain.TransferEvent{}, errors.Newf("unknown message type %q", msg.Type)
	}
	value, ok := new(big.Int).SetString(msg.Value, 10)
	if !ok || value.Sign() < 0 {
		return domain.TransferEvent{}, errors.Newf("invalid value %q in tx %s", msg.Value, msg.TxHash)
	}
	return domain.TransferEvent{
		ChainID:         msg.ChainID,
		TransactionHash: msg.TxHash,
		LogIndex:        msg.LogIndex,
		Params: domain.TransferParams{
			From:  msg.From,
			To:    msg.To,
			Value: value,
		},
		Block: domain.EventBlock{
			Number:    msg.BlockNumber,
			Timestamp: msg.Timestamp,
		},
	}, nil
}
