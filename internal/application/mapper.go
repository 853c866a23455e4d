package application

import (
	"context"
	"math/big"

	"transfertracker/internal/domain"

	"github.com/cockroachdb/errors"
)

// TransferWriter persists transfer records. Implementations upsert by ID, so a
// record saved later under an existing transaction hash replaces the earlier one.
type TransferWriter interface {
	SaveTransfers(ctx context.Context, transfers []domain.Transfer) error
}

// MapTransfer builds the record for one event. Fields are copied as-is, with no
// unit conversion and no validation.
func MapTransfer(event domain.TransferEvent) domain.Transfer {
	var value *big.Int
	if event.Params.Value != nil {
		value = new(big.Int).Set(event.Params.Value)
	}
	return domain.Transfer{
		ID:        event.TransactionHash,
		From:      event.Params.From,
		To:        event.Params.To,
		Value:     value,
		Timestamp: event.Block.Timestamp,
	}
}

// HandleTransfer maps one event and persists exactly one record.
//
// Two transfers inside one transaction share an ID; the second overwrites the
// first.
func HandleTransfer(ctx context.Context, writer TransferWriter, event domain.TransferEvent) error {
	if writer == nil {
		return errors.New("transfer writer is required")
	}
	transfer := MapTransfer(event)
	if err := writer.SaveTransfers(ctx, []domain.Transfer{transfer}); err != nil {
		return errors.Wrapf(err, "save transfer %s", transfer.ID)
	}
	return nil
}

// StoreSink applies events straight to a TransferWriter, for running the
// indexer without a message broker.
type StoreSink struct {
	Writer TransferWriter
}

func (s StoreSink) PublishTransfers(ctx context.Context, events []domain.TransferEvent) error {
	for _, event := range events {
		if err := HandleTransfer(ctx, s.Writer, event); err != nil {
			return err
		}
	}
	return nil
}
