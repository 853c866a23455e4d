package application

import (
	"context"

	"transfertracker/internal/domain"
)

// TransferQueryFilter selects transfers by exact address match. Empty fields
// match everything.
type TransferQueryFilter struct {
	From string
	To   string
}

type TransferReader interface {
	QueryTransfers(ctx context.Context, filter TransferQueryFilter) ([]domain.Transfer, error)
	GetTransfer(ctx context.Context, id string) (domain.Transfer, bool, error)
}

type TransferStore interface {
	TransferWriter
	TransferReader
	Ping(ctx context.Context) error
}
