package application

import (
	"context"
	"errors"

	"transfertracker/internal/domain"
)

// memoryWriter keeps an ordered save log and a by-ID view with upsert semantics.
type memoryWriter struct {
	saved []domain.Transfer
	byID  map[string]domain.Transfer
	err   error
}

func (m *memoryWriter) SaveTransfers(ctx context.Context, transfers []domain.Transfer) error {
	if m.err != nil {
		return m.err
	}
	if m.byID == nil {
		m.byID = make(map[string]domain.Transfer)
	}
	for _, transfer := range transfers {
		m.saved = append(m.saved, transfer)
		m.byID[transfer.ID] = transfer
	}
	return nil
}

var errStoreDown = errors.New("store down")
