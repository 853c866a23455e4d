package cache

import (
	"context"
	"math/big"
	"path/filepath"
	"testing"

	"transfertracker/internal/application"
	"transfertracker/internal/domain"
	"transfertracker/internal/infrastructure/sqlite"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithoutAddrPassesThrough(t *testing.T) {
	base, err := sqlite.NewRepository(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = base.Close() })

	store, err := New(base, Config{})
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.SaveTransfers(ctx, []domain.Transfer{
		{ID: "0x1", From: "0xA", To: "0xB", Value: big.NewInt(9), Timestamp: 1},
	}))
	got, err := store.QueryTransfers(ctx, application.TransferQueryFilter{To: "0xB"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "9", got[0].Value.String())
	require.NoError(t, store.Ping(ctx))
}

func TestNewRequiresBase(t *testing.T) {
	_, err := New(nil, Config{})
	assert.Error(t, err)
}

func TestQueryKeyIncludesVersionAndFilter(t *testing.T) {
	assert.Equal(t, "transfertracker:transfers:v3:to=0xB:from=any",
		queryKey("3", application.TransferQueryFilter{To: "0xB"}))
	assert.NotEqual(t,
		queryKey("3", application.TransferQueryFilter{To: "0xB"}),
		queryKey("4", application.TransferQueryFilter{To: "0xB"}))
}
