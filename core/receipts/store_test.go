package receipts

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"rentchain/core/types"
)

func TestStorePutGetSince(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "receipts.db"), nil)
	require.NoError(t, err)
	defer store.Close()

	for i, method := range []string{"property_create", "rental_request", "escrow_deposit"} {
		hash := [32]byte{byte(i + 1)}
		require.NoError(t, store.Put(&Receipt{
			TxHash:  HashString(hash),
			Method:  method,
			Height:  uint64(i + 1),
			Success: i != 1,
			Events:  []*types.Event{{Type: method, Attributes: map[string]string{"n": "1"}}},
		}))
	}

	got, err := store.Get(HashString([32]byte{2}))
	require.NoError(t, err)
	require.Equal(t, "rental_request", got.Method)
	require.False(t, got.Success)
	require.Len(t, got.Events, 1)

	_, err = store.Get(HashString([32]byte{9}))
	require.ErrorIs(t, err, ErrNotFound)

	since, err := store.Since(1, 10)
	require.NoError(t, err)
	require.Len(t, since, 2)
	require.Equal(t, uint64(2), since[0].Height)
	require.Equal(t, "escrow_deposit", since[1].Method)
}
