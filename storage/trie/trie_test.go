package trie

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"

	"rentchain/storage"
)

func TestCommitPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	db1, err := storage.NewLevelDB(dir, 0, 0)
	require.NoError(t, err)

	tr, err := Open(db1, common.Hash{})
	require.NoError(t, err)
	require.Equal(t, gethtypes.EmptyRootHash, tr.Root())

	require.NoError(t, tr.Put([]byte("property/1"), []byte("listing")))
	root, err := tr.Commit(1)
	require.NoError(t, err)
	require.Equal(t, root, tr.Root())
	require.NoError(t, db1.Close())

	db2, err := storage.NewLevelDB(dir, 0, 0)
	require.NoError(t, err)
	defer db2.Close()

	restored, err := Open(db2, root)
	require.NoError(t, err)
	got, err := restored.Get([]byte("property/1"))
	require.NoError(t, err)
	require.Equal(t, []byte("listing"), got)
}

func TestForkIsolatesUncommittedWrites(t *testing.T) {
	tr, err := Open(storage.NewMemDB(), common.Hash{})
	require.NoError(t, err)

	key := []byte("rental/a1")
	require.NoError(t, tr.Put(key, []byte("v1")))
	root, err := tr.Commit(1)
	require.NoError(t, err)

	working := tr.Fork()
	require.NoError(t, working.Put(key, []byte("v2")))
	require.NotEqual(t, root, working.Pending())
	require.Equal(t, root, working.Root())

	got, err := tr.Get(key)
	require.NoError(t, err)
	require.Equal(t, []byte("v1"), got)
	require.Equal(t, root, tr.Pending())

	next, err := working.Commit(2)
	require.NoError(t, err)
	require.Equal(t, next, working.Root())
	require.Equal(t, root, tr.Root())
}

func TestEmptyValueDeletesAndEmptyKeyFails(t *testing.T) {
	tr, err := Open(storage.NewMemDB(), common.Hash{})
	require.NoError(t, err)

	require.NoError(t, tr.Put([]byte("k"), []byte("v")))
	require.NoError(t, tr.Put([]byte("k"), nil))
	got, err := tr.Get([]byte("k"))
	require.NoError(t, err)
	require.Empty(t, got)
	require.Equal(t, gethtypes.EmptyRootHash, tr.Pending())

	require.Error(t, tr.Put(nil, []byte("v")))
	_, err = tr.Get(nil)
	require.Error(t, err)
}

func TestMemDBMissingKey(t *testing.T) {
	db := storage.NewMemDB()
	_, err := db.Get([]byte("missing"))
	require.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, db.Put([]byte("k"), []byte("v")))
	ok, err := db.Has([]byte("k"))
	require.NoError(t, err)
	require.True(t, ok)
}
