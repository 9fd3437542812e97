// core/genesis/spec_test.go
package genesis

import (
	"bytes"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"rentchain/core/state"
	"rentchain/crypto"
	nativecommon "rentchain/native/common"
	"rentchain/storage"
	"rentchain/storage/trie"
)

func testAddress(fill byte) crypto.Address {
	var addr crypto.Address
	copy(addr[:], bytes.Repeat([]byte{fill}, 20))
	return addr
}

func TestLoadYAMLSpecAndBuild(t *testing.T) {
	admin := testAddress(0xAA)
	tenant := testAddress(0x02)
	doc := "genesisTime: \"2026-01-01T00:00:00Z\"\n" +
		"admin: " + admin.String() + "\n" +
		"alloc:\n" +
		"  " + tenant.String() + ": \"10_000_0000000\"\n" +
		"  \"" + admin.Hex() + "\": \"1\"\n" +
		"paused: [review]\n" +
		"rewards:\n" +
		"  reviewReward: \"7\"\n"
	path := filepath.Join(t.TempDir(), "genesis.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	spec, err := LoadSpec(path)
	require.NoError(t, err)
	require.Equal(t, admin, spec.AdminAddress())

	db := storage.NewMemDB()
	defer db.Close()
	result, err := Build(spec, db)
	require.NoError(t, err)
	require.Equal(t, uint64(spec.GenesisTimestamp().Unix()), result.LedgerTime)

	tr, err := trie.Open(db, result.StateRoot)
	require.NoError(t, err)
	manager := state.NewManager(tr)

	account, err := manager.GetAccount(tenant)
	require.NoError(t, err)
	require.Equal(t, 0, account.Balance.Cmp(big.NewInt(10_000_0000000)))

	require.True(t, manager.IsPaused(nativecommon.ModuleReview))
	require.False(t, manager.IsPaused(nativecommon.ModuleEscrow))

	storedAdmin, ok, err := manager.Admin()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, [20]byte(admin), storedAdmin)

	cfg, ok, err := manager.RewardsConfig()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(7), cfg.ReviewReward.Int64())
	require.Equal(t, int64(10_000_0000), cfg.FirstPaymentReward.Int64())
}

func TestLoadJSONRejectsUnknownFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "genesis.json")
	doc := `{"admin":"` + testAddress(0x01).String() + `","alloc":{},"validators":[]}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	_, err := LoadSpec(path)
	require.Error(t, err)
}

func TestValidateRejectsBadInput(t *testing.T) {
	admin := testAddress(0x01).String()
	cases := map[string]Spec{
		"missing admin":   {},
		"bad time":        {Admin: admin, GenesisTime: "yesterday"},
		"negative alloc":  {Admin: admin, Alloc: map[string]string{admin: "-5"}},
		"unknown module":  {Admin: admin, Paused: []string{"lending"}},
		"bad reward":      {Admin: admin, Rewards: &RewardsSpec{ReviewReward: "abc"}},
		"foreign prefix":  {Admin: "nhb1qyqszqgpqyqszqgpqyqszqgpqyqszqgp6yfgy2"},
		"duplicate alloc": {Admin: admin, Alloc: map[string]string{admin: "1", testAddress(0x01).Hex(): "2"}},
	}
	for name, spec := range cases {
		spec := spec
		t.Run(name, func(t *testing.T) {
			require.Error(t, spec.Validate())
		})
	}
}
