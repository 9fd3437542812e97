// core/genesis/loader.go
package genesis

import (
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"rentchain/core/state"
	"rentchain/crypto"
	"rentchain/native/bank"
	"rentchain/native/rewards"
	"rentchain/storage"
	"rentchain/storage/trie"
)

// Result describes the committed genesis state.
type Result struct {
	StateRoot  common.Hash
	LedgerTime uint64
	Admin      crypto.Address
}

// Build writes the genesis state into db and commits it at height zero.
func Build(spec *Spec, db storage.Database) (*Result, error) {
	if spec == nil {
		return nil, fmt.Errorf("genesis spec must not be nil")
	}
	if db == nil {
		return nil, fmt.Errorf("database must not be nil")
	}
	if spec.alloc == nil {
		if err := spec.Validate(); err != nil {
			return nil, err
		}
	}
	ts := spec.GenesisTimestamp()
	ledgerTime := uint64(0)
	if unix := ts.Unix(); unix > 0 {
		ledgerTime = uint64(unix)
	}

	stateTrie, err := trie.Open(db, common.Hash{})
	if err != nil {
		return nil, fmt.Errorf("init state trie: %w", err)
	}
	manager := state.NewManager(stateTrie)

	// 1) Admin
	if err := manager.SetAdmin(spec.admin); err != nil {
		return nil, fmt.Errorf("persist admin: %w", err)
	}

	// 2) Allocations (addresses sorted)
	ledger := bank.NewLedger(manager)
	addrs := make([]crypto.Address, 0, len(spec.alloc))
	for addr := range spec.alloc {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool { return string(addrs[i][:]) < string(addrs[j][:]) })
	for _, addr := range addrs {
		if err := ledger.Mint(addr, spec.alloc[addr]); err != nil {
			return nil, fmt.Errorf("alloc[%s]: %w", addr, err)
		}
	}

	// 3) Paused modules
	for _, module := range spec.Paused {
		if err := manager.SetPaused(strings.TrimSpace(module), true); err != nil {
			return nil, fmt.Errorf("paused %q: %w", module, err)
		}
	}

	// 4) Rewards
	if spec.Rewards != nil {
		cfg := rewards.DefaultConfig()
		overrides := []struct {
			dst   **big.Int
			value string
		}{
			{&cfg.FirstPaymentReward, spec.Rewards.FirstPaymentReward},
			{&cfg.ReviewReward, spec.Rewards.ReviewReward},
			{&cfg.MutualReviewBonus, spec.Rewards.MutualReviewBonus},
		}
		for _, o := range overrides {
			if strings.TrimSpace(o.value) == "" {
				continue
			}
			amount, err := parseAmountString(o.value)
			if err != nil {
				return nil, err
			}
			*o.dst = amount
		}
		if err := manager.RewardsPutConfig(cfg); err != nil {
			return nil, fmt.Errorf("persist rewards config: %w", err)
		}
	}

	if err := manager.SetLedgerTime(ledgerTime); err != nil {
		return nil, err
	}

	// 5) Commit
	root, err := stateTrie.Commit(0)
	if err != nil {
		return nil, fmt.Errorf("commit state: %w", err)
	}
	return &Result{StateRoot: root, LedgerTime: ledgerTime, Admin: spec.admin}, nil
}
