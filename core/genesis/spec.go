// core/genesis/spec.go
package genesis

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"rentchain/crypto"
	nativecommon "rentchain/native/common"
)

// Spec is the initial chain state. Files ending in .yaml or .yml are decoded
// as YAML, anything else as JSON.
type Spec struct {
	GenesisTime string            `json:"genesisTime" yaml:"genesisTime"`
	Admin       string            `json:"admin" yaml:"admin"`
	Alloc       map[string]string `json:"alloc" yaml:"alloc"` // addr -> amount
	Paused      []string          `json:"paused,omitempty" yaml:"paused,omitempty"`
	Rewards     *RewardsSpec      `json:"rewards,omitempty" yaml:"rewards,omitempty"`

	genesisTimestamp time.Time
	admin            crypto.Address
	alloc            map[crypto.Address]*big.Int
}

// RewardsSpec overrides the default BRIQ-R reward amounts.
type RewardsSpec struct {
	FirstPaymentReward string `json:"firstPaymentReward" yaml:"firstPaymentReward"`
	ReviewReward       string `json:"reviewReward" yaml:"reviewReward"`
	MutualReviewBonus  string `json:"mutualReviewBonus" yaml:"mutualReviewBonus"`
}

// LoadSpec reads and validates a genesis file.
func LoadSpec(path string) (*Spec, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("genesis spec path must be provided")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read genesis spec %q: %w", path, err)
	}
	var spec Spec
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(raw))
		dec.KnownFields(true)
		err = dec.Decode(&spec)
	default:
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		err = dec.Decode(&spec)
	}
	if err != nil {
		return nil, fmt.Errorf("decode genesis spec %q: %w", path, err)
	}
	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("invalid genesis spec %q: %w", path, err)
	}
	return &spec, nil
}

func (s *Spec) GenesisTimestamp() time.Time { return s.genesisTimestamp }

// AdminAddress returns the parsed administrator.
func (s *Spec) AdminAddress() crypto.Address { return s.admin }

// Validate parses every address and amount and caches the results.
func (s *Spec) Validate() error {
	ts, err := parseGenesisTime(s.GenesisTime)
	if err != nil {
		return err
	}
	s.genesisTimestamp = ts

	if strings.TrimSpace(s.Admin) == "" {
		return fmt.Errorf("admin must be provided")
	}
	admin, err := crypto.ParseAddress(s.Admin)
	if err != nil {
		return fmt.Errorf("admin: %w", err)
	}
	s.admin = admin

	s.alloc = make(map[crypto.Address]*big.Int, len(s.Alloc))
	for _, account := range sortedKeys(s.Alloc) {
		addr, err := crypto.ParseAddress(account)
		if err != nil {
			return fmt.Errorf("alloc[%q]: %w", account, err)
		}
		if _, dup := s.alloc[addr]; dup {
			return fmt.Errorf("alloc[%q]: duplicate account", account)
		}
		amount, err := parseAmountString(s.Alloc[account])
		if err != nil {
			return fmt.Errorf("alloc[%q]: %w", account, err)
		}
		s.alloc[addr] = amount
	}

	for i, module := range s.Paused {
		if !nativecommon.KnownModule(strings.TrimSpace(module)) {
			return fmt.Errorf("paused[%d]: unknown module %q", i, module)
		}
	}
	if s.Rewards != nil {
		for name, value := range map[string]string{
			"firstPaymentReward": s.Rewards.FirstPaymentReward,
			"reviewReward":       s.Rewards.ReviewReward,
			"mutualReviewBonus":  s.Rewards.MutualReviewBonus,
		} {
			if _, err := parseAmountString(value); err != nil {
				return fmt.Errorf("rewards.%s: %w", name, err)
			}
		}
	}
	return nil
}

func parseGenesisTime(value string) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return time.Unix(0, 0).UTC(), nil
	}
	ts, err := time.Parse(time.RFC3339, trimmed)
	if err != nil {
		return time.Time{}, fmt.Errorf("genesisTime: %w", err)
	}
	return ts.UTC(), nil
}

func parseAmountString(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(strings.ReplaceAll(value, "_", ""))
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", value)
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("amount %q must not be negative", value)
	}
	if !nativecommon.InRange(amount) {
		return nil, fmt.Errorf("amount %q exceeds i128", value)
	}
	return amount, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
