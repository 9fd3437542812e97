package state

import (
	"math/big"

	"rentchain/native/rewards"
)

func (m *Manager) RewardsBalance(addr [20]byte) (*big.Int, error) {
	return m.amount(key20(rewardsBalancePrefix, addr))
}

func (m *Manager) RewardsPutBalance(addr [20]byte, amount *big.Int) error {
	return m.KVPut(key20(rewardsBalancePrefix, addr), amount)
}

func (m *Manager) RewardsSupply() (*big.Int, error) {
	return m.amount(rewardsSupplyKey)
}

func (m *Manager) RewardsPutSupply(amount *big.Int) error {
	return m.KVPut(rewardsSupplyKey, amount)
}

// RewardsConfig returns the stored configuration, if one was ever set.
func (m *Manager) RewardsConfig() (*rewards.Config, bool, error) {
	var cfg rewards.Config
	ok, err := m.KVGet(rewardsConfigKey, &cfg)
	if err != nil || !ok {
		return nil, false, err
	}
	return &cfg, true, nil
}

func (m *Manager) RewardsPutConfig(cfg *rewards.Config) error {
	return m.KVPut(rewardsConfigKey, cfg)
}

func (m *Manager) RewardsClaimed(agreementID [32]byte, addr [20]byte, kind rewards.ClaimKind) (bool, error) {
	var claimed bool
	if _, err := m.KVGet(rewardsClaimKey(agreementID, addr, uint8(kind)), &claimed); err != nil {
		return false, err
	}
	return claimed, nil
}

func (m *Manager) RewardsMarkClaimed(agreementID [32]byte, addr [20]byte, kind rewards.ClaimKind) error {
	return m.KVPut(rewardsClaimKey(agreementID, addr, uint8(kind)), true)
}

func (m *Manager) amount(key []byte) (*big.Int, error) {
	value := new(big.Int)
	ok, err := m.KVGet(key, value)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return value, nil
}
