package state

import (
	"math/big"

	"rentchain/core/types"
)

type storedAccount struct {
	Nonce   uint64
	Balance *big.Int
}

// GetAccount returns the account stored for addr. Unknown addresses yield a
// zero account.
func (m *Manager) GetAccount(addr [20]byte) (*types.Account, error) {
	var stored storedAccount
	ok, err := m.KVGet(key20(accountPrefix, addr), &stored)
	if err != nil {
		return nil, err
	}
	account := &types.Account{Balance: big.NewInt(0)}
	if !ok {
		return account, nil
	}
	account.Nonce = stored.Nonce
	if stored.Balance != nil {
		account.Balance.Set(stored.Balance)
	}
	return account, nil
}

// PutAccount persists the account for addr.
func (m *Manager) PutAccount(addr [20]byte, account *types.Account) error {
	stored := storedAccount{Balance: big.NewInt(0)}
	if account != nil {
		stored.Nonce = account.Nonce
		if account.Balance != nil {
			stored.Balance.Set(account.Balance)
		}
	}
	return m.KVPut(key20(accountPrefix, addr), &stored)
}

// AccountExists reports whether addr has ever been written.
func (m *Manager) AccountExists(addr [20]byte) (bool, error) {
	return m.KVGet(key20(accountPrefix, addr), nil)
}
