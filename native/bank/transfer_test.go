package bank

import (
	"errors"
	"math/big"
	"testing"

	coreerrors "rentchain/core/errors"
	"rentchain/core/types"
)

type memAccounts map[[20]byte]*types.Account

func (m memAccounts) GetAccount(addr [20]byte) (*types.Account, error) {
	if acc, ok := m[addr]; ok {
		return acc.Clone(), nil
	}
	return &types.Account{Balance: big.NewInt(0)}, nil
}

func (m memAccounts) PutAccount(addr [20]byte, acc *types.Account) error {
	m[addr] = acc.Clone()
	return nil
}

func (m memAccounts) AccountExists(addr [20]byte) (bool, error) {
	_, ok := m[addr]
	return ok, nil
}

func TestTransferMovesBalance(t *testing.T) {
	accounts := memAccounts{}
	ledger := NewLedger(accounts)
	alice, bob := [20]byte{1}, [20]byte{2}
	if err := ledger.Mint(alice, big.NewInt(100)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := ledger.Transfer(alice, bob, big.NewInt(40)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	a, _ := ledger.Balance(alice)
	b, _ := ledger.Balance(bob)
	if a.Int64() != 60 || b.Int64() != 40 {
		t.Fatalf("unexpected balances %s/%s", a, b)
	}
}

func TestTransferInsufficientFunds(t *testing.T) {
	accounts := memAccounts{}
	ledger := NewLedger(accounts)
	alice, bob := [20]byte{1}, [20]byte{2}
	_ = ledger.Mint(alice, big.NewInt(10))
	err := ledger.Transfer(alice, bob, big.NewInt(11))
	if !errors.Is(err, coreerrors.ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	a, _ := ledger.Balance(alice)
	if a.Int64() != 10 {
		t.Fatalf("failed transfer changed balance: %s", a)
	}
	if err := ledger.Transfer(alice, bob, big.NewInt(-1)); !errors.Is(err, coreerrors.ErrInvalidInput) {
		t.Fatalf("expected invalid input for negative amount, got %v", err)
	}
}

func TestTransferRequiresRecipient(t *testing.T) {
	accounts := memAccounts{}
	ledger := NewLedger(accounts)
	ledger.SetRequireRecipient(true)
	alice, ghost := [20]byte{1}, [20]byte{9}
	_ = ledger.Mint(alice, big.NewInt(10))
	if err := ledger.Transfer(alice, ghost, big.NewInt(1)); !errors.Is(err, coreerrors.ErrNotFound) {
		t.Fatalf("expected missing recipient, got %v", err)
	}
}
