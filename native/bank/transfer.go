package bank

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"

	coreerrors "rentchain/core/errors"
	"rentchain/core/events"
	"rentchain/core/types"
	nativecommon "rentchain/native/common"
)

const EventTypeTransfer = "bank.transfer"

var (
	errNilState = errors.New("bank: state not configured")

	ErrInsufficientFunds = fmt.Errorf("%w", coreerrors.ErrInsufficientFunds)
	ErrAccountMissing    = fmt.Errorf("%w: recipient account", coreerrors.ErrNotFound)
)

type accountState interface {
	GetAccount(addr [20]byte) (*types.Account, error)
	PutAccount(addr [20]byte, account *types.Account) error
	AccountExists(addr [20]byte) (bool, error)
}

// Ledger is the native asset transfer primitive used by the escrow manager.
type Ledger struct {
	state            accountState
	emitter          events.Emitter
	requireRecipient bool
}

// NewLedger binds a ledger to the account state.
func NewLedger(state accountState) *Ledger {
	return &Ledger{state: state, emitter: events.NoopEmitter{}}
}

// SetEmitter configures the event emitter. Nil resets it to a no-op emitter.
func (l *Ledger) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		l.emitter = events.NoopEmitter{}
		return
	}
	l.emitter = emitter
}

// SetRequireRecipient makes transfers to never-seen accounts fail with
// ErrAccountMissing instead of creating the account.
func (l *Ledger) SetRequireRecipient(require bool) { l.requireRecipient = require }

// Balance returns the spendable balance of addr.
func (l *Ledger) Balance(addr [20]byte) (*big.Int, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	acc, err := l.state.GetAccount(addr)
	if err != nil {
		return nil, err
	}
	return nativecommon.CloneAmount(acc.Balance), nil
}

// Transfer debits from and credits to. Zero amounts and self transfers are
// no-ops.
func (l *Ledger) Transfer(from, to [20]byte, amount *big.Int) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	amt := nativecommon.CloneAmount(amount)
	if amt.Sign() < 0 {
		return fmt.Errorf("%w: negative transfer amount", coreerrors.ErrInvalidInput)
	}
	if amt.Sign() == 0 || from == to {
		return nil
	}
	if l.requireRecipient {
		ok, err := l.state.AccountExists(to)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w %s", ErrAccountMissing, hex.EncodeToString(to[:]))
		}
	}
	sender, err := l.state.GetAccount(from)
	if err != nil {
		return err
	}
	balance := nativecommon.CloneAmount(sender.Balance)
	if balance.Cmp(amt) < 0 {
		return fmt.Errorf("%w: balance %s below %s", ErrInsufficientFunds, balance, amt)
	}
	recipient, err := l.state.GetAccount(to)
	if err != nil {
		return err
	}
	credited, err := nativecommon.CheckedAdd(recipient.Balance, amt)
	if err != nil {
		return err
	}
	sender.Balance = balance.Sub(balance, amt)
	recipient.Balance = credited
	if err := l.state.PutAccount(from, sender); err != nil {
		return err
	}
	if err := l.state.PutAccount(to, recipient); err != nil {
		return err
	}
	l.emitter.Emit(&types.Event{
		Type: EventTypeTransfer,
		Attributes: map[string]string{
			"from":   hex.EncodeToString(from[:]),
			"to":     hex.EncodeToString(to[:]),
			"amount": amt.String(),
		},
	})
	return nil
}

// Mint credits addr out of thin air. It is used for genesis allocations only.
func (l *Ledger) Mint(addr [20]byte, amount *big.Int) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	amt := nativecommon.CloneAmount(amount)
	if amt.Sign() < 0 {
		return fmt.Errorf("%w: negative mint amount", coreerrors.ErrInvalidInput)
	}
	acc, err := l.state.GetAccount(addr)
	if err != nil {
		return err
	}
	credited, err := nativecommon.CheckedAdd(acc.Balance, amt)
	if err != nil {
		return err
	}
	acc.Balance = credited
	return l.state.PutAccount(addr, acc)
}
