package escrow

import (
	"errors"
	"fmt"
	"math/big"

	nativecommon "rentchain/native/common"
)

// ErrLedgerMismatch reports that an escrow account cannot be reconstructed
// from its payment records.
var ErrLedgerMismatch = errors.New("escrow: ledger does not reconcile with account")

// Totals is the result of replaying an agreement's payment records.
type Totals struct {
	Deposited   *big.Int
	FirstRent   *big.Int
	MonthlyRent *big.Int
	Released    *big.Int
	Withdrawn   *big.Int
}

// RentReceived is the rent that entered escrow.
func (t Totals) RentReceived() *big.Int {
	return new(big.Int).Add(nativecommon.CloneAmount(t.FirstRent), nativecommon.CloneAmount(t.MonthlyRent))
}

// Held is the deposit still in custody according to the ledger.
func (t Totals) Held() *big.Int {
	held := nativecommon.CloneAmount(t.Deposited)
	held.Sub(held, nativecommon.CloneAmount(t.Released))
	return held.Sub(held, nativecommon.CloneAmount(t.Withdrawn))
}

// Replay folds records in order into running totals.
func Replay(records []*PaymentRecord) (Totals, error) {
	totals := Totals{
		Deposited:   big.NewInt(0),
		FirstRent:   big.NewInt(0),
		MonthlyRent: big.NewInt(0),
		Released:    big.NewInt(0),
		Withdrawn:   big.NewInt(0),
	}
	for _, r := range records {
		if r == nil {
			continue
		}
		var target **big.Int
		switch r.Type {
		case PaymentSecurityDeposit:
			target = &totals.Deposited
		case PaymentFirstMonthRent:
			target = &totals.FirstRent
		case PaymentMonthlyRent:
			target = &totals.MonthlyRent
		case PaymentDepositRelease:
			target = &totals.Released
		case PaymentEmergencyWithdrawal:
			target = &totals.Withdrawn
		default:
			return Totals{}, fmt.Errorf("%w: unknown payment type %d", ErrLedgerMismatch, r.Type)
		}
		sum, err := nativecommon.CheckedAdd(*target, r.Amount)
		if err != nil {
			return Totals{}, err
		}
		*target = sum
	}
	return totals, nil
}

// Reconcile replays records and checks them against the account balances. Rent
// is pass-through, so received and released rent must both equal the rent
// recorded in the ledger.
func Reconcile(acct *Account, records []*PaymentRecord) (Totals, error) {
	totals, err := Replay(records)
	if err != nil {
		return Totals{}, err
	}
	if acct == nil {
		return totals, fmt.Errorf("%w: missing account", ErrLedgerMismatch)
	}
	rent := totals.RentReceived()
	checks := []struct {
		name string
		want *big.Int
		got  *big.Int
	}{
		{"security deposit", acct.SecurityDepositAmount, totals.Deposited},
		{"rent received", acct.TotalRentReceived, rent},
		{"rent released", acct.TotalRentReleased, rent},
		{"deposit held", acct.SecurityDepositHeld, totals.Held()},
	}
	for _, c := range checks {
		if nativecommon.CloneAmount(c.want).Cmp(c.got) != 0 {
			return totals, fmt.Errorf("%w: %s account=%s ledger=%s", ErrLedgerMismatch, c.name, nativecommon.CloneAmount(c.want), c.got)
		}
	}
	if err := acct.Validate(); err != nil {
		return totals, fmt.Errorf("%w: %v", ErrLedgerMismatch, err)
	}
	return totals, nil
}
