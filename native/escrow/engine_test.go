package escrow

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"testing"

	coreerrors "rentchain/core/errors"
	"rentchain/core/events"
	nativecommon "rentchain/native/common"
	"rentchain/native/rental"
)

type mockState struct {
	accounts map[[32]byte]*Account
	payments map[[32]byte][]*PaymentRecord
	paused   map[string]bool
}

func newMockState() *mockState {
	return &mockState{
		accounts: make(map[[32]byte]*Account),
		payments: make(map[[32]byte][]*PaymentRecord),
		paused:   make(map[string]bool),
	}
}

func (m *mockState) EscrowGet(id [32]byte) (*Account, bool, error) {
	acct, ok := m.accounts[id]
	if !ok {
		return nil, false, nil
	}
	return acct.Clone(), true, nil
}

func (m *mockState) EscrowPut(a *Account) error {
	m.accounts[a.AgreementID] = a.Clone()
	return nil
}

func (m *mockState) PaymentAppend(r *PaymentRecord) error {
	m.payments[r.AgreementID] = append(m.payments[r.AgreementID], r.Clone())
	return nil
}

func (m *mockState) PaymentList(id [32]byte) ([]*PaymentRecord, error) {
	out := make([]*PaymentRecord, 0, len(m.payments[id]))
	for _, r := range m.payments[id] {
		out = append(out, r.Clone())
	}
	return out, nil
}

func (m *mockState) PaymentCount(id [32]byte) (uint64, error) {
	return uint64(len(m.payments[id])), nil
}

func (m *mockState) IsPaused(module string) bool { return m.paused[module] }

type fakeAgreements struct {
	agreements map[[32]byte]*rental.Agreement
}

func (f *fakeAgreements) Get(id [32]byte) (*rental.Agreement, error) {
	a, ok := f.agreements[id]
	if !ok {
		return nil, rental.ErrAgreementNotFound
	}
	return a.Clone(), nil
}

func (f *fakeAgreements) MarkDepositPaid(id [32]byte) (*rental.Agreement, error) {
	a := f.agreements[id]
	if a.Status != rental.StatusPendingPayment {
		return nil, fmt.Errorf("%w: not pending payment", coreerrors.ErrInvalidState)
	}
	a.Status = rental.StatusActive
	a.DepositPaid = true
	return a.Clone(), nil
}

func (f *fakeAgreements) RecordRentPayment(id [32]byte, amount *big.Int) (*rental.Agreement, error) {
	a := f.agreements[id]
	a.TotalRentPaid = new(big.Int).Add(a.TotalRentPaid, amount)
	a.MonthsPaid++
	return a.Clone(), nil
}

type fakeBank struct {
	balances map[[20]byte]*big.Int
}

func (b *fakeBank) Transfer(from, to [20]byte, amount *big.Int) error {
	have := nativecommon.CloneAmount(b.balances[from])
	if have.Cmp(amount) < 0 {
		return fmt.Errorf("%w: short", coreerrors.ErrInsufficientFunds)
	}
	b.balances[from] = have.Sub(have, amount)
	b.balances[to] = new(big.Int).Add(nativecommon.CloneAmount(b.balances[to]), amount)
	return nil
}

func (b *fakeBank) balance(addr [20]byte) *big.Int { return nativecommon.CloneAmount(b.balances[addr]) }

type capture struct{ types []string }

func (c *capture) Emit(evt events.Event) { c.types = append(c.types, evt.EventType()) }

func newTestAddress(fill byte) [20]byte {
	var addr [20]byte
	copy(addr[:], bytes.Repeat([]byte{fill}, 20))
	return addr
}

var (
	landlord = newTestAddress(0x01)
	tenant   = newTestAddress(0x02)
	admin    = newTestAddress(0x0A)
	stranger = newTestAddress(0x03)
	rent     = big.NewInt(500_0000000)
	deposit  = big.NewInt(1000_0000000)
)

type fixture struct {
	engine     *Engine
	state      *mockState
	agreements *fakeAgreements
	bank       *fakeBank
	events     *capture
	id         [32]byte
}

func newFixture(t *testing.T, dep *big.Int) *fixture {
	t.Helper()
	id := [32]byte{0x42}
	f := &fixture{
		state: newMockState(),
		agreements: &fakeAgreements{agreements: map[[32]byte]*rental.Agreement{
			id: {
				ID:              id,
				Landlord:        landlord,
				Tenant:          tenant,
				MonthlyRent:     new(big.Int).Set(rent),
				SecurityDeposit: new(big.Int).Set(dep),
				Status:          rental.StatusPendingPayment,
				TotalRentPaid:   big.NewInt(0),
			},
		}},
		bank:   &fakeBank{balances: map[[20]byte]*big.Int{tenant: big.NewInt(10_000_0000000)}},
		events: &capture{},
		id:     id,
	}
	f.engine = NewEngine()
	f.engine.SetState(f.state)
	f.engine.SetAgreements(f.agreements)
	f.engine.SetBank(f.bank)
	f.engine.SetEmitter(f.events)
	f.engine.SetAdmin(admin)
	f.engine.SetNowFunc(func() int64 { return 1_700_000_000 })
	return f
}

func TestDepositSecurityAndRent(t *testing.T) {
	f := newFixture(t, deposit)

	if _, err := f.engine.DepositSecurityAndRent(stranger, f.id); !errors.Is(err, coreerrors.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	acct, err := f.engine.DepositSecurityAndRent(tenant, f.id)
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if acct.SecurityDepositHeld.Cmp(deposit) != 0 {
		t.Fatalf("held deposit = %s", acct.SecurityDepositHeld)
	}
	if acct.TotalRentReceived.Cmp(rent) != 0 || acct.TotalRentReleased.Cmp(rent) != 0 {
		t.Fatalf("unexpected rent totals %s/%s", acct.TotalRentReceived, acct.TotalRentReleased)
	}
	if acct.IsDepositReleased {
		t.Fatalf("deposit must not be released yet")
	}
	if got := f.bank.balance(f.engine.Custody()); got.Cmp(deposit) != 0 {
		t.Fatalf("custody holds %s", got)
	}
	if got := f.bank.balance(landlord); got.Cmp(rent) != 0 {
		t.Fatalf("landlord received %s", got)
	}
	agreement := f.agreements.agreements[f.id]
	if agreement.Status != rental.StatusActive || agreement.MonthsPaid != 1 {
		t.Fatalf("agreement not activated: %+v", agreement)
	}
	history, err := f.engine.History(f.id)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 2 || history[0].Type != PaymentSecurityDeposit || history[1].Type != PaymentFirstMonthRent {
		t.Fatalf("unexpected history %+v", history)
	}
	if history[0].ID == history[1].ID {
		t.Fatalf("payment ids must be unique")
	}
	if _, err := f.engine.DepositSecurityAndRent(tenant, f.id); !errors.Is(err, coreerrors.ErrInvalidState) {
		t.Fatalf("second deposit must fail with invalid state, got %v", err)
	}
}

func TestDepositInsufficientFunds(t *testing.T) {
	f := newFixture(t, deposit)
	f.bank.balances[tenant] = big.NewInt(1)
	if _, err := f.engine.DepositSecurityAndRent(tenant, f.id); !errors.Is(err, coreerrors.ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	if _, ok := f.state.accounts[f.id]; ok {
		t.Fatalf("escrow account must not exist after failed deposit")
	}
	if len(f.state.payments[f.id]) != 0 {
		t.Fatalf("no payment records may be appended on failure")
	}
}

func TestPayRentAndReconcile(t *testing.T) {
	f := newFixture(t, deposit)
	if _, err := f.engine.PayRent(tenant, f.id); !errors.Is(err, coreerrors.ErrInvalidState) {
		t.Fatalf("rent before activation must fail, got %v", err)
	}
	if _, err := f.engine.DepositSecurityAndRent(tenant, f.id); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := f.engine.PayRent(tenant, f.id); err != nil {
			t.Fatalf("pay rent %d: %v", i, err)
		}
	}
	acct, err := f.engine.Get(f.id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if acct.TotalRentReleased.Cmp(big.NewInt(2000_0000000)) != 0 {
		t.Fatalf("rent released = %s", acct.TotalRentReleased)
	}
	agreement := f.agreements.agreements[f.id]
	if agreement.MonthsPaid != 4 || agreement.TotalRentPaid.Cmp(big.NewInt(2000_0000000)) != 0 {
		t.Fatalf("agreement totals %d/%s", agreement.MonthsPaid, agreement.TotalRentPaid)
	}
	received := new(big.Int).Sub(acct.TotalRentReceived, acct.TotalRentReleased)
	if received.Sign() != 0 {
		t.Fatalf("rent must be fully pass-through, %s outstanding", received)
	}
	totals, err := f.engine.Verify(f.id)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if totals.MonthlyRent.Cmp(big.NewInt(1500_0000000)) != 0 {
		t.Fatalf("replayed monthly rent = %s", totals.MonthlyRent)
	}
	if _, err := f.engine.PayRent(landlord, f.id); !errors.Is(err, coreerrors.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestPayRentOverflowLeavesBalancesUntouched(t *testing.T) {
	f := newFixture(t, deposit)
	if _, err := f.engine.DepositSecurityAndRent(tenant, f.id); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	f.state.accounts[f.id].TotalRentReceived = new(big.Int).Set(nativecommon.MaxAmount)
	tenantBefore := f.bank.balance(tenant)
	landlordBefore := f.bank.balance(landlord)
	recordsBefore := len(f.state.payments[f.id])
	monthsBefore := f.agreements.agreements[f.id].MonthsPaid

	if _, err := f.engine.PayRent(tenant, f.id); !errors.Is(err, coreerrors.ErrOverflow) {
		t.Fatalf("expected overflow, got %v", err)
	}
	if got := f.bank.balance(tenant); got.Cmp(tenantBefore) != 0 {
		t.Fatalf("tenant balance changed to %s", got)
	}
	if got := f.bank.balance(landlord); got.Cmp(landlordBefore) != 0 {
		t.Fatalf("landlord balance changed to %s", got)
	}
	if len(f.state.payments[f.id]) != recordsBefore {
		t.Fatalf("overflowing payment must not be recorded")
	}
	if f.agreements.agreements[f.id].MonthsPaid != monthsBefore {
		t.Fatalf("agreement rent counters moved")
	}
}

func TestReleaseDepositOnce(t *testing.T) {
	f := newFixture(t, deposit)
	if _, err := f.engine.DepositSecurityAndRent(tenant, f.id); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if _, err := f.engine.ReleaseDepositToTenant(landlord, f.id); !errors.Is(err, coreerrors.ErrInvalidState) {
		t.Fatalf("release before completion must fail, got %v", err)
	}
	f.agreements.agreements[f.id].Status = rental.StatusCompleted

	if _, err := f.engine.ReleaseDepositToTenant(stranger, f.id); !errors.Is(err, coreerrors.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	tenantBefore := f.bank.balance(tenant)
	acct, err := f.engine.ReleaseDepositToTenant(landlord, f.id)
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if acct.SecurityDepositHeld.Sign() != 0 || !acct.IsDepositReleased || acct.DepositReleasedAt == 0 {
		t.Fatalf("unexpected released account %+v", acct)
	}
	gained := new(big.Int).Sub(f.bank.balance(tenant), tenantBefore)
	if gained.Cmp(deposit) != 0 {
		t.Fatalf("tenant gained %s", gained)
	}
	_, err = f.engine.ReleaseDepositToTenant(landlord, f.id)
	if !errors.Is(err, coreerrors.ErrAlreadyReleased) || coreerrors.KindOf(err) != coreerrors.KindAlreadyReleased {
		t.Fatalf("expected already released, got %v", err)
	}
	if got := f.bank.balance(tenant); new(big.Int).Sub(got, tenantBefore).Cmp(deposit) != 0 {
		t.Fatalf("second release changed the balance")
	}
	if _, err := f.engine.Verify(f.id); err != nil {
		t.Fatalf("verify after release: %v", err)
	}
}

func TestZeroDepositStartsReleased(t *testing.T) {
	f := newFixture(t, big.NewInt(0))
	acct, err := f.engine.DepositSecurityAndRent(tenant, f.id)
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if !acct.IsDepositReleased || acct.SecurityDepositHeld.Sign() != 0 {
		t.Fatalf("zero deposit must start released: %+v", acct)
	}
	if err := acct.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestEmergencyWithdraw(t *testing.T) {
	f := newFixture(t, deposit)
	if _, err := f.engine.DepositSecurityAndRent(tenant, f.id); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	vault := newTestAddress(0x0B)
	if _, err := f.engine.EmergencyWithdraw(landlord, f.id, vault); !errors.Is(err, coreerrors.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	f.state.paused[nativecommon.ModuleEscrow] = true
	acct, err := f.engine.EmergencyWithdraw(admin, f.id, vault)
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if !acct.IsDepositReleased || f.bank.balance(vault).Cmp(deposit) != 0 {
		t.Fatalf("withdrawal did not move the deposit")
	}
	history, _ := f.engine.History(f.id)
	if last := history[len(history)-1]; last.Type != PaymentEmergencyWithdrawal || last.Payee != vault {
		t.Fatalf("unexpected last record %+v", last)
	}
	if _, err := f.engine.EmergencyWithdraw(admin, f.id, vault); !errors.Is(err, coreerrors.ErrAlreadyReleased) {
		t.Fatalf("expected already released, got %v", err)
	}
}

func TestPausedEscrowRejectsDeposits(t *testing.T) {
	f := newFixture(t, deposit)
	f.state.paused[nativecommon.ModuleEscrow] = true
	if _, err := f.engine.DepositSecurityAndRent(tenant, f.id); !errors.Is(err, coreerrors.ErrPaused) {
		t.Fatalf("expected paused, got %v", err)
	}
}

func TestReconcileDetectsTampering(t *testing.T) {
	f := newFixture(t, deposit)
	if _, err := f.engine.DepositSecurityAndRent(tenant, f.id); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	acct, _ := f.engine.Get(f.id)
	records, _ := f.engine.History(f.id)
	acct.TotalRentReceived = new(big.Int).Add(acct.TotalRentReceived, big.NewInt(1))
	if _, err := Reconcile(acct, records); !errors.Is(err, ErrLedgerMismatch) {
		t.Fatalf("expected ledger mismatch, got %v", err)
	}
}
