package escrow

import (
	"errors"
	"fmt"
	"math/big"
	"sort"
	"time"

	coreerrors "rentchain/core/errors"
	"rentchain/core/events"
	"rentchain/core/types"
	nativecommon "rentchain/native/common"
	"rentchain/native/rental"
)

var (
	errNilState      = errors.New("escrow engine: state not configured")
	errNilAgreements = errors.New("escrow engine: agreement engine not configured")
	errNilBank       = errors.New("escrow engine: bank not configured")

	ErrEscrowNotFound  = fmt.Errorf("%w: escrow", coreerrors.ErrNotFound)
	ErrEscrowExists    = fmt.Errorf("%w: escrow already funded", coreerrors.ErrInvalidState)
	ErrNotTenant       = fmt.Errorf("%w: caller is not the tenant", coreerrors.ErrUnauthorized)
	ErrNotParty        = fmt.Errorf("%w: caller is not a party to the agreement", coreerrors.ErrUnauthorized)
	ErrNotAdmin        = fmt.Errorf("%w: caller is not the escrow admin", coreerrors.ErrUnauthorized)
	ErrAlreadyReleased = fmt.Errorf("%w", coreerrors.ErrAlreadyReleased)
	ErrNotReleasable   = fmt.Errorf("%w: agreement does not permit deposit release", coreerrors.ErrInvalidState)
)

type engineState interface {
	EscrowGet(id [32]byte) (*Account, bool, error)
	EscrowPut(a *Account) error
	PaymentAppend(r *PaymentRecord) error
	PaymentList(agreementID [32]byte) ([]*PaymentRecord, error)
	PaymentCount(agreementID [32]byte) (uint64, error)
	IsPaused(module string) bool
}

// agreementEngine is the part of the rental engine the escrow manager drives.
// The rental engine stays the only source of truth for agreement status.
type agreementEngine interface {
	Get(id [32]byte) (*rental.Agreement, error)
	MarkDepositPaid(id [32]byte) (*rental.Agreement, error)
	RecordRentPayment(id [32]byte, amount *big.Int) (*rental.Agreement, error)
}

// transferer moves native balances between accounts and reports
// ErrInsufficientFunds when the payer cannot cover the amount.
type transferer interface {
	Transfer(from, to [20]byte, amount *big.Int) error
}

// Engine implements the escrow manager. Every balance mutation is paired with
// a PaymentRecord append in the same call so the ledger always mirrors the
// account totals.
type Engine struct {
	state      engineState
	agreements agreementEngine
	bank       transferer
	emitter    events.Emitter
	nowFn      func() int64
	custody    [20]byte
	admin      [20]byte
}

// NewEngine creates an escrow engine holding deposits in DefaultCustodyAddress.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
		custody: DefaultCustodyAddress,
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetAgreements wires the rental engine.
func (e *Engine) SetAgreements(a agreementEngine) { e.agreements = a }

// SetBank wires the native transfer primitive.
func (e *Engine) SetBank(b transferer) { e.bank = b }

// SetCustody overrides the custody account.
func (e *Engine) SetCustody(addr [20]byte) { e.custody = addr }

// Custody returns the custody account.
func (e *Engine) Custody() [20]byte { return e.custody }

// SetAdmin configures the account allowed to perform emergency withdrawals.
func (e *Engine) SetAdmin(addr [20]byte) { e.admin = addr }

// SetNowFunc overrides the ledger clock.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetEmitter configures the event emitter. Nil resets it to a no-op emitter.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// DepositSecurityAndRent takes custody of the deposit, forwards the first
// month's rent to the landlord and activates the agreement. The caller relies
// on the surrounding execution unit to discard every write if any step fails.
func (e *Engine) DepositSecurityAndRent(caller [20]byte, agreementID [32]byte) (*Account, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	a, err := e.agreements.Get(agreementID)
	if err != nil {
		return nil, err
	}
	if a.Tenant != caller {
		return nil, ErrNotTenant
	}
	if a.Status != rental.StatusPendingPayment {
		return nil, fmt.Errorf("%w: agreement is %s, want %s", coreerrors.ErrInvalidState, a.Status, rental.StatusPendingPayment)
	}
	if _, exists, err := e.state.EscrowGet(agreementID); err != nil {
		return nil, err
	} else if exists {
		return nil, ErrEscrowExists
	}
	deposit := nativecommon.CloneAmount(a.SecurityDeposit)
	rent := nativecommon.CloneAmount(a.MonthlyRent)
	total, err := nativecommon.CheckedAdd(deposit, rent)
	if err != nil {
		return nil, err
	}
	if err := e.bank.Transfer(a.Tenant, e.custody, total); err != nil {
		return nil, err
	}
	if err := e.bank.Transfer(e.custody, a.Landlord, rent); err != nil {
		return nil, err
	}
	now := e.now()
	acct := &Account{
		AgreementID:           agreementID,
		Landlord:              a.Landlord,
		Tenant:                a.Tenant,
		SecurityDepositAmount: deposit,
		SecurityDepositHeld:   nativecommon.CloneAmount(deposit),
		MonthlyRentAmount:     nativecommon.CloneAmount(rent),
		TotalRentReceived:     nativecommon.CloneAmount(rent),
		TotalRentReleased:     nativecommon.CloneAmount(rent),
		CreatedAt:             now,
	}
	if deposit.Sign() == 0 {
		// Nothing to hold: the account starts out released.
		acct.IsDepositReleased = true
		acct.DepositReleasedAt = now
	}
	if err := e.storeAccount(acct); err != nil {
		return nil, err
	}
	if _, err := e.appendRecord(agreementID, a.Tenant, e.custody, deposit, PaymentSecurityDeposit, now); err != nil {
		return nil, err
	}
	if _, err := e.appendRecord(agreementID, a.Tenant, a.Landlord, rent, PaymentFirstMonthRent, now); err != nil {
		return nil, err
	}
	if _, err := e.agreements.MarkDepositPaid(agreementID); err != nil {
		return nil, err
	}
	if _, err := e.agreements.RecordRentPayment(agreementID, rent); err != nil {
		return nil, err
	}
	e.emit(NewFundedEvent(acct))
	return acct.Clone(), nil
}

// PayRent forwards one month of rent from the tenant to the landlord.
func (e *Engine) PayRent(caller [20]byte, agreementID [32]byte) (*Account, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	a, err := e.agreements.Get(agreementID)
	if err != nil {
		return nil, err
	}
	if a.Tenant != caller {
		return nil, ErrNotTenant
	}
	if a.Status != rental.StatusActive {
		return nil, fmt.Errorf("%w: agreement is %s, want %s", coreerrors.ErrInvalidState, a.Status, rental.StatusActive)
	}
	acct, err := e.Get(agreementID)
	if err != nil {
		return nil, err
	}
	rent := nativecommon.CloneAmount(a.MonthlyRent)
	received, err := nativecommon.CheckedAdd(acct.TotalRentReceived, rent)
	if err != nil {
		return nil, err
	}
	released, err := nativecommon.CheckedAdd(acct.TotalRentReleased, rent)
	if err != nil {
		return nil, err
	}
	if err := e.bank.Transfer(a.Tenant, a.Landlord, rent); err != nil {
		return nil, err
	}
	acct.TotalRentReceived = received
	acct.TotalRentReleased = released
	if err := e.storeAccount(acct); err != nil {
		return nil, err
	}
	record, err := e.appendRecord(agreementID, a.Tenant, a.Landlord, rent, PaymentMonthlyRent, e.now())
	if err != nil {
		return nil, err
	}
	if _, err := e.agreements.RecordRentPayment(agreementID, rent); err != nil {
		return nil, err
	}
	e.emit(NewRentPaidEvent(acct, record))
	return acct.Clone(), nil
}

// ReleaseDepositToTenant returns the held deposit once the rental engine
// reports the agreement as releasable. A second release fails with
// AlreadyReleased and leaves balances untouched.
func (e *Engine) ReleaseDepositToTenant(caller [20]byte, agreementID [32]byte) (*Account, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	acct, err := e.Get(agreementID)
	if err != nil {
		return nil, err
	}
	if acct.Tenant != caller && acct.Landlord != caller {
		return nil, ErrNotParty
	}
	if acct.IsDepositReleased {
		return nil, ErrAlreadyReleased
	}
	a, err := e.agreements.Get(agreementID)
	if err != nil {
		return nil, err
	}
	if !rental.DepositReleasable(a) {
		return nil, fmt.Errorf("%w (status %s)", ErrNotReleasable, a.Status)
	}
	record, err := e.payOutDeposit(acct, acct.Tenant, PaymentDepositRelease)
	if err != nil {
		return nil, err
	}
	e.emit(NewReleasedEvent(acct, record))
	return acct.Clone(), nil
}

// EmergencyWithdraw lets the admin move a held deposit to an arbitrary account.
// It deliberately ignores the pause guard.
func (e *Engine) EmergencyWithdraw(caller [20]byte, agreementID [32]byte, to [20]byte) (*Account, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if e.bank == nil {
		return nil, errNilBank
	}
	if e.admin == ([20]byte{}) || caller != e.admin {
		return nil, ErrNotAdmin
	}
	if to == ([20]byte{}) {
		return nil, fmt.Errorf("%w: withdrawal recipient required", coreerrors.ErrInvalidInput)
	}
	acct, err := e.Get(agreementID)
	if err != nil {
		return nil, err
	}
	if acct.IsDepositReleased {
		return nil, ErrAlreadyReleased
	}
	record, err := e.payOutDeposit(acct, to, PaymentEmergencyWithdrawal)
	if err != nil {
		return nil, err
	}
	e.emit(NewEmergencyWithdrawalEvent(acct, record))
	return acct.Clone(), nil
}

// Get returns the escrow account of an agreement.
func (e *Engine) Get(agreementID [32]byte) (*Account, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	acct, ok, err := e.state.EscrowGet(agreementID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrEscrowNotFound
	}
	return acct, nil
}

// History returns the payment records of an agreement in ledger order.
func (e *Engine) History(agreementID [32]byte) ([]*PaymentRecord, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	records, err := e.state.PaymentList(agreementID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Timestamp != records[j].Timestamp {
			return records[i].Timestamp < records[j].Timestamp
		}
		return records[i].Sequence < records[j].Sequence
	})
	return records, nil
}

// Verify replays the payment ledger of an agreement against its account.
func (e *Engine) Verify(agreementID [32]byte) (Totals, error) {
	acct, err := e.Get(agreementID)
	if err != nil {
		return Totals{}, err
	}
	records, err := e.History(agreementID)
	if err != nil {
		return Totals{}, err
	}
	return Reconcile(acct, records)
}

func (e *Engine) payOutDeposit(acct *Account, to [20]byte, kind PaymentType) (*PaymentRecord, error) {
	amount := nativecommon.CloneAmount(acct.SecurityDepositHeld)
	remaining, err := nativecommon.SubNonNegative(acct.SecurityDepositHeld, amount)
	if err != nil {
		return nil, err
	}
	if err := e.bank.Transfer(e.custody, to, amount); err != nil {
		return nil, err
	}
	now := e.now()
	acct.SecurityDepositHeld = remaining
	acct.IsDepositReleased = true
	acct.DepositReleasedAt = now
	if err := e.storeAccount(acct); err != nil {
		return nil, err
	}
	return e.appendRecord(acct.AgreementID, e.custody, to, amount, kind, now)
}

func (e *Engine) appendRecord(agreementID [32]byte, payer, payee [20]byte, amount *big.Int, kind PaymentType, ts uint64) (*PaymentRecord, error) {
	seq, err := e.state.PaymentCount(agreementID)
	if err != nil {
		return nil, err
	}
	record := &PaymentRecord{
		ID:          PaymentID(agreementID, seq, kind),
		AgreementID: agreementID,
		Sequence:    seq,
		Payer:       payer,
		Payee:       payee,
		Amount:      nativecommon.CloneAmount(amount),
		Type:        kind,
		Timestamp:   ts,
	}
	if err := e.state.PaymentAppend(record); err != nil {
		return nil, err
	}
	e.emit(NewPaymentRecordedEvent(record))
	return record, nil
}

func (e *Engine) storeAccount(acct *Account) error {
	if err := acct.Validate(); err != nil {
		return err
	}
	return e.state.EscrowPut(acct)
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.agreements == nil {
		return errNilAgreements
	}
	if e.bank == nil {
		return errNilBank
	}
	return nativecommon.Guard(e.state, nativecommon.ModuleEscrow)
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(event)
}

func (e *Engine) now() uint64 {
	ts := time.Now().Unix()
	if e != nil && e.nowFn != nil {
		ts = e.nowFn()
	}
	if ts < 0 {
		return 0
	}
	return uint64(ts)
}
