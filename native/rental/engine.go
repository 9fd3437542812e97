package rental

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"time"

	coreerrors "rentchain/core/errors"
	"rentchain/core/events"
	"rentchain/core/types"
	nativecommon "rentchain/native/common"
	"rentchain/native/property"
)

var (
	errNilState      = errors.New("rental engine: state not configured")
	errNilProperties = errors.New("rental engine: property registry not configured")

	ErrAgreementNotFound   = fmt.Errorf("%w: agreement", coreerrors.ErrNotFound)
	ErrNotLandlord         = fmt.Errorf("%w: caller is not the landlord", coreerrors.ErrUnauthorized)
	ErrNotTenant           = fmt.Errorf("%w: caller is not the tenant", coreerrors.ErrUnauthorized)
	ErrNotParty            = fmt.Errorf("%w: caller is not a party to the agreement", coreerrors.ErrUnauthorized)
	ErrPropertyUnavailable = fmt.Errorf("%w: property unavailable", coreerrors.ErrInvalidState)
	ErrInvalidDateRange    = fmt.Errorf("%w: invalid date range", coreerrors.ErrInvalidInput)
	ErrDurationOutOfRange  = fmt.Errorf("%w: stay duration outside property bounds", coreerrors.ErrInvalidInput)
	ErrAlreadySigned       = fmt.Errorf("%w: already signed", coreerrors.ErrInvalidState)
	ErrExpired             = fmt.Errorf("%w: pending window expired", coreerrors.ErrInvalidState)
	ErrNotExpired          = fmt.Errorf("%w: pending window still open", coreerrors.ErrInvalidState)
	ErrTermNotElapsed      = fmt.Errorf("%w: lease term has not ended", coreerrors.ErrInvalidState)
)

type engineState interface {
	RentalGet(id [32]byte) (*Agreement, bool, error)
	RentalPut(a *Agreement) error
	RentalIndex(a *Agreement) error
	RentalListByTenant(addr [20]byte) ([][32]byte, error)
	RentalListByLandlord(addr [20]byte) ([][32]byte, error)
	RentalListByProperty(id [32]byte) ([][32]byte, error)
	RentalQuotaGet(addr [20]byte) (nativecommon.QuotaNow, error)
	RentalQuotaPut(addr [20]byte, q nativecommon.QuotaNow) error
	IsPaused(module string) bool
}

// propertyRegistry is the slice of the property engine the rental engine
// depends on.
type propertyRegistry interface {
	Get(id [32]byte) (*property.Property, error)
	Lock(id, holder [32]byte) error
	Unlock(id, holder [32]byte) error
}

// Engine drives agreements through their lifecycle. Every transition checks
// the current status with an exhaustive switch and fails with InvalidState
// rather than silently doing nothing.
type Engine struct {
	state      engineState
	properties propertyRegistry
	emitter    events.Emitter
	nowFn      func() int64
	policy     Policy
}

// NewEngine returns an engine that never locks availability and never expires
// pending agreements.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetPropertyRegistry wires the registry used to validate and lock listings.
func (e *Engine) SetPropertyRegistry(reg propertyRegistry) { e.properties = reg }

// SetPolicy replaces the engine policy.
func (e *Engine) SetPolicy(p Policy) { e.policy = p }

// Policy returns the active policy.
func (e *Engine) Policy() Policy { return e.policy }

// SetEmitter configures the event emitter. Nil resets it to a no-op emitter.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the ledger clock.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// Request opens a tenant-initiated agreement awaiting landlord approval. The
// identifier is chosen by the client and must be unused.
func (e *Engine) Request(tenant [20]byte, id, propertyID [32]byte, start, end uint64) (*Agreement, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.ensureUnused(id); err != nil {
		return nil, err
	}
	prop, err := e.properties.Get(propertyID)
	if err != nil {
		return nil, err
	}
	if !prop.Bookable() {
		return nil, ErrPropertyUnavailable
	}
	if prop.Owner == tenant {
		return nil, fmt.Errorf("%w: owner cannot rent their own property", coreerrors.ErrInvalidInput)
	}
	now := e.now()
	if err := validateTerm(prop, start, end, now); err != nil {
		return nil, err
	}
	if err := e.consumeQuota(tenant, now); err != nil {
		return nil, err
	}
	a := newAgreement(id, prop, tenant, start, end, now)
	a.Status = StatusPendingLandlordApproval
	if e.policy.RequestTTL > 0 {
		a.ExpiresAt = now + e.policy.RequestTTL
	}
	if e.policy.AvailabilityLock == LockOnRequest {
		if err := e.lockProperty(a); err != nil {
			return nil, err
		}
	}
	if err := e.create(a); err != nil {
		return nil, err
	}
	e.emit(NewRequestedEvent(a))
	return a.Clone(), nil
}

// Approve accepts a pending request. Only one decision per agreement ever
// succeeds.
func (e *Engine) Approve(caller [20]byte, id [32]byte) (*Agreement, error) {
	a, err := e.loadMutable(id)
	if err != nil {
		return nil, err
	}
	if a.Landlord != caller {
		return nil, ErrNotLandlord
	}
	if err := requireStatus(a, StatusPendingLandlordApproval); err != nil {
		return nil, err
	}
	now := e.now()
	if expired(a, now) {
		return nil, ErrExpired
	}
	if e.policy.AvailabilityLock == LockOnApproval {
		if err := e.lockProperty(a); err != nil {
			return nil, err
		}
	}
	if err := e.transition(a, StatusPendingPayment); err != nil {
		return nil, err
	}
	a.DecidedAt = now
	a.ExpiresAt = e.paymentDeadline(now)
	if err := e.state.RentalPut(a); err != nil {
		return nil, err
	}
	e.emit(NewApprovedEvent(a))
	return a.Clone(), nil
}

// Reject declines a pending request. Rejected is terminal.
func (e *Engine) Reject(caller [20]byte, id [32]byte) (*Agreement, error) {
	a, err := e.loadMutable(id)
	if err != nil {
		return nil, err
	}
	if a.Landlord != caller {
		return nil, ErrNotLandlord
	}
	if err := requireStatus(a, StatusPendingLandlordApproval); err != nil {
		return nil, err
	}
	if err := e.transition(a, StatusRejected); err != nil {
		return nil, err
	}
	a.DecidedAt = e.now()
	a.ExpiresAt = 0
	if err := e.releaseProperty(a); err != nil {
		return nil, err
	}
	if err := e.state.RentalPut(a); err != nil {
		return nil, err
	}
	e.emit(NewRejectedEvent(a))
	return a.Clone(), nil
}

// Create drafts a landlord-initiated agreement that both parties must sign
// before payment.
func (e *Engine) Create(landlord [20]byte, id, propertyID [32]byte, tenant [20]byte, start, end uint64) (*Agreement, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.ensureUnused(id); err != nil {
		return nil, err
	}
	prop, err := e.properties.Get(propertyID)
	if err != nil {
		return nil, err
	}
	if prop.Owner != landlord {
		return nil, ErrNotLandlord
	}
	if !prop.Bookable() {
		return nil, ErrPropertyUnavailable
	}
	if tenant == landlord || tenant == ([20]byte{}) {
		return nil, fmt.Errorf("%w: tenant must be a distinct account", coreerrors.ErrInvalidInput)
	}
	now := e.now()
	if err := validateTerm(prop, start, end, now); err != nil {
		return nil, err
	}
	a := newAgreement(id, prop, tenant, start, end, now)
	a.Status = StatusDraft
	if err := e.create(a); err != nil {
		return nil, err
	}
	e.emit(NewCreatedEvent(a))
	return a.Clone(), nil
}

// TenantSign records the tenant's signature on a drafted agreement.
func (e *Engine) TenantSign(caller [20]byte, id [32]byte) (*Agreement, error) {
	return e.sign(caller, id, true)
}

// LandlordSign records the landlord's signature on a drafted agreement.
func (e *Engine) LandlordSign(caller [20]byte, id [32]byte) (*Agreement, error) {
	return e.sign(caller, id, false)
}

func (e *Engine) sign(caller [20]byte, id [32]byte, tenantSide bool) (*Agreement, error) {
	a, err := e.loadMutable(id)
	if err != nil {
		return nil, err
	}
	switch a.Status {
	case StatusDraft, StatusPendingTenantSign, StatusPendingLandlordSign:
	case StatusPendingLandlordApproval, StatusPendingPayment, StatusActive, StatusCompleted, StatusCancelled, StatusRejected:
		return nil, invalidState(a, "sign")
	default:
		return nil, invalidState(a, "sign")
	}
	now := e.now()
	if tenantSide {
		if a.Tenant != caller {
			return nil, ErrNotTenant
		}
		if a.TenantSigned {
			return nil, ErrAlreadySigned
		}
		a.TenantSigned = true
		a.TenantSignedAt = now
	} else {
		if a.Landlord != caller {
			return nil, ErrNotLandlord
		}
		if a.LandlordSigned {
			return nil, ErrAlreadySigned
		}
		a.LandlordSigned = true
		a.LandlordSignedAt = now
	}
	next := nextAfterSignature(a)
	if next == StatusPendingPayment && e.policy.AvailabilityLock == LockOnApproval {
		if err := e.lockProperty(a); err != nil {
			return nil, err
		}
	}
	if err := e.transition(a, next); err != nil {
		return nil, err
	}
	if next == StatusPendingPayment {
		a.DecidedAt = now
		a.ExpiresAt = e.paymentDeadline(now)
	}
	if err := e.state.RentalPut(a); err != nil {
		return nil, err
	}
	e.emit(NewSignedEvent(a, tenantSide))
	return a.Clone(), nil
}

// MarkDepositPaid activates an agreement once the escrow manager has taken
// custody of the deposit. It is only reachable from the escrow engine.
func (e *Engine) MarkDepositPaid(id [32]byte) (*Agreement, error) {
	a, err := e.loadMutable(id)
	if err != nil {
		return nil, err
	}
	if err := requireStatus(a, StatusPendingPayment); err != nil {
		return nil, err
	}
	now := e.now()
	if expired(a, now) {
		return nil, ErrExpired
	}
	if e.policy.AvailabilityLock == LockOnPayment {
		if err := e.lockProperty(a); err != nil {
			return nil, err
		}
	}
	if err := e.transition(a, StatusActive); err != nil {
		return nil, err
	}
	a.DepositPaid = true
	a.DepositPaidAt = now
	a.ExpiresAt = 0
	if err := e.state.RentalPut(a); err != nil {
		return nil, err
	}
	e.emit(NewActivatedEvent(a))
	return a.Clone(), nil
}

// RecordRentPayment adds amount to the running rent total. It is only
// reachable from the escrow engine.
func (e *Engine) RecordRentPayment(id [32]byte, amount *big.Int) (*Agreement, error) {
	a, err := e.loadMutable(id)
	if err != nil {
		return nil, err
	}
	if err := requireStatus(a, StatusActive); err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, fmt.Errorf("%w: rent amount must be positive", coreerrors.ErrInvalidInput)
	}
	total, err := nativecommon.CheckedAdd(a.TotalRentPaid, amount)
	if err != nil {
		return nil, err
	}
	if a.MonthsPaid == math.MaxUint32 {
		return nil, fmt.Errorf("%w: months paid", coreerrors.ErrOverflow)
	}
	a.TotalRentPaid = total
	a.MonthsPaid++
	if err := e.state.RentalPut(a); err != nil {
		return nil, err
	}
	e.emit(NewRentRecordedEvent(a, amount))
	return a.Clone(), nil
}

// Complete closes an active agreement once its term has elapsed.
func (e *Engine) Complete(caller [20]byte, id [32]byte) (*Agreement, error) {
	a, err := e.loadMutable(id)
	if err != nil {
		return nil, err
	}
	if !a.IsParty(caller) {
		return nil, ErrNotParty
	}
	if err := requireStatus(a, StatusActive); err != nil {
		return nil, err
	}
	now := e.now()
	if now < a.EndDate {
		return nil, ErrTermNotElapsed
	}
	if err := e.transition(a, StatusCompleted); err != nil {
		return nil, err
	}
	a.CompletedAt = now
	if err := e.releaseProperty(a); err != nil {
		return nil, err
	}
	if err := e.state.RentalPut(a); err != nil {
		return nil, err
	}
	e.emit(NewCompletedEvent(a))
	return a.Clone(), nil
}

// Cancel terminates an agreement before completion. Either party may cancel a
// pending agreement; an active lease can only be cancelled by the landlord.
func (e *Engine) Cancel(caller [20]byte, id [32]byte) (*Agreement, error) {
	a, err := e.loadMutable(id)
	if err != nil {
		return nil, err
	}
	if !a.IsParty(caller) {
		return nil, ErrNotParty
	}
	switch a.Status {
	case StatusDraft, StatusPendingTenantSign, StatusPendingLandlordSign, StatusPendingLandlordApproval, StatusPendingPayment:
	case StatusActive:
		if a.Landlord != caller {
			return nil, ErrNotLandlord
		}
	case StatusCompleted, StatusCancelled, StatusRejected:
		return nil, invalidState(a, "cancel")
	default:
		return nil, invalidState(a, "cancel")
	}
	if err := e.cancel(a); err != nil {
		return nil, err
	}
	e.emit(NewCancelledEvent(a))
	return a.Clone(), nil
}

// Expire cancels an agreement whose approval or payment window has lapsed.
// Anyone may trigger it.
func (e *Engine) Expire(id [32]byte) (*Agreement, error) {
	a, err := e.loadMutable(id)
	if err != nil {
		return nil, err
	}
	switch a.Status {
	case StatusPendingLandlordApproval, StatusPendingPayment:
	case StatusDraft, StatusPendingTenantSign, StatusPendingLandlordSign, StatusActive, StatusCompleted, StatusCancelled, StatusRejected:
		return nil, invalidState(a, "expire")
	default:
		return nil, invalidState(a, "expire")
	}
	if !expired(a, e.now()) {
		return nil, ErrNotExpired
	}
	if err := e.cancel(a); err != nil {
		return nil, err
	}
	e.emit(NewExpiredEvent(a))
	return a.Clone(), nil
}

// Get returns the agreement with the supplied id.
func (e *Engine) Get(id [32]byte) (*Agreement, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	a, ok, err := e.state.RentalGet(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrAgreementNotFound
	}
	return a, nil
}

// ListByTenant returns the tenant's agreements in creation order.
func (e *Engine) ListByTenant(addr [20]byte) ([]*Agreement, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	ids, err := e.state.RentalListByTenant(addr)
	if err != nil {
		return nil, err
	}
	return e.load(ids)
}

// ListByLandlord returns the landlord's agreements in creation order.
func (e *Engine) ListByLandlord(addr [20]byte) ([]*Agreement, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	ids, err := e.state.RentalListByLandlord(addr)
	if err != nil {
		return nil, err
	}
	return e.load(ids)
}

// ListByProperty returns every agreement that references the property.
func (e *Engine) ListByProperty(id [32]byte) ([]*Agreement, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	ids, err := e.state.RentalListByProperty(id)
	if err != nil {
		return nil, err
	}
	return e.load(ids)
}

func (e *Engine) load(ids [][32]byte) ([]*Agreement, error) {
	out := make([]*Agreement, 0, len(ids))
	for _, id := range ids {
		a, ok, err := e.state.RentalGet(id)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, a)
		}
	}
	return out, nil
}

func (e *Engine) cancel(a *Agreement) error {
	if err := e.transition(a, StatusCancelled); err != nil {
		return err
	}
	a.CancelledAt = e.now()
	a.ExpiresAt = 0
	if err := e.releaseProperty(a); err != nil {
		return err
	}
	return e.state.RentalPut(a)
}

func (e *Engine) create(a *Agreement) error {
	if err := e.state.RentalPut(a); err != nil {
		return err
	}
	return e.state.RentalIndex(a)
}

func (e *Engine) ensureUnused(id [32]byte) error {
	if id == ([32]byte{}) {
		return fmt.Errorf("%w: agreement id required", coreerrors.ErrInvalidInput)
	}
	_, exists, err := e.state.RentalGet(id)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: agreement %x", coreerrors.ErrAlreadyExists, id)
	}
	return nil
}

func (e *Engine) consumeQuota(tenant [20]byte, now uint64) error {
	q := e.policy.RequestQuota
	if q.MaxRequests == 0 {
		return nil
	}
	prev, err := e.state.RentalQuotaGet(tenant)
	if err != nil {
		return err
	}
	next, err := nativecommon.CheckQuota(q, q.Window(now), prev, 1)
	if err != nil {
		return err
	}
	return e.state.RentalQuotaPut(tenant, next)
}

func (e *Engine) lockProperty(a *Agreement) error {
	if a.PropertyLocked {
		return nil
	}
	if err := e.properties.Lock(a.PropertyID, a.ID); err != nil {
		if errors.Is(err, property.ErrUnavailable) {
			return ErrPropertyUnavailable
		}
		return err
	}
	a.PropertyLocked = true
	return nil
}

func (e *Engine) releaseProperty(a *Agreement) error {
	if !a.PropertyLocked {
		return nil
	}
	if err := e.properties.Unlock(a.PropertyID, a.ID); err != nil {
		return err
	}
	a.PropertyLocked = false
	return nil
}

func (e *Engine) transition(a *Agreement, next Status) error {
	if !a.Status.CanTransition(next) {
		return fmt.Errorf("%w: agreement cannot move from %s to %s", coreerrors.ErrInvalidState, a.Status, next)
	}
	a.Status = next
	return nil
}

func (e *Engine) paymentDeadline(now uint64) uint64 {
	if e.policy.PaymentTTL == 0 {
		return 0
	}
	return now + e.policy.PaymentTTL
}

func (e *Engine) loadMutable(id [32]byte) (*Agreement, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	return e.Get(id)
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.properties == nil {
		return errNilProperties
	}
	return nativecommon.Guard(e.state, nativecommon.ModuleRental)
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

func newAgreement(id [32]byte, prop *property.Property, tenant [20]byte, start, end, now uint64) *Agreement {
	return &Agreement{
		ID:              id,
		PropertyID:      prop.ID,
		Landlord:        prop.Owner,
		Tenant:          tenant,
		MonthlyRent:     nativecommon.CloneAmount(prop.PricePerMonth),
		SecurityDeposit: nativecommon.CloneAmount(prop.SecurityDeposit),
		StartDate:       start,
		EndDate:         end,
		TotalRentPaid:   big.NewInt(0),
		CreatedAt:       now,
	}
}

func validateTerm(prop *property.Property, start, end, now uint64) error {
	if end <= start {
		return fmt.Errorf("%w: end %d must follow start %d", ErrInvalidDateRange, end, start)
	}
	if start <= now {
		return fmt.Errorf("%w: start %d is not in the future", ErrInvalidDateRange, start)
	}
	days := (end - start) / secondsPerDay
	if days < uint64(prop.MinStayDays) || days > uint64(prop.MaxStayDays) {
		return fmt.Errorf("%w: %d days not in [%d, %d]", ErrDurationOutOfRange, days, prop.MinStayDays, prop.MaxStayDays)
	}
	return nil
}

func requireStatus(a *Agreement, want Status) error {
	if a.Status != want {
		return fmt.Errorf("%w: agreement is %s, want %s", coreerrors.ErrInvalidState, a.Status, want)
	}
	return nil
}

func invalidState(a *Agreement, op string) error {
	return fmt.Errorf("%w: cannot %s agreement in %s", coreerrors.ErrInvalidState, op, a.Status)
}

func expired(a *Agreement, now uint64) bool {
	return a.ExpiresAt != 0 && now >= a.ExpiresAt
}
