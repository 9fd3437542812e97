package review

import (
	"errors"
	"fmt"
	"time"

	coreerrors "rentchain/core/errors"
	"rentchain/core/events"
	"rentchain/core/types"
	nativecommon "rentchain/native/common"
	"rentchain/native/rental"
)

var (
	errNilState      = errors.New("review engine: state not configured")
	errNilAgreements = errors.New("review engine: agreement engine not configured")

	ErrReviewNotFound = fmt.Errorf("%w: review", coreerrors.ErrNotFound)
	ErrReviewExists   = fmt.Errorf("%w: review already submitted", coreerrors.ErrAlreadyExists)
	ErrNotParty       = fmt.Errorf("%w: caller is not a party to the agreement", coreerrors.ErrUnauthorized)
	ErrNotEligible    = fmt.Errorf("%w: agreement is not open for reviews", coreerrors.ErrInvalidState)
	ErrInvalidRating  = fmt.Errorf("%w: rating must be between %d and %d", coreerrors.ErrInvalidInput, MinRating, MaxRating)
)

type engineState interface {
	ReviewGet(agreementID [32]byte, role Role) (*Review, bool, error)
	ReviewPut(r *Review) error
	ReviewIndex(reviewee [20]byte, key Key) error
	ReviewListByUser(reviewee [20]byte) ([]Key, error)
	ReviewIndexAuthored(reviewer [20]byte, key Key) error
	ReviewListAuthored(reviewer [20]byte) ([]Key, error)
	IsPaused(module string) bool
}

type agreementReader interface {
	Get(id [32]byte) (*rental.Agreement, error)
}

// Engine records post-tenancy reviews.
type Engine struct {
	state      engineState
	agreements agreementReader
	emitter    events.Emitter
	nowFn      func() int64
}

// NewEngine returns an engine using the wall clock.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetAgreements wires the rental engine used for the eligibility gate.
func (e *Engine) SetAgreements(a agreementReader) { e.agreements = a }

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

// Submit stores the reviewer's rating of the other party. The reviewer's role
// is derived from the agreement.
func (e *Engine) Submit(reviewer [20]byte, agreementID [32]byte, rating uint8, comment string) (*Review, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if rating < MinRating || rating > MaxRating {
		return nil, ErrInvalidRating
	}
	text, err := sanitizeComment(comment)
	if err != nil {
		return nil, err
	}
	a, err := e.agreements.Get(agreementID)
	if err != nil {
		return nil, err
	}
	role, reviewee, err := roleOf(a, reviewer)
	if err != nil {
		return nil, err
	}
	now := e.now()
	if err := eligible(a, now); err != nil {
		return nil, err
	}
	if _, exists, err := e.state.ReviewGet(agreementID, role); err != nil {
		return nil, err
	} else if exists {
		return nil, ErrReviewExists
	}
	r := &Review{
		AgreementID: agreementID,
		Reviewer:    reviewer,
		Reviewee:    reviewee,
		Role:        role,
		Rating:      rating,
		Comment:     text,
		CreatedAt:   now,
	}
	if err := e.state.ReviewPut(r); err != nil {
		return nil, err
	}
	key := Key{AgreementID: agreementID, Role: role}
	if err := e.state.ReviewIndex(reviewee, key); err != nil {
		return nil, err
	}
	if err := e.state.ReviewIndexAuthored(reviewer, key); err != nil {
		return nil, err
	}
	e.emit(NewSubmittedEvent(r))
	if mutual, err := e.HasMutual(agreementID); err != nil {
		return nil, err
	} else if mutual {
		e.emit(NewMutualEvent(agreementID))
	}
	return r.Clone(), nil
}

// CanSubmit reports whether reviewer may review the agreement right now.
// Missing agreements are reported as errors; every other refusal is false.
func (e *Engine) CanSubmit(reviewer [20]byte, agreementID [32]byte) (bool, error) {
	if e == nil || e.state == nil {
		return false, errNilState
	}
	if e.agreements == nil {
		return false, errNilAgreements
	}
	if e.state.IsPaused(nativecommon.ModuleReview) {
		return false, nil
	}
	a, err := e.agreements.Get(agreementID)
	if err != nil {
		return false, err
	}
	role, _, err := roleOf(a, reviewer)
	if err != nil {
		return false, nil
	}
	if eligible(a, e.now()) != nil {
		return false, nil
	}
	_, exists, err := e.state.ReviewGet(agreementID, role)
	if err != nil {
		return false, err
	}
	return !exists, nil
}

// Get returns the review written by role on the agreement.
func (e *Engine) Get(agreementID [32]byte, role Role) (*Review, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown review role %d", coreerrors.ErrInvalidInput, role)
	}
	r, ok, err := e.state.ReviewGet(agreementID, role)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrReviewNotFound
	}
	return r, nil
}

// ListByAgreement returns the tenant review followed by the landlord review,
// skipping whichever does not exist yet.
func (e *Engine) ListByAgreement(agreementID [32]byte) ([]*Review, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	out := make([]*Review, 0, 2)
	for _, role := range []Role{RoleTenant, RoleLandlord} {
		r, ok, err := e.state.ReviewGet(agreementID, role)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, r)
		}
	}
	return out, nil
}

// ListByUser returns the reviews addr has received.
func (e *Engine) ListByUser(addr [20]byte) ([]*Review, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	keys, err := e.state.ReviewListByUser(addr)
	if err != nil {
		return nil, err
	}
	return e.loadKeys(keys)
}

// ListByReviewer returns the reviews addr has written, oldest first.
func (e *Engine) ListByReviewer(addr [20]byte) ([]*Review, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	keys, err := e.state.ReviewListAuthored(addr)
	if err != nil {
		return nil, err
	}
	return e.loadKeys(keys)
}

func (e *Engine) loadKeys(keys []Key) ([]*Review, error) {
	out := make([]*Review, 0, len(keys))
	for _, key := range keys {
		r, ok, err := e.state.ReviewGet(key.AgreementID, key.Role)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, r)
		}
	}
	return out, nil
}

// HasMutual reports whether both parties reviewed the agreement.
func (e *Engine) HasMutual(agreementID [32]byte) (bool, error) {
	reviews, err := e.ListByAgreement(agreementID)
	if err != nil {
		return false, err
	}
	return len(reviews) == 2, nil
}

// Summary aggregates the ratings addr has received.
func (e *Engine) Summary(addr [20]byte) (Summary, error) {
	reviews, err := e.ListByUser(addr)
	if err != nil {
		return Summary{}, err
	}
	var s Summary
	for _, r := range reviews {
		s.Count++
		s.Sum += uint64(r.Rating)
	}
	return s, nil
}

func roleOf(a *rental.Agreement, reviewer [20]byte) (Role, [20]byte, error) {
	switch reviewer {
	case a.Tenant:
		return RoleTenant, a.Landlord, nil
	case a.Landlord:
		return RoleLandlord, a.Tenant, nil
	default:
		return 0, [20]byte{}, ErrNotParty
	}
}

func eligible(a *rental.Agreement, now uint64) error {
	if a.Status != rental.StatusActive && a.Status != rental.StatusCompleted {
		return fmt.Errorf("%w (status %s)", ErrNotEligible, a.Status)
	}
	if now < a.StartDate || now-a.StartDate < EligibilityDelay {
		return fmt.Errorf("%w (reviews open 30 days after start)", ErrNotEligible)
	}
	return nil
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.agreements == nil {
		return errNilAgreements
	}
	return nativecommon.Guard(e.state, nativecommon.ModuleReview)
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
