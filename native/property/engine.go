package property

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"lukechampine.com/blake3"

	coreerrors "rentchain/core/errors"
	"rentchain/core/events"
	"rentchain/core/types"
	nativecommon "rentchain/native/common"
)

var (
	errNilState = errors.New("property engine: state not configured")

	ErrPropertyNotFound = fmt.Errorf("%w: property", coreerrors.ErrNotFound)
	ErrNotOwner         = fmt.Errorf("%w: caller is not the property owner", coreerrors.ErrUnauthorized)
	ErrInactive         = fmt.Errorf("%w: property is deactivated", coreerrors.ErrInvalidState)
	ErrUnavailable      = fmt.Errorf("%w: property is not available", coreerrors.ErrInvalidState)
	ErrLocked           = fmt.Errorf("%w: property is locked by an agreement", coreerrors.ErrInvalidState)
)

type engineState interface {
	PropertyGet(id [32]byte) (*Property, bool, error)
	PropertyPut(p *Property) error
	PropertyIndex(owner [20]byte, id [32]byte) error
	PropertyListByOwner(owner [20]byte) ([][32]byte, error)
	PropertyListAll() ([][32]byte, error)
	PropertyNextNonce(owner [20]byte) (uint64, error)
	IsPaused(module string) bool
}

// Engine implements the property registry on top of an injected state backend.
type Engine struct {
	state        engineState
	emitter      events.Emitter
	nowFn        func() int64
	minStayFloor uint32
}

// NewEngine returns a registry with the default minimum stay floor.
func NewEngine() *Engine {
	return &Engine{
		emitter:      events.NoopEmitter{},
		nowFn:        func() int64 { return time.Now().Unix() },
		minStayFloor: DefaultMinStayFloor,
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

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

// SetMinStayFloor overrides the smallest accepted minimum stay.
func (e *Engine) SetMinStayFloor(days uint32) { e.minStayFloor = days }

// Create registers a new listing owned by owner. The caller must be the owner.
func (e *Engine) Create(caller, owner [20]byte, listing Listing) (*Property, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if caller != owner {
		return nil, ErrNotOwner
	}
	clean, err := SanitizeListing(listing, e.minStayFloor)
	if err != nil {
		return nil, err
	}
	nonce, err := e.state.PropertyNextNonce(owner)
	if err != nil {
		return nil, err
	}
	now := e.now()
	id := DeriveID(owner, nonce, clean.Title, clean.Location, now)
	if _, exists, err := e.state.PropertyGet(id); err != nil {
		return nil, err
	} else if exists {
		return nil, fmt.Errorf("%w: property %x", coreerrors.ErrAlreadyExists, id)
	}
	p := &Property{
		ID:              id,
		Owner:           owner,
		Title:           clean.Title,
		Description:     clean.Description,
		Location:        clean.Location,
		PricePerMonth:   clean.PricePerMonth,
		SecurityDeposit: clean.SecurityDeposit,
		MinStayDays:     clean.MinStayDays,
		MaxStayDays:     clean.MaxStayDays,
		ImageURL:        clean.ImageURL,
		IsAvailable:     true,
		IsActive:        true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := e.state.PropertyPut(p); err != nil {
		return nil, err
	}
	if err := e.state.PropertyIndex(owner, id); err != nil {
		return nil, err
	}
	e.emit(NewCreatedEvent(p))
	return p.Clone(), nil
}

// Update replaces the editable fields of a listing. Identity, ownership and
// flags are untouched.
func (e *Engine) Update(caller [20]byte, id [32]byte, listing Listing) (*Property, error) {
	p, err := e.ownedMutable(caller, id)
	if err != nil {
		return nil, err
	}
	if !p.IsActive {
		return nil, ErrInactive
	}
	clean, err := SanitizeListing(listing, e.minStayFloor)
	if err != nil {
		return nil, err
	}
	p.Title = clean.Title
	p.Description = clean.Description
	p.Location = clean.Location
	p.PricePerMonth = clean.PricePerMonth
	p.SecurityDeposit = clean.SecurityDeposit
	p.MinStayDays = clean.MinStayDays
	p.MaxStayDays = clean.MaxStayDays
	p.ImageURL = clean.ImageURL
	p.UpdatedAt = e.now()
	if err := e.state.PropertyPut(p); err != nil {
		return nil, err
	}
	e.emit(NewUpdatedEvent(p))
	return p.Clone(), nil
}

// SetAvailability toggles the booking flag. A deactivated listing cannot be
// made available again, and a listing held by an agreement stays closed until
// that agreement releases it.
func (e *Engine) SetAvailability(caller [20]byte, id [32]byte, available bool) (*Property, error) {
	p, err := e.ownedMutable(caller, id)
	if err != nil {
		return nil, err
	}
	if available && !p.IsActive {
		return nil, ErrInactive
	}
	if available && p.Locked() {
		return nil, ErrLocked
	}
	return e.writeAvailability(p, available)
}

// Deactivate soft-deletes the listing and clears its availability.
func (e *Engine) Deactivate(caller [20]byte, id [32]byte) (*Property, error) {
	p, err := e.ownedMutable(caller, id)
	if err != nil {
		return nil, err
	}
	if !p.IsActive {
		return nil, ErrInactive
	}
	p.IsActive = false
	p.IsAvailable = false
	p.UpdatedAt = e.now()
	if err := e.state.PropertyPut(p); err != nil {
		return nil, err
	}
	e.emit(NewDeactivatedEvent(p))
	return p.Clone(), nil
}

// Lock marks an available listing as booked by the agreement holder. Locking
// again for the same holder is a no-op.
func (e *Engine) Lock(id, holder [32]byte) error {
	p, err := e.Get(id)
	if err != nil {
		return err
	}
	if p.Locked() {
		if p.LockedBy == holder {
			return nil
		}
		return ErrUnavailable
	}
	if !p.Bookable() {
		return ErrUnavailable
	}
	p.LockedBy = holder
	_, err = e.writeAvailability(p, false)
	return err
}

// Unlock releases the holder's lock and returns the listing to the market.
// Locks held by another agreement are left alone, and deactivated listings
// stay unavailable.
func (e *Engine) Unlock(id, holder [32]byte) error {
	p, err := e.Get(id)
	if err != nil {
		return err
	}
	if !p.Locked() || p.LockedBy != holder {
		return nil
	}
	p.LockedBy = [32]byte{}
	_, err = e.writeAvailability(p, p.IsActive)
	return err
}

// Get returns the listing with the supplied id.
func (e *Engine) Get(id [32]byte) (*Property, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	p, ok, err := e.state.PropertyGet(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrPropertyNotFound
	}
	return p, nil
}

// ListByOwner returns the owner's listings in creation order.
func (e *Engine) ListByOwner(owner [20]byte) ([]*Property, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	ids, err := e.state.PropertyListByOwner(owner)
	if err != nil {
		return nil, err
	}
	return e.load(ids, nil)
}

// ListAvailable returns every active listing that is open for booking.
func (e *Engine) ListAvailable() ([]*Property, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	ids, err := e.state.PropertyListAll()
	if err != nil {
		return nil, err
	}
	return e.load(ids, (*Property).Bookable)
}

// DeriveID computes the content address of a listing.
func DeriveID(owner [20]byte, nonce uint64, title, location string, createdAt uint64) [32]byte {
	h := blake3.New(32, nil)
	var buf [8]byte
	h.Write(owner[:])
	binary.BigEndian.PutUint64(buf[:], nonce)
	h.Write(buf[:])
	h.Write([]byte(title))
	h.Write([]byte{0})
	h.Write([]byte(location))
	binary.BigEndian.PutUint64(buf[:], createdAt)
	h.Write(buf[:])
	var id [32]byte
	copy(id[:], h.Sum(nil))
	return id
}

func (e *Engine) load(ids [][32]byte, keep func(*Property) bool) ([]*Property, error) {
	out := make([]*Property, 0, len(ids))
	for _, id := range ids {
		p, ok, err := e.state.PropertyGet(id)
		if err != nil {
			return nil, err
		}
		if !ok || (keep != nil && !keep(p)) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (e *Engine) ownedMutable(caller [20]byte, id [32]byte) (*Property, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	p, err := e.Get(id)
	if err != nil {
		return nil, err
	}
	if p.Owner != caller {
		return nil, ErrNotOwner
	}
	return p, nil
}

func (e *Engine) writeAvailability(p *Property, available bool) (*Property, error) {
	p.IsAvailable = available
	p.UpdatedAt = e.now()
	if err := e.state.PropertyPut(p); err != nil {
		return nil, err
	}
	e.emit(NewAvailabilityEvent(p))
	return p.Clone(), nil
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	return nativecommon.Guard(e.state, nativecommon.ModuleProperty)
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
