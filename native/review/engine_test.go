package review

import (
	"errors"
	"strings"
	"testing"

	coreerrors "rentchain/core/errors"
	"rentchain/core/events"
	nativecommon "rentchain/native/common"
	"rentchain/native/rental"
)

type mockState struct {
	reviews map[Key]*Review
	byUser  map[[20]byte][]Key
	byAuth  map[[20]byte][]Key
	paused  map[string]bool
}

func newMockState() *mockState {
	return &mockState{
		reviews: make(map[Key]*Review),
		byUser:  make(map[[20]byte][]Key),
		byAuth:  make(map[[20]byte][]Key),
		paused:  make(map[string]bool),
	}
}

func (m *mockState) ReviewGet(id [32]byte, role Role) (*Review, bool, error) {
	r, ok := m.reviews[Key{AgreementID: id, Role: role}]
	if !ok {
		return nil, false, nil
	}
	return r.Clone(), true, nil
}

func (m *mockState) ReviewPut(r *Review) error {
	m.reviews[Key{AgreementID: r.AgreementID, Role: r.Role}] = r.Clone()
	return nil
}

func (m *mockState) ReviewIndex(reviewee [20]byte, key Key) error {
	m.byUser[reviewee] = append(m.byUser[reviewee], key)
	return nil
}

func (m *mockState) ReviewListByUser(reviewee [20]byte) ([]Key, error) {
	return append([]Key(nil), m.byUser[reviewee]...), nil
}

func (m *mockState) ReviewIndexAuthored(reviewer [20]byte, key Key) error {
	m.byAuth[reviewer] = append(m.byAuth[reviewer], key)
	return nil
}

func (m *mockState) ReviewListAuthored(reviewer [20]byte) ([]Key, error) {
	return append([]Key(nil), m.byAuth[reviewer]...), nil
}

func (m *mockState) IsPaused(module string) bool { return m.paused[module] }

type agreementMap map[[32]byte]*rental.Agreement

func (m agreementMap) Get(id [32]byte) (*rental.Agreement, error) {
	a, ok := m[id]
	if !ok {
		return nil, rental.ErrAgreementNotFound
	}
	return a.Clone(), nil
}

type recorder struct{ types []string }

func (r *recorder) Emit(evt events.Event) { r.types = append(r.types, evt.EventType()) }

const start uint64 = 1_700_000_000

var (
	tenant   = [20]byte{0x02}
	landlord = [20]byte{0x01}
	outsider = [20]byte{0x09}
	agreeID  = [32]byte{0x77}
)

func newTestEngine(status rental.Status, now uint64) (*Engine, *mockState, agreementMap, *recorder) {
	state := newMockState()
	agreements := agreementMap{
		agreeID: {ID: agreeID, Tenant: tenant, Landlord: landlord, StartDate: start, EndDate: start + 180*86_400, Status: status},
	}
	rec := &recorder{}
	engine := NewEngine()
	engine.SetState(state)
	engine.SetAgreements(agreements)
	engine.SetEmitter(rec)
	engine.SetNowFunc(func() int64 { return int64(now) })
	return engine, state, agreements, rec
}

func TestSubmitGate(t *testing.T) {
	tests := []struct {
		name   string
		status rental.Status
		now    uint64
		want   error
	}{
		{"pending payment", rental.StatusPendingPayment, start + EligibilityDelay, ErrNotEligible},
		{"cancelled", rental.StatusCancelled, start + EligibilityDelay, ErrNotEligible},
		{"active too early", rental.StatusActive, start + EligibilityDelay - 1, ErrNotEligible},
		{"before start", rental.StatusActive, start - 10, ErrNotEligible},
		{"active after 30 days", rental.StatusActive, start + EligibilityDelay, nil},
		{"completed", rental.StatusCompleted, start + 200*86_400, nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			engine, _, _, _ := newTestEngine(tc.status, tc.now)
			ok, err := engine.CanSubmit(tenant, agreeID)
			if err != nil {
				t.Fatalf("can submit: %v", err)
			}
			if ok != (tc.want == nil) {
				t.Fatalf("can submit = %t", ok)
			}
			_, err = engine.Submit(tenant, agreeID, 4, "quiet street")
			if tc.want == nil {
				if err != nil {
					t.Fatalf("submit: %v", err)
				}
				return
			}
			if !errors.Is(err, tc.want) || !errors.Is(err, coreerrors.ErrInvalidState) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestSubmitOncePerRole(t *testing.T) {
	engine, _, _, rec := newTestEngine(rental.StatusActive, start+EligibilityDelay)
	r, err := engine.Submit(tenant, agreeID, 5, "  great landlord ")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if r.Role != RoleTenant || r.Reviewee != landlord || r.Comment != "great landlord" {
		t.Fatalf("unexpected review %+v", r)
	}
	if _, err := engine.Submit(tenant, agreeID, 1, "changed my mind"); !errors.Is(err, coreerrors.ErrAlreadyExists) {
		t.Fatalf("expected already exists, got %v", err)
	}
	stored, err := engine.Get(agreeID, RoleTenant)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Rating != 5 {
		t.Fatalf("review must be immutable, rating %d", stored.Rating)
	}
	if ok, _ := engine.CanSubmit(tenant, agreeID); ok {
		t.Fatalf("tenant may not review twice")
	}
	if mutual, _ := engine.HasMutual(agreeID); mutual {
		t.Fatalf("mutual reported with one review")
	}
	if _, err := engine.Submit(landlord, agreeID, 3, ""); err != nil {
		t.Fatalf("landlord submit: %v", err)
	}
	if mutual, _ := engine.HasMutual(agreeID); !mutual {
		t.Fatalf("expected mutual review")
	}
	want := []string{EventTypeReviewSubmitted, EventTypeReviewSubmitted, EventTypeReviewMutual}
	if strings.Join(rec.types, ",") != strings.Join(want, ",") {
		t.Fatalf("events = %v", rec.types)
	}
	list, err := engine.ListByAgreement(agreeID)
	if err != nil || len(list) != 2 || list[0].Role != RoleTenant || list[1].Role != RoleLandlord {
		t.Fatalf("unexpected agreement list %v %v", list, err)
	}

	written, err := engine.ListByReviewer(tenant)
	if err != nil || len(written) != 1 || written[0].Reviewer != tenant || written[0].Reviewee != landlord {
		t.Fatalf("unexpected reviews written by tenant %v %v", written, err)
	}
	received, err := engine.ListByUser(tenant)
	if err != nil || len(received) != 1 || received[0].Reviewer != landlord {
		t.Fatalf("unexpected reviews received by tenant %v %v", received, err)
	}
}

func TestSubmitValidation(t *testing.T) {
	engine, _, _, _ := newTestEngine(rental.StatusActive, start+EligibilityDelay)
	for _, rating := range []uint8{0, 6} {
		if _, err := engine.Submit(tenant, agreeID, rating, ""); !errors.Is(err, coreerrors.ErrInvalidInput) {
			t.Fatalf("rating %d: expected invalid input, got %v", rating, err)
		}
	}
	if _, err := engine.Submit(tenant, agreeID, 3, strings.Repeat("x", MaxCommentLength+1)); !errors.Is(err, coreerrors.ErrInvalidInput) {
		t.Fatalf("expected invalid input for long comment, got %v", err)
	}
	if _, err := engine.Submit(tenant, agreeID, 3, string([]byte{0xff, 0xfe})); !errors.Is(err, coreerrors.ErrInvalidInput) {
		t.Fatalf("expected invalid input for bad utf-8, got %v", err)
	}
	if _, err := engine.Submit(outsider, agreeID, 3, ""); !errors.Is(err, coreerrors.ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if _, err := engine.Submit(tenant, [32]byte{0x01}, 3, ""); !errors.Is(err, coreerrors.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if ok, _ := engine.CanSubmit(outsider, agreeID); ok {
		t.Fatalf("outsider may not review")
	}
}

func TestListByUserAndSummary(t *testing.T) {
	engine, _, agreements, _ := newTestEngine(rental.StatusCompleted, start+90*86_400)
	second := [32]byte{0x78}
	agreements[second] = &rental.Agreement{ID: second, Tenant: outsider, Landlord: landlord, StartDate: start, Status: rental.StatusActive}

	if _, err := engine.Submit(tenant, agreeID, 5, ""); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := engine.Submit(outsider, second, 2, ""); err != nil {
		t.Fatalf("submit: %v", err)
	}
	received, err := engine.ListByUser(landlord)
	if err != nil || len(received) != 2 {
		t.Fatalf("landlord reviews = %v, %v", received, err)
	}
	summary, err := engine.Summary(landlord)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.Count != 2 || summary.Sum != 7 || summary.Average() != 3.5 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if s, _ := engine.Summary(tenant); s.Count != 0 || s.Average() != 0 {
		t.Fatalf("tenant received no reviews, got %+v", s)
	}
}

func TestPausedReviews(t *testing.T) {
	engine, state, _, _ := newTestEngine(rental.StatusActive, start+EligibilityDelay)
	state.paused[nativecommon.ModuleReview] = true
	if _, err := engine.Submit(tenant, agreeID, 4, ""); !errors.Is(err, coreerrors.ErrPaused) {
		t.Fatalf("expected paused, got %v", err)
	}
	if ok, err := engine.CanSubmit(tenant, agreeID); ok || err != nil {
		t.Fatalf("paused module must report false without error, got %t %v", ok, err)
	}
	if _, err := engine.Get(agreeID, RoleTenant); !errors.Is(err, coreerrors.ErrNotFound) {
		t.Fatalf("reads stay available, got %v", err)
	}
}

func TestParseRole(t *testing.T) {
	if r, err := ParseRole(" Landlord "); err != nil || r != RoleLandlord {
		t.Fatalf("parse landlord: %v %v", r, err)
	}
	if _, err := ParseRole("agent"); !errors.Is(err, coreerrors.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}
