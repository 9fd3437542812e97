package core

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	coreerrors "rentchain/core/errors"
	"rentchain/core/genesis"
	"rentchain/core/receipts"
	"rentchain/crypto"
	"rentchain/native/escrow"
	"rentchain/native/property"
	"rentchain/native/rental"
	"rentchain/native/review"
	"rentchain/storage"
)

const day = int64(86_400)

var (
	adminAddr    = [20]byte{0xAD}
	landlordAddr = [20]byte{0x11}
	tenantAddr   = [20]byte{0x22}
	poorAddr     = [20]byte{0x33}
)

func amount(v int64) *big.Int { return big.NewInt(v) }

func requireAmount(t *testing.T, want int64, got *big.Int) {
	t.Helper()
	require.NotNil(t, got)
	require.Equal(t, big.NewInt(want).String(), got.String())
}

type harness struct {
	t      *testing.T
	node   *Node
	clock  int64
	nonces map[[20]byte]uint64
}

func testSpec() *genesis.Spec {
	return &genesis.Spec{
		Admin: crypto.Address(adminAddr).Hex(),
		Alloc: map[string]string{
			crypto.Address(tenantAddr).Hex(): "10_000_0000000",
			crypto.Address(poorAddr).Hex():   "100_0000000",
		},
	}
}

func newHarness(t *testing.T, db storage.Database) *harness {
	t.Helper()
	h := &harness{t: t, clock: 1_700_000_000, nonces: make(map[[20]byte]uint64)}
	node, err := NewNode(db, testSpec(), Options{
		RewardsEnabled: true,
		Now:            func() int64 { return h.clock },
	})
	require.NoError(t, err)
	h.node = node
	return h
}

func (h *harness) caller(addr [20]byte) Caller {
	c := Caller{From: addr, Nonce: h.nonces[addr]}
	c.TxHash[0] = addr[0]
	c.TxHash[1] = byte(c.Nonce)
	h.nonces[addr]++
	return c
}

func (h *harness) listProperty() *property.Property {
	h.t.Helper()
	p, err := h.node.CreateProperty(h.caller(landlordAddr), landlordAddr, property.Listing{
		Title:           "Canal loft",
		Location:        "Amsterdam",
		PricePerMonth:   amount(500_0000000),
		SecurityDeposit: amount(1000_0000000),
		MinStayDays:     30,
		MaxStayDays:     365,
	})
	require.NoError(h.t, err)
	return p
}

func (h *harness) approvedAgreement(tenant [20]byte) (*rental.Agreement, int64, int64) {
	h.t.Helper()
	p := h.listProperty()
	start := h.clock + day
	end := start + 90*day
	id := [32]byte{0x01, tenant[0]}
	_, err := h.node.RequestRental(h.caller(tenant), id, p.ID, uint64(start), uint64(end))
	require.NoError(h.t, err)
	a, err := h.node.ApproveRental(h.caller(landlordAddr), id)
	require.NoError(h.t, err)
	require.Equal(h.t, rental.StatusPendingPayment, a.Status)
	return a, start, end
}

func balance(t *testing.T, n *Node, addr [20]byte) *big.Int {
	t.Helper()
	acct, err := n.Account(addr)
	require.NoError(t, err)
	return acct.Balance
}

func TestFullRentalLifecycle(t *testing.T) {
	h := newHarness(t, storage.NewMemDB())
	a, start, end := h.approvedAgreement(tenantAddr)

	acct, err := h.node.DepositSecurityAndRent(h.caller(tenantAddr), a.ID)
	require.NoError(t, err)
	requireAmount(t, 1000_0000000, acct.SecurityDepositHeld)
	_, err = h.node.PayRent(h.caller(tenantAddr), a.ID)
	require.NoError(t, err)

	current, err := h.node.Agreement(a.ID)
	require.NoError(t, err)
	require.Equal(t, rental.StatusActive, current.Status)
	require.Equal(t, uint32(2), current.MonthsPaid)
	requireAmount(t, 8000_0000000, balance(t, h.node, tenantAddr))
	requireAmount(t, 1000_0000000, balance(t, h.node, landlordAddr))

	h.clock = start + 31*day
	ok, err := h.node.CanSubmitReview(tenantAddr, a.ID)
	require.NoError(t, err)
	require.True(t, ok)
	_, err = h.node.SubmitReview(h.caller(tenantAddr), a.ID, 5, "Great landlord")
	require.NoError(t, err)
	_, err = h.node.SubmitReview(h.caller(landlordAddr), a.ID, 4, "Quiet tenant")
	require.NoError(t, err)

	tenantRewards, supply, err := h.node.RewardsBalance(tenantAddr)
	require.NoError(t, err)
	requireAmount(t, 50_000_0000, tenantRewards)
	requireAmount(t, 90_000_0000, supply)
	landlordRewards, _, err := h.node.RewardsBalance(landlordAddr)
	require.NoError(t, err)
	requireAmount(t, 40_000_0000, landlordRewards)

	reviews, summary, err := h.node.ReviewsByUser(landlordAddr)
	require.NoError(t, err)
	require.Len(t, reviews, 1)
	require.Equal(t, review.RoleTenant, reviews[0].Role)
	require.Equal(t, uint64(1), summary.Count)

	written, err := h.node.ReviewsByReviewer(tenantAddr)
	require.NoError(t, err)
	require.Len(t, written, 1)
	require.Equal(t, landlordAddr, written[0].Reviewee)
	written, err = h.node.ReviewsByReviewer(landlordAddr)
	require.NoError(t, err)
	require.Len(t, written, 1)

	h.clock = end
	_, err = h.node.CompleteRental(h.caller(landlordAddr), a.ID)
	require.NoError(t, err)
	_, err = h.node.ReleaseDeposit(h.caller(tenantAddr), a.ID)
	require.NoError(t, err)
	_, err = h.node.ReleaseDeposit(h.caller(tenantAddr), a.ID)
	require.ErrorIs(t, err, coreerrors.ErrAlreadyReleased)

	requireAmount(t, 9000_0000000, balance(t, h.node, tenantAddr))
	require.Zero(t, balance(t, h.node, escrow.DefaultCustodyAddress).Sign())

	history, err := h.node.PaymentHistory(a.ID)
	require.NoError(t, err)
	require.Len(t, history, 4)
	totals, err := h.node.VerifyEscrow(a.ID)
	require.NoError(t, err)
	requireAmount(t, 500_0000000, totals.MonthlyRent)
	requireAmount(t, 500_0000000, totals.FirstRent)
}

func TestFailedCallRollsBackButConsumesNonce(t *testing.T) {
	h := newHarness(t, storage.NewMemDB())
	a, _, _ := h.approvedAgreement(poorAddr)
	before := h.node.Height()

	_, err := h.node.DepositSecurityAndRent(h.caller(poorAddr), a.ID)
	require.ErrorIs(t, err, coreerrors.ErrInsufficientFunds)
	require.Equal(t, before+1, h.node.Height())

	_, err = h.node.Escrow(a.ID)
	require.ErrorIs(t, err, coreerrors.ErrNotFound)
	current, err := h.node.Agreement(a.ID)
	require.NoError(t, err)
	require.Equal(t, rental.StatusPendingPayment, current.Status)
	requireAmount(t, 100_0000000, balance(t, h.node, poorAddr))

	acct, err := h.node.Account(poorAddr)
	require.NoError(t, err)
	require.Equal(t, uint64(2), acct.Nonce)
}

func TestBadNonceLeavesStateUntouched(t *testing.T) {
	h := newHarness(t, storage.NewMemDB())
	before := h.node.Status()

	_, err := h.node.CreateProperty(Caller{From: landlordAddr, Nonce: 7}, landlordAddr, property.Listing{})
	require.ErrorIs(t, err, ErrBadNonce)

	after := h.node.Status()
	require.Equal(t, before.Height, after.Height)
	require.Equal(t, before.StateRoot, after.StateRoot)
}

func TestPauseGuardsMutationsOnly(t *testing.T) {
	h := newHarness(t, storage.NewMemDB())
	a, _, _ := h.approvedAgreement(tenantAddr)

	err := h.node.Pause(h.caller(landlordAddr), "escrow")
	require.ErrorIs(t, err, coreerrors.ErrUnauthorized)
	err = h.node.Pause(h.caller(adminAddr), "lending")
	require.ErrorIs(t, err, coreerrors.ErrInvalidInput)
	require.NoError(t, h.node.Pause(h.caller(adminAddr), "escrow"))
	require.Equal(t, []string{"escrow"}, h.node.Status().PausedModules)

	_, err = h.node.DepositSecurityAndRent(h.caller(tenantAddr), a.ID)
	require.ErrorIs(t, err, coreerrors.ErrPaused)
	_, err = h.node.Agreement(a.ID)
	require.NoError(t, err)

	require.NoError(t, h.node.Unpause(h.caller(adminAddr), "escrow"))
	_, err = h.node.DepositSecurityAndRent(h.caller(tenantAddr), a.ID)
	require.NoError(t, err)
}

func TestStreamDeliversCommittedEventsOnly(t *testing.T) {
	h := newHarness(t, storage.NewMemDB())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	updates, stop, backlog, err := h.node.Subscribe(ctx, "")
	require.NoError(t, err)
	defer stop()
	require.Empty(t, backlog)

	_, err = h.node.CreateProperty(h.caller(landlordAddr), landlordAddr, property.Listing{})
	require.ErrorIs(t, err, coreerrors.ErrInvalidInput)
	h.listProperty()

	select {
	case evt := <-updates:
		require.Equal(t, property.EventTypePropertyCreated, evt.Event.Type)
		require.Equal(t, "1", evt.Cursor)
		require.Equal(t, uint64(2), evt.Height)
	case <-time.After(time.Second):
		t.Fatal("expected property.created event")
	}

	_, stopReplay, backlog, err := h.node.Subscribe(ctx, "0")
	require.NoError(t, err)
	defer stopReplay()
	require.Len(t, backlog, 1)
	_, _, _, err = h.node.Subscribe(ctx, "not-a-cursor")
	require.Error(t, err)
}

func TestReceiptsRecordOutcome(t *testing.T) {
	store, err := receipts.Open(t.TempDir()+"/receipts.db", nil)
	require.NoError(t, err)
	defer store.Close()

	h := newHarness(t, storage.NewMemDB())
	h.node.SetReceiptStore(store)

	okCall := h.caller(landlordAddr)
	h.nonces[landlordAddr]--
	h.listProperty()
	failCall := h.caller(landlordAddr)
	_, err = h.node.DeactivateProperty(failCall, [32]byte{0xFF})
	require.ErrorIs(t, err, coreerrors.ErrNotFound)

	good, err := h.node.Receipt(receipts.HashString(okCall.TxHash))
	require.NoError(t, err)
	require.True(t, good.Success)
	require.Equal(t, "property_create", good.Method)
	require.NotEmpty(t, good.Events)

	bad, err := h.node.Receipt(receipts.HashString(failCall.TxHash))
	require.NoError(t, err)
	require.False(t, bad.Success)
	require.Equal(t, string(coreerrors.KindNotFound), bad.ErrorKind)
	require.Empty(t, bad.Events)
}

type countingObserver struct {
	ok     int
	failed map[coreerrors.Kind]int
}

func (o *countingObserver) ObserveCall(method string, ok bool, kind coreerrors.Kind, elapsed time.Duration) {
	if ok {
		o.ok++
		return
	}
	o.failed[kind]++
}

func TestObserverSeesEveryCall(t *testing.T) {
	h := newHarness(t, storage.NewMemDB())
	obs := &countingObserver{failed: make(map[coreerrors.Kind]int)}
	h.node.SetObserver(obs)

	h.listProperty()
	_, err := h.node.DeactivateProperty(h.caller(tenantAddr), [32]byte{0xFF})
	require.Error(t, err)

	require.Equal(t, 1, obs.ok)
	require.Equal(t, 1, obs.failed[coreerrors.KindNotFound])
}

func TestNodeReopensFromDisk(t *testing.T) {
	dir := t.TempDir()
	db, err := storage.NewLevelDB(dir, 0, 0)
	require.NoError(t, err)
	h := newHarness(t, db)
	p := h.listProperty()
	height := h.node.Height()
	root := h.node.Status().StateRoot
	require.NoError(t, h.node.Close())

	db, err = storage.NewLevelDB(dir, 0, 0)
	require.NoError(t, err)
	reopened, err := NewNode(db, nil, Options{})
	require.NoError(t, err)
	defer reopened.Close()

	require.Equal(t, height, reopened.Height())
	require.Equal(t, root, reopened.Status().StateRoot)
	got, err := reopened.Property(p.ID)
	require.NoError(t, err)
	require.Equal(t, "Canal loft", got.Title)
}

func TestStoreHeadWritesRootAndHeightTogether(t *testing.T) {
	db := storage.NewMemDB()
	root := common.HexToHash("0x0102")
	require.NoError(t, storeHead(db, root, 7))

	gotRoot, gotHeight, ok, err := loadHead(db)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, root, gotRoot)
	require.Equal(t, uint64(7), gotHeight)

	// A batch that is never written leaves the previous head intact.
	pending := db.NewBatch()
	require.NoError(t, pending.Put(headRootKey, common.HexToHash("0x0304").Bytes()))
	gotRoot, gotHeight, _, err = loadHead(db)
	require.NoError(t, err)
	require.Equal(t, root, gotRoot)
	require.Equal(t, uint64(7), gotHeight)
}

func TestEmptyDatabaseNeedsGenesis(t *testing.T) {
	_, err := NewNode(storage.NewMemDB(), nil, Options{})
	require.ErrorIs(t, err, ErrNoGenesis)
}

func TestPropertyLockFollowsHoldingAgreement(t *testing.T) {
	h := &harness{t: t, clock: 1_700_000_000, nonces: make(map[[20]byte]uint64)}
	node, err := NewNode(storage.NewMemDB(), testSpec(), Options{
		Policy: rental.Policy{AvailabilityLock: rental.LockOnApproval},
		Now:    func() int64 { return h.clock },
	})
	require.NoError(t, err)
	h.node = node

	p := h.listProperty()
	start := uint64(h.clock + day)
	end := start + uint64(60*day)
	first, second := [32]byte{0xA1}, [32]byte{0xA2}
	_, err = node.RequestRental(h.caller(tenantAddr), first, p.ID, start, end)
	require.NoError(t, err)
	_, err = node.RequestRental(h.caller(poorAddr), second, p.ID, start, end)
	require.NoError(t, err)

	_, err = node.ApproveRental(h.caller(landlordAddr), first)
	require.NoError(t, err)
	_, err = node.ApproveRental(h.caller(landlordAddr), second)
	require.ErrorIs(t, err, coreerrors.ErrInvalidState)

	_, err = node.SetPropertyAvailability(h.caller(landlordAddr), p.ID, true)
	require.ErrorIs(t, err, property.ErrLocked)
	_, err = node.ApproveRental(h.caller(landlordAddr), second)
	require.ErrorIs(t, err, coreerrors.ErrInvalidState)

	locked, err := node.Property(p.ID)
	require.NoError(t, err)
	require.False(t, locked.IsAvailable)
	require.Equal(t, first, locked.LockedBy)

	_, err = node.CancelRental(h.caller(landlordAddr), first)
	require.NoError(t, err)
	released, err := node.Property(p.ID)
	require.NoError(t, err)
	require.True(t, released.IsAvailable)
	require.False(t, released.Locked())

	a, err := node.ApproveRental(h.caller(landlordAddr), second)
	require.NoError(t, err)
	require.True(t, a.PropertyLocked)
	held, err := node.Property(p.ID)
	require.NoError(t, err)
	require.Equal(t, second, held.LockedBy)
}
