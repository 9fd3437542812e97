package indexer

import (
	"context"
	"encoding/hex"
	"math/big"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"rentchain/crypto"
	"rentchain/native/escrow"
	"rentchain/native/property"
	"rentchain/native/rental"
	"rentchain/native/review"
)

var (
	landlord = [20]byte{0x11}
	tenant   = [20]byte{0x22}
)

func openTestIndexer(t *testing.T) *Indexer {
	t.Helper()
	idx, err := Open("sqlite", filepath.Join(t.TempDir(), "indexer.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func testAgreement(status rental.Status) *rental.Agreement {
	return &rental.Agreement{
		ID:              [32]byte{0xA1},
		PropertyID:      [32]byte{0xB2},
		Landlord:        landlord,
		Tenant:          tenant,
		MonthlyRent:     big.NewInt(500),
		SecurityDeposit: big.NewInt(1000),
		StartDate:       1_700_086_400,
		EndDate:         1_707_862_400,
		Status:          status,
		TotalRentPaid:   big.NewInt(0),
	}
}

func TestApplyProjectsAgreementLifecycle(t *testing.T) {
	idx := openTestIndexer(t)
	ctx := context.Background()

	a := testAgreement(rental.StatusPendingLandlordApproval)
	require.NoError(t, idx.Apply(ctx, rental.NewRequestedEvent(a)))
	a.Status = rental.StatusPendingPayment
	require.NoError(t, idx.Apply(ctx, rental.NewApprovedEvent(a)))
	a.Status = rental.StatusActive
	a.MonthsPaid = 1
	a.TotalRentPaid = big.NewInt(500)
	require.NoError(t, idx.Apply(ctx, rental.NewRentRecordedEvent(a, big.NewInt(500))))

	row, err := idx.Agreement(ctx, "0x"+hex.EncodeToString(a.ID[:]))
	require.NoError(t, err)
	require.Equal(t, "Active", row.Status)
	require.Equal(t, uint32(1), row.MonthsPaid)
	require.Equal(t, "500", row.TotalRentPaid)
	require.Equal(t, crypto.Address(tenant).String(), row.Tenant)

	active, err := idx.AgreementsByStatus(ctx, rental.StatusActive)
	require.NoError(t, err)
	require.Len(t, active, 1)

	history, err := idx.Events(ctx, EventFilter{TypePrefix: "rental.", AgreementID: hex.EncodeToString(a.ID[:])})
	require.NoError(t, err)
	require.Len(t, history, 3)
	require.Equal(t, "rental", history[0].Module)
}

func TestPaymentsAreOrderedAndIdempotent(t *testing.T) {
	idx := openTestIndexer(t)
	ctx := context.Background()
	agreementID := [32]byte{0xA1}

	records := []*escrow.PaymentRecord{
		{AgreementID: agreementID, Sequence: 2, Payer: tenant, Payee: landlord, Amount: big.NewInt(500), Type: escrow.PaymentMonthlyRent, Timestamp: 30},
		{AgreementID: agreementID, Sequence: 0, Payer: tenant, Payee: escrow.DefaultCustodyAddress, Amount: big.NewInt(1000), Type: escrow.PaymentSecurityDeposit, Timestamp: 10},
		{AgreementID: agreementID, Sequence: 1, Payer: tenant, Payee: landlord, Amount: big.NewInt(500), Type: escrow.PaymentFirstMonthRent, Timestamp: 10},
	}
	for _, r := range records {
		r.ID = escrow.PaymentID(r.AgreementID, r.Sequence, r.Type)
		require.NoError(t, idx.Apply(ctx, escrow.NewPaymentRecordedEvent(r)))
	}
	// Replays of the same record are ignored.
	require.NoError(t, idx.Apply(ctx, escrow.NewPaymentRecordedEvent(records[0])))

	payments, err := idx.Payments(ctx, hex.EncodeToString(agreementID[:]))
	require.NoError(t, err)
	require.Len(t, payments, 3)
	for i, p := range payments {
		require.Equal(t, uint64(i), p.Sequence)
	}
	require.Equal(t, "SecurityDeposit", payments[0].PaymentType)
	require.Equal(t, crypto.Address(landlord).String(), payments[2].Payee)
}

func TestListingsAndRatings(t *testing.T) {
	idx := openTestIndexer(t)
	ctx := context.Background()

	p := &property.Property{
		ID:              [32]byte{0xB2},
		Owner:           landlord,
		PricePerMonth:   big.NewInt(500),
		SecurityDeposit: big.NewInt(1000),
		MinStayDays:     30,
		MaxStayDays:     365,
		IsAvailable:     true,
		IsActive:        true,
	}
	require.NoError(t, idx.Apply(ctx, property.NewCreatedEvent(p)))
	listings, err := idx.ActiveListings(ctx)
	require.NoError(t, err)
	require.Len(t, listings, 1)

	p.IsActive = false
	p.IsAvailable = false
	require.NoError(t, idx.Apply(ctx, property.NewDeactivatedEvent(p)))
	listings, err = idx.ActiveListings(ctx)
	require.NoError(t, err)
	require.Empty(t, listings)

	for _, r := range []*review.Review{
		{AgreementID: [32]byte{0xA1}, Reviewer: tenant, Reviewee: landlord, Role: review.RoleTenant, Rating: 5},
		{AgreementID: [32]byte{0xA2}, Reviewer: tenant, Reviewee: landlord, Role: review.RoleTenant, Rating: 4},
	} {
		require.NoError(t, idx.Apply(ctx, review.NewSubmittedEvent(r)))
	}
	count, avg, err := idx.RatingSummary(ctx, crypto.Address(landlord).String())
	require.NoError(t, err)
	require.Equal(t, int64(2), count)
	require.InDelta(t, 4.5, avg, 0.001)
}

func TestEmitDrainsOnClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "indexer.db")
	idx, err := Open("sqlite", path, nil)
	require.NoError(t, err)
	a := testAgreement(rental.StatusDraft)
	idx.Emit(rental.NewCreatedEvent(a))
	idx.Emit(nil)
	require.NoError(t, idx.Close())
	idx.Emit(rental.NewCreatedEvent(a))

	reopened, err := Open("sqlite", path, nil)
	require.NoError(t, err)
	defer reopened.Close()
	events, err := reopened.Events(context.Background(), EventFilter{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Zero(t, reopened.Dropped())
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open("mysql", "dsn", nil)
	require.ErrorIs(t, err, ErrUnknownDriver)
}
