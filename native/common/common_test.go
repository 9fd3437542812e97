package common

import (
	"errors"
	"math/big"
	"testing"

	coreerrors "rentchain/core/errors"
)

type pauses map[string]bool

func (p pauses) IsPaused(module string) bool { return p[module] }

func TestGuard(t *testing.T) {
	view := pauses{ModuleEscrow: true}
	if err := Guard(view, ModuleEscrow); !errors.Is(err, coreerrors.ErrPaused) {
		t.Fatalf("expected paused error, got %v", err)
	}
	if err := Guard(view, ModuleRental); err != nil {
		t.Fatalf("unexpected error for unpaused module: %v", err)
	}
	if err := Guard(nil, ModuleEscrow); err != nil {
		t.Fatalf("nil view must not block: %v", err)
	}
}

func TestCheckedArithmeticBounds(t *testing.T) {
	if _, err := CheckedAdd(MaxAmount, big.NewInt(1)); !errors.Is(err, coreerrors.ErrOverflow) {
		t.Fatalf("expected overflow, got %v", err)
	}
	if _, err := CheckedSub(MinAmount, big.NewInt(1)); !errors.Is(err, coreerrors.ErrUnderflow) {
		t.Fatalf("expected underflow, got %v", err)
	}
	sum, err := CheckedAdd(big.NewInt(5), nil)
	if err != nil || sum.Int64() != 5 {
		t.Fatalf("unexpected sum %v err %v", sum, err)
	}
	if _, err := SubNonNegative(big.NewInt(1), big.NewInt(2)); !errors.Is(err, coreerrors.ErrUnderflow) {
		t.Fatalf("expected underflow for negative custody, got %v", err)
	}
	if _, err := CheckedMul(MaxAmount, big.NewInt(2)); !errors.Is(err, coreerrors.ErrOverflow) {
		t.Fatalf("expected overflow on multiply, got %v", err)
	}
}

func TestCheckQuotaWindows(t *testing.T) {
	q := Quota{MaxRequests: 2, WindowSeconds: 60}
	now := q.Window(120)
	state, err := CheckQuota(q, now, QuotaNow{}, 1)
	if err != nil {
		t.Fatalf("first request: %v", err)
	}
	state, err = CheckQuota(q, now, state, 1)
	if err != nil {
		t.Fatalf("second request: %v", err)
	}
	if _, err := CheckQuota(q, now, state, 1); !errors.Is(err, ErrQuotaRequestsExceeded) {
		t.Fatalf("expected quota error, got %v", err)
	}
	next, err := CheckQuota(q, q.Window(180), state, 1)
	if err != nil || next.ReqCount != 1 {
		t.Fatalf("expected reset in new window, got %+v err %v", next, err)
	}
}
