package common

import (
	"fmt"
	"math"

	coreerrors "rentchain/core/errors"
)

var (
	ErrQuotaRequestsExceeded = fmt.Errorf("%w: request quota exceeded", coreerrors.ErrInvalidState)
	ErrQuotaCounterOverflow  = fmt.Errorf("%w: quota counter overflow", coreerrors.ErrOverflow)
)

// QuotaNow captures the usage counters for an address within one window.
type QuotaNow struct {
	ReqCount uint32
	WindowID uint64
}

// Quota limits how many calls an address may make per window. A zero
// MaxRequests disables the check.
type Quota struct {
	MaxRequests   uint32
	WindowSeconds uint32
}

// Window returns the window id containing ts.
func (q Quota) Window(ts uint64) uint64 {
	if q.WindowSeconds == 0 {
		return 0
	}
	return ts / uint64(q.WindowSeconds)
}

// CheckQuota verifies that addReq more requests fit into the window. The
// returned QuotaNow holds the updated counters when the quota is not exceeded.
func CheckQuota(q Quota, nowWindow uint64, prev QuotaNow, addReq uint32) (QuotaNow, error) {
	next := prev
	if prev.WindowID != nowWindow {
		next = QuotaNow{WindowID: nowWindow}
	}
	if addReq > 0 {
		if next.ReqCount > math.MaxUint32-addReq {
			return prev, ErrQuotaCounterOverflow
		}
		next.ReqCount += addReq
	}
	if q.MaxRequests > 0 && next.ReqCount > q.MaxRequests {
		return prev, ErrQuotaRequestsExceeded
	}
	return next, nil
}
