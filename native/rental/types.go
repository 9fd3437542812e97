package rental

import (
	"fmt"
	"math/big"
	"strings"

	nativecommon "rentchain/native/common"
)

// Status is the closed set of agreement lifecycle states.
type Status uint8

const (
	StatusDraft Status = iota
	StatusPendingTenantSign
	StatusPendingLandlordSign
	StatusPendingLandlordApproval
	StatusPendingPayment
	StatusActive
	StatusCompleted
	StatusCancelled
	StatusRejected
)

const secondsPerDay = 86_400

// Valid reports whether the status value is one of the nine known states.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusPendingTenantSign, StatusPendingLandlordSign, StatusPendingLandlordApproval,
		StatusPendingPayment, StatusActive, StatusCompleted, StatusCancelled, StatusRejected:
		return true
	default:
		return false
	}
}

func (s Status) String() string {
	switch s {
	case StatusDraft:
		return "Draft"
	case StatusPendingTenantSign:
		return "PendingTenantSign"
	case StatusPendingLandlordSign:
		return "PendingLandlordSign"
	case StatusPendingLandlordApproval:
		return "PendingLandlordApproval"
	case StatusPendingPayment:
		return "PendingPayment"
	case StatusActive:
		return "Active"
	case StatusCompleted:
		return "Completed"
	case StatusCancelled:
		return "Cancelled"
	case StatusRejected:
		return "Rejected"
	default:
		return fmt.Sprintf("Status(%d)", uint8(s))
	}
}

// ParseStatus maps the canonical name back to a Status.
func ParseStatus(name string) (Status, error) {
	trimmed := strings.TrimSpace(name)
	for s := StatusDraft; s <= StatusRejected; s++ {
		if strings.EqualFold(s.String(), trimmed) {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown agreement status %q", name)
}

// Terminal reports whether no further transitions are accepted.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusRejected:
		return true
	case StatusDraft, StatusPendingTenantSign, StatusPendingLandlordSign, StatusPendingLandlordApproval,
		StatusPendingPayment, StatusActive:
		return false
	default:
		return true
	}
}

// CanTransition reports whether the lifecycle permits moving from s to next.
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusDraft, StatusPendingTenantSign, StatusPendingLandlordSign:
		switch next {
		case StatusPendingTenantSign, StatusPendingLandlordSign, StatusPendingPayment, StatusCancelled:
			return true
		}
		return false
	case StatusPendingLandlordApproval:
		return next == StatusPendingPayment || next == StatusRejected || next == StatusCancelled
	case StatusPendingPayment:
		return next == StatusActive || next == StatusCancelled
	case StatusActive:
		return next == StatusCompleted || next == StatusCancelled
	case StatusCompleted, StatusCancelled, StatusRejected:
		return false
	default:
		return false
	}
}

// Agreement binds a tenant, landlord and property for a fixed term. Rent and
// deposit are copied from the property when the agreement is created and never
// follow later listing edits.
type Agreement struct {
	ID               [32]byte
	PropertyID       [32]byte
	Landlord         [20]byte
	Tenant           [20]byte
	MonthlyRent      *big.Int
	SecurityDeposit  *big.Int
	StartDate        uint64
	EndDate          uint64
	Status           Status
	LandlordSigned   bool
	LandlordSignedAt uint64
	TenantSigned     bool
	TenantSignedAt   uint64
	DepositPaid      bool
	DepositPaidAt    uint64
	TotalRentPaid    *big.Int
	MonthsPaid       uint32
	CreatedAt        uint64
	CompletedAt      uint64
	DecidedAt        uint64
	CancelledAt      uint64
	// ExpiresAt bounds the current pending state. Zero disables expiry.
	ExpiresAt uint64
	// PropertyLocked records whether this agreement holds the property's
	// availability flag.
	PropertyLocked bool
}

// Clone returns a deep copy of the agreement.
func (a *Agreement) Clone() *Agreement {
	if a == nil {
		return nil
	}
	clone := *a
	clone.MonthlyRent = nativecommon.CloneAmount(a.MonthlyRent)
	clone.SecurityDeposit = nativecommon.CloneAmount(a.SecurityDeposit)
	clone.TotalRentPaid = nativecommon.CloneAmount(a.TotalRentPaid)
	return &clone
}

// IsParty reports whether addr is the tenant or the landlord.
func (a *Agreement) IsParty(addr [20]byte) bool {
	return a != nil && (a.Tenant == addr || a.Landlord == addr)
}

// DurationDays returns the whole number of days covered by the term.
func (a *Agreement) DurationDays() uint64 {
	if a == nil || a.EndDate <= a.StartDate {
		return 0
	}
	return (a.EndDate - a.StartDate) / secondsPerDay
}

// DepositReleasable is the single source of truth the escrow manager consults
// before returning a held deposit.
func DepositReleasable(a *Agreement) bool {
	if a == nil {
		return false
	}
	switch a.Status {
	case StatusCompleted:
		return true
	case StatusCancelled:
		return a.DepositPaid
	case StatusDraft, StatusPendingTenantSign, StatusPendingLandlordSign, StatusPendingLandlordApproval,
		StatusPendingPayment, StatusActive, StatusRejected:
		return false
	default:
		return false
	}
}

// nextAfterSignature derives the multi-sign status from the signature flags.
func nextAfterSignature(a *Agreement) Status {
	switch {
	case a.TenantSigned && a.LandlordSigned:
		return StatusPendingPayment
	case a.TenantSigned:
		return StatusPendingLandlordSign
	case a.LandlordSigned:
		return StatusPendingTenantSign
	default:
		return StatusDraft
	}
}

// LockPolicy decides when an agreement takes the property's availability flag.
type LockPolicy uint8

const (
	LockNever LockPolicy = iota
	LockOnRequest
	LockOnApproval
	LockOnPayment
)

func (p LockPolicy) String() string {
	switch p {
	case LockNever:
		return "never"
	case LockOnRequest:
		return "on_request"
	case LockOnApproval:
		return "on_approval"
	case LockOnPayment:
		return "on_payment"
	default:
		return fmt.Sprintf("LockPolicy(%d)", uint8(p))
	}
}

// ParseLockPolicy accepts the config spelling of a lock policy. The empty
// string selects LockNever.
func ParseLockPolicy(name string) (LockPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "never":
		return LockNever, nil
	case "on_request", "request":
		return LockOnRequest, nil
	case "on_approval", "approval":
		return LockOnApproval, nil
	case "on_payment", "payment":
		return LockOnPayment, nil
	default:
		return LockNever, fmt.Errorf("unknown availability lock policy %q", name)
	}
}

// Policy groups the tunable rules of the engine.
type Policy struct {
	AvailabilityLock LockPolicy
	// RequestTTL bounds PendingLandlordApproval in seconds. Zero disables it.
	RequestTTL uint64
	// PaymentTTL bounds PendingPayment in seconds. Zero disables it.
	PaymentTTL uint64
	// RequestQuota caps rental requests per tenant and window.
	RequestQuota nativecommon.Quota
}
