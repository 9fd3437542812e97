package rental

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"rentchain/core/types"
)

const (
	EventTypeRentalRequested    = "rental.requested"
	EventTypeRentalApproved     = "rental.approved"
	EventTypeRentalRejected     = "rental.rejected"
	EventTypeRentalCreated      = "rental.created"
	EventTypeRentalSigned       = "rental.signed"
	EventTypeRentalActivated    = "rental.activated"
	EventTypeRentalRentRecorded = "rental.rent_recorded"
	EventTypeRentalCompleted    = "rental.completed"
	EventTypeRentalCancelled    = "rental.cancelled"
	EventTypeRentalExpired      = "rental.expired"
)

// NewRequestedEvent returns the payload emitted for a tenant request.
func NewRequestedEvent(a *Agreement) *types.Event { return newRentalEvent(EventTypeRentalRequested, a) }

// NewApprovedEvent returns the payload emitted when the landlord approves.
func NewApprovedEvent(a *Agreement) *types.Event { return newRentalEvent(EventTypeRentalApproved, a) }

// NewRejectedEvent returns the payload emitted when the landlord rejects.
func NewRejectedEvent(a *Agreement) *types.Event { return newRentalEvent(EventTypeRentalRejected, a) }

// NewCreatedEvent returns the payload emitted for a landlord draft.
func NewCreatedEvent(a *Agreement) *types.Event { return newRentalEvent(EventTypeRentalCreated, a) }

// NewSignedEvent returns the payload emitted for a signature. The signer
// attribute is "tenant" or "landlord".
func NewSignedEvent(a *Agreement, tenant bool) *types.Event {
	evt := newRentalEvent(EventTypeRentalSigned, a)
	if evt == nil {
		return nil
	}
	evt.Attributes["signer"] = "landlord"
	if tenant {
		evt.Attributes["signer"] = "tenant"
	}
	return evt
}

// NewActivatedEvent returns the payload emitted when the deposit lands.
func NewActivatedEvent(a *Agreement) *types.Event { return newRentalEvent(EventTypeRentalActivated, a) }

// NewRentRecordedEvent returns the payload emitted after a rent payment.
func NewRentRecordedEvent(a *Agreement, amount *big.Int) *types.Event {
	evt := newRentalEvent(EventTypeRentalRentRecorded, a)
	if evt == nil {
		return nil
	}
	if amount != nil {
		evt.Attributes["amount"] = amount.String()
	}
	evt.Attributes["monthsPaid"] = strconv.FormatUint(uint64(a.MonthsPaid), 10)
	evt.Attributes["totalRentPaid"] = a.TotalRentPaid.String()
	return evt
}

// NewCompletedEvent returns the payload emitted at the end of the term.
func NewCompletedEvent(a *Agreement) *types.Event { return newRentalEvent(EventTypeRentalCompleted, a) }

// NewCancelledEvent returns the payload emitted on cancellation.
func NewCancelledEvent(a *Agreement) *types.Event { return newRentalEvent(EventTypeRentalCancelled, a) }

// NewExpiredEvent returns the payload emitted when a pending window lapses.
func NewExpiredEvent(a *Agreement) *types.Event { return newRentalEvent(EventTypeRentalExpired, a) }

func newRentalEvent(eventType string, a *Agreement) *types.Event {
	if a == nil {
		return nil
	}
	return &types.Event{
		Type: eventType,
		Attributes: map[string]string{
			"id":         hex.EncodeToString(a.ID[:]),
			"propertyId": hex.EncodeToString(a.PropertyID[:]),
			"landlord":   hex.EncodeToString(a.Landlord[:]),
			"tenant":     hex.EncodeToString(a.Tenant[:]),
			"status":     a.Status.String(),
			"startDate":  strconv.FormatUint(a.StartDate, 10),
			"endDate":    strconv.FormatUint(a.EndDate, 10),
		},
	}
}
