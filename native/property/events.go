package property

import (
	"encoding/hex"
	"strconv"

	"rentchain/core/types"
)

const (
	EventTypePropertyCreated      = "property.created"
	EventTypePropertyUpdated      = "property.updated"
	EventTypePropertyAvailability = "property.availability"
	EventTypePropertyDeactivated  = "property.deactivated"
)

// NewCreatedEvent returns the payload emitted when a listing is registered.
func NewCreatedEvent(p *Property) *types.Event { return newPropertyEvent(EventTypePropertyCreated, p) }

// NewUpdatedEvent returns the payload emitted when listing fields change.
func NewUpdatedEvent(p *Property) *types.Event { return newPropertyEvent(EventTypePropertyUpdated, p) }

// NewAvailabilityEvent returns the payload emitted when the booking flag flips.
func NewAvailabilityEvent(p *Property) *types.Event {
	return newPropertyEvent(EventTypePropertyAvailability, p)
}

// NewDeactivatedEvent returns the payload emitted on soft delete.
func NewDeactivatedEvent(p *Property) *types.Event {
	return newPropertyEvent(EventTypePropertyDeactivated, p)
}

func newPropertyEvent(eventType string, p *Property) *types.Event {
	if p == nil {
		return nil
	}
	evt := &types.Event{
		Type: eventType,
		Attributes: map[string]string{
			"id":          hex.EncodeToString(p.ID[:]),
			"owner":       hex.EncodeToString(p.Owner[:]),
			"price":       cloneBigInt(p.PricePerMonth).String(),
			"deposit":     cloneBigInt(p.SecurityDeposit).String(),
			"available":   strconv.FormatBool(p.IsAvailable),
			"active":      strconv.FormatBool(p.IsActive),
			"updatedAt":   strconv.FormatUint(p.UpdatedAt, 10),
			"minStayDays": strconv.FormatUint(uint64(p.MinStayDays), 10),
			"maxStayDays": strconv.FormatUint(uint64(p.MaxStayDays), 10),
		},
	}
	if p.Locked() {
		evt.Attributes["lockedBy"] = hex.EncodeToString(p.LockedBy[:])
	}
	return evt
}
