package review

import (
	"encoding/hex"
	"strconv"

	"rentchain/core/types"
)

const (
	EventTypeReviewSubmitted = "review.submitted"
	EventTypeReviewMutual    = "review.mutual"
)

// NewSubmittedEvent returns the payload emitted when a review is stored.
func NewSubmittedEvent(r *Review) *types.Event {
	if r == nil {
		return nil
	}
	return &types.Event{
		Type: EventTypeReviewSubmitted,
		Attributes: map[string]string{
			"agreementId": hex.EncodeToString(r.AgreementID[:]),
			"reviewer":    hex.EncodeToString(r.Reviewer[:]),
			"reviewee":    hex.EncodeToString(r.Reviewee[:]),
			"role":        r.Role.String(),
			"rating":      strconv.FormatUint(uint64(r.Rating), 10),
		},
	}
}

// NewMutualEvent is emitted once both parties of an agreement have reviewed.
func NewMutualEvent(agreementID [32]byte) *types.Event {
	return &types.Event{
		Type:       EventTypeReviewMutual,
		Attributes: map[string]string{"agreementId": hex.EncodeToString(agreementID[:])},
	}
}
