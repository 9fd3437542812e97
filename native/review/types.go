package review

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	coreerrors "rentchain/core/errors"
)

const (
	MinRating        = 1
	MaxRating        = 5
	MaxCommentLength = 2000
	// EligibilityDelay is the time that must pass after the agreement start
	// before either party may review.
	EligibilityDelay uint64 = 30 * 86_400
)

// Role identifies which side of the agreement wrote a review.
type Role uint8

const (
	RoleTenant Role = iota
	RoleLandlord
)

// Valid reports whether the role is known.
func (r Role) Valid() bool { return r == RoleTenant || r == RoleLandlord }

func (r Role) String() string {
	switch r {
	case RoleTenant:
		return "tenant"
	case RoleLandlord:
		return "landlord"
	default:
		return fmt.Sprintf("Role(%d)", uint8(r))
	}
}

// ParseRole maps "tenant"/"landlord" to a Role.
func ParseRole(name string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "tenant":
		return RoleTenant, nil
	case "landlord":
		return RoleLandlord, nil
	default:
		return 0, fmt.Errorf("%w: unknown review role %q", coreerrors.ErrInvalidInput, name)
	}
}

// Review is an immutable rating left by one party about the other.
type Review struct {
	AgreementID [32]byte
	Reviewer    [20]byte
	Reviewee    [20]byte
	Role        Role
	Rating      uint8
	Comment     string
	CreatedAt   uint64
}

// Clone returns a copy of the review.
func (r *Review) Clone() *Review {
	if r == nil {
		return nil
	}
	clone := *r
	return &clone
}

// Key addresses a review: at most one exists per agreement and role.
type Key struct {
	AgreementID [32]byte
	Role        Role
}

// Summary aggregates the ratings a user has received.
type Summary struct {
	Count uint64
	Sum   uint64
}

// Average returns the mean rating, or zero when nothing was received.
func (s Summary) Average() float64 {
	if s.Count == 0 {
		return 0
	}
	return float64(s.Sum) / float64(s.Count)
}

func sanitizeComment(comment string) (string, error) {
	if !utf8.ValidString(comment) {
		return "", fmt.Errorf("%w: comment is not valid UTF-8", coreerrors.ErrInvalidInput)
	}
	normalized := norm.NFC.String(strings.TrimSpace(comment))
	if len(normalized) > MaxCommentLength {
		return "", fmt.Errorf("%w: comment exceeds %d bytes", coreerrors.ErrInvalidInput, MaxCommentLength)
	}
	return normalized, nil
}
