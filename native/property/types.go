package property

import (
	"fmt"
	"math/big"
	"strings"

	"golang.org/x/text/unicode/norm"

	coreerrors "rentchain/core/errors"
	nativecommon "rentchain/native/common"
)

const (
	MaxTitleLength       = 100
	MaxDescriptionLength = 1000
	MaxLocationLength    = 200
	MaxImageURLLength    = 512
	// DefaultMinStayFloor is the shortest minimum stay a listing may declare.
	DefaultMinStayFloor uint32 = 30
)

// Property is a rental listing. The identifier is a blake3 content hash of the
// owner, the owner's listing nonce and the listing text, so ids never collide
// across owners.
type Property struct {
	ID              [32]byte
	Owner           [20]byte
	Title           string
	Description     string
	Location        string
	PricePerMonth   *big.Int
	SecurityDeposit *big.Int
	MinStayDays     uint32
	MaxStayDays     uint32
	ImageURL        string
	IsAvailable     bool
	IsActive        bool
	CreatedAt       uint64
	UpdatedAt       uint64
	// LockedBy is the agreement currently holding the listing, zero when free.
	LockedBy [32]byte
}

// Clone returns a deep copy of the property.
func (p *Property) Clone() *Property {
	if p == nil {
		return nil
	}
	clone := *p
	clone.PricePerMonth = cloneBigInt(p.PricePerMonth)
	clone.SecurityDeposit = cloneBigInt(p.SecurityDeposit)
	return &clone
}

// Bookable reports whether new rental requests may reference the property.
func (p *Property) Bookable() bool {
	return p != nil && p.IsActive && p.IsAvailable
}

// Locked reports whether an agreement holds the listing.
func (p *Property) Locked() bool {
	return p != nil && p.LockedBy != [32]byte{}
}

// Listing carries the owner-editable fields of a property.
type Listing struct {
	Title           string
	Description     string
	Location        string
	PricePerMonth   *big.Int
	SecurityDeposit *big.Int
	MinStayDays     uint32
	MaxStayDays     uint32
	ImageURL        string
}

// SanitizeListing normalises the text fields and validates every bound. The
// input is not mutated.
func SanitizeListing(l Listing, minStayFloor uint32) (Listing, error) {
	out := Listing{
		Title:           normalizeText(l.Title),
		Description:     strings.TrimSpace(l.Description),
		Location:        normalizeText(l.Location),
		PricePerMonth:   cloneBigInt(l.PricePerMonth),
		SecurityDeposit: cloneBigInt(l.SecurityDeposit),
		MinStayDays:     l.MinStayDays,
		MaxStayDays:     l.MaxStayDays,
		ImageURL:        strings.TrimSpace(l.ImageURL),
	}
	switch {
	case len(out.Title) == 0 || len(out.Title) > MaxTitleLength:
		return Listing{}, invalidInput("title must be 1..%d bytes", MaxTitleLength)
	case len(out.Description) > MaxDescriptionLength:
		return Listing{}, invalidInput("description exceeds %d bytes", MaxDescriptionLength)
	case len(out.Location) == 0 || len(out.Location) > MaxLocationLength:
		return Listing{}, invalidInput("location must be 1..%d bytes", MaxLocationLength)
	case len(out.ImageURL) > MaxImageURLLength:
		return Listing{}, invalidInput("image url exceeds %d bytes", MaxImageURLLength)
	case out.PricePerMonth.Sign() <= 0:
		return Listing{}, invalidInput("price per month must be positive")
	case out.SecurityDeposit.Sign() < 0:
		return Listing{}, invalidInput("security deposit must not be negative")
	case out.MinStayDays < minStayFloor:
		return Listing{}, invalidInput("minimum stay must be at least %d days", minStayFloor)
	case out.MinStayDays > out.MaxStayDays:
		return Listing{}, invalidInput("minimum stay %d exceeds maximum %d", out.MinStayDays, out.MaxStayDays)
	}
	if !nativecommon.InRange(out.PricePerMonth) || !nativecommon.InRange(out.SecurityDeposit) {
		return Listing{}, fmt.Errorf("%w: amount exceeds i128", coreerrors.ErrOverflow)
	}
	return out, nil
}

func normalizeText(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

func invalidInput(format string, args ...interface{}) error {
	return fmt.Errorf("%w: property: "+format, append([]interface{}{coreerrors.ErrInvalidInput}, args...)...)
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
