package common

import (
	"fmt"
	"math/big"

	coreerrors "rentchain/core/errors"
)

var (
	// MaxAmount is the largest representable monetary value (2^127 - 1).
	MaxAmount = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))
	// MinAmount is the smallest representable monetary value (-2^127).
	MinAmount = new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 127))
)

// CloneAmount returns a copy of v, treating nil as zero.
func CloneAmount(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

// InRange reports whether v fits the signed 128-bit range.
func InRange(v *big.Int) bool {
	if v == nil {
		return true
	}
	return v.Cmp(MaxAmount) <= 0 && v.Cmp(MinAmount) >= 0
}

// CheckedAdd returns a+b or ErrOverflow/ErrUnderflow when the result leaves
// the signed 128-bit range.
func CheckedAdd(a, b *big.Int) (*big.Int, error) {
	sum := new(big.Int).Add(CloneAmount(a), CloneAmount(b))
	return bounded(sum)
}

// CheckedSub returns a-b with the same range checks as CheckedAdd.
func CheckedSub(a, b *big.Int) (*big.Int, error) {
	diff := new(big.Int).Sub(CloneAmount(a), CloneAmount(b))
	return bounded(diff)
}

// CheckedMul returns a*b with range checks.
func CheckedMul(a, b *big.Int) (*big.Int, error) {
	prod := new(big.Int).Mul(CloneAmount(a), CloneAmount(b))
	return bounded(prod)
}

// SubNonNegative subtracts b from a and fails with ErrUnderflow when the
// result would be negative. It is used for custody balances.
func SubNonNegative(a, b *big.Int) (*big.Int, error) {
	diff, err := CheckedSub(a, b)
	if err != nil {
		return nil, err
	}
	if diff.Sign() < 0 {
		return nil, fmt.Errorf("%w: %s - %s", coreerrors.ErrUnderflow, CloneAmount(a), CloneAmount(b))
	}
	return diff, nil
}

func bounded(v *big.Int) (*big.Int, error) {
	if v.Cmp(MaxAmount) > 0 {
		return nil, fmt.Errorf("%w: %s exceeds i128", coreerrors.ErrOverflow, v)
	}
	if v.Cmp(MinAmount) < 0 {
		return nil, fmt.Errorf("%w: %s below i128", coreerrors.ErrUnderflow, v)
	}
	return v, nil
}
