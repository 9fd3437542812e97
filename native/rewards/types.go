package rewards

import (
	"fmt"
	"math/big"

	coreerrors "rentchain/core/errors"
	nativecommon "rentchain/native/common"
)

const (
	TokenName     = "Briq Reward"
	TokenSymbol   = "BRIQ-R"
	TokenDecimals = 7
)

// Config holds the reward amounts in the smallest BRIQ-R unit.
type Config struct {
	FirstPaymentReward *big.Int
	ReviewReward       *big.Int
	MutualReviewBonus  *big.Int
}

// DefaultConfig returns 1 BRIQ-R for a first payment, 2.5 for a review and a
// 1.5 bonus to each side of a mutual review.
func DefaultConfig() *Config {
	return &Config{
		FirstPaymentReward: big.NewInt(10_000_0000),
		ReviewReward:       big.NewInt(25_000_0000),
		MutualReviewBonus:  big.NewInt(15_000_0000),
	}
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	return &Config{
		FirstPaymentReward: nativecommon.CloneAmount(c.FirstPaymentReward),
		ReviewReward:       nativecommon.CloneAmount(c.ReviewReward),
		MutualReviewBonus:  nativecommon.CloneAmount(c.MutualReviewBonus),
	}
}

// Validate rejects negative or out-of-range amounts. Zero disables a reward.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: nil reward config", coreerrors.ErrInvalidInput)
	}
	fields := []struct {
		name  string
		value *big.Int
	}{
		{"first payment reward", c.FirstPaymentReward},
		{"review reward", c.ReviewReward},
		{"mutual review bonus", c.MutualReviewBonus},
	}
	for _, f := range fields {
		v := nativecommon.CloneAmount(f.value)
		if v.Sign() < 0 {
			return fmt.Errorf("%w: %s must not be negative", coreerrors.ErrInvalidInput, f.name)
		}
		if !nativecommon.InRange(v) {
			return fmt.Errorf("%w: %s", coreerrors.ErrOverflow, f.name)
		}
	}
	return nil
}

// ClaimKind separates the claim-once ledgers.
type ClaimKind uint8

const (
	ClaimFirstPayment ClaimKind = iota + 1
	ClaimReview
	ClaimMutualReview
)

func (k ClaimKind) String() string {
	switch k {
	case ClaimFirstPayment:
		return "first_payment"
	case ClaimReview:
		return "review"
	case ClaimMutualReview:
		return "mutual_review"
	default:
		return fmt.Sprintf("ClaimKind(%d)", uint8(k))
	}
}
