package rewards

import (
	"encoding/hex"
	"math/big"

	"rentchain/core/types"
	nativecommon "rentchain/native/common"
)

const (
	EventTypeRewardIssued  = "rewards.issued"
	EventTypeMinted        = "rewards.minted"
	EventTypeBurned        = "rewards.burned"
	EventTypeTransfer      = "rewards.transfer"
	EventTypeConfigUpdated = "rewards.config_updated"
)

// NewRewardIssuedEvent is emitted for every lifecycle reward paid.
func NewRewardIssuedEvent(kind ClaimKind, agreementID [32]byte, to [20]byte, amount *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeRewardIssued,
		Attributes: map[string]string{
			"kind":        kind.String(),
			"agreementId": hex.EncodeToString(agreementID[:]),
			"to":          hex.EncodeToString(to[:]),
			"amount":      nativecommon.CloneAmount(amount).String(),
		},
	}
}

// NewMintedEvent is emitted on an admin mint.
func NewMintedEvent(to [20]byte, amount *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeMinted,
		Attributes: map[string]string{
			"to":     hex.EncodeToString(to[:]),
			"amount": nativecommon.CloneAmount(amount).String(),
		},
	}
}

// NewBurnedEvent is emitted on an admin burn.
func NewBurnedEvent(from [20]byte, amount *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeBurned,
		Attributes: map[string]string{
			"from":   hex.EncodeToString(from[:]),
			"amount": nativecommon.CloneAmount(amount).String(),
		},
	}
}

// NewTransferEvent is emitted when BRIQ-R changes hands.
func NewTransferEvent(from, to [20]byte, amount *big.Int) *types.Event {
	return &types.Event{
		Type: EventTypeTransfer,
		Attributes: map[string]string{
			"from":   hex.EncodeToString(from[:]),
			"to":     hex.EncodeToString(to[:]),
			"amount": nativecommon.CloneAmount(amount).String(),
		},
	}
}

// NewConfigUpdatedEvent is emitted after SetConfig.
func NewConfigUpdatedEvent(cfg *Config) *types.Event {
	if cfg == nil {
		return nil
	}
	return &types.Event{
		Type: EventTypeConfigUpdated,
		Attributes: map[string]string{
			"firstPaymentReward": nativecommon.CloneAmount(cfg.FirstPaymentReward).String(),
			"reviewReward":       nativecommon.CloneAmount(cfg.ReviewReward).String(),
			"mutualReviewBonus":  nativecommon.CloneAmount(cfg.MutualReviewBonus).String(),
		},
	}
}
