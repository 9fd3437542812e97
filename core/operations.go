package core

import (
	"fmt"
	"math/big"

	coreerrors "rentchain/core/errors"
	"rentchain/core/types"
	nativecommon "rentchain/native/common"
	"rentchain/native/escrow"
	"rentchain/native/property"
	"rentchain/native/rental"
	"rentchain/native/review"
	"rentchain/native/rewards"
)

const (
	EventModulePaused   = "system.paused"
	EventModuleUnpaused = "system.unpaused"
)

// CreateProperty registers a listing owned by owner.
func (n *Node) CreateProperty(c Caller, owner [20]byte, listing property.Listing) (*property.Property, error) {
	var out *property.Property
	err := n.execute(c, "property_create", func(u *unit) (err error) {
		out, err = u.property.Create(c.From, owner, listing)
		return err
	})
	return out, err
}

// UpdateProperty replaces the editable fields of a listing.
func (n *Node) UpdateProperty(c Caller, id [32]byte, listing property.Listing) (*property.Property, error) {
	var out *property.Property
	err := n.execute(c, "property_update", func(u *unit) (err error) {
		out, err = u.property.Update(c.From, id, listing)
		return err
	})
	return out, err
}

// SetPropertyAvailability toggles whether a listing accepts requests.
func (n *Node) SetPropertyAvailability(c Caller, id [32]byte, available bool) (*property.Property, error) {
	var out *property.Property
	err := n.execute(c, "property_setAvailability", func(u *unit) (err error) {
		out, err = u.property.SetAvailability(c.From, id, available)
		return err
	})
	return out, err
}

// DeactivateProperty retires a listing.
func (n *Node) DeactivateProperty(c Caller, id [32]byte) (*property.Property, error) {
	var out *property.Property
	err := n.execute(c, "property_deactivate", func(u *unit) (err error) {
		out, err = u.property.Deactivate(c.From, id)
		return err
	})
	return out, err
}

// RequestRental opens a tenant-initiated agreement.
func (n *Node) RequestRental(c Caller, id, propertyID [32]byte, start, end uint64) (*rental.Agreement, error) {
	return n.agreementCall(c, "rental_request", func(u *unit) (*rental.Agreement, error) {
		return u.rental.Request(c.From, id, propertyID, start, end)
	})
}

// ApproveRental accepts a pending request as the landlord.
func (n *Node) ApproveRental(c Caller, id [32]byte) (*rental.Agreement, error) {
	return n.agreementCall(c, "rental_approve", func(u *unit) (*rental.Agreement, error) {
		return u.rental.Approve(c.From, id)
	})
}

// RejectRental declines a pending request as the landlord.
func (n *Node) RejectRental(c Caller, id [32]byte) (*rental.Agreement, error) {
	return n.agreementCall(c, "rental_reject", func(u *unit) (*rental.Agreement, error) {
		return u.rental.Reject(c.From, id)
	})
}

// CreateRental drafts a landlord-initiated agreement that both parties sign.
func (n *Node) CreateRental(c Caller, id, propertyID [32]byte, tenant [20]byte, start, end uint64) (*rental.Agreement, error) {
	return n.agreementCall(c, "rental_create", func(u *unit) (*rental.Agreement, error) {
		return u.rental.Create(c.From, id, propertyID, tenant, start, end)
	})
}

// SignRental records the caller's signature on the side they belong to.
func (n *Node) SignRental(c Caller, id [32]byte) (*rental.Agreement, error) {
	return n.agreementCall(c, "rental_sign", func(u *unit) (*rental.Agreement, error) {
		current, err := u.rental.Get(id)
		if err != nil {
			return nil, err
		}
		if current.Tenant == c.From {
			return u.rental.TenantSign(c.From, id)
		}
		return u.rental.LandlordSign(c.From, id)
	})
}

// CompleteRental closes an active agreement.
func (n *Node) CompleteRental(c Caller, id [32]byte) (*rental.Agreement, error) {
	return n.agreementCall(c, "rental_complete", func(u *unit) (*rental.Agreement, error) {
		return u.rental.Complete(c.From, id)
	})
}

// CancelRental cancels an agreement the caller is allowed to cancel.
func (n *Node) CancelRental(c Caller, id [32]byte) (*rental.Agreement, error) {
	return n.agreementCall(c, "rental_cancel", func(u *unit) (*rental.Agreement, error) {
		return u.rental.Cancel(c.From, id)
	})
}

// ExpireRental cancels a pending agreement whose deadline passed. Anyone may
// submit it.
func (n *Node) ExpireRental(c Caller, id [32]byte) (*rental.Agreement, error) {
	return n.agreementCall(c, "rental_expire", func(u *unit) (*rental.Agreement, error) {
		return u.rental.Expire(id)
	})
}

func (n *Node) agreementCall(c Caller, method string, fn func(u *unit) (*rental.Agreement, error)) (*rental.Agreement, error) {
	var out *rental.Agreement
	err := n.execute(c, method, func(u *unit) (err error) {
		out, err = fn(u)
		return err
	})
	return out, err
}

// DepositSecurityAndRent funds the escrow and activates the agreement. The
// first successful deposit earns the tenant the first-payment reward.
func (n *Node) DepositSecurityAndRent(c Caller, id [32]byte) (*escrow.Account, error) {
	return n.escrowCall(c, "escrow_deposit", func(u *unit) (*escrow.Account, error) {
		acct, err := u.escrow.DepositSecurityAndRent(c.From, id)
		if err != nil {
			return nil, err
		}
		if _, err := u.rewards.RewardFirstPayment(id, acct.Tenant); err != nil {
			return nil, err
		}
		return acct, nil
	})
}

// PayRent forwards one month of rent to the landlord.
func (n *Node) PayRent(c Caller, id [32]byte) (*escrow.Account, error) {
	return n.escrowCall(c, "escrow_payRent", func(u *unit) (*escrow.Account, error) {
		return u.escrow.PayRent(c.From, id)
	})
}

// ReleaseDeposit returns the held deposit to the tenant.
func (n *Node) ReleaseDeposit(c Caller, id [32]byte) (*escrow.Account, error) {
	return n.escrowCall(c, "escrow_release", func(u *unit) (*escrow.Account, error) {
		return u.escrow.ReleaseDepositToTenant(c.From, id)
	})
}

// EmergencyWithdraw lets the admin move a held deposit to an arbitrary
// recipient.
func (n *Node) EmergencyWithdraw(c Caller, id [32]byte, to [20]byte) (*escrow.Account, error) {
	return n.escrowCall(c, "escrow_emergencyWithdraw", func(u *unit) (*escrow.Account, error) {
		return u.escrow.EmergencyWithdraw(c.From, id, to)
	})
}

func (n *Node) escrowCall(c Caller, method string, fn func(u *unit) (*escrow.Account, error)) (*escrow.Account, error) {
	var out *escrow.Account
	err := n.execute(c, method, func(u *unit) (err error) {
		out, err = fn(u)
		return err
	})
	return out, err
}

// SubmitReview records a review and pays the review rewards. The mutual bonus
// is paid once both parties have reviewed.
func (n *Node) SubmitReview(c Caller, agreementID [32]byte, rating uint8, comment string) (*review.Review, error) {
	var out *review.Review
	err := n.execute(c, "review_submit", func(u *unit) error {
		r, err := u.review.Submit(c.From, agreementID, rating, comment)
		if err != nil {
			return err
		}
		if _, err := u.rewards.RewardReview(agreementID, c.From); err != nil {
			return err
		}
		mutual, err := u.review.HasMutual(agreementID)
		if err != nil {
			return err
		}
		if mutual {
			a, err := u.rental.Get(agreementID)
			if err != nil {
				return err
			}
			if _, err := u.rewards.RewardMutualReview(agreementID, a.Tenant, a.Landlord); err != nil {
				return err
			}
		}
		out = r
		return nil
	})
	return out, err
}

// SetRewardsConfig replaces the reward schedule.
func (n *Node) SetRewardsConfig(c Caller, cfg *rewards.Config) error {
	return n.execute(c, "rewards_setConfig", func(u *unit) error {
		return u.rewards.SetConfig(c.From, cfg)
	})
}

// MintRewards issues BRIQ-R to an account.
func (n *Node) MintRewards(c Caller, to [20]byte, amount *big.Int) error {
	return n.execute(c, "rewards_mint", func(u *unit) error {
		return u.rewards.Mint(c.From, to, amount)
	})
}

// BurnRewards destroys BRIQ-R held by an account.
func (n *Node) BurnRewards(c Caller, from [20]byte, amount *big.Int) error {
	return n.execute(c, "rewards_burn", func(u *unit) error {
		return u.rewards.Burn(c.From, from, amount)
	})
}

// TransferRewards moves BRIQ-R from the caller to another account.
func (n *Node) TransferRewards(c Caller, to [20]byte, amount *big.Int) error {
	return n.execute(c, "rewards_transfer", func(u *unit) error {
		return u.rewards.Transfer(c.From, to, amount)
	})
}

// Pause halts the mutating entry points of a module.
func (n *Node) Pause(c Caller, module string) error {
	return n.execute(c, "admin_pause", func(u *unit) error {
		return u.setPaused(c.From, module, true)
	})
}

// Unpause resumes a paused module.
func (n *Node) Unpause(c Caller, module string) error {
	return n.execute(c, "admin_unpause", func(u *unit) error {
		return u.setPaused(c.From, module, false)
	})
}

func (u *unit) setPaused(caller [20]byte, module string, paused bool) error {
	if caller != u.admin {
		return ErrNotAdmin
	}
	if !nativecommon.KnownModule(module) {
		return fmt.Errorf("%w: unknown module %q", coreerrors.ErrInvalidInput, module)
	}
	if err := u.manager.SetPaused(module, paused); err != nil {
		return err
	}
	evtType := EventModuleUnpaused
	if paused {
		evtType = EventModulePaused
	}
	u.buffer.Emit(&types.Event{
		Type:       evtType,
		Attributes: map[string]string{"module": module},
	})
	return nil
}
