package core

import (
	"math/big"

	"rentchain/core/types"
	"rentchain/native/escrow"
	"rentchain/native/property"
	"rentchain/native/rental"
	"rentchain/native/review"
	"rentchain/native/rewards"
)

// view builds a read-only unit over a snapshot of the committed state. Writes
// made through it are never committed.
func (n *Node) view() (*unit, error) {
	n.stateMu.Lock()
	snapshot := n.trie.Fork()
	now := n.nextLedgerTime()
	n.stateMu.Unlock()
	return n.newUnit(snapshot, now)
}

// Account returns the native account of addr.
func (n *Node) Account(addr [20]byte) (*types.Account, error) {
	u, err := n.view()
	if err != nil {
		return nil, err
	}
	return u.manager.GetAccount(addr)
}

// Property returns a listing by id.
func (n *Node) Property(id [32]byte) (*property.Property, error) {
	u, err := n.view()
	if err != nil {
		return nil, err
	}
	return u.property.Get(id)
}

// PropertiesByOwner lists every listing of owner.
func (n *Node) PropertiesByOwner(owner [20]byte) ([]*property.Property, error) {
	u, err := n.view()
	if err != nil {
		return nil, err
	}
	return u.property.ListByOwner(owner)
}

// AvailableProperties lists bookable listings.
func (n *Node) AvailableProperties() ([]*property.Property, error) {
	u, err := n.view()
	if err != nil {
		return nil, err
	}
	return u.property.ListAvailable()
}

// Agreement returns a rental agreement by id.
func (n *Node) Agreement(id [32]byte) (*rental.Agreement, error) {
	u, err := n.view()
	if err != nil {
		return nil, err
	}
	return u.rental.Get(id)
}

// AgreementsByTenant lists agreements where addr is the tenant.
func (n *Node) AgreementsByTenant(addr [20]byte) ([]*rental.Agreement, error) {
	u, err := n.view()
	if err != nil {
		return nil, err
	}
	return u.rental.ListByTenant(addr)
}

// AgreementsByLandlord lists agreements where addr is the landlord.
func (n *Node) AgreementsByLandlord(addr [20]byte) ([]*rental.Agreement, error) {
	u, err := n.view()
	if err != nil {
		return nil, err
	}
	return u.rental.ListByLandlord(addr)
}

// AgreementsByProperty lists agreements referencing a property.
func (n *Node) AgreementsByProperty(id [32]byte) ([]*rental.Agreement, error) {
	u, err := n.view()
	if err != nil {
		return nil, err
	}
	return u.rental.ListByProperty(id)
}

// Escrow returns the custody account of an agreement.
func (n *Node) Escrow(id [32]byte) (*escrow.Account, error) {
	u, err := n.view()
	if err != nil {
		return nil, err
	}
	return u.escrow.Get(id)
}

// PaymentHistory returns the payment ledger of an agreement in sequence order.
func (n *Node) PaymentHistory(id [32]byte) ([]*escrow.PaymentRecord, error) {
	u, err := n.view()
	if err != nil {
		return nil, err
	}
	return u.escrow.History(id)
}

// VerifyEscrow reconciles the payment ledger against the custody account.
func (n *Node) VerifyEscrow(id [32]byte) (escrow.Totals, error) {
	u, err := n.view()
	if err != nil {
		return escrow.Totals{}, err
	}
	return u.escrow.Verify(id)
}

// Review returns the review written from role's side of an agreement.
func (n *Node) Review(agreementID [32]byte, role review.Role) (*review.Review, error) {
	u, err := n.view()
	if err != nil {
		return nil, err
	}
	return u.review.Get(agreementID, role)
}

// ReviewsByAgreement lists the reviews of an agreement.
func (n *Node) ReviewsByAgreement(agreementID [32]byte) ([]*review.Review, error) {
	u, err := n.view()
	if err != nil {
		return nil, err
	}
	return u.review.ListByAgreement(agreementID)
}

// ReviewsByUser lists reviews received by addr with the rating summary.
func (n *Node) ReviewsByUser(addr [20]byte) ([]*review.Review, review.Summary, error) {
	u, err := n.view()
	if err != nil {
		return nil, review.Summary{}, err
	}
	list, err := u.review.ListByUser(addr)
	if err != nil {
		return nil, review.Summary{}, err
	}
	summary, err := u.review.Summary(addr)
	if err != nil {
		return nil, review.Summary{}, err
	}
	return list, summary, nil
}

// ReviewsByReviewer lists reviews written by addr.
func (n *Node) ReviewsByReviewer(addr [20]byte) ([]*review.Review, error) {
	u, err := n.view()
	if err != nil {
		return nil, err
	}
	return u.review.ListByReviewer(addr)
}

// CanSubmitReview reports whether reviewer may review the agreement now.
func (n *Node) CanSubmitReview(reviewer [20]byte, agreementID [32]byte) (bool, error) {
	u, err := n.view()
	if err != nil {
		return false, err
	}
	return u.review.CanSubmit(reviewer, agreementID)
}

// RewardsBalance returns the BRIQ-R balance and total supply.
func (n *Node) RewardsBalance(addr [20]byte) (*big.Int, *big.Int, error) {
	u, err := n.view()
	if err != nil {
		return nil, nil, err
	}
	balance, err := u.rewards.BalanceOf(addr)
	if err != nil {
		return nil, nil, err
	}
	supply, err := u.rewards.TotalSupply()
	if err != nil {
		return nil, nil, err
	}
	return balance, supply, nil
}

// RewardsConfig returns the active reward schedule.
func (n *Node) RewardsConfig() (*rewards.Config, error) {
	u, err := n.view()
	if err != nil {
		return nil, err
	}
	return u.rewards.Config()
}
