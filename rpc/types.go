package rpc

import (
	"encoding/hex"
	"math/big"
	"strings"

	"rentchain/core"
	"rentchain/core/types"
	"rentchain/crypto"
	"rentchain/native/escrow"
	"rentchain/native/property"
	"rentchain/native/rental"
	"rentchain/native/review"
	"rentchain/native/rewards"
)

// PropertyResult is the JSON view of a listing.
type PropertyResult struct {
	ID              string `json:"id"`
	Owner           string `json:"owner"`
	Title           string `json:"title"`
	Description     string `json:"description,omitempty"`
	Location        string `json:"location"`
	PricePerMonth   string `json:"pricePerMonth"`
	SecurityDeposit string `json:"securityDeposit"`
	MinStayDays     uint32 `json:"minStayDays"`
	MaxStayDays     uint32 `json:"maxStayDays"`
	ImageURL        string `json:"imageUrl,omitempty"`
	IsAvailable     bool   `json:"isAvailable"`
	IsActive        bool   `json:"isActive"`
	CreatedAt       uint64 `json:"createdAt"`
	UpdatedAt       uint64 `json:"updatedAt"`
	LockedBy        string `json:"lockedBy,omitempty"`
}

// AgreementResult is the JSON view of a rental agreement.
type AgreementResult struct {
	ID               string `json:"id"`
	PropertyID       string `json:"propertyId"`
	Landlord         string `json:"landlord"`
	Tenant           string `json:"tenant"`
	MonthlyRent      string `json:"monthlyRent"`
	SecurityDeposit  string `json:"securityDeposit"`
	StartDate        uint64 `json:"startDate"`
	EndDate          uint64 `json:"endDate"`
	Status           string `json:"status"`
	LandlordSigned   bool   `json:"landlordSigned"`
	LandlordSignedAt uint64 `json:"landlordSignedAt,omitempty"`
	TenantSigned     bool   `json:"tenantSigned"`
	TenantSignedAt   uint64 `json:"tenantSignedAt,omitempty"`
	DepositPaid      bool   `json:"depositPaid"`
	DepositPaidAt    uint64 `json:"depositPaidAt,omitempty"`
	TotalRentPaid    string `json:"totalRentPaid"`
	MonthsPaid       uint32 `json:"monthsPaid"`
	CreatedAt        uint64 `json:"createdAt"`
	CompletedAt      uint64 `json:"completedAt,omitempty"`
	CancelledAt      uint64 `json:"cancelledAt,omitempty"`
	ExpiresAt        uint64 `json:"expiresAt,omitempty"`
}

// EscrowResult is the JSON view of a custody account.
type EscrowResult struct {
	AgreementID           string `json:"agreementId"`
	Landlord              string `json:"landlord"`
	Tenant                string `json:"tenant"`
	SecurityDepositAmount string `json:"securityDepositAmount"`
	SecurityDepositHeld   string `json:"securityDepositHeld"`
	MonthlyRentAmount     string `json:"monthlyRentAmount"`
	TotalRentReceived     string `json:"totalRentReceived"`
	TotalRentReleased     string `json:"totalRentReleased"`
	IsDepositReleased     bool   `json:"isDepositReleased"`
	DepositReleasedAt     uint64 `json:"depositReleasedAt,omitempty"`
	CreatedAt             uint64 `json:"createdAt"`
}

// PaymentResult is one entry of an agreement's payment ledger.
type PaymentResult struct {
	ID          string `json:"id"`
	AgreementID string `json:"agreementId"`
	Sequence    uint64 `json:"sequence"`
	Payer       string `json:"payer"`
	Payee       string `json:"payee"`
	Amount      string `json:"amount"`
	Type        string `json:"type"`
	Timestamp   uint64 `json:"timestamp"`
}

// VerifyResult reports whether the payment ledger reproduces the account.
type VerifyResult struct {
	Reconciled   bool   `json:"reconciled"`
	Deposited    string `json:"deposited"`
	RentReceived string `json:"rentReceived"`
	Released     string `json:"released"`
	Withdrawn    string `json:"withdrawn"`
	Held         string `json:"held"`
	Mismatch     string `json:"mismatch,omitempty"`
}

// ReviewResult is the JSON view of a review.
type ReviewResult struct {
	AgreementID string `json:"agreementId"`
	Reviewer    string `json:"reviewer"`
	Reviewee    string `json:"reviewee"`
	Role        string `json:"role"`
	Rating      uint8  `json:"rating"`
	Comment     string `json:"comment,omitempty"`
	CreatedAt   uint64 `json:"createdAt"`
}

// UserReviewsResult lists the reviews a user received with their average.
type UserReviewsResult struct {
	Reviews []ReviewResult `json:"reviews"`
	Count   uint64         `json:"count"`
	Average float64        `json:"average"`
}

// RewardsBalanceResult carries a BRIQ-R balance.
type RewardsBalanceResult struct {
	Address     string `json:"address"`
	Balance     string `json:"balance"`
	TotalSupply string `json:"totalSupply"`
	Symbol      string `json:"symbol"`
	Decimals    uint8  `json:"decimals"`
}

// RewardsConfigResult is the reward schedule.
type RewardsConfigResult struct {
	FirstPaymentReward string `json:"firstPaymentReward"`
	ReviewReward       string `json:"reviewReward"`
	MutualReviewBonus  string `json:"mutualReviewBonus"`
}

// AccountResult is a native account.
type AccountResult struct {
	Address string `json:"address"`
	Balance string `json:"balance"`
	Nonce   uint64 `json:"nonce"`
}

// StatusResult summarises the committed head.
type StatusResult struct {
	Height           uint64   `json:"height"`
	StateRoot        string   `json:"stateRoot"`
	LedgerTime       uint64   `json:"ledgerTime"`
	PausedModules    []string `json:"pausedModules"`
	AvailabilityLock string   `json:"availabilityLock"`
	RewardsEnabled   bool     `json:"rewardsEnabled"`
}

// EventResult is a committed event as delivered over the websocket stream.
type EventResult struct {
	Sequence   uint64            `json:"sequence"`
	Cursor     string            `json:"cursor"`
	Height     uint64            `json:"height"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// OKResult acknowledges a call that returns no object.
type OKResult struct {
	OK bool `json:"ok"`
}

func address(addr [20]byte) string { return crypto.Address(addr).String() }

func hexID(id [32]byte) string { return "0x" + hex.EncodeToString(id[:]) }

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func propertyResult(p *property.Property) PropertyResult {
	res := PropertyResult{
		ID:              hexID(p.ID),
		Owner:           address(p.Owner),
		Title:           p.Title,
		Description:     p.Description,
		Location:        p.Location,
		PricePerMonth:   amountString(p.PricePerMonth),
		SecurityDeposit: amountString(p.SecurityDeposit),
		MinStayDays:     p.MinStayDays,
		MaxStayDays:     p.MaxStayDays,
		ImageURL:        p.ImageURL,
		IsAvailable:     p.IsAvailable,
		IsActive:        p.IsActive,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
	if p.Locked() {
		res.LockedBy = hexID(p.LockedBy)
	}
	return res
}

func propertyResults(list []*property.Property) []PropertyResult {
	out := make([]PropertyResult, 0, len(list))
	for _, p := range list {
		out = append(out, propertyResult(p))
	}
	return out
}

func agreementResult(a *rental.Agreement) AgreementResult {
	return AgreementResult{
		ID:               hexID(a.ID),
		PropertyID:       hexID(a.PropertyID),
		Landlord:         address(a.Landlord),
		Tenant:           address(a.Tenant),
		MonthlyRent:      amountString(a.MonthlyRent),
		SecurityDeposit:  amountString(a.SecurityDeposit),
		StartDate:        a.StartDate,
		EndDate:          a.EndDate,
		Status:           a.Status.String(),
		LandlordSigned:   a.LandlordSigned,
		LandlordSignedAt: a.LandlordSignedAt,
		TenantSigned:     a.TenantSigned,
		TenantSignedAt:   a.TenantSignedAt,
		DepositPaid:      a.DepositPaid,
		DepositPaidAt:    a.DepositPaidAt,
		TotalRentPaid:    amountString(a.TotalRentPaid),
		MonthsPaid:       a.MonthsPaid,
		CreatedAt:        a.CreatedAt,
		CompletedAt:      a.CompletedAt,
		CancelledAt:      a.CancelledAt,
		ExpiresAt:        a.ExpiresAt,
	}
}

func agreementResults(list []*rental.Agreement) []AgreementResult {
	out := make([]AgreementResult, 0, len(list))
	for _, a := range list {
		out = append(out, agreementResult(a))
	}
	return out
}

func escrowResult(a *escrow.Account) EscrowResult {
	return EscrowResult{
		AgreementID:           hexID(a.AgreementID),
		Landlord:              address(a.Landlord),
		Tenant:                address(a.Tenant),
		SecurityDepositAmount: amountString(a.SecurityDepositAmount),
		SecurityDepositHeld:   amountString(a.SecurityDepositHeld),
		MonthlyRentAmount:     amountString(a.MonthlyRentAmount),
		TotalRentReceived:     amountString(a.TotalRentReceived),
		TotalRentReleased:     amountString(a.TotalRentReleased),
		IsDepositReleased:     a.IsDepositReleased,
		DepositReleasedAt:     a.DepositReleasedAt,
		CreatedAt:             a.CreatedAt,
	}
}

func paymentResults(records []*escrow.PaymentRecord) []PaymentResult {
	out := make([]PaymentResult, 0, len(records))
	for _, r := range records {
		out = append(out, PaymentResult{
			ID:          hexID(r.ID),
			AgreementID: hexID(r.AgreementID),
			Sequence:    r.Sequence,
			Payer:       address(r.Payer),
			Payee:       address(r.Payee),
			Amount:      amountString(r.Amount),
			Type:        r.Type.String(),
			Timestamp:   r.Timestamp,
		})
	}
	return out
}

func verifyResult(t escrow.Totals, mismatch error) VerifyResult {
	out := VerifyResult{
		Reconciled:   mismatch == nil,
		Deposited:    amountString(t.Deposited),
		RentReceived: amountString(t.RentReceived()),
		Released:     amountString(t.Released),
		Withdrawn:    amountString(t.Withdrawn),
		Held:         amountString(t.Held()),
	}
	if mismatch != nil {
		out.Mismatch = mismatch.Error()
	}
	return out
}

func reviewResult(r *review.Review) ReviewResult {
	return ReviewResult{
		AgreementID: hexID(r.AgreementID),
		Reviewer:    address(r.Reviewer),
		Reviewee:    address(r.Reviewee),
		Role:        r.Role.String(),
		Rating:      r.Rating,
		Comment:     r.Comment,
		CreatedAt:   r.CreatedAt,
	}
}

func reviewResults(list []*review.Review) []ReviewResult {
	out := make([]ReviewResult, 0, len(list))
	for _, r := range list {
		out = append(out, reviewResult(r))
	}
	return out
}

func rewardsConfigResult(cfg *rewards.Config) RewardsConfigResult {
	return RewardsConfigResult{
		FirstPaymentReward: amountString(cfg.FirstPaymentReward),
		ReviewReward:       amountString(cfg.ReviewReward),
		MutualReviewBonus:  amountString(cfg.MutualReviewBonus),
	}
}

func accountResult(addr [20]byte, acct *types.Account) AccountResult {
	out := AccountResult{Address: address(addr), Balance: "0"}
	if acct != nil {
		out.Balance = amountString(acct.Balance)
		out.Nonce = acct.Nonce
	}
	return out
}

func statusResult(s core.Status) StatusResult {
	paused := s.PausedModules
	if paused == nil {
		paused = []string{}
	}
	return StatusResult{
		Height:           s.Height,
		StateRoot:        s.StateRoot.Hex(),
		LedgerTime:       s.LedgerTime,
		PausedModules:    paused,
		AvailabilityLock: s.Policy.AvailabilityLock.String(),
		RewardsEnabled:   s.Rewards,
	}
}

func eventResult(evt core.StreamEvent) EventResult {
	out := EventResult{Sequence: evt.Sequence, Cursor: evt.Cursor, Height: evt.Height}
	if evt.Event != nil {
		out.Type = evt.Event.Type
		out.Attributes = evt.Event.Attributes
	}
	return out
}

func parseID(field, s string) ([32]byte, *RPCError) {
	var id [32]byte
	trimmed := strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(s), "0x"), "0X")
	raw, err := hex.DecodeString(trimmed)
	if err != nil || len(raw) != len(id) {
		return id, invalidParams("%s must be a 32-byte hex string", field)
	}
	copy(id[:], raw)
	return id, nil
}

func parseAddress(field, s string) ([20]byte, *RPCError) {
	addr, err := crypto.ParseAddress(s)
	if err != nil {
		return [20]byte{}, invalidParams("%s: %v", field, err)
	}
	return addr, nil
}

func parseAmount(field, s string) (*big.Int, *RPCError) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return nil, invalidParams("%s is required", field)
	}
	v, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, invalidParams("%s must be a base-10 integer", field)
	}
	return v, nil
}

func requireField(field, value string) *RPCError {
	if strings.TrimSpace(value) == "" {
		return invalidParams("%s is required", field)
	}
	return nil
}
