package escrow

import (
	"encoding/hex"
	"strconv"

	"rentchain/core/types"
	nativecommon "rentchain/native/common"
)

const (
	EventTypeEscrowFunded              = "escrow.funded"
	EventTypeEscrowRentPaid            = "escrow.rent_paid"
	EventTypeEscrowReleased            = "escrow.released"
	EventTypeEscrowEmergencyWithdrawal = "escrow.emergency_withdrawal"
	EventTypePaymentRecorded           = "escrow.payment_recorded"
)

// NewPaymentRecordedEvent returns the payload emitted for every ledger entry.
func NewPaymentRecordedEvent(r *PaymentRecord) *types.Event {
	if r == nil {
		return nil
	}
	return &types.Event{
		Type: EventTypePaymentRecorded,
		Attributes: map[string]string{
			"paymentId":   hex.EncodeToString(r.ID[:]),
			"agreementId": hex.EncodeToString(r.AgreementID[:]),
			"sequence":    strconv.FormatUint(r.Sequence, 10),
			"payer":       hex.EncodeToString(r.Payer[:]),
			"payee":       hex.EncodeToString(r.Payee[:]),
			"amount":      nativecommon.CloneAmount(r.Amount).String(),
			"paymentType": r.Type.String(),
			"timestamp":   strconv.FormatUint(r.Timestamp, 10),
		},
	}
}

// NewFundedEvent returns the payload emitted when deposit and first rent land.
func NewFundedEvent(a *Account) *types.Event {
	return newEscrowEvent(EventTypeEscrowFunded, a, nil)
}

// NewRentPaidEvent returns the payload emitted for a monthly rent payment.
func NewRentPaidEvent(a *Account, r *PaymentRecord) *types.Event {
	return newEscrowEvent(EventTypeEscrowRentPaid, a, r)
}

// NewReleasedEvent returns the payload emitted when the deposit goes back to
// the tenant.
func NewReleasedEvent(a *Account, r *PaymentRecord) *types.Event {
	return newEscrowEvent(EventTypeEscrowReleased, a, r)
}

// NewEmergencyWithdrawalEvent returns the payload emitted for an admin
// withdrawal.
func NewEmergencyWithdrawalEvent(a *Account, r *PaymentRecord) *types.Event {
	return newEscrowEvent(EventTypeEscrowEmergencyWithdrawal, a, r)
}

func newEscrowEvent(eventType string, a *Account, r *PaymentRecord) *types.Event {
	if a == nil {
		return nil
	}
	attrs := map[string]string{
		"agreementId":   hex.EncodeToString(a.AgreementID[:]),
		"landlord":      hex.EncodeToString(a.Landlord[:]),
		"tenant":        hex.EncodeToString(a.Tenant[:]),
		"depositHeld":   nativecommon.CloneAmount(a.SecurityDepositHeld).String(),
		"rentReceived":  nativecommon.CloneAmount(a.TotalRentReceived).String(),
		"rentReleased":  nativecommon.CloneAmount(a.TotalRentReleased).String(),
		"released":      strconv.FormatBool(a.IsDepositReleased),
		"depositAmount": nativecommon.CloneAmount(a.SecurityDepositAmount).String(),
	}
	if r != nil {
		attrs["paymentId"] = hex.EncodeToString(r.ID[:])
		attrs["paymentType"] = r.Type.String()
		attrs["amount"] = nativecommon.CloneAmount(r.Amount).String()
		attrs["payer"] = hex.EncodeToString(r.Payer[:])
		attrs["payee"] = hex.EncodeToString(r.Payee[:])
		attrs["sequence"] = strconv.FormatUint(r.Sequence, 10)
		attrs["timestamp"] = strconv.FormatUint(r.Timestamp, 10)
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}
