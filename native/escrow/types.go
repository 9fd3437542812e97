package escrow

import (
	"fmt"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	coreerrors "rentchain/core/errors"
	nativecommon "rentchain/native/common"
)

// PaymentType tags each ledger entry.
type PaymentType uint8

const (
	PaymentSecurityDeposit PaymentType = iota
	PaymentFirstMonthRent
	PaymentMonthlyRent
	PaymentDepositRelease
	PaymentEmergencyWithdrawal
)

// Valid reports whether the payment type is known.
func (t PaymentType) Valid() bool {
	switch t {
	case PaymentSecurityDeposit, PaymentFirstMonthRent, PaymentMonthlyRent, PaymentDepositRelease, PaymentEmergencyWithdrawal:
		return true
	default:
		return false
	}
}

func (t PaymentType) String() string {
	switch t {
	case PaymentSecurityDeposit:
		return "SecurityDeposit"
	case PaymentFirstMonthRent:
		return "FirstMonthRent"
	case PaymentMonthlyRent:
		return "MonthlyRent"
	case PaymentDepositRelease:
		return "DepositRelease"
	case PaymentEmergencyWithdrawal:
		return "EmergencyWithdrawal"
	default:
		return fmt.Sprintf("PaymentType(%d)", uint8(t))
	}
}

// Account is the custody record for a single agreement. Rent passes straight
// through to the landlord; only the security deposit stays held.
type Account struct {
	AgreementID           [32]byte
	Landlord              [20]byte
	Tenant                [20]byte
	SecurityDepositAmount *big.Int
	SecurityDepositHeld   *big.Int
	MonthlyRentAmount     *big.Int
	TotalRentReceived     *big.Int
	TotalRentReleased     *big.Int
	IsDepositReleased     bool
	DepositReleasedAt     uint64
	CreatedAt             uint64
}

// Clone returns a deep copy of the account.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	clone := *a
	clone.SecurityDepositAmount = nativecommon.CloneAmount(a.SecurityDepositAmount)
	clone.SecurityDepositHeld = nativecommon.CloneAmount(a.SecurityDepositHeld)
	clone.MonthlyRentAmount = nativecommon.CloneAmount(a.MonthlyRentAmount)
	clone.TotalRentReceived = nativecommon.CloneAmount(a.TotalRentReceived)
	clone.TotalRentReleased = nativecommon.CloneAmount(a.TotalRentReleased)
	return &clone
}

// Validate checks the custody invariants: the held deposit is zero exactly
// when it has been released, it never goes negative and released rent never
// exceeds received rent.
func (a *Account) Validate() error {
	if a == nil {
		return fmt.Errorf("%w: nil escrow account", coreerrors.ErrInvalidInput)
	}
	held := nativecommon.CloneAmount(a.SecurityDepositHeld)
	switch {
	case held.Sign() < 0:
		return fmt.Errorf("%w: negative held deposit", coreerrors.ErrUnderflow)
	case (held.Sign() == 0) != a.IsDepositReleased:
		return fmt.Errorf("%w: held deposit %s inconsistent with released=%t", coreerrors.ErrInvalidState, held, a.IsDepositReleased)
	case nativecommon.CloneAmount(a.TotalRentReleased).Cmp(nativecommon.CloneAmount(a.TotalRentReceived)) > 0:
		return fmt.Errorf("%w: released rent exceeds received rent", coreerrors.ErrInvalidState)
	case held.Cmp(nativecommon.CloneAmount(a.SecurityDepositAmount)) > 0:
		return fmt.Errorf("%w: held deposit exceeds face value", coreerrors.ErrInvalidState)
	}
	return nil
}

// PaymentRecord is an append-only audit entry. Sequence orders records within
// an agreement.
type PaymentRecord struct {
	ID          [32]byte
	AgreementID [32]byte
	Sequence    uint64
	Payer       [20]byte
	Payee       [20]byte
	Amount      *big.Int
	Type        PaymentType
	Timestamp   uint64
}

// Clone returns a deep copy of the record.
func (r *PaymentRecord) Clone() *PaymentRecord {
	if r == nil {
		return nil
	}
	clone := *r
	clone.Amount = nativecommon.CloneAmount(r.Amount)
	return &clone
}

// PaymentID derives the identifier of the seq-th record of an agreement.
func PaymentID(agreementID [32]byte, seq uint64, kind PaymentType) [32]byte {
	var buf [8]byte
	for i := 0; i < 8; i++ {
		buf[7-i] = byte(seq >> (8 * i))
	}
	return ethcrypto.Keccak256Hash(agreementID[:], buf[:], []byte{byte(kind)})
}

// DefaultCustodyAddress is the module account that holds deposits.
var DefaultCustodyAddress = func() [20]byte {
	var addr [20]byte
	copy(addr[:], ethcrypto.Keccak256([]byte("rentchain/escrow"))[12:])
	return addr
}()
