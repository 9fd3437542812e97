package indexer

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EventRecord is one committed ledger event.
type EventRecord struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	Type        string    `gorm:"index"`
	Module      string    `gorm:"index"`
	AgreementID string    `gorm:"index"`
	PropertyID  string    `gorm:"index"`
	Attributes  string
	RecordedAt  time.Time `gorm:"index"`
}

// PropertyRow is the latest known shape of a listing.
type PropertyRow struct {
	ID          string `gorm:"primaryKey"`
	Owner       string `gorm:"index"`
	Price       string
	Deposit     string
	MinStayDays uint32
	MaxStayDays uint32
	Available   bool `gorm:"index"`
	Active      bool `gorm:"index"`
	LedgerTime  uint64
}

// AgreementRow tracks the status of a rental agreement.
type AgreementRow struct {
	ID            string `gorm:"primaryKey"`
	PropertyID    string `gorm:"index"`
	Landlord      string `gorm:"index"`
	Tenant        string `gorm:"index"`
	Status        string `gorm:"index"`
	StartDate     uint64
	EndDate       uint64
	MonthsPaid    uint32
	TotalRentPaid string
	UpdatedAt     time.Time
}

// PaymentRow mirrors an escrow payment record.
type PaymentRow struct {
	ID          string `gorm:"primaryKey"`
	AgreementID string `gorm:"index:idx_payment_agreement_seq,priority:1"`
	Sequence    uint64 `gorm:"index:idx_payment_agreement_seq,priority:2"`
	Payer       string `gorm:"index"`
	Payee       string `gorm:"index"`
	Amount      string
	PaymentType string `gorm:"index"`
	Timestamp   uint64
}

// ReviewRow is a submitted review.
type ReviewRow struct {
	AgreementID string `gorm:"primaryKey"`
	Role        string `gorm:"primaryKey"`
	Reviewer    string `gorm:"index"`
	Reviewee    string `gorm:"index"`
	Rating      uint8
	RecordedAt  time.Time
}

// AutoMigrate creates or updates the read-model tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&EventRecord{}, &PropertyRow{}, &AgreementRow{}, &PaymentRow{}, &ReviewRow{})
}
