package indexer

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"rentchain/core/events"
	"rentchain/core/types"
	"rentchain/crypto"
	"rentchain/native/escrow"
	"rentchain/native/rental"
	"rentchain/native/review"
)

const defaultQueueSize = 1024

var (
	// ErrUnknownDriver is returned for drivers other than sqlite and postgres.
	ErrUnknownDriver = errors.New("indexer: unknown driver")
	// ErrClosed is returned once the indexer has been closed.
	ErrClosed = errors.New("indexer: closed")
)

// Indexer projects committed ledger events into a relational read model.
// Emit never blocks the node; a single worker applies events in order.
type Indexer struct {
	db     *gorm.DB
	logger *slog.Logger
	now    func() time.Time

	queue   chan events.Event
	done    chan struct{}
	closeMu sync.RWMutex
	closed  bool
	dropped atomic.Uint64
}

// Open connects to the configured database and migrates the schema.
func Open(driver, dsn string, logger *slog.Logger) (*Indexer, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres", "postgresql":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("indexer: open %s: %w", driver, err)
	}
	return New(db, logger)
}

// New wraps an open database handle.
func New(db *gorm.DB, logger *slog.Logger) (*Indexer, error) {
	if db == nil {
		return nil, fmt.Errorf("indexer: database required")
	}
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("indexer: migrate: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	idx := &Indexer{
		db:     db,
		logger: logger.With("component", "indexer"),
		now:    time.Now,
		queue:  make(chan events.Event, defaultQueueSize),
		done:   make(chan struct{}),
	}
	go idx.run()
	return idx, nil
}

// DB exposes the handle for ad-hoc reporting queries.
func (i *Indexer) DB() *gorm.DB { return i.db }

// Emit implements events.Emitter. Events that do not fit the queue are
// dropped and counted; the ledger stays authoritative.
func (i *Indexer) Emit(evt events.Event) {
	i.closeMu.RLock()
	defer i.closeMu.RUnlock()
	if i.closed || evt == nil {
		return
	}
	select {
	case i.queue <- evt:
	default:
		i.dropped.Add(1)
		i.logger.Warn("indexer queue full, event dropped", "type", evt.EventType())
	}
}

// Close stops accepting events and waits for the queue to drain.
func (i *Indexer) Close() error {
	i.closeMu.Lock()
	if i.closed {
		i.closeMu.Unlock()
		return nil
	}
	i.closed = true
	close(i.queue)
	i.closeMu.Unlock()
	<-i.done
	sqlDB, err := i.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (i *Indexer) run() {
	defer close(i.done)
	for evt := range i.queue {
		if err := i.Apply(context.Background(), evt); err != nil {
			i.logger.Error("index event", "type", evt.EventType(), "error", err)
		}
	}
}

// Apply records evt and updates the projections it touches in one
// transaction.
func (i *Indexer) Apply(ctx context.Context, evt events.Event) error {
	payload := events.Payload(evt)
	if payload == nil {
		return nil
	}
	attrs := payload.Attributes
	encoded, err := json.Marshal(attrs)
	if err != nil {
		return err
	}
	now := i.now().UTC()
	record := EventRecord{
		ID:          uuid.New(),
		Type:        payload.Type,
		Module:      moduleOf(payload.Type),
		AgreementID: firstNonEmpty(attrs["agreementId"], agreementIDOf(payload)),
		PropertyID:  firstNonEmpty(attrs["propertyId"], propertyIDOf(payload)),
		Attributes:  string(encoded),
		RecordedAt:  now,
	}
	return i.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&record).Error; err != nil {
			return err
		}
		return project(tx, payload, now)
	})
}

func project(tx *gorm.DB, evt *types.Event, now time.Time) error {
	attrs := evt.Attributes
	switch {
	case strings.HasPrefix(evt.Type, "property."):
		row := PropertyRow{
			ID:          attrs["id"],
			Owner:       bech32(attrs["owner"]),
			Price:       attrs["price"],
			Deposit:     attrs["deposit"],
			MinStayDays: uint32(parseUint(attrs["minStayDays"])),
			MaxStayDays: uint32(parseUint(attrs["maxStayDays"])),
			Available:   attrs["available"] == "true",
			Active:      attrs["active"] == "true",
			LedgerTime:  parseUint(attrs["updatedAt"]),
		}
		return upsert(tx, &row)
	case strings.HasPrefix(evt.Type, "rental."):
		row := AgreementRow{
			ID:         attrs["id"],
			PropertyID: attrs["propertyId"],
			Landlord:   bech32(attrs["landlord"]),
			Tenant:     bech32(attrs["tenant"]),
			Status:     attrs["status"],
			StartDate:  parseUint(attrs["startDate"]),
			EndDate:    parseUint(attrs["endDate"]),
			UpdatedAt:  now,
		}
		if evt.Type == rental.EventTypeRentalRentRecorded {
			row.MonthsPaid = uint32(parseUint(attrs["monthsPaid"]))
			row.TotalRentPaid = attrs["totalRentPaid"]
			return upsert(tx, &row)
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"status", "updated_at"}),
		}).Create(&row).Error
	case evt.Type == escrow.EventTypePaymentRecorded:
		row := PaymentRow{
			ID:          attrs["paymentId"],
			AgreementID: attrs["agreementId"],
			Sequence:    parseUint(attrs["sequence"]),
			Payer:       bech32(attrs["payer"]),
			Payee:       bech32(attrs["payee"]),
			Amount:      attrs["amount"],
			PaymentType: attrs["paymentType"],
			Timestamp:   parseUint(attrs["timestamp"]),
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error
	case evt.Type == review.EventTypeReviewSubmitted:
		row := ReviewRow{
			AgreementID: attrs["agreementId"],
			Role:        attrs["role"],
			Reviewer:    bech32(attrs["reviewer"]),
			Reviewee:    bech32(attrs["reviewee"]),
			Rating:      uint8(parseUint(attrs["rating"])),
			RecordedAt:  now,
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error
	}
	return nil
}

func upsert(tx *gorm.DB, row interface{}) error {
	return tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(row).Error
}

// Dropped reports how many events were discarded because the queue was full.
func (i *Indexer) Dropped() uint64 { return i.dropped.Load() }

// EventFilter narrows Events.
type EventFilter struct {
	TypePrefix  string
	AgreementID string
	Limit       int
}

// Events returns recorded events oldest first.
func (i *Indexer) Events(ctx context.Context, filter EventFilter) ([]EventRecord, error) {
	q := i.db.WithContext(ctx).Model(&EventRecord{})
	if filter.TypePrefix != "" {
		q = q.Where("type LIKE ?", filter.TypePrefix+"%")
	}
	if filter.AgreementID != "" {
		q = q.Where("agreement_id = ?", normalizeID(filter.AgreementID))
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	var out []EventRecord
	err := q.Order("recorded_at ASC").Find(&out).Error
	return out, err
}

// Payments returns the indexed ledger of an agreement in sequence order.
func (i *Indexer) Payments(ctx context.Context, agreementID string) ([]PaymentRow, error) {
	var out []PaymentRow
	err := i.db.WithContext(ctx).
		Where("agreement_id = ?", normalizeID(agreementID)).
		Order("sequence ASC").
		Find(&out).Error
	return out, err
}

// AgreementsByStatus lists agreements currently in status.
func (i *Indexer) AgreementsByStatus(ctx context.Context, status rental.Status) ([]AgreementRow, error) {
	var out []AgreementRow
	err := i.db.WithContext(ctx).Where("status = ?", status.String()).Order("id").Find(&out).Error
	return out, err
}

// Agreement returns the indexed row of one agreement.
func (i *Indexer) Agreement(ctx context.Context, id string) (*AgreementRow, error) {
	var row AgreementRow
	if err := i.db.WithContext(ctx).First(&row, "id = ?", normalizeID(id)).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// ActiveListings returns properties that are active and available.
func (i *Indexer) ActiveListings(ctx context.Context) ([]PropertyRow, error) {
	var out []PropertyRow
	err := i.db.WithContext(ctx).Where("active = ? AND available = ?", true, true).Order("id").Find(&out).Error
	return out, err
}

// RatingSummary aggregates the ratings received by addr, a bech32 address.
func (i *Indexer) RatingSummary(ctx context.Context, addr string) (count int64, average float64, err error) {
	var agg struct {
		Count int64
		Avg   float64
	}
	err = i.db.WithContext(ctx).Model(&ReviewRow{}).
		Select("COUNT(*) AS count, COALESCE(AVG(rating), 0) AS avg").
		Where("reviewee = ?", addr).
		Scan(&agg).Error
	return agg.Count, agg.Avg, err
}

func moduleOf(eventType string) string {
	if idx := strings.IndexByte(eventType, '.'); idx > 0 {
		return eventType[:idx]
	}
	return eventType
}

func agreementIDOf(evt *types.Event) string {
	if strings.HasPrefix(evt.Type, "rental.") {
		return evt.Attributes["id"]
	}
	return ""
}

func propertyIDOf(evt *types.Event) string {
	if strings.HasPrefix(evt.Type, "property.") {
		return evt.Attributes["id"]
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// bech32 renders a hex-encoded event address the way RPC clients see it.
func bech32(raw string) string {
	decoded, err := hex.DecodeString(strings.TrimPrefix(raw, "0x"))
	if err != nil || len(decoded) != 20 {
		return raw
	}
	var addr crypto.Address
	copy(addr[:], decoded)
	return addr.String()
}

func normalizeID(id string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(id), "0x"))
}

func parseUint(s string) uint64 {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0
	}
	return v
}
