package models

import (
	"context"
	"strings"
	"time"

	"github.com/frete360/frete_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// FreightEntry is one billed freight: a vehicle trip carrying one or more
// cargo records, with the fare calculated at the time it was recorded.
type FreightEntry struct {
	ID             uint                `gorm:"primary_key" json:"id"`
	FreightDate    time.Time           `gorm:"type:date;not null;index" json:"freight_date"`
	VehicleCode    string              `gorm:"size:50;not null;index" json:"vehicle_code"`
	VehicleType    string              `gorm:"size:50" json:"vehicle_type"`
	BaseCity       string              `gorm:"size:120" json:"base_city"`
	BaseKm         int                 `json:"base_km"`
	BaseValue      decimal.Decimal     `gorm:"type:decimal(15,2);not null" json:"base_value"`
	Toll           decimal.Decimal     `gorm:"type:decimal(15,2);not null" json:"toll"`
	Ferry          decimal.Decimal     `gorm:"type:decimal(15,2);not null" json:"ferry"`
	Environmental  decimal.Decimal     `gorm:"type:decimal(15,2);not null" json:"environmental"`
	Loader         decimal.Decimal     `gorm:"type:decimal(15,2);not null" json:"loader"`
	Other          decimal.Decimal     `gorm:"type:decimal(15,2);not null" json:"other"`
	Total          decimal.Decimal     `gorm:"type:decimal(15,2);not null" json:"total"`
	Username       string              `gorm:"size:100" json:"username"`
	Reason         *string             `gorm:"type:text" json:"reason"`
	Deleted        bool                `gorm:"not null;index" json:"deleted"`
	DeletionReason *string             `gorm:"type:text" json:"deletion_reason"`
	Cargos         []FreightEntryCargo `gorm:"foreignKey:FreightEntryId" json:"cargos"`
	CreatedAt      time.Time           `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time           `gorm:"autoUpdateTime" json:"updated_at"`
}

// FreightEntryCargo snapshots a cargo record as it was when the freight was billed.
type FreightEntryCargo struct {
	ID              uint            `gorm:"primary_key" json:"id"`
	FreightEntryId  uint            `gorm:"index;not null" json:"freight_entry_id"`
	CargoId         uint            `gorm:"index;not null" json:"cargo_id"`
	InvoiceNumber   string          `gorm:"size:60" json:"invoice_number"`
	DestinationCity string          `gorm:"size:120" json:"destination_city"`
	Value           decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"value"`
	InvoiceDate     time.Time       `gorm:"type:date" json:"invoice_date"`
	DistanceKm      int             `json:"distance_km"`
}

func SnapshotCargo(c CargoRecord) FreightEntryCargo {
	return FreightEntryCargo{
		CargoId:         c.ID,
		InvoiceNumber:   c.InvoiceNumber,
		DestinationCity: c.DestinationCity,
		Value:           c.Value,
		InvoiceDate:     c.InvoiceDate,
		DistanceKm:      c.DistanceKm,
	}
}

// CreateFreightEntry stores the entry and its cargo snapshot in one transaction.
func (s *Store) CreateFreightEntry(ctx context.Context, entry *FreightEntry) error {
	entry.ID = 0
	entry.Deleted = false
	entry.DeletionReason = nil
	for i := range entry.Cargos {
		entry.Cargos[i].ID = 0
		entry.Cargos[i].FreightEntryId = 0
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(entry).Error
	})
	if err != nil {
		return &utils.PersistenceError{Op: "insert", Record: "freight entry " + entry.VehicleCode, Err: err}
	}
	return nil
}

// ListFreightEntries returns non-deleted entries in [from, to] (zero times are
// open bounds), newest first.
func (s *Store) ListFreightEntries(ctx context.Context, from, to time.Time) ([]FreightEntry, error) {
	q := s.db.WithContext(ctx).Preload("Cargos").Where("deleted = ?", false)
	if !from.IsZero() {
		q = q.Where("freight_date >= ?", from)
	}
	if !to.IsZero() {
		q = q.Where("freight_date <= ?", to)
	}
	var entries []FreightEntry
	if err := q.Order("freight_date desc, id desc").Find(&entries).Error; err != nil {
		return nil, &utils.PersistenceError{Op: "read", Record: "freight entries", Err: err}
	}
	return entries, nil
}

func (s *Store) GetFreightEntry(ctx context.Context, id uint) (*FreightEntry, error) {
	return fetchByID[FreightEntry](ctx, s.db, id, "Cargos")
}

func (s *Store) SoftDeleteFreightEntry(ctx context.Context, id uint, reason string) (*FreightEntry, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, utils.NewValidationError("reason", "a deletion reason is required")
	}
	res := s.db.WithContext(ctx).Model(&FreightEntry{}).
		Where("id = ? AND deleted = ?", id, false).
		Updates(map[string]interface{}{
			"deleted":         true,
			"deletion_reason": reason,
			"updated_at":      time.Now(),
		})
	if res.Error != nil {
		return nil, &utils.PersistenceError{Op: "delete", Record: "freight entry", Err: res.Error}
	}
	if res.RowsAffected == 0 {
		return nil, utils.ErrorRecordNotFound
	}
	return s.GetFreightEntry(ctx, id)
}
