package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/frete360/frete_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CargoRecord is one freight invoice (CT-e) delivered to one destination city.
//
// SyncKey is the reconciliation key of (InvoiceNumber, DestinationCity). It is
// computed once by the creator of the record and never rewritten, so later
// edits to the descriptive columns do not change which ERP line it matches.
type CargoRecord struct {
	ID              uint            `gorm:"primary_key" json:"id"`
	InvoiceNumber   string          `gorm:"size:60;not null;index" json:"invoice_number"`
	DestinationCity string          `gorm:"size:120;not null" json:"destination_city"`
	SyncKey         string          `gorm:"size:200;not null;index:idx_cargo_sync_key_status,priority:1" json:"sync_key"`
	Value           decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"value"`
	InvoiceDate     time.Time       `gorm:"type:date" json:"invoice_date"`
	DistanceKm      int             `json:"distance_km"`
	VehicleCode     string          `gorm:"size:50;index" json:"vehicle_code"`
	Origin          Origin          `gorm:"size:10;not null" json:"origin"`
	Status          CargoStatus     `gorm:"size:10;not null;index:idx_cargo_sync_key_status,priority:2" json:"status"`
	DeletionReason  *string         `gorm:"type:text" json:"deletion_reason"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (c CargoRecord) String() string {
	return fmt.Sprintf("cargo %s/%s", c.InvoiceNumber, c.DestinationCity)
}

func (c *CargoRecord) BeforeCreate(tx *gorm.DB) error {
	c.InvoiceNumber = strings.TrimSpace(c.InvoiceNumber)
	c.DestinationCity = strings.TrimSpace(c.DestinationCity)
	c.VehicleCode = strings.TrimSpace(c.VehicleCode)
	if c.SyncKey == "" {
		return utils.NewValidationError("sync_key", "sync key is required for %s", c.String())
	}
	if c.Status == "" {
		c.Status = CargoStatusActive
	}
	if !c.Status.IsValid() {
		return utils.NewValidationError("status", "invalid status %q", c.Status)
	}
	if !c.Origin.IsValid() {
		return utils.NewValidationError("origin", "invalid origin %q", c.Origin)
	}
	c.Value = c.Value.Round(2)
	return nil
}
