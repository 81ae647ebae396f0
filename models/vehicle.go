package models

import (
	"strings"
	"time"
)

// Vehicle is identified by its ERP code. Vehicles are never hard-deleted;
// retired trucks are kept with Active=false so historic cargo still resolves.
type Vehicle struct {
	ID         uint      `gorm:"primary_key" json:"id"`
	Code       string    `gorm:"size:50;uniqueIndex;not null" json:"code" validate:"required,max=50"`
	Plate      string    `gorm:"size:20" json:"plate" validate:"max=20"`
	Type       string    `gorm:"size:50;index" json:"type" validate:"max=50"`
	DriverName string    `gorm:"size:120" json:"driver_name" validate:"max=120"`
	CapacityKg int       `json:"capacity_kg" validate:"gte=0"`
	Active     bool      `gorm:"not null" json:"active"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (v *Vehicle) normalize() {
	v.Code = strings.TrimSpace(v.Code)
	v.Plate = strings.TrimSpace(v.Plate)
	v.Type = strings.TrimSpace(v.Type)
	v.DriverName = strings.TrimSpace(v.DriverName)
}
