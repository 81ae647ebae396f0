package models

import (
	"context"
	"strings"
	"time"

	"github.com/frete360/frete_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// WildcardCity is the parameter city that applies to any destination without
// its own row.
const WildcardCity = "Qualquer"

// FareParameter gives the default distance and the base freight value for a
// (city, vehicle type) pair.
type FareParameter struct {
	ID          uint            `gorm:"primary_key" json:"id"`
	City        string          `gorm:"size:120;not null;uniqueIndex:idx_fare_city_type,priority:1" json:"city" validate:"required,max=120"`
	VehicleType string          `gorm:"size:50;not null;uniqueIndex:idx_fare_city_type,priority:2" json:"vehicle_type" validate:"required,max=50"`
	BaseValue   decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"base_value"`
	DistanceKm  int             `json:"distance_km" validate:"gte=0"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// FeeParameter holds the per-city surcharges added once per distinct city of a freight.
type FeeParameter struct {
	ID            uint            `gorm:"primary_key" json:"id"`
	City          string          `gorm:"size:120;not null;uniqueIndex" json:"city" validate:"required,max=120"`
	Toll          decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"toll"`
	Ferry         decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"ferry"`
	Environmental decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"environmental"`
	Loader        decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"loader"`
	Other         decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"other"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (s *Store) ListFareParameters(ctx context.Context) ([]FareParameter, error) {
	var params []FareParameter
	if err := s.db.WithContext(ctx).Order("city, vehicle_type").Find(&params).Error; err != nil {
		return nil, &utils.PersistenceError{Op: "read", Record: "fare parameters", Err: err}
	}
	return params, nil
}

func (s *Store) ListFeeParameters(ctx context.Context) ([]FeeParameter, error) {
	var params []FeeParameter
	if err := s.db.WithContext(ctx).Order("city").Find(&params).Error; err != nil {
		return nil, &utils.PersistenceError{Op: "read", Record: "fee parameters", Err: err}
	}
	return params, nil
}

// UpsertFareParameters writes all rows in one transaction; an existing
// (city, vehicle type) row has its value and distance replaced.
func (s *Store) UpsertFareParameters(ctx context.Context, params []FareParameter) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range params {
			p := &params[i]
			p.City = strings.TrimSpace(p.City)
			p.VehicleType = strings.TrimSpace(p.VehicleType)
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "city"}, {Name: "vehicle_type"}},
				DoUpdates: clause.AssignmentColumns([]string{"base_value", "distance_km", "updated_at"}),
			}).Create(p).Error
			if err != nil {
				return &utils.PersistenceError{Op: "upsert", Record: "fare parameter " + p.City + "/" + p.VehicleType, Err: err}
			}
		}
		return nil
	})
}

func (s *Store) UpsertFeeParameters(ctx context.Context, params []FeeParameter) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range params {
			p := &params[i]
			p.City = strings.TrimSpace(p.City)
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "city"}},
				DoUpdates: clause.AssignmentColumns([]string{"toll", "ferry", "environmental", "loader", "other", "updated_at"}),
			}).Create(p).Error
			if err != nil {
				return &utils.PersistenceError{Op: "upsert", Record: "fee parameter " + p.City, Err: err}
			}
		}
		return nil
	})
}
