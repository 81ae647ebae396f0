// Package registry manages the locally maintained records: vehicles, cargo
// entered by hand or imported, and the fare parameters.
package registry

import (
	"context"
	"time"

	"github.com/frete360/frete_backend/models"
	"github.com/frete360/frete_backend/reconcile"
	"github.com/frete360/frete_backend/utils"
	"github.com/shopspring/decimal"
)

// CargoInput is one cargo record typed in, read from a spreadsheet or parsed
// from a CT-e. DistanceKm 0 means "take it from the fare parameters".
type CargoInput struct {
	InvoiceNumber string          `validate:"required,max=60"`
	City          string          `validate:"required,max=120"`
	Value         decimal.Decimal `validate:"-"`
	InvoiceDate   time.Time       `validate:"required"`
	VehicleCode   string          `validate:"required,max=50"`
	DistanceKm    int             `validate:"gte=0"`
}

type Service struct {
	store *models.Store
}

func NewService(store *models.Store) *Service {
	return &Service{store: store}
}

func (s *Service) Store() *models.Store {
	return s.store
}

// CreateCargo validates, enriches and inserts the inputs in one transaction.
// Unknown vehicles fail the whole call with a *utils.MissingVehicleError.
func (s *Service) CreateCargo(ctx context.Context, inputs []CargoInput, origin models.Origin) ([]models.CargoRecord, error) {
	if len(inputs) == 0 {
		return nil, utils.NewValidationError("cargo", "nothing to insert")
	}

	cands := make([]reconcile.CargoCandidate, 0, len(inputs))
	seen := make(map[string]struct{}, len(inputs))
	for _, in := range inputs {
		if err := utils.ValidateStruct(in); err != nil {
			return nil, utils.NewValidationError("cargo", "%s/%s: %v", in.InvoiceNumber, in.City, utils.ProcessValidationErrors(err))
		}
		if in.Value.IsNegative() {
			return nil, utils.NewValidationError("value", "%s/%s: value cannot be negative", in.InvoiceNumber, in.City)
		}
		key, err := reconcile.CargoKey(in.InvoiceNumber, in.City)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[key]; dup {
			return nil, utils.NewValidationError("cargo", "invoice %s for %s appears twice", in.InvoiceNumber, in.City)
		}
		seen[key] = struct{}{}
		cands = append(cands, reconcile.CargoCandidate{
			Key:           key,
			InvoiceNumber: in.InvoiceNumber,
			City:          in.City,
			Value:         in.Value,
			InvoiceDate:   in.InvoiceDate,
			VehicleCode:   in.VehicleCode,
			DistanceKm:    in.DistanceKm,
			LineCount:     1,
		})
	}

	vehicles, fares, err := s.indexes(ctx)
	if err != nil {
		return nil, err
	}
	enriched, err := reconcile.Enrich(cands, vehicles, fares)
	if err != nil {
		return nil, err
	}

	records := make([]models.CargoRecord, len(enriched))
	for i, c := range enriched {
		if inputs[i].DistanceKm > 0 {
			c.DistanceKm = inputs[i].DistanceKm
		}
		records[i] = reconcile.ToCargoRecord(c, c.Key, origin)
	}
	if err := s.store.CreateCargo(ctx, records); err != nil {
		return nil, err
	}
	return records, nil
}

func (s *Service) indexes(ctx context.Context) (*reconcile.VehicleIndex, *reconcile.FareIndex, error) {
	vehicles, err := s.store.ListVehicles(ctx)
	if err != nil {
		return nil, nil, err
	}
	params, err := s.store.ListFareParameters(ctx)
	if err != nil {
		return nil, nil, err
	}
	return reconcile.NewVehicleIndex(vehicles), reconcile.NewFareIndex(params), nil
}

// Vehicles returns the registry index, used to resolve CT-e plates.
func (s *Service) Vehicles(ctx context.Context) (*reconcile.VehicleIndex, error) {
	vehicles, err := s.store.ListVehicles(ctx)
	if err != nil {
		return nil, err
	}
	return reconcile.NewVehicleIndex(vehicles), nil
}

func (s *Service) SaveVehicle(ctx context.Context, v *models.Vehicle) error {
	if err := utils.ValidateStruct(v); err != nil {
		return utils.NewValidationError("vehicle", "%v", utils.ProcessValidationErrors(err))
	}
	return s.store.CreateVehicle(ctx, v)
}

// UpdateVehicle takes the vehicle from the path id; the body may omit the code.
func (s *Service) UpdateVehicle(ctx context.Context, id uint, v *models.Vehicle) (*models.Vehicle, error) {
	if err := utils.ValidateStructExcept(v, "Code"); err != nil {
		return nil, utils.NewValidationError("vehicle", "%v", utils.ProcessValidationErrors(err))
	}
	return s.store.UpdateVehicle(ctx, id, v)
}
