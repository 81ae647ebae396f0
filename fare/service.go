package fare

import (
	"context"
	"strings"
	"time"

	"github.com/frete360/frete_backend/models"
	"github.com/frete360/frete_backend/reconcile"
	"github.com/frete360/frete_backend/utils"
)

type QuoteRequest struct {
	VehicleCode string `json:"vehicle_code" validate:"required"`
	CargoIds    []uint `json:"cargo_ids" validate:"required,min=1,dive,gt=0"`
}

type RecordRequest struct {
	QuoteRequest
	FreightDate string  `json:"freight_date" validate:"required"`
	Reason      *string `json:"reason"`
}

type Quote struct {
	Vehicle     models.Vehicle       `json:"vehicle"`
	Cargos      []models.CargoRecord `json:"cargos"`
	Calculation *Calculation         `json:"calculation"`
}

type Service struct {
	store *models.Store
}

func NewService(store *models.Store) *Service {
	return &Service{store: store}
}

// Quote loads the vehicle, the active cargo records and the current
// parameters and prices them. Nothing is written.
func (s *Service) Quote(ctx context.Context, req QuoteRequest) (*Quote, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, utils.NewValidationError("", "%v", utils.ProcessValidationErrors(err))
	}

	vehicle, err := s.store.FindVehicleByCode(ctx, req.VehicleCode)
	if err != nil {
		return nil, err
	}

	ids := utils.UniqueSlice(req.CargoIds)
	cargos, err := s.store.ListCargoByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(cargos) != len(ids) {
		return nil, utils.NewValidationError("cargo_ids", "unknown cargo record in selection")
	}
	for _, c := range cargos {
		if c.Status != models.CargoStatusActive {
			return nil, utils.NewValidationError("cargo_ids", "%s is deleted", c.String())
		}
	}

	fares, err := s.store.ListFareParameters(ctx)
	if err != nil {
		return nil, err
	}
	fees, err := s.store.ListFeeParameters(ctx)
	if err != nil {
		return nil, err
	}

	calc, err := Calculate(vehicle.Type, cargos, reconcile.NewFareIndex(fares), fees)
	if err != nil {
		return nil, err
	}
	return &Quote{Vehicle: *vehicle, Cargos: cargos, Calculation: calc}, nil
}

// Record recomputes the quote and stores it as a freight entry.
func (s *Service) Record(ctx context.Context, req RecordRequest) (*models.FreightEntry, error) {
	date, err := utils.ParseDate(req.FreightDate)
	if err != nil {
		return nil, utils.NewValidationError("freight_date", "%v", err)
	}
	q, err := s.Quote(ctx, req.QuoteRequest)
	if err != nil {
		return nil, err
	}

	if req.Reason != nil {
		r := strings.TrimSpace(*req.Reason)
		if r == "" {
			req.Reason = nil
		} else {
			req.Reason = &r
		}
	}

	calc := q.Calculation
	entry := &models.FreightEntry{
		FreightDate:   date,
		VehicleCode:   q.Vehicle.Code,
		VehicleType:   q.Vehicle.Type,
		BaseCity:      calc.BaseCity,
		BaseKm:        calc.BaseKm,
		BaseValue:     calc.BaseValue,
		Toll:          calc.Toll,
		Ferry:         calc.Ferry,
		Environmental: calc.Environmental,
		Loader:        calc.Loader,
		Other:         calc.Other,
		Total:         calc.Total,
		Username:      utils.UsernameOrSystem(ctx),
		Reason:        req.Reason,
	}
	for _, c := range q.Cargos {
		entry.Cargos = append(entry.Cargos, models.SnapshotCargo(c))
	}
	if err := s.store.CreateFreightEntry(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *Service) List(ctx context.Context, from, to time.Time) ([]models.FreightEntry, error) {
	return s.store.ListFreightEntries(ctx, from, to)
}

func (s *Service) Delete(ctx context.Context, id uint, reason string) (*models.FreightEntry, error) {
	return s.store.SoftDeleteFreightEntry(ctx, id, reason)
}
