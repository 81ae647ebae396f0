// Package fare prices a freight: one base value for the farthest destination
// plus the surcharges of every city visited.
package fare

import (
	"strings"

	"github.com/frete360/frete_backend/models"
	"github.com/frete360/frete_backend/reconcile"
	"github.com/frete360/frete_backend/utils"
	"github.com/shopspring/decimal"
)

type Calculation struct {
	VehicleType   string          `json:"vehicle_type"`
	BaseCity      string          `json:"base_city"`
	BaseKm        int             `json:"base_km"`
	BaseValue     decimal.Decimal `json:"base_value"`
	Toll          decimal.Decimal `json:"toll"`
	Ferry         decimal.Decimal `json:"ferry"`
	Environmental decimal.Decimal `json:"environmental"`
	Loader        decimal.Decimal `json:"loader"`
	Other         decimal.Decimal `json:"other"`
	Total         decimal.Decimal `json:"total"`
	Cities        []string        `json:"cities"`
}

// Calculate prices the cargo list for a vehicle type.
//
// The base city is the destination with the largest distance (first one on
// ties). Its base value comes from the (city, type) fare, else the wildcard
// fare, else zero. Fees are added once per distinct city.
func Calculate(vehicleType string, cargos []models.CargoRecord, fares *reconcile.FareIndex, fees []models.FeeParameter) (*Calculation, error) {
	if len(cargos) == 0 {
		return nil, utils.NewValidationError("cargo_ids", "at least one cargo record is required")
	}

	calc := &Calculation{
		VehicleType:   strings.TrimSpace(vehicleType),
		BaseValue:     decimal.Zero,
		Toll:          decimal.Zero,
		Ferry:         decimal.Zero,
		Environmental: decimal.Zero,
		Loader:        decimal.Zero,
		Other:         decimal.Zero,
	}

	base := cargos[0]
	for _, c := range cargos[1:] {
		if c.DistanceKm > base.DistanceKm {
			base = c
		}
	}
	calc.BaseCity = strings.TrimSpace(base.DestinationCity)
	calc.BaseKm = base.DistanceKm
	if p, ok := fares.Lookup(calc.BaseCity, calc.VehicleType); ok {
		calc.BaseValue = p.BaseValue
	}

	feeByCity := make(map[string]models.FeeParameter, len(fees))
	for _, f := range fees {
		feeByCity[cityKey(f.City)] = f
	}
	seen := map[string]struct{}{}
	for _, c := range cargos {
		key := cityKey(c.DestinationCity)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		calc.Cities = append(calc.Cities, strings.TrimSpace(c.DestinationCity))

		f, ok := feeByCity[key]
		if !ok {
			continue
		}
		calc.Toll = calc.Toll.Add(f.Toll)
		calc.Ferry = calc.Ferry.Add(f.Ferry)
		calc.Environmental = calc.Environmental.Add(f.Environmental)
		calc.Loader = calc.Loader.Add(f.Loader)
		calc.Other = calc.Other.Add(f.Other)
	}

	calc.Total = calc.BaseValue.
		Add(calc.Toll).
		Add(calc.Ferry).
		Add(calc.Environmental).
		Add(calc.Loader).
		Add(calc.Other).
		Round(2)
	return calc, nil
}

func cityKey(city string) string {
	return strings.ToLower(strings.TrimSpace(city))
}
