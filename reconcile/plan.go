package reconcile

import (
	"strings"

	"github.com/frete360/frete_backend/models"
	"github.com/frete360/frete_backend/utils"
)

type VehicleDecision string

const (
	VehicleDecisionOverwrite VehicleDecision = "overwrite"
	VehicleDecisionSkip      VehicleDecision = "skip"
)

type CargoDecision string

const (
	CargoDecisionReactivate CargoDecision = "reactivate"
	CargoDecisionIgnore     CargoDecision = "ignore"
)

// PlanVehicleBatch turns the operator's answer to a vehicle check into a
// write batch. Every conflict must carry overwrite or skip.
func PlanVehicleBatch(newVehicles []models.Vehicle, resolved []VehicleConflict) (models.VehicleBatch, error) {
	var batch models.VehicleBatch
	for _, c := range resolved {
		switch c.Decision {
		case VehicleDecisionOverwrite, VehicleDecisionSkip:
		default:
			return models.VehicleBatch{}, &utils.ConflictUnresolvedError{Entity: "vehicle", Key: conflictCode(c)}
		}
	}

	seen := map[string]struct{}{}
	for _, v := range newVehicles {
		v.Code = VehicleKey(v.Code)
		if v.Code == "" {
			return models.VehicleBatch{}, utils.NewValidationError("code", "new vehicle without code")
		}
		if _, dup := seen[v.Code]; dup {
			return models.VehicleBatch{}, utils.NewValidationError("code", "vehicle %q listed twice", v.Code)
		}
		seen[v.Code] = struct{}{}
		batch.Insert = append(batch.Insert, v)
	}

	for _, c := range resolved {
		if c.Decision != VehicleDecisionOverwrite {
			continue
		}
		v := c.ERP
		v.Code = conflictCode(c)
		if _, dup := seen[v.Code]; dup {
			return models.VehicleBatch{}, utils.NewValidationError("code", "vehicle %q listed twice", v.Code)
		}
		seen[v.Code] = struct{}{}
		batch.Overwrite = append(batch.Overwrite, v)
	}
	return batch, nil
}

func conflictCode(c VehicleConflict) string {
	if code := VehicleKey(c.Code); code != "" {
		return code
	}
	return VehicleKey(c.ERP.Code)
}

// PlanCargoBatch turns the operator's answer to a cargo check into a write
// batch. Keys are recomputed from invoice and city rather than trusted from
// the request.
func PlanCargoBatch(newCargo []CargoCandidate, resolved []ReactivationCandidate) (models.CargoBatch, error) {
	var batch models.CargoBatch
	for _, r := range resolved {
		switch r.Decision {
		case CargoDecisionReactivate, CargoDecisionIgnore:
		default:
			key := strings.TrimSpace(r.Candidate.InvoiceNumber) + "/" + strings.TrimSpace(r.Candidate.City)
			return models.CargoBatch{}, &utils.ConflictUnresolvedError{Entity: "cargo", Key: key}
		}
	}

	seen := map[string]struct{}{}
	add := func(c CargoCandidate) (models.CargoRecord, error) {
		if strings.TrimSpace(c.InvoiceNumber) == "" || strings.TrimSpace(c.City) == "" {
			return models.CargoRecord{}, utils.NewValidationError("invoice_number", "invoice number and city are required")
		}
		key, err := CargoKey(c.InvoiceNumber, c.City)
		if err != nil {
			return models.CargoRecord{}, err
		}
		if _, dup := seen[key]; dup {
			return models.CargoRecord{}, utils.NewValidationError("invoice_number", "invoice %s/%s listed twice", c.InvoiceNumber, c.City)
		}
		seen[key] = struct{}{}
		return ToCargoRecord(c, key, models.OriginERP), nil
	}

	for _, c := range newCargo {
		rec, err := add(c)
		if err != nil {
			return models.CargoBatch{}, err
		}
		batch.Insert = append(batch.Insert, rec)
	}
	for _, r := range resolved {
		if r.Decision != CargoDecisionReactivate {
			continue
		}
		rec, err := add(r.Candidate)
		if err != nil {
			return models.CargoBatch{}, err
		}
		batch.Reactivate = append(batch.Reactivate, rec)
	}
	return batch, nil
}

// ToCargoRecord builds the record stored for a candidate under key.
func ToCargoRecord(c CargoCandidate, key string, origin models.Origin) models.CargoRecord {
	return models.CargoRecord{
		InvoiceNumber:   strings.TrimSpace(c.InvoiceNumber),
		DestinationCity: strings.TrimSpace(c.City),
		SyncKey:         key,
		Value:           c.Value.Round(2),
		InvoiceDate:     utils.DateOnly(c.InvoiceDate),
		DistanceKm:      c.DistanceKm,
		VehicleCode:     VehicleKey(c.VehicleCode),
		Origin:          origin,
		Status:          models.CargoStatusActive,
	}
}
