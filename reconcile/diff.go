package reconcile

import (
	"strings"

	"github.com/frete360/frete_backend/models"
)

// VehicleConflict is an ERP vehicle whose code exists locally with a
// different plate or type.
type VehicleConflict struct {
	Code     string          `json:"code"`
	Local    models.Vehicle  `json:"local"`
	ERP      models.Vehicle  `json:"erp"`
	Decision VehicleDecision `json:"decision,omitempty"`
}

type VehicleDiff struct {
	New       []models.Vehicle  `json:"new"`
	Conflicts []VehicleConflict `json:"conflicts"`
}

// ReactivationCandidate pairs an ERP invoice with a soft-deleted local record
// of the same key.
type ReactivationCandidate struct {
	Candidate      CargoCandidate `json:"candidate"`
	LocalId        uint           `json:"local_id"`
	PreviousReason string         `json:"previous_reason"`
	Decision       CargoDecision  `json:"decision,omitempty"`
}

type CargoDiff struct {
	New           []CargoCandidate        `json:"new"`
	Reactivations []ReactivationCandidate `json:"reactivations"`
}

// DiffVehicles classifies an ERP snapshot against the local registry.
// Identical vehicles are dropped. A code repeated in the snapshot keeps its
// first position and its last values. Blank codes cannot be matched and are
// ignored.
func DiffVehicles(erp []models.Vehicle, local []models.Vehicle) VehicleDiff {
	localIx := NewVehicleIndex(local)

	order := make([]string, 0, len(erp))
	latest := make(map[string]models.Vehicle, len(erp))
	for _, v := range erp {
		code := VehicleKey(v.Code)
		if code == "" {
			continue
		}
		if _, seen := latest[code]; !seen {
			order = append(order, code)
		}
		v.Code = code
		latest[code] = v
	}

	diff := VehicleDiff{New: []models.Vehicle{}, Conflicts: []VehicleConflict{}}
	for _, code := range order {
		v := latest[code]
		have, ok := localIx.Get(code)
		if !ok {
			diff.New = append(diff.New, v)
			continue
		}
		if !sameText(have.Plate, v.Plate) || !sameText(have.Type, v.Type) {
			diff.Conflicts = append(diff.Conflicts, VehicleConflict{Code: code, Local: have, ERP: v})
		}
	}
	return diff
}

func sameText(a, b string) bool {
	return strings.TrimSpace(a) == strings.TrimSpace(b)
}

// DiffCargo classifies enriched candidates against the local records, active
// and deleted alike. A key with an active record is unchanged whatever its
// values; a key with only deleted records can be reactivated; anything else is
// new. Local records are matched by their stored SyncKey.
func DiffCargo(cands []CargoCandidate, local []models.CargoRecord) CargoDiff {
	active := make(map[string]struct{}, len(local))
	deleted := make(map[string]models.CargoRecord)
	for _, r := range local {
		switch r.Status {
		case models.CargoStatusActive:
			active[r.SyncKey] = struct{}{}
		case models.CargoStatusDeleted:
			if prev, ok := deleted[r.SyncKey]; !ok || r.ID > prev.ID {
				deleted[r.SyncKey] = r
			}
		}
	}

	diff := CargoDiff{New: []CargoCandidate{}, Reactivations: []ReactivationCandidate{}}
	for _, c := range cands {
		if _, ok := active[c.Key]; ok {
			continue
		}
		if r, ok := deleted[c.Key]; ok {
			reason := ""
			if r.DeletionReason != nil {
				reason = *r.DeletionReason
			}
			diff.Reactivations = append(diff.Reactivations, ReactivationCandidate{
				Candidate:      c,
				LocalId:        r.ID,
				PreviousReason: reason,
			})
			continue
		}
		diff.New = append(diff.New, c)
	}
	return diff
}
