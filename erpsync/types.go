package erpsync

import (
	"time"

	"github.com/frete360/frete_backend/models"
	"github.com/frete360/frete_backend/reconcile"
)

type SyncVehiclesRequest struct {
	New       []models.Vehicle            `json:"new"`
	Conflicts []reconcile.VehicleConflict `json:"conflicts"`
}

type SyncVehiclesResult struct {
	Count    int              `json:"count"`
	Inserted []models.Vehicle `json:"inserted"`
	Updated  []models.Vehicle `json:"updated"`
	RunId    uint             `json:"run_id"`
}

// CheckCargoRequest carries the ERP emission-date window, inclusive on both ends.
type CheckCargoRequest struct {
	Start string `json:"sIni" form:"sIni" binding:"required"`
	End   string `json:"sFim" form:"sFim" binding:"required"`
}

// CheckCargoResult either lists the delta or, when MissingVehicleCodes is not
// empty, only the vehicle codes that must be registered first. ERP lines
// without an invoice number or a city are listed in IncompleteLines and never
// reach New.
type CheckCargoResult struct {
	New                 []reconcile.CargoCandidate        `json:"new"`
	Reactivations       []reconcile.ReactivationCandidate `json:"reactivations"`
	MissingVehicleCodes []string                          `json:"missing_vehicle_codes"`
	IncompleteLines     []reconcile.ERPCargoLine          `json:"incomplete_lines"`
}

type SyncCargoRequest struct {
	New           []reconcile.CargoCandidate        `json:"new"`
	Reactivations []reconcile.ReactivationCandidate `json:"reactivations"`
}

type SyncCargoResult struct {
	Count       int                  `json:"count"`
	Inserted    []models.CargoRecord `json:"inserted"`
	Reactivated []models.CargoRecord `json:"reactivated"`
	RunId       uint                 `json:"run_id"`
}

// SyncEvent is published after a sync committed.
type SyncEvent struct {
	Entity        models.SyncEntity `json:"entity"`
	RunId         uint              `json:"run_id"`
	Inserted      int               `json:"inserted"`
	Updated       int               `json:"updated"`
	CorrelationId string            `json:"correlation_id"`
	TriggeredBy   string            `json:"triggered_by"`
	FinishedAt    time.Time         `json:"finished_at"`
}
