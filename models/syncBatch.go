package models

import (
	"context"
	"errors"
	"time"

	"github.com/frete360/frete_backend/utils"
	"gorm.io/gorm"
)

// VehicleBatch is a fully resolved vehicle sync: codes to insert and codes
// whose plate, type, driver, capacity and active flag are overwritten.
type VehicleBatch struct {
	Insert    []Vehicle
	Overwrite []Vehicle
}

type VehicleBatchResult struct {
	Inserted []Vehicle
	Updated  []Vehicle
}

// CargoBatch is a fully resolved cargo sync. Reactivate entries identify the
// deleted record by SyncKey and carry the ERP value, date and distance.
type CargoBatch struct {
	Insert     []CargoRecord
	Reactivate []CargoRecord
}

type CargoBatchResult struct {
	Inserted    []CargoRecord
	Reactivated []CargoRecord
}

// ApplyVehicleBatch writes the batch in one transaction: inserts first, then
// overwrites. Any failure, including an overwrite that matches no row, rolls
// back everything. When run is not nil it is finished and stored in the same
// transaction.
func (s *Store) ApplyVehicleBatch(ctx context.Context, batch VehicleBatch, run *SyncRun) (*VehicleBatchResult, error) {
	result := &VehicleBatchResult{}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range batch.Insert {
			v := batch.Insert[i]
			v.ID = 0
			v.normalize()
			if err := tx.Create(&v).Error; err != nil {
				return vehicleWriteError("insert", v.Code, err)
			}
			result.Inserted = append(result.Inserted, v)
		}

		for i := range batch.Overwrite {
			v := batch.Overwrite[i]
			v.normalize()
			res := tx.Model(&Vehicle{}).
				Where("code = ?", v.Code).
				Updates(map[string]interface{}{
					"plate":       v.Plate,
					"type":        v.Type,
					"driver_name": v.DriverName,
					"capacity_kg": v.CapacityKg,
					"active":      v.Active,
					"updated_at":  time.Now(),
				})
			if res.Error != nil {
				return vehicleWriteError("update", v.Code, res.Error)
			}
			if res.RowsAffected == 0 {
				return vehicleWriteError("update", v.Code, utils.ErrorRecordNotFound)
			}
			var fresh Vehicle
			if err := tx.Where("code = ?", v.Code).Take(&fresh).Error; err != nil {
				return vehicleWriteError("update", v.Code, err)
			}
			result.Updated = append(result.Updated, fresh)
		}

		if run != nil {
			run.Finish(len(result.Inserted), len(result.Updated), nil)
			run.ID = 0
			if err := tx.Create(run).Error; err != nil {
				return &utils.PersistenceError{Op: "insert", Record: "sync run", Err: err}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ApplyCargoBatch inserts new ERP records (origin ERP, status active) and then
// reactivates the chosen soft-deleted records, all in one transaction.
//
// Reactivation targets the most recently created deleted record of the key and
// fails if the key has become active in the meantime; the check result it was
// built from is stale in that case.
func (s *Store) ApplyCargoBatch(ctx context.Context, batch CargoBatch, run *SyncRun) (*CargoBatchResult, error) {
	result := &CargoBatchResult{}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range batch.Insert {
			rec := batch.Insert[i]
			rec.ID = 0
			rec.Origin = OriginERP
			rec.Status = CargoStatusActive
			rec.DeletionReason = nil
			if err := insertCargo(tx, &rec); err != nil {
				return err
			}
			result.Inserted = append(result.Inserted, rec)
		}

		for _, r := range batch.Reactivate {
			fresh, err := reactivateCargo(tx, r)
			if err != nil {
				return err
			}
			result.Reactivated = append(result.Reactivated, *fresh)
		}

		if run != nil {
			run.Finish(len(result.Inserted), len(result.Reactivated), nil)
			run.ID = 0
			if err := tx.Create(run).Error; err != nil {
				return &utils.PersistenceError{Op: "insert", Record: "sync run", Err: err}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func reactivateCargo(tx *gorm.DB, r CargoRecord) (*CargoRecord, error) {
	fail := func(err error) (*CargoRecord, error) {
		return nil, &utils.PersistenceError{Op: "reactivate", Record: r.String(), Err: err}
	}

	var active int64
	if err := tx.Model(&CargoRecord{}).
		Where("sync_key = ? AND status = ?", r.SyncKey, CargoStatusActive).
		Count(&active).Error; err != nil {
		return fail(err)
	}
	if active > 0 {
		return fail(errors.New("an active record with this invoice and city already exists"))
	}

	var target CargoRecord
	err := tx.Where("sync_key = ? AND status = ?", r.SyncKey, CargoStatusDeleted).
		Order("id desc").
		Take(&target).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fail(utils.ErrorRecordNotFound)
	}
	if err != nil {
		return fail(err)
	}

	res := tx.Model(&CargoRecord{}).
		Where("id = ? AND status = ?", target.ID, CargoStatusDeleted).
		Updates(map[string]interface{}{
			"status":          CargoStatusActive,
			"deletion_reason": nil,
			"value":           r.Value.Round(2),
			"invoice_date":    r.InvoiceDate,
			"distance_km":     r.DistanceKm,
			"updated_at":      time.Now(),
		})
	if res.Error != nil {
		return fail(res.Error)
	}
	if res.RowsAffected == 0 {
		return fail(utils.ErrorRecordNotFound)
	}

	var fresh CargoRecord
	if err := tx.First(&fresh, target.ID).Error; err != nil {
		return fail(err)
	}
	return &fresh, nil
}
