package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/frete360/frete_backend/utils"
	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store is the local Frete360 database. All ERP sync writes go through
// ApplyVehicleBatch / ApplyCargoBatch so each call commits or rolls back as one unit.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) DB() *gorm.DB {
	return s.db
}

/* DB fetching */

// fetch one row by primary key, preloading the given associations
// (may return RecordNotFound)
func fetchByID[T any](ctx context.Context, db *gorm.DB, id uint, associations ...string) (*T, error) {
	q := db.WithContext(ctx)
	for _, field := range associations {
		q = q.Preload(field)
	}
	var result T
	if err := q.First(&result, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, &utils.PersistenceError{Op: "read", Err: err}
	}
	return &result, nil
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) && me.Number == 1062 {
		return true
	}
	// sqlite, when the dialector does not translate errors
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

/* Vehicles */

func (s *Store) ListVehicles(ctx context.Context) ([]Vehicle, error) {
	var vehicles []Vehicle
	if err := s.db.WithContext(ctx).Order("code").Find(&vehicles).Error; err != nil {
		return nil, &utils.PersistenceError{Op: "read", Record: "vehicles", Err: err}
	}
	return vehicles, nil
}

func (s *Store) GetVehicle(ctx context.Context, id uint) (*Vehicle, error) {
	return fetchByID[Vehicle](ctx, s.db, id)
}

func (s *Store) FindVehicleByCode(ctx context.Context, code string) (*Vehicle, error) {
	var v Vehicle
	err := s.db.WithContext(ctx).Where("code = ?", strings.TrimSpace(code)).Take(&v).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrorRecordNotFound
	}
	if err != nil {
		return nil, &utils.PersistenceError{Op: "read", Record: "vehicle " + code, Err: err}
	}
	return &v, nil
}

func (s *Store) CreateVehicle(ctx context.Context, v *Vehicle) error {
	v.ID = 0
	v.normalize()
	if v.Code == "" {
		return utils.NewValidationError("code", "vehicle code is required")
	}
	if err := s.db.WithContext(ctx).Create(v).Error; err != nil {
		return vehicleWriteError("insert", v.Code, err)
	}
	return nil
}

// UpdateVehicle replaces the descriptive fields. The code is the vehicle's
// identity and cannot be changed.
func (s *Store) UpdateVehicle(ctx context.Context, id uint, input *Vehicle) (*Vehicle, error) {
	input.normalize()
	var updated *Vehicle
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		old, err := fetchByID[Vehicle](ctx, tx, id)
		if err != nil {
			return err
		}
		if input.Code != "" && input.Code != old.Code {
			return utils.NewValidationError("code", "vehicle code cannot be changed")
		}
		if err := tx.Model(old).Updates(map[string]interface{}{
			"plate":       input.Plate,
			"type":        input.Type,
			"driver_name": input.DriverName,
			"capacity_kg": input.CapacityKg,
			"active":      input.Active,
		}).Error; err != nil {
			return vehicleWriteError("update", old.Code, err)
		}
		updated, err = fetchByID[Vehicle](ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// UpsertVehicles is the spreadsheet import path: rows with a known code
// replace the stored attributes, the rest are inserted.
func (s *Store) UpsertVehicles(ctx context.Context, vehicles []Vehicle) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range vehicles {
			v := &vehicles[i]
			v.ID = 0
			v.normalize()
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "code"}},
				DoUpdates: clause.AssignmentColumns([]string{"plate", "type", "driver_name", "capacity_kg", "active", "updated_at"}),
			}).Create(v).Error
			if err != nil {
				return vehicleWriteError("upsert", v.Code, err)
			}
		}
		return nil
	})
}

func vehicleWriteError(op, code string, err error) error {
	if isDuplicateKey(err) {
		err = errors.New("duplicate vehicle code")
	}
	return &utils.PersistenceError{Op: op, Record: "vehicle " + code, Err: err}
}

/* Cargo */

func (s *Store) listCargoByStatus(ctx context.Context, status CargoStatus) ([]CargoRecord, error) {
	var records []CargoRecord
	err := s.db.WithContext(ctx).
		Where("status = ?", status).
		Order("invoice_date, id").
		Find(&records).Error
	if err != nil {
		return nil, &utils.PersistenceError{Op: "read", Record: string(status) + " cargo", Err: err}
	}
	return records, nil
}

func (s *Store) ListActiveCargo(ctx context.Context) ([]CargoRecord, error) {
	return s.listCargoByStatus(ctx, CargoStatusActive)
}

// ListDeletedCargo is only meant for the reactivation check.
func (s *Store) ListDeletedCargo(ctx context.Context) ([]CargoRecord, error) {
	return s.listCargoByStatus(ctx, CargoStatusDeleted)
}

// ListCargoByIDs returns the records in id order; unknown ids are skipped.
func (s *Store) ListCargoByIDs(ctx context.Context, ids []uint) ([]CargoRecord, error) {
	if len(ids) == 0 {
		return []CargoRecord{}, nil
	}
	var records []CargoRecord
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Order("id").Find(&records).Error; err != nil {
		return nil, &utils.PersistenceError{Op: "read", Record: "cargo", Err: err}
	}
	return records, nil
}

func (s *Store) GetCargo(ctx context.Context, id uint) (*CargoRecord, error) {
	return fetchByID[CargoRecord](ctx, s.db, id)
}

// CreateCargo inserts manual or XML records in one transaction. Each record
// must carry its SyncKey; a key that is already active fails the whole call.
func (s *Store) CreateCargo(ctx context.Context, records []CargoRecord) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range records {
			rec := &records[i]
			rec.ID = 0
			rec.Status = CargoStatusActive
			rec.DeletionReason = nil
			if err := insertCargo(tx, rec); err != nil {
				return err
			}
		}
		return nil
	})
}

func insertCargo(tx *gorm.DB, rec *CargoRecord) error {
	var active int64
	if err := tx.Model(&CargoRecord{}).
		Where("sync_key = ? AND status = ?", rec.SyncKey, CargoStatusActive).
		Count(&active).Error; err != nil {
		return &utils.PersistenceError{Op: "insert", Record: rec.String(), Err: err}
	}
	if active > 0 {
		return &utils.PersistenceError{Op: "insert", Record: rec.String(), Err: errors.New("an active record with this invoice and city already exists")}
	}
	if err := tx.Create(rec).Error; err != nil {
		var ve *utils.ValidationError
		if errors.As(err, &ve) {
			return ve
		}
		return &utils.PersistenceError{Op: "insert", Record: rec.String(), Err: err}
	}
	return nil
}

// SoftDeleteCargo marks an active record deleted. The reason is mandatory.
func (s *Store) SoftDeleteCargo(ctx context.Context, id uint, reason string) (*CargoRecord, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, utils.NewValidationError("reason", "a deletion reason is required")
	}
	var deleted *CargoRecord
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rec, err := fetchByID[CargoRecord](ctx, tx, id)
		if err != nil {
			return err
		}
		if rec.Status == CargoStatusDeleted {
			return utils.NewValidationError("id", "%s is already deleted", rec.String())
		}
		res := tx.Model(&CargoRecord{}).
			Where("id = ? AND status = ?", id, CargoStatusActive).
			Updates(map[string]interface{}{
				"status":          CargoStatusDeleted,
				"deletion_reason": reason,
				"updated_at":      time.Now(),
			})
		if res.Error != nil {
			return &utils.PersistenceError{Op: "delete", Record: rec.String(), Err: res.Error}
		}
		if res.RowsAffected == 0 {
			return &utils.PersistenceError{Op: "delete", Record: rec.String(), Err: utils.ErrorRecordNotFound}
		}
		deleted, err = fetchByID[CargoRecord](ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}
