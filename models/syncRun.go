package models

import (
	"context"
	"time"

	"github.com/frete360/frete_backend/utils"
)

// SyncRun is the audit row of one ERP sync call. Successful runs are written in
// the same transaction as the batch they describe.
type SyncRun struct {
	ID            uint       `gorm:"primary_key" json:"id"`
	Entity        SyncEntity `gorm:"size:20;not null;index" json:"entity"`
	Status        string     `gorm:"size:20;not null" json:"status"`
	Inserted      int        `json:"inserted"`
	Updated       int        `json:"updated"`
	ErrorMessage  *string    `gorm:"type:text" json:"error_message"`
	CorrelationId string     `gorm:"size:64;index" json:"correlation_id"`
	TriggeredBy   string     `gorm:"size:100" json:"triggered_by"`
	StartedAt     time.Time  `json:"started_at"`
	FinishedAt    time.Time  `json:"finished_at"`
	DurationMs    int64      `json:"duration_ms"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

// Finish stamps the run; err == nil marks it successful.
func (r *SyncRun) Finish(inserted, updated int, err error) {
	r.FinishedAt = time.Now()
	r.DurationMs = r.FinishedAt.Sub(r.StartedAt).Milliseconds()
	r.Inserted = inserted
	r.Updated = updated
	if err != nil {
		msg := err.Error()
		r.Status = SyncRunStatusFailed
		r.ErrorMessage = &msg
		r.Inserted, r.Updated = 0, 0
		return
	}
	r.Status = SyncRunStatusSuccess
	r.ErrorMessage = nil
}

func (s *Store) RecordSyncRun(ctx context.Context, run *SyncRun) error {
	run.ID = 0
	if err := s.db.WithContext(ctx).Create(run).Error; err != nil {
		return &utils.PersistenceError{Op: "insert", Record: "sync run", Err: err}
	}
	return nil
}

// ListSyncRuns returns the latest runs first. An empty entity lists both types.
func (s *Store) ListSyncRuns(ctx context.Context, entity SyncEntity, limit int) ([]SyncRun, error) {
	switch {
	case limit <= 0:
		limit = 50
	case limit > 200:
		limit = 200
	}
	q := s.db.WithContext(ctx).Order("id desc").Limit(limit)
	if entity != "" {
		q = q.Where("entity = ?", entity)
	}
	var runs []SyncRun
	if err := q.Find(&runs).Error; err != nil {
		return nil, &utils.PersistenceError{Op: "read", Record: "sync runs", Err: err}
	}
	return runs, nil
}
