package erpsync

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/frete360/frete_backend/config"
	"github.com/frete360/frete_backend/models"
	"github.com/frete360/frete_backend/reconcile"
	"github.com/frete360/frete_backend/utils"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("frete360/erpsync")

// Store is the part of the local database the sync needs.
type Store interface {
	ListVehicles(ctx context.Context) ([]models.Vehicle, error)
	ListActiveCargo(ctx context.Context) ([]models.CargoRecord, error)
	ListDeletedCargo(ctx context.Context) ([]models.CargoRecord, error)
	ListFareParameters(ctx context.Context) ([]models.FareParameter, error)
	ApplyVehicleBatch(ctx context.Context, batch models.VehicleBatch, run *models.SyncRun) (*models.VehicleBatchResult, error)
	ApplyCargoBatch(ctx context.Context, batch models.CargoBatch, run *models.SyncRun) (*models.CargoBatchResult, error)
	RecordSyncRun(ctx context.Context, run *models.SyncRun) error
}

// Service runs the check (read-only) and sync (read-write) halves of the ERP
// reconciliation for vehicles and cargo records.
type Service struct {
	source       Source
	store        Store
	locker       Locker
	events       Publisher
	logger       *logrus.Logger
	maxRangeDays int
}

type Option func(*Service)

func WithLocker(l Locker) Option { return func(s *Service) { s.locker = l } }

func WithPublisher(p Publisher) Option { return func(s *Service) { s.events = p } }

func WithLogger(l *logrus.Logger) Option { return func(s *Service) { s.logger = l } }

func WithMaxRangeDays(days int) Option { return func(s *Service) { s.maxRangeDays = days } }

func NewService(source Source, store Store, opts ...Option) *Service {
	s := &Service{
		source:       source,
		store:        store,
		locker:       NewLocalLocker(),
		events:       noopPublisher{},
		logger:       config.GetLogger(),
		maxRangeDays: 45,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) MaxRangeDays() int {
	return s.maxRangeDays
}

func (s *Service) CheckVehicles(ctx context.Context) (*reconcile.VehicleDiff, error) {
	ctx, span := tracer.Start(ctx, "erpsync.CheckVehicles")
	defer span.End()

	erpVehicles, err := s.source.FetchVehicles(ctx)
	if err != nil {
		return nil, s.fail(span, "CheckVehicles", sourceError(err))
	}
	local, err := s.store.ListVehicles(ctx)
	if err != nil {
		return nil, s.fail(span, "CheckVehicles", err)
	}

	diff := reconcile.DiffVehicles(erpVehicles, local)
	span.SetAttributes(
		attribute.Int("erp.vehicles", len(erpVehicles)),
		attribute.Int("diff.new", len(diff.New)),
		attribute.Int("diff.conflicts", len(diff.Conflicts)),
	)
	return &diff, nil
}

func (s *Service) SyncVehicles(ctx context.Context, req SyncVehiclesRequest) (*SyncVehiclesResult, error) {
	ctx, span := tracer.Start(ctx, "erpsync.SyncVehicles")
	defer span.End()

	batch, err := reconcile.PlanVehicleBatch(req.New, req.Conflicts)
	if err != nil {
		return nil, s.fail(span, "SyncVehicles", err)
	}

	unlock, err := s.locker.TryLock(ctx, models.SyncEntityVehicles)
	if err != nil {
		return nil, s.fail(span, "SyncVehicles", err)
	}
	defer unlock()

	run := newSyncRun(ctx, models.SyncEntityVehicles)
	wctx := context.WithoutCancel(ctx)
	res, err := s.store.ApplyVehicleBatch(wctx, batch, run)
	if err != nil {
		s.recordFailedRun(wctx, run, err)
		return nil, s.fail(span, "SyncVehicles", err)
	}

	s.publish(wctx, run)
	span.SetAttributes(attribute.Int("sync.inserted", len(res.Inserted)), attribute.Int("sync.updated", len(res.Updated)))
	return &SyncVehiclesResult{
		Count:    len(res.Inserted) + len(res.Updated),
		Inserted: nonNil(res.Inserted),
		Updated:  nonNil(res.Updated),
		RunId:    run.ID,
	}, nil
}

// ValidateRange checks a cargo check window: end not before start and at
// most maxDays days apart.
func ValidateRange(start, end time.Time, maxDays int) error {
	if start.IsZero() || end.IsZero() {
		return utils.NewValidationError("sIni", "start and end dates are required")
	}
	if end.Before(start) {
		return utils.NewValidationError("sFim", "end date is before start date")
	}
	days := int(math.Ceil(end.Sub(start).Hours() / 24))
	if days > maxDays {
		return utils.NewValidationError("sFim", "date range of %d days exceeds the %d day limit", days, maxDays)
	}
	return nil
}

func (s *Service) CheckCargo(ctx context.Context, start, end time.Time) (*CheckCargoResult, error) {
	ctx, span := tracer.Start(ctx, "erpsync.CheckCargo", trace.WithAttributes(
		attribute.String("range.start", start.Format(time.DateOnly)),
		attribute.String("range.end", end.Format(time.DateOnly)),
	))
	defer span.End()

	start, end = utils.DateOnly(start), utils.DateOnly(end)
	if err := ValidateRange(start, end, s.maxRangeDays); err != nil {
		return nil, s.fail(span, "CheckCargo", err)
	}

	lines, err := s.source.FetchCargoLines(ctx, start, end)
	if err != nil {
		return nil, s.fail(span, "CheckCargo", sourceError(err))
	}
	lines, incomplete := reconcile.SplitIncomplete(lines)
	if len(incomplete) > 0 {
		s.logger.WithFields(logrus.Fields{
			"module":     "erpsync",
			"funcName":   "CheckCargo",
			"incomplete": len(incomplete),
		}).Warn("erp lines without invoice number or city left out of the check")
	}
	cands, err := reconcile.Aggregate(lines)
	if err != nil {
		return nil, s.fail(span, "CheckCargo", err)
	}

	vehicles, err := s.store.ListVehicles(ctx)
	if err != nil {
		return nil, s.fail(span, "CheckCargo", err)
	}
	params, err := s.store.ListFareParameters(ctx)
	if err != nil {
		return nil, s.fail(span, "CheckCargo", err)
	}

	enriched, err := reconcile.Enrich(cands, reconcile.NewVehicleIndex(vehicles), reconcile.NewFareIndex(params))
	var missing *utils.MissingVehicleError
	if errors.As(err, &missing) {
		span.SetAttributes(attribute.Int("missing.vehicles", len(missing.Codes)))
		return &CheckCargoResult{
			New:                 []reconcile.CargoCandidate{},
			Reactivations:       []reconcile.ReactivationCandidate{},
			MissingVehicleCodes: missing.Codes,
			IncompleteLines:     incomplete,
		}, nil
	}
	if err != nil {
		return nil, s.fail(span, "CheckCargo", err)
	}

	active, err := s.store.ListActiveCargo(ctx)
	if err != nil {
		return nil, s.fail(span, "CheckCargo", err)
	}
	deleted, err := s.store.ListDeletedCargo(ctx)
	if err != nil {
		return nil, s.fail(span, "CheckCargo", err)
	}

	diff := reconcile.DiffCargo(enriched, append(active, deleted...))
	span.SetAttributes(
		attribute.Int("erp.lines", len(lines)),
		attribute.Int("diff.new", len(diff.New)),
		attribute.Int("diff.reactivations", len(diff.Reactivations)),
		attribute.Int("erp.incomplete", len(incomplete)),
	)
	return &CheckCargoResult{
		New:                 diff.New,
		Reactivations:       diff.Reactivations,
		MissingVehicleCodes: []string{},
		IncompleteLines:     incomplete,
	}, nil
}

func (s *Service) SyncCargo(ctx context.Context, req SyncCargoRequest) (*SyncCargoResult, error) {
	ctx, span := tracer.Start(ctx, "erpsync.SyncCargo")
	defer span.End()

	batch, err := reconcile.PlanCargoBatch(req.New, req.Reactivations)
	if err != nil {
		return nil, s.fail(span, "SyncCargo", err)
	}

	unlock, err := s.locker.TryLock(ctx, models.SyncEntityCargo)
	if err != nil {
		return nil, s.fail(span, "SyncCargo", err)
	}
	defer unlock()

	run := newSyncRun(ctx, models.SyncEntityCargo)
	wctx := context.WithoutCancel(ctx)
	res, err := s.store.ApplyCargoBatch(wctx, batch, run)
	if err != nil {
		s.recordFailedRun(wctx, run, err)
		return nil, s.fail(span, "SyncCargo", err)
	}

	s.publish(wctx, run)
	span.SetAttributes(attribute.Int("sync.inserted", len(res.Inserted)), attribute.Int("sync.reactivated", len(res.Reactivated)))
	return &SyncCargoResult{
		Count:       len(res.Inserted) + len(res.Reactivated),
		Inserted:    nonNil(res.Inserted),
		Reactivated: nonNil(res.Reactivated),
		RunId:       run.ID,
	}, nil
}

func newSyncRun(ctx context.Context, entity models.SyncEntity) *models.SyncRun {
	return &models.SyncRun{
		Entity:        entity,
		CorrelationId: utils.CorrelationIdOrNew(ctx),
		TriggeredBy:   utils.UsernameOrSystem(ctx),
		StartedAt:     time.Now(),
	}
}

// recordFailedRun is best effort; the batch error is what the caller sees.
func (s *Service) recordFailedRun(ctx context.Context, run *models.SyncRun, cause error) {
	run.Finish(0, 0, cause)
	if err := s.store.RecordSyncRun(ctx, run); err != nil {
		config.LogError(s.logger, "erpsync", "recordFailedRun", "store failed sync run", run.Entity, err)
	}
}

func (s *Service) publish(ctx context.Context, run *models.SyncRun) {
	ev := SyncEvent{
		Entity:        run.Entity,
		RunId:         run.ID,
		Inserted:      run.Inserted,
		Updated:       run.Updated,
		CorrelationId: run.CorrelationId,
		TriggeredBy:   run.TriggeredBy,
		FinishedAt:    run.FinishedAt,
	}
	if err := s.events.PublishSyncCompleted(ctx, ev); err != nil {
		s.logger.WithFields(logrus.Fields{
			"field":          "publish",
			"entity":         run.Entity,
			"run_id":         run.ID,
			"correlation_id": run.CorrelationId,
		}).Warn("sync committed but event not published: " + err.Error())
	}
}

func (s *Service) fail(span trace.Span, funcName string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	var ve *utils.ValidationError
	var cu *utils.ConflictUnresolvedError
	switch {
	case errors.As(err, &ve), errors.As(err, &cu), errors.Is(err, utils.ErrSyncInProgress):
		s.logger.WithFields(logrus.Fields{"module": "erpsync", "funcName": funcName}).Info(err.Error())
	default:
		config.LogError(s.logger, "erpsync", funcName, "", nil, err)
	}
	return err
}

func sourceError(err error) error {
	var su *utils.SourceUnavailableError
	if errors.As(err, &su) {
		return err
	}
	return &utils.SourceUnavailableError{Err: err}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
