package worker

import (
	"context"
	"errors"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/shopfloor/internal/database"
	"github.com/Additional-Code/shopfloor/internal/entity"
	"github.com/Additional-Code/shopfloor/internal/repository"
)

var repoTracer = otel.Tracer("github.com/Additional-Code/shopfloor/repository/worker")

// ErrNotFound is returned when a worker, attendance row or sync state is missing.
var ErrNotFound = errors.New("worker record not found")

// Repository covers workers, their tasks, attendance and sync bookkeeping.
type Repository struct {
	conns *database.Connections
}

// NewRepository wires a worker repository.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{conns: conns}
}

// GetByID loads a worker.
func (r *Repository) GetByID(ctx context.Context, id int64) (*entity.Worker, error) {
	ctx, span := repoTracer.Start(ctx, "WorkerRepository.GetByID", trace.WithAttributes(attribute.Int64("worker.id", id)))
	defer span.End()

	w := new(entity.Worker)
	q := r.conns.ReaderFor(ctx).NewSelect().Model(w).Where("id = ?", id)
	err := q.Scan(ctx)
	if repository.IsNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, repository.Fail(span, err, q, "select worker failed")
	}
	return w, nil
}

// GetByCode loads a worker by employee code.
func (r *Repository) GetByCode(ctx context.Context, code string) (*entity.Worker, error) {
	ctx, span := repoTracer.Start(ctx, "WorkerRepository.GetByCode", trace.WithAttributes(attribute.String("worker.code", code)))
	defer span.End()

	w := new(entity.Worker)
	q := r.conns.ReaderFor(ctx).NewSelect().Model(w).Where("employee_code = ?", code)
	err := q.Scan(ctx)
	if repository.IsNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, repository.Fail(span, err, q, "select worker failed")
	}
	return w, nil
}

// ListActive returns all active workers.
func (r *Repository) ListActive(ctx context.Context) ([]entity.Worker, error) {
	ctx, span := repoTracer.Start(ctx, "WorkerRepository.ListActive")
	defer span.End()

	var workers []entity.Worker
	q := r.conns.ReaderFor(ctx).NewSelect().Model(&workers).Where("is_active = ?", true).Order("id ASC")
	if err := q.Scan(ctx); err != nil {
		return nil, repository.Fail(span, err, q, "select workers failed")
	}
	return workers, nil
}

// FindQualified returns active workers whose specialty matches the stage, least loaded first.
func (r *Repository) FindQualified(ctx context.Context, specialty string) ([]entity.Worker, error) {
	ctx, span := repoTracer.Start(ctx, "WorkerRepository.FindQualified", trace.WithAttributes(attribute.String("specialty", specialty)))
	defer span.End()

	var workers []entity.Worker
	db := r.conns.ReaderFor(ctx)
	load := db.NewSelect().Model((*entity.WorkerTask)(nil)).
		ColumnExpr("COUNT(*)").
		Where("wt.worker_id = w.id").
		Where("wt.status = ?", entity.TaskInProgress)
	q := db.NewSelect().Model(&workers).
		Where("w.is_active = ?", true).
		Where("w.specialty = ?", specialty).
		OrderExpr("(?) ASC", load).
		Order("w.id ASC")
	if err := q.Scan(ctx); err != nil {
		return nil, repository.Fail(span, err, q, "select qualified workers failed")
	}
	return workers, nil
}

// Save inserts a new worker or updates an existing one by employee code.
func (r *Repository) Save(ctx context.Context, w *entity.Worker) error {
	ctx, span := repoTracer.Start(ctx, "WorkerRepository.Save", trace.WithAttributes(attribute.String("worker.code", w.EmployeeCode)))
	defer span.End()

	now := time.Now().UTC()
	w.UpdatedAt = now
	db := r.conns.WriterFor(ctx)
	if w.ID == 0 {
		if w.CreatedAt.IsZero() {
			w.CreatedAt = now
		}
		q := db.NewInsert().Model(w)
		if _, err := q.Exec(ctx); err != nil {
			return repository.Fail(span, err, q, "insert worker failed")
		}
		return nil
	}
	q := db.NewUpdate().Model(w).WherePK().ExcludeColumn("created_at")
	if _, err := q.Exec(ctx); err != nil {
		return repository.Fail(span, err, q, "update worker failed")
	}
	return nil
}

// HasTaskInStatus reports whether the worker has any task in status.
func (r *Repository) HasTaskInStatus(ctx context.Context, workerID int64, status string) (bool, error) {
	ctx, span := repoTracer.Start(ctx, "WorkerRepository.HasTaskInStatus", trace.WithAttributes(attribute.Int64("worker.id", workerID)))
	defer span.End()

	q := r.conns.ReaderFor(ctx).NewSelect().Model((*entity.WorkerTask)(nil)).
		Where("worker_id = ?", workerID).
		Where("status = ?", status)
	ok, err := q.Exists(ctx)
	if err != nil {
		return false, repository.Fail(span, err, q, "select worker tasks failed")
	}
	return ok, nil
}

// CreateTask assigns a task.
func (r *Repository) CreateTask(ctx context.Context, task *entity.WorkerTask) error {
	ctx, span := repoTracer.Start(ctx, "WorkerRepository.CreateTask", trace.WithAttributes(
		attribute.Int64("worker.id", task.WorkerID),
		attribute.Int64("order.id", task.OrderID),
	))
	defer span.End()

	q := r.conns.WriterFor(ctx).NewInsert().Model(task)
	if _, err := q.Exec(ctx); err != nil {
		return repository.Fail(span, err, q, "insert worker task failed")
	}
	return nil
}

// CompleteTasks closes every open task of an order stage and returns how many were closed.
func (r *Repository) CompleteTasks(ctx context.Context, orderID int64, stage string, at time.Time) (int, error) {
	ctx, span := repoTracer.Start(ctx, "WorkerRepository.CompleteTasks", trace.WithAttributes(
		attribute.Int64("order.id", orderID),
		attribute.String("stage", stage),
	))
	defer span.End()

	q := r.conns.WriterFor(ctx).NewUpdate().Model((*entity.WorkerTask)(nil)).
		Set("status = ?", entity.TaskCompleted).
		Set("completed_at = ?", at).
		Where("order_id = ?", orderID).
		Where("stage = ?", stage).
		Where("status <> ?", entity.TaskCompleted)
	res, err := q.Exec(ctx)
	if err != nil {
		return 0, repository.Fail(span, err, q, "complete worker tasks failed")
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// AttendanceForDay returns a worker's sessions on day, ordered by check-in.
func (r *Repository) AttendanceForDay(ctx context.Context, workerCode string, day time.Time) ([]entity.Attendance, error) {
	ctx, span := repoTracer.Start(ctx, "WorkerRepository.AttendanceForDay", trace.WithAttributes(attribute.String("worker.code", workerCode)))
	defer span.End()

	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	var rows []entity.Attendance
	q := r.conns.ReaderFor(ctx).NewSelect().Model(&rows).
		Where("worker_code = ?", workerCode).
		Where("check_in >= ?", start).
		Where("check_in < ?", start.AddDate(0, 0, 1)).
		Order("check_in ASC")
	if err := q.Scan(ctx); err != nil {
		return nil, repository.Fail(span, err, q, "select attendance failed")
	}
	return rows, nil
}

// CreateAttendance opens a session.
func (r *Repository) CreateAttendance(ctx context.Context, a *entity.Attendance) error {
	ctx, span := repoTracer.Start(ctx, "WorkerRepository.CreateAttendance", trace.WithAttributes(attribute.String("worker.code", a.WorkerCode)))
	defer span.End()

	q := r.conns.WriterFor(ctx).NewInsert().Model(a)
	if _, err := q.Exec(ctx); err != nil {
		return repository.Fail(span, err, q, "insert attendance failed")
	}
	return nil
}

// CloseAttendance stamps check_out on an open session.
func (r *Repository) CloseAttendance(ctx context.Context, id int64, at time.Time) error {
	ctx, span := repoTracer.Start(ctx, "WorkerRepository.CloseAttendance", trace.WithAttributes(attribute.Int64("attendance.id", id)))
	defer span.End()

	q := r.conns.WriterFor(ctx).NewUpdate().Model((*entity.Attendance)(nil)).
		Set("check_out = ?", at).
		Where("id = ?", id).
		Where("check_out IS NULL")
	res, err := q.Exec(ctx)
	if err != nil {
		return repository.Fail(span, err, q, "update attendance failed")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetSyncState loads the bookkeeping row of an import job.
func (r *Repository) GetSyncState(ctx context.Context, job string) (*entity.SyncState, error) {
	ctx, span := repoTracer.Start(ctx, "WorkerRepository.GetSyncState", trace.WithAttributes(attribute.String("job", job)))
	defer span.End()

	s := new(entity.SyncState)
	q := r.conns.ReaderFor(ctx).NewSelect().Model(s).Where("job = ?", job)
	err := q.Scan(ctx)
	if repository.IsNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, repository.Fail(span, err, q, "select sync state failed")
	}
	return s, nil
}

// SaveSyncState upserts the bookkeeping row of an import job.
func (r *Repository) SaveSyncState(ctx context.Context, s *entity.SyncState) error {
	ctx, span := repoTracer.Start(ctx, "WorkerRepository.SaveSyncState", trace.WithAttributes(attribute.String("job", s.Job)))
	defer span.End()

	s.UpdatedAt = time.Now().UTC()
	q := upsertSyncState(r.conns.WriterFor(ctx), s)
	if _, err := q.Exec(ctx); err != nil {
		return repository.Fail(span, err, q, "upsert sync state failed")
	}
	return nil
}

// upsertSyncState builds the insert-or-update for a sync state row in the
// connection's dialect.
func upsertSyncState(db bun.IDB, s *entity.SyncState) *bun.InsertQuery {
	q := db.NewInsert().Model(s)
	if db.Dialect().Name() == dialect.MySQL {
		return q.On("DUPLICATE KEY UPDATE").
			Set("last_synced_at = VALUES(last_synced_at)").
			Set("last_count = VALUES(last_count)").
			Set("last_error = VALUES(last_error)").
			Set("updated_at = VALUES(updated_at)")
	}
	return q.On("CONFLICT (job) DO UPDATE").
		Set("last_synced_at = EXCLUDED.last_synced_at").
		Set("last_count = EXCLUDED.last_count").
		Set("last_error = EXCLUDED.last_error").
		Set("updated_at = EXCLUDED.updated_at")
}
