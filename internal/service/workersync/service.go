package workersync

import (
	"context"
	"errors"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/shopfloor/internal/biometric"
	"github.com/Additional-Code/shopfloor/internal/config"
	"github.com/Additional-Code/shopfloor/internal/database"
	"github.com/Additional-Code/shopfloor/internal/entity"
	"github.com/Additional-Code/shopfloor/internal/messaging"
	"github.com/Additional-Code/shopfloor/internal/observability"
	workerrepo "github.com/Additional-Code/shopfloor/internal/repository/worker"
	"github.com/Additional-Code/shopfloor/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/Additional-Code/shopfloor/service/workersync")

// JobName keys the sync bookkeeping row.
const JobName = "biometric_workers"

// Source reads employees from the attendance gateway.
type Source interface {
	GetEmployees(ctx context.Context, limit int) ([]biometric.Employee, error)
	GetEmployee(ctx context.Context, id string) (*biometric.Employee, error)
}

// Workers persists imported workers and job bookkeeping.
type Workers interface {
	GetByCode(ctx context.Context, code string) (*entity.Worker, error)
	Save(ctx context.Context, w *entity.Worker) error
	GetSyncState(ctx context.Context, job string) (*entity.SyncState, error)
	SaveSyncState(ctx context.Context, s *entity.SyncState) error
}

// Service imports workers from the biometric gateway.
type Service struct {
	source    Source
	workers   Workers
	tx        database.Transactor
	payroll   config.Payroll
	publisher messaging.Publisher
	metrics   *observability.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Source     Source
	Workers    Workers
	Transactor database.Transactor
	Config     config.Config
	Publisher  messaging.Publisher    `optional:"true"`
	Metrics    *observability.Metrics `optional:"true"`
	Logger     *zap.Logger
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		source:    p.Source,
		workers:   p.Workers,
		tx:        p.Transactor,
		payroll:   p.Config.Payroll,
		publisher: p.Publisher,
		metrics:   p.Metrics,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Skipped is an employee record that could not be imported.
type Skipped struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

// Report summarises one import run.
type Report struct {
	Fetched  int       `json:"fetched"`
	Created  int       `json:"created"`
	Updated  int       `json:"updated"`
	Skipped  []Skipped `json:"skipped,omitempty"`
	SyncedAt time.Time `json:"synced_at"`
}

// Imported is the total number of workers written.
func (r Report) Imported() int {
	return r.Created + r.Updated
}

// SyncedEvent is published after a successful import.
type SyncedEvent struct {
	Created  int       `json:"created"`
	Updated  int       `json:"updated"`
	Skipped  int       `json:"skipped"`
	SyncedAt time.Time `json:"synced_at"`
}

// SyncWorkers imports up to limit employees, upserting by employee code.
func (s *Service) SyncWorkers(ctx context.Context, limit int) (*Report, error) {
	ctx, span := serviceTracer.Start(ctx, "WorkerSyncService.SyncWorkers", trace.WithAttributes(attribute.Int("limit", limit)))
	defer span.End()

	employees, err := s.source.GetEmployees(ctx, limit)
	if err != nil {
		s.recordFailure(ctx, err)
		return nil, errorbank.Internal("biometric source unavailable", errorbank.WithCause(err))
	}

	report := &Report{Fetched: len(employees), SyncedAt: s.now()}
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		for i, e := range employees {
			profile, err := biometric.Normalize(e)
			if err != nil {
				report.Skipped = append(report.Skipped, Skipped{Index: i, Reason: err.Error()})
				continue
			}
			created, err := s.upsert(ctx, profile)
			if err != nil {
				return err
			}
			if created {
				report.Created++
			} else {
				report.Updated++
			}
		}
		synced := report.SyncedAt
		return s.workers.SaveSyncState(ctx, &entity.SyncState{
			Job:          JobName,
			LastSyncedAt: &synced,
			LastCount:    report.Imported(),
		})
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.metrics.WorkersSynced(ctx, report.Imported())
	s.logger.Info("workers synced",
		zap.Int("fetched", report.Fetched),
		zap.Int("created", report.Created),
		zap.Int("updated", report.Updated),
		zap.Int("skipped", len(report.Skipped)),
	)
	s.publish(ctx, report)
	return report, nil
}

// SyncWorker imports a single employee by gateway id.
func (s *Service) SyncWorker(ctx context.Context, employeeID string) (*entity.Worker, error) {
	ctx, span := serviceTracer.Start(ctx, "WorkerSyncService.SyncWorker", trace.WithAttributes(attribute.String("employee.id", employeeID)))
	defer span.End()

	e, err := s.source.GetEmployee(ctx, employeeID)
	if errors.Is(err, biometric.ErrEmployeeNotFound) {
		return nil, errorbank.NotFound("employee not found", errorbank.WithModel("employee", employeeID))
	}
	if err != nil {
		return nil, errorbank.Internal("biometric source unavailable", errorbank.WithCause(err))
	}
	profile, err := biometric.Normalize(*e)
	if err != nil {
		return nil, errorbank.Unprocessable("employee record cannot be imported", errorbank.WithCause(err), errorbank.WithModel("employee", employeeID))
	}

	var worker *entity.Worker
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := s.upsert(ctx, profile); err != nil {
			return err
		}
		w, err := s.workers.GetByCode(ctx, profile.EmployeeCode)
		if err != nil {
			return err
		}
		worker = w
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	s.metrics.WorkersSynced(ctx, 1)
	return worker, nil
}

// LastSync returns the bookkeeping row of the import job.
func (s *Service) LastSync(ctx context.Context) (*entity.SyncState, error) {
	state, err := s.workers.GetSyncState(ctx, JobName)
	if errors.Is(err, workerrepo.ErrNotFound) {
		return nil, errorbank.NotFound("worker sync has never run", errorbank.WithModel("sync_state", JobName))
	}
	return state, err
}

func (s *Service) upsert(ctx context.Context, p biometric.WorkerProfile) (bool, error) {
	w, err := s.workers.GetByCode(ctx, p.EmployeeCode)
	created := false
	switch {
	case errors.Is(err, workerrepo.ErrNotFound):
		created = true
		w = &entity.Worker{
			EmployeeCode:       p.EmployeeCode,
			HourlyRate:         s.payroll.HourlyRate,
			OvertimeRate:       s.payroll.OvertimeRate,
			StandardHoursDay:   s.payroll.HoursPerDay,
			StandardHoursWeek:  s.payroll.HoursPerWeek,
			StandardHoursMonth: s.payroll.HoursPerMonth,
		}
	case err != nil:
		return false, err
	}

	w.Name = p.Name
	w.Role = p.Role
	w.Department = p.Department
	w.Specialty = p.Specialty
	w.Email = p.Email
	w.Phone = p.Phone
	if p.HireDate != nil {
		w.HireDate = p.HireDate
	}
	w.IsActive = p.Active
	return created, s.workers.Save(ctx, w)
}

func (s *Service) recordFailure(ctx context.Context, cause error) {
	state := &entity.SyncState{Job: JobName, LastError: cause.Error()}
	if prev, err := s.workers.GetSyncState(ctx, JobName); err == nil {
		state.LastSyncedAt = prev.LastSyncedAt
		state.LastCount = prev.LastCount
	}
	if err := s.workers.SaveSyncState(ctx, state); err != nil {
		s.logger.Warn("record worker sync failure", zap.Error(err))
	}
}

func (s *Service) publish(ctx context.Context, r *Report) {
	if s.publisher == nil {
		return
	}
	event := SyncedEvent{Created: r.Created, Updated: r.Updated, Skipped: len(r.Skipped), SyncedAt: r.SyncedAt}
	key := strconv.FormatInt(r.SyncedAt.Unix(), 10)
	if err := messaging.PublishEvent(ctx, s.publisher, messaging.EventWorkersSynced, key, event); err != nil {
		s.logger.Warn("publish workers synced event", zap.Error(err))
	}
}
