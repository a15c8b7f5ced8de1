package workforce

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/shopfloor/internal/database"
	"github.com/Additional-Code/shopfloor/internal/entity"
	workerrepo "github.com/Additional-Code/shopfloor/internal/repository/worker"
	"github.com/Additional-Code/shopfloor/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/Additional-Code/shopfloor/service/workforce")

// Derived worker statuses.
const (
	StatusOffline   = "offline"
	StatusOnBreak   = "on_break"
	StatusBusy      = "busy"
	StatusAvailable = "available"
)

// Statuses lists every derived status in display order.
var Statuses = []string{StatusAvailable, StatusBusy, StatusOnBreak, StatusOffline}

// Roster reads workers, their tasks and their attendance.
type Roster interface {
	GetByID(ctx context.Context, id int64) (*entity.Worker, error)
	ListActive(ctx context.Context) ([]entity.Worker, error)
	HasTaskInStatus(ctx context.Context, workerID int64, status string) (bool, error)
	AttendanceForDay(ctx context.Context, workerCode string, day time.Time) ([]entity.Attendance, error)
	CreateAttendance(ctx context.Context, a *entity.Attendance) error
	CloseAttendance(ctx context.Context, id int64, at time.Time) error
}

// Service derives worker status from attendance and tasks.
type Service struct {
	roster Roster
	tx     database.Transactor
	logger *zap.Logger
	now    func() time.Time
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Roster     Roster
	Transactor database.Transactor
	Logger     *zap.Logger
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		roster: p.Roster,
		tx:     p.Transactor,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WorkerStatus is a worker's derived status for today.
type WorkerStatus struct {
	WorkerID     int64      `json:"worker_id"`
	EmployeeCode string     `json:"employee_code"`
	Name         string     `json:"name"`
	Status       string     `json:"status"`
	CheckedInAt  *time.Time `json:"checked_in_at,omitempty"`
	LastCheckOut *time.Time `json:"last_check_out,omitempty"`
}

// ResolveStatus derives the worker's status from today's attendance and open tasks.
func (s *Service) ResolveStatus(ctx context.Context, workerID int64) (*WorkerStatus, error) {
	ctx, span := serviceTracer.Start(ctx, "WorkforceService.ResolveStatus", trace.WithAttributes(attribute.Int64("worker.id", workerID)))
	defer span.End()

	w, err := s.loadWorker(ctx, workerID)
	if err != nil {
		return nil, err
	}
	return s.resolve(ctx, w)
}

func (s *Service) resolve(ctx context.Context, w *entity.Worker) (*WorkerStatus, error) {
	rows, err := s.roster.AttendanceForDay(ctx, w.EmployeeCode, s.today())
	if err != nil {
		return nil, err
	}
	out := &WorkerStatus{WorkerID: w.ID, EmployeeCode: w.EmployeeCode, Name: w.Name}

	status, checkedIn, lastOut := classifyAttendance(rows)
	out.CheckedInAt = checkedIn
	out.LastCheckOut = lastOut
	if status != "" {
		out.Status = status
		return out, nil
	}

	busy, err := s.roster.HasTaskInStatus(ctx, w.ID, entity.TaskInProgress)
	if err != nil {
		return nil, err
	}
	if busy {
		out.Status = StatusBusy
	} else {
		out.Status = StatusAvailable
	}
	return out, nil
}

// classifyAttendance applies the attendance part of the status rules. It
// returns an empty status when the worker is on site and tasks decide.
func classifyAttendance(rows []entity.Attendance) (status string, checkedIn, lastOut *time.Time) {
	if len(rows) == 0 {
		return StatusOffline, nil, nil
	}
	for _, r := range rows {
		if r.CheckOut != nil && (lastOut == nil || r.CheckOut.After(*lastOut)) {
			out := *r.CheckOut
			lastOut = &out
		}
	}
	latest := rows[len(rows)-1]
	in := latest.CheckIn
	checkedIn = &in
	if !latest.Open() {
		return StatusOffline, checkedIn, lastOut
	}
	if lastOut != nil && lastOut.After(latest.CheckIn) {
		return StatusOnBreak, checkedIn, lastOut
	}
	return "", checkedIn, lastOut
}

// Summary counts active workers per status.
type Summary struct {
	Total   int            `json:"total"`
	Counts  map[string]int `json:"counts"`
	Workers []WorkerStatus `json:"workers"`
}

// GetStatusSummary resolves every active worker. Results are computed fresh on each call.
func (s *Service) GetStatusSummary(ctx context.Context) (*Summary, error) {
	ctx, span := serviceTracer.Start(ctx, "WorkforceService.GetStatusSummary")
	defer span.End()

	workers, err := s.roster.ListActive(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	sum := &Summary{Counts: make(map[string]int, len(Statuses)), Workers: make([]WorkerStatus, 0, len(workers))}
	for _, st := range Statuses {
		sum.Counts[st] = 0
	}
	for i := range workers {
		ws, err := s.resolve(ctx, &workers[i])
		if err != nil {
			return nil, err
		}
		sum.Counts[ws.Status]++
		sum.Workers = append(sum.Workers, *ws)
	}
	sum.Total = len(sum.Workers)
	return sum, nil
}

// ClockIn opens today's attendance session for the worker.
func (s *Service) ClockIn(ctx context.Context, workerID int64) (*entity.Attendance, error) {
	ctx, span := serviceTracer.Start(ctx, "WorkforceService.ClockIn", trace.WithAttributes(attribute.Int64("worker.id", workerID)))
	defer span.End()

	var session *entity.Attendance
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		w, err := s.loadWorker(ctx, workerID)
		if err != nil {
			return err
		}
		if !w.IsActive {
			return errorbank.Unprocessable("worker is not active", errorbank.WithModel("worker", workerID))
		}
		now := s.now()
		rows, err := s.roster.AttendanceForDay(ctx, w.EmployeeCode, s.today())
		if err != nil {
			return err
		}
		for _, r := range rows {
			if r.Open() {
				return errorbank.Conflict("worker is already clocked in", errorbank.WithModel("worker", workerID))
			}
		}
		session = &entity.Attendance{WorkerCode: w.EmployeeCode, Date: s.today(), CheckIn: now}
		return s.roster.CreateAttendance(ctx, session)
	})
	if err != nil {
		s.logger.Warn("clock in rejected", zap.Int64("worker_id", workerID), zap.Error(err))
		return nil, err
	}
	s.logger.Info("worker clocked in", zap.Int64("worker_id", workerID), zap.Time("at", session.CheckIn))
	return session, nil
}

// ClockOut closes the worker's open session of today.
func (s *Service) ClockOut(ctx context.Context, workerID int64) (*entity.Attendance, error) {
	ctx, span := serviceTracer.Start(ctx, "WorkforceService.ClockOut", trace.WithAttributes(attribute.Int64("worker.id", workerID)))
	defer span.End()

	var session *entity.Attendance
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		w, err := s.loadWorker(ctx, workerID)
		if err != nil {
			return err
		}
		rows, err := s.roster.AttendanceForDay(ctx, w.EmployeeCode, s.today())
		if err != nil {
			return err
		}
		for i := len(rows) - 1; i >= 0; i-- {
			if !rows[i].Open() {
				continue
			}
			now := s.now()
			if err := s.roster.CloseAttendance(ctx, rows[i].ID, now); err != nil {
				return err
			}
			session = &rows[i]
			session.CheckOut = &now
			return nil
		}
		return errorbank.Unprocessable("worker is not clocked in", errorbank.WithModel("worker", workerID))
	})
	if err != nil {
		s.logger.Warn("clock out rejected", zap.Int64("worker_id", workerID), zap.Error(err))
		return nil, err
	}
	s.logger.Info("worker clocked out", zap.Int64("worker_id", workerID), zap.Time("at", *session.CheckOut))
	return session, nil
}

func (s *Service) loadWorker(ctx context.Context, id int64) (*entity.Worker, error) {
	w, err := s.roster.GetByID(ctx, id)
	if errors.Is(err, workerrepo.ErrNotFound) {
		return nil, errorbank.NotFound("worker not found", errorbank.WithModel("worker", id))
	}
	return w, err
}

func (s *Service) today() time.Time {
	now := s.now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}
