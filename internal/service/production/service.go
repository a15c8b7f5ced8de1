package production

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/shopfloor/internal/cache"
	"github.com/Additional-Code/shopfloor/internal/database"
	"github.com/Additional-Code/shopfloor/internal/entity"
	"github.com/Additional-Code/shopfloor/internal/observability"
	orderrepo "github.com/Additional-Code/shopfloor/internal/repository/order"
	productionrepo "github.com/Additional-Code/shopfloor/internal/repository/production"
	workerrepo "github.com/Additional-Code/shopfloor/internal/repository/worker"
	"github.com/Additional-Code/shopfloor/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/Additional-Code/shopfloor/service/production")

// Tracker persists catalog stages, tracking rows and stations.
type Tracker interface {
	ActiveStages(ctx context.Context) ([]entity.ProductionStage, error)
	CreateTrackings(ctx context.Context, rows []entity.OrderProductionTracking) error
	GetTracking(ctx context.Context, id int64) (*entity.OrderProductionTracking, error)
	ListTrackings(ctx context.Context, orderID int64) ([]entity.OrderProductionTracking, error)
	CountOpenTrackings(ctx context.Context, orderID int64) (int, error)
	UpdateTracking(ctx context.Context, t *entity.OrderProductionTracking, fromStatus string) error
	GetStation(ctx context.Context, id int64) (*entity.Station, error)
	SetStationStatus(ctx context.Context, id int64, status string) error
}

// Orders loads and updates orders.
type Orders interface {
	GetByID(ctx context.Context, id int64) (*entity.Order, error)
	Update(ctx context.Context, order *entity.Order, columns ...string) error
}

// Workers loads workers assigned to stages.
type Workers interface {
	GetByID(ctx context.Context, id int64) (*entity.Worker, error)
}

// Service tracks an order's progress through its per-stage rows.
type Service struct {
	tracker Tracker
	orders  Orders
	workers Workers
	tx      database.Transactor
	cache   cache.Store
	metrics *observability.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Tracker    Tracker
	Orders     Orders
	Workers    Workers
	Transactor database.Transactor
	Cache      cache.Store            `optional:"true"`
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
		tracker: p.Tracker,
		orders:  p.Orders,
		workers: p.Workers,
		tx:      p.Transactor,
		cache:   p.Cache,
		metrics: p.Metrics,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// StartProduction seeds one pending row per active catalog stage and puts the
// order in progress.
func (s *Service) StartProduction(ctx context.Context, orderID int64) ([]entity.OrderProductionTracking, error) {
	ctx, span := serviceTracer.Start(ctx, "ProductionService.StartProduction", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	var rows []entity.OrderProductionTracking
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		order, err := s.loadOrder(ctx, orderID)
		if err != nil {
			return err
		}
		existing, err := s.tracker.ListTrackings(ctx, orderID)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			return errorbank.Conflict("production already started for order", errorbank.WithModel("order", orderID))
		}

		stages, err := s.tracker.ActiveStages(ctx)
		if err != nil {
			return err
		}
		if len(stages) == 0 {
			return errorbank.Unprocessable("no active production stages configured")
		}

		now := s.now()
		rows = make([]entity.OrderProductionTracking, 0, len(stages))
		for _, st := range stages {
			rows = append(rows, entity.OrderProductionTracking{
				OrderID:        orderID,
				StageID:        st.ID,
				StageName:      st.Name,
				Status:         entity.TrackingPending,
				EstimatedHours: st.EstimatedHours,
				ActualHours:    decimal.Zero,
				CreatedAt:      now,
				UpdatedAt:      now,
			})
		}
		if err := s.tracker.CreateTrackings(ctx, rows); err != nil {
			return err
		}

		order.Status = entity.OrderStatusInProgress
		return s.orders.Update(ctx, order, "status")
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "start production failed")
		s.logger.Error("start production failed", zap.Int64("order_id", orderID), zap.Error(err))
		return nil, err
	}

	s.forgetOrder(ctx, orderID)
	s.logger.Info("production started", zap.Int64("order_id", orderID), zap.Int("stages", len(rows)))
	return rows, nil
}

// StartStage moves a tracking row from pending to in_progress, assigning the
// optional worker and station. An assigned station becomes busy.
func (s *Service) StartStage(ctx context.Context, trackingID int64, workerID, stationID *int64) (*entity.OrderProductionTracking, error) {
	ctx, span := serviceTracer.Start(ctx, "ProductionService.StartStage", trace.WithAttributes(attribute.Int64("tracking.id", trackingID)))
	defer span.End()

	var row *entity.OrderProductionTracking
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		t, err := s.loadTracking(ctx, trackingID)
		if err != nil {
			return err
		}
		if t.Status != entity.TrackingPending {
			return invalidTransition(t, entity.TrackingInProgress)
		}

		if workerID != nil {
			w, err := s.workers.GetByID(ctx, *workerID)
			if errors.Is(err, workerrepo.ErrNotFound) {
				return errorbank.NotFound("worker not found", errorbank.WithModel("worker", *workerID))
			}
			if err != nil {
				return err
			}
			if !w.IsActive {
				return errorbank.Unprocessable("worker is not active", errorbank.WithModel("worker", *workerID))
			}
			t.WorkerID = workerID
		}

		if stationID != nil {
			st, err := s.tracker.GetStation(ctx, *stationID)
			if errors.Is(err, productionrepo.ErrNotFound) {
				return errorbank.NotFound("station not found", errorbank.WithModel("station", *stationID))
			}
			if err != nil {
				return err
			}
			if st.Status == entity.StationBusy {
				return errorbank.Conflict("station is busy", errorbank.WithModel("station", *stationID))
			}
			if err := s.tracker.SetStationStatus(ctx, st.ID, entity.StationBusy); err != nil {
				return err
			}
			t.StationID = stationID
		}

		started := s.now()
		t.StartedAt = &started
		t.Status = entity.TrackingInProgress
		if err := s.tracker.UpdateTracking(ctx, t, entity.TrackingPending); err != nil {
			return staleRow(err, t)
		}
		row = t
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "start stage failed")
		s.logger.Warn("start stage rejected", zap.Int64("tracking_id", trackingID), zap.Error(err))
		return nil, err
	}

	s.metrics.TrackingChange(ctx, entity.TrackingInProgress)
	s.logger.Info("stage started",
		zap.Int64("tracking_id", row.ID), zap.Int64("order_id", row.OrderID), zap.String("stage", row.StageName))
	return row, nil
}

// CompleteStage moves a tracking row from in_progress to completed, records the
// elapsed hours and frees its station. The order is completed with its last row.
func (s *Service) CompleteStage(ctx context.Context, trackingID int64) (*entity.OrderProductionTracking, error) {
	ctx, span := serviceTracer.Start(ctx, "ProductionService.CompleteStage", trace.WithAttributes(attribute.Int64("tracking.id", trackingID)))
	defer span.End()

	var (
		row            *entity.OrderProductionTracking
		orderCompleted bool
	)
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		t, err := s.loadTracking(ctx, trackingID)
		if err != nil {
			return err
		}
		if t.Status != entity.TrackingInProgress {
			return invalidTransition(t, entity.TrackingCompleted)
		}

		completed := s.now()
		t.CompletedAt = &completed
		t.Status = entity.TrackingCompleted
		if t.StartedAt != nil {
			t.ActualHours = HoursBetween(*t.StartedAt, completed)
		}
		if err := s.tracker.UpdateTracking(ctx, t, entity.TrackingInProgress); err != nil {
			return staleRow(err, t)
		}
		if t.StationID != nil {
			if err := s.tracker.SetStationStatus(ctx, *t.StationID, entity.StationAvailable); err != nil && !errors.Is(err, productionrepo.ErrNotFound) {
				return err
			}
		}

		open, err := s.tracker.CountOpenTrackings(ctx, t.OrderID)
		if err != nil {
			return err
		}
		if open == 0 {
			order, err := s.loadOrder(ctx, t.OrderID)
			if err != nil {
				return err
			}
			order.Status = entity.OrderStatusCompleted
			order.CompletedDate = &completed
			if err := s.orders.Update(ctx, order, "status", "completed_date"); err != nil {
				return err
			}
			orderCompleted = true
		}
		row = t
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "complete stage failed")
		s.logger.Warn("complete stage rejected", zap.Int64("tracking_id", trackingID), zap.Error(err))
		return nil, err
	}

	s.metrics.TrackingChange(ctx, entity.TrackingCompleted)
	s.logger.Info("stage completed",
		zap.Int64("tracking_id", row.ID), zap.Int64("order_id", row.OrderID),
		zap.String("stage", row.StageName), zap.String("actual_hours", row.ActualHours.String()))
	if orderCompleted {
		s.forgetOrder(ctx, row.OrderID)
		s.metrics.OrderCompleted(ctx, "tracker")
		s.logger.Info("order completed", zap.Int64("order_id", row.OrderID))
	}
	return row, nil
}

// Progress summarises an order's tracking rows.
type Progress struct {
	OrderID    int64                            `json:"order_id"`
	Total      int                              `json:"total"`
	Pending    int                              `json:"pending"`
	InProgress int                              `json:"in_progress"`
	Completed  int                              `json:"completed"`
	Percentage decimal.Decimal                  `json:"percentage"`
	Stages     []entity.OrderProductionTracking `json:"stages"`
}

// GetOrderProgress returns the order's tracking rows with a completion percentage.
func (s *Service) GetOrderProgress(ctx context.Context, orderID int64) (*Progress, error) {
	ctx, span := serviceTracer.Start(ctx, "ProductionService.GetOrderProgress", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	if _, err := s.loadOrder(ctx, orderID); err != nil {
		return nil, err
	}
	rows, err := s.tracker.ListTrackings(ctx, orderID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	p := &Progress{OrderID: orderID, Total: len(rows), Percentage: decimal.Zero, Stages: rows}
	if p.Stages == nil {
		p.Stages = []entity.OrderProductionTracking{}
	}
	for _, r := range rows {
		switch r.Status {
		case entity.TrackingPending:
			p.Pending++
		case entity.TrackingInProgress:
			p.InProgress++
		case entity.TrackingCompleted:
			p.Completed++
		}
	}
	if p.Total > 0 {
		p.Percentage = decimal.NewFromInt(int64(p.Completed)).
			Mul(decimal.NewFromInt(100)).
			Div(decimal.NewFromInt(int64(p.Total))).
			Round(2)
	}
	return p, nil
}

// HoursBetween returns the elapsed hours rounded to two decimals.
func HoursBetween(from, to time.Time) decimal.Decimal {
	if to.Before(from) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(to.Sub(from).Hours()).Round(2)
}

func (s *Service) loadOrder(ctx context.Context, orderID int64) (*entity.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if errors.Is(err, orderrepo.ErrNotFound) {
		return nil, errorbank.NotFound("order not found", errorbank.WithModel("order", orderID))
	}
	return order, err
}

func (s *Service) loadTracking(ctx context.Context, id int64) (*entity.OrderProductionTracking, error) {
	t, err := s.tracker.GetTracking(ctx, id)
	if errors.Is(err, productionrepo.ErrNotFound) {
		return nil, errorbank.NotFound("tracking row not found", errorbank.WithModel("order_production_tracking", id))
	}
	return t, err
}

func (s *Service) forgetOrder(ctx context.Context, orderID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, cache.OrderKey(orderID)); err != nil {
		s.logger.Warn("orders cache invalidation failed", zap.Int64("order_id", orderID), zap.Error(err))
	}
}

func invalidTransition(t *entity.OrderProductionTracking, to string) error {
	return errorbank.Unprocessable("invalid stage transition",
		errorbank.WithModel("order_production_tracking", t.ID),
		errorbank.WithDetail("from", t.Status),
		errorbank.WithDetail("to", to),
	)
}

// staleRow maps a lost conditional update onto the transition fault.
func staleRow(err error, t *entity.OrderProductionTracking) error {
	if errors.Is(err, productionrepo.ErrNotFound) {
		return errorbank.Unprocessable("tracking row changed concurrently",
			errorbank.WithModel("order_production_tracking", t.ID))
	}
	return err
}
