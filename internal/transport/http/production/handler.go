package production

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/shopfloor/internal/dto"
	"github.com/Additional-Code/shopfloor/internal/entity"
	"github.com/Additional-Code/shopfloor/internal/presentation/http/request"
	"github.com/Additional-Code/shopfloor/internal/presentation/http/response"
	"github.com/Additional-Code/shopfloor/internal/service/production"
	"github.com/Additional-Code/shopfloor/internal/service/smartproduction"
)

var httpTracer = otel.Tracer("github.com/Additional-Code/shopfloor/transport/http/production")

// Tracker is the per-stage production tracker.
type Tracker interface {
	StartProduction(ctx context.Context, orderID int64) ([]entity.OrderProductionTracking, error)
	StartStage(ctx context.Context, trackingID int64, workerID, stationID *int64) (*entity.OrderProductionTracking, error)
	CompleteStage(ctx context.Context, trackingID int64) (*entity.OrderProductionTracking, error)
	GetOrderProgress(ctx context.Context, orderID int64) (*production.Progress, error)
}

// StageMachine drives an order through its stages.
type StageMachine interface {
	StartSmartProduction(ctx context.Context, orderID int64) (*smartproduction.StartResult, error)
	MoveToNextStage(ctx context.Context, orderID int64, completedHours *decimal.Decimal) (bool, error)
}

// Orders reads the order after a transition.
type Orders interface {
	Get(ctx context.Context, id int64) (*entity.Order, error)
}

// Handler exposes production endpoints over HTTP.
type Handler struct {
	tracker Tracker
	machine StageMachine
	orders  Orders
}

// NewHandler constructs a production Handler.
func NewHandler(tracker Tracker, machine StageMachine, orders Orders) *Handler {
	return &Handler{tracker: tracker, machine: machine, orders: orders}
}

// Register routes with provided Echo instance.
func Register(e *echo.Echo, h *Handler) {
	g := e.Group("/orders/:id")
	g.POST("/production/start", h.startProduction)
	g.GET("/production/progress", h.progress)
	g.POST("/smart-production/start", h.startSmartProduction)
	g.POST("/stages/next", h.nextStage)

	t := e.Group("/trackings/:id")
	t.POST("/start", h.startStage)
	t.POST("/complete", h.completeStage)
}

func (h *Handler) startProduction(c echo.Context) error {
	b := response.New(c)
	orderID, err := request.ParamID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "production.start", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	rows, err := h.tracker.StartProduction(ctx, orderID)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithStatus(http.StatusCreated).WithData(rows).WithMeta("stages", len(rows)).Build()
}

func (h *Handler) progress(c echo.Context) error {
	b := response.New(c)
	orderID, err := request.ParamID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}

	progress, err := h.tracker.GetOrderProgress(c.Request().Context(), orderID)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(progress).Build()
}

func (h *Handler) startSmartProduction(c echo.Context) error {
	b := response.New(c)
	orderID, err := request.ParamID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "production.smartStart", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	result, err := h.machine.StartSmartProduction(ctx, orderID)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(result).WithMeta("shortages", len(result.Shortages)).Build()
}

func (h *Handler) nextStage(c echo.Context) error {
	b := response.New(c)
	orderID, err := request.ParamID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}
	var payload dto.NextStageRequest
	if err := request.Bind(c, &payload); err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "production.nextStage", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	moved, err := h.machine.MoveToNextStage(ctx, orderID, payload.CompletedHours)
	if err != nil {
		return b.WithError(err).Build()
	}
	order, err := h.orders.Get(ctx, orderID)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.NextStageResponse{Moved: moved, Order: dto.NewOrderResponse(order)}).Build()
}

func (h *Handler) startStage(c echo.Context) error {
	b := response.New(c)
	trackingID, err := request.ParamID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}
	var payload dto.StartStageRequest
	if err := request.Bind(c, &payload); err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "tracking.start", trace.WithAttributes(attribute.Int64("tracking.id", trackingID)))
	defer span.End()

	row, err := h.tracker.StartStage(ctx, trackingID, payload.WorkerID, payload.StationID)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(row).Build()
}

func (h *Handler) completeStage(c echo.Context) error {
	b := response.New(c)
	trackingID, err := request.ParamID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "tracking.complete", trace.WithAttributes(attribute.Int64("tracking.id", trackingID)))
	defer span.End()

	row, err := h.tracker.CompleteStage(ctx, trackingID)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(row).Build()
}
