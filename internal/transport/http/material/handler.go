package material

import (
	"context"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/shopfloor/internal/dto"
	"github.com/Additional-Code/shopfloor/internal/presentation/http/request"
	"github.com/Additional-Code/shopfloor/internal/presentation/http/response"
	"github.com/Additional-Code/shopfloor/internal/service/inventory"
)

var httpTracer = otel.Tracer("github.com/Additional-Code/shopfloor/transport/http/material")

// Ledger is the material reservation tracker.
type Ledger interface {
	ReserveMaterialsForStage(ctx context.Context, orderID, stageID int64) (*inventory.ReservationResult, error)
	UpdateInventoryUsage(ctx context.Context, orderID, stageID int64, used map[int64]decimal.Decimal) (*inventory.UsageResult, error)
	ReleaseMaterialReservation(ctx context.Context, orderID, stageID int64) (*inventory.ReleaseResult, error)
	GetOrderMaterialReport(ctx context.Context, orderID int64) (*inventory.MaterialReport, error)
}

// Handler exposes material endpoints over HTTP. Shortages are soft failures:
// they are returned with 200 and listed in the payload.
type Handler struct {
	ledger Ledger
}

// NewHandler constructs a material Handler.
func NewHandler(ledger Ledger) *Handler {
	return &Handler{ledger: ledger}
}

// Register routes with provided Echo instance.
func Register(e *echo.Echo, h *Handler) {
	g := e.Group("/orders/:id")
	g.POST("/stages/:stage_id/materials/reserve", h.reserve)
	g.POST("/stages/:stage_id/materials/usage", h.usage)
	g.POST("/stages/:stage_id/materials/release", h.release)
	g.GET("/materials/report", h.report)
}

func ids(c echo.Context) (int64, int64, error) {
	orderID, err := request.ParamID(c, "id")
	if err != nil {
		return 0, 0, err
	}
	stageID, err := request.ParamID(c, "stage_id")
	if err != nil {
		return 0, 0, err
	}
	return orderID, stageID, nil
}

func (h *Handler) reserve(c echo.Context) error {
	b := response.New(c)
	orderID, stageID, err := ids(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "materials.reserve", trace.WithAttributes(
		attribute.Int64("order.id", orderID),
		attribute.Int64("stage.id", stageID),
	))
	defer span.End()

	result, err := h.ledger.ReserveMaterialsForStage(ctx, orderID, stageID)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(result).WithMeta("complete", len(result.Failed) == 0).Build()
}

func (h *Handler) usage(c echo.Context) error {
	b := response.New(c)
	orderID, stageID, err := ids(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	var payload dto.UsageRequest
	if err := request.Bind(c, &payload); err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "materials.usage", trace.WithAttributes(
		attribute.Int64("order.id", orderID),
		attribute.Int64("stage.id", stageID),
	))
	defer span.End()

	result, err := h.ledger.UpdateInventoryUsage(ctx, orderID, stageID, payload.Quantities())
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(result).WithMeta("complete", len(result.Failed) == 0).Build()
}

func (h *Handler) release(c echo.Context) error {
	b := response.New(c)
	orderID, stageID, err := ids(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	result, err := h.ledger.ReleaseMaterialReservation(c.Request().Context(), orderID, stageID)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(result).Build()
}

func (h *Handler) report(c echo.Context) error {
	b := response.New(c)
	orderID, err := request.ParamID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}

	report, err := h.ledger.GetOrderMaterialReport(c.Request().Context(), orderID)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(report).Build()
}
