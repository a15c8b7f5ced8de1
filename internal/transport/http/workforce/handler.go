package workforce

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/shopfloor/internal/dto"
	"github.com/Additional-Code/shopfloor/internal/entity"
	"github.com/Additional-Code/shopfloor/internal/presentation/http/request"
	"github.com/Additional-Code/shopfloor/internal/presentation/http/response"
	"github.com/Additional-Code/shopfloor/internal/service/workersync"
	"github.com/Additional-Code/shopfloor/internal/service/workforce"
)

var httpTracer = otel.Tracer("github.com/Additional-Code/shopfloor/transport/http/workforce")

// Resolver derives worker status and records attendance.
type Resolver interface {
	ResolveStatus(ctx context.Context, workerID int64) (*workforce.WorkerStatus, error)
	GetStatusSummary(ctx context.Context) (*workforce.Summary, error)
	ClockIn(ctx context.Context, workerID int64) (*entity.Attendance, error)
	ClockOut(ctx context.Context, workerID int64) (*entity.Attendance, error)
}

// Syncer imports workers from the biometric gateway.
type Syncer interface {
	SyncWorkers(ctx context.Context, limit int) (*workersync.Report, error)
	SyncWorker(ctx context.Context, employeeID string) (*entity.Worker, error)
	LastSync(ctx context.Context) (*entity.SyncState, error)
}

// Handler exposes worker endpoints over HTTP.
type Handler struct {
	resolver Resolver
	syncer   Syncer
}

// NewHandler constructs a worker Handler.
func NewHandler(resolver Resolver, syncer Syncer) *Handler {
	return &Handler{resolver: resolver, syncer: syncer}
}

// Register routes with provided Echo instance.
func Register(e *echo.Echo, h *Handler) {
	g := e.Group("/workers")
	g.GET("/status/summary", h.summary)
	g.POST("/sync", h.sync)
	g.GET("/sync", h.lastSync)
	g.GET("/:id/status", h.status)
	g.POST("/:id/clock-in", h.clockIn)
	g.POST("/:id/clock-out", h.clockOut)
}

func (h *Handler) status(c echo.Context) error {
	b := response.New(c)
	id, err := request.ParamID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}
	status, err := h.resolver.ResolveStatus(c.Request().Context(), id)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(status).Build()
}

func (h *Handler) summary(c echo.Context) error {
	b := response.New(c)
	summary, err := h.resolver.GetStatusSummary(c.Request().Context())
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(summary).Build()
}

func (h *Handler) clockIn(c echo.Context) error {
	b := response.New(c)
	id, err := request.ParamID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}
	ctx, span := httpTracer.Start(c.Request().Context(), "workers.clockIn", trace.WithAttributes(attribute.Int64("worker.id", id)))
	defer span.End()

	a, err := h.resolver.ClockIn(ctx, id)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithStatus(http.StatusCreated).WithData(a).Build()
}

func (h *Handler) clockOut(c echo.Context) error {
	b := response.New(c)
	id, err := request.ParamID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}
	ctx, span := httpTracer.Start(c.Request().Context(), "workers.clockOut", trace.WithAttributes(attribute.Int64("worker.id", id)))
	defer span.End()

	a, err := h.resolver.ClockOut(ctx, id)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(a).Build()
}

func (h *Handler) sync(c echo.Context) error {
	b := response.New(c)
	var payload dto.SyncWorkersRequest
	if err := request.Bind(c, &payload); err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "workers.sync")
	defer span.End()

	if payload.EmployeeID != "" {
		w, err := h.syncer.SyncWorker(ctx, payload.EmployeeID)
		if err != nil {
			return b.WithError(err).Build()
		}
		return b.WithData(w).Build()
	}

	report, err := h.syncer.SyncWorkers(ctx, payload.Limit)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(report).WithMeta("imported", report.Imported()).Build()
}

func (h *Handler) lastSync(c echo.Context) error {
	b := response.New(c)
	state, err := h.syncer.LastSync(c.Request().Context())
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(state).Build()
}
