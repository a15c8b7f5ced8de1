package plugin

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/shopfloor/internal/dto"
	"github.com/Additional-Code/shopfloor/internal/entity"
	"github.com/Additional-Code/shopfloor/internal/presentation/http/request"
	"github.com/Additional-Code/shopfloor/internal/presentation/http/response"
	"github.com/Additional-Code/shopfloor/internal/service/plugin"
	"github.com/Additional-Code/shopfloor/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/Additional-Code/shopfloor/transport/http/plugin")

const maxHookPayload = 1 << 20

// Registry manages plugins and their hooks.
type Registry interface {
	Register(ctx context.Context, in plugin.RegisterInput) (*entity.Plugin, error)
	Activate(ctx context.Context, name string) (*plugin.Result, error)
	Deactivate(ctx context.Context, name string) (*plugin.Result, error)
	RegisterHook(ctx context.Context, pluginName, hook, callback string, priority int) (*entity.PluginHook, error)
	ExecuteHook(ctx context.Context, hook string, payload json.RawMessage) ([]plugin.Execution, error)
	List(ctx context.Context) ([]entity.Plugin, error)
}

// Handler exposes plugin endpoints over HTTP.
type Handler struct {
	registry Registry
}

// NewHandler constructs a plugin Handler.
func NewHandler(registry Registry) *Handler {
	return &Handler{registry: registry}
}

// Register routes with provided Echo instance.
func Register(e *echo.Echo, h *Handler) {
	g := e.Group("/plugins")
	g.GET("", h.list)
	g.POST("", h.register)
	g.POST("/:name/activate", h.activate)
	g.POST("/:name/deactivate", h.deactivate)
	g.POST("/:name/hooks", h.registerHook)
	e.POST("/hooks/:hook/execute", h.execute)
}

func (h *Handler) list(c echo.Context) error {
	b := response.New(c)
	plugins, err := h.registry.List(c.Request().Context())
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(plugins).WithMeta("count", len(plugins)).Build()
}

func (h *Handler) register(c echo.Context) error {
	b := response.New(c)
	var payload dto.RegisterPluginRequest
	if err := request.Bind(c, &payload); err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "plugins.register", trace.WithAttributes(attribute.String("plugin.name", payload.Name)))
	defer span.End()

	p, err := h.registry.Register(ctx, plugin.RegisterInput{
		Name:         payload.Name,
		Version:      payload.Version,
		Description:  payload.Description,
		Dependencies: payload.Dependencies,
	})
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithStatus(http.StatusCreated).WithData(p).Build()
}

func (h *Handler) activate(c echo.Context) error {
	b := response.New(c)
	result, err := h.registry.Activate(c.Request().Context(), c.Param("name"))
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(result).Build()
}

func (h *Handler) deactivate(c echo.Context) error {
	b := response.New(c)
	result, err := h.registry.Deactivate(c.Request().Context(), c.Param("name"))
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(result).Build()
}

func (h *Handler) registerHook(c echo.Context) error {
	b := response.New(c)
	var payload dto.RegisterHookRequest
	if err := request.Bind(c, &payload); err != nil {
		return b.WithError(err).Build()
	}

	hook, err := h.registry.RegisterHook(c.Request().Context(), c.Param("name"), payload.Hook, payload.Callback, payload.Priority)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithStatus(http.StatusCreated).WithData(hook).Build()
}

func (h *Handler) execute(c echo.Context) error {
	b := response.New(c)
	raw, err := io.ReadAll(io.LimitReader(c.Request().Body, maxHookPayload))
	if err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}
	if len(raw) > 0 && !json.Valid(raw) {
		return b.WithError(errorbank.BadRequest("payload must be JSON")).Build()
	}

	hook := c.Param("hook")
	ctx, span := httpTracer.Start(c.Request().Context(), "hooks.execute", trace.WithAttributes(attribute.String("hook", hook)))
	defer span.End()

	runs, err := h.registry.ExecuteHook(ctx, hook, json.RawMessage(raw))
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(runs).WithMeta("executed", len(runs)).Build()
}
