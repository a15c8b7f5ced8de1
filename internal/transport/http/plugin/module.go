package plugin

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/fx"

	"github.com/Additional-Code/shopfloor/internal/service/plugin"
)

// Module wires HTTP plugin handlers.
var Module = fx.Options(
	fx.Provide(
		func(s *plugin.Service) Registry { return s },
		NewHandler,
	),
	fx.Invoke(func(e *echo.Echo, h *Handler) {
		Register(e, h)
	}),
)
