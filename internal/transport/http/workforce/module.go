package workforce

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/fx"

	"github.com/Additional-Code/shopfloor/internal/service/workersync"
	"github.com/Additional-Code/shopfloor/internal/service/workforce"
)

// Module wires HTTP worker handlers.
var Module = fx.Options(
	fx.Provide(
		func(s *workforce.Service) Resolver { return s },
		func(s *workersync.Service) Syncer { return s },
		NewHandler,
	),
	fx.Invoke(func(e *echo.Echo, h *Handler) {
		Register(e, h)
	}),
)
