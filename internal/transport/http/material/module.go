package material

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/fx"

	"github.com/Additional-Code/shopfloor/internal/service/inventory"
)

// Module wires HTTP material handlers.
var Module = fx.Options(
	fx.Provide(
		func(s *inventory.Service) Ledger { return s },
		NewHandler,
	),
	fx.Invoke(func(e *echo.Echo, h *Handler) {
		Register(e, h)
	}),
)
