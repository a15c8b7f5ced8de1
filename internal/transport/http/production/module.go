package production

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/fx"

	ordersvc "github.com/Additional-Code/shopfloor/internal/service/order"
	"github.com/Additional-Code/shopfloor/internal/service/production"
	"github.com/Additional-Code/shopfloor/internal/service/smartproduction"
)

// Module wires HTTP production handlers.
var Module = fx.Options(
	fx.Provide(
		func(s *production.Service) Tracker { return s },
		func(s *smartproduction.Service) StageMachine { return s },
		func(s *ordersvc.Service) Orders { return s },
		NewHandler,
	),
	fx.Invoke(func(e *echo.Echo, h *Handler) {
		Register(e, h)
	}),
)
