package http

import (
	"go.uber.org/fx"

	materialtransport "github.com/Additional-Code/shopfloor/internal/transport/http/material"
	ordertransport "github.com/Additional-Code/shopfloor/internal/transport/http/order"
	plugintransport "github.com/Additional-Code/shopfloor/internal/transport/http/plugin"
	productiontransport "github.com/Additional-Code/shopfloor/internal/transport/http/production"
	workforcetransport "github.com/Additional-Code/shopfloor/internal/transport/http/workforce"
)

// Module aggregates all HTTP transport handlers.
var Module = fx.Options(
	ordertransport.Module,
	productiontransport.Module,
	materialtransport.Module,
	workforcetransport.Module,
	plugintransport.Module,
)
