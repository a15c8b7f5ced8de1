package production

import (
	"go.uber.org/fx"

	orderrepo "github.com/Additional-Code/shopfloor/internal/repository/order"
	productionrepo "github.com/Additional-Code/shopfloor/internal/repository/production"
	workerrepo "github.com/Additional-Code/shopfloor/internal/repository/worker"
)

// Module provides the production stage tracker to Fx.
var Module = fx.Options(
	fx.Provide(
		func(r *productionrepo.Repository) Tracker { return r },
		func(r *orderrepo.Repository) Orders { return r },
		func(r *workerrepo.Repository) Workers { return r },
		NewService,
	),
)
