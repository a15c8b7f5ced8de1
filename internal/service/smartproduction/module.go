package smartproduction

import (
	"go.uber.org/fx"

	inventoryrepo "github.com/Additional-Code/shopfloor/internal/repository/inventory"
	orderrepo "github.com/Additional-Code/shopfloor/internal/repository/order"
	productrepo "github.com/Additional-Code/shopfloor/internal/repository/product"
	productionrepo "github.com/Additional-Code/shopfloor/internal/repository/production"
	workerrepo "github.com/Additional-Code/shopfloor/internal/repository/worker"
)

// Module provides the order stage machine to Fx.
var Module = fx.Options(
	fx.Provide(
		func(r *orderrepo.Repository) Orders { return r },
		func(r *productionrepo.Repository) Trackings { return r },
		func(r *productrepo.Repository) Products { return r },
		func(r *workerrepo.Repository) Workers { return r },
		func(r *inventoryrepo.Repository) Ledger { return r },
		NewService,
	),
)
