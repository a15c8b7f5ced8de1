package inventory

import (
	"go.uber.org/fx"

	inventoryrepo "github.com/Additional-Code/shopfloor/internal/repository/inventory"
	orderrepo "github.com/Additional-Code/shopfloor/internal/repository/order"
	productrepo "github.com/Additional-Code/shopfloor/internal/repository/product"
	productionrepo "github.com/Additional-Code/shopfloor/internal/repository/production"
)

// Module provides the inventory service to Fx.
var Module = fx.Options(
	fx.Provide(
		func(r *inventoryrepo.Repository) Ledger { return r },
		func(r *orderrepo.Repository) OrderReader { return r },
		func(r *productrepo.Repository) BillOfMaterials { return r },
		func(r *productionrepo.Repository) StageReader { return r },
		NewService,
	),
)
