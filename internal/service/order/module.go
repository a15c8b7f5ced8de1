package order

import (
	"go.uber.org/fx"

	repo "github.com/Additional-Code/shopfloor/internal/repository/order"
	productrepo "github.com/Additional-Code/shopfloor/internal/repository/product"
)

// Module provides the order service to Fx.
var Module = fx.Options(
	fx.Provide(
		func(r *repo.Repository) Store { return r },
		func(r *productrepo.Repository) Products { return r },
		NewService,
	),
)
