package workforce

import (
	"go.uber.org/fx"

	workerrepo "github.com/Additional-Code/shopfloor/internal/repository/worker"
)

// Module provides the worker status resolver to Fx.
var Module = fx.Options(
	fx.Provide(
		func(r *workerrepo.Repository) Roster { return r },
		NewService,
	),
)
