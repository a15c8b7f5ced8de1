package workersync

import (
	"go.uber.org/fx"

	"github.com/Additional-Code/shopfloor/internal/biometric"
	workerrepo "github.com/Additional-Code/shopfloor/internal/repository/worker"
)

// Module provides the biometric worker import to Fx.
var Module = fx.Options(
	fx.Provide(
		func(c *biometric.Client) Source { return c },
		func(r *workerrepo.Repository) Workers { return r },
		NewService,
	),
)
