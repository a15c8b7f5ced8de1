package plugin

import (
	"go.uber.org/fx"

	pluginrepo "github.com/Additional-Code/shopfloor/internal/repository/plugin"
)

// Module provides the plugin registry to Fx.
var Module = fx.Options(
	fx.Provide(
		func(r *pluginrepo.Repository) Registry { return r },
		NewService,
	),
)
