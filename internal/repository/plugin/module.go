package plugin

import "go.uber.org/fx"

// Module provides the plugin repository to Fx.
var Module = fx.Provide(NewRepository)
