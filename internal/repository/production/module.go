package production

import "go.uber.org/fx"

// Module provides the production repository to Fx.
var Module = fx.Provide(NewRepository)
