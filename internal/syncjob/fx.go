package syncjob

import "go.uber.org/fx"

var Module = fx.Module("syncjob",
	fx.Provide(New),
	fx.Invoke(func(*Handlers) {}),
)
