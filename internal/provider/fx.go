package provider

import (
	"github.com/smallbiznis/hmsinsure/internal/clock"
	providerdomain "github.com/smallbiznis/hmsinsure/internal/provider/domain"
	"github.com/smallbiznis/hmsinsure/internal/provider/httpclient"
	"go.uber.org/fx"
)

var Module = fx.Module("provider.client",
	fx.Provide(clock.New),
	fx.Provide(httpclient.NewRegistry),
	fx.Provide(func(r *httpclient.Registry) providerdomain.Registry { return r }),
)
