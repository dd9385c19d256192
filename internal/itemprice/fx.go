package itemprice

import (
	"github.com/smallbiznis/hmsinsure/internal/itemprice/repository"
	"github.com/smallbiznis/hmsinsure/internal/itemprice/service"
	"go.uber.org/fx"
)

var Module = fx.Module("itemprice.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
