package pricepackage

import (
	"github.com/smallbiznis/hmsinsure/internal/pricepackage/repository"
	"github.com/smallbiznis/hmsinsure/internal/pricepackage/service"
	"go.uber.org/fx"
)

var Module = fx.Module("pricepackage.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
