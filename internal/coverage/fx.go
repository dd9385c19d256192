package coverage

import (
	"github.com/smallbiznis/hmsinsure/internal/coverage/repository"
	"github.com/smallbiznis/hmsinsure/internal/coverage/service"
	"go.uber.org/fx"
)

var Module = fx.Module("coverage.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
