package responselog

import (
	"github.com/smallbiznis/hmsinsure/internal/responselog/repository"
	"github.com/smallbiznis/hmsinsure/internal/responselog/service"
	"go.uber.org/fx"
)

var Module = fx.Module("responselog.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
