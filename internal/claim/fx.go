package claim

import (
	"github.com/smallbiznis/hmsinsure/internal/claim/repository"
	"github.com/smallbiznis/hmsinsure/internal/claim/service"
	"go.uber.org/fx"
)

var Module = fx.Module("claim.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
