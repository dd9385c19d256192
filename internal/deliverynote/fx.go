package deliverynote

import (
	"github.com/smallbiznis/hmsinsure/internal/deliverynote/repository"
	"github.com/smallbiznis/hmsinsure/internal/deliverynote/service"
	"go.uber.org/fx"
)

var Module = fx.Module("deliverynote.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
