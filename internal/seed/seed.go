package seed

import (
	"context"
	"time"

	apikeydomain "github.com/smallbiznis/hmsinsure/internal/apikey/domain"
	"github.com/smallbiznis/hmsinsure/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("seed",
	fx.Invoke(EnsureBootstrapKey),
)

// EnsureBootstrapKey installs BOOTSTRAP_API_KEY as an admin key. It does
// nothing when the variable is unset or the key already exists.
func EnsureBootstrapKey(cfg config.Config, keys apikeydomain.Service, log *zap.Logger) error {
	if cfg.Bootstrap.APIKey == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := keys.Bootstrap(ctx, cfg.Bootstrap.APIKeyName, cfg.Bootstrap.APIKey); err != nil {
		return err
	}
	log.Info("bootstrap api key ensured", zap.String("name", cfg.Bootstrap.APIKeyName))
	return nil
}
