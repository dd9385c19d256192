package jobqueue

import (
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/hmsinsure/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module provides the dispatcher without starting workers; API processes
// only enqueue.
var Module = fx.Module("jobqueue",
	fx.Provide(NewBackend),
	fx.Provide(New),
	fx.Provide(func(d *Dispatcher) Enqueuer { return d }),
)

// WorkerModule runs the queue workers for the lifetime of the app.
var WorkerModule = fx.Module("jobqueue.worker",
	fx.Invoke(func(lc fx.Lifecycle, d *Dispatcher) {
		lc.Append(fx.Hook{OnStart: d.Start, OnStop: d.Stop})
	}),
)

func NewBackend(cfg config.Config, client *redis.Client, log *zap.Logger) Backend {
	if cfg.Queue.Backend == "redis" && client != nil {
		return NewRedisBackend(client, cfg.Queue.JobTTL, log)
	}
	log.Info("using in-memory job queue")
	return NewMemoryBackend()
}
