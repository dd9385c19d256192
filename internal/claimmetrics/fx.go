package claimmetrics

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/hmsinsure/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("claim.metrics",
	fx.Invoke(Register),
)

var registerOnce sync.Once

// Register installs the claim metrics recorder and, when a push exporter is
// configured, ships the registry on cfg.MetricsPush.Interval. Push failures
// are logged and never block claim work.
func Register(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("claimmetrics")

	registerOnce.Do(func() {
		// The private registry holds only what is pushed; the default one
		// serves /metrics.
		registry := prometheus.NewRegistry()
		m := newMetrics(registry, prometheus.DefaultRegisterer)
		setRecorder(&recorder{metrics: m})

		if !cfg.MetricsPush.Enabled() {
			return
		}
		pusher, err := NewPusher(cfg)
		if err != nil {
			log.Warn("metrics push disabled", zap.Error(err))
			return
		}

		loop := newPushLoop(pusher, registry, m, cfg.MetricsPush.Interval, log)
		lc.Append(fx.Hook{
			OnStart: func(context.Context) error {
				loop.Start()
				return nil
			},
			OnStop: func(ctx context.Context) error {
				return loop.Stop(ctx)
			},
		})
	})
}

type pushLoop struct {
	pusher   Pusher
	gatherer prometheus.Gatherer
	metrics  *metrics
	interval time.Duration
	log      *zap.Logger

	stopCh chan struct{}
	doneCh chan struct{}
}

func newPushLoop(pusher Pusher, gatherer prometheus.Gatherer, m *metrics, interval time.Duration, log *zap.Logger) *pushLoop {
	if interval <= 0 {
		interval = time.Minute
	}
	return &pushLoop{
		pusher:   pusher,
		gatherer: gatherer,
		metrics:  m,
		interval: interval,
		log:      log,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

func (l *pushLoop) Start() {
	go func() {
		defer close(l.doneCh)
		ticker := time.NewTicker(l.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				l.pushOnce()
			case <-l.stopCh:
				l.pushOnce()
				return
			}
		}
	}()
}

func (l *pushLoop) Stop(ctx context.Context) error {
	close(l.stopCh)
	select {
	case <-l.doneCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *pushLoop) pushOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), defaultPushTimeout)
	defer cancel()
	if err := l.pusher.Push(ctx, l.gatherer); err != nil {
		l.log.Warn("metrics push failed", zap.Error(err))
		return
	}
	if l.metrics != nil {
		l.metrics.lastPush.SetToCurrentTime()
	}
}
