package jobqueue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/smallbiznis/hmsinsure/internal/clock"
	"github.com/smallbiznis/hmsinsure/internal/config"
	obscontext "github.com/smallbiznis/hmsinsure/internal/observability/context"
	obslogger "github.com/smallbiznis/hmsinsure/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/hmsinsure/internal/observability/metrics"
	"github.com/smallbiznis/hmsinsure/pkg/telemetry/correlation"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	popWait           = 2 * time.Second
	heartbeatInterval = 10 * time.Second
	heartbeatTTL      = 3 * heartbeatInterval
)

type Params struct {
	fx.In

	Backend Backend
	Config  config.Config
	Log     *zap.Logger
	Clock   clock.Clock
	Metrics *obsmetrics.JobMetrics `optional:"true"`
}

// Dispatcher routes jobs from named queues to registered handlers. Every job
// runs at most once; a failure is recorded on the job and never retried.
type Dispatcher struct {
	backend Backend
	log     *zap.Logger
	clock   clock.Clock
	metrics *obsmetrics.JobMetrics

	queues         []string
	workers        int
	defaultTimeout time.Duration

	mu       sync.RWMutex
	handlers map[string]Handler

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

func New(p Params) *Dispatcher {
	queues := make([]string, 0, len(p.Config.Queue.Queues))
	for _, q := range p.Config.Queue.Queues {
		if q = strings.TrimSpace(q); q != "" {
			queues = append(queues, q)
		}
	}
	if len(queues) == 0 {
		queues = []string{DefaultQueue}
	}
	workers := p.Config.Queue.WorkersPerQueue
	if workers <= 0 {
		workers = 1
	}
	timeout := p.Config.Queue.DefaultTimeout
	if timeout <= 0 {
		timeout = 25 * time.Minute
	}
	return &Dispatcher{
		backend:        p.Backend,
		log:            p.Log.Named("jobqueue"),
		clock:          p.Clock,
		metrics:        p.Metrics,
		queues:         queues,
		workers:        workers,
		defaultTimeout: timeout,
		handlers:       map[string]Handler{},
	}
}

// Register binds a handler to a method name.
func (d *Dispatcher) Register(method string, h Handler) error {
	method = strings.TrimSpace(method)
	if method == "" || h == nil {
		return ErrUnknownMethod
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.handlers[method]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, method)
	}
	d.handlers[method] = h
	return nil
}

func (d *Dispatcher) handler(method string) (Handler, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	h, ok := d.handlers[method]
	return h, ok
}

func (d *Dispatcher) knownQueue(queue string) bool {
	for _, q := range d.queues {
		if q == queue {
			return true
		}
	}
	return false
}

func (d *Dispatcher) Enqueue(ctx context.Context, req Request) (*Job, error) {
	if _, ok := d.handler(req.Method); !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMethod, req.Method)
	}
	queue := strings.TrimSpace(req.Queue)
	if queue == "" {
		queue = DefaultQueue
	}
	if !d.knownQueue(queue) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownQueue, queue)
	}
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = d.defaultTimeout
	}

	job := &Job{
		ID:         ulid.Make().String(),
		Method:     req.Method,
		Queue:      queue,
		Status:     StatusQueued,
		Kwargs:     req.Kwargs,
		Timeout:    timeout,
		Carrier:    correlation.Capture(ctx),
		EnqueuedAt: d.clock.Now(),
	}
	if err := d.backend.Push(ctx, job); err != nil {
		return nil, err
	}
	d.metrics.IncEnqueued(job.Method, job.Queue)

	obslogger.WithContext(ctx, d.log).Info("job enqueued",
		zap.String("job_id", job.ID),
		zap.String("method", job.Method),
		zap.String("queue", job.Queue),
	)
	return job, nil
}

func (d *Dispatcher) Get(ctx context.Context, id string) (*Job, error) {
	return d.backend.Get(ctx, strings.TrimSpace(id))
}

// Start announces this worker, fails jobs left behind by workers whose
// heartbeat expired and spawns the workers.
func (d *Dispatcher) Start(ctx context.Context) error {
	if err := d.backend.Heartbeat(ctx, heartbeatTTL); err != nil {
		d.log.Warn("failed to write worker heartbeat", zap.Error(err))
	}
	if err := d.failAbandoned(ctx); err != nil {
		d.log.Warn("failed to sweep abandoned jobs", zap.Error(err))
	}

	runCtx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	d.wg.Add(1)
	go d.heartbeat(runCtx)
	for _, queue := range d.queues {
		for i := 0; i < d.workers; i++ {
			d.wg.Add(1)
			go d.work(runCtx, queue)
		}
	}
	d.log.Info("job workers started", zap.Strings("queues", d.queues), zap.Int("workers_per_queue", d.workers))
	return nil
}

func (d *Dispatcher) Stop(ctx context.Context) error {
	if d.cancel != nil {
		d.cancel()
	}
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		if err := d.backend.Retire(ctx); err != nil {
			d.log.Warn("failed to retire worker", zap.Error(err))
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) heartbeat(ctx context.Context) {
	defer d.wg.Done()
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := d.backend.Heartbeat(ctx, heartbeatTTL); err != nil && ctx.Err() == nil {
				d.log.Warn("failed to write worker heartbeat", zap.Error(err))
			}
		}
	}
}

func (d *Dispatcher) work(ctx context.Context, queue string) {
	defer d.wg.Done()
	for {
		if ctx.Err() != nil {
			return
		}
		job, err := d.backend.Pop(ctx, queue, popWait)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			d.log.Warn("failed to pop job", zap.String("queue", queue), zap.Error(err))
			_ = d.clock.Sleep(ctx, time.Second)
			continue
		}
		if job == nil {
			if depth, err := d.backend.Depth(ctx, queue); err == nil {
				d.metrics.SetQueueDepth(queue, depth)
			}
			continue
		}
		d.Run(ctx, job)
	}
}

// Run executes one popped job and records its outcome.
func (d *Dispatcher) Run(parent context.Context, job *Job) {
	ctx := correlation.Restore(context.WithoutCancel(parent), job.Carrier)
	ctx = obscontext.WithJobID(ctx, job.ID)
	log := obslogger.WithContext(ctx, d.log).With(
		zap.String("job_id", job.ID),
		zap.String("method", job.Method),
		zap.String("queue", job.Queue),
	)

	start := d.clock.Now()
	job.markStarted(start)
	if err := d.backend.Save(ctx, job); err != nil {
		log.Warn("failed to save job start", zap.Error(err))
	}

	err := d.execute(ctx, job)
	job.markEnded(d.clock.Now(), err)
	d.metrics.ObserveRun(job.Method, time.Since(start), err)

	if err := d.backend.Save(ctx, job); err != nil {
		log.Warn("failed to save job result", zap.Error(err))
	}
	if err := d.backend.Ack(ctx, job); err != nil {
		log.Warn("failed to ack job", zap.Error(err))
	}

	if err != nil {
		log.Error("job failed", zap.Error(err))
		return
	}
	log.Info("job finished", zap.Duration("duration", time.Since(start)))
}

func (d *Dispatcher) execute(ctx context.Context, job *Job) (err error) {
	h, ok := d.handler(job.Method)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownMethod, job.Method)
	}

	ctx, cancel := context.WithTimeout(ctx, job.Timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	err = h(ctx, *job)
	if err == nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		err = ctx.Err()
	}
	return err
}

func (d *Dispatcher) failAbandoned(ctx context.Context) error {
	jobs, err := d.backend.Abandoned(ctx)
	if err != nil {
		return err
	}
	now := d.clock.Now()
	for _, job := range jobs {
		job.markEnded(now, errors.New("abandoned by worker shutdown"))
		if err := d.backend.Save(ctx, job); err != nil {
			return err
		}
		if err := d.backend.Ack(ctx, job); err != nil {
			return err
		}
		d.log.Warn("abandoned job marked failed",
			zap.String("job_id", job.ID),
			zap.String("method", job.Method),
			zap.String("worker", job.Worker),
		)
	}
	return nil
}
