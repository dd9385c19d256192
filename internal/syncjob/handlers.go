package syncjob

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/smallbiznis/hmsinsure/internal/claimmetrics"
	coveragedomain "github.com/smallbiznis/hmsinsure/internal/coverage/domain"
	itempricedomain "github.com/smallbiznis/hmsinsure/internal/itemprice/domain"
	"github.com/smallbiznis/hmsinsure/internal/jobqueue"
	obslogger "github.com/smallbiznis/hmsinsure/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/hmsinsure/internal/observability/metrics"
	pricepackagedomain "github.com/smallbiznis/hmsinsure/internal/pricepackage/domain"
	providerdomain "github.com/smallbiznis/hmsinsure/internal/provider/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	MethodSyncPackages = "pricepackage.sync"
	MethodMaterialize  = "coverage.materialize"
	MethodPriceLists   = "itemprice.sync"

	// LongQueue takes the provider calls and bulk rewrites.
	LongQueue = "long"
)

var ErrInvalidArgs = errors.New("invalid_job_arguments")

// Args is the kwargs payload shared by every provider job.
type Args struct {
	Provider string `json:"provider"`
	Company  string `json:"company"`
	Plan     string `json:"plan,omitempty"`
}

func (a Args) kwargs() map[string]any {
	out := map[string]any{"provider": a.Provider, "company": a.Company}
	if a.Plan != "" {
		out["plan"] = a.Plan
	}
	return out
}

func (a Args) parse() (providerdomain.Provider, string, error) {
	provider, err := providerdomain.ParseProvider(strings.TrimSpace(a.Provider))
	if err != nil {
		return "", "", err
	}
	company := strings.TrimSpace(a.Company)
	if company == "" {
		return "", "", fmt.Errorf("%w: company is required", ErrInvalidArgs)
	}
	return provider, company, nil
}

type Params struct {
	fx.In

	Dispatcher *jobqueue.Dispatcher
	Packages   pricepackagedomain.Service
	Coverage   coveragedomain.Service
	Prices     itempricedomain.Service
	Log        *zap.Logger
	Metrics    *obsmetrics.JobMetrics `optional:"true"`
}

// Handlers runs provider syncs on the job queue. A package sync enqueues the
// coverage and price list jobs once its snapshot is committed.
type Handlers struct {
	queue    jobqueue.Enqueuer
	packages pricepackagedomain.Service
	coverage coveragedomain.Service
	prices   itempricedomain.Service
	log      *zap.Logger
	metrics  *obsmetrics.JobMetrics
}

func New(p Params) (*Handlers, error) {
	h := &Handlers{
		queue:    p.Dispatcher,
		packages: p.Packages,
		coverage: p.Coverage,
		prices:   p.Prices,
		log:      p.Log.Named("syncjob"),
		metrics:  p.Metrics,
	}
	for method, fn := range map[string]jobqueue.Handler{
		MethodSyncPackages: h.SyncPackages,
		MethodMaterialize:  h.Materialize,
		MethodPriceLists:   h.SyncPriceLists,
	} {
		if err := p.Dispatcher.Register(method, fn); err != nil {
			return nil, err
		}
	}
	return h, nil
}

// EnqueueSync queues a price package sync for provider and company.
func (h *Handlers) EnqueueSync(ctx context.Context, args Args) (*jobqueue.Job, error) {
	if _, _, err := args.parse(); err != nil {
		return nil, err
	}
	return h.queue.Enqueue(ctx, jobqueue.Request{Method: MethodSyncPackages, Queue: LongQueue, Kwargs: args.kwargs()})
}

// EnqueueProcess queues coverage materialization and the price list sync
// against the packages already stored.
func (h *Handlers) EnqueueProcess(ctx context.Context, args Args) ([]*jobqueue.Job, error) {
	if _, _, err := args.parse(); err != nil {
		return nil, err
	}
	return h.enqueueFollowUps(ctx, args)
}

func (h *Handlers) enqueueFollowUps(ctx context.Context, args Args) ([]*jobqueue.Job, error) {
	jobs := make([]*jobqueue.Job, 0, 2)
	for _, method := range []string{MethodMaterialize, MethodPriceLists} {
		job, err := h.queue.Enqueue(ctx, jobqueue.Request{Method: method, Queue: LongQueue, Kwargs: args.kwargs()})
		if err != nil {
			return jobs, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

func (h *Handlers) SyncPackages(ctx context.Context, job jobqueue.Job) error {
	var args Args
	if err := job.Decode(&args); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgs, err)
	}
	provider, company, err := args.parse()
	if err != nil {
		return err
	}

	result, err := h.packages.Sync(ctx, provider, company)
	if err != nil {
		claimmetrics.RecordProviderSync(provider.String(), company, claimmetrics.OutcomeFailed)
		return err
	}
	claimmetrics.RecordProviderSync(provider.String(), company, claimmetrics.OutcomeSuccess)
	h.metrics.AddItemsProcessed(job.Method, "price_package", result.Packages)

	// Sync has committed; the follow-ups read the new snapshot.
	if _, err := h.enqueueFollowUps(ctx, Args{Provider: provider.String(), Company: company}); err != nil {
		return fmt.Errorf("enqueue follow-up jobs: %w", err)
	}
	obslogger.WithContext(ctx, h.log).Info("price packages synced",
		zap.String("provider", provider.String()),
		zap.String("company", company),
		zap.Int("packages", result.Packages),
		zap.Bool("changed", result.Update != nil),
	)
	return nil
}

func (h *Handlers) Materialize(ctx context.Context, job jobqueue.Job) error {
	var args Args
	if err := job.Decode(&args); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgs, err)
	}
	provider, company, err := args.parse()
	if err != nil {
		return err
	}

	result, err := h.coverage.Materialize(ctx, provider, company, args.Plan)
	if errors.Is(err, coveragedomain.ErrNoActivePlan) {
		obslogger.WithContext(ctx, h.log).Info("no active coverage plan, nothing to materialize",
			zap.String("provider", provider.String()), zap.String("company", company))
		return nil
	}
	if err != nil {
		return err
	}
	for _, plan := range result.Plans {
		h.metrics.AddItemsProcessed(job.Method, "coverage", plan.Inserted)
	}
	return nil
}

func (h *Handlers) SyncPriceLists(ctx context.Context, job jobqueue.Job) error {
	var args Args
	if err := job.Decode(&args); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgs, err)
	}
	provider, company, err := args.parse()
	if err != nil {
		return err
	}

	result, err := h.prices.SyncPriceLists(ctx, provider, company)
	if err != nil {
		return err
	}
	h.metrics.AddItemsProcessed(job.Method, "item_price", result.Created+result.Updated+result.Deleted)
	return nil
}
