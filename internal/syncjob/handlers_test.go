package syncjob

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/smallbiznis/hmsinsure/internal/clock"
	"github.com/smallbiznis/hmsinsure/internal/config"
	coveragedomain "github.com/smallbiznis/hmsinsure/internal/coverage/domain"
	itempricedomain "github.com/smallbiznis/hmsinsure/internal/itemprice/domain"
	"github.com/smallbiznis/hmsinsure/internal/jobqueue"
	pricepackagedomain "github.com/smallbiznis/hmsinsure/internal/pricepackage/domain"
	providerdomain "github.com/smallbiznis/hmsinsure/internal/provider/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubPackages struct {
	pricepackagedomain.Service
	calls []string
	err   error
}

func (s *stubPackages) Sync(_ context.Context, p providerdomain.Provider, company string) (*pricepackagedomain.SyncResult, error) {
	s.calls = append(s.calls, p.String()+"/"+company)
	if s.err != nil {
		return nil, s.err
	}
	return &pricepackagedomain.SyncResult{Provider: p.String(), Company: company, Packages: 3}, nil
}

type stubCoverage struct {
	coveragedomain.Service
	plans []string
	err   error
}

func (s *stubCoverage) Materialize(_ context.Context, p providerdomain.Provider, company, plan string) (*coveragedomain.MaterializeResult, error) {
	s.plans = append(s.plans, plan)
	if s.err != nil {
		return nil, s.err
	}
	return &coveragedomain.MaterializeResult{Provider: p.String(), Company: company}, nil
}

type stubPrices struct {
	itempricedomain.Service
	calls int
}

func (s *stubPrices) SyncPriceLists(_ context.Context, p providerdomain.Provider, company string) (*itempricedomain.SyncResult, error) {
	s.calls++
	return &itempricedomain.SyncResult{Provider: p.String(), Company: company}, nil
}

type fixture struct {
	handlers   *Handlers
	dispatcher *jobqueue.Dispatcher
	backend    *jobqueue.MemoryBackend
	packages   *stubPackages
	coverage   *stubCoverage
	prices     *stubPrices
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	backend := jobqueue.NewMemoryBackend()
	dispatcher := jobqueue.New(jobqueue.Params{
		Backend: backend,
		Config:  config.Config{Queue: config.QueueConfig{Queues: []string{"default", LongQueue}}},
		Log:     zap.NewNop(),
		Clock:   clock.NewFakeClock(time.Date(2024, 5, 1, 2, 0, 0, 0, time.UTC)),
	})
	f := &fixture{dispatcher: dispatcher, backend: backend, packages: &stubPackages{}, coverage: &stubCoverage{}, prices: &stubPrices{}}

	h, err := New(Params{
		Dispatcher: dispatcher,
		Packages:   f.packages,
		Coverage:   f.coverage,
		Prices:     f.prices,
		Log:        zap.NewNop(),
	})
	require.NoError(t, err)
	f.handlers = h
	return f
}

// drain runs queued jobs of the long queue until it is empty.
func (f *fixture) drain(t *testing.T) []string {
	t.Helper()
	var methods []string
	for {
		job, err := f.backend.Pop(context.Background(), LongQueue, 10*time.Millisecond)
		require.NoError(t, err)
		if job == nil {
			return methods
		}
		methods = append(methods, job.Method)
		f.dispatcher.Run(context.Background(), job)
	}
}

func TestSyncJobChainsMaterializeAndPriceLists(t *testing.T) {
	f := newFixture(t)

	job, err := f.handlers.EnqueueSync(context.Background(), Args{Provider: "nhif", Company: "Aga Khan Hospital"})
	require.NoError(t, err)
	assert.Equal(t, LongQueue, job.Queue)

	methods := f.drain(t)
	assert.Equal(t, []string{MethodSyncPackages, MethodMaterialize, MethodPriceLists}, methods)
	assert.Equal(t, []string{"NHIF/Aga Khan Hospital"}, f.packages.calls)
	assert.Equal(t, []string{""}, f.coverage.plans)
	assert.Equal(t, 1, f.prices.calls)

	stored, err := f.dispatcher.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, jobqueue.StatusFinished, stored.Status)
}

func TestFailedSyncDoesNotEnqueueFollowUps(t *testing.T) {
	f := newFixture(t)
	f.packages.err = &providerdomain.StatusError{Provider: providerdomain.Jubilee, StatusCode: 500}

	job, err := f.handlers.EnqueueSync(context.Background(), Args{Provider: "Jubilee", Company: "Aga Khan Hospital"})
	require.NoError(t, err)

	assert.Equal(t, []string{MethodSyncPackages}, f.drain(t))
	assert.Empty(t, f.coverage.plans)
	assert.Zero(t, f.prices.calls)

	stored, err := f.dispatcher.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, jobqueue.StatusFailed, stored.Status)
}

func TestProcessSkipsProvidersWithoutActivePlan(t *testing.T) {
	f := newFixture(t)
	f.coverage.err = coveragedomain.ErrNoActivePlan

	jobs, err := f.handlers.EnqueueProcess(context.Background(), Args{Provider: "Jubilee", Company: "Aga Khan Hospital", Plan: "Gold"})
	require.NoError(t, err)
	require.Len(t, jobs, 2)

	f.drain(t)
	assert.Equal(t, []string{"Gold"}, f.coverage.plans)
	for _, job := range jobs {
		stored, err := f.dispatcher.Get(context.Background(), job.ID)
		require.NoError(t, err)
		assert.Equal(t, jobqueue.StatusFinished, stored.Status, job.Method)
	}
}

func TestEnqueueRejectsBadArgs(t *testing.T) {
	f := newFixture(t)

	_, err := f.handlers.EnqueueSync(context.Background(), Args{Provider: "AAR", Company: "Aga Khan Hospital"})
	assert.ErrorIs(t, err, providerdomain.ErrUnknownProvider)

	_, err = f.handlers.EnqueueProcess(context.Background(), Args{Provider: "NHIF"})
	assert.True(t, errors.Is(err, ErrInvalidArgs))
}
