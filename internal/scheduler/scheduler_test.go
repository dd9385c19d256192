package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/smallbiznis/hmsinsure/internal/cache"
	"github.com/smallbiznis/hmsinsure/internal/clock"
	"github.com/smallbiznis/hmsinsure/internal/config"
	"github.com/smallbiznis/hmsinsure/internal/jobqueue"
	"github.com/smallbiznis/hmsinsure/internal/scheduler/guard"
	"github.com/smallbiznis/hmsinsure/internal/syncjob"
	"github.com/smallbiznis/hmsinsure/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingSyncs struct {
	args []syncjob.Args
	err  error
}

func (r *recordingSyncs) EnqueueSync(_ context.Context, args syncjob.Args) (*jobqueue.Job, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.args = append(r.args, args)
	return &jobqueue.Job{ID: "job-" + args.Company}, nil
}

func setting(company, provider string, autoSync bool) config.ProviderSetting {
	return config.ProviderSetting{
		Company:    company,
		Provider:   provider,
		Enabled:    true,
		AutoSync:   autoSync,
		ServiceURL: "https://provider.example",
		Username:   "hms",
		Password:   "secret",
	}
}

func newTestScheduler(t *testing.T, settings config.StaticSettings, syncs *recordingSyncs, fake *clock.FakeClock) *Scheduler {
	t.Helper()
	s, err := New(Params{
		Log:      zap.NewNop(),
		GenID:    dbtest.Node(t),
		Clock:    fake,
		Settings: settings,
		Syncs:    syncs,
		Locker:   cache.NewLocker(nil),
		Config:   Config{RunInterval: time.Hour, JobTimeout: time.Minute},
	})
	require.NoError(t, err)
	return s
}

func TestProviderSyncEnqueuesAutoSyncTargetsOncePerTick(t *testing.T) {
	noCredentials := setting("Mnazi Mmoja", "NHIF", true)
	noCredentials.Password = ""
	settings := config.StaticSettings{Providers: []config.ProviderSetting{
		setting("Aga Khan Hospital", "NHIF", true),
		setting("Aga Khan Hospital", "Jubilee", false),
		setting("Regency", "Jubilee", true),
		noCredentials,
	}}
	syncs := &recordingSyncs{}
	fake := clock.NewFakeClock(time.Date(2024, 5, 1, 2, 10, 0, 0, time.UTC))
	s := newTestScheduler(t, settings, syncs, fake)

	require.NoError(t, s.RunOnce(context.Background()))
	assert.Equal(t, []syncjob.Args{
		{Provider: "NHIF", Company: "Aga Khan Hospital"},
		{Provider: "Jubilee", Company: "Regency"},
	}, syncs.args)

	// another worker on the same tick
	fake.Advance(20 * time.Minute)
	require.NoError(t, s.RunOnce(context.Background()))
	assert.Len(t, syncs.args, 2)

	fake.Advance(time.Hour)
	require.NoError(t, s.RunOnce(context.Background()))
	assert.Len(t, syncs.args, 4)
}

func TestProviderSyncReportsEnqueueFailures(t *testing.T) {
	settings := config.StaticSettings{Providers: []config.ProviderSetting{setting("Aga Khan Hospital", "NHIF", true)}}
	syncs := &recordingSyncs{err: jobqueue.ErrUnknownQueue}
	s := newTestScheduler(t, settings, syncs, clock.NewFakeClock(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)))

	err := s.RunOnce(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, jobqueue.ErrUnknownQueue)
	assert.Contains(t, err.Error(), JobProviderSync)
}

func TestRunJobTimeoutDoesNotReturnError(t *testing.T) {
	s := newTestScheduler(t, config.StaticSettings{}, &recordingSyncs{}, clock.NewFakeClock(time.Time{}))

	err := s.runJob(context.Background(), "timeout_job", 5*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	assert.NoError(t, err)

	err = s.runJob(context.Background(), "failing_job", time.Second, func(context.Context) error {
		return errors.New("boom")
	})
	assert.EqualError(t, err, "failing_job: boom")
}

func TestDisabledJobsAreSkipped(t *testing.T) {
	settings := config.StaticSettings{Providers: []config.ProviderSetting{setting("Aga Khan Hospital", "NHIF", true)}}
	syncs := &recordingSyncs{}
	s := newTestScheduler(t, settings, syncs, clock.NewFakeClock(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)))
	s.cfg.EnabledJobs = []string{"something_else"}

	require.NoError(t, s.RunOnce(context.Background()))
	assert.Empty(t, syncs.args)
}

func TestEnsureCanSync(t *testing.T) {
	ok := setting("Aga Khan Hospital", "NHIF", true)
	assert.NoError(t, guard.EnsureCanSync(ok))

	disabled := ok
	disabled.AutoSync = false
	assert.ErrorIs(t, guard.EnsureCanSync(disabled), guard.ErrSyncDisabled)

	noURL := ok
	noURL.ServiceURL = " "
	assert.ErrorIs(t, guard.EnsureCanSync(noURL), guard.ErrMissingServiceURL)

	noUser := ok
	noUser.Username = ""
	assert.ErrorIs(t, guard.EnsureCanSync(noUser), guard.ErrMissingCredential)
}
