package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dataask/dataask/core/domain"
	"github.com/dataask/dataask/core/domain/interfaces/mocks"
	apperrors "github.com/dataask/dataask/core/shared/errors"
)

type recordingRunner struct {
	mu    sync.Mutex
	calls []string
	block chan struct{}
}

func (r *recordingRunner) Run(_ context.Context, id string) *Outcome {
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	r.calls = append(r.calls, id)
	r.mu.Unlock()
	return &Outcome{Status: domain.RunSuccess}
}

func (r *recordingRunner) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

var fixedNow = time.Date(2024, 3, 1, 10, 0, 30, 0, time.UTC)

func newTestManager(t *testing.T) (*Manager, *mocks.MockScheduledQueryRepository, *recordingRunner) {
	repo := mocks.NewMockScheduledQueryRepository(t)
	runner := &recordingRunner{}
	m := NewManager(repo, runner, nil)
	m.now = func() time.Time { return fixedNow }
	t.Cleanup(func() { _ = m.Stop(context.Background()) })
	return m, repo, runner
}

func cronQuery(id, expr string) *domain.ScheduledQuery {
	return &domain.ScheduledQuery{ID: id, Enabled: true, ScheduleType: domain.ScheduleCron, CronExpression: expr}
}

func intervalQuery(id string, minutes int) *domain.ScheduledQuery {
	return &domain.ScheduledQuery{ID: id, Enabled: true, ScheduleType: domain.ScheduleInterval, IntervalMinutes: minutes}
}

func timePtr(t time.Time) *time.Time { return &t }

func generation(m *Manager, id string) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries[id].gen
}

func fireCurrent(m *Manager, id string) {
	m.fire(id, generation(m, id))
}

func TestParseSchedule(t *testing.T) {
	tests := []struct {
		name    string
		query   *domain.ScheduledQuery
		want    time.Time
		wantErr bool
	}{
		{
			name:  "five fields",
			query: cronQuery("a", "0 9 * * *"),
			want:  time.Date(2024, 3, 2, 9, 0, 0, 0, time.UTC),
		},
		{
			name:  "six fields with seconds",
			query: cronQuery("a", "15 0 10 * * *"),
			want:  time.Date(2024, 3, 2, 10, 0, 15, 0, time.UTC),
		},
		{
			name:  "descriptor",
			query: cronQuery("a", "@hourly"),
			want:  time.Date(2024, 3, 1, 11, 0, 0, 0, time.UTC),
		},
		{
			name:  "interval",
			query: intervalQuery("a", 15),
			want:  fixedNow.Add(15 * time.Minute),
		},
		{name: "garbage cron", query: cronQuery("a", "every day"), wantErr: true},
		{name: "empty cron", query: cronQuery("a", ""), wantErr: true},
		{name: "zero interval", query: intervalQuery("a", 0), wantErr: true},
		{name: "unknown type", query: &domain.ScheduledQuery{ScheduleType: "weekly"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sched, err := ParseSchedule(tt.query)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, apperrors.IsValidationError(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, sched.Next(fixedNow).UTC())
		})
	}
}

func TestManager_RegisterPersistsNextRun(t *testing.T) {
	m, repo, _ := newTestManager(t)
	ctx := context.Background()

	repo.On("UpdateNextRun", ctx, "sq-1", timePtr(time.Date(2024, 3, 1, 11, 0, 0, 0, time.UTC))).Return(nil).Once()
	require.NoError(t, m.Register(ctx, cronQuery("sq-1", "0 * * * *")))
	assert.True(t, m.Registered("sq-1"))

	next, ok := m.NextRun("sq-1")
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 3, 1, 11, 0, 0, 0, time.UTC), next)

	// registering again replaces the trigger
	repo.On("UpdateNextRun", ctx, "sq-1", timePtr(fixedNow.Add(5*time.Minute))).Return(nil).Once()
	require.NoError(t, m.Register(ctx, intervalQuery("sq-1", 5)))
	assert.Len(t, m.cron.Entries(), 1)

	next, ok = m.NextRun("sq-1")
	require.True(t, ok)
	assert.Equal(t, fixedNow.Add(5*time.Minute), next)
}

func TestManager_RegisterDisabled(t *testing.T) {
	m, repo, _ := newTestManager(t)
	ctx := context.Background()

	repo.On("UpdateNextRun", ctx, "sq-1", mock.Anything).Return(nil).Once()
	require.NoError(t, m.Register(ctx, cronQuery("sq-1", "0 * * * *")))

	disabled := cronQuery("sq-1", "0 * * * *")
	disabled.Enabled = false
	repo.On("UpdateNextRun", ctx, "sq-1", (*time.Time)(nil)).Return(nil).Once()
	require.NoError(t, m.Register(ctx, disabled))

	assert.False(t, m.Registered("sq-1"))
	_, ok := m.NextRun("sq-1")
	assert.False(t, ok)
	assert.Empty(t, m.cron.Entries())
}

func TestManager_RegisterInvalidKeepsNothing(t *testing.T) {
	m, _, _ := newTestManager(t)

	err := m.Register(context.Background(), cronQuery("sq-1", "61 * * * *"))
	require.Error(t, err)
	assert.True(t, apperrors.IsValidationError(err))
	assert.False(t, m.Registered("sq-1"))
}

func TestManager_Deregister(t *testing.T) {
	m, repo, _ := newTestManager(t)
	ctx := context.Background()
	repo.On("UpdateNextRun", ctx, "sq-1", mock.Anything).Return(nil)

	require.NoError(t, m.Register(ctx, intervalQuery("sq-1", 1)))
	m.Deregister("sq-1")
	m.Deregister("sq-1")
	m.Deregister("never-registered")

	assert.False(t, m.Registered("sq-1"))
	assert.Empty(t, m.cron.Entries())
}

func TestManager_Bootstrap(t *testing.T) {
	m, repo, _ := newTestManager(t)
	ctx := context.Background()

	repo.On("ListEnabled", ctx).Return([]*domain.ScheduledQuery{
		cronQuery("good-cron", "*/5 * * * *"),
		intervalQuery("good-interval", 30),
		cronQuery("bad", "not a cron"),
	}, nil)
	repo.On("UpdateNextRun", ctx, "good-cron", mock.Anything).Return(nil)
	repo.On("UpdateNextRun", ctx, "good-interval", mock.Anything).Return(nil)

	require.NoError(t, m.Bootstrap(ctx))
	assert.True(t, m.Registered("good-cron"))
	assert.True(t, m.Registered("good-interval"))
	assert.False(t, m.Registered("bad"))
}

func TestManager_BootstrapListError(t *testing.T) {
	m, repo, _ := newTestManager(t)
	repo.On("ListEnabled", mock.Anything).Return(nil, errors.New("db locked"))

	assert.Error(t, m.Bootstrap(context.Background()))
}

func TestManager_FireRunsAndPersistsNextRun(t *testing.T) {
	m, repo, runner := newTestManager(t)
	ctx := context.Background()
	repo.On("UpdateNextRun", ctx, "sq-1", mock.Anything).Return(nil).Once()
	require.NoError(t, m.Register(ctx, intervalQuery("sq-1", 10)))

	repo.On("UpdateNextRun", mock.Anything, "sq-1", timePtr(fixedNow.Add(10*time.Minute))).Return(nil).Once()
	fireCurrent(m, "sq-1")

	assert.Equal(t, 1, runner.count())
}

func TestManager_FireSkipsWhileRunning(t *testing.T) {
	m, repo, runner := newTestManager(t)
	ctx := context.Background()
	repo.On("UpdateNextRun", mock.Anything, "sq-1", mock.Anything).Return(nil)
	require.NoError(t, m.Register(ctx, intervalQuery("sq-1", 10)))

	release, ok, err := m.guard.TryAcquire(ctx, "sq-1")
	require.NoError(t, err)
	require.True(t, ok)

	fireCurrent(m, "sq-1")
	assert.Equal(t, 0, runner.count())

	release()
	fireCurrent(m, "sq-1")
	assert.Equal(t, 1, runner.count())
}

func TestManager_StopWaitsForRunningJobs(t *testing.T) {
	repo := mocks.NewMockScheduledQueryRepository(t)
	runner := &recordingRunner{block: make(chan struct{})}
	m := NewManager(repo, runner, nil)
	repo.On("UpdateNextRun", mock.Anything, "sq-1", mock.Anything).Return(nil)
	require.NoError(t, m.Register(context.Background(), cronQuery("sq-1", "* * * * * *")))
	m.Start()

	require.Eventually(t, func() bool {
		// wait until a job is blocked inside the runner
		release, ok, _ := m.guard.TryAcquire(context.Background(), "sq-1")
		if ok {
			release()
			return false
		}
		return true
	}, 3*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, m.Stop(ctx), context.DeadlineExceeded)

	close(runner.block)
	require.NoError(t, m.Stop(context.Background()))
	assert.GreaterOrEqual(t, runner.count(), 1)
}

func TestManager_StaleFireDoesNotPersist(t *testing.T) {
	tests := []struct {
		name   string
		change func(m *Manager, repo *mocks.MockScheduledQueryRepository)
		writes int
	}{
		{
			name:   "rescheduled",
			writes: 2,
			change: func(m *Manager, repo *mocks.MockScheduledQueryRepository) {
				repo.On("UpdateNextRun", mock.Anything, "sq-1", timePtr(fixedNow.Add(20*time.Minute))).Return(nil).Once()
				require.NoError(t, m.Register(context.Background(), intervalQuery("sq-1", 20)))
			},
		},
		{
			name:   "disabled",
			writes: 2,
			change: func(m *Manager, repo *mocks.MockScheduledQueryRepository) {
				q := intervalQuery("sq-1", 10)
				q.Enabled = false
				repo.On("UpdateNextRun", mock.Anything, "sq-1", (*time.Time)(nil)).Return(nil).Once()
				require.NoError(t, m.Register(context.Background(), q))
			},
		},
		{
			name:   "deregistered",
			writes: 1,
			change: func(m *Manager, _ *mocks.MockScheduledQueryRepository) {
				m.Deregister("sq-1")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, repo, runner := newTestManager(t)
			repo.On("UpdateNextRun", mock.Anything, "sq-1", timePtr(fixedNow.Add(10*time.Minute))).Return(nil).Once()
			require.NoError(t, m.Register(context.Background(), intervalQuery("sq-1", 10)))
			stale := generation(m, "sq-1")

			tt.change(m, repo)
			m.fire("sq-1", stale)

			assert.Equal(t, 1, runner.count())
			repo.AssertNumberOfCalls(t, "UpdateNextRun", tt.writes)
		})
	}
}

func TestManager_LocksAreReleased(t *testing.T) {
	m, repo, _ := newTestManager(t)
	repo.On("UpdateNextRun", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, m.Register(context.Background(), intervalQuery("sq-1", 5)))
			m.Deregister("sq-1")
		}()
	}
	wg.Wait()
	m.Deregister("sq-2")

	m.mu.Lock()
	defer m.mu.Unlock()
	assert.Empty(t, m.locks)
	assert.Empty(t, m.entries)
}

func TestManager_LockSerialisesSameID(t *testing.T) {
	m, _, _ := newTestManager(t)

	var (
		mu      sync.Mutex
		holders int
		maxSeen int
		wg      sync.WaitGroup
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := m.lock("sq-1")
			mu.Lock()
			holders++
			if holders > maxSeen {
				maxSeen = holders
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			holders--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxSeen)
}
