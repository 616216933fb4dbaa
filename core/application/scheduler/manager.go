// Package scheduler fires scheduled queries on their cron or interval
// triggers and delivers the results by email.
package scheduler

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/dataask/dataask/core/domain"
	"github.com/dataask/dataask/core/domain/interfaces"
	"github.com/dataask/dataask/core/logger"
	apperrors "github.com/dataask/dataask/core/shared/errors"
)

// cronParser accepts standard five-field expressions, an optional leading
// seconds field, and descriptors such as @daily.
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// JobRunner runs one scheduled query.
type JobRunner interface {
	Run(ctx context.Context, id string) *Outcome
}

type registration struct {
	entry    cron.EntryID
	schedule cron.Schedule
	gen      uint64
}

// idLock is a per-id mutex that lives in Manager.locks only while some
// caller holds or waits for it.
type idLock struct {
	mu   sync.Mutex
	refs int
}

// Manager keeps one cron entry per enabled scheduled query. Calls for the
// same id are serialised; different ids proceed in parallel.
type Manager struct {
	repo   interfaces.ScheduledQueryRepository
	runner JobRunner
	guard  interfaces.RunGuard
	cron   *cron.Cron
	now    func() time.Time
	log    logger.Logger

	runCtx    context.Context
	cancelRun context.CancelFunc

	mu      sync.Mutex
	gen     uint64
	entries map[string]registration
	locks   map[string]*idLock
}

// NewManager creates a stopped manager. A nil guard uses a MemoryGuard.
func NewManager(repo interfaces.ScheduledQueryRepository, runner JobRunner, guard interfaces.RunGuard) *Manager {
	if guard == nil {
		guard = NewMemoryGuard()
	}
	log := logger.New("scheduler")
	runCtx, cancel := context.WithCancel(context.Background())
	return &Manager{
		repo:   repo,
		runner: runner,
		guard:  guard,
		cron: cron.New(
			cron.WithParser(cronParser),
			cron.WithLocation(time.UTC),
			cron.WithChain(cron.Recover(cronLogger{log})),
		),
		now:       time.Now,
		log:       log,
		runCtx:    runCtx,
		cancelRun: cancel,
		entries:   make(map[string]registration),
		locks:     make(map[string]*idLock),
	}
}

// ParseSchedule builds the trigger for q. Cron expressions are evaluated in
// UTC unless they carry their own CRON_TZ prefix.
func ParseSchedule(q *domain.ScheduledQuery) (cron.Schedule, error) {
	if err := q.ValidateSchedule(); err != nil {
		return nil, err
	}
	switch q.ScheduleType {
	case domain.ScheduleCron:
		expr := strings.TrimSpace(q.CronExpression)
		if !strings.HasPrefix(expr, "CRON_TZ=") && !strings.HasPrefix(expr, "TZ=") {
			expr = "CRON_TZ=UTC " + expr
		}
		sched, err := cronParser.Parse(expr)
		if err != nil {
			return nil, apperrors.WrapError(apperrors.ErrCodeValidationError,
				"invalid cron_expression '"+q.CronExpression+"'", err)
		}
		return sched, nil
	default:
		return cron.Every(time.Duration(q.IntervalMinutes) * time.Minute), nil
	}
}

func (m *Manager) lock(id string) func() {
	m.mu.Lock()
	l, ok := m.locks[id]
	if !ok {
		l = &idLock{}
		m.locks[id] = l
	}
	l.refs++
	m.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		m.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(m.locks, id)
		}
		m.mu.Unlock()
	}
}

// Register installs or replaces the trigger of q and persists its next run
// time. A disabled query is deregistered and its next run cleared.
func (m *Manager) Register(ctx context.Context, q *domain.ScheduledQuery) error {
	unlock := m.lock(q.ID)
	defer unlock()

	if !q.Enabled {
		m.remove(q.ID)
		m.log.Infof("Scheduled query %s is disabled, not scheduling", q.ID)
		return m.repo.UpdateNextRun(ctx, q.ID, nil)
	}

	sched, err := ParseSchedule(q)
	if err != nil {
		return err
	}

	m.remove(q.ID)
	id := q.ID

	m.mu.Lock()
	m.gen++
	gen := m.gen
	m.mu.Unlock()

	entry := m.cron.Schedule(sched, cron.FuncJob(func() { m.fire(id, gen) }))

	m.mu.Lock()
	m.entries[id] = registration{entry: entry, schedule: sched, gen: gen}
	m.mu.Unlock()

	next := sched.Next(m.now()).UTC()
	m.log.Infof("Scheduled query %s next run: %s", id, next.Format(time.RFC3339))
	return m.repo.UpdateNextRun(ctx, id, &next)
}

// Deregister removes the trigger of id, if any.
func (m *Manager) Deregister(id string) {
	unlock := m.lock(id)
	defer unlock()
	if m.remove(id) {
		m.log.Infof("Unscheduled query %s", id)
	}
}

func (m *Manager) remove(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	reg, ok := m.entries[id]
	if !ok {
		return false
	}
	m.cron.Remove(reg.entry)
	delete(m.entries, id)
	return true
}

// Bootstrap registers every enabled scheduled query. A query that fails to
// register is logged and skipped.
func (m *Manager) Bootstrap(ctx context.Context) error {
	queries, err := m.repo.ListEnabled(ctx)
	if err != nil {
		return err
	}

	var (
		g     errgroup.Group
		mu    sync.Mutex
		count int
	)
	g.SetLimit(8)
	for _, q := range queries {
		g.Go(func() error {
			if err := m.Register(ctx, q); err != nil {
				m.log.Errorf("Failed to schedule query %s: %v", q.ID, err)
				return nil
			}
			mu.Lock()
			count++
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	m.log.Infof("Loaded %d of %d scheduled queries", count, len(queries))
	return nil
}

// Start starts firing triggers.
func (m *Manager) Start() {
	m.cron.Start()
	m.log.Infof("Scheduler started")
}

// Stop stops firing and waits for running jobs until ctx is done, after
// which in-flight runs are cancelled.
func (m *Manager) Stop(ctx context.Context) error {
	done := m.cron.Stop()
	defer m.cancelRun()
	select {
	case <-done.Done():
		m.log.Infof("Scheduler stopped")
		return nil
	case <-ctx.Done():
		m.log.Warnf("Scheduler stop timed out, cancelling running jobs")
		return ctx.Err()
	}
}

// NextRun returns the next fire time of id.
func (m *Manager) NextRun(id string) (time.Time, bool) {
	m.mu.Lock()
	reg, ok := m.entries[id]
	m.mu.Unlock()
	if !ok {
		return time.Time{}, false
	}
	if e := m.cron.Entry(reg.entry); e.Valid() && !e.Next.IsZero() {
		return e.Next.UTC(), true
	}
	return reg.schedule.Next(m.now()).UTC(), true
}

// Registered reports whether id has a trigger.
func (m *Manager) Registered(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.entries[id]
	return ok
}

// Trigger calls run for id while holding the run guard. The second result
// is false when another run of id holds the guard.
func (m *Manager) Trigger(ctx context.Context, id string, run func(ctx context.Context, id string) *Outcome) (*Outcome, bool) {
	release, ok, err := m.guard.TryAcquire(ctx, id)
	if err != nil {
		m.log.Errorf("Run guard failed for %s: %v", id, err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	defer release()
	return run(ctx, id), true
}

// fire is the cron job body of registration gen. The next run is persisted
// under the id lock and only while gen is still the live registration, so
// a fire that straddles Register or Deregister never writes a stale value.
func (m *Manager) fire(id string, gen uint64) {
	firedAt := m.now()
	ctx := m.runCtx

	if _, acquired := m.Trigger(ctx, id, m.runner.Run); !acquired {
		m.log.Warnf("Scheduled query %s is still running, skipping this fire", id)
	}

	unlock := m.lock(id)
	defer unlock()

	m.mu.Lock()
	reg, ok := m.entries[id]
	m.mu.Unlock()
	if !ok || reg.gen != gen {
		return
	}
	next := reg.schedule.Next(firedAt).UTC()
	if err := m.repo.UpdateNextRun(context.WithoutCancel(ctx), id, &next); err != nil {
		m.log.Errorf("Failed to persist next run of %s: %v", id, err)
	}
}

// cronLogger adapts logger.Logger to cron.Logger.
type cronLogger struct {
	log logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debugf("cron: %s %v", msg, keysAndValues)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorf("cron: %s: %v %v", msg, err, keysAndValues)
}
