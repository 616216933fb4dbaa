package scheduler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dataask/dataask/core/domain"
	"github.com/dataask/dataask/core/domain/interfaces/mocks"
	apperrors "github.com/dataask/dataask/core/shared/errors"
)

type fakeRegistry struct {
	registered   []string
	deregistered []string
	busy         bool
}

func (r *fakeRegistry) Register(_ context.Context, q *domain.ScheduledQuery) error {
	r.registered = append(r.registered, q.ID)
	return nil
}

func (r *fakeRegistry) Deregister(id string) {
	r.deregistered = append(r.deregistered, id)
}

func (r *fakeRegistry) Trigger(ctx context.Context, id string, run func(context.Context, string) *Outcome) (*Outcome, bool) {
	if r.busy {
		return nil, false
	}
	return run(ctx, id), true
}

type fakeManualRunner struct {
	out *Outcome
	ids []string
}

func (r *fakeManualRunner) RunNow(_ context.Context, id string) *Outcome {
	r.ids = append(r.ids, id)
	return r.out
}

type serviceFixture struct {
	repo        *mocks.MockScheduledQueryRepository
	connections *mocks.MockConnectionRepository
	registry    *fakeRegistry
	runner      *fakeManualRunner
	svc         *Service
}

func newServiceFixture(t *testing.T) *serviceFixture {
	f := &serviceFixture{
		repo:        mocks.NewMockScheduledQueryRepository(t),
		connections: mocks.NewMockConnectionRepository(t),
		registry:    &fakeRegistry{},
		runner:      &fakeManualRunner{out: &Outcome{Status: domain.RunSuccess, RowCount: 2}},
	}
	f.svc = NewService(f.repo, f.connections, f.registry, f.runner)
	return f
}

func scheduledInput() *domain.ScheduledQuery {
	return &domain.ScheduledQuery{
		ID:             "sq-1",
		WorkspaceID:    "ws-1",
		ConnectionID:   "conn-1",
		Name:           "Daily Users",
		QueryType:      domain.QueryTypeSQL,
		SQL:            "SELECT 1",
		ScheduleType:   domain.ScheduleCron,
		CronExpression: "0 9 * * *",
		Recipients:     []string{"ops@example.com"},
		Format:         []domain.ReportFormat{domain.FormatCSV},
		Enabled:        true,
	}
}

func TestService_Create(t *testing.T) {
	f := newServiceFixture(t)
	q := scheduledInput()
	f.connections.On("Get", mock.Anything, "conn-1").Return(&domain.Connection{ID: "conn-1", WorkspaceID: "ws-1"}, nil)
	f.repo.On("Create", mock.Anything, q).Return(nil)
	f.repo.On("Get", mock.Anything, "sq-1").Return(q, nil)

	got, err := f.svc.Create(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, "sq-1", got.ID)
	assert.Equal(t, []string{"sq-1"}, f.registry.registered)
}

func TestService_CreateRejects(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(q *domain.ScheduledQuery)
		conn     *domain.Connection
		wantCode apperrors.ErrorCode
	}{
		{
			name:     "invalid payload",
			mutate:   func(q *domain.ScheduledQuery) { q.SQL = "" },
			wantCode: apperrors.ErrCodeValidationError,
		},
		{
			name:     "invalid cron",
			mutate:   func(q *domain.ScheduledQuery) { q.CronExpression = "every day" },
			wantCode: apperrors.ErrCodeValidationError,
		},
		{
			name:     "connection in another workspace",
			mutate:   func(q *domain.ScheduledQuery) {},
			conn:     &domain.Connection{ID: "conn-1", WorkspaceID: "ws-2"},
			wantCode: apperrors.ErrCodeNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newServiceFixture(t)
			if tt.conn != nil {
				f.connections.On("Get", mock.Anything, "conn-1").Return(tt.conn, nil)
			}
			q := scheduledInput()
			tt.mutate(q)

			_, err := f.svc.Create(context.Background(), q)
			assert.Equal(t, tt.wantCode, apperrors.CodeOf(err))
			assert.Empty(t, f.registry.registered)
		})
	}
}

func TestService_GetScopesWorkspace(t *testing.T) {
	f := newServiceFixture(t)
	f.repo.On("Get", mock.Anything, "sq-1").Return(scheduledInput(), nil)

	_, err := f.svc.Get(context.Background(), "ws-2", "sq-1")
	assert.True(t, apperrors.IsNotFound(err))

	got, err := f.svc.Get(context.Background(), "ws-1", "sq-1")
	require.NoError(t, err)
	assert.Equal(t, "Daily Users", got.Name)
}

func TestService_UpdateSwitchesTypes(t *testing.T) {
	f := newServiceFixture(t)
	f.repo.On("Get", mock.Anything, "sq-1").Return(scheduledInput(), nil)
	f.connections.On("Get", mock.Anything, "conn-1").Return(&domain.Connection{ID: "conn-1", WorkspaceID: "ws-1"}, nil)

	var stored *domain.ScheduledQuery
	f.repo.On("Update", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { stored = args.Get(1).(*domain.ScheduledQuery) }).
		Return(nil)

	visual := domain.QueryTypeVisual
	interval := domain.ScheduleInterval
	minutes := 30
	_, err := f.svc.Update(context.Background(), "ws-1", "sq-1", Patch{
		QueryType:       &visual,
		QueryDefinition: &domain.QueryDefinition{Table: "users"},
		ScheduleType:    &interval,
		IntervalMinutes: &minutes,
	})
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Empty(t, stored.SQL)
	assert.Empty(t, stored.CronExpression)
	assert.Equal(t, 30, stored.IntervalMinutes)
	assert.Equal(t, []string{"sq-1"}, f.registry.registered)
}

func TestService_Toggle(t *testing.T) {
	f := newServiceFixture(t)
	f.repo.On("Get", mock.Anything, "sq-1").Return(scheduledInput(), nil)
	f.repo.On("Update", mock.Anything, mock.MatchedBy(func(q *domain.ScheduledQuery) bool {
		return !q.Enabled
	})).Return(nil)

	_, err := f.svc.Toggle(context.Background(), "ws-1", "sq-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"sq-1"}, f.registry.registered)
}

func TestService_Delete(t *testing.T) {
	f := newServiceFixture(t)
	f.repo.On("Get", mock.Anything, "sq-1").Return(scheduledInput(), nil)
	f.repo.On("Delete", mock.Anything, "sq-1").Return(nil)

	require.NoError(t, f.svc.Delete(context.Background(), "ws-1", "sq-1"))
	assert.Equal(t, []string{"sq-1"}, f.registry.deregistered)
}

func TestService_RunNow(t *testing.T) {
	f := newServiceFixture(t)
	f.repo.On("Get", mock.Anything, "sq-1").Return(scheduledInput(), nil)

	out, err := f.svc.RunNow(context.Background(), "ws-1", "sq-1")
	require.NoError(t, err)
	assert.Equal(t, domain.RunSuccess, out.Status)
	assert.Equal(t, []string{"sq-1"}, f.runner.ids)

	f.registry.busy = true
	_, err = f.svc.RunNow(context.Background(), "ws-1", "sq-1")
	assert.Equal(t, apperrors.ErrCodeConflict, apperrors.CodeOf(err))

	f.registry.busy = false
	f.runner.out = nil
	_, err = f.svc.RunNow(context.Background(), "ws-1", "sq-1")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestPatch_ApplyLeavesUnsetFields(t *testing.T) {
	q := scheduledInput()
	name := "Renamed"
	Patch{Name: &name}.Apply(q)
	assert.Equal(t, "Renamed", q.Name)
	assert.Equal(t, "SELECT 1", q.SQL)
	assert.Equal(t, "0 9 * * *", q.CronExpression)
	assert.True(t, q.Enabled)
}
