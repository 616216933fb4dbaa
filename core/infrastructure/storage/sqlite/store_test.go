package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dataask/dataask/core/domain"
	apperrors "github.com/dataask/dataask/core/shared/errors"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenStore(filepath.Join(t.TempDir(), "test.sqlite"), 2)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, Migrate(store.Write))
	return store
}

var fixedNow = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func TestOpen_InvalidMode(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "x.sqlite"), Mode("rw"), 0)
	assert.ErrorContains(t, err, "invalid sqlite mode")
}

func TestBuildDSN(t *testing.T) {
	w := buildDSN("/tmp/a.sqlite", ModeWrite)
	assert.Contains(t, w, "_journal_mode=WAL")
	assert.Contains(t, w, "_foreign_keys=on")
	assert.Contains(t, w, "_txlock=immediate")
	assert.NotContains(t, buildDSN("/tmp/a.sqlite", ModeRead), "_txlock")
}

func TestMigrationStatus(t *testing.T) {
	store := openTestStore(t)
	version, err := MigrationStatus(store.Write)
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)
}

func TestScheduledQueryRepo(t *testing.T) {
	ctx := context.Background()
	repo := NewScheduledQueryRepo(openTestStore(t))
	repo.now = func() time.Time { return fixedNow }

	q := &domain.ScheduledQuery{
		WorkspaceID:  "ws-1",
		ConnectionID: "conn-1",
		Name:         "Orders",
		QueryType:    domain.QueryTypeVisual,
		QueryDefinition: &domain.QueryDefinition{
			Table:   "orders",
			Columns: []string{"id", "total"},
			Limit:   domain.IntPtr(25),
		},
		Parameters:     domain.ParameterValues{"region": "EU"},
		ScheduleType:   domain.ScheduleCron,
		CronExpression: "0 9 * * *",
		Recipients:     []string{"ops@example.com"},
		Format:         []domain.ReportFormat{domain.FormatCSV, domain.FormatXLSX},
		Enabled:        true,
		CreatedBy:      "user-1",
	}
	require.NoError(t, repo.Create(ctx, q))
	require.NotEmpty(t, q.ID)

	got, err := repo.Get(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, "Orders", got.Name)
	assert.Equal(t, fixedNow, got.CreatedAt)
	require.NotNil(t, got.QueryDefinition)
	assert.Equal(t, "orders", got.QueryDefinition.Table)
	require.NotNil(t, got.QueryDefinition.Limit)
	assert.Equal(t, 25, *got.QueryDefinition.Limit)
	assert.Equal(t, "EU", got.Parameters["region"])
	assert.Equal(t, []domain.ReportFormat{domain.FormatCSV, domain.FormatXLSX}, got.Format)
	assert.True(t, got.Enabled)
	assert.Nil(t, got.LastRunAt)
	assert.Nil(t, got.NextRunAt)

	t.Run("run state and next run", func(t *testing.T) {
		ran := fixedNow.Add(time.Minute)
		require.NoError(t, repo.UpdateRunState(ctx, q.ID, domain.RunState{
			LastRunAt:     ran,
			LastRunStatus: domain.RunError,
			LastRunError:  "boom",
		}))
		next := fixedNow.Add(24 * time.Hour)
		require.NoError(t, repo.UpdateNextRun(ctx, q.ID, &next))

		got, err := repo.Get(ctx, q.ID)
		require.NoError(t, err)
		require.NotNil(t, got.LastRunAt)
		assert.Equal(t, ran, *got.LastRunAt)
		assert.Equal(t, domain.RunError, got.LastRunStatus)
		assert.Equal(t, "boom", got.LastRunError)
		require.NotNil(t, got.NextRunAt)
		assert.Equal(t, next, *got.NextRunAt)

		require.NoError(t, repo.UpdateNextRun(ctx, q.ID, nil))
		got, err = repo.Get(ctx, q.ID)
		require.NoError(t, err)
		assert.Nil(t, got.NextRunAt)
	})

	t.Run("update keeps run state", func(t *testing.T) {
		q.Name = "Orders v2"
		q.Enabled = false
		q.QueryType = domain.QueryTypeSQL
		q.QueryDefinition = nil
		q.SQL = "SELECT 1"
		require.NoError(t, repo.Update(ctx, q))

		got, err := repo.Get(ctx, q.ID)
		require.NoError(t, err)
		assert.Equal(t, "Orders v2", got.Name)
		assert.False(t, got.Enabled)
		assert.Nil(t, got.QueryDefinition)
		assert.Equal(t, "boom", got.LastRunError)
	})

	t.Run("list", func(t *testing.T) {
		other := &domain.ScheduledQuery{
			WorkspaceID: "ws-1", ConnectionID: "conn-1", Name: "Users",
			QueryType: domain.QueryTypeSQL, SQL: "SELECT 2",
			ScheduleType: domain.ScheduleInterval, IntervalMinutes: 5,
			Recipients: []string{"a@example.com"}, Format: []domain.ReportFormat{domain.FormatPDF},
			Enabled: true,
		}
		require.NoError(t, repo.Create(ctx, other))

		all, err := repo.List(ctx, "ws-1")
		require.NoError(t, err)
		assert.Len(t, all, 2)

		none, err := repo.List(ctx, "ws-2")
		require.NoError(t, err)
		assert.Empty(t, none)

		enabled, err := repo.ListEnabled(ctx)
		require.NoError(t, err)
		require.Len(t, enabled, 1)
		assert.Equal(t, other.ID, enabled[0].ID)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, repo.Delete(ctx, q.ID))
		_, err := repo.Get(ctx, q.ID)
		assert.True(t, apperrors.IsNotFound(err))
		assert.True(t, apperrors.IsNotFound(repo.Delete(ctx, q.ID)))
	})

	t.Run("missing id", func(t *testing.T) {
		err := repo.UpdateRunState(ctx, "missing", domain.RunState{LastRunAt: fixedNow, LastRunStatus: domain.RunSuccess})
		assert.True(t, apperrors.IsNotFound(err))
		assert.True(t, apperrors.IsNotFound(repo.UpdateNextRun(ctx, "missing", nil)))
		assert.True(t, apperrors.IsNotFound(repo.Update(ctx, &domain.ScheduledQuery{ID: "missing"})))
	})
}

func TestQueryHistoryRepo(t *testing.T) {
	ctx := context.Background()
	repo := NewQueryHistoryRepo(openTestStore(t))

	rows := 3
	msg := "syntax error"
	for i := 0; i < 5; i++ {
		h := &domain.QueryHistory{
			WorkspaceID:     "ws-1",
			ConnectionID:    "conn-1",
			QueryType:       domain.QueryTypeSQL,
			SQL:             "SELECT 1",
			Status:          domain.RunSuccess,
			RowCount:        &rows,
			ExecutionTimeMs: 1.5,
			ExecutedAt:      fixedNow.Add(time.Duration(i) * time.Minute),
		}
		if i == 4 {
			h.ConnectionID = "conn-2"
			h.Status = domain.RunError
			h.ErrorMessage = &msg
			h.RowCount = nil
		}
		require.NoError(t, repo.Create(ctx, h))
	}
	require.NoError(t, repo.Create(ctx, &domain.QueryHistory{
		WorkspaceID: "ws-2", ConnectionID: "conn-9", QueryType: domain.QueryTypeSQL,
		SQL: "SELECT 9", Status: domain.RunSuccess, ExecutedAt: fixedNow,
	}))

	tests := []struct {
		name   string
		filter domain.HistoryFilter
		want   int
	}{
		{name: "workspace", filter: domain.HistoryFilter{WorkspaceID: "ws-1"}, want: 5},
		{name: "connection", filter: domain.HistoryFilter{WorkspaceID: "ws-1", ConnectionID: "conn-1"}, want: 4},
		{name: "limit", filter: domain.HistoryFilter{WorkspaceID: "ws-1", Limit: 2}, want: 2},
		{name: "offset", filter: domain.HistoryFilter{WorkspaceID: "ws-1", Offset: 3}, want: 2},
		{name: "capped", filter: domain.HistoryFilter{WorkspaceID: "ws-1", Limit: 1000}, want: 5},
		{name: "other workspace", filter: domain.HistoryFilter{WorkspaceID: "ws-3"}, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.List(ctx, tt.filter)
			require.NoError(t, err)
			assert.Len(t, got, tt.want)
		})
	}

	list, err := repo.List(ctx, domain.HistoryFilter{WorkspaceID: "ws-1"})
	require.NoError(t, err)
	newest := list[0]
	assert.Equal(t, fixedNow.Add(4*time.Minute), newest.ExecutedAt)
	assert.Equal(t, domain.RunError, newest.Status)
	require.NotNil(t, newest.ErrorMessage)
	assert.Equal(t, msg, *newest.ErrorMessage)
	assert.Nil(t, newest.RowCount)
	require.NotNil(t, list[1].RowCount)
	assert.Equal(t, 3, *list[1].RowCount)

	got, err := repo.Get(ctx, "ws-1", newest.ID)
	require.NoError(t, err)
	assert.Equal(t, newest.ID, got.ID)

	_, err = repo.Get(ctx, "ws-2", newest.ID)
	assert.True(t, apperrors.IsNotFound(err))

	assert.True(t, apperrors.IsNotFound(repo.Delete(ctx, "ws-2", newest.ID)))
	require.NoError(t, repo.Delete(ctx, "ws-1", newest.ID))
	_, err = repo.Get(ctx, "ws-1", newest.ID)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestConnectionRepo(t *testing.T) {
	ctx := context.Background()
	repo := NewConnectionRepo(openTestStore(t))
	repo.now = func() time.Time { return fixedNow }

	c := &domain.Connection{
		WorkspaceID:   "ws-1",
		Name:          "warehouse",
		Type:          "postgresql",
		EncryptedInfo: "cipher",
		Settings:      map[string]string{"schema": "public"},
	}
	require.NoError(t, repo.Create(ctx, c))
	require.NotEmpty(t, c.ID)

	got, err := repo.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "cipher", got.EncryptedInfo)
	assert.Equal(t, "active", got.Status)
	assert.Equal(t, "public", got.Settings["schema"])
	assert.Nil(t, got.LastTestedAt)

	tested := fixedNow.Add(time.Hour)
	require.NoError(t, repo.RecordTest(ctx, c.ID, domain.ConnectionTest{
		Status: "failed", Message: "Connection failed", Error: "timeout",
	}, tested))
	got, err = repo.Get(ctx, c.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastTestedAt)
	assert.Equal(t, tested, *got.LastTestedAt)
	assert.Equal(t, "failed", got.TestStatus)
	assert.Equal(t, "Connection failed", got.TestMessage)

	list, err := repo.List(ctx, "ws-1")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = repo.Get(ctx, "missing")
	assert.True(t, apperrors.IsNotFound(err))
	assert.True(t, apperrors.IsNotFound(repo.RecordTest(ctx, "missing", domain.ConnectionTest{}, tested)))
}
