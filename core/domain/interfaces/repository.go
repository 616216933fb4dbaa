package interfaces

import (
	"context"
	"time"

	"github.com/dataask/dataask/core/domain"
)

// ScheduledQueryRepository persists scheduled queries.
type ScheduledQueryRepository interface {
	Get(ctx context.Context, id string) (*domain.ScheduledQuery, error)
	List(ctx context.Context, workspaceID string) ([]*domain.ScheduledQuery, error)
	ListEnabled(ctx context.Context) ([]*domain.ScheduledQuery, error)
	Create(ctx context.Context, q *domain.ScheduledQuery) error
	Update(ctx context.Context, q *domain.ScheduledQuery) error
	Delete(ctx context.Context, id string) error

	// UpdateRunState writes only last_run_at, last_run_status and last_run_error
	UpdateRunState(ctx context.Context, id string, state domain.RunState) error
	// UpdateNextRun writes only next_run_at; nil clears it
	UpdateNextRun(ctx context.Context, id string, next *time.Time) error
}

// HistoryRepository stores append-only query history.
type HistoryRepository interface {
	Create(ctx context.Context, h *domain.QueryHistory) error
	Get(ctx context.Context, workspaceID, id string) (*domain.QueryHistory, error)
	List(ctx context.Context, filter domain.HistoryFilter) ([]*domain.QueryHistory, error)
	Delete(ctx context.Context, workspaceID, id string) error
}

// HistorySink receives a copy of every history entry after it is stored.
type HistorySink interface {
	Record(ctx context.Context, h *domain.QueryHistory) error
}

// ConnectionRepository reads connections and records test outcomes.
type ConnectionRepository interface {
	Get(ctx context.Context, id string) (*domain.Connection, error)
	List(ctx context.Context, workspaceID string) ([]*domain.Connection, error)
	Create(ctx context.Context, c *domain.Connection) error
	RecordTest(ctx context.Context, id string, result domain.ConnectionTest, at time.Time) error
}
