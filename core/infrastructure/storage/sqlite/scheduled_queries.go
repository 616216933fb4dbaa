package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/dataask/dataask/core/domain"
	"github.com/dataask/dataask/core/domain/interfaces"
)

const scheduledColumns = `id, workspace_id, connection_id, name, description, query_type,
	query_definition, sql, parameters, schedule_type, cron_expression, interval_minutes,
	recipients, subject, format, enabled, last_run_at, last_run_status, last_run_error,
	next_run_at, created_by, created_at, updated_at`

// ScheduledQueryRepo implements interfaces.ScheduledQueryRepository.
type ScheduledQueryRepo struct {
	write *sql.DB
	read  *sql.DB
	now   func() time.Time
}

var _ interfaces.ScheduledQueryRepository = (*ScheduledQueryRepo)(nil)

// NewScheduledQueryRepo creates a repository over the store's pools.
func NewScheduledQueryRepo(store *Store) *ScheduledQueryRepo {
	return &ScheduledQueryRepo{write: store.Write, read: store.Read, now: time.Now}
}

func (r *ScheduledQueryRepo) Get(ctx context.Context, id string) (*domain.ScheduledQuery, error) {
	row := r.read.QueryRowContext(ctx, `SELECT `+scheduledColumns+` FROM scheduled_queries WHERE id = ?`, id)
	q, err := scanScheduled(row)
	if err != nil {
		return nil, mapDBError("scheduled query", id, err)
	}
	return q, nil
}

func (r *ScheduledQueryRepo) List(ctx context.Context, workspaceID string) ([]*domain.ScheduledQuery, error) {
	return r.list(ctx, `SELECT `+scheduledColumns+` FROM scheduled_queries
		WHERE workspace_id = ? ORDER BY created_at DESC`, workspaceID)
}

func (r *ScheduledQueryRepo) ListEnabled(ctx context.Context) ([]*domain.ScheduledQuery, error) {
	return r.list(ctx, `SELECT `+scheduledColumns+` FROM scheduled_queries
		WHERE enabled = 1 ORDER BY created_at`)
}

func (r *ScheduledQueryRepo) list(ctx context.Context, query string, args ...any) ([]*domain.ScheduledQuery, error) {
	rows, err := r.read.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageError("failed to list scheduled queries", err)
	}
	defer rows.Close()

	out := []*domain.ScheduledQuery{}
	for rows.Next() {
		q, err := scanScheduled(rows)
		if err != nil {
			return nil, storageError("failed to scan scheduled query", err)
		}
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("failed to list scheduled queries", err)
	}
	return out, nil
}

// Create inserts q, assigning an id and timestamps when they are unset.
func (r *ScheduledQueryRepo) Create(ctx context.Context, q *domain.ScheduledQuery) error {
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	now := r.now().UTC()
	if q.CreatedAt.IsZero() {
		q.CreatedAt = now
	}
	q.UpdatedAt = now

	args, err := scheduledArgs(q)
	if err != nil {
		return storageError("failed to encode scheduled query", err)
	}
	_, err = r.write.ExecContext(ctx, `INSERT INTO scheduled_queries (`+scheduledColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, args...)
	return storageError("failed to create scheduled query", err)
}

// Update rewrites the caller-owned fields of q. Run state is left alone.
func (r *ScheduledQueryRepo) Update(ctx context.Context, q *domain.ScheduledQuery) error {
	q.UpdatedAt = r.now().UTC()

	enc, err := encodeScheduled(q)
	if err != nil {
		return storageError("failed to encode scheduled query", err)
	}

	res, err := r.write.ExecContext(ctx, `UPDATE scheduled_queries SET
		connection_id = ?, name = ?, description = ?, query_type = ?, query_definition = ?,
		sql = ?, parameters = ?, schedule_type = ?, cron_expression = ?, interval_minutes = ?,
		recipients = ?, subject = ?, format = ?, enabled = ?, updated_at = ?
		WHERE id = ?`,
		q.ConnectionID, q.Name, q.Description, string(q.QueryType), enc.definition,
		q.SQL, enc.parameters, string(q.ScheduleType), q.CronExpression, q.IntervalMinutes,
		enc.recipients, q.Subject, enc.formats, boolToInt(q.Enabled), formatTime(q.UpdatedAt),
		q.ID)
	if err != nil {
		return storageError("failed to update scheduled query", err)
	}
	return requireAffected(res, "scheduled query", q.ID)
}

func (r *ScheduledQueryRepo) Delete(ctx context.Context, id string) error {
	res, err := r.write.ExecContext(ctx, `DELETE FROM scheduled_queries WHERE id = ?`, id)
	if err != nil {
		return storageError("failed to delete scheduled query", err)
	}
	return requireAffected(res, "scheduled query", id)
}

func (r *ScheduledQueryRepo) UpdateRunState(ctx context.Context, id string, state domain.RunState) error {
	res, err := r.write.ExecContext(ctx, `UPDATE scheduled_queries
		SET last_run_at = ?, last_run_status = ?, last_run_error = ? WHERE id = ?`,
		formatTime(state.LastRunAt), string(state.LastRunStatus), state.LastRunError, id)
	if err != nil {
		return storageError("failed to update run state", err)
	}
	return requireAffected(res, "scheduled query", id)
}

func (r *ScheduledQueryRepo) UpdateNextRun(ctx context.Context, id string, next *time.Time) error {
	res, err := r.write.ExecContext(ctx, `UPDATE scheduled_queries SET next_run_at = ? WHERE id = ?`,
		nullTime(next), id)
	if err != nil {
		return storageError("failed to update next run", err)
	}
	return requireAffected(res, "scheduled query", id)
}

type scheduledJSON struct {
	definition sql.NullString
	parameters sql.NullString
	recipients string
	formats    string
}

func encodeScheduled(q *domain.ScheduledQuery) (scheduledJSON, error) {
	var enc scheduledJSON
	var err error
	if enc.definition, err = encodeJSON(q.QueryDefinition); err != nil {
		return enc, err
	}
	if enc.parameters, err = encodeJSON(q.Parameters); err != nil {
		return enc, err
	}
	recipients, err := encodeJSON(q.Recipients)
	if err != nil {
		return enc, err
	}
	formats, err := encodeJSON(q.Format)
	if err != nil {
		return enc, err
	}
	enc.recipients = orEmptyList(recipients)
	enc.formats = orEmptyList(formats)
	return enc, nil
}

func orEmptyList(s sql.NullString) string {
	if !s.Valid {
		return "[]"
	}
	return s.String
}

func scheduledArgs(q *domain.ScheduledQuery) ([]any, error) {
	enc, err := encodeScheduled(q)
	if err != nil {
		return nil, err
	}
	return []any{
		q.ID, q.WorkspaceID, q.ConnectionID, q.Name, q.Description, string(q.QueryType),
		enc.definition, q.SQL, enc.parameters, string(q.ScheduleType), q.CronExpression, q.IntervalMinutes,
		enc.recipients, q.Subject, enc.formats, boolToInt(q.Enabled),
		nullTime(q.LastRunAt), string(q.LastRunStatus), q.LastRunError,
		nullTime(q.NextRunAt), q.CreatedBy, formatTime(q.CreatedAt), formatTime(q.UpdatedAt),
	}, nil
}

func scanScheduled(s scanner) (*domain.ScheduledQuery, error) {
	var (
		q                    domain.ScheduledQuery
		queryType, schedType string
		def, params          sql.NullString
		recipients, formats  sql.NullString
		enabled              int64
		lastRunAt, nextRunAt sql.NullString
		lastStatus           string
		createdAt, updatedAt string
	)
	err := s.Scan(
		&q.ID, &q.WorkspaceID, &q.ConnectionID, &q.Name, &q.Description, &queryType,
		&def, &q.SQL, &params, &schedType, &q.CronExpression, &q.IntervalMinutes,
		&recipients, &q.Subject, &formats, &enabled, &lastRunAt, &lastStatus, &q.LastRunError,
		&nextRunAt, &q.CreatedBy, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	q.QueryType = domain.QueryType(queryType)
	q.ScheduleType = domain.ScheduleType(schedType)
	q.LastRunStatus = domain.RunStatus(lastStatus)
	q.Enabled = enabled != 0

	if def.Valid {
		q.QueryDefinition = &domain.QueryDefinition{}
		if err := decodeJSON(def, q.QueryDefinition); err != nil {
			return nil, err
		}
	}
	if err := decodeJSON(params, &q.Parameters); err != nil {
		return nil, err
	}
	if err := decodeJSON(recipients, &q.Recipients); err != nil {
		return nil, err
	}
	if err := decodeJSON(formats, &q.Format); err != nil {
		return nil, err
	}
	if q.LastRunAt, err = parseNullTime(lastRunAt); err != nil {
		return nil, err
	}
	if q.NextRunAt, err = parseNullTime(nextRunAt); err != nil {
		return nil, err
	}
	if q.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if q.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &q, nil
}
