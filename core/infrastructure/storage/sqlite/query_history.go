package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"github.com/google/uuid"

	"github.com/dataask/dataask/core/domain"
	"github.com/dataask/dataask/core/domain/interfaces"
)

const (
	// DefaultHistoryLimit is the page size when a listing asks for none.
	DefaultHistoryLimit = 50
	// MaxHistoryLimit caps the page size of a listing.
	MaxHistoryLimit = 200
)

const historyColumns = `id, workspace_id, connection_id, user_id, query_type, query_definition,
	sql, status, error_message, row_count, execution_time_ms, executed_at`

// QueryHistoryRepo implements interfaces.HistoryRepository. Entries are
// never updated once written.
type QueryHistoryRepo struct {
	write *sql.DB
	read  *sql.DB
}

var _ interfaces.HistoryRepository = (*QueryHistoryRepo)(nil)

func NewQueryHistoryRepo(store *Store) *QueryHistoryRepo {
	return &QueryHistoryRepo{write: store.Write, read: store.Read}
}

func (r *QueryHistoryRepo) Create(ctx context.Context, h *domain.QueryHistory) error {
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	def, err := encodeJSON(h.QueryDefinition)
	if err != nil {
		return storageError("failed to encode query definition", err)
	}
	var errMsg sql.NullString
	if h.ErrorMessage != nil {
		errMsg = sql.NullString{String: *h.ErrorMessage, Valid: true}
	}
	var rowCount sql.NullInt64
	if h.RowCount != nil {
		rowCount = sql.NullInt64{Int64: int64(*h.RowCount), Valid: true}
	}

	_, err = r.write.ExecContext(ctx, `INSERT INTO query_history (`+historyColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		h.ID, h.WorkspaceID, h.ConnectionID, h.UserID, string(h.QueryType), def,
		h.SQL, string(h.Status), errMsg, rowCount, h.ExecutionTimeMs, formatTime(h.ExecutedAt))
	return storageError("failed to create query history", err)
}

func (r *QueryHistoryRepo) Get(ctx context.Context, workspaceID, id string) (*domain.QueryHistory, error) {
	row := r.read.QueryRowContext(ctx, `SELECT `+historyColumns+` FROM query_history
		WHERE workspace_id = ? AND id = ?`, workspaceID, id)
	h, err := scanHistory(row)
	if err != nil {
		return nil, mapDBError("query history", id, err)
	}
	return h, nil
}

// List returns the newest entries first. The limit defaults to
// DefaultHistoryLimit and is capped at MaxHistoryLimit.
func (r *QueryHistoryRepo) List(ctx context.Context, filter domain.HistoryFilter) ([]*domain.QueryHistory, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	var (
		where = []string{"workspace_id = ?"}
		args  = []any{filter.WorkspaceID}
	)
	if filter.ConnectionID != "" {
		where = append(where, "connection_id = ?")
		args = append(args, filter.ConnectionID)
	}
	args = append(args, limit, offset)

	rows, err := r.read.QueryContext(ctx, `SELECT `+historyColumns+` FROM query_history
		WHERE `+strings.Join(where, " AND ")+`
		ORDER BY executed_at DESC, id LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, storageError("failed to list query history", err)
	}
	defer rows.Close()

	out := []*domain.QueryHistory{}
	for rows.Next() {
		h, err := scanHistory(rows)
		if err != nil {
			return nil, storageError("failed to scan query history", err)
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("failed to list query history", err)
	}
	return out, nil
}

func (r *QueryHistoryRepo) Delete(ctx context.Context, workspaceID, id string) error {
	res, err := r.write.ExecContext(ctx, `DELETE FROM query_history WHERE workspace_id = ? AND id = ?`,
		workspaceID, id)
	if err != nil {
		return storageError("failed to delete query history", err)
	}
	return requireAffected(res, "query history", id)
}

func scanHistory(s scanner) (*domain.QueryHistory, error) {
	var (
		h                 domain.QueryHistory
		queryType, status string
		def, errMsg       sql.NullString
		rowCount          sql.NullInt64
		executedAt        string
	)
	err := s.Scan(&h.ID, &h.WorkspaceID, &h.ConnectionID, &h.UserID, &queryType, &def,
		&h.SQL, &status, &errMsg, &rowCount, &h.ExecutionTimeMs, &executedAt)
	if err != nil {
		return nil, err
	}
	h.QueryType = domain.QueryType(queryType)
	h.Status = domain.RunStatus(status)
	if def.Valid {
		h.QueryDefinition = &domain.QueryDefinition{}
		if err := decodeJSON(def, h.QueryDefinition); err != nil {
			return nil, err
		}
	}
	if errMsg.Valid {
		h.ErrorMessage = &errMsg.String
	}
	if rowCount.Valid {
		n := int(rowCount.Int64)
		h.RowCount = &n
	}
	if h.ExecutedAt, err = parseTime(executedAt); err != nil {
		return nil, err
	}
	return &h, nil
}
