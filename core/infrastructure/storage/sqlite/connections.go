package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/dataask/dataask/core/domain"
	"github.com/dataask/dataask/core/domain/interfaces"
)

const connectionColumns = `id, workspace_id, name, description, type, encrypted_info, settings,
	status, last_tested_at, test_status, test_message, created_at, updated_at`

// ConnectionRepo implements interfaces.ConnectionRepository.
type ConnectionRepo struct {
	write *sql.DB
	read  *sql.DB
	now   func() time.Time
}

var _ interfaces.ConnectionRepository = (*ConnectionRepo)(nil)

func NewConnectionRepo(store *Store) *ConnectionRepo {
	return &ConnectionRepo{write: store.Write, read: store.Read, now: time.Now}
}

func (r *ConnectionRepo) Get(ctx context.Context, id string) (*domain.Connection, error) {
	row := r.read.QueryRowContext(ctx, `SELECT `+connectionColumns+` FROM connections WHERE id = ?`, id)
	c, err := scanConnection(row)
	if err != nil {
		return nil, mapDBError("connection", id, err)
	}
	return c, nil
}

// List returns the connections of a workspace ordered by name.
func (r *ConnectionRepo) List(ctx context.Context, workspaceID string) ([]*domain.Connection, error) {
	rows, err := r.read.QueryContext(ctx, `SELECT `+connectionColumns+` FROM connections
		WHERE workspace_id = ? ORDER BY name`, workspaceID)
	if err != nil {
		return nil, storageError("failed to list connections", err)
	}
	defer rows.Close()

	out := []*domain.Connection{}
	for rows.Next() {
		c, err := scanConnection(rows)
		if err != nil {
			return nil, storageError("failed to scan connection", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("failed to list connections", err)
	}
	return out, nil
}

func (r *ConnectionRepo) Create(ctx context.Context, c *domain.Connection) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Status == "" {
		c.Status = "active"
	}
	now := r.now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now

	settings, err := encodeJSON(c.Settings)
	if err != nil {
		return storageError("failed to encode connection settings", err)
	}
	if !settings.Valid {
		settings = sql.NullString{String: "{}", Valid: true}
	}
	_, err = r.write.ExecContext(ctx, `INSERT INTO connections (`+connectionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.WorkspaceID, c.Name, c.Description, c.Type, c.EncryptedInfo, settings,
		c.Status, nullTime(c.LastTestedAt), c.TestStatus, c.TestMessage,
		formatTime(c.CreatedAt), formatTime(c.UpdatedAt))
	return storageError("failed to create connection", err)
}

// RecordTest stores the outcome of a connectivity check.
func (r *ConnectionRepo) RecordTest(ctx context.Context, id string, result domain.ConnectionTest, at time.Time) error {
	res, err := r.write.ExecContext(ctx, `UPDATE connections
		SET last_tested_at = ?, test_status = ?, test_message = ?, updated_at = ? WHERE id = ?`,
		formatTime(at), result.Status, result.Message, formatTime(r.now()), id)
	if err != nil {
		return storageError("failed to record connection test", err)
	}
	return requireAffected(res, "connection", id)
}

func scanConnection(s scanner) (*domain.Connection, error) {
	var (
		c                    domain.Connection
		settings, testedAt   sql.NullString
		createdAt, updatedAt string
	)
	err := s.Scan(&c.ID, &c.WorkspaceID, &c.Name, &c.Description, &c.Type, &c.EncryptedInfo, &settings,
		&c.Status, &testedAt, &c.TestStatus, &c.TestMessage, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	if err := decodeJSON(settings, &c.Settings); err != nil {
		return nil, err
	}
	if c.LastTestedAt, err = parseNullTime(testedAt); err != nil {
		return nil, err
	}
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if c.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}
