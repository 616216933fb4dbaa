package gateway

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dataask/dataask/core/domain"
)

type postgresBackend struct {
	pool *pgxpool.Pool
}

func openPostgres(ctx context.Context, creds domain.Credentials) (backend, error) {
	config, err := pgxpool.ParseConfig(postgresDSN(creds))
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres connection info: %w", err)
	}
	config.MaxConns = 5

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres database: %w", err)
	}
	return &postgresBackend{pool: pool}, nil
}

// postgresDSN builds a URL from ibis-style connection info; an explicit
// connectionUrl wins.
func postgresDSN(creds domain.Credentials) string {
	if raw := text(creds["connectionUrl"]); raw != "" {
		return raw
	}
	port := text(creds["port"])
	if port == "" {
		port = "5432"
	}
	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(text(creds["host"]), port),
		Path:   "/" + text(creds["database"]),
	}
	if user := text(creds["user"]); user != "" {
		if pw := text(creds["password"]); pw != "" {
			u.User = url.UserPassword(user, pw)
		} else {
			u.User = url.User(user)
		}
	}
	q := url.Values{}
	if mode := text(creds["sslMode"]); mode != "" {
		q.Set("sslmode", mode)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func (p *postgresBackend) query(ctx context.Context, sql string, args []any, limit int) (*domain.ResultSet, error) {
	rows, err := p.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	rs := &domain.ResultSet{
		Columns: make([]string, len(fields)),
		Data:    []map[string]any{},
		DTypes:  make(map[string]string, len(fields)),
	}
	for i, fd := range fields {
		rs.Columns[i] = fd.Name
		rs.DTypes[fd.Name] = strconv.FormatUint(uint64(fd.DataTypeOID), 10)
	}

	for rows.Next() {
		if limit > 0 && len(rs.Data) >= limit {
			break
		}
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("failed to get row values: %w", err)
		}
		row := make(map[string]any, len(rs.Columns))
		for i, col := range rs.Columns {
			if i < len(values) {
				row[col] = values[i]
			}
		}
		rs.Data = append(rs.Data, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return rs, nil
}

func (p *postgresBackend) close() error {
	p.pool.Close()
	return nil
}
