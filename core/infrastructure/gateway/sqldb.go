package gateway

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"

	_ "github.com/denisenkom/go-mssqldb"
	"github.com/go-sql-driver/mysql"

	"github.com/dataask/dataask/core/domain"
)

// sqlBackend serves dialects reached through database/sql drivers.
type sqlBackend struct {
	db *sql.DB
}

func openSQL(ctx context.Context, driver, dsn string) (backend, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s connection: %w", driver, err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping %s database: %w", driver, err)
	}
	return &sqlBackend{db: db}, nil
}

func openMySQL(ctx context.Context, creds domain.Credentials) (backend, error) {
	return openSQL(ctx, "mysql", mysqlDSN(creds))
}

func openMSSQL(ctx context.Context, creds domain.Credentials) (backend, error) {
	return openSQL(ctx, "sqlserver", mssqlDSN(creds))
}

func mysqlDSN(creds domain.Credentials) string {
	cfg := mysql.NewConfig()
	port := text(creds["port"])
	if port == "" {
		port = "3306"
	}
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(text(creds["host"]), port)
	cfg.User = text(creds["user"])
	cfg.Passwd = text(creds["password"])
	cfg.DBName = text(creds["database"])
	cfg.ParseTime = true
	return cfg.FormatDSN()
}

func mssqlDSN(creds domain.Credentials) string {
	if raw := text(creds["connectionUrl"]); raw != "" {
		return raw
	}
	port := text(creds["port"])
	if port == "" {
		port = "1433"
	}
	u := url.URL{
		Scheme: "sqlserver",
		User:   url.UserPassword(text(creds["user"]), text(creds["password"])),
		Host:   net.JoinHostPort(text(creds["host"]), port),
	}
	q := url.Values{}
	q.Set("database", text(creds["database"]))
	u.RawQuery = q.Encode()
	return u.String()
}

func (s *sqlBackend) query(ctx context.Context, statement string, args []any, limit int) (*domain.ResultSet, error) {
	rows, err := s.db.QueryContext(ctx, statement, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}
	rs := &domain.ResultSet{Columns: columns, Data: []map[string]any{}}
	if types, err := rows.ColumnTypes(); err == nil {
		rs.DTypes = make(map[string]string, len(types))
		for _, ct := range types {
			rs.DTypes[ct.Name()] = ct.DatabaseTypeName()
		}
	}

	for rows.Next() {
		if limit > 0 && len(rs.Data) >= limit {
			break
		}
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
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

func (s *sqlBackend) close() error {
	return s.db.Close()
}
