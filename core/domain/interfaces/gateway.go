package interfaces

import (
	"context"

	"github.com/dataask/dataask/core/domain"
)

// Dialect is the wire dialect a gateway call is routed by. The closed set
// of values lives in the gateway package.
type Dialect string

// Gateway executes SQL and introspects schema for a dialect.
type Gateway interface {
	// TestConnection checks connectivity with a validation-only query
	TestConnection(ctx context.Context, dialect Dialect, creds domain.Credentials) (*domain.ConnectionTest, error)

	// ListTables returns table metadata
	ListTables(ctx context.Context, dialect Dialect, creds domain.Credentials) ([]domain.Table, error)

	// ListConstraints returns foreign key constraints
	ListConstraints(ctx context.Context, dialect Dialect, creds domain.Credentials) ([]domain.Constraint, error)

	// PreviewTable returns up to limit rows of a table
	PreviewTable(ctx context.Context, dialect Dialect, creds domain.Credentials, table string, limit int) (any, error)

	// RunQuery executes sql; limit <= 0 means no row cap. The returned value
	// is the decoded response ({columns, data}, a bare array, or other).
	RunQuery(ctx context.Context, dialect Dialect, creds domain.Credentials, sql string, limit int) (any, error)
}

// BoundQueryRunner is implemented by gateways that accept positional
// arguments instead of inlined literals.
type BoundQueryRunner interface {
	// SupportsBinding reports whether dialect is served with bound arguments
	SupportsBinding(dialect Dialect) bool

	// RunBoundQuery executes sql with args bound to its placeholders
	RunBoundQuery(ctx context.Context, dialect Dialect, creds domain.Credentials, sql string, args []any, limit int) (any, error)
}
