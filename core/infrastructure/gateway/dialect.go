// Package gateway routes SQL execution and schema introspection to the
// backend that serves a dialect: the remote ibis-compatible HTTP gateway,
// or an in-process driver pool for the dialects we can reach directly.
package gateway

import (
	"strings"

	"github.com/dataask/dataask/core/domain/interfaces"
	"github.com/dataask/dataask/core/query/compiler"
	apperrors "github.com/dataask/dataask/core/shared/errors"
)

// Dialect is the closed set of wire dialects.
type Dialect = interfaces.Dialect

const (
	Postgres   Dialect = "postgres"
	MySQL      Dialect = "mysql"
	BigQuery   Dialect = "bigquery"
	Snowflake  Dialect = "snowflake"
	ClickHouse Dialect = "clickhouse"
	MSSQL      Dialect = "mssql"
	Trino      Dialect = "trino"
)

// Capabilities describes what a dialect supports beyond the HTTP gateway.
type Capabilities struct {
	// Direct is true when an in-process driver exists for the dialect
	Direct bool
	// BindStyle is the placeholder syntax for bound queries; zero when the
	// dialect can only take inlined literals
	BindStyle compiler.BindStyle
}

var capabilities = map[Dialect]Capabilities{
	Postgres:   {Direct: true, BindStyle: compiler.BindDollar},
	MySQL:      {Direct: true, BindStyle: compiler.BindQuestion},
	MSSQL:      {Direct: true, BindStyle: compiler.BindAtP},
	BigQuery:   {},
	Snowflake:  {},
	ClickHouse: {},
	Trino:      {},
}

// connectionTypes maps stored connection types onto dialects.
var connectionTypes = map[string]Dialect{
	"postgres":   Postgres,
	"postgresql": Postgres,
	"redshift":   Postgres,
	"mysql":      MySQL,
	"bigquery":   BigQuery,
	"snowflake":  Snowflake,
	"clickhouse": ClickHouse,
	"mssql":      MSSQL,
	"trino":      Trino,
}

// ResolveDialect maps a stored connection type (case-insensitive) to its
// wire dialect. Unknown types are an UNSUPPORTED_DIALECT error.
func ResolveDialect(connectionType string) (Dialect, error) {
	key := strings.ToLower(strings.TrimSpace(connectionType))
	if d, ok := connectionTypes[key]; ok {
		return d, nil
	}
	return "", apperrors.NewAppError(apperrors.ErrCodeUnsupportedDialect,
		"unsupported connection type '"+connectionType+"'", nil)
}

// CapabilitiesOf returns the capabilities of d.
func CapabilitiesOf(d Dialect) Capabilities {
	return capabilities[d]
}

// SupportedTypes lists the accepted connection types.
func SupportedTypes() []string {
	return []string{"postgres", "postgresql", "redshift", "mysql", "bigquery", "snowflake", "clickhouse", "mssql", "trino"}
}
