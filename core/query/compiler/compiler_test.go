package compiler_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dataask/dataask/core/domain"
	"github.com/dataask/dataask/core/query/compiler"
	apperrors "github.com/dataask/dataask/core/shared/errors"
)

func TestCompile(t *testing.T) {
	tests := []struct {
		name     string
		def      domain.QueryDefinition
		expected string
	}{
		{
			name: "columns filter and limit",
			def: domain.QueryDefinition{
				Table:   "orders",
				Columns: []string{"id", "total"},
				Filters: []domain.Filter{{Column: "status", Operator: domain.OpEq, Value: "paid"}},
				Limit:   domain.IntPtr(10),
			},
			expected: "SELECT id, total FROM orders WHERE status = 'paid' LIMIT 10",
		},
		{
			name:     "select star",
			def:      domain.QueryDefinition{Table: "orders"},
			expected: "SELECT * FROM orders",
		},
		{
			name: "numeric and boolean values",
			def: domain.QueryDefinition{
				Table: "orders",
				Filters: []domain.Filter{
					{Column: "total", Operator: domain.OpGte, Value: 100},
					{Column: "discount", Operator: domain.OpLt, Value: 0.5},
					{Column: "archived", Operator: domain.OpNotEq, Value: true},
				},
			},
			expected: "SELECT * FROM orders WHERE total >= 100 AND discount < 0.5 AND archived != TRUE",
		},
		{
			name: "in list",
			def: domain.QueryDefinition{
				Table:   "orders",
				Filters: []domain.Filter{{Column: "col", Operator: domain.OpIn, Value: []any{"a", "b"}}},
			},
			expected: "SELECT * FROM orders WHERE col IN ('a', 'b')",
		},
		{
			name: "in with numbers",
			def: domain.QueryDefinition{
				Table:   "orders",
				Filters: []domain.Filter{{Column: "id", Operator: domain.OpIn, Value: []any{1, 2.5}}},
			},
			expected: "SELECT * FROM orders WHERE id IN (1, 2.5)",
		},
		{
			name: "in with non-list value is omitted",
			def: domain.QueryDefinition{
				Table:   "orders",
				Filters: []domain.Filter{{Column: "col", Operator: domain.OpIn, Value: "a"}},
			},
			expected: "SELECT * FROM orders",
		},
		{
			name: "unsupported filter dropped but others kept",
			def: domain.QueryDefinition{
				Table: "orders",
				Filters: []domain.Filter{
					{Column: "col", Operator: domain.OpIn, Value: 5},
					{Column: "region", Operator: domain.OpLike, Value: "EU%"},
				},
			},
			expected: "SELECT * FROM orders WHERE region LIKE 'EU%'",
		},
		{
			name: "null checks",
			def: domain.QueryDefinition{
				Table: "users",
				Filters: []domain.Filter{
					{Column: "deleted_at", Operator: domain.OpIsNull},
					{Column: "email", Operator: domain.OpIsNotNull, Value: "ignored"},
				},
			},
			expected: "SELECT * FROM users WHERE deleted_at IS NULL AND email IS NOT NULL",
		},
		{
			name: "joins group order",
			def: domain.QueryDefinition{
				Table:   "orders",
				Columns: []string{"customers.name", "orders.total"},
				Joins: []domain.Join{
					{
						Table:    "customers",
						JoinType: domain.JoinLeft,
						Conditions: []domain.JoinCondition{
							{LeftColumn: "orders.customer_id", RightColumn: "customers.id", Operator: domain.OpEq},
							{LeftColumn: "orders.region", RightColumn: "customers.region", Operator: domain.OpEq},
						},
					},
				},
				GroupBy: []string{"customers.name"},
				OrderBy: []domain.OrderBy{
					{Column: "customers.name", Direction: domain.SortDesc},
					{Column: "orders.total"},
				},
				Limit: domain.IntPtr(5),
			},
			expected: "SELECT customers.name, orders.total FROM orders" +
				" LEFT JOIN customers ON orders.customer_id = customers.id AND orders.region = customers.region" +
				" GROUP BY customers.name ORDER BY customers.name DESC, orders.total ASC LIMIT 5",
		},
		{
			name: "quotes escaped",
			def: domain.QueryDefinition{
				Table:   "people",
				Filters: []domain.Filter{{Column: "name", Operator: domain.OpEq, Value: "O'Brien"}},
			},
			expected: "SELECT * FROM people WHERE name = 'O''Brien'",
		},
		{
			name: "identifiers verbatim",
			def: domain.QueryDefinition{
				Table:   "weird table",
				Columns: []string{"a-b"},
			},
			expected: "SELECT a-b FROM weird table",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, compiler.Compile(tt.def))
		})
	}
}

func TestCompile_Idempotent(t *testing.T) {
	def := domain.QueryDefinition{
		Table:   "orders",
		Columns: []string{"id", "total"},
		Filters: []domain.Filter{
			{Column: "status", Operator: domain.OpIn, Value: []any{"paid", "shipped"}},
			{Column: "total", Operator: domain.OpGt, Value: 10},
		},
		OrderBy: []domain.OrderBy{{Column: "total", Direction: domain.SortDesc}},
		Limit:   domain.IntPtr(10),
	}

	first := compiler.Compile(def)
	second := compiler.Compile(def)
	assert.Equal(t, first, second)
}

func TestCompileBound(t *testing.T) {
	def := domain.QueryDefinition{
		Table:   "orders",
		Columns: []string{"id"},
		Filters: []domain.Filter{
			{Column: "status", Operator: domain.OpEq, Value: "paid'; DROP TABLE orders; --"},
			{Column: "region", Operator: domain.OpIn, Value: []any{"EU", "US"}},
			{Column: "note", Operator: domain.OpIsNull},
			{Column: "skip", Operator: domain.OpIn, Value: "x"},
		},
		Limit: domain.IntPtr(10),
	}

	tests := []struct {
		name     string
		style    compiler.BindStyle
		expected string
	}{
		{
			name:     "dollar",
			style:    compiler.BindDollar,
			expected: "SELECT id FROM orders WHERE status = $1 AND region IN ($2, $3) AND note IS NULL LIMIT 10",
		},
		{
			name:     "question",
			style:    compiler.BindQuestion,
			expected: "SELECT id FROM orders WHERE status = ? AND region IN (?, ?) AND note IS NULL LIMIT 10",
		},
		{
			name:     "at p",
			style:    compiler.BindAtP,
			expected: "SELECT TOP 10 id FROM orders WHERE status = @p1 AND region IN (@p2, @p3) AND note IS NULL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args := compiler.CompileBound(def, tt.style)
			assert.Equal(t, tt.expected, sql)
			assert.Equal(t, []any{"paid'; DROP TABLE orders; --", "EU", "US"}, args)
		})
	}
}

func TestCompileBound_SQLServerRowCap(t *testing.T) {
	tests := []struct {
		name     string
		def      domain.QueryDefinition
		expected string
	}{
		{
			name: "scheduled limit",
			def: domain.QueryDefinition{
				Table:   "orders",
				Filters: []domain.Filter{{Column: "status", Operator: domain.OpEq, Value: "paid"}},
				Limit:   domain.IntPtr(10000),
			},
			expected: "SELECT TOP 10000 * FROM orders WHERE status = @p1",
		},
		{
			name: "ordered",
			def: domain.QueryDefinition{
				Table:   "orders",
				Columns: []string{"id", "total"},
				OrderBy: []domain.OrderBy{{Column: "total", Direction: domain.SortDesc}},
				Limit:   domain.IntPtr(5),
			},
			expected: "SELECT TOP 5 id, total FROM orders ORDER BY total DESC",
		},
		{
			name:     "no limit",
			def:      domain.QueryDefinition{Table: "orders"},
			expected: "SELECT * FROM orders",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, _ := compiler.CompileBound(tt.def, compiler.BindAtP)
			assert.Equal(t, tt.expected, sql)
			assert.NotContains(t, sql, "LIMIT")
		})
	}
}

func TestLiteral(t *testing.T) {
	assert.Equal(t, "NULL", compiler.Literal(nil))
	assert.Equal(t, "FALSE", compiler.Literal(false))
	assert.Equal(t, "5", compiler.Literal(5.0))
	assert.Equal(t, "-3", compiler.Literal(int64(-3)))
	assert.Equal(t, "'[1 2]'", compiler.Literal([]int{1, 2}))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		def     domain.QueryDefinition
		wantErr string
	}{
		{name: "valid", def: domain.QueryDefinition{Table: "orders", Limit: domain.IntPtr(10000)}},
		{name: "missing table", def: domain.QueryDefinition{}, wantErr: "table is required"},
		{
			name:    "bad join type",
			def:     domain.QueryDefinition{Table: "a", Joins: []domain.Join{{Table: "b", JoinType: "CROSS"}}},
			wantErr: "unknown join type",
		},
		{
			name:    "join without conditions",
			def:     domain.QueryDefinition{Table: "a", Joins: []domain.Join{{Table: "b", JoinType: domain.JoinInner}}},
			wantErr: "at least one condition",
		},
		{
			name:    "unknown operator",
			def:     domain.QueryDefinition{Table: "a", Filters: []domain.Filter{{Column: "x", Operator: "~"}}},
			wantErr: "unknown operator",
		},
		{
			name:    "bad direction",
			def:     domain.QueryDefinition{Table: "a", OrderBy: []domain.OrderBy{{Column: "x", Direction: "UP"}}},
			wantErr: "unknown direction",
		},
		{name: "limit zero", def: domain.QueryDefinition{Table: "a", Limit: domain.IntPtr(0)}, wantErr: "limit"},
		{name: "limit too high", def: domain.QueryDefinition{Table: "a", Limit: domain.IntPtr(10001)}, wantErr: "limit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := compiler.Validate(tt.def)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, apperrors.IsCompileError(err))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateIdentifiers(t *testing.T) {
	catalog := compiler.NewCatalog([]domain.Table{
		{
			Name:       "orders",
			Columns:    []domain.Column{{Name: "id"}, {Name: "customer_id"}, {Name: "total"}, {Name: "status"}},
			Properties: map[string]any{"schema": "public"},
		},
		{
			Name:    "customers",
			Columns: []domain.Column{{Name: "id"}, {Name: "name"}},
		},
	})

	tests := []struct {
		name    string
		def     domain.QueryDefinition
		wantErr string
	}{
		{
			name: "known identifiers",
			def: domain.QueryDefinition{
				Table:   "orders",
				Columns: []string{"orders.id", "name", "customers.*"},
				Joins: []domain.Join{{
					Table:      "customers",
					JoinType:   domain.JoinInner,
					Conditions: []domain.JoinCondition{{LeftColumn: "orders.customer_id", RightColumn: "customers.id", Operator: domain.OpEq}},
				}},
				Filters: []domain.Filter{{Column: "STATUS", Operator: domain.OpEq, Value: "paid"}},
				OrderBy: []domain.OrderBy{{Column: "total"}},
			},
		},
		{
			name: "schema qualified table",
			def:  domain.QueryDefinition{Table: "public.orders", Columns: []string{"total"}},
		},
		{
			name:    "unknown table",
			def:     domain.QueryDefinition{Table: "orders; DROP TABLE x"},
			wantErr: "unknown table",
		},
		{
			name:    "unknown column",
			def:     domain.QueryDefinition{Table: "orders", Columns: []string{"password"}},
			wantErr: "unknown column 'password'",
		},
		{
			name:    "column of table outside query",
			def:     domain.QueryDefinition{Table: "orders", Filters: []domain.Filter{{Column: "customers.name", Operator: domain.OpIsNull}}},
			wantErr: "filters",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := compiler.ValidateIdentifiers(tt.def, catalog)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, apperrors.IsCompileError(err))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
