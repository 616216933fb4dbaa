// Package compiler assembles SQL text from a structured QueryDefinition.
//
// Compile inlines filter values as literals. CompileBound emits positional
// placeholders and returns the values as arguments so that a backend which
// supports binding never sees user values inside the statement text. Both
// share clause order and skip rules, and both trust identifiers: call
// Validate and ValidateIdentifiers first when the definition comes from an
// untrusted source.
package compiler

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/dataask/dataask/core/domain"
)

// BindStyle selects the placeholder syntax used by CompileBound.
type BindStyle int

const (
	// BindDollar renders $1, $2, ... (postgres)
	BindDollar BindStyle = iota + 1
	// BindQuestion renders ? (mysql)
	BindQuestion
	// BindAtP renders @p1, @p2, ... (sql server)
	BindAtP
)

// valueRenderer turns one filter value into SQL text.
type valueRenderer interface {
	render(v any) string
}

// Compile renders def as SQL with filter values inlined as literals.
func Compile(def domain.QueryDefinition) string {
	return build(def, literalRenderer{}, false)
}

// CompileBound renders def as SQL with filter values replaced by
// placeholders of the given style. The returned args are in placeholder
// order. BindAtP targets T-SQL, so the row cap is rendered as SELECT TOP n
// instead of a trailing LIMIT.
func CompileBound(def domain.QueryDefinition, style BindStyle) (string, []any) {
	r := &boundRenderer{style: style}
	sql := build(def, r, style == BindAtP)
	return sql, r.args
}

func build(def domain.QueryDefinition, r valueRenderer, top bool) string {
	var b strings.Builder

	b.WriteString("SELECT ")
	if top && def.Limit != nil {
		fmt.Fprintf(&b, "TOP %d ", *def.Limit)
	}
	if len(def.Columns) > 0 {
		b.WriteString(strings.Join(def.Columns, ", "))
	} else {
		b.WriteString("*")
	}
	b.WriteString(" FROM ")
	b.WriteString(def.Table)

	for _, join := range def.Joins {
		fmt.Fprintf(&b, " %s JOIN %s", join.JoinType, join.Table)
		if len(join.Conditions) == 0 {
			continue
		}
		conds := make([]string, 0, len(join.Conditions))
		for _, c := range join.Conditions {
			conds = append(conds, fmt.Sprintf("%s %s %s", c.LeftColumn, c.Operator, c.RightColumn))
		}
		b.WriteString(" ON ")
		b.WriteString(strings.Join(conds, " AND "))
	}

	where := make([]string, 0, len(def.Filters))
	for _, f := range def.Filters {
		if clause, ok := renderFilter(f, r); ok {
			where = append(where, clause)
		}
	}
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}

	if len(def.GroupBy) > 0 {
		b.WriteString(" GROUP BY ")
		b.WriteString(strings.Join(def.GroupBy, ", "))
	}

	if len(def.OrderBy) > 0 {
		terms := make([]string, 0, len(def.OrderBy))
		for _, o := range def.OrderBy {
			dir := o.Direction
			if dir == "" {
				dir = domain.SortAsc
			}
			terms = append(terms, o.Column+" "+string(dir))
		}
		b.WriteString(" ORDER BY ")
		b.WriteString(strings.Join(terms, ", "))
	}

	if !top && def.Limit != nil {
		fmt.Fprintf(&b, " LIMIT %d", *def.Limit)
	}

	return b.String()
}

// renderFilter returns the predicate for f, or false when the operator and
// value combination is unsupported (IN without a non-empty list, unknown
// operator). Such filters are dropped from the WHERE clause.
func renderFilter(f domain.Filter, r valueRenderer) (string, bool) {
	switch {
	case f.Operator.Comparison():
		return fmt.Sprintf("%s %s %s", f.Column, f.Operator, r.render(f.Value)), true
	case f.Operator == domain.OpLike:
		return fmt.Sprintf("%s LIKE %s", f.Column, r.render(likePattern(f.Value))), true
	case f.Operator == domain.OpIn:
		items, ok := asList(f.Value)
		if !ok || len(items) == 0 {
			return "", false
		}
		rendered := make([]string, len(items))
		for i, item := range items {
			rendered[i] = r.render(item)
		}
		return fmt.Sprintf("%s IN (%s)", f.Column, strings.Join(rendered, ", ")), true
	case f.Operator == domain.OpIsNull, f.Operator == domain.OpIsNotNull:
		return fmt.Sprintf("%s %s", f.Column, f.Operator), true
	}
	return "", false
}

// likePattern forces the LIKE operand to text so it is always quoted.
func likePattern(v any) any {
	if s, ok := v.(string); ok {
		return s
	}
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

func asList(v any) ([]any, bool) {
	switch list := v.(type) {
	case []any:
		return list, true
	case []string:
		out := make([]any, len(list))
		for i, s := range list {
			out[i] = s
		}
		return out, true
	case []int:
		out := make([]any, len(list))
		for i, n := range list {
			out[i] = n
		}
		return out, true
	case []float64:
		out := make([]any, len(list))
		for i, n := range list {
			out[i] = n
		}
		return out, true
	}
	return nil, false
}

type literalRenderer struct{}

func (literalRenderer) render(v any) string {
	return Literal(v)
}

// Literal renders v as a SQL literal: quoted strings with doubled single
// quotes, bare numbers, TRUE/FALSE, NULL, and the quoted text form of
// anything else.
func Literal(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case string:
		return quote(val)
	case bool:
		if val {
			return "TRUE"
		}
		return "FALSE"
	case int:
		return strconv.Itoa(val)
	case int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", val)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case json.Number:
		return val.String()
	}
	return quote(fmt.Sprint(v))
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

type boundRenderer struct {
	style BindStyle
	args  []any
}

func (r *boundRenderer) render(v any) string {
	if n, ok := v.(json.Number); ok {
		if i, err := n.Int64(); err == nil {
			v = i
		} else if f, err := n.Float64(); err == nil {
			v = f
		}
	}
	r.args = append(r.args, v)
	switch r.style {
	case BindQuestion:
		return "?"
	case BindAtP:
		return "@p" + strconv.Itoa(len(r.args))
	default:
		return "$" + strconv.Itoa(len(r.args))
	}
}
