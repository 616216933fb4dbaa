package compiler

import (
	"strings"

	"github.com/dataask/dataask/core/domain"
	apperrors "github.com/dataask/dataask/core/shared/errors"
)

// Catalog is the set of known tables and their columns, keyed by lower-case
// name. A table is reachable both by its bare name and by schema.name when
// the gateway reports a schema.
type Catalog map[string]map[string]struct{}

// NewCatalog indexes gateway table metadata.
func NewCatalog(tables []domain.Table) Catalog {
	c := make(Catalog, len(tables))
	for _, t := range tables {
		cols := make(map[string]struct{}, len(t.Columns))
		for _, col := range t.Columns {
			cols[strings.ToLower(col.Name)] = struct{}{}
		}
		c[strings.ToLower(t.Name)] = cols
		if schema, ok := t.Properties["schema"].(string); ok && schema != "" {
			c[strings.ToLower(schema+"."+t.Name)] = cols
		}
	}
	return c
}

// ValidateIdentifiers checks every table and column named by def against
// catalog. Columns may be bare or qualified as table.column; `*` and
// `table.*` are accepted.
func ValidateIdentifiers(def domain.QueryDefinition, catalog Catalog) error {
	tables := []string{def.Table}
	for _, j := range def.Joins {
		tables = append(tables, j.Table)
	}
	for _, t := range tables {
		if _, ok := catalog[strings.ToLower(t)]; !ok {
			return apperrors.Compile("unknown table '%s'", t)
		}
	}

	check := func(where, column string) error {
		if column == "*" || catalog.hasColumn(tables, column) {
			return nil
		}
		return apperrors.Compile("%s: unknown column '%s'", where, column)
	}

	for _, c := range def.Columns {
		if err := check("columns", c); err != nil {
			return err
		}
	}
	for _, j := range def.Joins {
		for _, cond := range j.Conditions {
			if err := check("joins", cond.LeftColumn); err != nil {
				return err
			}
			if err := check("joins", cond.RightColumn); err != nil {
				return err
			}
		}
	}
	for _, f := range def.Filters {
		if err := check("filters", f.Column); err != nil {
			return err
		}
	}
	for _, g := range def.GroupBy {
		if err := check("group_by", g); err != nil {
			return err
		}
	}
	for _, o := range def.OrderBy {
		if err := check("order_by", o.Column); err != nil {
			return err
		}
	}
	return nil
}

func (c Catalog) hasColumn(tables []string, column string) bool {
	column = strings.ToLower(column)
	if idx := strings.LastIndex(column, "."); idx > 0 {
		table, name := column[:idx], column[idx+1:]
		if !containsFold(tables, table) {
			return false
		}
		cols, ok := c[table]
		if !ok {
			return false
		}
		if name == "*" {
			return true
		}
		_, ok = cols[name]
		return ok
	}
	for _, t := range tables {
		if _, ok := c[strings.ToLower(t)][column]; ok {
			return true
		}
	}
	return false
}

func containsFold(list []string, s string) bool {
	for _, item := range list {
		if strings.EqualFold(item, s) {
			return true
		}
	}
	return false
}
