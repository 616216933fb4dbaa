package compiler

import (
	"strings"

	"github.com/dataask/dataask/core/domain"
	apperrors "github.com/dataask/dataask/core/shared/errors"
)

// Validate checks the shape of def and returns a COMPILE_ERROR describing
// the first problem found.
func Validate(def domain.QueryDefinition) error {
	if strings.TrimSpace(def.Table) == "" {
		return apperrors.Compile("table is required")
	}
	for i, join := range def.Joins {
		if strings.TrimSpace(join.Table) == "" {
			return apperrors.Compile("joins[%d]: table is required", i)
		}
		if !join.JoinType.Valid() {
			return apperrors.Compile("joins[%d]: unknown join type '%s'", i, join.JoinType)
		}
		if len(join.Conditions) == 0 {
			return apperrors.Compile("joins[%d]: at least one condition is required", i)
		}
		for j, c := range join.Conditions {
			if c.LeftColumn == "" || c.RightColumn == "" {
				return apperrors.Compile("joins[%d].conditions[%d]: both columns are required", i, j)
			}
			if !c.Operator.Comparison() {
				return apperrors.Compile("joins[%d].conditions[%d]: unsupported operator '%s'", i, j, c.Operator)
			}
		}
	}
	for i, f := range def.Filters {
		if strings.TrimSpace(f.Column) == "" {
			return apperrors.Compile("filters[%d]: column is required", i)
		}
		if !f.Operator.Valid() {
			return apperrors.Compile("filters[%d]: unknown operator '%s'", i, f.Operator)
		}
	}
	for i, o := range def.OrderBy {
		if strings.TrimSpace(o.Column) == "" {
			return apperrors.Compile("order_by[%d]: column is required", i)
		}
		switch o.Direction {
		case "", domain.SortAsc, domain.SortDesc:
		default:
			return apperrors.Compile("order_by[%d]: unknown direction '%s'", i, o.Direction)
		}
	}
	if def.Limit != nil && (*def.Limit < 1 || *def.Limit > domain.MaxRowLimit) {
		return apperrors.Compile("limit must be between 1 and %d", domain.MaxRowLimit)
	}
	return nil
}
