package domain

// MaxRowLimit is the upper bound for a QueryDefinition limit and the
// safety cap applied to scheduled runs.
const MaxRowLimit = 10000

// QueryType tags how a query payload is expressed.
type QueryType string

const (
	QueryTypeVisual QueryType = "visual"
	QueryTypeSQL    QueryType = "sql"
)

// JoinType is the kind of a JOIN clause.
type JoinType string

const (
	JoinInner JoinType = "INNER"
	JoinLeft  JoinType = "LEFT"
	JoinRight JoinType = "RIGHT"
	JoinFull  JoinType = "FULL"
)

// Valid reports whether j is a known join type.
func (j JoinType) Valid() bool {
	switch j {
	case JoinInner, JoinLeft, JoinRight, JoinFull:
		return true
	}
	return false
}

// Operator is a filter or join-condition comparison operator.
type Operator string

const (
	OpEq        Operator = "="
	OpNotEq     Operator = "!="
	OpGt        Operator = ">"
	OpGte       Operator = ">="
	OpLt        Operator = "<"
	OpLte       Operator = "<="
	OpLike      Operator = "LIKE"
	OpIn        Operator = "IN"
	OpIsNull    Operator = "IS NULL"
	OpIsNotNull Operator = "IS NOT NULL"
)

// Comparison reports whether o renders as `col OP value`.
func (o Operator) Comparison() bool {
	switch o {
	case OpEq, OpNotEq, OpGt, OpGte, OpLt, OpLte:
		return true
	}
	return false
}

// Valid reports whether o is a known filter operator.
func (o Operator) Valid() bool {
	switch o {
	case OpLike, OpIn, OpIsNull, OpIsNotNull:
		return true
	}
	return o.Comparison()
}

// SortDirection is ASC or DESC.
type SortDirection string

const (
	SortAsc  SortDirection = "ASC"
	SortDesc SortDirection = "DESC"
)

// JoinCondition renders as `left operator right`.
type JoinCondition struct {
	LeftColumn  string   `json:"left_column" yaml:"left_column"`
	RightColumn string   `json:"right_column" yaml:"right_column"`
	Operator    Operator `json:"operator" yaml:"operator"`
}

// Join is a single JOIN clause.
type Join struct {
	Table      string          `json:"table" yaml:"table"`
	JoinType   JoinType        `json:"join_type" yaml:"join_type"`
	Conditions []JoinCondition `json:"conditions" yaml:"conditions"`
}

// Filter is one WHERE predicate. Value is a scalar, a list (IN) or nil.
type Filter struct {
	Column   string   `json:"column" yaml:"column"`
	Operator Operator `json:"operator" yaml:"operator"`
	Value    any      `json:"value,omitempty" yaml:"value,omitempty"`
}

// OrderBy is one ORDER BY term.
type OrderBy struct {
	Column    string        `json:"column" yaml:"column"`
	Direction SortDirection `json:"direction" yaml:"direction"`
}

// QueryDefinition is the structured, DB-agnostic description of a SELECT.
// A nil Columns slice selects every column.
type QueryDefinition struct {
	Table   string    `json:"table" yaml:"table"`
	Joins   []Join    `json:"joins,omitempty" yaml:"joins,omitempty"`
	Columns []string  `json:"columns,omitempty" yaml:"columns,omitempty"`
	Filters []Filter  `json:"filters,omitempty" yaml:"filters,omitempty"`
	GroupBy []string  `json:"group_by,omitempty" yaml:"group_by,omitempty"`
	OrderBy []OrderBy `json:"order_by,omitempty" yaml:"order_by,omitempty"`
	Limit   *int      `json:"limit,omitempty" yaml:"limit,omitempty"`
}

// Clone returns a deep copy of the definition. Filter values are copied
// shallowly except for []any lists.
func (d QueryDefinition) Clone() QueryDefinition {
	out := d
	out.Columns = append([]string(nil), d.Columns...)
	out.GroupBy = append([]string(nil), d.GroupBy...)
	out.OrderBy = append([]OrderBy(nil), d.OrderBy...)
	if d.Joins != nil {
		out.Joins = make([]Join, len(d.Joins))
		for i, j := range d.Joins {
			j.Conditions = append([]JoinCondition(nil), j.Conditions...)
			out.Joins[i] = j
		}
	}
	if d.Filters != nil {
		out.Filters = make([]Filter, len(d.Filters))
		for i, f := range d.Filters {
			if list, ok := f.Value.([]any); ok {
				f.Value = append([]any(nil), list...)
			}
			out.Filters[i] = f
		}
	}
	if d.Limit != nil {
		limit := *d.Limit
		out.Limit = &limit
	}
	return out
}

// ParameterValues maps placeholder names to scalar values.
type ParameterValues map[string]any

// ParameterDefinition declares a named placeholder.
type ParameterDefinition struct {
	Name         string `json:"name" yaml:"name"`
	Type         string `json:"type,omitempty" yaml:"type,omitempty"`
	Required     bool   `json:"required,omitempty" yaml:"required,omitempty"`
	DefaultValue any    `json:"default_value,omitempty" yaml:"default_value,omitempty"`
	Description  string `json:"description,omitempty" yaml:"description,omitempty"`
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int {
	return &v
}
