package domain

import (
	"fmt"
	"sort"
)

// RowCount returns the number of rows in a gateway result: the length of
// `data` for a `{columns, data}` object, the length of a bare array, or nil
// for any other shape.
func RowCount(result any) *int {
	n := -1
	switch v := result.(type) {
	case *ResultSet:
		if v != nil {
			n = len(v.Data)
		}
	case map[string]any:
		if _, hasColumns := v["columns"]; hasColumns {
			switch data := v["data"].(type) {
			case []any:
				n = len(data)
			case []map[string]any:
				n = len(data)
			}
		}
	case []any:
		n = len(v)
	case []map[string]any:
		n = len(v)
	}
	if n < 0 {
		return nil
	}
	return &n
}

// ToResultSet normalises a gateway result into named-column rows. Rows
// delivered as positional arrays are zipped with the column list.
func ToResultSet(result any) *ResultSet {
	switch v := result.(type) {
	case *ResultSet:
		if v == nil {
			return &ResultSet{}
		}
		return v
	case map[string]any:
		rs := &ResultSet{Columns: stringList(v["columns"])}
		switch data := v["data"].(type) {
		case []any:
			rs.Data = rowsFrom(data, rs.Columns)
		case []map[string]any:
			rs.Data = data
		}
		if len(rs.Columns) == 0 && len(rs.Data) > 0 {
			rs.Columns = SortedKeys(rs.Data[0])
		}
		return rs
	case []any:
		rs := &ResultSet{Data: rowsFrom(v, nil)}
		if len(rs.Data) > 0 {
			rs.Columns = SortedKeys(rs.Data[0])
		}
		return rs
	case []map[string]any:
		rs := &ResultSet{Data: v}
		if len(v) > 0 {
			rs.Columns = SortedKeys(v[0])
		}
		return rs
	}
	return &ResultSet{}
}

// SortedKeys returns the keys of row in lexical order.
func SortedKeys(row map[string]any) []string {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func rowsFrom(data []any, columns []string) []map[string]any {
	rows := make([]map[string]any, 0, len(data))
	for _, item := range data {
		switch row := item.(type) {
		case map[string]any:
			rows = append(rows, row)
		case []any:
			m := make(map[string]any, len(row))
			for i, cell := range row {
				key := fmt.Sprintf("col_%d", i)
				if i < len(columns) {
					key = columns[i]
				}
				m[key] = cell
			}
			rows = append(rows, m)
		}
	}
	return rows
}

func stringList(v any) []string {
	switch list := v.(type) {
	case []string:
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			out = append(out, fmt.Sprint(item))
		}
		return out
	}
	return nil
}
