package report

import (
	"encoding/json"
	"strings"

	"github.com/xuri/excelize/v2"
)

const defaultSheetName = "Results"

// ToXLSX writes one sheet named after title with a bold header row.
func ToXLSX(rows []map[string]any, title string, columns []string) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := sheetName(title)
	index, err := f.NewSheet(sheet)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(index)
	if sheet != "Sheet1" {
		f.DeleteSheet("Sheet1")
	}

	columns = resolveColumns(rows, columns)
	if len(columns) > 0 {
		headerStyle, err := f.NewStyle(&excelize.Style{
			Font: &excelize.Font{Bold: true, Color: "#F5F5F5"},
			Fill: excelize.Fill{Type: "pattern", Color: []string{"#808080"}, Pattern: 1},
		})
		if err != nil {
			return nil, err
		}
		header := make([]any, len(columns))
		for i, col := range columns {
			header[i] = col
		}
		if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
			return nil, err
		}
		last, err := excelize.CoordinatesToCellName(len(columns), 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
			return nil, err
		}
	}

	for r, row := range rows {
		values := make([]any, len(columns))
		for i, col := range columns {
			values[i] = cellValue(row[col])
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// cellValue keeps numbers and booleans native; everything else becomes
// text.
func cellValue(v any) any {
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		if f, err := val.Float64(); err == nil {
			return f
		}
		return val.String()
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64,
		float32, float64, bool:
		return v
	case nil:
		return nil
	}
	return cellText(v)
}

// sheetName strips characters Excel rejects and caps the length at 31.
func sheetName(title string) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return -1
		}
		return r
	}, title)
	name = strings.Trim(strings.TrimSpace(name), "'")
	if runes := []rune(name); len(runes) > 31 {
		name = string(runes[:31])
	}
	if name == "" {
		return defaultSheetName
	}
	return name
}
