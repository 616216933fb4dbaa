package report

import (
	"bytes"
	"encoding/csv"
)

// ToCSV writes a header line and one line per row. No rows yields empty
// output.
func ToCSV(rows []map[string]any, columns []string) ([]byte, error) {
	if len(rows) == 0 {
		return []byte{}, nil
	}
	columns = resolveColumns(rows, columns)

	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	writer.UseCRLF = true
	if err := writer.Write(columns); err != nil {
		return nil, err
	}
	record := make([]string, len(columns))
	for _, row := range rows {
		for i, col := range columns {
			record[i] = cellText(row[col])
		}
		if err := writer.Write(record); err != nil {
			return nil, err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
