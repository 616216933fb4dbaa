// Package report renders query results as email attachments.
package report

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dataask/dataask/core/domain"
	"github.com/dataask/dataask/core/domain/interfaces"
	apperrors "github.com/dataask/dataask/core/shared/errors"
)

const (
	ContentTypeCSV  = "text/csv"
	ContentTypePDF  = "application/pdf"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Render formats rows as an attachment named after the query: spaces in
// name become underscores and the format is the extension.
func Render(format domain.ReportFormat, name string, rows []map[string]any, columns []string) (interfaces.Attachment, error) {
	var (
		data        []byte
		contentType string
		err         error
	)
	switch format {
	case domain.FormatCSV:
		data, err = ToCSV(rows, columns)
		contentType = ContentTypeCSV
	case domain.FormatPDF:
		data, err = ToPDF(rows, name, columns)
		contentType = ContentTypePDF
	case domain.FormatXLSX:
		data, err = ToXLSX(rows, name, columns)
		contentType = ContentTypeXLSX
	default:
		return interfaces.Attachment{}, apperrors.Validation("unsupported report format '%s'", format)
	}
	if err != nil {
		return interfaces.Attachment{}, fmt.Errorf("render %s report: %w", format, err)
	}
	return interfaces.Attachment{
		Filename:    Filename(name, format),
		ContentType: contentType,
		Data:        data,
	}, nil
}

// Filename returns the attachment file name for a query name.
func Filename(name string, format domain.ReportFormat) string {
	return strings.ReplaceAll(name, " ", "_") + "." + string(format)
}

// resolveColumns returns columns, or the first row's keys in sorted order.
func resolveColumns(rows []map[string]any, columns []string) []string {
	if len(columns) > 0 || len(rows) == 0 {
		return columns
	}
	return domain.SortedKeys(rows[0])
}

// cellText renders a value for a text cell. Missing and null values are
// empty.
func cellText(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []byte:
		return string(val)
	case json.Number:
		return val.String()
	case time.Time:
		return val.Format(time.RFC3339)
	case fmt.Stringer:
		return val.String()
	}
	return fmt.Sprint(v)
}
