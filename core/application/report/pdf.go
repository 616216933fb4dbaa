package report

import (
	"bytes"

	"github.com/go-pdf/fpdf"
)

const (
	pdfMargin       = 12.7 // half an inch, in mm
	pdfHeaderHeight = 8.0
	pdfRowHeight    = 6.0
)

// ToPDF renders rows as a table on letter pages under a centered title.
// No rows yields a single page reading "No data available".
func ToPDF(rows []map[string]any, title string, columns []string) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "Letter", "")
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetAutoPageBreak(false, pdfMargin)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	if len(rows) == 0 {
		pdf.SetFont("Helvetica", "", 10)
		pdf.CellFormat(0, pdfRowHeight, "No data available", "", 1, "L", false, 0, "")
		return output(pdf)
	}

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, tr(title), "", 1, "C", false, 0, "")
	pdf.Ln(5)

	columns = resolveColumns(rows, columns)
	pageWidth, pageHeight := pdf.GetPageSize()
	colWidth := (pageWidth - 2*pdfMargin) / float64(len(columns))

	header := func() {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.SetFillColor(128, 128, 128)
		pdf.SetTextColor(245, 245, 245)
		pdf.SetDrawColor(0, 0, 0)
		for _, col := range columns {
			pdf.CellFormat(colWidth, pdfHeaderHeight, fit(pdf, tr(col), colWidth), "1", 0, "L", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Helvetica", "", 8)
		pdf.SetTextColor(0, 0, 0)
	}
	header()

	for i, row := range rows {
		if pdf.GetY()+pdfRowHeight > pageHeight-pdfMargin {
			pdf.AddPage()
			header()
		}
		if i%2 == 0 {
			pdf.SetFillColor(255, 255, 255)
		} else {
			pdf.SetFillColor(211, 211, 211)
		}
		for _, col := range columns {
			pdf.CellFormat(colWidth, pdfRowHeight, fit(pdf, tr(cellText(row[col])), colWidth), "1", 0, "L", true, 0, "")
		}
		pdf.Ln(-1)
	}
	return output(pdf)
}

// fit truncates s with an ellipsis so it fits in width with cell padding.
func fit(pdf *fpdf.Fpdf, s string, width float64) string {
	limit := width - 2*pdf.GetCellMargin()
	if pdf.GetStringWidth(s) <= limit {
		return s
	}
	runes := []rune(s)
	for len(runes) > 0 && pdf.GetStringWidth(string(runes)+"...") > limit {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "..."
}

func output(pdf *fpdf.Fpdf) ([]byte, error) {
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
