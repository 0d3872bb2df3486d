package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"alpharia-assessment/internal/domain"
	"github.com/xuri/excelize/v2"
)

// Format is an export file type.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatXLSX Format = "xlsx"
)

var mimeTypes = map[Format]string{
	FormatCSV:  "text/csv",
	FormatJSON: "application/json",
	FormatXLSX: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

// ParseFormat accepts a case-insensitive format name.
func ParseFormat(raw string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := mimeTypes[f]; !ok {
		return "", fmt.Errorf("%w: %q", domain.ErrUnsupportedFormat, raw)
	}
	return f, nil
}

// File is handed to the host's save/download mechanism.
type File struct {
	Filename string
	MimeType string
	Content  []byte
}

// Column extracts one cell from a row value.
type Column[T any] struct {
	Header string
	Field  string
	Value  func(T) string
}

// Renderer writes a slice of rows in any supported format.
type Renderer[T any] struct {
	Sheet   string
	Columns []Column[T]
}

// Render serializes rows and names the file base.<ext>.
func (r Renderer[T]) Render(base string, rows []T, format Format) (File, error) {
	var (
		content []byte
		err     error
	)
	switch format {
	case FormatCSV:
		content, err = r.writeCSV(rows)
	case FormatJSON:
		content, err = r.writeJSON(rows)
	case FormatXLSX:
		content, err = r.writeXLSX(rows)
	default:
		return File{}, fmt.Errorf("%w: %q", domain.ErrUnsupportedFormat, format)
	}
	if err != nil {
		return File{}, err
	}
	return File{
		Filename: base + "." + string(format),
		MimeType: mimeTypes[format],
		Content:  content,
	}, nil
}

func (r Renderer[T]) headers() []string {
	out := make([]string, len(r.Columns))
	for i, c := range r.Columns {
		out[i] = c.Header
	}
	return out
}

func (r Renderer[T]) record(row T) []string {
	out := make([]string, len(r.Columns))
	for i, c := range r.Columns {
		out[i] = c.Value(row)
	}
	return out
}

// writeCSV quotes fields with commas, quotes or newlines and doubles embedded quotes.
func (r Renderer[T]) writeCSV(rows []T) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(r.headers()); err != nil {
		return nil, err
	}
	for _, row := range rows {
		if err := w.Write(r.record(row)); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("write csv: %w", err)
	}
	return buf.Bytes(), nil
}

func (r Renderer[T]) writeJSON(rows []T) ([]byte, error) {
	objects := make([]map[string]string, 0, len(rows))
	for _, row := range rows {
		obj := make(map[string]string, len(r.Columns))
		for _, c := range r.Columns {
			obj[c.Field] = c.Value(row)
		}
		objects = append(objects, obj)
	}
	return json.MarshalIndent(objects, "", "  ")
}

func (r Renderer[T]) writeXLSX(rows []T) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(r.Sheet)
	if err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if r.Sheet != "Sheet1" {
		_ = f.DeleteSheet("Sheet1")
	}

	write := func(rowIdx int, values []string) error {
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, rowIdx)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(r.Sheet, cell, v); err != nil {
				return err
			}
		}
		return nil
	}
	if err := write(1, r.headers()); err != nil {
		return nil, err
	}
	for i, row := range rows {
		if err := write(i+2, r.record(row)); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

func outcomeLabel(o domain.Outcome) string {
	if o == domain.OutcomeUnset {
		return "not attempted"
	}
	return string(o)
}

var sectionRenderer = Renderer[domain.ReportRow]{
	Sheet: "Results",
	Columns: []Column[domain.ReportRow]{
		{Header: "Item", Field: "item", Value: func(r domain.ReportRow) string { return r.Item }},
		{Header: "Outcome", Field: "outcome", Value: func(r domain.ReportRow) string { return outcomeLabel(r.Outcome) }},
		{Header: "Accuracy", Field: "accuracy", Value: func(r domain.ReportRow) string { return r.AccuracyLabel }},
		{Header: "Method", Field: "method", Value: func(r domain.ReportRow) string { return string(r.Method) }},
	},
}

var summaryRenderer = Renderer[domain.SectionSummary]{
	Sheet: "Summary",
	Columns: []Column[domain.SectionSummary]{
		{Header: "Section", Field: "section", Value: func(s domain.SectionSummary) string { return s.Label }},
		{Header: "Correct", Field: "correct", Value: func(s domain.SectionSummary) string { return strconv.Itoa(s.Correct) }},
		{Header: "Total", Field: "total", Value: func(s domain.SectionSummary) string { return strconv.Itoa(s.Total) }},
		{Header: "Percentage", Field: "percentage", Value: func(s domain.SectionSummary) string { return strconv.Itoa(s.Percentage) + "%" }},
	},
}

// SectionFile exports one section's per-item results.
func SectionFile(report domain.SectionReport, format Format) (File, error) {
	return sectionRenderer.Render(report.Key+"-results", report.Rows, format)
}

// SummaryFile exports the per-section summary followed by a grand total row.
func SummaryFile(base string, summary domain.AttemptSummary, format Format) (File, error) {
	rows := make([]domain.SectionSummary, 0, len(summary.Sections)+1)
	rows = append(rows, summary.Sections...)
	rows = append(rows, domain.SectionSummary{
		Key:        "total",
		Label:      "Total",
		Correct:    summary.Correct,
		Total:      summary.Total,
		Percentage: summary.Percentage,
	})
	return summaryRenderer.Render(base, rows, format)
}
