// Package export renders the project register as xlsx, csv or pdf.
package export

import (
	"fmt"
	"io"
	"strings"
)

// Format is an output file type
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
	FormatPDF  Format = "pdf"
)

// ParseFormat accepts a format name, defaulting to xlsx
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatXLSX:
		return FormatXLSX, nil
	case FormatCSV:
		return FormatCSV, nil
	case FormatPDF:
		return FormatPDF, nil
	}
	return "", fmt.Errorf("unsupported export format %q", s)
}

// ContentType is the MIME type of the format
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatPDF:
		return "application/pdf"
	default:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
}

// Column is one exported column
type Column struct {
	Key   string
	Label string
}

// Table is what gets exported
type Table struct {
	Title   string
	Summary string
	Columns []Column
	Rows    []map[string]interface{}
}

func (t Table) keys() []string {
	keys := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		keys[i] = c.Key
	}
	return keys
}

func (t Table) labels() []string {
	labels := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		labels[i] = c.Label
	}
	return labels
}

// Exporter writes tables; FontPath is only used for pdf
type Exporter struct {
	FontPath string
}

// Write renders t in format f to w
func (e Exporter) Write(w io.Writer, f Format, t Table) error {
	switch f {
	case FormatCSV:
		csvExporter := NewCSVExporter(w, DefaultCSVOptions())
		if err := csvExporter.WriteHeader(t.labels()); err != nil {
			return err
		}
		if err := csvExporter.WriteMapRows(t.Rows, t.keys()); err != nil {
			return err
		}
		return csvExporter.Flush()

	case FormatPDF:
		options := DefaultPDFOptions()
		options.FontPath = e.FontPath
		if t.Title != "" {
			options.Title = t.Title
		}
		gen, err := NewPDFGenerator(options)
		if err != nil {
			return err
		}
		if err := gen.GenerateReport(t.keys(), t.labels(), t.Rows, t.Summary); err != nil {
			return fmt.Errorf("failed to render pdf: %w", err)
		}
		return gen.WriteTo(w)

	default:
		xlsx := NewExcelExporter(DefaultExcelOptions())
		defer xlsx.Close()
		if err := xlsx.WriteHeader(t.labels()); err != nil {
			return err
		}
		if err := xlsx.WriteRows(t.Rows, t.keys()); err != nil {
			return err
		}
		return xlsx.WriteTo(w)
	}
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
