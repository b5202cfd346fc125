package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"
)

// utf8BOM makes spreadsheet tools read the file as UTF-8
const utf8BOM = "\ufeff"

// CSVExporter exports data to CSV format
type CSVExporter struct {
	w             io.Writer
	writer        *csv.Writer
	options       CSVOptions
	headerWritten bool
}

// CSVOptions configures CSV export behavior
type CSVOptions struct {
	Delimiter      rune   `json:"delimiter"`
	UseCRLF        bool   `json:"use_crlf"`
	WriteBOM       bool   `json:"write_bom"`
	DateFormat     string `json:"date_format"`
	NullValue      string `json:"null_value"`
	BoolTrueValue  string `json:"bool_true_value"`
	BoolFalseValue string `json:"bool_false_value"`
}

// DefaultCSVOptions returns default CSV export options
func DefaultCSVOptions() CSVOptions {
	return CSVOptions{
		Delimiter:      ',',
		UseCRLF:        true,
		WriteBOM:       true,
		DateFormat:     "2006-01-02",
		BoolTrueValue:  "Yes",
		BoolFalseValue: "No",
	}
}

// NewCSVExporter creates a new CSV exporter
func NewCSVExporter(w io.Writer, options CSVOptions) *CSVExporter {
	writer := csv.NewWriter(w)
	writer.Comma = options.Delimiter
	writer.UseCRLF = options.UseCRLF

	return &CSVExporter{
		w:       w,
		writer:  writer,
		options: options,
	}
}

// WriteHeader writes the CSV header row
func (e *CSVExporter) WriteHeader(labels []string) error {
	if e.options.WriteBOM {
		if _, err := io.WriteString(e.w, utf8BOM); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
	}
	if err := e.writer.Write(labels); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	e.headerWritten = true
	return nil
}

// WriteMapRows writes rows from a slice of maps
func (e *CSVExporter) WriteMapRows(rows []map[string]interface{}, columns []string) error {
	if !e.headerWritten {
		if err := e.WriteHeader(columns); err != nil {
			return err
		}
	}

	for _, row := range rows {
		record := make([]string, len(columns))
		for i, col := range columns {
			record[i] = e.formatValue(row[col])
		}

		if err := e.writer.Write(record); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	return nil
}

// Flush writes any buffered data to the underlying writer
func (e *CSVExporter) Flush() error {
	e.writer.Flush()
	return e.writer.Error()
}

// formatValue formats a value for CSV output
func (e *CSVExporter) formatValue(val interface{}) string {
	switch v := val.(type) {
	case nil:
		return e.options.NullValue
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		if v {
			return e.options.BoolTrueValue
		}
		return e.options.BoolFalseValue
	case time.Time:
		if v.IsZero() {
			return e.options.NullValue
		}
		return v.Format(e.options.DateFormat)
	default:
		return fmt.Sprintf("%v", v)
	}
}
