package export

import (
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

// ExcelExporter writes one table to an xlsx workbook
type ExcelExporter struct {
	file    *excelize.File
	options ExcelOptions
}

// ExcelOptions configures Excel export behavior
type ExcelOptions struct {
	SheetName    string            `json:"sheet_name"`
	FreezeHeader bool              `json:"freeze_header"`
	AutoFilter   bool              `json:"auto_filter"`
	NumberFormat string            `json:"number_format"`
	HeaderStyle  *ExcelStyleConfig `json:"header_style,omitempty"`
	DataStyle    *ExcelStyleConfig `json:"data_style,omitempty"`
	AutoWidth    bool              `json:"auto_width"`
}

// ExcelStyleConfig defines style for cells
type ExcelStyleConfig struct {
	FontBold  bool   `json:"font_bold"`
	FontSize  int    `json:"font_size"`
	FontColor string `json:"font_color"`
	FillColor string `json:"fill_color"`
	Alignment string `json:"alignment"` // left, center, right
	Border    bool   `json:"border"`
}

// DefaultExcelOptions returns default Excel export options
func DefaultExcelOptions() ExcelOptions {
	return ExcelOptions{
		SheetName:    "Projects",
		FreezeHeader: true,
		AutoFilter:   true,
		NumberFormat: "#,##0.00",
		AutoWidth:    true,
		HeaderStyle: &ExcelStyleConfig{
			FontBold:  true,
			FontSize:  11,
			FillColor: "4472C4",
			FontColor: "FFFFFF",
			Alignment: "center",
			Border:    true,
		},
		DataStyle: &ExcelStyleConfig{
			FontSize:  11,
			Alignment: "left",
			Border:    true,
		},
	}
}

// NewExcelExporter creates a new Excel exporter
func NewExcelExporter(options ExcelOptions) *ExcelExporter {
	file := excelize.NewFile()
	file.SetSheetName("Sheet1", options.SheetName)

	return &ExcelExporter{
		file:    file,
		options: options,
	}
}

// WriteHeader writes the header row with styling
func (e *ExcelExporter) WriteHeader(labels []string) error {
	sheetName := e.options.SheetName

	headerStyleID := 0
	if e.options.HeaderStyle != nil {
		style, err := e.createStyle(e.options.HeaderStyle)
		if err != nil {
			return fmt.Errorf("failed to create header style: %w", err)
		}
		headerStyleID = style
	}

	for i, label := range labels {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := e.file.SetCellValue(sheetName, cell, label); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
		if headerStyleID > 0 {
			e.file.SetCellStyle(sheetName, cell, cell, headerStyleID)
		}
	}

	if e.options.FreezeHeader {
		e.file.SetPanes(sheetName, &excelize.Panes{
			Freeze:      true,
			YSplit:      1,
			TopLeftCell: "A2",
			ActivePane:  "bottomLeft",
		})
	}
	return nil
}

// WriteRows writes data rows below the header, in column order
func (e *ExcelExporter) WriteRows(rows []map[string]interface{}, columns []string) error {
	sheetName := e.options.SheetName

	dataStyleID := 0
	if e.options.DataStyle != nil {
		style, err := e.createStyle(e.options.DataStyle)
		if err != nil {
			return fmt.Errorf("failed to create data style: %w", err)
		}
		dataStyleID = style
	}

	numberStyleID := 0
	if e.options.NumberFormat != "" {
		style, err := e.file.NewStyle(&excelize.Style{CustomNumFmt: &e.options.NumberFormat})
		if err != nil {
			return fmt.Errorf("failed to create number style: %w", err)
		}
		numberStyleID = style
	}

	columnWidths := make(map[int]float64)

	for rowIdx, row := range rows {
		rowNum := rowIdx + 2

		for colIdx, colName := range columns {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowNum)
			val := row[colName]

			if dataStyleID > 0 {
				e.file.SetCellStyle(sheetName, cell, cell, dataStyleID)
			}
			if err := e.setCellValue(sheetName, cell, val, numberStyleID); err != nil {
				return fmt.Errorf("failed to set cell value: %w", err)
			}

			if e.options.AutoWidth {
				if width := estimateCellWidth(val); width > columnWidths[colIdx] {
					columnWidths[colIdx] = width
				}
			}
		}
	}

	if e.options.AutoFilter && len(rows) > 0 {
		lastCell, _ := excelize.CoordinatesToCellName(len(columns), len(rows)+1)
		if err := e.file.AutoFilter(sheetName, "A1:"+lastCell, nil); err != nil {
			return fmt.Errorf("failed to set auto filter: %w", err)
		}
	}

	if e.options.AutoWidth {
		for colIdx, width := range columnWidths {
			colName, _ := excelize.ColumnNumberToName(colIdx + 1)
			// Min width 10, max width 50
			if width < 10 {
				width = 10
			}
			if width > 50 {
				width = 50
			}
			e.file.SetColWidth(sheetName, colName, colName, width)
		}
	}
	return nil
}

// WriteTo writes the Excel file to a writer
func (e *ExcelExporter) WriteTo(w io.Writer) error {
	return e.file.Write(w)
}

// Close closes the Excel file
func (e *ExcelExporter) Close() error {
	return e.file.Close()
}

// createStyle creates an Excel style from config
func (e *ExcelExporter) createStyle(config *ExcelStyleConfig) (int, error) {
	style := &excelize.Style{
		Font: &excelize.Font{
			Bold:  config.FontBold,
			Size:  float64(config.FontSize),
			Color: config.FontColor,
		},
	}

	if config.FillColor != "" {
		style.Fill = excelize.Fill{
			Type:    "pattern",
			Pattern: 1,
			Color:   []string{config.FillColor},
		}
	}

	if config.Alignment != "" {
		style.Alignment = &excelize.Alignment{Horizontal: config.Alignment}
	}

	if config.Border {
		style.Border = []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
		}
	}

	return e.file.NewStyle(style)
}

func (e *ExcelExporter) setCellValue(sheet, cell string, val interface{}, numberStyleID int) error {
	switch v := val.(type) {
	case nil:
		return e.file.SetCellValue(sheet, cell, "")
	case bool:
		return e.file.SetCellValue(sheet, cell, yesNo(v))
	case float32, float64:
		if err := e.file.SetCellValue(sheet, cell, v); err != nil {
			return err
		}
		if numberStyleID > 0 {
			return e.file.SetCellStyle(sheet, cell, cell, numberStyleID)
		}
		return nil
	default:
		return e.file.SetCellValue(sheet, cell, v)
	}
}

// estimateCellWidth estimates the display width of a cell value
func estimateCellWidth(val interface{}) float64 {
	if val == nil {
		return 0
	}
	return float64(utf8.RuneCountInString(fmt.Sprintf("%v", val))) * 1.2
}
