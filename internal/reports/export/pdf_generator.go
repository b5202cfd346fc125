package export

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/jung-kurt/gofpdf"
)

const pdfFontFamily = "register"

// PDFGenerator renders a table as a landscape PDF
type PDFGenerator struct {
	pdf     *gofpdf.Fpdf
	options PDFOptions
	family  string
}

// PDFOptions configures PDF generation
type PDFOptions struct {
	PageSize       string     `json:"page_size"`
	Title          string     `json:"title"`
	DateFormat     string     `json:"date_format"`
	HeaderColor    PDFColor   `json:"header_color"`
	AlternateColor PDFColor   `json:"alternate_color"`
	FontSize       float64    `json:"font_size"`
	TitleFontSize  float64    `json:"title_font_size"`
	Margins        PDFMargins `json:"margins"`
	// FontPath points at a TrueType font. The built-in Arial only covers
	// Latin-1, so Thai names need one.
	FontPath string `json:"font_path,omitempty"`
}

// PDFColor represents an RGB color
type PDFColor struct {
	R int `json:"r"`
	G int `json:"g"`
	B int `json:"b"`
}

// PDFMargins represents page margins
type PDFMargins struct {
	Left   float64 `json:"left"`
	Right  float64 `json:"right"`
	Top    float64 `json:"top"`
	Bottom float64 `json:"bottom"`
}

// DefaultPDFOptions returns default PDF options
func DefaultPDFOptions() PDFOptions {
	return PDFOptions{
		PageSize:       "A4",
		Title:          "Project register",
		DateFormat:     "2006-01-02",
		HeaderColor:    PDFColor{R: 68, G: 114, B: 196},
		AlternateColor: PDFColor{R: 242, G: 242, B: 242},
		FontSize:       9,
		TitleFontSize:  16,
		Margins:        PDFMargins{Left: 10, Right: 10, Top: 15, Bottom: 15},
	}
}

// NewPDFGenerator creates a new PDF generator
func NewPDFGenerator(options PDFOptions) (*PDFGenerator, error) {
	pdf := gofpdf.New("L", "mm", options.PageSize, "")
	pdf.SetMargins(options.Margins.Left, options.Margins.Top, options.Margins.Right)
	pdf.SetAutoPageBreak(false, options.Margins.Bottom)

	family := "Arial"
	if options.FontPath != "" {
		pdf.AddUTF8Font(pdfFontFamily, "", options.FontPath)
		pdf.AddUTF8Font(pdfFontFamily, "B", options.FontPath)
		if err := pdf.Error(); err != nil {
			return nil, fmt.Errorf("failed to load font %s: %w", options.FontPath, err)
		}
		family = pdfFontFamily
	}

	g := &PDFGenerator{pdf: pdf, options: options, family: family}
	g.setFooter()
	return g, nil
}

// GenerateReport lays out the title, a summary line and the table
func (g *PDFGenerator) GenerateReport(columns, labels []string, rows []map[string]interface{}, summary string) error {
	g.pdf.AddPage()

	g.pdf.SetFont(g.family, "B", g.options.TitleFontSize)
	g.pdf.SetTextColor(0, 0, 0)
	g.pdf.CellFormat(0, 10, g.options.Title, "", 1, "C", false, 0, "")

	g.pdf.SetFont(g.family, "", g.options.FontSize)
	g.pdf.SetTextColor(128, 128, 128)
	generated := fmt.Sprintf("Generated: %s", time.Now().Format(g.options.DateFormat))
	g.pdf.CellFormat(0, 6, generated, "", 1, "R", false, 0, "")
	if summary != "" {
		g.pdf.CellFormat(0, 6, summary, "", 1, "L", false, 0, "")
	}
	g.pdf.Ln(4)

	widths := g.calculateColumnWidths(columns, labels, rows)
	g.addTableHeader(labels, widths)
	g.addTableData(columns, labels, rows, widths)

	return g.pdf.Error()
}

// calculateColumnWidths sizes columns by content, scaled to the page
func (g *PDFGenerator) calculateColumnWidths(columns, labels []string, rows []map[string]interface{}) []float64 {
	pageWidth, _ := g.pdf.GetPageSize()
	availableWidth := pageWidth - g.options.Margins.Left - g.options.Margins.Right

	widths := make([]float64, len(columns))

	g.pdf.SetFont(g.family, "B", g.options.FontSize)
	for i, label := range labels {
		widths[i] = g.pdf.GetStringWidth(label) + 4
	}

	g.pdf.SetFont(g.family, "", g.options.FontSize)
	sample := rows
	if len(sample) > 100 {
		sample = sample[:100]
	}
	for _, row := range sample {
		for i, col := range columns {
			if w := g.pdf.GetStringWidth(g.formatValue(row[col])) + 4; w > widths[i] {
				widths[i] = w
			}
		}
	}

	total := 0.0
	for _, w := range widths {
		total += w
	}
	if total > availableWidth {
		scale := availableWidth / total
		for i := range widths {
			widths[i] *= scale
		}
	}
	return widths
}

func (g *PDFGenerator) addTableHeader(labels []string, widths []float64) {
	g.pdf.SetFont(g.family, "B", g.options.FontSize)
	g.pdf.SetFillColor(g.options.HeaderColor.R, g.options.HeaderColor.G, g.options.HeaderColor.B)
	g.pdf.SetTextColor(255, 255, 255)

	for i, label := range labels {
		g.pdf.CellFormat(widths[i], 8, g.fit(label, widths[i]), "1", 0, "C", true, 0, "")
	}
	g.pdf.Ln(-1)
}

func (g *PDFGenerator) addTableData(columns, labels []string, rows []map[string]interface{}, widths []float64) {
	_, pageHeight := g.pdf.GetPageSize()

	g.pdf.SetFont(g.family, "", g.options.FontSize)
	g.pdf.SetTextColor(0, 0, 0)

	for i, row := range rows {
		if g.pdf.GetY()+7 > pageHeight-g.options.Margins.Bottom {
			g.pdf.AddPage()
			g.addTableHeader(labels, widths)
			g.pdf.SetFont(g.family, "", g.options.FontSize)
			g.pdf.SetTextColor(0, 0, 0)
		}

		if i%2 == 1 {
			g.pdf.SetFillColor(g.options.AlternateColor.R, g.options.AlternateColor.G, g.options.AlternateColor.B)
		} else {
			g.pdf.SetFillColor(255, 255, 255)
		}

		for j, col := range columns {
			val := g.fit(g.formatValue(row[col]), widths[j])
			g.pdf.CellFormat(widths[j], 7, val, "1", 0, "L", true, 0, "")
		}
		g.pdf.Ln(-1)
	}
}

// fit shortens s rune by rune until it fits the cell
func (g *PDFGenerator) fit(s string, width float64) string {
	if g.pdf.GetStringWidth(s)+2 <= width {
		return s
	}
	runes := []rune(s)
	for len(runes) > 0 {
		runes = runes[:len(runes)-1]
		candidate := string(runes) + "..."
		if g.pdf.GetStringWidth(candidate)+2 <= width {
			return candidate
		}
	}
	return ""
}

func (g *PDFGenerator) formatValue(val interface{}) string {
	switch v := val.(type) {
	case nil:
		return ""
	case string:
		return v
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', 2, 64)
	case bool:
		return yesNo(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func (g *PDFGenerator) setFooter() {
	g.pdf.SetFooterFunc(func() {
		g.pdf.SetY(-10)
		g.pdf.SetFont(g.family, "", 8)
		g.pdf.SetTextColor(128, 128, 128)
		g.pdf.CellFormat(0, 6, fmt.Sprintf("Page %d", g.pdf.PageNo()), "", 0, "C", false, 0, "")
	})
}

// WriteTo writes the PDF to a writer
func (g *PDFGenerator) WriteTo(w io.Writer) error {
	return g.pdf.Output(w)
}
