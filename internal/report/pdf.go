package report

import (
	"io"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/bighogz/form4-screener/internal/models"
	"github.com/go-pdf/fpdf"
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
)

type column struct {
	title string
	width float64
	align string
}

// A4 portrait with 10mm margins leaves 190mm for the table.
var columns = []column{
	{"Issuer", 52, "L"},
	{"Insider", 44, "L"},
	{"Date", 22, "C"},
	{"Value", 28, "R"},
	{"Filing", 44, "L"},
}

const (
	rowHeight = 7
	margin    = 10
)

// WritePDF renders the report to w. The document's creation and modification
// dates are pinned to date, so the same input always yields the same bytes.
func WritePDF(w io.Writer, details []models.FilingDetail, date time.Time, threshold decimal.Decimal) error {
	pdf := render(details, date, threshold)
	if err := pdf.Output(w); err != nil {
		return eris.Wrap(err, "report: write PDF")
	}
	return nil
}

func render(details []models.FilingDetail, date time.Time, threshold decimal.Decimal) *fpdf.Fpdf {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCreationDate(date)
	pdf.SetModificationDate(date)
	pdf.SetCatalogSort(true)
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(true, 15)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	title := Title(date, threshold)
	pdf.SetTitle(title, true)
	pdf.SetCreator("form4-screener", true)

	tableOpen := false
	pdf.SetHeaderFunc(func() {
		if tableOpen {
			tableHeader(pdf)
		}
	})
	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.SetTextColor(120, 120, 120)
		pdf.CellFormat(0, 5, "Page "+strconv.Itoa(pdf.PageNo())+"/{nb}", "", 0, "C", false, 0, "")
	})

	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 15)
	pdf.SetTextColor(0, 0, 0)
	pdf.CellFormat(0, 10, tr(title), "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, tr("Run date: "+date.Format(dateLayout)), "", 1, "C", false, 0, "")
	pdf.Ln(6)

	if len(details) == 0 {
		pdf.SetFont("Helvetica", "", 11)
		pdf.MultiCell(0, 6, tr(EmptyMessage(threshold)), "", "L", false)
		return pdf
	}

	tableHeader(pdf)
	tableOpen = true
	pdf.SetFont("Helvetica", "", 9)
	for i, d := range details {
		fill := i%2 == 1
		pdf.SetFillColor(245, 245, 245)
		pdf.SetTextColor(0, 0, 0)
		cells := []string{
			d.Issuer,
			d.Insider,
			filedOn(d, date).Format(dateLayout),
			FormatUSD(d.Value),
		}
		for j, c := range cells {
			col := columns[j]
			pdf.CellFormat(col.width, rowHeight, fit(pdf, tr(oneLine(c)), col.width), "1", 0, col.align, fill, 0, "")
		}
		link := columns[len(columns)-1]
		pdf.SetTextColor(0, 70, 200)
		pdf.CellFormat(link.width, rowHeight, fit(pdf, tr(linkLabel(d.URL)), link.width), "1", 1, link.align, fill, 0, d.URL)
	}
	return pdf
}

func tableHeader(pdf *fpdf.Fpdf) {
	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(211, 211, 211)
	pdf.SetTextColor(0, 0, 0)
	for _, c := range columns {
		pdf.CellFormat(c.width, rowHeight, c.title, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont("Helvetica", "", 9)
}

// fit shortens s with an ellipsis until it fits a cell of width w. s is
// already single-byte encoded, so byte slicing is safe.
func fit(pdf *fpdf.Fpdf, s string, w float64) string {
	limit := w - 2*pdf.GetCellMargin()
	if pdf.GetStringWidth(s) <= limit {
		return s
	}
	for len(s) > 0 && pdf.GetStringWidth(s+"...") > limit {
		s = s[:len(s)-1]
	}
	return s + "..."
}

// linkLabel shows the last path element of a filing URL.
func linkLabel(u string) string {
	u = strings.TrimRight(u, "/")
	if u == "" {
		return ""
	}
	return path.Base(u)
}
