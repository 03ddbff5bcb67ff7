// Package report renders screening results as a PDF document and as a plain
// text summary meant for a notification email. Both are pure functions of
// their input.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/bighogz/form4-screener/internal/models"
	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// FormatUSD renders whole dollars with thousands separators: $150,000.
func FormatUSD(v decimal.Decimal) string {
	return "$" + humanize.BigComma(v.Round(0).BigInt())
}

// EmptyMessage is what both artifacts say when nothing qualified.
func EmptyMessage(threshold decimal.Decimal) string {
	return fmt.Sprintf("No insider purchases of %s or more detected today.", FormatUSD(threshold))
}

// Title heads the PDF and the summary.
func Title(date time.Time, threshold decimal.Decimal) string {
	return fmt.Sprintf("Form 4 insider purchases of %s or more, %s", FormatUSD(threshold), date.Format(dateLayout))
}

// Summary returns one line per detail,
//
//	- ISSUER | INSIDER | YYYY-MM-DD | $150,000 | URL
//
// under a title line, or the empty-state message.
func Summary(details []models.FilingDetail, date time.Time, threshold decimal.Decimal) string {
	if len(details) == 0 {
		return EmptyMessage(threshold) + "\n"
	}
	var b strings.Builder
	b.WriteString(Title(date, threshold))
	b.WriteString(":\n\n")
	for _, d := range details {
		b.WriteString(Line(d, date))
		b.WriteByte('\n')
	}
	return b.String()
}

// Line formats one detail. The filing date falls back to the run date.
func Line(d models.FilingDetail, date time.Time) string {
	return fmt.Sprintf("- %s | %s | %s | %s | %s",
		oneLine(d.Issuer), oneLine(d.Insider), filedOn(d, date).Format(dateLayout), FormatUSD(d.Value), d.URL)
}

func filedOn(d models.FilingDetail, date time.Time) time.Time {
	if d.Filed.IsZero() {
		return date
	}
	return d.Filed
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
