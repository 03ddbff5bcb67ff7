package form4

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/jaytaylor/html2text"
	"github.com/rotisserie/eris"
)

var (
	codeCellRe = regexp.MustCompile(`^[A-Za-z](?:\s*\(\s*\d+\s*\))?$`)
	dateCellRe = regexp.MustCompile(`^\d{1,4}[/-]\d{1,2}[/-]\d{1,4}$`)
)

// degradedTransactions recovers purchase rows from a filing that carries no
// ownership XML: rendered HTML tables first, plain text lines otherwise.
func degradedTransactions(doc []byte) ([]Transaction, error) {
	gq, err := goquery.NewDocumentFromReader(bytes.NewReader(doc))
	if err != nil {
		return nil, eris.Wrap(err, "form4: read degraded document")
	}
	txs := make([]Transaction, 0)
	gq.Find("tr").Each(func(i int, row *goquery.Selection) {
		cells := make([]string, 0)
		row.Find("td").Each(func(j int, td *goquery.Selection) {
			cells = append(cells, strings.TrimSpace(td.Text()))
		})
		if t, ok := rowTransaction(cells); ok {
			txs = append(txs, t)
		}
	})
	if len(txs) > 0 {
		return txs, nil
	}

	text, err := html2text.FromString(string(doc), html2text.Options{OmitLinks: true})
	if err != nil {
		return nil, eris.Wrap(err, "form4: convert degraded document to text")
	}
	for _, line := range strings.Split(text, "\n") {
		fields := strings.FieldsFunc(line, func(r rune) bool {
			return r == '|' || r == '\t' || r == ' '
		})
		if t, ok := rowTransaction(fields); ok {
			txs = append(txs, t)
		}
	}
	return txs, nil
}

// rowTransaction reads a table row laid out like Form 4 Table I: security,
// date, code, amount, (A)/(D), price. The code is the first one-letter cell
// after the transaction date; rows without a date are not transactions. Only
// rows coded P are returned; shares is the first plain number after the code
// and price the first dollar cell.
func rowTransaction(cells []string) (Transaction, bool) {
	cells = joinCurrency(cells)
	codeIdx := -1
	for i, c := range cells {
		if !dateCellRe.MatchString(c) {
			continue
		}
		for j := i + 1; j < len(cells); j++ {
			if codeCellRe.MatchString(cells[j]) {
				codeIdx = j
				break
			}
		}
		break
	}
	if codeIdx < 0 || !strings.EqualFold(cells[codeIdx][:1], PurchaseCode) {
		return Transaction{}, false
	}
	t := Transaction{Code: PurchaseCode, Raw: strings.Join(cells, " ")}
	for _, c := range cells[codeIdx+1:] {
		if strings.Contains(c, "$") {
			if t.Price == "" {
				t.Price = c
			}
			continue
		}
		if t.Shares == "" && !dateCellRe.MatchString(c) {
			if _, ok := parseAmount(c); ok {
				t.Shares = c
			}
		}
	}
	return t, true
}

// joinCurrency folds a lone "$" cell into the amount that follows it.
func joinCurrency(cells []string) []string {
	out := make([]string, 0, len(cells))
	for i := 0; i < len(cells); i++ {
		if cells[i] == "$" && i+1 < len(cells) {
			out = append(out, "$"+cells[i+1])
			i++
			continue
		}
		out = append(out, cells[i])
	}
	return out
}
