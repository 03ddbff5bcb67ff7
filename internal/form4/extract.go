package form4

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// PurchaseCode is the transaction code for an open-market or private purchase.
// Grants (A), sales (S), exercises (M, X) and the rest never count.
const PurchaseCode = "P"

// Strategy names the extraction step that produced a value. Higher is stronger.
type Strategy int

const (
	None Strategy = iota
	TextScan
	Computed
	Explicit
)

func (s Strategy) String() string {
	switch s {
	case Explicit:
		return "explicit"
	case Computed:
		return "computed"
	case TextScan:
		return "text-scan"
	default:
		return "none"
	}
}

// Transaction is one reported transaction, as loosely typed as the source
// document. Numeric fields stay text until an extractor needs them.
type Transaction struct {
	Code   string
	Shares string
	Price  string
	Total  string
	Raw    string
}

func (t Transaction) IsPurchase() bool {
	return strings.EqualFold(strings.TrimSpace(t.Code), PurchaseCode)
}

// Extraction is the tagged result of running the chain on one transaction.
type Extraction struct {
	Value    decimal.Decimal
	Strategy Strategy
}

type extractor struct {
	strategy Strategy
	extract  func(Transaction) (decimal.Decimal, bool)
}

// chain is tried in order; the first extractor that yields a number wins.
var chain = []extractor{
	{Explicit, explicitTotal},
	{Computed, sharesTimesPrice},
	{TextScan, scanDollars},
}

// Extract runs the chain. A transaction nothing can price yields zero / None.
func Extract(t Transaction) Extraction {
	for _, e := range chain {
		if v, ok := e.extract(t); ok {
			return Extraction{Value: v, Strategy: e.strategy}
		}
	}
	return Extraction{Value: decimal.Zero, Strategy: None}
}

// Aggregate sums the purchase transactions and reports the strongest strategy
// that contributed and how many purchases were seen.
func Aggregate(txs []Transaction) (total decimal.Decimal, best Strategy, purchases int) {
	total = decimal.Zero
	for _, t := range txs {
		if !t.IsPurchase() {
			continue
		}
		purchases++
		ex := Extract(t)
		total = total.Add(ex.Value)
		if ex.Strategy > best {
			best = ex.Strategy
		}
	}
	return total, best, purchases
}

func explicitTotal(t Transaction) (decimal.Decimal, bool) {
	return parseAmount(t.Total)
}

func sharesTimesPrice(t Transaction) (decimal.Decimal, bool) {
	shares, ok := parseAmount(t.Shares)
	if !ok {
		return decimal.Zero, false
	}
	price, ok := parseAmount(t.Price)
	if !ok {
		return decimal.Zero, false
	}
	return shares.Mul(price), true
}

var dollarRe = regexp.MustCompile(`\$\s*((?:\d{1,3}(?:,\d{3})+|\d+)(?:\.\d+)?)`)

// scanDollars takes the largest dollar amount in the raw text.
func scanDollars(t Transaction) (decimal.Decimal, bool) {
	var best decimal.Decimal
	found := false
	for _, m := range dollarRe.FindAllStringSubmatch(t.Raw, -1) {
		v, ok := parseAmount(m[1])
		if !ok {
			continue
		}
		if !found || v.GreaterThan(best) {
			best, found = v, true
		}
	}
	return best, found
}

var footnoteRe = regexp.MustCompile(`\(\s*\d+\s*\)`)

// parseAmount accepts "1,000", "$150.00", "$ 150.00", "150.00(2)" and
// similar. Negative, empty or non-numeric input is not an amount, and neither
// is "1,000 2,000".
func parseAmount(s string) (decimal.Decimal, bool) {
	s = footnoteRe.ReplaceAllString(s, "")
	s = strings.NewReplacer("$", "", ",", "").Replace(s)
	s = strings.TrimFunc(s, unicode.IsSpace)
	if s == "" || strings.ContainsFunc(s, unicode.IsSpace) {
		return decimal.Zero, false
	}
	v, err := decimal.NewFromString(s)
	if err != nil || v.IsNegative() {
		return decimal.Zero, false
	}
	return v, true
}
