package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// FilingReference points at one filing found by a listing source.
type FilingReference struct {
	Company string    `json:"company"`
	URL     string    `json:"url"`
	Filed   time.Time `json:"filed"`
	Form    string    `json:"form,omitempty"`
	CIK     string    `json:"cik,omitempty"`
}

// FilingDetail is what the parser extracted from a single Form 4.
type FilingDetail struct {
	Issuer       string          `json:"issuer"`
	Insider      string          `json:"insider"`
	Ticker       string          `json:"ticker,omitempty"`
	Value        decimal.Decimal `json:"value"`
	URL          string          `json:"url"`
	Filed        time.Time       `json:"filed"`
	Strategy     string          `json:"strategy"`
	Transactions int             `json:"transactions"`
}
