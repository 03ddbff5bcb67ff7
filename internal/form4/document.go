package form4

import (
	"bytes"
	"encoding/xml"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/net/html/charset"
)

// ownershipDocument is the subset of the EDGAR ownership XML schema the
// screener reads. Form 4 and 4/A share it.
type ownershipDocument struct {
	XMLName         xml.Name         `xml:"ownershipDocument"`
	DocumentType    string           `xml:"documentType"`
	PeriodOfReport  string           `xml:"periodOfReport"`
	Issuer          issuer           `xml:"issuer"`
	ReportingOwners []reportingOwner `xml:"reportingOwner"`
	NonDerivative   []xmlTransaction `xml:"nonDerivativeTable>nonDerivativeTransaction"`
	Derivative      []xmlTransaction `xml:"derivativeTable>derivativeTransaction"`
}

type issuer struct {
	CIK           string `xml:"issuerCik"`
	Name          string `xml:"issuerName"`
	TradingSymbol string `xml:"issuerTradingSymbol"`
}

type reportingOwner struct {
	CIK  string `xml:"reportingOwnerId>rptOwnerCik"`
	Name string `xml:"reportingOwnerId>rptOwnerName"`
}

type valueField struct {
	Value string `xml:"value"`
}

type xmlTransaction struct {
	SecurityTitle    string     `xml:"securityTitle>value"`
	Date             string     `xml:"transactionDate>value"`
	Code             string     `xml:"transactionCoding>transactionCode"`
	Shares           valueField `xml:"transactionAmounts>transactionShares"`
	PricePerShare    valueField `xml:"transactionAmounts>transactionPricePerShare"`
	TotalValue       valueField `xml:"transactionAmounts>transactionTotalValue"`
	Value            valueField `xml:"transactionAmounts>transactionValue"`
	AcquiredDisposed string     `xml:"transactionAmounts>transactionAcquiredDisposedCode>value"`
	Raw              string     `xml:",innerxml"`
}

func (t xmlTransaction) transaction() Transaction {
	total := t.TotalValue.Value
	if strings.TrimSpace(total) == "" {
		total = t.Value.Value
	}
	return Transaction{
		Code:   strings.TrimSpace(t.Code),
		Shares: t.Shares.Value,
		Price:  t.PricePerShare.Value,
		Total:  total,
		Raw:    t.Raw,
	}
}

// locateOwnershipXML returns the ownershipDocument element (with its XML
// declaration when one sits right before it) out of a full submission, a
// bare XML file, or nil when there is none.
func locateOwnershipXML(doc []byte) []byte {
	start := bytes.Index(doc, []byte("<ownershipDocument"))
	if start < 0 {
		return nil
	}
	end := bytes.LastIndex(doc, []byte("</ownershipDocument>"))
	if end < start {
		return nil
	}
	end += len("</ownershipDocument>")
	if decl := bytes.LastIndex(doc[:start], []byte("<?xml")); decl >= 0 && start-decl < 256 {
		start = decl
	}
	return doc[start:end]
}

func decodeOwnership(data []byte) (*ownershipDocument, error) {
	d := xml.NewDecoder(bytes.NewReader(data))
	d.CharsetReader = charset.NewReaderLabel
	d.Strict = false
	d.Entity = xml.HTMLEntity
	var od ownershipDocument
	if err := d.Decode(&od); err != nil {
		return nil, eris.Wrap(err, "form4: decode ownership XML")
	}
	return &od, nil
}

func (od *ownershipDocument) transactions() []Transaction {
	out := make([]Transaction, 0, len(od.NonDerivative)+len(od.Derivative))
	for _, t := range od.NonDerivative {
		out = append(out, t.transaction())
	}
	for _, t := range od.Derivative {
		out = append(out, t.transaction())
	}
	return out
}

func (od *ownershipDocument) insider() string {
	names := make([]string, 0, len(od.ReportingOwners))
	for _, o := range od.ReportingOwners {
		if n := strings.TrimSpace(o.Name); n != "" {
			names = append(names, n)
		}
	}
	return strings.Join(names, "; ")
}
