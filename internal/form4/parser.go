// Package form4 fetches Form 4 filings and extracts the aggregate value of
// the purchase transactions they report.
package form4

import (
	"context"
	"strings"

	"github.com/bighogz/form4-screener/internal/models"
	"github.com/bighogz/form4-screener/internal/tracing"
	"github.com/rotisserie/eris"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const unknownInsider = "Unknown"

// Fetcher downloads one document. *httpclient.SEC satisfies it.
type Fetcher interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

type Parser struct {
	fetcher Fetcher
	tracer  trace.Tracer
	logger  *zap.Logger
}

type Option func(*Parser)

func WithTracer(t trace.Tracer) Option {
	return func(p *Parser) { p.tracer = t }
}

func WithLogger(l *zap.Logger) Option {
	return func(p *Parser) { p.logger = l }
}

func NewParser(f Fetcher, opts ...Option) *Parser {
	p := &Parser{fetcher: f, tracer: tracing.Noop(), logger: zap.NewNop()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse fetches the filing behind ref and extracts its purchase total. It
// returns nil, nil when the filing reports no purchase transaction.
func (p *Parser) Parse(ctx context.Context, ref models.FilingReference) (*models.FilingDetail, error) {
	ctx, span := p.tracer.Start(ctx, "form4.parse", trace.WithAttributes(attribute.String("url", ref.URL)))
	defer span.End()

	url := DocumentURL(ref.URL)
	doc, err := p.fetcher.Get(ctx, url)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		return nil, eris.Wrapf(err, "form4: fetch %s", url)
	}
	detail, err := ParseDocument(doc, ref)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "parse failed")
		return nil, err
	}
	if detail != nil {
		span.SetAttributes(
			attribute.String("strategy", detail.Strategy),
			attribute.String("value", detail.Value.String()),
		)
	}
	return detail, nil
}

// ParseDocument extracts a FilingDetail from an already downloaded document:
// ownership XML when present, otherwise the degraded HTML/text scan.
func ParseDocument(doc []byte, ref models.FilingReference) (*models.FilingDetail, error) {
	detail := &models.FilingDetail{
		Issuer:  strings.TrimSpace(ref.Company),
		Insider: unknownInsider,
		URL:     ref.URL,
		Filed:   ref.Filed,
	}

	var txs []Transaction
	if raw := locateOwnershipXML(doc); raw != nil {
		od, err := decodeOwnership(raw)
		if err != nil {
			return nil, err
		}
		if n := strings.TrimSpace(od.Issuer.Name); n != "" {
			detail.Issuer = n
		}
		if n := od.insider(); n != "" {
			detail.Insider = n
		}
		detail.Ticker = strings.TrimSpace(od.Issuer.TradingSymbol)
		txs = od.transactions()
	} else {
		var err error
		txs, err = degradedTransactions(doc)
		if err != nil {
			return nil, err
		}
	}

	total, best, purchases := Aggregate(txs)
	if purchases == 0 {
		return nil, nil
	}
	detail.Value = total
	detail.Strategy = best.String()
	detail.Transactions = purchases
	return detail, nil
}

// DocumentURL maps a filing index page to the full submission text file,
// which embeds the ownership XML. Other URLs are returned unchanged.
func DocumentURL(u string) string {
	for _, suffix := range []string{"-index.htm", "-index.html"} {
		if strings.HasSuffix(u, suffix) {
			return strings.TrimSuffix(u, suffix) + ".txt"
		}
	}
	return u
}
