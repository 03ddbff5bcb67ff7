// Package sources lists recently filed Form 4 references from EDGAR. Several
// listing strategies are tried in a fixed order; the first one that returns
// anything wins.
package sources

import (
	"context"
	"strings"
	"time"

	"github.com/bighogz/form4-screener/internal/config"
	"github.com/bighogz/form4-screener/internal/httpclient"
	"github.com/bighogz/form4-screener/internal/models"
	"github.com/bighogz/form4-screener/internal/tracing"
	"github.com/rotisserie/eris"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const formType = "4"

// Fetcher downloads one document. *httpclient.SEC satisfies it.
type Fetcher interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

type Source interface {
	Name() string
	List(ctx context.Context) ([]models.FilingReference, error)
}

// Options are shared by every strategy.
type Options struct {
	Endpoints    config.Endpoints
	Limit        int
	LookbackDays int
	// AsOf anchors date windows; zero means now.
	AsOf time.Time
}

func (o Options) asOf() time.Time {
	if o.AsOf.IsZero() {
		return time.Now().UTC()
	}
	return o.AsOf
}

// New builds the chain named by names, in order. Unknown names are an error.
func New(names []string, f Fetcher, opts Options, logger *zap.Logger, tracer trace.Tracer) (*Chain, error) {
	strategies := make([]Source, 0, len(names))
	for _, n := range names {
		switch strings.ToLower(strings.TrimSpace(n)) {
		case "search":
			strategies = append(strategies, NewSearchAPI(f, opts))
		case "atom":
			strategies = append(strategies, NewAtomFeed(f, opts))
		case "html":
			strategies = append(strategies, NewLegacyHTML(f, opts))
		case "index":
			strategies = append(strategies, NewDailyIndex(f, opts))
		default:
			return nil, eris.Errorf("sources: unknown strategy %q", n)
		}
	}
	return NewChain(logger, tracer, strategies...), nil
}

// Chain is itself a Source: it returns the first non-empty strategy result.
type Chain struct {
	strategies []Source
	logger     *zap.Logger
	tracer     trace.Tracer
}

func NewChain(logger *zap.Logger, tracer trace.Tracer, strategies ...Source) *Chain {
	if logger == nil {
		logger = zap.NewNop()
	}
	if tracer == nil {
		tracer = tracing.Noop()
	}
	return &Chain{strategies: strategies, logger: logger, tracer: tracer}
}

func (c *Chain) Name() string {
	return strings.Join(lo.Map(c.strategies, func(s Source, _ int) string { return s.Name() }), ",")
}

// List never fails because a strategy failed: errors are logged and the next
// strategy is tried. With every strategy exhausted the result is empty.
func (c *Chain) List(ctx context.Context) ([]models.FilingReference, error) {
	ctx, span := c.tracer.Start(ctx, "sources.list")
	defer span.End()

	for _, s := range c.strategies {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "sources: list")
		}
		refs, err := s.List(ctx)
		if err != nil {
			fields := []zap.Field{zap.String("source", s.Name()), zap.Error(err)}
			if httpclient.Denied(err) {
				c.logger.Warn("EDGAR refused listing request", fields...)
			} else {
				c.logger.Warn("listing source failed", fields...)
			}
			continue
		}
		if len(refs) == 0 {
			c.logger.Info("listing source returned nothing", zap.String("source", s.Name()))
			continue
		}
		c.logger.Info("listed filings", zap.String("source", s.Name()), zap.Int("count", len(refs)))
		span.SetAttributes(attribute.String("source", s.Name()), attribute.Int("count", len(refs)))
		return refs, nil
	}
	c.logger.Warn("no listing source returned filings")
	return []models.FilingReference{}, nil
}

// normalize drops references without a URL and duplicate URLs (first one
// wins), then caps the list at limit when limit > 0.
func normalize(refs []models.FilingReference, limit int) []models.FilingReference {
	refs = lo.Filter(refs, func(r models.FilingReference, _ int) bool { return r.URL != "" })
	refs = lo.UniqBy(refs, func(r models.FilingReference) string { return r.URL })
	if limit > 0 && len(refs) > limit {
		refs = refs[:limit]
	}
	return refs
}

// parseFiled accepts the date layouts EDGAR listings use. Anything after the
// date (a time of day, a zone) is ignored.
func parseFiled(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"2006-01-02", "20060102"} {
		if len(s) < len(layout) {
			continue
		}
		if t, err := time.Parse(layout, s[:len(layout)]); err == nil {
			return t
		}
	}
	return time.Time{}
}

// stripCIK removes a trailing "(CIK 0000320193)" or "(0000320193)" group.
func stripCIK(name string) string {
	name = strings.TrimSpace(name)
	if i := strings.LastIndex(name, "("); i > 0 && strings.HasSuffix(name, ")") {
		inner := strings.TrimPrefix(name[i+1:len(name)-1], "CIK ")
		if inner != "" && strings.Trim(inner, "0123456789") == "" {
			return strings.TrimSpace(name[:i])
		}
	}
	return name
}

func accessionPath(adsh string) string {
	return strings.ReplaceAll(strings.TrimSpace(adsh), "-", "")
}
