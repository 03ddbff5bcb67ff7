// Package screener runs one screening pass: list filings, parse each one in a
// bounded worker pool and keep the purchases at or above the threshold.
package screener

import (
	"context"
	"sync"
	"time"

	"github.com/bighogz/form4-screener/internal/models"
	"github.com/bighogz/form4-screener/internal/tracing"
	"github.com/davecgh/go-spew/spew"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type Lister interface {
	List(ctx context.Context) ([]models.FilingReference, error)
}

type DetailParser interface {
	Parse(ctx context.Context, ref models.FilingReference) (*models.FilingDetail, error)
}

// Stats counts what happened to the listed filings.
type Stats struct {
	Listed    int `json:"listed"`
	Failed    int `json:"failed"`
	Purchases int `json:"purchases"`
	Qualified int `json:"qualified"`
}

// Result is the report input: qualifying details in listing order.
type Result struct {
	Date      time.Time
	Threshold decimal.Decimal
	Details   []models.FilingDetail
	Stats     Stats
}

type Screener struct {
	lister    Lister
	parser    DetailParser
	threshold decimal.Decimal
	workers   int
	debug     bool
	logger    *zap.Logger
	tracer    trace.Tracer
}

type Option func(*Screener)

func WithWorkers(n int) Option {
	return func(s *Screener) { s.workers = max(n, 1) }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Screener) { s.logger = l }
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Screener) { s.tracer = t }
}

// WithDebug dumps every parsed detail to the debug log.
func WithDebug(on bool) Option {
	return func(s *Screener) { s.debug = on }
}

func New(l Lister, p DetailParser, threshold decimal.Decimal, opts ...Option) *Screener {
	s := &Screener{
		lister:    l,
		parser:    p,
		threshold: threshold,
		workers:   4,
		logger:    zap.NewNop(),
		tracer:    tracing.Noop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run screens the filings listed for date. Listing and parsing failures never
// fail the run; they leave fewer (possibly zero) results. Only a canceled
// context is returned as an error.
func (s *Screener) Run(ctx context.Context, date time.Time) (*Result, error) {
	res := &Result{Date: date, Threshold: s.threshold, Details: []models.FilingDetail{}}

	refs, err := s.lister.List(ctx)
	if err != nil {
		return nil, err
	}
	res.Stats.Listed = len(refs)

	details, failed := s.parseAll(ctx, refs)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res.Stats.Failed = failed
	res.Stats.Purchases = len(details)
	if s.debug && len(details) > 0 {
		s.logger.Debug("parsed filing details", zap.String("dump", spew.Sdump(details)))
	}

	_, span := s.tracer.Start(ctx, "screener.filter")
	res.Details = Filter(details, s.threshold)
	res.Stats.Qualified = len(res.Details)
	span.SetAttributes(
		attribute.String("threshold", s.threshold.String()),
		attribute.Int("in", len(details)),
		attribute.Int("out", len(res.Details)),
	)
	span.End()

	s.logger.Info("screening complete",
		zap.Int("listed", res.Stats.Listed),
		zap.Int("failed", res.Stats.Failed),
		zap.Int("purchases", res.Stats.Purchases),
		zap.Int("qualified", res.Stats.Qualified),
		zap.String("threshold", s.threshold.String()),
	)
	return res, nil
}

// parseAll fans refs out to the worker pool. Each worker writes only its own
// slot, so the output keeps listing order without further sorting.
func (s *Screener) parseAll(ctx context.Context, refs []models.FilingReference) ([]models.FilingDetail, int) {
	slots := make([]*models.FilingDetail, len(refs))
	jobs := make(chan int)

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		failed int
	)
	for w := 0; w < min(s.workers, max(len(refs), 1)); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				d, err := s.parser.Parse(ctx, refs[i])
				if err != nil {
					s.logger.Warn("skipping filing", zap.String("url", refs[i].URL), zap.Error(err))
					mu.Lock()
					failed++
					mu.Unlock()
					continue
				}
				slots[i] = d
			}
		}()
	}

feed:
	for i := range refs {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	out := make([]models.FilingDetail, 0, len(refs))
	for _, d := range slots {
		if d != nil {
			out = append(out, *d)
		}
	}
	return out, failed
}

// Filter keeps details whose value is at least threshold, in input order.
func Filter(details []models.FilingDetail, threshold decimal.Decimal) []models.FilingDetail {
	return lo.Filter(details, func(d models.FilingDetail, _ int) bool {
		return d.Value.GreaterThanOrEqual(threshold)
	})
}
