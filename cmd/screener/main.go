package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/bighogz/form4-screener/internal/config"
	"github.com/bighogz/form4-screener/internal/form4"
	"github.com/bighogz/form4-screener/internal/httpclient"
	"github.com/bighogz/form4-screener/internal/logging"
	"github.com/bighogz/form4-screener/internal/report"
	"github.com/bighogz/form4-screener/internal/screener"
	"github.com/bighogz/form4-screener/internal/sources"
	"github.com/bighogz/form4-screener/internal/tracing"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

func main() {
	os.Exit(realMain(os.Args[1:]))
}

func realMain(args []string) int {
	fs := flag.NewFlagSet("screener", flag.ContinueOnError)
	threshold := fs.String("threshold", "", "Minimum aggregate purchase value in USD (default FORM4_THRESHOLD or 100000)")
	dateStr := fs.String("date", "", "Run date YYYY-MM-DD (default today, UTC)")
	pdfPath := fs.String("pdf", "", "PDF output path; {date} is replaced by the run date")
	summaryPath := fs.String("summary", "", "Summary text output path")
	workers := fs.Int("workers", 0, "Concurrent filing downloads")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		return 1
	}
	date, err := applyFlags(&cfg, *threshold, *dateStr, *pdfPath, *summaryPath, *workers)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid arguments: %v\n", err)
		return 1
	}

	runID, err := gonanoid.New(10)
	if err != nil {
		runID = "unknown"
	}
	logger, err := logging.New(cfg.Debug, runID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Could not build logger: %v\n", err)
		return 1
	}
	defer logger.Sync()

	tracer, shutdown, err := tracing.Setup(cfg.Trace, os.Stderr)
	if err != nil {
		logger.Error("tracing setup failed", zap.Error(err))
		return 1
	}
	defer shutdown(context.Background())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, date, logger, tracer); err != nil {
		logger.Error("screener run failed", zap.Error(err))
		return 1
	}
	return 0
}

// applyFlags overrides cfg with whatever flags were given and returns the run date.
func applyFlags(cfg *config.Config, threshold, dateStr, pdfPath, summaryPath string, workers int) (time.Time, error) {
	date := time.Now().UTC().Truncate(24 * time.Hour)
	if dateStr != "" {
		d, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			return date, eris.Wrapf(err, "-date %q", dateStr)
		}
		date = d
	}
	if threshold != "" {
		t, err := decimal.NewFromString(threshold)
		if err != nil {
			return date, eris.Wrapf(err, "-threshold %q", threshold)
		}
		cfg.Threshold = t
	}
	if pdfPath != "" {
		cfg.PDFFile = pdfPath
	}
	if summaryPath != "" {
		cfg.SummaryFile = summaryPath
	}
	if workers != 0 {
		cfg.Workers = workers
	}
	return date, cfg.Validate()
}

// run executes one screening pass and writes both artifacts. Remote failures
// only shrink the result; errors come from configuration, cancellation or
// the local filesystem.
func run(ctx context.Context, cfg config.Config, date time.Time, logger *zap.Logger, tracer trace.Tracer) error {
	sec := httpclient.NewSEC(cfg.UserAgent,
		httpclient.WithRate(cfg.RatePerSec),
		httpclient.WithTimeout(cfg.Timeout),
		httpclient.WithRetries(cfg.Retries),
		httpclient.WithLogger(logger),
	)
	chain, err := sources.New(cfg.Sources, sec, sources.Options{
		Endpoints:    cfg.Endpoints,
		Limit:        cfg.ResultCount,
		LookbackDays: cfg.LookbackDays,
		AsOf:         date,
	}, logger, tracer)
	if err != nil {
		return err
	}
	parser := form4.NewParser(sec, form4.WithTracer(tracer), form4.WithLogger(logger))
	s := screener.New(chain, parser, cfg.Threshold,
		screener.WithWorkers(cfg.Workers),
		screener.WithLogger(logger),
		screener.WithTracer(tracer),
		screener.WithDebug(cfg.Debug),
	)

	logger.Info("screening Form 4 filings",
		zap.String("date", date.Format("2006-01-02")),
		zap.String("threshold", report.FormatUSD(cfg.Threshold)),
		zap.String("sources", chain.Name()),
	)
	res, err := s.Run(ctx, date)
	if err != nil {
		return eris.Wrap(err, "screener: run")
	}
	if len(res.Details) == 0 {
		logger.Info("no qualifying purchases, writing empty-state artifacts")
	}
	return writeArtifacts(ctx, cfg, res, logger, tracer)
}

func writeArtifacts(ctx context.Context, cfg config.Config, res *screener.Result, logger *zap.Logger, tracer trace.Tracer) error {
	_, span := tracer.Start(ctx, "report.write")
	defer span.End()

	pdfPath := cfg.PDFPath(res.Date)
	span.SetAttributes(attribute.String("pdf", pdfPath), attribute.String("summary", cfg.SummaryFile))
	if err := writeFile(pdfPath, func(f *os.File) error {
		return report.WritePDF(f, res.Details, res.Date, res.Threshold)
	}); err != nil {
		return err
	}
	summary := report.Summary(res.Details, res.Date, res.Threshold)
	if err := writeFile(cfg.SummaryFile, func(f *os.File) error {
		_, err := f.WriteString(summary)
		return err
	}); err != nil {
		return err
	}
	logger.Info("artifacts written",
		zap.String("pdf", pdfPath),
		zap.String("summary", cfg.SummaryFile),
		zap.Int("results", len(res.Details)),
	)
	return nil
}

func writeFile(path string, write func(*os.File) error) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return eris.Wrapf(err, "create %s", dir)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "create %s", path)
	}
	if err := write(f); err != nil {
		f.Close()
		return eris.Wrapf(err, "write %s", path)
	}
	if err := f.Close(); err != nil {
		return eris.Wrapf(err, "close %s", path)
	}
	return nil
}
