package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bighogz/form4-screener/internal/archive"
	"github.com/bighogz/form4-screener/internal/config"
	"github.com/bighogz/form4-screener/internal/logging"
	"github.com/bighogz/form4-screener/internal/publish"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"go.uber.org/zap"
)

func main() {
	os.Exit(realMain(os.Args[1:]))
}

func realMain(args []string) int {
	fs := flag.NewFlagSet("publish", flag.ContinueOnError)
	dateStr := fs.String("date", "", "Report date YYYY-MM-DD (default today, UTC)")
	publicDir := fs.String("public", "", "Output directory of the static site (default FORM4_PUBLIC_DIR or public)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		return 1
	}
	if *publicDir != "" {
		if cfg.ArchiveDB == config.Default().ArchiveDB {
			cfg.ArchiveDB = filepath.Join(*publicDir, "archive.db")
		}
		cfg.PublicDir = *publicDir
	}
	date := time.Now().UTC().Truncate(24 * time.Hour)
	if *dateStr != "" {
		if date, err = time.Parse("2006-01-02", *dateStr); err != nil {
			fmt.Fprintf(os.Stderr, "Invalid -date %q: %v\n", *dateStr, err)
			return 1
		}
	}

	runID, _ := gonanoid.New(10)
	logger, err := logging.New(cfg.Debug, runID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Could not build logger: %v\n", err)
		return 1
	}
	defer logger.Sync()

	store, err := archive.Open(cfg.ArchiveDB)
	if err != nil {
		logger.Error("could not open archive", zap.String("path", cfg.ArchiveDB), zap.Error(err))
		return 1
	}
	defer store.Close()

	p := publish.New(cfg.PublicDir, cfg.SummaryFile, cfg.PDFPath, store, logger)
	if _, err := p.Publish(context.Background(), date); err != nil {
		logger.Error("publish failed", zap.Error(err))
		return 1
	}
	return 0
}
