package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/bighogz/form4-screener/internal/archive"
	"github.com/bighogz/form4-screener/internal/config"
	"github.com/bighogz/form4-screener/internal/logging"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"go.uber.org/zap"
)

type server struct {
	publicDir string
	reports   lister
	limiter   *clientLimiter
	logger    *zap.Logger
}

type lister interface {
	List(ctx context.Context) ([]archive.Entry, error)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}
	runID, _ := gonanoid.New(10)
	logger, err := logging.New(cfg.Debug, runID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Could not build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	store, err := archive.Open(cfg.ArchiveDB)
	if err != nil {
		logger.Fatal("could not open archive", zap.String("path", cfg.ArchiveDB), zap.Error(err))
	}
	defer store.Close()

	port := "8000"
	if p := os.Getenv("PORT"); p != "" {
		port = p
	}
	s := &server{
		publicDir: cfg.PublicDir,
		reports:   store,
		limiter:   newClientLimiter(time.Second),
		logger:    logger,
	}
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info("serving reports", zap.String("addr", srv.Addr), zap.String("public", cfg.PublicDir))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", withSiteHeaders(s.serveIndex))
	mux.HandleFunc("/history/", withSiteHeaders(s.serveStatic))
	mux.HandleFunc("/reports/", withSiteHeaders(s.serveStatic))
	mux.HandleFunc("/api/reports", withSiteHeaders(s.limit(s.handleReports)))
	mux.HandleFunc("/api/health", withSiteHeaders(handleHealth))
	return mux
}

func (s *server) serveIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/index.html" {
		http.NotFound(w, r)
		return
	}
	indexPath := filepath.Join(s.publicDir, "index.html")
	if _, err := os.Stat(indexPath); err == nil {
		http.ServeFile(w, r, indexPath)
		return
	}
	jsonResponse(w, map[string]string{"message": "No report published yet."})
}

func (s *server) serveStatic(w http.ResponseWriter, r *http.Request) {
	path, ok := sitePath(s.publicDir, r.URL.Path)
	if !ok {
		http.NotFound(w, r)
		return
	}
	if fi, err := os.Stat(path); err != nil || fi.IsDir() {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, path)
}

func (s *server) handleReports(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	entries, err := s.reports.List(r.Context())
	if err != nil {
		s.logger.Error("listing archive failed", zap.Error(err))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"error": "archive unavailable"})
		return
	}
	type report struct {
		Date    string `json:"date"`
		Results int    `json:"results"`
		Page    string `json:"page"`
		PDF     string `json:"pdf,omitempty"`
	}
	out := make([]report, 0, len(entries))
	for _, e := range entries {
		out = append(out, report{Date: e.Day(), Results: e.Results, Page: "/" + e.PagePath, PDF: prefixed(e.PDFPath)})
	}
	jsonResponse(w, map[string]interface{}{"reports": out})
}

func prefixed(p string) string {
	if p == "" {
		return ""
	}
	return "/" + p
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, map[string]string{"status": "ok"})
}

func jsonResponse(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
