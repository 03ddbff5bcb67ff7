package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/bighogz/form4-screener/internal/archive"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeArchive struct {
	entries []archive.Entry
	err     error
}

func (f fakeArchive) List(ctx context.Context) ([]archive.Entry, error) {
	return f.entries, f.err
}

func newTestServer(t *testing.T, reports lister) (*server, string) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "history"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "reports"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>latest</h1>"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "history", "2026-10-16.html"), []byte("<h1>2026-10-16</h1>"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "reports", "form4_report_2026-10-16.pdf"), []byte("%PDF-1.3"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "archive.db"), []byte("sqlite"), 0644))
	return &server{publicDir: dir, reports: reports, limiter: newClientLimiter(time.Second), logger: zap.NewNop()}, dir
}

func get(h http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestServe_StaticPages(t *testing.T) {
	s, _ := newTestServer(t, fakeArchive{})
	h := s.routes()

	rec := get(h, "/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "latest")
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Contains(t, rec.Header().Get("Content-Security-Policy"), "default-src 'none'")

	rec = get(h, "/history/2026-10-16.html")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "2026-10-16")

	rec = get(h, "/reports/form4_report_2026-10-16.pdf")
	assert.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, http.StatusNotFound, get(h, "/archive.db").Code)
	assert.Equal(t, http.StatusNotFound, get(h, "/history/missing.html").Code)
	assert.Equal(t, http.StatusNotFound, get(h, "/reports/").Code)
}

func TestServe_NoIndexYet(t *testing.T) {
	s, dir := newTestServer(t, fakeArchive{})
	require.NoError(t, os.Remove(filepath.Join(dir, "index.html")))

	rec := get(s.routes(), "/")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "No report published yet.")
}

func TestServe_Health(t *testing.T) {
	s, _ := newTestServer(t, fakeArchive{})

	rec := get(s.routes(), "/api/health")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestServe_Reports(t *testing.T) {
	day := time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC)
	s, _ := newTestServer(t, fakeArchive{entries: []archive.Entry{
		{Date: day, Results: 2, PagePath: "history/2026-10-16.html", PDFPath: "reports/form4_report_2026-10-16.pdf"},
		{Date: day.AddDate(0, 0, -1), PagePath: "history/2026-10-15.html"},
	}})

	rec := get(s.routes(), "/api/reports")

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Reports []struct {
			Date    string `json:"date"`
			Results int    `json:"results"`
			Page    string `json:"page"`
			PDF     string `json:"pdf"`
		} `json:"reports"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Reports, 2)
	assert.Equal(t, "2026-10-16", body.Reports[0].Date)
	assert.Equal(t, "/reports/form4_report_2026-10-16.pdf", body.Reports[0].PDF)
	assert.Equal(t, "/history/2026-10-15.html", body.Reports[1].Page)
	assert.Empty(t, body.Reports[1].PDF)
}

func TestServe_ReportsErrorsAndLimits(t *testing.T) {
	s, _ := newTestServer(t, fakeArchive{err: eris.New("disk gone")})
	h := s.routes()

	assert.Equal(t, http.StatusInternalServerError, get(h, "/api/reports").Code)
	assert.Equal(t, http.StatusTooManyRequests, get(h, "/api/reports").Code)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/reports", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestClientLimiter_Allow(t *testing.T) {
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	l := newClientLimiter(time.Second)
	l.now = func() time.Time { return now }

	assert.True(t, l.allow("a"))
	assert.False(t, l.allow("a"))
	assert.True(t, l.allow("b"))
	now = now.Add(time.Second)
	assert.True(t, l.allow("a"))
}

func TestClientLimiter_ForgetsIdleClients(t *testing.T) {
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	l := newClientLimiter(time.Second)
	l.now = func() time.Time { return now }
	for i := 0; i < maxTrackedClients; i++ {
		l.allow(strconv.Itoa(i))
	}
	now = now.Add(2 * clientIdle)

	assert.True(t, l.allow("fresh"))
	assert.Len(t, l.seen, 1)
}

func TestRemoteClient(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/reports", nil)
	r.RemoteAddr = "10.0.0.1:5555"
	assert.Equal(t, "10.0.0.1:5555", remoteClient(r))

	r.Header.Set("X-Forwarded-For", " 203.0.113.9 , 10.0.0.1")
	assert.Equal(t, "203.0.113.9", remoteClient(r))
}

func TestSitePath(t *testing.T) {
	p, ok := sitePath("public", "/history/x.html")
	assert.True(t, ok)
	assert.Equal(t, filepath.Join("public", "history", "x.html"), p)

	for _, bad := range []string{"/", "/../etc/passwd", "/history/../../etc/passwd", "//etc/passwd"} {
		_, ok := sitePath("public", bad)
		assert.False(t, ok, bad)
	}
}
