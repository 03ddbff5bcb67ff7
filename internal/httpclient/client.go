package httpclient

import (
	"compress/gzip"
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Shared HTTP client with timeout and connection reuse.
var Default = &http.Client{
	Timeout: 60 * time.Second,
	Transport: &http.Transport{
		MaxIdleConns:        50,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	},
}

var (
	ErrNotFound     = eris.New("httpclient: not found")
	ErrRateLimited  = eris.New("httpclient: rate limited")
	ErrAccessDenied = eris.New("httpclient: access denied")
	ErrClientStatus = eris.New("httpclient: client error status")
	ErrServerStatus = eris.New("httpclient: server error status")
)

// SEC performs identified, rate-limited GETs against EDGAR. One instance is
// shared by every stage of a run so the limiter covers all outbound traffic.
type SEC struct {
	client    *http.Client
	userAgent string
	limiter   *rate.Limiter
	timeout   time.Duration
	retries   uint64
	logger    *zap.Logger
}

type Option func(*SEC)

func WithHTTPClient(c *http.Client) Option {
	return func(s *SEC) { s.client = c }
}

// WithRate sets the sustained request rate; the burst equals the rate.
func WithRate(perSec float64) Option {
	return func(s *SEC) {
		s.limiter = rate.NewLimiter(rate.Limit(perSec), max(int(perSec), 1))
	}
}

func WithTimeout(d time.Duration) Option {
	return func(s *SEC) { s.timeout = d }
}

// WithRetries sets how many extra attempts a transient failure gets.
func WithRetries(n uint64) Option {
	return func(s *SEC) { s.retries = n }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *SEC) { s.logger = l }
}

func NewSEC(userAgent string, opts ...Option) *SEC {
	s := &SEC{
		client:    Default,
		userAgent: userAgent,
		limiter:   rate.NewLimiter(rate.Limit(8), 8),
		timeout:   20 * time.Second,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get downloads url and returns the decoded body. 403, 404, 429 and other 4xx
// responses are never retried.
func (s *SEC) Get(ctx context.Context, url string) ([]byte, error) {
	start := time.Now()
	var body []byte
	op := func() error {
		b, err := s.fetch(ctx, url)
		if err != nil {
			if permanent(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		body = b
		return nil
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), s.retries), ctx)
	err := backoff.RetryNotify(op, policy, func(err error, d time.Duration) {
		s.logger.Warn("retrying EDGAR request", zap.String("url", url), zap.Duration("after", d), zap.Error(err))
	})
	if err != nil {
		return nil, err
	}
	s.logger.Debug("downloaded", zap.String("url", url), zap.Int("bytes", len(body)), zap.Duration("took", time.Since(start)))
	return body, nil
}

func (s *SEC) fetch(ctx context.Context, url string) ([]byte, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "httpclient: rate limiter")
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, eris.Wrapf(err, "httpclient: build request for %s", url)
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept-Encoding", "gzip")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "httpclient: GET %s", url)
	}
	defer resp.Body.Close()

	switch code := resp.StatusCode; {
	case code == http.StatusNotFound:
		return nil, eris.Wrapf(ErrNotFound, "GET %s", url)
	case code == http.StatusTooManyRequests:
		return nil, eris.Wrapf(ErrRateLimited, "GET %s", url)
	case code == http.StatusForbidden:
		return nil, eris.Wrapf(ErrAccessDenied, "GET %s", url)
	case code >= 500:
		return nil, eris.Wrapf(ErrServerStatus, "GET %s returned %d", url, code)
	case code > 299:
		return nil, eris.Wrapf(ErrClientStatus, "GET %s returned %d", url, code)
	}

	var r io.Reader = resp.Body
	if strings.EqualFold(resp.Header.Get("Content-Encoding"), "gzip") {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, eris.Wrapf(err, "httpclient: gzip body of %s", url)
		}
		defer gz.Close()
		r = gz
	}
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, eris.Wrapf(err, "httpclient: read body of %s", url)
	}
	return body, nil
}

func permanent(err error) bool {
	return eris.Is(err, ErrNotFound) ||
		eris.Is(err, ErrRateLimited) ||
		eris.Is(err, ErrAccessDenied) ||
		eris.Is(err, ErrClientStatus)
}

// Denied reports whether EDGAR refused the request outright (403 or 429).
func Denied(err error) bool {
	return eris.Is(err, ErrAccessDenied) || eris.Is(err, ErrRateLimited)
}
