package httpclient

import (
	"bytes"
	"compress/gzip"
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSEC_Get_SendsIdentificationAndDecodesGzip(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		var buf bytes.Buffer
		gz := gzip.NewWriter(&buf)
		gz.Write([]byte("master index"))
		gz.Close()
		w.Header().Set("Content-Encoding", "gzip")
		w.Write(buf.Bytes())
	}))
	defer srv.Close()

	c := NewSEC("Acme Research research@acme.test", WithRate(100))
	body, err := c.Get(context.Background(), srv.URL)

	require.NoError(t, err)
	assert.Equal(t, "master index", string(body))
	assert.Equal(t, "Acme Research research@acme.test", gotUA)
}

func TestSEC_Get_StatusTaxonomy(t *testing.T) {
	tests := []struct {
		name   string
		status int
		target error
		denied bool
	}{
		{"forbidden", http.StatusForbidden, ErrAccessDenied, true},
		{"rate limited", http.StatusTooManyRequests, ErrRateLimited, true},
		{"not found", http.StatusNotFound, ErrNotFound, false},
		{"gone", http.StatusGone, ErrClientStatus, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hits int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&hits, 1)
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			c := NewSEC("ua", WithRate(100), WithRetries(3))
			_, err := c.Get(context.Background(), srv.URL)

			require.Error(t, err)
			assert.True(t, eris.Is(err, tt.target))
			assert.Equal(t, tt.denied, Denied(err))
			assert.Equal(t, int32(1), atomic.LoadInt32(&hits), "permanent failures are not retried")
		})
	}
}

func TestSEC_Get_RetriesServerErrors(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := NewSEC("ua", WithRate(100), WithRetries(2))
	body, err := c.Get(context.Background(), srv.URL)

	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestSEC_Get_NoRetriesByDefault(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewSEC("ua", WithRate(100))
	_, err := c.Get(context.Background(), srv.URL)

	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrServerStatus))
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestSEC_Get_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c := NewSEC("ua", WithRate(100), WithTimeout(50*time.Millisecond))
	_, err := c.Get(context.Background(), srv.URL)
	assert.Error(t, err)
}
