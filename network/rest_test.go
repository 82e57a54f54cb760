package network

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(url string, retries int) *Client {
	return NewClient(Config{URL: url, Retries: retries},
		WithRetryDelay(time.Millisecond), WithLogger(zerolog.Nop()))
}

func TestClientDo(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/info/thing", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		_, _ = w.Write([]byte(`{"value": 100}`))
	}))
	defer server.Close()

	var out struct {
		Value int `json:"value"`
	}
	err := testClient(server.URL+"/", 0).do(context.Background(), http.MethodGet, "/info/thing", nil, &out)
	require.NoError(t, err)
	assert.Equal(t, 100, out.Value)
}

func TestClientHTTPErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
		detail string
	}{
		{"not found", http.StatusNotFound, `{"detail":"no such address"}`, ErrNotFound, "no such address"},
		{"bad request", http.StatusBadRequest, `{"error":"orphan"}`, ErrRequestRejected, "orphan"},
		{"server", http.StatusBadGateway, "upstream down", ErrServerError, "upstream down"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			err := testClient(server.URL, 0).do(context.Background(), http.MethodGet, "/x", nil, nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			var he *HTTPError
			require.ErrorAs(t, err, &he)
			assert.Equal(t, tt.status, he.StatusCode)
			assert.Equal(t, tt.detail, he.Body)
		})
	}
}

func TestClientConnectionError(t *testing.T) {
	err := testClient("http://localhost:1", 0).do(context.Background(), http.MethodGet, "/x", nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConnectionFailed)
}

func TestClientInvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{not json`))
	}))
	defer server.Close()

	var out map[string]any
	err := testClient(server.URL, 0).do(context.Background(), http.MethodGet, "/x", nil, &out)
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestClientContextCanceled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := testClient(server.URL, 3).doIdempotent(ctx, http.MethodGet, "/x", nil, nil)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrConnectionFailed)
}

func TestClientRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	err := testClient(server.URL, 2).doIdempotent(context.Background(), http.MethodGet, "/x", nil, &struct{}{})
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClientRetriesExhausted(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	err := testClient(server.URL, 2).doIdempotent(context.Background(), http.MethodGet, "/x", nil, nil)
	assert.ErrorIs(t, err, ErrServerError)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClientDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	err := testClient(server.URL, 5).doIdempotent(context.Background(), http.MethodGet, "/x", nil, nil)
	assert.ErrorIs(t, err, ErrRequestRejected)
	assert.Equal(t, int32(1), calls.Load())
}
