package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"acctgate/internal/platform/middleware"
)

func TestRateLimiterSlidingWindow(t *testing.T) {
	l := middleware.NewRateLimiter(2, time.Minute)
	now := time.Now()

	require.True(t, l.Allow("a", now))
	require.True(t, l.Allow("a", now.Add(time.Second)))
	require.False(t, l.Allow("a", now.Add(2*time.Second)))

	// Another client has its own window.
	require.True(t, l.Allow("b", now.Add(2*time.Second)))

	// The first request slides out of the window.
	require.True(t, l.Allow("a", now.Add(61*time.Second)))
}

func TestRateLimitMiddleware(t *testing.T) {
	l := middleware.NewRateLimiter(1, time.Minute)
	handler := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "10.0.0.1, 192.168.0.1")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// A different forwarded client is not throttled.
	other := httptest.NewRequest(http.MethodGet, "/", nil)
	other.Header.Set("X-Forwarded-For", "10.0.0.2")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, other)
	assert.Equal(t, http.StatusOK, rec.Code)
}
