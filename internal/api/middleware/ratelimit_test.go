package middleware

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLimiterConfig() *Config {
	return &Config{
		GlobalRPS:       100,
		ClientRPS:       2,
		AnonymousRPS:    1,
		CleanupInterval: time.Minute,
		IdleTimeout:     time.Hour,
		MaxClients:      100,
	}
}

func TestInMemoryRateLimiterTiers(t *testing.T) {
	rl := NewInMemoryRateLimiter(testLimiterConfig())
	defer rl.Close()

	// Anonymous bucket: burst of 2 (2x rate), then rejected.
	assert.True(t, rl.Allow(""))
	assert.True(t, rl.Allow(""))
	assert.False(t, rl.Allow(""), "anonymous burst exhausted")

	// A listener gets their own bucket, unaffected by the anonymous tier.
	assert.True(t, rl.Allow("7"))

	// Separate listeners do not share buckets.
	for i := 0; i < 4; i++ {
		rl.Allow("7")
	}
	assert.False(t, rl.Allow("7"), "client burst exhausted")
	assert.True(t, rl.Allow("8"))
}

func TestInMemoryRateLimiterGlobalTier(t *testing.T) {
	cfg := testLimiterConfig()
	cfg.GlobalRPS = 1
	cfg.GlobalBurst = 2

	rl := NewInMemoryRateLimiter(cfg)
	defer rl.Close()

	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"))
	// Global bucket drains even though each client bucket has capacity.
	assert.False(t, rl.Allow("c"))
}

func TestInMemoryRateLimiterCleanup(t *testing.T) {
	cfg := testLimiterConfig()
	cfg.IdleTimeout = time.Nanosecond

	rl := NewInMemoryRateLimiter(cfg)
	defer rl.Close()

	rl.Allow("stale")
	time.Sleep(time.Millisecond)
	rl.cleanup()

	rl.mu.RLock()
	defer rl.mu.RUnlock()
	assert.Empty(t, rl.perClient)
}

func TestRateLimitMiddleware(t *testing.T) {
	rl := NewInMemoryRateLimiter(testLimiterConfig())
	defer rl.Close()

	logger := slog.New(slog.DiscardHandler)
	handler := Apply(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}),
		WithCorrelationID(),
		WithRateLimit(rl, logger),
	)

	send := func(userID string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/search?q=x", nil)
		if userID != "" {
			req.Header.Set("X-User-ID", userID)
		}

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		return rec
	}

	// Anonymous traffic shares one bucket.
	assert.Equal(t, http.StatusOK, send("").Code)
	assert.Equal(t, http.StatusOK, send("").Code)

	rec := send("")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "Rate limit exceeded")
	assert.NotEmpty(t, rec.Header().Get("X-Correlation-ID"))

	// An authenticated listener is still admitted.
	assert.Equal(t, http.StatusOK, send("42").Code)
}

func TestRateLimitNilLimiterIsNoop(t *testing.T) {
	handler := Apply(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}),
		WithRateLimit(nil, slog.New(slog.DiscardHandler)),
	)

	for i := 0; i < 50; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}
