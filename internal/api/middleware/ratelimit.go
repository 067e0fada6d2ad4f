package middleware

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	burstCapacityMultiplier    = 2
	maxClients                 = 10000
	defaultGlobalRPS           = 200
	defaultClientRPS           = 20
	defaultAnonymousRPS        = 10
	rateLimiterCleanupInterval = 5 * time.Minute
	rateLimiterIdleTimeout     = 1 * time.Hour
)

type (
	// RateLimiter decides whether a request should be admitted.
	//
	// clientID is the resolved listener for authenticated traffic and empty
	// for anonymous traffic, which shares a single tighter bucket.
	RateLimiter interface {
		Allow(clientID string) bool
	}

	// InMemoryRateLimiter implements RateLimiter with token buckets from
	// golang.org/x/time/rate.
	//
	// Three tiers apply in order: a global bucket over all traffic, then a
	// per-client bucket for authenticated requests or the shared anonymous
	// bucket for the rest. Idle per-client buckets are reaped periodically
	// so the map cannot grow without bound.
	InMemoryRateLimiter struct {
		global        *rate.Limiter
		perClient     map[string]*clientLimiter
		anonymous     *rate.Limiter
		mu            sync.RWMutex
		cleanupTicker *time.Ticker
		done          chan struct{}

		clientRPS       int
		clientBurst     int
		cleanupInterval time.Duration
		idleTimeout     time.Duration
		maxClients      int
	}

	// clientLimiter tracks rate limit state for a single listener.
	clientLimiter struct {
		limiter    *rate.Limiter
		lastAccess time.Time
		mu         sync.Mutex
	}
)

// NewInMemoryRateLimiter creates a rate limiter with three-tier limits.
// Burst capacity defaults to 2x the sustained rate unless overridden.
func NewInMemoryRateLimiter(config *Config) *InMemoryRateLimiter {
	globalBurst := computeBurstCapacity(config.GlobalRPS, config.GlobalBurst)
	clientBurst := computeBurstCapacity(config.ClientRPS, config.ClientBurst)
	anonymousBurst := computeBurstCapacity(config.AnonymousRPS, config.AnonymousBurst)

	rl := &InMemoryRateLimiter{
		global:          rate.NewLimiter(rate.Limit(config.GlobalRPS), globalBurst),
		perClient:       make(map[string]*clientLimiter),
		anonymous:       rate.NewLimiter(rate.Limit(config.AnonymousRPS), anonymousBurst),
		done:            make(chan struct{}),
		clientRPS:       config.ClientRPS,
		clientBurst:     clientBurst,
		cleanupInterval: config.CleanupInterval,
		idleTimeout:     config.IdleTimeout,
		maxClients:      config.MaxClients,
	}

	rl.startCleanup()

	return rl
}

func computeBurstCapacity(rps, burstOverride int) int {
	if burstOverride > 0 {
		return burstOverride
	}

	return rps * burstCapacityMultiplier
}

// Allow implements RateLimiter.
func (rl *InMemoryRateLimiter) Allow(clientID string) bool {
	// Global bucket first, fail fast.
	if !rl.global.Allow() {
		return false
	}

	if clientID == "" {
		return rl.anonymous.Allow()
	}

	rl.mu.RLock()
	cl, ok := rl.perClient[clientID]
	rl.mu.RUnlock()

	if !ok {
		rl.mu.Lock()
		// Re-check under the write lock.
		if cl, ok = rl.perClient[clientID]; !ok {
			cl = &clientLimiter{
				limiter:    rate.NewLimiter(rate.Limit(rl.clientRPS), rl.clientBurst),
				lastAccess: time.Now(),
			}
			rl.perClient[clientID] = cl

			if count := len(rl.perClient); count >= rl.maxClients {
				slog.Warn("rate limiter at max tracked clients",
					"current_clients", count,
					"max_clients", rl.maxClients)
			}
		}
		rl.mu.Unlock()
	}

	cl.mu.Lock()
	cl.lastAccess = time.Now()
	cl.mu.Unlock()

	return cl.limiter.Allow()
}

// Close stops the cleanup goroutine. Close is not part of the RateLimiter
// interface; callers that own the limiter type-assert io.Closer-style.
func (rl *InMemoryRateLimiter) Close() {
	if rl.cleanupTicker != nil {
		rl.cleanupTicker.Stop()
	}

	close(rl.done)
}

func (rl *InMemoryRateLimiter) startCleanup() {
	interval := rl.cleanupInterval
	if interval == 0 {
		interval = rateLimiterCleanupInterval
	}

	rl.cleanupTicker = time.NewTicker(interval)

	go func() {
		for {
			select {
			case <-rl.cleanupTicker.C:
				rl.cleanup()
			case <-rl.done:
				return
			}
		}
	}()
}

// cleanup removes per-client buckets that have been idle past the timeout.
func (rl *InMemoryRateLimiter) cleanup() {
	idleTimeout := rl.idleTimeout
	if idleTimeout == 0 {
		idleTimeout = rateLimiterIdleTimeout
	}

	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	for clientID, cl := range rl.perClient {
		cl.mu.Lock()
		lastAccess := cl.lastAccess
		cl.mu.Unlock()

		if now.Sub(lastAccess) > idleTimeout {
			delete(rl.perClient, clientID)
		}
	}
}

// RateLimit returns a middleware that enforces rate limits on incoming
// requests. Authenticated listeners get per-client buckets keyed by the
// gateway-resolved user ID; everything else shares the anonymous bucket.
// Rejected requests receive a 429 in RFC 7807 format.
func RateLimit(limiter RateLimiter, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientID := ""
			if userID := ResolveUserID(r); userID != 0 {
				clientID = r.Header.Get(userIDHeader)
			}

			if !limiter.Allow(clientID) {
				detail := "Rate limit exceeded. Please retry after some time."
				if err := writeProblem(w, r, http.StatusTooManyRequests, "Too Many Requests", detail); err != nil {
					logger.Error("failed to write rate limit response",
						slog.String("correlation_id", GetCorrelationID(r.Context())),
						slog.String("path", r.URL.Path),
						slog.String("error", err.Error()),
					)

					http.Error(w, detail, http.StatusTooManyRequests)
				}

				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
