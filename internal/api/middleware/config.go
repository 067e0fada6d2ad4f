package middleware

import (
	"time"

	"github.com/jonquils-io/jonquils/internal/config"
)

// Config holds rate limiter configuration.
//
// Rates are requests per second across three tiers: global (all traffic),
// per-client (authenticated listeners) and anonymous (everything else).
// Burst fields of 0 are computed as 2x the sustained rate.
type Config struct {
	GlobalRPS    int
	ClientRPS    int
	AnonymousRPS int

	GlobalBurst    int
	ClientBurst    int
	AnonymousBurst int

	CleanupInterval time.Duration
	IdleTimeout     time.Duration
	MaxClients      int
}

// LoadConfig loads rate limiter settings from the environment with defaults.
func LoadConfig() *Config {
	return &Config{
		GlobalRPS:    config.GetEnvInt("JONQUILS_GLOBAL_RPS", defaultGlobalRPS),
		ClientRPS:    config.GetEnvInt("JONQUILS_CLIENT_RPS", defaultClientRPS),
		AnonymousRPS: config.GetEnvInt("JONQUILS_ANONYMOUS_RPS", defaultAnonymousRPS),

		GlobalBurst:    config.GetEnvInt("JONQUILS_GLOBAL_BURST", 0),
		ClientBurst:    config.GetEnvInt("JONQUILS_CLIENT_BURST", 0),
		AnonymousBurst: config.GetEnvInt("JONQUILS_ANONYMOUS_BURST", 0),

		CleanupInterval: config.GetEnvDuration(
			"JONQUILS_RATE_LIMIT_CLEANUP_INTERVAL", rateLimiterCleanupInterval,
		),
		IdleTimeout: config.GetEnvDuration("JONQUILS_RATE_LIMIT_IDLE_TIMEOUT", rateLimiterIdleTimeout),
		MaxClients:  config.GetEnvInt("JONQUILS_RATE_LIMIT_MAX_CLIENTS", maxClients),
	}
}
