package sink

import (
	"errors"
	"strings"
	"time"

	"github.com/jonquils-io/jonquils/internal/config"
)

const (
	defaultDatabase    = "jonquils_analytics"
	defaultDialTimeout = 5 * time.Second
	defaultMaxOpenConn = 10
	defaultMaxIdleConn = 5
)

// ErrNoSinkAddress is returned when the sink address list is empty.
var ErrNoSinkAddress = errors.New("analytics sink address cannot be empty")

// Config holds ClickHouse connection configuration for the event sink.
type Config struct {
	Addr         []string
	Database     string
	Username     string
	password     string
	DialTimeout  time.Duration
	MaxOpenConns int
	MaxIdleConns int
}

// LoadConfig loads sink configuration from environment variables with
// fallback to defaults.
func LoadConfig() *Config {
	return &Config{
		Addr:         config.GetEnvStrSlice("CLICKHOUSE_ADDR", []string{"localhost:9000"}),
		Database:     config.GetEnvStr("CLICKHOUSE_DATABASE", defaultDatabase),
		Username:     config.GetEnvStr("CLICKHOUSE_USER", "default"),
		password:     config.GetEnvStr("CLICKHOUSE_PASSWORD", ""), // private for obvious reasons
		DialTimeout:  config.GetEnvDuration("CLICKHOUSE_DIAL_TIMEOUT", defaultDialTimeout),
		MaxOpenConns: config.GetEnvInt("CLICKHOUSE_MAX_OPEN_CONNS", defaultMaxOpenConn),
		MaxIdleConns: config.GetEnvInt("CLICKHOUSE_MAX_IDLE_CONNS", defaultMaxIdleConn),
	}
}

// Validate checks if the sink configuration is valid.
func (c *Config) Validate() error {
	if len(c.Addr) == 0 {
		return ErrNoSinkAddress
	}

	for _, a := range c.Addr {
		if strings.TrimSpace(a) == "" {
			return ErrNoSinkAddress
		}
	}

	return nil
}
