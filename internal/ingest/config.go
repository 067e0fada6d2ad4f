// Package ingest consumes listen events published by mobile and desktop
// clients on Kafka and forwards them to the analytics sink.
package ingest

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// Defaults for the consumer group. The topic carries play/skip/like events
// emitted by client applications; the group name pins offset tracking to the
// sink forwarder so multiple API replicas share one consumption cursor.
const (
	DefaultTopic   = "listen-events"
	DefaultGroupID = "jonquils-sink"

	defaultMinBytes = 1 << 10  // 1 KiB
	defaultMaxBytes = 1 << 20  // 1 MiB
	defaultMaxWait  = 2 * time.Second
)

// ErrBrokersEmpty indicates no Kafka broker addresses were configured.
var ErrBrokersEmpty = errors.New("kafka brokers cannot be empty")

// Config holds Kafka consumer settings.
type Config struct {
	Brokers []string
	Topic   string
	GroupID string

	MinBytes int
	MaxBytes int
	MaxWait  time.Duration
}

// LoadConfig reads consumer settings from the environment.
//
// Environment variables:
//   - KAFKA_BROKERS: comma-separated broker addresses (required)
//   - KAFKA_TOPIC: topic to consume (default: listen-events)
//   - KAFKA_GROUP_ID: consumer group (default: jonquils-sink)
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Topic:    getEnvOrDefault("KAFKA_TOPIC", DefaultTopic),
		GroupID:  getEnvOrDefault("KAFKA_GROUP_ID", DefaultGroupID),
		MinBytes: defaultMinBytes,
		MaxBytes: defaultMaxBytes,
		MaxWait:  defaultMaxWait,
	}

	for _, addr := range strings.Split(os.Getenv("KAFKA_BROKERS"), ",") {
		addr = strings.TrimSpace(addr)
		if addr != "" {
			cfg.Brokers = append(cfg.Brokers, addr)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid kafka configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that required fields are present.
func (c *Config) Validate() error {
	if len(c.Brokers) == 0 {
		return ErrBrokersEmpty
	}

	return nil
}

func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}
