// Package config defines service configuration structures and loading hooks.
package config

import (
	"fmt"
	"time"
)

// Backend names.
const (
	BackendSnapshot = "snapshot"
	BackendNATS     = "nats"
)

// Snapshot blob drivers.
const (
	DriverFile   = "file"
	DriverSQLite = "sqlite"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects text or json output.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// Backend selects the league store: snapshot or nats.
	Backend string `koanf:"backend"`

	// SnapshotDriver selects where the snapshot record lives: file or sqlite.
	SnapshotDriver string `koanf:"snapshot_driver"`

	// SnapshotPath is a directory for the file driver or a database file for sqlite.
	SnapshotPath string `koanf:"snapshot_path"`

	// SnapshotKey names the record holding the league.
	SnapshotKey string `koanf:"snapshot_key"`

	// NATSURL and NATSPrefix configure the remote backend buckets.
	NATSURL    string `koanf:"nats_url"`
	NATSPrefix string `koanf:"nats_prefix"`

	// WriteTimeout bounds remote writes.
	WriteTimeout time.Duration `koanf:"write_timeout"`

	// Timezone is the league's local zone, used for "today" and planned dates.
	Timezone string `koanf:"timezone"`

	// Admins maps admin names to their passwords.
	Admins map[string]string `koanf:"admins"`

	// CORSOrigins lists origins allowed to call the API from a browser.
	CORSOrigins []string `koanf:"cors_origins"`

	// AdminRateLimit and AdminRateBurst bound admin requests per client IP.
	AdminRateLimit float64 `koanf:"admin_rate_limit"`
	AdminRateBurst int     `koanf:"admin_rate_burst"`

	// IdempotencySize caps remembered Idempotency-Key values.
	IdempotencySize int `koanf:"idempotency_size"`

	// IdempotencyTTL is how long a key is remembered.
	IdempotencyTTL time.Duration `koanf:"idempotency_ttl"`

	// QueueSize bounds buffered backend notifications.
	QueueSize int `koanf:"queue_size"`

	// MetricsNamespace and MetricsSubsystem prefix every exported series.
	MetricsNamespace string `koanf:"metrics_namespace"`
	MetricsSubsystem string `koanf:"metrics_subsystem"`

	// MetricsBuckets overrides the latency histogram buckets, in seconds.
	MetricsBuckets []float64 `koanf:"metrics_buckets"`

	// MetricsLabels are constant labels added to every series.
	MetricsLabels map[string]string `koanf:"metrics_labels"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// DefaultAdmins is the admin table used when none is configured.
func DefaultAdmins() map[string]string {
	return map[string]string{
		"Bartek": "1998",
		"Oliwia": "2003",
	}
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:         "info",
		LogFormat:        "text",
		Addr:             ":9080",
		Backend:          BackendSnapshot,
		SnapshotDriver:   DriverFile,
		SnapshotPath:     "data",
		NATSURL:          "nats://127.0.0.1:4222",
		NATSPrefix:       "klapi",
		WriteTimeout:     5 * time.Second,
		Timezone:         "Europe/Warsaw",
		CORSOrigins:      []string{"*"},
		AdminRateLimit:   5,
		AdminRateBurst:   20,
		IdempotencySize:  4096,
		IdempotencyTTL:   24 * time.Hour,
		QueueSize:        1024,
		MetricsNamespace: "klapi",
		MetricsSubsystem: "league",
		ShutdownTimeout:  15 * time.Second,
	}
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: timezone %q: %v", ErrInvalidConfig, c.Timezone, err)
	}
	return loc, nil
}

// Validate checks the fields the process cannot start without.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.Backend != BackendSnapshot && c.Backend != BackendNATS:
		return fmt.Errorf("%w: unknown backend %q", ErrInvalidConfig, c.Backend)
	case c.Backend == BackendSnapshot && c.SnapshotDriver != DriverFile && c.SnapshotDriver != DriverSQLite:
		return fmt.Errorf("%w: unknown snapshot driver %q", ErrInvalidConfig, c.SnapshotDriver)
	case c.Backend == BackendSnapshot && c.SnapshotPath == "":
		return fmt.Errorf("%w: snapshot_path must not be empty", ErrInvalidConfig)
	case c.Backend == BackendNATS && c.NATSURL == "":
		return fmt.Errorf("%w: nats_url must not be empty", ErrInvalidConfig)
	case len(c.Admins) == 0:
		return fmt.Errorf("%w: at least one admin is required", ErrInvalidConfig)
	case c.QueueSize <= 0:
		return fmt.Errorf("%w: queue_size must be positive", ErrInvalidConfig)
	case c.MetricsNamespace == "":
		return fmt.Errorf("%w: metrics_namespace must not be empty", ErrInvalidConfig)
	}
	for i := 1; i < len(c.MetricsBuckets); i++ {
		if c.MetricsBuckets[i] <= c.MetricsBuckets[i-1] {
			return fmt.Errorf("%w: metrics_buckets must be strictly increasing", ErrInvalidConfig)
		}
	}
	_, err := c.Location()
	return err
}
