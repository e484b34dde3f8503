/*
Copyright (C) 2026 Soundbench Authors

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Database backend selection.
type DatabaseBackend string

const (
	DatabasePostgres DatabaseBackend = "postgres"
	DatabaseMySQL    DatabaseBackend = "mysql"
	DatabaseSQLite   DatabaseBackend = "sqlite"
)

// Config covers process level configuration read from environment variables.
type Config struct {
	Environment string
	HTTPBind    string
	HTTPPort    int
	DBBackend   DatabaseBackend
	DBDSN       string
	MediaRoot   string
	PlanPath    string
	MetricsBind string

	// Render configuration
	SampleRate int

	// Engine timing (milliseconds)
	LookaheadMs int
	CrossfadeMs int
	DuckMs      int
	SeekFadeMs  int
	StopFadeMs  int

	// Preference persistence
	VolumeDebounceMs int

	// Tracing configuration
	TracingEnabled    bool
	OTLPEndpoint      string
	TracingSampleRate float64
}

// Load reads environment variables, applies defaults, and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		Environment: getEnv("SNDB_ENV", "development"),
		HTTPBind:    getEnv("SNDB_HTTP_BIND", "127.0.0.1"),
		HTTPPort:    getEnvInt("SNDB_HTTP_PORT", 8080),
		DBBackend:   DatabaseBackend(getEnv("SNDB_DB_BACKEND", string(DatabaseSQLite))),
		DBDSN:       getEnv("SNDB_DB_DSN", "soundbench.db"),
		MediaRoot:   getEnv("SNDB_MEDIA_ROOT", "./media"),
		PlanPath:    getEnv("SNDB_PLAN_PATH", "./plans"),
		MetricsBind: getEnv("SNDB_METRICS_BIND", "127.0.0.1:9000"),

		SampleRate: getEnvInt("SNDB_SAMPLE_RATE", 48000),

		LookaheadMs: getEnvInt("SNDB_LOOKAHEAD_MS", 5),
		CrossfadeMs: getEnvInt("SNDB_CROSSFADE_MS", 35),
		DuckMs:      getEnvInt("SNDB_DUCK_MS", 40),
		SeekFadeMs:  getEnvInt("SNDB_SEEK_FADE_MS", 25),
		StopFadeMs:  getEnvInt("SNDB_STOP_FADE_MS", 15),

		VolumeDebounceMs: getEnvInt("SNDB_VOLUME_DEBOUNCE_MS", 500),

		TracingEnabled:    getEnvBool("SNDB_TRACING_ENABLED", false),
		OTLPEndpoint:      getEnv("SNDB_OTLP_ENDPOINT", "localhost:4317"),
		TracingSampleRate: getEnvFloat("SNDB_TRACING_SAMPLE_RATE", 1.0),
	}

	if cfg.DBBackend != DatabasePostgres && cfg.DBBackend != DatabaseMySQL && cfg.DBBackend != DatabaseSQLite {
		return nil, fmt.Errorf("unsupported database backend %q", cfg.DBBackend)
	}

	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("SNDB_DB_DSN must be provided")
	}

	if cfg.SampleRate < 8000 || cfg.SampleRate > 192000 {
		return nil, fmt.Errorf("sample rate %d out of range", cfg.SampleRate)
	}

	for name, ms := range map[string]int{
		"SNDB_LOOKAHEAD_MS": cfg.LookaheadMs,
		"SNDB_CROSSFADE_MS": cfg.CrossfadeMs,
		"SNDB_DUCK_MS":      cfg.DuckMs,
		"SNDB_SEEK_FADE_MS": cfg.SeekFadeMs,
		"SNDB_STOP_FADE_MS": cfg.StopFadeMs,
	} {
		if ms <= 0 {
			return nil, fmt.Errorf("%s must be positive", name)
		}
	}

	return cfg, nil
}

// VolumeDebounce returns the volume write debounce interval.
func (c *Config) VolumeDebounce() time.Duration {
	return time.Duration(c.VolumeDebounceMs) * time.Millisecond
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if val := os.Getenv(key); val != "" {
		val = strings.ToLower(strings.TrimSpace(val))
		if val == "true" || val == "1" || val == "yes" {
			return true
		}
		if val == "false" || val == "0" || val == "no" {
			return false
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			return parsed
		}
	}
	return def
}
