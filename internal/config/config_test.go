package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DBBackend != DatabaseSQLite {
		t.Fatalf("default backend %q, want sqlite", cfg.DBBackend)
	}
	if cfg.SampleRate != 48000 {
		t.Fatalf("default sample rate %d, want 48000", cfg.SampleRate)
	}
	if cfg.CrossfadeMs != 35 || cfg.DuckMs != 40 {
		t.Fatalf("default fades %d/%d, want 35/40", cfg.CrossfadeMs, cfg.DuckMs)
	}
	if got := cfg.VolumeDebounce(); got != 500*time.Millisecond {
		t.Fatalf("default debounce %v, want 500ms", got)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SNDB_DB_BACKEND", "postgres")
	t.Setenv("SNDB_DB_DSN", "host=localhost dbname=soundbench")
	t.Setenv("SNDB_SAMPLE_RATE", "44100")
	t.Setenv("SNDB_CROSSFADE_MS", "50")
	t.Setenv("SNDB_TRACING_ENABLED", "yes")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DBBackend != DatabasePostgres {
		t.Fatalf("backend %q, want postgres", cfg.DBBackend)
	}
	if cfg.SampleRate != 44100 || cfg.CrossfadeMs != 50 {
		t.Fatalf("overrides not applied: %d, %d", cfg.SampleRate, cfg.CrossfadeMs)
	}
	if !cfg.TracingEnabled {
		t.Fatal("tracing override not applied")
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("SNDB_DB_BACKEND", "oracle")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for unsupported backend")
	}

	t.Setenv("SNDB_DB_BACKEND", "sqlite")
	t.Setenv("SNDB_SAMPLE_RATE", "999999")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for out-of-range sample rate")
	}

	t.Setenv("SNDB_SAMPLE_RATE", "48000")
	t.Setenv("SNDB_DUCK_MS", "-1")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for negative fade time")
	}
}
