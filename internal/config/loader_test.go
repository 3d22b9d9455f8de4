package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"subtitle-history-api/internal/config"
)

func writeConfig(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestLoadFromDirDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "test")

	cfg, err := config.LoadFromDir(t.TempDir())
	if err != nil {
		t.Fatalf("LoadFromDir: %v", err)
	}
	if cfg.Database.Driver != config.DriverPostgres {
		t.Fatalf("driver = %q", cfg.Database.Driver)
	}
	if cfg.Subtitles.WritelockTTL != 30*time.Second {
		t.Fatalf("writelock ttl = %v", cfg.Subtitles.WritelockTTL)
	}
	if cfg.Subtitles.EventStream != "stream:subtitles:events" {
		t.Fatalf("event stream = %q", cfg.Subtitles.EventStream)
	}
	if cfg.Security.RateLimit.Enabled || cfg.Security.RateLimit.Requests != 60 || cfg.Security.RateLimit.Window != time.Minute {
		t.Fatalf("rate limit = %+v", cfg.Security.RateLimit)
	}
}

func TestLoadFromDirExpandsEnvAndMergesEnvFile(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	t.Setenv("SUBTITLE_LOCK_TTL", "10s")

	dir := t.TempDir()
	writeConfig(t, dir, "config.yaml", `
database:
  driver: postgres
  postgres:
    database: ${SUBTITLE_DB:subs}
subtitles:
  writelock_ttl: ${SUBTITLE_LOCK_TTL:45s}
  event_stream: stream:custom
`)
	writeConfig(t, dir, "config.test.yaml", `
database:
  driver: memory
`)

	cfg, err := config.LoadFromDir(dir)
	if err != nil {
		t.Fatalf("LoadFromDir: %v", err)
	}
	if cfg.Database.Driver != config.DriverMemory {
		t.Fatalf("driver = %q, want env file override", cfg.Database.Driver)
	}
	if cfg.Database.Postgres.Database != "subs" {
		t.Fatalf("database = %q, want placeholder default", cfg.Database.Postgres.Database)
	}
	if cfg.Subtitles.WritelockTTL != 10*time.Second {
		t.Fatalf("writelock ttl = %v, want env value", cfg.Subtitles.WritelockTTL)
	}
	if cfg.Subtitles.EventStream != "stream:custom" {
		t.Fatalf("event stream = %q", cfg.Subtitles.EventStream)
	}
}

func TestLoadFromDirValidates(t *testing.T) {
	t.Setenv("APP_ENV", "test")

	tests := []struct {
		name    string
		content string
	}{
		{name: "unknown driver", content: "database:\n  driver: mysql\n"},
		{name: "non-positive ttl", content: "subtitles:\n  writelock_ttl: 0s\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeConfig(t, dir, "config.yaml", tt.content)
			if _, err := config.LoadFromDir(dir); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}
