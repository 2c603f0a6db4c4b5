package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Match.Port != 29900 {
		t.Errorf("match port = %d", cfg.Match.Port)
	}
	if cfg.Session.Backend != "memory" || cfg.Database.Backend != "memory" {
		t.Errorf("backends = %q/%q", cfg.Session.Backend, cfg.Database.Backend)
	}
	if !cfg.WakeResetsDreamContent {
		t.Error("wake reset default is off")
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
http:
  port: 8080
session:
  backend: redis
  redis_url: redis://127.0.0.1:6379/0
allow_dream_overwrite: true
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTP.Port != 8080 {
		t.Errorf("http port = %d", cfg.HTTP.Port)
	}
	if cfg.Session.Backend != "redis" {
		t.Errorf("session backend = %q", cfg.Session.Backend)
	}
	if !cfg.AllowDreamOverwrite {
		t.Error("allow_dream_overwrite not applied")
	}
	// Untouched fields keep their defaults.
	if cfg.Match.Port != 29900 {
		t.Errorf("match port = %d", cfg.Match.Port)
	}
}

func TestDatabaseDSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", DBName: "n", SSLMode: "disable"}
	want := "postgres://u:p@db:5432/n?sslmode=disable"
	if got := d.DSN(); got != want {
		t.Errorf("DSN = %q, want %q", got, want)
	}
}
