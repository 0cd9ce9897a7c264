package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/chirho")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr != ":8080" || cfg.DuplicateWindow != 30*time.Second || cfg.EmailQueue != "email.outbound" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.MaxImportBytes != 10<<20 || cfg.ReconcileSchedule != "" || cfg.ReconcileEvents != nil {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
}

func TestLoadFallsBackToPGDSN(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("PG_DSN", "postgres://localhost/test")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DatabaseURL != "postgres://localhost/test" {
		t.Fatalf("database url %q", cfg.DatabaseURL)
	}
}

func TestLoadRequiresDatabase(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("PG_DSN", "")
	if _, err := Load(filepath.Join(t.TempDir(), "missing.env")); err == nil {
		t.Fatalf("expected error without a database url")
	}
}

func TestLoadReadsEnvFile(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://env/wins")
	t.Cleanup(func() {
		_ = os.Unsetenv("DUPLICATE_WINDOW")
		_ = os.Unsetenv("RECONCILE_EVENTS")
	})
	path := filepath.Join(t.TempDir(), "test.env")
	content := "DATABASE_URL=postgres://file/loses\nDUPLICATE_WINDOW=45s\nRECONCILE_EVENTS=retreat-2026, ,youth-2026\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write env: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DatabaseURL != "postgres://env/wins" {
		t.Fatalf("environment should win, got %q", cfg.DatabaseURL)
	}
	if cfg.DuplicateWindow != 45*time.Second {
		t.Fatalf("duplicate window %s", cfg.DuplicateWindow)
	}
	if len(cfg.ReconcileEvents) != 2 || cfg.ReconcileEvents[1] != "youth-2026" {
		t.Fatalf("reconcile events %v", cfg.ReconcileEvents)
	}
}
