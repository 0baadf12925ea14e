package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestLoadDefaultsFromDevEnv(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "dev.env"), "DATABASE_URL=postgresql+asyncpg://localhost/demo\n")

	cfg, err := Load("", dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Database.URI != "postgresql+asyncpg://localhost/demo" {
		t.Fatalf("unexpected uri %q", cfg.Database.URI)
	}
	if cfg.Database.PoolSize != 5 || cfg.Database.MaxOverflow != 10 {
		t.Fatalf("unexpected pool defaults %+v", cfg.Database)
	}
	if cfg.Database.RetryCount != 3 || cfg.Database.RetryBackoff != 2*time.Second {
		t.Fatalf("unexpected retry defaults %+v", cfg.Database)
	}
	if cfg.Server.Addr != ":8000" {
		t.Fatalf("unexpected addr %q", cfg.Server.Addr)
	}
}

func TestLoadEnvSpecificFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "dev.env"), "DATABASE_URL=postgres://dev/demo\n")
	writeFile(t, filepath.Join(dir, "staging.env"), "DATABASE_URL=postgres://staging/demo\n")

	t.Setenv("ENV", "staging")

	cfg, err := Load("", dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Database.URI != "postgres://staging/demo" {
		t.Fatalf("expected staging uri, got %q", cfg.Database.URI)
	}
	if cfg.Environment != "staging" {
		t.Fatalf("expected staging environment, got %q", cfg.Environment)
	}
}

func TestLoadFallsBackToDevEnv(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "dev.env"), "DATABASE_URL=postgres://dev/demo\n")

	t.Setenv("ENV", "prod")

	cfg, err := Load("", dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Database.URI != "postgres://dev/demo" {
		t.Fatalf("expected dev fallback, got %q", cfg.Database.URI)
	}
}

func TestLoadMissingEnvFiles(t *testing.T) {
	if _, err := Load("", t.TempDir()); err == nil {
		t.Fatal("expected error when no env file exists")
	}
}

func TestEnvOverridesWin(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "dev.env"), "DATABASE_URL=postgres://file/demo\n")

	t.Setenv("DATABASE_URL", "postgres://override/demo")
	t.Setenv("DB_POOL_SIZE", "20")
	t.Setenv("DB_STATEMENT_TIMEOUT", "5")

	cfg, err := Load("", dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Database.URI != "postgres://override/demo" {
		t.Fatalf("expected override uri, got %q", cfg.Database.URI)
	}
	if cfg.Database.PoolSize != 20 {
		t.Fatalf("expected pool size 20, got %d", cfg.Database.PoolSize)
	}
	if cfg.Database.StatementTimeout != 5*time.Second {
		t.Fatalf("expected 5s statement timeout, got %v", cfg.Database.StatementTimeout)
	}
}

func TestLoadYAMLFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "dev.env"), "DATABASE_URL=postgres://file/demo\n")

	yamlPath := filepath.Join(dir, "config.yaml")
	writeFile(t, yamlPath, "server:\n  addr: \":9000\"\nlog_level: debug\n")

	cfg, err := Load(yamlPath, dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Addr != ":9000" {
		t.Fatalf("expected :9000, got %q", cfg.Server.Addr)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("expected debug, got %q", cfg.LogLevel)
	}
}

func TestMissingDatabaseURL(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "dev.env"), "LOG_LEVEL=debug\n")

	if _, err := Load("", dir); err == nil {
		t.Fatal("expected error when DATABASE_URL is missing")
	}
}
