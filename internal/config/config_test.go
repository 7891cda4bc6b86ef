package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv(EnvPrefix+"_ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":8080" || cfg.Database.Driver != "memory" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.Redis.Enabled() || cfg.MinIO.Enabled() {
		t.Fatalf("optional backends should be off by default")
	}
	if cfg.Redis.ReportTTL != 5*time.Minute || cfg.MinIO.URLExpiry != time.Hour {
		t.Fatalf("durations not decoded: %+v %+v", cfg.Redis, cfg.MinIO)
	}
}

func TestLoadFileEnvAndDotenv(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "formpulse.yaml")
	yaml := "server:\n  addr: \":9000\"\n  frontend_url: \"https://a.example, https://b.example\"\ndatabase:\n  driver: sqlite\nredis:\n  addr: localhost:6379\n  report_ttl: 30s\n"
	if err := os.WriteFile(file, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	envFile := filepath.Join(dir, "test.env")
	if err := os.WriteFile(envFile, []byte("FORMPULSE_LOG_LEVEL=debug\n"), 0o600); err != nil {
		t.Fatalf("write env: %v", err)
	}
	t.Setenv(EnvPrefix+"_ENV_FILE", envFile)
	t.Setenv("FORMPULSE_SERVER_ADDR", ":9100")
	t.Cleanup(func() { os.Unsetenv("FORMPULSE_LOG_LEVEL") })

	cfg, err := Load(file)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":9100" {
		t.Fatalf("env should override file, got %q", cfg.Server.Addr)
	}
	if cfg.Database.Driver != "sqlite" || cfg.Redis.ReportTTL != 30*time.Second || !cfg.Redis.Enabled() {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if got := cfg.Server.Origins(); len(got) != 2 || got[1] != "https://b.example" {
		t.Fatalf("origins = %v", got)
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("dotenv value not applied: %q", cfg.Log.Level)
	}
}

func TestValidate(t *testing.T) {
	t.Setenv(EnvPrefix+"_ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("FORMPULSE_DATABASE_DRIVER", "mongo")
	if _, err := Load(""); err == nil {
		t.Fatalf("expected unsupported driver error")
	}
	t.Setenv("FORMPULSE_DATABASE_DRIVER", "memory")
	t.Setenv("FORMPULSE_SERVER_MODE", "release")
	if _, err := Load(""); err == nil {
		t.Fatalf("expected dev secret to be rejected in release mode")
	}
	t.Setenv("FORMPULSE_JWT_SECRET", "prod-secret")
	if _, err := Load(""); err != nil {
		t.Fatalf("release config should load: %v", err)
	}
}

func TestPostgresDSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5433, User: "u", Password: "p", DBName: "n", SSLMode: "require"}
	if got := d.PostgresDSN(); got != "host=db port=5433 user=u password=p dbname=n sslmode=require" {
		t.Fatalf("dsn = %q", got)
	}
}
