package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
}

type testConfig struct {
	DB    DBConfig    `yaml:"db"`
	Redis RedisConfig `yaml:"redis"`
	JWT   JWTConfig   `yaml:"jwt"`
}

func TestLoadIntoLayers(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", `
db:
  host: localhost
  port: 5432
  password: ${DB_PASSWORD}
redis:
  addr: localhost:6379
jwt:
  ttl: 1h
`)
	writeFile(t, dir, "production.yaml", `
db:
  host: db.internal
redis:
  db: 2
`)
	writeFile(t, dir, "secrets.env", `
# comment
DB_PASSWORD="s3cret"
`)

	var cfg testConfig
	if err := LoadInto("production", dir, &cfg); err != nil {
		t.Fatalf("LoadInto() error = %v", err)
	}
	if cfg.DB.Host != "db.internal" || cfg.DB.Port != 5432 || cfg.DB.Password != "s3cret" {
		t.Errorf("db = %+v", cfg.DB)
	}
	if cfg.Redis.Addr != "localhost:6379" || cfg.Redis.DB != 2 {
		t.Errorf("redis = %+v", cfg.Redis)
	}
	if cfg.JWT.TTL != time.Hour {
		t.Errorf("jwt ttl = %v", cfg.JWT.TTL)
	}
}

func TestLoadLayersMissingEnvFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", "server:\n  port: \":5000\"\n")

	m, err := LoadLayers("staging", dir)
	if err != nil {
		t.Fatalf("LoadLayers() error = %v", err)
	}
	server, _ := m["server"].(map[string]any)
	if server["port"] != ":5000" {
		t.Errorf("merged = %v", m)
	}

	if _, err := LoadLayers("local", t.TempDir()); err == nil {
		t.Error("LoadLayers() without base.yaml: error = nil")
	}
}

func TestExpandKeepsUnknown(t *testing.T) {
	got := expand("${A}-${B}", map[string]string{"A": "x"})
	if got != "x-${B}" {
		t.Errorf("expand() = %q", got)
	}
}
