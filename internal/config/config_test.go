package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Address() != "127.0.0.1:5000" {
		t.Errorf("unexpected address %q", cfg.Address())
	}
	if cfg.Server.MaxConnections != 1024 {
		t.Errorf("unexpected max connections %d", cfg.Server.MaxConnections)
	}
	if cfg.Log.Dir != "./logs" {
		t.Errorf("unexpected log dir %q", cfg.Log.Dir)
	}
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chatd.yaml")
	data := []byte(`
server:
  host: 0.0.0.0
  port: 7000
  max_connections: 10
http:
  addr: ""
log:
  level: debug
  audit_db: /tmp/audit.db
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Address() != "0.0.0.0:7000" {
		t.Errorf("unexpected address %q", cfg.Address())
	}
	if cfg.Server.MaxConnections != 10 {
		t.Errorf("unexpected max connections %d", cfg.Server.MaxConnections)
	}
	if cfg.HTTP.Addr != "" {
		t.Errorf("expected http disabled, got %q", cfg.HTTP.Addr)
	}
	if cfg.Log.Level != "debug" || cfg.Log.AuditDB != "/tmp/audit.db" {
		t.Errorf("unexpected log config %+v", cfg.Log)
	}
	// Unset keys keep their defaults.
	if cfg.Server.MaxLineBytes != 4096 {
		t.Errorf("unexpected max line bytes %d", cfg.Server.MaxLineBytes)
	}
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chatd.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 7000\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CHAT_PORT", "6001")
	t.Setenv("CHAT_HOST", "::1")
	t.Setenv("CHAT_ALLOWED_ORIGINS", "http://a.example, http://b.example,")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Address() != "[::1]:6001" {
		t.Errorf("unexpected address %q", cfg.Address())
	}
	if len(cfg.HTTP.AllowedOrigins) != 2 || cfg.HTTP.AllowedOrigins[1] != "http://b.example" {
		t.Errorf("unexpected origins %v", cfg.HTTP.AllowedOrigins)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(bad, []byte("server: [\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(bad); err == nil {
		t.Error("expected error for malformed YAML")
	}

	t.Setenv("CHAT_PORT", "not-a-port")
	if _, err := Load(""); err == nil {
		t.Error("expected error for non-numeric CHAT_PORT")
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Server.Port = 70000
	cfg.Server.MaxConnections = -1
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error")
	}
	if err := Default().Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}
