// Package config loads server settings from YAML, a .env file and CHAT_*
// environment variables, in that order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the full server configuration.
type Config struct {
	Server ServerConfig `yaml:"server"`
	HTTP   HTTPConfig   `yaml:"http"`
	Log    LogConfig    `yaml:"log"`
}

// ServerConfig configures the chat listener and session limits.
type ServerConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	MaxConnections int    `yaml:"max_connections"` // 0 = unlimited
	OutboundBuffer int    `yaml:"outbound_buffer"`
	RegistryBuffer int    `yaml:"registry_buffer"`
	MaxLineBytes   int    `yaml:"max_line_bytes"`
}

// HTTPConfig configures the admin/WebSocket endpoint. An empty Addr disables it.
type HTTPConfig struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	RequestsPerMin int      `yaml:"requests_per_minute"`
}

// LogConfig configures operational logging and the event journal.
type LogConfig struct {
	Level   string `yaml:"level"`
	Dir     string `yaml:"dir"`      // per-run journal files; empty disables
	AuditDB string `yaml:"audit_db"` // SQLite audit store; empty disables
}

// Default returns a config with sensible defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:           "127.0.0.1",
			Port:           5000,
			MaxConnections: 1024,
			OutboundBuffer: 64,
			RegistryBuffer: 128,
			MaxLineBytes:   4096,
		},
		HTTP: HTTPConfig{
			Addr:           ":9090",
			AllowedOrigins: []string{"http://localhost:9090"},
			RequestsPerMin: 120,
		},
		Log: LogConfig{
			Level: "info",
			Dir:   "./logs",
		},
	}
}

// Load builds a config from defaults, the YAML file at path (skipped when
// path is empty), a .env file in the working directory and the environment.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	// A missing .env file is not an error.
	_ = godotenv.Load()
	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("CHAT_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if err := envInt("CHAT_PORT", &cfg.Server.Port); err != nil {
		return err
	}
	if err := envInt("CHAT_MAX_CONNECTIONS", &cfg.Server.MaxConnections); err != nil {
		return err
	}
	if err := envInt("CHAT_MAX_LINE_BYTES", &cfg.Server.MaxLineBytes); err != nil {
		return err
	}
	if v, ok := os.LookupEnv("CHAT_HTTP_ADDR"); ok {
		cfg.HTTP.Addr = v
	}
	if v := os.Getenv("CHAT_ALLOWED_ORIGINS"); v != "" {
		cfg.HTTP.AllowedOrigins = parseList(v)
	}
	if v := os.Getenv("CHAT_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v, ok := os.LookupEnv("CHAT_LOG_DIR"); ok {
		cfg.Log.Dir = v
	}
	if v, ok := os.LookupEnv("CHAT_AUDIT_DB"); ok {
		cfg.Log.AuditDB = v
	}
	return nil
}

func envInt(key string, dst *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func parseList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate rejects settings the server cannot start with.
func (c Config) Validate() error {
	var errs []error
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Server.MaxConnections < 0 {
		errs = append(errs, errors.New("server.max_connections must not be negative"))
	}
	if c.Server.OutboundBuffer < 0 || c.Server.RegistryBuffer < 0 || c.Server.MaxLineBytes < 0 {
		errs = append(errs, errors.New("server buffer sizes must not be negative"))
	}
	if c.HTTP.RequestsPerMin < 0 {
		errs = append(errs, errors.New("http.requests_per_minute must not be negative"))
	}
	return errors.Join(errs...)
}

// Address returns the chat listen address as host:port.
func (c Config) Address() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}
