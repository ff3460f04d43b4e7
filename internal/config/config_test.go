package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutDownTimeout: 5 * time.Second,
			RequestTimeout:  1000 * time.Millisecond,
		},
		Refresh: RefreshConfig{
			UpdateInterval: 5 * time.Minute,
			RetryInterval:  time.Hour,
			BatchSize:      500,
			Timezone:       "Local",
		},
		Files: []FileConfig{
			{Path: "/data/rates.csv", Type: "rate"},
			{Path: "/data/countries.csv", Repository: "countries", Delimiter: ";"},
		},
		Tasks: []TaskConfig{
			{Name: "rates", Type: "download", Interval: time.Hour, AffectedTypes: []string{"rate"}},
		},
		Misc: MiscConfig{
			LogLevel: "info",
			GinMode:  "release",
		},
	}
}

func TestConfig_Validate_Valid(t *testing.T) {
	if err := validConfig().validate(); err != nil {
		t.Errorf("expected valid config, got error: %v", err)
	}
}

func TestConfig_Validate_InvalidPort(t *testing.T) {
	tests := []struct {
		name string
		port int
	}{
		{"zero port", 0},
		{"negative port", -1},
		{"too high port", 65536},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.Server.Port = tt.port

			if err := cfg.validate(); err == nil {
				t.Errorf("expected error for port %d", tt.port)
			}
		})
	}
}

func TestConfig_Validate_InvalidTimeouts(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(s *ServerConfig)
	}{
		{"zero read timeout", func(s *ServerConfig) { s.ReadTimeout = 0 }},
		{"zero write timeout", func(s *ServerConfig) { s.WriteTimeout = 0 }},
		{"zero idle timeout", func(s *ServerConfig) { s.IdleTimeout = 0 }},
		{"zero shutdown timeout", func(s *ServerConfig) { s.ShutDownTimeout = 0 }},
		{"zero request timeout", func(s *ServerConfig) { s.RequestTimeout = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg.Server)

			if err := cfg.validate(); err == nil {
				t.Errorf("expected error for %s", tt.name)
			}
		})
	}
}

func TestConfig_Validate_Refresh(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(r *RefreshConfig)
		wantErr bool
	}{
		{"zero update interval disables the trigger", func(r *RefreshConfig) { r.UpdateInterval = 0 }, false},
		{"negative update interval", func(r *RefreshConfig) { r.UpdateInterval = -time.Minute }, true},
		{"negative retry interval", func(r *RefreshConfig) { r.RetryInterval = -time.Minute }, true},
		{"negative batch size", func(r *RefreshConfig) { r.BatchSize = -1 }, true},
		{"invalid timezone", func(r *RefreshConfig) { r.Timezone = "Mars/Olympus_Mons" }, true},
		{"empty timezone", func(r *RefreshConfig) { r.Timezone = "" }, false},
		{"named timezone", func(r *RefreshConfig) { r.Timezone = "Europe/Rome" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg.Refresh)

			err := cfg.validate()
			if tt.wantErr && err == nil {
				t.Errorf("expected error for %s", tt.name)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("expected no error for %s, got: %v", tt.name, err)
			}
		})
	}
}

func TestConfig_Validate_FilesAndTasks(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"file without path", func(c *Config) { c.Files[0].Path = "" }},
		{"file without type or repository", func(c *Config) { c.Files[0].Type = "" }},
		{"multi character delimiter", func(c *Config) { c.Files[0].Delimiter = ";;" }},
		{"multi character comment", func(c *Config) { c.Files[0].Comment = "//" }},
		{"multi character default delimiter", func(c *Config) { c.Refresh.Reader.Delimiter = "\t\t" }},
		{"task without type", func(c *Config) { c.Tasks[0].Type = "" }},
		{"negative task interval", func(c *Config) { c.Tasks[0].Interval = -time.Second }},
		{"unknown log level", func(c *Config) { c.Misc.LogLevel = "loud" }},
		{"unknown gin mode", func(c *Config) { c.Misc.GinMode = "turbo" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			if err := cfg.validate(); err == nil {
				t.Errorf("expected error for %s", tt.name)
			}
		})
	}
}

func TestFileConfig_Runes(t *testing.T) {
	f := FileConfig{Delimiter: ";", Comment: "#"}
	if f.DelimiterRune() != ';' || f.CommentRune() != '#' {
		t.Errorf("unexpected runes %q %q", f.DelimiterRune(), f.CommentRune())
	}
	if (FileConfig{}).DelimiterRune() != 0 {
		t.Error("expected zero delimiter for empty value")
	}
}

func TestGetEnvOrDefault(t *testing.T) {
	t.Setenv("TEST_ENV_VAR", "custom_value")

	if got := getEnvOrDefault("TEST_ENV_VAR", "default_value"); got != "custom_value" {
		t.Errorf("expected 'custom_value', got '%s'", got)
	}
	if got := getEnvOrDefault("NONEXISTENT_VAR", "default_value"); got != "default_value" {
		t.Errorf("expected 'default_value', got '%s'", got)
	}

	t.Setenv("TEST_EMPTY_VAR", "")
	if got := getEnvOrDefault("TEST_EMPTY_VAR", "default_value"); got != "default_value" {
		t.Errorf("expected 'default_value' for empty env, got '%s'", got)
	}
}

func TestGetEnvOrViperPort(t *testing.T) {
	v := viper.New()
	v.Set("server.port", 7070)

	port, err := getEnvOrViperPort(v, "NONEXISTENT_PORT_VAR_12345", "server.port")
	if err != nil || port != 7070 {
		t.Errorf("expected 7070 from viper, got %d (%v)", port, err)
	}

	t.Setenv("TEST_PORT", "9090")
	port, err = getEnvOrViperPort(v, "TEST_PORT", "server.port")
	if err != nil || port != 9090 {
		t.Errorf("expected 9090 from env, got %d (%v)", port, err)
	}

	t.Setenv("TEST_PORT_INVALID", "not_a_number")
	if _, err := getEnvOrViperPort(v, "TEST_PORT_INVALID", "server.port"); err == nil {
		t.Error("expected error for invalid port")
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("GO_REFRESH_CONFIG_PATH", t.TempDir())

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("expected no error loading config, got: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Refresh.UpdateInterval != 5*time.Minute {
		t.Errorf("expected 5m update interval, got %v", cfg.Refresh.UpdateInterval)
	}
	if cfg.Refresh.RetryInterval != time.Hour {
		t.Errorf("expected 1h retry interval, got %v", cfg.Refresh.RetryInterval)
	}
	if !cfg.Refresh.LoadOnStart {
		t.Error("expected load_on_start by default")
	}
	if len(cfg.Files) != 0 || len(cfg.Tasks) != 0 {
		t.Error("expected no files and tasks without a config file")
	}
}

func TestLoadConfig_FromFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	yaml := `
server:
  port: 9000
refresh:
  update_interval: 10m
  batch_size: 50
  timezone: UTC
  reader:
    delimiter: ";"
    comment: "#"
    lazy_quotes: true
files:
  - path: /data/rates.csv
    type: rate
    delimiter: ";"
    header: [currency, value]
tasks:
  - name: rates
    type: download
    interval: 1h
    affected_types: [rate]
    properties:
      url: https://example.com/rates.csv
      path: /data/rates.csv
`
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("GO_REFRESH_CONFIG_PATH", dir)
	t.Setenv("GO_REFRESH_REFRESH_BATCH_SIZE", "75")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("expected no error loading config, got: %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("expected port 9000, got %d", cfg.Server.Port)
	}
	if cfg.Refresh.BatchSize != 75 {
		t.Errorf("expected env override batch size 75, got %d", cfg.Refresh.BatchSize)
	}
	if cfg.Refresh.UpdateInterval != 10*time.Minute {
		t.Errorf("expected 10m, got %v", cfg.Refresh.UpdateInterval)
	}
	if len(cfg.Files) != 1 || cfg.Files[0].DelimiterRune() != ';' || len(cfg.Files[0].Header) != 2 {
		t.Errorf("unexpected files: %+v", cfg.Files)
	}
	if r := cfg.Refresh.Reader; r.DelimiterRune() != ';' || r.CommentRune() != '#' || !r.LazyQuotes {
		t.Errorf("unexpected reader defaults: %+v", r)
	}
	if len(cfg.Tasks) != 1 || cfg.Tasks[0].Interval != time.Hour {
		t.Fatalf("unexpected tasks: %+v", cfg.Tasks)
	}
	if cfg.Tasks[0].Properties["url"] != "https://example.com/rates.csv" {
		t.Errorf("unexpected properties: %v", cfg.Tasks[0].Properties)
	}
}

func TestLoadConfig_WithCustomPort(t *testing.T) {
	t.Setenv("GO_REFRESH_CONFIG_PATH", t.TempDir())
	t.Setenv("PORT", "9999")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("expected port 9999, got %d", cfg.Server.Port)
	}
}

func TestLoadConfig_WithInvalidPort(t *testing.T) {
	t.Setenv("GO_REFRESH_CONFIG_PATH", t.TempDir())
	t.Setenv("PORT", "not_a_port")

	if _, err := LoadConfig(); err == nil {
		t.Error("expected error for invalid PORT")
	}
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("server: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("GO_REFRESH_CONFIG_PATH", dir)

	if _, err := LoadConfig(); err == nil {
		t.Error("expected error for malformed config file")
	}
}
