package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/bassista/go_refresh/internal/logger"
)

const envPrefix = "GO_REFRESH"

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Refresh RefreshConfig `mapstructure:"refresh"`
	Files   []FileConfig  `mapstructure:"files" validate:"dive"`
	Tasks   []TaskConfig  `mapstructure:"tasks" validate:"dive"`
	Misc    MiscConfig    `mapstructure:"misc"`
}

type ServerConfig struct {
	Port               int           `mapstructure:"port" validate:"min=1,max=65535"`
	ReadTimeout        time.Duration `mapstructure:"read_timeout" validate:"gt=0"`
	WriteTimeout       time.Duration `mapstructure:"write_timeout" validate:"gt=0"`
	IdleTimeout        time.Duration `mapstructure:"idle_timeout" validate:"gt=0"`
	ShutDownTimeout    time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
	RequestTimeout     time.Duration `mapstructure:"request_timeout" validate:"gt=0"`
	CORSAllowedOrigins string        `mapstructure:"cors_allowed_origins"`
}

type RefreshConfig struct {
	// UpdateInterval is the trigger tick; 0 disables automatic updates.
	UpdateInterval time.Duration `mapstructure:"update_interval" validate:"gte=0"`
	RetryInterval  time.Duration `mapstructure:"retry_interval" validate:"gte=0"`
	BatchSize      int           `mapstructure:"batch_size" validate:"gte=0"`
	Timezone       string        `mapstructure:"timezone"`
	LoadOnStart    bool          `mapstructure:"load_on_start"`
	WatchFiles     bool          `mapstructure:"watch_files"`
	HTTPTimeout    time.Duration `mapstructure:"http_timeout" validate:"gte=0"`
	// Reader holds the CSV options applied to files that leave them unset.
	Reader ReaderConfig `mapstructure:"reader"`
}

type ReaderConfig struct {
	Delimiter        string `mapstructure:"delimiter"`
	Comment          string `mapstructure:"comment"`
	TrimLeadingSpace bool   `mapstructure:"trim_leading_space"`
	LazyQuotes       bool   `mapstructure:"lazy_quotes"`
}

type FileConfig struct {
	Path             string   `mapstructure:"path" validate:"required"`
	Type             string   `mapstructure:"type" validate:"required_without=Repository"`
	Repository       string   `mapstructure:"repository"`
	Delimiter        string   `mapstructure:"delimiter"`
	Comment          string   `mapstructure:"comment"`
	Header           []string `mapstructure:"header"`
	TrimLeadingSpace bool     `mapstructure:"trim_leading_space"`
	LazyQuotes       bool     `mapstructure:"lazy_quotes"`
}

// DelimiterRune returns the field delimiter, or 0 for the reader default.
func (f FileConfig) DelimiterRune() rune {
	return firstRune(f.Delimiter)
}

// CommentRune returns the comment marker, or 0 when comments are disabled.
func (f FileConfig) CommentRune() rune {
	return firstRune(f.Comment)
}

func (r ReaderConfig) DelimiterRune() rune {
	return firstRune(r.Delimiter)
}

func (r ReaderConfig) CommentRune() rune {
	return firstRune(r.Comment)
}

type TaskConfig struct {
	Name          string         `mapstructure:"name"`
	Type          string         `mapstructure:"type" validate:"required"`
	Interval      time.Duration  `mapstructure:"interval" validate:"gte=0"`
	RetryInterval time.Duration  `mapstructure:"retry_interval" validate:"gte=0"`
	Disabled      bool           `mapstructure:"disabled"`
	AffectedTypes []string       `mapstructure:"affected_types"`
	Properties    map[string]any `mapstructure:"properties"`
}

type MiscConfig struct {
	LogLevel string `mapstructure:"log_level" validate:"omitempty,oneof=trace debug info warn warning error fatal panic"`
	GinMode  string `mapstructure:"gin_mode" validate:"omitempty,oneof=debug release test"`
}

var validate = validator.New()

// LoadConfig reads config.yaml from GO_REFRESH_CONFIG_PATH (default ./config)
// and applies defaults and GO_REFRESH_* environment overrides. A missing
// file is not an error.
func LoadConfig() (*Config, error) {
	confPath := getEnvOrDefault(envPrefix+"_CONFIG_PATH", "./config")

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(confPath)
	setDefaults(v)

	// Environment variables like GO_REFRESH_SERVER_PORT override server.port
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config file error: %w", err)
		}
		logger.WithComponent("config").Infof("no config file found in %s, using defaults and env vars", confPath)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	port, err := getEnvOrViperPort(v, "PORT", "server.port")
	if err != nil {
		return nil, err
	}
	cfg.Server.Port = port

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 120*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.request_timeout", 30*time.Second)
	v.SetDefault("server.cors_allowed_origins", "")

	v.SetDefault("refresh.update_interval", 5*time.Minute)
	v.SetDefault("refresh.retry_interval", 60*time.Minute)
	v.SetDefault("refresh.batch_size", 1000)
	v.SetDefault("refresh.timezone", "Local")
	v.SetDefault("refresh.load_on_start", true)
	v.SetDefault("refresh.watch_files", false)
	v.SetDefault("refresh.http_timeout", 5*time.Minute)

	v.SetDefault("misc.log_level", "info")
	v.SetDefault("misc.gin_mode", "release")
}

func (c *Config) validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("invalid config: timezone %q: %w", c.Refresh.Timezone, err)
	}
	if r := c.Refresh.Reader; utf8.RuneCountInString(r.Delimiter) > 1 || utf8.RuneCountInString(r.Comment) > 1 {
		return errors.New("invalid config: refresh.reader delimiter and comment must be a single character")
	}
	for i, f := range c.Files {
		if utf8.RuneCountInString(f.Delimiter) > 1 || utf8.RuneCountInString(f.Comment) > 1 {
			return fmt.Errorf("invalid config: file %d (%s): delimiter and comment must be a single character", i, f.Path)
		}
	}
	return nil
}

// Location resolves the refresh timezone. Empty and "Local" mean time.Local.
func (c *Config) Location() (*time.Location, error) {
	tz := c.Refresh.Timezone
	if tz == "" || tz == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(tz)
}

func getEnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// getEnvOrViperPort prefers a plain env var (as set by most PaaS runtimes)
// over the configured value.
func getEnvOrViperPort(v *viper.Viper, envKey, viperKey string) (int, error) {
	raw := os.Getenv(envKey)
	if raw == "" {
		return v.GetInt(viperKey), nil
	}
	port, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", envKey, raw, err)
	}
	return port, nil
}

func firstRune(s string) rune {
	if s == "" {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(s)
	return r
}
