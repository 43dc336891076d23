// Package config resolves runtime settings from (in increasing precedence)
// built-in defaults, an optional .env file, the environment, and CLI flags.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Addr            string
	DatabaseURL     string
	CronSecret      string
	LogLevel        string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	RateLimitRPS    float64
	RateLimitBurst  int
	CORSOrigins     []string
	TracingExporter string
	ServiceName     string
}

var defaults = map[string]any{
	"http_addr":            ":8080",
	"database_url":         "data/todos.db",
	"cron_secret":          "",
	"log_level":            "info",
	"request_timeout":      "15s",
	"shutdown_timeout":     "10s",
	"rate_limit_rps":       0,
	"rate_limit_burst":     20,
	"cors_allowed_origins": "*",
	"tracing_exporter":     "none",
	"service_name":         "todos-api",
}

// flagKeys maps CLI flag names onto config keys.
var flagKeys = map[string]string{
	"addr":         "http_addr",
	"database-url": "database_url",
	"log-level":    "log_level",
}

// RegisterFlags adds the overridable settings to flags.
func RegisterFlags(flags *pflag.FlagSet) {
	flags.String("addr", "", "HTTP listen address (env HTTP_ADDR)")
	flags.String("database-url", "", "SQLite path/DSN or postgres:// URL (env DATABASE_URL)")
	flags.String("log-level", "", "debug, info, warn or error (env LOG_LEVEL)")
}

// Load reads envFile if it exists, then the environment, then any flags in
// flags that were explicitly set. flags may be nil.
func Load(envFile string, flags *pflag.FlagSet) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil && f.Changed {
				v.Set(key, f.Value.String())
			}
		}
	}

	cfg := Config{
		Addr:            strings.TrimSpace(v.GetString("http_addr")),
		DatabaseURL:     strings.TrimSpace(v.GetString("database_url")),
		CronSecret:      v.GetString("cron_secret"),
		LogLevel:        strings.ToLower(strings.TrimSpace(v.GetString("log_level"))),
		RequestTimeout:  v.GetDuration("request_timeout"),
		ShutdownTimeout: v.GetDuration("shutdown_timeout"),
		RateLimitRPS:    v.GetFloat64("rate_limit_rps"),
		RateLimitBurst:  v.GetInt("rate_limit_burst"),
		CORSOrigins:     splitList(v.GetString("cors_allowed_origins")),
		TracingExporter: strings.ToLower(strings.TrimSpace(v.GetString("tracing_exporter"))),
		ServiceName:     v.GetString("service_name"),
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("http_addr must not be empty"))
	}
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("database_url must not be empty"))
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("unknown log_level %q", c.LogLevel))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, errors.New("request_timeout must be positive"))
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("shutdown_timeout must be positive"))
	}
	if c.RateLimitRPS > 0 && c.RateLimitBurst < 1 {
		errs = append(errs, errors.New("rate_limit_burst must be at least 1 when rate limiting is enabled"))
	}
	switch c.TracingExporter {
	case "none", "stdout", "otlp":
	default:
		errs = append(errs, fmt.Errorf("unknown tracing_exporter %q", c.TracingExporter))
	}
	return errors.Join(errs...)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
