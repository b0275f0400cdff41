// Package config centralises environment and command-line configuration.
//
// Precedence, lowest first: built-in defaults, a .env file in the working
// directory, process environment, command-line flags.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

// Config holds all runtime configuration for the server.
type Config struct {
	Port        int
	DBPath      string
	SeedPath    string
	LogLevel    slog.Level
	LogFormat   string // "text" or "json"
	CORSOrigins []string
}

// Load reads .env (if present), the environment, then parses args
// (without the program name).
func Load(args []string) (*Config, error) {
	_ = godotenv.Load()

	port, err := envInt("SHIFTS_PORT", 8080)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:      port,
		DBPath:    getEnvOrDefault("SHIFTS_DB", "shifts.db"),
		SeedPath:  os.Getenv("SHIFTS_SEED"),
		LogFormat: getEnvOrDefault("SHIFTS_LOG_FORMAT", "text"),
		CORSOrigins: splitList(getEnvOrDefault("SHIFTS_CORS_ORIGINS",
			"http://localhost:5173,http://127.0.0.1:5173")),
	}
	level := getEnvOrDefault("SHIFTS_LOG_LEVEL", "info")

	fs := pflag.NewFlagSet("shift-server", pflag.ContinueOnError)
	fs.IntVarP(&cfg.Port, "port", "p", cfg.Port, "HTTP server port")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, `SQLite database path (":memory:" for in-memory)`)
	fs.StringVar(&cfg.SeedPath, "seed", cfg.SeedPath, "YAML seed file loaded at startup")
	fs.StringVar(&level, "log-level", level, "log level: debug, info, warn, error")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log format: text or json")
	fs.StringSliceVar(&cfg.CORSOrigins, "cors-origin", cfg.CORSOrigins, "allowed CORS origins")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	switch cfg.LogFormat {
	case "text", "json":
	default:
		return nil, fmt.Errorf("invalid log format %q (use text or json)", cfg.LogFormat)
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid port %d", cfg.Port)
	}

	return cfg, nil
}

// Logger builds the process logger described by the config.
func (c *Config) Logger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.LogLevel}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func getEnvOrDefault(key, def string) string {
	val := os.Getenv(key)
	if val == "" {
		return def
	}
	return val
}

func envInt(key string, def int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return def, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
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
