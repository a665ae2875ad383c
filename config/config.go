// Package config reads process configuration from a .env file and the
// environment. Secrets have no defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

type LogConfig struct {
	Level      string
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

type Config struct {
	TelegramToken string

	Store       string
	DatabaseURL string

	Timezone       string
	MinPersonCount int
	VisionURL      string
	VisionTimeout  time.Duration
	ScheduleFile   string
	ContentFile    string
	TickInterval   time.Duration

	Port               string
	JWTSecret          string
	AdminUsername      string
	AdminPasswordHash  string
	AllowedOrigins     []string
	RateLimitPerMinute int

	MaxConcurrentUpdates int

	Log LogConfig
}

// Load reads files (default ".env") into the environment when present, then
// builds the configuration from the environment.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config: load %s: %w", f, err)
		}
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds the configuration from getenv, applying defaults.
func FromEnv(getenv func(string) string) (*Config, error) {
	e := env{get: getenv}
	c := &Config{
		TelegramToken:        e.str("TELEGRAM_BOT_TOKEN", ""),
		Store:                strings.ToLower(e.str("STORE", StorePostgres)),
		DatabaseURL:          databaseURL(&e),
		Timezone:             e.str("TIMEZONE", "Asia/Kolkata"),
		MinPersonCount:       e.int("MIN_PERSON_COUNT", 5),
		VisionURL:            e.str("VISION_URL", ""),
		VisionTimeout:        e.duration("VISION_TIMEOUT", 30*time.Second),
		ScheduleFile:         e.str("SCHEDULE_FILE", ""),
		ContentFile:          e.str("CONTENT_FILE", ""),
		TickInterval:         e.duration("TICK_INTERVAL", 15*time.Second),
		Port:                 e.str("PORT", "8080"),
		JWTSecret:            e.str("JWT_SECRET", ""),
		AdminUsername:        e.str("ADMIN_USERNAME", "admin"),
		AdminPasswordHash:    e.str("ADMIN_PASSWORD_HASH", ""),
		AllowedOrigins:       parseCommaSeparated(e.str("ALLOWED_ORIGINS", "*")),
		RateLimitPerMinute:   e.int("RATE_LIMIT_PER_MINUTE", 100),
		MaxConcurrentUpdates: e.int("MAX_CONCURRENT_UPDATES", 16),
		Log: LogConfig{
			Level:      e.str("LOG_LEVEL", "info"),
			Path:       e.str("LOG_PATH", ""),
			MaxSizeMB:  e.int("LOG_MAX_SIZE_MB", 50),
			MaxBackups: e.int("LOG_MAX_BACKUPS", 7),
			MaxAgeDays: e.int("LOG_MAX_AGE_DAYS", 30),
			Compress:   e.bool("LOG_COMPRESS", true),
		},
	}
	if err := errors.Join(e.errs...); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) validate() error {
	var errs []error
	switch c.Store {
	case StorePostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL or DB_HOST must be set for STORE=postgres"))
		}
	case StoreMemory:
	default:
		errs = append(errs, fmt.Errorf("STORE must be %q or %q, got %q", StorePostgres, StoreMemory, c.Store))
	}
	if c.MinPersonCount < 1 {
		errs = append(errs, fmt.Errorf("MIN_PERSON_COUNT must be positive, got %d", c.MinPersonCount))
	}
	if c.TickInterval <= 0 || c.TickInterval > time.Minute {
		errs = append(errs, fmt.Errorf("TICK_INTERVAL must be in (0, 1m], got %s", c.TickInterval))
	}
	if c.VisionTimeout <= 0 {
		errs = append(errs, fmt.Errorf("VISION_TIMEOUT must be positive, got %s", c.VisionTimeout))
	}
	if c.MaxConcurrentUpdates < 1 {
		errs = append(errs, fmt.Errorf("MAX_CONCURRENT_UPDATES must be positive, got %d", c.MaxConcurrentUpdates))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// RequireBot checks the settings the chat bot cannot start without.
func (c *Config) RequireBot() error {
	if c.TelegramToken == "" {
		return errors.New("config: TELEGRAM_BOT_TOKEN must be set")
	}
	return nil
}

// RequireAPI checks the settings the supervisor API cannot start without.
func (c *Config) RequireAPI() error {
	if c.JWTSecret == "" {
		return errors.New("config: JWT_SECRET must be set")
	}
	if c.AdminPasswordHash == "" {
		return errors.New("config: ADMIN_PASSWORD_HASH must be set")
	}
	return nil
}

func databaseURL(e *env) string {
	if u := e.str("DATABASE_URL", ""); u != "" {
		return u
	}
	host := e.str("DB_HOST", "")
	if host == "" {
		return ""
	}
	port := e.int("DB_PORT", 5432)
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		host, port,
		e.str("DB_USER", "postgres"),
		e.str("DB_PASSWORD", ""),
		e.str("DB_NAME", "attendance"),
		e.str("DB_SSLMODE", "disable"))
}

func parseCommaSeparated(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// env reads typed values and collects parse errors.
type env struct {
	get  func(string) string
	errs []error
}

func (e *env) str(key, def string) string {
	if v := strings.TrimSpace(e.get(key)); v != "" {
		return v
	}
	return def
}

func (e *env) int(key string, def int) int {
	v := strings.TrimSpace(e.get(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: invalid number %q", key, v))
		return def
	}
	return n
}

func (e *env) bool(key string, def bool) bool {
	v := strings.TrimSpace(e.get(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: invalid boolean %q", key, v))
		return def
	}
	return b
}

func (e *env) duration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(e.get(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: invalid duration %q", key, v))
		return def
	}
	return d
}
