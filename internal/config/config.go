package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/jusunglee/hankyu-go/internal/models"
)

// Config holds all configuration for the server and the terminal client
type Config struct {
	// HTTP
	Port           string
	AllowedOrigins []string

	// Timetable
	DataSource      string
	TimeZone        string
	Location        *time.Location
	Lines           []models.Line
	Directions      []models.Direction
	ResultLimit     int
	LoadTimeout     time.Duration
	RefreshInterval time.Duration

	// Gate
	AuthURL       string
	AuthTimeout   time.Duration
	SessionWindow time.Duration
	KVBackend     string
	KVDSN         string
}

// fileConfig is the optional YAML overlay; empty fields keep the env value
type fileConfig struct {
	DataSource  string   `yaml:"data_source"`
	TimeZone    string   `yaml:"timezone"`
	Lines       []string `yaml:"lines"`
	Directions  []string `yaml:"directions"`
	ResultLimit int      `yaml:"result_limit"`
	AuthURL     string   `yaml:"auth_url"`
}

// Load reads .env, then environment variables with defaults, then the YAML
// file named by TIMETABLE_CONFIG if set
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found (using environment variables)")
	}

	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "")),

		DataSource:      getEnv("DATA_URL", "./data"),
		TimeZone:        getEnv("TIMEZONE", "Asia/Tokyo"),
		ResultLimit:     getEnvInt("RESULT_LIMIT", 5),
		LoadTimeout:     getEnvDuration("LOAD_TIMEOUT", 10*time.Second),
		RefreshInterval: getEnvDuration("REFRESH_INTERVAL", time.Hour),

		AuthURL:       getEnv("AUTH_URL", ""),
		AuthTimeout:   getEnvDuration("AUTH_TIMEOUT", 15*time.Second),
		SessionWindow: getEnvDuration("SESSION_WINDOW", 7*24*time.Hour),
		KVBackend:     getEnv("KV_BACKEND", "sqlite"),
		KVDSN:         getEnv("KV_DSN", "data/session.db"),
	}

	lines := splitList(getEnv("LINES", "kyoto,kobe,takarazuka"))
	directions := splitList(getEnv("DIRECTIONS", "juso_to_umeda,umeda_to_juso"))

	if path := os.Getenv("TIMETABLE_CONFIG"); path != "" {
		fc, err := readFile(path)
		if err != nil {
			return nil, err
		}
		cfg.applyFile(fc)
		if len(fc.Lines) > 0 {
			lines = fc.Lines
		}
		if len(fc.Directions) > 0 {
			directions = fc.Directions
		}
	}

	if err := cfg.resolve(lines, directions); err != nil {
		return nil, err
	}
	return cfg, nil
}

func readFile(path string) (fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return fileConfig{}, fmt.Errorf("reading config: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fileConfig{}, fmt.Errorf("parsing config: %w", err)
	}
	return fc, nil
}

func (c *Config) applyFile(fc fileConfig) {
	if fc.DataSource != "" {
		c.DataSource = fc.DataSource
	}
	if fc.TimeZone != "" {
		c.TimeZone = fc.TimeZone
	}
	if fc.ResultLimit != 0 {
		c.ResultLimit = fc.ResultLimit
	}
	if fc.AuthURL != "" {
		c.AuthURL = fc.AuthURL
	}
}

// resolve validates identifiers and derived values
func (c *Config) resolve(lines, directions []string) error {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return fmt.Errorf("config: timezone %q: %w", c.TimeZone, err)
	}
	c.Location = loc

	c.Lines = c.Lines[:0]
	for _, s := range lines {
		l, err := models.ParseLine(s)
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}
		c.Lines = append(c.Lines, l)
	}
	if len(c.Lines) == 0 {
		return fmt.Errorf("config: at least one line is required")
	}

	c.Directions = c.Directions[:0]
	for _, s := range directions {
		d, err := models.ParseDirection(s)
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}
		c.Directions = append(c.Directions, d)
	}

	if c.ResultLimit < 1 || c.ResultLimit > 20 {
		return fmt.Errorf("config: result limit must be between 1 and 20, got %d", c.ResultLimit)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
		slog.Warn("Ignoring invalid integer", "key", key, "value", value)
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		slog.Warn("Ignoring invalid duration", "key", key, "value", value)
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
