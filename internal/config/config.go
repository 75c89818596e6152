package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	Scraper  ScraperConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Logging  LoggingConfig
}

type ServerConfig struct {
	Port            string
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// ScraperConfig is fixed for the lifetime of a scraping session.
type ScraperConfig struct {
	BaseURL         string
	TargetBrands    []string
	UseMobileUA     bool
	Timeout         time.Duration
	MaxRetries      int
	RetryDelay      time.Duration
	MinDelay        time.Duration
	MaxDelay        time.Duration
	ConcurrentLimit int
	FetchMode       string // "http" or "browser"
	AcceptLanguage  string
	DefaultCurrency string
	Headless        bool
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	MaxConns int32
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type LoggingConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnvOrDefault("SERVER_PORT", "8080"),
			Host:            getEnvOrDefault("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:     getDurationOrDefault("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getDurationOrDefault("SERVER_WRITE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Scraper: ScraperConfig{
			BaseURL:         getEnvOrDefault("SCRAPER_BASE_URL", "https://www.farfetch.com"),
			TargetBrands:    getStringSliceOrDefault("SCRAPER_TARGET_BRANDS", nil),
			UseMobileUA:     getBoolOrDefault("SCRAPER_USE_MOBILE_UA", true),
			Timeout:         getDurationOrDefault("SCRAPER_TIMEOUT", 90*time.Second),
			MaxRetries:      getIntOrDefault("SCRAPER_MAX_RETRIES", 3),
			RetryDelay:      getDurationOrDefault("SCRAPER_RETRY_DELAY", 5*time.Second),
			MinDelay:        getDurationOrDefault("SCRAPER_MIN_DELAY", 3*time.Second),
			MaxDelay:        getDurationOrDefault("SCRAPER_MAX_DELAY", 8*time.Second),
			ConcurrentLimit: getIntOrDefault("SCRAPER_CONCURRENT_LIMIT", 2),
			FetchMode:       getEnvOrDefault("SCRAPER_FETCH_MODE", "http"),
			AcceptLanguage:  getEnvOrDefault("SCRAPER_ACCEPT_LANGUAGE", "en-US,en;q=0.9"),
			DefaultCurrency: getEnvOrDefault("SCRAPER_DEFAULT_CURRENCY", "USD"),
			Headless:        getBoolOrDefault("SCRAPER_HEADLESS", true),
		},
		Database: DatabaseConfig{
			Host:     getEnvOrDefault("DB_HOST", "localhost"),
			Port:     getIntOrDefault("DB_PORT", 5432),
			User:     getEnvOrDefault("DB_USER", "postgres"),
			Password: getEnvOrDefault("DB_PASSWORD", ""),
			DBName:   getEnvOrDefault("DB_NAME", "farfetch_scraper"),
			MaxConns: int32(getIntOrDefault("DB_MAX_CONNS", 10)),
		},
		Redis: RedisConfig{
			Addr:     getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
			Password: getEnvOrDefault("REDIS_PASSWORD", ""),
			DB:       getIntOrDefault("REDIS_DB", 0),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "json"),
		},
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	return c.Scraper.Validate()
}

// Validate rejects settings the orchestrator cannot safely run with.
// This is the only hard failure in the scraping path.
func (s *ScraperConfig) Validate() error {
	if s.Timeout <= 0 {
		return fmt.Errorf("SCRAPER_TIMEOUT must be positive")
	}
	if s.MaxRetries < 0 {
		return fmt.Errorf("SCRAPER_MAX_RETRIES must not be negative")
	}
	if s.RetryDelay < 0 {
		return fmt.Errorf("SCRAPER_RETRY_DELAY must not be negative")
	}
	if s.MinDelay < 0 || s.MinDelay > s.MaxDelay {
		return fmt.Errorf("SCRAPER_MIN_DELAY must be within [0, SCRAPER_MAX_DELAY]")
	}
	if s.ConcurrentLimit < 1 {
		return fmt.Errorf("SCRAPER_CONCURRENT_LIMIT must be at least 1")
	}
	if s.FetchMode != "http" && s.FetchMode != "browser" {
		return fmt.Errorf("SCRAPER_FETCH_MODE must be \"http\" or \"browser\"")
	}
	return nil
}

// MatchesBrand reports whether the brand passes the target-brand filter.
// An empty filter admits everything; comparison is case-insensitive.
func (s *ScraperConfig) MatchesBrand(brand string) bool {
	if len(s.TargetBrands) == 0 {
		return true
	}
	for _, target := range s.TargetBrands {
		if strings.EqualFold(strings.TrimSpace(target), strings.TrimSpace(brand)) {
			return true
		}
	}
	return false
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getStringSliceOrDefault(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return defaultValue
}
