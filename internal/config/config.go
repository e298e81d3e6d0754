package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"fxledger/internal/core"
)

type Config struct {
	// HTTP Server
	Port string

	// Backend selection
	DataBackend  string
	SQLiteDBPath string

	// AMQP, disabled when AMQPURL is empty
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Rate providers
	RatesProviderURL         string
	RatesFallbackProviderURL string
	ExchangerateHostKey      string
	RatesFetchTimeout        time.Duration
	RatesCacheTTL            time.Duration
	RatesWaitTimeout         time.Duration
	RatesRefreshInterval     time.Duration

	DefaultCurrency string

	// Logging
	LogLevel  string
	LogFormat string
}

// Load reads the configuration from the environment, after loading a .env
// file from the working directory when present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port: getEnv("PORT", "8081"),

		DataBackend:  getEnv("DATA_BACKEND", "memory"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/fxledger.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "fxledger"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "rates_refreshed"),

		RatesProviderURL:         getEnv("RATES_PROVIDER_URL", "https://api.exchangerate.host"),
		RatesFallbackProviderURL: getEnv("RATES_FALLBACK_PROVIDER_URL", "https://api.frankfurter.app"),
		ExchangerateHostKey:      getEnv("EXCHANGERATE_HOST_KEY", ""),
		RatesFetchTimeout:        getEnvDuration("RATES_FETCH_TIMEOUT", 10*time.Second),
		RatesCacheTTL:            getEnvDuration("RATES_CACHE_TTL", 5*time.Minute),
		RatesWaitTimeout:         getEnvDuration("RATES_WAIT_TIMEOUT", 2*time.Second),
		RatesRefreshInterval:     getEnvDuration("RATES_REFRESH_INTERVAL", 15*time.Minute),

		DefaultCurrency: core.NormalizeCurrency(getEnv("DEFAULT_CURRENCY", "EUR")),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}
}

// Validate validates the configuration and returns an error listing every problem
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	validBackends := []string{"memory", "sqlite"}
	isValidBackend := false
	for _, backend := range validBackends {
		if c.DataBackend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if c.DataBackend == "sqlite" {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0o755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	for name, raw := range map[string]string{
		"RATES_PROVIDER_URL":          c.RatesProviderURL,
		"RATES_FALLBACK_PROVIDER_URL": c.RatesFallbackProviderURL,
	} {
		if raw == "" {
			continue
		}
		if u, err := url.Parse(raw); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errors = append(errors, fmt.Sprintf("invalid %s '%s': must be an absolute http(s) URL", name, raw))
		}
	}
	if c.RatesProviderURL == "" && c.RatesFallbackProviderURL == "" {
		errors = append(errors, "at least one of RATES_PROVIDER_URL and RATES_FALLBACK_PROVIDER_URL must be set")
	}

	if c.RatesFetchTimeout < 100*time.Millisecond || c.RatesFetchTimeout > time.Minute {
		errors = append(errors, fmt.Sprintf("invalid rates fetch timeout %v: must be between 100ms and 1m", c.RatesFetchTimeout))
	}
	if c.RatesCacheTTL < time.Second {
		errors = append(errors, fmt.Sprintf("invalid rates cache TTL %v: must be at least 1 second", c.RatesCacheTTL))
	}
	if c.RatesWaitTimeout < 0 {
		errors = append(errors, fmt.Sprintf("invalid rates wait timeout %v: must not be negative", c.RatesWaitTimeout))
	}
	if c.RatesRefreshInterval < time.Minute || c.RatesRefreshInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid rates refresh interval %v: must be between 1 minute and 24 hours", c.RatesRefreshInterval))
	}

	if err := core.ValidateCurrency(c.DefaultCurrency); err != nil || !core.KnownCurrency(c.DefaultCurrency) {
		errors = append(errors, fmt.Sprintf("invalid default currency '%s': must be an ISO 4217 code", c.DefaultCurrency))
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of debug, info, warn, error", c.LogLevel))
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be text or json", c.LogFormat))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
