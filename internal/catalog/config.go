package catalog

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config настройки клиента каталога (CATALOG_*)
type Config struct {
	BaseURL      string        `env:"CATALOG_BASE_URL" envDefault:"https://dummyjson.com"`
	Timeout      time.Duration `env:"CATALOG_TIMEOUT" envDefault:"10s"`
	MaxRetries   int           `env:"CATALOG_MAX_RETRIES" envDefault:"3"`
	RetryBackoff time.Duration `env:"CATALOG_RETRY_BACKOFF" envDefault:"100ms"`
	// RateLimit запросов в секунду; 0 выключает лимитер
	RateLimit float64       `env:"CATALOG_RATE_LIMIT" envDefault:"10"`
	CacheTTL  time.Duration `env:"CATALOG_CACHE_TTL" envDefault:"5m"`
	PageLimit int           `env:"CATALOG_PAGE_LIMIT" envDefault:"12"`
}

// LoadEnv заполняет Config из переменных окружения
func LoadEnv(cfg *Config) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse catalog env: %w", err)
	}
	return cfg.Validate()
}

// Validate проверяет значения
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("CATALOG_BASE_URL is required")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("CATALOG_TIMEOUT must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("CATALOG_MAX_RETRIES must be >= 0")
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("CATALOG_RATE_LIMIT must be >= 0")
	}
	if c.PageLimit <= 0 {
		return fmt.Errorf("CATALOG_PAGE_LIMIT must be positive")
	}
	return nil
}
