// Package config loads the tracker configuration from an optional YAML file,
// a .env file and the process environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-kit/log/level"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	tracker "go-exchange-rate-tracker"
	"go-exchange-rate-tracker/cache"
	"go-exchange-rate-tracker/source"
)

// PathEnv names the variable pointing at an optional YAML config file
const PathEnv = "TRACKER_CONFIG_PATH"

var (
	// ErrNoTargets is returned when no target currency is configured
	ErrNoTargets = errors.New("no target currencies")
	// ErrInvalidCurrency is returned for a malformed currency code
	ErrInvalidCurrency = errors.New("invalid currency code")
	// ErrInvalidProvider is returned for an incomplete or duplicated provider
	ErrInvalidProvider = errors.New("invalid provider")
	// ErrInvalidLog is returned for an unknown log level or format
	ErrInvalidLog = errors.New("invalid log setting")
)

// Config of the tracker process
type Config struct {
	Env       string     `yaml:"env" env:"ENV" env-default:"development"`
	HTTP      HTTP       `yaml:"http"`
	Log       Log        `yaml:"log"`
	Rates     Rates      `yaml:"rates"`
	Cache     Cache      `yaml:"cache"`
	Providers []Provider `yaml:"providers"`
}

type HTTP struct {
	Addr string `yaml:"addr" env:"HTTP_ADDR" env-default:":3001"`
}

type Log struct {
	Level  string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"logfmt"`
}

type Rates struct {
	Base            string        `yaml:"base" env:"BASE_CURRENCY" env-default:"USD"`
	Targets         []string      `yaml:"targets" env:"TARGET_CURRENCIES" env-default:"EUR,GBP,JPY,CAD,AUD,CHF,CNY,INR,MXN,BRL"`
	FetchTimeout    time.Duration `yaml:"fetch_timeout" env:"FETCH_TIMEOUT" env-default:"5s"`
	RefreshInterval time.Duration `yaml:"refresh_interval" env:"REFRESH_INTERVAL" env-default:"0"`
	RetryAfter      time.Duration `yaml:"retry_after" env:"RETRY_AFTER" env-default:"30s"`
}

type Cache struct {
	HardTTL time.Duration `yaml:"hard_ttl" env:"CACHE_HARD_TTL" env-default:"5m"`
	SoftTTL time.Duration `yaml:"soft_ttl" env:"CACHE_SOFT_TTL" env-default:"4m"`
}

// Provider entry of the YAML providers list. Timeout falls back to the fetch timeout.
type Provider struct {
	ID      string        `yaml:"id"`
	URL     string        `yaml:"url"`
	Kind    string        `yaml:"kind"`
	Timeout time.Duration `yaml:"timeout"`
}

// Load reads the given .env files (or ./.env) into the environment, then the YAML
// file named by TRACKER_CONFIG_PATH if set, then the environment. The result is validated.
func Load(envFiles ...string) (*Config, error) {
	// a missing .env file is not an error, the environment alone is enough
	_ = godotenv.Load(envFiles...)

	var cfg Config
	if path := os.Getenv(PathEnv); path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate normalizes currency codes to upper case and checks every setting.
func (c *Config) Validate() error {
	base, err := currency(c.Rates.Base)
	if err != nil {
		return fmt.Errorf("base: %w", err)
	}
	c.Rates.Base = string(base)

	if len(c.Rates.Targets) == 0 {
		return ErrNoTargets
	}
	for i, t := range c.Rates.Targets {
		code, err := currency(t)
		if err != nil {
			return fmt.Errorf("target %d: %w", i, err)
		}
		c.Rates.Targets[i] = string(code)
	}

	if c.Cache.SoftTTL <= 0 || c.Cache.SoftTTL >= c.Cache.HardTTL {
		return fmt.Errorf("%w: soft %v, hard %v", cache.ErrInvalidTTL, c.Cache.SoftTTL, c.Cache.HardTTL)
	}

	if _, err := c.LevelOption(); err != nil {
		return err
	}
	switch c.Log.Format {
	case "logfmt", "json":
	default:
		return fmt.Errorf("%w: format %q", ErrInvalidLog, c.Log.Format)
	}

	seen := make(map[string]bool, len(c.Providers))
	for i, p := range c.Providers {
		if p.ID == "" || p.URL == "" {
			return fmt.Errorf("%w: provider %d needs an id and a url", ErrInvalidProvider, i)
		}
		if seen[p.ID] {
			return fmt.Errorf("%w: duplicate id %q", ErrInvalidProvider, p.ID)
		}
		seen[p.ID] = true
		if _, err := source.NormalizerFor(source.Kind(p.Kind)); err != nil {
			return fmt.Errorf("provider %q: %w", p.ID, err)
		}
	}
	return nil
}

// Base the currency all rates are quoted against
func (c *Config) Base() tracker.Currency {
	return tracker.Currency(c.Rates.Base)
}

// Targets the tracked currencies in configuration order
func (c *Config) Targets() []tracker.Currency {
	targets := make([]tracker.Currency, len(c.Rates.Targets))
	for i, t := range c.Rates.Targets {
		targets[i] = tracker.Currency(t)
	}
	return targets
}

// SourceProviders the configured providers, or the defaults when none are configured.
// Providers without their own timeout use the fetch timeout.
func (c *Config) SourceProviders() []source.Provider {
	var providers []source.Provider
	if len(c.Providers) == 0 {
		providers = source.DefaultProviders()
	} else {
		for _, p := range c.Providers {
			providers = append(providers, source.Provider{
				ID:      p.ID,
				URL:     p.URL,
				Kind:    source.Kind(p.Kind),
				Timeout: p.Timeout,
			})
		}
	}
	for i := range providers {
		if providers[i].Timeout <= 0 {
			providers[i].Timeout = c.Rates.FetchTimeout
		}
	}
	return providers
}

// LevelOption the go-kit level filter for the configured log level
func (c *Config) LevelOption() (level.Option, error) {
	switch strings.ToLower(c.Log.Level) {
	case "debug":
		return level.AllowDebug(), nil
	case "info", "":
		return level.AllowInfo(), nil
	case "warn":
		return level.AllowWarn(), nil
	case "error":
		return level.AllowError(), nil
	}
	return nil, fmt.Errorf("%w: level %q", ErrInvalidLog, c.Log.Level)
}

func currency(code string) (tracker.Currency, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != 3 {
		return "", fmt.Errorf("%w: %q", ErrInvalidCurrency, code)
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return "", fmt.Errorf("%w: %q", ErrInvalidCurrency, code)
		}
	}
	return tracker.Currency(code), nil
}
