package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
	CacheNone   = "none"
)

// Weight calculation modes, in the spelling the shipping package parses.
const (
	WeightActual  = "actual"
	WeightPerItem = "per_item"
	WeightFixed   = "fixed"
	WeightMinimum = "minimum"
)

type Config struct {
	Env      string
	LogLevel string
	HTTPAddr string

	PerKgRate           decimal.Decimal
	MinimumCharge       decimal.Decimal
	DefaultItemWeightKg decimal.Decimal

	WeightCalculation string
	FixedWeightKg     decimal.Decimal
	MinimumWeightKg   decimal.Decimal

	CacheBackend  string
	CacheTTL      time.Duration
	RedisAddr     string
	RedisPassword string

	BatchConcurrency int

	// RateFile is the YAML rate card that was applied, if any.
	RateFile string
	// EnvFileLoaded is set when a .env file was found and loaded.
	EnvFileLoaded bool
}

// RateCard is the optional YAML tariff file. Values decode through
// decimal's UnmarshalText, so 0.1 stays exactly 0.1.
type RateCard struct {
	PerKgRate           *decimal.Decimal `yaml:"per_kg_rate"`
	MinimumCharge       *decimal.Decimal `yaml:"minimum_charge"`
	DefaultItemWeightKg *decimal.Decimal `yaml:"default_item_weight_kg"`
	WeightCalculation   *string          `yaml:"weight_calculation"`
	FixedWeightKg       *decimal.Decimal `yaml:"fixed_weight_kg"`
	MinimumWeightKg     *decimal.Decimal `yaml:"minimum_weight_kg"`
}

func defaults() Config {
	return Config{
		Env:                 "dev",
		LogLevel:            "info",
		HTTPAddr:            ":8080",
		PerKgRate:           decimal.NewFromInt(60),
		MinimumCharge:       decimal.NewFromInt(60),
		DefaultItemWeightKg: decimal.RequireFromString("0.5"),
		WeightCalculation:   WeightActual,
		FixedWeightKg:       decimal.RequireFromString("0.5"),
		MinimumWeightKg:     decimal.Zero,
		CacheBackend:        CacheMemory,
		CacheTTL:            24 * time.Hour,
		BatchConcurrency:    4,
	}
}

// Load reads .env (when present), then the rate card named by
// SHIPPING_RATE_FILE, then the environment. Later sources win.
func Load() (Config, error) {
	cfg := defaults()

	if err := godotenv.Load(".env"); err == nil {
		cfg.EnvFileLoaded = true
	} else if !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	if path := os.Getenv("SHIPPING_RATE_FILE"); path != "" {
		if err := cfg.applyRateFile(path); err != nil {
			return Config{}, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyRateFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read rate file: %w", err)
	}

	var card RateCard
	if err := yaml.Unmarshal(raw, &card); err != nil {
		return fmt.Errorf("parse rate file %s: %w", path, err)
	}

	if card.PerKgRate != nil {
		c.PerKgRate = *card.PerKgRate
	}
	if card.MinimumCharge != nil {
		c.MinimumCharge = *card.MinimumCharge
	}
	if card.DefaultItemWeightKg != nil {
		c.DefaultItemWeightKg = *card.DefaultItemWeightKg
	}
	if card.WeightCalculation != nil {
		c.WeightCalculation = strings.ToLower(strings.TrimSpace(*card.WeightCalculation))
	}
	if card.FixedWeightKg != nil {
		c.FixedWeightKg = *card.FixedWeightKg
	}
	if card.MinimumWeightKg != nil {
		c.MinimumWeightKg = *card.MinimumWeightKg
	}
	c.RateFile = path
	return nil
}

func (c *Config) applyEnv() error {
	c.Env = getEnv("APP_ENV", c.Env)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.HTTPAddr = getEnv("HTTP_ADDR", c.HTTPAddr)
	c.CacheBackend = strings.ToLower(getEnv("QUOTE_CACHE", c.CacheBackend))
	c.RedisAddr = getEnv("REDIS_ADDR", c.RedisAddr)
	c.RedisPassword = getEnv("REDIS_PASSWORD", c.RedisPassword)
	c.WeightCalculation = strings.ToLower(getEnv("SHIPPING_WEIGHT_CALCULATION", c.WeightCalculation))

	var err error
	if c.PerKgRate, err = getEnvDecimal("SHIPPING_PER_KG_RATE", c.PerKgRate); err != nil {
		return err
	}
	if c.MinimumCharge, err = getEnvDecimal("SHIPPING_MINIMUM_CHARGE", c.MinimumCharge); err != nil {
		return err
	}
	if c.DefaultItemWeightKg, err = getEnvDecimal("SHIPPING_DEFAULT_ITEM_WEIGHT_KG", c.DefaultItemWeightKg); err != nil {
		return err
	}
	if c.FixedWeightKg, err = getEnvDecimal("SHIPPING_FIXED_WEIGHT_KG", c.FixedWeightKg); err != nil {
		return err
	}
	if c.MinimumWeightKg, err = getEnvDecimal("SHIPPING_MINIMUM_WEIGHT_KG", c.MinimumWeightKg); err != nil {
		return err
	}
	if c.CacheTTL, err = getEnvDuration("QUOTE_CACHE_TTL", c.CacheTTL); err != nil {
		return err
	}
	if c.BatchConcurrency, err = getEnvInt("QUOTE_BATCH_CONCURRENCY", c.BatchConcurrency); err != nil {
		return err
	}
	return nil
}

func (c Config) Validate() error {
	if !c.PerKgRate.IsPositive() {
		return fmt.Errorf("per kg rate must be positive, got %s", c.PerKgRate)
	}
	if c.MinimumCharge.IsNegative() {
		return fmt.Errorf("minimum charge must not be negative, got %s", c.MinimumCharge)
	}
	if c.DefaultItemWeightKg.IsNegative() {
		return fmt.Errorf("default item weight must not be negative, got %s", c.DefaultItemWeightKg)
	}
	if c.MinimumWeightKg.IsNegative() {
		return fmt.Errorf("minimum weight must not be negative, got %s", c.MinimumWeightKg)
	}
	switch c.WeightCalculation {
	case "", WeightActual:
	case WeightPerItem:
		if !c.DefaultItemWeightKg.IsPositive() {
			return errors.New("weight calculation per_item needs a positive default item weight")
		}
	case WeightFixed:
		if !c.FixedWeightKg.IsPositive() {
			return fmt.Errorf("weight calculation fixed needs a positive fixed weight, got %s", c.FixedWeightKg)
		}
	case WeightMinimum:
		if !c.MinimumWeightKg.IsPositive() {
			return fmt.Errorf("weight calculation minimum needs a positive minimum weight, got %s", c.MinimumWeightKg)
		}
	default:
		return fmt.Errorf("unknown weight calculation %q", c.WeightCalculation)
	}
	if c.BatchConcurrency <= 0 {
		return fmt.Errorf("batch concurrency must be positive, got %d", c.BatchConcurrency)
	}
	switch c.CacheBackend {
	case CacheMemory, CacheNone:
	case CacheRedis:
		if c.RedisAddr == "" {
			return errors.New("QUOTE_CACHE=redis needs REDIS_ADDR")
		}
	default:
		return fmt.Errorf("unknown quote cache %q", c.CacheBackend)
	}
	return nil
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getEnvDecimal(key string, def decimal.Decimal) (decimal.Decimal, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func getEnvDuration(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
