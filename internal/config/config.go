package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Attribution holds the model parameters. Validated eagerly: a bad parameter
// set would silently break the conservation invariant mid-run.
type Attribution struct {
	HalfLifeDays         float64 `yaml:"half_life_days"`
	FirstTouchCredit     float64 `yaml:"first_touch_credit"`
	LastTouchCredit      float64 `yaml:"last_touch_credit"`
	OvercreditThreshold  float64 `yaml:"overcredit_threshold_pct"`
	UndercreditThreshold float64 `yaml:"undercredit_threshold_pct"`
	ReallocationCapPct   float64 `yaml:"reallocation_cap_pct"`
	ReallocationCapAbs   float64 `yaml:"reallocation_cap_abs"`
	Workers              int     `yaml:"workers"`
}

type Config struct {
	FeedURL     string        `yaml:"feed_url"`
	SpendURL    string        `yaml:"spend_url"`
	Port        string        `yaml:"port"`
	HTTPTimeout time.Duration `yaml:"-"`
	LogLevel    slog.Level    `yaml:"-"`
	Attribution Attribution   `yaml:"attribution"`
}

// Defaults returns the documented attribution defaults.
func Defaults() Attribution {
	return Attribution{
		HalfLifeDays:         7,
		FirstTouchCredit:     0.40,
		LastTouchCredit:      0.40,
		OvercreditThreshold:  5.0,
		UndercreditThreshold: 5.0,
		ReallocationCapPct:   0.20,
		ReallocationCapAbs:   1000,
		Workers:              8,
	}
}

// Load builds the config from an optional YAML file (ATTR_CONFIG) with env
// overrides on top, then validates it.
func Load() (Config, error) {
	cfg := Config{
		Port:        "8080",
		HTTPTimeout: 15 * time.Second,
		LogLevel:    slog.LevelInfo,
		Attribution: Defaults(),
	}

	if path := os.Getenv("ATTR_CONFIG"); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Attribution.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.FeedURL = envOr("FEED_URL", cfg.FeedURL)
	cfg.SpendURL = envOr("SPEND_URL", cfg.SpendURL)
	cfg.Port = envOr("PORT", cfg.Port)

	if v := os.Getenv("HTTP_TIMEOUT_SECONDS"); v != "" {
		if d, err := time.ParseDuration(v + "s"); err == nil {
			cfg.HTTPTimeout = d
		}
	}
	if os.Getenv("LOG_LEVEL") == "debug" {
		cfg.LogLevel = slog.LevelDebug
	}

	a := &cfg.Attribution
	envFloat("ATTR_HALF_LIFE_DAYS", &a.HalfLifeDays)
	envFloat("ATTR_FIRST_TOUCH_CREDIT", &a.FirstTouchCredit)
	envFloat("ATTR_LAST_TOUCH_CREDIT", &a.LastTouchCredit)
	envFloat("ATTR_OVERCREDIT_THRESHOLD_PCT", &a.OvercreditThreshold)
	envFloat("ATTR_UNDERCREDIT_THRESHOLD_PCT", &a.UndercreditThreshold)
	envFloat("ATTR_REALLOCATION_CAP_PCT", &a.ReallocationCapPct)
	envFloat("ATTR_REALLOCATION_CAP_ABS", &a.ReallocationCapAbs)
	if v := os.Getenv("ATTR_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			a.Workers = n
		}
	}
}

// Validate rejects parameter sets that would produce numerically wrong
// attribution.
func (a Attribution) Validate() error {
	if a.HalfLifeDays <= 0 {
		return errors.New("half_life_days must be positive")
	}
	if a.FirstTouchCredit < 0 || a.LastTouchCredit < 0 {
		return errors.New("touch credits must be non-negative")
	}
	if s := a.FirstTouchCredit + a.LastTouchCredit; s > 1 {
		return fmt.Errorf("first_touch_credit + last_touch_credit = %.2f, must not exceed 1", s)
	}
	if a.ReallocationCapPct < 0 || a.ReallocationCapPct > 1 {
		return errors.New("reallocation_cap_pct must be in [0,1]")
	}
	if a.ReallocationCapAbs < 0 {
		return errors.New("reallocation_cap_abs must be non-negative")
	}
	if a.Workers <= 0 {
		return errors.New("workers must be positive")
	}
	return nil
}

func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func envFloat(k string, dst *float64) {
	if v := os.Getenv(k); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}
