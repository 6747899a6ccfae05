package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config carries the tunables of a marketplace deployment. All fields have
// working defaults so an empty file is a valid configuration.
type Config struct {
	DataDir           string `toml:"DataDir"`
	Env               string `toml:"Env"`
	LogFile           string `toml:"LogFile"`
	GenesisFile       string `toml:"GenesisFile"`
	FeeBps            uint64 `toml:"FeeBps"`
	PaymentHistoryCap int    `toml:"PaymentHistoryCap"`
	ReviewCap         int    `toml:"ReviewCap"`
}

// Default returns the configuration used when no file is supplied.
func Default() *Config {
	return &Config{
		DataDir:           "./data",
		Env:               "local",
		FeeBps:            250,
		PaymentHistoryCap: 256,
		ReviewCap:         512,
	}
}

// Load reads the configuration from the given path. A missing file yields the
// defaults rather than an error so fresh deployments need no setup step.
func Load(path string) (*Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

// Validate enforces parameter bounds before the configuration is applied.
func (c *Config) Validate() error {
	if c.FeeBps > 1000 {
		return fmt.Errorf("config: FeeBps %d exceeds the 1000 bps ceiling", c.FeeBps)
	}
	if c.PaymentHistoryCap < 0 {
		return fmt.Errorf("config: PaymentHistoryCap must not be negative")
	}
	if c.ReviewCap < 0 {
		return fmt.Errorf("config: ReviewCap must not be negative")
	}
	return nil
}
