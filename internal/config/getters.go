package config

import (
	"path/filepath"

	"github.com/nibzard/tasklane/internal/storage"
	"github.com/nibzard/tasklane/internal/usage"
)

// LogDir is where per-run event logs are written.
func (c *Config) LogDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// StorageConfig returns the backend selection for storage.Open.
func (c *Config) StorageConfig() storage.Config {
	return storage.Config{
		Kind: c.Storage,
		Dir:  c.DataDir,
		Redis: storage.RedisConfig{
			Addr:     c.Redis.Addr,
			Password: c.Redis.Password,
			DB:       c.Redis.DB,
			Prefix:   c.Redis.Prefix,
		},
	}
}

// Rates returns the built-in pricing table with [pricing] entries applied
// on top.
func (c *Config) Rates() map[string]usage.Rate {
	rates := usage.DefaultRates()
	for model, r := range c.Pricing {
		rates[model] = r
	}
	return rates
}
