package config

import (
	"github.com/sirupsen/logrus"
)

// CachingConfig is the response cache configuration (spec.md §3
// Config.cache_ttl / Config.cache_size).
type CachingConfig struct {
	// MaxCachingTime ceils every cached TTL; zero means no ceiling.
	MaxCachingTime Duration `yaml:"maxTime"`
	// MaxItemsCount bounds the cache before LRU eviction kicks in.
	MaxItemsCount int `yaml:"maxItemsCount" default:"10000"`
}

// IsEnabled implements `config.ValueLogger`.
func (c *CachingConfig) IsEnabled() bool {
	return true
}

// LogValues implements `config.ValueLogger`.
func (c *CachingConfig) LogValues(logger *logrus.Entry) {
	logger.Infof("maxCacheTimeSec = %s", c.MaxCachingTime)
	logger.Infof("maxItemsCount = %d", c.MaxItemsCount)
}
