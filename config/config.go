// Package config holds the validated runtime configuration the core
// consumes (spec.md §3 Config, §6 Configuration). String/integer parsing
// from environment or flags is the loader's responsibility; the core
// itself only ever sees a populated Config value.
package config

import (
	"fmt"
	"os"

	"github.com/creasty/defaults"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

// DefaultBind is used when the config omits `bind`.
const DefaultBind = "0.0.0.0:53"

const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// NSRecord is one NS RRdata entry injected into the cache at startup
// (spec.md §3 Config.ns_records).
type NSRecord struct {
	Target string `yaml:"target"`
	TTL    uint32 `yaml:"ttl" default:"3600"`
}

// LogConfig is the ambient logging configuration (SPEC_FULL.md [LOG]).
type LogConfig struct {
	Level     string `yaml:"level"     default:"info"`
	Format    string `yaml:"format"    default:"text"`
	Timestamp bool   `yaml:"timestamp" default:"true"`
}

// Config is the fully validated configuration the core receives. Field
// names track spec.md §3's Config table; yaml tags are for the optional
// file loader below, not required by the core itself.
type Config struct {
	Bind string `yaml:"bind" default:"0.0.0.0:53"`

	DBPath string `yaml:"dbPath"`

	DNSSEC DNSSEC `yaml:"dnssec"`

	Forwarders []Upstream `yaml:"forwarders"`

	NSRecords []NSRecord `yaml:"nsRecords"`

	Caching CachingConfig `yaml:"caching"`

	Authoritative bool `yaml:"authoritative" default:"true"`

	MaxPacketSize uint16 `yaml:"maxPacketSize" default:"4096"`

	DefaultDomain string `yaml:"defaultDomain"`

	// DefaultIP seeds the apex/www/api/mail/ns1/ns2 A records, MX, SPF
	// TXT, NS and SOA the first time the configured store is found to
	// hold no rows for DefaultDomain, so a freshly deployed server answers something
	// for its own zone instead of NXDOMAIN-ing until an operator
	// populates it by hand. Blank disables seeding.
	DefaultIP string `yaml:"defaultIp"`

	// EnableIPv6 gates AAAA answers from the zone store; false means the
	// zone resolver refuses AAAA queries for names within DefaultDomain
	// outright regardless of whether an AAAA record exists for the name.
	EnableIPv6 bool `yaml:"enableIPv6" default:"false"`

	Log LogConfig `yaml:"log"`

	// MetricsAddr is the ambient Prometheus HTTP listen address; empty
	// disables the metrics endpoint. This is not part of spec.md's DNS
	// wire protocol surface (no DoH/DoT), so it doesn't collide with
	// the Non-goals.
	MetricsAddr string `yaml:"metricsAddr"`
}

// LoadConfig reads and parses a YAML file at path, applying struct-tag
// defaults first, the way the teacher's config loader does with
// `github.com/creasty/defaults`.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}

	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("config: set defaults: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate enforces invariants the rest of the core relies on: an empty
// Bind is filled in with DefaultBind, and when authoritative, an empty
// DefaultDomain is an error (spec.md §3, §4.2 Classify matches qname
// against the apex).
func (c *Config) Validate() error {
	if c.Bind == "" {
		c.Bind = DefaultBind
	}

	if c.Authoritative && c.DefaultDomain == "" {
		return fmt.Errorf("config: authoritative=true requires default_domain")
	}

	if c.Log.Format != "" && c.Log.Format != LogFormatText && c.Log.Format != LogFormatJSON {
		return fmt.Errorf("config: log format must be %q or %q", LogFormatText, LogFormatJSON)
	}

	return nil
}

// LogConfig logs the top-level configuration, the way the teacher's
// server startup banner does (server/server.go printConfiguration).
func (c *Config) LogConfig(logger *logrus.Entry) {
	logger.Infof("bind = %s", c.Bind)
	logger.Infof("authoritative = %t", c.Authoritative)
	logger.Infof("default_domain = %s", c.DefaultDomain)
	logger.Infof("enable_ipv6 = %t", c.EnableIPv6)
	logger.Infof("max_packet_size = %d", c.MaxPacketSize)
	c.DNSSEC.LogConfig(logger)
	c.Caching.LogValues(logger)

	if len(c.Forwarders) == 0 {
		logger.Info("forwarders = none")
	} else {
		for _, f := range c.Forwarders {
			logger.Infof("forwarder = %s", f)
		}
	}
}
