package config

import (
	"github.com/sirupsen/logrus"
)

// DNSSEC is the configuration of the response-signing key (spec.md §3
// Config.dnssec_key_file). An empty KeyFile disables signing: answers
// are still served, just never get an RRSIG (spec.md §7 SigningFailure
// is not reached — there is simply nothing to sign).
type DNSSEC struct {
	KeyFile string `yaml:"keyFile"`
}

// IsEnabled returns true if a key file is configured.
func (c *DNSSEC) IsEnabled() bool {
	return c.KeyFile != ""
}

// LogConfig logs the DNSSEC configuration.
func (c *DNSSEC) LogConfig(logger *logrus.Entry) {
	if c.IsEnabled() {
		logger.Infof("signing enabled, key file = %s", c.KeyFile)
	} else {
		logger.Info("signing disabled, no dnssec_key_file configured")
	}
}
