package config

import (
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"
)

const defaultUpstreamPort = 53

var validHost = regexp.MustCompile(
	`^(([a-zA-Z0-9]|[a-zA-Z0-9][a-zA-Z0-9\-]*[a-zA-Z0-9])\.)*([A-Za-z0-9]|[A-Za-z0-9][A-Za-z0-9\-]*[A-Za-z0-9])$`)

// Upstream is a single forwarder socket (spec.md §3 Config.forwarders).
// Forwarding in this server is UDP-only (DoT/DoH are explicit
// Non-goals), so unlike the teacher's multi-protocol Upstream, there is
// no Net/Path/CommonName to carry.
type Upstream struct {
	Host string
	Port uint16
}

// IsDefault returns true if u is the zero value.
func (u Upstream) IsDefault() bool {
	return u == Upstream{}
}

// String returns the "host:port" form of u.
func (u Upstream) String() string {
	if u.IsDefault() {
		return "no upstream"
	}

	return net.JoinHostPort(u.Host, strconv.Itoa(int(u.Port)))
}

// UnmarshalYAML implements `yaml.Unmarshaler` so a Config file may list
// forwarders as plain "host:port" strings.
func (u *Upstream) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}

	upstream, err := ParseUpstream(s)
	if err != nil {
		return fmt.Errorf("can't convert upstream %q: %w", s, err)
	}

	*u = upstream

	return nil
}

// ParseUpstream parses a forwarder address of the form "host[:port]",
// defaulting the port to 53 when omitted.
func ParseUpstream(upstream string) (Upstream, error) {
	upstream = strings.TrimSpace(upstream)
	if upstream == "" {
		return Upstream{}, nil
	}

	host, portString, err := net.SplitHostPort(upstream)

	var port uint16

	if err == nil {
		p, convErr := strconv.ParseUint(portString, 10, 16)
		if convErr != nil || p < 1 {
			return Upstream{}, fmt.Errorf("invalid port %q", portString)
		}

		port = uint16(p)
	} else {
		host = upstream
		port = defaultUpstreamPort
		host = strings.TrimPrefix(host, "[")
		host = strings.TrimSuffix(host, "]")
	}

	if ip := net.ParseIP(host); ip == nil {
		if !validHost.MatchString(host) {
			return Upstream{}, fmt.Errorf("invalid host %q", host)
		}
	}

	return Upstream{Host: host, Port: port}, nil
}

// Addr returns the dialable "host:port" address for this forwarder.
func (u Upstream) Addr() string {
	return net.JoinHostPort(u.Host, strconv.Itoa(int(u.Port)))
}
