package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v2"
)

// Supported probe clients
const (
	ClientBeevik = "beevik"
	ClientSNTP   = "sntp"
)

// DefaultServers is the list of NTP servers monitored when nothing else is configured
var DefaultServers = []string{
	"157.20.66.8",
	"157.20.67.8",
	"14.139.60.103",
	"14.139.60.106",
	"14.139.60.107",
	"time.nplindia.in",
	"time.nplindia.org",
	"samay1.nic.in",
	"samay2.nic.in",
	"time.nist.gov",
	"pool.ntp.org",
	"time.windows.com",
	"time.google.com",
	"asia.pool.ntp.org",
	"uk.pool.ntp.org",
}

// Config holds all configuration for the NTP monitor
type Config struct {
	Servers      []string      `yaml:"servers"`
	Interval     time.Duration `yaml:"interval"`
	Timeout      time.Duration `yaml:"timeout"`
	Workers      int           `yaml:"workers"`
	Client       string        `yaml:"client"`
	DatabasePath string        `yaml:"database_path"`
	Port         int           `yaml:"port"`
	TimeZone     string        `yaml:"timezone"`
}

// Error is returned when the configuration cannot be used
type Error struct {
	Field  string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("invalid config: %s %s", e.Field, e.Reason)
}

// Default returns the configuration used when no file or flags override it
func Default() Config {
	servers := make([]string, len(DefaultServers))
	copy(servers, DefaultServers)
	return Config{
		Servers:      servers,
		Interval:     5 * time.Minute,
		Timeout:      5 * time.Second,
		Client:       ClientBeevik,
		DatabasePath: "ntp_data.db",
		Port:         5000,
		TimeZone:     "UTC",
	}
}

// ReadConfig reads yaml from path on top of the defaults
func ReadConfig(path string) (*Config, error) {
	c := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.UnmarshalStrict(data, &c); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &c, nil
}

// Normalize trims server names, drops empty entries and fills derived defaults
func (c *Config) Normalize() {
	servers := make([]string, 0, len(c.Servers))
	for _, s := range c.Servers {
		if s = strings.TrimSpace(s); s != "" {
			servers = append(servers, s)
		}
	}
	c.Servers = servers
	if c.Workers <= 0 {
		c.Workers = len(c.Servers)
	}
}

// Location returns the display timezone
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.TimeZone)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if len(c.Servers) == 0 {
		return &Error{Field: "servers", Reason: "must list at least one server"}
	}
	seen := make(map[string]bool, len(c.Servers))
	for _, s := range c.Servers {
		if seen[s] {
			return &Error{Field: "servers", Reason: fmt.Sprintf("lists %s more than once", s)}
		}
		seen[s] = true
	}
	if c.Interval <= 0 {
		return &Error{Field: "interval", Reason: "must be positive"}
	}
	if c.Timeout <= 0 {
		return &Error{Field: "timeout", Reason: "must be positive"}
	}
	if c.Timeout >= c.Interval {
		return &Error{Field: "timeout", Reason: "must be shorter than interval"}
	}
	if c.Workers <= 0 {
		return &Error{Field: "workers", Reason: "must be positive"}
	}
	if c.Client != ClientBeevik && c.Client != ClientSNTP {
		return &Error{Field: "client", Reason: fmt.Sprintf("must be %s or %s, got %q", ClientBeevik, ClientSNTP, c.Client)}
	}
	if c.DatabasePath == "" {
		return &Error{Field: "database_path", Reason: "cannot be empty"}
	}
	if c.Port <= 0 || c.Port > 65535 {
		return &Error{Field: "port", Reason: "must be between 1 and 65535"}
	}
	if _, err := c.Location(); err != nil {
		return &Error{Field: "timezone", Reason: err.Error()}
	}
	return nil
}
