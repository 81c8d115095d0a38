package config

import (
	"github.com/spf13/pflag"
)

// Flags holds command-line overrides for a Config
type Flags struct {
	servers      []string
	workers      int
	client       string
	databasePath string
	port         int
	timeZone     string
	fs           *pflag.FlagSet
}

// BindFlags registers config flags on fs, using cfg for the defaults shown in help
func BindFlags(fs *pflag.FlagSet, cfg Config) *Flags {
	f := &Flags{fs: fs}
	fs.StringSliceVar(&f.servers, "servers", cfg.Servers, "Comma-separated NTP servers to monitor")
	fs.Duration("interval", cfg.Interval, "Probe cycle interval")
	fs.Duration("timeout", cfg.Timeout, "Per-probe timeout")
	fs.IntVar(&f.workers, "workers", cfg.Workers, "Maximum concurrent probes per cycle (0 = one per server)")
	fs.StringVar(&f.client, "client", cfg.Client, "Probe client: beevik or sntp")
	fs.StringVar(&f.databasePath, "db", cfg.DatabasePath, "Database path")
	fs.IntVar(&f.port, "port", cfg.Port, "Web server port")
	fs.StringVar(&f.timeZone, "timezone", cfg.TimeZone, "IANA timezone used for API timestamps")
	return f
}

// Apply copies every flag the user set explicitly onto cfg
func (f *Flags) Apply(cfg *Config) {
	if f.fs.Changed("servers") {
		cfg.Servers = f.servers
	}
	if f.fs.Changed("interval") {
		cfg.Interval, _ = f.fs.GetDuration("interval")
	}
	if f.fs.Changed("timeout") {
		cfg.Timeout, _ = f.fs.GetDuration("timeout")
	}
	if f.fs.Changed("workers") {
		cfg.Workers = f.workers
	}
	if f.fs.Changed("client") {
		cfg.Client = f.client
	}
	if f.fs.Changed("db") {
		cfg.DatabasePath = f.databasePath
	}
	if f.fs.Changed("port") {
		cfg.Port = f.port
	}
	if f.fs.Changed("timezone") {
		cfg.TimeZone = f.timeZone
	}
}
