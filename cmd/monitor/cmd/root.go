package cmd

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"ntp-monitor/internal/config"
)

// RootCmd is the main entry point of the monitor CLI
var RootCmd = &cobra.Command{
	Use:           "ntp-monitor",
	Short:         "Monitor clock offset and delay of a fixed set of NTP servers",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return ConfigureLogging()
	},
}

var (
	configPath string
	logLevel   string
	logFormat  string
	cfgFlags   *config.Flags
)

func init() {
	pf := RootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "", "Path to a YAML config file")
	pf.StringVar(&logLevel, "loglevel", "info", "Set a log level. Can be: debug, info, warning, error")
	pf.StringVar(&logFormat, "logformat", "text", "Set a log format. Can be: text, json")
	cfgFlags = config.BindFlags(pf, config.Default())
}

// ConfigureLogging applies --loglevel and --logformat
func ConfigureLogging() error {
	switch logLevel {
	case "debug":
		log.SetLevel(log.DebugLevel)
	case "info":
		log.SetLevel(log.InfoLevel)
	case "warning":
		log.SetLevel(log.WarnLevel)
	case "error":
		log.SetLevel(log.ErrorLevel)
	default:
		return fmt.Errorf("unrecognized log level: %v", logLevel)
	}

	switch logFormat {
	case "text":
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	default:
		return fmt.Errorf("unrecognized log format: %v", logFormat)
	}
	return nil
}

// loadConfig reads the config file if given, overlays flags, applies
// override and validates the result
func loadConfig(override func(*config.Config)) (config.Config, error) {
	cfg := config.Default()
	if configPath != "" {
		c, err := config.ReadConfig(configPath)
		if err != nil {
			return config.Config{}, err
		}
		cfg = *c
	}
	cfgFlags.Apply(&cfg)
	if override != nil {
		override(&cfg)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// Execute is the main entry point for CLI interface
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}
