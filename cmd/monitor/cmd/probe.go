package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"ntp-monitor/internal/config"
	"ntp-monitor/internal/database"
	"ntp-monitor/internal/models"
	"ntp-monitor/internal/monitor"
	"ntp-monitor/internal/ntpclient"
)

var saveResults bool

func init() {
	RootCmd.AddCommand(probeCmd)
	probeCmd.Flags().BoolVar(&saveResults, "save", false, "Store the results in the database")
}

var probeCmd = &cobra.Command{
	Use:   "probe [servers...]",
	Short: "Run a single probe cycle and print the results",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(func(c *config.Config) {
			if len(args) > 0 {
				c.Servers = args
				c.Workers = 0
			}
		})
		if err != nil {
			return err
		}
		loc, err := cfg.Location()
		if err != nil {
			return err
		}

		prober, err := ntpclient.New(cfg.Client)
		if err != nil {
			return err
		}

		var store models.Store
		if saveResults {
			db, err := database.New(cfg.DatabasePath)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := db.InitSchema(); err != nil {
				return err
			}
			store = db
		}

		summary, err := monitor.New(cfg, store, prober).RunCycle(context.Background())
		if err != nil && !errors.Is(err, monitor.ErrStoreUnavailable) {
			return err
		}

		if err := printResults(os.Stdout, summary.Results, loc); err != nil {
			return err
		}
		fmt.Printf("\n---- Cycle Summary ----\n")
		fmt.Printf("Online: %d/%d\n", summary.Online, summary.Probed)
		fmt.Printf("Jitter (stddev of delay across servers): %.3f ms\n", summary.JitterMS)
		fmt.Printf("Average Offset (across servers): %.3f ms\n", summary.MeanOffsetMS)
		fmt.Printf("Duration: %v\n", summary.Duration)

		if err != nil {
			return err
		}
		if saveResults {
			log.Infof("Stored %d results in %s", summary.Probed-summary.StorageFailures, cfg.DatabasePath)
		}
		return nil
	},
}
