package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ntp-monitor/internal/config"
	"ntp-monitor/internal/database"
)

func init() {
	RootCmd.AddCommand(latestCmd)
}

// openStore opens the configured database for reading
func openStore() (*database.DB, config.Config, error) {
	cfg, err := loadConfig(nil)
	if err != nil {
		return nil, cfg, err
	}
	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		return nil, cfg, err
	}
	if err := db.InitSchema(); err != nil {
		db.Close()
		return nil, cfg, err
	}
	return db, cfg, nil
}

var latestCmd = &cobra.Command{
	Use:   "latest",
	Short: "Print the most recent result of every server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, cfg, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()
		loc, err := cfg.Location()
		if err != nil {
			return err
		}

		results, err := db.LatestPerServer(context.Background())
		if err != nil {
			return err
		}
		if len(results) == 0 {
			fmt.Println("No results stored yet")
			return nil
		}
		return printResults(os.Stdout, results, loc)
	},
}
