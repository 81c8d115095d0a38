package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"ntp-monitor/internal/report"
)

var (
	reportHours int
	reportOut   string
)

func init() {
	RootCmd.AddCommand(reportCmd)
	reportCmd.Flags().IntVar(&reportHours, "hours", 24, "Hours of data to include")
	reportCmd.Flags().StringVarP(&reportOut, "out", "o", "reports", "Output directory")
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate charts and a text summary of stored results",
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

		dir, err := report.NewGenerator(db, loc).GenerateReport(context.Background(), reportOut, reportHours)
		if err != nil {
			return err
		}
		fmt.Printf("Report written to %s\n", dir)
		return nil
	},
}
