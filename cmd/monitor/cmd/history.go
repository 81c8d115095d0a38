package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ntp-monitor/internal/database"
)

var historyLimit int

func init() {
	RootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", database.DefaultHistoryLimit, "Number of results to show")
}

var historyCmd = &cobra.Command{
	Use:   "history <server>",
	Short: "Print the most recent results of one server, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if historyLimit <= 0 {
			return fmt.Errorf("limit must be positive, got %d", historyLimit)
		}
		db, cfg, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()
		loc, err := cfg.Location()
		if err != nil {
			return err
		}

		results, err := db.History(context.Background(), args[0], historyLimit)
		if err != nil {
			return err
		}
		if len(results) == 0 {
			fmt.Printf("No results stored for %s\n", args[0])
			return nil
		}
		return printResults(os.Stdout, results, loc)
	},
}
