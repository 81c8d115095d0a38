package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"ntp-monitor/internal/models"
)

var (
	onlineString = color.GreenString("Online")
	errorString  = color.RedString("Error")
)

// printResults renders probe results as a table, timestamps in loc
func printResults(w io.Writer, results []models.ProbeResult, loc *time.Location) error {
	table := tablewriter.NewWriter(w)
	table.Header("Time", "Server", "Status", "Stratum", "Offset (ms)", "Delay (ms)", "Root delay (ms)", "Root disp (ms)", "Detail")

	for _, r := range results {
		row := []string{
			r.Timestamp.In(loc).Format("2006-01-02 15:04:05"),
			r.Server,
		}
		if r.Online() {
			row = append(row,
				onlineString,
				fmt.Sprintf("%d", r.Stratum),
				fmt.Sprintf("%.3f", r.OffsetMS),
				fmt.Sprintf("%.3f", r.DelayMS),
				fmt.Sprintf("%.3f", r.RootDelayMS),
				fmt.Sprintf("%.3f", r.RootDispersionMS),
				"",
			)
		} else {
			row = append(row, errorString, "-", "-", "-", "-", "-", r.ErrorDetail)
		}
		if err := table.Append(row); err != nil {
			return fmt.Errorf("adding row for %s: %w", r.Server, err)
		}
	}
	return table.Render()
}
