package report

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const dateLayout = "2006-01-02 15:04:05 MST"

func (g *Generator) generateTextReport(ctx context.Context, outputDir string, hours int, since time.Time) error {
	file, err := os.Create(filepath.Join(outputDir, "summary.txt"))
	if err != nil {
		return err
	}

	if err := g.writeSummary(ctx, file, hours, since); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// writeSummary writes per-server statistics and outage periods for the window
func (g *Generator) writeSummary(ctx context.Context, w io.Writer, hours int, since time.Time) error {
	stats, err := g.db.GetStats(ctx, hours)
	if err != nil {
		return err
	}
	outages, err := g.db.GetOutages(ctx, outageDays(hours))
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "NTP Server Monitoring Report\n")
	fmt.Fprintf(w, "Generated: %s\n", g.now().In(g.loc).Format(dateLayout))
	fmt.Fprintf(w, "Period: Last %d hours\n\n", hours)
	fmt.Fprintln(w, strings.Repeat("=", 60))

	fmt.Fprintln(w, "\nOVERALL STATISTICS")

	for _, s := range stats {
		fmt.Fprintf(w, "Server: %s\n", s.Server)
		fmt.Fprintf(w, "  Total Probes: %d\n", s.TotalProbes)
		fmt.Fprintf(w, "  Online: %d (%.2f%%)\n", s.OnlineProbes, s.Availability)

		if s.OnlineProbes > 0 {
			fmt.Fprintf(w, "  Average Offset: %.3f ms\n", s.AvgOffset)
			fmt.Fprintf(w, "  Offset Range: %.3f to %.3f ms\n", s.MinOffset, s.MaxOffset)
			fmt.Fprintf(w, "  Average Delay: %.3f ms\n", s.AvgDelay)
			fmt.Fprintf(w, "  Max Delay: %.3f ms\n", s.MaxDelay)
		}
		fmt.Fprintln(w)
	}
	if len(stats) == 0 {
		fmt.Fprintln(w, "No probe results in this period.")
	}

	fmt.Fprintln(w, strings.Repeat("=", 60))

	fmt.Fprintln(w, "\nOUTAGE PERIODS (3+ consecutive failures)")

	outageCount := 0
	for _, o := range outages {
		if o.EndTime.Before(since) {
			continue
		}
		outageCount++
		fmt.Fprintf(w, "Outage #%d\n", outageCount)
		fmt.Fprintf(w, "  Server: %s\n", o.Server)
		fmt.Fprintf(w, "  Start: %s\n", o.StartTime.In(g.loc).Format(dateLayout))
		fmt.Fprintf(w, "  End: %s\n", o.EndTime.In(g.loc).Format(dateLayout))
		fmt.Fprintf(w, "  Duration: %s\n", o.Duration)
		fmt.Fprintf(w, "  Failed Probes: %d\n", o.FailedProbes)
		fmt.Fprintln(w)
	}

	if outageCount == 0 {
		fmt.Fprintln(w, "No significant outages detected.")
	} else {
		fmt.Fprintf(w, "\nTotal Outages: %d\n", outageCount)
	}

	fmt.Fprintln(w, strings.Repeat("=", 60))
	fmt.Fprintln(w, "\nCharts are available in the accompanying files.")

	return nil
}
