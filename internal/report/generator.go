package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"

	"ntp-monitor/internal/models"
)

// Generator renders chart images and a text summary of stored probe results
type Generator struct {
	db  models.Analytics
	loc *time.Location
	now func() time.Time
}

// NewGenerator creates a new report generator; times are rendered in loc
func NewGenerator(db models.Analytics, loc *time.Location) *Generator {
	if loc == nil {
		loc = time.UTC
	}
	return &Generator{db: db, loc: loc, now: time.Now}
}

// GenerateReport writes a report covering the last hours into a new
// directory under outputDir and returns that directory
func (g *Generator) GenerateReport(ctx context.Context, outputDir string, hours int) (string, error) {
	if hours <= 0 {
		return "", fmt.Errorf("report window must be positive, got %d hours", hours)
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	timestamp := g.now().In(g.loc).Format("2006-01-02_15-04-05")
	reportDir := filepath.Join(outputDir, fmt.Sprintf("ntp_report_%s", timestamp))
	if err := os.MkdirAll(reportDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}

	since := g.now().Add(-time.Duration(hours) * time.Hour)
	results, err := g.db.ResultsSince(ctx, since)
	if err != nil {
		return "", fmt.Errorf("loading results: %w", err)
	}

	if err := g.generateOffsetCharts(reportDir, results); err != nil {
		log.Warningf("Failed to generate offset charts: %v", err)
	}

	if err := g.generateDelayChart(reportDir, results); err != nil {
		log.Warningf("Failed to generate delay chart: %v", err)
	}

	if err := g.generateAvailabilityChart(reportDir, results); err != nil {
		log.Warningf("Failed to generate availability chart: %v", err)
	}

	if err := g.generateOutageChart(ctx, reportDir, hours, since); err != nil {
		log.Warningf("Failed to generate outage chart: %v", err)
	}

	if err := g.generateTextReport(ctx, reportDir, hours, since); err != nil {
		return reportDir, fmt.Errorf("writing summary: %w", err)
	}

	log.Infof("Report generated in: %s", reportDir)
	return reportDir, nil
}

// outageDays converts a window in hours to the whole days GetOutages expects
func outageDays(hours int) int {
	return (hours + 23) / 24
}
