package report

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"ntp-monitor/internal/models"
)

var (
	padding = chart.Style{
		Padding: chart.Box{
			Top:    20,
			Left:   20,
			Right:  20,
			Bottom: 20,
		},
	}
	axisStyle = chart.Style{
		StrokeColor: drawing.ColorBlack,
		FontSize:    10,
	}
	gridStyle = chart.Style{
		StrokeColor: drawing.Color{R: 200, G: 200, B: 200, A: 255},
		StrokeWidth: 1.0,
	}
)

// generateOffsetCharts renders one offset chart per server with a moving average
func (g *Generator) generateOffsetCharts(outputDir string, results []models.ProbeResult) error {
	for _, data := range onlineSeries(results, func(r models.ProbeResult) float64 { return r.OffsetMS }) {
		// a single point has no x range to plot
		if len(data.values) < 2 {
			continue
		}

		graph := chart.Chart{
			Title: fmt.Sprintf("Clock Offset - %s", data.server),
			TitleStyle: chart.Style{
				FontSize: 16,
			},
			Background: padding,
			Width:      1200,
			Height:     400,
			XAxis: chart.XAxis{
				Name:           "Time",
				Style:          axisStyle,
				ValueFormatter: g.timeFormatter("01-02 15:04"),
			},
			YAxis: chart.YAxis{
				Name:           "Offset (ms)",
				Style:          axisStyle,
				GridMajorStyle: gridStyle,
			},
			Series: []chart.Series{
				chart.TimeSeries{
					Name: data.server,
					Style: chart.Style{
						StrokeColor: chart.GetDefaultColor(0),
						StrokeWidth: 2,
					},
					XValues: data.timestamps,
					YValues: data.values,
				},
			},
		}

		// Add moving average
		if len(data.values) > 10 {
			ts := graph.Series[0].(chart.TimeSeries)
			graph.Series = append(graph.Series, chart.SMASeries{
				Name: "Moving Avg",
				Style: chart.Style{
					StrokeColor:     chart.GetDefaultColor(1),
					StrokeWidth:     2,
					StrokeDashArray: []float64{5, 5},
				},
				InnerSeries: ts,
				Period:      10,
			})
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("offset_%s.png", sanitizeFilename(data.server)))
		if err := render(filename, graph); err != nil {
			return fmt.Errorf("%s: %w", data.server, err)
		}
	}

	return nil
}

// generateDelayChart renders the round trip delay of every server on one chart
func (g *Generator) generateDelayChart(outputDir string, results []models.ProbeResult) error {
	var allSeries []chart.Series
	for i, data := range onlineSeries(results, func(r models.ProbeResult) float64 { return r.DelayMS }) {
		if len(data.values) < 2 {
			continue
		}
		allSeries = append(allSeries, chart.TimeSeries{
			Name: data.server,
			Style: chart.Style{
				StrokeColor: chart.GetDefaultColor(i),
				StrokeWidth: 2,
			},
			XValues: data.timestamps,
			YValues: data.values,
		})
	}
	if len(allSeries) == 0 {
		return nil
	}

	graph := chart.Chart{
		Title: "Network Delay",
		TitleStyle: chart.Style{
			FontSize: 16,
		},
		Background: padding,
		Width:      1200,
		Height:     400,
		XAxis: chart.XAxis{
			Name:           "Time",
			Style:          axisStyle,
			ValueFormatter: g.timeFormatter("01-02 15:04"),
		},
		YAxis: chart.YAxis{
			Name:           "Delay (ms)",
			Style:          axisStyle,
			GridMajorStyle: gridStyle,
		},
		Series: allSeries,
	}
	graph.Elements = []chart.Renderable{
		chart.Legend(&graph),
	}

	return render(filepath.Join(outputDir, "delay.png"), graph)
}

// generateAvailabilityChart renders hourly availability of every server
func (g *Generator) generateAvailabilityChart(outputDir string, results []models.ProbeResult) error {
	var allSeries []chart.Series
	for i, data := range hourlyAvailability(results) {
		if len(data.values) < 2 {
			continue
		}
		allSeries = append(allSeries, chart.TimeSeries{
			Name: data.server,
			Style: chart.Style{
				StrokeColor: chart.GetDefaultColor(i),
				StrokeWidth: 2,
			},
			XValues: data.timestamps,
			YValues: data.values,
		})
	}
	if len(allSeries) == 0 {
		return nil
	}

	graph := chart.Chart{
		Title: "Server Availability (Hourly)",
		TitleStyle: chart.Style{
			FontSize: 16,
		},
		Background: padding,
		Width:      1200,
		Height:     400,
		XAxis: chart.XAxis{
			Name:           "Time",
			Style:          axisStyle,
			ValueFormatter: g.timeFormatter("01-02 15h"),
		},
		YAxis: chart.YAxis{
			Name:  "Availability %",
			Style: axisStyle,
			Range: &chart.ContinuousRange{
				Min: 0,
				Max: 100,
			},
			GridMajorStyle: gridStyle,
		},
		Series: allSeries,
	}
	graph.Elements = []chart.Renderable{
		chart.Legend(&graph),
	}

	return render(filepath.Join(outputDir, "availability.png"), graph)
}

// generateOutageChart renders the number of outages per server in the window
func (g *Generator) generateOutageChart(ctx context.Context, outputDir string, hours int, since time.Time) error {
	outages, err := g.db.GetOutages(ctx, outageDays(hours))
	if err != nil {
		return err
	}

	counts := make(map[string]int)
	var order []string
	maxCount := 0
	for _, o := range outages {
		if o.EndTime.Before(since) {
			continue
		}
		if _, ok := counts[o.Server]; !ok {
			order = append(order, o.Server)
		}
		counts[o.Server]++
		if counts[o.Server] > maxCount {
			maxCount = counts[o.Server]
		}
	}
	if len(order) == 0 {
		return nil
	}

	values := make([]chart.Value, 0, len(order))
	for _, server := range order {
		values = append(values, chart.Value{
			Label: server,
			Value: float64(counts[server]),
		})
	}

	graph := chart.BarChart{
		Title: "Outages by Server",
		TitleStyle: chart.Style{
			FontSize: 16,
		},
		Background: padding,
		Width:      1200,
		Height:     400,
		Bars:       values,
		BarWidth:   40,
		YAxis: chart.YAxis{
			Range: &chart.ContinuousRange{
				Min: 0,
				Max: float64(maxCount + 1),
			},
		},
	}

	return render(filepath.Join(outputDir, "outages.png"), graph)
}

// timeFormatter formats chart x values in the report timezone
func (g *Generator) timeFormatter(layout string) chart.ValueFormatter {
	return func(v interface{}) string {
		switch t := v.(type) {
		case time.Time:
			return t.In(g.loc).Format(layout)
		case float64:
			return chart.TimeFromFloat64(t).In(g.loc).Format(layout)
		}
		return ""
	}
}

type renderable interface {
	Render(rp chart.RendererProvider, w io.Writer) error
}

func render(filename string, graph renderable) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}

	if err := graph.Render(chart.PNG, file); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
