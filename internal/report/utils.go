package report

import (
	"strings"
	"time"

	"ntp-monitor/internal/models"
)

// sanitizeFilename replaces dots and special characters for safe filenames
func sanitizeFilename(s string) string {
	replacer := strings.NewReplacer(
		".", "_",
		":", "_",
		"/", "_",
		"\\", "_",
		" ", "_",
		"[", "",
		"]", "",
	)
	return replacer.Replace(s)
}

// series is one server's time-ordered values
type series struct {
	server     string
	timestamps []time.Time
	values     []float64
}

// onlineSeries groups online results per server in first-seen order using value
func onlineSeries(results []models.ProbeResult, value func(models.ProbeResult) float64) []series {
	index := make(map[string]int)
	var out []series
	for _, r := range results {
		if !r.Online() {
			continue
		}
		i, ok := index[r.Server]
		if !ok {
			i = len(out)
			index[r.Server] = i
			out = append(out, series{server: r.Server})
		}
		out[i].timestamps = append(out[i].timestamps, r.Timestamp)
		out[i].values = append(out[i].values, value(r))
	}
	return out
}

// hourlyAvailability returns the per-hour percentage of online results for every server
func hourlyAvailability(results []models.ProbeResult) []series {
	type bucket struct {
		total, online int
	}
	index := make(map[string]int)
	var out []series
	var buckets [][]bucket

	for _, r := range results {
		i, ok := index[r.Server]
		if !ok {
			i = len(out)
			index[r.Server] = i
			out = append(out, series{server: r.Server})
			buckets = append(buckets, nil)
		}
		hour := r.Timestamp.UTC().Truncate(time.Hour)
		n := len(out[i].timestamps)
		if n == 0 || !out[i].timestamps[n-1].Equal(hour) {
			out[i].timestamps = append(out[i].timestamps, hour)
			buckets[i] = append(buckets[i], bucket{})
			n++
		}
		buckets[i][n-1].total++
		if r.Online() {
			buckets[i][n-1].online++
		}
	}

	for i := range out {
		out[i].values = make([]float64, len(buckets[i]))
		for j, b := range buckets[i] {
			out[i].values[j] = float64(b.online) / float64(b.total) * 100
		}
	}
	return out
}
