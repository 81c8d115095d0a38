package database

import (
	"context"
)

// AggregateHourlyStats rolls the last two days of raw results into hourly_stats
func (db *DB) AggregateHourlyStats(ctx context.Context) error {
	query := `
        INSERT OR REPLACE INTO hourly_stats (hour, server, total_probes, online_probes, avg_offset_ms, avg_delay_ms, max_delay_ms)
        SELECT
            strftime('%Y-%m-%d %H:00:00', timestamp) as hour,
            server,
            COUNT(*) as total_probes,
            SUM(CASE WHEN status = 'Online' THEN 1 ELSE 0 END) as online_probes,
            AVG(offset_ms) as avg_offset_ms,
            AVG(delay_ms) as avg_delay_ms,
            MAX(delay_ms) as max_delay_ms
        FROM probe_results
        WHERE timestamp > ?
        AND strftime('%Y-%m-%d %H:00:00', timestamp) IS NOT NULL
        GROUP BY hour, server
    `

	since := db.now().AddDate(0, 0, -2)
	db.writeMu.Lock()
	defer db.writeMu.Unlock()
	if _, err := db.ExecContext(ctx, query, formatTimestamp(since)); err != nil {
		return &StorageError{Op: "aggregate hourly", Err: err}
	}
	return nil
}
