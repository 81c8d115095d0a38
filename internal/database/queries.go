package database

import (
	"context"
	"database/sql"
	"time"

	"ntp-monitor/internal/models"
)

// DefaultHistoryLimit is used when History is called without a positive limit
const DefaultHistoryLimit = 10

const resultColumns = `timestamp, server, offset_ms, delay_ms, root_delay_ms, root_dispersion_ms,
        response_time_ms, precision_ms, stratum, status, error_detail`

// Append saves a probe result to the database
func (db *DB) Append(ctx context.Context, result models.ProbeResult) error {
	if err := result.Validate(); err != nil {
		return err
	}

	query := `
        INSERT INTO probe_results (timestamp, server, offset_ms, delay_ms, root_delay_ms,
            root_dispersion_ms, response_time_ms, precision_ms, stratum, status, error_detail)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `

	online := result.Online()
	db.writeMu.Lock()
	defer db.writeMu.Unlock()
	_, err := db.ExecContext(ctx, query,
		formatTimestamp(result.Timestamp),
		result.Server,
		measured(online, result.OffsetMS),
		measured(online, result.DelayMS),
		measured(online, result.RootDelayMS),
		measured(online, result.RootDispersionMS),
		measured(online, result.ResponseTimeMS),
		measured(online, result.PrecisionMS),
		result.Stratum,
		string(result.Status),
		sql.NullString{String: result.ErrorDetail, Valid: !online},
	)
	if err != nil {
		return &StorageError{Op: "append", Err: err}
	}
	return nil
}

func measured(online bool, v float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: v, Valid: online}
}

// LatestPerServer returns the most recent result of every server in first-seen order
func (db *DB) LatestPerServer(ctx context.Context) ([]models.ProbeResult, error) {
	query := `
        WITH ranked AS (
            SELECT
                ` + resultColumns + `,
                ROW_NUMBER() OVER (
                    PARTITION BY server
                    ORDER BY timestamp DESC, id DESC
                ) as rn,
                MIN(id) OVER (PARTITION BY server) as first_id
            FROM probe_results
        )
        SELECT ` + resultColumns + `
        FROM ranked
        WHERE rn = 1
        ORDER BY first_id
    `

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, &StorageError{Op: "latest", Err: err}
	}
	return scanResults(rows, "latest")
}

// History returns up to limit most recent results of server, newest first
func (db *DB) History(ctx context.Context, server string, limit int) ([]models.ProbeResult, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	query := `
        SELECT ` + resultColumns + `
        FROM probe_results
        WHERE server = ?
        ORDER BY timestamp DESC, id DESC
        LIMIT ?
    `

	rows, err := db.QueryContext(ctx, query, server, limit)
	if err != nil {
		return nil, &StorageError{Op: "history", Err: err}
	}
	return scanResults(rows, "history")
}

// ResultsSince returns every result at or after since, oldest first
func (db *DB) ResultsSince(ctx context.Context, since time.Time) ([]models.ProbeResult, error) {
	query := `
        SELECT ` + resultColumns + `
        FROM probe_results
        WHERE timestamp >= ?
        ORDER BY timestamp, id
    `

	rows, err := db.QueryContext(ctx, query, formatTimestamp(since))
	if err != nil {
		return nil, &StorageError{Op: "results since", Err: err}
	}
	return scanResults(rows, "results since")
}

// scanResults drains rows; a malformed row fails the whole read rather than being skipped
func scanResults(rows *sql.Rows, op string) ([]models.ProbeResult, error) {
	defer rows.Close()

	results := []models.ProbeResult{}
	for rows.Next() {
		var r models.ProbeResult
		var ts dbTime
		var offset, delay, rootDelay, rootDisp, responseTime, precision sql.NullFloat64
		var stratum sql.NullInt64
		var status string
		var errDetail sql.NullString
		err := rows.Scan(&ts, &r.Server, &offset, &delay, &rootDelay, &rootDisp,
			&responseTime, &precision, &stratum, &status, &errDetail)
		if err != nil {
			return nil, &StorageError{Op: op, Err: err}
		}
		r.Timestamp = ts.Time
		r.OffsetMS = offset.Float64
		r.DelayMS = delay.Float64
		r.RootDelayMS = rootDelay.Float64
		r.RootDispersionMS = rootDisp.Float64
		r.ResponseTimeMS = responseTime.Float64
		r.PrecisionMS = precision.Float64
		r.Stratum = int(stratum.Int64)
		r.Status = models.Status(status)
		r.ErrorDetail = errDetail.String
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: op, Err: err}
	}

	return results, nil
}

// GetStats retrieves aggregated per-server statistics for the last hours
func (db *DB) GetStats(ctx context.Context, hours int) ([]models.ServerStats, error) {
	query := `
        SELECT
            server,
            COUNT(*) as total_probes,
            SUM(CASE WHEN status = 'Online' THEN 1 ELSE 0 END) as online_probes,
            AVG(offset_ms) as avg_offset,
            MIN(offset_ms) as min_offset,
            MAX(offset_ms) as max_offset,
            AVG(delay_ms) as avg_delay,
            MAX(delay_ms) as max_delay
        FROM probe_results
        WHERE timestamp > ?
        GROUP BY server
        ORDER BY MIN(id)
    `

	since := db.now().Add(-time.Duration(hours) * time.Hour)
	rows, err := db.QueryContext(ctx, query, formatTimestamp(since))
	if err != nil {
		return nil, &StorageError{Op: "stats", Err: err}
	}
	defer rows.Close()

	stats := []models.ServerStats{}
	for rows.Next() {
		var s models.ServerStats
		var avgOffset, minOffset, maxOffset, avgDelay, maxDelay sql.NullFloat64
		err := rows.Scan(&s.Server, &s.TotalProbes, &s.OnlineProbes,
			&avgOffset, &minOffset, &maxOffset, &avgDelay, &maxDelay)
		if err != nil {
			return nil, &StorageError{Op: "stats", Err: err}
		}
		if s.TotalProbes > 0 {
			s.Availability = float64(s.OnlineProbes) / float64(s.TotalProbes) * 100
		}
		s.AvgOffset = avgOffset.Float64
		s.MinOffset = minOffset.Float64
		s.MaxOffset = maxOffset.Float64
		s.AvgDelay = avgDelay.Float64
		s.MaxDelay = maxDelay.Float64
		stats = append(stats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "stats", Err: err}
	}

	return stats, nil
}

// GetOutages retrieves runs of three or more consecutive failed probes
func (db *DB) GetOutages(ctx context.Context, days int) ([]models.Outage, error) {
	query := `
        WITH grouped_failures AS (
            SELECT
                server,
                timestamp,
                status,
                ROW_NUMBER() OVER (PARTITION BY server ORDER BY timestamp, id) -
                ROW_NUMBER() OVER (PARTITION BY server, status ORDER BY timestamp, id) as grp
            FROM probe_results
            WHERE timestamp > ?
        )
        SELECT
            server,
            MIN(timestamp) as start_time,
            MAX(timestamp) as end_time,
            COUNT(*) as failed_probes
        FROM grouped_failures
        WHERE status = 'Error'
        GROUP BY server, grp
        HAVING COUNT(*) >= 3
        ORDER BY start_time DESC
        LIMIT 100
    `

	since := db.now().AddDate(0, 0, -days)
	rows, err := db.QueryContext(ctx, query, formatTimestamp(since))
	if err != nil {
		return nil, &StorageError{Op: "outages", Err: err}
	}
	defer rows.Close()

	outages := []models.Outage{}
	for rows.Next() {
		var o models.Outage
		var start, end dbTime
		if err := rows.Scan(&o.Server, &start, &end, &o.FailedProbes); err != nil {
			return nil, &StorageError{Op: "outages", Err: err}
		}
		o.StartTime = start.Time
		o.EndTime = end.Time
		o.Duration = o.EndTime.Sub(o.StartTime).String()
		outages = append(outages, o)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "outages", Err: err}
	}

	return outages, nil
}

// GetHourlyStats retrieves hourly roll-ups for the last hours
func (db *DB) GetHourlyStats(ctx context.Context, hours int) ([]models.HourlyStats, error) {
	query := `
        SELECT hour, server, total_probes, online_probes, avg_offset_ms, avg_delay_ms, max_delay_ms
        FROM hourly_stats
        WHERE hour > ?
        ORDER BY hour, server
    `

	since := db.now().Add(-time.Duration(hours) * time.Hour)
	rows, err := db.QueryContext(ctx, query, since.UTC().Format("2006-01-02 15:04:05"))
	if err != nil {
		return nil, &StorageError{Op: "hourly stats", Err: err}
	}
	defer rows.Close()

	stats := []models.HourlyStats{}
	for rows.Next() {
		var h models.HourlyStats
		var hour dbTime
		var avgOffset, avgDelay, maxDelay sql.NullFloat64
		err := rows.Scan(&hour, &h.Server, &h.TotalProbes, &h.OnlineProbes,
			&avgOffset, &avgDelay, &maxDelay)
		if err != nil {
			return nil, &StorageError{Op: "hourly stats", Err: err}
		}
		h.Hour = hour.Time
		h.AvgOffset = avgOffset.Float64
		h.AvgDelay = avgDelay.Float64
		h.MaxDelay = maxDelay.Float64
		stats = append(stats, h)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "hourly stats", Err: err}
	}

	return stats, nil
}
