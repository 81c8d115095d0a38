package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"ntp-monitor/internal/models"
)

var _ models.Database = (*DB)(nil)

// pragmas applied to every pooled connection
const pragmas = "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"

// DB wraps sql.DB with the probe result store and analytics queries
type DB struct {
	*sql.DB

	// writes are serialized; WAL lets readers proceed meanwhile
	writeMu sync.Mutex
	now     func() time.Time
}

// New creates a new database connection
func New(path string) (*DB, error) {
	dsn := path
	if strings.Contains(dsn, "?") {
		dsn += "&" + pragmas
	} else {
		dsn += "?" + pragmas
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, &StorageError{Op: "open", Err: err}
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, &StorageError{Op: "open", Err: err}
	}

	return &DB{DB: db, now: time.Now}, nil
}

// InitSchema creates all necessary tables
func (db *DB) InitSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS probe_results (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        timestamp DATETIME NOT NULL,
        server TEXT NOT NULL,
        offset_ms REAL,
        delay_ms REAL,
        root_delay_ms REAL,
        root_dispersion_ms REAL,
        response_time_ms REAL,
        precision_ms REAL,
        stratum INTEGER,
        status TEXT NOT NULL CHECK (status IN ('Online', 'Error')),
        error_detail TEXT,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP
    );

    CREATE INDEX IF NOT EXISTS idx_timestamp ON probe_results(timestamp);
    CREATE INDEX IF NOT EXISTS idx_server_timestamp ON probe_results(server, timestamp);

    -- hourly roll-ups; raw rows are never deleted
    CREATE TABLE IF NOT EXISTS hourly_stats (
        hour DATETIME NOT NULL,
        server TEXT NOT NULL,
        total_probes INTEGER,
        online_probes INTEGER,
        avg_offset_ms REAL,
        avg_delay_ms REAL,
        max_delay_ms REAL,
        PRIMARY KEY (hour, server)
    );
    `

	db.writeMu.Lock()
	defer db.writeMu.Unlock()
	if _, err := db.Exec(schema); err != nil {
		return &StorageError{Op: "init schema", Err: err}
	}

	return nil
}

// Check verifies the store answers reads
func (db *DB) Check(ctx context.Context) error {
	var n int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sqlite_master").Scan(&n); err != nil {
		return &StorageError{Op: "check", Err: err}
	}
	return nil
}

// timestampLayout is fixed width so text order matches time order
const timestampLayout = "2006-01-02 15:04:05.000000000"

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

var timestampLayouts = []string{
	timestampLayout,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05",
	time.RFC3339Nano,
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// dbTime scans a timestamp whether the driver hands back text or time.Time
type dbTime struct {
	time.Time
}

func (t *dbTime) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		t.Time = v.UTC()
		return nil
	case string:
		parsed, err := parseTimestamp(v)
		t.Time = parsed
		return err
	case []byte:
		parsed, err := parseTimestamp(string(v))
		t.Time = parsed
		return err
	case nil:
		t.Time = time.Time{}
		return nil
	}
	return fmt.Errorf("cannot scan %T into timestamp", src)
}
