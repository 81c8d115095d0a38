package models

import (
	"context"
	"time"
)

// Store defines the append-only persistence of probe results
type Store interface {
	Append(ctx context.Context, result ProbeResult) error
	LatestPerServer(ctx context.Context) ([]ProbeResult, error)
	History(ctx context.Context, server string, limit int) ([]ProbeResult, error)
	Check(ctx context.Context) error
	Close() error
}

// Analytics defines the read-side aggregations over stored results
type Analytics interface {
	GetStats(ctx context.Context, hours int) ([]ServerStats, error)
	GetOutages(ctx context.Context, days int) ([]Outage, error)
	GetHourlyStats(ctx context.Context, hours int) ([]HourlyStats, error)
	ResultsSince(ctx context.Context, since time.Time) ([]ProbeResult, error)
	AggregateHourlyStats(ctx context.Context) error
}

// Database is a Store with analytics on top
type Database interface {
	Store
	Analytics
}

// Prober performs a single NTP query against a server
type Prober interface {
	Probe(ctx context.Context, server string) (Measurement, error)
}
