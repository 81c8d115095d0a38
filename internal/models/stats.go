package models

import "time"

// ServerStats represents aggregated statistics for a server over a window
type ServerStats struct {
	Server       string  `json:"server"`
	TotalProbes  int     `json:"total_probes"`
	OnlineProbes int     `json:"online_probes"`
	Availability float64 `json:"availability"` // percentage
	AvgOffset    float64 `json:"avg_offset_ms"`
	MinOffset    float64 `json:"min_offset_ms"`
	MaxOffset    float64 `json:"max_offset_ms"`
	AvgDelay     float64 `json:"avg_delay_ms"`
	MaxDelay     float64 `json:"max_delay_ms"`
}

// Outage represents a run of consecutive failed probes for a server
type Outage struct {
	Server       string    `json:"server"`
	StartTime    time.Time `json:"start_time"`
	EndTime      time.Time `json:"end_time"`
	FailedProbes int       `json:"failed_probes"`
	Duration     string    `json:"duration"`
}

// HourlyStats is an hourly roll-up of raw results for one server
type HourlyStats struct {
	Hour         time.Time `json:"hour"`
	Server       string    `json:"server"`
	TotalProbes  int       `json:"total_probes"`
	OnlineProbes int       `json:"online_probes"`
	AvgOffset    float64   `json:"avg_offset_ms"`
	AvgDelay     float64   `json:"avg_delay_ms"`
	MaxDelay     float64   `json:"max_delay_ms"`
}
