package models

import (
	"errors"
	"fmt"
	"time"
)

// Status is the outcome of a single probe
type Status string

// Possible probe outcomes
const (
	StatusOnline Status = "Online"
	StatusError  Status = "Error"
)

// Valid reports whether s is a known status
func (s Status) Valid() bool {
	return s == StatusOnline || s == StatusError
}

// ErrInvalidResult is returned when a ProbeResult breaks the caller contract
var ErrInvalidResult = errors.New("invalid probe result")

// Measurement is what a successful NTP query yields, all values in milliseconds
type Measurement struct {
	OffsetMS         float64
	DelayMS          float64
	RootDelayMS      float64
	RootDispersionMS float64
	ResponseTimeMS   float64
	PrecisionMS      float64
	Stratum          int
}

// ProbeResult represents a single NTP observation of one server
type ProbeResult struct {
	Timestamp        time.Time `json:"timestamp"`
	Server           string    `json:"server"`
	OffsetMS         float64   `json:"offset_ms"`
	DelayMS          float64   `json:"delay_ms"`
	RootDelayMS      float64   `json:"root_delay_ms"`
	RootDispersionMS float64   `json:"root_dispersion_ms"`
	ResponseTimeMS   float64   `json:"response_time_ms"`
	PrecisionMS      float64   `json:"precision_ms"`
	Stratum          int       `json:"stratum"`
	Status           Status    `json:"status"`
	ErrorDetail      string    `json:"error_detail,omitempty"`
}

// OnlineResult builds an Online result from a measurement
func OnlineResult(server string, ts time.Time, m Measurement) ProbeResult {
	return ProbeResult{
		Timestamp:        ts,
		Server:           server,
		OffsetMS:         m.OffsetMS,
		DelayMS:          m.DelayMS,
		RootDelayMS:      m.RootDelayMS,
		RootDispersionMS: m.RootDispersionMS,
		ResponseTimeMS:   m.ResponseTimeMS,
		PrecisionMS:      m.PrecisionMS,
		Stratum:          m.Stratum,
		Status:           StatusOnline,
	}
}

// ErrorResult builds an Error result carrying detail
func ErrorResult(server string, ts time.Time, detail string) ProbeResult {
	return ProbeResult{
		Timestamp:   ts,
		Server:      server,
		Status:      StatusError,
		ErrorDetail: detail,
	}
}

// Online reports whether the probe succeeded
func (r ProbeResult) Online() bool {
	return r.Status == StatusOnline
}

// Validate checks the result is well formed before it is stored
func (r ProbeResult) Validate() error {
	if r.Server == "" {
		return fmt.Errorf("%w: missing server", ErrInvalidResult)
	}
	if r.Timestamp.IsZero() {
		return fmt.Errorf("%w: missing timestamp for %s", ErrInvalidResult, r.Server)
	}
	if !r.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q for %s", ErrInvalidResult, r.Status, r.Server)
	}
	if r.Status == StatusError && r.ErrorDetail == "" {
		return fmt.Errorf("%w: error result for %s has no detail", ErrInvalidResult, r.Server)
	}
	if r.Status == StatusOnline && r.ErrorDetail != "" {
		return fmt.Errorf("%w: online result for %s carries error detail", ErrInvalidResult, r.Server)
	}
	return nil
}
