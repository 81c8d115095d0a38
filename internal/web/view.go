package web

import (
	"github.com/shopspring/decimal"

	"ntp-monitor/internal/models"
)

// timestampLayout renders timestamps with microseconds and a numeric UTC offset
const timestampLayout = "2006-01-02T15:04:05.000000-07:00"

// resultView is the wire shape of a probe result. Measurements are decimal
// strings with three fractional digits and null for failed probes.
type resultView struct {
	Timestamp        string        `json:"timestamp"`
	Server           string        `json:"server"`
	OffsetMS         *string       `json:"offset_ms"`
	DelayMS          *string       `json:"delay_ms"`
	RootDelayMS      *string       `json:"root_delay_ms"`
	RootDispersionMS *string       `json:"root_dispersion_ms"`
	ResponseTimeMS   *string       `json:"response_time_ms"`
	PrecisionMS      *string       `json:"precision_ms"`
	Stratum          int           `json:"stratum"`
	Status           models.Status `json:"status"`
	ErrorDetail      string        `json:"error_detail,omitempty"`
}

func (s *Server) views(results []models.ProbeResult) []resultView {
	views := make([]resultView, 0, len(results))
	for _, r := range results {
		views = append(views, s.view(r))
	}
	return views
}

func (s *Server) view(r models.ProbeResult) resultView {
	v := resultView{
		Timestamp:   r.Timestamp.In(s.loc).Format(timestampLayout),
		Server:      r.Server,
		Stratum:     r.Stratum,
		Status:      r.Status,
		ErrorDetail: r.ErrorDetail,
	}
	if !r.Online() {
		return v
	}
	v.OffsetMS = fixed3(r.OffsetMS)
	v.DelayMS = fixed3(r.DelayMS)
	v.RootDelayMS = fixed3(r.RootDelayMS)
	v.RootDispersionMS = fixed3(r.RootDispersionMS)
	v.ResponseTimeMS = fixed3(r.ResponseTimeMS)
	v.PrecisionMS = fixed3(r.PrecisionMS)
	return v
}

func fixed3(v float64) *string {
	s := decimal.NewFromFloat(v).StringFixed(3)
	return &s
}
