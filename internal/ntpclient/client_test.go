package ntpclient

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/beevik/ntp"
	"github.com/stretchr/testify/require"

	"ntp-monitor/internal/config"
)

// steppedClock returns each time in order, repeating the last one
func steppedClock(times ...time.Time) func() time.Time {
	i := 0
	return func() time.Time {
		t := times[i]
		if i < len(times)-1 {
			i++
		}
		return t
	}
}

func validResponse() *ntp.Response {
	now := time.Now()
	return &ntp.Response{
		Time:           now,
		ClockOffset:    2145 * time.Microsecond,
		RTT:            12004 * time.Microsecond,
		Precision:      time.Microsecond,
		Stratum:        1,
		ReferenceTime:  now.Add(-time.Minute),
		RootDelay:      500 * time.Microsecond,
		RootDispersion: 250 * time.Microsecond,
		Leap:           ntp.LeapNoWarning,
	}
}

func TestBeevikProbe(t *testing.T) {
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	var gotAddr string
	var gotOpts ntp.QueryOptions

	c := NewBeevik()
	c.now = steppedClock(start, start.Add(12035*time.Microsecond))
	c.query = func(address string, opt ntp.QueryOptions) (*ntp.Response, error) {
		gotAddr = address
		gotOpts = opt
		return validResponse(), nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	m, err := c.Probe(ctx, "127.0.0.1")
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:123", gotAddr)
	require.Equal(t, 4, gotOpts.Version)
	require.Greater(t, gotOpts.Timeout, time.Duration(0))
	require.LessOrEqual(t, gotOpts.Timeout, 2*time.Second)

	require.InDelta(t, 2.145, m.OffsetMS, 1e-9)
	require.InDelta(t, 12.004, m.DelayMS, 1e-9)
	require.InDelta(t, 0.5, m.RootDelayMS, 1e-9)
	require.InDelta(t, 0.25, m.RootDispersionMS, 1e-9)
	require.InDelta(t, 0.031, m.ResponseTimeMS, 1e-9)
	require.InDelta(t, 0.001, m.PrecisionMS, 1e-9)
	require.Equal(t, 1, m.Stratum)
}

func TestBeevikProbeClampsResponseTime(t *testing.T) {
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	c := NewBeevik()
	// local elapsed shorter than the reported RTT
	c.now = steppedClock(start, start.Add(5*time.Millisecond))
	c.query = func(string, ntp.QueryOptions) (*ntp.Response, error) {
		return validResponse(), nil
	}

	m, err := c.Probe(context.Background(), "127.0.0.1:1123")
	require.NoError(t, err)
	require.Zero(t, m.ResponseTimeMS)
}

func TestBeevikProbeErrors(t *testing.T) {
	tests := []struct {
		name  string
		query func(string, ntp.QueryOptions) (*ntp.Response, error)
	}{
		{
			name: "query failure",
			query: func(string, ntp.QueryOptions) (*ntp.Response, error) {
				return nil, errors.New("i/o timeout")
			},
		},
		{
			name: "kiss of death",
			query: func(string, ntp.QueryOptions) (*ntp.Response, error) {
				r := validResponse()
				r.Stratum = 0
				r.KissCode = "RATE"
				return r, nil
			},
		},
		{
			name: "unsynchronized",
			query: func(string, ntp.QueryOptions) (*ntp.Response, error) {
				r := validResponse()
				r.Leap = ntp.LeapNotInSync
				return r, nil
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewBeevik()
			c.query = tt.query
			_, err := c.Probe(context.Background(), "127.0.0.1")
			require.Error(t, err)
			require.Contains(t, err.Error(), "127.0.0.1")
		})
	}
}

func TestProbeCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewBeevik()
	c.query = func(string, ntp.QueryOptions) (*ntp.Response, error) {
		t.Fatal("query must not run after cancellation")
		return nil, nil
	}
	_, err := c.Probe(ctx, "127.0.0.1")
	require.ErrorIs(t, err, context.Canceled)
}

func TestSplitServer(t *testing.T) {
	tests := []struct {
		input string
		host  string
		port  string
	}{
		{"time.google.com", "time.google.com", "123"},
		{"time.google.com:4123", "time.google.com", "4123"},
		{"127.0.0.1", "127.0.0.1", "123"},
		{"[::1]:123", "::1", "123"},
		{"[2001:db8::1]", "2001:db8::1", "123"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			host, port, err := splitServer(tt.input)
			require.NoError(t, err)
			require.Equal(t, tt.host, host)
			require.Equal(t, tt.port, port)
		})
	}

	_, _, err := splitServer("")
	require.Error(t, err)
}

func TestNewSelectsClient(t *testing.T) {
	p, err := New(config.ClientBeevik)
	require.NoError(t, err)
	require.IsType(t, &BeevikClient{}, p)

	p, err = New(config.ClientSNTP)
	require.NoError(t, err)
	require.IsType(t, &SNTPClient{}, p)

	_, err = New("chrony")
	require.Error(t, err)
}

func TestBeevikProbeIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping NTP integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	m, err := NewBeevik().Probe(ctx, "time.google.com")
	if err != nil {
		t.Skipf("skipping due to unreachable NTP server: %v", err)
	}

	t.Logf("offset=%.3fms delay=%.3fms stratum=%d", m.OffsetMS, m.DelayMS, m.Stratum)
	require.GreaterOrEqual(t, m.Stratum, 1)
	require.LessOrEqual(t, m.Stratum, 15)
	require.GreaterOrEqual(t, m.DelayMS, 0.0)
}
