package ntpclient

import (
	"context"
	"fmt"
	"net"
	"time"

	"ntp-monitor/internal/models"
)

// SNTPClient speaks the NTPv4 client exchange over UDP directly, which exposes
// the server receive and transmit timestamps that BeevikClient cannot see
type SNTPClient struct {
	resolver *net.Resolver
	now      func() time.Time
}

// NewSNTP creates a new SNTPClient
func NewSNTP() *SNTPClient {
	return &SNTPClient{
		resolver: net.DefaultResolver,
		now:      time.Now,
	}
}

// Probe executes one NTP query against server and returns the measurement
func (c *SNTPClient) Probe(ctx context.Context, server string) (models.Measurement, error) {
	host, port, err := splitServer(server)
	if err != nil {
		return models.Measurement{}, err
	}
	ip, err := resolve(ctx, c.resolver, host)
	if err != nil {
		return models.Measurement{}, err
	}
	timeout, err := remaining(ctx)
	if err != nil {
		return models.Measurement{}, err
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "udp", net.JoinHostPort(ip, port))
	if err != nil {
		return models.Measurement{}, fmt.Errorf("dialing %s: %w", server, err)
	}
	defer conn.Close()

	// unblock the read as soon as ctx is cancelled
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now())
	})
	defer stop()

	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return models.Measurement{}, err
	}

	t1 := c.now()
	req := NewRequest(t1)
	reqBytes, err := req.MarshalBinary()
	if err != nil {
		return models.Measurement{}, err
	}
	if _, err := conn.Write(reqBytes); err != nil {
		return models.Measurement{}, fmt.Errorf("sending request to %s: %w", server, err)
	}

	buf := make([]byte, 128)
	n, err := conn.Read(buf)
	t4 := c.now()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return models.Measurement{}, ctxErr
		}
		return models.Measurement{}, fmt.Errorf("reading response from %s: %w", server, err)
	}

	resp, err := ParsePacket(buf[:n])
	if err != nil {
		return models.Measurement{}, err
	}
	if err := resp.ValidateResponse(req); err != nil {
		return models.Measurement{}, fmt.Errorf("invalid response from %s: %w", server, err)
	}

	m := measure(t1, resp.ReceiveTime(), resp.TransmitTime(), t4)
	m.RootDelayMS = resp.RootDelayMS()
	m.RootDispersionMS = resp.RootDispersionMS()
	m.PrecisionMS = resp.PrecisionMS()
	m.Stratum = int(resp.Stratum)
	return m, nil
}

// measure derives offset, delay and response time from the four exchange timestamps
//
//	T1 client transmit, T2 server receive, T3 server transmit, T4 client receive
func measure(t1, t2, t3, t4 time.Time) models.Measurement {
	offset := (t2.Sub(t1) + t3.Sub(t4)) / 2
	delay := t4.Sub(t1) - t3.Sub(t2)
	return models.Measurement{
		OffsetMS:       durationMS(offset),
		DelayMS:        durationMS(delay),
		ResponseTimeMS: durationMS(t3.Sub(t2)),
	}
}
