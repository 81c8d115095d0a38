package ntpclient

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/beevik/ntp"

	"ntp-monitor/internal/config"
	"ntp-monitor/internal/models"
)

// DefaultPort is the NTP port used when a server has none
const DefaultPort = "123"

// defaultTimeout bounds a query whose context carries no deadline
const defaultTimeout = 5 * time.Second

// New returns the prober selected by kind
func New(kind string) (models.Prober, error) {
	switch kind {
	case config.ClientBeevik, "":
		return NewBeevik(), nil
	case config.ClientSNTP:
		return NewSNTP(), nil
	}
	return nil, fmt.Errorf("unknown probe client %q", kind)
}

// BeevikClient queries servers with github.com/beevik/ntp
type BeevikClient struct {
	Version  int
	resolver *net.Resolver
	now      func() time.Time
	query    func(address string, opt ntp.QueryOptions) (*ntp.Response, error)
}

// NewBeevik creates a new NTPv4 BeevikClient
func NewBeevik() *BeevikClient {
	return &BeevikClient{
		Version:  4,
		resolver: net.DefaultResolver,
		now:      time.Now,
		query:    ntp.QueryWithOptions,
	}
}

// Probe executes one NTP query against server and returns the measurement
func (c *BeevikClient) Probe(ctx context.Context, server string) (models.Measurement, error) {
	host, port, err := splitServer(server)
	if err != nil {
		return models.Measurement{}, err
	}

	// resolve up front so DNS time stays out of the measured round trip
	ip, err := resolve(ctx, c.resolver, host)
	if err != nil {
		return models.Measurement{}, err
	}

	timeout, err := remaining(ctx)
	if err != nil {
		return models.Measurement{}, err
	}

	start := c.now()
	resp, err := c.query(net.JoinHostPort(ip, port), ntp.QueryOptions{
		Version: c.Version,
		Timeout: timeout,
	})
	elapsed := c.now().Sub(start)
	if err != nil {
		return models.Measurement{}, fmt.Errorf("querying %s: %w", server, err)
	}
	if err := resp.Validate(); err != nil {
		return models.Measurement{}, fmt.Errorf("invalid response from %s: %w", server, err)
	}

	// RTT excludes server processing, so what is left of the local round trip is T3-T2
	responseTime := elapsed - resp.RTT
	if responseTime < 0 {
		responseTime = 0
	}

	return models.Measurement{
		OffsetMS:         durationMS(resp.ClockOffset),
		DelayMS:          durationMS(resp.RTT),
		RootDelayMS:      durationMS(resp.RootDelay),
		RootDispersionMS: durationMS(resp.RootDispersion),
		ResponseTimeMS:   durationMS(responseTime),
		PrecisionMS:      durationMS(resp.Precision),
		Stratum:          int(resp.Stratum),
	}, nil
}

// splitServer separates an optional port from server
func splitServer(server string) (host, port string, err error) {
	if server == "" {
		return "", "", fmt.Errorf("empty server address")
	}
	if h, p, err := net.SplitHostPort(server); err == nil {
		return h, p, nil
	}
	host = server
	if len(host) > 1 && host[0] == '[' && host[len(host)-1] == ']' {
		host = host[1 : len(host)-1]
	}
	return host, DefaultPort, nil
}

// resolve returns an address for host, preferring IPv4
func resolve(ctx context.Context, resolver *net.Resolver, host string) (string, error) {
	if ip := net.ParseIP(host); ip != nil {
		return ip.String(), nil
	}
	addrs, err := resolver.LookupIPAddr(ctx, host)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", host, err)
	}
	if len(addrs) == 0 {
		return "", fmt.Errorf("resolving %s: no addresses", host)
	}
	for _, a := range addrs {
		if a.IP.To4() != nil {
			return a.IP.String(), nil
		}
	}
	return addrs[0].IP.String(), nil
}

// remaining returns how long the query may take under ctx
func remaining(ctx context.Context) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	deadline, ok := ctx.Deadline()
	if !ok {
		return defaultTimeout, nil
	}
	left := time.Until(deadline)
	if left <= 0 {
		return 0, context.DeadlineExceeded
	}
	return left, nil
}

func durationMS(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
