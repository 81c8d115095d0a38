package ntpclient

import (
	"context"
	"encoding/binary"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// serveOnce answers a single request on a local UDP socket with the packet built by reply
func serveOnce(t *testing.T, reply func(req *Packet) *Packet) string {
	t.Helper()
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	go func() {
		buf := make([]byte, 128)
		n, addr, err := conn.ReadFrom(buf)
		if err != nil {
			return
		}
		req, err := ParsePacket(buf[:n])
		if err != nil {
			return
		}
		resp := reply(req)
		if resp == nil {
			return
		}
		b, err := resp.MarshalBinary()
		if err != nil {
			return
		}
		_, _ = conn.WriteTo(b, addr)
	}()

	return conn.LocalAddr().String()
}

func serverReply(req *Packet, rx, tx time.Time) *Packet {
	return &Packet{
		LeapVersionMode: version4<<3 | modeServer,
		Stratum:         1,
		Poll:            6,
		Precision:       -20,
		RootDelay:       0x00008000,
		RootDispersion:  0x00004000,
		ReferenceID:     binary.BigEndian.Uint32([]byte("GOOG")),
		Reference:       TimestampOf(rx.Add(-time.Minute)),
		Origin:          req.Transmit,
		Receive:         TimestampOf(rx),
		Transmit:        TimestampOf(tx),
	}
}

func TestSNTPProbe(t *testing.T) {
	t1 := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	t2 := t1.Add(12 * time.Millisecond)
	t3 := t1.Add(12500 * time.Microsecond)
	t4 := t1.Add(20 * time.Millisecond)

	addr := serveOnce(t, func(req *Packet) *Packet {
		return serverReply(req, t2, t3)
	})

	c := NewSNTP()
	c.now = steppedClock(t1, t4)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	m, err := c.Probe(ctx, addr)
	require.NoError(t, err)
	require.InDelta(t, 2.25, m.OffsetMS, 1e-5)
	require.InDelta(t, 19.5, m.DelayMS, 1e-5)
	require.InDelta(t, 0.5, m.ResponseTimeMS, 1e-5)
	require.InDelta(t, 500, m.RootDelayMS, 1e-9)
	require.InDelta(t, 250, m.RootDispersionMS, 1e-9)
	require.InDelta(t, 0.000953674, m.PrecisionMS, 1e-9)
	require.Equal(t, 1, m.Stratum)
}

func TestSNTPProbeRejectsBadResponses(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		mutate func(p *Packet)
		want   error
	}{
		{
			name: "kiss of death",
			mutate: func(p *Packet) {
				p.Stratum = 0
				p.ReferenceID = binary.BigEndian.Uint32([]byte("RATE"))
			},
			want: ErrKissOfDeath,
		},
		{
			name:   "stratum above 15",
			mutate: func(p *Packet) { p.Stratum = 16 },
			want:   ErrInvalidStratum,
		},
		{
			name:   "not in sync",
			mutate: func(p *Packet) { p.LeapVersionMode |= leapNotInSync << 6 },
			want:   ErrUnsynchronized,
		},
		{
			name:   "wrong origin",
			mutate: func(p *Packet) { p.Origin++ },
			want:   ErrOriginMismatch,
		},
		{
			name:   "client mode",
			mutate: func(p *Packet) { p.LeapVersionMode = version4<<3 | modeClient },
			want:   ErrUnexpectedMode,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addr := serveOnce(t, func(req *Packet) *Packet {
				p := serverReply(req, now, now)
				tt.mutate(p)
				return p
			})

			c := NewSNTP()
			c.now = steppedClock(now)
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()

			_, err := c.Probe(ctx, addr)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestSNTPProbeTimeout(t *testing.T) {
	addr := serveOnce(t, func(*Packet) *Packet { return nil })

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := NewSNTP().Probe(ctx, addr)
	require.Error(t, err)
	require.Less(t, time.Since(start), 2*time.Second)
}

func TestMeasure(t *testing.T) {
	t1 := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name                    string
		t2, t3, t4              time.Duration
		offset, delay, response float64
	}{
		{"symmetric in sync", 5 * time.Millisecond, 6 * time.Millisecond, 11 * time.Millisecond, 0, 10, 1},
		{"server ahead", 105 * time.Millisecond, 106 * time.Millisecond, 11 * time.Millisecond, 100, 10, 1},
		{"server behind", -45 * time.Millisecond, -44 * time.Millisecond, 11 * time.Millisecond, -50, 10, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := measure(t1, t1.Add(tt.t2), t1.Add(tt.t3), t1.Add(tt.t4))
			require.InDelta(t, tt.offset, m.OffsetMS, 1e-9)
			require.InDelta(t, tt.delay, m.DelayMS, 1e-9)
			require.InDelta(t, tt.response, m.ResponseTimeMS, 1e-9)
		})
	}
}
