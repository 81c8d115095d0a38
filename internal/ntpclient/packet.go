package ntpclient

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"
)

// PacketSizeBytes is the length of an NTPv4 header without extensions
const PacketSizeBytes = 48

// ntpEpochOffset is the number of seconds from 1900-01-01 to 1970-01-01
const ntpEpochOffset = 2208988800

const (
	leapNotInSync = 3
	modeClient    = 3
	modeServer    = 4
	maxStratum    = 15
	version4      = 4
)

// Response validation failures
var (
	ErrShortPacket    = errors.New("short NTP packet")
	ErrUnexpectedMode = errors.New("unexpected NTP mode")
	ErrOriginMismatch = errors.New("origin timestamp does not match request")
	ErrKissOfDeath    = errors.New("kiss-of-death")
	ErrInvalidStratum = errors.New("invalid stratum")
	ErrUnsynchronized = errors.New("server clock not synchronized")
	ErrZeroTransmit   = errors.New("zero transmit timestamp")
)

// Timestamp is a 64-bit NTP timestamp: whole seconds since 1900 in the high
// word, binary fraction of a second in the low word
type Timestamp uint64

// TimestampOf converts t to NTP time
func TimestampOf(t time.Time) Timestamp {
	secs := uint64(t.Unix() + ntpEpochOffset)
	frac := (uint64(t.Nanosecond()) << 32) / uint64(time.Second)
	return Timestamp(secs<<32 | frac)
}

// Seconds returns the whole-second part
func (ts Timestamp) Seconds() uint32 {
	return uint32(ts >> 32)
}

// Fraction returns the sub-second part in units of 2^-32 s
func (ts Timestamp) Fraction() uint32 {
	return uint32(ts)
}

// Time converts ts back to wall time
func (ts Timestamp) Time() time.Time {
	secs := int64(ts.Seconds()) - ntpEpochOffset
	nanos := (int64(ts.Fraction()) * int64(time.Second)) >> 32
	return time.Unix(secs, nanos)
}

// Packet holds the fixed NTPv4 header fields. On the wire the four single-byte
// fields come first, then the three 32-bit words and the four timestamps, all
// big-endian.
type Packet struct {
	LeapVersionMode uint8
	Stratum         uint8
	Poll            int8   // log2 seconds
	Precision       int8   // log2 seconds
	RootDelay       uint32 // 16.16 seconds
	RootDispersion  uint32 // 16.16 seconds
	ReferenceID     uint32
	Reference       Timestamp
	Origin          Timestamp // T1 echoed back by the server
	Receive         Timestamp // T2
	Transmit        Timestamp // T3
}

// NewRequest builds an NTPv4 client request stamped with the transmit time
func NewRequest(transmit time.Time) *Packet {
	return &Packet{
		LeapVersionMode: version4<<3 | modeClient,
		Transmit:        TimestampOf(transmit),
	}
}

// Leap returns the leap indicator
func (p *Packet) Leap() uint8 {
	return p.LeapVersionMode >> 6
}

// Version returns the protocol version
func (p *Packet) Version() uint8 {
	return (p.LeapVersionMode >> 3) & 0x7
}

// Mode returns the association mode
func (p *Packet) Mode() uint8 {
	return p.LeapVersionMode & 0x7
}

// KissCode returns the reference id as ASCII, meaningful when stratum is 0
func (p *Packet) KissCode() string {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, p.ReferenceID)
	return string(bytes.TrimRight(b, "\x00"))
}

// ReceiveTime is T2, when the server received the request
func (p *Packet) ReceiveTime() time.Time {
	return p.Receive.Time()
}

// TransmitTime is T3, when the server sent the response
func (p *Packet) TransmitTime() time.Time {
	return p.Transmit.Time()
}

// RootDelayMS converts the 16.16 root delay to milliseconds
func (p *Packet) RootDelayMS() float64 {
	return shortToMS(p.RootDelay)
}

// RootDispersionMS converts the 16.16 root dispersion to milliseconds
func (p *Packet) RootDispersionMS() float64 {
	return shortToMS(p.RootDispersion)
}

// PrecisionMS converts the log2 precision to milliseconds
func (p *Packet) PrecisionMS() float64 {
	return math.Pow(2, float64(p.Precision)) * 1000
}

// ValidateResponse checks p is a usable server reply to req
func (p *Packet) ValidateResponse(req *Packet) error {
	if p.Mode() != modeServer {
		return fmt.Errorf("%w: %d", ErrUnexpectedMode, p.Mode())
	}
	if p.Origin != req.Transmit {
		return ErrOriginMismatch
	}
	if p.Stratum == 0 {
		return fmt.Errorf("%w: %q", ErrKissOfDeath, p.KissCode())
	}
	if p.Stratum > maxStratum {
		return fmt.Errorf("%w: %d", ErrInvalidStratum, p.Stratum)
	}
	if p.Leap() == leapNotInSync {
		return ErrUnsynchronized
	}
	if p.Transmit == 0 {
		return ErrZeroTransmit
	}
	return nil
}

// MarshalBinary encodes the header in network byte order
func (p *Packet) MarshalBinary() ([]byte, error) {
	b := make([]byte, PacketSizeBytes)
	b[0] = p.LeapVersionMode
	b[1] = p.Stratum
	b[2] = byte(p.Poll)
	b[3] = byte(p.Precision)
	binary.BigEndian.PutUint32(b[4:], p.RootDelay)
	binary.BigEndian.PutUint32(b[8:], p.RootDispersion)
	binary.BigEndian.PutUint32(b[12:], p.ReferenceID)
	binary.BigEndian.PutUint64(b[16:], uint64(p.Reference))
	binary.BigEndian.PutUint64(b[24:], uint64(p.Origin))
	binary.BigEndian.PutUint64(b[32:], uint64(p.Receive))
	binary.BigEndian.PutUint64(b[40:], uint64(p.Transmit))
	return b, nil
}

// ParsePacket decodes the fixed header from b, ignoring any extension fields
func ParsePacket(b []byte) (*Packet, error) {
	if len(b) < PacketSizeBytes {
		return nil, fmt.Errorf("%w: %d bytes", ErrShortPacket, len(b))
	}
	return &Packet{
		LeapVersionMode: b[0],
		Stratum:         b[1],
		Poll:            int8(b[2]),
		Precision:       int8(b[3]),
		RootDelay:       binary.BigEndian.Uint32(b[4:]),
		RootDispersion:  binary.BigEndian.Uint32(b[8:]),
		ReferenceID:     binary.BigEndian.Uint32(b[12:]),
		Reference:       Timestamp(binary.BigEndian.Uint64(b[16:])),
		Origin:          Timestamp(binary.BigEndian.Uint64(b[24:])),
		Receive:         Timestamp(binary.BigEndian.Uint64(b[32:])),
		Transmit:        Timestamp(binary.BigEndian.Uint64(b[40:])),
	}, nil
}

func shortToMS(v uint32) float64 {
	return float64(v) / 65536 * 1000
}
