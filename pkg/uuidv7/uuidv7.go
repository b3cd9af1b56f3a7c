package uuidv7

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MaxTimestamp is the largest millisecond value that fits the 48-bit field.
const MaxTimestamp = 1<<48 - 1

var (
	ErrTimestampOutOfRange = errors.New("timestamp out of range")
	ErrNotV7               = errors.New("not a version 7 uuid")
)

// Generator mints UUIDv7 values from a clock and a random source.
type Generator struct {
	rand io.Reader
	now  func() time.Time
}

// Option configures a Generator.
type Option func(*Generator)

// WithRand replaces the random source. The reader is guarded by a mutex, so
// sources that are not safe for concurrent use are fine.
func WithRand(r io.Reader) Option {
	return func(g *Generator) {
		g.rand = &lockedReader{r: r}
	}
}

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) {
		g.now = now
	}
}

// NewGenerator creates a Generator backed by crypto/rand and time.Now unless
// overridden.
func NewGenerator(opts ...Option) *Generator {
	g := &Generator{
		rand: rand.Reader,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// New returns an identifier for the current millisecond.
// It panics only if the random source fails or the clock reads before 1970.
func (g *Generator) New() uuid.UUID {
	id, err := g.Next()
	if err != nil {
		panic("uuidv7: " + err.Error())
	}
	return id
}

// Next is New without the panic.
func (g *Generator) Next() (uuid.UUID, error) {
	return g.FromTimestamp(g.now().UnixMilli())
}

// FromTimestamp returns an identifier embedding ms, which must be within
// [0, MaxTimestamp].
func (g *Generator) FromTimestamp(ms int64) (uuid.UUID, error) {
	if ms < 0 || ms > MaxTimestamp {
		return uuid.Nil, fmt.Errorf("%w: %d not in [0, %d]", ErrTimestampOutOfRange, ms, int64(MaxTimestamp))
	}

	var b [16]byte
	b[0] = byte(ms >> 40)
	b[1] = byte(ms >> 32)
	b[2] = byte(ms >> 24)
	b[3] = byte(ms >> 16)
	b[4] = byte(ms >> 8)
	b[5] = byte(ms)

	if _, err := io.ReadFull(g.rand, b[6:]); err != nil {
		return uuid.Nil, fmt.Errorf("failed to read random bytes: %w", err)
	}

	b[6] = b[6]&0x0f | 0x70
	b[8] = b[8]&0x3f | 0x80

	return uuid.UUID(b), nil
}

// TimestampMillis returns the millisecond timestamp held in the top 48 bits.
// Version and variant are ignored, so any 128-bit value is accepted.
func TimestampMillis(id uuid.UUID) uint64 {
	return binary.BigEndian.Uint64(id[0:8]) >> 16
}

// Timestamp returns TimestampMillis as a UTC time.
func Timestamp(id uuid.UUID) time.Time {
	return time.UnixMilli(int64(TimestampMillis(id))).UTC()
}

// IsV7 reports whether id carries the version 7 and RFC 9562 variant markers.
func IsV7(id uuid.UUID) bool {
	return id[6]>>4 == 7 && id[8]&0xc0 == 0x80
}

// Parse decodes the canonical text form and rejects anything but version 7.
func Parse(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, err
	}
	if !IsV7(id) {
		return uuid.Nil, fmt.Errorf("%w: %s", ErrNotV7, s)
	}
	return id, nil
}

var std = NewGenerator()

// New returns an identifier for the current millisecond from the default
// generator.
func New() uuid.UUID { return std.New() }

// NewString returns New in canonical text form.
func NewString() string { return std.New().String() }

// FromTimestamp is Generator.FromTimestamp on the default generator.
func FromTimestamp(ms int64) (uuid.UUID, error) { return std.FromTimestamp(ms) }

type lockedReader struct {
	mu sync.Mutex
	r  io.Reader
}

func (l *lockedReader) Read(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Read(p)
}
