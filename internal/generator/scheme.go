package generator

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrUnknownScheme = errors.New("unknown id scheme")
	ErrInvalidCount  = errors.New("invalid batch count")
)

// Scheme generates, validates and parses identifiers of one format.
type Scheme interface {
	Name() string
	Generate() (string, error)
	Validate(id string) (bool, string) // (valid, reason)
	Parse(id string) (*ParseResult, error)
}

// ParseResult holds the fields decoded from an identifier. Only the fields a
// scheme carries are set.
type ParseResult struct {
	Scheme        string     `json:"scheme"`
	ID            string     `json:"id"`
	Timestamp     *time.Time `json:"timestamp,omitempty"`
	TimestampMs   int64      `json:"timestamp_ms,omitempty"`
	Version       int        `json:"version,omitempty"`
	Variant       string     `json:"variant,omitempty"`
	RandomPayload string     `json:"random_payload,omitempty"`
	Length        int        `json:"length,omitempty"`
	Alphabet      string     `json:"alphabet,omitempty"`
}

func (r *ParseResult) setTime(t time.Time) {
	t = t.UTC()
	r.Timestamp = &t
	r.TimestampMs = t.UnixMilli()
}

// GenerateBatch mints count identifiers with s.
func GenerateBatch(s Scheme, count int) ([]string, error) {
	ids := make([]string, 0, count)
	for i := 0; i < count; i++ {
		id, err := s.Generate()
		if err != nil {
			return nil, fmt.Errorf("failed to generate %s id: %w", s.Name(), err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func variantName(v uuid.Variant) string {
	switch v {
	case uuid.RFC4122:
		return "RFC4122"
	case uuid.Reserved:
		return "Reserved"
	case uuid.Microsoft:
		return "Microsoft"
	case uuid.Future:
		return "Future"
	default:
		return "Unknown"
	}
}
