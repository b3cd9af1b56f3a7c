package generator

import (
	"encoding/hex"
	"fmt"

	"github.com/oklog/ulid/v2"
	"github.com/segmentio/ksuid"
)

// ULIDScheme mints ULIDs that are monotonic within a millisecond.
type ULIDScheme struct{}

func (ULIDScheme) Name() string { return "ulid" }

func (ULIDScheme) Generate() (string, error) {
	return ulid.Make().String(), nil
}

func (ULIDScheme) Validate(id string) (bool, string) {
	if len(id) != ulid.EncodedSize {
		return false, fmt.Sprintf("expected length %d, got %d", ulid.EncodedSize, len(id))
	}
	if _, err := ulid.ParseStrict(id); err != nil {
		return false, fmt.Sprintf("invalid ULID format: %v", err)
	}
	return true, ""
}

func (s ULIDScheme) Parse(id string) (*ParseResult, error) {
	parsed, err := ulid.ParseStrict(id)
	if err != nil {
		return nil, fmt.Errorf("invalid ULID format: %w", err)
	}

	r := &ParseResult{
		Scheme:        s.Name(),
		ID:            parsed.String(),
		RandomPayload: hex.EncodeToString(parsed.Entropy()),
	}
	r.setTime(ulid.Time(parsed.Time()))
	return r, nil
}

// KSUIDScheme mints KSUIDs (second precision timestamp plus 128 random bits).
type KSUIDScheme struct{}

func (KSUIDScheme) Name() string { return "ksuid" }

func (KSUIDScheme) Generate() (string, error) {
	id, err := ksuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

func (KSUIDScheme) Validate(id string) (bool, string) {
	if len(id) != 27 {
		return false, fmt.Sprintf("expected length 27, got %d", len(id))
	}
	if _, err := ksuid.Parse(id); err != nil {
		return false, fmt.Sprintf("invalid KSUID format: %v", err)
	}
	return true, ""
}

func (s KSUIDScheme) Parse(id string) (*ParseResult, error) {
	if ok, reason := s.Validate(id); !ok {
		return nil, fmt.Errorf("invalid KSUID: %s", reason)
	}
	parsed, _ := ksuid.Parse(id)

	r := &ParseResult{
		Scheme:        s.Name(),
		ID:            parsed.String(),
		RandomPayload: hex.EncodeToString(parsed.Payload()),
	}
	r.setTime(parsed.Time())
	return r, nil
}
