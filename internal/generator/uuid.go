package generator

import (
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"

	"github.com/flenzi/company-service/pkg/uuidv7"
)

// UUIDv7Scheme mints time-ordered UUIDs from the shared generator.
type UUIDv7Scheme struct {
	gen *uuidv7.Generator
}

func NewUUIDv7Scheme(gen *uuidv7.Generator) *UUIDv7Scheme {
	return &UUIDv7Scheme{gen: gen}
}

func (s *UUIDv7Scheme) Name() string { return "uuidv7" }

func (s *UUIDv7Scheme) Generate() (string, error) {
	id, err := s.gen.Next()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

func (s *UUIDv7Scheme) Validate(id string) (bool, string) {
	if _, err := uuidv7.Parse(id); err != nil {
		return false, err.Error()
	}
	return true, ""
}

func (s *UUIDv7Scheme) Parse(id string) (*ParseResult, error) {
	parsed, err := uuidv7.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid UUIDv7: %w", err)
	}

	r := &ParseResult{
		Scheme:        s.Name(),
		ID:            parsed.String(),
		Version:       int(parsed.Version()),
		Variant:       variantName(parsed.Variant()),
		RandomPayload: hex.EncodeToString(randomBits(parsed)),
	}
	r.setTime(uuidv7.Timestamp(parsed))
	return r, nil
}

// randomBits returns the low 80 bits of id with the version nibble and the
// variant bits cleared, leaving only the 74 random bits set.
func randomBits(id uuid.UUID) []byte {
	b := make([]byte, 10)
	copy(b, id[6:])
	b[0] &= 0x0f
	b[2] &= 0x3f
	return b
}

// UUIDv4Scheme mints random UUIDs.
type UUIDv4Scheme struct{}

func (UUIDv4Scheme) Name() string { return "uuid" }

func (UUIDv4Scheme) Generate() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

func (UUIDv4Scheme) Validate(id string) (bool, string) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return false, fmt.Sprintf("invalid UUID format: %v", err)
	}
	if parsed.Version() != 4 {
		return false, fmt.Sprintf("expected UUID v4, got v%d", parsed.Version())
	}
	return true, ""
}

func (s UUIDv4Scheme) Parse(id string) (*ParseResult, error) {
	if ok, reason := s.Validate(id); !ok {
		return nil, fmt.Errorf("invalid UUID: %s", reason)
	}
	parsed := uuid.MustParse(id)

	return &ParseResult{
		Scheme:  s.Name(),
		ID:      parsed.String(),
		Version: int(parsed.Version()),
		Variant: variantName(parsed.Variant()),
	}, nil
}
