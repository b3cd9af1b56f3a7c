package generator

import (
	"fmt"
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/nrednav/cuid2"
)

const (
	DefaultNanoIDSize     = 21
	DefaultNanoIDAlphabet = "_-0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	DefaultCUID2Length    = 24
)

// NanoIDScheme mints NanoIDs of a fixed size over an alphabet.
type NanoIDScheme struct {
	size     int
	alphabet string
}

// NewNanoIDScheme validates size (1..256) and alphabet (2..255 distinct
// characters). Zero values select the defaults.
func NewNanoIDScheme(size int, alphabet string) (*NanoIDScheme, error) {
	if size == 0 {
		size = DefaultNanoIDSize
	}
	if alphabet == "" {
		alphabet = DefaultNanoIDAlphabet
	}
	if size < 1 || size > 256 {
		return nil, fmt.Errorf("nanoid size must be between 1 and 256, got %d", size)
	}
	n := len([]rune(alphabet))
	if n < 2 || n > 255 {
		return nil, fmt.Errorf("nanoid alphabet must have between 2 and 255 characters, got %d", n)
	}
	return &NanoIDScheme{size: size, alphabet: alphabet}, nil
}

func (s *NanoIDScheme) Name() string { return "nanoid" }

func (s *NanoIDScheme) Generate() (string, error) {
	return gonanoid.Generate(s.alphabet, s.size)
}

func (s *NanoIDScheme) Validate(id string) (bool, string) {
	if n := len([]rune(id)); n != s.size {
		return false, fmt.Sprintf("expected length %d, got %d", s.size, n)
	}
	for _, c := range id {
		if !strings.ContainsRune(s.alphabet, c) {
			return false, fmt.Sprintf("character '%c' not in alphabet", c)
		}
	}
	return true, ""
}

func (s *NanoIDScheme) Parse(id string) (*ParseResult, error) {
	if ok, reason := s.Validate(id); !ok {
		return nil, fmt.Errorf("invalid NanoID: %s", reason)
	}
	return &ParseResult{
		Scheme:   s.Name(),
		ID:       id,
		Length:   s.size,
		Alphabet: s.alphabet,
	}, nil
}

// CUID2Scheme mints collision-resistant CUID2 ids.
type CUID2Scheme struct {
	length   int
	generate func() string
}

// NewCUID2Scheme accepts lengths 2..32; zero selects the default.
func NewCUID2Scheme(length int) (*CUID2Scheme, error) {
	if length == 0 {
		length = DefaultCUID2Length
	}
	if length < 2 || length > 32 {
		return nil, fmt.Errorf("cuid2 length must be between 2 and 32, got %d", length)
	}
	gen, err := cuid2.Init(cuid2.WithLength(length))
	if err != nil {
		return nil, fmt.Errorf("failed to init cuid2: %w", err)
	}
	return &CUID2Scheme{length: length, generate: gen}, nil
}

func (s *CUID2Scheme) Name() string { return "cuid2" }

func (s *CUID2Scheme) Generate() (string, error) {
	return s.generate(), nil
}

func (s *CUID2Scheme) Validate(id string) (bool, string) {
	if len(id) != s.length {
		return false, fmt.Sprintf("expected length %d, got %d", s.length, len(id))
	}
	if !cuid2.IsCuid(id) {
		return false, "invalid CUID2 format"
	}
	return true, ""
}

func (s *CUID2Scheme) Parse(id string) (*ParseResult, error) {
	if ok, reason := s.Validate(id); !ok {
		return nil, fmt.Errorf("invalid CUID2: %s", reason)
	}
	return &ParseResult{
		Scheme: s.Name(),
		ID:     id,
		Length: s.length,
	}, nil
}
