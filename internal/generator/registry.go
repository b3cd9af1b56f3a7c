package generator

import (
	"fmt"
	"sort"

	"github.com/flenzi/company-service/pkg/uuidv7"
)

// DefaultMaxBatch caps one batch request.
const DefaultMaxBatch = 1000

// Config tunes the configurable schemes.
type Config struct {
	NanoIDSize     int
	NanoIDAlphabet string
	CUID2Length    int
	MaxBatch       int
}

// Registry looks schemes up by name.
type Registry struct {
	schemes  map[string]Scheme
	maxBatch int
}

// NewRegistry builds every supported scheme. UUIDv7 ids come from gen.
func NewRegistry(cfg Config, gen *uuidv7.Generator) (*Registry, error) {
	nano, err := NewNanoIDScheme(cfg.NanoIDSize, cfg.NanoIDAlphabet)
	if err != nil {
		return nil, err
	}
	cuid, err := NewCUID2Scheme(cfg.CUID2Length)
	if err != nil {
		return nil, err
	}

	maxBatch := cfg.MaxBatch
	if maxBatch <= 0 {
		maxBatch = DefaultMaxBatch
	}

	r := &Registry{schemes: make(map[string]Scheme), maxBatch: maxBatch}
	for _, s := range []Scheme{
		NewUUIDv7Scheme(gen),
		UUIDv4Scheme{},
		ULIDScheme{},
		KSUIDScheme{},
		nano,
		cuid,
	} {
		r.schemes[s.Name()] = s
	}
	return r, nil
}

// Get returns the scheme called name.
func (r *Registry) Get(name string) (Scheme, error) {
	s, ok := r.schemes[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownScheme, name)
	}
	return s, nil
}

// Names lists the registered scheme names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.schemes))
	for name := range r.schemes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MaxBatch is the largest accepted batch count.
func (r *Registry) MaxBatch() int {
	return r.maxBatch
}

// Generate mints count ids with the named scheme. count must be in
// [1, MaxBatch].
func (r *Registry) Generate(name string, count int) ([]string, error) {
	s, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	if count < 1 || count > r.maxBatch {
		return nil, fmt.Errorf("%w: %d not in [1, %d]", ErrInvalidCount, count, r.maxBatch)
	}
	return GenerateBatch(s, count)
}
