package generator

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flenzi/company-service/pkg/uuidv7"
)

func newTestRegistry(t *testing.T, cfg Config) *Registry {
	t.Helper()
	at := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	r, err := NewRegistry(cfg, uuidv7.NewGenerator(uuidv7.WithClock(func() time.Time { return at })))
	require.NoError(t, err)
	return r
}

func TestRegistryNames(t *testing.T) {
	r := newTestRegistry(t, Config{})
	assert.Equal(t, []string{"cuid2", "ksuid", "nanoid", "ulid", "uuid", "uuidv7"}, r.Names())

	_, err := r.Get("snowflake")
	assert.ErrorIs(t, err, ErrUnknownScheme)
}

func TestEverySchemeRoundTrips(t *testing.T) {
	r := newTestRegistry(t, Config{})
	for _, name := range r.Names() {
		t.Run(name, func(t *testing.T) {
			ids, err := r.Generate(name, 50)
			require.NoError(t, err)
			require.Len(t, ids, 50)

			seen := make(map[string]struct{})
			for _, id := range ids {
				s, _ := r.Get(name)
				ok, reason := s.Validate(id)
				assert.True(t, ok, reason)

				res, err := s.Parse(id)
				require.NoError(t, err)
				assert.Equal(t, name, res.Scheme)
				seen[id] = struct{}{}
			}
			assert.Len(t, seen, 50)
		})
	}
}

func TestBatchBounds(t *testing.T) {
	r := newTestRegistry(t, Config{MaxBatch: 10})

	for _, n := range []int{0, -1, 11} {
		_, err := r.Generate("uuidv7", n)
		assert.ErrorIs(t, err, ErrInvalidCount, "n=%d", n)
	}
	ids, err := r.Generate("uuidv7", 10)
	require.NoError(t, err)
	assert.Len(t, ids, 10)

	assert.Equal(t, DefaultMaxBatch, newTestRegistry(t, Config{}).MaxBatch())
}

func TestUUIDv7ParseReportsTimestamp(t *testing.T) {
	r := newTestRegistry(t, Config{})
	ids, err := r.Generate("uuidv7", 1)
	require.NoError(t, err)

	s, err := r.Get("uuidv7")
	require.NoError(t, err)
	res, err := s.Parse(ids[0])
	require.NoError(t, err)

	assert.Equal(t, 7, res.Version)
	assert.Equal(t, "RFC4122", res.Variant)
	require.NotNil(t, res.Timestamp)
	assert.Equal(t, time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC), *res.Timestamp)
	assert.Len(t, res.RandomPayload, 20)
}

func TestUUIDv7RandomPayloadExcludesMarkers(t *testing.T) {
	s := NewUUIDv7Scheme(uuidv7.NewGenerator(uuidv7.WithRand(onesReader{})))
	id, err := s.Generate()
	require.NoError(t, err)

	res, err := s.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, "0fff3fffffffffffffff", res.RandomPayload)
}

// onesReader yields 0xff forever.
type onesReader struct{}

func (onesReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0xff
	}
	return len(p), nil
}

func TestUUIDSchemesRejectEachOther(t *testing.T) {
	r := newTestRegistry(t, Config{})
	v7, _ := r.Get("uuidv7")
	v4, _ := r.Get("uuid")

	v4ids, err := r.Generate("uuid", 1)
	require.NoError(t, err)
	ok, _ := v7.Validate(v4ids[0])
	assert.False(t, ok)

	v7ids, err := r.Generate("uuidv7", 1)
	require.NoError(t, err)
	ok, reason := v4.Validate(v7ids[0])
	assert.False(t, ok)
	assert.Contains(t, reason, "got v7")
}

func TestULIDAndKSUIDTimestamps(t *testing.T) {
	r := newTestRegistry(t, Config{})

	for _, name := range []string{"ulid", "ksuid"} {
		s, _ := r.Get(name)
		id, err := s.Generate()
		require.NoError(t, err)
		res, err := s.Parse(id)
		require.NoError(t, err)
		require.NotNil(t, res.Timestamp, name)
		assert.WithinDuration(t, time.Now(), *res.Timestamp, 5*time.Second)
	}
}

func TestNanoIDConfig(t *testing.T) {
	r := newTestRegistry(t, Config{NanoIDSize: 8, NanoIDAlphabet: "abc"})
	s, _ := r.Get("nanoid")

	id, err := s.Generate()
	require.NoError(t, err)
	assert.Len(t, id, 8)
	assert.Empty(t, strings.Trim(id, "abc"))

	ok, reason := s.Validate("abcabcaz")
	assert.False(t, ok)
	assert.Contains(t, reason, "not in alphabet")

	_, err = s.Parse("abc")
	assert.Error(t, err)

	_, err = NewNanoIDScheme(300, "")
	assert.Error(t, err)
	_, err = NewNanoIDScheme(10, "a")
	assert.Error(t, err)
}

func TestCUID2Config(t *testing.T) {
	r := newTestRegistry(t, Config{CUID2Length: 10})
	s, _ := r.Get("cuid2")

	id, err := s.Generate()
	require.NoError(t, err)
	assert.Len(t, id, 10)

	ok, _ := s.Validate("ABCDEFGHIJ")
	assert.False(t, ok)

	_, err = NewCUID2Scheme(33)
	assert.Error(t, err)
	_, err = NewRegistry(Config{CUID2Length: 1}, uuidv7.NewGenerator())
	assert.Error(t, err)
}
