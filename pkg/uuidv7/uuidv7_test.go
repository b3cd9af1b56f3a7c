package uuidv7

import (
	"bytes"
	"errors"
	mathrand "math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// constReader yields the same byte forever.
type constReader byte

func (c constReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = byte(c)
	}
	return len(p), nil
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("entropy exhausted") }

func TestVersionAndVariant(t *testing.T) {
	g := NewGenerator()
	for i := 0; i < 1000; i++ {
		id, err := g.FromTimestamp(int64(i) * 7919)
		require.NoError(t, err)

		assert.Equal(t, byte(7), id[6]>>4)
		assert.Equal(t, byte(0x80), id[8]&0xc0)
		assert.Equal(t, uuid.Version(7), id.Version())
		assert.Equal(t, uuid.RFC4122, id.Variant())
		assert.True(t, IsV7(id))
	}
}

func TestMarkersSurviveExtremeRandomness(t *testing.T) {
	for _, src := range []constReader{0x00, 0xff} {
		g := NewGenerator(WithRand(src))
		id, err := g.FromTimestamp(42)
		require.NoError(t, err)
		assert.True(t, IsV7(id), "random byte %#x", byte(src))
	}
}

func TestTimestampRoundTrip(t *testing.T) {
	cases := []int64{0, 1, 255, 1 << 16, 1700000000000, time.Date(2999, 12, 31, 0, 0, 0, 0, time.UTC).UnixMilli(), MaxTimestamp}
	for _, src := range []constReader{0x00, 0xa5, 0xff} {
		g := NewGenerator(WithRand(src))
		for _, ms := range cases {
			id, err := g.FromTimestamp(ms)
			require.NoError(t, err)
			assert.Equal(t, uint64(ms), TimestampMillis(id), "ms=%d", ms)
			assert.Equal(t, time.UnixMilli(ms).UTC(), Timestamp(id))
		}
	}
}

func TestOrderingFollowsTimestamp(t *testing.T) {
	high := NewGenerator(WithRand(constReader(0xff)))
	low := NewGenerator(WithRand(constReader(0x00)))

	for _, ms := range []int64{0, 1, 1700000000000, MaxTimestamp - 1} {
		a, err := high.FromTimestamp(ms)
		require.NoError(t, err)
		b, err := low.FromTimestamp(ms + 1)
		require.NoError(t, err)

		assert.Negative(t, bytes.Compare(a[:], b[:]), "ms=%d", ms)
		assert.Less(t, a.String(), b.String())
	}
}

func TestUniqueWithinSameMillisecond(t *testing.T) {
	g := NewGenerator()
	seen := make(map[uuid.UUID]struct{}, 10000)
	for i := 0; i < 10000; i++ {
		id, err := g.FromTimestamp(1700000000000)
		require.NoError(t, err)
		seen[id] = struct{}{}
	}
	assert.Len(t, seen, 10000)
}

func TestTextRoundTrip(t *testing.T) {
	for i := 0; i < 100; i++ {
		id := New()
		s := id.String()
		assert.Len(t, s, 36)
		assert.Equal(t, strings.ToLower(s), s)

		parsed, err := uuid.Parse(s)
		require.NoError(t, err)
		assert.Equal(t, id, parsed)

		parsed, err = Parse(s)
		require.NoError(t, err)
		assert.Equal(t, id, parsed)
	}
}

func TestKnownTimestamp(t *testing.T) {
	id, err := FromTimestamp(1700000000000)
	require.NoError(t, err)

	s := id.String()
	assert.Equal(t, "018bcfe5-6800", s[:13])
	assert.Equal(t, byte('7'), s[14])
	assert.Contains(t, "89ab", string(s[19]))
	assert.Equal(t, uint64(1700000000000), TimestampMillis(id))
}

func TestZeroTimestamp(t *testing.T) {
	id, err := FromTimestamp(0)
	require.NoError(t, err)

	assert.Equal(t, []byte{0, 0, 0, 0, 0, 0}, id[:6])
	assert.Equal(t, uint64(0), TimestampMillis(id))
	assert.Equal(t, time.Unix(0, 0).UTC(), Timestamp(id))
}

func TestTimestampOutOfRange(t *testing.T) {
	for _, ms := range []int64{-1, MaxTimestamp + 1, 1 << 62} {
		id, err := FromTimestamp(ms)
		assert.ErrorIs(t, err, ErrTimestampOutOfRange, "ms=%d", ms)
		assert.Equal(t, uuid.Nil, id)
	}
}

func TestNewBeforeEpochPanics(t *testing.T) {
	g := NewGenerator(WithClock(func() time.Time { return time.Date(1969, 12, 31, 0, 0, 0, 0, time.UTC) }))

	_, err := g.Next()
	assert.ErrorIs(t, err, ErrTimestampOutOfRange)
	assert.Panics(t, func() { g.New() })
}

func TestNewUsesClock(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 987654321, time.UTC)
	g := NewGenerator(WithClock(func() time.Time { return at }))

	id := g.New()
	assert.Equal(t, uint64(at.UnixMilli()), TimestampMillis(id))

	next, err := g.Next()
	require.NoError(t, err)
	assert.Equal(t, TimestampMillis(id), TimestampMillis(next))
	assert.Equal(t, at.Truncate(time.Millisecond), Timestamp(id))
}

func TestRandomSourceFailure(t *testing.T) {
	g := NewGenerator(WithRand(failingReader{}))

	_, err := g.FromTimestamp(1)
	assert.Error(t, err)
	_, err = g.Next()
	assert.Error(t, err)
	assert.Panics(t, func() { g.New() })
}

func TestConcurrentGeneration(t *testing.T) {
	// math/rand.Rand is not safe for concurrent use; WithRand must serialize it.
	g := NewGenerator(WithRand(mathrand.New(mathrand.NewSource(1))))

	const workers, perWorker = 8, 500
	var (
		mu   sync.Mutex
		seen = make(map[uuid.UUID]struct{}, workers*perWorker)
		wg   sync.WaitGroup
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]uuid.UUID, 0, perWorker)
			for i := 0; i < perWorker; i++ {
				local = append(local, g.New())
			}
			mu.Lock()
			for _, id := range local {
				seen[id] = struct{}{}
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, seen, workers*perWorker)
}

func TestParseRejectsOtherVersions(t *testing.T) {
	v4 := uuid.New()
	_, err := Parse(v4.String())
	assert.ErrorIs(t, err, ErrNotV7)

	_, err = Parse("not-a-uuid")
	assert.Error(t, err)
}
