package assistant

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/fundqa/internal/compose"
)

func TestSessions(t *testing.T) {
	engine := newEngine(t, corpus())
	def := New(engine, compose.New(nil), testOptions)

	var keys []string
	s := NewSessions(def, func(apiKey string) (*Assistant, error) {
		keys = append(keys, apiKey)
		return New(engine, compose.New(nil), testOptions), nil
	})

	got, err := s.Get("")
	require.NoError(t, err)
	assert.Same(t, def, got)
	assert.Same(t, def, s.Default())

	id, err := s.Create("sk-one")
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, []string{"sk-one"}, keys)
	assert.Equal(t, 1, s.Len())

	a, err := s.Get(id)
	require.NoError(t, err)
	assert.NotSame(t, def, a)

	_, err = s.Get("missing")
	assert.True(t, errors.Is(err, ErrSessionNotFound))
}

func TestSessions_FactoryError(t *testing.T) {
	s := NewSessions(nil, func(string) (*Assistant, error) {
		return nil, errors.New("index not loaded")
	})

	_, err := s.Create("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "assistant: create session")
	assert.Zero(t, s.Len())
}

func newLimitedSessions(t *testing.T, opts ...SessionOption) (*Sessions, *time.Time) {
	t.Helper()
	engine := newEngine(t, corpus())
	s := NewSessions(nil, func(string) (*Assistant, error) {
		return New(engine, compose.New(nil), testOptions), nil
	}, opts...)
	clock := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return clock }
	return s, &clock
}

func TestSessions_CapEvictsLeastRecentlyUsed(t *testing.T) {
	s, clock := newLimitedSessions(t, WithMaxSessions(2))

	first, err := s.Create("")
	require.NoError(t, err)
	*clock = clock.Add(time.Minute)
	second, err := s.Create("")
	require.NoError(t, err)

	// Touch the first so the second becomes the oldest.
	*clock = clock.Add(time.Minute)
	_, err = s.Get(first)
	require.NoError(t, err)

	*clock = clock.Add(time.Minute)
	third, err := s.Create("")
	require.NoError(t, err)

	assert.Equal(t, 2, s.Len())
	_, err = s.Get(second)
	assert.True(t, errors.Is(err, ErrSessionNotFound))
	_, err = s.Get(first)
	assert.NoError(t, err)
	_, err = s.Get(third)
	assert.NoError(t, err)
}

func TestSessions_RepeatedCreateStaysBounded(t *testing.T) {
	s, _ := newLimitedSessions(t, WithMaxSessions(5))

	for range 50 {
		_, err := s.Create("")
		require.NoError(t, err)
	}
	assert.Equal(t, 5, s.Len())
}

func TestSessions_IdleExpiry(t *testing.T) {
	s, clock := newLimitedSessions(t, WithIdleTTL(10*time.Minute))

	id, err := s.Create("")
	require.NoError(t, err)

	*clock = clock.Add(9 * time.Minute)
	_, err = s.Get(id)
	require.NoError(t, err, "use within the TTL refreshes the timer")

	*clock = clock.Add(9 * time.Minute)
	_, err = s.Get(id)
	require.NoError(t, err)

	*clock = clock.Add(11 * time.Minute)
	_, err = s.Get(id)
	assert.True(t, errors.Is(err, ErrSessionNotFound))
	assert.Zero(t, s.Len())
}

func TestSessions_Defaults(t *testing.T) {
	s := NewSessions(nil, nil, WithMaxSessions(0), WithIdleTTL(-time.Second))
	assert.Equal(t, DefaultMaxSessions, s.max)
	assert.Equal(t, DefaultSessionIdle, s.idle)
}
