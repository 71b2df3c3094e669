package localstore

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

// brokenBackend fails every call, either with an error or a panic.
type brokenBackend struct {
	panics bool
	calls  int
}

func (b *brokenBackend) fail() error {
	b.calls++
	if b.panics {
		panic("storage disabled")
	}
	return errors.New("quota exceeded")
}

func (b *brokenBackend) Get(string) (string, bool, error) { return "", false, b.fail() }
func (b *brokenBackend) Set(string, string) error         { return b.fail() }
func (b *brokenBackend) Remove(string) error              { return b.fail() }

func TestSQLite_RoundTrip(t *testing.T) {
	db, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	defer db.Close()

	_, found, err := db.Get("missing")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, db.Set("k", "v1"))
	require.NoError(t, db.Set("k", "v2"))

	value, found, err := db.Get("k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "v2", value)

	require.NoError(t, db.Remove("k"))
	_, found, err = db.Get("k")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSQLite_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")

	db, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, db.Set("connection", `{"status":"connected"}`))
	require.NoError(t, db.Close())

	db, err = OpenSQLite(path)
	require.NoError(t, err)
	defer db.Close()

	value, found, err := db.Get("connection")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, `{"status":"connected"}`, value)
}

func TestSafe_UsesBackend(t *testing.T) {
	db, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	defer db.Close()

	s := NewSafe(db, testLogger())
	s.Set("k", "v")

	value, found, err := db.Get("k")
	require.NoError(t, err)
	assert.True(t, found, "value should reach the backend")
	assert.Equal(t, "v", value)

	got, ok := s.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "v", got)

	s.Remove("k")
	_, ok = s.Get("k")
	assert.False(t, ok)
}

func TestSafe_FallsBackOnError(t *testing.T) {
	for _, panics := range []bool{false, true} {
		name := "error"
		if panics {
			name = "panic"
		}
		t.Run(name, func(t *testing.T) {
			backend := &brokenBackend{panics: panics}
			s := NewSafe(backend, testLogger())

			_, ok := s.Get("k")
			assert.False(t, ok)

			s.Set("k", "v")
			got, ok := s.Get("k")
			assert.True(t, ok)
			assert.Equal(t, "v", got)

			s.Remove("k")
			_, ok = s.Get("k")
			assert.False(t, ok)
			assert.Equal(t, 5, backend.calls)
		})
	}
}

func TestSafe_FallbackVisibleAfterRecovery(t *testing.T) {
	flaky := &flakyBackend{mem: map[string]string{}, failing: true}
	s := NewSafe(flaky, testLogger())

	s.Set("queued", "1")
	flaky.failing = false

	got, ok := s.Get("queued")
	assert.True(t, ok)
	assert.Equal(t, "1", got)

	s.Set("queued", "2")
	assert.Equal(t, "2", flaky.mem["queued"])
	got, _ = s.Get("queued")
	assert.Equal(t, "2", got)
}

func TestMemory(t *testing.T) {
	s := NewMemory(testLogger())
	s.Set("a", "1")
	got, ok := s.Get("a")
	assert.True(t, ok)
	assert.Equal(t, "1", got)
}

type flakyBackend struct {
	mem     map[string]string
	failing bool
}

func (f *flakyBackend) Get(key string) (string, bool, error) {
	if f.failing {
		return "", false, errors.New("down")
	}
	v, ok := f.mem[key]
	return v, ok, nil
}

func (f *flakyBackend) Set(key, value string) error {
	if f.failing {
		return errors.New("down")
	}
	f.mem[key] = value
	return nil
}

func (f *flakyBackend) Remove(key string) error {
	if f.failing {
		return errors.New("down")
	}
	delete(f.mem, key)
	return nil
}
