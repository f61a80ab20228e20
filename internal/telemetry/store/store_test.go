package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Chichichkin/TelemetryAgent/internal/telemetry"
)

func openTestSQLite(t *testing.T) *SQLite {
	t.Helper()

	s, err := OpenSQLite(filepath.Join(t.TempDir(), "telemetry.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStores_GetSetDelete(t *testing.T) {
	stores := map[string]telemetry.Store{
		"memory": NewMemory(),
		"sqlite": openTestSQLite(t),
	}

	for name, s := range stores {
		t.Run(name, func(t *testing.T) {
			_, ok, err := s.Get("missing")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, s.Set("k", []byte(`{"a":1}`)))
			v, ok, err := s.Get("k")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.JSONEq(t, `{"a":1}`, string(v))

			require.NoError(t, s.Set("k", []byte(`"overwritten"`)))
			v, _, err = s.Get("k")
			require.NoError(t, err)
			assert.JSONEq(t, `"overwritten"`, string(v))

			require.NoError(t, s.Delete("k"))
			_, ok, err = s.Get("k")
			require.NoError(t, err)
			assert.False(t, ok)

			assert.NoError(t, s.Delete("never-set"))
		})
	}
}

func TestSQLite_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "telemetry.db")

	s, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, Save(s, telemetry.KeyDeviceID, "device-1"))
	require.NoError(t, s.Close())

	reopened, err := OpenSQLite(path)
	require.NoError(t, err)
	defer reopened.Close()

	v, ok, err := Load[string](reopened, telemetry.KeyDeviceID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "device-1", v)
}

func TestSQLite_RejectsInvalidJSON(t *testing.T) {
	s := openTestSQLite(t)
	assert.Error(t, s.Set("k", []byte("not json")))
}

func TestOpenSQLite_EmptyPath(t *testing.T) {
	_, err := OpenSQLite("  ")
	assert.Error(t, err)
}

func TestClosedStores(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.Close())
	_, _, err := m.Get("k")
	assert.ErrorIs(t, err, telemetry.ErrStoreClosed)
	assert.ErrorIs(t, m.Set("k", []byte("1")), telemetry.ErrStoreClosed)

	s := openTestSQLite(t)
	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Delete("k"), telemetry.ErrStoreClosed)
}

func TestLoad_DecodeError(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.Set("n", []byte(`"text"`)))

	_, ok, err := Load[int](m, "n")
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestResolve_FallbackOrder(t *testing.T) {
	m := NewMemory()
	require.NoError(t, Save(m, "stored", "from-store"))
	generated := 0
	gen := Generate(func() string {
		generated++
		return "generated"
	})

	v, ok := Resolve(Value("explicit"), Stored(m, "stored"), gen)
	assert.True(t, ok)
	assert.Equal(t, "explicit", v)

	v, _ = Resolve(Value(" "), Stored(m, "stored"), gen)
	assert.Equal(t, "from-store", v)

	v, _ = Resolve(Value(""), Stored(m, "absent"), gen)
	assert.Equal(t, "generated", v)
	assert.Equal(t, 1, generated)

	_, ok = Resolve(Value(""), Stored(m, "absent"))
	assert.False(t, ok)
}
