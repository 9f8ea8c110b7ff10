package pebble

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tryfix/estream/backend"
	"github.com/tryfix/estream/backend/backendtest"
)

func TestPebble(t *testing.T) {
	backendtest.Run(t, Builder(NewConfig(t.TempDir())))
}

func TestPebble_Persistence(t *testing.T) {
	dir := t.TempDir()
	backendtest.RunPersistence(t, func() backend.Builder {
		return Builder(NewConfig(dir))
	})
}

func TestPebble_Destroy(t *testing.T) {
	b, err := NewPebbleBackend(`destroy`, NewConfig(t.TempDir()))
	require.NoError(t, err)
	require.NoError(t, b.Set([]byte(`k`), []byte(`v`), 0))
	require.NoError(t, b.Destroy())
	require.NoDirExists(t, b.dir)
}
