// Package backendtest holds the behaviour every backend.Backend must share.
// Backend packages run it from their own tests.
package backendtest

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tryfix/estream/backend"
)

func open(t *testing.T, builder backend.Builder, name string) backend.Backend {
	t.Helper()
	b, err := builder(name)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = b.Destroy()
		_ = b.Close()
	})
	return b
}

// Run exercises the read, write, delete and iteration contract of the
// backends returned by builder. Each subtest opens its own store name.
func Run(t *testing.T, builder backend.Builder) {
	t.Run(`SetGet`, func(t *testing.T) {
		b := open(t, builder, `set_get`)
		require.NoError(t, b.Set([]byte(`k1`), []byte(`v1`), 0))

		v, err := b.Get([]byte(`k1`))
		require.NoError(t, err)
		require.Equal(t, []byte(`v1`), v)

		require.NoError(t, b.Set([]byte(`k1`), []byte(`v2`), 0))
		v, err = b.Get([]byte(`k1`))
		require.NoError(t, err)
		require.Equal(t, []byte(`v2`), v)
	})

	t.Run(`GetMissing`, func(t *testing.T) {
		b := open(t, builder, `get_missing`)
		v, err := b.Get([]byte(`nope`))
		require.NoError(t, err)
		require.Nil(t, v)

		has, err := b.Has([]byte(`nope`))
		require.NoError(t, err)
		require.False(t, has)
	})

	t.Run(`EmptyValue`, func(t *testing.T) {
		b := open(t, builder, `empty_value`)
		require.NoError(t, b.Set([]byte(`k1`), []byte{}, 0))

		v, err := b.Get([]byte(`k1`))
		require.NoError(t, err)
		require.NotNil(t, v)
		require.Len(t, v, 0)

		has, err := b.Has([]byte(`k1`))
		require.NoError(t, err)
		require.True(t, has)
	})

	t.Run(`Delete`, func(t *testing.T) {
		b := open(t, builder, `delete`)
		require.NoError(t, b.Set([]byte(`k1`), []byte(`v1`), 0))

		has, err := b.Has([]byte(`k1`))
		require.NoError(t, err)
		require.True(t, has)

		require.NoError(t, b.Delete([]byte(`k1`)))
		v, err := b.Get([]byte(`k1`))
		require.NoError(t, err)
		require.Nil(t, v)

		require.NoError(t, b.Delete([]byte(`never-set`)))
	})

	t.Run(`Iterator`, func(t *testing.T) {
		b := open(t, builder, `iterator`)
		for _, k := range []string{`c`, `a`, `b`} {
			require.NoError(t, b.Set([]byte(k), []byte(`v-`+k), 0))
		}

		it := b.Iterator()
		defer it.Close()

		var keys []string
		for it.SeekToFirst(); it.Valid(); it.Next() {
			keys = append(keys, string(it.Key()))
			require.Equal(t, `v-`+string(it.Key()), string(it.Value()))
		}
		require.NoError(t, it.Error())
		require.Equal(t, []string{`a`, `b`, `c`}, keys)
	})

	t.Run(`RangeIterator`, func(t *testing.T) {
		b := open(t, builder, `range_iterator`)
		for i := 0; i < 5; i++ {
			require.NoError(t, b.Set([]byte(fmt.Sprintf(`k%d`, i)), []byte(`v`), 0))
		}

		it := b.RangeIterator([]byte(`k1`), []byte(`k4`))
		defer it.Close()

		var keys []string
		for it.SeekToFirst(); it.Valid(); it.Next() {
			keys = append(keys, string(it.Key()))
		}
		require.Equal(t, []string{`k1`, `k2`, `k3`}, keys)
	})

	t.Run(`Closed`, func(t *testing.T) {
		b, err := builder(`closed`)
		require.NoError(t, err)
		require.NoError(t, b.Close())
		require.NoError(t, b.Close())

		require.Error(t, b.Set([]byte(`k`), []byte(`v`), 0))
		_, err = b.Get([]byte(`k`))
		require.Error(t, err)
		require.False(t, b.Iterator().Valid())
	})
}

// RunPersistence writes through one builder, closes the backend and reads
// the data back through a fresh builder pointing at the same location.
func RunPersistence(t *testing.T, newBuilder func() backend.Builder) {
	b, err := newBuilder()(`persisted`)
	require.NoError(t, err)
	require.True(t, b.Persistent())
	require.NoError(t, b.Set([]byte(`k1`), []byte(`v1`), 0))
	require.NoError(t, b.Set([]byte(`k2`), []byte(`v2`), 0))
	require.NoError(t, b.Delete([]byte(`k2`)))
	require.NoError(t, b.Close())

	reopened := open(t, newBuilder(), `persisted`)
	v, err := reopened.Get([]byte(`k1`))
	require.NoError(t, err)
	require.Equal(t, []byte(`v1`), v)

	v, err = reopened.Get([]byte(`k2`))
	require.NoError(t, err)
	require.Nil(t, v)
}
