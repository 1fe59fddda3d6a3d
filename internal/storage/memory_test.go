package storage

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore("")
	ctx := context.Background()

	res, err := store.WriteContent(ctx, "l/main/commits", []byte(`{"a":1}`))
	require.NoError(t, err)

	v, err := store.ReadJSON(ctx, res.Address, false)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": float64(1)}, v)
}

func TestMemoryStoreMissingKeyIsNil(t *testing.T) {
	store := NewMemoryStore("")

	data, err := store.ReadBytes(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestMemoryStoreConcurrentAccess(t *testing.T) {
	store := NewMemoryStore("")
	ctx := context.Background()

	var wg sync.WaitGroup

	for i := 0; i < 32; i++ {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()

			path := fmt.Sprintf("k/%d", i)

			require.NoError(t, store.WriteBytes(ctx, path, []byte{byte(i)}))

			data, err := store.ReadBytes(ctx, path)
			require.NoError(t, err)
			assert.Equal(t, []byte{byte(i)}, data)
		}(i)
	}

	wg.Wait()
}

func TestMemoryStoreIdentifiers(t *testing.T) {
	store := NewMemoryStore("tenant-a")

	assert.Equal(t, map[string]struct{}{"tenant-a": {}}, store.Identifiers())
}
