package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFileStore(t *testing.T) *FileStore {
	t.Helper()

	store, err := NewFileStore(FileConfig{RootPath: t.TempDir()})
	require.NoError(t, err)

	return store
}

func TestFileStoreContentRoundTrip(t *testing.T) {
	store := newTestFileStore(t)
	ctx := context.Background()

	payload := []byte(`{"@context":{"ex":"http://ex/"},"ex:a":"b"}`)

	res, err := store.WriteContent(ctx, "my-alias/main/commits", payload)
	require.NoError(t, err)

	wantHash := hex.EncodeToString(func() []byte { s := sha256.Sum256(payload); return s[:] }())
	assert.Equal(t, wantHash, res.Hash)
	assert.Len(t, res.Hash, 64)
	assert.Equal(t, int64(len(payload)), res.Size)
	assert.Equal(t, "fluree:file://my-alias/main/commits/"+wantHash+".json", res.Address)

	read, err := store.ReadBytes(ctx, res.Path)
	require.NoError(t, err)
	assert.Equal(t, payload, read)
}

func TestFileStoreWriteIsIdempotent(t *testing.T) {
	store := newTestFileStore(t)
	ctx := context.Background()

	payload := []byte(`{"n":1}`)

	first, err := store.WriteContent(ctx, "ledger/main/commits", payload)
	require.NoError(t, err)

	second, err := store.WriteContent(ctx, "ledger/main/commits", payload)
	require.NoError(t, err)

	assert.Equal(t, first.Address, second.Address)
	assert.Equal(t, first.Hash, second.Hash)
}

func TestFileStoreMissingReadReturnsNil(t *testing.T) {
	store := newTestFileStore(t)

	data, err := store.ReadBytes(context.Background(), "nope/missing.json")
	require.NoError(t, err)
	assert.Nil(t, data)

	v, err := store.ReadJSON(context.Background(), "fluree:file://nope/missing.json", false)
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestFileStoreRejectsTraversal(t *testing.T) {
	store := newTestFileStore(t)

	err := store.WriteBytes(context.Background(), "../outside.json", []byte("x"))
	require.Error(t, err)

	_, err = store.ReadBytes(context.Background(), "a/../../etc/passwd")
	require.Error(t, err)
}

func TestFileStoreEncryptionRoundTrip(t *testing.T) {
	root := t.TempDir()

	encrypted, err := NewFileStore(FileConfig{RootPath: root, EncryptionKey: "secret"})
	require.NoError(t, err)

	ctx := context.Background()
	payload := []byte(`{"private":true}`)

	require.NoError(t, encrypted.WriteBytes(ctx, "ledger/main/head", payload))

	read, err := encrypted.ReadBytes(ctx, "ledger/main/head")
	require.NoError(t, err)
	assert.Equal(t, payload, read)

	// The raw bytes on disk must not be the plaintext.
	plain, err := NewFileStore(FileConfig{RootPath: root})
	require.NoError(t, err)

	raw, err := plain.ReadBytes(ctx, "ledger/main/head")
	require.NoError(t, err)
	assert.NotEqual(t, payload, raw)
}

func TestFileStoreReadJSONKeywordize(t *testing.T) {
	store := newTestFileStore(t)
	ctx := context.Background()

	res, err := store.WriteContent(ctx, "l/main/commits", []byte(`{"someKey":1,"@context":{"innerKey":2}}`))
	require.NoError(t, err)

	v, err := store.ReadJSON(ctx, res.Address, true)
	require.NoError(t, err)

	m, ok := v.(map[string]any)
	require.True(t, ok)
	assert.Contains(t, m, "some_key")
	assert.Contains(t, m, "@context")
}

func TestFileStoreDeleteAndStat(t *testing.T) {
	store := newTestFileStore(t)
	ctx := context.Background()

	res, err := store.WriteContent(ctx, "l/main/commits", []byte(`{}`))
	require.NoError(t, err)

	st, err := store.Stat(ctx, res.Address)
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.Equal(t, int64(2), st.Size)

	require.NoError(t, store.Delete(ctx, res.Address))

	st, err = store.Stat(ctx, res.Address)
	require.NoError(t, err)
	assert.Nil(t, st)
}

func TestFileStoreRequiresRoot(t *testing.T) {
	_, err := NewFileStore(FileConfig{})
	require.Error(t, err)
}
