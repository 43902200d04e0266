package storage

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/ruteri/tee-keymaster-state/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// exerciseStore runs the behaviour every StateStore must share.
func exerciseStore(t *testing.T, store interfaces.StateStore) {
	ctx := context.Background()

	_, err := store.Load(ctx, "missing")
	assert.ErrorIs(t, err, interfaces.ErrRecordNotFound)

	require.NoError(t, store.Save(ctx, "record", []byte("v1")))
	data, err := store.Load(ctx, "record")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), data)

	// Replace
	require.NoError(t, store.Save(ctx, "record", []byte("version-2")))
	data, err = store.Load(ctx, "record")
	require.NoError(t, err)
	assert.Equal(t, []byte("version-2"), data)

	// Mutating the returned slice must not change the stored record
	data[0] = 'X'
	again, err := store.Load(ctx, "record")
	require.NoError(t, err)
	assert.Equal(t, []byte("version-2"), again)

	require.NoError(t, store.Delete(ctx, "record"))
	_, err = store.Load(ctx, "record")
	assert.ErrorIs(t, err, interfaces.ErrRecordNotFound)

	// Deleting an absent record is not an error
	assert.NoError(t, store.Delete(ctx, "record"))
	assert.True(t, store.Available(ctx))
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore("test", testLogger())
	exerciseStore(t, store)
	assert.Equal(t, "memory://test", store.LocationURI())
}

func TestFileStore(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir, testLogger())
	require.NoError(t, err)
	exerciseStore(t, store)

	// No temporary files left behind
	require.NoError(t, store.Save(context.Background(), "snapshot", []byte("data")))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "snapshot", entries[0].Name())
}

func TestFileStore_InvalidNames(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), testLogger())
	require.NoError(t, err)

	for _, name := range []string{"", "..", "a/b", `a\b`} {
		assert.Error(t, store.Save(context.Background(), name, []byte("x")), "name %q", name)
	}
}

func TestFileStore_Unavailable(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "state")
	store, err := NewFileStore(dir, testLogger())
	require.NoError(t, err)
	require.NoError(t, os.RemoveAll(dir))

	assert.False(t, store.Available(context.Background()))
}

func TestStateStoreFactory(t *testing.T) {
	factory := NewStateStoreFactory(testLogger())
	dir := t.TempDir()

	tests := []struct {
		name     string
		uri      string
		wantType interface{}
		wantErr  error
	}{
		{"memory", "memory://unit", &MemoryStore{}, nil},
		{"file", "file://" + dir, &FileStore{}, nil},
		{"s3", "s3://AKID:SECRET@bucket/prefix/?region=eu-west-1", &S3Store{}, nil},
		{"vault", "vault://127.0.0.1:8200/secret/keymaster?token=root", &VaultStore{}, nil},
		{"vault without mount", "vault://127.0.0.1:8200", nil, interfaces.ErrInvalidLocationURI},
		{"unsupported", "ipfs://localhost:5001", nil, interfaces.ErrInvalidLocationURI},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := factory.StateStoreFor(tt.uri)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.wantType, store)
		})
	}
}

func TestS3Store_CredentialsRedacted(t *testing.T) {
	store, err := NewStateStoreFactory(testLogger()).StateStoreFor("s3://AKID:SECRET@bucket/prefix/")
	require.NoError(t, err)
	assert.NotContains(t, store.LocationURI(), "SECRET")
	assert.Equal(t, "s3-bucket", store.Name())
}

func TestCreateReplicatedStore(t *testing.T) {
	factory := NewStateStoreFactory(testLogger())

	single, err := factory.CreateReplicatedStore("memory://primary", nil)
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, single)

	replicated, err := factory.CreateReplicatedStore("memory://primary", []string{"memory://mirror", "ipfs://bad"})
	require.NoError(t, err)
	require.IsType(t, &ReplicatedStore{}, replicated)
	assert.Len(t, replicated.(*ReplicatedStore).mirrors, 1)

	_, err = factory.CreateReplicatedStore("ipfs://bad", nil)
	assert.ErrorIs(t, err, interfaces.ErrInvalidLocationURI)
}
