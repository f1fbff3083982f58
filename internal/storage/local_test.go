package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *LocalChunkStore {
	t.Helper()
	store, err := NewLocalChunkStore(t.TempDir())
	require.NoError(t, err)
	return store
}

func TestNewLocalChunkStore(t *testing.T) {
	tests := []struct {
		name        string
		basePath    string
		shouldError bool
	}{
		{
			name:        "valid path",
			basePath:    t.TempDir(),
			shouldError: false,
		},
		{
			name:        "non-existent nested path",
			basePath:    filepath.Join(t.TempDir(), "nested", "path"),
			shouldError: false,
		},
		{
			name:        "file where directory expected",
			basePath:    createTempFile(t),
			shouldError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := NewLocalChunkStore(tt.basePath)

			if tt.shouldError {
				assert.Error(t, err)
				assert.Nil(t, store)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, store)

				info, err := os.Stat(tt.basePath)
				assert.NoError(t, err)
				assert.True(t, info.IsDir())
			}
		})
	}
}

func TestLocalChunkStore_CreateEmpty(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateEmpty(ctx, "uploads/u1.bin"))

	length, err := store.Length(ctx, "uploads/u1.bin")
	require.NoError(t, err)
	assert.Equal(t, int64(0), length)

	// Creating again leaves the existing blob untouched
	_, err = store.Append(ctx, "uploads/u1.bin", strings.NewReader("abc"), 0)
	require.NoError(t, err)
	require.NoError(t, store.CreateEmpty(ctx, "uploads/u1.bin"))

	length, err = store.Length(ctx, "uploads/u1.bin")
	require.NoError(t, err)
	assert.Equal(t, int64(3), length)
}

func TestLocalChunkStore_Append(t *testing.T) {
	tests := []struct {
		name        string
		chunks      []string
		offset      int64
		expectErr   error
		finalLength int64
	}{
		{
			name:        "sequential chunks",
			chunks:      []string{"hello ", "world"},
			finalLength: 11,
		},
		{
			name:      "offset behind length",
			chunks:    []string{"hello"},
			offset:    2,
			expectErr: ErrOffsetMismatch,
		},
		{
			name:      "offset past length",
			chunks:    []string{"hello"},
			offset:    100,
			expectErr: ErrOffsetMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := setupTestStore(t)
			ctx := context.Background()
			path := "uploads/chunked.bin"
			require.NoError(t, store.CreateEmpty(ctx, path))

			var offset int64
			for _, chunk := range tt.chunks {
				newLength, err := store.Append(ctx, path, strings.NewReader(chunk), offset)
				require.NoError(t, err)
				assert.Equal(t, offset+int64(len(chunk)), newLength)
				offset = newLength
			}

			if tt.expectErr != nil {
				_, err := store.Append(ctx, path, strings.NewReader("more"), tt.offset)
				assert.ErrorIs(t, err, tt.expectErr)

				// A rejected chunk must not change the blob
				length, err := store.Length(ctx, path)
				require.NoError(t, err)
				assert.Equal(t, offset, length)
				return
			}

			data, err := os.ReadFile(filepath.Join(store.basePath, path))
			require.NoError(t, err)
			assert.Equal(t, strings.Join(tt.chunks, ""), string(data))
			assert.Equal(t, tt.finalLength, int64(len(data)))
		})
	}
}

func TestLocalChunkStore_AppendMissingBlob(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.Append(context.Background(), "uploads/nope.bin", strings.NewReader("x"), 0)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "blob not found")
}

func TestLocalChunkStore_Move(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateEmpty(ctx, "uploads/u2.bin"))
	_, err := store.Append(ctx, "uploads/u2.bin", strings.NewReader("payload"), 0)
	require.NoError(t, err)

	require.NoError(t, store.Move(ctx, "uploads/u2.bin", "documents/abc/final.txt"))

	exists, err := store.Exists(ctx, "uploads/u2.bin")
	require.NoError(t, err)
	assert.False(t, exists)

	length, err := store.Length(ctx, "documents/abc/final.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(7), length)
}

func TestLocalChunkStore_RejectsEscapingPaths(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateEmpty(ctx, "uploads/u5.bin"))

	err := store.Move(ctx, "uploads/u5.bin", "documents/abc/../../../escaped.bin")
	assert.ErrorIs(t, err, ErrInvalidPath)

	// The blob stays put and nothing lands above the root
	exists, err := store.Exists(ctx, "uploads/u5.bin")
	require.NoError(t, err)
	assert.True(t, exists)

	_, err = os.Stat(filepath.Join(store.basePath, "..", "escaped.bin"))
	assert.True(t, os.IsNotExist(err))

	assert.ErrorIs(t, store.CreateEmpty(ctx, "../outside.bin"), ErrInvalidPath)
	_, err = store.Append(ctx, "../outside.bin", strings.NewReader("x"), 0)
	assert.ErrorIs(t, err, ErrInvalidPath)
	_, err = store.Length(ctx, "../outside.bin")
	assert.ErrorIs(t, err, ErrInvalidPath)
	assert.ErrorIs(t, store.Delete(ctx, "../outside.bin"), ErrInvalidPath)
	_, err = store.Exists(ctx, "../outside.bin")
	assert.ErrorIs(t, err, ErrInvalidPath)
}

func TestLocalChunkStore_Delete(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateEmpty(ctx, "uploads/u3.bin"))
	require.NoError(t, store.Delete(ctx, "uploads/u3.bin"))

	exists, err := store.Exists(ctx, "uploads/u3.bin")
	require.NoError(t, err)
	assert.False(t, exists)

	// Deleting a missing blob is not an error
	assert.NoError(t, store.Delete(ctx, "uploads/u3.bin"))
}

func TestLocalChunkStore_ContextCancelled(t *testing.T) {
	store := setupTestStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Error(t, store.CreateEmpty(ctx, "uploads/u4.bin"))
	_, err := store.Append(ctx, "uploads/u4.bin", strings.NewReader("x"), 0)
	assert.Error(t, err)
}

func createTempFile(t *testing.T) string {
	t.Helper()
	file, err := os.CreateTemp(t.TempDir(), "occupied")
	require.NoError(t, err)
	require.NoError(t, file.Close())
	return file.Name()
}
