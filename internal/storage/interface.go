package storage

import (
	"context"
	"errors"
	"io"
)

// ErrOffsetMismatch is returned by Append when the caller's claimed offset
// does not equal the blob's current length. It is the authoritative
// contiguity guard for resumable uploads.
var ErrOffsetMismatch = errors.New("claimed offset does not match blob length")

// ErrInvalidPath is returned when a blob path would resolve outside the
// store's root directory.
var ErrInvalidPath = errors.New("path escapes storage root")

// ChunkStore defines the byte-storage contract for upload blobs
type ChunkStore interface {
	// CreateEmpty creates a zero-length blob at the given path
	CreateEmpty(ctx context.Context, path string) error

	// Append streams content onto the end of the blob. The claimed offset
	// must equal the blob's current length; the new length is returned.
	Append(ctx context.Context, path string, content io.Reader, offset int64) (int64, error)

	// Length returns the current size of the blob in bytes
	Length(ctx context.Context, path string) (int64, error)

	// Move relocates a blob, creating destination directories as needed
	Move(ctx context.Context, sourcePath, destPath string) error

	// Delete removes the blob at the given path
	Delete(ctx context.Context, path string) error

	// Exists checks whether a blob exists at the given path
	Exists(ctx context.Context, path string) (bool, error)
}
