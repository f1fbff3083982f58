package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// LocalChunkStore implements ChunkStore on the local filesystem
type LocalChunkStore struct {
	basePath string
	mutex    sync.RWMutex // For concurrent access safety
}

// NewLocalChunkStore creates a new local chunk store instance
func NewLocalChunkStore(basePath string) (*LocalChunkStore, error) {
	// Ensure the base directory exists
	if err := os.MkdirAll(basePath, 0755); err != nil {
		log.Error().Err(err).Str("path", basePath).Msg("failed to create storage directory")
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	log.Info().Str("path", basePath).Msg("local chunk store initialized")
	return &LocalChunkStore{
		basePath: basePath,
	}, nil
}

// resolve joins path onto the store root, rejecting any path that would
// land outside it.
func (ls *LocalChunkStore) resolve(path string) (string, error) {
	fullPath := filepath.Join(ls.basePath, path)
	root := filepath.Clean(ls.basePath) + string(filepath.Separator)
	if !strings.HasPrefix(fullPath, root) {
		log.Warn().Str("path", path).Msg("rejected path outside storage root")
		return "", fmt.Errorf("%w: %s", ErrInvalidPath, path)
	}
	return fullPath, nil
}

// CreateEmpty creates a zero-length blob, tolerating an existing one
func (ls *LocalChunkStore) CreateEmpty(ctx context.Context, path string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	ls.mutex.Lock()
	defer ls.mutex.Unlock()

	fullPath, err := ls.resolve(path)
	if err != nil {
		return err
	}

	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		log.Error().Err(err).Str("path", path).Str("dir", dir).Msg("failed to create directory")
		return fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.OpenFile(fullPath, os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("failed to create empty blob")
		return fmt.Errorf("failed to create empty blob: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close blob: %w", err)
	}

	log.Debug().Str("path", path).Msg("empty blob created")
	return nil
}

// Append streams content onto the blob after verifying the claimed offset
// equals the current file length. Data is synced before the new length is
// acknowledged, so a recorded offset never runs ahead of durable bytes.
func (ls *LocalChunkStore) Append(ctx context.Context, path string, content io.Reader, offset int64) (int64, error) {
	startTime := time.Now()

	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	default:
	}

	ls.mutex.Lock()
	defer ls.mutex.Unlock()

	fullPath, err := ls.resolve(path)
	if err != nil {
		return 0, err
	}

	info, err := os.Stat(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, fmt.Errorf("blob not found: %s", path)
		}
		log.Error().Err(err).Str("path", path).Msg("failed to stat blob")
		return 0, fmt.Errorf("failed to stat blob: %w", err)
	}

	currentLength := info.Size()
	if currentLength != offset {
		log.Warn().
			Str("path", path).
			Int64("claimed_offset", offset).
			Int64("blob_length", currentLength).
			Msg("append rejected on offset mismatch")
		return 0, fmt.Errorf("%w: claimed %d, length %d", ErrOffsetMismatch, offset, currentLength)
	}

	file, err := os.OpenFile(fullPath, os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("failed to open blob for append")
		return 0, fmt.Errorf("failed to open blob for append: %w", err)
	}
	defer file.Close()

	bytesWritten, err := io.Copy(file, content)
	if err != nil {
		// Whatever was flushed stays; callers re-query the durable length.
		log.Error().Err(err).Str("path", path).Int64("bytes_written", bytesWritten).Msg("failed to append content")
		return 0, fmt.Errorf("failed to append content: %w", err)
	}

	if err := file.Sync(); err != nil {
		log.Error().Err(err).Str("path", path).Msg("failed to sync blob")
		return 0, fmt.Errorf("failed to sync blob: %w", err)
	}

	newLength := currentLength + bytesWritten
	log.Debug().
		Str("path", path).
		Int64("bytes_written", bytesWritten).
		Int64("new_length", newLength).
		Dur("duration", time.Since(startTime)).
		Msg("chunk appended")

	return newLength, nil
}

// Length returns the blob's current size
func (ls *LocalChunkStore) Length(ctx context.Context, path string) (int64, error) {
	ls.mutex.RLock()
	defer ls.mutex.RUnlock()

	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	default:
	}

	fullPath, err := ls.resolve(path)
	if err != nil {
		return 0, err
	}

	info, err := os.Stat(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, fmt.Errorf("blob not found: %s", path)
		}
		log.Error().Err(err).Str("path", path).Msg("failed to stat blob")
		return 0, fmt.Errorf("failed to stat blob: %w", err)
	}

	return info.Size(), nil
}

// Move relocates a blob within the store
func (ls *LocalChunkStore) Move(ctx context.Context, sourcePath, destPath string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	ls.mutex.Lock()
	defer ls.mutex.Unlock()

	src, err := ls.resolve(sourcePath)
	if err != nil {
		return err
	}
	dst, err := ls.resolve(destPath)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		log.Error().Err(err).Str("dest", destPath).Msg("failed to create destination directory")
		return fmt.Errorf("failed to create destination directory: %w", err)
	}

	if err := os.Rename(src, dst); err != nil {
		log.Error().Err(err).Str("source", sourcePath).Str("dest", destPath).Msg("failed to move blob")
		return fmt.Errorf("failed to move blob: %w", err)
	}

	log.Info().Str("source", sourcePath).Str("dest", destPath).Msg("blob moved")
	return nil
}

// Delete removes a blob, treating a missing one as already deleted
func (ls *LocalChunkStore) Delete(ctx context.Context, path string) error {
	ls.mutex.Lock()
	defer ls.mutex.Unlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	fullPath, err := ls.resolve(path)
	if err != nil {
		return err
	}

	if err := os.Remove(fullPath); err != nil {
		if os.IsNotExist(err) {
			log.Debug().Str("path", path).Msg("blob already deleted or does not exist")
			return nil
		}
		log.Error().Err(err).Str("path", path).Msg("failed to delete blob")
		return fmt.Errorf("failed to delete blob: %w", err)
	}

	log.Info().Str("path", path).Msg("blob deleted")
	return nil
}

// Exists checks whether a blob exists
func (ls *LocalChunkStore) Exists(ctx context.Context, path string) (bool, error) {
	ls.mutex.RLock()
	defer ls.mutex.RUnlock()

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	default:
	}

	fullPath, err := ls.resolve(path)
	if err != nil {
		return false, err
	}

	_, err = os.Stat(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		log.Error().Err(err).Str("path", path).Msg("failed to check blob existence")
		return false, fmt.Errorf("failed to check blob existence: %w", err)
	}

	return true, nil
}
