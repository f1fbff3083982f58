package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/docvault/docvault/internal/catalog"
	"github.com/docvault/docvault/internal/storage"
	"github.com/docvault/docvault/pkg/config"
	"github.com/docvault/docvault/pkg/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Session metadata keys carried from the Upload-Metadata header.
const (
	metaFilename        = "filename"
	metaParentFolderID  = "parentFolderId"
	metaAllowDuplicates = "allowDuplicateFileNames"
)

// Service is the upload lifecycle manager. It owns per-session serialization
// and orchestrates the session store, the chunk store, the precondition
// validator, and the document catalog.
//
// Blob layout: one data blob per session under uploads/{id}.bin; finalized
// documents move to documents/{uuid}/{filename}.
type Service struct {
	store     *SessionStore
	chunks    storage.ChunkStore
	catalog   *catalog.Service
	validator *Validator
	cfg       *config.UploadConfig
	locks     *lockArena
}

// NewService creates the upload lifecycle manager
func NewService(store *SessionStore, chunks storage.ChunkStore, catalogService *catalog.Service, cfg *config.UploadConfig) *Service {
	return &Service{
		store:     store,
		chunks:    chunks,
		catalog:   catalogService,
		validator: NewValidator(catalogService, cfg),
		cfg:       cfg,
		locks:     newLockArena(),
	}
}

// FinalizeRequest carries the finalize-time metadata for an upload
type FinalizeRequest struct {
	Filename                string        `json:"filename" binding:"required"`
	ParentFolderID          *uuid.UUID    `json:"parentFolderId"`
	Metadata                types.JSONMap `json:"metadata"`
	AllowDuplicateFileNames bool          `json:"allowDuplicateFileNames"`
}

// Create validates every precondition, allocates a session id, creates the
// empty backing blob, and persists the session at offset zero. Nothing is
// persisted if any step fails.
func (s *Service) Create(ctx context.Context, length int64, metadata map[string]string, owner string) (*types.UploadSession, error) {
	filename := metadata[metaFilename]
	parentID, err := parseParentFolderID(metadata[metaParentFolderID])
	if err != nil {
		return nil, err
	}
	allowDuplicates := metadata[metaAllowDuplicates] == "true"

	if err := s.validator.Validate(ctx, length, filename, parentID, allowDuplicates, owner); err != nil {
		return nil, err
	}

	id := uuid.NewString()
	if err := s.chunks.CreateEmpty(ctx, dataPath(id)); err != nil {
		return nil, fmt.Errorf("failed to create backing blob: %w", err)
	}

	now := time.Now().UTC()
	session := &types.UploadSession{
		ID:            id,
		TotalLength:   length,
		CurrentOffset: 0,
		Metadata:      metadata,
		Owner:         owner,
		CreatedAt:     now,
		ExpiresAt:     now.Add(s.cfg.ExpirationPeriod),
	}

	if err := s.store.Create(ctx, session); err != nil {
		// No partial session: drop the blob we just created.
		if cleanupErr := s.chunks.Delete(ctx, dataPath(id)); cleanupErr != nil {
			log.Warn().Err(cleanupErr).Str("upload_id", id).Msg("failed to clean up blob after session create failure")
		}
		return nil, err
	}

	log.Info().
		Str("upload_id", id).
		Int64("length", length).
		Str("filename", filename).
		Str("owner", owner).
		Msg("upload session created")

	return session, nil
}

// Get loads a session for its owner. A session owned by someone else is
// indistinguishable from a missing one.
func (s *Service) Get(ctx context.Context, id, owner string) (*types.UploadSession, error) {
	session, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.Owner != owner {
		return nil, ErrNotFound
	}
	return session, nil
}

// Append streams one chunk onto the session's blob and atomically advances
// the stored offset by the bytes durably written. The claimed offset must
// exactly equal the stored offset; a mismatched chunk is rejected whole.
func (s *Service) Append(ctx context.Context, id, owner string, claimedOffset int64, data io.Reader) (int64, error) {
	s.locks.acquire(id)
	defer s.locks.release(id)

	session, err := s.Get(ctx, id, owner)
	if err != nil {
		return 0, err
	}

	if session.IsExpired() {
		return 0, fmt.Errorf("%w: session expired", ErrNotFound)
	}

	if claimedOffset != session.CurrentOffset {
		return 0, fmt.Errorf("%w: claimed %d, current %d", ErrOffsetConflict, claimedOffset, session.CurrentOffset)
	}

	// Bytes first, record second: a crash between the two leaves the stored
	// offset at the lower value and the client re-delivers the tail. The
	// stream is capped at the declared length, so the offset can never pass
	// it; over-delivered bytes are discarded.
	remaining := session.TotalLength - claimedOffset
	newLength, err := s.chunks.Append(ctx, dataPath(id), io.LimitReader(data, remaining), claimedOffset)
	if err != nil {
		if errors.Is(err, storage.ErrOffsetMismatch) {
			return 0, fmt.Errorf("%w: %v", ErrOffsetConflict, err)
		}
		return 0, err
	}

	written := newLength - claimedOffset
	newOffset, err := s.store.CompareAndAdvance(ctx, id, claimedOffset, written)
	if err != nil {
		return 0, err
	}

	log.Debug().
		Str("upload_id", id).
		Int64("bytes", written).
		Int64("offset", newOffset).
		Int64("length", session.TotalLength).
		Msg("chunk accepted")

	return newOffset, nil
}

// Cancel removes the backing blob and the session record. Cancelling an
// unknown or already-removed session is a no-op, so repeated cancels are
// safe from the caller's point of view.
func (s *Service) Cancel(ctx context.Context, id string) error {
	s.locks.acquire(id)
	defer s.locks.release(id)

	removed, err := s.store.Delete(ctx, id)
	if err != nil {
		return err
	}

	if err := s.chunks.Delete(ctx, dataPath(id)); err != nil {
		log.Warn().Err(err).Str("upload_id", id).Msg("failed to delete blob on cancel")
	}

	if removed {
		log.Info().Str("upload_id", id).Msg("upload session cancelled")
	}
	return nil
}

// IsComplete reports whether the session has received every declared byte
func (s *Service) IsComplete(ctx context.Context, id, owner string) (bool, error) {
	session, err := s.Get(ctx, id, owner)
	if err != nil {
		return false, err
	}
	return session.IsComplete(), nil
}

// Finalize re-runs the finalize-time preconditions, claims the session, moves
// the blob to permanent storage, and records the document. The claim is an
// atomic conditional delete, so exactly one finalize can win and a finalize
// racing a cancel or the reaper fails NotFound.
func (s *Service) Finalize(ctx context.Context, id, owner string, req FinalizeRequest) (*types.Document, error) {
	s.locks.acquire(id)
	defer s.locks.release(id)

	session, err := s.Get(ctx, id, owner)
	if err != nil {
		return nil, err
	}

	if !session.IsComplete() {
		return nil, fmt.Errorf("%w: offset %d of %d", ErrIncomplete, session.CurrentOffset, session.TotalLength)
	}

	if err := s.validator.Validate(ctx, session.TotalLength, req.Filename, req.ParentFolderID, req.AllowDuplicateFileNames, owner); err != nil {
		return nil, err
	}

	claimed, err := s.store.ClaimComplete(ctx, id)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, ErrNotFound
	}

	permanentPath := fmt.Sprintf("documents/%s/%s", uuid.NewString(), req.Filename)
	if err := s.chunks.Move(ctx, dataPath(id), permanentPath); err != nil {
		log.Error().Err(err).Str("upload_id", id).Str("dest", permanentPath).Msg("failed to move blob to permanent storage")
		return nil, err
	}

	document, err := s.catalog.CreateDocument(ctx, catalog.CreateDocumentInput{
		Name:        req.Filename,
		ContentType: catalog.ContentTypeOf(req.Filename),
		Size:        session.TotalLength,
		ParentID:    req.ParentFolderID,
		StoragePath: permanentPath,
		Metadata:    req.Metadata,
		Owner:       owner,
	})
	if err != nil {
		log.Error().Err(err).Str("upload_id", id).Str("blob", permanentPath).Msg("document creation failed after blob move")
		return nil, err
	}

	log.Info().
		Str("upload_id", id).
		Str("document_id", document.ID.String()).
		Int64("size", document.Size).
		Msg("upload finalized")

	return document, nil
}

// ReapExpired removes every session whose lifetime has elapsed, using the
// same conditional removal as Cancel so it cannot race a committing
// finalize. Individual failures are logged and retried on the next pass.
func (s *Service) ReapExpired(ctx context.Context) int {
	expired, err := s.store.ListExpired(ctx, time.Now().UTC())
	if err != nil {
		log.Error().Err(err).Msg("failed to list expired upload sessions")
		return 0
	}

	reaped := 0
	for _, session := range expired {
		s.locks.acquire(session.ID)

		removed, err := s.store.Delete(ctx, session.ID)
		if err != nil {
			s.locks.release(session.ID)
			log.Error().Err(err).Str("upload_id", session.ID).Msg("failed to reap session record")
			continue
		}
		if removed {
			if err := s.chunks.Delete(ctx, dataPath(session.ID)); err != nil {
				log.Error().Err(err).Str("upload_id", session.ID).Msg("failed to delete blob for expired session")
			}
			reaped++
			log.Info().
				Str("upload_id", session.ID).
				Time("expired_at", session.ExpiresAt).
				Msg("expired upload session reaped")
		}

		s.locks.release(session.ID)
	}

	return reaped
}

// Config exposes the upload settings for the client-config endpoint
func (s *Service) Config() *config.UploadConfig {
	return s.cfg
}

func dataPath(id string) string {
	return "uploads/" + id + ".bin"
}

func parseParentFolderID(raw string) (*uuid.UUID, error) {
	if raw == "" {
		return nil, nil
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid parentFolderId %q", ErrValidation, raw)
	}
	return &parsed, nil
}
