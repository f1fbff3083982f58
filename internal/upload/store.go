package upload

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/docvault/docvault/internal/common"
	"github.com/docvault/docvault/pkg/types"
	"gorm.io/gorm"
)

// SessionStore persists upload sessions. All mutations that decide races
// (offset advance, removal, the finalize claim) are single conditional
// statements checked through RowsAffected, so concurrent callers on the same
// id cannot both win.
type SessionStore struct {
	db *common.Database
}

// NewSessionStore creates a session store backed by the shared database
func NewSessionStore(db *common.Database) *SessionStore {
	return &SessionStore{db: db}
}

// Create persists a new session record
func (s *SessionStore) Create(ctx context.Context, session *types.UploadSession) error {
	if err := s.db.WithContext(ctx).Create(session).Error; err != nil {
		return fmt.Errorf("failed to create upload session: %w", err)
	}
	return nil
}

// Get loads a session by id
func (s *SessionStore) Get(ctx context.Context, id string) (*types.UploadSession, error) {
	var session types.UploadSession
	err := s.db.WithContext(ctx).First(&session, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load upload session: %w", err)
	}
	return &session, nil
}

// CompareAndAdvance atomically advances the stored offset by delta, but only
// if the stored offset still equals expectedOffset. Exactly one of two
// concurrent callers from the same offset can succeed; the loser gets
// ErrOffsetConflict (or ErrNotFound if the session vanished underneath it).
func (s *SessionStore) CompareAndAdvance(ctx context.Context, id string, expectedOffset, delta int64) (int64, error) {
	result := s.db.WithContext(ctx).
		Model(&types.UploadSession{}).
		Where("id = ? AND current_offset = ?", id, expectedOffset).
		Update("current_offset", gorm.Expr("current_offset + ?", delta))
	if result.Error != nil {
		return 0, fmt.Errorf("failed to advance upload offset: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		// Disambiguate a lost race from a removed session.
		if _, err := s.Get(ctx, id); err != nil {
			return 0, err
		}
		return 0, ErrOffsetConflict
	}

	return expectedOffset + delta, nil
}

// Delete removes a session record, reporting whether this caller removed it.
// Cancel, the reaper, and the finalize claim all go through conditional
// deletes so only one of them can observe true for a given session.
func (s *SessionStore) Delete(ctx context.Context, id string) (bool, error) {
	result := s.db.WithContext(ctx).Delete(&types.UploadSession{}, "id = ?", id)
	if result.Error != nil {
		return false, fmt.Errorf("failed to delete upload session: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// ClaimComplete removes a session record only if every declared byte has
// been received. It is the finalize commit point: a true return means this
// caller owns the handoff to permanent storage.
func (s *SessionStore) ClaimComplete(ctx context.Context, id string) (bool, error) {
	result := s.db.WithContext(ctx).
		Where("id = ? AND current_offset = total_length", id).
		Delete(&types.UploadSession{})
	if result.Error != nil {
		return false, fmt.Errorf("failed to claim upload session: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// ListExpired returns sessions whose lifetime elapsed before the given time
func (s *SessionStore) ListExpired(ctx context.Context, now time.Time) ([]types.UploadSession, error) {
	var sessions []types.UploadSession
	err := s.db.WithContext(ctx).
		Where("expires_at < ?", now).
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list expired sessions: %w", err)
	}
	return sessions, nil
}
