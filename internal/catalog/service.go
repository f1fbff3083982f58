package catalog

import (
	"context"
	"fmt"
	"mime"
	"path/filepath"
	"time"

	"github.com/docvault/docvault/internal/common"
	"github.com/docvault/docvault/pkg/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const (
	// AuditActionUploadDocument is recorded when a finalized upload lands in the catalog
	AuditActionUploadDocument = "UPLOAD_DOCUMENT"

	usageCacheTTL = 10 * time.Minute
)

// Service is the document-creation collaborator for the upload engine.
// It answers the catalog questions preconditions need (folder existence,
// duplicate names, storage usage) and records permanent documents.
type Service struct {
	DB    *common.Database
	Cache *common.Cache
}

// NewService creates a new catalog service
func NewService(db *common.Database, cache *common.Cache) *Service {
	return &Service{DB: db, Cache: cache}
}

// CreateDocumentInput carries everything needed to record a permanent document
type CreateDocumentInput struct {
	Name        string
	ContentType string
	Size        int64
	ParentID    *uuid.UUID
	StoragePath string
	Metadata    types.JSONMap
	Owner       string
}

// FolderExists reports whether a folder with the given id exists
func (s *Service) FolderExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	err := s.DB.WithContext(ctx).
		Model(&types.Document{}).
		Where("id = ? AND type = ?", id, types.DocumentTypeFolder).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check folder existence: %w", err)
	}
	return count > 0, nil
}

// NameExists reports whether a document with the given name already exists
// in the target folder (nil parent means the root folder)
func (s *Service) NameExists(ctx context.Context, name string, parentID *uuid.UUID) (bool, error) {
	query := s.DB.WithContext(ctx).
		Model(&types.Document{}).
		Where("name = ?", name)
	if parentID != nil {
		query = query.Where("parent_id = ?", *parentID)
	} else {
		query = query.Where("parent_id IS NULL")
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check duplicate name: %w", err)
	}
	return count > 0, nil
}

// StorageUsed returns the total bytes catalogued for an owner. The sum is
// cached in Redis and invalidated whenever the owner's documents change.
func (s *Service) StorageUsed(ctx context.Context, owner string) (int64, error) {
	cacheKey := usageCacheKey(owner)

	if s.Cache != nil {
		var cached int64
		if err := s.Cache.Get(ctx, cacheKey, &cached); err == nil {
			return cached, nil
		}
	}

	var used int64
	err := s.DB.WithContext(ctx).
		Model(&types.Document{}).
		Where("created_by = ? AND type = ?", owner, types.DocumentTypeFile).
		Select("COALESCE(SUM(size), 0)").
		Scan(&used).Error
	if err != nil {
		return 0, fmt.Errorf("failed to compute storage usage: %w", err)
	}

	if s.Cache != nil {
		if err := s.Cache.Set(ctx, cacheKey, used, usageCacheTTL); err != nil {
			log.Warn().Err(err).Str("owner", owner).Msg("failed to cache storage usage")
		}
	}

	return used, nil
}

// CreateDocument records a permanent document and its audit entry in one
// transaction, then invalidates the owner's cached storage usage
func (s *Service) CreateDocument(ctx context.Context, input CreateDocumentInput) (*types.Document, error) {
	now := time.Now().UTC()
	document := &types.Document{
		Name:        input.Name,
		Type:        types.DocumentTypeFile,
		ContentType: input.ContentType,
		Size:        input.Size,
		ParentID:    input.ParentID,
		StoragePath: input.StoragePath,
		Metadata:    input.Metadata,
		CreatedBy:   input.Owner,
		UpdatedBy:   input.Owner,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(document).Error; err != nil {
			return fmt.Errorf("failed to create document: %w", err)
		}

		audit := &types.AuditEntry{
			Action:     AuditActionUploadDocument,
			DocumentID: document.ID,
			Actor:      input.Owner,
			Details: types.JSONMap{
				"name":     document.Name,
				"parentId": input.ParentID,
				"metadata": input.Metadata,
			},
			CreatedAt: now,
		}
		if err := tx.Create(audit).Error; err != nil {
			return fmt.Errorf("failed to record audit entry: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.Cache != nil {
		if err := s.Cache.Delete(ctx, usageCacheKey(input.Owner)); err != nil {
			log.Warn().Err(err).Str("owner", input.Owner).Msg("failed to invalidate storage usage cache")
		}
	}

	log.Info().
		Str("document_id", document.ID.String()).
		Str("name", document.Name).
		Int64("size", document.Size).
		Str("owner", input.Owner).
		Msg("document created")

	return document, nil
}

// ContentTypeOf infers a MIME type from the filename extension
func ContentTypeOf(filename string) string {
	if ext := filepath.Ext(filename); ext != "" {
		if contentType := mime.TypeByExtension(ext); contentType != "" {
			return contentType
		}
	}
	return "application/octet-stream"
}

func usageCacheKey(owner string) string {
	return "quota:usage:" + owner
}
