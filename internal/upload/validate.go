package upload

import (
	"context"
	"fmt"
	"strings"

	"github.com/docvault/docvault/internal/catalog"
	"github.com/docvault/docvault/pkg/config"
	"github.com/google/uuid"
)

// Validator runs the upload preconditions: size limit, owner quota, parent
// folder existence, and duplicate-name rules. The same pipeline runs at
// session creation and again at finalize, because folder contents can change
// during a long-running upload.
type Validator struct {
	catalog *catalog.Service
	cfg     *config.UploadConfig
}

// NewValidator creates a precondition validator
func NewValidator(catalogService *catalog.Service, cfg *config.UploadConfig) *Validator {
	return &Validator{catalog: catalogService, cfg: cfg}
}

// Validate checks every precondition for the declared upload. It mutates
// nothing; a failed validation leaves no trace anywhere.
func (v *Validator) Validate(ctx context.Context, length int64, filename string, parentID *uuid.UUID, allowDuplicates bool, owner string) error {
	if filename == "" {
		return fmt.Errorf("%w: filename is required", ErrValidation)
	}

	// The filename becomes the last element of the permanent blob path, so it
	// must be a bare name.
	if strings.ContainsAny(filename, `/\`) || strings.Contains(filename, "..") {
		return fmt.Errorf("%w: filename must not contain path elements", ErrValidation)
	}

	if length > v.cfg.MaxUploadSize {
		return fmt.Errorf("%w: declared %d, maximum %d", ErrSizeExceeded, length, v.cfg.MaxUploadSize)
	}

	if v.cfg.UserQuota > 0 {
		used, err := v.catalog.StorageUsed(ctx, owner)
		if err != nil {
			return err
		}
		if used+length > v.cfg.UserQuota {
			return fmt.Errorf("%w: used %d, requested %d, quota %d", ErrQuotaExceeded, used, length, v.cfg.UserQuota)
		}
	}

	if parentID != nil {
		exists, err := v.catalog.FolderExists(ctx, *parentID)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("%w: %s", ErrParentNotFound, parentID)
		}
	}

	if !allowDuplicates {
		exists, err := v.catalog.NameExists(ctx, filename, parentID)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: %s", ErrDuplicateName, filename)
		}
	}

	return nil
}
