package upload

import "errors"

// Sentinel errors for the upload engine. The HTTP layer maps these onto
// protocol status codes; everything else surfaces as an internal error.
var (
	// ErrNotFound means the session is unknown or already removed
	ErrNotFound = errors.New("upload session not found")

	// ErrOffsetConflict means the claimed offset does not equal the stored
	// offset; the client must re-query the offset and resume from it
	ErrOffsetConflict = errors.New("upload offset mismatch")

	// ErrIncomplete means finalize was attempted before all bytes arrived
	ErrIncomplete = errors.New("upload is not complete")

	// ErrSizeExceeded means the declared length is over the configured maximum
	ErrSizeExceeded = errors.New("upload length exceeds maximum size")

	// ErrQuotaExceeded means the owner's remaining storage is insufficient
	ErrQuotaExceeded = errors.New("storage quota exceeded")

	// ErrDuplicateName means the target folder already holds that filename
	ErrDuplicateName = errors.New("duplicate file name in target folder")

	// ErrParentNotFound means the declared parent folder does not exist
	ErrParentNotFound = errors.New("parent folder not found")

	// ErrValidation means required metadata is missing or malformed
	ErrValidation = errors.New("invalid upload metadata")
)
