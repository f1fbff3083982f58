package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// JSONMap is a custom type that can handle JSON serialization for both PostgreSQL and SQLite
type JSONMap map[string]interface{}

// Value implements the driver.Valuer interface for GORM
func (j JSONMap) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan implements the sql.Scanner interface for GORM
func (j *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into JSONMap", value)
	}

	return json.Unmarshal(bytes, j)
}

// StringMap is a string-to-string mapping stored as a JSON column
type StringMap map[string]string

// Value implements the driver.Valuer interface for GORM
func (m StringMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// Scan implements the sql.Scanner interface for GORM
func (m *StringMap) Scan(value interface{}) error {
	if value == nil {
		*m = nil
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into StringMap", value)
	}

	return json.Unmarshal(bytes, m)
}

// DocumentType distinguishes files from folders in the catalog
type DocumentType string

const (
	DocumentTypeFile   DocumentType = "FILE"
	DocumentTypeFolder DocumentType = "FOLDER"
)

// Document represents a catalogued file or folder
type Document struct {
	ID          uuid.UUID    `json:"id" gorm:"primaryKey"`
	Name        string       `json:"name" gorm:"not null;index:idx_documents_name_parent"`
	Type        DocumentType `json:"type" gorm:"not null"`
	ContentType string       `json:"content_type"`
	Size        int64        `json:"size"`
	ParentID    *uuid.UUID   `json:"parent_id" gorm:"index:idx_documents_name_parent"`
	StoragePath string       `json:"-"`
	Metadata    JSONMap      `json:"metadata" gorm:"serializer:json"`
	CreatedBy   string       `json:"created_by" gorm:"index"`
	UpdatedBy   string       `json:"updated_by"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// BeforeCreate generates a UUID for the document ID
func (d *Document) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}

// AuditEntry records an action taken against a document
type AuditEntry struct {
	ID         uuid.UUID `json:"id" gorm:"primaryKey"`
	Action     string    `json:"action" gorm:"not null"`
	DocumentID uuid.UUID `json:"document_id" gorm:"index"`
	Actor      string    `json:"actor"`
	Details    JSONMap   `json:"details" gorm:"serializer:json"`
	CreatedAt  time.Time `json:"created_at"`
}

// BeforeCreate generates a UUID for the audit entry ID
func (a *AuditEntry) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// UploadSession is the durable record of an in-progress resumable upload.
// CurrentOffset mirrors the number of bytes durably written to the backing
// blob; it must never run ahead of the blob.
type UploadSession struct {
	ID            string    `json:"upload_id" gorm:"primaryKey"`
	TotalLength   int64     `json:"length" gorm:"not null"`
	CurrentOffset int64     `json:"offset" gorm:"not null;default:0"`
	Metadata      StringMap `json:"metadata" gorm:"serializer:json"`
	Owner         string    `json:"-" gorm:"index"`
	CreatedAt     time.Time `json:"created_at"`
	ExpiresAt     time.Time `json:"expires_at" gorm:"index"`
}

// IsComplete reports whether every declared byte has been received
func (s *UploadSession) IsComplete() bool {
	return s.CurrentOffset == s.TotalLength
}

// IsExpired reports whether the session lifetime has elapsed
func (s *UploadSession) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}
