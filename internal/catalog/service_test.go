package catalog

import (
	"context"
	"testing"

	"github.com/docvault/docvault/internal/common"
	"github.com/docvault/docvault/pkg/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestService(t *testing.T) (*Service, *common.Database) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	wrapped := &common.Database{DB: db}
	require.NoError(t, wrapped.Migrate())

	return NewService(wrapped, nil), wrapped
}

func seedDocument(t *testing.T, db *common.Database, doc *types.Document) *types.Document {
	t.Helper()
	require.NoError(t, db.Create(doc).Error)
	return doc
}

func TestService_FolderExists(t *testing.T) {
	service, db := setupTestService(t)
	ctx := context.Background()

	folder := seedDocument(t, db, &types.Document{Name: "docs", Type: types.DocumentTypeFolder})
	file := seedDocument(t, db, &types.Document{Name: "a.txt", Type: types.DocumentTypeFile})

	exists, err := service.FolderExists(ctx, folder.ID)
	require.NoError(t, err)
	assert.True(t, exists)

	// A file id is not a folder
	exists, err = service.FolderExists(ctx, file.ID)
	require.NoError(t, err)
	assert.False(t, exists)

	exists, err = service.FolderExists(ctx, uuid.New())
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestService_NameExists(t *testing.T) {
	service, db := setupTestService(t)
	ctx := context.Background()

	folder := seedDocument(t, db, &types.Document{Name: "docs", Type: types.DocumentTypeFolder})
	seedDocument(t, db, &types.Document{Name: "root.txt", Type: types.DocumentTypeFile})
	seedDocument(t, db, &types.Document{Name: "nested.txt", Type: types.DocumentTypeFile, ParentID: &folder.ID})

	tests := []struct {
		name     string
		filename string
		parentID *uuid.UUID
		want     bool
	}{
		{name: "match at root", filename: "root.txt", want: true},
		{name: "no match at root", filename: "nested.txt", want: false},
		{name: "match inside folder", filename: "nested.txt", parentID: &folder.ID, want: true},
		{name: "no match inside folder", filename: "root.txt", parentID: &folder.ID, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exists, err := service.NameExists(ctx, tt.filename, tt.parentID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, exists)
		})
	}
}

func TestService_StorageUsed(t *testing.T) {
	service, db := setupTestService(t)
	ctx := context.Background()

	used, err := service.StorageUsed(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(0), used)

	seedDocument(t, db, &types.Document{Name: "a.bin", Type: types.DocumentTypeFile, Size: 100, CreatedBy: "alice@example.com"})
	seedDocument(t, db, &types.Document{Name: "b.bin", Type: types.DocumentTypeFile, Size: 250, CreatedBy: "alice@example.com"})
	seedDocument(t, db, &types.Document{Name: "c.bin", Type: types.DocumentTypeFile, Size: 999, CreatedBy: "bob@example.com"})

	// Folders do not count toward usage
	seedDocument(t, db, &types.Document{Name: "docs", Type: types.DocumentTypeFolder, Size: 5000, CreatedBy: "alice@example.com"})

	used, err = service.StorageUsed(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(350), used)
}

func TestService_CreateDocument(t *testing.T) {
	service, db := setupTestService(t)
	ctx := context.Background()

	folder := seedDocument(t, db, &types.Document{Name: "docs", Type: types.DocumentTypeFolder})

	document, err := service.CreateDocument(ctx, CreateDocumentInput{
		Name:        "report.pdf",
		ContentType: "application/pdf",
		Size:        4096,
		ParentID:    &folder.ID,
		StoragePath: "documents/x/report.pdf",
		Metadata:    types.JSONMap{"department": "finance"},
		Owner:       "alice@example.com",
	})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, document.ID)
	assert.Equal(t, types.DocumentTypeFile, document.Type)
	assert.Equal(t, "alice@example.com", document.CreatedBy)

	var stored types.Document
	require.NoError(t, db.First(&stored, "id = ?", document.ID).Error)
	assert.Equal(t, "report.pdf", stored.Name)
	assert.Equal(t, int64(4096), stored.Size)

	var audit types.AuditEntry
	require.NoError(t, db.First(&audit, "document_id = ?", document.ID).Error)
	assert.Equal(t, AuditActionUploadDocument, audit.Action)
	assert.Equal(t, "alice@example.com", audit.Actor)
}

func TestContentTypeOf(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"report.pdf", "application/pdf"},
		{"data.json", "application/json"},
		{"archive.unknownext", "application/octet-stream"},
		{"noextension", "application/octet-stream"},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			assert.Equal(t, tt.want, ContentTypeOf(tt.filename))
		})
	}
}
