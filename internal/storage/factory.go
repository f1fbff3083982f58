package storage

import (
	"fmt"

	"github.com/docvault/docvault/pkg/config"
)

// StorageFactory creates chunk store instances based on configuration
type StorageFactory struct {
	config *config.StorageConfig
}

// NewStorageFactory creates a new storage factory
func NewStorageFactory(config *config.StorageConfig) *StorageFactory {
	return &StorageFactory{config: config}
}

// CreateStorage creates a chunk store instance based on the configured type
func (sf *StorageFactory) CreateStorage() (ChunkStore, error) {
	switch sf.config.Type {
	case "local":
		return NewLocalChunkStore(sf.config.LocalPath)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", sf.config.Type)
	}
}
