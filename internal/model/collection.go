package model

import (
	"github.com/google/uuid"
)

type Visibility string

const (
	VisibilityPrivate Visibility = "private"
	VisibilityPublic  Visibility = "public"
)

func (v Visibility) Valid() bool {
	return v == VisibilityPrivate || v == VisibilityPublic
}

// EmbeddingConfig describes how every chunk in a collection is embedded.
// It is frozen after the first completed file: documents embedded under
// different configs cannot be compared in the same vector space.
type EmbeddingConfig struct {
	Vendor   string `gorm:"column:embedding_vendor;size:50;not null" json:"vendor"`
	Model    string `gorm:"column:embedding_model;size:100;not null" json:"model"`
	Endpoint string `gorm:"column:embedding_endpoint;size:500" json:"endpoint,omitempty"`
	APIKey   string `gorm:"column:embedding_api_key;size:200" json:"-"`
}

type Collection struct {
	BaseModel
	Name        string          `gorm:"size:255;not null;uniqueIndex:idx_collections_scope" json:"name"`
	Description string          `gorm:"type:text" json:"description"`
	Owner       string          `gorm:"size:255;not null;uniqueIndex:idx_collections_scope" json:"owner"`
	Visibility  Visibility      `gorm:"size:20;not null;default:'private';uniqueIndex:idx_collections_scope" json:"visibility"`
	Embedding   EmbeddingConfig `gorm:"embedded" json:"embedding_config"`

	// VectorStoreRef is the vector store's own identifier for this
	// collection, distinct from the metadata primary key.
	VectorStoreRef uuid.UUID `gorm:"type:uuid;index" json:"vector_store_ref"`

	Metadata JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`

	// Stats (computed)
	ChunkCount int64 `gorm:"-" json:"chunk_count,omitempty"`
}

func (Collection) TableName() string {
	return "kb_collections"
}
