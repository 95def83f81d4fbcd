package vectorstore

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/lamb-project/kb-server/internal/model"
)

// VectorCollection is the vector store's own collection record. Its ID is
// the native identifier that metadata rows point at through VectorStoreRef;
// it is never the same value as the metadata primary key.
type VectorCollection struct {
	ID         uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	Name       string    `gorm:"size:255;not null;uniqueIndex" json:"name"`
	Dimensions int       `gorm:"not null" json:"dimensions"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (VectorCollection) TableName() string {
	return "vec_collections"
}

// VectorDocument is one embedded chunk.
type VectorDocument struct {
	ID           uuid.UUID       `gorm:"type:uuid;primary_key" json:"id"`
	CollectionID uuid.UUID       `gorm:"type:uuid;not null;index" json:"collection_id"`
	FileID       uuid.UUID       `gorm:"type:uuid;index" json:"file_id"`
	ChunkIndex   int             `gorm:"not null;default:0" json:"chunk_index"`
	Content      string          `gorm:"type:text;not null" json:"content"`
	Embedding    pgvector.Vector `gorm:"type:vector(1536)" json:"-"`
	Metadata     model.JSONMap   `gorm:"type:jsonb" json:"metadata"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

func (VectorDocument) TableName() string {
	return "vec_documents"
}
