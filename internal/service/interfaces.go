package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/lamb-project/kb-server/internal/model"
	"github.com/lamb-project/kb-server/internal/vectorstore"
)

// CollectionStore is the metadata-store surface the services depend on,
// satisfied by repository.CollectionRepository.
type CollectionStore interface {
	Create(ctx context.Context, collection *model.Collection) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Collection, error)
	List(ctx context.Context, owner string, visibility model.Visibility, limit, offset int) ([]model.Collection, int64, error)
	Update(ctx context.Context, collection *model.Collection) error
	Delete(ctx context.Context, id uuid.UUID) error
	VectorStoreRefs(ctx context.Context) (map[uuid.UUID]uuid.UUID, error)
}

// FileStore is the file-registry surface, satisfied by
// repository.FileRepository.
type FileStore interface {
	Create(ctx context.Context, file *model.File) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.File, error)
	FindByCollectionID(ctx context.Context, collectionID uuid.UUID, status model.FileStatus, limit, offset int) ([]model.File, int64, error)
	CountByCollectionAndStatus(ctx context.Context, collectionID uuid.UUID, status model.FileStatus) (int64, error)
	MarkCompleted(ctx context.Context, id uuid.UUID, documentCount int) error
	MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error
	ForceCompleted(ctx context.Context, id uuid.UUID, documentCount int) error
	SetStatus(ctx context.Context, id uuid.UUID, status model.FileStatus) error
	DeleteByCollectionID(ctx context.Context, collectionID uuid.UUID) error
}

// VectorStore is the vector-store binding surface, satisfied by
// vectorstore.Store.
type VectorStore interface {
	CreateCollection(ctx context.Context, name string, dimensions int) (uuid.UUID, error)
	GetCollection(ctx context.Context, id uuid.UUID) (*vectorstore.VectorCollection, error)
	GetCollectionByName(ctx context.Context, name string) (*vectorstore.VectorCollection, error)
	RenameCollection(ctx context.Context, id uuid.UUID, name string) error
	DeleteCollection(ctx context.Context, id uuid.UUID) error
	InsertBatch(ctx context.Context, collectionID uuid.UUID, docs []vectorstore.VectorDocument) error
	Search(ctx context.Context, collectionID uuid.UUID, embedding pgvector.Vector, topK int) ([]vectorstore.SearchHit, error)
	CountByCollection(ctx context.Context, collectionID uuid.UUID) (int64, error)
	CountByFile(ctx context.Context, fileID uuid.UUID) (int64, error)
	DeleteByFile(ctx context.Context, fileID uuid.UUID) error
	CollectionIDs(ctx context.Context) ([]uuid.UUID, error)
	Dimensions() int
}
