package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"

	"github.com/lamb-project/kb-server/internal/config"
	"github.com/lamb-project/kb-server/internal/model"
	"github.com/lamb-project/kb-server/internal/vectorstore"
)

func testConfig(storagePath string) *config.Config {
	return &config.Config{
		EmbeddingVendor:     "local",
		EmbeddingModel:      "feature-hash",
		EmbeddingDimensions: 8,
		EmbeddingTimeout:    time.Second,
		VectorStoreTimeout:  time.Second,
		StoragePath:         storagePath,
		MaxUploadSize:       1 << 20,
		InsertBatchSize:     2,
	}
}

// fakeCollections is an in-memory CollectionStore.
type fakeCollections struct {
	rows      map[uuid.UUID]*model.Collection
	createErr error
	updateErr error
}

func newFakeCollections() *fakeCollections {
	return &fakeCollections{rows: make(map[uuid.UUID]*model.Collection)}
}

func (f *fakeCollections) Create(ctx context.Context, c *model.Collection) error {
	if f.createErr != nil {
		return f.createErr
	}
	for _, row := range f.rows {
		if row.Owner == c.Owner && row.Name == c.Name && row.Visibility == c.Visibility {
			return gorm.ErrDuplicatedKey
		}
	}
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	cp := *c
	f.rows[c.ID] = &cp
	return nil
}

func (f *fakeCollections) FindByID(ctx context.Context, id uuid.UUID) (*model.Collection, error) {
	row, ok := f.rows[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *row
	return &cp, nil
}

func (f *fakeCollections) List(ctx context.Context, owner string, visibility model.Visibility, limit, offset int) ([]model.Collection, int64, error) {
	var out []model.Collection
	for _, row := range f.rows {
		if owner != "" && row.Owner != owner {
			continue
		}
		if visibility != "" && row.Visibility != visibility {
			continue
		}
		out = append(out, *row)
	}
	return out, int64(len(out)), nil
}

func (f *fakeCollections) Update(ctx context.Context, c *model.Collection) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	cp := *c
	f.rows[c.ID] = &cp
	return nil
}

func (f *fakeCollections) Delete(ctx context.Context, id uuid.UUID) error {
	delete(f.rows, id)
	return nil
}

func (f *fakeCollections) VectorStoreRefs(ctx context.Context) (map[uuid.UUID]uuid.UUID, error) {
	refs := make(map[uuid.UUID]uuid.UUID, len(f.rows))
	for id, row := range f.rows {
		refs[id] = row.VectorStoreRef
	}
	return refs, nil
}

// fakeFiles is an in-memory FileStore.
type fakeFiles struct {
	rows map[uuid.UUID]*model.File
}

func newFakeFiles() *fakeFiles {
	return &fakeFiles{rows: make(map[uuid.UUID]*model.File)}
}

func (f *fakeFiles) Create(ctx context.Context, file *model.File) error {
	if file.ID == uuid.Nil {
		file.ID = uuid.New()
	}
	cp := *file
	f.rows[file.ID] = &cp
	return nil
}

func (f *fakeFiles) FindByID(ctx context.Context, id uuid.UUID) (*model.File, error) {
	row, ok := f.rows[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *row
	return &cp, nil
}

func (f *fakeFiles) FindByCollectionID(ctx context.Context, collectionID uuid.UUID, status model.FileStatus, limit, offset int) ([]model.File, int64, error) {
	var out []model.File
	for _, row := range f.rows {
		if row.CollectionID != collectionID {
			continue
		}
		if status != "" && row.Status != status {
			continue
		}
		out = append(out, *row)
	}
	return out, int64(len(out)), nil
}

func (f *fakeFiles) CountByCollectionAndStatus(ctx context.Context, collectionID uuid.UUID, status model.FileStatus) (int64, error) {
	var n int64
	for _, row := range f.rows {
		if row.CollectionID == collectionID && row.Status == status {
			n++
		}
	}
	return n, nil
}

func (f *fakeFiles) MarkCompleted(ctx context.Context, id uuid.UUID, documentCount int) error {
	row, ok := f.rows[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	now := time.Now()
	row.Status = model.FileStatusCompleted
	row.DocumentCount = documentCount
	row.ErrorMessage = ""
	row.ProcessedAt = &now
	return nil
}

func (f *fakeFiles) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	row, ok := f.rows[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	row.Status = model.FileStatusFailed
	row.ErrorMessage = errMsg
	return nil
}

func (f *fakeFiles) ForceCompleted(ctx context.Context, id uuid.UUID, documentCount int) error {
	row, ok := f.rows[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	now := time.Now()
	row.Status = model.FileStatusCompleted
	row.DocumentCount = documentCount
	row.ErrorMessage = ""
	row.ProcessedAt = &now
	return nil
}

func (f *fakeFiles) SetStatus(ctx context.Context, id uuid.UUID, status model.FileStatus) error {
	row, ok := f.rows[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	row.Status = status
	return nil
}

func (f *fakeFiles) DeleteByCollectionID(ctx context.Context, collectionID uuid.UUID) error {
	for id, row := range f.rows {
		if row.CollectionID == collectionID {
			delete(f.rows, id)
		}
	}
	return nil
}

// fakeVectors is an in-memory VectorStore.
type fakeVectors struct {
	dims        int
	collections map[uuid.UUID]*vectorstore.VectorCollection
	docs        map[uuid.UUID][]vectorstore.VectorDocument
	insertCalls int
	insertErr   error
	createErr   error
	deleteErr   error
	searchHits  []vectorstore.SearchHit
	searchErr   error
}

func newFakeVectors(dims int) *fakeVectors {
	return &fakeVectors{
		dims:        dims,
		collections: make(map[uuid.UUID]*vectorstore.VectorCollection),
		docs:        make(map[uuid.UUID][]vectorstore.VectorDocument),
	}
}

func (f *fakeVectors) CreateCollection(ctx context.Context, name string, dimensions int) (uuid.UUID, error) {
	if f.createErr != nil {
		return uuid.Nil, f.createErr
	}
	for _, c := range f.collections {
		if c.Name == name {
			return uuid.Nil, gorm.ErrDuplicatedKey
		}
	}
	id := uuid.New()
	f.collections[id] = &vectorstore.VectorCollection{ID: id, Name: name, Dimensions: dimensions}
	return id, nil
}

func (f *fakeVectors) GetCollection(ctx context.Context, id uuid.UUID) (*vectorstore.VectorCollection, error) {
	c, ok := f.collections[id]
	if !ok {
		return nil, vectorstore.ErrCollectionNotFound
	}
	return c, nil
}

func (f *fakeVectors) GetCollectionByName(ctx context.Context, name string) (*vectorstore.VectorCollection, error) {
	for _, c := range f.collections {
		if c.Name == name {
			return c, nil
		}
	}
	return nil, vectorstore.ErrCollectionNotFound
}

func (f *fakeVectors) RenameCollection(ctx context.Context, id uuid.UUID, name string) error {
	c, ok := f.collections[id]
	if !ok {
		return vectorstore.ErrCollectionNotFound
	}
	for _, other := range f.collections {
		if other.ID != id && other.Name == name {
			return gorm.ErrDuplicatedKey
		}
	}
	c.Name = name
	return nil
}

func (f *fakeVectors) DeleteCollection(ctx context.Context, id uuid.UUID) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.collections, id)
	delete(f.docs, id)
	return nil
}

func (f *fakeVectors) InsertBatch(ctx context.Context, collectionID uuid.UUID, docs []vectorstore.VectorDocument) error {
	f.insertCalls++
	if f.insertErr != nil {
		return f.insertErr
	}
	f.docs[collectionID] = append(f.docs[collectionID], docs...)
	return nil
}

func (f *fakeVectors) Search(ctx context.Context, collectionID uuid.UUID, embedding pgvector.Vector, topK int) ([]vectorstore.SearchHit, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	if len(f.searchHits) > topK {
		return f.searchHits[:topK], nil
	}
	return f.searchHits, nil
}

func (f *fakeVectors) CountByCollection(ctx context.Context, collectionID uuid.UUID) (int64, error) {
	return int64(len(f.docs[collectionID])), nil
}

func (f *fakeVectors) CountByFile(ctx context.Context, fileID uuid.UUID) (int64, error) {
	var n int64
	for _, docs := range f.docs {
		for _, d := range docs {
			if d.FileID == fileID {
				n++
			}
		}
	}
	return n, nil
}

func (f *fakeVectors) DeleteByFile(ctx context.Context, fileID uuid.UUID) error {
	for collID, docs := range f.docs {
		kept := docs[:0]
		for _, d := range docs {
			if d.FileID != fileID {
				kept = append(kept, d)
			}
		}
		f.docs[collID] = kept
	}
	return nil
}

func (f *fakeVectors) CollectionIDs(ctx context.Context) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(f.collections))
	for id := range f.collections {
		ids = append(ids, id)
	}
	return ids, nil
}

func (f *fakeVectors) Dimensions() int {
	return f.dims
}

// orphanVectorCollection injects a vector collection no metadata row
// references.
func (f *fakeVectors) orphanVectorCollection() uuid.UUID {
	id := uuid.New()
	f.collections[id] = &vectorstore.VectorCollection{ID: id, Name: fmt.Sprintf("orphan-%s", id)}
	return id
}

func makeDoc(fileID uuid.UUID, index int) vectorstore.VectorDocument {
	return vectorstore.VectorDocument{
		ID:         uuid.New(),
		FileID:     fileID,
		ChunkIndex: index,
		Content:    fmt.Sprintf("chunk %d", index),
	}
}
