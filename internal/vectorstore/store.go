package vectorstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrCollectionNotFound is returned when a native identifier or name does
// not resolve to a live vector collection.
var ErrCollectionNotFound = errors.New("vector collection not found")

// Store manages one vector collection per logical knowledge base. Callers
// hold the native collection ID; the store never creates a collection as a
// side effect of an insert or query.
type Store struct {
	db         *gorm.DB
	dimensions int
}

func NewStore(db *gorm.DB, dimensions int) *Store {
	return &Store{db: db, dimensions: dimensions}
}

func (s *Store) Dimensions() int {
	return s.dimensions
}

func (s *Store) AutoMigrate() error {
	if err := s.db.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		return err
	}
	return s.db.AutoMigrate(&VectorCollection{}, &VectorDocument{})
}

// CreateCollection creates a vector collection and returns its native ID.
func (s *Store) CreateCollection(ctx context.Context, name string, dimensions int) (uuid.UUID, error) {
	coll := &VectorCollection{
		ID:         uuid.New(),
		Name:       name,
		Dimensions: dimensions,
	}
	if err := s.db.WithContext(ctx).Create(coll).Error; err != nil {
		return uuid.Nil, fmt.Errorf("create vector collection: %w", err)
	}
	return coll.ID, nil
}

func (s *Store) GetCollection(ctx context.Context, id uuid.UUID) (*VectorCollection, error) {
	var coll VectorCollection
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&coll).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCollectionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &coll, nil
}

// GetCollectionByName exists for rows created before native identifiers
// were tracked; identifier lookup is always tried first.
func (s *Store) GetCollectionByName(ctx context.Context, name string) (*VectorCollection, error) {
	var coll VectorCollection
	err := s.db.WithContext(ctx).Where("name = ?", name).First(&coll).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCollectionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &coll, nil
}

// RenameCollection moves a collection to a new derived name so the
// name-based fallback lookup stays aligned with the metadata scope.
func (s *Store) RenameCollection(ctx context.Context, id uuid.UUID, name string) error {
	res := s.db.WithContext(ctx).Model(&VectorCollection{}).
		Where("id = ?", id).
		Update("name", name)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrCollectionNotFound
	}
	return nil
}

// DeleteCollection removes the collection's documents and then the
// collection record itself.
func (s *Store) DeleteCollection(ctx context.Context, id uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("collection_id = ?", id).Delete(&VectorDocument{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&VectorCollection{}).Error
	})
}

// InsertBatch writes one batch of documents into a collection. Documents
// carry deterministic IDs, so a retried batch upserts instead of
// duplicating.
func (s *Store) InsertBatch(ctx context.Context, collectionID uuid.UUID, docs []VectorDocument) error {
	if len(docs) == 0 {
		return nil
	}
	for i := range docs {
		docs[i].CollectionID = collectionID
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&docs).Error
	if err != nil {
		return fmt.Errorf("insert batch: %w", err)
	}
	return nil
}

// SearchHit is one similarity result. Distance is cosine distance; the
// query layer converts it to similarity.
type SearchHit struct {
	Document VectorDocument
	Distance float64
}

// Search returns the topK nearest documents by cosine distance, closest
// first, ties broken by ascending chunk index.
func (s *Store) Search(ctx context.Context, collectionID uuid.UUID, embedding pgvector.Vector, topK int) ([]SearchHit, error) {
	var rows []struct {
		VectorDocument
		Distance float64 `gorm:"column:distance"`
	}

	err := s.db.WithContext(ctx).
		Table("vec_documents").
		Select("*, embedding <=> ? as distance", embedding).
		Where("collection_id = ?", collectionID).
		Where("embedding IS NOT NULL").
		Order("distance ASC, chunk_index ASC").
		Limit(topK).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	hits := make([]SearchHit, 0, len(rows))
	for _, r := range rows {
		hits = append(hits, SearchHit{Document: r.VectorDocument, Distance: r.Distance})
	}
	return hits, nil
}

func (s *Store) CountByCollection(ctx context.Context, collectionID uuid.UUID) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&VectorDocument{}).
		Where("collection_id = ?", collectionID).
		Count(&count).Error
	return count, err
}

func (s *Store) CountByFile(ctx context.Context, fileID uuid.UUID) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&VectorDocument{}).
		Where("file_id = ?", fileID).
		Count(&count).Error
	return count, err
}

// DeleteByFile removes every document traced to a file. Re-ingesting a
// file deletes first, which makes retried ingestion idempotent.
func (s *Store) DeleteByFile(ctx context.Context, fileID uuid.UUID) error {
	return s.db.WithContext(ctx).Where("file_id = ?", fileID).Delete(&VectorDocument{}).Error
}

// CollectionIDs lists every native collection identifier, for consistency
// reporting against the metadata store.
func (s *Store) CollectionIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := s.db.WithContext(ctx).Model(&VectorCollection{}).Pluck("id", &ids).Error
	return ids, err
}
