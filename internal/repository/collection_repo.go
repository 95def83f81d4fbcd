package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lamb-project/kb-server/internal/model"
)

type CollectionRepository struct {
	db *gorm.DB
}

func NewCollectionRepository(db *gorm.DB) *CollectionRepository {
	return &CollectionRepository{db: db}
}

func (r *CollectionRepository) Create(ctx context.Context, collection *model.Collection) error {
	return r.db.WithContext(ctx).Create(collection).Error
}

func (r *CollectionRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Collection, error) {
	var collection model.Collection
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&collection).Error
	if err != nil {
		return nil, err
	}
	return &collection, nil
}

func (r *CollectionRepository) List(ctx context.Context, owner string, visibility model.Visibility, limit, offset int) ([]model.Collection, int64, error) {
	var collections []model.Collection
	var total int64

	query := r.db.WithContext(ctx).Model(&model.Collection{})
	if owner != "" {
		query = query.Where("owner = ?", owner)
	}
	if visibility != "" {
		query = query.Where("visibility = ?", visibility)
	}

	query.Count(&total)
	err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&collections).Error
	return collections, total, err
}

func (r *CollectionRepository) Update(ctx context.Context, collection *model.Collection) error {
	return r.db.WithContext(ctx).Save(collection).Error
}

func (r *CollectionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Collection{}).Error
}

// VectorStoreRefs lists every vector_store_ref held by a live metadata row,
// for consistency reporting against the vector store.
func (r *CollectionRepository) VectorStoreRefs(ctx context.Context) (map[uuid.UUID]uuid.UUID, error) {
	var rows []struct {
		ID             uuid.UUID
		VectorStoreRef uuid.UUID
	}
	err := r.db.WithContext(ctx).Model(&model.Collection{}).
		Select("id", "vector_store_ref").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	refs := make(map[uuid.UUID]uuid.UUID, len(rows))
	for _, row := range rows {
		refs[row.ID] = row.VectorStoreRef
	}
	return refs, nil
}
