package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lamb-project/kb-server/internal/model"
)

type FileRepository struct {
	db *gorm.DB
}

func NewFileRepository(db *gorm.DB) *FileRepository {
	return &FileRepository{db: db}
}

func (r *FileRepository) Create(ctx context.Context, file *model.File) error {
	return r.db.WithContext(ctx).Create(file).Error
}

func (r *FileRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.File, error) {
	var file model.File
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&file).Error
	if err != nil {
		return nil, err
	}
	return &file, nil
}

func (r *FileRepository) FindByCollectionID(ctx context.Context, collectionID uuid.UUID, status model.FileStatus, limit, offset int) ([]model.File, int64, error) {
	var files []model.File
	var total int64

	query := r.db.WithContext(ctx).Model(&model.File{}).
		Where("collection_id = ?", collectionID)
	if status != "" {
		query = query.Where("status = ?", status)
	}

	query.Count(&total)
	err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&files).Error
	return files, total, err
}

// CountByCollectionAndStatus reports how many files in a collection are in
// the given status. Used to decide whether a collection's embedding config
// is frozen.
func (r *FileRepository) CountByCollectionAndStatus(ctx context.Context, collectionID uuid.UUID, status model.FileStatus) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.File{}).
		Where("collection_id = ? AND status = ?", collectionID, status).
		Count(&count).Error
	return count, err
}

// MarkCompleted transitions a processing row to completed in a single
// UPDATE. Concurrent ingestions into the same collection cannot clobber
// each other's rows because the update is keyed and status-guarded.
func (r *FileRepository) MarkCompleted(ctx context.Context, id uuid.UUID, documentCount int) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&model.File{}).
		Where("id = ? AND status = ?", id, model.FileStatusProcessing).
		Updates(map[string]interface{}{
			"status":         model.FileStatusCompleted,
			"document_count": documentCount,
			"error_message":  "",
			"processed_at":   &now,
		}).Error
}

// MarkFailed records the first encountered error on the row.
func (r *FileRepository) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	return r.db.WithContext(ctx).Model(&model.File{}).
		Where("id = ? AND status = ?", id, model.FileStatusProcessing).
		Updates(map[string]interface{}{
			"status":        model.FileStatusFailed,
			"error_message": errMsg,
		}).Error
}

// ForceCompleted is the unguarded counterpart of MarkCompleted for the
// operator status override. The caller reconciles document_count against
// the live vectors before forcing the transition.
func (r *FileRepository) ForceCompleted(ctx context.Context, id uuid.UUID, documentCount int) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&model.File{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":         model.FileStatusCompleted,
			"document_count": documentCount,
			"error_message":  "",
			"processed_at":   &now,
		}).Error
}

// SetStatus force-sets a row's status, for operator reconciliation of rows
// left behind by a crashed ingestion.
func (r *FileRepository) SetStatus(ctx context.Context, id uuid.UUID, status model.FileStatus) error {
	return r.db.WithContext(ctx).Model(&model.File{}).
		Where("id = ?", id).
		Update("status", status).Error
}

func (r *FileRepository) DeleteByCollectionID(ctx context.Context, collectionID uuid.UUID) error {
	return r.db.WithContext(ctx).Where("collection_id = ?", collectionID).Delete(&model.File{}).Error
}
