package service

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lamb-project/kb-server/internal/model"
)

// FileService serves File registry reads and the operator-facing status
// override used to reconcile rows left behind by crashed ingestions.
type FileService struct {
	files   FileStore
	vectors VectorStore
	logger  *slog.Logger
}

func NewFileService(files FileStore, vectors VectorStore) *FileService {
	return &FileService{
		files:   files,
		vectors: vectors,
		logger:  slog.Default().With("component", "file_service"),
	}
}

func (s *FileService) Get(ctx context.Context, id uuid.UUID) (*model.File, error) {
	file, err := s.files.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return file, nil
}

func (s *FileService) ListByCollection(ctx context.Context, collectionID uuid.UUID, status model.FileStatus, skip, limit int) ([]model.File, int64, error) {
	if status != "" && !status.Valid() {
		return nil, 0, validationErr("unknown file status %q", status)
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if skip < 0 {
		skip = 0
	}
	return s.files.FindByCollectionID(ctx, collectionID, status, limit, skip)
}

// ForceStatus overrides a row's status. Transitioning to `deleted` also
// removes the file's vectors: a deleted row must have zero live chunks.
// Forcing `completed` recounts the file's live vectors, so document_count
// reflects what is actually queryable.
func (s *FileService) ForceStatus(ctx context.Context, id uuid.UUID, status model.FileStatus) (*model.File, error) {
	if !status.Valid() {
		return nil, validationErr("unknown file status %q", status)
	}
	file, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	switch status {
	case model.FileStatusDeleted:
		if err := s.vectors.DeleteByFile(ctx, file.ID); err != nil {
			return nil, mapVectorStoreErr(err)
		}
		if err := s.files.SetStatus(ctx, id, status); err != nil {
			return nil, err
		}
	case model.FileStatusCompleted:
		count, err := s.vectors.CountByFile(ctx, file.ID)
		if err != nil {
			return nil, mapVectorStoreErr(err)
		}
		if err := s.files.ForceCompleted(ctx, id, int(count)); err != nil {
			return nil, err
		}
		file.DocumentCount = int(count)
	default:
		if err := s.files.SetStatus(ctx, id, status); err != nil {
			return nil, err
		}
	}

	s.logger.Info("file status forced", "file", id, "from", file.Status, "to", status)
	file.Status = status
	return file, nil
}

// Delete removes the file's vectors, its staged bytes, and marks the row
// `deleted`. The row itself is kept for traceability.
func (s *FileService) Delete(ctx context.Context, id uuid.UUID) error {
	file, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := s.vectors.DeleteByFile(ctx, file.ID); err != nil {
		return mapVectorStoreErr(err)
	}
	if file.StoredPath != "" {
		if err := os.Remove(file.StoredPath); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("failed to remove staged file", "file", id, "path", file.StoredPath, "error", err)
		}
	}
	return s.files.SetStatus(ctx, id, model.FileStatusDeleted)
}
