package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lamb-project/kb-server/internal/config"
	"github.com/lamb-project/kb-server/internal/embedding"
	"github.com/lamb-project/kb-server/internal/model"
	"github.com/lamb-project/kb-server/internal/vectorstore"
)

// CollectionService orchestrates the knowledge-base lifecycle: dual-store
// create/delete with verification and compensation, and consistent handle
// resolution for the orchestrators.
type CollectionService struct {
	collections CollectionStore
	files       FileStore
	vectors     VectorStore
	cfg         *config.Config
	logger      *slog.Logger
}

func NewCollectionService(collections CollectionStore, files FileStore, vectors VectorStore, cfg *config.Config) *CollectionService {
	return &CollectionService{
		collections: collections,
		files:       files,
		vectors:     vectors,
		cfg:         cfg,
		logger:      slog.Default().With("component", "collection_service"),
	}
}

type CreateCollectionRequest struct {
	Name        string                `json:"name" binding:"required"`
	Description string                `json:"description"`
	Owner       string                `json:"owner" binding:"required"`
	Visibility  model.Visibility      `json:"visibility"`
	Embedding   model.EmbeddingConfig `json:"embedding_model"`
}

// Create runs the create saga: validate the embedding config with a trial
// call, create the vector-store collection, write the metadata row carrying
// the native identifier, then re-read to verify. Any failed step rolls the
// partially created side back so no orphaned state survives.
func (s *CollectionService) Create(ctx context.Context, req CreateCollectionRequest) (*model.Collection, error) {
	if req.Name == "" {
		return nil, validationErr("name is required")
	}
	if req.Owner == "" {
		return nil, validationErr("owner is required")
	}
	if req.Visibility == "" {
		req.Visibility = model.VisibilityPrivate
	}
	if !req.Visibility.Valid() {
		return nil, validationErr("visibility must be private or public")
	}

	embedder, resolved, err := embedding.Resolve(s.cfg, req.Embedding)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingValidation, err)
	}
	if embedder.Dimensions() != s.vectors.Dimensions() {
		return nil, fmt.Errorf("%w: embedder produces %d dimensions, store expects %d",
			ErrEmbeddingValidation, embedder.Dimensions(), s.vectors.Dimensions())
	}

	// Trial embedding call fails fast on bad credentials or an
	// unreachable endpoint, before any state exists.
	trialCtx, cancel := context.WithTimeout(ctx, s.cfg.EmbeddingTimeout)
	defer cancel()
	vecs, err := embedder.Embed(trialCtx, []string{"embedding validation probe"})
	if err != nil {
		return nil, mapEmbeddingErr(err)
	}
	if len(vecs) != 1 || len(vecs[0]) != embedder.Dimensions() {
		return nil, fmt.Errorf("%w: trial call returned unexpected vector shape", ErrEmbeddingValidation)
	}

	vecName := vectorCollectionName(req.Owner, req.Name, req.Visibility)
	ref, err := s.vectors.CreateCollection(ctx, vecName, embedder.Dimensions())
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateName
		}
		return nil, fmt.Errorf("create vector collection: %w", err)
	}

	collection := &model.Collection{
		Name:           req.Name,
		Description:    req.Description,
		Owner:          req.Owner,
		Visibility:     req.Visibility,
		Embedding:      resolved,
		VectorStoreRef: ref,
	}

	if err := s.collections.Create(ctx, collection); err != nil {
		s.compensateVector(ctx, ref)
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateName
		}
		return nil, fmt.Errorf("create metadata row: %w", err)
	}

	// Read back to confirm the identifier persisted.
	persisted, err := s.collections.FindByID(ctx, collection.ID)
	if err != nil || persisted.VectorStoreRef != ref {
		s.logger.Error("post-write verification failed, rolling back",
			"collection", collection.ID, "vector_ref", ref)
		if delErr := s.collections.Delete(ctx, collection.ID); delErr != nil {
			s.logger.Error("rollback of metadata row failed", "collection", collection.ID, "error", delErr)
		}
		s.compensateVector(ctx, ref)
		return nil, ErrStorageFault
	}

	s.logger.Info("collection created",
		"collection", persisted.ID, "name", persisted.Name,
		"owner", persisted.Owner, "vector_ref", ref,
		"embedder", embedder.Describe())
	return persisted, nil
}

func (s *CollectionService) compensateVector(ctx context.Context, ref uuid.UUID) {
	if err := s.vectors.DeleteCollection(ctx, ref); err != nil {
		// Leftover vector collection; the consistency report will flag it.
		s.logger.Error("compensation failed, orphaned vector collection",
			"vector_ref", ref, "error", err)
	}
}

func (s *CollectionService) Get(ctx context.Context, id uuid.UUID) (*model.Collection, error) {
	collection, err := s.collections.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if count, err := s.vectors.CountByCollection(ctx, collection.VectorStoreRef); err == nil {
		collection.ChunkCount = count
	}
	return collection, nil
}

func (s *CollectionService) List(ctx context.Context, owner string, visibility model.Visibility, skip, limit int) ([]model.Collection, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if skip < 0 {
		skip = 0
	}
	if visibility != "" && !visibility.Valid() {
		return nil, 0, validationErr("visibility must be private or public")
	}
	return s.collections.List(ctx, owner, visibility, limit, skip)
}

type UpdateCollectionRequest struct {
	Name        *string                `json:"name"`
	Description *string                `json:"description"`
	Visibility  *model.Visibility      `json:"visibility"`
	Embedding   *model.EmbeddingConfig `json:"embedding_model"`
}

// Update changes name, description, visibility or, while the collection
// still holds no documents, the embedding config. A name or visibility
// change renames the vector-store collection too, so the derived name keeps
// tracking the metadata scope and the freed scope stays reusable.
func (s *CollectionService) Update(ctx context.Context, id uuid.UUID, req UpdateCollectionRequest) (*model.Collection, error) {
	collection, err := s.collections.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	origName, origVisibility := collection.Name, collection.Visibility

	if req.Name != nil {
		if *req.Name == "" {
			return nil, validationErr("name cannot be empty")
		}
		collection.Name = *req.Name
	}
	if req.Description != nil {
		collection.Description = *req.Description
	}
	if req.Visibility != nil {
		if !req.Visibility.Valid() {
			return nil, validationErr("visibility must be private or public")
		}
		collection.Visibility = *req.Visibility
	}
	if req.Embedding != nil {
		if err := s.applyEmbeddingChange(ctx, collection, *req.Embedding); err != nil {
			return nil, err
		}
	}

	scopeChanged := collection.Name != origName || collection.Visibility != origVisibility
	var handle *vectorstore.VectorCollection
	if scopeChanged {
		// Resolve against the pre-update scope so the name fallback still
		// works for rows created before identifier tracking.
		prior := *collection
		prior.Name, prior.Visibility = origName, origVisibility
		handle, err = s.ResolveHandle(ctx, &prior)
		if err != nil {
			return nil, err
		}
		collection.VectorStoreRef = handle.ID

		newName := vectorCollectionName(collection.Owner, collection.Name, collection.Visibility)
		if err := s.vectors.RenameCollection(ctx, handle.ID, newName); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return nil, ErrDuplicateName
			}
			return nil, mapVectorStoreErr(err)
		}
	}

	if err := s.collections.Update(ctx, collection); err != nil {
		if scopeChanged {
			oldName := vectorCollectionName(collection.Owner, origName, origVisibility)
			if rerr := s.vectors.RenameCollection(ctx, handle.ID, oldName); rerr != nil {
				s.logger.Error("rename rollback failed, vector collection name diverged",
					"collection", collection.ID, "vector_ref", handle.ID, "error", rerr)
			}
		}
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateName
		}
		return nil, err
	}
	return collection, nil
}

// applyEmbeddingChange validates and stages a new embedding config on a
// collection that holds no documents yet. Any completed file or live chunk
// freezes the config: documents embedded under different configs cannot be
// compared in one vector space.
func (s *CollectionService) applyEmbeddingChange(ctx context.Context, collection *model.Collection, ec model.EmbeddingConfig) error {
	completed, err := s.files.CountByCollectionAndStatus(ctx, collection.ID, model.FileStatusCompleted)
	if err != nil {
		return err
	}
	chunks, err := s.vectors.CountByCollection(ctx, collection.VectorStoreRef)
	if err != nil {
		return mapVectorStoreErr(err)
	}
	if completed > 0 || chunks > 0 {
		return fmt.Errorf("%w: collection %s holds %d chunks", ErrEmbeddingFrozen, collection.ID, chunks)
	}

	embedder, resolved, err := embedding.Resolve(s.cfg, ec)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEmbeddingValidation, err)
	}
	if embedder.Dimensions() != s.vectors.Dimensions() {
		return fmt.Errorf("%w: embedder produces %d dimensions, store expects %d",
			ErrEmbeddingValidation, embedder.Dimensions(), s.vectors.Dimensions())
	}

	trialCtx, cancel := context.WithTimeout(ctx, s.cfg.EmbeddingTimeout)
	defer cancel()
	if _, err := embedder.Embed(trialCtx, []string{"embedding validation probe"}); err != nil {
		return mapEmbeddingErr(err)
	}

	collection.Embedding = resolved
	return nil
}

// Delete removes the vector-store collection and then the metadata row.
// The second removal is attempted even when the first fails; leftover
// state is logged as a fault for later reconciliation.
func (s *CollectionService) Delete(ctx context.Context, id uuid.UUID) error {
	collection, err := s.collections.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	if err := s.vectors.DeleteCollection(ctx, collection.VectorStoreRef); err != nil {
		s.logger.Error("vector-side delete failed, continuing with metadata delete",
			"collection", id, "vector_ref", collection.VectorStoreRef, "error", err)
	}
	if err := s.files.DeleteByCollectionID(ctx, id); err != nil {
		s.logger.Error("file registry delete failed", "collection", id, "error", err)
	}
	if err := s.collections.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete metadata row: %w", err)
	}

	s.logger.Info("collection deleted", "collection", id, "vector_ref", collection.VectorStoreRef)
	return nil
}

// ResolveHandle resolves the live vector-store collection for a metadata
// row: native identifier first, name-based lookup as a fallback for rows
// created before identifier tracking. A fallback hit backfills the
// identifier. Failure of both means desynchronization and is never healed
// by creating a fresh collection.
func (s *CollectionService) ResolveHandle(ctx context.Context, collection *model.Collection) (*vectorstore.VectorCollection, error) {
	if collection.VectorStoreRef != uuid.Nil {
		handle, err := s.vectors.GetCollection(ctx, collection.VectorStoreRef)
		if err == nil {
			return handle, nil
		}
		if !errors.Is(err, vectorstore.ErrCollectionNotFound) {
			return nil, mapVectorStoreErr(err)
		}
	}

	handle, err := s.vectors.GetCollectionByName(ctx, vectorCollectionName(collection.Owner, collection.Name, collection.Visibility))
	if errors.Is(err, vectorstore.ErrCollectionNotFound) {
		return nil, fmt.Errorf("%w: collection %s", ErrVectorStoreMissing, collection.ID)
	}
	if err != nil {
		return nil, mapVectorStoreErr(err)
	}

	if collection.VectorStoreRef != handle.ID {
		collection.VectorStoreRef = handle.ID
		if err := s.collections.Update(ctx, collection); err != nil {
			s.logger.Warn("failed to backfill vector_store_ref", "collection", collection.ID, "error", err)
		}
	}
	return handle, nil
}

func vectorCollectionName(owner, name string, visibility model.Visibility) string {
	return fmt.Sprintf("%s__%s__%s", owner, visibility, name)
}
