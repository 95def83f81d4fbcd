package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"

	"github.com/lamb-project/kb-server/internal/config"
	"github.com/lamb-project/kb-server/internal/embedding"
	"github.com/lamb-project/kb-server/internal/model"
	"github.com/lamb-project/kb-server/internal/plugin"
	"github.com/lamb-project/kb-server/internal/vectorstore"
)

// IngestionService orchestrates upload, plugin processing, embedding and
// vector-store insertion, keeping the File registry row in step so every
// vector write is traceable to exactly one row.
type IngestionService struct {
	collections *CollectionService
	files       FileStore
	vectors     VectorStore
	registry    *plugin.Registry
	cfg         *config.Config
	logger      *slog.Logger
}

func NewIngestionService(collections *CollectionService, files FileStore, vectors VectorStore, registry *plugin.Registry, cfg *config.Config) *IngestionService {
	return &IngestionService{
		collections: collections,
		files:       files,
		vectors:     vectors,
		registry:    registry,
		cfg:         cfg,
		logger:      slog.Default().With("component", "ingestion_service"),
	}
}

// Upload stages a file on disk and creates its registry row in
// `processing`. No chunking or embedding happens here; pluginName and
// pluginParams are recorded when the caller already committed to them.
func (s *IngestionService) Upload(ctx context.Context, collectionID uuid.UUID, filename, contentType string, size int64, reader io.Reader, pluginName string, pluginParams model.JSONMap) (*model.File, error) {
	collection, err := s.collections.Get(ctx, collectionID)
	if err != nil {
		return nil, err
	}

	fileID := uuid.New()
	storagePath := filepath.Join(s.cfg.StoragePath, collection.ID.String(), fileID.String(), filepath.Base(filename))

	if err := os.MkdirAll(filepath.Dir(storagePath), 0o755); err != nil {
		return nil, err
	}
	dst, err := os.Create(storagePath)
	if err != nil {
		return nil, err
	}
	defer dst.Close()

	written, err := io.Copy(dst, io.LimitReader(reader, s.cfg.MaxUploadSize+1))
	if err != nil {
		os.Remove(storagePath)
		return nil, err
	}
	if written > s.cfg.MaxUploadSize {
		os.Remove(storagePath)
		return nil, validationErr("file exceeds maximum upload size of %d bytes", s.cfg.MaxUploadSize)
	}

	file := &model.File{
		CollectionID:     collection.ID,
		OriginalFilename: filename,
		StoredPath:       storagePath,
		Size:             written,
		ContentType:      contentType,
		PluginName:       pluginName,
		PluginParams:     pluginParams,
		Status:           model.FileStatusProcessing,
		Owner:            collection.Owner,
	}
	file.ID = fileID

	if err := s.files.Create(ctx, file); err != nil {
		os.Remove(storagePath)
		return nil, err
	}

	s.logger.Info("file staged", "collection", collection.ID, "file", file.ID, "size", written)
	return file, nil
}

// Process runs an ingestion plugin over a staged file and returns the
// chunks without persisting anything, for previewing chunking parameters.
func (s *IngestionService) Process(ctx context.Context, collectionID uuid.UUID, filePath, pluginName string, params map[string]interface{}) ([]plugin.Chunk, error) {
	if _, err := s.collections.Get(ctx, collectionID); err != nil {
		return nil, err
	}
	if err := s.checkStagedPath(filePath); err != nil {
		return nil, err
	}

	p, validated, err := s.resolveIngestionPlugin(pluginName, params)
	if err != nil {
		return nil, err
	}

	src := plugin.Source{Path: filePath, Filename: filepath.Base(filePath)}
	chunks, err := p.Ingest(ctx, src, validated)
	if err != nil {
		return nil, fmt.Errorf("plugin %s: %w", pluginName, err)
	}
	return chunks, nil
}

// CommitDocuments writes pre-built chunks to the vector store and settles
// the File registry row. The embedding function is reconstructed from the
// collection's stored config, never from caller-supplied parameters.
func (s *IngestionService) CommitDocuments(ctx context.Context, collectionID, fileID uuid.UUID, chunks []plugin.Chunk) (int, error) {
	collection, err := s.collections.Get(ctx, collectionID)
	if err != nil {
		return 0, err
	}

	file, err := s.files.FindByID(ctx, fileID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, fmt.Errorf("%w: file %s", ErrNotFound, fileID)
	}
	if err != nil {
		return 0, err
	}
	if file.CollectionID != collection.ID {
		return 0, validationErr("file %s does not belong to collection %s", fileID, collectionID)
	}

	count, err := s.commit(ctx, collection, file.ID, chunks)
	if err != nil {
		s.failFile(ctx, file.ID, err)
		return 0, err
	}
	if err := s.files.MarkCompleted(ctx, file.ID, count); err != nil {
		return 0, err
	}
	return count, nil
}

// IngestFile runs upload, process and commit as one call. The registry row
// is created eagerly in `processing` and settled to `completed` or
// `failed`; a crash mid-pipeline leaves a `processing` row an operator can
// find and retry or discard.
func (s *IngestionService) IngestFile(ctx context.Context, collectionID uuid.UUID, filename, contentType string, size int64, reader io.Reader, pluginName string, params map[string]interface{}) (*model.File, error) {
	p, validated, err := s.resolveIngestionPlugin(pluginName, params)
	if err != nil {
		return nil, err
	}

	file, err := s.Upload(ctx, collectionID, filename, contentType, size, reader, pluginName, validated)
	if err != nil {
		return nil, err
	}

	collection, err := s.collections.Get(ctx, collectionID)
	if err != nil {
		return nil, err
	}

	src := plugin.Source{Path: file.StoredPath, Filename: file.OriginalFilename}
	chunks, err := p.Ingest(ctx, src, validated)
	if err != nil {
		err = fmt.Errorf("plugin %s: %w", pluginName, err)
		s.failFile(ctx, file.ID, err)
		return nil, err
	}

	return s.settle(ctx, collection, file, chunks)
}

// IngestURLs fetches URLs through an ingestion plugin and commits the
// result, with the same eager-row guarantees as IngestFile.
func (s *IngestionService) IngestURLs(ctx context.Context, collectionID uuid.UUID, urls []string, pluginName string, params map[string]interface{}) (*model.File, error) {
	if len(urls) == 0 {
		return nil, validationErr("at least one URL is required")
	}

	p, validated, err := s.resolveIngestionPlugin(pluginName, params)
	if err != nil {
		return nil, err
	}

	collection, err := s.collections.Get(ctx, collectionID)
	if err != nil {
		return nil, err
	}

	file := &model.File{
		CollectionID:     collection.ID,
		OriginalFilename: urls[0],
		ContentType:      "text/url",
		PluginName:       pluginName,
		PluginParams:     validated,
		Status:           model.FileStatusProcessing,
		Owner:            collection.Owner,
	}
	if err := s.files.Create(ctx, file); err != nil {
		return nil, err
	}

	chunks, err := p.Ingest(ctx, plugin.Source{URLs: urls}, validated)
	if err != nil {
		err = fmt.Errorf("plugin %s: %w", pluginName, err)
		s.failFile(ctx, file.ID, err)
		return nil, err
	}

	return s.settle(ctx, collection, file, chunks)
}

func (s *IngestionService) settle(ctx context.Context, collection *model.Collection, file *model.File, chunks []plugin.Chunk) (*model.File, error) {
	count, err := s.commit(ctx, collection, file.ID, chunks)
	if err != nil {
		s.failFile(ctx, file.ID, err)
		return nil, err
	}
	if err := s.files.MarkCompleted(ctx, file.ID, count); err != nil {
		return nil, err
	}
	file.Status = model.FileStatusCompleted
	file.DocumentCount = count

	s.logger.Info("ingestion completed",
		"collection", collection.ID, "file", file.ID, "chunks", count)
	return file, nil
}

// commit embeds chunks with the collection's stored config and inserts
// them in bounded batches. Prior vectors for the file are removed first,
// so a retried ingestion replaces instead of duplicating. Batches already
// committed before a later failure stay in place; the failed File row plus
// deterministic chunk identity make the retry safe.
func (s *IngestionService) commit(ctx context.Context, collection *model.Collection, fileID uuid.UUID, chunks []plugin.Chunk) (int, error) {
	embedder, _, err := embedding.Resolve(s.cfg, collection.Embedding)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrEmbeddingValidation, err)
	}

	handle, err := s.collections.ResolveHandle(ctx, collection)
	if err != nil {
		return 0, err
	}

	if err := s.vectors.DeleteByFile(ctx, fileID); err != nil {
		return 0, mapVectorStoreErr(err)
	}

	batchSize := s.cfg.InsertBatchSize
	if batchSize <= 0 {
		batchSize = 64
	}

	for start := 0; start < len(chunks); start += batchSize {
		end := start + batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}

		embedCtx, cancel := context.WithTimeout(ctx, s.cfg.EmbeddingTimeout)
		vecs, err := embedder.Embed(embedCtx, texts)
		cancel()
		if err != nil {
			return 0, mapEmbeddingErr(err)
		}
		if len(vecs) != len(batch) {
			return 0, fmt.Errorf("%w: got %d vectors for %d chunks", ErrEmbeddingValidation, len(vecs), len(batch))
		}

		docs := make([]vectorstore.VectorDocument, len(batch))
		for i, c := range batch {
			idx := start + i
			docID := chunkDocumentID(fileID, idx)
			md := model.JSONMap{}
			for k, v := range c.Metadata {
				md[k] = v
			}
			md["file_id"] = fileID.String()
			md["document_id"] = docID.String()

			docs[i] = vectorstore.VectorDocument{
				ID:         docID,
				FileID:     fileID,
				ChunkIndex: idx,
				Content:    c.Text,
				Embedding:  pgvector.NewVector(vecs[i]),
				Metadata:   md,
			}
		}

		insertCtx, cancel := context.WithTimeout(ctx, s.cfg.VectorStoreTimeout)
		err = s.vectors.InsertBatch(insertCtx, handle.ID, docs)
		cancel()
		if err != nil {
			return 0, mapVectorStoreErr(err)
		}
	}

	return len(chunks), nil
}

func (s *IngestionService) failFile(ctx context.Context, fileID uuid.UUID, cause error) {
	if err := s.files.MarkFailed(ctx, fileID, cause.Error()); err != nil {
		s.logger.Error("failed to mark file failed", "file", fileID, "error", err)
	}
}

func (s *IngestionService) resolveIngestionPlugin(name string, params map[string]interface{}) (plugin.IngestionPlugin, map[string]interface{}, error) {
	p, err := s.registry.Ingestion(name)
	if err != nil {
		return nil, nil, err
	}
	validated, err := p.Parameters().Validate(params)
	if err != nil {
		return nil, nil, err
	}
	return p, validated, nil
}

// checkStagedPath rejects paths outside the configured storage root.
func (s *IngestionService) checkStagedPath(path string) error {
	root, err := filepath.Abs(s.cfg.StoragePath)
	if err != nil {
		return err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return validationErr("invalid file path")
	}
	if !strings.HasPrefix(abs, root+string(os.PathSeparator)) {
		return validationErr("file path is outside the storage root")
	}
	return nil
}

// chunkDocumentID derives a chunk's vector-store identity deterministically
// from its file and index, which is what makes re-ingestion idempotent.
func chunkDocumentID(fileID uuid.UUID, index int) uuid.UUID {
	return uuid.NewSHA1(fileID, []byte(fmt.Sprintf("chunk-%d", index)))
}
