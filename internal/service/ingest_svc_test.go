package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lamb-project/kb-server/internal/config"
	"github.com/lamb-project/kb-server/internal/model"
	"github.com/lamb-project/kb-server/internal/plugin"
)

type ingestFixture struct {
	svc         *IngestionService
	collections *fakeCollections
	files       *fakeFiles
	vectors     *fakeVectors
	cfg         *config.Config
	collection  *model.Collection
}

func newIngestFixture(t *testing.T) *ingestFixture {
	t.Helper()
	cfg := testConfig(t.TempDir())
	collections := newFakeCollections()
	files := newFakeFiles()
	vectors := newFakeVectors(cfg.EmbeddingDimensions)
	collSvc := NewCollectionService(collections, files, vectors, cfg)

	registry := plugin.NewRegistry()
	registry.RegisterIngestion(plugin.NewSimpleIngest())
	registry.RegisterIngestion(plugin.NewMarkdownIngest())

	collection, err := collSvc.Create(context.Background(), CreateCollectionRequest{
		Name:  "handbook",
		Owner: "alice",
	})
	require.NoError(t, err)

	return &ingestFixture{
		svc:         NewIngestionService(collSvc, files, vectors, registry, cfg),
		collections: collections,
		files:       files,
		vectors:     vectors,
		cfg:         cfg,
		collection:  collection,
	}
}

func TestUploadStagesFile(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()

	body := strings.NewReader("hello world")
	file, err := f.svc.Upload(ctx, f.collection.ID, "notes.txt", "text/plain", int64(body.Len()), body, "", nil)
	require.NoError(t, err)

	assert.Equal(t, model.FileStatusProcessing, file.Status)
	assert.Equal(t, "notes.txt", file.OriginalFilename)
	assert.Equal(t, int64(11), file.Size)

	data, err := os.ReadFile(file.StoredPath)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))
	assert.True(t, strings.HasPrefix(file.StoredPath, f.cfg.StoragePath))
}

func TestUploadRejectsOversizedFile(t *testing.T) {
	f := newIngestFixture(t)
	f.cfg.MaxUploadSize = 4

	_, err := f.svc.Upload(context.Background(), f.collection.ID, "big.txt", "text/plain", 10,
		strings.NewReader("0123456789"), "", nil)
	assert.ErrorIs(t, err, ErrValidation)

	// Nothing staged, nothing registered.
	assert.Empty(t, f.files.rows)
}

func TestUploadUnknownCollection(t *testing.T) {
	f := newIngestFixture(t)
	_, err := f.svc.Upload(context.Background(), uuid.New(), "notes.txt", "text/plain", 1,
		strings.NewReader("x"), "", nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestProcessPreviewsChunks(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()

	body := strings.NewReader(strings.Repeat("a", 500))
	file, err := f.svc.Upload(ctx, f.collection.ID, "doc.txt", "text/plain", 500, body, "", nil)
	require.NoError(t, err)

	chunks, err := f.svc.Process(ctx, f.collection.ID, file.StoredPath, "simple_ingest",
		map[string]interface{}{"chunk_size": float64(200), "chunk_overlap": float64(0)})
	require.NoError(t, err)
	assert.Len(t, chunks, 3)

	// Preview only: no vectors written, row still processing.
	assert.Empty(t, f.vectors.docs)
	row, err := f.files.FindByID(ctx, file.ID)
	require.NoError(t, err)
	assert.Equal(t, model.FileStatusProcessing, row.Status)
}

func TestProcessRejectsPathOutsideStorageRoot(t *testing.T) {
	f := newIngestFixture(t)
	_, err := f.svc.Process(context.Background(), f.collection.ID, "/etc/passwd", "simple_ingest", nil)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestProcessUnknownPlugin(t *testing.T) {
	f := newIngestFixture(t)
	path := filepath.Join(f.cfg.StoragePath, "x.txt")
	_, err := f.svc.Process(context.Background(), f.collection.ID, path, "no_such_plugin", nil)
	assert.ErrorIs(t, err, plugin.ErrNotFound)
}

func TestIngestFileEndToEnd(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()

	text := strings.Repeat("a", 500)
	file, err := f.svc.IngestFile(ctx, f.collection.ID, "doc.txt", "text/plain", 500,
		strings.NewReader(text), "simple_ingest",
		map[string]interface{}{"chunk_size": float64(200), "chunk_overlap": float64(0)})
	require.NoError(t, err)

	assert.Equal(t, model.FileStatusCompleted, file.Status)
	assert.Equal(t, 3, file.DocumentCount)

	docs := f.vectors.docs[f.collection.VectorStoreRef]
	require.Len(t, docs, 3)
	// Batch size 2 over 3 chunks means two insert calls.
	assert.Equal(t, 2, f.vectors.insertCalls)

	for i, doc := range docs {
		assert.Equal(t, file.ID, doc.FileID)
		assert.Equal(t, i, doc.ChunkIndex)
		assert.Equal(t, chunkDocumentID(file.ID, i), doc.ID)
		assert.Equal(t, file.ID.String(), doc.Metadata["file_id"])
		assert.Equal(t, doc.ID.String(), doc.Metadata["document_id"])
		assert.Equal(t, f.cfg.EmbeddingDimensions, len(doc.Embedding.Slice()))
	}
}

func TestIngestFileDeterministicChunkIdentity(t *testing.T) {
	fileID := uuid.New()
	assert.Equal(t, chunkDocumentID(fileID, 0), chunkDocumentID(fileID, 0))
	assert.NotEqual(t, chunkDocumentID(fileID, 0), chunkDocumentID(fileID, 1))
	assert.NotEqual(t, chunkDocumentID(fileID, 0), chunkDocumentID(uuid.New(), 0))
}

func TestIngestFileInvalidParams(t *testing.T) {
	f := newIngestFixture(t)

	_, err := f.svc.IngestFile(context.Background(), f.collection.ID, "doc.txt", "text/plain", 1,
		strings.NewReader("x"), "simple_ingest",
		map[string]interface{}{"chunk_unit": "page"})

	var ipe *plugin.InvalidParamsError
	require.ErrorAs(t, err, &ipe)
	// Rejected before any upload happened.
	assert.Empty(t, f.files.rows)
}

func TestIngestFileVectorStoreFailureMarksFailed(t *testing.T) {
	f := newIngestFixture(t)
	f.vectors.insertErr = errors.New("connection refused")
	ctx := context.Background()

	_, err := f.svc.IngestFile(ctx, f.collection.ID, "doc.txt", "text/plain", 5,
		strings.NewReader("hello"), "simple_ingest", nil)
	require.Error(t, err)

	require.Len(t, f.files.rows, 1)
	for _, row := range f.files.rows {
		assert.Equal(t, model.FileStatusFailed, row.Status)
		assert.NotEmpty(t, row.ErrorMessage)
	}
}

func TestIngestFileVectorStoreMissingMarksFailed(t *testing.T) {
	f := newIngestFixture(t)
	delete(f.vectors.collections, f.collection.VectorStoreRef)
	ctx := context.Background()

	_, err := f.svc.IngestFile(ctx, f.collection.ID, "doc.txt", "text/plain", 5,
		strings.NewReader("hello"), "simple_ingest", nil)
	assert.ErrorIs(t, err, ErrVectorStoreMissing)

	for _, row := range f.files.rows {
		assert.Equal(t, model.FileStatusFailed, row.Status)
	}
}

func TestCommitDocumentsReplacesPriorVectors(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()

	file, err := f.svc.IngestFile(ctx, f.collection.ID, "doc.txt", "text/plain", 5,
		strings.NewReader("hello"), "simple_ingest", nil)
	require.NoError(t, err)
	require.Len(t, f.vectors.docs[f.collection.VectorStoreRef], 1)

	count, err := f.svc.CommitDocuments(ctx, f.collection.ID, file.ID, []plugin.Chunk{
		{Text: "alpha"}, {Text: "beta"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	// Re-ingestion replaced the old vectors instead of appending.
	assert.Len(t, f.vectors.docs[f.collection.VectorStoreRef], 2)

	row, err := f.files.FindByID(ctx, file.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, row.DocumentCount)
	assert.Equal(t, model.FileStatusCompleted, row.Status)
}

// stubURLIngest returns one chunk per URL without any network access.
type stubURLIngest struct{}

func (stubURLIngest) Name() string                  { return "stub_url_ingest" }
func (stubURLIngest) Description() string           { return "stub" }
func (stubURLIngest) SupportedInputTypes() []string { return []string{"url"} }
func (stubURLIngest) Parameters() plugin.ParamSchema {
	return plugin.ParamSchema{}
}

func (stubURLIngest) Ingest(ctx context.Context, src plugin.Source, params map[string]interface{}) ([]plugin.Chunk, error) {
	chunks := make([]plugin.Chunk, len(src.URLs))
	for i, u := range src.URLs {
		chunks[i] = plugin.Chunk{Text: "content of " + u, Metadata: model.JSONMap{"url": u}}
	}
	return chunks, nil
}

func TestIngestURLs(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()
	f.svc.registry.RegisterIngestion(stubURLIngest{})

	file, err := f.svc.IngestURLs(ctx, f.collection.ID,
		[]string{"https://example.com/a", "https://example.com/b"}, "stub_url_ingest", nil)
	require.NoError(t, err)

	assert.Equal(t, model.FileStatusCompleted, file.Status)
	assert.Equal(t, 2, file.DocumentCount)
	assert.Equal(t, "https://example.com/a", file.OriginalFilename)
	assert.Equal(t, "text/url", file.ContentType)
	assert.Len(t, f.vectors.docs[f.collection.VectorStoreRef], 2)
}

func TestIngestURLsEmptyList(t *testing.T) {
	f := newIngestFixture(t)
	_, err := f.svc.IngestURLs(context.Background(), f.collection.ID, nil, "stub_url_ingest", nil)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCommitDocumentsWrongCollection(t *testing.T) {
	f := newIngestFixture(t)
	ctx := context.Background()

	other := &model.File{CollectionID: uuid.New(), Status: model.FileStatusProcessing}
	require.NoError(t, f.files.Create(ctx, other))

	_, err := f.svc.CommitDocuments(ctx, f.collection.ID, other.ID, []plugin.Chunk{{Text: "x"}})
	assert.ErrorIs(t, err, ErrValidation)
}
