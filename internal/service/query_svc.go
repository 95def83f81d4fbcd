package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/lamb-project/kb-server/internal/config"
	"github.com/lamb-project/kb-server/internal/embedding"
	"github.com/lamb-project/kb-server/internal/plugin"
	"github.com/lamb-project/kb-server/internal/vectorstore"
)

const defaultTopK = 5

// QueryService orchestrates similarity queries: metadata lookup, embedding
// function reconstruction from the collection's stored config, and dispatch
// to a named query plugin.
type QueryService struct {
	collections *CollectionService
	vectors     VectorStore
	registry    *plugin.Registry
	cfg         *config.Config
	logger      *slog.Logger
}

func NewQueryService(collections *CollectionService, vectors VectorStore, registry *plugin.Registry, cfg *config.Config) *QueryService {
	return &QueryService{
		collections: collections,
		vectors:     vectors,
		registry:    registry,
		cfg:         cfg,
		logger:      slog.Default().With("component", "query_service"),
	}
}

type QueryRequest struct {
	QueryText    string                 `json:"query_text" binding:"required"`
	TopK         int                    `json:"top_k"`
	Threshold    float64                `json:"threshold"`
	PluginName   string                 `json:"plugin_name"`
	PluginParams map[string]interface{} `json:"plugin_params"`
}

type QueryTiming struct {
	EmbeddingMS float64 `json:"embedding_ms"`
	SearchMS    float64 `json:"search_ms"`
	TotalMS     float64 `json:"total_ms"`
}

type QueryResponse struct {
	Results []plugin.QueryResult `json:"results"`
	Count   int                  `json:"count"`
	Timing  QueryTiming          `json:"timing"`
}

// Query runs a similarity query. An empty result set is a normal response,
// not an error.
func (s *QueryService) Query(ctx context.Context, collectionID uuid.UUID, req QueryRequest) (*QueryResponse, error) {
	if req.QueryText == "" {
		return nil, validationErr("query_text is required")
	}
	if req.TopK <= 0 {
		req.TopK = defaultTopK
	}
	if req.Threshold < 0 || req.Threshold > 1 {
		return nil, validationErr("threshold must be in [0, 1]")
	}
	if req.PluginName == "" {
		req.PluginName = "simple_query"
	}

	collection, err := s.collections.Get(ctx, collectionID)
	if err != nil {
		return nil, err
	}

	// Queries and documents must share one embedding space, so the
	// embedder always comes from the collection's stored config.
	embedder, _, err := embedding.Resolve(s.cfg, collection.Embedding)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingValidation, err)
	}

	handle, err := s.collections.ResolveHandle(ctx, collection)
	if err != nil {
		return nil, err
	}

	qp, err := s.registry.Query(req.PluginName)
	if err != nil {
		return nil, err
	}
	validated, err := qp.Parameters().Validate(req.PluginParams)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	var embedTime, searchTime time.Duration

	embedFn := func(ctx context.Context, text string) ([]float32, error) {
		embedCtx, cancel := context.WithTimeout(ctx, s.cfg.EmbeddingTimeout)
		defer cancel()
		t0 := time.Now()
		vecs, err := embedder.Embed(embedCtx, []string{text})
		embedTime += time.Since(t0)
		if err != nil {
			return nil, mapEmbeddingErr(err)
		}
		if len(vecs) != 1 {
			return nil, fmt.Errorf("%w: expected one query vector, got %d", ErrEmbeddingValidation, len(vecs))
		}
		return vecs[0], nil
	}

	searcher := &boundedSearcher{
		store:   s.vectors,
		timeout: s.cfg.VectorStoreTimeout,
		elapsed: &searchTime,
	}

	results, err := qp.Query(ctx, searcher, plugin.QueryRequest{
		CollectionID: handle.ID,
		Embed:        embedFn,
		QueryText:    req.QueryText,
		TopK:         req.TopK,
		Threshold:    req.Threshold,
	}, validated)
	if err != nil {
		return nil, err
	}
	if results == nil {
		results = []plugin.QueryResult{}
	}

	s.logger.Debug("query served",
		"collection", collectionID, "plugin", req.PluginName,
		"results", len(results), "elapsed", time.Since(start))

	return &QueryResponse{
		Results: results,
		Count:   len(results),
		Timing: QueryTiming{
			EmbeddingMS: float64(embedTime.Microseconds()) / 1000,
			SearchMS:    float64(searchTime.Microseconds()) / 1000,
			TotalMS:     float64(time.Since(start).Microseconds()) / 1000,
		},
	}, nil
}

// boundedSearcher applies the configured vector-store timeout to every
// search and records elapsed time for the response's timing breakdown.
type boundedSearcher struct {
	store   VectorStore
	timeout time.Duration
	elapsed *time.Duration
}

func (b *boundedSearcher) Search(ctx context.Context, collectionID uuid.UUID, emb pgvector.Vector, topK int) ([]vectorstore.SearchHit, error) {
	searchCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	t0 := time.Now()
	hits, err := b.store.Search(searchCtx, collectionID, emb, topK)
	*b.elapsed += time.Since(t0)
	if err != nil {
		return nil, mapVectorStoreErr(err)
	}
	return hits, nil
}
