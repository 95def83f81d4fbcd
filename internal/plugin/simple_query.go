package plugin

import (
	"context"
	"fmt"
	"sort"

	"github.com/pgvector/pgvector-go"
)

// SimpleQuery is the default retrieval strategy: cosine similarity search
// filtered by threshold and truncated to top_k.
type SimpleQuery struct{}

func NewSimpleQuery() *SimpleQuery {
	return &SimpleQuery{}
}

func (p *SimpleQuery) Name() string {
	return "simple_query"
}

func (p *SimpleQuery) Description() string {
	return "Cosine similarity search with threshold filtering"
}

func (p *SimpleQuery) Parameters() ParamSchema {
	return ParamSchema{}
}

func (p *SimpleQuery) Query(ctx context.Context, store Searcher, req QueryRequest, params map[string]interface{}) ([]QueryResult, error) {
	embedding, err := req.Embed(ctx, req.QueryText)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	hits, err := store.Search(ctx, req.CollectionID, pgvector.NewVector(embedding), req.TopK)
	if err != nil {
		return nil, err
	}

	results := make([]QueryResult, 0, len(hits))
	for _, hit := range hits {
		similarity := 1 - hit.Distance
		if similarity < req.Threshold {
			continue
		}
		results = append(results, QueryResult{
			Similarity: similarity,
			Text:       hit.Document.Content,
			Metadata:   hit.Document.Metadata,
			ChunkIndex: hit.Document.ChunkIndex,
		})
	}

	// Descending similarity, ties broken by ascending chunk index so
	// repeated queries return identical orderings.
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		return results[i].ChunkIndex < results[j].ChunkIndex
	})

	if len(results) > req.TopK {
		results = results[:req.TopK]
	}
	return results, nil
}
