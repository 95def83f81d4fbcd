package plugin

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/lamb-project/kb-server/internal/model"
	"github.com/lamb-project/kb-server/internal/vectorstore"
)

// ErrNotFound is returned for dispatch on an unregistered plugin name.
var ErrNotFound = errors.New("plugin not found")

// Chunk is the atomic retrievable unit an ingestion plugin produces.
type Chunk struct {
	Text     string        `json:"text"`
	Metadata model.JSONMap `json:"metadata"`
}

// Source is the raw input handed to an ingestion plugin: either a staged
// file on disk or a list of URLs.
type Source struct {
	Path     string
	Filename string
	URLs     []string
}

type IngestionPlugin interface {
	Name() string
	Description() string
	SupportedInputTypes() []string
	Parameters() ParamSchema
	Ingest(ctx context.Context, src Source, params map[string]interface{}) ([]Chunk, error)
}

// Searcher is the slice of the vector store a query plugin needs.
type Searcher interface {
	Search(ctx context.Context, collectionID uuid.UUID, embedding pgvector.Vector, topK int) ([]vectorstore.SearchHit, error)
}

// QueryRequest carries everything a query plugin needs: the resolved
// vector collection handle, an embedding function matching the
// collection's stored config, and the caller's query.
type QueryRequest struct {
	CollectionID uuid.UUID
	Embed        func(ctx context.Context, text string) ([]float32, error)
	QueryText    string
	TopK         int
	Threshold    float64
}

// QueryResult is one ranked hit.
type QueryResult struct {
	Similarity float64       `json:"similarity"`
	Text       string        `json:"data"`
	Metadata   model.JSONMap `json:"metadata"`
	ChunkIndex int           `json:"chunk_index"`
}

type QueryPlugin interface {
	Name() string
	Description() string
	Parameters() ParamSchema
	Query(ctx context.Context, store Searcher, req QueryRequest, params map[string]interface{}) ([]QueryResult, error)
}

// Registry holds the ingestion and query plugins registered at process
// start. Dispatch is by exact name match.
type Registry struct {
	mu        sync.RWMutex
	ingestion map[string]IngestionPlugin
	query     map[string]QueryPlugin
}

func NewRegistry() *Registry {
	return &Registry{
		ingestion: make(map[string]IngestionPlugin),
		query:     make(map[string]QueryPlugin),
	}
}

func (r *Registry) RegisterIngestion(p IngestionPlugin) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ingestion[p.Name()] = p
}

func (r *Registry) RegisterQuery(p QueryPlugin) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.query[p.Name()] = p
}

func (r *Registry) Ingestion(name string) (IngestionPlugin, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.ingestion[name]
	if !ok {
		return nil, fmt.Errorf("ingestion plugin %q: %w", name, ErrNotFound)
	}
	return p, nil
}

func (r *Registry) Query(name string) (QueryPlugin, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.query[name]
	if !ok {
		return nil, fmt.Errorf("query plugin %q: %w", name, ErrNotFound)
	}
	return p, nil
}

// PluginInfo is the introspection shape served by the plugin endpoints.
type PluginInfo struct {
	Name                string      `json:"name"`
	Description         string      `json:"description"`
	SupportedInputTypes []string    `json:"supported_input_types,omitempty"`
	Parameters          ParamSchema `json:"parameters"`
}

func (r *Registry) IngestionInfo() []PluginInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	infos := make([]PluginInfo, 0, len(r.ingestion))
	for _, p := range r.ingestion {
		infos = append(infos, PluginInfo{
			Name:                p.Name(),
			Description:         p.Description(),
			SupportedInputTypes: p.SupportedInputTypes(),
			Parameters:          p.Parameters(),
		})
	}
	sortInfos(infos)
	return infos
}

func (r *Registry) QueryInfo() []PluginInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	infos := make([]PluginInfo, 0, len(r.query))
	for _, p := range r.query {
		infos = append(infos, PluginInfo{
			Name:        p.Name(),
			Description: p.Description(),
			Parameters:  p.Parameters(),
		})
	}
	sortInfos(infos)
	return infos
}

func sortInfos(infos []PluginInfo) {
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
}
