package embedding

import (
	"context"
	"fmt"

	"github.com/lamb-project/kb-server/internal/config"
	"github.com/lamb-project/kb-server/internal/model"
)

// Embedder maps text to fixed-length vectors. Ingestion and query must use
// the same Embedder for a collection, so instances are always reconstructed
// from the collection's stored embedding config.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Describe() string
}

const (
	VendorLocal  = "local"
	VendorOpenAI = "openai"

	// VendorDefault is a placeholder resolved against configured defaults
	// at collection create time, never stored.
	VendorDefault = "default"
)

// Resolve builds an Embedder from an embedding config, substituting
// configured defaults for "default" placeholders. The returned config is
// the fully resolved form that should be persisted on the collection.
func Resolve(cfg *config.Config, ec model.EmbeddingConfig) (Embedder, model.EmbeddingConfig, error) {
	if ec.Vendor == "" || ec.Vendor == VendorDefault {
		ec.Vendor = cfg.EmbeddingVendor
	}
	if ec.Model == "" || ec.Model == VendorDefault {
		ec.Model = cfg.EmbeddingModel
	}
	if ec.Endpoint == "" || ec.Endpoint == VendorDefault {
		ec.Endpoint = cfg.EmbeddingBaseURL
	}
	if ec.APIKey == "" || ec.APIKey == VendorDefault {
		ec.APIKey = cfg.EmbeddingAPIKey
	}

	switch ec.Vendor {
	case VendorLocal:
		return NewLocalEmbedder(cfg.EmbeddingDimensions), ec, nil
	case VendorOpenAI:
		return NewOpenAIEmbedder(ec.APIKey, ec.Endpoint, ec.Model, cfg.EmbeddingDimensions, cfg.EmbeddingTimeout), ec, nil
	default:
		return nil, ec, fmt.Errorf("unknown embedding vendor %q", ec.Vendor)
	}
}
