package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// LocalEmbedder produces deterministic embeddings without a network call,
// by feature-hashing token 3-grams into a fixed number of buckets and
// L2-normalizing the result. Identical text always yields an identical
// vector, which is the property ingestion/query consistency depends on.
type LocalEmbedder struct {
	dimensions int
}

func NewLocalEmbedder(dimensions int) *LocalEmbedder {
	if dimensions == 0 {
		dimensions = 1536
	}
	return &LocalEmbedder{dimensions: dimensions}
}

func (e *LocalEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vectors[i] = e.embedOne(text)
	}
	return vectors, nil
}

func (e *LocalEmbedder) embedOne(text string) []float32 {
	vec := make([]float32, e.dimensions)

	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	for _, tok := range tokens {
		for _, feature := range tokenFeatures(tok) {
			h := fnv.New64a()
			h.Write([]byte(feature))
			sum := h.Sum64()
			bucket := int(sum % uint64(e.dimensions))
			// Sign bit keeps the expected value of each bucket near zero.
			if sum&(1<<63) != 0 {
				vec[bucket] -= 1
			} else {
				vec[bucket] += 1
			}
		}
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		inv := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= inv
		}
	}
	return vec
}

func tokenFeatures(tok string) []string {
	features := []string{tok}
	runes := []rune(tok)
	for i := 0; i+3 <= len(runes); i++ {
		features = append(features, "3g:"+string(runes[i:i+3]))
	}
	return features
}

func (e *LocalEmbedder) Dimensions() int {
	return e.dimensions
}

func (e *LocalEmbedder) Describe() string {
	return "local/feature-hash"
}
