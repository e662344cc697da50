package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// LocalEngine produces deterministic embeddings without any network service
// by hashing word tokens into a fixed number of buckets and L2-normalizing
// the counts. Similar texts land near each other, which is enough for
// offline runs and tests; it is not a substitute for a real model.
type LocalEngine struct {
	dimensions int
}

// NewLocalEngine creates a deterministic local embedder.
func NewLocalEngine(dimensions int) *LocalEngine {
	if dimensions <= 0 {
		dimensions = 256
	}
	return &LocalEngine{dimensions: dimensions}
}

// Embed generates an embedding for a single text.
func (e *LocalEngine) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, e.dimensions)
	for _, tok := range tokenize(text) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(tok))
		vec[int(h.Sum32())%e.dimensions]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= scale
		}
	}
	return vec, nil
}

// EmbedBatch generates embeddings for multiple texts.
func (e *LocalEngine) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		embeddings[i] = vec
	}
	return embeddings, nil
}

// Dimensions returns the dimensionality of embeddings.
func (e *LocalEngine) Dimensions() int {
	return e.dimensions
}

// Name returns the engine name.
func (e *LocalEngine) Name() string {
	return "local"
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
