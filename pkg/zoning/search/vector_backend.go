package search

import (
	"context"
	"fmt"
	"strings"

	"parcel-constraints-be/pkg/embedding"
	"parcel-constraints-be/pkg/zoning"
)

const vectorModule = "VectorBackend"

// PassageStore returns the chunk texts nearest to an embedding. An empty
// municipality searches every municipality.
type PassageStore interface {
	SearchSimilarTexts(ctx context.Context, embedding []float32, municipality string, limit int) ([]string, error)
}

// VectorBackend embeds the query and runs a cosine search over the
// ingested regulation chunks.
type VectorBackend struct {
	embedder embedding.EmbeddingProvider
	store    PassageStore
	// UnfilteredFallback retries once across all municipalities when the
	// filtered search returns nothing.
	UnfilteredFallback bool
	logger             zoning.Logger
}

func NewVectorBackend(embedder embedding.EmbeddingProvider, store PassageStore, logger zoning.Logger) *VectorBackend {
	return &VectorBackend{
		embedder: embedder,
		store:    store,
		logger:   zoning.OrNop(logger),
	}
}

func (b *VectorBackend) Search(ctx context.Context, municipality, query string, limit int) ([]string, error) {
	res, err := b.embedder.Generate(ctx, query, embedding.TaskRetrievalQuery)
	if err != nil {
		return nil, fmt.Errorf("embedding generation failed: %w", err)
	}

	municipality = strings.ToLower(strings.TrimSpace(municipality))
	passages, err := b.store.SearchSimilarTexts(ctx, res.Embedding.Values, municipality, limit)
	if err != nil {
		return nil, err
	}

	if len(passages) == 0 && b.UnfilteredFallback && municipality != "" {
		b.logger.Debug(vectorModule, "No passage for municipality, retrying unfiltered", map[string]interface{}{
			"municipality": municipality,
			"query":        query,
		})
		return b.store.SearchSimilarTexts(ctx, res.Embedding.Values, "", limit)
	}

	return passages, nil
}
