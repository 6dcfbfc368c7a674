package contract

import (
	"context"

	"parcel-constraints-be/internal/entity"
	"parcel-constraints-be/internal/repository/specification"
)

type RegulationChunkRepository interface {
	CreateBulk(ctx context.Context, chunks []*entity.RegulationChunk) error
	DeleteByMunicipality(ctx context.Context, municipality string) (int64, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.RegulationChunk, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
	// SearchSimilarTexts returns the documents nearest to embedding by cosine
	// distance. An empty municipality searches every municipality.
	SearchSimilarTexts(ctx context.Context, embedding []float32, municipality string, limit int) ([]string, error)
	ListMunicipalities(ctx context.Context) ([]string, error)
}
