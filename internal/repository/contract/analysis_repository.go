package contract

import (
	"context"

	"parcel-constraints-be/internal/entity"
	"parcel-constraints-be/internal/repository/specification"

	"github.com/google/uuid"
)

type AnalysisRepository interface {
	Create(ctx context.Context, analysis *entity.Analysis) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Analysis, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Analysis, error)
	FindRecent(ctx context.Context, limit int, specs ...specification.Specification) ([]*entity.Analysis, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
