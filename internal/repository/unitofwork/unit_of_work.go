package unitofwork

import (
	"context"

	"parcel-constraints-be/internal/repository/contract"
)

type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	RegulationChunkRepository() contract.RegulationChunkRepository
	AnalysisRepository() contract.AnalysisRepository
}
