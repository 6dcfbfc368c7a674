package implementation

import (
	"context"
	"strings"

	"parcel-constraints-be/internal/entity"
	"parcel-constraints-be/internal/mapper"
	"parcel-constraints-be/internal/model"
	"parcel-constraints-be/internal/repository/contract"
	"parcel-constraints-be/internal/repository/specification"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

const chunkInsertBatchSize = 100

type RegulationChunkRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.RegulationChunkMapper
}

func NewRegulationChunkRepository(db *gorm.DB) contract.RegulationChunkRepository {
	return &RegulationChunkRepositoryImpl{
		db:     db,
		mapper: mapper.NewRegulationChunkMapper(),
	}
}

func (r *RegulationChunkRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *RegulationChunkRepositoryImpl) CreateBulk(ctx context.Context, chunks []*entity.RegulationChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	models := r.mapper.ToModels(chunks)
	if err := r.db.WithContext(ctx).CreateInBatches(models, chunkInsertBatchSize).Error; err != nil {
		return err
	}

	// Update IDs back to entities
	for i, m := range models {
		*chunks[i] = *r.mapper.ToEntity(m)
	}
	return nil
}

func (r *RegulationChunkRepositoryImpl) DeleteByMunicipality(ctx context.Context, municipality string) (int64, error) {
	query := specification.ByMunicipality{Municipality: municipality}.Apply(r.db.WithContext(ctx))
	res := query.Delete(&model.RegulationChunk{})
	return res.RowsAffected, res.Error
}

func (r *RegulationChunkRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.RegulationChunk, error) {
	var models []*model.RegulationChunk
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(models), nil
}

func (r *RegulationChunkRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	err := query.Model(&model.RegulationChunk{}).Count(&count).Error
	return count, err
}

func (r *RegulationChunkRepositoryImpl) SearchSimilarTexts(ctx context.Context, embedding []float32, municipality string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 5
	}

	// Cosine distance: embedding_value <=> vector
	query := r.db.WithContext(ctx).Model(&model.RegulationChunk{})
	if strings.TrimSpace(municipality) != "" {
		query = specification.ByMunicipality{Municipality: municipality}.Apply(query)
	}

	var documents []string
	err := query.
		Order(gorm.Expr("embedding_value <=> ?", pgvector.NewVector(embedding))).
		Limit(limit).
		Pluck("document", &documents).Error
	if err != nil {
		return nil, err
	}
	return documents, nil
}

func (r *RegulationChunkRepositoryImpl) ListMunicipalities(ctx context.Context) ([]string, error) {
	var names []string
	err := r.db.WithContext(ctx).
		Model(&model.RegulationChunk{}).
		Distinct("municipality").
		Order("municipality ASC").
		Pluck("municipality", &names).Error
	return names, err
}
