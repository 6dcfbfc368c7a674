package mapper

import (
	"time"

	"parcel-constraints-be/internal/entity"
	"parcel-constraints-be/internal/model"

	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

type RegulationChunkMapper struct{}

func NewRegulationChunkMapper() *RegulationChunkMapper {
	return &RegulationChunkMapper{}
}

func (m *RegulationChunkMapper) ToEntity(c *model.RegulationChunk) *entity.RegulationChunk {
	if c == nil {
		return nil
	}

	var updatedAt *time.Time
	if !c.UpdatedAt.IsZero() {
		t := c.UpdatedAt
		updatedAt = &t
	}

	concepts := []string(c.Concepts)
	if concepts == nil {
		concepts = []string{}
	}

	return &entity.RegulationChunk{
		Id:             c.Id,
		Municipality:   c.Municipality,
		Article:        c.Article,
		Zone:           c.Zone,
		Concepts:       concepts,
		Document:       c.Document,
		EmbeddingValue: c.EmbeddingValue.Slice(),
		ChunkIndex:     c.ChunkIndex,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      updatedAt,
	}
}

func (m *RegulationChunkMapper) ToModel(c *entity.RegulationChunk) *model.RegulationChunk {
	if c == nil {
		return nil
	}

	var updatedAt time.Time
	if c.UpdatedAt != nil {
		updatedAt = *c.UpdatedAt
	}

	concepts := c.Concepts
	if concepts == nil {
		concepts = []string{}
	}

	return &model.RegulationChunk{
		Id:             c.Id,
		Municipality:   c.Municipality,
		Article:        c.Article,
		Zone:           c.Zone,
		Concepts:       datatypes.JSONSlice[string](concepts),
		Document:       c.Document,
		EmbeddingValue: pgvector.NewVector(c.EmbeddingValue),
		ChunkIndex:     c.ChunkIndex,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      updatedAt,
	}
}

func (m *RegulationChunkMapper) ToEntities(chunks []*model.RegulationChunk) []*entity.RegulationChunk {
	entities := make([]*entity.RegulationChunk, len(chunks))
	for i, c := range chunks {
		entities[i] = m.ToEntity(c)
	}
	return entities
}

func (m *RegulationChunkMapper) ToModels(chunks []*entity.RegulationChunk) []*model.RegulationChunk {
	models := make([]*model.RegulationChunk, len(chunks))
	for i, c := range chunks {
		models[i] = m.ToModel(c)
	}
	return models
}
