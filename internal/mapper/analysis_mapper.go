package mapper

import (
	"encoding/json"

	"parcel-constraints-be/internal/entity"
	"parcel-constraints-be/internal/model"
	"parcel-constraints-be/pkg/zoning"

	"gorm.io/datatypes"
)

type AnalysisMapper struct{}

func NewAnalysisMapper() *AnalysisMapper {
	return &AnalysisMapper{}
}

// ToEntity tolerates malformed JSON columns; the affected field is left empty.
func (m *AnalysisMapper) ToEntity(a *model.Analysis) *entity.Analysis {
	if a == nil {
		return nil
	}

	var zone *zoning.ZoneDescriptor
	if len(a.Zone) > 0 && string(a.Zone) != "null" {
		var z zoning.ZoneDescriptor
		if err := json.Unmarshal(a.Zone, &z); err == nil {
			zone = &z
		}
	}

	candidates := []zoning.ConstraintCandidate{}
	if len(a.Candidates) > 0 {
		_ = json.Unmarshal(a.Candidates, &candidates)
	}

	var schema *zoning.Schema
	if len(a.Schema) > 0 && string(a.Schema) != "null" {
		s := zoning.NewSchema()
		if err := json.Unmarshal(a.Schema, s); err == nil {
			schema = s
		}
	}

	return &entity.Analysis{
		Id:           a.Id,
		Municipality: a.Municipality,
		Parcel:       a.Parcel,
		Zone:         zone,
		Policy:       a.Policy,
		Candidates:   candidates,
		Schema:       schema,
		Summary:      a.Summary,
		Confidence:   a.Confidence,
		DurationMs:   a.DurationMs,
		Success:      a.Success,
		ErrorMessage: a.ErrorMessage,
		CreatedAt:    a.CreatedAt,
	}
}

func (m *AnalysisMapper) ToModel(a *entity.Analysis) *model.Analysis {
	if a == nil {
		return nil
	}

	candidates := a.Candidates
	if candidates == nil {
		candidates = []zoning.ConstraintCandidate{}
	}

	return &model.Analysis{
		Id:           a.Id,
		Municipality: a.Municipality,
		Parcel:       a.Parcel,
		ZoneLabel:    a.ZoneLabel(),
		Zone:         toJSON(a.Zone),
		Policy:       a.Policy,
		Candidates:   toJSON(candidates),
		Schema:       toJSON(a.Schema),
		Summary:      a.Summary,
		Confidence:   a.Confidence,
		DurationMs:   a.DurationMs,
		Success:      a.Success,
		ErrorMessage: a.ErrorMessage,
		CreatedAt:    a.CreatedAt,
	}
}

func (m *AnalysisMapper) ToEntities(analyses []*model.Analysis) []*entity.Analysis {
	entities := make([]*entity.Analysis, len(analyses))
	for i, a := range analyses {
		entities[i] = m.ToEntity(a)
	}
	return entities
}

func toJSON(v interface{}) datatypes.JSON {
	raw, err := json.Marshal(v)
	if err != nil {
		return datatypes.JSON("null")
	}
	return datatypes.JSON(raw)
}
