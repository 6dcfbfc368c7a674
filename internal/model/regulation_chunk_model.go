package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

type RegulationChunk struct {
	Id             uuid.UUID                   `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Municipality   string                      `gorm:"type:varchar(120);not null;index"`
	Article        string                      `gorm:"type:varchar(32)"`
	Zone           string                      `gorm:"type:varchar(32);index"`
	Concepts       datatypes.JSONSlice[string] `gorm:"type:jsonb"`
	Document       string                      `gorm:"type:text;not null"`
	EmbeddingValue pgvector.Vector             `gorm:"type:vector(768)"`
	ChunkIndex     int                         `gorm:"default:0"`
	CreatedAt      time.Time                   `gorm:"autoCreateTime"`
	UpdatedAt      time.Time                   `gorm:"autoUpdateTime"`
}

func (RegulationChunk) TableName() string {
	return "regulation_chunks"
}
