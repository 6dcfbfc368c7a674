package entity

import (
	"time"

	"github.com/google/uuid"
)

// RegulationChunk is one embedded piece of a municipal regulation.
type RegulationChunk struct {
	Id             uuid.UUID
	Municipality   string
	Article        string
	Zone           string
	Concepts       []string
	Document       string
	EmbeddingValue []float32
	ChunkIndex     int
	CreatedAt      time.Time
	UpdatedAt      *time.Time
}
