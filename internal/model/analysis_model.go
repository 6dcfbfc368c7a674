package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Analysis struct {
	Id           uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Municipality string         `gorm:"type:varchar(120);not null;index"`
	Parcel       string         `gorm:"type:varchar(64);not null"`
	ZoneLabel    string         `gorm:"type:text"`
	Zone         datatypes.JSON `gorm:"type:jsonb"`
	Policy       string         `gorm:"type:varchar(32);not null"`
	Candidates   datatypes.JSON `gorm:"type:jsonb"`
	Schema       datatypes.JSON `gorm:"type:jsonb"`
	Summary      string         `gorm:"type:text"`
	Confidence   float64        `gorm:"default:0"`
	DurationMs   int64          `gorm:"default:0"`
	Success      bool           `gorm:"index"`
	ErrorMessage string         `gorm:"type:text"`
	CreatedAt    time.Time      `gorm:"autoCreateTime;index"`
}

func (Analysis) TableName() string {
	return "analyses"
}
