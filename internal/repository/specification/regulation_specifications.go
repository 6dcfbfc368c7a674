package specification

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// ByMunicipality matches the lowercased municipality name stored on chunks
// and analyses.
type ByMunicipality struct {
	Municipality string
}

func (s ByMunicipality) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("municipality = ?", strings.ToLower(strings.TrimSpace(s.Municipality)))
}

// ByZone filters regulation chunks tagged with a zone number.
type ByZone struct {
	Zone string
}

func (s ByZone) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("zone = ?", s.Zone)
}

// CreatedSince keeps records created at or after Since.
type CreatedSince struct {
	Since time.Time
}

func (s CreatedSince) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("created_at >= ?", s.Since)
}

// SuccessfulOnly keeps analyses that completed without error.
type SuccessfulOnly struct{}

func (s SuccessfulOnly) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("success = ?", true)
}
