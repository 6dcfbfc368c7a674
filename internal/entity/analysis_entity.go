package entity

import (
	"time"

	"github.com/google/uuid"

	"parcel-constraints-be/pkg/zoning"
)

// Analysis records one constraint analysis run, successful or not.
type Analysis struct {
	Id           uuid.UUID
	Municipality string
	Parcel       string
	Zone         *zoning.ZoneDescriptor
	Policy       string
	Candidates   []zoning.ConstraintCandidate
	Schema       *zoning.Schema
	Summary      string
	Confidence   float64
	DurationMs   int64
	Success      bool
	ErrorMessage string
	CreatedAt    time.Time
}

func (a *Analysis) ZoneLabel() string {
	if a.Zone == nil {
		return ""
	}
	return a.Zone.RawLabel
}
