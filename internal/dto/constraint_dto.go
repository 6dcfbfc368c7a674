package dto

import (
	"time"

	"parcel-constraints-be/pkg/rdppf"
	"parcel-constraints-be/pkg/zoning"

	"github.com/google/uuid"
)

type AnalyzeRequest struct {
	Municipality string `json:"municipality" validate:"required,max=120"`
	Parcel       string `json:"parcel" validate:"required,max=64"`
	Policy       string `json:"policy" validate:"omitempty,max=32"`
	// Extract skips the upstream fetch when the caller already holds it.
	Extract *rdppf.Extract `json:"extract,omitempty"`
}

type AnalyzeResponse struct {
	Id         uuid.UUID                       `json:"id"`
	Zone       *zoning.ZoneDescriptor          `json:"zone"`
	ZoneOrigin string                          `json:"zone_origin,omitempty"`
	Policy     string                          `json:"policy"`
	Candidates []zoning.ConstraintCandidate    `json:"candidates"`
	Schema     map[string]interface{}          `json:"schema"`
	Slots      map[zoning.SlotName]zoning.Slot `json:"slots"`
	Summary    string                          `json:"summary"`
	Confidence float64                         `json:"confidence"`
	Report     string                          `json:"report"`
	DurationMs int64                           `json:"duration_ms"`
}

type LocateRequest struct {
	Extract *rdppf.Extract `json:"extract" validate:"required"`
}

type LocateResponse struct {
	Zone       *zoning.ZoneDescriptor       `json:"zone"`
	ZoneOrigin string                       `json:"zone_origin,omitempty"`
	Candidates []zoning.ConstraintCandidate `json:"candidates"`
}

type RetrieveRequest struct {
	Municipality string `json:"municipality" validate:"required,max=120"`
	ZoneLabel    string `json:"zone_label" validate:"required"`
	Hint         string `json:"hint"`
	Limit        int    `json:"limit" validate:"omitempty,min=1,max=20"`
}

type RetrieveResponse struct {
	Zone     zoning.ZoneDescriptor `json:"zone"`
	Passages []string              `json:"passages"`
}

type RecentAnalysesRequest struct {
	Limit        int    `query:"limit" validate:"omitempty,min=1,max=50"`
	Municipality string `query:"municipality" validate:"omitempty,max=120"`
	SuccessOnly  bool   `query:"success_only"`
	SinceHours   int    `query:"since_hours" validate:"omitempty,min=1,max=720"`
}

type AnalysisSummaryResponse struct {
	Id           uuid.UUID `json:"id"`
	Municipality string    `json:"municipality"`
	Parcel       string    `json:"parcel"`
	Zone         string    `json:"zone"`
	Policy       string    `json:"policy"`
	Resolved     int       `json:"resolved"`
	Summary      string    `json:"summary"`
	Confidence   float64   `json:"confidence"`
	DurationMs   int64     `json:"duration_ms"`
	Success      bool      `json:"success"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// AnalysisDetailResponse is a stored analysis with its full schema.
type AnalysisDetailResponse struct {
	AnalysisSummaryResponse
	ZoneDescriptor *zoning.ZoneDescriptor           `json:"zone_descriptor"`
	Candidates     []zoning.ConstraintCandidate    `json:"candidates"`
	Slots          map[zoning.SlotName]zoning.Slot `json:"slots"`
	Passages       []string                        `json:"passages_generaux"`
}
