package events

import (
	"context"
	"time"
)

const (
	TypeAnalysisCompleted  = "analysis.completed"
	TypeRegulationIngested = "regulation.ingested"
)

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the dotted code of the event, e.g. "analysis.completed".
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// Publisher delivers events to the bus.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// AnalysisCompleted is emitted after every parcel analysis, failed ones
// included.
func AnalysisCompleted(analysisId, municipality, parcel, zone, policy string, resolved int, success bool) BaseEvent {
	return BaseEvent{
		Type: TypeAnalysisCompleted,
		Data: map[string]interface{}{
			"analysis_id":  analysisId,
			"municipality": municipality,
			"parcel":       parcel,
			"zone":         zone,
			"policy":       policy,
			"resolved":     resolved,
			"success":      success,
		},
		OccurredAt: time.Now(),
	}
}

// RegulationIngested is emitted once a regulation text has replaced the
// stored chunks of its municipality.
func RegulationIngested(municipality string, chunks int, durationMs int64) BaseEvent {
	return BaseEvent{
		Type: TypeRegulationIngested,
		Data: map[string]interface{}{
			"municipality": municipality,
			"chunks":       chunks,
			"duration_ms":  durationMs,
		},
		OccurredAt: time.Now(),
	}
}
