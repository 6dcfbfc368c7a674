// Package engine is the entry point of constraint extraction: it locates
// the zone in a legal extract, retrieves regulation passages and fills the
// constraint schema under a policy.
package engine

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"parcel-constraints-be/pkg/rdppf"
	"parcel-constraints-be/pkg/zoning"
	"parcel-constraints-be/pkg/zoning/extract"
	"parcel-constraints-be/pkg/zoning/locator"
	"parcel-constraints-be/pkg/zoning/report"
	"parcel-constraints-be/pkg/zoning/search"
	"parcel-constraints-be/pkg/zoning/vocabulary"
)

const engineModule = "engine"

type Config struct {
	// SlotLimit bounds the passages retrieved for one constraint slot.
	SlotLimit int
	// GeneralLimit bounds the general retrieval feeding remarks.
	GeneralLimit int
	// BroadLimit bounds the single retrieval of the regulation-first policy.
	BroadLimit int
}

func DefaultConfig() Config {
	return Config{SlotLimit: 3, GeneralLimit: 3, BroadLimit: 5}
}

// Result is one extraction outcome. Zone is nil when the parcel has no
// recognisable zone.
type Result struct {
	Zone       *zoning.ZoneDescriptor `json:"zone"`
	Policy     zoning.Policy          `json:"policy"`
	Schema     *zoning.Schema         `json:"schema"`
	Summary    string                 `json:"summary"`
	Confidence float64                `json:"confidence"`
}

type Engine struct {
	locator      *locator.Locator
	orchestrator *search.Orchestrator
	synthesizer  *extract.Synthesizer
	vocab        *vocabulary.Vocabulary
	config       Config
	logger       zoning.Logger
}

func New(orchestrator *search.Orchestrator, vocab *vocabulary.Vocabulary, config Config, logger zoning.Logger) *Engine {
	if vocab == nil {
		vocab = vocabulary.Default()
	}
	logger = zoning.OrNop(logger)
	return &Engine{
		locator:      locator.New(vocab, logger),
		orchestrator: orchestrator,
		synthesizer:  extract.NewSynthesizer(vocab, logger),
		vocab:        vocab,
		config:       config,
		logger:       logger,
	}
}

func (e *Engine) LocateZone(ext *rdppf.Extract) locator.Location {
	return e.locator.Locate(ext)
}

// ParseZone parses a raw zone label with the engine's vocabulary.
func (e *Engine) ParseZone(raw string) zoning.ZoneDescriptor {
	return e.vocab.ParseZone(raw)
}

func (e *Engine) Retrieve(ctx context.Context, municipality string, zone zoning.ZoneDescriptor, hint string, limit int) ([]string, error) {
	return e.orchestrator.Retrieve(ctx, municipality, zone, hint, limit)
}

// ExtractConstraints fills the schema for a zone of a municipality. Only an
// invalid policy or an empty municipality is an error; missing evidence
// yields "-" slots and an explanatory summary.
func (e *Engine) ExtractConstraints(
	ctx context.Context,
	municipality string,
	zone *zoning.ZoneDescriptor,
	candidates []zoning.ConstraintCandidate,
	policy zoning.Policy,
) (*Result, error) {
	if !policy.Valid() {
		return nil, zoning.ErrInvalidPolicy
	}
	if strings.TrimSpace(municipality) == "" {
		return nil, zoning.ErrEmptyMunicipality
	}

	ctx, span := otel.Tracer("zoning/engine").Start(ctx, "zoning.extract_constraints")
	defer span.End()
	span.SetAttributes(
		attribute.String("zoning.municipality", municipality),
		attribute.String("zoning.policy", string(policy)),
	)

	start := time.Now()
	result := &Result{Zone: zone, Policy: policy}

	if zone == nil {
		result.Schema = zoning.NewSchema()
		result.Summary = report.Summary(result.Schema, "")
		e.logger.Info(engineModule, "No zone to extract constraints for", map[string]interface{}{
			"municipality": municipality,
			"policy":       string(policy),
		})
		return result, nil
	}
	span.SetAttributes(attribute.String("zoning.zone", zone.RawLabel))

	source := &retrievalSource{engine: e, municipality: municipality, zone: *zone}
	schema, err := e.synthesizer.Synthesize(ctx, *zone, candidates, source, policy)
	if err != nil {
		return nil, err
	}

	result.Schema = schema
	result.Summary = report.Summary(schema, zone.RawLabel)
	result.Confidence = report.MeanConfidence(schema)
	span.SetAttributes(attribute.Int("zoning.resolved", schema.ResolvedCount()))

	e.logger.Info(engineModule, "Constraints extracted", map[string]interface{}{
		"municipality": municipality,
		"zone":         zone.RawLabel,
		"policy":       string(policy),
		"resolved":     schema.ResolvedCount(),
		"retrievals":   source.calls,
		"duration_ms":  time.Since(start).Milliseconds(),
	})

	return result, nil
}

func (e *Engine) ClearCache(ctx context.Context) {
	e.orchestrator.Cache().Clear(ctx)
	e.logger.Info(engineModule, "Retrieval cache cleared", nil)
}

func (e *Engine) CacheStats() search.CacheStats {
	return e.orchestrator.Cache().Stats()
}

// retrievalSource runs one orchestrator retrieval per hint. Retrieval
// errors are logged and read as "no passages".
type retrievalSource struct {
	engine       *Engine
	municipality string
	zone         zoning.ZoneDescriptor
	calls        int
}

func (s *retrievalSource) Passages(ctx context.Context, hint string) []string {
	limit := s.engine.config.SlotLimit
	switch hint {
	case s.engine.vocab.GeneralHint:
		limit = s.engine.config.GeneralLimit
	case s.engine.vocab.BroadHint:
		limit = s.engine.config.BroadLimit
	}

	s.calls++
	passages, err := s.engine.orchestrator.Retrieve(ctx, s.municipality, s.zone, hint, limit)
	if err != nil {
		s.engine.logger.Warn(engineModule, "Retrieval failed", map[string]interface{}{
			"municipality": s.municipality,
			"hint":         hint,
			"error":        err.Error(),
		})
		return nil
	}
	return passages
}
