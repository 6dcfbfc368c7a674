package extract

import (
	"context"
	"slices"
	"strings"
	"unicode/utf8"

	"parcel-constraints-be/pkg/zoning"
	"parcel-constraints-be/pkg/zoning/vocabulary"
)

const (
	synthModule = "Synthesizer"

	confidenceZoneLabel   = 0.9
	confidenceFallback    = 0.7
	confidenceTextRule    = 0.5
	confidenceExcerpt     = 0.3
	excerptMaxLength      = 200
	excerptKeep           = 100
	remarkCount           = 3
	remarkMaxLength       = 150
	maxGeneralPassages    = 5
	minGeneralPassageSize = 50
)

// PassageSource yields regulation passages for a retrieval hint. An
// orchestrator-backed source runs a retrieval per hint; StaticPassages
// returns a fixed list whatever the hint.
type PassageSource interface {
	Passages(ctx context.Context, hint string) []string
}

type StaticPassages []string

func (s StaticPassages) Passages(context.Context, string) []string {
	return s
}

type Synthesizer struct {
	vocab   *vocabulary.Vocabulary
	scanner *Scanner
	logger  zoning.Logger
}

func NewSynthesizer(vocab *vocabulary.Vocabulary, logger zoning.Logger) *Synthesizer {
	if vocab == nil {
		vocab = vocabulary.Default()
	}
	return &Synthesizer{
		vocab:   vocab,
		scanner: NewScanner(vocab),
		logger:  zoning.OrNop(logger),
	}
}

// Synthesize fills the constraint schema for a zone under the given policy.
// It never fails on missing evidence: unresolved slots stay "-".
func (s *Synthesizer) Synthesize(
	ctx context.Context,
	zone zoning.ZoneDescriptor,
	candidates []zoning.ConstraintCandidate,
	source PassageSource,
	policy zoning.Policy,
) (*zoning.Schema, error) {
	if source == nil {
		source = StaticPassages(nil)
	}

	switch policy {
	case zoning.PolicyZoneFirst:
		return s.zoneFirst(ctx, zone, source), nil
	case zoning.PolicyRegulationFirst:
		return s.regulationFirst(ctx, zone, candidates, source), nil
	}
	return nil, zoning.ErrInvalidPolicy
}

// zoneFirst trusts the zone label, then fills the remaining slots one by
// one from constraint-specific passages.
func (s *Synthesizer) zoneFirst(ctx context.Context, zone zoning.ZoneDescriptor, source PassageSource) *zoning.Schema {
	schema := zoning.NewSchema()

	indice, hauteur := FromZoneLabel(zone.RawLabel)
	if indice != zoning.Unresolved {
		schema.Set(zoning.SlotIndiceUtilisation, zoning.Slot{Value: indice, Source: zoning.SourceZoneLabel, Confidence: confidenceZoneLabel})
	}
	if hauteur != zoning.Unresolved {
		schema.Set(zoning.SlotHauteurMaximale, zoning.Slot{Value: hauteur, Source: zoning.SourceZoneLabel, Confidence: confidenceZoneLabel})
	}

	for _, name := range zoning.ConstraintSlots {
		if schema.Get(name).Resolved() {
			continue
		}

		passages := source.Passages(ctx, s.vocab.Hint(name))
		if len(passages) == 0 {
			continue
		}

		if slot := s.ResolveSlot(zone, name.ConstraintOf(), passages); slot.Resolved() {
			schema.Set(name, slot)
			s.logger.Debug(synthModule, "Slot resolved from regulation", map[string]interface{}{
				"slot":  string(name),
				"value": slot.Value,
			})
		}

		appendGeneral(schema, passages[:1])
	}

	appendGeneral(schema, source.Passages(ctx, s.vocab.GeneralHint))
	setRemarks(schema)

	return schema
}

// regulationFirst reads every slot from one broad retrieval and only falls
// back on the zone label and candidates when that yields nothing.
func (s *Synthesizer) regulationFirst(
	ctx context.Context,
	zone zoning.ZoneDescriptor,
	candidates []zoning.ConstraintCandidate,
	source PassageSource,
) *zoning.Schema {
	schema := zoning.NewSchema()
	passages := source.Passages(ctx, s.vocab.BroadHint)

	for _, f := range s.scanner.Scan(passages, zoneMarkers(zone)...) {
		name, ok := zoning.SlotFor(f.Constraint)
		if !ok {
			continue
		}
		schema.Set(name, zoning.Slot{
			Value:      f.Value,
			Source:     zoning.SourceRegulationText,
			Confidence: f.Confidence,
			Evidence:   f.Evidence(),
		})
	}

	if len(passages) > 0 {
		text := joinLower(passages)
		for _, name := range zoning.ConstraintSlots {
			if schema.Get(name).Resolved() {
				continue
			}
			if phrase, ok := s.textRule(name.ConstraintOf(), text); ok {
				schema.Set(name, zoning.Slot{Value: phrase, Source: zoning.SourceRegulationText, Confidence: confidenceTextRule})
			}
		}
	}

	if schema.ResolvedCount() == 0 {
		s.fallback(schema, zone, candidates)
	}

	appendGeneral(schema, passages)
	setRemarks(schema)

	return schema
}

func (s *Synthesizer) fallback(schema *zoning.Schema, zone zoning.ZoneDescriptor, candidates []zoning.ConstraintCandidate) {
	indice, hauteur := FromZoneLabel(zone.RawLabel)
	if indice != zoning.Unresolved {
		schema.Set(zoning.SlotIndiceUtilisation, zoning.Slot{Value: indice, Source: zoning.SourceZoneLabel, Confidence: confidenceFallback})
	}
	if hauteur != zoning.Unresolved {
		schema.Set(zoning.SlotHauteurMaximale, zoning.Slot{Value: hauteur, Source: zoning.SourceZoneLabel, Confidence: confidenceFallback})
	}

	for _, c := range candidates {
		ct, ok := zoning.ConstraintForCategory(c.Category)
		if !ok {
			continue
		}
		name, _ := zoning.SlotFor(ct)
		if schema.Get(name).Resolved() {
			continue
		}
		if value := ExtractNumeric([]string{c.Text}, ct); value != zoning.Unresolved {
			schema.Set(name, zoning.Slot{Value: value, Source: zoning.SourceLegalExtract, Confidence: confidenceFallback})
		}
	}
}

// ResolveSlot extracts one constraint from passages: a numeric rule first,
// then a textual rule, then a short excerpt mentioning the constraint or
// the zone.
func (s *Synthesizer) ResolveSlot(zone zoning.ZoneDescriptor, ct zoning.ConstraintType, passages []string) zoning.Slot {
	if len(passages) == 0 {
		return zoning.UnresolvedSlot()
	}
	text := joinLower(passages)

	if rule, ok := NumericRuleFor(ct); ok {
		if m, found := rule.Best(text); found {
			window := contextWindow(text, m.Start, m.End, confidenceWindow)
			return zoning.Slot{
				Value:      m.Value,
				Source:     zoning.SourceRegulationText,
				Confidence: s.scanner.Confidence(window, zoneMarkers(zone)...),
			}
		}
	}

	if phrase, ok := s.textRule(ct, text); ok {
		return zoning.Slot{Value: phrase, Source: zoning.SourceRegulationText, Confidence: confidenceTextRule}
	}

	if excerpt, ok := s.excerpt(zone, ct, passages); ok {
		return zoning.Slot{Value: excerpt, Source: zoning.SourceRegulationText, Confidence: confidenceExcerpt}
	}

	return zoning.UnresolvedSlot()
}

func (s *Synthesizer) textRule(ct zoning.ConstraintType, lower string) (string, bool) {
	for _, rule := range s.vocab.TextRulesFor(ct) {
		if rule.Matches(lower) {
			return rule.Phrase, true
		}
	}
	return "", false
}

func (s *Synthesizer) excerpt(zone zoning.ZoneDescriptor, ct zoning.ConstraintType, passages []string) (string, bool) {
	markers := []string{s.vocab.TypeMention(ct), strings.TrimSpace(zone.RawLabel)}
	for _, p := range passages {
		if utf8.RuneCountInString(p) >= excerptMaxLength {
			continue
		}
		if vocabulary.ContainsAny(strings.ToLower(p), markers) {
			return truncate(strings.TrimSpace(p), excerptKeep) + "...", true
		}
	}
	return "", false
}

func appendGeneral(schema *zoning.Schema, passages []string) {
	for _, p := range passages {
		if len(schema.PassagesGeneraux) >= maxGeneralPassages {
			return
		}
		if utf8.RuneCountInString(p) <= minGeneralPassageSize || slices.Contains(schema.PassagesGeneraux, p) {
			continue
		}
		schema.PassagesGeneraux = append(schema.PassagesGeneraux, p)
	}
}

func setRemarks(schema *zoning.Schema) {
	if len(schema.PassagesGeneraux) == 0 {
		return
	}

	var remarks []string
	for i, p := range schema.PassagesGeneraux {
		if i >= remarkCount {
			break
		}
		clean := strings.TrimSpace(p)
		if utf8.RuneCountInString(clean) > remarkMaxLength {
			clean = truncate(clean, remarkMaxLength-3) + "..."
		}
		remarks = append(remarks, clean)
	}

	schema.Set(zoning.SlotRemarques, zoning.Slot{
		Value:      strings.Join(remarks, " | "),
		Source:     zoning.SourceRegulationText,
		Confidence: confidenceExcerpt,
	})
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// zoneMarkers are the strings whose presence near a value ties it to the
// zone. A bare zone number is too common in prose to count on its own.
func zoneMarkers(zone zoning.ZoneDescriptor) []string {
	markers := []string{zone.RawLabel}
	if zone.ZoneNumber != "" {
		markers = append(markers, "zone "+zone.ZoneNumber)
	}
	return markers
}
