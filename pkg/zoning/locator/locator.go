// Package locator finds the building zone of a parcel inside its legal
// extract and lists the raw constraint texts attached to it.
package locator

import (
	"parcel-constraints-be/pkg/rdppf"
	"parcel-constraints-be/pkg/zoning"
	"parcel-constraints-be/pkg/zoning/vocabulary"
)

const locatorModule = "locator"

// Origin tells which part of the extract carried the zone label.
type Origin string

const (
	OriginNone        Origin = ""
	OriginRestriction Origin = "restriction"
	OriginTheme       Origin = "theme"
)

const (
	sourceTheme       = "ConcernedTheme"
	sourceRestriction = "RestrictionOnLandownership"
	sourceDescription = "RealEstate"
)

// Location is the outcome of Locate. Zone is nil when the parcel has no
// recognisable zone, which is a valid terminal state.
type Location struct {
	Zone       *zoning.ZoneDescriptor       `json:"zone"`
	Origin     Origin                       `json:"origin,omitempty"`
	Candidates []zoning.ConstraintCandidate `json:"candidates"`
}

type Locator struct {
	vocab  *vocabulary.Vocabulary
	logger zoning.Logger
}

func New(vocab *vocabulary.Vocabulary, logger zoning.Logger) *Locator {
	if vocab == nil {
		vocab = vocabulary.Default()
	}
	return &Locator{vocab: vocab, logger: zoning.OrNop(logger)}
}

func (l *Locator) Locate(ext *rdppf.Extract) Location {
	loc := Location{Candidates: l.Candidates(ext)}
	if ext == nil {
		return loc
	}

	label, origin := l.zoneLabel(ext)
	if label == "" {
		l.logger.Info(locatorModule, "No zone found in extract", map[string]interface{}{
			"parcel":     ext.Extract.RealEstate.Number,
			"candidates": len(loc.Candidates),
		})
		return loc
	}

	zone := l.vocab.ParseZone(label)
	loc.Zone = &zone
	loc.Origin = origin

	l.logger.Debug(locatorModule, "Zone located", map[string]interface{}{
		"parcel":      ext.Extract.RealEstate.Number,
		"label":       label,
		"zone_number": zone.ZoneNumber,
		"zone_type":   string(zone.ZoneType),
		"origin":      string(origin),
	})

	return loc
}

// zoneLabel prefers a zone legend of a restriction covering the whole
// parcel, then a zone-related theme.
func (l *Locator) zoneLabel(ext *rdppf.Extract) (string, Origin) {
	for _, r := range ext.Extract.RealEstate.RestrictionOnLandownership {
		if !r.CoversWholeParcel() {
			continue
		}
		for _, text := range rdppf.French(r.LegendText) {
			if l.vocab.IsZoneLabel(text) {
				return text, OriginRestriction
			}
		}
	}

	for _, theme := range ext.Extract.ConcernedTheme {
		for _, text := range rdppf.French(theme.Text) {
			if l.vocab.IsZoneTheme(text) {
				return text, OriginTheme
			}
		}
	}

	return "", OriginNone
}

// Candidates lists every French text of themes, restriction legends and
// parcel descriptions in extract order.
func (l *Locator) Candidates(ext *rdppf.Extract) []zoning.ConstraintCandidate {
	candidates := []zoning.ConstraintCandidate{}
	if ext == nil {
		return candidates
	}

	add := func(kind zoning.CandidateKind, tag string, texts []rdppf.LocalisedText) {
		for _, text := range rdppf.French(texts) {
			candidates = append(candidates, zoning.ConstraintCandidate{
				Kind:      kind,
				Category:  l.vocab.Categorize(text),
				Text:      text,
				SourceTag: tag,
			})
		}
	}

	for _, theme := range ext.Extract.ConcernedTheme {
		add(zoning.CandidateTheme, sourceTheme, theme.Text)
	}
	for _, r := range ext.Extract.RealEstate.RestrictionOnLandownership {
		add(zoning.CandidateRestriction, sourceRestriction, r.LegendText)
	}
	add(zoning.CandidateDescription, sourceDescription, ext.Extract.RealEstate.Description)

	return candidates
}
