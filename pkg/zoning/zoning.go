// Package zoning holds the value types shared by the constraint extraction
// pipeline: zone descriptors, constraint candidates, policies and the
// constraint schema returned to callers.
package zoning

import (
	"errors"
	"regexp"
	"strings"
)

var (
	ErrInvalidPolicy     = errors.New("invalid extraction policy")
	ErrInvalidLimit      = errors.New("invalid retrieval limit")
	ErrEmptyMunicipality = errors.New("municipality is required")
)

type ZoneType string

const (
	ZoneTypeVilla     ZoneType = "villa"
	ZoneTypeVillage   ZoneType = "village"
	ZoneTypeCentre    ZoneType = "centre"
	ZoneTypeArtisanal ZoneType = "artisanal"
	ZoneTypeUnknown   ZoneType = "unknown"
)

// ZoneTypeKeyword maps a keyword found in a zone label to a zone type.
// Keywords are tested in order, the first contained keyword wins.
type ZoneTypeKeyword struct {
	Keyword string
	Type    ZoneType
}

var zonePrefixRegex = regexp.MustCompile(`(?i)ZONE\s+`)

// ZoneDescriptor is the parsed form of a zone label such as
// "ZONE 18/3 Zone des villas familiales 0.30 (3)".
type ZoneDescriptor struct {
	RawLabel   string   `json:"raw_label"`
	ZoneNumber string   `json:"zone_number"`
	ParentZone string   `json:"parent_zone"`
	ZoneType   ZoneType `json:"zone_type"`
}

// ParseZoneWith parses a zone label, typing it with the first keyword the
// lowercased label contains. The keyword table lives in the vocabulary.
func ParseZoneWith(raw string, keywords []ZoneTypeKeyword) ZoneDescriptor {
	zone := ZoneDescriptor{
		RawLabel: raw,
		ZoneType: ZoneTypeUnknown,
	}

	cleaned := strings.TrimSpace(zonePrefixRegex.ReplaceAllString(raw, ""))
	if fields := strings.Fields(cleaned); len(fields) > 0 {
		zone.ZoneNumber = fields[0]
		zone.ParentZone = strings.SplitN(zone.ZoneNumber, "/", 2)[0]
	}

	lower := strings.ToLower(raw)
	for _, kw := range keywords {
		if strings.Contains(lower, kw.Keyword) {
			zone.ZoneType = kw.Type
			break
		}
	}

	return zone
}

// HasParent reports whether the zone number is a sub-zone ("18/3" of "18").
func (z ZoneDescriptor) HasParent() bool {
	return z.ParentZone != "" && z.ParentZone != z.ZoneNumber
}

type CandidateKind string

const (
	CandidateTheme       CandidateKind = "theme"
	CandidateRestriction CandidateKind = "restriction"
	CandidateDescription CandidateKind = "description"
)

type Category string

const (
	CategoryIndice   Category = "indice"
	CategoryHauteur  Category = "hauteur"
	CategoryDistance Category = "distance"
	CategorySurface  Category = "surface"
	CategoryZone     Category = "zone"
	CategoryGeneral  Category = "général"
)

// ConstraintCandidate is a raw textual constraint found in the legal extract.
type ConstraintCandidate struct {
	Kind      CandidateKind `json:"kind"`
	Category  Category      `json:"category"`
	Text      string        `json:"text"`
	SourceTag string        `json:"source_tag"`
}

type ConstraintType string

const (
	ConstraintIndice        ConstraintType = "indice"
	ConstraintHauteur       ConstraintType = "hauteur"
	ConstraintDistance      ConstraintType = "distance"
	ConstraintSurface       ConstraintType = "surface"
	ConstraintStationnement ConstraintType = "stationnement"
	ConstraintToiture       ConstraintType = "toiture"
	ConstraintGeneral       ConstraintType = "général"
)

// ConstraintForCategory maps a candidate category onto the numeric
// constraint it may carry. ok is false for zone and general categories.
func ConstraintForCategory(c Category) (ConstraintType, bool) {
	switch c {
	case CategoryIndice:
		return ConstraintIndice, true
	case CategoryHauteur:
		return ConstraintHauteur, true
	case CategoryDistance:
		return ConstraintDistance, true
	case CategorySurface:
		return ConstraintSurface, true
	}
	return "", false
}

type Policy string

const (
	PolicyZoneFirst       Policy = "zone-first"
	PolicyRegulationFirst Policy = "regulation-first"
)

func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case PolicyZoneFirst:
		return PolicyZoneFirst, nil
	case PolicyRegulationFirst:
		return PolicyRegulationFirst, nil
	}
	return "", ErrInvalidPolicy
}

func (p Policy) Valid() bool {
	return p == PolicyZoneFirst || p == PolicyRegulationFirst
}
