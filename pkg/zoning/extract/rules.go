// Package extract turns zone labels, legal-extract candidates and regulation
// passages into the constraint schema.
package extract

import (
	"regexp"
	"strconv"
	"strings"

	"parcel-constraints-be/pkg/zoning"
)

// Match is one accepted numeric value and where it was found.
type Match struct {
	Value string
	Score int
	Start int
	End   int
}

// NumericRule is an ordered pattern table for one constraint type. Earlier
// patterns score higher: 100 - 5*index.
type NumericRule struct {
	Constraint zoning.ConstraintType
	Patterns   []*regexp.Regexp
	// Accept validates the captured value against the plausibility range
	// and formats it. Rejected values never reach the schema.
	Accept func(raw string) (string, bool)
}

// Best returns the highest scoring accepted match. Ties keep the first
// match encountered.
func (r NumericRule) Best(text string) (Match, bool) {
	var best Match
	found := false

	for i, re := range r.Patterns {
		score := 100 - 5*i
		for _, loc := range re.FindAllStringSubmatchIndex(text, -1) {
			if len(loc) < 4 || loc[2] < 0 {
				continue
			}
			value, ok := r.Accept(text[loc[2]:loc[3]])
			if !ok {
				continue
			}
			if !found || score > best.Score {
				best = Match{Value: value, Score: score, Start: loc[0], End: loc[1]}
				found = true
			}
		}
	}

	return best, found
}

func compile(flags string, patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(flags + p)
	}
	return out
}

func parseDecimal(raw string) (string, float64, bool) {
	v := strings.ReplaceAll(strings.TrimSpace(raw), ",", ".")
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return "", 0, false
	}
	return v, f, true
}

func acceptIndice(raw string) (string, bool) {
	v, f, ok := parseDecimal(raw)
	if !ok || f < 0.1 || f > 3.0 {
		return "", false
	}
	return v, true
}

func acceptMeters(min, max float64) func(string) (string, bool) {
	return func(raw string) (string, bool) {
		v, f, ok := parseDecimal(raw)
		if !ok || f < min || f > max {
			return "", false
		}
		return v + " m", true
	}
}

func acceptSurface(raw string) (string, bool) {
	v, f, ok := parseDecimal(strings.ReplaceAll(raw, " ", ""))
	if !ok || f < 100 {
		return "", false
	}
	return v + " m²", true
}

func acceptParking(raw string) (string, bool) {
	_, f, ok := parseDecimal(raw)
	if !ok {
		return "", false
	}
	n := int(f)
	if n <= 0 || n > 10 {
		return "", false
	}
	return strconv.Itoa(n), true
}

var numericRules = map[zoning.ConstraintType]NumericRule{
	zoning.ConstraintIndice: {
		Constraint: zoning.ConstraintIndice,
		Accept:     acceptIndice,
		Patterns: compile(`(?i)`,
			`indice\s+(?:d'?utilisation\s+)?(?:de\s+)?(?:du\s+sol\s+)?(?:est\s+de\s+)?(\d+[.,]\d+)`,
			`coefficient\s+(?:d'?utilisation\s+)?(?:de\s+)?(?:du\s+sol\s+)?(?:est\s+de\s+)?(\d+[.,]\d+)`,
			`i\.u\.\s*[=:]\s*(\d+[.,]\d+)`,
			`iu\s*[=:]\s*(\d+[.,]\d+)`,
			`densité\s+(?:de\s+construction\s+)?(?:est\s+de\s+)?(?:autorisée?\s*:\s*)?(?:maximum\s+)?(\d+[.,]\d+)`,
			`taux\s+(?:d'?occupation\s+)?(?:du\s+sol\s+)?(?:est\s+de\s+)?(?::\s*)?(\d+[.,]\d+)`,
			`emprise\s+(?:au\s+sol\s+)?(?:maximale?\s+)?(?:de\s+)?(?::\s*)?(\d+[.,]\d+)`,
			`(?:ne\s+peut\s+)?dépasser\s+(\d+[.,]\d+)`,
			`(?:maximum|max)\s+(\d+[.,]\d+)`,
			`(\d+[.,]\d+)\s+(?:autorisé|permis|maximum)`,
			`(\d+[.,]\d+)\s*(?:\(\d+\))?(?:\s+zone)?`,
			`zone.*?(\d+[.,]\d+)`,
		),
	},
	zoning.ConstraintHauteur: {
		Constraint: zoning.ConstraintHauteur,
		Accept:     acceptMeters(3, 50),
		Patterns: compile(`(?i)`,
			`hauteur\s+(?:maximale?\s+)?(?:de\s+)?(?:la\s+construction\s+)?(?:est\s+de\s+)?(\d+(?:[.,]\d+)?)\s*m`,
			`(?:hauteur\s+)?(?:max|maximum)\s+(\d+(?:[.,]\d+)?)\s*m(?:ètres?)?`,
			`(\d+(?:[.,]\d+)?)\s*m(?:ètres?)?\s+(?:de\s+)?hauteur`,
			`hauteur.*?(\d+(?:[.,]\d+)?)\s*m`,
			`(\d+(?:[.,]\d+)?)\s*étages?(?:\s+maximum)?`,
			`(?:ne\s+(?:peut|doit)\s+(?:pas\s+)?dépasser\s+)?(\d+(?:[.,]\d+)?)\s*m`,
			`h\s*[=:]\s*(\d+(?:[.,]\d+)?)`,
			`hauteur\s+(?:à\s+)?(?:la\s+)?corniche\s+(\d+(?:[.,]\d+)?)`,
			`(?:limité|limitée)\s+à\s+(\d+(?:[.,]\d+)?)\s*m`,
		),
	},
	zoning.ConstraintDistance: {
		Constraint: zoning.ConstraintDistance,
		Accept:     acceptMeters(0.5, 50),
		Patterns: compile(`(?i)`,
			`distance\s+(?:minimale?\s+)?(?:de\s+)?(?:recul\s+)?(?:est\s+de\s+)?(\d+(?:[.,]\d+)?)\s*m`,
			`recul\s+(?:minimal\s+)?(?:de\s+)?(\d+(?:[.,]\d+)?)\s*m`,
			`marge\s+(?:de\s+recul\s+)?(?:minimale?\s+)?(?:de\s+)?(\d+(?:[.,]\d+)?)\s*m`,
			`(\d+(?:[.,]\d+)?)\s*m(?:ètres?)?\s+(?:de\s+)?(?:distance|recul|marge)`,
			`(?:minimum|min)\s+(\d+(?:[.,]\d+)?)\s*m`,
			`(?:au\s+moins|minimum)\s+(\d+(?:[.,]\d+)?)\s*m`,
			`d\s*[=:]\s*(\d+(?:[.,]\d+)?)`,
			`espacement\s+(?:minimal\s+)?(?:de\s+)?(\d+(?:[.,]\d+)?)\s*m`,
		),
	},
	zoning.ConstraintSurface: {
		Constraint: zoning.ConstraintSurface,
		Accept:     acceptSurface,
		Patterns: compile(`(?i)`,
			`surface\s+(?:minimale?\s+)?(?:de\s+)?(?:terrain\s+)?(?:est\s+de\s+)?(\d+(?:\s?\d{3})*)\s*m[²2]`,
			`superficie\s+(?:minimale?\s+)?(?:de\s+)?(?:terrain\s+)?(?:est\s+de\s+)?(\d+(?:\s?\d{3})*)\s*m[²2]`,
			`terrain\s+(?:de\s+)?(?:minimum\s+)?(\d+(?:\s?\d{3})*)\s*m[²2]`,
			`(\d+(?:\s?\d{3})*)\s*m[²2]\s+(?:de\s+)?(?:surface|terrain|minimum)`,
			`parcelle\s+(?:minimale?\s+)?(?:de\s+)?(\d+(?:\s?\d{3})*)\s*m[²2]`,
			`(?:minimum|min)\s+(\d+(?:\s?\d{3})*)\s*m[²2]`,
			`s\s*[=:]\s*(\d+(?:\s?\d{3})*)`,
		),
	},
	zoning.ConstraintStationnement: {
		Constraint: zoning.ConstraintStationnement,
		Accept:     acceptParking,
		Patterns: compile(`(?i)`,
			`(\d+)\s+places?\s+(?:de\s+)?(?:parc|stationnement)(?:\s+(?:par|pour)\s+logement)?`,
			`places?\s+(?:de\s+)?(?:parc|stationnement)\s*[=:]\s*(\d+)`,
			`(\d+)\s+places?\s+(?:par|pour)\s+(?:logement|unité|appartement)`,
			`(?:minimum|min)\s+(\d+)\s+places?`,
			`stationnement\s*[=:]\s*(\d+)`,
			`parking\s*[=:]\s*(\d+)`,
			`(\d+)\s+place(?:s)?\s+obligatoire`,
			`au\s+moins\s+(\d+)\s+place`,
		),
	},
}

// NumericRuleFor returns the passage rule table of a constraint type.
func NumericRuleFor(ct zoning.ConstraintType) (NumericRule, bool) {
	r, ok := numericRules[ct]
	return r, ok
}

// Zone labels carry their own, terser notation.
var (
	labelIndiceRule = NumericRule{
		Constraint: zoning.ConstraintIndice,
		Accept:     acceptIndice,
		Patterns: compile(`(?i)`,
			`(\d+[.,]\d+)\s*\(\d+\)`,
			`indice\s+(\d+[.,]\d+)`,
			`IU\s*[=:]\s*(\d+[.,]\d+)`,
			`(\d+[.,]\d+)\s*IU`,
			`densité\s+(\d+[.,]\d+)`,
			`-\s*(\d+[.,]\d+)\s*-`,
			`\|\s*(\d+[.,]\d+)\s*\|`,
			`(\d+[.,]\d+)$`,
		),
	}
	labelHauteurRule = NumericRule{
		Constraint: zoning.ConstraintHauteur,
		Accept:     acceptMeters(3, 50),
		Patterns: compile(`(?i)`,
			`(\d+)\s*m(?:ètres?)?\s*max`,
			`max\s*(\d+)\s*m`,
			`hauteur\s+(\d+)`,
			`(\d+)\s*étages?`,
			`H\s*[=:]\s*(\d+)`,
		),
	}
)

// FromZoneLabel reads the indice and height embedded in a zone label.
// Missing values are returned as "-".
func FromZoneLabel(label string) (indice string, hauteur string) {
	indice, hauteur = zoning.Unresolved, zoning.Unresolved
	label = strings.TrimSpace(label)
	if label == "" {
		return
	}
	if m, ok := labelIndiceRule.Best(label); ok {
		indice = m.Value
	}
	if m, ok := labelHauteurRule.Best(label); ok {
		hauteur = m.Value
	}
	return
}

// ExtractNumeric runs the rule table of ct over the lowercased passages
// joined by a space. It returns "-" when nothing valid matched.
func ExtractNumeric(passages []string, ct zoning.ConstraintType) string {
	rule, ok := NumericRuleFor(ct)
	if !ok || len(passages) == 0 {
		return zoning.Unresolved
	}
	if m, found := rule.Best(joinLower(passages)); found {
		return m.Value
	}
	return zoning.Unresolved
}

func joinLower(passages []string) string {
	return strings.ToLower(strings.Join(passages, " "))
}
