package extract

import (
	"math"
	"strings"
	"unicode/utf8"

	"parcel-constraints-be/pkg/zoning"
	"parcel-constraints-be/pkg/zoning/vocabulary"
)

const (
	baseConfidence      = 0.6
	zoneBonus           = 0.2
	legalBonus          = 0.1
	constraintBonus     = 0.1
	confidenceWindow    = 50
	acceptConfidenceMin = 0.6
)

// Finding is one constraint value located by the confidence scan.
type Finding struct {
	Constraint zoning.ConstraintType `json:"constraint"`
	Value      string                `json:"value"`
	Confidence float64               `json:"confidence"`
	Context    string                `json:"context"`
}

// Evidence renders the context the value was read from.
func (f Finding) Evidence() string {
	return "Extrait du contexte: ..." + f.Context + "..."
}

// The scan patterns span lines and tolerate filler words between the
// keyword and the value.
var scanRules = []NumericRule{
	{
		Constraint: zoning.ConstraintIndice,
		Accept:     acceptIndice,
		Patterns: compile(`(?is)`,
			`indice.*?d.{0,10}utilisation.*?(\d+[.,]\d+)`,
			`coefficient.*?d.{0,10}occupation.*?(\d+[.,]\d+)`,
			`COS.*?(\d+[.,]\d+)`,
			`taux.*?d.{0,10}occupation.*?(\d+[.,]\d+)`,
		),
	},
	{
		Constraint: zoning.ConstraintHauteur,
		Accept:     acceptMeters(3, 50),
		Patterns: compile(`(?is)`,
			`hauteur.*?max.*?(\d+(?:[.,]\d+)?)\s*m`,
			`(\d+(?:[.,]\d+)?)\s*m.*?maximum`,
			`ne.*?d[ée]passer.*?(\d+(?:[.,]\d+)?)\s*m`,
			`limit[ée].*?(?:à|de).*?(\d+(?:[.,]\d+)?)\s*m`,
		),
	},
	{
		Constraint: zoning.ConstraintDistance,
		Accept:     acceptMeters(0.5, 50),
		Patterns: compile(`(?is)`,
			`distance.*?limite.*?(\d+(?:[.,]\d+)?)\s*m`,
			`recul.*?(\d+(?:[.,]\d+)?)\s*m`,
			`marge.*?(\d+(?:[.,]\d+)?)\s*m`,
			`éloignement.*?(\d+(?:[.,]\d+)?)\s*m`,
		),
	},
	{
		Constraint: zoning.ConstraintSurface,
		Accept:     acceptSurface,
		Patterns: compile(`(?is)`,
			`surface.*?min.*?(\d+)\s*m[²2]`,
			`parcelle.*?min.*?(\d+)\s*m[²2]`,
			`terrain.*?min.*?(\d+)\s*m[²2]`,
		),
	},
	{
		Constraint: zoning.ConstraintStationnement,
		Accept:     acceptParking,
		Patterns: compile(`(?is)`,
			`(\d+)\s*place.*?stationnement`,
			`(\d+)\s*place.*?parc`,
			`stationnement.*?(\d+)`,
			`garage.*?(\d+)`,
		),
	},
}

// Scanner scores every match of the scan patterns by the wording found
// within fifty characters of it.
type Scanner struct {
	vocab *vocabulary.Vocabulary
}

func NewScanner(vocab *vocabulary.Vocabulary) *Scanner {
	if vocab == nil {
		vocab = vocabulary.Default()
	}
	return &Scanner{vocab: vocab}
}

// Scan returns at most one finding per constraint type, keeping only those
// whose confidence exceeds the base score. zoneMarkers are the strings
// identifying the zone (label, number); empty markers are ignored.
func (s *Scanner) Scan(passages []string, zoneMarkers ...string) []Finding {
	if len(passages) == 0 {
		return nil
	}
	text := strings.Join(passages, "\n")

	var findings []Finding
	for _, rule := range scanRules {
		var best Finding
		for _, re := range rule.Patterns {
			for _, loc := range re.FindAllStringSubmatchIndex(text, -1) {
				if loc[2] < 0 {
					continue
				}
				value, ok := rule.Accept(text[loc[2]:loc[3]])
				if !ok {
					continue
				}
				window := contextWindow(text, loc[0], loc[1], confidenceWindow)
				confidence := s.Confidence(window, zoneMarkers...)
				if confidence > best.Confidence {
					best = Finding{
						Constraint: rule.Constraint,
						Value:      value,
						Confidence: confidence,
						Context:    window,
					}
				}
			}
		}
		if best.Value != "" && best.Confidence > acceptConfidenceMin {
			findings = append(findings, best)
		}
	}

	return findings
}

// Confidence scores a context window: 0.6 base, plus 0.2 when the zone is
// named, 0.1 for legal wording and 0.1 for constraint wording.
func (s *Scanner) Confidence(window string, zoneMarkers ...string) float64 {
	lower := strings.ToLower(window)
	confidence := baseConfidence

	for _, marker := range zoneMarkers {
		marker = strings.ToLower(strings.TrimSpace(marker))
		if marker != "" && strings.Contains(lower, marker) {
			confidence += zoneBonus
			break
		}
	}
	if vocabulary.ContainsAny(lower, s.vocab.LegalMarkers) {
		confidence += legalBonus
	}
	if vocabulary.ContainsAny(lower, s.vocab.ConstraintMarkers) {
		confidence += constraintBonus
	}

	return math.Round(confidence*100) / 100
}

// contextWindow returns text[start-pad:end+pad] measured in runes, trimmed.
func contextWindow(text string, start, end, pad int) string {
	from := start
	for i := 0; i < pad && from > 0; i++ {
		_, size := utf8.DecodeLastRuneInString(text[:from])
		from -= size
	}
	to := end
	for i := 0; i < pad && to < len(text); i++ {
		_, size := utf8.DecodeRuneInString(text[to:])
		to += size
	}
	return strings.TrimSpace(text[from:to])
}
