// Package vocabulary holds the French domain keyword tables used to
// categorise candidates, expand retrieval queries and detect legal wording.
// Defaults are compiled in; a YAML file may override any table.
package vocabulary

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"parcel-constraints-be/pkg/zoning"
)

// ConceptQuery expands a hint containing Key into one query per term.
type ConceptQuery struct {
	Key   string   `yaml:"key"`
	Terms []string `yaml:"terms"`
}

type CategoryKeywords struct {
	Category zoning.Category `yaml:"category"`
	Keywords []string        `yaml:"keywords"`
}

type ZoneTypeKeyword struct {
	Keyword string `yaml:"keyword"`
	Type    string `yaml:"type"`
}

// TextRule yields Phrase when the joined passages contain every AllOf
// keyword and at least one AnyOf keyword (when AnyOf is set).
type TextRule struct {
	Constraint zoning.ConstraintType `yaml:"constraint"`
	AllOf      []string              `yaml:"all_of"`
	AnyOf      []string              `yaml:"any_of"`
	Phrase     string                `yaml:"phrase"`
}

// SlotHint is the retrieval hint used to gather evidence for one slot.
type SlotHint struct {
	Slot zoning.SlotName `yaml:"slot"`
	Hint string          `yaml:"hint"`
}

type Vocabulary struct {
	ConceptQueries    []ConceptQuery     `yaml:"concept_queries"`
	CategoryKeywords  []CategoryKeywords `yaml:"category_keywords"`
	ZoneLabelKeywords []string           `yaml:"zone_label_keywords"`
	ThemeZoneKeywords []string           `yaml:"theme_zone_keywords"`
	ZoneTypeKeywords  []ZoneTypeKeyword  `yaml:"zone_type_keywords"`
	ZoneTypeSuffixes  []string           `yaml:"zone_type_suffixes"`
	SemanticQueries   []string           `yaml:"semantic_queries"`
	LegalMarkers      []string           `yaml:"legal_markers"`
	ConstraintMarkers []string           `yaml:"constraint_markers"`
	TextRules         []TextRule         `yaml:"text_rules"`
	SlotHints         []SlotHint         `yaml:"slot_hints"`
	TypeMentions      map[string]string  `yaml:"type_mentions"`
	GeneralHint       string             `yaml:"general_hint"`
	BroadHint         string             `yaml:"broad_hint"`
}

func Default() *Vocabulary {
	return &Vocabulary{
		ConceptQueries: []ConceptQuery{
			{Key: "indice d'utilisation", Terms: []string{"indice", "utilisation", "coefficient"}},
			{Key: "indice", Terms: []string{"indice", "utilisation", "coefficient"}},
			{Key: "distance", Terms: []string{"distance", "limite", "recul"}},
			{Key: "hauteur", Terms: []string{"hauteur", "maximale", "étages"}},
			{Key: "surface", Terms: []string{"surface", "minimale", "terrain"}},
			{Key: "stationnement", Terms: []string{"place", "parc", "stationnement"}},
			{Key: "toiture", Terms: []string{"toiture", "toit", "pente"}},
		},
		CategoryKeywords: []CategoryKeywords{
			{Category: zoning.CategoryIndice, Keywords: []string{"indice", "utilisation", "densité"}},
			{Category: zoning.CategoryDistance, Keywords: []string{"distance", "recul", "limite"}},
			{Category: zoning.CategoryHauteur, Keywords: []string{"hauteur", "mètre", "étage"}},
			{Category: zoning.CategorySurface, Keywords: []string{"surface", "superficie", "terrain"}},
			{Category: zoning.CategoryZone, Keywords: []string{"zone", "affectation"}},
		},
		ZoneLabelKeywords: []string{"zone", "affectation", "secteur"},
		ThemeZoneKeywords: []string{"zone", "plan"},
		// "village" is tested before "villa" since it contains it
		ZoneTypeKeywords: []ZoneTypeKeyword{
			{Keyword: "village", Type: string(zoning.ZoneTypeVillage)},
			{Keyword: "villa", Type: string(zoning.ZoneTypeVilla)},
			{Keyword: "centre", Type: string(zoning.ZoneTypeCentre)},
			{Keyword: "artisan", Type: string(zoning.ZoneTypeArtisanal)},
		},
		ZoneTypeSuffixes: []string{"indice utilisation", "hauteur", "distance"},
		SemanticQueries: []string{
			"indice utilisation",
			"coefficient utilisation",
			"hauteur maximum",
			"distance propriété",
			"places parking",
		},
		LegalMarkers:      []string{"article", "alinéa", "prescrit", "réglementation"},
		ConstraintMarkers: []string{"maximum", "minimum", "ne pas dépasser", "limité"},
		TextRules: []TextRule{
			{Constraint: zoning.ConstraintIndice, AllOf: []string{"villa", "famille"}, Phrase: "Zone villa familiale (voir règlement spécifique)"},
			{Constraint: zoning.ConstraintToiture, AllOf: []string{"tuile"}, Phrase: "Tuiles obligatoires"},
			{Constraint: zoning.ConstraintToiture, AllOf: []string{"pente"}, AnyOf: []string{"30%", "30 %"}, Phrase: "Pente minimum 30%"},
			{Constraint: zoning.ConstraintToiture, AllOf: []string{"pente"}, Phrase: "Pente réglementée (voir règlement)"},
			{Constraint: zoning.ConstraintToiture, AllOf: []string{"toit"}, Phrase: "Règles de toiture spécifiques"},
			{Constraint: zoning.ConstraintStationnement, AllOf: []string{"logement"}, Phrase: "1 place par logement minimum"},
			{Constraint: zoning.ConstraintStationnement, AllOf: []string{"obligatoire"}, Phrase: "Stationnement obligatoire"},
		},
		SlotHints: []SlotHint{
			{Slot: zoning.SlotIndiceUtilisation, Hint: "indice d'utilisation"},
			{Slot: zoning.SlotDistanceMinimale, Hint: "distance minimale"},
			{Slot: zoning.SlotHauteurMaximale, Hint: "hauteur maximale"},
			{Slot: zoning.SlotSurfaceMinimale, Hint: "surface minimale"},
			{Slot: zoning.SlotToiture, Hint: "toiture"},
			{Slot: zoning.SlotPlacesParc, Hint: "stationnement"},
		},
		TypeMentions: map[string]string{
			string(zoning.ConstraintIndice):        "indice",
			string(zoning.ConstraintHauteur):       "hauteur",
			string(zoning.ConstraintDistance):      "distance",
			string(zoning.ConstraintSurface):       "surface",
			string(zoning.ConstraintStationnement): "stationnement",
			string(zoning.ConstraintToiture):       "toiture",
		},
		GeneralHint: "général",
		BroadHint:   "contraintes générales",
	}
}

// Load reads a YAML override file. Tables present in the file replace the
// compiled defaults wholesale; absent tables keep their defaults.
func Load(path string) (*Vocabulary, error) {
	v := Default()
	if path == "" {
		return v, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read vocabulary %s: %w", path, err)
	}

	var override Vocabulary
	if err := yaml.Unmarshal(raw, &override); err != nil {
		return nil, fmt.Errorf("parse vocabulary %s: %w", path, err)
	}

	v.merge(&override)
	return v, nil
}

func (v *Vocabulary) merge(o *Vocabulary) {
	if len(o.ConceptQueries) > 0 {
		v.ConceptQueries = o.ConceptQueries
	}
	if len(o.CategoryKeywords) > 0 {
		v.CategoryKeywords = o.CategoryKeywords
	}
	if len(o.ZoneLabelKeywords) > 0 {
		v.ZoneLabelKeywords = o.ZoneLabelKeywords
	}
	if len(o.ThemeZoneKeywords) > 0 {
		v.ThemeZoneKeywords = o.ThemeZoneKeywords
	}
	if len(o.ZoneTypeKeywords) > 0 {
		v.ZoneTypeKeywords = o.ZoneTypeKeywords
	}
	if len(o.ZoneTypeSuffixes) > 0 {
		v.ZoneTypeSuffixes = o.ZoneTypeSuffixes
	}
	if len(o.SemanticQueries) > 0 {
		v.SemanticQueries = o.SemanticQueries
	}
	if len(o.LegalMarkers) > 0 {
		v.LegalMarkers = o.LegalMarkers
	}
	if len(o.ConstraintMarkers) > 0 {
		v.ConstraintMarkers = o.ConstraintMarkers
	}
	if len(o.TextRules) > 0 {
		v.TextRules = o.TextRules
	}
	if len(o.SlotHints) > 0 {
		v.SlotHints = o.SlotHints
	}
	for k, m := range o.TypeMentions {
		v.TypeMentions[k] = m
	}
	if o.GeneralHint != "" {
		v.GeneralHint = o.GeneralHint
	}
	if o.BroadHint != "" {
		v.BroadHint = o.BroadHint
	}
}

// ConceptTerms returns the expansion terms of the first concept key
// contained in hint.
func (v *Vocabulary) ConceptTerms(hint string) ([]string, bool) {
	lower := strings.ToLower(hint)
	if lower == "" {
		return nil, false
	}
	for _, cq := range v.ConceptQueries {
		if strings.Contains(lower, strings.ToLower(cq.Key)) {
			return cq.Terms, true
		}
	}
	return nil, false
}

// Categorize assigns the first category whose keyword appears in text.
func (v *Vocabulary) Categorize(text string) zoning.Category {
	lower := strings.ToLower(text)
	for _, ck := range v.CategoryKeywords {
		if ContainsAny(lower, ck.Keywords) {
			return ck.Category
		}
	}
	return zoning.CategoryGeneral
}

func (v *Vocabulary) IsZoneLabel(legend string) bool {
	return ContainsAny(strings.ToLower(legend), v.ZoneLabelKeywords)
}

func (v *Vocabulary) IsZoneTheme(text string) bool {
	return ContainsAny(strings.ToLower(text), v.ThemeZoneKeywords)
}

// ParseZone parses a label with the default vocabulary.
func ParseZone(raw string) zoning.ZoneDescriptor {
	return Default().ParseZone(raw)
}

// ParseZone parses a label using this vocabulary's zone type keywords.
func (v *Vocabulary) ParseZone(raw string) zoning.ZoneDescriptor {
	keywords := make([]zoning.ZoneTypeKeyword, 0, len(v.ZoneTypeKeywords))
	for _, kw := range v.ZoneTypeKeywords {
		keywords = append(keywords, zoning.ZoneTypeKeyword{
			Keyword: strings.ToLower(kw.Keyword),
			Type:    zoning.ZoneType(kw.Type),
		})
	}
	return zoning.ParseZoneWith(raw, keywords)
}

// TypeMention is the word whose presence marks a passage as talking about ct.
func (v *Vocabulary) TypeMention(ct zoning.ConstraintType) string {
	if m, ok := v.TypeMentions[string(ct)]; ok {
		return m
	}
	return string(ct)
}

// Hint returns the retrieval hint of a slot.
func (v *Vocabulary) Hint(slot zoning.SlotName) string {
	for _, sh := range v.SlotHints {
		if sh.Slot == slot {
			return sh.Hint
		}
	}
	return string(slot)
}

// TextRulesFor returns the ordered textual rules of one constraint type.
func (v *Vocabulary) TextRulesFor(ct zoning.ConstraintType) []TextRule {
	var rules []TextRule
	for _, r := range v.TextRules {
		if r.Constraint == ct {
			rules = append(rules, r)
		}
	}
	return rules
}

// Matches reports whether the rule fires on lowercased text.
func (r TextRule) Matches(lower string) bool {
	for _, kw := range r.AllOf {
		if !strings.Contains(lower, strings.ToLower(kw)) {
			return false
		}
	}
	if len(r.AnyOf) > 0 && !ContainsAny(lower, r.AnyOf) {
		return false
	}
	return len(r.AllOf) > 0 || len(r.AnyOf) > 0
}

// ContainsAny reports whether lower contains any keyword, compared in lower case.
func ContainsAny(lower string, keywords []string) bool {
	for _, kw := range keywords {
		if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
