package vocabulary

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parcel-constraints-be/pkg/zoning"
)

func TestConceptTerms(t *testing.T) {
	v := Default()

	tests := []struct {
		hint   string
		want   []string
		wantOK bool
	}{
		{"indice d'utilisation", []string{"indice", "utilisation", "coefficient"}, true},
		{"Distance minimale", []string{"distance", "limite", "recul"}, true},
		{"hauteur maximale", []string{"hauteur", "maximale", "étages"}, true},
		{"stationnement", []string{"place", "parc", "stationnement"}, true},
		{"général", nil, false},
		{"", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.hint, func(t *testing.T) {
			got, ok := v.ConceptTerms(tt.hint)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCategorize(t *testing.T) {
	v := Default()

	tests := []struct {
		text string
		want zoning.Category
	}{
		{"Indice d'utilisation 0.30", zoning.CategoryIndice},
		{"Distance à la limite", zoning.CategoryDistance},
		{"Hauteur des bâtiments", zoning.CategoryHauteur},
		{"Superficie de la parcelle", zoning.CategorySurface},
		{"Plan d'affectation des zones", zoning.CategoryZone},
		{"Cadastre des sites pollués", zoning.CategoryGeneral},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, v.Categorize(tt.text))
		})
	}
}

func TestTextRuleMatches(t *testing.T) {
	rule := TextRule{AllOf: []string{"pente"}, AnyOf: []string{"30%", "30 %"}}
	assert.True(t, rule.Matches("pente minimale de 30 % exigée"))
	assert.False(t, rule.Matches("pente libre"))
	assert.False(t, TextRule{}.Matches("anything"))
}

func TestLoadOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vocab.yaml")
	content := `
semantic_queries:
  - "gabarit"
type_mentions:
  toiture: "toit"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	v, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"gabarit"}, v.SemanticQueries)
	assert.Equal(t, "toit", v.TypeMention(zoning.ConstraintToiture))
	// untouched tables keep their defaults
	assert.Equal(t, Default().ConceptQueries, v.ConceptQueries)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestParseZoneUsesVocabulary(t *testing.T) {
	v := Default()
	z := v.ParseZone("ZONE 3 Zone village")
	assert.Equal(t, zoning.ZoneTypeVillage, z.ZoneType)
	assert.Equal(t, "3", z.ZoneNumber)
}

func TestParseZoneDefaultKeywords(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		wantNumber string
		wantParent string
		wantType   zoning.ZoneType
		hasParent  bool
	}{
		{"villa sub-zone", "ZONE 18/3 Zone des villas familiales 0.30 (3)", "18/3", "18", zoning.ZoneTypeVilla, true},
		{"village", "Zone 4 Zone village", "4", "4", zoning.ZoneTypeVillage, false},
		{"centre lowercase prefix", "zone 2A centre historique", "2A", "2A", zoning.ZoneTypeCentre, false},
		{"artisanal", "ZONE 7 artisanale", "7", "7", zoning.ZoneTypeArtisanal, false},
		{"no keyword", "ZONE 12 agricole", "12", "12", zoning.ZoneTypeUnknown, false},
		{"empty", "", "", "", zoning.ZoneTypeUnknown, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			z := ParseZone(tt.raw)
			assert.Equal(t, tt.raw, z.RawLabel)
			assert.Equal(t, tt.wantNumber, z.ZoneNumber)
			assert.Equal(t, tt.wantParent, z.ParentZone)
			assert.Equal(t, tt.wantType, z.ZoneType)
			assert.Equal(t, tt.hasParent, z.HasParent())
		})
	}
}
