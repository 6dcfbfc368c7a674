package extract

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parcel-constraints-be/pkg/zoning"
	"parcel-constraints-be/pkg/zoning/vocabulary"
)

const villaLabel = "ZONE 18/3 Zone des villas familiales 0.30 (3)"

// hintSource answers per retrieval hint.
type hintSource map[string][]string

func (h hintSource) Passages(_ context.Context, hint string) []string {
	return h[hint]
}

func TestExtractNumeric(t *testing.T) {
	tests := []struct {
		name     string
		passages []string
		ct       zoning.ConstraintType
		want     string
	}{
		{"height in metres", []string{"La hauteur maximale est de 12 mètres"}, zoning.ConstraintHauteur, "12 m"},
		{"distance glued unit", []string{"Distance minimale de 5m à respecter"}, zoning.ConstraintDistance, "5 m"},
		{"indice with comma", []string{"L'indice d'utilisation du sol est de 0,45"}, zoning.ConstraintIndice, "0.45"},
		{"surface with thousands", []string{"Surface minimale de 1 000 m² par parcelle"}, zoning.ConstraintSurface, "1000 m²"},
		{"parking count", []string{"2 places de parc par logement"}, zoning.ConstraintStationnement, "2"},
		{"passages are joined", []string{"La hauteur", "maximale est de 9 m"}, zoning.ConstraintHauteur, "9 m"},
		{"no passages", nil, zoning.ConstraintHauteur, "-"},
		{"no rules for roofs", []string{"pente 30%"}, zoning.ConstraintToiture, "-"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractNumeric(tt.passages, tt.ct))
		})
	}
}

func TestExtractNumericRejectsOutOfRange(t *testing.T) {
	tests := []struct {
		name    string
		passage string
		ct      zoning.ConstraintType
	}{
		{"indice too high", "indice d'utilisation 4.50", zoning.ConstraintIndice},
		{"indice too low", "indice d'utilisation 0.05", zoning.ConstraintIndice},
		{"height too high", "hauteur maximale de 120 m", zoning.ConstraintHauteur},
		{"height too low", "hauteur maximale 2 m", zoning.ConstraintHauteur},
		{"distance too far", "distance minimale de 80 m", zoning.ConstraintDistance},
		{"surface too small", "surface minimale de 50 m²", zoning.ConstraintSurface},
		{"too many places", "12 places de parc", zoning.ConstraintStationnement},
		{"zero places", "0 place de stationnement", zoning.ConstraintStationnement},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, "-", ExtractNumeric([]string{tt.passage}, tt.ct))
		})
	}
}

func TestRuleScoringPrefersEarlierPatterns(t *testing.T) {
	// "max 8 m" only matches the second height pattern, "hauteur de 11 m"
	// the first one, so 11 wins despite appearing later.
	got := ExtractNumeric([]string{"max 8 m en façade, la hauteur de 11 m au faîte"}, zoning.ConstraintHauteur)
	assert.Equal(t, "11 m", got)
}

func TestFromZoneLabel(t *testing.T) {
	tests := []struct {
		label       string
		wantIndice  string
		wantHauteur string
	}{
		{villaLabel, "0.30", "-"},
		{"ZONE 4 indice 0,8", "0.8", "-"},
		{"Zone centre IU = 1.2 H = 15", "1.2", "15 m"},
		{"Zone village 12m max", "-", "12 m"},
		{"Zone de verdure 3 étages", "-", "3 m"},
		{"Zone villa 0.45", "0.45", "-"},
		{"Zone industrielle 5.5 (2)", "-", "-"},
		{"", "-", "-"},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			indice, hauteur := FromZoneLabel(tt.label)
			assert.Equal(t, tt.wantIndice, indice)
			assert.Equal(t, tt.wantHauteur, hauteur)
		})
	}
}

func TestZoneLabelIndiceProperty(t *testing.T) {
	s := NewSynthesizer(nil, nil)
	for _, v := range []string{"0.10", "0.25", "0.30", "0.6", "1.5", "3.0"} {
		for k := 1; k <= 4; k++ {
			label := fmt.Sprintf("ZONE %d Zone résidentielle %s (%d)", k, v, k)
			// the passages name another value on purpose
			source := hintSource{"indice d'utilisation": {"L'indice d'utilisation est de 0.75 dans toutes les zones à bâtir."}}

			schema, err := s.Synthesize(context.Background(), vocabulary.ParseZone(label), nil, source, zoning.PolicyZoneFirst)
			require.NoError(t, err)
			slot := schema.Get(zoning.SlotIndiceUtilisation)
			assert.Equal(t, v, slot.Value, label)
			assert.Equal(t, zoning.SourceZoneLabel, slot.Source, label)
		}
	}
}

func TestSynthesizeZoneFirst(t *testing.T) {
	s := NewSynthesizer(nil, nil)
	source := hintSource{
		"indice d'utilisation": {"L'indice d'utilisation du sol est de 0.50 pour cette zone de villas."},
		"distance minimale":    {"Distance minimale de 5m à respecter par rapport aux limites de la parcelle voisine."},
		"hauteur maximale":     {"La hauteur maximale est de 12 mètres pour toutes les constructions de la zone."},
		"toiture":              {"Les toitures seront recouvertes de tuiles de teinte sombre conformément à l'article 20."},
		"stationnement":        {"Une place de stationnement par logement est obligatoire selon l'article 31 du règlement."},
		"général":              {"Article 2: Le présent règlement s'applique à l'ensemble du territoire communal."},
	}

	schema, err := s.Synthesize(context.Background(), vocabulary.ParseZone(villaLabel), nil, source, zoning.PolicyZoneFirst)
	require.NoError(t, err)

	indice := schema.Get(zoning.SlotIndiceUtilisation)
	assert.Equal(t, "0.30", indice.Value)
	assert.Equal(t, zoning.SourceZoneLabel, indice.Source)

	flat := schema.Flatten()
	assert.Equal(t, "5 m", flat["distance_minimale"])
	assert.Equal(t, "12 m", flat["hauteur_maximale"])
	assert.Equal(t, "-", flat["surface_minimale"])
	assert.Equal(t, "Tuiles obligatoires", flat["toiture"])
	assert.Equal(t, "1 place par logement minimum", flat["places_parc"])

	assert.Equal(t, zoning.SourceRegulationText, schema.Get(zoning.SlotHauteurMaximale).Source)
	assert.Greater(t, schema.Get(zoning.SlotHauteurMaximale).Confidence, 0.0)

	require.Len(t, schema.PassagesGeneraux, 5)
	assert.Equal(t, source["distance minimale"][0], schema.PassagesGeneraux[0])
	assert.Equal(t, source["général"][0], schema.PassagesGeneraux[4])

	remarks := strings.Split(flat["remarques"].(string), " | ")
	assert.Len(t, remarks, 3)
}

func TestSynthesizeEmptyZone(t *testing.T) {
	s := NewSynthesizer(nil, nil)
	for _, policy := range []zoning.Policy{zoning.PolicyZoneFirst, zoning.PolicyRegulationFirst} {
		t.Run(string(policy), func(t *testing.T) {
			schema, err := s.Synthesize(context.Background(), vocabulary.ParseZone(""), nil, StaticPassages(nil), policy)
			require.NoError(t, err)

			for key, v := range schema.Flatten() {
				if key == "passages_generaux" {
					assert.Empty(t, v)
					continue
				}
				assert.Equal(t, "-", v, key)
			}
			assert.Equal(t, 0, schema.ResolvedCount())
		})
	}
}

func TestSynthesizeInvalidPolicy(t *testing.T) {
	_, err := NewSynthesizer(nil, nil).Synthesize(context.Background(), vocabulary.ParseZone(villaLabel), nil, nil, zoning.Policy("hybrid"))
	assert.ErrorIs(t, err, zoning.ErrInvalidPolicy)
}

func TestSynthesizeRegulationFirst(t *testing.T) {
	s := NewSynthesizer(nil, nil)
	passages := StaticPassages{
		"Article 12: la hauteur maximale dans la zone 18/3 est de 10 m au faîte.",
		"Article 20: les toitures à deux pans ont une pente comprise entre 30 % et 60 %.",
	}

	schema, err := s.Synthesize(context.Background(), vocabulary.ParseZone(villaLabel), nil, passages, zoning.PolicyRegulationFirst)
	require.NoError(t, err)

	hauteur := schema.Get(zoning.SlotHauteurMaximale)
	assert.Equal(t, "10 m", hauteur.Value)
	assert.Equal(t, zoning.SourceRegulationText, hauteur.Source)
	assert.InDelta(t, 0.9, hauteur.Confidence, 1e-9)
	assert.True(t, strings.HasPrefix(hauteur.Evidence, "Extrait du contexte: ..."))
	assert.Contains(t, hauteur.Evidence, "10 m")
	assert.True(t, strings.HasSuffix(hauteur.Evidence, "..."))

	// text rules carry no scanned context
	assert.Equal(t, "Pente minimum 30%", schema.Get(zoning.SlotToiture).Value)
	assert.Empty(t, schema.Get(zoning.SlotToiture).Evidence)
	// the label is only a fallback under this policy
	assert.Equal(t, "-", schema.Get(zoning.SlotIndiceUtilisation).Value)
	assert.Len(t, schema.PassagesGeneraux, 2)
}

func TestSynthesizeRegulationFirstFallback(t *testing.T) {
	s := NewSynthesizer(nil, nil)
	candidates := []zoning.ConstraintCandidate{
		{Kind: zoning.CandidateRestriction, Category: zoning.CategoryHauteur, Text: "Hauteur maximale 9 m", SourceTag: "RestrictionOnLandownership"},
		{Kind: zoning.CandidateRestriction, Category: zoning.CategoryZone, Text: villaLabel, SourceTag: "RestrictionOnLandownership"},
	}

	schema, err := s.Synthesize(context.Background(), vocabulary.ParseZone(villaLabel), candidates, StaticPassages(nil), zoning.PolicyRegulationFirst)
	require.NoError(t, err)

	indice := schema.Get(zoning.SlotIndiceUtilisation)
	assert.Equal(t, "0.30", indice.Value)
	assert.Equal(t, zoning.SourceZoneLabel, indice.Source)
	assert.InDelta(t, 0.7, indice.Confidence, 1e-9)

	hauteur := schema.Get(zoning.SlotHauteurMaximale)
	assert.Equal(t, "9 m", hauteur.Value)
	assert.Equal(t, zoning.SourceLegalExtract, hauteur.Source)
}

func TestResolveSlotExcerpt(t *testing.T) {
	s := NewSynthesizer(nil, nil)
	passage := "La surface des annexes est définie par le plan de quartier en vigueur."

	slot := s.ResolveSlot(vocabulary.ParseZone(villaLabel), zoning.ConstraintSurface, []string{passage})
	assert.Equal(t, passage+"...", slot.Value)
	assert.Equal(t, 0.3, slot.Confidence)

	slot = s.ResolveSlot(vocabulary.ParseZone(villaLabel), zoning.ConstraintSurface, []string{"Rien à signaler ici pour ce chapitre du règlement communal."})
	assert.False(t, slot.Resolved())
}

func TestScanConfidence(t *testing.T) {
	scanner := NewScanner(nil)

	findings := scanner.Scan([]string{
		"Article 5 alinéa 2: la distance minimale à la limite: 4 m au minimum pour la zone 18/3.",
	}, "zone 18/3")
	require.Len(t, findings, 1)
	assert.Equal(t, zoning.ConstraintDistance, findings[0].Constraint)
	assert.Equal(t, "4 m", findings[0].Value)
	assert.InDelta(t, 1.0, findings[0].Confidence, 1e-9)
	assert.True(t, strings.HasPrefix(findings[0].Evidence(), "Extrait du contexte: ..."))

	// bare matches without legal, constraint or zone wording stay at 0.6
	assert.Empty(t, scanner.Scan([]string{"recul de 3 m"}))
	assert.Nil(t, scanner.Scan(nil))
}

func TestContextWindowRuneSafe(t *testing.T) {
	text := strings.Repeat("é", 60) + "X" + strings.Repeat("è", 60)
	start := strings.Index(text, "X")
	w := contextWindow(text, start, start+1, 50)
	assert.Equal(t, strings.Repeat("é", 50)+"X"+strings.Repeat("è", 50), w)
}
