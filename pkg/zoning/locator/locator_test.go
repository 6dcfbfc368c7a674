package locator

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parcel-constraints-be/pkg/rdppf"
	"parcel-constraints-be/pkg/zoning"
)

func fr(text string) []rdppf.LocalisedText {
	return []rdppf.LocalisedText{{Language: "de", Text: "Deutsch"}, {Language: "fr", Text: text}}
}

func percent(raw string) rdppf.Number {
	var n rdppf.Number
	_ = json.Unmarshal([]byte(raw), &n)
	return n
}

func TestLocate(t *testing.T) {
	tests := []struct {
		name       string
		extract    *rdppf.Extract
		wantLabel  string
		wantOrigin Origin
	}{
		{
			name: "full coverage restriction",
			extract: &rdppf.Extract{Extract: rdppf.ExtractBody{
				RealEstate: rdppf.RealEstate{RestrictionOnLandownership: []rdppf.Restriction{
					{LegendText: fr("Zone à protéger partielle"), PartInPercent: percent(`40`)},
					{LegendText: fr("ZONE 18/3 Zone des villas familiales 0.30 (3)"), PartInPercent: percent(`100`)},
				}},
				ConcernedTheme: []rdppf.Theme{{Text: fr("Plans d'affectation")}},
			}},
			wantLabel:  "ZONE 18/3 Zone des villas familiales 0.30 (3)",
			wantOrigin: OriginRestriction,
		},
		{
			name: "string percentage and secteur keyword",
			extract: &rdppf.Extract{Extract: rdppf.ExtractBody{
				RealEstate: rdppf.RealEstate{RestrictionOnLandownership: []rdppf.Restriction{
					{LegendText: fr("Secteur centre 2"), Part: percent(`"100 %"`)},
				}},
			}},
			wantLabel:  "Secteur centre 2",
			wantOrigin: OriginRestriction,
		},
		{
			name: "non zone legend falls back to theme",
			extract: &rdppf.Extract{Extract: rdppf.ExtractBody{
				RealEstate: rdppf.RealEstate{RestrictionOnLandownership: []rdppf.Restriction{
					{LegendText: fr("Degré de sensibilité au bruit II"), PartInPercent: percent(`100`)},
				}},
				ConcernedTheme: []rdppf.Theme{{Text: fr("Cadastre des sites pollués")}, {Text: fr("Plans d'affectation")}},
			}},
			wantLabel:  "Plans d'affectation",
			wantOrigin: OriginTheme,
		},
		{
			name: "partial coverage is ignored",
			extract: &rdppf.Extract{Extract: rdppf.ExtractBody{
				RealEstate: rdppf.RealEstate{RestrictionOnLandownership: []rdppf.Restriction{
					{LegendText: fr("Zone village 3"), PartInPercent: percent(`55.2`)},
				}},
			}},
		},
		{
			name: "only german legend",
			extract: &rdppf.Extract{Extract: rdppf.ExtractBody{
				RealEstate: rdppf.RealEstate{RestrictionOnLandownership: []rdppf.Restriction{
					{LegendText: []rdppf.LocalisedText{{Language: "de", Text: "Wohnzone W2"}}, PartInPercent: percent(`100`)},
				}},
			}},
		},
		{name: "empty extract", extract: &rdppf.Extract{}},
		{name: "nil extract"},
	}

	l := New(nil, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loc := l.Locate(tt.extract)
			if tt.wantLabel == "" {
				assert.Nil(t, loc.Zone)
				assert.Equal(t, OriginNone, loc.Origin)
				return
			}
			require.NotNil(t, loc.Zone)
			assert.Equal(t, tt.wantLabel, loc.Zone.RawLabel)
			assert.Equal(t, tt.wantOrigin, loc.Origin)
		})
	}
}

func TestLocateParsesDescriptor(t *testing.T) {
	ext := &rdppf.Extract{Extract: rdppf.ExtractBody{
		RealEstate: rdppf.RealEstate{RestrictionOnLandownership: []rdppf.Restriction{
			{LegendText: fr("ZONE 18/3 Zone des villas familiales 0.30 (3)"), PartInPercent: percent(`"100%"`)},
		}},
	}}

	loc := New(nil, nil).Locate(ext)
	require.NotNil(t, loc.Zone)
	assert.Equal(t, "18/3", loc.Zone.ZoneNumber)
	assert.Equal(t, "18", loc.Zone.ParentZone)
	assert.Equal(t, zoning.ZoneTypeVilla, loc.Zone.ZoneType)
}

func TestCandidates(t *testing.T) {
	ext := &rdppf.Extract{Extract: rdppf.ExtractBody{
		ConcernedTheme: []rdppf.Theme{{Text: fr("Plans d'affectation")}},
		RealEstate: rdppf.RealEstate{
			RestrictionOnLandownership: []rdppf.Restriction{
				{LegendText: fr("Indice d'utilisation 0.5")},
				{LegendText: fr("Distance à la forêt 10 m")},
				{LegendText: fr("Hauteur maximale 12 m")},
				{LegendText: fr("Surface de la parcelle")},
				{LegendText: fr("  ")},
				{LegendText: fr("Degré de sensibilité au bruit II")},
			},
			Description: fr("Parcelle bâtie"),
		},
	}}

	got := New(nil, nil).Candidates(ext)
	require.Len(t, got, 7)

	want := []struct {
		kind     zoning.CandidateKind
		category zoning.Category
		tag      string
	}{
		{zoning.CandidateTheme, zoning.CategoryZone, "ConcernedTheme"},
		{zoning.CandidateRestriction, zoning.CategoryIndice, "RestrictionOnLandownership"},
		{zoning.CandidateRestriction, zoning.CategoryDistance, "RestrictionOnLandownership"},
		{zoning.CandidateRestriction, zoning.CategoryHauteur, "RestrictionOnLandownership"},
		{zoning.CandidateRestriction, zoning.CategorySurface, "RestrictionOnLandownership"},
		{zoning.CandidateRestriction, zoning.CategoryGeneral, "RestrictionOnLandownership"},
		{zoning.CandidateDescription, zoning.CategoryGeneral, "RealEstate"},
	}
	for i, w := range want {
		assert.Equal(t, w.kind, got[i].Kind, got[i].Text)
		assert.Equal(t, w.category, got[i].Category, got[i].Text)
		assert.Equal(t, w.tag, got[i].SourceTag, got[i].Text)
	}

	assert.Empty(t, New(nil, nil).Candidates(nil))
}
