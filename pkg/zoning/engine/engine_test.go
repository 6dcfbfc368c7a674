package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parcel-constraints-be/pkg/zoning"
	"parcel-constraints-be/pkg/zoning/vocabulary"
	"parcel-constraints-be/pkg/zoning/search"
)

const villaLabel = "ZONE 18/3 Zone des villas familiales 0.30 (3)"

type stubBackend struct {
	mu      sync.Mutex
	calls   int
	answer  func(query string) ([]string, error)
	queries []string
}

func (b *stubBackend) Search(_ context.Context, _ string, query string, _ int) ([]string, error) {
	b.mu.Lock()
	b.calls++
	b.queries = append(b.queries, query)
	b.mu.Unlock()
	if b.answer == nil {
		return nil, nil
	}
	return b.answer(query)
}

func (b *stubBackend) callCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

func newEngine(backend search.Backend) *Engine {
	orch := search.NewOrchestrator(backend, nil, nil, search.DefaultConfig(), nil)
	return New(orch, nil, DefaultConfig(), nil)
}

func zonePtr(label string) *zoning.ZoneDescriptor {
	z := vocabulary.ParseZone(label)
	return &z
}

func TestExtractConstraintsZoneLabelOnly(t *testing.T) {
	e := newEngine(&stubBackend{})

	res, err := e.ExtractConstraints(context.Background(), "Vétroz", zonePtr(villaLabel), nil, zoning.PolicyZoneFirst)
	require.NoError(t, err)

	flat := res.Schema.Flatten()
	assert.Equal(t, "0.30", flat["indice_utilisation"])
	assert.Equal(t, "-", flat["hauteur_maximale"])
	assert.Equal(t, "1 contrainte(s) extraite(s) du règlement communal pour la zone "+villaLabel, res.Summary)
	assert.InDelta(t, 0.9, res.Confidence, 1e-9)
}

func TestExtractConstraintsNothingFound(t *testing.T) {
	e := newEngine(&stubBackend{})

	for _, policy := range []zoning.Policy{zoning.PolicyZoneFirst, zoning.PolicyRegulationFirst} {
		t.Run(string(policy)+" without zone", func(t *testing.T) {
			res, err := e.ExtractConstraints(context.Background(), "Sion", nil, nil, policy)
			require.NoError(t, err)
			assert.Nil(t, res.Zone)
			assert.Zero(t, res.Schema.ResolvedCount())
			assert.Equal(t, "Aucune contrainte spécifique trouvée dans le règlement pour la zone inconnue", res.Summary)
		})

		t.Run(string(policy)+" with bare zone", func(t *testing.T) {
			res, err := e.ExtractConstraints(context.Background(), "Sion", zonePtr("ZONE 4 Zone mixte"), nil, policy)
			require.NoError(t, err)
			for key, v := range res.Schema.Flatten() {
				if key == "passages_generaux" {
					assert.Empty(t, v)
					continue
				}
				assert.Equal(t, "-", v, key)
			}
			assert.True(t, strings.HasPrefix(res.Summary, "Aucune contrainte"))
		})
	}
}

func TestExtractConstraintsValidation(t *testing.T) {
	e := newEngine(&stubBackend{})

	_, err := e.ExtractConstraints(context.Background(), "Sion", zonePtr(villaLabel), nil, zoning.Policy("both"))
	assert.ErrorIs(t, err, zoning.ErrInvalidPolicy)

	_, err = e.ExtractConstraints(context.Background(), "  ", zonePtr(villaLabel), nil, zoning.PolicyZoneFirst)
	assert.ErrorIs(t, err, zoning.ErrEmptyMunicipality)
}

func TestFailingStrategyDoesNotStopLaterOnes(t *testing.T) {
	backend := &stubBackend{answer: func(query string) ([]string, error) {
		switch {
		case strings.HasPrefix(query, "villa ") || query == "zone villa":
			return nil, errors.New("backend timeout")
		case query == "hauteur":
			return []string{"La hauteur maximale des bâtiments est limitée à 9 m dans la zone des villas."}, nil
		case query == "hauteur maximum":
			return []string{"Les places de parc sont aménagées sur le fonds privé selon le plan communal."}, nil
		}
		return nil, nil
	}}
	e := newEngine(backend)

	passages, err := e.Retrieve(context.Background(), "Vétroz", vocabulary.ParseZone(villaLabel), "hauteur", 5)
	require.NoError(t, err)
	require.Len(t, passages, 2)
	assert.Contains(t, passages[0], "9 m")
	assert.Contains(t, passages[1], "places de parc")
}

func TestExtractConstraintsUsesCache(t *testing.T) {
	backend := &stubBackend{answer: func(query string) ([]string, error) {
		return []string{fmt.Sprintf("Passage trouvé pour « %s » dans le règlement communal des constructions.", query)}, nil
	}}
	e := newEngine(backend)
	ctx := context.Background()

	_, err := e.ExtractConstraints(ctx, "Vétroz", zonePtr(villaLabel), nil, zoning.PolicyRegulationFirst)
	require.NoError(t, err)
	first := backend.callCount()
	require.Positive(t, first)
	assert.Positive(t, e.CacheStats().Entries)

	_, err = e.ExtractConstraints(ctx, "vétroz", zonePtr(villaLabel), nil, zoning.PolicyRegulationFirst)
	require.NoError(t, err)
	assert.Equal(t, first, backend.callCount())

	e.ClearCache(ctx)
	assert.Zero(t, e.CacheStats().Entries)

	_, err = e.ExtractConstraints(ctx, "Vétroz", zonePtr(villaLabel), nil, zoning.PolicyRegulationFirst)
	require.NoError(t, err)
	assert.Equal(t, 2*first, backend.callCount())
}

func TestRegulationFirstPrefersPassages(t *testing.T) {
	backend := &stubBackend{answer: func(query string) ([]string, error) {
		if query == "hauteur maximum" {
			return []string{"Article 12: la hauteur maximale dans la zone 18/3 est de 10 m au faîte."}, nil
		}
		return nil, nil
	}}
	e := newEngine(backend)

	res, err := e.ExtractConstraints(context.Background(), "Vétroz", zonePtr(villaLabel), nil, zoning.PolicyRegulationFirst)
	require.NoError(t, err)

	hauteur := res.Schema.Get(zoning.SlotHauteurMaximale)
	assert.Equal(t, "10 m", hauteur.Value)
	assert.Equal(t, zoning.SourceRegulationText, hauteur.Source)
	assert.Equal(t, "-", res.Schema.Get(zoning.SlotIndiceUtilisation).Value)
}
