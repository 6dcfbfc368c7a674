package service

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"parcel-constraints-be/internal/dto"
	"parcel-constraints-be/internal/entity"
	"parcel-constraints-be/internal/repository/contract"
	"parcel-constraints-be/internal/repository/memory"
	"parcel-constraints-be/internal/repository/specification"
	"parcel-constraints-be/internal/repository/unitofwork"
	"parcel-constraints-be/pkg/embedding"
	"parcel-constraints-be/pkg/events"
	"parcel-constraints-be/pkg/rdppf"
	"parcel-constraints-be/pkg/zoning"
	"parcel-constraints-be/pkg/zoning/engine"
	"parcel-constraints-be/pkg/zoning/report"
	"parcel-constraints-be/pkg/zoning/search"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const villaLabel = "ZONE 18/3 Zone des villas familiales 0.30 (3)"

// --- fakes ---

type fakeAnalysisRepo struct {
	mu        sync.Mutex
	records   []*entity.Analysis
	lastSpecs []specification.Specification
	err       error
}

func (r *fakeAnalysisRepo) Create(_ context.Context, a *entity.Analysis) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	a.CreatedAt = time.Now()
	r.records = append(r.records, a)
	return nil
}

func (r *fakeAnalysisRepo) FindOne(_ context.Context, specs ...specification.Specification) (*entity.Analysis, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, spec := range specs {
		if byID, ok := spec.(specification.ByID); ok {
			for _, a := range r.records {
				if a.Id == byID.ID {
					return a, nil
				}
			}
		}
	}
	return nil, nil
}

func (r *fakeAnalysisRepo) FindAll(context.Context, ...specification.Specification) ([]*entity.Analysis, error) {
	return r.records, nil
}

func (r *fakeAnalysisRepo) FindRecent(_ context.Context, limit int, specs ...specification.Specification) ([]*entity.Analysis, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastSpecs = specs
	out := []*entity.Analysis{}
	for i := len(r.records) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, r.records[i])
	}
	return out, nil
}

func (r *fakeAnalysisRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, a := range r.records {
		if a.Id == id {
			r.records = append(r.records[:i], r.records[i+1:]...)
			break
		}
	}
	return nil
}

type fakeChunkRepo struct {
	stored    map[string][]*entity.RegulationChunk
	createErr error
}

func (r *fakeChunkRepo) CreateBulk(_ context.Context, chunks []*entity.RegulationChunk) error {
	if r.createErr != nil {
		return r.createErr
	}
	for _, c := range chunks {
		r.stored[c.Municipality] = append(r.stored[c.Municipality], c)
	}
	return nil
}

func (r *fakeChunkRepo) DeleteByMunicipality(_ context.Context, municipality string) (int64, error) {
	n := int64(len(r.stored[municipality]))
	delete(r.stored, municipality)
	return n, nil
}

// FindAll understands the municipality and zone specifications only.
func (r *fakeChunkRepo) FindAll(_ context.Context, specs ...specification.Specification) ([]*entity.RegulationChunk, error) {
	var municipality, zone string
	for _, spec := range specs {
		switch s := spec.(type) {
		case specification.ByMunicipality:
			municipality = strings.ToLower(strings.TrimSpace(s.Municipality))
		case specification.ByZone:
			zone = s.Zone
		}
	}
	out := []*entity.RegulationChunk{}
	for m, chunks := range r.stored {
		if municipality != "" && m != municipality {
			continue
		}
		for _, c := range chunks {
			if zone == "" || c.Zone == zone {
				out = append(out, c)
			}
		}
	}
	return out, nil
}

func (r *fakeChunkRepo) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	chunks, _ := r.FindAll(ctx, specs...)
	return int64(len(chunks)), nil
}

func (r *fakeChunkRepo) SearchSimilarTexts(context.Context, []float32, string, int) ([]string, error) {
	return nil, nil
}

func (r *fakeChunkRepo) ListMunicipalities(context.Context) ([]string, error) {
	names := make([]string, 0, len(r.stored))
	for m := range r.stored {
		names = append(names, m)
	}
	sort.Strings(names)
	return names, nil
}

type fakeUoW struct {
	analyses  *fakeAnalysisRepo
	chunks    *fakeChunkRepo
	commits   int
	rollbacks int
	inTx      bool
}

func (u *fakeUoW) Begin(context.Context) error { u.inTx = true; return nil }

func (u *fakeUoW) Commit() error {
	if !u.inTx {
		return errors.New("no transaction")
	}
	u.inTx = false
	u.commits++
	return nil
}

func (u *fakeUoW) Rollback() error {
	if !u.inTx {
		return errors.New("no transaction")
	}
	u.inTx = false
	u.rollbacks++
	return nil
}

func (u *fakeUoW) RegulationChunkRepository() contract.RegulationChunkRepository { return u.chunks }
func (u *fakeUoW) AnalysisRepository() contract.AnalysisRepository               { return u.analyses }

type fakeFactory struct{ uow *fakeUoW }

func (f *fakeFactory) NewUnitOfWork(context.Context) unitofwork.UnitOfWork { return f.uow }

func newFakeFactory() *fakeFactory {
	return &fakeFactory{uow: &fakeUoW{
		analyses: &fakeAnalysisRepo{},
		chunks:   &fakeChunkRepo{stored: map[string][]*entity.RegulationChunk{}},
	}}
}

type fakeFetcher struct {
	calls int
	ext   *rdppf.Extract
	err   error
}

func (f *fakeFetcher) Fetch(context.Context, string, string) (*rdppf.Extract, error) {
	f.calls++
	return f.ext, f.err
}

type fakePublisher struct {
	events []events.Event
}

func (p *fakePublisher) Publish(_ context.Context, e events.Event) error {
	p.events = append(p.events, e)
	return nil
}

type fakeEmbedder struct {
	failOn string
}

func (e *fakeEmbedder) Generate(_ context.Context, text string, _ string) (*embedding.EmbeddingResponse, error) {
	if e.failOn != "" && strings.Contains(text, e.failOn) {
		return nil, errors.New("embedding unavailable")
	}
	return &embedding.EmbeddingResponse{Embedding: embedding.EmbeddingResponseEmbedding{Values: []float32{1, 0, 0}}}, nil
}

func villaExtract() *rdppf.Extract {
	return &rdppf.Extract{Extract: rdppf.ExtractBody{
		RealEstate: rdppf.RealEstate{
			Number: "1234",
			Area:   rdppf.Number{Raw: "812", Value: 812, Valid: true},
			RestrictionOnLandownership: []rdppf.Restriction{
				{
					LegendText:    []rdppf.LocalisedText{{Language: "fr", Text: villaLabel}},
					PartInPercent: rdppf.Number{Raw: "100", Value: 100, Valid: true},
				},
				{
					LegendText:    []rdppf.LocalisedText{{Language: "fr", Text: "Degré de sensibilité au bruit II"}},
					PartInPercent: rdppf.Number{Raw: "100", Value: 100, Valid: true},
				},
			},
		},
	}}
}

func newTestEngine(answer func(query string) []string) *engine.Engine {
	backend := search.BackendFunc(func(_ context.Context, _ string, query string, _ int) ([]string, error) {
		if answer == nil {
			return nil, nil
		}
		return answer(query), nil
	})
	orch := search.NewOrchestrator(backend, nil, nil, search.DefaultConfig(), nil)
	return engine.New(orch, nil, engine.DefaultConfig(), nil)
}

func fixedClock() time.Time { return time.Date(2025, 8, 4, 9, 0, 0, 0, time.UTC) }

// --- constraint service ---

func TestAnalyze(t *testing.T) {
	fetcher := &fakeFetcher{ext: villaExtract()}
	factory := newFakeFactory()
	pub := &fakePublisher{}
	svc := NewConstraintService(
		newTestEngine(func(q string) []string {
			if strings.Contains(q, "hauteur") {
				return []string{"Dans la zone 18/3, la hauteur maximale est de 8.5 m à la corniche."}
			}
			return nil
		}),
		fetcher,
		memory.NewExtractRepository(time.Minute),
		factory,
		pub,
		report.NewBuilder().WithClock(fixedClock),
		zoning.PolicyZoneFirst,
		nil,
	)

	res, err := svc.Analyze(context.Background(), &dto.AnalyzeRequest{Municipality: "Vétroz", Parcel: "1234"})
	require.NoError(t, err)

	require.NotNil(t, res.Zone)
	assert.Equal(t, villaLabel, res.Zone.RawLabel)
	assert.Equal(t, "restriction", res.ZoneOrigin)
	assert.Equal(t, "zone-first", res.Policy)
	assert.Equal(t, "0.30", res.Schema["indice_utilisation"])
	assert.Equal(t, "8.5 m", res.Schema["hauteur_maximale"])
	assert.Equal(t, zoning.SourceZoneLabel, res.Slots[zoning.SlotIndiceUtilisation].Source)
	assert.Contains(t, res.Report, "Surface : 812 m2")
	assert.Contains(t, res.Report, "Degré de sensibilité au bruit II")
	assert.Contains(t, res.Summary, "2 contrainte(s)")

	records := factory.uow.analyses.records
	require.Len(t, records, 1)
	assert.True(t, records[0].Success)
	assert.Equal(t, "vétroz", records[0].Municipality)
	assert.Equal(t, res.Id, records[0].Id)

	require.Len(t, pub.events, 1)
	assert.Equal(t, events.TypeAnalysisCompleted, pub.events[0].EventType())
	assert.Equal(t, 2, pub.events[0].Payload()["resolved"])

	// second run is served from the extract cache
	_, err = svc.Analyze(context.Background(), &dto.AnalyzeRequest{Municipality: "vétroz", Parcel: "1234", Policy: "Regulation-First"})
	require.NoError(t, err)
	assert.Equal(t, 1, fetcher.calls)
	assert.Equal(t, 1, svc.CacheStats().ExtractEntries)

	recent, err := svc.RecentAnalyses(context.Background(), &dto.RecentAnalysesRequest{})
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "regulation-first", recent[0].Policy)
	assert.Equal(t, villaLabel, recent[1].Zone)

	_, err = svc.RecentAnalyses(context.Background(), &dto.RecentAnalysesRequest{Municipality: "Vétroz", SuccessOnly: true, SinceHours: 24})
	require.NoError(t, err)
	specs := factory.uow.analyses.lastSpecs
	require.Len(t, specs, 3)
	assert.Equal(t, specification.ByMunicipality{Municipality: "Vétroz"}, specs[0])
	assert.Equal(t, specification.SuccessfulOnly{}, specs[1])
	assert.IsType(t, specification.CreatedSince{}, specs[2])

	detail, err := svc.GetAnalysis(context.Background(), res.Id)
	require.NoError(t, err)
	assert.Equal(t, "8.5 m", detail.Slots[zoning.SlotHauteurMaximale].Value)
	assert.Equal(t, "18/3", detail.ZoneDescriptor.ZoneNumber)

	require.NoError(t, svc.DeleteAnalysis(context.Background(), res.Id))
	assert.Zero(t, svc.CacheStats().ExtractEntries)
	_, err = svc.GetAnalysis(context.Background(), res.Id)
	assert.ErrorIs(t, err, ErrAnalysisNotFound)
	assert.ErrorIs(t, svc.DeleteAnalysis(context.Background(), uuid.New()), ErrAnalysisNotFound)
}

func TestAnalyzeErrors(t *testing.T) {
	tests := []struct {
		name    string
		req     dto.AnalyzeRequest
		fetcher *fakeFetcher
		wantErr error
		stored  bool
	}{
		{
			name:    "invalid policy",
			req:     dto.AnalyzeRequest{Municipality: "Sion", Parcel: "1", Policy: "hybrid"},
			fetcher: &fakeFetcher{ext: villaExtract()},
			wantErr: zoning.ErrInvalidPolicy,
		},
		{
			name:    "blank municipality",
			req:     dto.AnalyzeRequest{Municipality: "  ", Parcel: "1"},
			fetcher: &fakeFetcher{ext: villaExtract()},
			wantErr: zoning.ErrEmptyMunicipality,
		},
		{
			name:    "extract not found is recorded",
			req:     dto.AnalyzeRequest{Municipality: "Sion", Parcel: "9"},
			fetcher: &fakeFetcher{err: rdppf.ErrExtractNotFound},
			wantErr: rdppf.ErrExtractNotFound,
			stored:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			factory := newFakeFactory()
			svc := NewConstraintService(newTestEngine(nil), tt.fetcher, nil, factory, nil, nil, "", nil)

			_, err := svc.Analyze(context.Background(), &tt.req)
			assert.ErrorIs(t, err, tt.wantErr)

			records := factory.uow.analyses.records
			if !tt.stored {
				assert.Empty(t, records)
				return
			}
			require.Len(t, records, 1)
			assert.False(t, records[0].Success)
			assert.NotEmpty(t, records[0].ErrorMessage)
		})
	}
}

func TestAnalyzeInlineExtractWithoutZone(t *testing.T) {
	fetcher := &fakeFetcher{err: errors.New("must not be called")}
	factory := newFakeFactory()
	factory.uow.analyses.err = errors.New("database down")
	svc := NewConstraintService(newTestEngine(nil), fetcher, nil, factory, nil, nil, zoning.PolicyRegulationFirst, nil)

	res, err := svc.Analyze(context.Background(), &dto.AnalyzeRequest{
		Municipality: "Sion",
		Parcel:       "77",
		Extract:      &rdppf.Extract{},
	})
	require.NoError(t, err)
	assert.Nil(t, res.Zone)
	assert.Equal(t, "regulation-first", res.Policy)
	assert.Equal(t, "Aucune contrainte spécifique trouvée dans le règlement pour la zone inconnue", res.Summary)
	assert.Equal(t, 0, fetcher.calls)
	assert.NotNil(t, res.Candidates)
}

func TestRetrieve(t *testing.T) {
	svc := NewConstraintService(newTestEngine(func(q string) []string {
		return []string{
			"Article 12 Zone 18/3 : les constructions respectent les prescriptions générales.",
			"article 12   zone 18/3 : les constructions respectent les prescriptions générales.",
		}
	}), nil, nil, nil, nil, nil, "", nil)

	res, err := svc.Retrieve(context.Background(), &dto.RetrieveRequest{Municipality: "Sion", ZoneLabel: villaLabel, Limit: 5})
	require.NoError(t, err)
	assert.Equal(t, "18/3", res.Zone.ZoneNumber)
	require.Len(t, res.Passages, 1)
	assert.True(t, strings.HasPrefix(res.Passages[0], "Article 12 Zone 18/3"))

	_, err = svc.Retrieve(context.Background(), &dto.RetrieveRequest{Municipality: "Sion", ZoneLabel: villaLabel, Limit: 21})
	assert.ErrorIs(t, err, zoning.ErrInvalidLimit)

	recent, err := svc.RecentAnalyses(context.Background(), &dto.RecentAnalysesRequest{Limit: 5})
	require.NoError(t, err)
	assert.Empty(t, recent)
}

func TestLocate(t *testing.T) {
	svc := NewConstraintService(newTestEngine(nil), nil, nil, nil, nil, nil, "", nil)

	res, err := svc.Locate(context.Background(), &dto.LocateRequest{Extract: villaExtract()})
	require.NoError(t, err)
	require.NotNil(t, res.Zone)
	assert.Equal(t, zoning.ZoneTypeVilla, res.Zone.ZoneType)
	assert.Len(t, res.Candidates, 2)
}

// --- ingestion ---

const sampleRegulation = `Article 1 Champ d'application
Le présent règlement s'applique à l'ensemble du territoire communal de Sion.

Article 2 Zone 18/3 Zone des villas familiales
La hauteur maximale des bâtiments est fixée à 8.5 m. L'indice d'utilisation est de 0.30.`

func TestIngestReplacesChunks(t *testing.T) {
	factory := newFakeFactory()
	pub := &fakePublisher{}
	svc := NewConsumerService(nil, "topic", factory, &fakeEmbedder{}, pub, nil)

	res, err := svc.Ingest(context.Background(), " Sion ", sampleRegulation)
	require.NoError(t, err)
	assert.Equal(t, "sion", res.Municipality)
	assert.Equal(t, 2, res.Chunks)
	assert.Zero(t, res.Replaced)

	stored := factory.uow.chunks.stored["sion"]
	require.Len(t, stored, 2)
	assert.Equal(t, "2", stored[1].Article)
	assert.Equal(t, "18/3", stored[1].Zone)
	assert.Contains(t, stored[1].Concepts, "hauteur")

	res, err = svc.Ingest(context.Background(), "sion", sampleRegulation)
	require.NoError(t, err)
	assert.EqualValues(t, 2, res.Replaced)
	assert.Len(t, factory.uow.chunks.stored["sion"], 2)
	assert.Equal(t, 2, factory.uow.commits)

	require.Len(t, pub.events, 2)
	assert.Equal(t, events.TypeRegulationIngested, pub.events[1].EventType())

	catalogue := NewIngestService(nil, "topic", factory, nil)
	coverage, err := catalogue.Coverage(context.Background(), &dto.RegulationCoverageRequest{})
	require.NoError(t, err)
	assert.Equal(t, []*dto.RegulationCoverageResponse{{Municipality: "sion", Chunks: 2}}, coverage)

	coverage, err = catalogue.Coverage(context.Background(), &dto.RegulationCoverageRequest{Zone: "99"})
	require.NoError(t, err)
	assert.Empty(t, coverage)

	chunks, err := catalogue.Chunks(context.Background(), "Sion", &dto.RegulationChunksRequest{Zone: "18/3"})
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.Equal(t, "18/3", c.Zone)
	}
}

func TestEnqueuePublishesPayload(t *testing.T) {
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	defer pubSub.Close()

	messages, err := pubSub.Subscribe(context.Background(), "regulations")
	require.NoError(t, err)

	svc := NewIngestService(pubSub, "regulations", nil, nil)
	res, err := svc.Enqueue(context.Background(), &dto.IngestRegulationRequest{Municipality: " Vétroz ", Text: sampleRegulation})
	require.NoError(t, err)
	assert.Equal(t, "vétroz", res.Municipality)

	select {
	case msg := <-messages:
		msg.Ack()
		assert.Equal(t, res.MessageId, msg.UUID)
		var payload dto.PublishIngestRegulationMessage
		require.NoError(t, json.Unmarshal(msg.Payload, &payload))
		assert.Equal(t, "vétroz", payload.Municipality)
		assert.Equal(t, sampleRegulation, payload.Text)
	case <-time.After(2 * time.Second):
		t.Fatal("no message published")
	}

	coverage, err := svc.Coverage(context.Background(), &dto.RegulationCoverageRequest{})
	require.NoError(t, err)
	assert.Empty(t, coverage)
}

func TestIngestFailures(t *testing.T) {
	t.Run("embedding error leaves store untouched", func(t *testing.T) {
		factory := newFakeFactory()
		svc := NewConsumerService(nil, "topic", factory, &fakeEmbedder{failOn: "hauteur"}, nil, nil)

		_, err := svc.Ingest(context.Background(), "sion", sampleRegulation)
		assert.Error(t, err)
		assert.Empty(t, factory.uow.chunks.stored)
		assert.Zero(t, factory.uow.commits)
	})

	t.Run("store error rolls back", func(t *testing.T) {
		factory := newFakeFactory()
		factory.uow.chunks.createErr = errors.New("insert failed")
		svc := NewConsumerService(nil, "topic", factory, &fakeEmbedder{}, nil, nil)

		_, err := svc.Ingest(context.Background(), "sion", sampleRegulation)
		assert.ErrorContains(t, err, "insert failed")
		assert.Equal(t, 1, factory.uow.rollbacks)
		assert.Zero(t, factory.uow.commits)
	})

	t.Run("text without chunks keeps stored corpus", func(t *testing.T) {
		factory := newFakeFactory()
		previous := &entity.RegulationChunk{Municipality: "sion", Document: "Article 1 ancien texte"}
		factory.uow.chunks.stored["sion"] = []*entity.RegulationChunk{previous}
		svc := NewConsumerService(nil, "topic", factory, &fakeEmbedder{}, nil, nil)

		_, err := svc.Ingest(context.Background(), "sion", "Trop court.\n\nAussi court.")
		assert.ErrorIs(t, err, ErrEmptyRegulation)
		assert.Equal(t, []*entity.RegulationChunk{previous}, factory.uow.chunks.stored["sion"])
		assert.Zero(t, factory.uow.commits)
		assert.Zero(t, factory.uow.rollbacks)
	})

	t.Run("blank municipality", func(t *testing.T) {
		svc := NewConsumerService(nil, "topic", newFakeFactory(), &fakeEmbedder{}, nil, nil)
		_, err := svc.Ingest(context.Background(), " ", sampleRegulation)
		assert.Error(t, err)
	})
}
