package integration

import (
	"context"
	"log"
	"os"
	"testing"

	"parcel-constraints-be/internal/entity"
	"parcel-constraints-be/internal/model"
	"parcel-constraints-be/internal/repository/specification"
	"parcel-constraints-be/internal/repository/unitofwork"
	"parcel-constraints-be/pkg/database"
	"parcel-constraints-be/pkg/zoning"
	"parcel-constraints-be/pkg/zoning/vocabulary"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const embeddingDims = 768

func openDB(t *testing.T) *gorm.DB {
	t.Helper()
	if err := godotenv.Load("../../.env"); err != nil {
		log.Println("No .env file found, using system env")
	}

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		t.Skip("Skipping integration test: DB_CONNECTION_STRING not set")
	}

	db, err := database.NewGormDBFromDSN(dsn, false)
	require.NoError(t, err)
	require.NoError(t, db.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error)
	require.NoError(t, db.AutoMigrate(&model.RegulationChunk{}, &model.Analysis{}))
	return db
}

// axis returns a unit vector along dimension i.
func axis(i int) []float32 {
	v := make([]float32, embeddingDims)
	v[i] = 1
	return v
}

func TestRegulationChunkRepository(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()
	uow := unitofwork.NewRepositoryFactory(db).NewUnitOfWork(ctx)
	repo := uow.RegulationChunkRepository()

	municipality := "it-" + uuid.NewString()[:8]
	t.Cleanup(func() {
		_, _ = repo.DeleteByMunicipality(ctx, municipality)
	})

	chunks := []*entity.RegulationChunk{
		{Municipality: municipality, Article: "12", Zone: "18/3", Concepts: []string{"hauteur"}, Document: "hauteur maximale 8.5 m", EmbeddingValue: axis(0), ChunkIndex: 0},
		{Municipality: municipality, Article: "13", Zone: "18/3", Concepts: []string{"distance"}, Document: "distance minimale 5 m", EmbeddingValue: axis(1), ChunkIndex: 1},
	}
	require.NoError(t, repo.CreateBulk(ctx, chunks))

	t.Run("count by municipality", func(t *testing.T) {
		n, err := repo.Count(ctx, specification.ByMunicipality{Municipality: " " + municipality + " "}, specification.ByZone{Zone: "18/3"})
		require.NoError(t, err)
		assert.EqualValues(t, 2, n)
	})

	t.Run("nearest document first", func(t *testing.T) {
		docs, err := repo.SearchSimilarTexts(ctx, axis(1), municipality, 1)
		require.NoError(t, err)
		assert.Equal(t, []string{"distance minimale 5 m"}, docs)
	})

	t.Run("concepts round trip", func(t *testing.T) {
		found, err := repo.FindAll(ctx, specification.ByMunicipality{Municipality: municipality}, specification.OrderBy{Field: "chunk_index"})
		require.NoError(t, err)
		require.Len(t, found, 2)
		assert.Equal(t, []string{"hauteur"}, found[0].Concepts)
		assert.Len(t, found[0].EmbeddingValue, embeddingDims)
	})

	t.Run("listed municipality", func(t *testing.T) {
		names, err := repo.ListMunicipalities(ctx)
		require.NoError(t, err)
		assert.Contains(t, names, municipality)
	})

	t.Run("delete replaces", func(t *testing.T) {
		deleted, err := repo.DeleteByMunicipality(ctx, municipality)
		require.NoError(t, err)
		assert.EqualValues(t, 2, deleted)
	})
}

func TestAnalysisRepository(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()
	uow := unitofwork.NewRepositoryFactory(db).NewUnitOfWork(ctx)
	repo := uow.AnalysisRepository()

	zone := vocabulary.ParseZone("Zone villa 18/3")
	schema := zoning.NewSchema()
	schema.Set(zoning.SlotIndiceUtilisation, zoning.Slot{Value: "0.30", Source: zoning.SourceZoneLabel, Confidence: 0.9})

	record := &entity.Analysis{
		Id:           uuid.New(),
		Municipality: "sion",
		Parcel:       "it-" + uuid.NewString()[:8],
		Zone:         &zone,
		Policy:       string(zoning.PolicyZoneFirst),
		Candidates:   []zoning.ConstraintCandidate{},
		Schema:       schema,
		Summary:      "Zone villa 18/3",
		Confidence:   0.9,
		Success:      true,
	}
	require.NoError(t, repo.Create(ctx, record))
	t.Cleanup(func() {
		_ = repo.Delete(ctx, record.Id)
	})

	found, err := repo.FindOne(ctx, specification.ByID{ID: record.Id})
	require.NoError(t, err)
	require.NotNil(t, found.Zone)
	assert.Equal(t, "18/3", found.Zone.ZoneNumber)
	assert.Equal(t, "0.30", found.Schema.Get(zoning.SlotIndiceUtilisation).Value)

	filtered, err := repo.FindRecent(ctx, 5,
		specification.ByMunicipality{Municipality: "Sion"},
		specification.SuccessfulOnly{},
		specification.CreatedSince{Since: found.CreatedAt},
	)
	require.NoError(t, err)
	assert.NotEmpty(t, filtered)

	recent, err := repo.FindRecent(ctx, 5)
	require.NoError(t, err)
	require.NotEmpty(t, recent)
	assert.False(t, recent[0].CreatedAt.IsZero())
}
