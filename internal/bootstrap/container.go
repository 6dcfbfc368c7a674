package bootstrap

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"parcel-constraints-be/internal/config"
	"parcel-constraints-be/internal/controller"
	"parcel-constraints-be/internal/pkg/logger"
	"parcel-constraints-be/internal/repository/implementation"
	"parcel-constraints-be/internal/repository/memory"
	"parcel-constraints-be/internal/repository/unitofwork"
	"parcel-constraints-be/internal/service"
	"parcel-constraints-be/pkg/database"
	"parcel-constraints-be/pkg/embedding"
	"parcel-constraints-be/pkg/embedding/jina"
	"parcel-constraints-be/pkg/events"
	"parcel-constraints-be/pkg/rdppf"
	"parcel-constraints-be/pkg/zoning"
	"parcel-constraints-be/pkg/zoning/engine"
	"parcel-constraints-be/pkg/zoning/report"
	"parcel-constraints-be/pkg/zoning/search"
	"parcel-constraints-be/pkg/zoning/vocabulary"

	pktNats "parcel-constraints-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	Logger logger.ILogger
	Engine *engine.Engine

	// Controllers
	ConstraintController controller.IConstraintController
	IngestController     controller.IIngestController
	MonitoringController controller.IMonitoringController

	// Services (the CLI calls them directly)
	ConstraintService service.IConstraintService
	ConsumerService   service.IConsumerService
	IngestService     service.IIngestService

	pubSub  *gochannel.GoChannel
	natsPub *pktNats.Publisher
	rdb     *redis.Client
}

func NewContainer(db *gorm.DB, cfg *config.Config) (*Container, error) {
	// 1. Core Facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 16},
		watermillLogger,
	)

	// 3. Infrastructure
	embeddingProvider := newEmbeddingProvider(cfg.Ai)

	var publisher events.Publisher
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
	} else {
		publisher = natsPub
	}

	rdb := newRedisClient(cfg)

	vocab, err := vocabulary.Load(cfg.Engine.VocabularyFile)
	if err != nil {
		return nil, err
	}

	// 4. Zoning engine
	var cacheTier redis.UniversalClient
	if rdb != nil {
		cacheTier = rdb
	}
	retrievalCache := search.NewCache(search.CacheConfig{
		TTL:             cfg.Search.CacheTTL,
		MaxEntries:      cfg.Search.CacheMaxEntries,
		CleanupInterval: cfg.Search.CacheCleanupInterval,
		RedisPrefix:     cfg.Search.RedisKeyPrefix,
	}, cacheTier, sysLogger)

	backend := search.NewVectorBackend(
		embeddingProvider,
		implementation.NewRegulationChunkRepository(db),
		sysLogger,
	)
	backend.UnfilteredFallback = cfg.Search.UnfilteredFallback

	searchConfig := search.DefaultConfig()
	searchConfig.DefaultLimit = cfg.Search.DefaultLimit
	searchConfig.MaxLimit = cfg.Search.MaxLimit
	searchConfig.QueryTimeout = cfg.Search.QueryTimeout

	orchestrator := search.NewOrchestrator(backend, retrievalCache, vocab, searchConfig, sysLogger)
	zoningEngine := engine.New(orchestrator, vocab, engine.DefaultConfig(), sysLogger)

	rdppfClient, err := rdppf.NewClient(rdppf.ClientConfig{
		BaseURL:            cfg.Rdppf.BaseURL,
		Timeout:            cfg.Rdppf.Timeout,
		RequestsPerSecond:  cfg.Rdppf.RequestsPerSecond,
		Burst:              cfg.Rdppf.Burst,
		MunicipalitiesFile: cfg.Rdppf.MunicipalitiesFile,
	}, sysLogger)
	if err != nil {
		return nil, fmt.Errorf("legal extract client: %w", err)
	}

	defaultPolicy, err := zoning.ParsePolicy(cfg.Engine.DefaultPolicy)
	if err != nil {
		return nil, fmt.Errorf("ENGINE_DEFAULT_POLICY: %w", err)
	}

	// 5. Services
	constraintService := service.NewConstraintService(
		zoningEngine,
		rdppfClient,
		memory.NewExtractRepository(cfg.Rdppf.ExtractCacheTTL),
		uowFactory,
		publisher,
		report.NewBuilder(),
		defaultPolicy,
		sysLogger,
	)
	ingestService := service.NewIngestService(pubSub, cfg.App.IngestTopic, uowFactory, sysLogger)
	consumerService := service.NewConsumerService(
		pubSub,
		cfg.App.IngestTopic,
		uowFactory,
		embeddingProvider,
		publisher,
		sysLogger,
	)

	dbCheck := func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		return database.Ping(db.WithContext(ctx))
	}

	// 6. Controllers
	return &Container{
		Logger: sysLogger,
		Engine: zoningEngine,

		ConstraintController: controller.NewConstraintController(constraintService, cfg.App.JwtSecret),
		IngestController:     controller.NewIngestController(ingestService),
		MonitoringController: controller.NewMonitoringController(constraintService, sysLogger, dbCheck, cfg.App.JwtSecret),

		ConstraintService: constraintService,
		ConsumerService:   consumerService,
		IngestService:     ingestService,

		pubSub:  pubSub,
		natsPub: natsPub,
		rdb:     rdb,
	}, nil
}

func newEmbeddingProvider(cfg config.AIConfig) embedding.EmbeddingProvider {
	switch strings.ToLower(cfg.EmbeddingProvider) {
	case "jina":
		log.Printf("[INFO] Using Embedding Provider: JINA AI")
		return jina.NewJinaProvider(cfg.JinaKey)
	case "gemini":
		log.Printf("[INFO] Using Embedding Provider: GEMINI")
		return embedding.NewGeminiProvider(cfg.GoogleGeminiKey)
	default:
		log.Printf("[INFO] Using Embedding Provider: OLLAMA (%s)", cfg.OllamaModel)
		return embedding.NewOllamaProvider(cfg.OllamaBaseURL, cfg.OllamaModel)
	}
}

// newRedisClient returns nil unless the shared retrieval cache tier is
// enabled and reachable.
func newRedisClient(cfg *config.Config) *redis.Client {
	if !cfg.Search.RedisCacheEnabled {
		return nil
	}
	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{
			Addr: cfg.App.RedisURL,
		}
	}
	rdb := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis, retrieval cache stays local: %v", err)
		_ = rdb.Close()
		return nil
	}
	return rdb
}

// Close releases the bus, NATS and Redis connections and flushes the log.
func (c *Container) Close() {
	if c.pubSub != nil {
		_ = c.pubSub.Close()
	}
	if c.natsPub != nil {
		c.natsPub.Close()
	}
	if c.rdb != nil {
		_ = c.rdb.Close()
	}
	_ = c.Logger.Sync()
}
