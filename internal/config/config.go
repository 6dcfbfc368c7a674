package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Ai       AIConfig
	Search   SearchConfig
	Rdppf    RdppfConfig
	Engine   EngineConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
	JwtSecret          string
	OtelEnabled        bool
	IngestTopic        string
}

type DatabaseConfig struct {
	Connection string
}

type AIConfig struct {
	EmbeddingProvider string // "gemini", "ollama" or "jina"
	OllamaBaseURL     string
	OllamaModel       string
	GoogleGeminiKey   string
	JinaKey           string
}

type SearchConfig struct {
	DefaultLimit         int
	MaxLimit             int
	CacheTTL             time.Duration // 0 = entries never expire
	CacheMaxEntries      int
	CacheCleanupInterval time.Duration
	RedisCacheEnabled    bool
	RedisKeyPrefix       string
	QueryTimeout         time.Duration
	UnfilteredFallback   bool
}

type RdppfConfig struct {
	BaseURL            string
	Timeout            time.Duration
	RequestsPerSecond  float64
	Burst              int
	MunicipalitiesFile string
	ExtractCacheTTL    time.Duration
}

type EngineConfig struct {
	DefaultPolicy  string
	VocabularyFile string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
			JwtSecret:          getEnv("JWT_SECRET", ""),
			OtelEnabled:        getEnvAsBool("OTEL_ENABLED", false),
			IngestTopic:        getEnv("INGEST_TOPIC_NAME", "INGEST_REGULATION"),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Ai: AIConfig{
			EmbeddingProvider: getEnv("EMBEDDING_PROVIDER", "ollama"),
			OllamaBaseURL:     getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			OllamaModel:       getEnv("OLLAMA_EMBEDDING_MODEL", "nomic-embed-text"),
			GoogleGeminiKey:   getEnv("GOOGLE_GEMINI_API_KEY", ""),
			JinaKey:           getEnv("JINA_API_KEY", ""),
		},
		Search: SearchConfig{
			DefaultLimit:         getEnvAsInt("SEARCH_DEFAULT_LIMIT", 5),
			MaxLimit:             getEnvAsInt("SEARCH_MAX_LIMIT", 20),
			CacheTTL:             getEnvAsDuration("SEARCH_CACHE_TTL", 0),
			CacheMaxEntries:      getEnvAsInt("SEARCH_CACHE_MAX_ENTRIES", 1000),
			CacheCleanupInterval: getEnvAsDuration("SEARCH_CACHE_CLEANUP_INTERVAL", 10*time.Minute),
			RedisCacheEnabled:    getEnvAsBool("SEARCH_REDIS_CACHE_ENABLED", false),
			RedisKeyPrefix:       getEnv("SEARCH_REDIS_KEY_PREFIX", "zoning:retrieval:"),
			QueryTimeout:         getEnvAsDuration("SEARCH_QUERY_TIMEOUT", 10*time.Second),
			UnfilteredFallback:   getEnvAsBool("SEARCH_UNFILTERED_FALLBACK", false),
		},
		Rdppf: RdppfConfig{
			BaseURL:            getEnv("RDPPF_BASE_URL", "https://rdppfvs.geopol.ch"),
			Timeout:            getEnvAsDuration("RDPPF_TIMEOUT", 60*time.Second),
			RequestsPerSecond:  getEnvAsFloat("RDPPF_REQUESTS_PER_SECOND", 2),
			Burst:              getEnvAsInt("RDPPF_BURST", 4),
			MunicipalitiesFile: getEnv("RDPPF_MUNICIPALITIES_FILE", ""),
			ExtractCacheTTL:    getEnvAsDuration("RDPPF_EXTRACT_CACHE_TTL", time.Hour),
		},
		Engine: EngineConfig{
			DefaultPolicy:  getEnv("ENGINE_DEFAULT_POLICY", "zone-first"),
			VocabularyFile: getEnv("ENGINE_VOCABULARY_FILE", ""),
		},
	}
}

// Validate rejects settings the service cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if err := c.Search.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Rdppf.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("RDPPF_TIMEOUT must be positive, got %s", c.Rdppf.Timeout))
	}
	if c.Rdppf.RequestsPerSecond <= 0 || c.Rdppf.Burst < 1 {
		errs = append(errs, errors.New("RDPPF_REQUESTS_PER_SECOND and RDPPF_BURST must be positive"))
	}
	switch strings.ToLower(c.Ai.EmbeddingProvider) {
	case "ollama", "gemini", "jina":
	default:
		errs = append(errs, fmt.Errorf("unknown EMBEDDING_PROVIDER %q", c.Ai.EmbeddingProvider))
	}
	switch c.Engine.DefaultPolicy {
	case "zone-first", "regulation-first":
	default:
		errs = append(errs, fmt.Errorf("unknown ENGINE_DEFAULT_POLICY %q", c.Engine.DefaultPolicy))
	}
	return errors.Join(errs...)
}

func (s SearchConfig) Validate() error {
	if s.MaxLimit < 1 {
		return fmt.Errorf("SEARCH_MAX_LIMIT must be at least 1, got %d", s.MaxLimit)
	}
	if s.DefaultLimit < 1 || s.DefaultLimit > s.MaxLimit {
		return fmt.Errorf("SEARCH_DEFAULT_LIMIT must be within 1..%d, got %d", s.MaxLimit, s.DefaultLimit)
	}
	if s.CacheTTL < 0 {
		return fmt.Errorf("SEARCH_CACHE_TTL must not be negative, got %s", s.CacheTTL)
	}
	if s.CacheMaxEntries < 0 {
		return fmt.Errorf("SEARCH_CACHE_MAX_ENTRIES must not be negative, got %d", s.CacheMaxEntries)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}

// getEnvAsDuration accepts Go durations ("90s") or bare seconds ("90").
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if strValue == "" {
		return fallback
	}
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	if seconds, err := strconv.Atoi(strValue); err == nil {
		return time.Duration(seconds) * time.Second
	}
	return fallback
}
