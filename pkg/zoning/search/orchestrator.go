// Package search runs the multi-strategy regulation retrieval: it plans
// queries from a zone descriptor, fans them out to a passage backend
// through the retrieval cache, and merges the results.
package search

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"parcel-constraints-be/pkg/zoning"
	"parcel-constraints-be/pkg/zoning/vocabulary"
)

const (
	orchestratorModule = "RetrievalOrchestrator"
	dedupeKeyLength    = 100
	minPassageLength   = 50
)

// Backend answers one similarity query restricted to a municipality.
type Backend interface {
	Search(ctx context.Context, municipality, query string, limit int) ([]string, error)
}

// BackendFunc adapts a function to Backend.
type BackendFunc func(ctx context.Context, municipality, query string, limit int) ([]string, error)

func (f BackendFunc) Search(ctx context.Context, municipality, query string, limit int) ([]string, error) {
	return f(ctx, municipality, query, limit)
}

type Strategy string

const (
	StrategyExactZone  Strategy = "exact-zone"
	StrategyParentZone Strategy = "parent-zone"
	StrategyZoneType   Strategy = "zone-type"
	StrategyConcept    Strategy = "concept"
	StrategySemantic   Strategy = "semantic"
)

// Query is one planned backend call.
type Query struct {
	Text     string   `json:"text"`
	Strategy Strategy `json:"strategy"`
	Limit    int      `json:"limit"`
}

type Config struct {
	DefaultLimit int
	MaxLimit     int
	// PerQueryLimit bounds results of exact, parent, type and concept queries.
	PerQueryLimit int
	// SemanticLimit bounds results of each broad semantic query.
	SemanticLimit int
	// QueryTimeout bounds one backend call; zero leaves the caller's deadline.
	QueryTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		DefaultLimit:  5,
		MaxLimit:      20,
		PerQueryLimit: 2,
		SemanticLimit: 1,
	}
}

type Orchestrator struct {
	backend Backend
	cache   *Cache
	vocab   *vocabulary.Vocabulary
	config  Config
	logger  zoning.Logger
}

func NewOrchestrator(backend Backend, cache *Cache, vocab *vocabulary.Vocabulary, config Config, logger zoning.Logger) *Orchestrator {
	if vocab == nil {
		vocab = vocabulary.Default()
	}
	if cache == nil {
		cache = NewCache(DefaultCacheConfig(), nil, logger)
	}
	return &Orchestrator{
		backend: backend,
		cache:   cache,
		vocab:   vocab,
		config:  config,
		logger:  zoning.OrNop(logger),
	}
}

func (o *Orchestrator) Cache() *Cache {
	return o.cache
}

// Plan lists the queries issued for a zone and hint, in strategy order.
func (o *Orchestrator) Plan(zone zoning.ZoneDescriptor, hint string) []Query {
	var queries []Query
	add := func(text string, strategy Strategy, limit int) {
		if strings.TrimSpace(text) == "" {
			return
		}
		queries = append(queries, Query{Text: text, Strategy: strategy, Limit: limit})
	}

	addZone := func(number string, strategy Strategy) {
		add("zone "+number, strategy, o.config.PerQueryLimit)
		add("ZONE "+number, strategy, o.config.PerQueryLimit)
		add(number, strategy, o.config.PerQueryLimit)
	}

	if zone.ZoneNumber != "" {
		addZone(zone.ZoneNumber, StrategyExactZone)
	}
	if zone.HasParent() {
		addZone(zone.ParentZone, StrategyParentZone)
	}

	if zone.ZoneType != "" && zone.ZoneType != zoning.ZoneTypeUnknown {
		for _, suffix := range o.vocab.ZoneTypeSuffixes {
			add(fmt.Sprintf("%s %s", zone.ZoneType, suffix), StrategyZoneType, o.config.PerQueryLimit)
		}
		add("zone "+string(zone.ZoneType), StrategyZoneType, o.config.PerQueryLimit)
	}

	if terms, ok := o.vocab.ConceptTerms(hint); ok {
		for _, term := range terms {
			add(term, StrategyConcept, o.config.PerQueryLimit)
		}
	}

	for _, q := range o.vocab.SemanticQueries {
		add(q, StrategySemantic, o.config.SemanticLimit)
	}

	return queries
}

// Retrieve runs every planned query, merges results in strategy order,
// deduplicates them and truncates to limit. A limit of zero selects the
// configured default. Failed queries are logged and skipped.
func (o *Orchestrator) Retrieve(ctx context.Context, municipality string, zone zoning.ZoneDescriptor, hint string, limit int) ([]string, error) {
	if strings.TrimSpace(municipality) == "" {
		return nil, zoning.ErrEmptyMunicipality
	}
	if limit == 0 {
		limit = o.config.DefaultLimit
	}
	if limit < 1 || (o.config.MaxLimit > 0 && limit > o.config.MaxLimit) {
		return nil, fmt.Errorf("%w: %d", zoning.ErrInvalidLimit, limit)
	}

	ctx, span := otel.Tracer("zoning/search").Start(ctx, "zoning.retrieve")
	defer span.End()
	span.SetAttributes(
		attribute.String("zoning.municipality", municipality),
		attribute.String("zoning.zone", zone.ZoneNumber),
		attribute.String("zoning.hint", hint),
	)

	var all []string
	for _, q := range o.Plan(zone, hint) {
		results, err := o.run(ctx, municipality, q)
		if err != nil {
			backendErrorsTotal.WithLabelValues(string(q.Strategy)).Inc()
			o.logger.Warn(orchestratorModule, "Backend query failed", map[string]interface{}{
				"municipality": municipality,
				"query":        q.Text,
				"strategy":     string(q.Strategy),
				"error":        err.Error(),
			})
			continue
		}
		all = append(all, results...)
	}

	passages := Deduplicate(all, limit)
	retrievedPassages.Observe(float64(len(passages)))
	span.SetAttributes(attribute.Int("zoning.passages", len(passages)))

	o.logger.Debug(orchestratorModule, "Retrieval completed", map[string]interface{}{
		"municipality": municipality,
		"zone":         zone.ZoneNumber,
		"hint":         hint,
		"raw":          len(all),
		"kept":         len(passages),
	})

	return passages, nil
}

func (o *Orchestrator) run(ctx context.Context, municipality string, q Query) ([]string, error) {
	passages, _, err := o.cache.GetOrCompute(ctx, municipality, q.Text, q.Limit, func(ctx context.Context) ([]string, error) {
		if o.config.QueryTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, o.config.QueryTimeout)
			defer cancel()
		}

		start := time.Now()
		defer func() {
			backendDurationMs.WithLabelValues(string(q.Strategy)).Observe(float64(time.Since(start).Milliseconds()))
		}()
		backendQueriesTotal.WithLabelValues(string(q.Strategy)).Inc()

		return o.backend.Search(ctx, municipality, q.Text, q.Limit)
	})
	return passages, err
}

var whitespaceRegex = regexp.MustCompile(`\s+`)

// DedupeKey is the case and whitespace insensitive key of a passage:
// its first hundred characters after normalisation.
func DedupeKey(passage string) string {
	normalized := strings.ToLower(strings.TrimSpace(whitespaceRegex.ReplaceAllString(passage, " ")))
	if utf8.RuneCountInString(normalized) <= dedupeKeyLength {
		return normalized
	}
	return string([]rune(normalized)[:dedupeKeyLength])
}

// Deduplicate keeps the first occurrence of each key, drops passages of 50
// characters or fewer and truncates to limit.
func Deduplicate(passages []string, limit int) []string {
	if limit <= 0 {
		return []string{}
	}
	seen := make(map[string]bool, len(passages))
	out := make([]string, 0, limit)

	for _, p := range passages {
		if len(out) >= limit {
			break
		}
		if utf8.RuneCountInString(strings.TrimSpace(p)) <= minPassageLength {
			continue
		}
		key := DedupeKey(p)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, p)
	}

	return out
}
