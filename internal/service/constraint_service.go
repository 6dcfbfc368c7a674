package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"parcel-constraints-be/internal/dto"
	"parcel-constraints-be/internal/entity"
	"parcel-constraints-be/internal/pkg/logger"
	"parcel-constraints-be/internal/repository/memory"
	"parcel-constraints-be/internal/repository/specification"
	"parcel-constraints-be/internal/repository/unitofwork"
	"parcel-constraints-be/pkg/events"
	"parcel-constraints-be/pkg/rdppf"
	"parcel-constraints-be/pkg/zoning"
	"parcel-constraints-be/pkg/zoning/engine"
	"parcel-constraints-be/pkg/zoning/report"

	"github.com/google/uuid"
)

const constraintModule = "constraint_service"

const defaultRecentLimit = 20

var ErrAnalysisNotFound = errors.New("analysis not found")

// ExtractFetcher loads the legal extract of a parcel.
type ExtractFetcher interface {
	Fetch(ctx context.Context, municipality, parcel string) (*rdppf.Extract, error)
}

type IConstraintService interface {
	Analyze(ctx context.Context, req *dto.AnalyzeRequest) (*dto.AnalyzeResponse, error)
	Locate(ctx context.Context, req *dto.LocateRequest) (*dto.LocateResponse, error)
	Retrieve(ctx context.Context, req *dto.RetrieveRequest) (*dto.RetrieveResponse, error)
	RecentAnalyses(ctx context.Context, req *dto.RecentAnalysesRequest) ([]*dto.AnalysisSummaryResponse, error)
	GetAnalysis(ctx context.Context, id uuid.UUID) (*dto.AnalysisDetailResponse, error)
	DeleteAnalysis(ctx context.Context, id uuid.UUID) error
	CacheStats() dto.CacheStatsResponse
	ClearCache(ctx context.Context)
}

type constraintService struct {
	engine        *engine.Engine
	fetcher       ExtractFetcher
	extracts      *memory.ExtractRepository
	uowFactory    unitofwork.RepositoryFactory
	publisher     events.Publisher
	reports       *report.Builder
	defaultPolicy zoning.Policy
	logger        logger.ILogger
}

// NewConstraintService wires the analysis use case. uowFactory and
// publisher may be nil, in which case history and events are skipped.
func NewConstraintService(
	eng *engine.Engine,
	fetcher ExtractFetcher,
	extracts *memory.ExtractRepository,
	uowFactory unitofwork.RepositoryFactory,
	publisher events.Publisher,
	reports *report.Builder,
	defaultPolicy zoning.Policy,
	log logger.ILogger,
) IConstraintService {
	if reports == nil {
		reports = report.NewBuilder()
	}
	if !defaultPolicy.Valid() {
		defaultPolicy = zoning.PolicyZoneFirst
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &constraintService{
		engine:        eng,
		fetcher:       fetcher,
		extracts:      extracts,
		uowFactory:    uowFactory,
		publisher:     publisher,
		reports:       reports,
		defaultPolicy: defaultPolicy,
		logger:        log,
	}
}

func (s *constraintService) Analyze(ctx context.Context, req *dto.AnalyzeRequest) (*dto.AnalyzeResponse, error) {
	start := time.Now()
	municipality := strings.TrimSpace(req.Municipality)
	parcel := strings.TrimSpace(req.Parcel)

	policy := s.defaultPolicy
	if strings.TrimSpace(req.Policy) != "" {
		p, err := zoning.ParsePolicy(req.Policy)
		if err != nil {
			analysesTotal.WithLabelValues("invalid", "rejected").Inc()
			return nil, err
		}
		policy = p
	}
	if municipality == "" {
		analysesTotal.WithLabelValues(string(policy), "rejected").Inc()
		return nil, zoning.ErrEmptyMunicipality
	}

	record := &entity.Analysis{
		Id:           uuid.New(),
		Municipality: strings.ToLower(municipality),
		Parcel:       parcel,
		Policy:       string(policy),
	}

	ext, err := s.extract(ctx, municipality, parcel, req.Extract)
	if err != nil {
		s.fail(ctx, record, start, "fetch_error", err)
		return nil, err
	}

	loc := s.engine.LocateZone(ext)
	record.Zone = loc.Zone
	record.Candidates = loc.Candidates

	result, err := s.engine.ExtractConstraints(ctx, municipality, loc.Zone, loc.Candidates, policy)
	if err != nil {
		s.fail(ctx, record, start, "extract_error", err)
		return nil, err
	}

	zoneLabel := ""
	if loc.Zone != nil {
		zoneLabel = loc.Zone.RawLabel
	}
	text := s.reports.Build(report.Input{
		Municipality: municipality,
		Parcel:       parcel,
		Surface:      surfaceOf(ext),
		ZoneLabel:    zoneLabel,
		Candidates:   loc.Candidates,
		Schema:       result.Schema,
	})

	record.Schema = result.Schema
	record.Summary = result.Summary
	record.Confidence = result.Confidence
	record.Success = true
	record.DurationMs = time.Since(start).Milliseconds()

	outcome := "resolved"
	if loc.Zone == nil {
		outcome = "no_zone"
	} else if result.Schema.ResolvedCount() == 0 {
		outcome = "empty"
	}
	analysesTotal.WithLabelValues(string(policy), outcome).Inc()
	analysisDurationMs.Observe(float64(record.DurationMs))

	s.persist(ctx, record)
	s.publish(ctx, record, result.Schema.ResolvedCount())

	s.logger.Info(constraintModule, "Parcel analysed", map[string]interface{}{
		"analysis_id":  record.Id.String(),
		"municipality": record.Municipality,
		"parcel":       parcel,
		"zone":         zoneLabel,
		"policy":       string(policy),
		"outcome":      outcome,
		"duration_ms":  record.DurationMs,
	})

	return &dto.AnalyzeResponse{
		Id:         record.Id,
		Zone:       loc.Zone,
		ZoneOrigin: string(loc.Origin),
		Policy:     string(policy),
		Candidates: loc.Candidates,
		Schema:     result.Schema.Flatten(),
		Slots:      result.Schema.Slots,
		Summary:    result.Summary,
		Confidence: result.Confidence,
		Report:     text,
		DurationMs: record.DurationMs,
	}, nil
}

// extract returns the inline extract, a cached one, or fetches it.
func (s *constraintService) extract(ctx context.Context, municipality, parcel string, inline *rdppf.Extract) (*rdppf.Extract, error) {
	if inline != nil {
		return inline, nil
	}
	if parcel == "" {
		return nil, rdppf.ErrMissingParcelNumber
	}
	if s.extracts != nil {
		if ext, ok := s.extracts.Get(municipality, parcel); ok {
			return ext, nil
		}
	}
	if s.fetcher == nil {
		return nil, errors.New("no legal extract source configured")
	}

	ext, err := s.fetcher.Fetch(ctx, municipality, parcel)
	if err != nil {
		return nil, err
	}
	if s.extracts != nil {
		s.extracts.Save(municipality, parcel, ext)
	}
	return ext, nil
}

func (s *constraintService) fail(ctx context.Context, record *entity.Analysis, start time.Time, outcome string, err error) {
	record.Success = false
	record.ErrorMessage = err.Error()
	record.DurationMs = time.Since(start).Milliseconds()
	analysesTotal.WithLabelValues(record.Policy, outcome).Inc()

	s.logger.Warn(constraintModule, "Parcel analysis failed", map[string]interface{}{
		"analysis_id":  record.Id.String(),
		"municipality": record.Municipality,
		"parcel":       record.Parcel,
		"outcome":      outcome,
		"error":        err.Error(),
	})

	s.persist(ctx, record)
	s.publish(ctx, record, 0)
}

// persist stores the history record. Failures are logged only; the
// analysis result is still returned to the caller.
func (s *constraintService) persist(ctx context.Context, record *entity.Analysis) {
	if s.uowFactory == nil {
		return
	}
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.AnalysisRepository().Create(ctx, record); err != nil {
		s.logger.Warn(constraintModule, "Failed to store analysis", map[string]interface{}{
			"analysis_id": record.Id.String(),
			"error":       err.Error(),
		})
	}
}

func (s *constraintService) publish(ctx context.Context, record *entity.Analysis, resolved int) {
	if s.publisher == nil {
		return
	}
	event := events.AnalysisCompleted(
		record.Id.String(),
		record.Municipality,
		record.Parcel,
		record.ZoneLabel(),
		record.Policy,
		resolved,
		record.Success,
	)
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn(constraintModule, "Failed to publish analysis event", map[string]interface{}{
			"analysis_id": record.Id.String(),
			"error":       err.Error(),
		})
	}
}

func (s *constraintService) Locate(ctx context.Context, req *dto.LocateRequest) (*dto.LocateResponse, error) {
	loc := s.engine.LocateZone(req.Extract)
	return &dto.LocateResponse{
		Zone:       loc.Zone,
		ZoneOrigin: string(loc.Origin),
		Candidates: loc.Candidates,
	}, nil
}

func (s *constraintService) Retrieve(ctx context.Context, req *dto.RetrieveRequest) (*dto.RetrieveResponse, error) {
	zone := s.engine.ParseZone(req.ZoneLabel)
	passages, err := s.engine.Retrieve(ctx, req.Municipality, zone, req.Hint, req.Limit)
	if err != nil {
		return nil, err
	}
	if passages == nil {
		passages = []string{}
	}
	return &dto.RetrieveResponse{Zone: zone, Passages: passages}, nil
}

func (s *constraintService) RecentAnalyses(ctx context.Context, req *dto.RecentAnalysesRequest) ([]*dto.AnalysisSummaryResponse, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	result := make([]*dto.AnalysisSummaryResponse, 0)
	if s.uowFactory == nil {
		return result, nil
	}

	var specs []specification.Specification
	if req.Municipality != "" {
		specs = append(specs, specification.ByMunicipality{Municipality: req.Municipality})
	}
	if req.SuccessOnly {
		specs = append(specs, specification.SuccessfulOnly{})
	}
	if req.SinceHours > 0 {
		specs = append(specs, specification.CreatedSince{Since: time.Now().Add(-time.Duration(req.SinceHours) * time.Hour)})
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	analyses, err := uow.AnalysisRepository().FindRecent(ctx, limit, specs...)
	if err != nil {
		return nil, err
	}

	for _, a := range analyses {
		summary := toSummary(a)
		result = append(result, &summary)
	}
	return result, nil
}

func (s *constraintService) GetAnalysis(ctx context.Context, id uuid.UUID) (*dto.AnalysisDetailResponse, error) {
	if s.uowFactory == nil {
		return nil, ErrAnalysisNotFound
	}
	uow := s.uowFactory.NewUnitOfWork(ctx)
	a, err := uow.AnalysisRepository().FindOne(ctx, specification.ByID{ID: id})
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, ErrAnalysisNotFound
	}

	res := &dto.AnalysisDetailResponse{
		AnalysisSummaryResponse: toSummary(a),
		ZoneDescriptor:          a.Zone,
		Candidates:              a.Candidates,
		Slots:                   map[zoning.SlotName]zoning.Slot{},
		Passages:                []string{},
	}
	if res.Candidates == nil {
		res.Candidates = []zoning.ConstraintCandidate{}
	}
	if a.Schema != nil {
		res.Slots = a.Schema.Slots
		res.Passages = a.Schema.PassagesGeneraux
	}
	return res, nil
}

func (s *constraintService) DeleteAnalysis(ctx context.Context, id uuid.UUID) error {
	analysis, err := s.GetAnalysis(ctx, id)
	if err != nil {
		return err
	}
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.AnalysisRepository().Delete(ctx, id); err != nil {
		return err
	}
	// the next analysis of the parcel fetches a fresh extract
	if s.extracts != nil {
		s.extracts.Delete(analysis.Municipality, analysis.Parcel)
	}
	s.logger.Info(constraintModule, "Analysis deleted", map[string]interface{}{"analysis_id": id.String()})
	return nil
}

func toSummary(a *entity.Analysis) dto.AnalysisSummaryResponse {
	resolved := 0
	if a.Schema != nil {
		resolved = a.Schema.ResolvedCount()
	}
	return dto.AnalysisSummaryResponse{
		Id:           a.Id,
		Municipality: a.Municipality,
		Parcel:       a.Parcel,
		Zone:         a.ZoneLabel(),
		Policy:       a.Policy,
		Resolved:     resolved,
		Summary:      a.Summary,
		Confidence:   a.Confidence,
		DurationMs:   a.DurationMs,
		Success:      a.Success,
		ErrorMessage: a.ErrorMessage,
		CreatedAt:    a.CreatedAt,
	}
}

func (s *constraintService) CacheStats() dto.CacheStatsResponse {
	res := dto.CacheStatsResponse{CacheStats: s.engine.CacheStats()}
	if s.extracts != nil {
		res.ExtractEntries = s.extracts.Count()
	}
	return res
}

func (s *constraintService) ClearCache(ctx context.Context) {
	s.engine.ClearCache(ctx)
	if s.extracts != nil {
		s.extracts.Flush()
	}
	s.logger.Info(constraintModule, "Caches cleared", nil)
}

func surfaceOf(ext *rdppf.Extract) string {
	if ext == nil {
		return ""
	}
	area := ext.Extract.RealEstate.Area
	if area.Valid {
		return strconv.FormatFloat(area.Value, 'f', -1, 64)
	}
	return area.Raw
}
