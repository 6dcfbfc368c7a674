package service

import (
	"context"
	"encoding/json"
	"strings"

	"parcel-constraints-be/internal/dto"
	"parcel-constraints-be/internal/pkg/logger"
	"parcel-constraints-be/internal/repository/specification"
	"parcel-constraints-be/internal/repository/unitofwork"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

type IIngestService interface {
	Enqueue(ctx context.Context, req *dto.IngestRegulationRequest) (*dto.IngestRegulationResponse, error)
	Coverage(ctx context.Context, req *dto.RegulationCoverageRequest) ([]*dto.RegulationCoverageResponse, error)
	Chunks(ctx context.Context, municipality string, req *dto.RegulationChunksRequest) ([]*dto.RegulationChunkResponse, error)
}

// ingestService queues regulation texts for the consumer; chunking and
// embedding happen off the request path. It also reports what is stored.
type ingestService struct {
	publisher  message.Publisher
	topicName  string
	uowFactory unitofwork.RepositoryFactory
	logger     logger.ILogger
}

func NewIngestService(publisher message.Publisher, topicName string, uowFactory unitofwork.RepositoryFactory, log logger.ILogger) IIngestService {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &ingestService{
		publisher:  publisher,
		topicName:  topicName,
		uowFactory: uowFactory,
		logger:     log,
	}
}

func (s *ingestService) Enqueue(ctx context.Context, req *dto.IngestRegulationRequest) (*dto.IngestRegulationResponse, error) {
	municipality := strings.ToLower(strings.TrimSpace(req.Municipality))
	payload, err := json.Marshal(dto.PublishIngestRegulationMessage{
		Municipality: municipality,
		Text:         req.Text,
	})
	if err != nil {
		return nil, err
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := s.publisher.Publish(s.topicName, msg); err != nil {
		return nil, err
	}

	s.logger.Info(ingestModule, "Regulation queued", map[string]interface{}{
		"municipality": municipality,
		"message_id":   msg.UUID,
		"length":       len(req.Text),
	})

	return &dto.IngestRegulationResponse{
		Municipality: municipality,
		MessageId:    msg.UUID,
	}, nil
}

// Coverage lists every municipality with stored regulation chunks. With a
// zone filter, municipalities without a chunk tagged for that zone are left
// out.
func (s *ingestService) Coverage(ctx context.Context, req *dto.RegulationCoverageRequest) ([]*dto.RegulationCoverageResponse, error) {
	result := make([]*dto.RegulationCoverageResponse, 0)
	if s.uowFactory == nil {
		return result, nil
	}

	repo := s.uowFactory.NewUnitOfWork(ctx).RegulationChunkRepository()
	municipalities, err := repo.ListMunicipalities(ctx)
	if err != nil {
		return nil, err
	}

	for _, m := range municipalities {
		specs := []specification.Specification{specification.ByMunicipality{Municipality: m}}
		if req.Zone != "" {
			specs = append(specs, specification.ByZone{Zone: req.Zone})
		}
		n, err := repo.Count(ctx, specs...)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			continue
		}
		result = append(result, &dto.RegulationCoverageResponse{Municipality: m, Chunks: n})
	}
	return result, nil
}

func (s *ingestService) Chunks(ctx context.Context, municipality string, req *dto.RegulationChunksRequest) ([]*dto.RegulationChunkResponse, error) {
	result := make([]*dto.RegulationChunkResponse, 0)
	if s.uowFactory == nil {
		return result, nil
	}

	specs := []specification.Specification{
		specification.ByMunicipality{Municipality: municipality},
		specification.OrderBy{Field: "chunk_index"},
	}
	if req.Zone != "" {
		specs = append(specs, specification.ByZone{Zone: req.Zone})
	}

	chunks, err := s.uowFactory.NewUnitOfWork(ctx).RegulationChunkRepository().FindAll(ctx, specs...)
	if err != nil {
		return nil, err
	}
	for _, c := range chunks {
		result = append(result, &dto.RegulationChunkResponse{
			Article:    c.Article,
			Zone:       c.Zone,
			Concepts:   c.Concepts,
			ChunkIndex: c.ChunkIndex,
			Document:   c.Document,
		})
	}
	return result, nil
}
