package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"parcel-constraints-be/internal/dto"
	"parcel-constraints-be/internal/entity"
	"parcel-constraints-be/internal/pkg/logger"
	"parcel-constraints-be/internal/repository/unitofwork"
	"parcel-constraints-be/pkg/embedding"
	"parcel-constraints-be/pkg/events"
	"parcel-constraints-be/pkg/ingest"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
)

const ingestModule = "ingest"

// ErrEmptyRegulation is returned when a text yields no storable chunk; the
// municipality's stored regulation is left as it was.
var ErrEmptyRegulation = errors.New("regulation text yields no chunk")

type IConsumerService interface {
	Consume(ctx context.Context) error
	// Ingest chunks, embeds and stores a regulation synchronously,
	// replacing the municipality's previous chunks.
	Ingest(ctx context.Context, municipality, text string) (*dto.IngestResult, error)
}

type consumerService struct {
	subscriber        message.Subscriber
	topicName         string
	uowFactory        unitofwork.RepositoryFactory
	embeddingProvider embedding.EmbeddingProvider
	publisher         events.Publisher
	logger            logger.ILogger
}

func NewConsumerService(
	subscriber message.Subscriber,
	topicName string,
	uowFactory unitofwork.RepositoryFactory,
	embeddingProvider embedding.EmbeddingProvider,
	publisher events.Publisher,
	log logger.ILogger,
) IConsumerService {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &consumerService{
		subscriber:        subscriber,
		topicName:         topicName,
		uowFactory:        uowFactory,
		embeddingProvider: embeddingProvider,
		publisher:         publisher,
		logger:            log,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.subscriber.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	var payload dto.PublishIngestRegulationMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		cs.logger.Error(ingestModule, "Failed to unmarshal message", map[string]interface{}{
			"message_id": msg.UUID,
			"error":      err.Error(),
		})
		msg.Ack() // a malformed payload will never succeed
		return
	}

	if _, err := cs.Ingest(ctx, payload.Municipality, payload.Text); err != nil {
		if errors.Is(err, ErrEmptyRegulation) {
			msg.Ack() // redelivery cannot produce chunks either
			return
		}
		msg.Nack()
		return
	}
	msg.Ack()
}

func (cs *consumerService) Ingest(ctx context.Context, municipality, text string) (*dto.IngestResult, error) {
	start := time.Now()
	municipality = strings.ToLower(strings.TrimSpace(municipality))
	if municipality == "" {
		return nil, fmt.Errorf("ingest: municipality is required")
	}

	chunks := ingest.ChunkText(municipality, text)
	cs.logger.Info(ingestModule, "Regulation split into chunks", map[string]interface{}{
		"municipality": municipality,
		"chunks":       len(chunks),
		"length":       len(text),
	})
	if len(chunks) == 0 {
		cs.logger.Warn(ingestModule, "Regulation has no chunk to store, keeping previous corpus", map[string]interface{}{
			"municipality": municipality,
		})
		return nil, ErrEmptyRegulation
	}

	records := make([]*entity.RegulationChunk, 0, len(chunks))
	for _, c := range chunks {
		res, err := cs.embeddingProvider.Generate(ctx, c.Text, embedding.TaskRetrievalDocument)
		if err != nil {
			cs.logger.Error(ingestModule, "Failed to embed chunk", map[string]interface{}{
				"municipality": municipality,
				"chunk":        c.Index,
				"error":        err.Error(),
			})
			return nil, fmt.Errorf("embed chunk %d: %w", c.Index, err)
		}

		records = append(records, &entity.RegulationChunk{
			Id:             uuid.New(),
			Municipality:   municipality,
			Article:        c.Article,
			Zone:           c.Zone,
			Concepts:       c.Concepts,
			Document:       c.Text,
			EmbeddingValue: res.Embedding.Values,
			ChunkIndex:     c.Index,
			CreatedAt:      time.Now(),
		})
	}

	replaced, err := cs.replace(ctx, municipality, records)
	if err != nil {
		cs.logger.Error(ingestModule, "Failed to store chunks", map[string]interface{}{
			"municipality": municipality,
			"error":        err.Error(),
		})
		return nil, err
	}

	result := &dto.IngestResult{
		Municipality: municipality,
		Chunks:       len(records),
		Replaced:     replaced,
		DurationMs:   time.Since(start).Milliseconds(),
	}
	ingestedChunksTotal.WithLabelValues(municipality).Add(float64(len(records)))

	if cs.publisher != nil {
		event := events.RegulationIngested(municipality, result.Chunks, result.DurationMs)
		if err := cs.publisher.Publish(ctx, event); err != nil {
			cs.logger.Warn(ingestModule, "Failed to publish ingestion event", map[string]interface{}{
				"municipality": municipality,
				"error":        err.Error(),
			})
		}
	}

	cs.logger.Info(ingestModule, "Regulation ingested", map[string]interface{}{
		"municipality": municipality,
		"chunks":       result.Chunks,
		"replaced":     replaced,
		"duration_ms":  result.DurationMs,
	})
	return result, nil
}

// replace swaps the stored chunks of a municipality in one transaction.
func (cs *consumerService) replace(ctx context.Context, municipality string, records []*entity.RegulationChunk) (int64, error) {
	uow := cs.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = uow.Rollback()
		}
	}()

	replaced, err := uow.RegulationChunkRepository().DeleteByMunicipality(ctx, municipality)
	if err != nil {
		return 0, fmt.Errorf("delete previous chunks: %w", err)
	}
	if err := uow.RegulationChunkRepository().CreateBulk(ctx, records); err != nil {
		return 0, fmt.Errorf("create chunks: %w", err)
	}
	if err := uow.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	committed = true
	return replaced, nil
}
