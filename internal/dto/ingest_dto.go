package dto

type IngestRegulationRequest struct {
	Municipality string `json:"municipality" validate:"required,max=120"`
	Text         string `json:"text" validate:"required,min=50"`
}

type IngestRegulationResponse struct {
	Municipality string `json:"municipality"`
	MessageId    string `json:"message_id"`
}

// PublishIngestRegulationMessage is the payload queued for the ingestion
// consumer.
type PublishIngestRegulationMessage struct {
	Municipality string `json:"municipality"`
	Text         string `json:"text"`
}

type IngestResult struct {
	Municipality string `json:"municipality"`
	Chunks       int    `json:"chunks"`
	Replaced     int64  `json:"replaced"`
	DurationMs   int64  `json:"duration_ms"`
}

type RegulationCoverageRequest struct {
	Zone string `query:"zone" validate:"omitempty,max=32"`
}

type RegulationCoverageResponse struct {
	Municipality string `json:"municipality"`
	Chunks       int64  `json:"chunks"`
}

type RegulationChunksRequest struct {
	Zone string `query:"zone" validate:"omitempty,max=32"`
}

type RegulationChunkResponse struct {
	Article    string   `json:"article"`
	Zone       string   `json:"zone"`
	Concepts   []string `json:"concepts"`
	ChunkIndex int      `json:"chunk_index"`
	Document   string   `json:"document"`
}
