package dto

import "parcel-constraints-be/pkg/zoning/search"

type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

type CacheStatsResponse struct {
	search.CacheStats
	ExtractEntries int `json:"extract_entries"`
}

type LogsRequest struct {
	Level  string `query:"level" validate:"omitempty,oneof=DEBUG INFO WARN ERROR"`
	Limit  int    `query:"limit" validate:"omitempty,min=1,max=500"`
	Offset int    `query:"offset" validate:"omitempty,min=0"`
}
