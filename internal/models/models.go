package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Platform represents one streaming service whose usage reports we ingest.
// DB columns: id, code, name, active, created_at
type Platform struct {
	ID        uuid.UUID `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// Artist is a resolved performer. NameNormalized is the lowercase,
// whitespace-collapsed form used for matching across reports.
// DB columns: id, name, name_normalized, created_at, updated_at
type Artist struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	NameNormalized string    `json:"name_normalized"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Track is a resolved recording. ISRC is authoritative when present;
// otherwise tracks match on normalized title plus artist.
// DB columns: id, artist_id, title, title_normalized, isrc, album_name,
//
//	duration_seconds, created_at, updated_at
type Track struct {
	ID              uuid.UUID `json:"id"`
	ArtistID        uuid.UUID `json:"artist_id"`
	Title           string    `json:"title"`
	TitleNormalized string    `json:"title_normalized"`
	ISRC            *string   `json:"isrc,omitempty"`
	AlbumName       *string   `json:"album_name,omitempty"`
	DurationSeconds *int      `json:"duration_seconds,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// StreamingRecord is one standardized usage row from a platform report.
// ArtistName, TrackTitle, and AlbumName snapshot what the report said, so
// queries survive later entity renames; TrackID is null when the row carried
// no resolvable title. DataQualityScore, RawDataSource, and FileHash tie the
// record back to the quality and identity of the file it came from.
// DB columns: id, platform_id, track_id, artist_id, processing_log_id,
//
//	artist_name, track_title, album_name, event_date, metric_type,
//	metric_value, geography, device_type, subscription_type, context_type,
//	demographics, raw_row, data_quality_score, raw_data_source, file_hash,
//	created_at
type StreamingRecord struct {
	ID               uuid.UUID       `json:"id"`
	PlatformID       uuid.UUID       `json:"platform_id"`
	TrackID          *uuid.UUID      `json:"track_id,omitempty"`
	ArtistID         uuid.UUID       `json:"artist_id"`
	ProcessingLogID  uuid.UUID       `json:"processing_log_id"`
	ArtistName       string          `json:"artist_name"`
	TrackTitle       string          `json:"track_title"`
	AlbumName        *string         `json:"album_name,omitempty"`
	EventDate        time.Time       `json:"event_date"`
	MetricType       string          `json:"metric_type"`
	MetricValue      decimal.Decimal `json:"metric_value"`
	Geography        *string         `json:"geography,omitempty"`
	DeviceType       *string         `json:"device_type,omitempty"`
	SubscriptionType *string         `json:"subscription_type,omitempty"`
	ContextType      *string         `json:"context_type,omitempty"`
	Demographics     json.RawMessage `json:"demographics,omitempty"`
	RawRow           json.RawMessage `json:"raw_row,omitempty"`
	DataQualityScore float64         `json:"data_quality_score"`
	RawDataSource    string          `json:"raw_data_source"`
	FileHash         string          `json:"file_hash"`
	CreatedAt        time.Time       `json:"created_at"`
}

// Processing statuses recorded on ProcessingLog.
const (
	StatusCompleted = "completed"
	StatusPartial   = "partial"
	StatusFailed    = "failed"
	StatusSkipped   = "skipped"
)

// ProcessingLog is the audit record for one file run. FileHash is the
// SHA-256 of the raw bytes and drives duplicate-file detection.
// DB columns: id, platform_id, file_name, file_hash, file_size, status,
//
//	format, encoding, rows_parsed, records_stored, records_failed,
//	error_message, issues, started_at, completed_at, created_at
type ProcessingLog struct {
	ID             uuid.UUID       `json:"id"`
	PlatformID     *uuid.UUID      `json:"platform_id,omitempty"`
	FileName       string          `json:"file_name"`
	FileHash       string          `json:"file_hash"`
	FileSize       int64           `json:"file_size"`
	Status         string          `json:"status"`
	Format         string          `json:"format"`
	Encoding       string          `json:"encoding"`
	RowsParsed     int             `json:"rows_parsed"`
	RecordsStored  int             `json:"records_stored"`
	RecordsFailed  int             `json:"records_failed"`
	ErrorMessage   *string         `json:"error_message,omitempty"`
	Issues         json.RawMessage `json:"issues,omitempty"`
	StartedAt      time.Time       `json:"started_at"`
	CompletedAt    *time.Time      `json:"completed_at,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// QualityScore snapshots the quality grading of one processed file.
// DB columns: id, processing_log_id, parse_score, completeness_score,
//
//	consistency_score, validity_score, overall_score, rules_passed,
//	rules_total, metrics, created_at
type QualityScore struct {
	ID                uuid.UUID       `json:"id"`
	ProcessingLogID   uuid.UUID       `json:"processing_log_id"`
	ParseScore        float64         `json:"parse_score"`
	CompletenessScore float64         `json:"completeness_score"`
	ConsistencyScore  float64         `json:"consistency_score"`
	ValidityScore     float64         `json:"validity_score"`
	OverallScore      float64         `json:"overall_score"`
	RulesPassed       int             `json:"rules_passed"`
	RulesTotal        int             `json:"rules_total"`
	Metrics           json.RawMessage `json:"metrics,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
}

// Pagination holds pagination metadata.
type Pagination struct {
	Page         int `json:"page"`
	PageSize     int `json:"page_size"`
	TotalResults int `json:"total_results"`
	TotalPages   int `json:"total_pages"`
}
