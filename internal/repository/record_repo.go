package repository

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/soundledger/stream-ingest-iq/internal/models"
)

// RecordRepository handles data access for standardized streaming records.
type RecordRepository struct {
	pool *pgxpool.Pool
}

// NewRecordRepository creates a new record repository.
func NewRecordRepository(pool *pgxpool.Pool) *RecordRepository {
	return &RecordRepository{pool: pool}
}

const recordColumns = `id, platform_id, track_id, artist_id, processing_log_id,
	artist_name, track_title, album_name, event_date, metric_type,
	metric_value, geography, device_type, subscription_type, context_type,
	demographics, raw_row, data_quality_score, raw_data_source, file_hash,
	created_at`

func scanRecord(row pgx.Row, rec *models.StreamingRecord) error {
	return row.Scan(
		&rec.ID,
		&rec.PlatformID,
		&rec.TrackID,
		&rec.ArtistID,
		&rec.ProcessingLogID,
		&rec.ArtistName,
		&rec.TrackTitle,
		&rec.AlbumName,
		&rec.EventDate,
		&rec.MetricType,
		&rec.MetricValue,
		&rec.Geography,
		&rec.DeviceType,
		&rec.SubscriptionType,
		&rec.ContextType,
		&rec.Demographics,
		&rec.RawRow,
		&rec.DataQualityScore,
		&rec.RawDataSource,
		&rec.FileHash,
		&rec.CreatedAt,
	)
}

// BulkInsert batch-inserts records and reports how many landed. Statement
// failures are counted per row instead of aborting, so one bad record never
// discards the rest of the batch results.
func (r *RecordRepository) BulkInsert(ctx context.Context, records []models.StreamingRecord) (int, int, error) {
	if len(records) == 0 {
		return 0, 0, nil
	}

	batch := &pgx.Batch{}
	query := `
		INSERT INTO streaming_records (
			id, platform_id, track_id, artist_id, processing_log_id,
			artist_name, track_title, album_name, event_date, metric_type,
			metric_value, geography, device_type, subscription_type, context_type,
			demographics, raw_row, data_quality_score, raw_data_source, file_hash,
			created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11,
			$12, $13, $14, $15, $16, $17, $18, $19, $20, $21
		)
	`
	for _, rec := range records {
		batch.Queue(
			query,
			rec.ID,
			rec.PlatformID,
			rec.TrackID,
			rec.ArtistID,
			rec.ProcessingLogID,
			rec.ArtistName,
			rec.TrackTitle,
			rec.AlbumName,
			rec.EventDate,
			rec.MetricType,
			rec.MetricValue,
			rec.Geography,
			rec.DeviceType,
			rec.SubscriptionType,
			rec.ContextType,
			rec.Demographics,
			rec.RawRow,
			rec.DataQualityScore,
			rec.RawDataSource,
			rec.FileHash,
			rec.CreatedAt,
		)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	stored, failed := 0, 0
	for range records {
		if _, err := results.Exec(); err != nil {
			failed++
			continue
		}
		stored++
	}
	return stored, failed, nil
}

// RecordFilter narrows record listings. Zero values mean "no constraint".
type RecordFilter struct {
	PlatformCode string
	MetricType   string
	From         time.Time
	To           time.Time
}

// List returns a page of records matching the filter, newest event first,
// along with the total match count.
func (r *RecordRepository) List(ctx context.Context, filter RecordFilter, page, pageSize int) ([]models.StreamingRecord, int, error) {
	where, args := buildRecordFilter(filter)

	var total int
	countQuery := `SELECT COUNT(*) FROM streaming_records r
		JOIN platforms p ON p.id = r.platform_id` + where
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + prefixColumns(recordColumns, "r.") + `
		FROM streaming_records r
		JOIN platforms p ON p.id = r.platform_id` + where + `
		ORDER BY r.event_date DESC, r.created_at DESC
		LIMIT $` + strconv.Itoa(len(args)+1) + ` OFFSET $` + strconv.Itoa(len(args)+2)
	args = append(args, pageSize, (page-1)*pageSize)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var records []models.StreamingRecord
	for rows.Next() {
		rec := models.StreamingRecord{}
		if err := scanRecord(rows, &rec); err != nil {
			return nil, 0, err
		}
		records = append(records, rec)
	}
	return records, total, rows.Err()
}

func buildRecordFilter(filter RecordFilter) (string, []interface{}) {
	clauses := []string{}
	args := []interface{}{}
	if filter.PlatformCode != "" {
		args = append(args, filter.PlatformCode)
		clauses = append(clauses, "p.code = $"+strconv.Itoa(len(args)))
	}
	if filter.MetricType != "" {
		args = append(args, filter.MetricType)
		clauses = append(clauses, "r.metric_type = $"+strconv.Itoa(len(args)))
	}
	if !filter.From.IsZero() {
		args = append(args, filter.From)
		clauses = append(clauses, "r.event_date >= $"+strconv.Itoa(len(args)))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		clauses = append(clauses, "r.event_date <= $"+strconv.Itoa(len(args)))
	}
	if len(clauses) == 0 {
		return "", args
	}
	where := " WHERE " + clauses[0]
	for _, clause := range clauses[1:] {
		where += " AND " + clause
	}
	return where, args
}

// prefixColumns qualifies each column in a comma-separated list with a table
// alias for use in joined queries.
func prefixColumns(columns, prefix string) string {
	parts := strings.Split(columns, ",")
	for i, part := range parts {
		parts[i] = prefix + strings.TrimSpace(part)
	}
	return strings.Join(parts, ", ")
}
