package repository

import (
	"context"
	"errors"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/soundledger/stream-ingest-iq/internal/models"
)

// ProcessingLogRepository handles data access for the file-run audit trail.
type ProcessingLogRepository struct {
	pool *pgxpool.Pool
}

// NewProcessingLogRepository creates a new processing log repository.
func NewProcessingLogRepository(pool *pgxpool.Pool) *ProcessingLogRepository {
	return &ProcessingLogRepository{pool: pool}
}

const processingLogColumns = `id, platform_id, file_name, file_hash, file_size,
	status, format, encoding, rows_parsed, records_stored, records_failed,
	error_message, issues, started_at, completed_at, created_at`

func scanProcessingLog(row pgx.Row, log *models.ProcessingLog) error {
	return row.Scan(
		&log.ID,
		&log.PlatformID,
		&log.FileName,
		&log.FileHash,
		&log.FileSize,
		&log.Status,
		&log.Format,
		&log.Encoding,
		&log.RowsParsed,
		&log.RecordsStored,
		&log.RecordsFailed,
		&log.ErrorMessage,
		&log.Issues,
		&log.StartedAt,
		&log.CompletedAt,
		&log.CreatedAt,
	)
}

// Insert writes one audit entry.
func (r *ProcessingLogRepository) Insert(ctx context.Context, log *models.ProcessingLog) error {
	if log == nil {
		return errors.New("processing log cannot be nil")
	}

	query := `
		INSERT INTO data_processing_logs (
			id, platform_id, file_name, file_hash, file_size,
			status, format, encoding, rows_parsed, records_stored, records_failed,
			error_message, issues, started_at, completed_at, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16
		)
	`
	_, err := r.pool.Exec(
		ctx, query,
		log.ID, log.PlatformID, log.FileName, log.FileHash, log.FileSize,
		log.Status, log.Format, log.Encoding, log.RowsParsed, log.RecordsStored,
		log.RecordsFailed, log.ErrorMessage, log.Issues, log.StartedAt,
		log.CompletedAt, log.CreatedAt,
	)
	return err
}

// FindCompletedByHash returns the most recent run of the same file bytes
// that actually stored data, or nil, nil. Skipped and failed runs do not
// count: a file that failed last time deserves another attempt.
func (r *ProcessingLogRepository) FindCompletedByHash(ctx context.Context, fileHash string) (*models.ProcessingLog, error) {
	query := `SELECT ` + processingLogColumns + `
		FROM data_processing_logs
		WHERE file_hash = $1 AND status IN ($2, $3)
		ORDER BY created_at DESC
		LIMIT 1`

	log := &models.ProcessingLog{}
	err := scanProcessingLog(r.pool.QueryRow(ctx, query, fileHash, models.StatusCompleted, models.StatusPartial), log)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return log, nil
}

// GetByID retrieves one audit entry. Returns nil, nil when not found.
func (r *ProcessingLogRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ProcessingLog, error) {
	query := `SELECT ` + processingLogColumns + ` FROM data_processing_logs WHERE id = $1`
	log := &models.ProcessingLog{}
	err := scanProcessingLog(r.pool.QueryRow(ctx, query, id), log)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return log, nil
}

// List returns a page of audit entries, newest first, optionally filtered by
// status, along with the total match count.
func (r *ProcessingLogRepository) List(ctx context.Context, status string, page, pageSize int) ([]models.ProcessingLog, int, error) {
	where := ""
	args := []interface{}{}
	if status != "" {
		where = ` WHERE status = $1`
		args = append(args, status)
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM data_processing_logs`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limitArg := len(args) + 1
	query := `SELECT ` + processingLogColumns + `
		FROM data_processing_logs` + where + `
		ORDER BY created_at DESC
		LIMIT $` + strconv.Itoa(limitArg) + ` OFFSET $` + strconv.Itoa(limitArg+1)
	args = append(args, pageSize, (page-1)*pageSize)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var logs []models.ProcessingLog
	for rows.Next() {
		log := models.ProcessingLog{}
		if err := scanProcessingLog(rows, &log); err != nil {
			return nil, 0, err
		}
		logs = append(logs, log)
	}
	return logs, total, rows.Err()
}
