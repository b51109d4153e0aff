package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/soundledger/stream-ingest-iq/internal/models"
)

// QualityRepository handles data access for per-file quality snapshots.
type QualityRepository struct {
	pool *pgxpool.Pool
}

// NewQualityRepository creates a new quality repository.
func NewQualityRepository(pool *pgxpool.Pool) *QualityRepository {
	return &QualityRepository{pool: pool}
}

const qualityColumns = `id, processing_log_id, parse_score, completeness_score,
	consistency_score, validity_score, overall_score, rules_passed, rules_total,
	metrics, created_at`

func scanQuality(row pgx.Row, s *models.QualityScore) error {
	return row.Scan(
		&s.ID,
		&s.ProcessingLogID,
		&s.ParseScore,
		&s.CompletenessScore,
		&s.ConsistencyScore,
		&s.ValidityScore,
		&s.OverallScore,
		&s.RulesPassed,
		&s.RulesTotal,
		&s.Metrics,
		&s.CreatedAt,
	)
}

// Insert writes one quality snapshot.
func (r *QualityRepository) Insert(ctx context.Context, score *models.QualityScore) error {
	if score == nil {
		return errors.New("quality score cannot be nil")
	}

	query := `
		INSERT INTO quality_scores (
			id, processing_log_id, parse_score, completeness_score,
			consistency_score, validity_score, overall_score, rules_passed,
			rules_total, metrics, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
		)
	`
	_, err := r.pool.Exec(
		ctx, query,
		score.ID, score.ProcessingLogID, score.ParseScore, score.CompletenessScore,
		score.ConsistencyScore, score.ValidityScore, score.OverallScore,
		score.RulesPassed, score.RulesTotal, score.Metrics, score.CreatedAt,
	)
	return err
}

// GetByLogID retrieves the snapshot for one processing run. Returns nil, nil
// when not found.
func (r *QualityRepository) GetByLogID(ctx context.Context, logID uuid.UUID) (*models.QualityScore, error) {
	query := `SELECT ` + qualityColumns + ` FROM quality_scores WHERE processing_log_id = $1`
	s := &models.QualityScore{}
	err := scanQuality(r.pool.QueryRow(ctx, query, logID), s)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return s, nil
}

// ListRecent returns the newest snapshots, most recent first.
func (r *QualityRepository) ListRecent(ctx context.Context, limit int) ([]models.QualityScore, error) {
	query := `SELECT ` + qualityColumns + `
		FROM quality_scores
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scores []models.QualityScore
	for rows.Next() {
		s := models.QualityScore{}
		if err := scanQuality(rows, &s); err != nil {
			return nil, err
		}
		scores = append(scores, s)
	}
	return scores, rows.Err()
}
