package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/soundledger/stream-ingest-iq/internal/models"
)

// PlatformRepository handles data access for streaming platforms.
type PlatformRepository struct {
	pool *pgxpool.Pool
}

// NewPlatformRepository creates a new platform repository.
func NewPlatformRepository(pool *pgxpool.Pool) *PlatformRepository {
	return &PlatformRepository{pool: pool}
}

const platformColumns = `id, code, name, active, created_at`

func scanPlatform(row pgx.Row, p *models.Platform) error {
	return row.Scan(&p.ID, &p.Code, &p.Name, &p.Active, &p.CreatedAt)
}

// GetByCode retrieves a platform by its catalog code. Returns nil, nil when
// the platform is not registered.
func (r *PlatformRepository) GetByCode(ctx context.Context, code string) (*models.Platform, error) {
	query := `SELECT ` + platformColumns + ` FROM platforms WHERE code = $1`
	p := &models.Platform{}
	err := scanPlatform(r.pool.QueryRow(ctx, query, code), p)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return p, nil
}

// List returns every registered platform in code order.
func (r *PlatformRepository) List(ctx context.Context) ([]models.Platform, error) {
	query := `SELECT ` + platformColumns + ` FROM platforms ORDER BY code`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var platforms []models.Platform
	for rows.Next() {
		p := models.Platform{}
		if err := scanPlatform(rows, &p); err != nil {
			return nil, err
		}
		platforms = append(platforms, p)
	}
	return platforms, rows.Err()
}

// Seed registers catalog platforms that are not in the database yet.
// Existing rows are left untouched, so re-running at startup is safe.
func (r *PlatformRepository) Seed(ctx context.Context, platforms []models.Platform) error {
	batch := &pgx.Batch{}
	query := `
		INSERT INTO platforms (id, code, name, active, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (code) DO NOTHING
	`
	for _, p := range platforms {
		batch.Queue(query, p.ID, p.Code, p.Name, p.Active)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range platforms {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}
	return nil
}
