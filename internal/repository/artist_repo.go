package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/soundledger/stream-ingest-iq/internal/models"
)

// ArtistRepository handles data access for resolved artists.
type ArtistRepository struct {
	pool *pgxpool.Pool
}

// NewArtistRepository creates a new artist repository.
func NewArtistRepository(pool *pgxpool.Pool) *ArtistRepository {
	return &ArtistRepository{pool: pool}
}

const artistColumns = `id, name, name_normalized, created_at, updated_at`

func scanArtist(row pgx.Row, a *models.Artist) error {
	return row.Scan(&a.ID, &a.Name, &a.NameNormalized, &a.CreatedAt, &a.UpdatedAt)
}

// GetOrCreate resolves an artist by normalized name, creating the row when
// it does not exist yet. The INSERT ... ON CONFLICT plus reselect makes the
// operation race-safe: two concurrent files naming the same artist always
// converge on one row.
func (r *ArtistRepository) GetOrCreate(ctx context.Context, name, nameNormalized string) (*models.Artist, error) {
	if nameNormalized == "" {
		return nil, errors.New("artist normalized name cannot be empty")
	}

	query := `
		WITH inserted AS (
			INSERT INTO artists (id, name, name_normalized, created_at, updated_at)
			VALUES ($1, $2, $3, NOW(), NOW())
			ON CONFLICT (name_normalized) DO NOTHING
			RETURNING ` + artistColumns + `
		)
		SELECT ` + artistColumns + ` FROM inserted
		UNION ALL
		SELECT ` + artistColumns + `
		FROM artists
		WHERE name_normalized = $3
		  AND NOT EXISTS (SELECT 1 FROM inserted)
	`

	a := &models.Artist{}
	err := scanArtist(r.pool.QueryRow(ctx, query, uuid.New(), name, nameNormalized), a)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errors.New("unexpected empty result from artist upsert")
		}
		return nil, err
	}
	return a, nil
}

// GetByNormalizedName retrieves an artist by normalized name. Returns
// nil, nil when no artist matches.
func (r *ArtistRepository) GetByNormalizedName(ctx context.Context, nameNormalized string) (*models.Artist, error) {
	query := `SELECT ` + artistColumns + ` FROM artists WHERE name_normalized = $1`
	a := &models.Artist{}
	err := scanArtist(r.pool.QueryRow(ctx, query, nameNormalized), a)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return a, nil
}
