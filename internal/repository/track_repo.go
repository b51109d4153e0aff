package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/soundledger/stream-ingest-iq/internal/models"
)

// TrackRepository handles data access for resolved tracks.
type TrackRepository struct {
	pool *pgxpool.Pool
}

// NewTrackRepository creates a new track repository.
func NewTrackRepository(pool *pgxpool.Pool) *TrackRepository {
	return &TrackRepository{pool: pool}
}

const trackColumns = `id, artist_id, title, title_normalized, isrc, album_name, duration_seconds, created_at, updated_at`

func scanTrack(row pgx.Row, t *models.Track) error {
	return row.Scan(
		&t.ID,
		&t.ArtistID,
		&t.Title,
		&t.TitleNormalized,
		&t.ISRC,
		&t.AlbumName,
		&t.DurationSeconds,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
}

// GetOrCreate resolves a track, creating it when missing. ISRC is the
// authoritative identity when present; otherwise the normalized title plus
// artist is the key. Both paths use the race-safe upsert-then-reselect
// pattern.
func (r *TrackRepository) GetOrCreate(ctx context.Context, artistID uuid.UUID, title, titleNormalized string, isrc, albumName *string) (*models.Track, error) {
	if titleNormalized == "" {
		return nil, errors.New("track normalized title cannot be empty")
	}

	if isrc != nil && *isrc != "" {
		return r.getOrCreateByISRC(ctx, artistID, title, titleNormalized, *isrc, albumName)
	}
	return r.getOrCreateByTitle(ctx, artistID, title, titleNormalized, albumName)
}

func (r *TrackRepository) getOrCreateByISRC(ctx context.Context, artistID uuid.UUID, title, titleNormalized, isrc string, albumName *string) (*models.Track, error) {
	// The insert can conflict on either the ISRC index or the
	// (artist_id, title_normalized) constraint, so the conflict clause names
	// no target and the reselect checks both keys, ISRC first.
	query := `
		WITH inserted AS (
			INSERT INTO tracks (id, artist_id, title, title_normalized, isrc, album_name, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
			ON CONFLICT DO NOTHING
			RETURNING ` + trackColumns + `
		)
		SELECT ` + trackColumns + ` FROM inserted
		UNION ALL
		SELECT ` + trackColumns + `
		FROM tracks
		WHERE isrc = $5
		  AND NOT EXISTS (SELECT 1 FROM inserted)
		UNION ALL
		SELECT ` + trackColumns + `
		FROM tracks
		WHERE artist_id = $2 AND title_normalized = $4
		  AND NOT EXISTS (SELECT 1 FROM inserted)
		  AND NOT EXISTS (SELECT 1 FROM tracks WHERE isrc = $5)
		LIMIT 1
	`

	t := &models.Track{}
	err := scanTrack(r.pool.QueryRow(ctx, query, uuid.New(), artistID, title, titleNormalized, isrc, albumName), t)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errors.New("unexpected empty result from track upsert")
		}
		return nil, err
	}
	return t, nil
}

func (r *TrackRepository) getOrCreateByTitle(ctx context.Context, artistID uuid.UUID, title, titleNormalized string, albumName *string) (*models.Track, error) {
	query := `
		WITH inserted AS (
			INSERT INTO tracks (id, artist_id, title, title_normalized, album_name, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
			ON CONFLICT (artist_id, title_normalized) DO NOTHING
			RETURNING ` + trackColumns + `
		)
		SELECT ` + trackColumns + ` FROM inserted
		UNION ALL
		SELECT ` + trackColumns + `
		FROM tracks
		WHERE artist_id = $2 AND title_normalized = $4
		  AND NOT EXISTS (SELECT 1 FROM inserted)
	`

	t := &models.Track{}
	err := scanTrack(r.pool.QueryRow(ctx, query, uuid.New(), artistID, title, titleNormalized, albumName), t)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errors.New("unexpected empty result from track upsert")
		}
		return nil, err
	}
	return t, nil
}

// GetByISRC retrieves a track by ISRC. Returns nil, nil when no track
// matches.
func (r *TrackRepository) GetByISRC(ctx context.Context, isrc string) (*models.Track, error) {
	query := `SELECT ` + trackColumns + ` FROM tracks WHERE isrc = $1`
	t := &models.Track{}
	err := scanTrack(r.pool.QueryRow(ctx, query, isrc), t)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return t, nil
}
