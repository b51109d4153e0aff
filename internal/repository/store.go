package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/soundledger/stream-ingest-iq/internal/models"
)

// Store bundles the repositories into the storage surface the processing
// pipeline consumes.
type Store struct {
	Platforms *PlatformRepository
	Artists   *ArtistRepository
	Tracks    *TrackRepository
	Records   *RecordRepository
	Logs      *ProcessingLogRepository
	Quality   *QualityRepository
}

// NewStore creates the repository bundle over one connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		Platforms: NewPlatformRepository(pool),
		Artists:   NewArtistRepository(pool),
		Tracks:    NewTrackRepository(pool),
		Records:   NewRecordRepository(pool),
		Logs:      NewProcessingLogRepository(pool),
		Quality:   NewQualityRepository(pool),
	}
}

func (s *Store) GetPlatformByCode(ctx context.Context, code string) (*models.Platform, error) {
	return s.Platforms.GetByCode(ctx, code)
}

func (s *Store) FindCompletedLogByHash(ctx context.Context, fileHash string) (*models.ProcessingLog, error) {
	return s.Logs.FindCompletedByHash(ctx, fileHash)
}

func (s *Store) GetOrCreateArtist(ctx context.Context, name, nameNormalized string) (*models.Artist, error) {
	return s.Artists.GetOrCreate(ctx, name, nameNormalized)
}

func (s *Store) GetOrCreateTrack(ctx context.Context, artistID uuid.UUID, title, titleNormalized string, isrc, albumName *string) (*models.Track, error) {
	return s.Tracks.GetOrCreate(ctx, artistID, title, titleNormalized, isrc, albumName)
}

func (s *Store) InsertRecords(ctx context.Context, records []models.StreamingRecord) (int, int, error) {
	return s.Records.BulkInsert(ctx, records)
}

func (s *Store) InsertProcessingLog(ctx context.Context, log *models.ProcessingLog) error {
	return s.Logs.Insert(ctx, log)
}

func (s *Store) InsertQualityScore(ctx context.Context, score *models.QualityScore) error {
	return s.Quality.Insert(ctx, score)
}
