package process

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundledger/stream-ingest-iq/internal/detect"
	"github.com/soundledger/stream-ingest-iq/internal/models"
	"github.com/soundledger/stream-ingest-iq/internal/parse"
	"github.com/soundledger/stream-ingest-iq/internal/platform"
	"github.com/soundledger/stream-ingest-iq/internal/validate"
)

// fakeStore is an in-memory Storage for pipeline tests. It mirrors the
// repository semantics: entity lookups canonicalize on normalized names and
// ISRC, track resolution arbitrates both the ISRC and the artist+title keys,
// and the completed-log index only sees runs that stored data.
type fakeStore struct {
	platforms   map[string]*models.Platform
	artists     map[string]*models.Artist
	tracks      map[string]*models.Track
	records     []models.StreamingRecord
	logs        []*models.ProcessingLog
	scores      []*models.QualityScore
	failArtists map[string]bool
}

func newFakeStore(codes ...string) *fakeStore {
	s := &fakeStore{
		platforms: make(map[string]*models.Platform),
		artists:   make(map[string]*models.Artist),
		tracks:    make(map[string]*models.Track),
	}
	for _, code := range codes {
		s.platforms[code] = &models.Platform{ID: uuid.New(), Code: code, Active: true}
	}
	return s
}

func (s *fakeStore) GetPlatformByCode(_ context.Context, code string) (*models.Platform, error) {
	return s.platforms[code], nil
}

func (s *fakeStore) FindCompletedLogByHash(_ context.Context, fileHash string) (*models.ProcessingLog, error) {
	for _, log := range s.logs {
		if log.FileHash == fileHash &&
			(log.Status == models.StatusCompleted || log.Status == models.StatusPartial) {
			return log, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) GetOrCreateArtist(_ context.Context, name, nameNormalized string) (*models.Artist, error) {
	if s.failArtists[nameNormalized] {
		return nil, errors.New("artist lookup unavailable")
	}
	if a, ok := s.artists[nameNormalized]; ok {
		return a, nil
	}
	a := &models.Artist{ID: uuid.New(), Name: name, NameNormalized: nameNormalized}
	s.artists[nameNormalized] = a
	return a, nil
}

func (s *fakeStore) GetOrCreateTrack(_ context.Context, artistID uuid.UUID, title, titleNormalized string, isrc, albumName *string) (*models.Track, error) {
	titleKey := titleNormalized + "|" + artistID.String()
	if isrc != nil {
		if t, ok := s.tracks["isrc:"+*isrc]; ok {
			return t, nil
		}
	}
	if t, ok := s.tracks[titleKey]; ok {
		if isrc != nil {
			s.tracks["isrc:"+*isrc] = t
		}
		return t, nil
	}
	t := &models.Track{ID: uuid.New(), ArtistID: artistID, Title: title, TitleNormalized: titleNormalized, ISRC: isrc, AlbumName: albumName}
	if isrc != nil {
		s.tracks["isrc:"+*isrc] = t
	}
	s.tracks[titleKey] = t
	return t, nil
}

func (s *fakeStore) InsertRecords(_ context.Context, records []models.StreamingRecord) (int, int, error) {
	s.records = append(s.records, records...)
	return len(records), 0, nil
}

func (s *fakeStore) InsertProcessingLog(_ context.Context, log *models.ProcessingLog) error {
	s.logs = append(s.logs, log)
	return nil
}

func (s *fakeStore) InsertQualityScore(_ context.Context, score *models.QualityScore) error {
	s.scores = append(s.scores, score)
	return nil
}

func newTestProcessor(t *testing.T, store Storage) *Processor {
	t.Helper()
	registry, err := platform.NewRegistry()
	require.NoError(t, err)
	parser := parse.NewParser(registry, detect.NewDetector(registry, 0), parse.NewDateNormalizer())
	engine := validate.NewEngine(validate.DefaultThresholds())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewProcessor(store, registry, parser, engine, logger)
}

func writeReport(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const spotifyReport = "track_name\tartist_name\tstreams\tdate\n" +
	"Anti-Hero\tTaylor Swift\t5000\t2024-01-15\n" +
	"Flowers\tMiley Cyrus\t4000\t2024-01-15\n"

func TestProcessFile_CompletedRun(t *testing.T) {
	store := newFakeStore("spo-spotify")
	p := newTestProcessor(t, store)
	path := writeReport(t, t.TempDir(), "spotify_daily.tsv", spotifyReport)

	report, err := p.ProcessFile(context.Background(), path, false)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, report.Status)
	assert.Equal(t, "spo-spotify", report.Platform)
	assert.Equal(t, 2, report.RowsParsed)
	assert.Equal(t, 2, report.RecordsStored)
	assert.Zero(t, report.RecordsFailed)
	assert.Equal(t, 100.0, report.QualityScore)

	require.Len(t, store.records, 2)
	rec := store.records[0]
	assert.Equal(t, "streams", rec.MetricType)
	assert.Equal(t, "5000", rec.MetricValue.String())
	assert.Equal(t, store.platforms["spo-spotify"].ID, rec.PlatformID)
	assert.Equal(t, "2024-01-15", rec.EventDate.Format("2006-01-02"))
	assert.Equal(t, "Taylor Swift", rec.ArtistName)
	assert.Equal(t, "Anti-Hero", rec.TrackTitle)
	require.NotNil(t, rec.TrackID)
	assert.Equal(t, report.FileHash, rec.FileHash)
	assert.Equal(t, "spotify_daily.tsv", rec.RawDataSource)
	assert.Equal(t, 100.0, rec.DataQualityScore)

	require.Len(t, store.logs, 1)
	assert.Equal(t, models.StatusCompleted, store.logs[0].Status)
	assert.Equal(t, report.LogID, store.logs[0].ID)
	assert.Equal(t, store.logs[0].ID, rec.ProcessingLogID)

	require.Len(t, store.scores, 1)
	assert.Equal(t, store.logs[0].ID, store.scores[0].ProcessingLogID)
	assert.Equal(t, 100.0, store.scores[0].OverallScore)
	assert.Greater(t, store.scores[0].ParseScore, 90.0)
}

func TestProcessFile_DuplicateSkippedUnlessForced(t *testing.T) {
	store := newFakeStore("spo-spotify")
	p := newTestProcessor(t, store)
	path := writeReport(t, t.TempDir(), "spotify_daily.tsv", spotifyReport)

	first, err := p.ProcessFile(context.Background(), path, false)
	require.NoError(t, err)
	require.Equal(t, models.StatusCompleted, first.Status)

	second, err := p.ProcessFile(context.Background(), path, false)
	require.NoError(t, err)
	assert.True(t, second.Skipped())
	assert.Zero(t, second.RecordsStored)
	assert.Len(t, store.records, 2, "duplicate must not store records again")

	forced, err := p.ProcessFile(context.Background(), path, true)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, forced.Status)
	assert.Len(t, store.records, 4)
}

func TestProcessFile_EntityResolutionCanonicalizes(t *testing.T) {
	store := newFakeStore("spo-spotify")
	p := newTestProcessor(t, store)
	dir := t.TempDir()

	content := "track_name\tartist_name\tstreams\tdate\n" +
		"Anti-Hero\tTaylor Swift\t5000\t2024-01-15\n" +
		"Anti-Hero\ttaylor  swift\t300\t2024-01-16\n"
	path := writeReport(t, dir, "spotify_mixed_case.tsv", content)

	report, err := p.ProcessFile(context.Background(), path, false)
	require.NoError(t, err)
	assert.Equal(t, 2, report.RecordsStored)

	assert.Len(t, store.artists, 1, "case and spacing variants resolve to one artist")
	assert.Len(t, store.tracks, 1)
	assert.Equal(t, store.records[0].ArtistID, store.records[1].ArtistID)
	assert.Equal(t, store.records[0].TrackID, store.records[1].TrackID)
}

func TestProcessFile_RowFailuresAreIsolated(t *testing.T) {
	store := newFakeStore("spo-spotify")
	store.failArtists = map[string]bool{"ghost artist": true}
	p := newTestProcessor(t, store)

	content := "track_name\tartist_name\tstreams\tdate\n" +
		"Anti-Hero\tTaylor Swift\t5000\t2024-01-15\n" +
		"Phantom\tGhost Artist\t100\t2024-01-15\n"
	path := writeReport(t, t.TempDir(), "spotify_ragged.tsv", content)

	report, err := p.ProcessFile(context.Background(), path, false)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPartial, report.Status)
	assert.Equal(t, 1, report.RecordsStored)
	assert.Equal(t, 1, report.RecordsFailed)
	assert.Len(t, store.records, 1)
}

func TestProcessFile_UntitledRowKeepsNullTrack(t *testing.T) {
	store := newFakeStore("spo-spotify")
	p := newTestProcessor(t, store)

	content := "track_name\tartist_name\tstreams\tdate\n" +
		"Anti-Hero\tTaylor Swift\t5000\t2024-01-15\n" +
		"\tGhost Artist\t100\t2024-01-15\n"
	path := writeReport(t, t.TempDir(), "spotify_untitled.tsv", content)

	report, err := p.ProcessFile(context.Background(), path, false)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, report.Status)
	assert.Equal(t, 2, report.RecordsStored)

	require.Len(t, store.records, 2)
	untitled := store.records[1]
	assert.Nil(t, untitled.TrackID, "a row without a title stores a null track reference")
	assert.Empty(t, untitled.TrackTitle)
	assert.Equal(t, "Ghost Artist", untitled.ArtistName)
}

func TestProcessFile_IsrcJoinsExistingTitleTrack(t *testing.T) {
	store := newFakeStore("spo-spotify", "dzr-deezer")
	p := newTestProcessor(t, store)
	dir := t.TempDir()

	first := writeReport(t, dir, "spotify_daily.tsv", spotifyReport)
	second := writeReport(t, dir, "deezer_daily.tsv",
		"isrc\ttrack_name\tartist_name\tstreams\tdate\n"+
			"USRC17607839\tAnti-Hero\tTaylor Swift\t900\t2024-01-16\n")

	_, err := p.ProcessFile(context.Background(), first, false)
	require.NoError(t, err)
	_, err = p.ProcessFile(context.Background(), second, false)
	require.NoError(t, err)

	require.Len(t, store.records, 3)
	spotifyRec, deezerRec := store.records[0], store.records[2]
	require.NotNil(t, spotifyRec.TrackID)
	require.NotNil(t, deezerRec.TrackID)
	assert.Equal(t, *spotifyRec.TrackID, *deezerRec.TrackID,
		"an ISRC arriving after a title-only track joins the existing track")
}

func TestProcessFile_ParseFailureStillAudited(t *testing.T) {
	store := newFakeStore("spo-spotify")
	p := newTestProcessor(t, store)
	path := writeReport(t, t.TempDir(), "mystery.tsv", "a\tb\n1\t2\n")

	report, err := p.ProcessFile(context.Background(), path, false)
	require.NoError(t, err, "data problems are reported, not returned")
	assert.Equal(t, models.StatusFailed, report.Status)
	assert.NotEmpty(t, report.ErrorMessage)

	require.Len(t, store.logs, 1)
	assert.Equal(t, models.StatusFailed, store.logs[0].Status)
	require.Len(t, store.scores, 1, "quality snapshot is written even for failures")
	assert.Zero(t, store.scores[0].OverallScore)
	assert.Empty(t, store.records)
}

func TestProcessFile_CriticalValidationStillStoresRows(t *testing.T) {
	store := newFakeStore("spo-spotify")
	p := newTestProcessor(t, store)

	// Missing the required artist_name and streams columns: a critical
	// finding that lowers the score but must not block storage.
	content := "track_name\tdate\n" +
		"Anti-Hero\t2024-01-15\n" +
		"Flowers\t2024-01-15\n"
	path := writeReport(t, t.TempDir(), "spotify_broken.tsv", content)

	report, err := p.ProcessFile(context.Background(), path, false)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, report.Status)
	assert.Equal(t, 2, report.RecordsStored)
	assert.Less(t, report.QualityScore, 100.0)

	require.Len(t, store.records, 2)
	assert.Equal(t, report.QualityScore, store.records[0].DataQualityScore)
	require.Len(t, store.logs, 1)
	assert.NotEmpty(t, store.logs[0].Issues)
	require.Len(t, store.scores, 1)
	assert.Less(t, store.scores[0].OverallScore, 100.0)
}

func TestProcessFile_UnregisteredPlatformFails(t *testing.T) {
	store := newFakeStore() // no platforms seeded
	p := newTestProcessor(t, store)
	path := writeReport(t, t.TempDir(), "spotify_daily.tsv", spotifyReport)

	report, err := p.ProcessFile(context.Background(), path, false)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, report.Status)
	assert.Contains(t, report.ErrorMessage, "not registered")
}

func TestProcessDirectory_BatchContinuesPastFailures(t *testing.T) {
	store := newFakeStore("spo-spotify", "dzr-deezer")
	p := newTestProcessor(t, store)
	dir := t.TempDir()

	writeReport(t, dir, "spotify_a.tsv", spotifyReport)
	writeReport(t, dir, "deezer_b.tsv",
		"isrc\ttrack_name\tartist_name\tstreams\tdate\n"+
			"USRC17607839\tAnti-Hero\tTaylor Swift\t900\t2024-01-15\n")
	writeReport(t, dir, "mystery_c.tsv", "a\tb\n1\t2\n")

	summary, err := p.ProcessDirectory(context.Background(), dir, "*.tsv", false)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.FilesTotal)
	assert.Equal(t, 2, summary.FilesCompleted)
	assert.Equal(t, 1, summary.FilesFailed)
	assert.Equal(t, 3, summary.RecordsStored)
	require.Len(t, summary.Reports, 3)
}
