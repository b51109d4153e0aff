// Package process orchestrates the ingest run for report files: hashing and
// duplicate detection, parsing, validation, standardization, entity
// resolution, persistence, and the audit trail.
package process

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/soundledger/stream-ingest-iq/internal/models"
	"github.com/soundledger/stream-ingest-iq/internal/parse"
	"github.com/soundledger/stream-ingest-iq/internal/platform"
	"github.com/soundledger/stream-ingest-iq/internal/validate"
)

// Storage is the persistence surface the processor needs. The repository
// package provides the Postgres implementation; tests provide an in-memory
// one.
type Storage interface {
	GetPlatformByCode(ctx context.Context, code string) (*models.Platform, error)
	FindCompletedLogByHash(ctx context.Context, fileHash string) (*models.ProcessingLog, error)
	GetOrCreateArtist(ctx context.Context, name, nameNormalized string) (*models.Artist, error)
	GetOrCreateTrack(ctx context.Context, artistID uuid.UUID, title, titleNormalized string, isrc, albumName *string) (*models.Track, error)
	InsertRecords(ctx context.Context, records []models.StreamingRecord) (stored, failed int, err error)
	InsertProcessingLog(ctx context.Context, log *models.ProcessingLog) error
	InsertQualityScore(ctx context.Context, score *models.QualityScore) error
}

// FileReport summarizes one ProcessFile run.
type FileReport struct {
	LogID         uuid.UUID        `json:"log_id"`
	FileName      string           `json:"file_name"`
	FileHash      string           `json:"file_hash"`
	Platform      string           `json:"platform,omitempty"`
	Status        string           `json:"status"`
	RowsParsed    int              `json:"rows_parsed"`
	RecordsStored int              `json:"records_stored"`
	RecordsFailed int              `json:"records_failed"`
	QualityScore  float64          `json:"quality_score"`
	Issues        []validate.Issue `json:"issues,omitempty"`
	ErrorMessage  string           `json:"error_message,omitempty"`
}

// Skipped reports whether the file was recognized as an already-processed
// duplicate.
func (r *FileReport) Skipped() bool {
	return r.Status == models.StatusSkipped
}

// BatchSummary aggregates a directory run.
type BatchSummary struct {
	FilesTotal     int           `json:"files_total"`
	FilesCompleted int           `json:"files_completed"`
	FilesPartial   int           `json:"files_partial"`
	FilesFailed    int           `json:"files_failed"`
	FilesSkipped   int           `json:"files_skipped"`
	RecordsStored  int           `json:"records_stored"`
	Reports        []*FileReport `json:"reports"`
}

// Processor runs the ingest pipeline. It never aborts a batch for one bad
// file, and it always leaves an audit log entry behind for every file it
// touched.
type Processor struct {
	storage  Storage
	registry *platform.Registry
	parser   *parse.Parser
	engine   *validate.Engine
	logger   *slog.Logger
	now      func() time.Time
}

// NewProcessor wires the pipeline together.
func NewProcessor(storage Storage, registry *platform.Registry, parser *parse.Parser, engine *validate.Engine, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		storage:  storage,
		registry: registry,
		parser:   parser,
		engine:   engine,
		logger:   logger.With(slog.String("service", "ingest-pipeline")),
		now:      time.Now,
	}
}

// ProcessFile runs one file through the full pipeline. It returns an error
// only for infrastructure failures (unreadable file, storage down); data
// problems come back inside the FileReport with a failed or partial status.
// When force is set, duplicate detection is bypassed.
func (p *Processor) ProcessFile(ctx context.Context, path string, force bool) (*FileReport, error) {
	startedAt := p.now()
	fileName := filepath.Base(path)
	logger := p.logger.With(
		slog.String("file", fileName),
		slog.String("run_id", uuid.NewString()),
	)

	stepLogger := logger.With(slog.String("step", "hash"))
	fileHash, fileSize, err := FileHash(path)
	if err != nil {
		stepLogger.Error("failed to hash file", slog.String("error", err.Error()))
		return nil, err
	}
	stepLogger.Info("file hashed", slog.String("sha256", fileHash), slog.Int64("bytes", fileSize))

	report := &FileReport{FileName: fileName, FileHash: fileHash}

	stepLogger = logger.With(slog.String("step", "dedup"))
	if !force {
		prior, err := p.storage.FindCompletedLogByHash(ctx, fileHash)
		if err != nil {
			stepLogger.Error("duplicate lookup failed", slog.String("error", err.Error()))
			return nil, fmt.Errorf("duplicate lookup: %w", err)
		}
		if prior != nil {
			stepLogger.Info("duplicate file, skipping",
				slog.String("prior_log_id", prior.ID.String()))
			report.Status = models.StatusSkipped
			report.ErrorMessage = fmt.Sprintf("already processed as %s", prior.ID)
			logEntry := p.newLog(report, fileSize, startedAt)
			logEntry.PlatformID = prior.PlatformID
			if err := p.storage.InsertProcessingLog(ctx, logEntry); err != nil {
				return nil, fmt.Errorf("write audit log: %w", err)
			}
			report.LogID = logEntry.ID
			return report, nil
		}
	}

	stepLogger = logger.With(slog.String("step", "parse"))
	parsed := p.parser.ParseFile(path)
	report.Platform = parsed.Platform
	report.RowsParsed = parsed.RowsParsed
	if !parsed.Success {
		stepLogger.Warn("parse failed", slog.String("reason", parsed.ErrorMessage))
		report.Status = models.StatusFailed
		report.ErrorMessage = parsed.ErrorMessage
		return report, p.finalize(ctx, report, fileSize, startedAt, nil, parsed, validate.Result{})
	}
	stepLogger.Info("file parsed",
		slog.String("platform", parsed.Platform),
		slog.String("encoding", parsed.Encoding),
		slog.String("format", parsed.Format),
		slog.Int("rows", parsed.RowsParsed))

	cfg, ok := p.registry.Get(parsed.Platform)
	if !ok {
		report.Status = models.StatusFailed
		report.ErrorMessage = fmt.Sprintf("platform %s is not in the catalog", parsed.Platform)
		return report, p.finalize(ctx, report, fileSize, startedAt, nil, parsed, validate.Result{})
	}

	dbPlatform, err := p.storage.GetPlatformByCode(ctx, parsed.Platform)
	if err != nil {
		return nil, fmt.Errorf("look up platform %s: %w", parsed.Platform, err)
	}
	if dbPlatform == nil {
		report.Status = models.StatusFailed
		report.ErrorMessage = fmt.Sprintf("platform %s is not registered", parsed.Platform)
		return report, p.finalize(ctx, report, fileSize, startedAt, nil, parsed, validate.Result{})
	}

	stepLogger = logger.With(slog.String("step", "validate"))
	validation := p.engine.ValidateTable(parsed.Table, cfg)
	report.Issues = validation.Issues
	report.QualityScore = validation.Scores.Overall
	stepLogger.Info("table validated",
		slog.Int("rules_passed", validation.RulesPassed),
		slog.Int("rules_total", validation.RulesTotal),
		slog.Float64("overall_score", validation.Scores.Overall))
	if validation.HasCritical() {
		// Critical findings lower the recorded score and land in the audit
		// trail, but the rows still get stored.
		stepLogger.Warn("critical validation issues, storing with lowered score")
	}

	stepLogger = logger.With(slog.String("step", "standardize"))
	rows := StandardizeTable(parsed.Table, cfg, defaultEventDate(p.now()))
	stepLogger.Info("rows standardized", slog.Int("rows", len(rows)))

	stepLogger = logger.With(slog.String("step", "resolve_and_store"))
	logID := uuid.New()
	meta := recordMeta{
		platformID: dbPlatform.ID,
		logID:      logID,
		fileName:   report.FileName,
		fileHash:   fileHash,
		quality:    validation.Scores.Overall,
	}
	records, resolveFailed := p.resolveRows(ctx, stepLogger, rows, cfg, meta)

	stored, insertFailed, err := p.storage.InsertRecords(ctx, records)
	if err != nil {
		stepLogger.Error("record insert failed", slog.String("error", err.Error()))
		return nil, fmt.Errorf("insert records: %w", err)
	}
	report.RecordsStored = stored
	report.RecordsFailed = resolveFailed + insertFailed
	stepLogger.Info("records stored",
		slog.Int("stored", stored),
		slog.Int("failed", report.RecordsFailed))

	switch {
	case stored == 0 && report.RecordsFailed > 0:
		report.Status = models.StatusFailed
		report.ErrorMessage = "no records could be stored"
	case report.RecordsFailed > 0:
		report.Status = models.StatusPartial
	default:
		report.Status = models.StatusCompleted
	}

	return report, p.finalizeWithID(ctx, report, logID, fileSize, startedAt, &dbPlatform.ID, parsed, validation)
}

// ProcessDirectory runs every file matching pattern under dir, in name
// order. One failing file never stops the batch.
func (p *Processor) ProcessDirectory(ctx context.Context, dir, pattern string, force bool) (*BatchSummary, error) {
	if pattern == "" {
		pattern = "*"
	}
	paths, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, fmt.Errorf("bad file pattern %q: %w", pattern, err)
	}
	sort.Strings(paths)

	summary := &BatchSummary{FilesTotal: len(paths)}
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		report, err := p.ProcessFile(ctx, path, force)
		if err != nil {
			p.logger.Error("file run aborted",
				slog.String("file", filepath.Base(path)),
				slog.String("error", err.Error()))
			summary.FilesFailed++
			summary.Reports = append(summary.Reports, &FileReport{
				FileName:     filepath.Base(path),
				Status:       models.StatusFailed,
				ErrorMessage: err.Error(),
			})
			continue
		}
		summary.Reports = append(summary.Reports, report)
		summary.RecordsStored += report.RecordsStored
		switch report.Status {
		case models.StatusCompleted:
			summary.FilesCompleted++
		case models.StatusPartial:
			summary.FilesPartial++
		case models.StatusSkipped:
			summary.FilesSkipped++
		default:
			summary.FilesFailed++
		}
	}

	p.logger.Info("batch finished",
		slog.Int("files", summary.FilesTotal),
		slog.Int("completed", summary.FilesCompleted),
		slog.Int("partial", summary.FilesPartial),
		slog.Int("failed", summary.FilesFailed),
		slog.Int("skipped", summary.FilesSkipped),
		slog.Int("records", summary.RecordsStored))
	return summary, nil
}

// recordMeta carries the run-level fields stamped onto every stored record:
// the owning platform and audit log, the source file identity, and the run's
// overall quality score.
type recordMeta struct {
	platformID uuid.UUID
	logID      uuid.UUID
	fileName   string
	fileHash   string
	quality    float64
}

// resolveRows turns standard rows into storable records, resolving artist
// and track entities. Each row fails independently; one unresolvable row
// never poisons its neighbors.
func (p *Processor) resolveRows(
	ctx context.Context,
	logger *slog.Logger,
	rows []StandardRow,
	cfg *platform.Config,
	meta recordMeta,
) ([]models.StreamingRecord, int) {
	records := make([]models.StreamingRecord, 0, len(rows))
	failed := 0
	for i, row := range rows {
		record, err := p.resolveRow(ctx, row, cfg, meta)
		if err != nil {
			failed++
			if failed <= 10 {
				logger.Warn("row skipped",
					slog.Int("row", i),
					slog.String("error", err.Error()))
			}
			continue
		}
		records = append(records, *record)
	}
	return records, failed
}

func (p *Processor) resolveRow(ctx context.Context, row StandardRow, cfg *platform.Config, meta recordMeta) (*models.StreamingRecord, error) {
	artistName := row.ArtistName
	if artistName == "" {
		artistName = "Unknown Artist"
	}

	artist, err := p.storage.GetOrCreateArtist(ctx, artistName, NormalizeName(artistName))
	if err != nil {
		return nil, fmt.Errorf("resolve artist %q: %w", artistName, err)
	}

	var isrc, album *string
	if row.ISRC != "" {
		isrc = &row.ISRC
	}
	if row.AlbumName != "" {
		album = &row.AlbumName
	}

	// Rows without a track title keep the artist reference and the raw
	// snapshot; the track reference stays null.
	var trackID *uuid.UUID
	if row.TrackTitle != "" {
		track, err := p.storage.GetOrCreateTrack(ctx, artist.ID, row.TrackTitle, NormalizeName(row.TrackTitle), isrc, album)
		if err != nil {
			return nil, fmt.Errorf("resolve track %q: %w", row.TrackTitle, err)
		}
		id := track.ID
		trackID = &id
	}

	record := &models.StreamingRecord{
		ID:               uuid.New(),
		PlatformID:       meta.platformID,
		TrackID:          trackID,
		ArtistID:         artist.ID,
		ProcessingLogID:  meta.logID,
		ArtistName:       artistName,
		TrackTitle:       row.TrackTitle,
		AlbumName:        album,
		EventDate:        row.EventDate,
		MetricType:       cfg.MetricType,
		MetricValue:      row.MetricValue,
		DataQualityScore: meta.quality,
		RawDataSource:    meta.fileName,
		FileHash:         meta.fileHash,
		CreatedAt:        p.now(),
	}
	record.Geography = optional(row.Geography)
	record.DeviceType = optional(row.DeviceType)
	record.SubscriptionType = optional(row.SubscriptionType)
	record.ContextType = optional(row.ContextType)
	if len(row.Demographics) > 0 {
		if raw, err := json.Marshal(row.Demographics); err == nil {
			record.Demographics = raw
		}
	}
	if len(row.Raw) > 0 {
		if raw, err := json.Marshal(row.Raw); err == nil {
			record.RawRow = raw
		}
	}
	return record, nil
}

// finalize writes the audit log and quality snapshot for a run that did not
// reach the storage step.
func (p *Processor) finalize(ctx context.Context, report *FileReport, fileSize int64, startedAt time.Time, platformID *uuid.UUID, parsed parse.Result, validation validate.Result) error {
	return p.finalizeWithID(ctx, report, uuid.New(), fileSize, startedAt, platformID, parsed, validation)
}

// finalizeWithID writes the audit log under a pre-allocated ID, plus the
// quality snapshot. Every non-skipped run ends here, whatever its status.
func (p *Processor) finalizeWithID(ctx context.Context, report *FileReport, logID uuid.UUID, fileSize int64, startedAt time.Time, platformID *uuid.UUID, parsed parse.Result, validation validate.Result) error {
	logEntry := p.newLog(report, fileSize, startedAt)
	logEntry.ID = logID
	logEntry.PlatformID = platformID
	logEntry.Format = parsed.Format
	logEntry.Encoding = parsed.Encoding
	if len(validation.Issues) > 0 {
		if raw, err := json.Marshal(validation.Issues); err == nil {
			logEntry.Issues = raw
		}
	}
	if err := p.storage.InsertProcessingLog(ctx, logEntry); err != nil {
		return fmt.Errorf("write audit log: %w", err)
	}
	report.LogID = logEntry.ID

	score := &models.QualityScore{
		ID:                uuid.New(),
		ProcessingLogID:   logEntry.ID,
		ParseScore:        parsed.QualityScore,
		CompletenessScore: validation.Scores.Completeness,
		ConsistencyScore:  validation.Scores.Consistency,
		ValidityScore:     validation.Scores.Validity,
		OverallScore:      validation.Scores.Overall,
		RulesPassed:       validation.RulesPassed,
		RulesTotal:        validation.RulesTotal,
		CreatedAt:         p.now(),
	}
	if len(validation.Metrics) > 0 {
		if raw, err := json.Marshal(validation.Metrics); err == nil {
			score.Metrics = raw
		}
	}
	if err := p.storage.InsertQualityScore(ctx, score); err != nil {
		return fmt.Errorf("write quality snapshot: %w", err)
	}
	return nil
}

func (p *Processor) newLog(report *FileReport, fileSize int64, startedAt time.Time) *models.ProcessingLog {
	completedAt := p.now()
	entry := &models.ProcessingLog{
		ID:            uuid.New(),
		FileName:      report.FileName,
		FileHash:      report.FileHash,
		FileSize:      fileSize,
		Status:        report.Status,
		RowsParsed:    report.RowsParsed,
		RecordsStored: report.RecordsStored,
		RecordsFailed: report.RecordsFailed,
		StartedAt:     startedAt,
		CompletedAt:   &completedAt,
		CreatedAt:     completedAt,
	}
	if report.ErrorMessage != "" {
		msg := report.ErrorMessage
		entry.ErrorMessage = &msg
	}
	return entry
}

// defaultEventDate is used for rows whose report carries no usable date:
// midnight UTC of the processing day.
func defaultEventDate(now time.Time) time.Time {
	y, m, d := now.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
