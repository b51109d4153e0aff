package api

import (
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/soundledger/stream-ingest-iq/internal/api/handlers"
	"github.com/soundledger/stream-ingest-iq/internal/api/middleware"
	"github.com/soundledger/stream-ingest-iq/internal/config"
	"github.com/soundledger/stream-ingest-iq/internal/detect"
	"github.com/soundledger/stream-ingest-iq/internal/parse"
	"github.com/soundledger/stream-ingest-iq/internal/platform"
	"github.com/soundledger/stream-ingest-iq/internal/process"
	"github.com/soundledger/stream-ingest-iq/internal/repository"
	"github.com/soundledger/stream-ingest-iq/internal/validate"
)

// NewRouter creates and configures the Gin router with all routes and middleware.
func NewRouter(pool *pgxpool.Pool, cfg *config.Config, registry *platform.Registry) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(gin.Recovery())
	r.Use(middleware.CORSMiddleware())
	r.Use(middleware.CorrelationMiddleware())
	r.Use(middleware.StructuredLogging())

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "healthy",
			"service": "stream-ingest-iq",
		})
	})

	// Initialize storage and pipeline
	store := repository.NewStore(pool)
	detector := detect.NewDetector(registry, cfg.Ingest.SampleBytes)
	parser := parse.NewParser(registry, detector, parse.NewDateNormalizer())
	engine := validate.NewEngine(thresholdsFromConfig(cfg.Validation))
	processor := process.NewProcessor(store, registry, parser, engine, nil)

	// Initialize handlers
	platformHandler := handlers.NewPlatformHandler(store.Platforms)
	recordHandler := handlers.NewRecordHandler(store.Records)
	processingHandler := handlers.NewProcessingHandler(processor, store.Logs, store.Quality)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/platforms", platformHandler.HandleList)
		v1.GET("/records", recordHandler.HandleList)

		v1.POST("/process", processingHandler.HandleProcess)
		v1.GET("/processing-logs", processingHandler.HandleListLogs)
		v1.GET("/processing-logs/:log_id", processingHandler.HandleGetLog)
		v1.GET("/processing-logs/:log_id/quality", processingHandler.HandleGetLogQuality)
		v1.GET("/quality", processingHandler.HandleListQuality)
	}

	return r
}

// thresholdsFromConfig maps the environment-driven validation settings onto
// the rule engine's thresholds.
func thresholdsFromConfig(v config.ValidationConfig) validate.Thresholds {
	return validate.Thresholds{
		NullWarnRatio:       v.NullWarnRatio,
		NullErrorRatio:      v.NullErrorRatio,
		MixedTypeLowRatio:   v.MixedTypeLowRatio,
		MixedTypeHighRatio:  v.MixedTypeHighRatio,
		DateSampleSize:      v.DateSampleSize,
		DateCriticalRatio:   v.DateCriticalRatio,
		DuplicateErrorRatio: v.DuplicateErrorRatio,
	}
}
