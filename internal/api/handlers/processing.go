package handlers

import (
	"net/http"
	"os"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/soundledger/stream-ingest-iq/internal/api/response"
	"github.com/soundledger/stream-ingest-iq/internal/models"
	"github.com/soundledger/stream-ingest-iq/internal/process"
	"github.com/soundledger/stream-ingest-iq/internal/repository"
)

// ProcessingHandler handles ingest runs and the audit/quality read side.
type ProcessingHandler struct {
	processor   *process.Processor
	logRepo     *repository.ProcessingLogRepository
	qualityRepo *repository.QualityRepository
}

// NewProcessingHandler creates a new processing handler.
func NewProcessingHandler(processor *process.Processor, logRepo *repository.ProcessingLogRepository, qualityRepo *repository.QualityRepository) *ProcessingHandler {
	return &ProcessingHandler{
		processor:   processor,
		logRepo:     logRepo,
		qualityRepo: qualityRepo,
	}
}

type processRequest struct {
	// Path is a report file or a directory on the server.
	Path string `json:"path" binding:"required"`
	// Pattern filters files when Path is a directory.
	Pattern string `json:"pattern"`
	// Force bypasses duplicate-file detection.
	Force bool `json:"force"`
}

// HandleProcess handles POST /api/v1/process: runs the ingest pipeline over
// a server-local file or directory.
func (h *ProcessingHandler) HandleProcess(c *gin.Context) {
	var req processRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body", err.Error())
		return
	}

	info, err := os.Stat(req.Path)
	if err != nil {
		response.NotFound(c, "path not found: "+req.Path)
		return
	}

	ctx := c.Request.Context()
	if info.IsDir() {
		summary, err := h.processor.ProcessDirectory(ctx, req.Path, req.Pattern, req.Force)
		if err != nil {
			response.InternalError(c, "batch processing failed")
			return
		}
		response.Success(c, http.StatusOK, summary)
		return
	}

	report, err := h.processor.ProcessFile(ctx, req.Path, req.Force)
	if err != nil {
		response.InternalError(c, "file processing failed")
		return
	}
	if report.Skipped() {
		response.Conflict(c, "file was already processed", report)
		return
	}
	response.Success(c, http.StatusOK, report)
}

// HandleListLogs handles GET /api/v1/processing-logs. Supported query
// params: status, page, page_size.
func (h *ProcessingHandler) HandleListLogs(c *gin.Context) {
	status := c.Query("status")
	switch status {
	case "", models.StatusCompleted, models.StatusPartial, models.StatusFailed, models.StatusSkipped:
	default:
		response.BadRequest(c, "unknown status filter", nil)
		return
	}

	page, pageSize := paginationParams(c)
	logs, total, err := h.logRepo.List(c.Request.Context(), status, page, pageSize)
	if err != nil {
		response.InternalError(c, "failed to list processing logs")
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"logs": logs,
		"pagination": models.Pagination{
			Page:         page,
			PageSize:     pageSize,
			TotalResults: total,
			TotalPages:   (total + pageSize - 1) / pageSize,
		},
	})
}

// HandleGetLog handles GET /api/v1/processing-logs/:log_id.
func (h *ProcessingHandler) HandleGetLog(c *gin.Context) {
	logID, err := uuid.Parse(c.Param("log_id"))
	if err != nil {
		response.BadRequest(c, "invalid log_id format", nil)
		return
	}

	log, err := h.logRepo.GetByID(c.Request.Context(), logID)
	if err != nil {
		response.InternalError(c, "failed to get processing log")
		return
	}
	if log == nil {
		response.NotFound(c, "processing log not found")
		return
	}
	response.Success(c, http.StatusOK, log)
}

// HandleGetLogQuality handles GET /api/v1/processing-logs/:log_id/quality.
func (h *ProcessingHandler) HandleGetLogQuality(c *gin.Context) {
	logID, err := uuid.Parse(c.Param("log_id"))
	if err != nil {
		response.BadRequest(c, "invalid log_id format", nil)
		return
	}

	score, err := h.qualityRepo.GetByLogID(c.Request.Context(), logID)
	if err != nil {
		response.InternalError(c, "failed to get quality score")
		return
	}
	if score == nil {
		response.NotFound(c, "quality score not found")
		return
	}
	response.Success(c, http.StatusOK, score)
}

// HandleListQuality handles GET /api/v1/quality. Supported query params:
// limit (default 20, max 100).
func (h *ProcessingHandler) HandleListQuality(c *gin.Context) {
	limit := 20
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	scores, err := h.qualityRepo.ListRecent(c.Request.Context(), limit)
	if err != nil {
		response.InternalError(c, "failed to list quality scores")
		return
	}
	response.Success(c, http.StatusOK, gin.H{"quality_scores": scores})
}
