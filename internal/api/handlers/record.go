package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/soundledger/stream-ingest-iq/internal/api/response"
	"github.com/soundledger/stream-ingest-iq/internal/models"
	"github.com/soundledger/stream-ingest-iq/internal/repository"
)

// RecordHandler handles streaming record query endpoints.
type RecordHandler struct {
	recordRepo *repository.RecordRepository
}

// NewRecordHandler creates a new record handler.
func NewRecordHandler(recordRepo *repository.RecordRepository) *RecordHandler {
	return &RecordHandler{recordRepo: recordRepo}
}

// HandleList handles GET /api/v1/records. Supported query params: platform,
// metric_type, from, to (dates, inclusive), page, page_size.
func (h *RecordHandler) HandleList(c *gin.Context) {
	filter := repository.RecordFilter{
		PlatformCode: c.Query("platform"),
		MetricType:   c.Query("metric_type"),
	}
	if v := c.Query("from"); v != "" {
		ts, err := time.Parse("2006-01-02", v)
		if err != nil {
			response.BadRequest(c, "invalid from date, expected YYYY-MM-DD", nil)
			return
		}
		filter.From = ts
	}
	if v := c.Query("to"); v != "" {
		ts, err := time.Parse("2006-01-02", v)
		if err != nil {
			response.BadRequest(c, "invalid to date, expected YYYY-MM-DD", nil)
			return
		}
		filter.To = ts
	}

	page, pageSize := paginationParams(c)
	records, total, err := h.recordRepo.List(c.Request.Context(), filter, page, pageSize)
	if err != nil {
		response.InternalError(c, "failed to list records")
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"records": records,
		"pagination": models.Pagination{
			Page:         page,
			PageSize:     pageSize,
			TotalResults: total,
			TotalPages:   (total + pageSize - 1) / pageSize,
		},
	})
}

// paginationParams reads page and page_size with the shared defaults and cap.
func paginationParams(c *gin.Context) (int, int) {
	page, pageSize := 1, 20
	if v := c.Query("page"); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 {
			page = p
		}
	}
	if v := c.Query("page_size"); v != "" {
		if ps, err := strconv.Atoi(v); err == nil && ps > 0 && ps <= 100 {
			pageSize = ps
		}
	}
	return page, pageSize
}
