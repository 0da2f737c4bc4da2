package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/grantpipe/grantpipe/app/cfg"
	"github.com/grantpipe/grantpipe/app/database"
	"github.com/grantpipe/grantpipe/app/ingest"
	"github.com/grantpipe/grantpipe/app/sources"
	"github.com/grantpipe/grantpipe/app/tasks"
)

const (
	defaultPageSize   = 20
	maxPageSize       = 100
	maxFailureSamples = 10
)

func NewHandler(configCache *sources.ConfigCache, callRepo database.CallRepository,
	sourceRepo database.SourceRepository, pipeline *ingest.Pipeline,
	scheduler tasks.TaskSchedulerInterface, httpClient *http.Client) *Handler {
	return &Handler{
		callRepo:    callRepo,
		sourceRepo:  sourceRepo,
		pipeline:    pipeline,
		configCache: configCache,
		scheduler:   scheduler,
		httpClient:  httpClient,
		userAgent:   cfg.Get().UserAgent,
	}
}

func (h *Handler) GetCalls(c *gin.Context) {
	filters := database.QueryFilters{
		Status:    c.Query("status"),
		Source:    c.Query("source"),
		Relevance: c.Query("relevance"),
		Search:    c.Query("search"),
	}

	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}

	pageSize, err := strconv.Atoi(c.DefaultQuery("page_size", strconv.Itoa(defaultPageSize)))
	if err != nil || pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	sortBy := c.DefaultQuery("sort_by", "created_at")
	sortOrder := c.DefaultQuery("sort_order", "desc")

	calls, total, err := h.callRepo.Query(c.Request.Context(), filters, page, pageSize, sortBy, sortOrder)
	if err != nil {
		slog.Error("Database error", "operation", "query_calls", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	responses := make([]CallResponse, 0, len(calls))
	for _, call := range calls {
		responses = append(responses, toCallResponse(call))
	}

	totalPages := (total + pageSize - 1) / pageSize

	c.JSON(http.StatusOK, CallListResponse{
		Calls:      responses,
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
	})
}

func (h *Handler) GetCall(c *gin.Context) {
	id := c.Param("id")

	call, err := h.callRepo.GetCall(c.Request.Context(), id)
	if err != nil {
		slog.Error("Database error", "operation", "get_call", "call_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	if call == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Call not found"})
		return
	}

	c.JSON(http.StatusOK, toCallResponse(*call))
}

func (h *Handler) UpdateCallStatus(c *gin.Context) {
	id := c.Param("id")

	var body struct {
		Status string `json:"status"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if !ingest.ValidStatus(body.Status) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid status",
			"message": "Status must be one of: pending, reviewed, applied, discarded",
		})
		return
	}

	updated, err := h.callRepo.UpdateStatus(c.Request.Context(), id, ingest.CallStatus(body.Status))
	if err != nil {
		slog.Error("Database error", "operation", "update_status", "call_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	if !updated {
		c.JSON(http.StatusNotFound, gin.H{"error": "Call not found"})
		return
	}

	slog.Info("Call status updated", "call_id", id, "status", body.Status)
	c.JSON(http.StatusOK, gin.H{"success": true, "id": id, "status": body.Status})
}

func (h *Handler) DeleteCall(c *gin.Context) {
	id := c.Param("id")

	deleted, err := h.callRepo.DeleteCall(c.Request.Context(), id)
	if err != nil {
		slog.Error("Database error", "operation", "delete_call", "call_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"error": "Call not found"})
		return
	}

	slog.Info("Call deleted", "call_id", id)
	c.Status(http.StatusNoContent)
}

func (h *Handler) GetStats(c *gin.Context) {
	stats, err := h.callRepo.GetStats(c.Request.Context())
	if err != nil {
		slog.Error("Database error", "operation", "get_stats", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, stats)
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
	}

	if callCount, err := h.callRepo.GetCallCount(c.Request.Context()); err == nil {
		health["calls"] = callCount
	}

	if sourceCount, err := h.sourceRepo.GetSourceCount(c.Request.Context()); err == nil {
		health["sources"] = sourceCount
	}

	health["loaded_configurations"] = h.configCache.GetConfigCount()

	c.JSON(http.StatusOK, health)
}

// ImportCalls accepts a JSON batch (bare array, or an object wrapping the
// records under "rows" or "data") and routes it through the same pipeline
// as scheduled source fetches.
func (h *Handler) ImportCalls(c *gin.Context) {
	data, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read request body"})
		return
	}

	records, err := sources.NewJSONAdapter().Parse(data)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid JSON payload",
			"details": err.Error(),
		})
		return
	}

	sourceName := c.DefaultQuery("source", "upload")

	result, err := h.pipeline.Ingest(c.Request.Context(), records, sourceName)
	if err != nil {
		slog.Error("Import batch failed", "source", sourceName, "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "Import failed",
			"details": err.Error(),
		})
		return
	}

	failures := make([]gin.H, 0, min(len(result.Failed), maxFailureSamples))
	for i, failure := range result.Failed {
		if i >= maxFailureSamples {
			break
		}
		failures = append(failures, gin.H{"index": failure.Index, "reason": failure.Reason})
	}

	c.JSON(http.StatusOK, gin.H{
		"batch_id":  result.BatchID,
		"source":    result.Source,
		"received":  len(records),
		"inserted":  result.Inserted,
		"updated":   result.Updated,
		"unchanged": result.Unchanged,
		"failed":    len(result.Failed),
		"failures":  failures,
	})
}

func (h *Handler) RefreshSource(c *gin.Context) {
	name := c.Param("name")

	sourceConfig, err := h.configCache.GetConfig(name)
	if err != nil {
		slog.Error("Source configuration not found", "source", name, "error", err)
		c.JSON(http.StatusNotFound, gin.H{"error": "Source configuration not found"})
		return
	}

	task := tasks.NewProcessSourceTask(name, sourceConfig, h.httpClient, h.pipeline, h.sourceRepo, h.userAgent)
	if err := h.scheduler.EnqueueTask(task); err != nil {
		slog.Error("Error enqueueing process task", "source", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to enqueue process task",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Source refresh enqueued",
		"source":  name,
		"task": gin.H{
			"id":   task.ID,
			"type": task.Type,
		},
	})
}
