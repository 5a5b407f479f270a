package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/oasislab/checkup-export/internal/models"
	"github.com/oasislab/checkup-export/internal/repository"
	"github.com/oasislab/checkup-export/internal/worker"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	checkups  *repository.CheckupRepository
	manager   *worker.Manager
	estimator Estimator
	logger    Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(
	checkups *repository.CheckupRepository,
	manager *worker.Manager,
	estimator Estimator,
	logger Logger,
) *Handlers {
	return &Handlers{
		checkups:  checkups,
		manager:   manager,
		estimator: estimator,
		logger:    logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// JobResponse represents an export job in API responses
type JobResponse struct {
	JobID     string                          `json:"job_id"`
	CheckupID int64                           `json:"checkup_id"`
	Finished  bool                            `json:"finished"`
	Error     string                          `json:"error,omitempty"`
	Result    *models.MultiFormatExportResult `json:"result,omitempty"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   "1.0.0",
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    response,
	})
}

// bindExportOptions decodes the request body over the defaults, so absent
// fields keep their default values. An empty body means all defaults.
func bindExportOptions(c *gin.Context) (models.ExportOptions, error) {
	opts := models.DefaultExportOptions()
	if err := c.ShouldBindJSON(&opts); err != nil && !errors.Is(err, io.EOF) {
		return opts, err
	}
	return opts, nil
}

// loadSnapshot resolves the :id path parameter into a checkup snapshot.
// It writes the error response itself and returns nil on failure.
func (h *Handlers) loadSnapshot(c *gin.Context) *models.CheckupSnapshot {
	idStr := c.Param("id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		h.logger.Error("Invalid checkup ID", "id", idStr, "error", err)
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "invalid checkup ID",
		})
		return nil
	}

	details, err := h.checkups.GetDetails(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrCheckupNotFound) {
			c.JSON(http.StatusNotFound, Response{
				Success: false,
				Error:   "checkup not found",
			})
			return nil
		}
		h.logger.Error("Failed to load checkup", "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, Response{
			Success: false,
			Error:   "failed to load checkup",
		})
		return nil
	}

	return repository.SnapshotFromDetails(details, time.Now())
}

// StartExport handles POST /api/v1/checkups/:id/exports
func (h *Handlers) StartExport(c *gin.Context) {
	snap := h.loadSnapshot(c)
	if snap == nil {
		return
	}

	opts, err := bindExportOptions(c)
	if err != nil {
		h.logger.Error("Invalid export options", "error", err)
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "invalid export options: " + err.Error(),
		})
		return
	}

	// The job outlives this request, so it runs under its own context.
	job, err := h.manager.Start(context.WithoutCancel(c.Request.Context()), snap, opts)
	if err != nil {
		h.logger.Error("Failed to start export", "checkup_id", snap.CheckupID, "error", err)
		c.JSON(http.StatusInternalServerError, Response{
			Success: false,
			Error:   "failed to start export",
		})
		return
	}

	c.JSON(http.StatusAccepted, Response{
		Success: true,
		Data: JobResponse{
			JobID:     job.ID,
			CheckupID: job.CheckupID,
		},
	})
}

// EstimateExport handles POST /api/v1/checkups/:id/estimate
func (h *Handlers) EstimateExport(c *gin.Context) {
	snap := h.loadSnapshot(c)
	if snap == nil {
		return
	}

	opts, err := bindExportOptions(c)
	if err != nil {
		h.logger.Error("Invalid export options", "error", err)
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "invalid export options: " + err.Error(),
		})
		return
	}

	report := h.estimator.Estimate(snap, opts)

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    report,
	})
}

// GetExport handles GET /api/v1/exports/:id
func (h *Handlers) GetExport(c *gin.Context) {
	job, ok := h.manager.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, Response{
			Success: false,
			Error:   "export job not found",
		})
		return
	}

	result, finalErr, finished := job.Result()
	resp := JobResponse{
		JobID:     job.ID,
		CheckupID: job.CheckupID,
		Finished:  finished,
		Result:    &result,
	}
	if finalErr != nil {
		resp.Error = finalErr.Error()
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    resp,
	})
}

// StreamExport handles GET /api/v1/exports/:id/stream as server-sent events.
// Each completed stage arrives as a "progress" event; a final "done" event
// carries the terminal result.
func (h *Handlers) StreamExport(c *gin.Context) {
	job, ok := h.manager.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, Response{
			Success: false,
			Error:   "export job not found",
		})
		return
	}

	updates, unsubscribe := job.Subscribe()
	defer unsubscribe()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	c.Stream(func(w io.Writer) bool {
		select {
		case result, open := <-updates:
			if !open {
				final, finalErr, _ := job.Result()
				resp := JobResponse{
					JobID:     job.ID,
					CheckupID: job.CheckupID,
					Finished:  true,
					Result:    &final,
				}
				if finalErr != nil {
					resp.Error = finalErr.Error()
				}
				c.SSEvent("done", resp)
				return false
			}
			c.SSEvent("progress", result)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

// CancelExport handles DELETE /api/v1/exports/:id
func (h *Handlers) CancelExport(c *gin.Context) {
	jobID := c.Param("id")
	if err := h.manager.Cancel(jobID); err != nil {
		c.JSON(http.StatusNotFound, Response{
			Success: false,
			Error:   "export job not found",
		})
		return
	}

	h.logger.Info("Export job cancellation requested", "job_id", jobID)

	c.JSON(http.StatusAccepted, Response{
		Success: true,
		Data:    gin.H{"job_id": jobID, "cancelling": true},
	})
}
