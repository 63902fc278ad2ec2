package handlers

import (
  "errors"
  "fmt"
  "net/http"

  "github.com/gin-gonic/gin"

  "github.com/dedupehq/dedupe-backend/internal/jobs"
  "github.com/dedupehq/dedupe-backend/internal/services"
)

type JobsHandler struct {
  jobService   services.JobService
  defaultQueue string
}

func NewJobsHandler(jobService services.JobService, defaultQueue string) *JobsHandler {
  return &JobsHandler{jobService: jobService, defaultQueue: defaultQueue}
}

func (h *JobsHandler) Status(c *gin.Context) {
  job, err := h.jobService.Status(c.Request.Context(), c.Param("id"))
  if err != nil {
    if errors.Is(err, jobs.ErrNotFound) {
      RespondError(c, http.StatusNotFound, "job_not_found", err)
      return
    }
    RespondError(c, http.StatusInternalServerError, "job_status_failed", err)
    return
  }
  RespondOK(c, job)
}

func (h *JobsHandler) List(c *gin.Context) {
  queue := c.DefaultQuery("queue", h.defaultQueue)
  list, err := h.jobService.List(c.Request.Context(), queue)
  if err != nil {
    RespondError(c, http.StatusInternalServerError, "job_list_failed", err)
    return
  }
  RespondOK(c, gin.H{"queue": queue, "jobs": list})
}

// Cancel only succeeds for jobs still waiting in the queue; anything
// already claimed by a worker runs to completion.
func (h *JobsHandler) Cancel(c *gin.Context) {
  id := c.Param("id")
  canceled, err := h.jobService.Cancel(c.Request.Context(), id)
  if err != nil {
    if errors.Is(err, jobs.ErrNotFound) {
      RespondError(c, http.StatusNotFound, "job_not_found", err)
      return
    }
    RespondError(c, http.StatusInternalServerError, "job_cancel_failed", err)
    return
  }
  if !canceled {
    RespondError(c, http.StatusConflict, "job_not_cancelable", fmt.Errorf("job %s is no longer queued", id))
    return
  }
  RespondOK(c, gin.H{"canceled": true})
}

func (h *JobsHandler) ListStale(c *gin.Context) {
  list, err := h.jobService.ListStale(c.Request.Context())
  if err != nil {
    RespondError(c, http.StatusInternalServerError, "job_stale_list_failed", err)
    return
  }
  RespondOK(c, gin.H{"jobs": list})
}

func (h *JobsHandler) Failures(c *gin.Context) {
  reports, err := h.jobService.FailureReports(c.Request.Context(), c.Param("id"))
  if err != nil {
    RespondError(c, http.StatusInternalServerError, "job_failures_failed", err)
    return
  }
  RespondOK(c, gin.H{"reports": reports})
}
