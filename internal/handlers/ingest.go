package handlers

import (
  "encoding/json"
  "fmt"
  "net/http"
  "path/filepath"
  "strconv"

  "github.com/gin-gonic/gin"
  "github.com/google/uuid"

  "github.com/dedupehq/dedupe-backend/internal/logger"
  "github.com/dedupehq/dedupe-backend/internal/mapping"
  "github.com/dedupehq/dedupe-backend/internal/services"
)

type IngestHandler struct {
  log       *logger.Logger
  ingest    services.IngestService
  uploadDir string
}

func NewIngestHandler(log *logger.Logger, ingest services.IngestService, uploadDir string) *IngestHandler {
  return &IngestHandler{
    log:       log.With("handler", "IngestHandler"),
    ingest:    ingest,
    uploadDir: uploadDir,
  }
}

// Enqueue accepts a multipart upload: the CSV under "file", the mapping
// spec as JSON under "mapping", and an optional "write" flag ("false"
// runs a dedup report without importing). The response is the queued job.
func (h *IngestHandler) Enqueue(c *gin.Context) {
  file, err := c.FormFile("file")
  if err != nil {
    RespondError(c, http.StatusBadRequest, "missing_file", fmt.Errorf("missing file upload: %w", err))
    return
  }

  rawSpec := c.PostForm("mapping")
  if rawSpec == "" {
    RespondError(c, http.StatusBadRequest, "missing_mapping", fmt.Errorf("missing mapping spec"))
    return
  }
  var spec mapping.Spec
  if err := json.Unmarshal([]byte(rawSpec), &spec); err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_mapping", fmt.Errorf("invalid mapping spec: %w", err))
    return
  }

  write := true
  if raw := c.PostForm("write"); raw != "" {
    write, err = strconv.ParseBool(raw)
    if err != nil {
      RespondError(c, http.StatusBadRequest, "invalid_write_flag", fmt.Errorf("invalid write flag %q", raw))
      return
    }
  }

  // The upload is spooled under a fresh name so concurrent uploads of the
  // same file never collide.
  dst := filepath.Join(h.uploadDir, uuid.NewString()+".csv")
  if err := c.SaveUploadedFile(file, dst); err != nil {
    h.log.Error("Failed to spool upload", "error", err)
    RespondError(c, http.StatusInternalServerError, "upload_failed", fmt.Errorf("failed to store upload"))
    return
  }

  job, err := h.ingest.EnqueueFile(c.Request.Context(), file.Filename, dst, spec, write)
  if err != nil {
    RespondError(c, http.StatusBadRequest, "enqueue_failed", err)
    return
  }
  c.JSON(http.StatusAccepted, job)
}
