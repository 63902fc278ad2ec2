package handlers

import (
  "errors"
  "net/http"

  "github.com/gin-gonic/gin"

  "github.com/dedupehq/dedupe-backend/internal/search"
  "github.com/dedupehq/dedupe-backend/internal/services"
)

type SearchHandler struct {
  searchService services.SearchService
}

func NewSearchHandler(searchService services.SearchService) *SearchHandler {
  return &SearchHandler{searchService: searchService}
}

type searchRequest struct {
  Criteria *search.Node `json:"criteria"`
  Sort     search.Sort  `json:"sort"`
  Page     search.Page  `json:"page"`
}

// Search evaluates a criteria tree and returns one page plus the total
// match count. An absent criteria tree matches everything.
func (h *SearchHandler) Search(c *gin.Context) {
  var req searchRequest
  if err := c.ShouldBindJSON(&req); err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_body", err)
    return
  }
  result, err := h.searchService.Search(c.Request.Context(), req.Criteria, req.Sort, req.Page)
  if err != nil {
    respondSearchError(c, err)
    return
  }
  RespondOK(c, gin.H{
    "records":       result.Records,
    "total_matched": result.TotalMatched,
  })
}

type deleteRequest struct {
  Criteria *search.Node `json:"criteria"`
}

// BulkDelete removes every record the criteria match. The reported count
// equals what Search showed for the same criteria, absent concurrent
// writes in between.
func (h *SearchHandler) BulkDelete(c *gin.Context) {
  var req deleteRequest
  if err := c.ShouldBindJSON(&req); err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_body", err)
    return
  }
  deleted, err := h.searchService.BulkDelete(c.Request.Context(), req.Criteria)
  if err != nil {
    respondSearchError(c, err)
    return
  }
  RespondOK(c, gin.H{"deleted": deleted})
}

func respondSearchError(c *gin.Context, err error) {
  var vErr *search.ValidationError
  if errors.As(err, &vErr) {
    RespondError(c, http.StatusBadRequest, "invalid_criteria", err)
    return
  }
  RespondError(c, http.StatusInternalServerError, "search_failed", err)
}
