package services

import (
  "context"

  "gorm.io/gorm"

  "github.com/dedupehq/dedupe-backend/internal/logger"
  "github.com/dedupehq/dedupe-backend/internal/repos"
  "github.com/dedupehq/dedupe-backend/internal/schema"
  "github.com/dedupehq/dedupe-backend/internal/search"
  "github.com/dedupehq/dedupe-backend/internal/types"
)

// SearchResult is one page of records plus the total match count for the
// same criteria, so clients can render pagination.
type SearchResult struct {
  Records      []*types.Record
  TotalMatched int64
}

type SearchService interface {
  Search(ctx context.Context, tree *search.Node, sort search.Sort, page search.Page) (*SearchResult, error)
  // BulkDelete removes every record the criteria match and returns how
  // many went, matching what Search reported for the same tree.
  BulkDelete(ctx context.Context, tree *search.Node) (int64, error)
}

type searchService struct {
  db      *gorm.DB
  log     *logger.Logger
  schema  *schema.Schema
  records repos.RecordRepo
}

func NewSearchService(db *gorm.DB, log *logger.Logger, sch *schema.Schema, records repos.RecordRepo) SearchService {
  return &searchService{
    db:      db,
    log:     log.With("service", "SearchService"),
    schema:  sch,
    records: records,
  }
}

func (s *searchService) Search(ctx context.Context, tree *search.Node, sort search.Sort, page search.Page) (*SearchResult, error) {
  q, err := search.Translate(s.schema, tree)
  if err != nil {
    return nil, err
  }
  order, err := sort.OrderClause(s.schema)
  if err != nil {
    return nil, err
  }

  var result SearchResult
  // Count and page read inside one transaction so they describe the same
  // snapshot of the store.
  err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
    total, err := s.records.Count(ctx, tx, q)
    if err != nil {
      return err
    }
    rows, err := s.records.Search(ctx, tx, q, order, page)
    if err != nil {
      return err
    }
    result = SearchResult{Records: rows, TotalMatched: total}
    return nil
  })
  if err != nil {
    return nil, err
  }
  return &result, nil
}

func (s *searchService) BulkDelete(ctx context.Context, tree *search.Node) (int64, error) {
  q, err := search.Translate(s.schema, tree)
  if err != nil {
    return 0, err
  }
  deleted, err := s.records.DeleteMatching(ctx, q)
  if err != nil {
    return 0, err
  }
  s.log.Info("Bulk delete completed", "deleted", deleted)
  return deleted, nil
}
