package repos

import (
  "context"

  "gorm.io/gorm"

  "github.com/dedupehq/dedupe-backend/internal/logger"
  "github.com/dedupehq/dedupe-backend/internal/types"
)

type FailureReportRepo interface {
  Create(ctx context.Context, tx *gorm.DB, report *types.FailureReport) error
  ListByJob(ctx context.Context, tx *gorm.DB, jobID string) ([]*types.FailureReport, error)
  ListRecent(ctx context.Context, tx *gorm.DB, limit int) ([]*types.FailureReport, error)
}

type failureReportRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewFailureReportRepo(db *gorm.DB, baseLog *logger.Logger) FailureReportRepo {
  return &failureReportRepo{
    db:  db,
    log: baseLog.With("repo", "FailureReportRepo"),
  }
}

func (r *failureReportRepo) Create(ctx context.Context, tx *gorm.DB, report *types.FailureReport) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  return wrapStore("failure_report.create", transaction.WithContext(ctx).Create(report).Error)
}

func (r *failureReportRepo) ListByJob(ctx context.Context, tx *gorm.DB, jobID string) ([]*types.FailureReport, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  var out []*types.FailureReport
  if err := transaction.WithContext(ctx).
    Where("job_id = ?", jobID).
    Order("created_at DESC").
    Find(&out).Error; err != nil {
    return nil, err
  }
  return out, nil
}

func (r *failureReportRepo) ListRecent(ctx context.Context, tx *gorm.DB, limit int) ([]*types.FailureReport, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if limit <= 0 {
    limit = 100
  }
  var out []*types.FailureReport
  if err := transaction.WithContext(ctx).
    Order("created_at DESC").
    Limit(limit).
    Find(&out).Error; err != nil {
    return nil, err
  }
  return out, nil
}
