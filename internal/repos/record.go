package repos

import (
  "context"

  "github.com/google/uuid"
  "gorm.io/gorm"
  "gorm.io/gorm/clause"

  "github.com/dedupehq/dedupe-backend/internal/logger"
  "github.com/dedupehq/dedupe-backend/internal/search"
  "github.com/dedupehq/dedupe-backend/internal/types"
)

type RecordRepo interface {
  // FindByFingerprint returns every record sharing a fingerprint. With
  // forUpdate the rows are locked for the duration of the surrounding
  // transaction, serializing concurrent dedup decisions on the same key.
  FindByFingerprint(ctx context.Context, tx *gorm.DB, fingerprint string, forUpdate bool) ([]*types.Record, error)
  Insert(ctx context.Context, tx *gorm.DB, rec *types.Record) error
  UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error
  Count(ctx context.Context, tx *gorm.DB, q search.Query) (int64, error)
  Search(ctx context.Context, tx *gorm.DB, q search.Query, order string, page search.Page) ([]*types.Record, error)
  // DeleteMatching removes every record matched by q inside one
  // transaction and returns the number deleted; the count a caller showed
  // before deletion holds, absent concurrent writers.
  DeleteMatching(ctx context.Context, q search.Query) (int64, error)
}

type recordRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewRecordRepo(db *gorm.DB, baseLog *logger.Logger) RecordRepo {
  return &recordRepo{
    db:  db,
    log: baseLog.With("repo", "RecordRepo"),
  }
}

func (r *recordRepo) FindByFingerprint(ctx context.Context, tx *gorm.DB, fingerprint string, forUpdate bool) ([]*types.Record, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  query := transaction.WithContext(ctx).Where("fingerprint = ?", fingerprint)
  // sqlite has a single writer and rejects FOR UPDATE; the lock clause is
  // for postgres, where concurrent workers contend on the same key.
  if forUpdate && transaction.Dialector.Name() != "sqlite" {
    query = query.Clauses(clause.Locking{Strength: "UPDATE"})
  }
  var out []*types.Record
  if err := query.Find(&out).Error; err != nil {
    return nil, wrapStore("record.find_by_fingerprint", err)
  }
  return out, nil
}

func (r *recordRepo) Insert(ctx context.Context, tx *gorm.DB, rec *types.Record) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  return wrapStore("record.insert", transaction.WithContext(ctx).Create(rec).Error)
}

func (r *recordRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  if len(updates) == 0 {
    return nil
  }
  return wrapStore("record.update_fields", transaction.WithContext(ctx).
    Model(&types.Record{}).
    Where("id = ?", id).
    Updates(updates).Error)
}

func (r *recordRepo) Count(ctx context.Context, tx *gorm.DB, q search.Query) (int64, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  query := transaction.WithContext(ctx).Model(&types.Record{})
  if q.Where != "" {
    query = query.Where(q.Where, q.Args...)
  }
  var count int64
  if err := query.Count(&count).Error; err != nil {
    return 0, wrapStore("record.count", err)
  }
  return count, nil
}

func (r *recordRepo) Search(ctx context.Context, tx *gorm.DB, q search.Query, order string, page search.Page) ([]*types.Record, error) {
  transaction := tx
  if transaction == nil {
    transaction = r.db
  }
  page = page.Normalize()
  query := transaction.WithContext(ctx).Model(&types.Record{})
  if q.Where != "" {
    query = query.Where(q.Where, q.Args...)
  }
  if order != "" {
    query = query.Order(order)
  }
  var out []*types.Record
  if err := query.Limit(page.Limit).Offset(page.Offset).Find(&out).Error; err != nil {
    return nil, wrapStore("record.search", err)
  }
  return out, nil
}

func (r *recordRepo) DeleteMatching(ctx context.Context, q search.Query) (int64, error) {
  var deleted int64
  err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
    query := tx.Model(&types.Record{})
    if q.Where != "" {
      query = query.Where(q.Where, q.Args...)
    } else {
      query = query.Where("1 = 1")
    }
    res := query.Delete(&types.Record{})
    if res.Error != nil {
      return res.Error
    }
    deleted = res.RowsAffected
    return nil
  })
  if err != nil {
    return 0, wrapStore("record.delete_matching", err)
  }
  return deleted, nil
}
