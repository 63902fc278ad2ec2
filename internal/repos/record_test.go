package repos

import (
  "context"
  "errors"
  "fmt"
  "path/filepath"
  "testing"
  "time"

  "gorm.io/driver/sqlite"
  "gorm.io/gorm"

  "github.com/dedupehq/dedupe-backend/internal/logger"
  "github.com/dedupehq/dedupe-backend/internal/schema"
  "github.com/dedupehq/dedupe-backend/internal/search"
  "github.com/dedupehq/dedupe-backend/internal/types"
)

func newTestRepo(t *testing.T) (RecordRepo, *gorm.DB) {
  t.Helper()
  dsn := filepath.Join(t.TempDir(), "test.db")
  db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
  if err != nil {
    t.Fatalf("open sqlite: %v", err)
  }
  if err := db.AutoMigrate(&types.Record{}); err != nil {
    t.Fatalf("automigrate: %v", err)
  }
  return NewRecordRepo(db, logger.NewNop()), db
}

func seedRecords(t *testing.T, repo RecordRepo, n int) {
  t.Helper()
  ctx := context.Background()
  now := time.Now()
  for i := 0; i < n; i++ {
    city := "Leeds"
    if i%2 == 1 {
      city = "York"
    }
    rec := types.NewRecord(fmt.Sprintf("%032d", i), map[string]string{
      "phone":         fmt.Sprintf("7700%07d", i),
      "last_name":     fmt.Sprintf("Person%03d", i),
      "city":          city,
      "supplier_name": "Acme",
    }, now.Add(time.Duration(i)*time.Second))
    if err := repo.Insert(ctx, nil, rec); err != nil {
      t.Fatalf("insert %d: %v", i, err)
    }
  }
}

func translate(t *testing.T, tree *search.Node) search.Query {
  t.Helper()
  q, err := search.Translate(schema.Default(), tree)
  if err != nil {
    t.Fatalf("Translate: %v", err)
  }
  return q
}

func TestCountEqualsSumOfPages(t *testing.T) {
  repo, _ := newTestRepo(t)
  ctx := context.Background()
  seedRecords(t, repo, 25)

  q := translate(t, &search.Node{Field: "city", Op: "=", Values: []string{"Leeds"}})
  total, err := repo.Count(ctx, nil, q)
  if err != nil {
    t.Fatalf("Count: %v", err)
  }
  if total != 13 {
    t.Fatalf("count = %d, want 13", total)
  }

  var paged int64
  seen := make(map[string]bool)
  for offset := 0; ; offset += 5 {
    page, err := repo.Search(ctx, nil, q, "first_seen_at ASC", search.Page{Limit: 5, Offset: offset})
    if err != nil {
      t.Fatalf("Search: %v", err)
    }
    if len(page) == 0 {
      break
    }
    for _, rec := range page {
      if seen[rec.ID.String()] {
        t.Fatalf("record %s appeared on two pages", rec.ID)
      }
      seen[rec.ID.String()] = true
      if rec.City != "Leeds" {
        t.Fatalf("page leaked non-matching record: %+v", rec)
      }
    }
    paged += int64(len(page))
  }
  if paged != total {
    t.Fatalf("paged %d records, count reported %d", paged, total)
  }
}

func TestDeleteMatchingReturnsExactCount(t *testing.T) {
  repo, db := newTestRepo(t)
  ctx := context.Background()
  seedRecords(t, repo, 20)

  tree := &search.Node{Field: "city", Op: "=", Values: []string{"York"}}
  q := translate(t, tree)

  before, err := repo.Count(ctx, nil, q)
  if err != nil {
    t.Fatalf("Count: %v", err)
  }
  deleted, err := repo.DeleteMatching(ctx, q)
  if err != nil {
    t.Fatalf("DeleteMatching: %v", err)
  }
  if deleted != before {
    t.Fatalf("deleted %d, count promised %d", deleted, before)
  }

  after, err := repo.Count(ctx, nil, q)
  if err != nil {
    t.Fatalf("Count: %v", err)
  }
  if after != 0 {
    t.Fatalf("%d matching records survived delete", after)
  }

  var remaining int64
  if err := db.Model(&types.Record{}).Count(&remaining).Error; err != nil {
    t.Fatalf("count remaining: %v", err)
  }
  if remaining != 20-before {
    t.Fatalf("remaining = %d, want %d", remaining, 20-before)
  }
}

func TestDeleteMatchingEmptyQueryDeletesAll(t *testing.T) {
  repo, db := newTestRepo(t)
  ctx := context.Background()
  seedRecords(t, repo, 7)

  deleted, err := repo.DeleteMatching(ctx, search.Query{})
  if err != nil {
    t.Fatalf("DeleteMatching: %v", err)
  }
  if deleted != 7 {
    t.Fatalf("deleted = %d, want 7", deleted)
  }
  var remaining int64
  if err := db.Model(&types.Record{}).Count(&remaining).Error; err != nil {
    t.Fatalf("count: %v", err)
  }
  if remaining != 0 {
    t.Fatalf("remaining = %d, want 0", remaining)
  }
}

func TestInsertDuplicateFingerprintTranslatesError(t *testing.T) {
  repo, _ := newTestRepo(t)
  ctx := context.Background()
  now := time.Now()

  first := types.NewRecord("deadbeefdeadbeefdeadbeefdeadbeef", map[string]string{"phone": "1"}, now)
  if err := repo.Insert(ctx, nil, first); err != nil {
    t.Fatalf("insert: %v", err)
  }
  second := types.NewRecord("deadbeefdeadbeefdeadbeefdeadbeef", map[string]string{"phone": "1"}, now)
  err := repo.Insert(ctx, nil, second)
  if !errors.Is(err, gorm.ErrDuplicatedKey) {
    t.Fatalf("err = %v, want gorm.ErrDuplicatedKey through the store wrapper", err)
  }
  var sErr *StoreError
  if !errors.As(err, &sErr) {
    t.Fatalf("err = %v, want StoreError wrapper", err)
  }
}
