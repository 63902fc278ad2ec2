package services

import (
  "context"
  "errors"
  "fmt"
  "io"
  "os"
  "time"

  "github.com/google/uuid"

  "github.com/dedupehq/dedupe-backend/internal/dedup"
  "github.com/dedupehq/dedupe-backend/internal/jobs"
  "github.com/dedupehq/dedupe-backend/internal/logger"
  "github.com/dedupehq/dedupe-backend/internal/mapping"
  "github.com/dedupehq/dedupe-backend/internal/queue"
  "github.com/dedupehq/dedupe-backend/internal/schema"
)

// IngestService owns the ingest pipeline on both sides of the queue: the
// API calls EnqueueFile, the worker calls Process.
type IngestService interface {
  EnqueueFile(ctx context.Context, fileName, filePath string, spec mapping.Spec, write bool) (*jobs.Job, error)
  Process(ctx context.Context, job *jobs.Job) (*jobs.Summary, error)
}

type ingestService struct {
  log       *logger.Logger
  schema    *schema.Schema
  store     jobs.Store
  broker    queue.Broker
  engine    *dedup.Engine
  queueName string
}

func NewIngestService(
  log *logger.Logger,
  sch *schema.Schema,
  store jobs.Store,
  broker queue.Broker,
  engine *dedup.Engine,
  queueName string,
) IngestService {
  return &ingestService{
    log:       log.With("service", "IngestService"),
    schema:    sch,
    store:     store,
    broker:    broker,
    engine:    engine,
    queueName: queueName,
  }
}

// EnqueueFile validates the mapping spec shallowly, records the job as
// queued and pushes its id. The spec is resolved against the real header
// only inside the worker, where the file is read.
func (s *ingestService) EnqueueFile(ctx context.Context, fileName, filePath string, spec mapping.Spec, write bool) (*jobs.Job, error) {
  if len(spec) == 0 {
    return nil, fmt.Errorf("empty mapping spec")
  }
  for name := range spec {
    if _, ok := s.schema.FieldByName(name); !ok {
      return nil, fmt.Errorf("unknown field %q in mapping spec", name)
    }
  }

  job := &jobs.Job{
    ID:        uuid.NewString(),
    Queue:     s.queueName,
    FileName:  fileName,
    FilePath:  filePath,
    Mapping:   spec,
    Write:     write,
    Status:    jobs.StatusQueued,
    CreatedAt: time.Now(),
  }
  if err := s.store.Create(ctx, job); err != nil {
    return nil, fmt.Errorf("record job: %w", err)
  }
  if err := s.broker.Enqueue(ctx, s.queueName, []byte(job.ID)); err != nil {
    return nil, fmt.Errorf("enqueue job: %w", err)
  }
  s.log.Info("Job enqueued", "job_id", job.ID, "file", fileName, "write", write)
  return job, nil
}

// Process runs the whole pipeline for one claimed job: map, fingerprint,
// resolve, count. Row errors are counted and skipped; schema, consistency
// and store errors abort with the partial summary attached.
func (s *ingestService) Process(ctx context.Context, job *jobs.Job) (*jobs.Summary, error) {
  log := s.log.With("job_id", job.ID)

  f, err := os.Open(job.FilePath)
  if err != nil {
    return nil, fmt.Errorf("open source file: %w", err)
  }
  defer f.Close()

  stream, err := mapping.New(s.schema, job.Mapping).Stream(f)
  if err != nil {
    return nil, err
  }

  summary := &jobs.Summary{}
  session := s.engine.NewSession(job.Write)
  for {
    if err := ctx.Err(); err != nil {
      return summary, err
    }
    row, rowErr, err := stream.Next()
    if errors.Is(err, io.EOF) {
      break
    }
    if err != nil {
      return summary, fmt.Errorf("read row: %w", err)
    }
    summary.TotalRows++
    if rowErr != nil {
      summary.RowErrors++
      log.Debug("Row skipped", "line", rowErr.Line, "field", rowErr.Field, "reason", rowErr.Reason)
      continue
    }

    outcome, err := session.Resolve(ctx, row)
    if err != nil {
      return summary, err
    }
    tally(summary, outcome)
  }

  log.Info("Job processed",
    "total_rows", summary.TotalRows,
    "accepted", summary.Accepted,
    "merged", summary.Merged,
    "skipped", summary.Skipped,
    "row_errors", summary.RowErrors,
  )
  return summary, nil
}

func tally(summary *jobs.Summary, outcome dedup.Outcome) {
  switch outcome.Kind {
  case dedup.KindInserted:
    summary.Accepted++
  case dedup.KindMerged:
    summary.Merged++
  case dedup.KindSkipped:
    summary.Skipped++
    switch outcome.Reason {
    case dedup.SkipDuplicateInFile:
      summary.DuplicatesInFile++
    case dedup.SkipDuplicateInStore:
      summary.DuplicatesInStore++
    case dedup.SkipDuplicateInFileAndStore:
      summary.DuplicatesInFileAndStore++
    }
  }
}
