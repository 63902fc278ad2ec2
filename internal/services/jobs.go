package services

import (
  "context"
  "time"

  "github.com/dedupehq/dedupe-backend/internal/jobs"
  "github.com/dedupehq/dedupe-backend/internal/logger"
  "github.com/dedupehq/dedupe-backend/internal/repos"
  "github.com/dedupehq/dedupe-backend/internal/types"
)

// JobService is the read/control surface over the job store exposed to
// the API.
type JobService interface {
  Status(ctx context.Context, id string) (*jobs.Job, error)
  // Cancel reports whether the job was actually canceled; started and
  // terminal jobs return false without error.
  Cancel(ctx context.Context, id string) (bool, error)
  List(ctx context.Context, queue string) ([]*jobs.Job, error)
  // ListStale surfaces jobs stuck in started beyond the threshold so an
  // operator or external reaper can decide what to do with them.
  ListStale(ctx context.Context) ([]*jobs.Job, error)
  FailureReports(ctx context.Context, jobID string) ([]*types.FailureReport, error)
}

type jobService struct {
  log            *logger.Logger
  store          jobs.Store
  reports        repos.FailureReportRepo
  staleThreshold time.Duration
}

func NewJobService(log *logger.Logger, store jobs.Store, reports repos.FailureReportRepo, staleThreshold time.Duration) JobService {
  if staleThreshold <= 0 {
    staleThreshold = 30 * time.Minute
  }
  return &jobService{
    log:            log.With("service", "JobService"),
    store:          store,
    reports:        reports,
    staleThreshold: staleThreshold,
  }
}

func (s *jobService) Status(ctx context.Context, id string) (*jobs.Job, error) {
  return s.store.Get(ctx, id)
}

func (s *jobService) Cancel(ctx context.Context, id string) (bool, error) {
  canceled, err := s.store.CancelIfQueued(ctx, id)
  if err != nil {
    return false, err
  }
  if canceled {
    s.log.Info("Job canceled", "job_id", id)
  }
  return canceled, nil
}

func (s *jobService) List(ctx context.Context, queue string) ([]*jobs.Job, error) {
  return s.store.ListByQueue(ctx, queue)
}

func (s *jobService) ListStale(ctx context.Context) ([]*jobs.Job, error) {
  return s.store.ListStale(ctx, s.staleThreshold)
}

func (s *jobService) FailureReports(ctx context.Context, jobID string) ([]*types.FailureReport, error) {
  return s.reports.ListByJob(ctx, nil, jobID)
}
