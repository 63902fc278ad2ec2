package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/dedupehq/dedupe-backend/internal/mapping"
)

type Status string

const (
	StatusQueued   Status = "queued"
	StatusStarted  Status = "started"
	StatusFinished Status = "finished"
	StatusFailed   Status = "failed"
	StatusCanceled Status = "canceled"
)

// IsTerminal reports whether a job can never run again.
func (s Status) IsTerminal() bool {
	return s == StatusFinished || s == StatusFailed || s == StatusCanceled
}

// Summary is the per-job row accounting. It is reported even on partial
// failure so operators can see how far ingestion got.
type Summary struct {
	TotalRows                int `json:"total_rows"`
	Accepted                 int `json:"accepted"`
	Merged                   int `json:"merged"`
	Skipped                  int `json:"skipped"`
	RowErrors                int `json:"row_errors"`
	DuplicatesInFile         int `json:"duplicates_in_file"`
	DuplicatesInStore        int `json:"duplicates_in_store"`
	DuplicatesInFileAndStore int `json:"duplicates_in_file_and_store"`
}

// Job is one unit of asynchronous ingest work. Metadata and status live in
// the job store; the queue itself only carries the job key. Status
// transitions after dequeue are owned exclusively by the worker holding
// the job.
type Job struct {
	ID       string       `json:"id"`
	Queue    string       `json:"queue"`
	FileName string       `json:"file_name"`
	FilePath string       `json:"file_path"`
	Mapping  mapping.Spec `json:"mapping"`
	// Write selects import mode; false runs the dedup report without
	// touching the record store.
	Write bool `json:"write"`

	Status     Status     `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Summary    *Summary   `json:"summary,omitempty"`
	ErrorRef   string     `json:"error_ref,omitempty"`
}

var (
	ErrNotFound = errors.New("job not found")
	// ErrCanceled is returned by MarkStarted when the job was canceled
	// while queued; the worker drops it without side effects.
	ErrCanceled = errors.New("job canceled")
	// ErrNotRunnable is returned by MarkStarted for jobs that are already
	// started or terminal; at-least-once delivery makes this reachable.
	ErrNotRunnable = errors.New("job not runnable")
)

// Store is the durable job metadata record shared by producers, workers
// and observers.
type Store interface {
	Create(ctx context.Context, job *Job) error
	Get(ctx context.Context, id string) (*Job, error)
	// MarkStarted atomically transitions queued -> started and returns the
	// job. ErrCanceled and ErrNotRunnable let workers honor cancellation
	// and duplicate delivery before any row is processed.
	MarkStarted(ctx context.Context, id string) (*Job, error)
	Finish(ctx context.Context, id string, summary *Summary) error
	Fail(ctx context.Context, id string, errorRef string, summary *Summary) error
	// CancelIfQueued cancels iff the job is still queued and reports
	// whether it did; any other state is a no-op with canceled=false.
	CancelIfQueued(ctx context.Context, id string) (bool, error)
	ListByQueue(ctx context.Context, queue string) ([]*Job, error)
	// ListStale returns jobs stuck in started longer than threshold, for
	// an external reaper; workers never time out jobs themselves.
	ListStale(ctx context.Context, threshold time.Duration) ([]*Job, error)
}
