package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore implements Store in-process for tests and local runs with
// the same transition rules as the redis store.
type MemoryStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	now  func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]*Job), now: time.Now}
}

func (s *MemoryStore) Create(ctx context.Context, job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *job
	s.jobs[job.ID] = &clone
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *job
	return &clone, nil
}

func (s *MemoryStore) MarkStarted(ctx context.Context, id string) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	switch job.Status {
	case StatusQueued:
		now := s.now()
		job.Status = StatusStarted
		job.StartedAt = &now
		clone := *job
		return &clone, nil
	case StatusCanceled:
		return nil, ErrCanceled
	default:
		return nil, fmt.Errorf("%w: status %s", ErrNotRunnable, job.Status)
	}
}

func (s *MemoryStore) Finish(ctx context.Context, id string, summary *Summary) error {
	return s.conclude(id, StatusFinished, "", summary)
}

func (s *MemoryStore) Fail(ctx context.Context, id string, errorRef string, summary *Summary) error {
	return s.conclude(id, StatusFailed, errorRef, summary)
}

func (s *MemoryStore) conclude(id string, status Status, errorRef string, summary *Summary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return ErrNotFound
	}
	now := s.now()
	job.Status = status
	job.FinishedAt = &now
	if errorRef != "" {
		job.ErrorRef = errorRef
	}
	if summary != nil {
		sum := *summary
		job.Summary = &sum
	}
	return nil
}

func (s *MemoryStore) CancelIfQueued(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return false, ErrNotFound
	}
	if job.Status != StatusQueued {
		return false, nil
	}
	now := s.now()
	job.Status = StatusCanceled
	job.FinishedAt = &now
	return true, nil
}

func (s *MemoryStore) ListByQueue(ctx context.Context, queue string) ([]*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Job
	for _, job := range s.jobs {
		if job.Queue == queue {
			clone := *job
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (s *MemoryStore) ListStale(ctx context.Context, threshold time.Duration) ([]*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().Add(-threshold)
	var out []*Job
	for _, job := range s.jobs {
		if job.Status == StatusStarted && job.StartedAt != nil && job.StartedAt.Before(cutoff) {
			clone := *job
			out = append(out, &clone)
		}
	}
	return out, nil
}
