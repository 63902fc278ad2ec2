package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dedupehq/dedupe-backend/internal/dedup"
	"github.com/dedupehq/dedupe-backend/internal/logger"
	"github.com/dedupehq/dedupe-backend/internal/mapping"
	"github.com/dedupehq/dedupe-backend/internal/queue"
	"github.com/dedupehq/dedupe-backend/internal/repos"
)

// Processor runs one claimed job to completion and returns its summary.
// A non-nil error fails the job; the summary is kept either way when
// present.
type Processor interface {
	Process(ctx context.Context, job *Job) (*Summary, error)
}

// FailurePayload is the message placed on the error queue when a job
// fails. It carries everything the error worker needs to persist a
// report without touching the job store.
type FailurePayload struct {
	JobID   string   `json:"job_id"`
	Queue   string   `json:"queue"`
	Stage   string   `json:"stage"`
	Reason  string   `json:"reason"`
	Summary *Summary `json:"summary,omitempty"`
}

// IngestWorker drains the ingest queue. Each payload is a bare job id;
// the worker claims the job via MarkStarted so canceled jobs are dropped
// before any row is read.
type IngestWorker struct {
	log        *logger.Logger
	broker     queue.Broker
	store      Store
	processor  Processor
	queueName  string
	errorQueue string
	workers    int
}

func NewIngestWorker(baseLog *logger.Logger, broker queue.Broker, store Store, processor Processor, queueName, errorQueue string, workers int) *IngestWorker {
	if workers < 1 {
		workers = 1
	}
	return &IngestWorker{
		log:        baseLog.With("component", "IngestWorker", "queue", queueName),
		broker:     broker,
		store:      store,
		processor:  processor,
		queueName:  queueName,
		errorQueue: errorQueue,
		workers:    workers,
	}
}

// Run blocks until ctx is done, consuming with the configured number of
// goroutines.
func (w *IngestWorker) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < w.workers; i++ {
		g.Go(func() error {
			return w.loop(ctx)
		})
	}
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (w *IngestWorker) loop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		payload, err := w.broker.Dequeue(ctx, w.queueName, 5*time.Second)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			w.log.Warn("Dequeue failed", "error", err)
			continue
		}
		if payload == nil {
			continue
		}
		w.handle(ctx, string(payload))
	}
}

func (w *IngestWorker) handle(ctx context.Context, jobID string) {
	log := w.log.With("job_id", jobID)

	job, err := w.store.MarkStarted(ctx, jobID)
	if err != nil {
		switch {
		case errors.Is(err, ErrCanceled):
			log.Info("Job canceled before start, dropping")
		case errors.Is(err, ErrNotFound):
			log.Warn("Dequeued unknown job id, dropping")
		case errors.Is(err, ErrNotRunnable):
			// Duplicate delivery of an already-claimed job.
			log.Warn("Job not runnable, dropping", "error", err)
		default:
			log.Error("MarkStarted failed", "error", err)
		}
		return
	}

	summary, err := w.runProcessor(ctx, job)
	if err != nil {
		log.Error("Job failed", "error", err)
		w.fail(ctx, job, err, summary)
		return
	}
	if err := w.store.Finish(ctx, job.ID, summary); err != nil {
		log.Error("Finish failed", "error", err)
	}
}

// runProcessor converts a processor panic into a job failure instead of
// taking the worker down.
func (w *IngestWorker) runProcessor(ctx context.Context, job *Job) (summary *Summary, err error) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("Processor panic", "job_id", job.ID, "panic", r)
			err = fmt.Errorf("processor panic: %v", r)
		}
	}()
	return w.processor.Process(ctx, job)
}

func (w *IngestWorker) fail(ctx context.Context, job *Job, procErr error, summary *Summary) {
	log := w.log.With("job_id", job.ID)
	if err := w.store.Fail(ctx, job.ID, procErr.Error(), summary); err != nil {
		log.Error("Fail transition failed", "error", err)
	}
	payload := FailurePayload{
		JobID:   job.ID,
		Queue:   job.Queue,
		Stage:   stageOf(procErr),
		Reason:  procErr.Error(),
		Summary: summary,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error("Marshal failure payload failed", "error", err)
		return
	}
	if err := w.broker.Enqueue(ctx, w.errorQueue, data); err != nil {
		log.Error("Enqueue failure payload failed", "error", err)
	}
}

// stageOf maps the failure to the pipeline stage that produced it, so
// failure reports group cleanly.
func stageOf(err error) string {
	var schemaErr *mapping.SchemaError
	if errors.As(err, &schemaErr) {
		return "mapping"
	}
	var consistencyErr *dedup.ConsistencyError
	if errors.As(err, &consistencyErr) {
		return "dedup"
	}
	var storeErr *repos.StoreError
	if errors.As(err, &storeErr) {
		return "store"
	}
	return "process"
}
