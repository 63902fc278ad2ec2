package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/dedupehq/dedupe-backend/internal/logger"
	"github.com/dedupehq/dedupe-backend/internal/queue"
	"github.com/dedupehq/dedupe-backend/internal/repos"
	"github.com/dedupehq/dedupe-backend/internal/types"
)

// ErrorWorker drains the error queue into durable failure reports. It is
// the terminal sink of the pipeline: a payload it cannot persist is
// logged and dropped, never re-enqueued.
type ErrorWorker struct {
	log       *logger.Logger
	broker    queue.Broker
	reports   repos.FailureReportRepo
	queueName string
}

func NewErrorWorker(baseLog *logger.Logger, broker queue.Broker, reports repos.FailureReportRepo, queueName string) *ErrorWorker {
	return &ErrorWorker{
		log:       baseLog.With("component", "ErrorWorker", "queue", queueName),
		broker:    broker,
		reports:   reports,
		queueName: queueName,
	}
}

func (w *ErrorWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		payload, err := w.broker.Dequeue(ctx, w.queueName, 5*time.Second)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			w.log.Warn("Dequeue failed", "error", err)
			continue
		}
		if payload == nil {
			continue
		}
		w.handle(ctx, payload)
	}
}

func (w *ErrorWorker) handle(ctx context.Context, raw []byte) {
	var payload FailurePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		w.log.Error("Undecodable failure payload, dropping", "error", err)
		return
	}
	log := w.log.With("job_id", payload.JobID)

	report := &types.FailureReport{
		ID:        uuid.New(),
		JobID:     payload.JobID,
		Queue:     payload.Queue,
		Stage:     payload.Stage,
		Reason:    payload.Reason,
		CreatedAt: time.Now(),
	}
	if payload.Summary != nil {
		data, err := json.Marshal(payload.Summary)
		if err != nil {
			log.Warn("Marshal partial summary failed", "error", err)
		} else {
			report.PartialSummary = data
		}
	}
	if err := w.reports.Create(ctx, nil, report); err != nil {
		log.Error("Persist failure report failed, dropping payload", "error", err)
		return
	}
	log.Info("Failure report recorded", "report_id", report.ID, "stage", payload.Stage)
}
