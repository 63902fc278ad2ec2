package jobs

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/dedupehq/dedupe-backend/internal/logger"
	"github.com/dedupehq/dedupe-backend/internal/queue"
	"github.com/dedupehq/dedupe-backend/internal/repos"
	"github.com/dedupehq/dedupe-backend/internal/types"
)

func newReportRepo(t *testing.T) repos.FailureReportRepo {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "test.db")
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&types.FailureReport{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return repos.NewFailureReportRepo(db, logger.NewNop())
}

func TestErrorWorkerPersistsFailureReports(t *testing.T) {
	broker := queue.NewMemoryBroker()
	reports := newReportRepo(t)
	w := NewErrorWorker(logger.NewNop(), broker, reports, "error")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := w.Run(ctx); err != nil {
			t.Errorf("Run: %v", err)
		}
	}()
	defer func() {
		cancel()
		<-done
	}()

	payload := FailurePayload{
		JobID:   "job-1",
		Queue:   "ingest",
		Stage:   "mapping",
		Reason:  "required fields unresolved against header: phone",
		Summary: &Summary{TotalRows: 0},
	}
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := broker.Enqueue(context.Background(), "error", data); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	// Undecodable payloads are dropped without stopping the worker.
	if err := broker.Enqueue(context.Background(), "error", []byte("{not json")); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		got, err := reports.ListByJob(context.Background(), nil, "job-1")
		if err != nil {
			t.Fatalf("ListByJob: %v", err)
		}
		if len(got) == 1 {
			rep := got[0]
			if rep.Queue != "ingest" || rep.Stage != "mapping" || rep.Reason != payload.Reason {
				t.Fatalf("report = %+v", rep)
			}
			if len(rep.PartialSummary) == 0 {
				t.Fatalf("partial summary not stored")
			}
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("failure report never persisted")
}
