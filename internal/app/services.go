package app

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/dedupehq/dedupe-backend/internal/dedup"
	"github.com/dedupehq/dedupe-backend/internal/jobs"
	"github.com/dedupehq/dedupe-backend/internal/logger"
	"github.com/dedupehq/dedupe-backend/internal/queue"
	"github.com/dedupehq/dedupe-backend/internal/schema"
	"github.com/dedupehq/dedupe-backend/internal/services"
)

type Services struct {
	Ingest services.IngestService
	Search services.SearchService
	Jobs   services.JobService

	IngestWorker *jobs.IngestWorker
	ErrorWorker  *jobs.ErrorWorker
}

func wireServices(
	db *gorm.DB,
	log *logger.Logger,
	cfg Config,
	sch *schema.Schema,
	broker queue.Broker,
	store jobs.Store,
	reposet Repos,
) (Services, error) {
	log.Info("Wiring services...")

	policy, err := dedup.ParseMergePolicy(cfg.MergePolicy)
	if err != nil {
		return Services{}, fmt.Errorf("parse merge policy: %w", err)
	}
	engine := dedup.NewEngine(db, log, sch, reposet.Record, policy)

	ingestService := services.NewIngestService(log, sch, store, broker, engine, cfg.IngestQueue)
	searchService := services.NewSearchService(db, log, sch, reposet.Record)
	jobService := services.NewJobService(log, store, reposet.FailureReport, cfg.StaleThreshold)

	ingestWorker := jobs.NewIngestWorker(log, broker, store, ingestService, cfg.IngestQueue, cfg.ErrorQueue, cfg.IngestWorkers)
	errorWorker := jobs.NewErrorWorker(log, broker, reposet.FailureReport, cfg.ErrorQueue)

	return Services{
		Ingest:       ingestService,
		Search:       searchService,
		Jobs:         jobService,
		IngestWorker: ingestWorker,
		ErrorWorker:  errorWorker,
	}, nil
}
