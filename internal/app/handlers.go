package app

import (
	"github.com/dedupehq/dedupe-backend/internal/handlers"
	"github.com/dedupehq/dedupe-backend/internal/logger"
)

type Handlers struct {
	Ingest *handlers.IngestHandler
	Jobs   *handlers.JobsHandler
	Search *handlers.SearchHandler
}

func wireHandlers(log *logger.Logger, cfg Config, serviceset Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Ingest: handlers.NewIngestHandler(log, serviceset.Ingest, cfg.UploadDir),
		Jobs:   handlers.NewJobsHandler(serviceset.Jobs, cfg.IngestQueue),
		Search: handlers.NewSearchHandler(serviceset.Search),
	}
}
