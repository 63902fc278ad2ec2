package app

import (
	"gorm.io/gorm"

	"github.com/dedupehq/dedupe-backend/internal/logger"
	"github.com/dedupehq/dedupe-backend/internal/repos"
)

type Repos struct {
	Record        repos.RecordRepo
	FailureReport repos.FailureReportRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Record:        repos.NewRecordRepo(db, log),
		FailureReport: repos.NewFailureReportRepo(db, log),
	}
}
