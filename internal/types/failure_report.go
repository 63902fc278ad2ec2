package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// FailureReport is the durable record the error worker writes for a failed
// ingest job. It is append-only; nothing in the pipeline updates it.
type FailureReport struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	JobID          string         `gorm:"column:job_id;not null;index" json:"job_id"`
	Queue          string         `gorm:"column:queue;not null" json:"queue"`
	Stage          string         `gorm:"column:stage" json:"stage"`
	Reason         string         `gorm:"column:reason;not null" json:"reason"`
	PartialSummary datatypes.JSON `gorm:"column:partial_summary;type:jsonb" json:"partial_summary"`
	CreatedAt      time.Time      `gorm:"not null" json:"created_at"`
}

func (FailureReport) TableName() string { return "failure_report" }
