package models

import "time"

// Processing status values for the AI enrichment stage.
const (
	ProcessingPending    = "pending"
	ProcessingInProgress = "processing"
	ProcessingCompleted  = "completed"
	ProcessingFailed     = "failed"
)

// Core metrics status values. There is no failed state: a failed metrics
// run leaves the session pending so the background sweep retries it.
const (
	MetricsPending   = "pending"
	MetricsCompleted = "completed"
)

// Assessment status values, written by the review subsystem.
const (
	AssessmentNotStarted = "not_started"
	AssessmentRatingOnly = "rating_only"
	AssessmentInProgress = "in_progress"
	AssessmentCompleted  = "completed"
)

// Session is one recorded interaction between a user and an AI coding agent,
// backed by a transcript file. SessionID is the business key; rows are
// created exactly once by the ingestion listener and never re-created.
type Session struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	SessionID   string `gorm:"size:128;uniqueIndex;not null"`
	Provider    string `gorm:"size:32;not null;index"`
	ProjectName string `gorm:"size:128;index"`
	FilePath    string `gorm:"size:512;not null"`
	FileName    string `gorm:"size:256"`
	FileSize    int64

	SessionStartTime time.Time
	SessionEndTime   *time.Time `gorm:"index"` // nil while the session is still open
	DurationMs       int64

	ProcessingStatus  string  `gorm:"size:16;default:pending;index"`
	CoreMetricsStatus string  `gorm:"size:16;default:pending;index"`
	AssessmentStatus  string  `gorm:"size:16;default:not_started"`
	SyncedToServer    bool    `gorm:"default:false"`
	SyncFailedReason  *string `gorm:"size:512"`

	AIModelSummary       string `gorm:"type:text"`
	AIModelQualityScore  *float64
	AIModelMetadata      string `gorm:"type:json"`
	AIModelPhaseAnalysis string `gorm:"type:text"`

	CreatedAt  time.Time
	UploadedAt *time.Time

	Metrics *SessionMetrics `gorm:"foreignKey:SessionID;references:SessionID"`
}
