package dashboard

import (
	"time"

	"github.com/quillback/quillback/internal/models"
	"gorm.io/gorm"
)

// SessionRow holds session data for list display.
type SessionRow struct {
	SessionID         string     `json:"session_id"`
	Provider          string     `json:"provider"`
	ProjectName       string     `json:"project_name"`
	SessionStartTime  time.Time  `json:"session_start_time"`
	SessionEndTime    *time.Time `json:"session_end_time"`
	DurationMs        int64      `json:"duration_ms"`
	ProcessingStatus  string     `json:"processing_status"`
	CoreMetricsStatus string     `json:"core_metrics_status"`
	AssessmentStatus  string     `json:"assessment_status"`
	SyncedToServer    bool       `json:"synced_to_server"`
	QualityScore      *float64   `json:"quality_score"`
}

// SessionList returns recent sessions, newest first, optionally filtered by
// provider.
func SessionList(db *gorm.DB, provider string, limit int) ([]SessionRow, error) {
	if limit <= 0 {
		limit = 100
	}
	q := db.Model(&models.Session{}).Order("created_at DESC").Limit(limit)
	if provider != "" {
		q = q.Where("provider = ?", provider)
	}

	var sessions []models.Session
	if err := q.Find(&sessions).Error; err != nil {
		return nil, err
	}

	rows := make([]SessionRow, len(sessions))
	for i, s := range sessions {
		rows[i] = SessionRow{
			SessionID:         s.SessionID,
			Provider:          s.Provider,
			ProjectName:       s.ProjectName,
			SessionStartTime:  s.SessionStartTime,
			SessionEndTime:    s.SessionEndTime,
			DurationMs:        s.DurationMs,
			ProcessingStatus:  s.ProcessingStatus,
			CoreMetricsStatus: s.CoreMetricsStatus,
			AssessmentStatus:  s.AssessmentStatus,
			SyncedToServer:    s.SyncedToServer,
			QualityScore:      s.AIModelQualityScore,
		}
	}
	return rows, nil
}

// PipelineCounts holds session counts per lifecycle stage.
type PipelineCounts struct {
	Total            int64 `json:"total"`
	MetricsPending   int64 `json:"metrics_pending"`
	MetricsCompleted int64 `json:"metrics_completed"`
	AiPending        int64 `json:"ai_pending"`
	AiCompleted      int64 `json:"ai_completed"`
	AiFailed         int64 `json:"ai_failed"`
	Unsynced         int64 `json:"unsynced"`
}

// PipelineSummary returns aggregate counts across the whole store.
func PipelineSummary(db *gorm.DB) (*PipelineCounts, error) {
	var counts PipelineCounts
	sessions := db.Model(&models.Session{})

	if err := sessions.Session(&gorm.Session{}).Count(&counts.Total).Error; err != nil {
		return nil, err
	}
	type row struct {
		CoreMetricsStatus string
		ProcessingStatus  string
		Count             int64
	}
	var rows []row
	if err := db.Model(&models.Session{}).
		Select("core_metrics_status, processing_status, count(*) as count").
		Group("core_metrics_status, processing_status").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, r := range rows {
		switch r.CoreMetricsStatus {
		case models.MetricsCompleted:
			counts.MetricsCompleted += r.Count
		default:
			counts.MetricsPending += r.Count
		}
		switch r.ProcessingStatus {
		case models.ProcessingCompleted:
			counts.AiCompleted += r.Count
		case models.ProcessingFailed:
			counts.AiFailed += r.Count
		default:
			counts.AiPending += r.Count
		}
	}
	if err := db.Model(&models.Session{}).
		Where("synced_to_server = ?", false).
		Count(&counts.Unsynced).Error; err != nil {
		return nil, err
	}
	return &counts, nil
}
