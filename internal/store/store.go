// Package store is the persistent record of sessions and their metrics, and
// the single source of truth for lifecycle state. Status columns here are the
// only coordination channel between the background drivers; all status
// mutation goes through the named transition methods on Store, never through
// free-form field writes.
package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/quillback/quillback/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrSessionNotFound is returned when a session lookup or transition targets
// a session_id with no row.
var ErrSessionNotFound = errors.New("store: session not found")

// Store wraps the GORM handle with the session lifecycle contract.
type Store struct {
	db *gorm.DB
}

// New creates a Store.
func New(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("store: db is required")
	}
	return &Store{db: db}, nil
}

// CreateSession inserts a new session row with default lifecycle flags. The
// insert is a single atomic upsert-if-absent keyed on session_id: a second
// create for the same session is a no-op, never a duplicate, even when two
// detection events arrive nearly simultaneously.
func (s *Store) CreateSession(sess *models.Session) error {
	if sess == nil {
		return fmt.Errorf("store: session is required")
	}
	if sess.SessionID == "" {
		return fmt.Errorf("store: session_id is required")
	}
	if sess.ProcessingStatus == "" {
		sess.ProcessingStatus = models.ProcessingPending
	}
	if sess.CoreMetricsStatus == "" {
		sess.CoreMetricsStatus = models.MetricsPending
	}
	if sess.AssessmentStatus == "" {
		sess.AssessmentStatus = models.AssessmentNotStarted
	}

	result := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "session_id"}},
		DoNothing: true,
	}).Create(sess)
	if result.Error != nil {
		return fmt.Errorf("store: create session %s: %w", sess.SessionID, result.Error)
	}
	return nil
}

// GetBySessionID returns the session with the given business key.
func (s *Store) GetBySessionID(sessionID string) (*models.Session, error) {
	var sess models.Session
	err := s.db.Where("session_id = ?", sessionID).First(&sess).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("store: get %s: %w", sessionID, ErrSessionNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get %s: %w", sessionID, err)
	}
	return &sess, nil
}

// UpsertMetrics replaces the metrics row for a session and, in the same
// transaction, marks core metrics completed and clears the synced flag.
// Metrics existing without the status flag caught up is never observable:
// either all three writes land or none do. Recomputing metrics always forces
// the sync stage to re-run.
func (s *Store) UpsertMetrics(sessionID string, m *models.SessionMetrics) error {
	if sessionID == "" {
		return fmt.Errorf("store: session_id is required")
	}
	if m == nil {
		return fmt.Errorf("store: metrics are required")
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_id = ?", sessionID).
			Delete(&models.SessionMetrics{}).Error; err != nil {
			return fmt.Errorf("delete prior metrics: %w", err)
		}

		m.ID = 0
		m.SessionID = sessionID
		if err := tx.Create(m).Error; err != nil {
			return fmt.Errorf("create metrics: %w", err)
		}

		result := tx.Model(&models.Session{}).
			Where("session_id = ?", sessionID).
			Updates(map[string]interface{}{
				"core_metrics_status": models.MetricsCompleted,
				"synced_to_server":    false,
			})
		if result.Error != nil {
			return fmt.Errorf("flip status flags: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrSessionNotFound
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("store: upsert metrics %s: %w", sessionID, err)
	}
	return nil
}

// EnrichmentUpdate carries whichever enrichment outputs succeeded. Nil fields
// are left untouched; partial results are acceptable. Complete marks the
// enrichment stage finished so the delayed sweep stops re-selecting the
// session; a partial update leaves processing_status pending for a retry.
type EnrichmentUpdate struct {
	Summary       *string
	QualityScore  *float64
	Metadata      *string
	PhaseAnalysis *string
	Complete      bool
}

// MarkEnrichment persists AI enrichment output for a session.
func (s *Store) MarkEnrichment(sessionID string, upd EnrichmentUpdate) error {
	updates := map[string]interface{}{}
	if upd.Summary != nil {
		updates["ai_model_summary"] = *upd.Summary
	}
	if upd.QualityScore != nil {
		updates["ai_model_quality_score"] = *upd.QualityScore
	}
	if upd.Metadata != nil {
		updates["ai_model_metadata"] = *upd.Metadata
	}
	if upd.PhaseAnalysis != nil {
		updates["ai_model_phase_analysis"] = *upd.PhaseAnalysis
	}
	if len(updates) == 0 {
		return fmt.Errorf("store: mark enrichment %s: no fields to write", sessionID)
	}
	if upd.Complete {
		updates["processing_status"] = models.ProcessingCompleted
	}

	result := s.db.Model(&models.Session{}).
		Where("session_id = ?", sessionID).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("store: mark enrichment %s: %w", sessionID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("store: mark enrichment %s: %w", sessionID, ErrSessionNotFound)
	}
	return nil
}

// MarkProcessingFailed transitions the enrichment stage to failed. The
// transition is unconditional and terminal: the delayed sweep never selects a
// failed session again.
func (s *Store) MarkProcessingFailed(sessionID string) error {
	result := s.db.Model(&models.Session{}).
		Where("session_id = ?", sessionID).
		Update("processing_status", models.ProcessingFailed)
	if result.Error != nil {
		return fmt.Errorf("store: mark failed %s: %w", sessionID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("store: mark failed %s: %w", sessionID, ErrSessionNotFound)
	}
	return nil
}

// MarkSynced records a successful remote sync for a session. Written by the
// sync subsystem, not by the lifecycle drivers.
func (s *Store) MarkSynced(sessionID string, uploadedAt time.Time) error {
	result := s.db.Model(&models.Session{}).
		Where("session_id = ?", sessionID).
		Updates(map[string]interface{}{
			"synced_to_server":   true,
			"sync_failed_reason": nil,
			"uploaded_at":        uploadedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("store: mark synced %s: %w", sessionID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("store: mark synced %s: %w", sessionID, ErrSessionNotFound)
	}
	return nil
}

// MarkSyncFailed records a failed remote sync attempt with its reason.
func (s *Store) MarkSyncFailed(sessionID, reason string) error {
	result := s.db.Model(&models.Session{}).
		Where("session_id = ?", sessionID).
		Updates(map[string]interface{}{
			"synced_to_server":   false,
			"sync_failed_reason": reason,
		})
	if result.Error != nil {
		return fmt.Errorf("store: mark sync failed %s: %w", sessionID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("store: mark sync failed %s: %w", sessionID, ErrSessionNotFound)
	}
	return nil
}

// QueryUnprocessed returns up to limit sessions that have no metrics row,
// most recently created first.
func (s *Store) QueryUnprocessed(limit int) ([]models.Session, error) {
	var sessions []models.Session
	err := s.db.Model(&models.Session{}).
		Joins("LEFT JOIN session_metrics ON session_metrics.session_id = sessions.session_id").
		Where("session_metrics.id IS NULL").
		Order("sessions.created_at DESC").
		Limit(limit).
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("store: query unprocessed: %w", err)
	}
	return sessions, nil
}

// QueryEligibleForEnrichment returns up to limit sessions inside the
// enrichment eligibility window: metrics computed, enrichment still pending,
// session ended more than delay ago but no more than maxAge ago. The delay
// clause lets the transcript settle before enrichment; the maxAge clause caps
// how far back sweeps look, so a long outage cannot trigger an unbounded
// backlog sweep. Sessions older than maxAge must be enriched manually.
func (s *Store) QueryEligibleForEnrichment(now time.Time, delay, maxAge time.Duration, limit int) ([]models.Session, error) {
	newest := now.Add(-delay)
	oldest := now.Add(-maxAge)

	var sessions []models.Session
	err := s.db.
		Where("core_metrics_status = ?", models.MetricsCompleted).
		Where("processing_status = ?", models.ProcessingPending).
		Where("session_end_time IS NOT NULL").
		Where("session_end_time < ?", newest).
		Where("session_end_time > ?", oldest).
		Order("session_end_time DESC").
		Limit(limit).
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("store: query eligible: %w", err)
	}
	return sessions, nil
}

// GetMetrics returns the metrics row for a session, or nil if none exists.
func (s *Store) GetMetrics(sessionID string) (*models.SessionMetrics, error) {
	var m models.SessionMetrics
	err := s.db.Where("session_id = ?", sessionID).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get metrics %s: %w", sessionID, err)
	}
	return &m, nil
}

// DB exposes the underlying GORM handle for read-only consumers (dashboard).
func (s *Store) DB() *gorm.DB {
	return s.db
}
