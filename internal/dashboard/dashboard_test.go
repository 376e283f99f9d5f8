package dashboard

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/quillback/quillback/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(&models.Session{}, &models.SessionMetrics{}); err != nil {
		t.Fatalf("auto-migrate: %v", err)
	}
	return db
}

func testRouter(db *gorm.DB) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	registerRoutes(router, db)
	return router
}

func seedSession(t *testing.T, db *gorm.DB, id, provider, processingStatus, metricsStatus string) {
	t.Helper()
	sess := &models.Session{
		SessionID:         id,
		Provider:          provider,
		ProjectName:       "myapp",
		SessionStartTime:  time.Now().Add(-time.Hour),
		ProcessingStatus:  processingStatus,
		CoreMetricsStatus: metricsStatus,
		AssessmentStatus:  models.AssessmentNotStarted,
	}
	if err := db.Create(sess).Error; err != nil {
		t.Fatalf("seed %s: %v", id, err)
	}
}

func TestSessionList(t *testing.T) {
	db := openTestDB(t)
	seedSession(t, db, "a", "claude-code", models.ProcessingPending, models.MetricsPending)
	seedSession(t, db, "b", "codex", models.ProcessingCompleted, models.MetricsCompleted)

	rows, err := SessionList(db, "", 100)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}

	filtered, err := SessionList(db, "codex", 100)
	if err != nil {
		t.Fatalf("list filtered: %v", err)
	}
	if len(filtered) != 1 || filtered[0].SessionID != "b" {
		t.Fatalf("filtered = %+v, want only b", filtered)
	}
}

func TestPipelineSummary(t *testing.T) {
	db := openTestDB(t)
	seedSession(t, db, "a", "claude-code", models.ProcessingPending, models.MetricsPending)
	seedSession(t, db, "b", "claude-code", models.ProcessingPending, models.MetricsCompleted)
	seedSession(t, db, "c", "claude-code", models.ProcessingCompleted, models.MetricsCompleted)
	seedSession(t, db, "d", "claude-code", models.ProcessingFailed, models.MetricsCompleted)

	counts, err := PipelineSummary(db)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}

	if counts.Total != 4 {
		t.Errorf("Total = %d, want 4", counts.Total)
	}
	if counts.MetricsPending != 1 || counts.MetricsCompleted != 3 {
		t.Errorf("metrics counts = %d/%d, want 1/3", counts.MetricsPending, counts.MetricsCompleted)
	}
	if counts.AiPending != 2 || counts.AiCompleted != 1 || counts.AiFailed != 1 {
		t.Errorf("ai counts = %d/%d/%d, want 2/1/1", counts.AiPending, counts.AiCompleted, counts.AiFailed)
	}
	if counts.Unsynced != 4 {
		t.Errorf("Unsynced = %d, want 4", counts.Unsynced)
	}
}

func TestHandleSummary(t *testing.T) {
	db := openTestDB(t)
	seedSession(t, db, "a", "claude-code", models.ProcessingPending, models.MetricsPending)
	router := testRouter(db)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/summary", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var counts PipelineCounts
	if err := json.Unmarshal(w.Body.Bytes(), &counts); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if counts.Total != 1 {
		t.Errorf("Total = %d, want 1", counts.Total)
	}
}

func TestHandleSessionList(t *testing.T) {
	db := openTestDB(t)
	seedSession(t, db, "a", "claude-code", models.ProcessingPending, models.MetricsPending)
	router := testRouter(db)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/sessions?provider=claude-code&limit=10", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body struct {
		Sessions []SessionRow `json:"sessions"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(body.Sessions) != 1 || body.Sessions[0].SessionID != "a" {
		t.Errorf("sessions = %+v", body.Sessions)
	}
}

func TestHandleSessionDetail(t *testing.T) {
	db := openTestDB(t)
	seedSession(t, db, "a", "claude-code", models.ProcessingPending, models.MetricsCompleted)
	if err := db.Create(&models.SessionMetrics{SessionID: "a", PromptCount: 5}).Error; err != nil {
		t.Fatalf("seed metrics: %v", err)
	}
	router := testRouter(db)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/sessions/a", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"prompt_count":5`) &&
		!strings.Contains(w.Body.String(), `"PromptCount":5`) {
		t.Errorf("body missing metrics: %s", w.Body.String())
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/sessions/missing", nil)
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("status for missing session = %d, want 404", w.Code)
	}
}

func TestHandleSSE_SendsConnected(t *testing.T) {
	router := testRouter(nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	router.ServeHTTP(w, req)

	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}
	if !strings.Contains(w.Body.String(), "event: connected") {
		t.Errorf("body = %q, want connected event", w.Body.String())
	}
}

func TestWriteSSE(t *testing.T) {
	var b strings.Builder
	writeSSE(&b, "summary", map[string]int{"total": 3})

	got := b.String()
	if !strings.HasPrefix(got, "event: summary\n") {
		t.Errorf("output = %q", got)
	}
	if !strings.Contains(got, `data: {"total":3}`) || !strings.HasSuffix(got, "\n\n") {
		t.Errorf("output = %q", got)
	}
}
