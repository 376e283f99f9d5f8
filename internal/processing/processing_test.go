package processing

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/quillback/quillback/internal/models"
	"github.com/quillback/quillback/internal/store"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestStore(t *testing.T) *store.Store {
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
	st, err := store.New(db)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return st
}

// stubProcessor returns canned category metrics or a fixed error.
type stubProcessor struct {
	results []CategoryMetrics
	err     error
	lastCtx Context
}

func (s *stubProcessor) ParseSession(content string) (*ParsedSession, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &ParsedSession{MessageCount: 1, Text: content}, nil
}

func (s *stubProcessor) ProcessMetrics(content string, pctx Context) ([]CategoryMetrics, error) {
	s.lastCtx = pctx
	return s.results, s.err
}

func TestRegistry_RegisterResolve(t *testing.T) {
	r := NewRegistry()
	p := &stubProcessor{}
	r.Register("claude-code", p)

	got, err := r.Resolve("claude-code")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got != p {
		t.Error("resolved a different processor")
	}

	_, err = r.Resolve("unknown")
	if !errors.Is(err, ErrProcessorNotFound) {
		t.Fatalf("err = %v, want ErrProcessorNotFound", err)
	}

	if got := r.Providers(); len(got) != 1 || got[0] != "claude-code" {
		t.Errorf("Providers = %v", got)
	}
}

func TestCoordinator_Process(t *testing.T) {
	st := openTestStore(t)
	if err := st.CreateSession(&models.Session{SessionID: "sess-1", Provider: "claude-code"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	proc := &stubProcessor{results: []CategoryMetrics{
		{MetricType: MetricUsage, Values: map[string]float64{
			"prompt_count": 4,
			"input_tokens": 1200,
		}},
	}}
	registry := NewRegistry()
	registry.Register("claude-code", proc)

	c, err := NewCoordinator(st, registry)
	if err != nil {
		t.Fatalf("new coordinator: %v", err)
	}

	metrics, err := c.Process(context.Background(), "sess-1", "claude-code", "content", "user-1")
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if metrics.PromptCount != 4 || metrics.InputTokens != 1200 {
		t.Errorf("metrics = %+v", metrics)
	}
	if proc.lastCtx.TenantID != LocalTenantID || proc.lastCtx.UserID != "user-1" {
		t.Errorf("processor context = %+v", proc.lastCtx)
	}

	sess, _ := st.GetBySessionID("sess-1")
	if sess.CoreMetricsStatus != models.MetricsCompleted {
		t.Errorf("CoreMetricsStatus = %q, want completed", sess.CoreMetricsStatus)
	}
}

func TestCoordinator_ProcessorErrorStoresNothing(t *testing.T) {
	st := openTestStore(t)
	if err := st.CreateSession(&models.Session{SessionID: "sess-1", Provider: "claude-code"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	registry := NewRegistry()
	registry.Register("claude-code", &stubProcessor{err: errors.New("parse blew up")})
	c, err := NewCoordinator(st, registry)
	if err != nil {
		t.Fatalf("new coordinator: %v", err)
	}

	if _, err := c.Process(context.Background(), "sess-1", "claude-code", "content", ""); err == nil {
		t.Fatal("expected processor error to propagate")
	}

	m, err := st.GetMetrics("sess-1")
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	if m != nil {
		t.Fatal("partial metrics stored after processor failure")
	}
	sess, _ := st.GetBySessionID("sess-1")
	if sess.CoreMetricsStatus != models.MetricsPending {
		t.Errorf("CoreMetricsStatus = %q, want pending", sess.CoreMetricsStatus)
	}
}

func TestCoordinator_UnknownProvider(t *testing.T) {
	st := openTestStore(t)
	c, err := NewCoordinator(st, NewRegistry())
	if err != nil {
		t.Fatalf("new coordinator: %v", err)
	}

	_, err = c.Process(context.Background(), "sess-1", "mystery", "content", "")
	if !errors.Is(err, ErrProcessorNotFound) {
		t.Fatalf("err = %v, want ErrProcessorNotFound", err)
	}
}

// failingDiff always errors; processing must continue without diff stats.
type failingDiff struct{}

func (failingDiff) DiffStats(cwd, commitRange string) (*DiffStats, error) {
	return nil, errors.New("not a git repo")
}

func TestCoordinator_DiffFailureIsSwallowed(t *testing.T) {
	st := openTestStore(t)
	if err := st.CreateSession(&models.Session{SessionID: "sess-1", Provider: "claude-code"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	proc := &stubProcessor{results: []CategoryMetrics{
		{MetricType: MetricPerformance, Values: map[string]float64{"tool_call_count": 2}},
	}}
	registry := NewRegistry()
	registry.Register("claude-code", proc)

	c, err := NewCoordinator(st, registry, WithDiffSource(failingDiff{}, "/tmp"))
	if err != nil {
		t.Fatalf("new coordinator: %v", err)
	}

	if _, err := c.Process(context.Background(), "sess-1", "claude-code", "content", ""); err != nil {
		t.Fatalf("process: %v", err)
	}
	if proc.lastCtx.DiffStats != nil {
		t.Error("DiffStats set despite source failure")
	}
}

func TestBuildMetricsRow_AllCategories(t *testing.T) {
	results := []CategoryMetrics{
		{MetricType: MetricPerformance, Values: map[string]float64{
			"total_duration_ms":       60000,
			"active_duration_ms":      45000,
			"avg_response_latency_ms": 1500,
			"tool_call_count":         12,
		}},
		{MetricType: MetricUsage, Values: map[string]float64{
			"prompt_count":       5,
			"input_tokens":       10000,
			"output_tokens":      2500,
			"cache_read_tokens":  8000,
			"estimated_cost_usd": 0.42,
		}},
		{MetricType: MetricError, Values: map[string]float64{
			"error_count":        2,
			"tool_failure_count": 1,
		}},
		{MetricType: MetricEngagement, Values: map[string]float64{
			"user_message_count": 5,
		}},
		{
			MetricType: MetricQuality,
			Values:     map[string]float64{"tests_passed": 1},
			Tips:       []string{"Run the linter before committing."},
		},
	}

	m := buildMetricsRow("sess-1", results)

	if m.TotalDurationMs != 60000 || m.ActiveDurationMs != 45000 {
		t.Errorf("durations = %d/%d", m.TotalDurationMs, m.ActiveDurationMs)
	}
	if m.ToolCallCount != 12 || m.PromptCount != 5 {
		t.Errorf("counts = %d/%d", m.ToolCallCount, m.PromptCount)
	}
	if m.InputTokens != 10000 || m.CacheReadTokens != 8000 {
		t.Errorf("tokens = %d/%d", m.InputTokens, m.CacheReadTokens)
	}
	if m.EstimatedCostUSD != 0.42 {
		t.Errorf("cost = %v", m.EstimatedCostUSD)
	}
	if m.ErrorCount != 2 || m.ToolFailureCount != 1 {
		t.Errorf("errors = %d/%d", m.ErrorCount, m.ToolFailureCount)
	}
	if !m.TestsPassed {
		t.Error("TestsPassed = false")
	}
	if !strings.Contains(m.ImprovementTips, "linter") {
		t.Errorf("ImprovementTips = %q", m.ImprovementTips)
	}
}

func TestParseShortstat(t *testing.T) {
	tests := []struct {
		name string
		out  string
		want DiffStats
	}{
		{
			name: "full line",
			out:  " 3 files changed, 120 insertions(+), 45 deletions(-)\n",
			want: DiffStats{FilesChanged: 3, Insertions: 120, Deletions: 45},
		},
		{
			name: "insertions only",
			out:  " 1 file changed, 7 insertions(+)\n",
			want: DiffStats{FilesChanged: 1, Insertions: 7},
		},
		{
			name: "deletions only",
			out:  " 2 files changed, 9 deletions(-)\n",
			want: DiffStats{FilesChanged: 2, Deletions: 9},
		},
		{
			name: "empty diff",
			out:  "",
			want: DiffStats{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseShortstat(tt.out)
			if *got != tt.want {
				t.Errorf("parseShortstat(%q) = %+v, want %+v", tt.out, *got, tt.want)
			}
		})
	}
}

func TestFileReader(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "t.jsonl")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := FileReader{}.GetContent("claude-code", path, "sess-1")
	if err != nil {
		t.Fatalf("get content: %v", err)
	}
	if got != "hello" {
		t.Errorf("content = %q", got)
	}

	if _, err := (FileReader{}).GetContent("claude-code", filepath.Join(dir, "missing"), "sess-1"); err == nil {
		t.Fatal("expected error for missing file")
	}
}
