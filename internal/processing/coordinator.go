package processing

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/quillback/quillback/internal/models"
	"github.com/quillback/quillback/internal/store"
)

// Coordinator runs one metrics-processing pass for one session: resolve the
// provider's processor, invoke it, map the category results into the wide
// metrics row, and persist. All-or-nothing per session: a processor error
// propagates and no partial metrics are ever stored.
type Coordinator struct {
	store    *store.Store
	registry *Registry

	diff     DiffSource // optional
	diffWork string     // working directory handed to the diff source
}

// CoordinatorOpt configures optional Coordinator collaborators.
type CoordinatorOpt func(*Coordinator)

// WithDiffSource attaches a best-effort auxiliary diff source rooted at
// workDir.
func WithDiffSource(src DiffSource, workDir string) CoordinatorOpt {
	return func(c *Coordinator) {
		c.diff = src
		c.diffWork = workDir
	}
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(st *store.Store, registry *Registry, opts ...CoordinatorOpt) (*Coordinator, error) {
	if st == nil {
		return nil, fmt.Errorf("processing: store is required")
	}
	if registry == nil {
		return nil, fmt.Errorf("processing: registry is required")
	}
	c := &Coordinator{store: st, registry: registry}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Process computes and persists metrics for one session. Side effects are
// exactly one metrics row write, one status-flag flip, and one sync-flag
// reset, all in one transaction inside the store.
func (c *Coordinator) Process(ctx context.Context, sessionID, provider, transcript, userID string) (*models.SessionMetrics, error) {
	proc, err := c.registry.Resolve(provider)
	if err != nil {
		return nil, err
	}

	pctx := Context{
		SessionID: sessionID,
		TenantID:  LocalTenantID,
		UserID:    userID,
		Provider:  provider,
	}
	if c.diff != nil {
		stats, derr := c.diff.DiffStats(c.diffWork, "")
		if derr != nil {
			log.Printf("processing: diff stats for %s: %v (continuing without)", sessionID, derr)
		} else {
			pctx.DiffStats = stats
		}
	}

	results, err := proc.ProcessMetrics(transcript, pctx)
	if err != nil {
		return nil, fmt.Errorf("processing: process %s: %w", sessionID, err)
	}

	metrics := buildMetricsRow(sessionID, results)
	if err := c.store.UpsertMetrics(sessionID, metrics); err != nil {
		return nil, err
	}
	return metrics, nil
}

// buildMetricsRow maps heterogeneous category results into the wide metrics
// shape. Unknown value keys are preserved through the category metadata.
func buildMetricsRow(sessionID string, results []CategoryMetrics) *models.SessionMetrics {
	m := &models.SessionMetrics{SessionID: sessionID}
	var tips []string

	for _, r := range results {
		tips = append(tips, r.Tips...)
		meta := marshalMeta(r.Metadata)

		switch r.MetricType {
		case MetricPerformance:
			m.TotalDurationMs = int64(r.Values["total_duration_ms"])
			m.ActiveDurationMs = int64(r.Values["active_duration_ms"])
			m.AvgResponseLatencyMs = r.Values["avg_response_latency_ms"]
			m.ToolCallCount = int(r.Values["tool_call_count"])
			m.PerformanceMetadata = meta
		case MetricUsage:
			m.PromptCount = int(r.Values["prompt_count"])
			m.InputTokens = int64(r.Values["input_tokens"])
			m.OutputTokens = int64(r.Values["output_tokens"])
			m.CacheReadTokens = int64(r.Values["cache_read_tokens"])
			m.EstimatedCostUSD = r.Values["estimated_cost_usd"]
			m.UsageMetadata = meta
		case MetricError:
			m.ErrorCount = int(r.Values["error_count"])
			m.ToolFailureCount = int(r.Values["tool_failure_count"])
			m.RetryCount = int(r.Values["retry_count"])
			m.InterruptionCount = int(r.Values["interruption_count"])
			m.ErrorMetadata = meta
		case MetricEngagement:
			m.UserMessageCount = int(r.Values["user_message_count"])
			m.ClarificationCount = int(r.Values["clarification_count"])
			m.SteeringCount = int(r.Values["steering_count"])
			m.EngagementMetadata = meta
		case MetricQuality:
			m.GoalCompletionRate = r.Values["goal_completion_rate"]
			m.CodeChurnRatio = r.Values["code_churn_ratio"]
			m.TestsPassed = r.Values["tests_passed"] > 0
			m.QualityMetadata = meta
		default:
			log.Printf("processing: unknown metric type %q for %s, skipped", r.MetricType, sessionID)
		}
	}

	if len(tips) > 0 {
		if data, err := json.Marshal(tips); err == nil {
			m.ImprovementTips = string(data)
		}
	}
	return m
}

// marshalMeta marshals category metadata to a JSON string, empty for nil.
func marshalMeta(meta map[string]interface{}) string {
	if len(meta) == 0 {
		return ""
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return ""
	}
	return string(data)
}
