package processing

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// JSONLProcessor handles the line-delimited JSON transcript format most
// agent CLIs emit: one event object per line with a type field, message
// events carrying role/content/timestamp, and result events carrying token
// usage. It ships as the default registered processor; provider-specific
// processors can replace it per provider.
type JSONLProcessor struct{}

// transcriptEvent is used for initial type dispatch.
type transcriptEvent struct {
	Type string `json:"type"`
}

// messageEvent extracts role, content, and timing from message events.
type messageEvent struct {
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	Timestamp string `json:"timestamp"`
	IsError   bool   `json:"is_error"`
}

// toolEvent extracts tool call outcomes.
type toolEvent struct {
	ToolName string `json:"tool_name"`
	IsError  bool   `json:"is_error"`
}

// usageEvent extracts token usage from result events.
type usageEvent struct {
	Usage struct {
		InputTokens     int64 `json:"input_tokens"`
		OutputTokens    int64 `json:"output_tokens"`
		CacheReadTokens int64 `json:"cache_read_input_tokens"`
	} `json:"usage"`
	CostUSD float64 `json:"total_cost_usd"`
}

// transcriptScan is the accumulated single-pass view of a transcript.
type transcriptScan struct {
	messages      int
	userMessages  int
	toolCalls     int
	toolFailures  int
	errorEvents   int
	interruptions int
	inputTokens   int64
	outputTokens  int64
	cacheTokens   int64
	costUSD       float64
	first, last   time.Time
}

// ParseSession produces the provider-neutral transcript view.
func (p JSONLProcessor) ParseSession(content string) (*ParsedSession, error) {
	scan := p.scan(content)
	if scan.messages == 0 {
		return nil, fmt.Errorf("processing: transcript has no message events")
	}
	return &ParsedSession{
		MessageCount:   scan.messages,
		UserMessages:   scan.userMessages,
		FirstTimestamp: scan.first,
		LastTimestamp:  scan.last,
		Text:           content,
	}, nil
}

// ProcessMetrics computes all five metric categories in one pass.
func (p JSONLProcessor) ProcessMetrics(content string, pctx Context) ([]CategoryMetrics, error) {
	scan := p.scan(content)
	if scan.messages == 0 {
		return nil, fmt.Errorf("processing: transcript has no message events")
	}

	durationMs := int64(0)
	if scan.last.After(scan.first) {
		durationMs = scan.last.Sub(scan.first).Milliseconds()
	}
	latency := 0.0
	if scan.messages > 1 {
		latency = float64(durationMs) / float64(scan.messages-1)
	}

	results := []CategoryMetrics{
		{
			MetricType: MetricPerformance,
			Values: map[string]float64{
				"total_duration_ms":       float64(durationMs),
				"active_duration_ms":      float64(durationMs),
				"avg_response_latency_ms": latency,
				"tool_call_count":         float64(scan.toolCalls),
			},
		},
		{
			MetricType: MetricUsage,
			Values: map[string]float64{
				"prompt_count":       float64(scan.userMessages),
				"input_tokens":       float64(scan.inputTokens),
				"output_tokens":      float64(scan.outputTokens),
				"cache_read_tokens":  float64(scan.cacheTokens),
				"estimated_cost_usd": scan.costUSD,
			},
		},
		{
			MetricType: MetricError,
			Values: map[string]float64{
				"error_count":        float64(scan.errorEvents),
				"tool_failure_count": float64(scan.toolFailures),
				"interruption_count": float64(scan.interruptions),
			},
		},
		{
			MetricType: MetricEngagement,
			Values: map[string]float64{
				"user_message_count": float64(scan.userMessages),
			},
		},
	}

	quality := CategoryMetrics{
		MetricType: MetricQuality,
		Values:     map[string]float64{},
	}
	if pctx.DiffStats != nil && pctx.DiffStats.Insertions > 0 {
		quality.Values["code_churn_ratio"] =
			float64(pctx.DiffStats.Deletions) / float64(pctx.DiffStats.Insertions)
		quality.Metadata = map[string]interface{}{
			"files_changed": pctx.DiffStats.FilesChanged,
			"insertions":    pctx.DiffStats.Insertions,
			"deletions":     pctx.DiffStats.Deletions,
		}
	}
	if scan.toolFailures > scan.toolCalls/2 && scan.toolCalls > 0 {
		quality.Tips = append(quality.Tips,
			"More than half of tool calls failed; check the working environment before the next session.")
	}
	results = append(results, quality)

	return results, nil
}

// scan walks the transcript once, skipping malformed lines.
func (p JSONLProcessor) scan(content string) transcriptScan {
	var s transcriptScan

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if len(line) == 0 || line[0] != '{' {
			continue
		}

		var evt transcriptEvent
		if err := json.Unmarshal([]byte(line), &evt); err != nil {
			continue
		}

		switch evt.Type {
		case "user", "assistant", "message":
			var m messageEvent
			if err := json.Unmarshal([]byte(line), &m); err != nil {
				continue
			}
			s.messages++
			role := m.Message.Role
			if role == "" && evt.Type != "message" {
				role = evt.Type
			}
			if role == "user" {
				s.userMessages++
			}
			if m.IsError {
				s.errorEvents++
			}
			if strings.Contains(m.Message.Content, "[Request interrupted") {
				s.interruptions++
			}
			if ts, err := time.Parse(time.RFC3339, m.Timestamp); err == nil {
				if s.first.IsZero() || ts.Before(s.first) {
					s.first = ts
				}
				if ts.After(s.last) {
					s.last = ts
				}
			}
		case "tool_use", "tool_result":
			var t toolEvent
			if err := json.Unmarshal([]byte(line), &t); err != nil {
				continue
			}
			if evt.Type == "tool_use" {
				s.toolCalls++
			} else if t.IsError {
				s.toolFailures++
				s.errorEvents++
			}
		case "result":
			var u usageEvent
			if err := json.Unmarshal([]byte(line), &u); err != nil {
				continue
			}
			s.inputTokens += u.Usage.InputTokens
			s.outputTokens += u.Usage.OutputTokens
			s.cacheTokens += u.Usage.CacheReadTokens
			s.costUSD += u.CostUSD
		}
	}

	return s
}
