// Package enrichment runs the optional AI tasks (summary and quality) for
// a session. Enrichment is opportunistic: without a configured credential
// nothing runs and nothing is an error. The two tasks are independently
// fault-tolerant; a failure in one never blocks the other from running or
// from being recorded.
package enrichment

import (
	"context"
	"errors"
	"net/http"
	"strings"

	openaigo "github.com/openai/openai-go/v3"

	"github.com/quillback/quillback/internal/processing"
)

// Task types executed by an Adapter.
const (
	TaskSummary = "summary"
	TaskQuality = "quality"
)

// TaskContext carries session data into a model task.
type TaskContext struct {
	SessionID string
	Provider  string
	Parsed    *processing.ParsedSession
}

// TaskResult is the output of one model task. Summary tasks fill Output;
// quality tasks fill Score, Metadata, and PhaseAnalysis.
type TaskResult struct {
	Output        string
	Score         *float64
	Metadata      string // structured JSON from the model
	PhaseAnalysis string
}

// Adapter executes one enrichment task against a model provider.
type Adapter interface {
	ExecuteTask(ctx context.Context, task string, tctx TaskContext) (*TaskResult, error)
}

// IsAuthError reports whether a task failure is an authentication or
// authorization rejection. Auth failures are terminal for the session:
// retrying cannot help until credentials change, so the session is flipped
// to failed instead of being left for the next sweep.
func IsAuthError(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *openaigo.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusUnauthorized ||
			apiErr.StatusCode == http.StatusForbidden
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "invalid api key") ||
		strings.Contains(msg, "incorrect api key") ||
		strings.Contains(msg, "unauthorized")
}
