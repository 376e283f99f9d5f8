package enrichment

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	openaigo "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// Model call limits.
const (
	defaultModel       = "gpt-4o-mini"
	maxRetries         = 2
	requestTimeout     = 60 * time.Second
	maxTranscriptChars = 48_000 // keep prompts inside context limits
)

const summarySystemPrompt = `You summarize transcripts of AI coding-agent sessions.
Write a concise summary (4-6 sentences) of what the user asked for, what the
agent did, and the outcome. Plain text only.`

const qualitySystemPrompt = `You score transcripts of AI coding-agent sessions.
Respond with a single JSON object, no prose:
{"score": <0-10 number>, "strengths": [..], "weaknesses": [..], "phase_analysis": "<one paragraph walking through the session phases>"}`

// OpenAIAdapter executes enrichment tasks via an OpenAI-compatible endpoint.
type OpenAIAdapter struct {
	client openaigo.Client
	model  string
}

// NewOpenAIAdapter creates an adapter. Returns an error when apiKey is
// empty; callers treat a missing credential as "enrichment disabled" and
// never construct an adapter.
func NewOpenAIAdapter(apiKey, baseURL, model string) (*OpenAIAdapter, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("enrichment: api key is required")
	}
	if model == "" {
		model = defaultModel
	}

	opts := []option.RequestOption{
		option.WithAPIKey(strings.TrimSpace(apiKey)),
		option.WithMaxRetries(maxRetries),
		option.WithRequestTimeout(requestTimeout),
	}
	if baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/"); baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	return &OpenAIAdapter{
		client: openaigo.NewClient(opts...),
		model:  model,
	}, nil
}

// ExecuteTask runs one task against the model.
func (a *OpenAIAdapter) ExecuteTask(ctx context.Context, task string, tctx TaskContext) (*TaskResult, error) {
	var system string
	switch task {
	case TaskSummary:
		system = summarySystemPrompt
	case TaskQuality:
		system = qualitySystemPrompt
	default:
		return nil, fmt.Errorf("enrichment: unknown task %q", task)
	}

	transcript := tctx.Parsed.Text
	if len(transcript) > maxTranscriptChars {
		transcript = transcript[:maxTranscriptChars]
	}

	resp, err := a.client.Chat.Completions.New(ctx, openaigo.ChatCompletionNewParams{
		Model: openaigo.ChatModel(a.model),
		Messages: []openaigo.ChatCompletionMessageParamUnion{
			openaigo.SystemMessage(system),
			openaigo.UserMessage(transcript),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("enrichment: %s task for %s: %w", task, tctx.SessionID, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("enrichment: %s task for %s: empty response", task, tctx.SessionID)
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if task == TaskSummary {
		return &TaskResult{Output: content}, nil
	}
	return parseQualityResponse(tctx.SessionID, content)
}

// qualityPayload is the JSON shape the quality prompt requests.
type qualityPayload struct {
	Score         float64  `json:"score"`
	Strengths     []string `json:"strengths"`
	Weaknesses    []string `json:"weaknesses"`
	PhaseAnalysis string   `json:"phase_analysis"`
}

// parseQualityResponse extracts the structured score from the model's reply,
// tolerating markdown code fences around the JSON.
func parseQualityResponse(sessionID, content string) (*TaskResult, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var payload qualityPayload
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		return nil, fmt.Errorf("enrichment: quality response for %s not parseable: %w", sessionID, err)
	}
	if payload.Score < 0 || payload.Score > 10 {
		return nil, fmt.Errorf("enrichment: quality score %.1f for %s out of range", payload.Score, sessionID)
	}

	meta, err := json.Marshal(map[string]interface{}{
		"strengths":  payload.Strengths,
		"weaknesses": payload.Weaknesses,
	})
	if err != nil {
		return nil, fmt.Errorf("enrichment: marshal quality metadata for %s: %w", sessionID, err)
	}

	score := payload.Score
	return &TaskResult{
		Score:         &score,
		Metadata:      string(meta),
		PhaseAnalysis: payload.PhaseAnalysis,
	}, nil
}
