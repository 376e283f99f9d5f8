// Package processing computes and persists per-session metrics. The actual
// metric algorithms live behind the Processor interface, resolved by
// provider; this package owns orchestration of a single processing pass.
package processing

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrProcessorNotFound is returned when no processor is registered for a
// session's provider. Fatal for that call; surfaced to the caller.
var ErrProcessorNotFound = errors.New("processing: no processor registered")

// LocalTenantID is the fixed tenant sentinel for single-user deployments.
const LocalTenantID = "local"

// Metric category identifiers.
const (
	MetricPerformance = "performance"
	MetricUsage       = "usage"
	MetricError       = "error"
	MetricEngagement  = "engagement"
	MetricQuality     = "quality"
)

// Context carries per-invocation metadata into a Processor.
type Context struct {
	SessionID string
	TenantID  string
	UserID    string
	Provider  string
	DiffStats *DiffStats // best-effort; nil when the fetch failed or was skipped
}

// ParsedSession is the provider-neutral view of a transcript, consumed by
// the enrichment tasks.
type ParsedSession struct {
	SessionID      string
	Provider       string
	MessageCount   int
	UserMessages   int
	FirstTimestamp time.Time
	LastTimestamp  time.Time
	Text           string // raw transcript, retained for model tasks
}

// CategoryMetrics is one category's worth of computed metrics.
type CategoryMetrics struct {
	MetricType string
	Values     map[string]float64
	Metadata   map[string]interface{}
	Tips       []string
}

// Processor turns raw transcript content into category metrics for one
// provider's transcript format.
type Processor interface {
	ParseSession(content string) (*ParsedSession, error)
	ProcessMetrics(content string, pctx Context) ([]CategoryMetrics, error)
}

// Registry maps providers to their processors.
type Registry struct {
	mu         sync.RWMutex
	byProvider map[string]Processor
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{byProvider: make(map[string]Processor)}
}

// Register installs a processor for a provider, replacing any prior one.
func (r *Registry) Register(provider string, p Processor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byProvider[provider] = p
}

// Resolve returns the processor for a provider.
func (r *Registry) Resolve(provider string) (Processor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byProvider[provider]
	if !ok {
		return nil, fmt.Errorf("processing: provider %q: %w", provider, ErrProcessorNotFound)
	}
	return p, nil
}

// Providers returns the registered provider names.
func (r *Registry) Providers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.byProvider))
	for name := range r.byProvider {
		out = append(out, name)
	}
	return out
}
