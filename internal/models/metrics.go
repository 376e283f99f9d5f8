package models

import "time"

// SessionMetrics is the single wide metrics row for a session, grouped into
// performance, usage, error, engagement, and quality categories. At most one
// row exists per session; writing again replaces the row entirely rather
// than merging field by field.
type SessionMetrics struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	SessionID string `gorm:"size:128;uniqueIndex;not null"`

	// Performance
	TotalDurationMs      int64
	ActiveDurationMs     int64
	AvgResponseLatencyMs float64
	ToolCallCount        int
	PerformanceMetadata  string `gorm:"type:json"`

	// Usage
	PromptCount      int
	InputTokens      int64
	OutputTokens     int64
	CacheReadTokens  int64
	EstimatedCostUSD float64
	UsageMetadata    string `gorm:"type:json"`

	// Error
	ErrorCount        int
	ToolFailureCount  int
	RetryCount        int
	InterruptionCount int
	ErrorMetadata     string `gorm:"type:json"`

	// Engagement
	UserMessageCount   int
	ClarificationCount int
	SteeringCount      int
	EngagementMetadata string `gorm:"type:json"`

	// Quality
	GoalCompletionRate float64
	CodeChurnRatio     float64
	TestsPassed        bool
	QualityMetadata    string `gorm:"type:json"`

	ImprovementTips string `gorm:"type:json"` // JSON array of free-text tips

	CreatedAt time.Time
	UpdatedAt time.Time
}
