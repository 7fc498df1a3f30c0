package model

import "time"

// SessionRecord is one logged model interaction. InputTokens includes
// CachedInputTokens; cache writes are counted separately.
type SessionRecord struct {
	SessionID       string    `json:"sessionId"`
	SessionFile     string    `json:"sessionFile"`
	Directory       string    `json:"directory,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
	Model           string    `json:"model"`
	IsFallbackModel bool      `json:"isFallbackModel,omitempty"`

	InputTokens           int64 `json:"inputTokens"`
	CachedInputTokens     int64 `json:"cachedInputTokens"`
	CacheWrite5mTokens    int64 `json:"cacheWrite5mTokens"`
	CacheWrite1hTokens    int64 `json:"cacheWrite1hTokens"`
	OutputTokens          int64 `json:"outputTokens"`
	ReasoningOutputTokens int64 `json:"reasoningOutputTokens"`
	TotalTokens           int64 `json:"totalTokens"`
}

// Granularity selects how records are bucketed.
type Granularity string

// Granularities.
const (
	Daily   Granularity = "daily"
	Monthly Granularity = "monthly"
	Session Granularity = "session"
)

// TokenTotals aggregates token counts.
type TokenTotals struct {
	InputTokens           int64 `json:"inputTokens"`
	CachedInputTokens     int64 `json:"cachedInputTokens"`
	CacheWrite5mTokens    int64 `json:"cacheWrite5mTokens"`
	CacheWrite1hTokens    int64 `json:"cacheWrite1hTokens"`
	OutputTokens          int64 `json:"outputTokens"`
	ReasoningOutputTokens int64 `json:"reasoningOutputTokens"`
	TotalTokens           int64 `json:"totalTokens"`
}

// AddRecord adds r's counts to t.
func (t *TokenTotals) AddRecord(r SessionRecord) {
	t.InputTokens += r.InputTokens
	t.CachedInputTokens += r.CachedInputTokens
	t.CacheWrite5mTokens += r.CacheWrite5mTokens
	t.CacheWrite1hTokens += r.CacheWrite1hTokens
	t.OutputTokens += r.OutputTokens
	t.ReasoningOutputTokens += r.ReasoningOutputTokens
	t.TotalTokens += r.TotalTokens
}

// Add adds o to t.
func (t *TokenTotals) Add(o TokenTotals) {
	t.InputTokens += o.InputTokens
	t.CachedInputTokens += o.CachedInputTokens
	t.CacheWrite5mTokens += o.CacheWrite5mTokens
	t.CacheWrite1hTokens += o.CacheWrite1hTokens
	t.OutputTokens += o.OutputTokens
	t.ReasoningOutputTokens += o.ReasoningOutputTokens
	t.TotalTokens += o.TotalTokens
}

// ModelBreakdown is one model's share of a bucket.
type ModelBreakdown struct {
	Model string `json:"model"`
	TokenTotals
	CostUSD     float64 `json:"costUSD"`
	IsFallback  bool    `json:"isFallback,omitempty"`
	UnknownRate bool    `json:"unknownRate,omitempty"`
}

// TimeBucket is one row of a cost report.
type TimeBucket struct {
	Key      string      `json:"key"`
	Kind     Granularity `json:"kind"`
	Start    time.Time   `json:"start"`
	End      time.Time   `json:"end"`
	Timezone string      `json:"timezone"`
	TokenTotals
	CostUSD      float64          `json:"costUSD"`
	Models       []ModelBreakdown `json:"models"`
	LastActivity *time.Time       `json:"lastActivity,omitempty"`
	Directory    string           `json:"directory,omitempty"`
	SessionFile  string           `json:"sessionFile,omitempty"`
}

// ReportTotals is the raw sum of every bucket.
type ReportTotals struct {
	TokenTotals
	CostUSD float64 `json:"costUSD"`
}

// CostReport is built fresh per invocation and never mutated afterwards.
type CostReport struct {
	Provider    string       `json:"provider"`
	Granularity Granularity  `json:"granularity"`
	Timezone    string       `json:"timezone"`
	Buckets     []TimeBucket `json:"buckets"`
	Totals      ReportTotals `json:"totals"`
	Warnings    []string     `json:"warnings,omitempty"`
}
