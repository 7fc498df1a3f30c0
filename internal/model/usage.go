// Package model defines the canonical usage and cost types shared by
// fetchers, the report engine and the output layer.
package model

import "time"

// UsageSnapshot is the normalized result for one provider (and account).
// Optional values are pointers; nil means the provider did not report them.
type UsageSnapshot struct {
	Provider  string       `json:"provider"`
	Source    string       `json:"source"`
	Account   string       `json:"account,omitempty"`
	UpdatedAt time.Time    `json:"updatedAt"`
	Metrics   []Metric     `json:"metrics"`
	Cost      *CostAmount  `json:"cost,omitempty"`
	Status    *StatusBadge `json:"status,omitempty"`
	Identity  *Identity    `json:"identity,omitempty"`
}

// Metric is one quota window or counter.
type Metric struct {
	Label         string     `json:"label"`
	Used          float64    `json:"used"`
	Limit         *float64   `json:"limit,omitempty"`
	Unit          string     `json:"unit"`
	UsedPercent   *float64   `json:"usedPercent,omitempty"`
	WindowMinutes *int       `json:"windowMinutes,omitempty"`
	ResetsAt      *time.Time `json:"resetsAt,omitempty"`
}

// Metric units.
const (
	UnitPercent  = "percent"
	UnitRequests = "requests"
	UnitCredits  = "credits"
	UnitTokens   = "tokens"
	UnitUSD      = "usd"
)

// CostAmount is spend against an optional budget.
type CostAmount struct {
	Used     float64    `json:"used"`
	Limit    *float64   `json:"limit,omitempty"`
	Currency string     `json:"currency"`
	Period   string     `json:"period,omitempty"`
	ResetsAt *time.Time `json:"resetsAt,omitempty"`
}

// StatusBadge is a provider's public status page indicator.
type StatusBadge struct {
	Indicator   string `json:"indicator"`
	Description string `json:"description,omitempty"`
	URL         string `json:"url,omitempty"`
}

// Status indicators.
const (
	StatusNone        = "none"
	StatusMinor       = "minor"
	StatusMajor       = "major"
	StatusCritical    = "critical"
	StatusMaintenance = "maintenance"
	StatusUnknown     = "unknown"
)

// Identity is who the usage belongs to.
type Identity struct {
	Email        string `json:"email,omitempty"`
	Organization string `json:"organization,omitempty"`
	Plan         string `json:"plan,omitempty"`
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }

// Time returns a pointer to t, or nil for the zero time.
func Time(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
