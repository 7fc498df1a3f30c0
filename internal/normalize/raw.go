// Package normalize maps decoded provider payloads into model.UsageSnapshot.
package normalize

import (
	"encoding/json"
	"net/http"
)

// Raw is a decoded provider payload. The set of implementations is closed.
type Raw interface {
	raw()
}

// ClaudeUsage is the Claude usage payload from either the OAuth usage API or
// the claude.ai web API.
type ClaudeUsage struct {
	FiveHour       *ClaudeWindow     `json:"five_hour"`
	SevenDay       *ClaudeWindow     `json:"seven_day"`
	SevenDayOpus   *ClaudeWindow     `json:"seven_day_opus"`
	SevenDaySonnet *ClaudeWindow     `json:"seven_day_sonnet"`
	ExtraUsage     *ClaudeExtraUsage `json:"extra_usage"`

	// Filled by the web fetcher from separate endpoints.
	Overage      *ClaudeOverage `json:"-"`
	Email        string         `json:"-"`
	Organization string         `json:"-"`
	Plan         string         `json:"-"`
}

// ClaudeWindow is one rate-limit window. Utilization arrives as an int,
// float or string, so it is kept raw.
type ClaudeWindow struct {
	Utilization json.RawMessage `json:"utilization"`
	ResetsAt    *string         `json:"resets_at"`
}

// ClaudeExtraUsage is paid overage from the OAuth API, in cents.
type ClaudeExtraUsage struct {
	IsEnabled    *bool    `json:"is_enabled"`
	MonthlyLimit *float64 `json:"monthly_limit"`
	UsedCredits  *float64 `json:"used_credits"`
	Currency     *string  `json:"currency"`
}

// ClaudeOverage is the web API overage spend limit, in cents.
type ClaudeOverage struct {
	IsEnabled          bool    `json:"isEnabled"`
	UsedCredits        float64 `json:"usedCredits"`
	MonthlyCreditLimit float64 `json:"monthlyCreditLimit"`
	Currency           string  `json:"currency"`
}

// CodexUsage is the chatgpt.com usage payload.
type CodexUsage struct {
	PlanType  *string         `json:"plan_type"`
	RateLimit *CodexRateLimit `json:"rate_limit"`
	Credits   *CodexCredits   `json:"credits"`
	Email     string          `json:"-"`
}

// CodexRateLimit holds the two Codex windows.
type CodexRateLimit struct {
	PrimaryWindow   *CodexWindow `json:"primary_window"`
	SecondaryWindow *CodexWindow `json:"secondary_window"`
}

// CodexWindow is one Codex window; ResetAt is epoch seconds.
type CodexWindow struct {
	UsedPercent        *float64 `json:"used_percent"`
	ResetAt            *int64   `json:"reset_at"`
	LimitWindowSeconds *int64   `json:"limit_window_seconds"`
}

// CodexCredits is the prepaid credit balance. Balance is a number or a string.
type CodexCredits struct {
	HasCredits *bool           `json:"has_credits"`
	Unlimited  *bool           `json:"unlimited"`
	Balance    json.RawMessage `json:"balance"`
}

// CopilotUsage is the GitHub copilot_internal/user payload.
type CopilotUsage struct {
	QuotaSnapshots *CopilotQuotas `json:"quota_snapshots"`
	CopilotPlan    string         `json:"copilot_plan"`
	QuotaResetDate *string        `json:"quota_reset_date"`
}

// CopilotQuotas holds the per-feature quota snapshots.
type CopilotQuotas struct {
	PremiumInteractions *CopilotQuota `json:"premium_interactions"`
	Chat                *CopilotQuota `json:"chat"`
}

// CopilotQuota is one quota snapshot.
type CopilotQuota struct {
	PercentRemaining *float64 `json:"percent_remaining"`
	Entitlement      *float64 `json:"entitlement"`
	Remaining        *float64 `json:"remaining"`
	Unlimited        bool     `json:"unlimited"`
}

// ZaiQuota is the z.ai quota/limit payload. Its keys vary between API
// revisions, so the body is kept generic.
type ZaiQuota struct {
	Body map[string]any
}

// WarpLimits is the Warp GraphQL GetRequestLimitInfo response.
type WarpLimits struct {
	Data *struct {
		User *struct {
			User *struct {
				RequestLimitInfo *WarpRequestLimitInfo `json:"requestLimitInfo"`
			} `json:"user"`
		} `json:"user"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// WarpRequestLimitInfo is the request allowance for the current period.
type WarpRequestLimitInfo struct {
	IsUnlimited                  bool     `json:"isUnlimited"`
	RequestLimit                 *float64 `json:"requestLimit"`
	RequestsUsedSinceLastRefresh *float64 `json:"requestsUsedSinceLastRefresh"`
	NextRefreshTime              *string  `json:"nextRefreshTime"`
}

// KimiK2Credits is the kimi-k2.ai credits payload plus the remaining-credits
// response header, which some deployments send instead of a body field.
type KimiK2Credits struct {
	Body   map[string]any
	Header http.Header
}

// MinimaxRemains is the MiniMax coding plan payload. Fields appear either at
// the top level or under data.
type MinimaxRemains struct {
	Data         *MinimaxData          `json:"data"`
	BaseResp     *MinimaxBaseResp      `json:"base_resp"`
	ModelRemains []MinimaxModelRemains `json:"model_remains"`
}

// MinimaxData is the nested MiniMax body.
type MinimaxData struct {
	BaseResp              *MinimaxBaseResp      `json:"base_resp"`
	PlanName              *string               `json:"plan_name"`
	CurrentPlanTitle      *string               `json:"current_plan_title"`
	CurrentSubscribeTitle *string               `json:"current_subscribe_title"`
	ComboTitle            *string               `json:"combo_title"`
	ModelRemains          []MinimaxModelRemains `json:"model_remains"`
}

// MinimaxBaseResp carries MiniMax's in-body status.
type MinimaxBaseResp struct {
	StatusCode *int64  `json:"status_code"`
	StatusMsg  *string `json:"status_msg"`
}

// MinimaxModelRemains is one model's interval allowance. The usage count is
// what remains, not what was used.
type MinimaxModelRemains struct {
	CurrentIntervalTotalCount *int64 `json:"current_interval_total_count"`
	CurrentIntervalUsageCount *int64 `json:"current_interval_usage_count"`
	StartTime                 *int64 `json:"start_time"`
	EndTime                   *int64 `json:"end_time"`
	RemainsTime               *int64 `json:"remains_time"`
}

// CursorSummary is the cursor.com usage-summary payload.
type CursorSummary struct {
	BillingCycleStart *string           `json:"billingCycleStart"`
	BillingCycleEnd   *string           `json:"billingCycleEnd"`
	MembershipType    *string           `json:"membershipType"`
	IsUnlimited       *bool             `json:"isUnlimited"`
	IndividualUsage   *CursorIndividual `json:"individualUsage"`
	Email             string            `json:"-"`
}

// CursorIndividual is the user's own plan and on-demand usage.
type CursorIndividual struct {
	Plan     *CursorPlan     `json:"plan"`
	OnDemand *CursorOnDemand `json:"onDemand"`
}

// CursorPlan is included plan usage.
type CursorPlan struct {
	Used             *int64   `json:"used"`
	Limit            *int64   `json:"limit"`
	TotalPercentUsed *float64 `json:"totalPercentUsed"`
}

// CursorOnDemand is metered spend in cents.
type CursorOnDemand struct {
	Enabled *bool  `json:"enabled"`
	Used    *int64 `json:"used"`
	Limit   *int64 `json:"limit"`
}

// StatusPage is a statuspage.io status.json document.
type StatusPage struct {
	Page struct {
		URL string `json:"url"`
	} `json:"page"`
	Status struct {
		Indicator   string `json:"indicator"`
		Description string `json:"description"`
	} `json:"status"`
}

// GeminiQuota is the Code Assist retrieveUserQuota response plus the tier
// and id token claims the fetcher looked up alongside it.
type GeminiQuota struct {
	Buckets []GeminiBucket `json:"buckets"`

	Tier         string `json:"-"`
	Email        string `json:"-"`
	HostedDomain string `json:"-"`
}

// GeminiBucket is the remaining share of one model's daily quota.
type GeminiBucket struct {
	ModelID           string   `json:"modelId"`
	RemainingFraction *float64 `json:"remainingFraction"`
	ResetTime         *string  `json:"resetTime"`
}

// VertexQuota is the Cloud Monitoring quota usage and limit series for
// aiplatform.googleapis.com over the last day.
type VertexQuota struct {
	Usage   []VertexSeries
	Limits  []VertexSeries
	Project string
	Email   string
}

// VertexSeries is one monitoring time series.
type VertexSeries struct {
	Metric struct {
		Labels map[string]string `json:"labels"`
	} `json:"metric"`
	Resource struct {
		Labels map[string]string `json:"labels"`
	} `json:"resource"`
	Points []VertexPoint `json:"points"`
}

// VertexPoint is a sample; int64 values arrive as strings.
type VertexPoint struct {
	Value struct {
		DoubleValue *float64 `json:"doubleValue"`
		Int64Value  *string  `json:"int64Value"`
	} `json:"value"`
}

// FactoryUsage pairs the Factory auth/me and subscription usage responses.
type FactoryUsage struct {
	Auth  FactoryAuth
	Usage FactorySubscriptionUsage
}

// FactoryAuth is the organization part of /api/app/auth/me.
type FactoryAuth struct {
	Organization *struct {
		Name         *string `json:"name"`
		Subscription *struct {
			FactoryTier     *string `json:"factoryTier"`
			OrbSubscription *struct {
				Plan *struct {
					Name *string `json:"name"`
				} `json:"plan"`
			} `json:"orbSubscription"`
		} `json:"subscription"`
	} `json:"organization"`
}

// FactorySubscriptionUsage is /api/organization/subscription/usage. Dates
// are epoch milliseconds.
type FactorySubscriptionUsage struct {
	Usage *struct {
		StartDate *int64         `json:"startDate"`
		EndDate   *int64         `json:"endDate"`
		Standard  *FactoryTokens `json:"standard"`
		Premium   *FactoryTokens `json:"premium"`
	} `json:"usage"`
}

// FactoryTokens is one token pool. UsedRatio is usually a 0-1 fraction but
// some plans report a percent.
type FactoryTokens struct {
	UserTokens     *int64   `json:"userTokens"`
	TotalAllowance *int64   `json:"totalAllowance"`
	UsedRatio      *float64 `json:"usedRatio"`
}

// KimiUsages is the kimi.com BillingService/GetUsages response.
type KimiUsages struct {
	Usages []KimiScope `json:"usages"`
}

// KimiScope is the usage for one feature scope.
type KimiScope struct {
	Scope  string      `json:"scope"`
	Detail *KimiDetail `json:"detail"`
	Limits []struct {
		Window *struct {
			Duration float64 `json:"duration"`
			TimeUnit string  `json:"timeUnit"`
		} `json:"window"`
		Detail *KimiDetail `json:"detail"`
	} `json:"limits"`
}

// KimiDetail counts arrive as strings.
type KimiDetail struct {
	Limit     json.RawMessage `json:"limit"`
	Used      json.RawMessage `json:"used"`
	Remaining json.RawMessage `json:"remaining"`
	ResetTime *string         `json:"resetTime"`
}

// KiroUsage is the text printed by the kiro-cli /usage command.
type KiroUsage struct {
	Output string
}

// JetBrainsQuota carries the JSON option values from an IDE's
// AIAssistantQuotaManager2.xml.
type JetBrainsQuota struct {
	QuotaInfo  string
	NextRefill string
	// IDE is the config directory name, e.g. IntelliJIdea2025.1.
	IDE string
}

// AmpSettings is the ampcode.com settings page, which embeds the free tier
// usage object in its script data.
type AmpSettings struct {
	HTML string
}

// OpenCodeSubscription is the text of the OpenCode subscription server
// function, either JavaScript or JSON.
type OpenCodeSubscription struct {
	Text string
}

func (ClaudeUsage) raw()    {}
func (CodexUsage) raw()     {}
func (CopilotUsage) raw()   {}
func (ZaiQuota) raw()       {}
func (WarpLimits) raw()     {}
func (KimiK2Credits) raw()  {}
func (MinimaxRemains) raw() {}
func (CursorSummary) raw()  {}
func (StatusPage) raw()     {}

func (GeminiQuota) raw()          {}
func (VertexQuota) raw()          {}
func (FactoryUsage) raw()         {}
func (KimiUsages) raw()           {}
func (KiroUsage) raw()            {}
func (JetBrainsQuota) raw()       {}
func (AmpSettings) raw()          {}
func (OpenCodeSubscription) raw() {}
