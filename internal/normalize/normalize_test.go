package normalize

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"testing"
	"time"

	"github.com/theirongolddev/fuelcheck/internal/model"
	"github.com/theirongolddev/fuelcheck/internal/provider"
)

func decode[T any](t *testing.T, body string) T {
	t.Helper()
	var v T
	if err := json.Unmarshal([]byte(body), &v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return v
}

func TestParseUtilization(t *testing.T) {
	tests := []struct {
		raw  string
		want float64
		ok   bool
	}{
		{`75`, 75, true},
		{`0.75`, 0.75, true},
		{`1.0`, 1, true},
		{`0.5`, 0.5, true},
		{`75.5`, 75.5, true},
		{`"75%"`, 75, true},
		{`"0.5%"`, 0.5, true},
		{`"0.25"`, 0.25, true},
		{`" 12 "`, 12, true},
		{`null`, 0, false},
		{`"abc"`, 0, false},
		{``, 0, false},
	}
	for _, tt := range tests {
		got, ok := parseUtilization(json.RawMessage(tt.raw))
		if ok != tt.ok || math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("parseUtilization(%s) = %v, %v; want %v, %v", tt.raw, got, ok, tt.want, tt.ok)
		}
	}
}

func TestNormalizeClaude(t *testing.T) {
	raw := decode[ClaudeUsage](t, `{
		"five_hour": {"utilization": 42, "resets_at": "2025-09-10T15:00:00Z"},
		"seven_day": {"utilization": "0.1"},
		"extra_usage": {"is_enabled": true, "monthly_limit": 5000, "used_credits": 1250}
	}`)

	snap, err := Normalize(provider.Claude, raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(snap.Metrics) != 2 {
		t.Fatalf("metrics = %d, want 2", len(snap.Metrics))
	}

	session := snap.Metrics[0]
	if *session.UsedPercent != 42 || *session.WindowMinutes != 300 {
		t.Errorf("session = %+v", session)
	}
	want := time.Date(2025, 9, 10, 15, 0, 0, 0, time.UTC)
	if session.ResetsAt == nil || !session.ResetsAt.Equal(want) {
		t.Errorf("session reset = %v, want %v", session.ResetsAt, want)
	}

	weekly := snap.Metrics[1]
	if math.Abs(*weekly.UsedPercent-0.1) > 1e-9 {
		t.Errorf("weekly pct = %v, want 0.1", *weekly.UsedPercent)
	}
	if weekly.ResetsAt != nil {
		t.Errorf("absent reset became %v, want nil", weekly.ResetsAt)
	}

	if snap.Cost == nil || snap.Cost.Used != 12.5 || *snap.Cost.Limit != 50 || snap.Cost.Currency != "USD" {
		t.Errorf("cost = %+v", snap.Cost)
	}
	if snap.Status != nil || snap.Identity != nil {
		t.Errorf("unexpected optional fields: %+v", snap)
	}
}

func TestNormalizeClaudeLowUtilizationIsNotScaled(t *testing.T) {
	raw := decode[ClaudeUsage](t, `{
		"five_hour": {"utilization": 1.0},
		"seven_day": {"utilization": 0.5}
	}`)
	snap, err := Normalize(provider.Claude, raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(snap.Metrics) != 2 {
		t.Fatalf("metrics = %+v", snap.Metrics)
	}
	if got := *snap.Metrics[0].UsedPercent; got != 1 {
		t.Errorf("session pct = %v, want 1", got)
	}
	if got := *snap.Metrics[1].UsedPercent; got != 0.5 {
		t.Errorf("weekly pct = %v, want 0.5", got)
	}
}

func TestFractionPercent(t *testing.T) {
	for in, want := range map[float64]float64{0.42: 42, 1: 100, 42: 42} {
		if got := fractionPercent(in); math.Abs(got-want) > 1e-9 {
			t.Errorf("fractionPercent(%v) = %v, want %v", in, got, want)
		}
	}
}

func TestNormalizeCodex(t *testing.T) {
	raw := decode[CodexUsage](t, `{
		"plan_type": "plus",
		"rate_limit": {
			"primary_window": {"used_percent": 12, "reset_at": 1757516400, "limit_window_seconds": 18000},
			"secondary_window": {"used_percent": 3, "limit_window_seconds": 604800}
		},
		"credits": {"has_credits": true, "balance": "4.5"}
	}`)

	snap, err := Normalize(provider.Codex, raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(snap.Metrics) != 3 {
		t.Fatalf("metrics = %+v", snap.Metrics)
	}
	if *snap.Metrics[0].WindowMinutes != 300 || snap.Metrics[0].ResetsAt == nil {
		t.Errorf("primary = %+v", snap.Metrics[0])
	}
	if snap.Metrics[1].ResetsAt != nil {
		t.Errorf("secondary reset = %v, want nil", snap.Metrics[1].ResetsAt)
	}
	if snap.Metrics[2].Used != 4.5 || snap.Metrics[2].Unit != model.UnitCredits {
		t.Errorf("credits = %+v", snap.Metrics[2])
	}
	if snap.Identity == nil || snap.Identity.Plan != "plus" {
		t.Errorf("identity = %+v", snap.Identity)
	}
}

func TestNormalizeCopilotRemainingToUsed(t *testing.T) {
	raw := decode[CopilotUsage](t, `{
		"copilot_plan": "Individual",
		"quota_snapshots": {
			"premium_interactions": {"percent_remaining": 80},
			"chat": {"unlimited": true}
		}
	}`)
	snap, err := Normalize(provider.Copilot, raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := *snap.Metrics[0].UsedPercent; got != 20 {
		t.Errorf("premium used = %v, want 20", got)
	}
	if snap.Identity.Plan != "individual" {
		t.Errorf("plan = %q", snap.Identity.Plan)
	}
}

func TestNormalizeZai(t *testing.T) {
	raw := ZaiQuota{Body: decode[map[string]any](t, `{
		"success": true,
		"data": {
			"planName": "GLM Coding Pro",
			"limits": [
				{"type": "TIME_LIMIT", "usage": 30, "limit": 1000},
				{"type": "TOKENS_LIMIT", "percentage": 64, "nextResetTime": 1757516400000,
				 "window": {"number": 5, "unit": "hours"}}
			]
		}
	}`)}

	snap, err := Normalize(provider.Zai, raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(snap.Metrics) != 2 {
		t.Fatalf("metrics = %+v", snap.Metrics)
	}
	tokens := snap.Metrics[0]
	if tokens.Label != "Tokens" || *tokens.UsedPercent != 64 || *tokens.WindowMinutes != 300 {
		t.Errorf("tokens = %+v", tokens)
	}
	if tokens.ResetsAt == nil || tokens.ResetsAt.Unix() != 1757516400 {
		t.Errorf("tokens reset = %v", tokens.ResetsAt)
	}
	if mcp := snap.Metrics[1]; mcp.Label != "MCP" || *mcp.UsedPercent != 3 {
		t.Errorf("mcp = %+v", mcp)
	}
}

func TestNormalizeRemoteErrors(t *testing.T) {
	tests := []struct {
		name string
		id   provider.ID
		raw  Raw
		want *model.FetchError
	}{
		{
			name: "zai success false",
			id:   provider.Zai,
			raw:  ZaiQuota{Body: map[string]any{"success": false, "code": float64(1001), "msg": "service busy"}},
			want: model.ErrRemoteUnavailable,
		},
		{
			name: "zai auth",
			id:   provider.Zai,
			raw:  ZaiQuota{Body: map[string]any{"success": false, "code": float64(401), "msg": "token expired"}},
			want: model.ErrAuthenticationRejected,
		},
		{
			name: "minimax base_resp",
			id:   provider.Minimax,
			raw:  decode[MinimaxRemains](t, `{"base_resp": {"status_code": 1004, "status_msg": "cookie is missing, log in again"}}`),
			want: model.ErrAuthenticationRejected,
		},
		{
			name: "warp graphql error",
			id:   provider.Warp,
			raw:  decode[WarpLimits](t, `{"errors": [{"message": "Unauthorized"}]}`),
			want: model.ErrAuthenticationRejected,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(tt.id, tt.raw)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want kind %s", err, tt.want.Kind)
			}
			var fe *model.FetchError
			if !errors.As(err, &fe) || fe.Message == "" || fe.Provider != string(tt.id) {
				t.Fatalf("error lacks provider message: %#v", err)
			}
		})
	}
}

func TestNormalizeUnrecognizedShape(t *testing.T) {
	cases := map[string]struct {
		id  provider.ID
		raw Raw
	}{
		"claude empty":  {provider.Claude, ClaudeUsage{}},
		"codex empty":   {provider.Codex, CodexUsage{}},
		"copilot empty": {provider.Copilot, CopilotUsage{}},
		"warp empty":    {provider.Warp, WarpLimits{}},
		"kimi empty":    {provider.KimiK2, KimiK2Credits{Body: map[string]any{"foo": 1.0}}},
		"minimax empty": {provider.Minimax, MinimaxRemains{}},
		"cursor empty":  {provider.Cursor, CursorSummary{}},
		"nil":           {provider.Gemini, nil},
	}
	for name, tc := range cases {
		_, err := Normalize(tc.id, tc.raw)
		if !errors.Is(err, model.ErrUnrecognizedResponseShape) {
			t.Errorf("%s: err = %v, want UnrecognizedResponseShape", name, err)
		}
	}
}

func TestNormalizeWarpAndKimi(t *testing.T) {
	warpRaw := decode[WarpLimits](t, `{"data": {"user": {"user": {"requestLimitInfo": {
		"isUnlimited": false, "requestLimit": 200, "requestsUsedSinceLastRefresh": 50,
		"nextRefreshTime": "2025-10-01T00:00:00.000Z"}}}}}`)
	snap, err := Normalize(provider.Warp, warpRaw)
	if err != nil {
		t.Fatalf("warp: %v", err)
	}
	if m := snap.Metrics[0]; *m.UsedPercent != 25 || *m.Limit != 200 || m.ResetsAt == nil {
		t.Errorf("warp metric = %+v", m)
	}

	h := http.Header{}
	h.Set("X-Credits-Remaining", "30")
	kimiRaw := KimiK2Credits{Body: map[string]any{"creditsConsumed": 70.0}, Header: h}
	snap, err = Normalize(provider.KimiK2, kimiRaw)
	if err != nil {
		t.Fatalf("kimi: %v", err)
	}
	if m := snap.Metrics[0]; m.Used != 70 || *m.Limit != 100 || *m.UsedPercent != 70 {
		t.Errorf("kimi metric = %+v", m)
	}
}

func TestNormalizeMinimaxAndCursor(t *testing.T) {
	fixed := time.Date(2025, 9, 10, 12, 0, 0, 0, time.UTC)
	orig := now
	now = func() time.Time { return fixed }
	defer func() { now = orig }()

	mm := decode[MinimaxRemains](t, `{"base_resp": {"status_code": 0}, "data": {"plan_name": "Starter",
		"model_remains": [{"current_interval_total_count": 100, "current_interval_usage_count": 40,
		"start_time": 1757505600000, "end_time": 1757523600000, "remains_time": 3600}]}}`)
	snap, err := Normalize(provider.Minimax, mm)
	if err != nil {
		t.Fatalf("minimax: %v", err)
	}
	m := snap.Metrics[0]
	if m.Used != 60 || *m.UsedPercent != 60 || *m.WindowMinutes != 300 {
		t.Errorf("minimax metric = %+v", m)
	}
	if !m.ResetsAt.Equal(fixed.Add(time.Hour)) {
		t.Errorf("minimax reset = %v", m.ResetsAt)
	}
	if snap.Identity.Plan != "Starter" {
		t.Errorf("plan = %+v", snap.Identity)
	}

	cs := decode[CursorSummary](t, `{"billingCycleEnd": "2025-10-01T00:00:00Z", "membershipType": "pro",
		"individualUsage": {"plan": {"used": 150, "limit": 500}, "onDemand": {"used": 1234, "limit": 5000}}}`)
	snap, err = Normalize(provider.Cursor, cs)
	if err != nil {
		t.Fatalf("cursor: %v", err)
	}
	if got := *snap.Metrics[0].UsedPercent; got != 30 {
		t.Errorf("cursor pct = %v", got)
	}
	if snap.Cost == nil || snap.Cost.Used != 12.34 || *snap.Cost.Limit != 50 {
		t.Errorf("cursor cost = %+v", snap.Cost)
	}
}

func TestStatusBadge(t *testing.T) {
	var sp StatusPage
	sp.Status.Indicator = "MAJOR"
	sp.Status.Description = "Partial outage"
	b := Status(sp, "https://status.example.com")
	if b.Indicator != model.StatusMajor || b.URL != "https://status.example.com" {
		t.Errorf("badge = %+v", b)
	}

	sp.Status.Indicator = "purple"
	if b := Status(sp, ""); b.Indicator != model.StatusUnknown {
		t.Errorf("unknown indicator mapped to %q", b.Indicator)
	}
}

func TestStatusError(t *testing.T) {
	tests := []struct {
		status int
		want   *model.FetchError
	}{
		{401, model.ErrAuthenticationRejected},
		{403, model.ErrAuthenticationRejected},
		{408, model.ErrRemoteUnavailable},
		{429, model.ErrRemoteUnavailable},
		{503, model.ErrRemoteUnavailable},
		{404, model.ErrTransportFailure},
	}
	for _, tt := range tests {
		err := StatusError(provider.Warp, tt.status, []byte(`{"error":"nope"}`))
		if !errors.Is(err, tt.want) {
			t.Errorf("StatusError(%d) = %v, want %s", tt.status, err, tt.want.Kind)
		}
	}
	if err := StatusError(provider.Warp, 200, nil); err != nil {
		t.Errorf("StatusError(200) = %v, want nil", err)
	}
}
