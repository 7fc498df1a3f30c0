package normalize

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/theirongolddev/fuelcheck/internal/model"
	"github.com/theirongolddev/fuelcheck/internal/provider"
)

var now = time.Now

const (
	fiveHourMinutes = 5 * 60
	weekMinutes     = 7 * 24 * 60
	monthMinutes    = 30 * 24 * 60
)

// Normalize maps a provider payload into a snapshot. Source and Account are
// left for the caller to fill in.
func Normalize(id provider.ID, raw Raw) (model.UsageSnapshot, error) {
	snap := model.UsageSnapshot{Provider: string(id), UpdatedAt: now().UTC(), Metrics: []model.Metric{}}

	var err error
	switch r := raw.(type) {
	case ClaudeUsage:
		err = claude(&snap, r)
	case CodexUsage:
		err = codex(&snap, r)
	case CopilotUsage:
		err = copilot(&snap, r)
	case ZaiQuota:
		err = zai(&snap, id, r)
	case WarpLimits:
		err = warp(&snap, id, r)
	case KimiK2Credits:
		err = kimiK2(&snap, id, r)
	case MinimaxRemains:
		err = minimax(&snap, id, r)
	case CursorSummary:
		err = cursor(&snap, r)
	case GeminiQuota:
		err = gemini(&snap, r)
	case VertexQuota:
		err = vertex(&snap, r)
	case FactoryUsage:
		err = factory(&snap, r)
	case KimiUsages:
		err = kimi(&snap, r)
	case KiroUsage:
		err = kiro(&snap, r)
	case JetBrainsQuota:
		err = jetbrains(&snap, r)
	case AmpSettings:
		err = amp(&snap, r)
	case OpenCodeSubscription:
		err = opencode(&snap, r)
	case StatusPage:
		badge := Status(r, "")
		snap.Status = &badge
	default:
		err = shapeError("no payload")
	}
	if err != nil {
		return model.UsageSnapshot{}, err
	}
	return snap, nil
}

// Status maps a status page document to a badge. fallbackURL is used when
// the document carries no page URL.
func Status(sp StatusPage, fallbackURL string) model.StatusBadge {
	ind := strings.ToLower(strings.TrimSpace(sp.Status.Indicator))
	switch ind {
	case model.StatusNone, model.StatusMinor, model.StatusMajor, model.StatusCritical, model.StatusMaintenance:
	default:
		ind = model.StatusUnknown
	}
	url := sp.Page.URL
	if url == "" {
		url = fallbackURL
	}
	return model.StatusBadge{Indicator: ind, Description: sp.Status.Description, URL: url}
}

func shapeError(format string, args ...any) error {
	return &model.NormalizationError{Kind: model.UnrecognizedResponseShape, Detail: fmt.Sprintf(format, args...)}
}

func percentMetric(label string, pct float64, window int, resets *time.Time) model.Metric {
	m := model.Metric{
		Label:       label,
		Used:        pct,
		Limit:       model.Float(100),
		Unit:        model.UnitPercent,
		UsedPercent: model.Float(pct),
		ResetsAt:    resets,
	}
	if window > 0 {
		m.WindowMinutes = model.Int(window)
	}
	return m
}

func identity(email, org, plan string) *model.Identity {
	if email == "" && org == "" && plan == "" {
		return nil
	}
	return &model.Identity{Email: email, Organization: org, Plan: plan}
}

func claude(snap *model.UsageSnapshot, r ClaudeUsage) error {
	windows := []struct {
		label   string
		w       *ClaudeWindow
		minutes int
	}{
		{"Session", r.FiveHour, fiveHourMinutes},
		{"Weekly", r.SevenDay, weekMinutes},
		{"Weekly Sonnet", r.SevenDaySonnet, weekMinutes},
		{"Weekly Opus", r.SevenDayOpus, weekMinutes},
	}
	for _, w := range windows {
		if w.w == nil {
			continue
		}
		pct, ok := parseUtilization(w.w.Utilization)
		if !ok {
			continue
		}
		snap.Metrics = append(snap.Metrics, percentMetric(w.label, pct, w.minutes, parseTimestampPtr(w.w.ResetsAt)))
	}

	if x := r.ExtraUsage; x != nil && x.IsEnabled != nil && *x.IsEnabled {
		used, okUsed := deref(x.UsedCredits)
		limit, okLimit := deref(x.MonthlyLimit)
		if okUsed && okLimit {
			currency, _ := deref(x.Currency)
			snap.Cost = centsCost(used, limit, currency)
		}
	}
	if o := r.Overage; o != nil && o.IsEnabled && snap.Cost == nil {
		snap.Cost = centsCost(o.UsedCredits, o.MonthlyCreditLimit, o.Currency)
	}

	snap.Identity = identity(r.Email, r.Organization, r.Plan)
	if len(snap.Metrics) == 0 && snap.Cost == nil {
		return shapeError("claude: no usage windows")
	}
	return nil
}

func centsCost(used, limit float64, currency string) *model.CostAmount {
	if currency == "" {
		currency = "USD"
	}
	return &model.CostAmount{
		Used:     used / 100,
		Limit:    model.Float(limit / 100),
		Currency: currency,
		Period:   "monthly",
	}
}

func codex(snap *model.UsageSnapshot, r CodexUsage) error {
	if rl := r.RateLimit; rl != nil {
		for _, w := range []struct {
			label string
			w     *CodexWindow
		}{
			{"Session", rl.PrimaryWindow},
			{"Weekly", rl.SecondaryWindow},
		} {
			if w.w == nil || w.w.UsedPercent == nil {
				continue
			}
			var window int
			if secs, ok := deref(w.w.LimitWindowSeconds); ok {
				window = int(secs / 60)
			}
			var resets *time.Time
			if at, ok := deref(w.w.ResetAt); ok {
				if t, ok := parseEpoch(at); ok {
					resets = &t
				}
			}
			snap.Metrics = append(snap.Metrics, percentMetric(w.label, *w.w.UsedPercent, window, resets))
		}
	}

	if c := r.Credits; c != nil && (c.Unlimited == nil || !*c.Unlimited) {
		if balance, ok := rawFloat(c.Balance); ok {
			snap.Metrics = append(snap.Metrics, model.Metric{
				Label: "Credits remaining",
				Used:  balance,
				Unit:  model.UnitCredits,
			})
		}
	}

	plan, _ := deref(r.PlanType)
	snap.Identity = identity(r.Email, "", plan)
	if len(snap.Metrics) == 0 {
		return shapeError("codex: no rate_limit or credits")
	}
	return nil
}

func copilot(snap *model.UsageSnapshot, r CopilotUsage) error {
	if r.QuotaSnapshots == nil {
		return shapeError("copilot: no quota_snapshots")
	}
	var resets *time.Time
	if r.QuotaResetDate != nil {
		if t, err := time.Parse(time.DateOnly, *r.QuotaResetDate); err == nil {
			resets = &t
		} else {
			resets = parseTimestampPtr(r.QuotaResetDate)
		}
	}
	for _, q := range []struct {
		label string
		q     *CopilotQuota
	}{
		{"Premium requests", r.QuotaSnapshots.PremiumInteractions},
		{"Chat", r.QuotaSnapshots.Chat},
	} {
		if q.q == nil {
			continue
		}
		if q.q.Unlimited {
			snap.Metrics = append(snap.Metrics, percentMetric(q.label, 0, 0, resets))
			continue
		}
		remaining, ok := deref(q.q.PercentRemaining)
		if !ok {
			continue
		}
		snap.Metrics = append(snap.Metrics, percentMetric(q.label, clampPercent(100-remaining), monthMinutes, resets))
	}
	snap.Identity = identity("", "", strings.ToLower(r.CopilotPlan))
	if len(snap.Metrics) == 0 {
		return shapeError("copilot: no quota values")
	}
	return nil
}

func zai(snap *model.UsageSnapshot, id provider.ID, r ZaiQuota) error {
	body := r.Body
	if body == nil {
		return shapeError("zai: empty body")
	}
	if ok, present := body["success"].(bool); present && !ok {
		code, _ := findNumber(body, "code")
		msg, _ := findString(body, "msg", "message")
		return RemoteError(id, int64(code), msg)
	}

	data, ok := findMap(body, "data")
	if !ok {
		data = body
	}
	plan, _ := findString(data, "planName", "plan", "plan_type", "packageName")

	limits, _ := data["limits"].([]any)
	type ranked struct {
		rank int
		m    model.Metric
	}
	var parsed []ranked
	for i, l := range limits {
		lm, ok := l.(map[string]any)
		if !ok {
			continue
		}
		kind, _ := findString(lm, "limitType", "limit_type", "type")
		m, ok := zaiLimit(lm)
		if !ok {
			continue
		}
		lower := strings.ToLower(kind)
		rank := 2
		switch {
		case strings.Contains(lower, "token"):
			rank, m.Label = 0, "Tokens"
		case strings.Contains(lower, "time"), strings.Contains(lower, "mcp"):
			rank, m.Label = 1, "MCP"
		case kind != "":
			m.Label = kind
		default:
			m.Label = fmt.Sprintf("Limit %d", i+1)
		}
		parsed = append(parsed, ranked{rank, m})
	}
	slices.SortStableFunc(parsed, func(a, b ranked) int { return cmp.Compare(a.rank, b.rank) })
	for _, p := range parsed {
		snap.Metrics = append(snap.Metrics, p.m)
	}

	snap.Identity = identity("", "", plan)
	if len(snap.Metrics) == 0 && plan == "" {
		return shapeError("zai: no limits")
	}
	return nil
}

func zaiLimit(l map[string]any) (model.Metric, bool) {
	m := model.Metric{Unit: model.UnitPercent}

	pct, ok := findNumber(l, "usedPercent", "used_percent", "usagePercent", "usage_percent", "percentUsed", "percent_used", "percentage")
	if ok {
		m.Used, m.Limit = pct, model.Float(100)
	} else {
		total, hasTotal := findNumber(l, "limit", "quota", "total", "max")
		used, hasUsed := findNumber(l, "used", "usage", "current", "consumed", "currentValue")
		if !hasUsed && hasTotal {
			if remaining, ok := findNumber(l, "remaining", "left"); ok {
				used, hasUsed = total-remaining, true
			}
		}
		if !hasUsed || !hasTotal {
			return model.Metric{}, false
		}
		if pct, ok = percentOf(used, total); !ok {
			return model.Metric{}, false
		}
		m.Used, m.Limit, m.Unit = used, model.Float(total), model.UnitTokens
	}
	m.UsedPercent = model.Float(pct)

	if w, ok := findMap(l, "window", "timeWindow", "windowInfo", "period"); ok {
		if n, ok := findNumber(w, "number", "duration", "window", "size", "count"); ok {
			unit, _ := findString(w, "unit", "timeUnit", "windowUnit", "type")
			m.WindowMinutes = model.Int(unitMinutes(n, unit))
		}
	}
	if t, ok := findTime(l, "nextResetTime", "resetTime", "resetAt", "next_reset_time", "resetsAt", "reset_at"); ok {
		m.ResetsAt = &t
	}
	return m, true
}

func warp(snap *model.UsageSnapshot, id provider.ID, r WarpLimits) error {
	if len(r.Errors) > 0 {
		msgs := make([]string, len(r.Errors))
		for i, e := range r.Errors {
			msgs[i] = e.Message
		}
		return RemoteError(id, 0, strings.Join(msgs, "; "))
	}
	if r.Data == nil || r.Data.User == nil || r.Data.User.User == nil || r.Data.User.User.RequestLimitInfo == nil {
		return shapeError("warp: missing requestLimitInfo")
	}
	info := r.Data.User.User.RequestLimitInfo

	used, _ := deref(info.RequestsUsedSinceLastRefresh)
	m := model.Metric{
		Label:    "Requests",
		Used:     used,
		Unit:     model.UnitRequests,
		ResetsAt: parseTimestampPtr(info.NextRefreshTime),
	}
	if limit, ok := deref(info.RequestLimit); ok && !info.IsUnlimited {
		m.Limit = model.Float(limit)
		if pct, ok := percentOf(used, limit); ok {
			m.UsedPercent = model.Float(pct)
		}
	}
	snap.Metrics = append(snap.Metrics, m)
	if info.IsUnlimited {
		snap.Identity = identity("", "", "unlimited")
	}
	return nil
}

func kimiK2(snap *model.UsageSnapshot, id provider.ID, r KimiK2Credits) error {
	body := r.Body
	if body == nil {
		body = map[string]any{}
	}
	if data, ok := findMap(body, "data"); ok {
		body = data
	}

	remaining, hasRemaining := findNumber(body, "creditsRemaining", "remainingCredits", "remaining", "credits_remaining", "available")
	if !hasRemaining && r.Header != nil {
		if v, ok := toFloat(r.Header.Get("X-Credits-Remaining")); ok {
			remaining, hasRemaining = v, true
		}
	}
	consumed, hasConsumed := findNumber(body, "creditsConsumed", "consumed", "used", "credits_used")
	total, hasTotal := findNumber(body, "totalCredits", "total", "creditsTotal")
	if !hasTotal && hasRemaining && hasConsumed {
		total, hasTotal = remaining+consumed, true
	}
	if !hasConsumed && hasRemaining && hasTotal {
		consumed, hasConsumed = total-remaining, true
	}

	if !hasConsumed && !hasRemaining {
		if msg, ok := findString(r.Body, "error", "message", "msg"); ok {
			return RemoteError(id, 0, msg)
		}
		return shapeError("kimi_k2: no credit fields")
	}

	m := model.Metric{Label: "Credits", Unit: model.UnitCredits}
	if hasConsumed {
		m.Used = consumed
	}
	if hasTotal {
		m.Limit = model.Float(total)
		if pct, ok := percentOf(m.Used, total); ok {
			m.UsedPercent = model.Float(pct)
		}
	}
	snap.Metrics = append(snap.Metrics, m)
	return nil
}

func minimax(snap *model.UsageSnapshot, id provider.ID, r MinimaxRemains) error {
	base := r.BaseResp
	if r.Data != nil && r.Data.BaseResp != nil {
		base = r.Data.BaseResp
	}
	if base != nil && base.StatusCode != nil && *base.StatusCode != 0 {
		msg, _ := deref(base.StatusMsg)
		return RemoteError(id, *base.StatusCode, msg)
	}

	remains := r.ModelRemains
	var plan string
	if r.Data != nil {
		if len(r.Data.ModelRemains) > 0 {
			remains = r.Data.ModelRemains
		}
		for _, p := range []*string{r.Data.PlanName, r.Data.CurrentPlanTitle, r.Data.CurrentSubscribeTitle, r.Data.ComboTitle} {
			if p != nil && strings.TrimSpace(*p) != "" {
				plan = strings.TrimSpace(*p)
				break
			}
		}
	}
	if len(remains) == 0 {
		return shapeError("minimax: no model_remains")
	}

	first := remains[0]
	total, _ := deref(first.CurrentIntervalTotalCount)
	left, _ := deref(first.CurrentIntervalUsageCount)
	used := total - left
	m := model.Metric{Label: "Prompts", Used: float64(used), Unit: model.UnitRequests}
	if total > 0 {
		m.Limit = model.Float(float64(total))
		pct, _ := percentOf(float64(used), float64(total))
		m.UsedPercent = model.Float(pct)
	}

	var start, end time.Time
	if v, ok := deref(first.StartTime); ok {
		start, _ = parseEpoch(v)
	}
	if v, ok := deref(first.EndTime); ok {
		end, _ = parseEpoch(v)
	}
	if !start.IsZero() && !end.IsZero() {
		if mins := int(end.Sub(start).Minutes()); mins > 0 {
			m.WindowMinutes = model.Int(mins)
		}
	}
	if rt, ok := deref(first.RemainsTime); ok && rt > 0 {
		d := time.Duration(rt) * time.Second
		if rt > 1_000_000 {
			d = time.Duration(rt) * time.Millisecond
		}
		t := now().UTC().Add(d)
		m.ResetsAt = &t
	} else {
		m.ResetsAt = model.Time(end)
	}

	snap.Metrics = append(snap.Metrics, m)
	snap.Identity = identity("", "", plan)
	return nil
}

func cursor(snap *model.UsageSnapshot, r CursorSummary) error {
	if r.IndividualUsage == nil && r.BillingCycleEnd == nil {
		return shapeError("cursor: no individualUsage")
	}
	resets := parseTimestampPtr(r.BillingCycleEnd)

	if iu := r.IndividualUsage; iu != nil {
		if p := iu.Plan; p != nil {
			used, _ := deref(p.Used)
			limit, _ := deref(p.Limit)
			m := model.Metric{
				Label:         "Plan",
				Used:          float64(used),
				Unit:          model.UnitRequests,
				WindowMinutes: model.Int(monthMinutes),
				ResetsAt:      resets,
			}
			if limit > 0 {
				m.Limit = model.Float(float64(limit))
				pct, _ := percentOf(float64(used), float64(limit))
				m.UsedPercent = model.Float(pct)
			} else if tp, ok := deref(p.TotalPercentUsed); ok {
				m.UsedPercent = model.Float(fractionPercent(tp))
			}
			snap.Metrics = append(snap.Metrics, m)
		}
		if od := iu.OnDemand; od != nil {
			used, _ := deref(od.Used)
			limit, hasLimit := deref(od.Limit)
			if used > 0 || hasLimit {
				c := &model.CostAmount{
					Used:     float64(used) / 100,
					Currency: "USD",
					Period:   "monthly",
					ResetsAt: resets,
				}
				if hasLimit {
					c.Limit = model.Float(float64(limit) / 100)
				}
				snap.Cost = c
			}
		}
	}

	membership, _ := deref(r.MembershipType)
	snap.Identity = identity(r.Email, "", membership)
	return nil
}
