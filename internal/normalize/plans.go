package normalize

import (
	"math"
	"strings"
	"time"

	"github.com/theirongolddev/fuelcheck/internal/model"
)

// Allowances above this are unlimited plans; usage is then shown against a
// 100M token reference.
const (
	factoryUnlimited = 1_000_000_000_000
	factoryReference = 100_000_000
)

func factory(snap *model.UsageSnapshot, r FactoryUsage) error {
	u := r.Usage.Usage
	if u == nil || (u.Standard == nil && u.Premium == nil) {
		return shapeError("factory: usage has no token pools")
	}

	var resets *time.Time
	var window int
	if end, ok := deref(u.EndDate); ok {
		if t, ok := parseEpoch(end); ok {
			resets = &t
			if start, ok := deref(u.StartDate); ok {
				if s, ok := parseEpoch(start); ok && t.After(s) {
					window = int(t.Sub(s).Minutes())
				}
			}
		}
	}

	for _, pool := range []struct {
		label  string
		tokens *FactoryTokens
	}{{"Standard", u.Standard}, {"Premium", u.Premium}} {
		if pool.tokens == nil {
			continue
		}
		used, _ := deref(pool.tokens.UserTokens)
		allowance, _ := deref(pool.tokens.TotalAllowance)
		pct := factoryPercent(used, allowance, pool.tokens.UsedRatio)
		snap.Metrics = append(snap.Metrics, percentMetric(pool.label, pct, window, resets))
	}

	var org string
	var plan []string
	if o := r.Auth.Organization; o != nil {
		org, _ = deref(o.Name)
		if sub := o.Subscription; sub != nil {
			if tier, _ := deref(sub.FactoryTier); strings.TrimSpace(tier) != "" {
				plan = append(plan, strings.TrimSpace(tier))
			}
			if orb := sub.OrbSubscription; orb != nil && orb.Plan != nil {
				name, _ := deref(orb.Plan.Name)
				if name = strings.TrimSpace(name); name != "" && !strings.Contains(strings.ToLower(name), "factory") {
					plan = append(plan, name)
				}
			}
		}
	}
	snap.Identity = identity("", org, strings.Join(plan, " - "))
	return nil
}

// factoryPercent prefers the API's ratio. It is a 0-1 fraction, except on
// plans without a reliable allowance where it may already be a percent.
func factoryPercent(used, allowance int64, ratio *float64) float64 {
	if r, ok := deref(ratio); ok && !math.IsNaN(r) && !math.IsInf(r, 0) {
		if r >= -0.001 && r <= 1.001 {
			return clampPercent(r * 100)
		}
		reliable := allowance > 0 && allowance <= factoryUnlimited
		if !reliable && r >= -0.1 && r <= 100.1 {
			return clampPercent(r)
		}
	}
	switch {
	case allowance > factoryUnlimited:
		return math.Min(100, float64(used)/factoryReference*100)
	case allowance <= 0:
		return 0
	}
	return math.Min(100, float64(used)/float64(allowance)*100)
}

func kimi(snap *model.UsageSnapshot, r KimiUsages) error {
	if len(r.Usages) == 0 {
		return shapeError("kimi: no usages")
	}
	scope := r.Usages[0]
	for _, u := range r.Usages {
		if u.Scope == "FEATURE_CODING" {
			scope = u
			break
		}
	}

	if len(scope.Limits) > 0 {
		l := scope.Limits[0]
		var window int
		if w := l.Window; w != nil && w.Duration > 0 {
			unit := w.TimeUnit
			if unit == "" {
				unit = "TIME_UNIT_MINUTE"
			}
			window = unitMinutes(w.Duration, unit)
		}
		if m, ok := kimiMetric("Rate Limit", l.Detail, window); ok {
			snap.Metrics = append(snap.Metrics, m)
		}
	}
	if m, ok := kimiMetric("Quota", scope.Detail, 0); ok {
		snap.Metrics = append(snap.Metrics, m)
	}
	return nil
}

func kimiMetric(label string, d *KimiDetail, window int) (model.Metric, bool) {
	if d == nil {
		return model.Metric{}, false
	}
	used, okUsed := rawFloat(d.Used)
	limit, okLimit := rawFloat(d.Limit)
	if !okUsed || !okLimit || limit <= 0 {
		return model.Metric{}, false
	}
	pct, _ := percentOf(used, limit)
	m := model.Metric{
		Label:       label,
		Used:        used,
		Limit:       model.Float(limit),
		Unit:        model.UnitRequests,
		UsedPercent: model.Float(pct),
		ResetsAt:    parseTimestampPtr(d.ResetTime),
	}
	if window > 0 {
		m.WindowMinutes = model.Int(window)
	}
	return m, true
}
