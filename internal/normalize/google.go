package normalize

import (
	"strconv"
	"strings"

	"github.com/theirongolddev/fuelcheck/internal/model"
)

const dayMinutes = 24 * 60

func gemini(snap *model.UsageSnapshot, r GeminiQuota) error {
	if r.Buckets == nil {
		return shapeError("gemini: quota response has no buckets")
	}

	type low struct {
		fraction float64
		reset    *string
		ok       bool
	}
	var pro, flash low
	for _, b := range r.Buckets {
		frac, ok := deref(b.RemainingFraction)
		if !ok || b.ModelID == "" {
			continue
		}
		target := &pro
		switch name := strings.ToLower(b.ModelID); {
		case strings.Contains(name, "flash"):
			target = &flash
		case strings.Contains(name, "pro"):
		default:
			continue
		}
		if !target.ok || frac < target.fraction {
			*target = low{fraction: frac, reset: b.ResetTime, ok: true}
		}
	}

	for _, w := range []struct {
		label string
		low   low
	}{{"Pro", pro}, {"Flash", flash}} {
		if !w.low.ok {
			continue
		}
		pct := clampPercent(100 - w.low.fraction*100)
		snap.Metrics = append(snap.Metrics, percentMetric(w.label, pct, dayMinutes, parseTimestampPtr(w.low.reset)))
	}

	snap.Identity = identity(r.Email, "", geminiPlan(r.Tier, r.HostedDomain))
	return nil
}

func geminiPlan(tier, hostedDomain string) string {
	switch tier {
	case "standard-tier":
		return "paid"
	case "free-tier":
		if hostedDomain != "" {
			return "workspace"
		}
		return "free"
	case "legacy-tier":
		return "legacy"
	}
	return ""
}

type quotaKey struct {
	metric, limit, location string
}

func vertex(snap *model.UsageSnapshot, r VertexQuota) error {
	usage := peakByQuota(r.Usage)
	limits := peakByQuota(r.Limits)

	var peak float64
	found := false
	for key, limit := range limits {
		used, ok := usage[key]
		if !ok {
			continue
		}
		if pct, ok := percentOf(used, limit); ok && (!found || pct > peak) {
			peak, found = pct, true
		}
	}
	if found {
		snap.Metrics = append(snap.Metrics, percentMetric("Requests", peak, 0, nil))
	}
	snap.Identity = identity(r.Email, r.Project, "gcloud")
	return nil
}

// peakByQuota keeps the largest sample of each quota series.
func peakByQuota(series []VertexSeries) map[quotaKey]float64 {
	out := make(map[quotaKey]float64)
	for _, s := range series {
		metric := s.Metric.Labels["quota_metric"]
		if metric == "" {
			metric = s.Resource.Labels["quota_id"]
		}
		if metric == "" {
			continue
		}
		loc := s.Resource.Labels["location"]
		if loc == "" {
			loc = "global"
		}
		key := quotaKey{metric: metric, limit: s.Metric.Labels["limit_name"], location: loc}
		for _, p := range s.Points {
			v, ok := pointValue(p)
			if ok && v > out[key] {
				out[key] = v
			}
		}
	}
	return out
}

func pointValue(p VertexPoint) (float64, bool) {
	if v, ok := deref(p.Value.DoubleValue); ok {
		return v, true
	}
	if s, ok := deref(p.Value.Int64Value); ok {
		v, err := strconv.ParseFloat(s, 64)
		return v, err == nil
	}
	return 0, false
}
