package normalize

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/x/ansi"

	"github.com/theirongolddev/fuelcheck/internal/model"
)

var (
	kiroPlanRe    = regexp.MustCompile(`\|\s*([A-Z0-9 ]+)\s*\|`)
	kiroMonthlyRe = regexp.MustCompile(`(?i)(\d{1,3})%.*resets on\s+(\d{1,2})/(\d{1,2})`)
	kiroBonusRe   = regexp.MustCompile(`(?i)bonus credits:\s*([0-9.]+)\s*/\s*([0-9.]+)\s*credits used.*expires in\s+(\d+)\s+days`)
)

func kiro(snap *model.UsageSnapshot, r KiroUsage) error {
	text := ansi.Strip(r.Output)
	found := false

	if m := kiroMonthlyRe.FindStringSubmatch(text); m != nil {
		pct, _ := strconv.ParseFloat(m[1], 64)
		month, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		snap.Metrics = append(snap.Metrics, percentMetric("Monthly", clampPercent(pct), 0, nextMonthDay(month, day)))
		found = true
	}
	if m := kiroBonusRe.FindStringSubmatch(text); m != nil {
		used, _ := strconv.ParseFloat(m[1], 64)
		total, _ := strconv.ParseFloat(m[2], 64)
		days, _ := strconv.Atoi(m[3])
		if pct, ok := percentOf(used, total); ok {
			resets := now().UTC().AddDate(0, 0, days)
			snap.Metrics = append(snap.Metrics, model.Metric{
				Label:       "Bonus Credits",
				Used:        used,
				Limit:       model.Float(total),
				Unit:        model.UnitCredits,
				UsedPercent: model.Float(pct),
				ResetsAt:    &resets,
			})
			found = true
		}
	}
	if !found {
		return shapeError("kiro: no usage in CLI output")
	}

	if m := kiroPlanRe.FindStringSubmatch(text); m != nil {
		snap.Identity = identity("", "", strings.TrimSpace(m[1]))
	}
	return nil
}

// nextMonthDay is the next local midnight on month/day, rolling into next
// year once this year's date has passed.
func nextMonthDay(month, day int) *time.Time {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return nil
	}
	t := now()
	d := time.Date(t.Year(), time.Month(month), day, 0, 0, 0, 0, t.Location())
	if d.Day() != day {
		return nil
	}
	if d.Before(t) {
		d = d.AddDate(1, 0, 0)
	}
	return model.Time(d.UTC())
}

func jetbrains(snap *model.UsageSnapshot, r JetBrainsQuota) error {
	var quota map[string]any
	if err := json.Unmarshal([]byte(r.QuotaInfo), &quota); err != nil {
		return shapeError("jetbrains: quotaInfo: %v", err)
	}
	maximum, _ := findNumber(quota, "maximum", "max")
	if maximum <= 0 {
		return shapeError("jetbrains: quota maximum missing")
	}
	available, ok := 0.0, false
	if tariff, found := findMap(quota, "tariffQuota"); found {
		available, ok = findNumber(tariff, "available")
	}
	if !ok {
		available, _ = findNumber(quota, "available")
	}
	used := clampPercent(100 - available/maximum*100)

	var resets *time.Time
	if r.NextRefill != "" {
		var refill map[string]any
		if json.Unmarshal([]byte(r.NextRefill), &refill) == nil {
			if t, ok := findTime(refill, "next"); ok {
				resets = &t
			}
		}
	}

	snap.Metrics = append(snap.Metrics, percentMetric("Quota", used, 0, resets))
	snap.Identity = identity("", r.IDE, "")
	return nil
}

func amp(snap *model.UsageSnapshot, r AmpSettings) error {
	var obj string
	for _, token := range []string{"freeTierUsage", "getFreeTierUsage"} {
		if obj = objectAfter(r.HTML, token); obj != "" {
			break
		}
	}
	quota, okQuota := scriptNumber(obj, "quota")
	used, okUsed := scriptNumber(obj, "used")
	hourly, okHourly := scriptNumber(obj, "hourlyReplenishment")
	if !okQuota || !okUsed || !okHourly {
		return shapeError("amp: free tier usage not found in settings page")
	}
	quota, used = math.Max(0, quota), math.Max(0, used)

	m := model.Metric{Label: "Free Tier", Used: used, Limit: model.Float(quota), Unit: model.UnitCredits}
	if pct, ok := percentOf(used, quota); ok {
		m.UsedPercent = model.Float(pct)
		if hourly > 0 {
			full := now().UTC().Add(time.Duration(used / hourly * float64(time.Hour)))
			m.ResetsAt = &full
		}
	} else {
		m.UsedPercent = model.Float(0)
	}
	if hours, ok := scriptNumber(obj, "windowHours"); ok {
		m.WindowMinutes = model.Int(int(math.Round(hours * 60)))
	}
	snap.Metrics = append(snap.Metrics, m)
	snap.Identity = identity("", "", "free")
	return nil
}

// objectAfter returns the first balanced {...} following token, skipping
// braces inside string literals.
func objectAfter(text, token string) string {
	i := strings.Index(text, token)
	if i < 0 {
		return ""
	}
	rest := text[i+len(token):]
	start := strings.IndexByte(rest, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inString, escaped := false, false
	for j := start; j < len(rest); j++ {
		c := rest[j]
		switch {
		case inString && escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case inString && c == '"':
			inString = false
		case inString:
		case c == '"':
			inString = true
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return rest[start : j+1]
			}
		}
	}
	return ""
}

// scriptNumber reads key: 12.5 from a JavaScript or JSON object literal.
func scriptNumber(text, key string) (float64, bool) {
	re := regexp.MustCompile(`\b` + regexp.QuoteMeta(key) + `"?\s*:\s*([0-9]+(?:\.[0-9]+)?)`)
	m := re.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	return v, err == nil
}

var openCodeWindowRe = map[string][2]*regexp.Regexp{
	"rollingUsage": {
		regexp.MustCompile(`rollingUsage[^}]*usagePercent"?\s*:\s*([0-9]+(?:\.[0-9]+)?)`),
		regexp.MustCompile(`rollingUsage[^}]*resetInSec"?\s*:\s*(\d+)`),
	},
	"weeklyUsage": {
		regexp.MustCompile(`weeklyUsage[^}]*usagePercent"?\s*:\s*([0-9]+(?:\.[0-9]+)?)`),
		regexp.MustCompile(`weeklyUsage[^}]*resetInSec"?\s*:\s*(\d+)`),
	},
}

type openCodeWindow struct {
	percent float64
	reset   int64
}

func opencode(snap *model.UsageSnapshot, r OpenCodeSubscription) error {
	rolling, okRolling := openCodeFromText(r.Text, "rollingUsage")
	weekly, okWeekly := openCodeFromText(r.Text, "weeklyUsage")
	if !okRolling || !okWeekly {
		var doc any
		start, end := strings.IndexByte(r.Text, '{'), strings.LastIndexByte(r.Text, '}')
		if start < 0 || end < start || json.Unmarshal([]byte(r.Text[start:end+1]), &doc) != nil {
			return shapeError("opencode: subscription usage not found")
		}
		if rolling, weekly, okRolling = openCodeFromJSON(doc); !okRolling {
			return shapeError("opencode: subscription usage not found")
		}
	}

	t := now().UTC()
	for _, w := range []struct {
		label   string
		win     openCodeWindow
		minutes int
	}{{"Session", rolling, fiveHourMinutes}, {"Weekly", weekly, weekMinutes}} {
		resets := t.Add(time.Duration(w.win.reset) * time.Second)
		snap.Metrics = append(snap.Metrics, percentMetric(w.label, w.win.percent, w.minutes, &resets))
	}
	return nil
}

func openCodeFromText(text, name string) (openCodeWindow, bool) {
	res := openCodeWindowRe[name]
	p := res[0].FindStringSubmatch(text)
	s := res[1].FindStringSubmatch(text)
	if p == nil || s == nil {
		return openCodeWindow{}, false
	}
	pct, err1 := strconv.ParseFloat(p[1], 64)
	sec, err2 := strconv.ParseInt(s[1], 10, 64)
	return openCodeWindow{percent: pct, reset: sec}, err1 == nil && err2 == nil
}

// openCodeFromJSON searches depth-first for an object holding both the
// rolling and weekly windows.
func openCodeFromJSON(v any) (rolling, weekly openCodeWindow, ok bool) {
	switch n := v.(type) {
	case map[string]any:
		r, okR := findMap(n, "rollingUsage", "rolling", "rolling_usage")
		w, okW := findMap(n, "weeklyUsage", "weekly", "weekly_usage")
		if okR && okW {
			rp, ok1 := findNumber(r, "usagePercent")
			rs, ok2 := findNumber(r, "resetInSec")
			wp, ok3 := findNumber(w, "usagePercent")
			ws, ok4 := findNumber(w, "resetInSec")
			if ok1 && ok2 && ok3 && ok4 {
				return openCodeWindow{rp, int64(rs)}, openCodeWindow{wp, int64(ws)}, true
			}
		}
		for _, child := range n {
			if rolling, weekly, ok = openCodeFromJSON(child); ok {
				return rolling, weekly, true
			}
		}
	case []any:
		for _, child := range n {
			if rolling, weekly, ok = openCodeFromJSON(child); ok {
				return rolling, weekly, true
			}
		}
	}
	return openCodeWindow{}, openCodeWindow{}, false
}
