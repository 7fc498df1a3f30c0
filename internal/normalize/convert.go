package normalize

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// parseUtilization parses the polymorphic utilization field. The value is
// already a percent in the 0-100 range, so 0.5 means half a percent. It
// accepts 75, "75%" and "75".
func parseUtilization(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, false
	}

	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, true
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		s = strings.TrimSpace(s)
		if trimmed, ok := strings.CutSuffix(s, "%"); ok {
			if v, err := strconv.ParseFloat(strings.TrimSpace(trimmed), 64); err == nil {
				return v, true
			}
			return 0, false
		}
		if v, err := strconv.ParseFloat(s, 64); err == nil {
			return v, true
		}
	}

	return 0, false
}

// fractionPercent scales values in [0, 1] up to a percent. Cursor reports
// totalPercentUsed either way.
func fractionPercent(v float64) float64 {
	if v > 1.0 {
		return v
	}
	return v * 100
}

func clampPercent(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}

// percentOf returns used/limit as a percent, or false when limit is not
// positive.
func percentOf(used, limit float64) (float64, bool) {
	if limit <= 0 {
		return 0, false
	}
	return used / limit * 100, true
}

// parseEpoch converts epoch seconds or milliseconds to UTC.
func parseEpoch(v int64) (time.Time, bool) {
	switch {
	case v <= 0:
		return time.Time{}, false
	case v > 1_000_000_000_000:
		return time.UnixMilli(v).UTC(), true
	default:
		return time.Unix(v, 0).UTC(), true
	}
}

// parseTimestamp accepts RFC3339 (with or without fractional seconds) or a
// numeric epoch string.
func parseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), true
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return parseEpoch(n)
	}
	return time.Time{}, false
}

func parseTimestampPtr(s *string) *time.Time {
	if s == nil {
		return nil
	}
	if t, ok := parseTimestamp(*s); ok {
		return &t
	}
	return nil
}

// unitMinutes converts a count of unit into minutes. Unknown units are
// taken as minutes.
func unitMinutes(n float64, unit string) int {
	u := strings.ToLower(unit)
	switch {
	case strings.Contains(u, "minute"):
	case strings.Contains(u, "hour"):
		n *= 60
	case strings.Contains(u, "day"):
		n *= 60 * 24
	case strings.Contains(u, "week"):
		n *= 60 * 24 * 7
	case strings.Contains(u, "month"):
		n *= 60 * 24 * 30
	}
	return int(math.Round(n))
}

// findNumber returns the first key of m holding a number or numeric string.
func findNumber(m map[string]any, keys ...string) (float64, bool) {
	for _, k := range keys {
		if v, ok := toFloat(m[k]); ok {
			return v, true
		}
	}
	return 0, false
}

func findString(m map[string]any, keys ...string) (string, bool) {
	for _, k := range keys {
		if s, ok := m[k].(string); ok {
			if s = strings.TrimSpace(s); s != "" {
				return s, true
			}
		}
	}
	return "", false
}

func findMap(m map[string]any, keys ...string) (map[string]any, bool) {
	for _, k := range keys {
		if sub, ok := m[k].(map[string]any); ok {
			return sub, true
		}
	}
	return nil, false
}

// findTime reads an epoch number or a timestamp string.
func findTime(m map[string]any, keys ...string) (time.Time, bool) {
	for _, k := range keys {
		switch v := m[k].(type) {
		case float64:
			if t, ok := parseEpoch(int64(v)); ok {
				return t, true
			}
		case string:
			if t, ok := parseTimestamp(v); ok {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

func rawFloat(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, false
	}
	return toFloat(v)
}

func deref[T any](p *T) (T, bool) {
	if p == nil {
		var zero T
		return zero, false
	}
	return *p, true
}
