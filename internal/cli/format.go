// Package cli renders usage snapshots and cost reports as text, JSON and
// JSONL for terminal output.
package cli

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// FormatTokens formats a token count with human-readable suffixes.
// e.g., 1234 -> "1.2K", 1234567 -> "1.2M", 1234567890 -> "1.2B"
func FormatTokens(n int64) string {
	abs := n
	if abs < 0 {
		abs = -abs
	}

	switch {
	case abs >= 1_000_000_000:
		return fmt.Sprintf("%.1fB", float64(n)/1_000_000_000)
	case abs >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	case abs >= 1_000:
		return fmt.Sprintf("%.1fK", float64(n)/1_000)
	default:
		return strconv.FormatInt(n, 10)
	}
}

// FormatCost formats a USD amount with cents.
func FormatCost(cost float64) string {
	if cost >= 1000 {
		whole := math.Floor(cost)
		cents := math.Round((cost - whole) * 100)
		if cents >= 100 {
			whole++
			cents = 0
		}
		return fmt.Sprintf("$%s.%02d", FormatNumber(int64(whole)), int64(cents))
	}
	return fmt.Sprintf("$%.2f", cost)
}

// FormatAmount formats a metric value for its unit.
func FormatAmount(v float64, unit string) string {
	switch unit {
	case "usd":
		return FormatCost(v)
	case "tokens":
		return FormatTokens(int64(v))
	case "percent":
		return fmt.Sprintf("%.0f%%", v)
	}
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return FormatNumber(int64(v))
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// FormatDuration formats a duration as "2d 3h", "1h 2m", "2m" or "45s".
func FormatDuration(d time.Duration) string {
	secs := int64(d / time.Second)
	if secs <= 0 {
		return "0s"
	}

	days := secs / 86400
	hours := (secs % 86400) / 3600
	mins := (secs % 3600) / 60

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh", days, hours)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, mins)
	case mins > 0:
		return fmt.Sprintf("%dm", mins)
	}
	return fmt.Sprintf("%ds", secs)
}

// FormatReset describes a reset time relative to now.
func FormatReset(at, now time.Time) string {
	if !at.After(now) {
		return "resetting now"
	}
	return "resets in " + FormatDuration(at.Sub(now))
}

// FormatNumber adds comma separators to an integer.
// e.g., 1234567 -> "1,234,567"
func FormatNumber(n int64) string {
	if n < 0 {
		return "-" + FormatNumber(-n)
	}

	s := strconv.FormatInt(n, 10)
	if len(s) <= 3 {
		return s
	}

	var result strings.Builder
	remainder := len(s) % 3
	if remainder > 0 {
		result.WriteString(s[:remainder])
	}
	for i := remainder; i < len(s); i += 3 {
		if result.Len() > 0 {
			result.WriteByte(',')
		}
		result.WriteString(s[i : i+3])
	}
	return result.String()
}

// FormatPercent formats a 0-100 percentage.
func FormatPercent(p float64) string {
	return fmt.Sprintf("%.1f%%", p)
}
