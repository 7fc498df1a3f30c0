package components

import (
	"fmt"
	"time"

	"github.com/theirongolddev/fuelcheck/internal/tui/theme"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
)

// ColorForPct returns green/yellow/orange/red for a 0-100 utilization.
func ColorForPct(pct float64) lipgloss.Color {
	t := theme.Active
	switch {
	case pct >= 90:
		return t.Red
	case pct >= 70:
		return t.Orange
	case pct >= 50:
		return t.Yellow
	default:
		return t.Green
	}
}

// RateLimitBar renders a labeled bar for a 0-100 utilization with the
// percentage and a countdown to resetsAt. A zero resetsAt omits the
// countdown.
func RateLimitBar(label string, pct float64, resetsAt, now time.Time, labelW, barWidth int) string {
	t := theme.Active
	pct = min(max(pct, 0), 100)
	color := ColorForPct(pct)

	bar := progress.New(
		progress.WithSolidFill(string(color)),
		progress.WithWidth(barWidth),
		progress.WithoutPercentage(),
	)
	bar.EmptyColor = string(t.TextDim)

	labelStyle := lipgloss.NewStyle().Foreground(t.TextMuted)
	pctStyle := lipgloss.NewStyle().Foreground(color).Bold(true)
	countdownStyle := lipgloss.NewStyle().Foreground(t.TextDim)

	countdown := ""
	if !resetsAt.IsZero() {
		if d := resetsAt.Sub(now); d > 0 {
			countdown = formatCountdown(d)
		} else {
			countdown = "now"
		}
	}

	return labelStyle.Render(fmt.Sprintf("%-*s", labelW, label)) + " " +
		bar.ViewAs(pct/100) + " " +
		pctStyle.Render(fmt.Sprintf("%3.0f%%", pct)) + "  " +
		countdownStyle.Render(countdown)
}

func formatCountdown(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h >= 24 {
		return fmt.Sprintf("%dd %dh", h/24, h%24)
	}
	if h > 0 {
		return fmt.Sprintf("%dh %dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}
