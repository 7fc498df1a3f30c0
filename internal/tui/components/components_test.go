package components

import (
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"
)

func init() {
	// Force TrueColor output so ANSI codes are generated in tests
	lipgloss.SetColorProfile(termenv.TrueColor)
}

func TestLayoutRow(t *testing.T) {
	for _, tc := range []struct{ total, n int }{{100, 3}, {81, 4}, {10, 10}, {7, 2}} {
		widths := LayoutRow(tc.total, tc.n)
		sum := 0
		for _, w := range widths {
			sum += w
		}
		if len(widths) != tc.n || sum != tc.total {
			t.Errorf("LayoutRow(%d, %d) = %v", tc.total, tc.n, widths)
		}
	}
	if LayoutRow(10, 0) != nil {
		t.Error("LayoutRow with n=0 should be nil")
	}
}

func TestCardRowMatchesTallestCard(t *testing.T) {
	short := ContentCard("Short", "Content", 22, false)
	tall := ContentCard("Tall", "Line 1\nLine 2\nLine 3\nLine 4", 22, true)

	joined := CardRow([]string{tall, short})
	if got, want := len(strings.Split(joined, "\n")), len(strings.Split(tall, "\n")); got != want {
		t.Errorf("joined height = %d, want %d", got, want)
	}
	for _, line := range strings.Split(short, "\n") {
		if w := ansi.StringWidth(line); w != 22 {
			t.Errorf("card line width = %d, want 22: %q", w, ansi.Strip(line))
		}
	}
}

func TestRateLimitBar(t *testing.T) {
	now := time.Date(2025, 9, 11, 12, 0, 0, 0, time.UTC)
	out := ansi.Strip(RateLimitBar("Session", 42, now.Add(90*time.Minute), now, 10, 20))
	if !strings.Contains(out, " 42%") || !strings.Contains(out, "1h 30m") {
		t.Errorf("bar = %q", out)
	}

	out = ansi.Strip(RateLimitBar("Weekly", 150, time.Time{}, now, 10, 20))
	if !strings.Contains(out, "100%") {
		t.Errorf("clamped bar = %q", out)
	}
}

func TestRenderStatusBarWidth(t *testing.T) {
	bar := RenderStatusBar(60, "updated 3s ago")
	if w := ansi.StringWidth(bar); w != 60 {
		t.Errorf("status bar width = %d, want 60", w)
	}
}
