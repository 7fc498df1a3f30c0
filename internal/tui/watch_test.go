package tui

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/theirongolddev/fuelcheck/internal/fetch"
	"github.com/theirongolddev/fuelcheck/internal/model"
	"github.com/theirongolddev/fuelcheck/internal/provider"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"
)

func usage(pct float64) []fetch.Outcome {
	return []fetch.Outcome{
		{
			Provider: provider.Codex,
			Source:   provider.SourceOAuth,
			Snapshot: &model.UsageSnapshot{
				Provider: "codex",
				Metrics:  []model.Metric{{Label: "Session", Used: pct, Unit: model.UnitPercent, UsedPercent: model.Float(pct)}},
			},
		},
		{Provider: provider.Warp, Err: &model.FetchError{Kind: model.KindTimeout, Message: "no response within 20s"}},
	}
}

func newTestWatch() Watch {
	w := NewWatch(context.Background(), func(context.Context) []fetch.Outcome { return nil }, 30*time.Second)
	fixed := time.Date(2025, 9, 11, 12, 0, 10, 0, time.UTC)
	w.now = func() time.Time { return fixed }
	return w
}

func step(t *testing.T, w Watch, msg tea.Msg) (Watch, tea.Cmd) {
	t.Helper()
	m, cmd := w.Update(msg)
	next, ok := m.(Watch)
	if !ok {
		t.Fatalf("Update returned %T", m)
	}
	return next, cmd
}

func TestWatchRendersOutcomes(t *testing.T) {
	w := newTestWatch()
	if !strings.Contains(ansi.Strip(w.View()), "Fetching usage") {
		t.Fatalf("initial view = %q", w.View())
	}

	w, cmd := step(t, w, outcomesMsg{cycle: 0, outcomes: usage(40), at: time.Date(2025, 9, 11, 12, 0, 0, 0, time.UTC)})
	if cmd == nil {
		t.Fatal("no refresh scheduled after outcomes")
	}
	view := ansi.Strip(w.View())
	for _, want := range []string{"Codex (oauth)", "Session", "40%", "Warp", "error: timeout: no response within 20s", "updated 10s ago", "next in 20s"} {
		if !strings.Contains(view, want) {
			t.Errorf("view lacks %q:\n%s", want, view)
		}
	}

	w.cycle = 1
	w, _ = step(t, w, outcomesMsg{cycle: 1, outcomes: usage(45), at: time.Date(2025, 9, 11, 12, 0, 5, 0, time.UTC)})
	if view := ansi.Strip(w.View()); !strings.Contains(view, "+5%") {
		t.Errorf("view lacks change marker:\n%s", view)
	}
}

func TestWatchDropsStaleCycles(t *testing.T) {
	w := newTestWatch()
	w.cycle = 2
	w.refreshing = true

	w, cmd := step(t, w, outcomesMsg{cycle: 1, outcomes: usage(10)})
	if cmd != nil || w.outcomes != nil || !w.refreshing {
		t.Fatal("stale outcomes were applied")
	}
	if _, cmd := step(t, w, refreshMsg{cycle: 1}); cmd != nil {
		t.Fatal("stale tick started a refresh")
	}
}

func TestWatchRefreshKey(t *testing.T) {
	w := newTestWatch()
	w.outcomes = usage(1)

	w, cmd := step(t, w, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	if cmd == nil || !w.refreshing || w.cycle != 1 {
		t.Fatalf("refresh key: refreshing=%v cycle=%d", w.refreshing, w.cycle)
	}
	if _, cmd := step(t, w, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")}); cmd != nil {
		t.Error("second refresh while one is running should be ignored")
	}
}

func TestWatchQuit(t *testing.T) {
	_, cmd := step(t, newTestWatch(), tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("quit key returned no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("quit key did not quit")
	}
}
