// Package tui provides the live-refresh watch view.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/theirongolddev/fuelcheck/internal/cli"
	"github.com/theirongolddev/fuelcheck/internal/fetch"
	"github.com/theirongolddev/fuelcheck/internal/model"
	"github.com/theirongolddev/fuelcheck/internal/provider"
	"github.com/theirongolddev/fuelcheck/internal/tui/components"
	"github.com/theirongolddev/fuelcheck/internal/tui/theme"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// FetchFunc runs one orchestration batch.
type FetchFunc func(ctx context.Context) []fetch.Outcome

// outcomesMsg is sent when a refresh cycle finishes.
type outcomesMsg struct {
	cycle    int
	outcomes []fetch.Outcome
	at       time.Time
}

// refreshMsg asks for the next cycle. Ticks from an older cycle are dropped.
type refreshMsg struct{ cycle int }

// clockMsg redraws countdowns.
type clockMsg time.Time

const (
	defaultWidth = 80
	labelWidth   = 16
	minBarWidth  = 10
)

// Watch is the Bubble Tea model for watch mode. Each cycle is an independent
// fetch; only the previous outcome set is kept for change markers.
type Watch struct {
	ctx      context.Context
	fetch    FetchFunc
	interval time.Duration
	now      func() time.Time

	cycle       int
	refreshing  bool
	outcomes    []fetch.Outcome
	prev        []fetch.Outcome
	lastRefresh time.Time

	spinner spinner.Model
	width   int
	height  int
}

// NewWatch returns a watch model that refreshes every interval.
func NewWatch(ctx context.Context, fn FetchFunc, interval time.Duration) Watch {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(theme.Active.Accent)
	return Watch{
		ctx:      ctx,
		fetch:    fn,
		interval: interval,
		now:      time.Now,
		spinner:  sp,
		width:    defaultWidth,
	}
}

// Init implements tea.Model.
func (w Watch) Init() tea.Cmd {
	return tea.Batch(w.spinner.Tick, w.fetchCmd(0), clockCmd())
}

func (w Watch) fetchCmd(cycle int) tea.Cmd {
	ctx, fn, now := w.ctx, w.fetch, w.now
	return func() tea.Msg {
		return outcomesMsg{cycle: cycle, outcomes: fn(ctx), at: now()}
	}
}

func clockCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return clockMsg(t) })
}

func (w Watch) startRefresh() (Watch, tea.Cmd) {
	if w.refreshing {
		return w, nil
	}
	w.cycle++
	w.refreshing = true
	return w, tea.Batch(w.spinner.Tick, w.fetchCmd(w.cycle))
}

// Update implements tea.Model.
func (w Watch) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return w, tea.Quit
		case "r":
			return w.startRefresh()
		}
		return w, nil

	case tea.WindowSizeMsg:
		w.width, w.height = msg.Width, msg.Height
		return w, nil

	case outcomesMsg:
		if msg.cycle != w.cycle {
			return w, nil
		}
		w.prev = w.outcomes
		w.outcomes = msg.outcomes
		w.lastRefresh = msg.at
		w.refreshing = false
		cycle := w.cycle
		return w, tea.Tick(w.interval, func(time.Time) tea.Msg { return refreshMsg{cycle: cycle} })

	case refreshMsg:
		if msg.cycle != w.cycle {
			return w, nil
		}
		return w.startRefresh()

	case clockMsg:
		return w, clockCmd()

	case spinner.TickMsg:
		if !w.refreshing && w.outcomes != nil {
			return w, nil
		}
		var cmd tea.Cmd
		w.spinner, cmd = w.spinner.Update(msg)
		return w, cmd
	}
	return w, nil
}

// View implements tea.Model.
func (w Watch) View() string {
	t := theme.Active
	var b strings.Builder

	header := lipgloss.NewStyle().Foreground(t.TextPrimary).Bold(true).Render("fuelcheck") +
		lipgloss.NewStyle().Foreground(t.TextMuted).Render(fmt.Sprintf("  every %s", w.interval))
	if w.refreshing || w.outcomes == nil {
		header += "  " + w.spinner.View()
	}
	b.WriteString(header + "\n\n")

	if w.outcomes == nil {
		b.WriteString(lipgloss.NewStyle().Foreground(t.TextMuted).Render("  Fetching usage..."))
		b.WriteString("\n")
		return b.String()
	}

	for i, o := range w.outcomes {
		b.WriteString(w.card(o, w.previous(i, o)))
		b.WriteString("\n")
	}

	b.WriteString(components.RenderStatusBar(w.width, w.statusText()))
	return b.String()
}

func (w Watch) statusText() string {
	if w.lastRefresh.IsZero() {
		return ""
	}
	now := w.now()
	s := "updated " + cli.FormatDuration(now.Sub(w.lastRefresh)) + " ago"
	if !w.refreshing {
		next := w.lastRefresh.Add(w.interval).Sub(now)
		s += " · next in " + cli.FormatDuration(max(next, 0))
	}
	return s
}

// previous finds the matching outcome from the prior cycle.
func (w Watch) previous(i int, o fetch.Outcome) *fetch.Outcome {
	if i < len(w.prev) && w.prev[i].Provider == o.Provider && w.prev[i].Account == o.Account {
		return &w.prev[i]
	}
	return nil
}

func (w Watch) card(o fetch.Outcome, prev *fetch.Outcome) string {
	t := theme.Active
	title := string(o.Provider)
	if spec, ok := provider.Lookup(o.Provider); ok {
		title = spec.DisplayName
	}
	if o.Account != "" {
		title += " · " + o.Account
	}
	if o.Source != "" {
		title += " (" + string(o.Source) + ")"
	}

	inner := components.CardInnerWidth(w.width)
	barWidth := max(inner-labelWidth-16, minBarWidth)
	muted := lipgloss.NewStyle().Foreground(t.TextMuted)

	if !o.OK() {
		msg := "no result"
		if fe := cli.NewErrorPayload(o.Err); fe != nil {
			msg = fe.Kind + ": " + fe.Message
		}
		body := lipgloss.NewStyle().Foreground(t.Red).Render("error: " + msg)
		return components.ContentCard(title, body, w.width, true)
	}

	now := w.now()
	var lines []string
	for _, m := range o.Snapshot.Metrics {
		line := metricLine(m, now, barWidth)
		if d := change(prev, m); d != "" {
			line += " " + lipgloss.NewStyle().Foreground(t.Yellow).Render(d)
		}
		lines = append(lines, line)
	}
	if c := o.Snapshot.Cost; c != nil {
		s := cli.FormatCost(c.Used)
		if c.Limit != nil {
			s += " / " + cli.FormatCost(*c.Limit)
		}
		if c.Period != "" {
			s += " " + c.Period
		}
		lines = append(lines, muted.Render(fmt.Sprintf("%-*s", labelWidth, "Spend"))+" "+s)
	}
	if st := o.Snapshot.Status; st != nil && st.Indicator != model.StatusNone {
		lines = append(lines, lipgloss.NewStyle().Foreground(t.Orange).Render("status: "+st.Indicator+" "+st.Description))
	}
	if len(lines) == 0 {
		lines = append(lines, muted.Render("no usage reported"))
	}
	return components.ContentCard(title, strings.Join(lines, "\n"), w.width, false)
}

func metricLine(m model.Metric, now time.Time, barWidth int) string {
	var resets time.Time
	if m.ResetsAt != nil {
		resets = *m.ResetsAt
	}
	if m.UsedPercent != nil {
		return components.RateLimitBar(m.Label, *m.UsedPercent, resets, now, labelWidth, barWidth)
	}
	muted := lipgloss.NewStyle().Foreground(theme.Active.TextMuted)
	value := cli.FormatAmount(m.Used, m.Unit)
	if m.Limit != nil {
		value += " / " + cli.FormatAmount(*m.Limit, m.Unit)
	}
	return muted.Render(fmt.Sprintf("%-*s", labelWidth, m.Label)) + " " + value + " " + m.Unit
}

// change describes how m moved since the previous cycle.
func change(prev *fetch.Outcome, m model.Metric) string {
	if prev == nil || !prev.OK() {
		return ""
	}
	for _, pm := range prev.Snapshot.Metrics {
		if pm.Label != m.Label {
			continue
		}
		switch {
		case m.UsedPercent != nil && pm.UsedPercent != nil:
			if d := *m.UsedPercent - *pm.UsedPercent; d != 0 {
				return fmt.Sprintf("%+.0f%%", d)
			}
		case m.Used != pm.Used:
			return fmt.Sprintf("%+g", m.Used-pm.Used)
		}
		return ""
	}
	return ""
}

// RunWatch runs the watch program until the user quits or ctx ends.
func RunWatch(ctx context.Context, fn FetchFunc, interval time.Duration) error {
	p := tea.NewProgram(NewWatch(ctx, fn, interval), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("watch: %w", err)
	}
	return nil
}
