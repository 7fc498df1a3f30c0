package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/theirongolddev/fuelcheck/internal/fetch"
	"github.com/theirongolddev/fuelcheck/internal/model"
	"github.com/theirongolddev/fuelcheck/internal/provider"
)

const (
	labelWidth = 16
	barWidth   = 20
)

// RenderUsage renders outcomes as text blocks in request order. Failed
// providers get an inline error line.
func RenderUsage(outcomes []fetch.Outcome, now time.Time) string {
	var b strings.Builder
	for i, o := range outcomes {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(renderOutcome(o, now))
	}
	return b.String()
}

func outcomeHeader(o fetch.Outcome) string {
	name := string(o.Provider)
	if spec, ok := provider.Lookup(o.Provider); ok {
		name = spec.DisplayName
	}
	h := titleStyle.Render(name)
	if o.Source != "" {
		h += mutedStyle.Render(" (" + string(o.Source) + ")")
	}
	if o.Account != "" {
		h += mutedStyle.Render(" · " + o.Account)
	}
	return h
}

func renderOutcome(o fetch.Outcome, now time.Time) string {
	var b strings.Builder
	b.WriteString(outcomeHeader(o))
	b.WriteString("\n")

	if !o.OK() {
		msg := "no result"
		if fe := NewErrorPayload(o.Err); fe != nil {
			msg = fe.Kind + ": " + fe.Message
		}
		b.WriteString("  " + errorStyle.Render("error: "+msg) + "\n")
		return b.String()
	}

	snap := o.Snapshot
	for _, m := range snap.Metrics {
		b.WriteString(metricLine(m, now))
	}
	if c := snap.Cost; c != nil {
		b.WriteString(costLine(*c, now))
	}
	if id := snap.Identity; id != nil {
		if s := identityText(*id); s != "" {
			b.WriteString(row("Account", mutedStyle.Render(s)))
		}
	}
	if st := snap.Status; st != nil {
		b.WriteString(row("Status", statusText(*st)))
	}
	if len(snap.Metrics) == 0 && snap.Cost == nil {
		b.WriteString("  " + mutedStyle.Render("no usage reported") + "\n")
	}
	return b.String()
}

func row(label, value string) string {
	return "  " + pad(label, labelWidth, false) + " " + value + "\n"
}

func metricLabel(m model.Metric) string {
	if m.WindowMinutes == nil || *m.WindowMinutes <= 0 {
		return m.Label
	}
	return fmt.Sprintf("%s (%s)", m.Label, FormatDuration(time.Duration(*m.WindowMinutes)*time.Minute))
}

func metricLine(m model.Metric, now time.Time) string {
	var value string
	switch {
	case m.UsedPercent != nil:
		value = RenderUsageBar(*m.UsedPercent, barWidth) + " " + pad(fmt.Sprintf("%.0f%%", *m.UsedPercent), 4, true)
		if m.Limit != nil && m.Unit != model.UnitPercent {
			value += mutedStyle.Render(fmt.Sprintf("  %s / %s %s",
				FormatAmount(m.Used, m.Unit), FormatAmount(*m.Limit, m.Unit), m.Unit))
		}
	case m.Limit != nil:
		value = fmt.Sprintf("%s / %s %s", FormatAmount(m.Used, m.Unit), FormatAmount(*m.Limit, m.Unit), m.Unit)
	default:
		value = fmt.Sprintf("%s %s", FormatAmount(m.Used, m.Unit), m.Unit)
	}
	if m.ResetsAt != nil {
		value += mutedStyle.Render("  " + FormatReset(*m.ResetsAt, now))
	}
	return row(metricLabel(m), value)
}

func costLine(c model.CostAmount, now time.Time) string {
	value := costStyle.Render(FormatCost(c.Used))
	if c.Limit != nil {
		value += " / " + FormatCost(*c.Limit)
	}
	if c.Period != "" {
		value += mutedStyle.Render(" " + c.Period)
	}
	if c.ResetsAt != nil {
		value += mutedStyle.Render("  " + FormatReset(*c.ResetsAt, now))
	}
	return row("Spend", value)
}

func identityText(id model.Identity) string {
	var parts []string
	for _, s := range []string{id.Email, id.Organization, id.Plan} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " · ")
}

func statusText(st model.StatusBadge) string {
	label := st.Indicator
	style := warnStyle
	switch st.Indicator {
	case model.StatusNone:
		label, style = "ok", costStyle
	case model.StatusMajor, model.StatusCritical:
		style = errorStyle
	case model.StatusUnknown:
		style = mutedStyle
	}
	out := style.Render(label)
	if st.Description != "" && st.Indicator != model.StatusNone {
		out += " " + mutedStyle.Render(st.Description)
	}
	return out
}
