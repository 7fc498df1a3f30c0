package cli

import (
	"fmt"
	"strings"

	"github.com/theirongolddev/fuelcheck/internal/model"
	"github.com/theirongolddev/fuelcheck/internal/provider"
	"github.com/theirongolddev/fuelcheck/internal/report"
)

// ReportOptions controls text rendering of cost reports.
type ReportOptions struct {
	// Compact drops the per-bucket model column.
	Compact bool
}

// RenderReports renders each provider's report as a table, or an inline
// error for providers that failed.
func RenderReports(results []report.ProviderResult, opts ReportOptions) string {
	var b strings.Builder
	for i, res := range results {
		if i > 0 {
			b.WriteString("\n")
		}
		if res.Report == nil {
			name := string(res.Provider)
			if spec, ok := provider.Lookup(res.Provider); ok {
				name = spec.DisplayName
			}
			b.WriteString(titleStyle.Render(name) + "\n")
			fe := NewErrorPayload(res.Err)
			msg := "no result"
			if fe != nil {
				msg = fe.Kind + ": " + fe.Message
			}
			b.WriteString("  " + errorStyle.Render("error: "+msg) + "\n")
			continue
		}
		b.WriteString(RenderReport(*res.Report, opts))
	}
	return b.String()
}

func firstColumn(g model.Granularity) string {
	switch g {
	case model.Monthly:
		return "Month"
	case model.Session:
		return "Session"
	}
	return "Date"
}

// RenderReport renders one cost report as a bordered table with a totals row.
func RenderReport(rep model.CostReport, opts ReportOptions) string {
	name := rep.Provider
	if spec, ok := provider.Lookup(provider.ID(rep.Provider)); ok {
		name = spec.DisplayName
	}
	title := fmt.Sprintf("%s %s cost (%s)", name, rep.Granularity, rep.Timezone)

	headers := []string{firstColumn(rep.Granularity)}
	if !opts.Compact {
		headers = append(headers, "Models")
	}
	headers = append(headers, "Input", "Cached", "Output", "Reasoning", "Total", "Cost")

	t := Table{Title: title, Headers: headers, LeftColumns: 1}
	if !opts.Compact {
		t.LeftColumns = 2
	}
	for _, bk := range rep.Buckets {
		r := []string{bk.Key}
		if !opts.Compact {
			r = append(r, modelList(bk.Models))
		}
		t.Rows = append(t.Rows, append(r, tokenCells(bk.TokenTotals, bk.CostUSD)...))
	}
	if len(rep.Buckets) == 0 {
		t.Rows = append(t.Rows, []string{mutedStyle.Render("no usage in range")})
	}
	t.Rows = append(t.Rows, SeparatorRow)
	total := []string{"Total"}
	if !opts.Compact {
		total = append(total, "")
	}
	t.Rows = append(t.Rows, append(total, tokenCells(rep.Totals.TokenTotals, rep.Totals.CostUSD)...))

	var b strings.Builder
	b.WriteString(RenderTable(t))
	for _, w := range rep.Warnings {
		b.WriteString(warnStyle.Render("warning: "+w) + "\n")
	}
	return b.String()
}

func tokenCells(t model.TokenTotals, cost float64) []string {
	return []string{
		FormatNumber(t.InputTokens),
		FormatNumber(t.CachedInputTokens),
		FormatNumber(t.OutputTokens),
		FormatNumber(t.ReasoningOutputTokens),
		FormatNumber(t.TotalTokens),
		FormatCost(cost),
	}
}

func modelList(models []model.ModelBreakdown) string {
	names := make([]string, 0, len(models))
	for _, m := range models {
		n := m.Model
		if m.IsFallback {
			n += "*"
		}
		if m.UnknownRate {
			n += "?"
		}
		names = append(names, n)
	}
	return strings.Join(names, ", ")
}
