package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/theirongolddev/fuelcheck/internal/fetch"
	"github.com/theirongolddev/fuelcheck/internal/model"
	"github.com/theirongolddev/fuelcheck/internal/report"
)

// Format selects an output encoding.
type Format string

// Output formats.
const (
	FormatText  Format = "text"
	FormatJSON  Format = "json"
	FormatJSONL Format = "jsonl"
)

// ParseFormat parses a --format value.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatText, FormatJSON, FormatJSONL:
		return f, nil
	case "":
		return FormatText, nil
	}
	return "", fmt.Errorf("unknown format %q (want text, json or jsonl)", s)
}

// ErrorPayload is the JSON form of a provider-scoped error.
type ErrorPayload struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// NewErrorPayload converts fe for output.
func NewErrorPayload(fe *model.FetchError) *ErrorPayload {
	if fe == nil {
		return nil
	}
	msg := fe.Message
	if msg == "" && fe.Err != nil {
		msg = fe.Err.Error()
	}
	if msg == "" {
		msg = fe.Kind.String()
	}
	return &ErrorPayload{Kind: fe.Kind.String(), Message: msg, Code: fe.Kind.ExitCode()}
}

// UsagePayload is one outcome: the snapshot fields on success, the provider
// identity and an error object otherwise.
type UsagePayload struct {
	Snapshot *model.UsageSnapshot
	Provider string
	Account  string
	Source   string
	Error    *ErrorPayload
}

type usageErrorPayload struct {
	Provider string        `json:"provider"`
	Account  string        `json:"account,omitempty"`
	Source   string        `json:"source,omitempty"`
	Error    *ErrorPayload `json:"error"`
}

// MarshalJSON keeps success payloads flat.
func (p UsagePayload) MarshalJSON() ([]byte, error) {
	if p.Error == nil && p.Snapshot != nil {
		return json.Marshal(p.Snapshot)
	}
	return json.Marshal(usageErrorPayload{
		Provider: p.Provider,
		Account:  p.Account,
		Source:   p.Source,
		Error:    p.Error,
	})
}

// NewUsagePayload converts one outcome.
func NewUsagePayload(o fetch.Outcome) UsagePayload {
	p := UsagePayload{Provider: string(o.Provider), Account: o.Account, Source: string(o.Source)}
	if o.OK() {
		p.Snapshot = o.Snapshot
		return p
	}
	p.Error = NewErrorPayload(o.Err)
	if p.Error == nil {
		p.Error = &ErrorPayload{Kind: model.KindInternal.String(), Message: "no result", Code: 1}
	}
	return p
}

func encoder(w io.Writer, pretty bool) *json.Encoder {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc
}

// WriteUsageJSON writes outcomes as one JSON document: the payload object for
// a single outcome, an array in request order otherwise.
func WriteUsageJSON(w io.Writer, outcomes []fetch.Outcome, pretty bool) error {
	enc := encoder(w, pretty)
	if len(outcomes) == 1 {
		return enc.Encode(NewUsagePayload(outcomes[0]))
	}
	payloads := make([]UsagePayload, len(outcomes))
	for i, o := range outcomes {
		payloads[i] = NewUsagePayload(o)
	}
	return enc.Encode(payloads)
}

// WriteUsageJSONL writes one compact payload per line in request order.
func WriteUsageJSONL(w io.Writer, outcomes []fetch.Outcome) error {
	enc := encoder(w, false)
	for _, o := range outcomes {
		if err := enc.Encode(NewUsagePayload(o)); err != nil {
			return err
		}
	}
	return nil
}

// ReportPayload is one provider's report. Exactly one of the bucket lists is
// set, named after the granularity.
type ReportPayload struct {
	Provider string              `json:"provider"`
	Timezone string              `json:"timezone,omitempty"`
	Daily    *[]model.TimeBucket `json:"daily,omitempty"`
	Monthly  *[]model.TimeBucket `json:"monthly,omitempty"`
	Sessions *[]model.TimeBucket `json:"sessions,omitempty"`
	Totals   *model.ReportTotals `json:"totals,omitempty"`
	Warnings []string            `json:"warnings,omitempty"`
	Error    *ErrorPayload       `json:"error,omitempty"`
}

// NewReportPayload converts one provider's report result.
func NewReportPayload(res report.ProviderResult, gran model.Granularity) ReportPayload {
	p := ReportPayload{Provider: string(res.Provider)}
	if res.Report == nil {
		p.Error = NewErrorPayload(res.Err)
		return p
	}
	rep := res.Report
	buckets := rep.Buckets
	if buckets == nil {
		buckets = []model.TimeBucket{}
	}
	switch gran {
	case model.Monthly:
		p.Monthly = &buckets
	case model.Session:
		p.Sessions = &buckets
	default:
		p.Daily = &buckets
	}
	totals := rep.Totals
	p.Timezone = rep.Timezone
	p.Totals = &totals
	p.Warnings = rep.Warnings
	return p
}

type reportCollection struct {
	Report    model.Granularity        `json:"report"`
	Providers map[string]ReportPayload `json:"providers"`
}

// WriteReportJSON writes reports as one JSON document: flat for a single
// provider, wrapped under per-provider keys otherwise.
func WriteReportJSON(w io.Writer, results []report.ProviderResult, gran model.Granularity, pretty bool) error {
	enc := encoder(w, pretty)
	if len(results) == 1 {
		return enc.Encode(NewReportPayload(results[0], gran))
	}
	out := reportCollection{Report: gran, Providers: make(map[string]ReportPayload, len(results))}
	for _, res := range results {
		out.Providers[string(res.Provider)] = NewReportPayload(res, gran)
	}
	return enc.Encode(out)
}

// WriteReportJSONL writes one compact report payload per line.
func WriteReportJSONL(w io.Writer, results []report.ProviderResult, gran model.Granularity) error {
	enc := encoder(w, false)
	for _, res := range results {
		if err := enc.Encode(NewReportPayload(res, gran)); err != nil {
			return err
		}
	}
	return nil
}
