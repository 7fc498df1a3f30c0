// Package report buckets session records into daily, monthly and per-session
// cost reports.
package report

import (
	"fmt"
	"iter"
	"sort"
	"time"

	"github.com/theirongolddev/fuelcheck/internal/config"
	"github.com/theirongolddev/fuelcheck/internal/model"
	"github.com/theirongolddev/fuelcheck/internal/provider"
)

// Options controls one Build.
type Options struct {
	Granularity model.Granularity
	Filters
	// Pricing defaults to config.LookupPricingAt.
	Pricing config.PricingFunc
}

type bucket struct {
	model.TimeBucket
	first  time.Time
	models map[string]*model.ModelBreakdown
}

// Build aggregates records into a report. It never fails on unknown models:
// those records cost zero and produce a warning.
func Build(id provider.ID, records iter.Seq[model.SessionRecord], opts Options) (model.CostReport, error) {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	pricing := opts.Pricing
	if pricing == nil {
		pricing = config.LookupPricingAt
	}
	gran := opts.Granularity
	switch gran {
	case model.Daily, model.Monthly, model.Session:
	case "":
		gran = model.Daily
	default:
		return model.CostReport{}, fmt.Errorf("unknown report granularity %q", gran)
	}

	buckets := make(map[string]*bucket)
	unknown := make(map[string]struct{})

	for r := range records {
		local := r.Timestamp.In(loc)
		day := local.Format(time.DateOnly)
		if !opts.Filters.Contains(day) {
			continue
		}

		key := day
		switch gran {
		case model.Monthly:
			key = local.Format("2006-01")
		case model.Session:
			key = r.SessionID
		}

		b, ok := buckets[key]
		if !ok {
			b = newBucket(key, gran, local, loc)
			b.Directory = r.Directory
			b.SessionFile = r.SessionFile
			buckets[key] = b
		}
		if local.Before(b.first) {
			b.first = local
		}

		name := config.NormalizeModelName(r.Model)
		mb, ok := b.models[name]
		if !ok {
			mb = &model.ModelBreakdown{Model: name}
			b.models[name] = mb
		}
		mb.AddRecord(r)
		if r.IsFallbackModel {
			mb.IsFallback = true
		}

		if p, ok := pricing(name, r.Timestamp); ok {
			mb.CostUSD += p.Cost(config.TokenCounts{
				Input:        r.InputTokens,
				CachedInput:  r.CachedInputTokens,
				CacheWrite5m: r.CacheWrite5mTokens,
				CacheWrite1h: r.CacheWrite1hTokens,
				Output:       r.OutputTokens,
			})
		} else {
			mb.UnknownRate = true
			unknown[name] = struct{}{}
		}

		if gran == model.Session {
			if b.LastActivity == nil || local.After(*b.LastActivity) {
				last := local
				b.LastActivity = &last
			}
		}
	}

	rep := model.CostReport{
		Provider:    string(id),
		Granularity: gran,
		Timezone:    loc.String(),
		Buckets:     make([]model.TimeBucket, 0, len(buckets)),
	}
	for _, b := range sortedBuckets(buckets, gran) {
		tb := b.finish()
		rep.Totals.Add(tb.TokenTotals)
		rep.Totals.CostUSD += tb.CostUSD
		rep.Buckets = append(rep.Buckets, tb)
	}
	rep.Warnings = warnings(unknown)
	return rep, nil
}

func newBucket(key string, gran model.Granularity, local time.Time, loc *time.Location) *bucket {
	b := &bucket{
		TimeBucket: model.TimeBucket{Key: key, Kind: gran, Timezone: loc.String()},
		first:      local,
		models:     make(map[string]*model.ModelBreakdown),
	}
	switch gran {
	case model.Daily:
		b.Start = time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
		b.End = b.Start.AddDate(0, 0, 1)
	case model.Monthly:
		b.Start = time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc)
		b.End = b.Start.AddDate(0, 1, 0)
	}
	return b
}

// finish sums model rows in name order so totals are reproducible.
func (b *bucket) finish() model.TimeBucket {
	names := make([]string, 0, len(b.models))
	for name := range b.models {
		names = append(names, name)
	}
	sort.Strings(names)

	tb := b.TimeBucket
	tb.Models = make([]model.ModelBreakdown, 0, len(names))
	for _, name := range names {
		mb := *b.models[name]
		tb.Add(mb.TokenTotals)
		tb.CostUSD += mb.CostUSD
		tb.Models = append(tb.Models, mb)
	}
	if tb.Kind == model.Session {
		tb.Start = b.first
		tb.End = *tb.LastActivity
	}
	return tb
}

// sortedBuckets orders day and month buckets by key and sessions by first
// activity, breaking ties by id.
func sortedBuckets(m map[string]*bucket, gran model.Granularity) []*bucket {
	out := make([]*bucket, 0, len(m))
	for _, b := range m {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		if gran == model.Session && !out[i].first.Equal(out[j].first) {
			return out[i].first.Before(out[j].first)
		}
		return out[i].Key < out[j].Key
	})
	return out
}

func warnings(unknown map[string]struct{}) []string {
	if len(unknown) == 0 {
		return nil
	}
	names := make([]string, 0, len(unknown))
	for name := range unknown {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]string, 0, len(names))
	for _, name := range names {
		err := &model.NormalizationError{Kind: model.UnknownModelRate, Detail: name}
		out = append(out, err.Error()+" (cost counted as 0)")
	}
	return out
}
