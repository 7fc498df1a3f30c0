package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/theirongolddev/fuelcheck/internal/cli"
	"github.com/theirongolddev/fuelcheck/internal/config"
	"github.com/theirongolddev/fuelcheck/internal/model"
	"github.com/theirongolddev/fuelcheck/internal/pipeline"
	"github.com/theirongolddev/fuelcheck/internal/provider"
	"github.com/theirongolddev/fuelcheck/internal/report"
	"github.com/theirongolddev/fuelcheck/internal/store"

	"github.com/spf13/cobra"
)

var (
	flagCostProviders []string
	flagReport        string
	flagSince         string
	flagUntil         string
	flagTimezone      string
	flagCostFormat    string
	flagCostJSON      bool
	flagCostPretty    bool
	flagCompact       bool
	flagNoCache       bool
)

var costCmd = &cobra.Command{
	Use:   "cost",
	Short: "Build cost reports from local session logs",
	Long: "Build daily, monthly or per-session cost reports from Codex and Claude\n" +
		"session logs, priced with the built-in model rates.",
	RunE: runCost,
}

func init() {
	f := costCmd.Flags()
	f.StringSliceVarP(&flagCostProviders, "provider", "p", nil, "Providers to report on (default codex)")
	f.StringVarP(&flagReport, "report", "r", "daily", "Report granularity: daily, monthly, session")
	f.StringVar(&flagSince, "since", "", "First local date to include (YYYY-MM-DD or YYYYMMDD)")
	f.StringVar(&flagUntil, "until", "", "Last local date to include (YYYY-MM-DD or YYYYMMDD)")
	f.StringVar(&flagTimezone, "timezone", "", "IANA timezone for bucket boundaries (default from config, $TZ, UTC)")
	f.StringVar(&flagCostFormat, "format", "text", "Output format: text, json, jsonl")
	f.BoolVar(&flagCostJSON, "json", false, "Shorthand for --format json")
	f.BoolVar(&flagCostPretty, "pretty", false, "Indent JSON output")
	f.BoolVar(&flagCompact, "compact", false, "Hide the models column")
	f.BoolVar(&flagNoCache, "no-cache", false, "Skip the SQLite record cache and reparse everything")
	rootCmd.AddCommand(costCmd)
}

func parseGranularity(s string) (model.Granularity, error) {
	switch g := model.Granularity(s); g {
	case model.Daily, model.Monthly, model.Session:
		return g, nil
	}
	return "", fmt.Errorf("unknown report %q (want daily, monthly or session)", s)
}

func runCost(_ *cobra.Command, _ []string) error {
	e, err := setup()
	if err != nil {
		return err
	}

	format := cli.FormatJSON
	if !flagCostJSON {
		if format, err = cli.ParseFormat(flagCostFormat); err != nil {
			return usageError(err)
		}
	}
	gran, err := parseGranularity(flagReport)
	if err != nil {
		return usageError(err)
	}

	ids := []provider.ID{provider.Codex}
	if len(flagCostProviders) > 0 {
		if ids, err = requestedProviders(e.cfg, flagCostProviders); err != nil {
			return err
		}
	}

	tz := flagTimezone
	if tz == "" {
		tz = e.cfg.General.Timezone
	}

	var results []report.ProviderResult
	filters, err := report.ValidateFilters(flagSince, flagUntil, tz)
	if err != nil {
		var re *report.Error
		if !errors.As(err, &re) {
			return err
		}
		for _, id := range ids {
			results = append(results, report.ProviderResult{Provider: id, Err: re.FetchError(string(id))})
		}
	} else {
		cache := openCache(e)
		if cache != nil {
			defer func() { _ = cache.Close() }()
		}
		progress := progressPrinter(os.Stderr, format)
		load := pipeline.Loader(e.cfg, cache, progress, e.logger)
		results = report.BuildCollection(ids, load, report.Options{Granularity: gran, Filters: filters})
		if progress != nil {
			fmt.Fprint(os.Stderr, "\r\033[K")
		}
	}

	if err := writeReports(os.Stdout, format, results, gran); err != nil {
		return err
	}
	return withCode(report.ExitCode(results))
}

// openCache opens the record cache unless --no-cache is set. A cache that
// cannot be opened falls back to a full parse.
func openCache(e env) *store.Cache {
	if flagNoCache {
		return nil
	}
	path := store.DefaultPath(config.CacheDir())
	cache, err := store.Open(path)
	if err != nil {
		e.logger.Warn("cache unavailable, doing full parse", "event", "cache_open_failed", "path", path, "error", err)
		return nil
	}
	return cache
}

// progressPrinter reports parse progress on an interactive stderr for text
// output only.
func progressPrinter(w *os.File, format cli.Format) pipeline.ProgressFunc {
	if flagQuiet || format != cli.FormatText || !cli.IsTerminal(w) {
		return nil
	}
	return func(current, total int) {
		if current%100 == 0 || current == total {
			fmt.Fprintf(w, "\r  Parsing [%d/%d]", current, total)
		}
	}
}

func writeReports(w io.Writer, format cli.Format, results []report.ProviderResult, gran model.Granularity) error {
	switch format {
	case cli.FormatJSON:
		return cli.WriteReportJSON(w, results, gran, flagCostPretty)
	case cli.FormatJSONL:
		return cli.WriteReportJSONL(w, results, gran)
	}
	_, err := fmt.Fprint(w, cli.RenderReports(results, cli.ReportOptions{Compact: flagCompact}))
	return err
}
