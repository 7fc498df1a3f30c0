package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/theirongolddev/fuelcheck/internal/cli"
	"github.com/theirongolddev/fuelcheck/internal/config"
	"github.com/theirongolddev/fuelcheck/internal/credential"
	"github.com/theirongolddev/fuelcheck/internal/fetch"
	"github.com/theirongolddev/fuelcheck/internal/fetcher"
	"github.com/theirongolddev/fuelcheck/internal/model"
	"github.com/theirongolddev/fuelcheck/internal/provider"
	"github.com/theirongolddev/fuelcheck/internal/tui"
	"github.com/theirongolddev/fuelcheck/internal/tui/theme"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
)

var (
	flagProviders    []string
	flagSource       string
	flagFormat       string
	flagJSON         bool
	flagPretty       bool
	flagStatus       bool
	flagAccount      string
	flagAccountIndex int
	flagAllAccounts  bool
	flagWatch        bool
	flagInterval     time.Duration
	flagWebTimeout   time.Duration
)

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show current usage and limits per provider",
	RunE:  runUsage,
}

func init() {
	addUsageFlags(usageCmd)
	rootCmd.AddCommand(usageCmd)
}

// addUsageFlags registers the usage flags on c. The root command carries
// them too since usage is its default action.
func addUsageFlags(c *cobra.Command) {
	f := c.Flags()
	f.StringSliceVarP(&flagProviders, "provider", "p", nil, "Providers to check, repeatable or comma-separated; \"all\" for every enabled one")
	f.StringVar(&flagSource, "source", "", "Force a credential source: auto, oauth, web, api, cli, local")
	f.StringVar(&flagFormat, "format", "text", "Output format: text, json, jsonl")
	f.BoolVar(&flagJSON, "json", false, "Shorthand for --format json")
	f.BoolVar(&flagPretty, "pretty", false, "Indent JSON output")
	f.BoolVar(&flagStatus, "status", false, "Include provider status page indicators")
	f.StringVar(&flagAccount, "account", "", "Token account to use, by label or id")
	f.IntVar(&flagAccountIndex, "account-index", 0, "Token account to use, by position")
	f.BoolVar(&flagAllAccounts, "all-accounts", false, "Query every token account")
	f.BoolVarP(&flagWatch, "watch", "w", false, "Refresh continuously in a full-screen view")
	f.DurationVar(&flagInterval, "interval", 0, "Watch refresh interval (default from config, 10s)")
	f.DurationVar(&flagWebTimeout, "web-timeout", 0, "Deadline for one round of fetches (default from config, 20s)")
}

func outputFormat() (cli.Format, error) {
	if flagJSON {
		return cli.FormatJSON, nil
	}
	return cli.ParseFormat(flagFormat)
}

// requestedProviders expands --provider against cfg. No flag means the
// enabled set.
func requestedProviders(cfg config.Config, values []string) ([]provider.ID, error) {
	ids, wantAll, err := provider.ParseList(values)
	if err != nil {
		return nil, err
	}
	if wantAll || len(ids) == 0 {
		for _, id := range fetch.ExpandAll(cfg) {
			if !slices.Contains(ids, id) {
				ids = append(ids, id)
			}
		}
	}
	return ids, nil
}

// withSource returns a copy of cfg with every id forced to kind.
func withSource(cfg config.Config, ids []provider.ID, kind provider.SourceKind) config.Config {
	cfg.Providers = slices.Clone(cfg.Providers)
	for _, id := range ids {
		pc := cfg.Provider(id)
		pc.Source = kind
		cfg.Upsert(pc)
	}
	return cfg
}

type orchestratorOptions struct {
	selection credential.Selection
	timeout   time.Duration
	status    bool
}

func newOrchestrator(opts orchestratorOptions, logger *slog.Logger) *fetch.Orchestrator {
	hc := &http.Client{}
	resolver := credential.NewResolver(credential.OSEnvironment(), opts.selection)
	fo := fetch.Options{Timeout: opts.timeout, Logger: logger}
	if opts.status {
		fo.Status = func(ctx context.Context, id provider.ID, url string) (model.StatusBadge, error) {
			return fetcher.FetchStatus(ctx, hc, id, url)
		}
	}
	return fetch.New(resolver, fetcher.NewRegistry(hc, fetcher.DefaultEndpoints()), fo)
}

func runUsage(cmd *cobra.Command, _ []string) error {
	e, err := setup()
	if err != nil {
		return err
	}
	format, err := outputFormat()
	if err != nil {
		return usageError(err)
	}
	ids, err := requestedProviders(e.cfg, flagProviders)
	if err != nil {
		return err
	}
	var source provider.SourceKind
	if flagSource != "" {
		if source, err = provider.ParseSource(flagSource); err != nil {
			return err
		}
	}

	selection := credential.Selection{Account: flagAccount}
	if cmd.Flags().Changed("account-index") {
		idx := flagAccountIndex
		selection.Index = &idx
	}
	fetchUsage := func(ctx context.Context, cfg config.Config, ids []provider.ID) []fetch.Outcome {
		opts := orchestratorOptions{
			selection: selection,
			timeout:   cfg.WebTimeout(),
			status:    flagStatus,
		}
		if flagWebTimeout > 0 {
			opts.timeout = flagWebTimeout
		}
		orch := newOrchestrator(opts, e.logger)
		return orch.FetchAll(ctx, orch.Requests(cfg, ids, flagAllAccounts))
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if flagWatch {
		interval := flagInterval
		if interval <= 0 {
			interval = time.Duration(e.cfg.General.WatchIntervalSecs) * time.Second
		}
		configureWatchColors()
		poll := reloadingPoll(e.cfg, pollSpec{
			providers: flagProviders,
			source:    source,
			load:      loadConfig,
			fetch:     fetchUsage,
			logger:    e.logger.With("component", "watch"),
		})
		return tui.RunWatch(ctx, poll, interval)
	}

	cfg := e.cfg
	if source != "" {
		cfg = withSource(cfg, ids, source)
	}
	outcomes := fetchUsage(ctx, cfg, ids)
	if err := writeUsage(os.Stdout, format, outcomes); err != nil {
		return err
	}
	return withCode(fetch.ExitCode(outcomes))
}

func writeUsage(w *os.File, format cli.Format, outcomes []fetch.Outcome) error {
	switch format {
	case cli.FormatJSON:
		return cli.WriteUsageJSON(w, outcomes, flagPretty)
	case cli.FormatJSONL:
		return cli.WriteUsageJSONL(w, outcomes)
	}
	_, err := fmt.Fprint(w, cli.RenderUsage(outcomes, time.Now()))
	return err
}

// configureWatchColors picks the watch theme from the terminal's color
// profile.
func configureWatchColors() {
	profile := termenv.NewOutput(os.Stdout).EnvColorProfile()
	if flagNoColor {
		profile = termenv.Ascii
	}
	lipgloss.SetColorProfile(profile)
	theme.SetActive(theme.ForProfile(profile).Name)
}
