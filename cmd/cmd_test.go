package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"testing"

	"github.com/theirongolddev/fuelcheck/internal/config"
	"github.com/theirongolddev/fuelcheck/internal/fetch"
	"github.com/theirongolddev/fuelcheck/internal/model"
	"github.com/theirongolddev/fuelcheck/internal/provider"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"silent code", withCode(4), 4},
		{"zero code", withCode(0), 0},
		{"config", fmt.Errorf("load: %w", config.ErrInvalid), 3},
		{"unknown provider", fmt.Errorf("flag: %w", provider.ErrUnknown), 2},
		{"fetch error", &model.FetchError{Kind: model.KindMissingCredential}, 3},
		{"usage", usageError(errors.New("bad format")), 1},
		{"other", errors.New("boom"), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCode(tt.err); got != tt.want {
				t.Errorf("exitCode(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestSilentErrors(t *testing.T) {
	if !isSilent(withCode(1)) {
		t.Error("withCode error should be silent")
	}
	if isSilent(usageError(errors.New("x"))) {
		t.Error("usage error should be printed")
	}
}

func TestRequestedProviders(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Upsert(config.ProviderConfig{ID: provider.Zai, Enabled: true})
	cfg.Upsert(config.ProviderConfig{ID: provider.Warp, Enabled: true})

	ids, err := requestedProviders(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(ids, []provider.ID{provider.Zai, provider.Warp}) {
		t.Errorf("no flag = %v, want enabled set", ids)
	}

	ids, err = requestedProviders(cfg, []string{"codex,all"})
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(ids, []provider.ID{provider.Codex, provider.Zai, provider.Warp}) {
		t.Errorf("codex,all = %v", ids)
	}

	ids, err = requestedProviders(cfg, []string{"droid"})
	if err != nil || !slices.Equal(ids, []provider.ID{provider.Factory}) {
		t.Errorf("droid = %v, %v", ids, err)
	}

	if _, err := requestedProviders(cfg, []string{"nope"}); exitCode(err) != 2 {
		t.Errorf("unknown provider exit = %d, want 2", exitCode(err))
	}
}

func TestWithSourceDoesNotTouchOriginal(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Upsert(config.ProviderConfig{ID: provider.Claude, Enabled: true, Source: provider.SourceOAuth})

	got := withSource(cfg, []provider.ID{provider.Claude, provider.Codex}, provider.SourceWeb)
	if got.Provider(provider.Claude).Source != provider.SourceWeb {
		t.Errorf("claude source = %q, want web", got.Provider(provider.Claude).Source)
	}
	if got.Provider(provider.Codex).Source != provider.SourceWeb {
		t.Errorf("codex source = %q, want web", got.Provider(provider.Codex).Source)
	}
	if cfg.Provider(provider.Claude).Source != provider.SourceOAuth {
		t.Error("original config was modified")
	}
}

func TestReloadingPollPicksUpConfigChanges(t *testing.T) {
	initial := config.DefaultConfig()
	initial.Upsert(config.ProviderConfig{ID: provider.Zai, Enabled: true})

	edited := config.DefaultConfig()
	edited.Upsert(config.ProviderConfig{ID: provider.Warp, Enabled: true})
	edited.Upsert(config.ProviderConfig{ID: provider.Copilot, Enabled: true})

	var loads []func() (config.Config, error)
	loads = append(loads,
		func() (config.Config, error) { return initial, nil },
		func() (config.Config, error) { return edited, nil },
		func() (config.Config, error) { return config.Config{}, errors.New("config.toml: bad syntax") },
	)
	cycle := 0
	var gotIDs [][]provider.ID
	var gotSources []provider.SourceKind
	var logs bytes.Buffer

	poll := reloadingPoll(initial, pollSpec{
		source: provider.SourceAPI,
		load: func() (config.Config, error) {
			load := loads[cycle]
			cycle++
			return load()
		},
		fetch: func(_ context.Context, cfg config.Config, ids []provider.ID) []fetch.Outcome {
			gotIDs = append(gotIDs, ids)
			gotSources = append(gotSources, cfg.Provider(ids[0]).Source)
			return nil
		},
		logger: slog.New(slog.NewTextHandler(&logs, nil)),
	})
	for range loads {
		poll(context.Background())
	}

	want := [][]provider.ID{
		{provider.Zai},
		{provider.Warp, provider.Copilot},
		{provider.Warp, provider.Copilot},
	}
	if !slices.EqualFunc(gotIDs, want, slices.Equal[[]provider.ID]) {
		t.Errorf("providers per cycle = %v, want %v", gotIDs, want)
	}
	for i, src := range gotSources {
		if src != provider.SourceAPI {
			t.Errorf("cycle %d source = %q, want forced api", i, src)
		}
	}
	if !strings.Contains(logs.String(), "config_reload_failed") {
		t.Errorf("reload failure not logged: %q", logs.String())
	}
	if initial.Provider(provider.Zai).Source == provider.SourceAPI {
		t.Error("forced source leaked into the stored config")
	}
}

func TestParseGranularity(t *testing.T) {
	for _, s := range []string{"daily", "monthly", "session"} {
		if _, err := parseGranularity(s); err != nil {
			t.Errorf("parseGranularity(%q): %v", s, err)
		}
	}
	if _, err := parseGranularity("weekly"); err == nil {
		t.Error("expected error for weekly")
	}
}

func TestFilterDetachArg(t *testing.T) {
	got := filterDetachArg([]string{"daemon", "--detach", "--addr", ":9000", "--detach=true"})
	want := []string{"daemon", "--addr", ":9000"}
	if !slices.Equal(got, want) {
		t.Errorf("filterDetachArg = %v, want %v", got, want)
	}
}

func TestPIDFileRoundTrip(t *testing.T) {
	path := t.TempDir() + "/d.pid"
	if err := writePID(path, 4242); err != nil {
		t.Fatal(err)
	}
	pid, err := readPID(path)
	if err != nil || pid != 4242 {
		t.Fatalf("readPID = %d, %v", pid, err)
	}
	if err := ensureDaemonNotRunning(t.TempDir() + "/missing.pid"); err != nil {
		t.Errorf("missing pid file: %v", err)
	}
}
