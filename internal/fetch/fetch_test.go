package fetch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math/rand/v2"
	"os/exec"
	"sync/atomic"
	"testing"
	"time"

	"github.com/theirongolddev/fuelcheck/internal/config"
	"github.com/theirongolddev/fuelcheck/internal/credential"
	"github.com/theirongolddev/fuelcheck/internal/fetcher"
	"github.com/theirongolddev/fuelcheck/internal/model"
	"github.com/theirongolddev/fuelcheck/internal/normalize"
	"github.com/theirongolddev/fuelcheck/internal/provider"
)

func envResolver(vars map[string]string) *credential.Resolver {
	return credential.NewResolver(credential.Environment{
		Getenv:   func(k string) string { return vars[k] },
		HomeDir:  "/nonexistent",
		ReadFile: func(string) ([]byte, error) { return nil, fs.ErrNotExist },
		Stat:     func(string) (fs.FileInfo, error) { return nil, fs.ErrNotExist },
		LookPath: func(string) (string, error) { return "", exec.ErrNotFound },
	}, credential.Selection{})
}

// okFetcher returns a payload that normalizes after an optional delay.
func okFetcher(delay func() time.Duration) fetcher.Fetcher {
	return fetcher.FetcherFunc(func(ctx context.Context, _ credential.Credential, _ config.ProviderConfig) (normalize.Raw, error) {
		if delay != nil {
			select {
			case <-time.After(delay()):
			case <-ctx.Done():
				return nil, model.ErrTimeout
			}
		}
		return normalize.StatusPage{}, nil
	})
}

func preset(id provider.ID, account string) Request {
	return Request{
		Provider:   id,
		Credential: &credential.Credential{Provider: id, Source: provider.SourceAPI, Kind: credential.APIKey, Secret: "k", Account: account},
	}
}

func TestFetchAllPreservesOrder(t *testing.T) {
	reg := fetcher.Registry{
		provider.Zai: okFetcher(func() time.Duration { return time.Duration(rand.IntN(20)) * time.Millisecond }),
	}
	o := New(envResolver(nil), reg, Options{Timeout: 5 * time.Second})

	var reqs []Request
	for i := range 16 {
		reqs = append(reqs, preset(provider.Zai, fmt.Sprintf("acct-%02d", i)))
	}

	for range 5 {
		outcomes := o.FetchAll(context.Background(), reqs)
		if len(outcomes) != len(reqs) {
			t.Fatalf("got %d outcomes, want %d", len(outcomes), len(reqs))
		}
		for i, out := range outcomes {
			want := fmt.Sprintf("acct-%02d", i)
			if !out.OK() || out.Snapshot.Account != want || out.Account != want {
				t.Fatalf("slot %d = %+v, want account %s", i, out, want)
			}
		}
	}
}

func TestFetchAllIsolatesFailures(t *testing.T) {
	reg := fetcher.Registry{
		provider.Zai: okFetcher(nil),
		provider.Warp: fetcher.FetcherFunc(func(context.Context, credential.Credential, config.ProviderConfig) (normalize.Raw, error) {
			return nil, &model.FetchError{Kind: model.KindAuthenticationRejected, Message: "HTTP 401"}
		}),
		provider.Copilot: fetcher.FetcherFunc(func(context.Context, credential.Credential, config.ProviderConfig) (normalize.Raw, error) {
			return normalize.CopilotUsage{}, nil
		}),
	}
	o := New(envResolver(nil), reg, Options{})

	outcomes := o.FetchAll(context.Background(), []Request{
		preset(provider.Warp, ""),
		preset(provider.Zai, ""),
		preset(provider.Copilot, ""),
	})

	if !errors.Is(outcomes[0].Err, model.ErrAuthenticationRejected) || outcomes[0].Err.Provider != "warp" {
		t.Errorf("warp = %+v", outcomes[0].Err)
	}
	if !outcomes[1].OK() {
		t.Errorf("zai should succeed, got %+v", outcomes[1].Err)
	}
	if outcomes[2].Err == nil || outcomes[2].Err.Kind != model.KindUnrecognizedResponse {
		t.Errorf("copilot = %+v, want unrecognized shape", outcomes[2].Err)
	}
	for i, out := range outcomes {
		if (out.Snapshot == nil) == (out.Err == nil) {
			t.Errorf("slot %d must carry exactly one of snapshot and error", i)
		}
	}
}

func TestFetchAllTimeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	reg := fetcher.Registry{
		provider.Zai: okFetcher(nil),
		// Ignores cancellation entirely.
		provider.Warp: fetcher.FetcherFunc(func(context.Context, credential.Credential, config.ProviderConfig) (normalize.Raw, error) {
			<-release
			return normalize.StatusPage{}, nil
		}),
	}
	o := New(envResolver(nil), reg, Options{Timeout: 50 * time.Millisecond})

	start := time.Now()
	outcomes := o.FetchAll(context.Background(), []Request{preset(provider.Zai, ""), preset(provider.Warp, "")})
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("FetchAll took %s, should return at the deadline", elapsed)
	}

	if !outcomes[0].OK() {
		t.Errorf("zai completed before the deadline and should be kept: %+v", outcomes[0].Err)
	}
	if !errors.Is(outcomes[1].Err, model.ErrTimeout) {
		t.Errorf("warp = %+v, want timeout", outcomes[1].Err)
	}
	if got := ExitCode(outcomes); got != 4 {
		t.Errorf("ExitCode = %d, want 4", got)
	}
}

func TestFetchAllCredentialErrors(t *testing.T) {
	var calls atomic.Int32
	reg := fetcher.Registry{
		provider.Zai: fetcher.FetcherFunc(func(context.Context, credential.Credential, config.ProviderConfig) (normalize.Raw, error) {
			calls.Add(1)
			return normalize.StatusPage{}, nil
		}),
	}
	o := New(envResolver(map[string]string{"Z_AI_API_KEY": "zk"}), reg, Options{})

	outcomes := o.FetchAll(context.Background(), []Request{
		{Provider: provider.Copilot, Config: config.ProviderConfig{ID: provider.Copilot, Source: provider.SourceAuto}},
		{Provider: provider.Zai, Config: config.ProviderConfig{ID: provider.Zai, Source: provider.SourceWeb}},
		{Provider: provider.Zai, Config: config.ProviderConfig{ID: provider.Zai, Source: provider.SourceAuto}},
	})

	if k := outcomes[0].Err.Kind; k != model.KindMissingCredential {
		t.Errorf("copilot kind = %s, want missing_credential", k)
	}
	if k := outcomes[1].Err.Kind; k != model.KindUnsupportedSource {
		t.Errorf("zai web kind = %s, want unsupported_source", k)
	}
	if !outcomes[2].OK() || outcomes[2].Source != provider.SourceAPI {
		t.Errorf("zai auto = %+v", outcomes[2])
	}
	if calls.Load() != 1 {
		t.Errorf("fetcher called %d times, want 1", calls.Load())
	}
	if got := ExitCode(outcomes); got != 3 {
		t.Errorf("ExitCode = %d, want 3", got)
	}
}

func TestFetchAllStatusBadge(t *testing.T) {
	reg := fetcher.Registry{provider.Claude: okFetcher(nil), provider.Zai: okFetcher(nil)}
	var looked []provider.ID
	o := New(envResolver(nil), reg, Options{
		Status: func(_ context.Context, id provider.ID, url string) (model.StatusBadge, error) {
			looked = append(looked, id)
			return model.StatusBadge{Indicator: model.StatusMajor, URL: url}, nil
		},
	})
	outcomes := o.FetchAll(context.Background(), []Request{preset(provider.Claude, "")})
	outcomes = append(outcomes, o.FetchAll(context.Background(), []Request{preset(provider.Zai, "")})...)

	if s := outcomes[0].Snapshot.Status; s == nil || s.Indicator != model.StatusMajor {
		t.Errorf("claude status = %+v", s)
	}
	if len(looked) != 1 || looked[0] != provider.Claude {
		t.Errorf("status looked up for %v, want only claude", looked)
	}
}

func TestRequestsAllAccounts(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Upsert(config.ProviderConfig{
		ID:      provider.Claude,
		Enabled: true,
		Source:  provider.SourceAuto,
		TokenAccounts: &config.TokenAccountSet{
			Version: 1,
			Accounts: []config.TokenAccount{
				{ID: "a", Label: "work", Token: "sessionKey=one"},
				{ID: "b", Label: "home", Token: "sessionKey=two"},
			},
		},
	})
	o := New(envResolver(map[string]string{"Z_AI_API_KEY": "zk"}), fetcher.Registry{}, Options{})

	reqs := o.Requests(cfg, []provider.ID{provider.Zai, provider.Claude}, true)
	if len(reqs) != 3 {
		t.Fatalf("got %d requests, want 3", len(reqs))
	}
	if reqs[0].Provider != provider.Zai || reqs[0].Credential != nil {
		t.Errorf("reqs[0] = %+v", reqs[0])
	}
	if reqs[1].Credential.Account != "work" || reqs[2].Credential.Account != "home" {
		t.Errorf("accounts = %s, %s", reqs[1].Credential.Account, reqs[2].Credential.Account)
	}

	single := o.Requests(cfg, []provider.ID{provider.Claude}, false)
	if len(single) != 1 || single[0].Credential != nil {
		t.Errorf("without all-accounts: %+v", single)
	}
}

func TestExpandAll(t *testing.T) {
	cfg := config.DefaultConfig()
	got := ExpandAll(cfg)
	want := provider.DefaultEnabled()
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("ExpandAll = %v, want %v", got, want)
	}

	cfg.Upsert(config.ProviderConfig{ID: provider.Warp, Enabled: true, Source: provider.SourceAuto})
	if got := ExpandAll(cfg); fmt.Sprint(got) != "[warp]" {
		t.Fatalf("ExpandAll = %v, want [warp]", got)
	}
}

func TestExitCodePrecedence(t *testing.T) {
	fail := func(k model.FetchErrorKind) Outcome { return Outcome{Err: &model.FetchError{Kind: k}} }
	ok := Outcome{Snapshot: &model.UsageSnapshot{}}

	tests := []struct {
		name string
		in   []Outcome
		want int
	}{
		{"all ok", []Outcome{ok, ok}, 0},
		{"transport", []Outcome{ok, fail(model.KindTransportFailure)}, 1},
		{"unsupported beats other", []Outcome{fail(model.KindTransportFailure), fail(model.KindUnsupportedOperation)}, 2},
		{"timeout beats unsupported", []Outcome{fail(model.KindUnsupportedOperation), fail(model.KindTimeout)}, 4},
		{"credential beats timeout", []Outcome{fail(model.KindTimeout), fail(model.KindMissingCredential)}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.in); got != tt.want {
				t.Errorf("ExitCode = %d, want %d", got, tt.want)
			}
		})
	}
}
