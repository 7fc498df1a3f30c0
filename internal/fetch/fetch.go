// Package fetch runs resolve, fetch and normalize for many providers at once.
package fetch

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/theirongolddev/fuelcheck/internal/config"
	"github.com/theirongolddev/fuelcheck/internal/credential"
	"github.com/theirongolddev/fuelcheck/internal/fetcher"
	"github.com/theirongolddev/fuelcheck/internal/model"
	"github.com/theirongolddev/fuelcheck/internal/normalize"
	"github.com/theirongolddev/fuelcheck/internal/provider"
)

// DefaultTimeout bounds one FetchAll batch when no timeout is configured.
const DefaultTimeout = 20 * time.Second

// Request is one provider (or one account of a provider) to query.
type Request struct {
	Provider provider.ID
	Config   config.ProviderConfig

	// Credential skips resolution when set. Account expansion fills it.
	Credential *credential.Credential
}

// Outcome is the result for one Request. Exactly one of Snapshot and Err is
// set.
type Outcome struct {
	Provider provider.ID
	Account  string
	Source   provider.SourceKind
	Snapshot *model.UsageSnapshot
	Err      *model.FetchError
}

// OK reports whether the outcome carries a snapshot.
func (o Outcome) OK() bool { return o.Err == nil && o.Snapshot != nil }

// StatusFunc looks up a provider's status page badge.
type StatusFunc func(ctx context.Context, id provider.ID, url string) (model.StatusBadge, error)

// Options configures an Orchestrator.
type Options struct {
	Timeout time.Duration
	// Status, when non-nil, is called after each successful fetch for
	// providers that declare a status page.
	Status StatusFunc
	Logger *slog.Logger
}

// Orchestrator fans requests out to fetchers. It holds no state between
// calls.
type Orchestrator struct {
	resolver *credential.Resolver
	fetchers fetcher.Registry
	timeout  time.Duration
	status   StatusFunc
	logger   *slog.Logger
}

// New returns an Orchestrator.
func New(resolver *credential.Resolver, fetchers fetcher.Registry, opts Options) *Orchestrator {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Orchestrator{
		resolver: resolver,
		fetchers: fetchers,
		timeout:  opts.Timeout,
		status:   opts.Status,
		logger:   opts.Logger,
	}
}

// ExpandAll returns the providers "all" means for cfg right now.
func ExpandAll(cfg config.Config) []provider.ID {
	return cfg.EnabledProviders()
}

// Requests builds one request per provider. With allAccounts, providers with
// token accounts expand into one request per account in account order.
func (o *Orchestrator) Requests(cfg config.Config, ids []provider.ID, allAccounts bool) []Request {
	reqs := make([]Request, 0, len(ids))
	for _, id := range ids {
		pc := cfg.Provider(id)
		if !allAccounts || pc.TokenAccounts.Len() == 0 {
			reqs = append(reqs, Request{Provider: id, Config: pc})
			continue
		}
		creds, err := o.resolver.ResolveAll(id, pc)
		if err != nil || len(creds) == 0 {
			// Resolution runs again inside FetchAll and reports the error
			// in this provider's slot.
			reqs = append(reqs, Request{Provider: id, Config: pc})
			continue
		}
		for i := range creds {
			reqs = append(reqs, Request{Provider: id, Config: pc, Credential: &creds[i]})
		}
	}
	return reqs
}

// FetchAll runs every request concurrently and returns outcomes in request
// order. Slots still running at the deadline become Timeout errors; FetchAll
// does not wait for them.
func (o *Orchestrator) FetchAll(ctx context.Context, reqs []Request) []Outcome {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	runID := uuid.NewString()
	log := o.logger.With("run_id", runID)
	start := time.Now()
	log.Debug("fetch started", "event", "fetch_start", "requests", len(reqs), "timeout", o.timeout)

	slots := make([]Outcome, len(reqs))
	done := make([]atomic.Bool, len(reqs))
	var wg sync.WaitGroup
	wg.Add(len(reqs))
	for i, req := range reqs {
		go func() {
			defer wg.Done()
			slots[i] = o.run(ctx, log, req)
			done[i].Store(true)
		}()
	}

	finished := make(chan struct{})
	go func() {
		wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
	case <-ctx.Done():
	}

	outcomes := make([]Outcome, len(reqs))
	for i, req := range reqs {
		if done[i].Load() {
			outcomes[i] = slots[i]
			continue
		}
		outcomes[i] = timeoutOutcome(req, o.timeout)
		log.Warn("provider timed out", "event", "fetch_timeout", "provider", req.Provider)
	}

	log.Debug("fetch finished", "event", "fetch_done", "elapsed", time.Since(start).Round(time.Millisecond))
	return outcomes
}

func (o *Orchestrator) run(ctx context.Context, log *slog.Logger, req Request) Outcome {
	out := Outcome{Provider: req.Provider, Source: req.Config.Source}

	var cred credential.Credential
	if req.Credential != nil {
		cred = *req.Credential
	} else {
		c, err := o.resolver.Resolve(req.Provider, req.Config)
		if err != nil {
			out.Err = credentialError(req.Provider, err)
			log.Debug("credential unavailable", "provider", req.Provider, "err", err)
			return out
		}
		cred = c
	}
	out.Account = cred.Account
	out.Source = cred.Source
	log.Debug("credential resolved", "credential", cred)

	f, ok := o.fetchers[req.Provider]
	if !ok {
		out.Err = scoped(req.Provider, model.NewFetchError(model.KindUnsupportedOperation, "no fetcher registered"))
		return out
	}

	raw, err := f.Fetch(ctx, cred, req.Config)
	if err != nil {
		if ctx.Err() != nil && !errors.Is(err, model.ErrTimeout) {
			err = &model.FetchError{Kind: model.KindTimeout, Message: "deadline exceeded", Err: err}
		}
		out.Err = scoped(req.Provider, model.AsFetchError(err))
		return out
	}

	snap, err := normalize.Normalize(req.Provider, raw)
	if err != nil {
		out.Err = scoped(req.Provider, model.AsFetchError(err))
		return out
	}
	snap.Source = string(cred.Source)
	snap.Account = cred.Account

	if o.status != nil {
		if url := provider.MustLookup(req.Provider).StatusPage; url != "" {
			badge, err := o.status(ctx, req.Provider, url)
			if err != nil {
				log.Debug("status page unavailable", "provider", req.Provider, "err", err)
			} else {
				snap.Status = &badge
			}
		}
	}

	out.Snapshot = &snap
	return out
}

// credentialError carries a resolution failure in an outcome, mirroring its
// kind.
func credentialError(id provider.ID, err error) *model.FetchError {
	var ce *credential.Error
	if errors.As(err, &ce) {
		return &model.FetchError{
			Kind:     model.FetchErrorKind(ce.Kind),
			Provider: string(id),
			Message:  ce.Detail,
			Err:      err,
		}
	}
	return scoped(id, model.AsFetchError(err))
}

func scoped(id provider.ID, fe *model.FetchError) *model.FetchError {
	if fe.Provider == string(id) {
		return fe
	}
	cp := *fe
	cp.Provider = string(id)
	return &cp
}

func timeoutOutcome(req Request, d time.Duration) Outcome {
	out := Outcome{
		Provider: req.Provider,
		Source:   req.Config.Source,
		Err: &model.FetchError{
			Kind:     model.KindTimeout,
			Provider: string(req.Provider),
			Message:  "no response within " + d.String(),
		},
	}
	if req.Credential != nil {
		out.Account = req.Credential.Account
		out.Source = req.Credential.Source
	}
	return out
}

// ExitCode returns the process exit status for a set of outcomes: 0 when all
// succeeded, otherwise the most severe code among the failures.
func ExitCode(outcomes []Outcome) int {
	code := 0
	for _, o := range outcomes {
		if o.Err == nil {
			continue
		}
		if c := o.Err.Kind.ExitCode(); model.Severity(c) > model.Severity(code) {
			code = c
		}
	}
	return code
}
