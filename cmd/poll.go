package cmd

import (
	"context"
	"log/slog"
	"sync"

	"github.com/theirongolddev/fuelcheck/internal/config"
	"github.com/theirongolddev/fuelcheck/internal/fetch"
	"github.com/theirongolddev/fuelcheck/internal/provider"
)

// pollSpec describes a repeating usage poll for watch mode and the daemon.
type pollSpec struct {
	providers []string
	// source forces every requested provider's credential source when set.
	source provider.SourceKind
	load   func() (config.Config, error)
	fetch  func(ctx context.Context, cfg config.Config, ids []provider.ID) []fetch.Outcome
	logger *slog.Logger
}

// reloadingPoll returns a poll that rereads the config and expands the
// provider list on every cycle. A failed reload logs a warning and reuses the
// last config that loaded.
func reloadingPoll(initial config.Config, s pollSpec) func(context.Context) []fetch.Outcome {
	var mu sync.Mutex
	last := initial
	return func(ctx context.Context) []fetch.Outcome {
		cfg, err := s.load()
		mu.Lock()
		if err != nil {
			s.logger.Warn("config reload failed, keeping previous config", "event", "config_reload_failed", "error", err)
			cfg = last
		}
		last = cfg
		mu.Unlock()

		ids, err := requestedProviders(cfg, s.providers)
		if err != nil {
			s.logger.Warn("provider list invalid", "event", "poll_error", "error", err)
			return nil
		}
		if s.source != "" {
			cfg = withSource(cfg, ids, s.source)
		}
		return s.fetch(ctx, cfg, ids)
	}
}

func loadConfig() (config.Config, error) {
	return config.Load(flagConfig)
}
