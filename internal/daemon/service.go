// Package daemon provides the long-running background usage monitor service.
package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/theirongolddev/fuelcheck/internal/cli"
	"github.com/theirongolddev/fuelcheck/internal/fetch"
	"github.com/theirongolddev/fuelcheck/internal/model"
)

// PollFunc runs one fetch batch. Each call is an independent orchestration
// run.
type PollFunc func(ctx context.Context) []fetch.Outcome

// Config controls the daemon runtime behavior.
type Config struct {
	Interval     time.Duration
	Addr         string
	EventsBuffer int
	// RefreshEvery is the minimum spacing of on-demand /v1/refresh polls.
	RefreshEvery time.Duration
}

// Snapshot is the latest outcome set, in request order.
type Snapshot struct {
	At        time.Time          `json:"at"`
	Providers []cli.UsagePayload `json:"providers"`
	ExitCode  int                `json:"exitCode"`
}

// Change is one difference between consecutive snapshots: a metric whose
// value moved, or a provider entering or leaving an error state.
type Change struct {
	Provider string   `json:"provider"`
	Account  string   `json:"account,omitempty"`
	Metric   string   `json:"metric,omitempty"`
	Previous *float64 `json:"previous,omitempty"`
	Current  *float64 `json:"current,omitempty"`
	// ErrorFrom and ErrorTo are error kinds; empty means healthy.
	ErrorFrom string `json:"errorFrom,omitempty"`
	ErrorTo   string `json:"errorTo,omitempty"`
}

// Event is emitted whenever the snapshot changes.
type Event struct {
	ID        int64     `json:"id"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Snapshot  Snapshot  `json:"snapshot"`
	Changes   []Change  `json:"changes,omitempty"`
}

// Status is served at /v1/status.
type Status struct {
	StartedAt       time.Time `json:"startedAt"`
	LastPollAt      time.Time `json:"lastPollAt"`
	PollIntervalSec int       `json:"pollIntervalSec"`
	PollCount       int64     `json:"pollCount"`
	Snapshot        Snapshot  `json:"snapshot"`
	LastError       string    `json:"lastError,omitempty"`
	EventCount      int       `json:"eventCount"`
	SubscriberCount int       `json:"subscriberCount"`
}

// Service provides the daemon runtime and HTTP API.
type Service struct {
	cfg     Config
	poll    PollFunc
	logger  *slog.Logger
	limiter *rate.Limiter

	pollMu sync.Mutex

	mu          sync.RWMutex
	startedAt   time.Time
	lastPollAt  time.Time
	pollCount   int64
	lastError   string
	hasSnapshot bool
	snapshot    Snapshot
	nextEventID int64
	events      []Event

	nextSubID int
	subs      map[int]chan Event
}

// New returns a new daemon service with the provided config.
func New(cfg Config, poll PollFunc, logger *slog.Logger) *Service {
	if cfg.Interval < 2*time.Second {
		cfg.Interval = 60 * time.Second
	}
	if cfg.EventsBuffer < 1 {
		cfg.EventsBuffer = 200
	}
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:8787"
	}
	if cfg.RefreshEvery <= 0 {
		cfg.RefreshEvery = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		cfg:       cfg,
		poll:      poll,
		logger:    logger,
		limiter:   rate.NewLimiter(rate.Every(cfg.RefreshEvery), 1),
		startedAt: time.Now(),
		subs:      make(map[int]chan Event),
	}
}

// Handler returns the HTTP API.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /v1/status", s.handleStatus)
	mux.HandleFunc("GET /v1/events", s.handleEvents)
	mux.HandleFunc("GET /v1/stream", s.handleStream)
	mux.HandleFunc("POST /v1/refresh", s.handleRefresh)
	return mux
}

// Run starts HTTP endpoints and polling until ctx is canceled.
func (s *Service) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	s.logger.Info("daemon listening", "event", "daemon_started", "addr", s.cfg.Addr, "interval", s.cfg.Interval)

	// Seed initial snapshot so status is useful immediately.
	s.pollOnce(ctx)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		case <-ticker.C:
			s.pollOnce(ctx)
		case err := <-errCh:
			return fmt.Errorf("daemon http server: %w", err)
		}
	}
}

func (s *Service) pollOnce(ctx context.Context) {
	s.pollMu.Lock()
	defer s.pollMu.Unlock()

	outcomes := s.poll(ctx)
	now := time.Now()
	snap := snapshotFromOutcomes(outcomes, now)

	var failures []string
	for _, o := range outcomes {
		if o.OK() {
			continue
		}
		s.logger.Warn("daemon poll error",
			"event", "poll_error",
			"provider", string(o.Provider),
			"account", o.Account,
			"kind", errorKind(o.Err),
			"err", o.Err,
		)
		failures = append(failures, errorText(o))
	}

	var (
		ev      Event
		publish bool
	)

	s.mu.Lock()
	prev := s.snapshot
	prevExists := s.hasSnapshot

	s.hasSnapshot = true
	s.snapshot = snap
	s.lastPollAt = now
	s.pollCount++
	s.lastError = strings.Join(failures, "; ")

	if !prevExists {
		s.nextEventID++
		ev = Event{
			ID:        s.nextEventID,
			Type:      "snapshot",
			Timestamp: now,
			Snapshot:  snap,
		}
		publish = true
	} else if changes := diffSnapshots(prev, snap); len(changes) > 0 {
		s.nextEventID++
		ev = Event{
			ID:        s.nextEventID,
			Type:      "usage_delta",
			Timestamp: now,
			Snapshot:  snap,
			Changes:   changes,
		}
		publish = true
	}
	s.mu.Unlock()

	if publish {
		s.publishEvent(ev)
	}
}

func snapshotFromOutcomes(outcomes []fetch.Outcome, at time.Time) Snapshot {
	payloads := make([]cli.UsagePayload, len(outcomes))
	for i, o := range outcomes {
		payloads[i] = cli.NewUsagePayload(o)
	}
	return Snapshot{At: at, Providers: payloads, ExitCode: fetch.ExitCode(outcomes)}
}

func errorKind(fe *model.FetchError) string {
	if fe == nil {
		return ""
	}
	return fe.Kind.String()
}

func errorText(o fetch.Outcome) string {
	name := string(o.Provider)
	if o.Account != "" {
		name += "/" + o.Account
	}
	if o.Err == nil {
		return name + ": no result"
	}
	return name + ": " + cli.NewErrorPayload(o.Err).Message
}

func payloadKey(p cli.UsagePayload) string {
	return p.Provider + "\x00" + p.Account
}

func payloadError(p cli.UsagePayload) string {
	if p.Error == nil {
		return ""
	}
	return p.Error.Kind
}

// metricValue is the percentage when the provider reports one, else the raw
// used amount.
func metricValue(m model.Metric) float64 {
	if m.UsedPercent != nil {
		return *m.UsedPercent
	}
	return m.Used
}

func diffSnapshots(prev, curr Snapshot) []Change {
	before := make(map[string]cli.UsagePayload, len(prev.Providers))
	for _, p := range prev.Providers {
		before[payloadKey(p)] = p
	}

	var changes []Change
	for _, p := range curr.Providers {
		old, seen := before[payloadKey(p)]
		if !seen {
			continue
		}
		if from, to := payloadError(old), payloadError(p); from != to {
			changes = append(changes, Change{Provider: p.Provider, Account: p.Account, ErrorFrom: from, ErrorTo: to})
			continue
		}
		if p.Snapshot == nil || old.Snapshot == nil {
			continue
		}
		oldMetrics := make(map[string]model.Metric, len(old.Snapshot.Metrics))
		for _, m := range old.Snapshot.Metrics {
			oldMetrics[m.Label] = m
		}
		for _, m := range p.Snapshot.Metrics {
			om, ok := oldMetrics[m.Label]
			if !ok {
				continue
			}
			if a, b := metricValue(om), metricValue(m); a != b {
				changes = append(changes, Change{
					Provider: p.Provider,
					Account:  p.Account,
					Metric:   m.Label,
					Previous: model.Float(a),
					Current:  model.Float(b),
				})
			}
		}
	}
	return changes
}

func (s *Service) publishEvent(ev Event) {
	s.mu.Lock()
	s.events = append(s.events, ev)
	if len(s.events) > s.cfg.EventsBuffer {
		s.events = s.events[len(s.events)-s.cfg.EventsBuffer:]
	}

	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
	s.mu.Unlock()
}

func (s *Service) snapshotStatus() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Status{
		StartedAt:       s.startedAt,
		LastPollAt:      s.lastPollAt,
		PollIntervalSec: int(s.cfg.Interval.Seconds()),
		PollCount:       s.pollCount,
		Snapshot:        s.snapshot,
		LastError:       s.lastError,
		EventCount:      len(s.events),
		SubscriberCount: len(s.subs),
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Service) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.snapshotStatus())
}

func (s *Service) handleEvents(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	events := make([]Event, len(s.events))
	copy(events, s.events)
	s.mu.RUnlock()

	writeJSON(w, http.StatusOK, events)
}

func (s *Service) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if !s.limiter.Allow() {
		w.Header().Set("Retry-After", strconv.Itoa(max(int(s.cfg.RefreshEvery.Seconds()), 1)))
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "refresh rate limited"})
		return
	}
	s.pollOnce(r.Context())
	writeJSON(w, http.StatusOK, s.snapshotStatus())
}

func (s *Service) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := make(chan Event, 16)
	id := s.addSubscriber(ch)
	defer s.removeSubscriber(id)

	// Send current snapshot immediately.
	current := Event{
		Type:      "snapshot",
		Timestamp: time.Now(),
		Snapshot:  s.snapshotStatus().Snapshot,
	}
	writeSSE(w, current)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev := <-ch:
			writeSSE(w, ev)
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if ev.ID > 0 {
		_, _ = fmt.Fprintf(w, "id: %d\n", ev.ID)
	}
	_, _ = fmt.Fprintf(w, "event: %s\n", ev.Type)
	_, _ = fmt.Fprintf(w, "data: %s\n\n", data)
}

func (s *Service) addSubscriber(ch chan Event) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSubID++
	id := s.nextSubID
	s.subs[id] = ch
	return id
}

func (s *Service) removeSubscriber(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, id)
}
