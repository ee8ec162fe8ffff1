// Package scheduler drives the polling loop. A heartbeat sweep finds
// sources whose next eligible time has passed, runs each poll through the
// sandbox executor and the reconciler, and feeds the outcome back into the
// per-source lifecycle state machine. Polls for one source never overlap;
// polls for different sources run concurrently.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/gustaf30/nexus/internal/credential"
	"github.com/gustaf30/nexus/internal/lifecycle"
	"github.com/gustaf30/nexus/internal/model"
	"github.com/gustaf30/nexus/internal/notify"
	"github.com/gustaf30/nexus/internal/plugin"
	"github.com/gustaf30/nexus/internal/reconcile"
	"github.com/gustaf30/nexus/internal/sandbox"
	"github.com/gustaf30/nexus/internal/store"
)

const (
	// defaultHeartbeat is how often the scheduler sweeps for eligible
	// sources when no override is configured.
	defaultHeartbeat = 30 * time.Second

	// notificationRetention is how long dismissed notifications are kept
	// before the nightly maintenance job prunes them.
	notificationRetention = 30 * 24 * time.Hour

	// maintenanceSchedule runs the prune job at 04:00 local time.
	maintenanceSchedule = "0 4 * * *"
)

var (
	// ErrNotEligible is returned by PollNow when the source is inside a
	// backoff window, auth-parked, or disabled.
	ErrNotEligible = errors.New("source is not eligible to poll")

	// ErrPollInProgress is returned by PollNow when a poll for the source
	// is already running.
	ErrPollInProgress = errors.New("poll already in progress")
)

// Event reports one completed poll attempt.
type Event struct {
	SourceID  string
	ItemCount int
	Err       error
}

// Scheduler owns the polling loop for all configured sources.
type Scheduler struct {
	store      store.Store
	executor   *sandbox.Executor
	reconciler *reconcile.Reconciler
	notifier   *notify.Notifier
	creds      credential.Store
	configs    map[string]model.SourceConfig
	heartbeat  time.Duration
	log        *slog.Logger
	now        func() time.Time

	mu       sync.Mutex
	inFlight map[string]bool
	wg       sync.WaitGroup
	events   chan Event
}

// Options bundles the scheduler's collaborators.
type Options struct {
	Store      store.Store
	Executor   *sandbox.Executor
	Reconciler *reconcile.Reconciler
	Notifier   *notify.Notifier
	Creds      credential.Store
	Sources    []model.SourceConfig
	Heartbeat  time.Duration
	Log        *slog.Logger
}

// New creates a Scheduler. It does not start polling; call Run.
func New(opts Options) *Scheduler {
	heartbeat := opts.Heartbeat
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeat
	}
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}

	configs := make(map[string]model.SourceConfig, len(opts.Sources))
	for _, cfg := range opts.Sources {
		configs[cfg.ID] = cfg
	}

	return &Scheduler{
		store:      opts.Store,
		executor:   opts.Executor,
		reconciler: opts.Reconciler,
		notifier:   opts.Notifier,
		creds:      opts.Creds,
		configs:    configs,
		heartbeat:  heartbeat,
		log:        log.With("component", "scheduler"),
		now:        time.Now,
		inFlight:   make(map[string]bool),
		events:     make(chan Event, 16),
	}
}

// Events returns the completed-poll event stream. Events are dropped
// rather than queued when no one is reading.
func (s *Scheduler) Events() <-chan Event {
	return s.events
}

// Run syncs lifecycle rows from the static config, starts the nightly
// maintenance job, and sweeps for eligible sources every heartbeat until
// ctx is cancelled. It returns after all in-flight polls finish.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.syncLifecycles(ctx); err != nil {
		return err
	}

	maintenance := cron.New()
	if _, err := maintenance.AddFunc(maintenanceSchedule, func() {
		s.pruneNotifications(context.Background())
	}); err != nil {
		return fmt.Errorf("registering maintenance job: %w", err)
	}
	maintenance.Start()
	defer maintenance.Stop()

	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()

	// First sweep happens immediately, not one heartbeat in.
	s.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			return ctx.Err()
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// PollNow requests an immediate poll of one source. Backoff windows,
// auth parking, and the disabled state are respected: a manual request is
// not an override.
func (s *Scheduler) PollNow(ctx context.Context, sourceID string) error {
	lc, err := s.store.GetLifecycle(ctx, sourceID)
	if err != nil {
		return err
	}
	if lc == nil {
		return fmt.Errorf("unknown source %q", sourceID)
	}
	if !lc.Pollable(s.now().Unix()) {
		return fmt.Errorf("source %q: %w", sourceID, ErrNotEligible)
	}
	if !s.tryAcquire(sourceID) {
		return fmt.Errorf("source %q: %w", sourceID, ErrPollInProgress)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.poll(ctx, *lc)
	}()
	return nil
}

// PollAllNow requests an immediate poll of every configured source.
// Sources that are ineligible or already mid-poll are skipped; the count
// of polls actually launched is returned.
func (s *Scheduler) PollAllNow(ctx context.Context) (int, error) {
	launched := 0
	for id := range s.configs {
		err := s.PollNow(ctx, id)
		switch {
		case err == nil:
			launched++
		case errors.Is(err, ErrNotEligible), errors.Is(err, ErrPollInProgress):
			continue
		default:
			return launched, err
		}
	}
	return launched, nil
}

// CheckConnection runs the checkConnection operation for one source with
// the given credential in place of the stored one. It does not persist
// anything; callers store the credential only after a successful check.
func (s *Scheduler) CheckConnection(
	ctx context.Context,
	sourceID, secret string,
) (*plugin.ConnectionStatus, error) {
	cfg, ok := s.configs[sourceID]
	if !ok {
		return nil, fmt.Errorf("unknown source %q", sourceID)
	}

	blob, err := plugin.Config{Settings: cfg.Settings, Credential: secret}.Marshal()
	if err != nil {
		return nil, err
	}

	raw, err := s.executor.Execute(ctx, sourceID, plugin.OpCheckConnection, blob)
	if err != nil {
		return nil, err
	}
	return reconcile.ApplyConnectionCheck(sourceID, raw)
}

// Reenable clears a source's error history and makes it immediately
// eligible again, after an auto-disable or an auth failure.
func (s *Scheduler) Reenable(ctx context.Context, sourceID string) error {
	lc, err := s.store.GetLifecycle(ctx, sourceID)
	if err != nil {
		return err
	}
	if lc == nil {
		return fmt.Errorf("unknown source %q", sourceID)
	}
	return s.store.UpsertLifecycle(ctx, lifecycle.Reenable(*lc))
}

// syncLifecycles makes the lifecycle table agree with the static config:
// new sources get a Configured row, intervals follow the config, and a
// source removed from the config keeps its row but is never swept. An
// auto-disabled source stays disabled until explicitly re-enabled, even
// if the config still marks it enabled.
func (s *Scheduler) syncLifecycles(ctx context.Context) error {
	for id, cfg := range s.configs {
		lc, err := s.store.GetLifecycle(ctx, id)
		if err != nil {
			return err
		}

		if lc == nil {
			fresh := model.Lifecycle{
				SourceID:        id,
				Enabled:         cfg.Enabled,
				Status:          model.StatusConfigured,
				PollIntervalSec: cfg.PollIntervalSec,
			}
			if err := s.store.UpsertLifecycle(ctx, fresh); err != nil {
				return err
			}
			continue
		}

		updated := *lc
		updated.PollIntervalSec = cfg.PollIntervalSec
		if !cfg.Enabled {
			updated.Enabled = false
		}
		if err := s.store.UpsertLifecycle(ctx, updated); err != nil {
			return err
		}
	}
	return nil
}

// sweep launches a poll for every configured source whose eligibility
// window has opened and that is not already mid-poll.
func (s *Scheduler) sweep(ctx context.Context) {
	lifecycles, err := s.store.GetLifecycles(ctx)
	if err != nil {
		s.log.Error("listing lifecycles", "error", err)
		return
	}

	now := s.now().Unix()
	for _, lc := range lifecycles {
		if _, configured := s.configs[lc.SourceID]; !configured {
			continue
		}
		if !lc.Pollable(now) {
			continue
		}
		if !s.tryAcquire(lc.SourceID) {
			continue
		}

		s.wg.Add(1)
		go func(lc model.Lifecycle) {
			defer s.wg.Done()
			s.poll(ctx, lc)
		}(lc)
	}
}

// poll runs one complete poll cycle for a source: config blob, sandboxed
// execution, reconciliation, lifecycle transition, delivery.
func (s *Scheduler) poll(ctx context.Context, lc model.Lifecycle) {
	defer s.release(lc.SourceID)

	sourceID := lc.SourceID
	sourceType := s.configs[sourceID].Type
	if sourceType == "" {
		sourceType = sourceID
	}

	blob, err := s.configBlob(sourceID)
	if err == nil {
		var raw []byte
		raw, err = s.executor.Execute(ctx, sourceID, plugin.OpPoll, blob)
		if err == nil {
			var result *reconcile.Result
			result, err = s.reconciler.Apply(ctx, sourceID, sourceType, raw)
			if err == nil {
				s.finishSuccess(ctx, lc, result)
				return
			}
		}
	}

	if ctx.Err() != nil {
		// Shutdown, not a source failure; leave the lifecycle alone.
		return
	}
	s.finishFailure(ctx, lc, err)
}

func (s *Scheduler) finishSuccess(ctx context.Context, lc model.Lifecycle, result *reconcile.Result) {
	updated := lifecycle.ApplySuccess(lc, s.now())
	if err := s.store.UpsertLifecycle(ctx, updated); err != nil {
		s.log.Error("persisting lifecycle", "source", lc.SourceID, "error", err)
	}

	s.log.Info("poll complete",
		"source", lc.SourceID,
		"items", result.ItemCount,
		"notifications", len(result.Notifications))

	if s.notifier != nil && len(result.Notifications) > 0 {
		s.notifier.Deliver(ctx, result.Notifications)
	}
	s.emit(Event{SourceID: lc.SourceID, ItemCount: result.ItemCount})
}

func (s *Scheduler) finishFailure(ctx context.Context, lc model.Lifecycle, pollErr error) {
	updated := lifecycle.ApplyFailure(lc, pollErr, s.now())
	if err := s.store.UpsertLifecycle(ctx, updated); err != nil {
		s.log.Error("persisting lifecycle", "source", lc.SourceID, "error", err)
	}

	s.log.Warn("poll failed",
		"source", lc.SourceID,
		"kind", plugin.Classify(pollErr).String(),
		"status", string(updated.Status),
		"consecutive_errors", updated.ConsecutiveErrors,
		"error", pollErr)
	s.emit(Event{SourceID: lc.SourceID, Err: pollErr})
}

// configBlob assembles the invocation config for one source. A missing
// credential is not fatal; sources that need one fail the poll with an
// auth error of their own.
func (s *Scheduler) configBlob(sourceID string) ([]byte, error) {
	cfg := s.configs[sourceID]

	secret, err := s.creds.Get(sourceID)
	if err != nil && !errors.Is(err, credential.ErrNotFound) {
		return nil, fmt.Errorf("resolving credential for %s: %w", sourceID, err)
	}

	return plugin.Config{Settings: cfg.Settings, Credential: secret}.Marshal()
}

func (s *Scheduler) pruneNotifications(ctx context.Context) {
	cutoff := s.now().Add(-notificationRetention)
	pruned, err := s.store.PruneDismissedNotifications(ctx, cutoff)
	if err != nil {
		s.log.Error("pruning dismissed notifications", "error", err)
		return
	}
	if pruned > 0 {
		s.log.Info("pruned dismissed notifications", "count", pruned)
	}
}

func (s *Scheduler) tryAcquire(sourceID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight[sourceID] {
		return false
	}
	s.inFlight[sourceID] = true
	return true
}

func (s *Scheduler) release(sourceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, sourceID)
}

func (s *Scheduler) emit(ev Event) {
	select {
	case s.events <- ev:
	default:
	}
}
