package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/gustaf30/nexus/internal/credential"
	"github.com/gustaf30/nexus/internal/model"
	"github.com/gustaf30/nexus/internal/notify"
	"github.com/gustaf30/nexus/internal/plugin"
	"github.com/gustaf30/nexus/internal/reconcile"
	"github.com/gustaf30/nexus/internal/sandbox"
	"github.com/gustaf30/nexus/internal/store"
	"github.com/gustaf30/nexus/tests/testutil"
)

// scriptedPlugin answers polls from a queue of canned outcomes and counts
// invocations.
type scriptedPlugin struct {
	source string

	mu      sync.Mutex
	calls   int
	pollFn  func(ctx context.Context, config []byte) ([]byte, error)
	checkFn func(ctx context.Context, config []byte) ([]byte, error)
}

func (p *scriptedPlugin) Source() string { return p.source }

func (p *scriptedPlugin) Poll(ctx context.Context, config []byte) ([]byte, error) {
	p.mu.Lock()
	p.calls++
	fn := p.pollFn
	p.mu.Unlock()
	if fn == nil {
		return plugin.MarshalResult(plugin.PollResult{})
	}
	return fn(ctx, config)
}

func (p *scriptedPlugin) CheckConnection(ctx context.Context, config []byte) ([]byte, error) {
	if p.checkFn == nil {
		return plugin.MarshalStatus(plugin.ConnectionStatus{OK: true, StatusCode: 200})
	}
	return p.checkFn(ctx, config)
}

func (p *scriptedPlugin) pollCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type fixture struct {
	sched  *Scheduler
	store  store.Store
	plugin *scriptedPlugin
	creds  *credential.MemoryStore
}

func newFixture(t *testing.T, sourceID string) *fixture {
	t.Helper()

	s := testutil.NewTestStore(t)
	ctx := context.Background()
	if err := s.SeedDefaultWeights(ctx); err != nil {
		t.Fatalf("seeding weights: %v", err)
	}

	p := &scriptedPlugin{source: sourceID}
	registry := plugin.NewRegistry(p)
	executor, err := sandbox.NewExecutor(registry, time.Second, slog.Default())
	if err != nil {
		t.Fatalf("creating executor: %v", err)
	}

	creds := credential.NewMemoryStore()
	sched := New(Options{
		Store:      s,
		Executor:   executor,
		Reconciler: reconcile.New(s, slog.Default()),
		Notifier:   notify.NewNotifier(s, &notify.LogDispatcher{}, 10, slog.Default()),
		Creds:      creds,
		Sources: []model.SourceConfig{
			{ID: sourceID, Type: sourceID, Enabled: true, PollIntervalSec: 600},
		},
		Log: slog.Default(),
	})

	return &fixture{sched: sched, store: s, plugin: p, creds: creds}
}

func jiraPayload(t *testing.T, ids ...string) []byte {
	t.Helper()
	result := plugin.PollResult{}
	for _, id := range ids {
		result.Items = append(result.Items, plugin.PollItem{
			ID:        id,
			Source:    "jira",
			SourceID:  id,
			Kind:      model.KindTicket,
			Title:     "Ticket " + id,
			URL:       "https://jira.example.com/browse/" + id,
			Timestamp: 1700000000,
			Metadata:  map[string]any{},
			Tags:      []string{},
		})
	}
	raw, err := plugin.MarshalResult(result)
	if err != nil {
		t.Fatalf("marshaling payload: %v", err)
	}
	return raw
}

func TestPollSuccessUpdatesLifecycleAndStore(t *testing.T) {
	f := newFixture(t, "jira")
	ctx := context.Background()

	f.plugin.pollFn = func(context.Context, []byte) ([]byte, error) {
		return jiraPayload(t, "PROJ-1", "PROJ-2"), nil
	}

	if err := f.sched.syncLifecycles(ctx); err != nil {
		t.Fatalf("syncing lifecycles: %v", err)
	}
	lc, err := f.store.GetLifecycle(ctx, "jira")
	if err != nil || lc == nil {
		t.Fatalf("lifecycle row missing after sync: %v", err)
	}

	f.sched.now = func() time.Time { return time.Unix(5000, 0) }
	if !f.sched.tryAcquire("jira") {
		t.Fatal("acquiring jira slot")
	}
	f.sched.poll(ctx, *lc)

	items, err := f.store.GetItems(ctx, model.ItemFilter{})
	if err != nil {
		t.Fatalf("getting items: %v", err)
	}
	if len(items) != 2 {
		t.Errorf("stored items = %d, want 2", len(items))
	}

	lc, err = f.store.GetLifecycle(ctx, "jira")
	if err != nil {
		t.Fatalf("getting lifecycle: %v", err)
	}
	if lc.Status != model.StatusActive {
		t.Errorf("status = %s, want active", lc.Status)
	}
	if lc.NextEligibleAt != 5000+600 {
		t.Errorf("next = %d, want interval from poll time", lc.NextEligibleAt)
	}
}

func TestPollFailureEntersBackoff(t *testing.T) {
	f := newFixture(t, "jira")
	ctx := context.Background()

	f.plugin.pollFn = func(context.Context, []byte) ([]byte, error) {
		return nil, errors.New("upstream unavailable")
	}

	if err := f.sched.syncLifecycles(ctx); err != nil {
		t.Fatalf("syncing lifecycles: %v", err)
	}
	lc, _ := f.store.GetLifecycle(ctx, "jira")

	f.sched.now = func() time.Time { return time.Unix(5000, 0) }
	f.sched.tryAcquire("jira")
	f.sched.poll(ctx, *lc)

	lc, err := f.store.GetLifecycle(ctx, "jira")
	if err != nil {
		t.Fatalf("getting lifecycle: %v", err)
	}
	if lc.Status != model.StatusBackoff {
		t.Errorf("status = %s, want backoff", lc.Status)
	}
	if lc.ConsecutiveErrors != 1 {
		t.Errorf("count = %d, want 1", lc.ConsecutiveErrors)
	}
	if lc.NextEligibleAt != 5000+60 {
		t.Errorf("next = %d, want one minute penalty", lc.NextEligibleAt)
	}
}

func TestPollNowRespectsBackoffWindow(t *testing.T) {
	f := newFixture(t, "jira")
	ctx := context.Background()

	f.sched.now = func() time.Time { return time.Unix(5000, 0) }
	err := f.store.UpsertLifecycle(ctx, model.Lifecycle{
		SourceID:          "jira",
		Enabled:           true,
		Status:            model.StatusBackoff,
		PollIntervalSec:   600,
		ConsecutiveErrors: 2,
		NextEligibleAt:    6000,
	})
	if err != nil {
		t.Fatalf("seeding lifecycle: %v", err)
	}

	if err := f.sched.PollNow(ctx, "jira"); !errors.Is(err, ErrNotEligible) {
		t.Errorf("PollNow during backoff = %v, want ErrNotEligible", err)
	}
	if f.plugin.pollCalls() != 0 {
		t.Error("backoff window must also gate manual polls")
	}

	// Once the window elapses the same request goes through.
	f.sched.now = func() time.Time { return time.Unix(6001, 0) }
	if err := f.sched.PollNow(ctx, "jira"); err != nil {
		t.Errorf("PollNow after window = %v, want nil", err)
	}
	f.sched.wg.Wait()
	if f.plugin.pollCalls() != 1 {
		t.Errorf("poll calls = %d, want 1", f.plugin.pollCalls())
	}
}

func TestPollAllNowSkipsIneligibleSources(t *testing.T) {
	f := newFixture(t, "jira")
	ctx := context.Background()

	f.plugin.pollFn = func(context.Context, []byte) ([]byte, error) {
		return jiraPayload(t, "PROJ-1"), nil
	}

	if err := f.sched.syncLifecycles(ctx); err != nil {
		t.Fatalf("syncing lifecycles: %v", err)
	}
	f.sched.now = func() time.Time { return time.Unix(5000, 0) }

	launched, err := f.sched.PollAllNow(ctx)
	if err != nil {
		t.Fatalf("PollAllNow: %v", err)
	}
	if launched != 1 {
		t.Errorf("launched = %d, want 1", launched)
	}
	f.sched.wg.Wait()

	// The source is now inside its regular interval; a second request
	// launches nothing.
	launched, err = f.sched.PollAllNow(ctx)
	if err != nil {
		t.Fatalf("PollAllNow again: %v", err)
	}
	if launched != 0 {
		t.Errorf("launched = %d, want 0 inside the interval", launched)
	}
	if f.plugin.pollCalls() != 1 {
		t.Errorf("poll calls = %d, want 1", f.plugin.pollCalls())
	}
}

func TestPollNowUnknownSource(t *testing.T) {
	f := newFixture(t, "jira")
	if err := f.sched.PollNow(context.Background(), "gitlab"); err == nil {
		t.Error("PollNow for unknown source should fail")
	}
}

func TestSweepSkipsIneligibleSources(t *testing.T) {
	f := newFixture(t, "jira")
	ctx := context.Background()

	f.sched.now = func() time.Time { return time.Unix(5000, 0) }
	err := f.store.UpsertLifecycle(ctx, model.Lifecycle{
		SourceID:        "jira",
		Enabled:         true,
		Status:          model.StatusBackoff,
		PollIntervalSec: 600,
		NextEligibleAt:  9999,
	})
	if err != nil {
		t.Fatalf("seeding lifecycle: %v", err)
	}

	f.sched.sweep(ctx)
	f.sched.wg.Wait()
	if f.plugin.pollCalls() != 0 {
		t.Errorf("sweep polled an ineligible source %d times", f.plugin.pollCalls())
	}
}

func TestSweepPollsEligibleSource(t *testing.T) {
	f := newFixture(t, "jira")
	ctx := context.Background()

	f.plugin.pollFn = func(context.Context, []byte) ([]byte, error) {
		return jiraPayload(t, "PROJ-1"), nil
	}

	if err := f.sched.syncLifecycles(ctx); err != nil {
		t.Fatalf("syncing lifecycles: %v", err)
	}
	f.sched.now = func() time.Time { return time.Unix(5000, 0) }

	f.sched.sweep(ctx)
	f.sched.wg.Wait()
	if f.plugin.pollCalls() != 1 {
		t.Errorf("poll calls = %d, want 1", f.plugin.pollCalls())
	}
}

func TestSweepIsolatesStuckSource(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	if err := s.SeedDefaultWeights(ctx); err != nil {
		t.Fatalf("seeding weights: %v", err)
	}

	healthy := &scriptedPlugin{source: "jira"}
	healthy.pollFn = func(context.Context, []byte) ([]byte, error) {
		return jiraPayload(t, "PROJ-1"), nil
	}
	stuck := &scriptedPlugin{source: "bitbucket"}
	stuck.pollFn = func(ctx context.Context, _ []byte) ([]byte, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	executor, err := sandbox.NewExecutor(
		plugin.NewRegistry(healthy, stuck), 100*time.Millisecond, slog.Default(),
	)
	if err != nil {
		t.Fatalf("creating executor: %v", err)
	}

	sched := New(Options{
		Store:      s,
		Executor:   executor,
		Reconciler: reconcile.New(s, slog.Default()),
		Notifier:   notify.NewNotifier(s, &notify.LogDispatcher{}, 10, slog.Default()),
		Creds:      credential.NewMemoryStore(),
		Sources: []model.SourceConfig{
			{ID: "jira", Type: "jira", Enabled: true, PollIntervalSec: 600},
			{ID: "bitbucket", Type: "bitbucket", Enabled: true, PollIntervalSec: 600},
		},
		Log: slog.Default(),
	})

	if err := sched.syncLifecycles(ctx); err != nil {
		t.Fatalf("syncing lifecycles: %v", err)
	}
	sched.now = func() time.Time { return time.Unix(5000, 0) }

	// One sweep launches both polls; the stuck one blocks until its
	// deadline while the healthy one completes.
	sched.sweep(ctx)
	sched.wg.Wait()

	items, err := s.GetItems(ctx, model.ItemFilter{})
	if err != nil {
		t.Fatalf("getting items: %v", err)
	}
	if len(items) != 1 || items[0].ID != "PROJ-1" {
		t.Errorf("healthy source items = %+v, want only PROJ-1", items)
	}

	jiraLC, err := s.GetLifecycle(ctx, "jira")
	if err != nil {
		t.Fatalf("getting jira lifecycle: %v", err)
	}
	if jiraLC.Status != model.StatusActive {
		t.Errorf("healthy status = %s, want active", jiraLC.Status)
	}

	bbLC, err := s.GetLifecycle(ctx, "bitbucket")
	if err != nil {
		t.Fatalf("getting bitbucket lifecycle: %v", err)
	}
	if bbLC.Status != model.StatusBackoff || bbLC.ConsecutiveErrors != 1 {
		t.Errorf("stuck source = %s/%d, want backoff with one error",
			bbLC.Status, bbLC.ConsecutiveErrors)
	}
}

func TestPollRoutesByInstanceID(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	if err := s.SeedDefaultWeights(ctx); err != nil {
		t.Fatalf("seeding weights: %v", err)
	}

	p := &scriptedPlugin{source: "jira-work"}
	p.pollFn = func(context.Context, []byte) ([]byte, error) {
		return plugin.MarshalResult(plugin.PollResult{
			Items: []plugin.PollItem{{
				ID:        "jira-work-PROJ-1",
				Source:    "jira-work",
				SourceID:  "PROJ-1",
				Kind:      model.KindTicket,
				Title:     "Ticket PROJ-1",
				URL:       "https://jira.example.com/browse/PROJ-1",
				Timestamp: 1700000000,
				Metadata:  map[string]any{},
				Tags:      []string{},
			}},
			Notifications: []plugin.PollNotification{{
				ItemID:  "jira-work-PROJ-1",
				Reasons: []string{"assigned_to_me", "priority_p1_blocker"},
			}},
		})
	}

	executor, err := sandbox.NewExecutor(plugin.NewRegistry(p), time.Second, slog.Default())
	if err != nil {
		t.Fatalf("creating executor: %v", err)
	}

	sched := New(Options{
		Store:      s,
		Executor:   executor,
		Reconciler: reconcile.New(s, slog.Default()),
		Notifier:   notify.NewNotifier(s, &notify.LogDispatcher{}, 10, slog.Default()),
		Creds:      credential.NewMemoryStore(),
		Sources: []model.SourceConfig{
			// An instance identifier distinct from the adapter type.
			{ID: "jira-work", Type: "jira", Enabled: true, PollIntervalSec: 600},
		},
		Log: slog.Default(),
	})

	if err := sched.syncLifecycles(ctx); err != nil {
		t.Fatalf("syncing lifecycles: %v", err)
	}
	sched.now = func() time.Time { return time.Unix(5000, 0) }
	sched.sweep(ctx)
	sched.wg.Wait()

	lc, err := s.GetLifecycle(ctx, "jira-work")
	if err != nil {
		t.Fatalf("getting lifecycle: %v", err)
	}
	if lc.Status != model.StatusActive {
		t.Errorf("status = %s (last error %q), want active", lc.Status, lc.LastError)
	}

	// Weights resolve through the type, so the jira defaults score the
	// candidate: assigned_to_me(3) + priority_p1_blocker(4) -> high.
	ns, err := s.GetActiveNotifications(ctx)
	if err != nil {
		t.Fatalf("getting notifications: %v", err)
	}
	if len(ns) != 1 || ns[0].Urgency != model.UrgencyHigh {
		t.Errorf("notifications = %+v, want one high", ns)
	}
}

func TestAcquireSerializesPerSource(t *testing.T) {
	f := newFixture(t, "jira")

	if !f.sched.tryAcquire("jira") {
		t.Fatal("first acquire should succeed")
	}
	if f.sched.tryAcquire("jira") {
		t.Error("second acquire for the same source should fail")
	}
	f.sched.release("jira")
	if !f.sched.tryAcquire("jira") {
		t.Error("acquire after release should succeed")
	}
}

func TestSyncLifecyclesHonorsConfigDisable(t *testing.T) {
	f := newFixture(t, "jira")
	ctx := context.Background()

	cfg := f.sched.configs["jira"]
	cfg.Enabled = false
	f.sched.configs["jira"] = cfg

	if err := f.sched.syncLifecycles(ctx); err != nil {
		t.Fatalf("syncing lifecycles: %v", err)
	}
	lc, err := f.store.GetLifecycle(ctx, "jira")
	if err != nil {
		t.Fatalf("getting lifecycle: %v", err)
	}
	if lc.Enabled {
		t.Error("config-disabled source should have a disabled lifecycle row")
	}
}

func TestSyncLifecyclesSyncsInterval(t *testing.T) {
	f := newFixture(t, "jira")
	ctx := context.Background()

	if err := f.sched.syncLifecycles(ctx); err != nil {
		t.Fatalf("first sync: %v", err)
	}

	cfg := f.sched.configs["jira"]
	cfg.PollIntervalSec = 300
	f.sched.configs["jira"] = cfg

	if err := f.sched.syncLifecycles(ctx); err != nil {
		t.Fatalf("second sync: %v", err)
	}
	lc, err := f.store.GetLifecycle(ctx, "jira")
	if err != nil {
		t.Fatalf("getting lifecycle: %v", err)
	}
	if lc.PollIntervalSec != 300 {
		t.Errorf("interval = %d, want config value 300", lc.PollIntervalSec)
	}
}

func TestCheckConnectionUsesCandidateCredential(t *testing.T) {
	f := newFixture(t, "jira")

	var seen string
	f.plugin.checkFn = func(_ context.Context, config []byte) ([]byte, error) {
		cfg, err := plugin.ParseConfig(config)
		if err != nil {
			return nil, err
		}
		seen = cfg.Credential
		return plugin.MarshalStatus(plugin.ConnectionStatus{OK: true, StatusCode: 200})
	}

	status, err := f.sched.CheckConnection(context.Background(), "jira", "candidate-token")
	if err != nil {
		t.Fatalf("CheckConnection: %v", err)
	}
	if !status.OK || status.StatusCode != 200 {
		t.Errorf("status = %+v, want ok/200", status)
	}
	if seen != "candidate-token" {
		t.Errorf("plugin saw credential %q, want candidate", seen)
	}
}
