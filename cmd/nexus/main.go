package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gustaf30/nexus/internal/credential"
	"github.com/gustaf30/nexus/internal/model"
	"github.com/gustaf30/nexus/internal/notify"
	"github.com/gustaf30/nexus/internal/plugin"
	"github.com/gustaf30/nexus/internal/reconcile"
	"github.com/gustaf30/nexus/internal/sandbox"
	"github.com/gustaf30/nexus/internal/scheduler"
	"github.com/gustaf30/nexus/internal/source/bitbucket"
	"github.com/gustaf30/nexus/internal/source/email"
	"github.com/gustaf30/nexus/internal/source/jira"
	"github.com/gustaf30/nexus/internal/store"
)

func main() {
	var (
		cfgPath string
		debug   bool
	)
	flag.StringVar(&cfgPath, "config", model.DefaultConfigPath(), "path to config yaml")
	flag.BoolVar(&debug, "debug", false, "enable debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(log)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfgPath, log); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfgPath string, log *slog.Logger) error {
	cfg, err := model.LoadConfig(cfgPath)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	s, err := store.NewSQLiteStore(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.SeedDefaultWeights(ctx); err != nil {
		return err
	}

	registry, err := buildRegistry(cfg, log)
	if err != nil {
		return err
	}

	executor, err := sandbox.NewExecutor(
		registry,
		time.Duration(cfg.Scheduler.ExecuteTimeoutSec)*time.Second,
		log,
	)
	if err != nil {
		return err
	}

	notifier := notify.NewNotifier(s, &notify.LogDispatcher{Log: log}, cfg.Notify.RatePerMinute, log)

	sched := scheduler.New(scheduler.Options{
		Store:      s,
		Executor:   executor,
		Reconciler: reconcile.New(s, log),
		Notifier:   notifier,
		Creds:      credential.NewKeyringStore(),
		Sources:    cfg.Sources,
		Heartbeat:  time.Duration(cfg.Scheduler.HeartbeatSec) * time.Second,
		Log:        log,
	})

	log.Info("starting",
		"config", cfgPath,
		"database", cfg.DatabasePath,
		"sources", registry.Sources())

	return sched.Run(ctx)
}

// buildRegistry assembles one plugin instance per configured source:
// built-ins by type, plus any external process plugins discovered in the
// plugins directory.
func buildRegistry(cfg *model.AppConfig, log *slog.Logger) (*plugin.Registry, error) {
	registry := plugin.NewRegistry()

	for _, src := range cfg.Sources {
		switch src.Type {
		case string(model.SourceTypeJira):
			registry.Register(jira.New(src.ID))
		case string(model.SourceTypeBitbucket):
			registry.Register(bitbucket.New(src.ID))
		case string(model.SourceTypeEmail):
			registry.Register(email.New(src.ID))
		}
	}

	external, err := sandbox.DiscoverProcessPlugins(cfg.PluginsDir)
	if err != nil {
		return nil, err
	}
	for _, p := range external {
		log.Info("discovered external plugin", "source", p.Source())
		registry.Register(p)
	}

	return registry, nil
}
