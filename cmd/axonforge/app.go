package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/axonforge/engine/internal/autoloop"
	"github.com/axonforge/engine/internal/config"
	"github.com/axonforge/engine/internal/eventbus"
	"github.com/axonforge/engine/internal/execstore"
	"github.com/axonforge/engine/internal/forge"
	"github.com/axonforge/engine/internal/kv"
	"github.com/axonforge/engine/internal/lifecycle"
	"github.com/axonforge/engine/internal/llmclient"
	"github.com/axonforge/engine/internal/monitor"
	"github.com/axonforge/engine/internal/neuron"
	"github.com/axonforge/engine/internal/observability"
	"github.com/axonforge/engine/internal/orchestrator"
	"github.com/axonforge/engine/internal/scheduler"
	"github.com/axonforge/engine/internal/thoughttree"
	"github.com/axonforge/engine/internal/tools"
)

// App wires every subsystem together from a loaded config. It is the
// single place that knows how the pieces fit; cmd/axonforge's commands
// and the HTTP server only ever talk to App.
type App struct {
	cfg    *config.Config
	logger *observability.Logger
	stdlog *slog.Logger

	bus      *eventbus.Bus
	tree     *thoughttree.Tree
	registry *tools.Registry
	kvStore  kv.Store
	execDB   execstore.Store

	llm          *llmclient.Client
	orchestrator *orchestrator.Orchestrator
	forge        *forge.Forge
	forgedStore  forge.Store
	autoloop     *autoloop.Loop
	reconciler   *lifecycle.Reconciler
	monitor      *monitor.Monitor
	scheduler    *scheduler.Scheduler

	metrics      *observability.Metrics
	promRegistry *prometheus.Registry
}

// NewApp builds every collaborator from cfg. Errors are all fatal at
// startup: a bad DSN or unreadable tools directory means the process
// should not come up half-wired.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := observability.NewLogger(observability.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: os.Stderr,
	})
	stdlog := slog.New(slog.NewJSONHandler(os.Stderr, nil)).With("component", "axonforge")

	app := &App{cfg: cfg, logger: logger, stdlog: stdlog}

	app.bus = eventbus.New(cfg.EventBus.MaxSize)
	app.tree = thoughttree.New()
	app.registry = tools.NewRegistry()
	app.promRegistry = prometheus.NewRegistry()
	app.metrics = observability.NewMetrics(app.promRegistry)

	if n, err := app.registry.LoadFromDirectory(ctx, cfg.Tools.ToolsDir, logger); err != nil {
		stdlog.Warn("tool directory load failed", "dir", cfg.Tools.ToolsDir, "error", err)
	} else {
		stdlog.Info("loaded tool manifests", "count", n, "dir", cfg.Tools.ToolsDir)
	}

	switch cfg.KV.Backend {
	case "sql":
		store, err := kv.NewSQLStore(ctx, cfg.SQL.DSN)
		if err != nil {
			return nil, fmt.Errorf("open kv store: %w", err)
		}
		app.kvStore = store
	default:
		app.kvStore = kv.NewMemoryStore()
	}

	switch cfg.SQL.Backend {
	case "postgres":
		store, err := execstore.NewSQLStoreFromDSN(cfg.SQL.DSN)
		if err != nil {
			return nil, fmt.Errorf("open execution store: %w", err)
		}
		app.execDB = store
	default:
		app.execDB = execstore.NewMemoryStore()
	}

	app.llm = llmclient.New(cfg.LLM)

	intentCache := neuron.NewIntentCache()
	intentNeuron := neuron.NewIntentNeuron(app.llm, intentCache)
	generativeNeuron := neuron.NewGenerativeNeuron(app.llm)
	toolNeuron := neuron.NewToolNeuron(app.llm, app.registry)
	memoryNeuron := neuron.NewMemoryNeuron(app.llm, app.kvStore)

	app.forgedStore = forge.NewMemoryStore()
	if cfg.SQL.Backend == "postgres" {
		fstore, err := forge.NewSQLStore(ctx, cfg.SQL.DSN)
		if err != nil {
			return nil, fmt.Errorf("open forge store: %w", err)
		}
		app.forgedStore = fstore
	}
	app.forge = forge.New(app.llm, app.forgedStore, app.registry, cfg.Forge.ScratchDir, cfg.Forge.BackupDir, cfg.Forge.SandboxTimeout, app.execDB)

	perf := execstore.NewPerformanceRecorder(app.execDB)

	app.orchestrator = orchestrator.New(orchestrator.Config{
		Bus:          app.bus,
		Tree:         app.tree,
		Logger:       logger,
		Registry:     app.registry,
		Forge:        app.forge,
		ForgeEnabled: cfg.Forge.Enabled,
		Performance:  perf,
		Intent:       intentNeuron,
		Generative:   generativeNeuron,
		Tool:         toolNeuron,
		Memory:       memoryNeuron,
	})

	app.reconciler = lifecycle.New(cfg.Forge.BackupDir, app.forgedStore, app.execDB, lifecycle.WithLogger(stdlog))
	app.monitor = monitor.New(cfg.Forge.BackupDir, app.forgedStore, app.execDB, app.registry, app.bus, monitor.WithLogger(stdlog))

	if cfg.Autoloop.Enabled {
		app.autoloop = autoloop.New(app.execDB, app.forgedStore, app.forge, app.registry, app.reconciler, app.monitor, app.llm,
			autoloop.WithLogger(stdlog),
			autoloop.WithCheckInterval(cfg.Autoloop.CheckInterval),
			autoloop.WithMaintenanceInterval(cfg.Autoloop.MaintenanceInterval),
			autoloop.WithAutoApproveManual(cfg.Autoloop.AutoApproveManual),
		)
	}

	app.scheduler = scheduler.New(
		scheduler.NewMemoryStateStore(),
		scheduler.NewConditionRegistry(),
		scheduler.ExecutorFunc(func(ctx context.Context, goalText string) (string, bool, error) {
			resp := app.orchestrator.Process(ctx, goalText)
			return resp.Result, resp.Success, nil
		}),
		scheduler.WithLogger(stdlog),
		scheduler.WithTickInterval(cfg.Scheduler.TickInterval),
	)

	return app, nil
}

// Start runs the scheduler and, if enabled, the autonomous improvement
// loop in the background until ctx is canceled.
func (a *App) Start(ctx context.Context) {
	go a.scheduler.Start(ctx)
	if a.autoloop != nil {
		go a.autoloop.Start(ctx)
	}
}

// Close releases any held SQL connections across the kv, execution, and
// forge stores.
func (a *App) Close() error {
	var firstErr error
	for _, store := range []any{a.kvStore, a.execDB, a.forgedStore} {
		closer, ok := store.(interface{ Close() error })
		if !ok {
			continue
		}
		if err := closer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
