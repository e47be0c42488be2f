// Package autoloop implements the autonomous improvement loop: a
// background cycle that finds underperforming tools, investigates why,
// generates and tests a replacement, and deploys it under a monitoring
// session.
package autoloop

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/axonforge/engine/internal/execstore"
	"github.com/axonforge/engine/internal/forge"
	"github.com/axonforge/engine/internal/lifecycle"
	"github.com/axonforge/engine/internal/monitor"
	"github.com/axonforge/engine/internal/tools"
	"github.com/axonforge/engine/pkg/domain"
)

// LLM is the subset of internal/llmclient.Client the loop's
// self-investigation neuron needs.
type LLM interface {
	GenerateJSON(ctx context.Context, prompt, system string) (json.RawMessage, error)
}

const (
	DefaultCheckInterval       = 5 * time.Minute
	DefaultMaintenanceInterval = 24 * time.Hour

	improvementThreshold = 0.7
	highPriorityCutoff   = 0.5
	minExecutions        = 10
	recentFailureWindow  = 24 * time.Hour
	recentFailureCount   = 3

	shadowTestLimit   = 20
	candidateTimeout  = 10 * time.Second
)

// Priority ranks how urgently an opportunity should be processed.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
)

// Opportunity is an underperforming tool worth investigating.
type Opportunity struct {
	ToolName string
	Priority Priority
	Reason   string
}

// Investigation is the self-investigation neuron's verdict on an
// Opportunity.
type Investigation struct {
	FailureMode string `json:"failure_mode"`
	Warranted   bool   `json:"improvement_warranted"`
	Findings    string `json:"findings"`
}

// CycleReport summarizes one RunCycle's work.
type CycleReport struct {
	MaintenanceRan    bool
	LifecycleReport   *lifecycle.Report
	Opportunities     []Opportunity
	Deployed          []string
	Skipped           []string
	SessionsChecked   int
	RollbacksThisRun  int
}

// Loop ties execstore, forge, lifecycle, and monitor together into the
// autonomous improvement cycle.
type Loop struct {
	store    execstore.Store
	forged   forge.Store
	forge    *forge.Forge
	registry *tools.Registry
	recon    *lifecycle.Reconciler
	mon      *monitor.Monitor
	llm      LLM
	logger   *slog.Logger
	now      func() time.Time

	checkInterval       time.Duration
	maintenanceInterval time.Duration
	autoApproveManual   bool

	mu              sync.Mutex
	lastMaintenance time.Time
	sessions        map[string]*domain.MonitoringSession
}

// Option configures a Loop.
type Option func(*Loop)

func WithLogger(logger *slog.Logger) Option {
	return func(l *Loop) {
		if logger != nil {
			l.logger = logger
		}
	}
}

func WithNow(now func() time.Time) Option {
	return func(l *Loop) {
		if now != nil {
			l.now = now
		}
	}
}

func WithCheckInterval(d time.Duration) Option {
	return func(l *Loop) {
		if d > 0 {
			l.checkInterval = d
		}
	}
}

func WithMaintenanceInterval(d time.Duration) Option {
	return func(l *Loop) {
		if d > 0 {
			l.maintenanceInterval = d
		}
	}
}

// WithAutoApproveManual lets a degraded environment auto-approve
// candidates that fall back to manual review, per §4.10's policy flag.
func WithAutoApproveManual(auto bool) Option {
	return func(l *Loop) { l.autoApproveManual = auto }
}

// New builds a Loop.
func New(store execstore.Store, forged forge.Store, f *forge.Forge, registry *tools.Registry, recon *lifecycle.Reconciler, mon *monitor.Monitor, llm LLM, opts ...Option) *Loop {
	l := &Loop{
		store:               store,
		forged:              forged,
		forge:               f,
		registry:            registry,
		recon:               recon,
		mon:                 mon,
		llm:                 llm,
		logger:              slog.Default().With("component", "autoloop"),
		now:                 time.Now,
		checkInterval:       DefaultCheckInterval,
		maintenanceInterval: DefaultMaintenanceInterval,
		sessions:            make(map[string]*domain.MonitoringSession),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Start runs RunCycle on the check interval until ctx is canceled.
func (l *Loop) Start(ctx context.Context) {
	ticker := time.NewTicker(l.checkInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := l.RunCycle(ctx); err != nil {
				l.logger.Error("autoloop cycle failed", "error", err)
			}
		}
	}
}

// RunCycle performs one full check cycle: maintenance if due, opportunity
// detection, sequential processing (high priority first), and checking
// any tools currently under a post-deployment monitoring session.
func (l *Loop) RunCycle(ctx context.Context) (CycleReport, error) {
	report := CycleReport{}

	if l.dueForMaintenance() {
		lifecycleReport, err := l.recon.Reconcile(ctx)
		if err != nil {
			l.logger.Error("maintenance reconcile failed", "error", err)
		} else {
			report.MaintenanceRan = true
			report.LifecycleReport = lifecycleReport
		}
		l.mu.Lock()
		l.lastMaintenance = l.now()
		l.mu.Unlock()
	}

	opportunities, err := l.detectOpportunities(ctx)
	if err != nil {
		return report, fmt.Errorf("autoloop: detect opportunities: %w", err)
	}
	report.Opportunities = opportunities

	for _, opp := range opportunities {
		deployed, err := l.process(ctx, opp)
		if err != nil {
			l.logger.Warn("opportunity processing failed", "tool", opp.ToolName, "error", err)
			report.Skipped = append(report.Skipped, opp.ToolName)
			continue
		}
		if deployed {
			report.Deployed = append(report.Deployed, opp.ToolName)
		} else {
			report.Skipped = append(report.Skipped, opp.ToolName)
		}
	}

	l.mu.Lock()
	checked := len(l.sessions)
	l.mu.Unlock()
	rollbacks := l.checkActiveSessions(ctx)
	report.SessionsChecked = checked
	report.RollbacksThisRun = rollbacks

	return report, nil
}

func (l *Loop) dueForMaintenance() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastMaintenance.IsZero() || l.now().Sub(l.lastMaintenance) >= l.maintenanceInterval
}

// detectOpportunities finds tools with a rolling success rate below
// improvementThreshold (at least minExecutions calls), ranked by
// priority, plus tools with at least recentFailureCount failures in the
// last 24 hours.
func (l *Loop) detectOpportunities(ctx context.Context) ([]Opportunity, error) {
	bottom, err := l.store.BottomTools(ctx, 50, minExecutions)
	if err != nil {
		return nil, fmt.Errorf("bottom tools: %w", err)
	}

	seen := make(map[string]bool)
	var out []Opportunity
	for _, stats := range bottom {
		if stats.SuccessRate >= improvementThreshold {
			continue
		}
		priority := PriorityMedium
		if stats.SuccessRate < highPriorityCutoff {
			priority = PriorityHigh
		}
		out = append(out, Opportunity{
			ToolName: stats.ToolName,
			Priority: priority,
			Reason:   fmt.Sprintf("success rate %.2f over %d executions", stats.SuccessRate, stats.Total),
		})
		seen[stats.ToolName] = true
	}

	known, err := l.forged.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list forged tools: %w", err)
	}
	now := l.now()
	for _, tool := range known {
		if seen[tool.Name] {
			continue
		}
		window, err := l.store.ToolStatisticsWindow(ctx, tool.Name, now.Add(-recentFailureWindow), now)
		if err != nil {
			continue
		}
		failures := window.Total - int64(float64(window.Total)*window.SuccessRate+0.5)
		if failures >= recentFailureCount {
			out = append(out, Opportunity{
				ToolName: tool.Name,
				Priority: PriorityMedium,
				Reason:   fmt.Sprintf("%d failures in the last 24 hours", failures),
			})
			seen[tool.Name] = true
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority == PriorityHigh && out[j].Priority != PriorityHigh
	})
	return out, nil
}

// process runs the investigate -> generate -> test -> deploy -> record
// cycle for a single opportunity. Returns whether a new version was
// deployed.
func (l *Loop) process(ctx context.Context, opp Opportunity) (bool, error) {
	stats, err := l.store.ToolStatistics(ctx, opp.ToolName)
	if err != nil {
		return false, fmt.Errorf("load statistics: %w", err)
	}

	investigation, err := l.investigate(ctx, opp, stats)
	if err != nil {
		return false, fmt.Errorf("investigate: %w", err)
	}
	if !investigation.Warranted {
		l.logger.Info("improvement not warranted", "tool", opp.ToolName, "failure_mode", investigation.FailureMode)
		return false, nil
	}

	oldTool, hasOld := l.registry.Get(opp.ToolName)

	candidate, err := l.forge.GenerateCandidate(ctx, opp.ToolName, investigation.Findings)
	if err != nil {
		return false, fmt.Errorf("generate candidate: %w", err)
	}
	candidateTool := candidate.Tool(candidateTimeout)

	outcome, err := l.test(ctx, opp.ToolName, candidate.Definition, oldTool, hasOld, candidateTool)
	if err != nil {
		return false, fmt.Errorf("test candidate: %w", err)
	}
	if !outcome.Passed {
		l.logger.Info("candidate failed testing", "tool", opp.ToolName, "strategy", outcome.Strategy, "pass_rate", outcome.PassRate)
		return false, nil
	}

	session, err := l.mon.StartSession(ctx, opp.ToolName, l.now())
	if err != nil {
		return false, fmt.Errorf("start monitoring session: %w", err)
	}

	if _, err := l.forge.Promote(ctx, candidate); err != nil {
		return false, fmt.Errorf("promote candidate: %w", err)
	}

	l.mu.Lock()
	l.sessions[session.SessionID] = session
	l.mu.Unlock()

	l.logger.Info("deployed improved tool", "tool", opp.ToolName, "strategy", outcome.Strategy, "pass_rate", outcome.PassRate)
	return true, nil
}

func (l *Loop) test(ctx context.Context, toolName string, newDef domain.ToolDefinition, oldTool tools.Tool, hasOld bool, candidateTool tools.Tool) (TestOutcome, error) {
	strategy, err := ChooseStrategy(ctx, l.store, newDef)
	if err != nil {
		return TestOutcome{}, err
	}

	switch strategy {
	case StrategyShadow:
		if !hasOld {
			return RunReplayTest(ctx, l.store, toolName, candidateTool)
		}
		inputs, err := l.shadowInputs(ctx, toolName)
		if err != nil {
			return TestOutcome{}, err
		}
		return RunShadowTest(ctx, l.store, toolName, oldTool, candidateTool, inputs)
	case StrategyReplay:
		return RunReplayTest(ctx, l.store, toolName, candidateTool)
	case StrategySynthetic:
		return RunSyntheticTest(ctx, newDef, candidateTool), nil
	default:
		return ManualReview(l.autoApproveManual), nil
	}
}

func (l *Loop) shadowInputs(ctx context.Context, toolName string) ([]map[string]any, error) {
	history, err := l.store.SuccessfulExecutions(ctx, toolName, shadowTestLimit)
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return []map[string]any{{}}, nil
	}
	inputs := make([]map[string]any, 0, len(history))
	for _, rec := range history {
		inputs = append(inputs, rec.Parameters)
	}
	return inputs, nil
}

// checkActiveSessions runs a monitoring check on every session still
// within its monitoring window, dropping it once the window has closed
// or it has been rolled back.
func (l *Loop) checkActiveSessions(ctx context.Context) int {
	l.mu.Lock()
	sessions := make([]*domain.MonitoringSession, 0, len(l.sessions))
	for _, s := range l.sessions {
		sessions = append(sessions, s)
	}
	l.mu.Unlock()

	rollbacks := 0
	now := l.now()
	for _, session := range sessions {
		windowEnd := session.DeploymentTime.Add(time.Duration(session.MonitoringWindowHours * float64(time.Hour)))
		result, err := l.mon.Check(ctx, session)
		if err != nil {
			l.logger.Error("monitoring check failed", "tool", session.ToolName, "error", err)
			continue
		}
		if result.RolledBack {
			rollbacks++
		}
		if result.RolledBack || now.After(windowEnd) {
			l.mu.Lock()
			delete(l.sessions, session.SessionID)
			l.mu.Unlock()
		}
	}
	return rollbacks
}

const investigationSystemPrompt = `You investigate why a tool is underperforming. Respond with strict JSON: {"failure_mode": "...", "improvement_warranted": true|false, "findings": "..."}.`

func (l *Loop) investigate(ctx context.Context, opp Opportunity, stats domain.ToolStatistics) (Investigation, error) {
	prompt := fmt.Sprintf(
		"Tool %q has a success rate of %.2f over %d executions (last used %s). Reported reason: %s. Characterize the likely failure mode and decide whether regenerating this tool is warranted.",
		opp.ToolName, stats.SuccessRate, stats.Total, stats.LastUsed.Format(time.RFC3339), opp.Reason)

	raw, err := l.llm.GenerateJSON(ctx, prompt, investigationSystemPrompt)
	if err != nil {
		return Investigation{}, fmt.Errorf("%w: self-investigation: %v", domain.ErrLLM, err)
	}

	var investigation Investigation
	if err := json.Unmarshal(raw, &investigation); err != nil {
		return Investigation{Warranted: true, FailureMode: "unparsed", Findings: opp.Reason}, nil
	}
	return investigation, nil
}
