// Package monitor implements the deployment monitor: it watches a
// newly replaced tool's success rate and duration against a baseline
// window and rolls back to the previous binary when it regresses.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/axonforge/engine/internal/eventbus"
	"github.com/axonforge/engine/internal/execstore"
	"github.com/axonforge/engine/internal/forge"
	"github.com/axonforge/engine/internal/tools"
	"github.com/axonforge/engine/pkg/domain"
)

// Defaults for a monitoring session, overridable per Start call.
const (
	DefaultBaselineWindowDays    = 7
	DefaultMonitoringWindowHours = 24
	DefaultRegressionThreshold   = 0.15

	minExecutionsPerWindow = 10

	severityHighDropPP     = 0.20
	severityCriticalDropPP = 0.30

	durationRegressionFactor = 3.0 // current p95 > 3x baseline p95 == >200% increase
)

// Severity classifies how badly a deployed tool has regressed.
type Severity string

const (
	SeverityNone     Severity = "none"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Result is one health check's outcome for a monitored tool.
type Result struct {
	ToolName            string
	SufficientData      bool
	BaselineSuccessRate float64
	CurrentSuccessRate  float64
	SuccessRateDropPP   float64
	Severity            Severity
	DurationRegressed   bool
	RolledBack          bool
	RollbackReason      string
}

// Monitor runs deployment health checks and performs rollbacks.
type Monitor struct {
	stats    execstore.Store
	forged   forge.Store
	registry *tools.Registry
	toolsDir string
	bus      *eventbus.Bus
	logger   *slog.Logger
	now      func() time.Time

	sessions map[string]*domain.MonitoringSession
}

// Option configures a Monitor.
type Option func(*Monitor)

func WithLogger(logger *slog.Logger) Option {
	return func(m *Monitor) {
		if logger != nil {
			m.logger = logger
		}
	}
}

func WithNow(now func() time.Time) Option {
	return func(m *Monitor) {
		if now != nil {
			m.now = now
		}
	}
}

// New builds a Monitor over toolsDir, the directory where active tool
// binaries live (the Forge's backupDir), forged (persisted tool
// records), stats (execution history), registry (the live tool
// registry to refresh on rollback), and bus (to emit alert/rollback
// events as an audit log).
func New(toolsDir string, forged forge.Store, stats execstore.Store, registry *tools.Registry, bus *eventbus.Bus, opts ...Option) *Monitor {
	m := &Monitor{
		stats:    stats,
		forged:   forged,
		registry: registry,
		toolsDir: toolsDir,
		bus:      bus,
		logger:   slog.Default().With("component", "monitor"),
		now:      time.Now,
		sessions: make(map[string]*domain.MonitoringSession),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// StartSessionOption configures a monitoring session's thresholds.
type StartSessionOption func(*domain.MonitoringSession)

func WithBaselineWindowDays(days float64) StartSessionOption {
	return func(s *domain.MonitoringSession) { s.BaselineWindowDays = days }
}

func WithMonitoringWindowHours(hours float64) StartSessionOption {
	return func(s *domain.MonitoringSession) { s.MonitoringWindowHours = hours }
}

func WithRegressionThreshold(threshold float64) StartSessionOption {
	return func(s *domain.MonitoringSession) { s.RegressionThreshold = threshold }
}

// StartSession backs up the tool's current on-disk binary (if any) and
// begins tracking a monitoring window for its replacement, deployed at
// deploymentTime.
func (m *Monitor) StartSession(ctx context.Context, toolName string, deploymentTime time.Time, opts ...StartSessionOption) (*domain.MonitoringSession, error) {
	backupPath, err := backupBinary(m.toolsDir, toolName)
	if err != nil {
		return nil, err
	}

	session := &domain.MonitoringSession{
		SessionID:             uuid.NewString(),
		ToolName:              toolName,
		DeploymentTime:        deploymentTime,
		MonitoringWindowHours: DefaultMonitoringWindowHours,
		BaselineWindowDays:    DefaultBaselineWindowDays,
		RegressionThreshold:   DefaultRegressionThreshold,
		Status:                "active",
		BackupPath:            backupPath,
	}
	for _, opt := range opts {
		opt(session)
	}

	m.sessions[session.SessionID] = session
	if err := m.stats.RecordMonitoringSession(ctx, session.SessionID, toolName, deploymentTime,
		session.MonitoringWindowHours, session.BaselineWindowDays, session.RegressionThreshold, session.Status); err != nil {
		m.logger.Warn("record monitoring session failed", "tool", toolName, "error", err)
	}
	m.logger.Info("monitoring session started", "tool", toolName, "session", session.SessionID, "backup", backupPath != "")
	return session, nil
}

// Check compares session's baseline window against the window since
// deployment, classifies any regression, and rolls back when the
// regression is severe enough and there is enough data to trust it.
func (m *Monitor) Check(ctx context.Context, session *domain.MonitoringSession) (*Result, error) {
	now := m.now()
	baselineStart := session.DeploymentTime.Add(-time.Duration(session.BaselineWindowDays * float64(24*time.Hour)))
	currentEnd := minTime(now, session.DeploymentTime.Add(time.Duration(session.MonitoringWindowHours*float64(time.Hour))))

	baseline, err := m.stats.ToolStatisticsWindow(ctx, session.ToolName, baselineStart, session.DeploymentTime)
	if err != nil {
		return nil, fmt.Errorf("monitor: baseline window: %w", err)
	}
	current, err := m.stats.ToolStatisticsWindow(ctx, session.ToolName, session.DeploymentTime, currentEnd)
	if err != nil {
		return nil, fmt.Errorf("monitor: current window: %w", err)
	}

	result := &Result{
		ToolName:            session.ToolName,
		BaselineSuccessRate: baseline.SuccessRate,
		CurrentSuccessRate:  current.SuccessRate,
		Severity:            SeverityNone,
	}

	result.SufficientData = baseline.Total >= minExecutionsPerWindow && current.Total >= minExecutionsPerWindow
	if !result.SufficientData {
		return result, nil
	}

	drop := baseline.SuccessRate - current.SuccessRate
	result.SuccessRateDropPP = drop
	result.Severity = classifySeverity(drop, session.RegressionThreshold)
	needsRollback := result.Severity == SeverityMedium || result.Severity == SeverityHigh || result.Severity == SeverityCritical

	if err := m.stats.RecordHealthCheck(ctx, session.SessionID, session.ToolName, baseline.SuccessRate,
		current.SuccessRate, drop, result.Severity != SeverityNone, string(result.Severity), needsRollback); err != nil {
		m.logger.Warn("record health check failed", "tool", session.ToolName, "error", err)
	}

	if baseline.P95Duration > 0 && current.P95Duration > baseline.P95Duration*durationRegressionFactor {
		result.DurationRegressed = true
		m.emitAlert(session.ToolName, "info", "tool duration increased more than 200% relative to baseline")
	}

	if result.Severity != SeverityNone {
		m.emitAlert(session.ToolName, string(result.Severity), fmt.Sprintf(
			"success rate dropped %.1f points (%.2f -> %.2f)", drop*100, baseline.SuccessRate, current.SuccessRate))
	}

	if needsRollback {
		reason := fmt.Sprintf("severity %s regression detected, success rate dropped %.1f points", result.Severity, drop*100)
		if err := m.rollback(ctx, session, reason, drop); err != nil {
			m.logger.Error("rollback failed", "tool", session.ToolName, "error", err)
		} else {
			result.RolledBack = true
			result.RollbackReason = reason
			session.Status = "rolled_back"
		}
	}

	return result, nil
}

func (m *Monitor) rollback(ctx context.Context, session *domain.MonitoringSession, reason string, successRateDrop float64) error {
	if session.BackupPath == "" {
		return fmt.Errorf("no prior binary recorded for %s, cannot roll back", session.ToolName)
	}
	if err := restoreBinary(session.BackupPath, m.toolsDir, session.ToolName); err != nil {
		return err
	}

	if err := m.stats.RecordRollback(ctx, session.ToolName, reason, session.BackupPath, successRateDrop); err != nil {
		m.logger.Warn("record rollback failed", "tool", session.ToolName, "error", err)
	}

	tool, ok, err := m.forged.Get(ctx, session.ToolName)
	if err != nil {
		return fmt.Errorf("monitor: load forged tool: %w", err)
	}
	if ok {
		def := domain.ToolDefinition{
			Name:        tool.Name,
			Description: tool.Description,
			Parameters:  tool.Parameters,
			Domain:      tool.Domain,
			Concepts:    tool.Concepts,
		}
		m.registry.Register(tools.NewSandboxTool(def, session.BackupPath, nil, 10*time.Second))
	}

	if err := m.stats.MarkToolStatus(ctx, session.ToolName, domain.ToolStatusDegraded, reason); err != nil {
		m.logger.Warn("mark tool status after rollback failed", "tool", session.ToolName, "error", err)
	}

	if m.bus != nil {
		m.bus.Append(domain.Event{
			EventType: domain.EventDeploymentRollback,
			Payload: map[string]any{
				"tool_name": session.ToolName,
				"reason":    reason,
			},
		})
	}

	m.logger.Warn("tool rolled back", "tool", session.ToolName, "reason", reason)
	return nil
}

func (m *Monitor) emitAlert(toolName, severity, message string) {
	m.logger.Warn("deployment health alert", "tool", toolName, "severity", severity, "message", message)
	if m.bus == nil {
		return
	}
	m.bus.Append(domain.Event{
		EventType: domain.EventDeploymentAlert,
		Payload: map[string]any{
			"tool_name": toolName,
			"severity":  severity,
			"message":   message,
		},
	})
}

func classifySeverity(dropPP, threshold float64) Severity {
	switch {
	case dropPP >= severityCriticalDropPP:
		return SeverityCritical
	case dropPP >= severityHighDropPP:
		return SeverityHigh
	case dropPP >= threshold:
		return SeverityMedium
	default:
		return SeverityNone
	}
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
