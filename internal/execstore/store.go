// Package execstore is the durable relational record of every goal and
// tool execution: the Orchestrator's history, and the data the
// autonomous loop's opportunity detection reads from.
package execstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/axonforge/engine/pkg/domain"
)

// KeywordCount is one entry of a keyword-frequency aggregate over recent
// goal text.
type KeywordCount struct {
	Keyword string
	Count   int
}

// Store is the execution store's contract, implemented by MemoryStore
// (tests) and SQLStore (production, over Postgres/CockroachDB).
type Store interface {
	// StoreExecution persists one goal's outcome and returns its
	// execution_id.
	StoreExecution(ctx context.Context, rec domain.ExecutionRecord) (string, error)

	// StoreToolExecution persists one tool invocation, optionally tied
	// to an execution_id (empty when recorded outside a full
	// Orchestrator.Process call, e.g. during recovery).
	StoreToolExecution(ctx context.Context, rec domain.ToolExecutionRecord) error

	// ToolStatistics aggregates toolName's observed calls: total count,
	// success rate, last-used timestamp, and p50/p95/p99 durations.
	ToolStatistics(ctx context.Context, toolName string) (domain.ToolStatistics, error)

	// ToolStatisticsWindow aggregates toolName's calls in [start, end),
	// used by the deployment monitor to compare a baseline window
	// against the window since a deployment.
	ToolStatisticsWindow(ctx context.Context, toolName string, start, end time.Time) (domain.ToolStatistics, error)

	// TopTools and BottomTools rank tools with at least minExecutions
	// calls by success rate, best/worst first.
	TopTools(ctx context.Context, limit, minExecutions int) ([]domain.ToolStatistics, error)
	BottomTools(ctx context.Context, limit, minExecutions int) ([]domain.ToolStatistics, error)

	// SuccessfulExecutions returns up to limit of toolName's most recent
	// successful tool executions, newest first, for replay testing.
	SuccessfulExecutions(ctx context.Context, toolName string, limit int) ([]domain.ToolExecutionRecord, error)

	// MarkToolStatus records a lifecycle transition for toolName (used
	// by the tool lifecycle manager and the autonomous loop).
	MarkToolStatus(ctx context.Context, toolName string, status domain.ToolStatus, reason string) error

	// ToolLifecycleStatus returns toolName's last-marked status, if any,
	// and when it was marked.
	ToolLifecycleStatus(ctx context.Context, toolName string) (status domain.ToolStatus, reason string, updatedAt time.Time, ok bool, err error)

	// KeywordFrequency tokenizes goal text recorded since `since` and
	// returns the most frequent terms, most frequent first.
	KeywordFrequency(ctx context.Context, since time.Time, limit int) ([]KeywordCount, error)

	// RecordTestResult logs a shadow or replay test's outcome against
	// toolName (the shadow_test_results table doubles for both, since
	// both strategies report the same agreement-rate/sample-count shape).
	RecordTestResult(ctx context.Context, toolName string, agreementRate float64, sampleCount int) error

	// RecordMonitoringSession logs a deployment monitoring session's
	// opening: the tool deployed, when, and the window/threshold
	// settings it will be checked against.
	RecordMonitoringSession(ctx context.Context, sessionID, toolName string, deploymentTime time.Time, monitoringWindowHours, baselineWindowDays, regressionThreshold float64, status string) error

	// RecordHealthCheck logs one deployment health check's outcome
	// against an open monitoring session.
	RecordHealthCheck(ctx context.Context, sessionID, toolName string, baselineSuccessRate, currentSuccessRate, successRateDrop float64, regressionDetected bool, severity string, needsRollback bool) error

	// RecordRollback logs a completed rollback: the tool rolled back,
	// why, and the backup path its previous binary was restored from.
	RecordRollback(ctx context.Context, toolName, reason, restoredFrom string, successRateDrop float64) error

	// RecordToolCreation logs a forged tool's creation event.
	RecordToolCreation(ctx context.Context, toolName, capability, goalText string) error

	Close() error
}

// MemoryStore is an in-process Store backed by slices and maps, used in
// tests and for a single-process deployment with no durability
// requirement.
type MemoryStore struct {
	mu                 sync.RWMutex
	executions         []domain.ExecutionRecord
	toolRuns           []domain.ToolExecutionRecord
	toolStatus         map[string]statusEntry
	testResults        []TestResult
	monitoringSessions []MonitoringSessionRecord
	healthChecks       []HealthCheckRecord
	rollbacks          []RollbackRecord
	toolCreations      []ToolCreationRecord
}

// MonitoringSessionRecord is one logged deployment monitoring session.
type MonitoringSessionRecord struct {
	SessionID             string
	ToolName              string
	DeploymentTime        time.Time
	MonitoringWindowHours float64
	BaselineWindowDays    float64
	RegressionThreshold   float64
	Status                string
	CreatedAt             time.Time
}

// HealthCheckRecord is one logged deployment health check.
type HealthCheckRecord struct {
	SessionID           string
	ToolName            string
	BaselineSuccessRate float64
	CurrentSuccessRate  float64
	SuccessRateDrop     float64
	RegressionDetected  bool
	Severity            string
	NeedsRollback       bool
	CreatedAt           time.Time
}

// RollbackRecord is one logged rollback.
type RollbackRecord struct {
	ToolName        string
	Reason          string
	RestoredFrom    string
	SuccessRateDrop float64
	CreatedAt       time.Time
}

// ToolCreationRecord is one logged forged-tool creation event.
type ToolCreationRecord struct {
	ToolName   string
	Capability string
	GoalText   string
	CreatedAt  time.Time
}

// TestResult is one logged shadow/replay test outcome.
type TestResult struct {
	ToolName      string
	AgreementRate float64
	SampleCount   int
	CreatedAt     time.Time
}

type statusEntry struct {
	status    domain.ToolStatus
	reason    string
	updatedAt time.Time
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{toolStatus: make(map[string]statusEntry)}
}

func (s *MemoryStore) StoreExecution(_ context.Context, rec domain.ExecutionRecord) (string, error) {
	if rec.ExecutionID == "" {
		rec.ExecutionID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	s.mu.Lock()
	s.executions = append(s.executions, rec)
	s.mu.Unlock()
	return rec.ExecutionID, nil
}

func (s *MemoryStore) StoreToolExecution(_ context.Context, rec domain.ToolExecutionRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	s.mu.Lock()
	s.toolRuns = append(s.toolRuns, rec)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) ToolStatistics(_ context.Context, toolName string) (domain.ToolStatistics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return computeStatistics(toolName, s.toolRuns), nil
}

func (s *MemoryStore) ToolStatisticsWindow(_ context.Context, toolName string, start, end time.Time) (domain.ToolStatistics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return computeStatisticsWindow(toolName, s.toolRuns, start, end), nil
}

func (s *MemoryStore) TopTools(_ context.Context, limit, minExecutions int) ([]domain.ToolStatistics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return rankTools(s.toolRuns, limit, minExecutions, true), nil
}

func (s *MemoryStore) BottomTools(_ context.Context, limit, minExecutions int) ([]domain.ToolStatistics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return rankTools(s.toolRuns, limit, minExecutions, false), nil
}

func (s *MemoryStore) SuccessfulExecutions(_ context.Context, toolName string, limit int) ([]domain.ToolExecutionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matches []domain.ToolExecutionRecord
	for _, r := range s.toolRuns {
		if r.ToolName == toolName && r.Success {
			matches = append(matches, r)
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].CreatedAt.After(matches[j].CreatedAt) })
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func (s *MemoryStore) MarkToolStatus(_ context.Context, toolName string, status domain.ToolStatus, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.toolStatus[toolName] = statusEntry{status: status, reason: reason, updatedAt: time.Now()}
	return nil
}

func (s *MemoryStore) ToolLifecycleStatus(_ context.Context, toolName string) (domain.ToolStatus, string, time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.toolStatus[toolName]
	return entry.status, entry.reason, entry.updatedAt, ok, nil
}

func (s *MemoryStore) KeywordFrequency(_ context.Context, since time.Time, limit int) ([]KeywordCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	texts := make([]string, 0, len(s.executions))
	for _, e := range s.executions {
		if e.CreatedAt.After(since) {
			texts = append(texts, e.GoalText)
		}
	}
	return topKeywords(texts, limit), nil
}

func (s *MemoryStore) RecordTestResult(_ context.Context, toolName string, agreementRate float64, sampleCount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.testResults = append(s.testResults, TestResult{
		ToolName: toolName, AgreementRate: agreementRate, SampleCount: sampleCount, CreatedAt: time.Now(),
	})
	return nil
}

// TestResults returns every logged test result for toolName, for tests
// and introspection.
func (s *MemoryStore) TestResults(toolName string) []TestResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []TestResult
	for _, r := range s.testResults {
		if r.ToolName == toolName {
			out = append(out, r)
		}
	}
	return out
}

func (s *MemoryStore) RecordMonitoringSession(_ context.Context, sessionID, toolName string, deploymentTime time.Time, monitoringWindowHours, baselineWindowDays, regressionThreshold float64, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.monitoringSessions = append(s.monitoringSessions, MonitoringSessionRecord{
		SessionID: sessionID, ToolName: toolName, DeploymentTime: deploymentTime,
		MonitoringWindowHours: monitoringWindowHours, BaselineWindowDays: baselineWindowDays,
		RegressionThreshold: regressionThreshold, Status: status, CreatedAt: time.Now(),
	})
	return nil
}

func (s *MemoryStore) RecordHealthCheck(_ context.Context, sessionID, toolName string, baselineSuccessRate, currentSuccessRate, successRateDrop float64, regressionDetected bool, severity string, needsRollback bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.healthChecks = append(s.healthChecks, HealthCheckRecord{
		SessionID: sessionID, ToolName: toolName, BaselineSuccessRate: baselineSuccessRate,
		CurrentSuccessRate: currentSuccessRate, SuccessRateDrop: successRateDrop,
		RegressionDetected: regressionDetected, Severity: severity, NeedsRollback: needsRollback,
		CreatedAt: time.Now(),
	})
	return nil
}

func (s *MemoryStore) RecordRollback(_ context.Context, toolName, reason, restoredFrom string, successRateDrop float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rollbacks = append(s.rollbacks, RollbackRecord{
		ToolName: toolName, Reason: reason, RestoredFrom: restoredFrom,
		SuccessRateDrop: successRateDrop, CreatedAt: time.Now(),
	})
	return nil
}

func (s *MemoryStore) RecordToolCreation(_ context.Context, toolName, capability, goalText string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.toolCreations = append(s.toolCreations, ToolCreationRecord{
		ToolName: toolName, Capability: capability, GoalText: goalText, CreatedAt: time.Now(),
	})
	return nil
}

// MonitoringSessions returns every logged monitoring session, for tests.
func (s *MemoryStore) MonitoringSessions() []MonitoringSessionRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]MonitoringSessionRecord, len(s.monitoringSessions))
	copy(out, s.monitoringSessions)
	return out
}

// HealthChecks returns every logged health check for toolName, for tests.
func (s *MemoryStore) HealthChecks(toolName string) []HealthCheckRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []HealthCheckRecord
	for _, r := range s.healthChecks {
		if r.ToolName == toolName {
			out = append(out, r)
		}
	}
	return out
}

// Rollbacks returns every logged rollback for toolName, for tests.
func (s *MemoryStore) Rollbacks(toolName string) []RollbackRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []RollbackRecord
	for _, r := range s.rollbacks {
		if r.ToolName == toolName {
			out = append(out, r)
		}
	}
	return out
}

// ToolCreations returns every logged tool creation event, for tests.
func (s *MemoryStore) ToolCreations() []ToolCreationRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ToolCreationRecord, len(s.toolCreations))
	copy(out, s.toolCreations)
	return out
}

func (s *MemoryStore) Close() error { return nil }
