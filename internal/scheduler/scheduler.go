// Package scheduler runs a persistent queue of scheduled goals — once,
// interval, and cron-triggered — against an injected executor, applying
// named conditions and a circuit breaker before each run.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/axonforge/engine/pkg/domain"
)

// Executor runs a goal's text and returns its outcome. The Orchestrator's
// Process satisfies this via a thin adapter at the wiring layer.
type Executor interface {
	Execute(ctx context.Context, goalText string) (result string, success bool, err error)
}

// ExecutorFunc adapts a function to an Executor.
type ExecutorFunc func(ctx context.Context, goalText string) (string, bool, error)

func (f ExecutorFunc) Execute(ctx context.Context, goalText string) (string, bool, error) {
	return f(ctx, goalText)
}

// ConditionAction is the action a matched Condition takes.
type ConditionAction string

const (
	ActionSkip   ConditionAction = "skip"
	ActionDisable ConditionAction = "disable"
	ActionModify  ConditionAction = "modify"
	ActionAlert   ConditionAction = "alert"
)

// Condition is a named predicate evaluated against a goal's state before
// each run. Conditions are not serializable: they are registered
// in-process by name and re-attached to a ScheduledGoal when it loads.
type Condition struct {
	Name    string
	Match   func(goal *domain.ScheduledGoal, state *domain.GoalState) bool
	Action  ConditionAction
	Modify  func(goalText string) string
	Message string
}

// ConditionRegistry holds named conditions, re-attached to goals on load
// since conditions carry Go closures that cannot be persisted.
type ConditionRegistry struct {
	mu         sync.RWMutex
	conditions map[string]Condition
}

func NewConditionRegistry() *ConditionRegistry {
	return &ConditionRegistry{conditions: make(map[string]Condition)}
}

func (r *ConditionRegistry) Register(c Condition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conditions[c.Name] = c
}

func (r *ConditionRegistry) Get(name string) (Condition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conditions[name]
	return c, ok
}

// OnComplete and OnError are optional hooks invoked after a run finishes.
type OnComplete func(goal *domain.ScheduledGoal, result string)
type OnError func(goal *domain.ScheduledGoal, err error)

// Scheduler polls a StateStore for due goals and runs them against an
// Executor, evaluating conditions and the circuit breaker first.
//
// An options-configured struct, a ticker-driven poll loop started/stopped
// via context, and a per-goal last-checked debounce so cron matches
// within the same minute don't double-fire.
type Scheduler struct {
	store      StateStore
	conditions *ConditionRegistry
	executor   Executor
	logger     *slog.Logger
	now        func() time.Time
	tickEvery  time.Duration

	onComplete OnComplete
	onError    OnError

	mu           sync.Mutex
	started      bool
	wg           sync.WaitGroup
	lastChecked  map[string]time.Time
}

// Option configures a Scheduler.
type Option func(*Scheduler)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithTickInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.tickEvery = d
		}
	}
}

func WithNow(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

func WithOnComplete(fn OnComplete) Option {
	return func(s *Scheduler) { s.onComplete = fn }
}

func WithOnError(fn OnError) Option {
	return func(s *Scheduler) { s.onError = fn }
}

// New builds a Scheduler over store, executing due goals with executor.
func New(store StateStore, conditions *ConditionRegistry, executor Executor, opts ...Option) *Scheduler {
	if conditions == nil {
		conditions = NewConditionRegistry()
	}
	s := &Scheduler{
		store:       store,
		conditions:  conditions,
		executor:    executor,
		logger:      slog.Default().With("component", "scheduler"),
		now:         time.Now,
		tickEvery:   time.Second,
		lastChecked: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins polling for due goals until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.tickEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.RunDue(ctx)
			}
		}
	}()
}

// Stop waits for the poll loop to exit.
func (s *Scheduler) Stop() {
	s.wg.Wait()
}

// RunDue evaluates every enabled goal and runs the ones whose schedule
// matches now, returning the count executed. Exported for tests and for
// one-shot invocation outside the poll loop.
func (s *Scheduler) RunDue(ctx context.Context) int {
	now := s.now()
	goals, err := s.store.ListGoals(ctx, true, nil)
	if err != nil {
		s.logger.Warn("scheduler list goals failed", "error", err)
		return 0
	}

	count := 0
	for _, goal := range goals {
		if !s.isDue(goal, now) {
			continue
		}
		s.runGoal(ctx, goal, now)
		count++
	}
	return count
}

func (s *Scheduler) isDue(goal *domain.ScheduledGoal, now time.Time) bool {
	switch goal.ScheduleType {
	case domain.ScheduleOnce:
		runAt, err := time.Parse(time.RFC3339, goal.ScheduleValue)
		if err != nil {
			s.logger.Warn("scheduler invalid once schedule", "goal_id", goal.ID, "error", err)
			return false
		}
		return !now.Before(runAt)
	case domain.ScheduleInterval:
		return s.intervalDue(goal, now)
	case domain.ScheduleCron:
		return s.cronDue(goal, now)
	default:
		return false
	}
}

func (s *Scheduler) intervalDue(goal *domain.ScheduledGoal, now time.Time) bool {
	seconds, err := parseIntervalSeconds(goal.ScheduleValue)
	if err != nil {
		s.logger.Warn("scheduler invalid interval schedule", "goal_id", goal.ID, "error", err)
		return false
	}

	s.mu.Lock()
	last, ok := s.lastChecked[goal.ID]
	s.mu.Unlock()
	if !ok {
		return true
	}
	return now.Sub(last) >= time.Duration(seconds)*time.Second
}

func (s *Scheduler) cronDue(goal *domain.ScheduledGoal, now time.Time) bool {
	matches, err := CronMatches(goal.ScheduleValue, now)
	if err != nil {
		s.logger.Warn("scheduler invalid cron schedule", "goal_id", goal.ID, "error", err)
		return false
	}
	if !matches {
		return false
	}

	// Debounce: a goal fires at most once per 60-second window, tracked
	// by last-check time, per spec's double-firing rule.
	s.mu.Lock()
	defer s.mu.Unlock()
	last, ok := s.lastChecked[goal.ID]
	if ok && now.Sub(last) < 60*time.Second {
		return false
	}
	s.lastChecked[goal.ID] = now
	return true
}

func (s *Scheduler) runGoal(ctx context.Context, goal *domain.ScheduledGoal, now time.Time) {
	if goal.ScheduleType == domain.ScheduleInterval {
		s.mu.Lock()
		s.lastChecked[goal.ID] = now
		s.mu.Unlock()
	}

	state, err := s.store.GetState(ctx, goal.ID)
	if err != nil {
		s.logger.Warn("scheduler get state failed", "goal_id", goal.ID, "error", err)
		return
	}

	goalText := goal.GoalText
	for _, name := range goal.Conditions {
		cond, ok := s.conditions.Get(name)
		if !ok {
			s.logger.Warn("scheduler condition not registered", "goal_id", goal.ID, "condition", name)
			continue
		}
		if !cond.Match(goal, state) {
			continue
		}
		switch cond.Action {
		case ActionSkip:
			return
		case ActionDisable:
			goal.Enabled = false
			_ = s.store.SaveGoal(ctx, goal)
			return
		case ActionModify:
			if cond.Modify != nil {
				goalText = cond.Modify(goalText)
			}
		case ActionAlert:
			s.logger.Warn("scheduler condition alert", "goal_id", goal.ID, "condition", name, "message", cond.Message)
		}
	}

	startedAt := s.now()
	result, success, execErr := s.executor.Execute(ctx, goalText)
	finishedAt := s.now()

	if execErr != nil {
		success = false
	}
	run := &domain.ScheduledRun{
		ID:         uuid.NewString(),
		GoalID:     goal.ID,
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
		Success:    success,
	}
	if execErr != nil {
		run.Error = execErr.Error()
	}

	state.RecordRun(success, result, finishedAt)
	if state.ShouldDisable(goal) || goal.ScheduleType == domain.ScheduleOnce {
		goal.Enabled = false
		_ = s.store.SaveGoal(ctx, goal)
	}

	if err := s.store.SaveState(ctx, state); err != nil {
		s.logger.Warn("scheduler save state failed", "goal_id", goal.ID, "error", err)
	}
	if err := s.store.SaveRun(ctx, run); err != nil {
		s.logger.Warn("scheduler save run failed", "goal_id", goal.ID, "error", err)
	}

	if execErr != nil {
		if s.onError != nil {
			s.onError(goal, execErr)
		}
		return
	}
	if s.onComplete != nil {
		s.onComplete(goal, result)
	}
}

func parseIntervalSeconds(value string) (int64, error) {
	value = strings.TrimSpace(value)
	var seconds int64
	if _, err := fmt.Sscanf(value, "%d", &seconds); err != nil {
		return 0, fmt.Errorf("invalid interval seconds %q: %w", value, err)
	}
	if seconds <= 0 {
		return 0, fmt.Errorf("interval seconds must be positive, got %d", seconds)
	}
	return seconds, nil
}
