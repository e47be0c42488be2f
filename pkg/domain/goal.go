package domain

import "time"

// Intent is the classified kind of processing a goal needs.
type Intent string

const (
	IntentGenerative  Intent = "generative"
	IntentTool        Intent = "tool"
	IntentMemoryRead  Intent = "memory_read"
	IntentMemoryWrite Intent = "memory_write"
)

// Message is one entry in a GoalContext's ordered message log, appended by
// a neuron's run wrapper.
type Message struct {
	Neuron    string    `json:"neuron"`
	Type      string    `json:"type"`
	Data      string    `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// GoalContext is mutable state scoped to a single goal. It is created by
// the Orchestrator, mutated by each neuron's run wrapper, and discarded
// once the response is returned — only its events and thoughts persist.
//
// Invariant: CompletedAt is set exactly once; Success and exactly one of
// {Result, Error} are set at completion.
type GoalContext struct {
	GoalID      string
	GoalText    string
	Intent      Intent
	ToolName    string
	Parameters  map[string]any
	Result      string
	Error       string
	Success     bool
	StartedAt   time.Time
	CompletedAt time.Time
	Messages    []Message

	// RecoveryAttempted tracks which recovery actions have already run
	// for this goal, enforcing the "at most once per goal" rule.
	RecoveryAttempted map[string]bool
}

// NewGoalContext creates a fresh context for a goal, ready for the
// orchestrator to dispatch.
func NewGoalContext(goalID, goalText string, now time.Time) *GoalContext {
	return &GoalContext{
		GoalID:            goalID,
		GoalText:          goalText,
		Parameters:        make(map[string]any),
		StartedAt:         now,
		Messages:          make([]Message, 0, 8),
		RecoveryAttempted: make(map[string]bool),
	}
}

// AppendMessage records a neuron's message in order.
func (g *GoalContext) AppendMessage(neuron, msgType, data string, at time.Time) {
	g.Messages = append(g.Messages, Message{Neuron: neuron, Type: msgType, Data: data, Timestamp: at})
}

// Complete marks the context successful with a result. Idempotent: once
// CompletedAt is set, subsequent calls are no-ops.
func (g *GoalContext) Complete(result string, at time.Time) {
	if !g.CompletedAt.IsZero() {
		return
	}
	g.Result = result
	g.Success = true
	g.CompletedAt = at
}

// Fail marks the context failed with an error. Idempotent.
func (g *GoalContext) Fail(errText string, at time.Time) {
	if !g.CompletedAt.IsZero() {
		return
	}
	g.Error = errText
	g.Success = false
	g.CompletedAt = at
}

// DurationMS returns the elapsed milliseconds between start and
// completion, or 0 if not yet completed.
func (g *GoalContext) DurationMS() int64 {
	if g.CompletedAt.IsZero() {
		return 0
	}
	return g.CompletedAt.Sub(g.StartedAt).Milliseconds()
}

// MarkRecoveryAttempted records that a recovery action has run for this
// goal, so the orchestrator can enforce the at-most-once rule.
func (g *GoalContext) MarkRecoveryAttempted(action string) {
	if g.RecoveryAttempted == nil {
		g.RecoveryAttempted = make(map[string]bool)
	}
	g.RecoveryAttempted[action] = true
}

// RecoveryWasAttempted reports whether a recovery action already ran for
// this goal.
func (g *GoalContext) RecoveryWasAttempted(action string) bool {
	return g.RecoveryAttempted != nil && g.RecoveryAttempted[action]
}

// Response is the shape returned by Orchestrator.Process and exposed over
// the HTTP/CLI surface.
type Response struct {
	Success    bool      `json:"success"`
	GoalID     string    `json:"goal_id"`
	Intent     Intent    `json:"intent,omitempty"`
	Result     string    `json:"result,omitempty"`
	Error      string    `json:"error,omitempty"`
	DurationMS int64     `json:"duration_ms"`
	Messages   []Message `json:"messages,omitempty"`
}

// ToResponse converts a completed GoalContext into its wire response.
func (g *GoalContext) ToResponse() Response {
	return Response{
		Success:    g.Success,
		GoalID:     g.GoalID,
		Intent:     g.Intent,
		Result:     g.Result,
		Error:      g.Error,
		DurationMS: g.DurationMS(),
		Messages:   g.Messages,
	}
}
