package orchestrator

import "context"

// PerformanceRecorder is the subset of internal/execstore the orchestrator
// needs to close the loop between a tool call's outcome and the autonomous
// loop's opportunity detection. Nil is a valid Orchestrator field: without
// one, the recovery policy still runs, it just can't consult or update a
// tool's observed success rate.
type PerformanceRecorder interface {
	// RecordToolCall logs one completed call against toolName.
	RecordToolCall(ctx context.Context, toolName string, success bool, durationMS int64, errText string)

	// ToolSuccessRate reports toolName's observed success rate. ok is
	// false if the tool has no recorded calls.
	ToolSuccessRate(ctx context.Context, toolName string) (rate float64, ok bool)
}
