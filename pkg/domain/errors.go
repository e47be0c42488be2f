// Package domain holds the wire and record types shared across AxonForge's
// subsystems: goal contexts, events, thoughts, tool definitions, execution
// records, scheduled goals, and the error kinds used for recovery routing.
package domain

import "errors"

// Error kinds used throughout the pipeline. Neurons never propagate these
// directly to the orchestrator; they surface through NeuronResult instead.
// ClassifyError inspects them with errors.Is; the orchestrator's recovery
// policy works on the ToolNeuron's sentinel strings instead.
var (
	// ErrLLM covers transport failures, non-2xx responses, and empty
	// responses from the LLM client; its timeouts use ErrTimeout.
	ErrLLM = errors.New("llm error")

	// ErrParse indicates the LLM returned malformed JSON where structured
	// output was expected.
	ErrParse = errors.New("parse error")

	// ErrToolNotFound indicates the requested tool name is absent from the
	// registry.
	ErrToolNotFound = errors.New("tool not found")

	// ErrNoMatchingTool indicates a registry search returned no candidates.
	ErrNoMatchingTool = errors.New("no matching tool")

	// ErrInvalidParameters indicates parameter extraction failed or the
	// tool rejected the supplied arguments.
	ErrInvalidParameters = errors.New("invalid parameters")

	// ErrAuthRequired indicates a downstream authentication failure.
	ErrAuthRequired = errors.New("authentication required")

	// ErrTimeout indicates an LLM or tool call exceeded its wall-clock
	// budget.
	ErrTimeout = errors.New("timeout")

	// ErrExecution indicates a tool raised or returned an error.
	ErrExecution = errors.New("execution error")

	// ErrConfig indicates the configuration was malformed at startup.
	// Fatal: the process should abort.
	ErrConfig = errors.New("config error")

	// ErrStore indicates a persistence layer failure. Logged, non-fatal;
	// callers should still return the in-memory result where possible.
	ErrStore = errors.New("store error")
)

// RecoveryClass is the bucket the recovery policy sorts an underlying
// error into before choosing an action.
type RecoveryClass string

const (
	RecoveryNoMatchingTool    RecoveryClass = "no_matching_tool"
	RecoveryInvalidParameters RecoveryClass = "invalid_parameters"
	RecoveryAuthRequired      RecoveryClass = "auth_required"
	RecoveryTimeout           RecoveryClass = "timeout"
	RecoveryToolExecution     RecoveryClass = "tool_execution_error"
)

// ClassifyError maps a raw error to a RecoveryClass by sentinel match,
// falling back to ToolExecution for anything unrecognized.
func ClassifyError(err error) RecoveryClass {
	switch {
	case err == nil:
		return RecoveryToolExecution
	case errors.Is(err, ErrNoMatchingTool):
		return RecoveryNoMatchingTool
	case errors.Is(err, ErrInvalidParameters):
		return RecoveryInvalidParameters
	case errors.Is(err, ErrAuthRequired):
		return RecoveryAuthRequired
	case errors.Is(err, ErrTimeout):
		return RecoveryTimeout
	default:
		return RecoveryToolExecution
	}
}
