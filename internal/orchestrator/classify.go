package orchestrator

import (
	"strings"

	"github.com/axonforge/engine/pkg/domain"
)

// classifyText buckets the text that followed a TOOL_ERROR:/TOOL_EXCEPTION:
// sentinel into a RecoveryClass. Unlike domain.ClassifyError, which matches
// sentinel errors by identity, this works over the plain strings ToolNeuron
// and SandboxTool actually produce, since a neuron never lets a Go error
// cross into the orchestrator.
func classifyText(msg string) domain.RecoveryClass {
	lower := strings.ToLower(msg)
	switch {
	case containsAny(lower, "no tool", "no matching tool", "no candidate"):
		return domain.RecoveryNoMatchingTool
	case containsAny(lower, "missing required parameter", "invalid parameter", "invalid argument", "parameter extraction failed"):
		return domain.RecoveryInvalidParameters
	case containsAny(lower, "unauthorized", "authentication", "auth required", "permission denied", "forbidden", "401", "403"):
		return domain.RecoveryAuthRequired
	case containsAny(lower, "timeout", "timed out", "deadline exceeded", "context deadline"):
		return domain.RecoveryTimeout
	default:
		return domain.RecoveryToolExecution
	}
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
