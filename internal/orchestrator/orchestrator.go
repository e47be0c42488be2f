// Package orchestrator dispatches a goal through the neuron pipeline and
// implements the recovery policy that keeps a tool-path failure from
// becoming a goal failure: sentinel strings from the ToolNeuron route to
// one of fallback-to-generative, forge-a-replacement, refine-parameters,
// retry, or request-configuration, each attempted at most once per goal.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/axonforge/engine/internal/eventbus"
	"github.com/axonforge/engine/internal/forge"
	"github.com/axonforge/engine/internal/neuron"
	"github.com/axonforge/engine/internal/observability"
	"github.com/axonforge/engine/internal/thoughttree"
	"github.com/axonforge/engine/internal/tools"
	"github.com/axonforge/engine/pkg/domain"
)

const (
	sentinelNoMatchingTool = "NO_MATCHING_TOOL:"
	sentinelToolNotFound   = "TOOL_NOT_FOUND:"
	sentinelToolError      = "TOOL_ERROR:"
	sentinelToolException  = "TOOL_EXCEPTION:"
)

const (
	actionFallbackGenerative = "fallback_generative"
	actionForgeTool          = "forge_tool"
	actionRefineParams       = "refine_params"
	actionRetry              = "retry"
	actionRequestConfig      = "request_config"
	actionRefactorTool       = "refactor_tool"
)

// Config bundles every collaborator an Orchestrator needs. Forge and
// Performance may be nil: with Forge nil, ForgeEnabled is treated as false
// regardless of its value; with Performance nil, the recovery policy never
// consults or updates a tool's success rate.
type Config struct {
	Bus      *eventbus.Bus
	Tree     *thoughttree.Tree
	Logger   *observability.Logger
	Registry *tools.Registry

	Forge        *forge.Forge
	ForgeEnabled bool
	Performance  PerformanceRecorder

	Intent     *neuron.IntentNeuron
	Generative *neuron.GenerativeNeuron
	Tool       *neuron.ToolNeuron
	Memory     *neuron.MemoryNeuron
}

// Orchestrator runs the full lifecycle of a single goal: classify intent,
// dispatch to the matching neuron, apply the tool-path recovery policy on
// failure, and return a domain.Response.
type Orchestrator struct {
	bus      *eventbus.Bus
	tree     *thoughttree.Tree
	logger   *observability.Logger
	registry *tools.Registry

	forge        *forge.Forge
	forgeEnabled bool
	perf         PerformanceRecorder

	intent     *neuron.IntentNeuron
	generative *neuron.GenerativeNeuron
	toolNeuron *neuron.ToolNeuron
	memory     *neuron.MemoryNeuron
}

// New builds an Orchestrator from cfg.
func New(cfg Config) *Orchestrator {
	return &Orchestrator{
		bus:          cfg.Bus,
		tree:         cfg.Tree,
		logger:       cfg.Logger,
		registry:     cfg.Registry,
		forge:        cfg.Forge,
		forgeEnabled: cfg.ForgeEnabled && cfg.Forge != nil,
		perf:         cfg.Performance,
		intent:       cfg.Intent,
		generative:   cfg.Generative,
		toolNeuron:   cfg.Tool,
		memory:       cfg.Memory,
	}
}

// Process runs goalText through the full pipeline: create the goal context
// and thought-tree root, emit goal_start, classify intent, dispatch to the
// matching neuron (applying tool-path recovery on failure), emit
// goal_complete, and return the finished domain.Response.
func (o *Orchestrator) Process(ctx context.Context, goalText string) domain.Response {
	now := time.Now()
	goalID := uuid.NewString()
	goal := domain.NewGoalContext(goalID, goalText, now)
	ctx = observability.WithGoalID(ctx, goalID)

	o.tree.CreateRoot(goalID, goalText, now)
	o.bus.Append(domain.Event{EventType: domain.EventGoalStart, GoalID: goalID, Timestamp: now})

	deps := neuron.Deps{Bus: o.bus, Tree: o.tree, Logger: o.logger}

	intentResult := neuron.Run(ctx, deps, goal, o.intent, nil)
	if !intentResult.Success {
		o.finish(ctx, goal, false, "", intentResult.Error)
		return goal.ToResponse()
	}

	intent, _ := intentResult.Data.(domain.Intent)
	if intent == "" {
		intent = domain.IntentGenerative
	}
	goal.Intent = intent

	result := o.dispatch(ctx, deps, goal, intent)
	if o.intent != nil {
		o.intent.RecordOutcome(goalText, intent, result.Success)
	}

	if result.Success {
		o.finish(ctx, goal, true, toText(result.Data), "")
	} else {
		o.finish(ctx, goal, false, "", result.Error)
	}
	return goal.ToResponse()
}

func (o *Orchestrator) dispatch(ctx context.Context, deps neuron.Deps, goal *domain.GoalContext, intent domain.Intent) domain.NeuronResult {
	switch intent {
	case domain.IntentTool:
		return o.handleTool(ctx, deps, goal)
	case domain.IntentMemoryRead, domain.IntentMemoryWrite:
		if o.memory == nil {
			return neuron.Run(ctx, deps, goal, o.generative, nil)
		}
		return neuron.Run(ctx, deps, goal, o.memory, nil)
	default:
		return neuron.Run(ctx, deps, goal, o.generative, nil)
	}
}

func (o *Orchestrator) handleTool(ctx context.Context, deps neuron.Deps, goal *domain.GoalContext) domain.NeuronResult {
	result := neuron.Run(ctx, deps, goal, o.toolNeuron, nil)
	if !result.Success {
		return result
	}
	text, _ := result.Data.(string)
	return o.resolveToolOutcome(ctx, deps, goal, result, text)
}

// resolveToolOutcome inspects a successful ToolNeuron result for one of its
// recovery sentinels. A result with no sentinel prefix is a genuine tool
// success.
func (o *Orchestrator) resolveToolOutcome(ctx context.Context, deps neuron.Deps, goal *domain.GoalContext, result domain.NeuronResult, text string) domain.NeuronResult {
	switch {
	case strings.HasPrefix(text, sentinelNoMatchingTool):
		return o.fallbackGenerative(ctx, deps, goal, "no_matching_tool")
	case strings.HasPrefix(text, sentinelToolNotFound):
		return o.recoverToolNotFound(ctx, deps, goal, strings.TrimPrefix(text, sentinelToolNotFound))
	case strings.HasPrefix(text, sentinelToolError):
		return o.recoverToolFailure(ctx, deps, goal, strings.TrimPrefix(text, sentinelToolError))
	case strings.HasPrefix(text, sentinelToolException):
		return o.recoverToolFailure(ctx, deps, goal, strings.TrimPrefix(text, sentinelToolException))
	default:
		if o.perf != nil && goal.ToolName != "" {
			o.perf.RecordToolCall(ctx, goal.ToolName, true, result.DurationMS, "")
		}
		return result
	}
}

func (o *Orchestrator) fallbackGenerative(ctx context.Context, deps neuron.Deps, goal *domain.GoalContext, reason string) domain.NeuronResult {
	if goal.RecoveryWasAttempted(actionFallbackGenerative) || o.generative == nil {
		return domain.NeuronResult{Success: false, Error: fmt.Sprintf("no tool available (%s)", reason)}
	}
	goal.MarkRecoveryAttempted(actionFallbackGenerative)
	return neuron.Run(ctx, deps, goal, o.generative, nil)
}

func (o *Orchestrator) recoverToolNotFound(ctx context.Context, deps neuron.Deps, goal *domain.GoalContext, toolName string) domain.NeuronResult {
	if !o.forgeEnabled || goal.RecoveryWasAttempted(actionForgeTool) {
		return o.fallbackGenerative(ctx, deps, goal, "tool_not_found:"+toolName)
	}
	goal.MarkRecoveryAttempted(actionForgeTool)

	if _, err := o.forge.Synthesize(ctx, toolName, goal.GoalText); err != nil {
		if o.logger != nil {
			o.logger.Warn(ctx, "forge synthesis failed", "tool", toolName, "error", err)
		}
		return o.fallbackGenerative(ctx, deps, goal, "forge_failed")
	}
	return o.rerunTool(ctx, deps, goal)
}

func (o *Orchestrator) recoverToolFailure(ctx context.Context, deps neuron.Deps, goal *domain.GoalContext, msg string) domain.NeuronResult {
	switch classifyText(msg) {
	case domain.RecoveryNoMatchingTool:
		return o.fallbackGenerative(ctx, deps, goal, "no_matching_tool")
	case domain.RecoveryInvalidParameters:
		return o.refineParams(ctx, deps, goal, msg)
	case domain.RecoveryAuthRequired:
		return o.requestConfig(ctx, goal, msg)
	case domain.RecoveryTimeout:
		return o.retryTool(ctx, deps, goal, msg)
	default:
		return o.toolExecutionFailure(ctx, deps, goal, msg)
	}
}

func (o *Orchestrator) refineParams(ctx context.Context, deps neuron.Deps, goal *domain.GoalContext, msg string) domain.NeuronResult {
	if goal.RecoveryWasAttempted(actionRefineParams) {
		return o.finalToolFailure(ctx, goal, msg)
	}
	goal.MarkRecoveryAttempted(actionRefineParams)
	return o.rerunTool(ctx, deps, goal)
}

func (o *Orchestrator) retryTool(ctx context.Context, deps neuron.Deps, goal *domain.GoalContext, msg string) domain.NeuronResult {
	if goal.RecoveryWasAttempted(actionRetry) {
		return o.finalToolFailure(ctx, goal, msg)
	}
	goal.MarkRecoveryAttempted(actionRetry)
	return o.rerunTool(ctx, deps, goal)
}

func (o *Orchestrator) requestConfig(ctx context.Context, goal *domain.GoalContext, msg string) domain.NeuronResult {
	goal.MarkRecoveryAttempted(actionRequestConfig)
	if o.perf != nil && goal.ToolName != "" {
		o.perf.RecordToolCall(ctx, goal.ToolName, false, 0, msg)
	}
	return domain.NeuronResult{Success: false, Error: fmt.Sprintf("tool %q requires configuration: %s", goal.ToolName, msg)}
}

func (o *Orchestrator) toolExecutionFailure(ctx context.Context, deps neuron.Deps, goal *domain.GoalContext, msg string) domain.NeuronResult {
	if o.perf != nil && goal.ToolName != "" {
		o.perf.RecordToolCall(ctx, goal.ToolName, false, 0, msg)
		if rate, ok := o.perf.ToolSuccessRate(ctx, goal.ToolName); ok && rate < 0.3 {
			return o.refactorTool(ctx, deps, goal, msg)
		}
	}
	return o.fallbackGenerative(ctx, deps, goal, "tool_execution_error")
}

func (o *Orchestrator) refactorTool(ctx context.Context, deps neuron.Deps, goal *domain.GoalContext, msg string) domain.NeuronResult {
	if !o.forgeEnabled || goal.RecoveryWasAttempted(actionRefactorTool) {
		return o.fallbackGenerative(ctx, deps, goal, "refactor_unavailable")
	}
	goal.MarkRecoveryAttempted(actionRefactorTool)

	capability := fmt.Sprintf("a reliable replacement for the %q tool, which keeps failing: %s", goal.ToolName, msg)
	if _, err := o.forge.Synthesize(ctx, capability, goal.GoalText); err != nil {
		if o.logger != nil {
			o.logger.Warn(ctx, "forge refactor failed", "tool", goal.ToolName, "error", err)
		}
		return o.fallbackGenerative(ctx, deps, goal, "refactor_failed")
	}
	return o.rerunTool(ctx, deps, goal)
}

// rerunTool re-invokes the ToolNeuron after a recovery action (forge,
// refine, retry) and resolves its outcome through the same sentinel path,
// so a second sentinel routes through the at-most-once guards instead of
// looping.
func (o *Orchestrator) rerunTool(ctx context.Context, deps neuron.Deps, goal *domain.GoalContext) domain.NeuronResult {
	result := neuron.Run(ctx, deps, goal, o.toolNeuron, nil)
	if !result.Success {
		return result
	}
	text, _ := result.Data.(string)
	return o.resolveToolOutcome(ctx, deps, goal, result, text)
}

func (o *Orchestrator) finalToolFailure(ctx context.Context, goal *domain.GoalContext, msg string) domain.NeuronResult {
	if o.perf != nil && goal.ToolName != "" {
		o.perf.RecordToolCall(ctx, goal.ToolName, false, 0, msg)
	}
	return domain.NeuronResult{Success: false, Error: msg}
}

func (o *Orchestrator) finish(ctx context.Context, goal *domain.GoalContext, success bool, result, errText string) {
	now := time.Now()
	if success {
		goal.Complete(result, now)
	} else {
		goal.Fail(errText, now)
	}

	durationMS := goal.DurationMS()
	o.bus.Append(domain.Event{
		EventType:  domain.EventGoalComplete,
		GoalID:     goal.GoalID,
		Timestamp:  now,
		DurationMS: &durationMS,
		Payload:    map[string]any{"success": success},
	})

	if root, ok := o.tree.GetRoot(goal.GoalID); ok {
		if success {
			_ = o.tree.Complete(root.ThoughtID)
		} else {
			_ = o.tree.Fail(root.ThoughtID)
		}
	}

	if o.logger != nil {
		if success {
			o.logger.Info(ctx, "goal completed", "duration_ms", durationMS)
		} else {
			o.logger.Warn(ctx, "goal failed", "error", errText, "duration_ms", durationMS)
		}
	}
}

func toText(data any) string {
	if s, ok := data.(string); ok {
		return s
	}
	if data == nil {
		return ""
	}
	return fmt.Sprint(data)
}
