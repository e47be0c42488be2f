// Package neuron defines the single-responsibility processing units
// the Orchestrator dispatches a goal through, and the Run wrapper
// common to all of them: event emission, thought recording, timing,
// and NeuronResult surfacing (a neuron's failure never propagates to
// its caller as a Go error).
package neuron

import (
	"context"
	"fmt"
	"time"

	"github.com/axonforge/engine/internal/eventbus"
	"github.com/axonforge/engine/internal/observability"
	"github.com/axonforge/engine/internal/thoughttree"
	"github.com/axonforge/engine/pkg/domain"
)

// Processor is implemented by each neuron subtype.
type Processor interface {
	// Name identifies the neuron in events, thoughts, and messages.
	Name() string

	// Process does the neuron's actual work. A returned error is caught
	// by Run and turned into a failed NeuronResult — it never reaches
	// the orchestrator as a panic or bubbled error.
	Process(ctx context.Context, goal *domain.GoalContext, input any) (any, error)
}

// Deps bundles the shared collaborators every neuron's Run call needs.
type Deps struct {
	Bus    *eventbus.Bus
	Tree   *thoughttree.Tree
	Logger *observability.Logger
}

// Run wraps Process with the common neuron lifecycle: emit
// neuron_start, record an "action" thought, invoke Process (recovering
// from panics as well as errors), time it, emit neuron_complete or
// neuron_error, append a message to the goal, and return a
// NeuronResult that is always non-nil.
func Run(ctx context.Context, deps Deps, goal *domain.GoalContext, p Processor, input any) domain.NeuronResult {
	start := time.Now()
	name := p.Name()

	deps.Bus.Append(domain.Event{
		EventType:  domain.EventNeuronStart,
		NeuronType: name,
		GoalID:     goal.GoalID,
		Timestamp:  start,
	})

	var thoughtID string
	if root, ok := deps.Tree.GetRoot(goal.GoalID); ok {
		thought, err := deps.Tree.AddThought(goal.GoalID, root.ThoughtID, name+" is processing", domain.ThoughtAction, start)
		if err == nil {
			thoughtID = thought.ThoughtID
		}
	}

	result := invoke(ctx, p, goal, input)
	duration := time.Since(start)
	durationMS := duration.Milliseconds()

	if thoughtID != "" {
		if result.Success {
			_ = deps.Tree.Complete(thoughtID)
		} else {
			_ = deps.Tree.Fail(thoughtID)
		}
	}

	if result.Success {
		deps.Bus.Append(domain.Event{
			EventType:  domain.EventNeuronComplete,
			NeuronType: name,
			GoalID:     goal.GoalID,
			DurationMS: &durationMS,
		})
		goal.AppendMessage(name, "result", toMessageData(result.Data), time.Now())
		if deps.Logger != nil {
			deps.Logger.Debug(ctx, "neuron completed", "neuron", name, "duration_ms", durationMS)
		}
	} else {
		deps.Bus.Append(domain.Event{
			EventType:  domain.EventNeuronError,
			NeuronType: name,
			GoalID:     goal.GoalID,
			DurationMS: &durationMS,
			Payload:    map[string]any{"error": result.Error},
		})
		goal.AppendMessage(name, "error", result.Error, time.Now())
		if deps.Logger != nil {
			deps.Logger.Warn(ctx, "neuron failed", "neuron", name, "error", result.Error)
		}
	}

	result.DurationMS = durationMS
	return result
}

// invoke calls Process, recovering a panic into a failed NeuronResult
// so a single misbehaving neuron can never take down goal processing.
func invoke(ctx context.Context, p Processor, goal *domain.GoalContext, input any) (result domain.NeuronResult) {
	defer func() {
		if r := recover(); r != nil {
			result = domain.NeuronResult{Success: false, Error: panicMessage(r)}
		}
	}()

	data, err := p.Process(ctx, goal, input)
	if err != nil {
		return domain.NeuronResult{Success: false, Error: err.Error()}
	}
	return domain.NeuronResult{Success: true, Data: data}
}

func panicMessage(r any) string {
	if err, ok := r.(error); ok {
		return err.Error()
	}
	if s, ok := r.(string); ok {
		return s
	}
	return "neuron panicked"
}

func toMessageData(data any) string {
	if s, ok := data.(string); ok {
		return s
	}
	if data == nil {
		return ""
	}
	return fmt.Sprint(data)
}
