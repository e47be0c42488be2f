package neuron

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axonforge/engine/internal/eventbus"
	"github.com/axonforge/engine/internal/observability"
	"github.com/axonforge/engine/internal/thoughttree"
	"github.com/axonforge/engine/pkg/domain"
)

type stubProcessor struct {
	name   string
	result any
	err    error
	panics bool
}

func (s stubProcessor) Name() string { return s.name }

func (s stubProcessor) Process(_ context.Context, _ *domain.GoalContext, _ any) (any, error) {
	if s.panics {
		panic("boom")
	}
	return s.result, s.err
}

func testDeps() (Deps, *eventbus.Bus, *thoughttree.Tree) {
	bus := eventbus.New(100)
	tree := thoughttree.New()
	logger := observability.NewLogger(observability.LogConfig{})
	return Deps{Bus: bus, Tree: tree, Logger: logger}, bus, tree
}

func TestRunSuccessEmitsEventsAndMessage(t *testing.T) {
	deps, bus, tree := testDeps()
	goal := domain.NewGoalContext("g1", "do a thing", time.Now())
	tree.CreateRoot(goal.GoalID, goal.GoalText, time.Now())

	result := Run(context.Background(), deps, goal, stubProcessor{name: "stub", result: "ok"}, nil)
	assert.True(t, result.Success)
	assert.Equal(t, "ok", result.Data)
	require.Len(t, goal.Messages, 1)
	assert.Equal(t, "result", goal.Messages[0].Type)

	events := bus.Query(domain.EventFilter{GoalID: "g1"})
	require.Len(t, events, 2)
	assert.Equal(t, domain.EventNeuronStart, events[0].EventType)
	assert.Equal(t, domain.EventNeuronComplete, events[1].EventType)
}

func TestRunFailureEmitsErrorEvent(t *testing.T) {
	deps, bus, tree := testDeps()
	goal := domain.NewGoalContext("g1", "do a thing", time.Now())
	tree.CreateRoot(goal.GoalID, goal.GoalText, time.Now())

	result := Run(context.Background(), deps, goal, stubProcessor{name: "stub", err: assertError("nope")}, nil)
	assert.False(t, result.Success)
	assert.Equal(t, "nope", result.Error)

	events := bus.Query(domain.EventFilter{EventType: domain.EventNeuronError})
	require.Len(t, events, 1)
}

func TestRunRecoversPanic(t *testing.T) {
	deps, _, tree := testDeps()
	goal := domain.NewGoalContext("g1", "do a thing", time.Now())
	tree.CreateRoot(goal.GoalID, goal.GoalText, time.Now())

	result := Run(context.Background(), deps, goal, stubProcessor{name: "stub", panics: true}, nil)
	assert.False(t, result.Success)
	assert.Equal(t, "boom", result.Error)
}

type stringError string

func (e stringError) Error() string { return string(e) }
func assertError(msg string) error  { return stringError(msg) }
