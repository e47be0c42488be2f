package orchestrator_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axonforge/engine/internal/eventbus"
	"github.com/axonforge/engine/internal/forge"
	"github.com/axonforge/engine/internal/neuron"
	"github.com/axonforge/engine/internal/observability"
	"github.com/axonforge/engine/internal/orchestrator"
	"github.com/axonforge/engine/internal/thoughttree"
	"github.com/axonforge/engine/internal/tools"
	"github.com/axonforge/engine/pkg/domain"
)

// fakeLLM satisfies neuron.LLM and forge.LLM: both are the identical
// Generate/GenerateJSON shape, so one fake serves every collaborator below.
type fakeLLM struct {
	generateReply string
	generateErr   error
	jsonReply     string
	jsonErr       error
}

func (f *fakeLLM) Generate(_ context.Context, _, _ string, _ float32, _ int) (string, error) {
	return f.generateReply, f.generateErr
}

func (f *fakeLLM) GenerateJSON(_ context.Context, _, _ string) (json.RawMessage, error) {
	if f.jsonErr != nil {
		return nil, f.jsonErr
	}
	return json.RawMessage(f.jsonReply), nil
}

type perfCall struct {
	tool       string
	success    bool
	durationMS int64
	errText    string
}

type fakePerf struct {
	calls  []perfCall
	rate   float64
	rateOK bool
}

func (p *fakePerf) RecordToolCall(_ context.Context, toolName string, success bool, durationMS int64, errText string) {
	p.calls = append(p.calls, perfCall{tool: toolName, success: success, durationMS: durationMS, errText: errText})
}

func (p *fakePerf) ToolSuccessRate(_ context.Context, _ string) (float64, bool) {
	return p.rate, p.rateOK
}

// stubRegistry implements the neuron package's narrow Registry interface
// directly, independent of the real tools.Registry, so tests can return a
// search candidate that Get never resolves (TOOL_NOT_FOUND) without racing
// a real registry's own Search/Get consistency.
type stubRegistry struct {
	candidates []domain.ToolDefinition
	byName     map[string]tools.Tool
}

func (r *stubRegistry) Search(_, _ string, _ int) []domain.ToolDefinition { return r.candidates }
func (r *stubRegistry) Get(name string) (tools.Tool, bool) {
	t, ok := r.byName[name]
	return t, ok
}

func testDeps() (*eventbus.Bus, *thoughttree.Tree, *observability.Logger) {
	return eventbus.New(100), thoughttree.New(), observability.NewLogger(observability.LogConfig{})
}

func TestProcessGenerativeGoal(t *testing.T) {
	bus, tree, logger := testDeps()
	intentLLM := &fakeLLM{generateReply: "generative"}
	genLLM := &fakeLLM{generateReply: "Paris is the capital of France."}

	o := orchestrator.New(orchestrator.Config{
		Bus: bus, Tree: tree, Logger: logger, Registry: tools.NewRegistry(),
		Intent:     neuron.NewIntentNeuron(intentLLM, nil),
		Generative: neuron.NewGenerativeNeuron(genLLM),
	})

	resp := o.Process(context.Background(), "what is the capital of France")
	assert.True(t, resp.Success)
	assert.Equal(t, domain.IntentGenerative, resp.Intent)
	assert.Equal(t, "Paris is the capital of France.", resp.Result)
	assert.NotZero(t, bus.Len())
}

func TestProcessToolGoalSuccessRecordsPerformance(t *testing.T) {
	bus, tree, logger := testDeps()
	registry := tools.NewRegistry()
	def := domain.ToolDefinition{Name: "weather", Parameters: []domain.Parameter{{Name: "city", Type: "string", Required: true}}}
	registry.Register(tools.NewFuncTool(def, func(_ context.Context, _ map[string]any) (tools.Result, error) {
		return tools.Result{Value: map[string]any{"result": "sunny"}}, nil
	}))

	perf := &fakePerf{}
	o := orchestrator.New(orchestrator.Config{
		Bus: bus, Tree: tree, Logger: logger, Registry: registry, Performance: perf,
		Intent: neuron.NewIntentNeuron(&fakeLLM{generateReply: "tool"}, nil),
		Tool:   neuron.NewToolNeuron(&fakeLLM{jsonReply: `{"parameters":{"city":"Paris"}}`}, registry),
	})

	resp := o.Process(context.Background(), "what's the weather in paris")
	require.True(t, resp.Success)
	assert.Equal(t, "sunny", resp.Result)
	require.Len(t, perf.calls, 1)
	assert.True(t, perf.calls[0].success)
	assert.Equal(t, "weather", perf.calls[0].tool)
}

func TestProcessToolNotFoundFallsBackToGenerativeWhenForgeDisabled(t *testing.T) {
	bus, tree, logger := testDeps()
	reg := &stubRegistry{candidates: []domain.ToolDefinition{{Name: "ghost"}}, byName: map[string]tools.Tool{}}

	o := orchestrator.New(orchestrator.Config{
		Bus: bus, Tree: tree, Logger: logger, Registry: tools.NewRegistry(),
		Intent:     neuron.NewIntentNeuron(&fakeLLM{generateReply: "tool"}, nil),
		Tool:       neuron.NewToolNeuron(&fakeLLM{}, reg),
		Generative: neuron.NewGenerativeNeuron(&fakeLLM{generateReply: "fallback answer"}),
	})

	resp := o.Process(context.Background(), "summon the ghost tool")
	require.True(t, resp.Success)
	assert.Equal(t, "fallback answer", resp.Result)
}

func TestProcessToolNotFoundWithoutGenerativeFails(t *testing.T) {
	bus, tree, logger := testDeps()
	reg := &stubRegistry{candidates: []domain.ToolDefinition{{Name: "ghost"}}, byName: map[string]tools.Tool{}}

	o := orchestrator.New(orchestrator.Config{
		Bus: bus, Tree: tree, Logger: logger, Registry: tools.NewRegistry(),
		Intent: neuron.NewIntentNeuron(&fakeLLM{generateReply: "tool"}, nil),
		Tool:   neuron.NewToolNeuron(&fakeLLM{}, reg),
	})

	resp := o.Process(context.Background(), "summon the ghost tool")
	assert.False(t, resp.Success)
	assert.NotEmpty(t, resp.Error)
}

func TestProcessToolErrorAuthRequiredRequestsConfig(t *testing.T) {
	bus, tree, logger := testDeps()
	registry := tools.NewRegistry()
	def := domain.ToolDefinition{Name: "billing"}
	registry.Register(tools.NewFuncTool(def, func(_ context.Context, _ map[string]any) (tools.Result, error) {
		return tools.Result{Error: "authentication required: missing API key"}, nil
	}))

	o := orchestrator.New(orchestrator.Config{
		Bus: bus, Tree: tree, Logger: logger, Registry: registry,
		Intent: neuron.NewIntentNeuron(&fakeLLM{generateReply: "tool"}, nil),
		Tool:   neuron.NewToolNeuron(&fakeLLM{jsonReply: `{"parameters":{}}`}, registry),
	})

	resp := o.Process(context.Background(), "charge the customer")
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "requires configuration")
}

func TestProcessToolErrorTimeoutRetriesThenFails(t *testing.T) {
	bus, tree, logger := testDeps()
	registry := tools.NewRegistry()
	attempts := 0
	def := domain.ToolDefinition{Name: "slow_api"}
	registry.Register(tools.NewFuncTool(def, func(_ context.Context, _ map[string]any) (tools.Result, error) {
		attempts++
		return tools.Result{Error: "request timed out"}, nil
	}))

	o := orchestrator.New(orchestrator.Config{
		Bus: bus, Tree: tree, Logger: logger, Registry: registry,
		Intent: neuron.NewIntentNeuron(&fakeLLM{generateReply: "tool"}, nil),
		Tool:   neuron.NewToolNeuron(&fakeLLM{jsonReply: `{"parameters":{}}`}, registry),
	})

	resp := o.Process(context.Background(), "call the slow api")
	assert.False(t, resp.Success)
	assert.Equal(t, 2, attempts) // original call + one retry
}

func TestProcessToolExecutionErrorRefactorsWhenSuccessRateLow(t *testing.T) {
	bus, tree, logger := testDeps()
	registry := tools.NewRegistry()
	def := domain.ToolDefinition{Name: "flaky"}
	registry.Register(tools.NewFuncTool(def, func(_ context.Context, _ map[string]any) (tools.Result, error) {
		return tools.Result{Error: "unexpected panic in handler"}, nil
	}))

	perf := &fakePerf{rate: 0.1, rateOK: true}
	forgeStore := forge.NewMemoryStore()
	f := forge.New(&fakeLLM{
		generateReply: "```go\n" + ghostSource + "\n```",
		jsonReply:     `{"name":"flaky_replacement","description":"replacement","domain":"utility","parameters":[],"concepts":[],"synonyms":[]}`,
	}, forgeStore, registry, t.TempDir(), t.TempDir(), 0, nil)

	o := orchestrator.New(orchestrator.Config{
		Bus: bus, Tree: tree, Logger: logger, Registry: registry,
		Forge: f, ForgeEnabled: true, Performance: perf,
		Intent: neuron.NewIntentNeuron(&fakeLLM{generateReply: "tool"}, nil),
		Tool:   neuron.NewToolNeuron(&fakeLLM{jsonReply: `{"parameters":{}}`}, registry),
	})

	resp := o.Process(context.Background(), "use the flaky tool")
	// The outcome of the refactor depends on compiling the replacement, so
	// only the first recorded call is checked: the flaky tool's own
	// failure, which is what sends the low success rate into a refactor.
	require.NotEmpty(t, perf.calls)
	assert.Equal(t, "flaky", perf.calls[0].tool)
	assert.False(t, perf.calls[0].success)
	_ = resp
}

const ghostSource = `package main

import (
	"encoding/json"
	"flag"
	"os"
)

func Execute(params map[string]any) (any, error) {
	return map[string]any{"result": "replaced"}, nil
}

func main() {
	paramsJSON := flag.String("params", "", "tool params JSON")
	flag.Parse()
	var params map[string]any
	if *paramsJSON != "" {
		_ = json.Unmarshal([]byte(*paramsJSON), &params)
	}
	result, _ := Execute(params)
	_ = json.NewEncoder(os.Stdout).Encode(map[string]any{"result": result})
}
`
