package forge

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axonforge/engine/internal/execstore"
	"github.com/axonforge/engine/internal/tools"
)

type fakeLLM struct {
	code string
	def  string
}

func (f *fakeLLM) Generate(_ context.Context, _, _ string, _ float32, _ int) (string, error) {
	return f.code, nil
}

func (f *fakeLLM) GenerateJSON(_ context.Context, _, _ string) (json.RawMessage, error) {
	return json.RawMessage(f.def), nil
}

func TestSynthesizeRegistersAndPersistsTool(t *testing.T) {
	llm := &fakeLLM{
		code: "```go\n" + validSource + "\n```",
		def:  `{"name":"echo_params_tool","description":"echoes its parameters","domain":"utility","parameters":[],"concepts":["echo"],"synonyms":[]}`,
	}
	registry := tools.NewRegistry()
	store := NewMemoryStore()
	f := New(llm, store, registry, t.TempDir(), t.TempDir(), 0, nil)

	name, err := f.Synthesize(context.Background(), "echo back the given parameters", "please echo my input")
	require.NoError(t, err)
	assert.Equal(t, "echo_params_tool", name)

	_, ok := registry.Get(name)
	assert.True(t, ok)

	saved, ok, err := store.Get(context.Background(), name)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "echoes its parameters", saved.Description)
	assert.NotEmpty(t, saved.CodeHash)
}

func TestSynthesizeRejectsBannedCode(t *testing.T) {
	llm := &fakeLLM{
		code: `package main

import "os/exec"

func Execute(params map[string]any) (any, error) {
	_ = exec.Command
	return nil, nil
}

func main() {}
`,
	}
	registry := tools.NewRegistry()
	store := NewMemoryStore()
	f := New(llm, store, registry, t.TempDir(), t.TempDir(), 0, nil)

	_, err := f.Synthesize(context.Background(), "run a shell command", "do something dangerous")
	assert.Error(t, err)
}

func TestSanitizeNameNormalizes(t *testing.T) {
	assert.Equal(t, "my_tool_name", sanitizeName("My Tool-Name!!"))
}

func TestCharacteristicsDefaultsToUnsafeWhenUndeclared(t *testing.T) {
	c := characteristics(extractedDefinition{})
	assert.False(t, c.SafeForShadow, "no declared characteristics should be treated as unsafe for shadow testing")
}

func TestCharacteristicsHonorsExplicitSafeForShadowTesting(t *testing.T) {
	c := characteristics(extractedDefinition{SafeForShadowTesting: true, SideEffects: []string{"writes"}})
	assert.True(t, c.SafeForShadow, "an explicit safe_for_shadow_testing claim should win even with declared side effects")
}

func TestCharacteristicsDerivesSafeFromReadOnlySideEffects(t *testing.T) {
	c := characteristics(extractedDefinition{SideEffects: []string{"read_only"}})
	assert.True(t, c.SafeForShadow)
}

func TestCharacteristicsDerivesSafeFromIdempotence(t *testing.T) {
	c := characteristics(extractedDefinition{Idempotent: true, SideEffects: []string{"writes"}})
	assert.True(t, c.SafeForShadow, "an idempotent tool is safe to shadow test even with side effects")
}

func TestCharacteristicsUnsafeWithUndeclaredSideEffects(t *testing.T) {
	c := characteristics(extractedDefinition{SideEffects: []string{"writes", "api_calls"}})
	assert.False(t, c.SafeForShadow)
}

func TestSynthesizeDerivesCharacteristicsFromExtraction(t *testing.T) {
	llm := &fakeLLM{
		code: "```go\n" + validSource + "\n```",
		def: `{"name":"write_file_tool","description":"writes a file","domain":"utility",` +
			`"parameters":[],"concepts":[],"synonyms":[],"side_effects":["writes"],"idempotent":false,"safe_for_shadow_testing":false}`,
	}
	registry := tools.NewRegistry()
	store := NewMemoryStore()
	f := New(llm, store, registry, t.TempDir(), t.TempDir(), 0, nil)

	name, err := f.Synthesize(context.Background(), "write a file", "please write a file")
	require.NoError(t, err)

	tool, ok := registry.Get(name)
	require.True(t, ok)
	assert.False(t, tool.Definition().Characteristics.SafeForShadow, "a tool that declares write side effects must not be marked safe for shadow testing")
}

func TestSynthesizeRecordsToolCreationEvent(t *testing.T) {
	llm := &fakeLLM{
		code: "```go\n" + validSource + "\n```",
		def:  `{"name":"echo_params_tool","description":"echoes its parameters","domain":"utility","parameters":[],"concepts":["echo"],"synonyms":[]}`,
	}
	registry := tools.NewRegistry()
	store := NewMemoryStore()
	events := execstore.NewMemoryStore()
	f := New(llm, store, registry, t.TempDir(), t.TempDir(), 0, events)

	name, err := f.Synthesize(context.Background(), "echo back the given parameters", "please echo my input")
	require.NoError(t, err)

	created := events.ToolCreations()
	require.Len(t, created, 1)
	assert.Equal(t, name, created[0].ToolName)
	assert.Equal(t, "echo back the given parameters", created[0].Capability)
	assert.Equal(t, "please echo my input", created[0].GoalText)
}
