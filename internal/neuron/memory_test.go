package neuron

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axonforge/engine/internal/kv"
	"github.com/axonforge/engine/pkg/domain"
)

func TestMemoryNeuronWrite(t *testing.T) {
	store := kv.NewMemoryStore()
	llm := &fakeLLM{jsonReply: `{"key":"favorite_color","value":"blue"}`}
	n := NewMemoryNeuron(llm, store)

	goal := domain.NewGoalContext("g1", "remember my favorite color is blue", time.Now())
	goal.Intent = domain.IntentMemoryWrite

	data, err := n.Process(context.Background(), goal, nil)
	require.NoError(t, err)
	assert.Contains(t, data.(string), "favorite_color")

	v, ok, _ := store.Get(context.Background(), "favorite_color")
	require.True(t, ok)
	assert.Equal(t, "blue", v)
}

func TestMemoryNeuronReadExactMatch(t *testing.T) {
	store := kv.NewMemoryStore()
	require.NoError(t, store.Set(context.Background(), "favorite_color", "blue"))

	llm := &fakeLLM{jsonReply: `{"key":"favorite_color"}`}
	n := NewMemoryNeuron(llm, store)
	goal := domain.NewGoalContext("g1", "what's my favorite color", time.Now())
	goal.Intent = domain.IntentMemoryRead

	data, err := n.Process(context.Background(), goal, nil)
	require.NoError(t, err)
	assert.Equal(t, "favorite_color = blue", data)
}

func TestMemoryNeuronReadWildcardFallback(t *testing.T) {
	store := kv.NewMemoryStore()
	require.NoError(t, store.Set(context.Background(), "user:alice:email", "a@x.com"))

	llm := &fakeLLM{jsonReply: `{"key":"user:alice"}`}
	n := NewMemoryNeuron(llm, store)
	goal := domain.NewGoalContext("g1", "what do we know about alice", time.Now())
	goal.Intent = domain.IntentMemoryRead

	data, err := n.Process(context.Background(), goal, nil)
	require.NoError(t, err)
	assert.Contains(t, data.(string), "user:alice:email")
}

func TestMemoryNeuronReadNoMatch(t *testing.T) {
	store := kv.NewMemoryStore()
	llm := &fakeLLM{jsonReply: `{"key":"nonexistent"}`}
	n := NewMemoryNeuron(llm, store)
	goal := domain.NewGoalContext("g1", "what is nonexistent", time.Now())
	goal.Intent = domain.IntentMemoryRead

	data, err := n.Process(context.Background(), goal, nil)
	require.NoError(t, err)
	assert.Contains(t, data.(string), "no memory found")
}

func TestMemoryNeuronExtractionFailureErrors(t *testing.T) {
	store := kv.NewMemoryStore()
	llm := &fakeLLM{jsonReply: `{}`}
	n := NewMemoryNeuron(llm, store)
	goal := domain.NewGoalContext("g1", "remember something vague", time.Now())
	goal.Intent = domain.IntentMemoryWrite

	_, err := n.Process(context.Background(), goal, nil)
	assert.Error(t, err)
}
