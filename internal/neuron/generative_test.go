package neuron

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axonforge/engine/pkg/domain"
)

func TestGenerativeNeuronReturnsReply(t *testing.T) {
	llm := &fakeLLM{generateReply: "here is your answer"}
	n := NewGenerativeNeuron(llm)
	goal := domain.NewGoalContext("g1", "what is the capital of France", time.Now())

	data, err := n.Process(context.Background(), goal, nil)
	require.NoError(t, err)
	assert.Equal(t, "here is your answer", data)
}

func TestGenerativeNeuronWrapsLLMError(t *testing.T) {
	llm := &fakeLLM{generateErr: assertError("down")}
	n := NewGenerativeNeuron(llm)
	goal := domain.NewGoalContext("g1", "hello", time.Now())

	_, err := n.Process(context.Background(), goal, nil)
	assert.Error(t, err)
}
