package neuron

import (
	"context"
	"fmt"

	"github.com/axonforge/engine/pkg/domain"
)

const generativeSystemPrompt = `Answer the user's request directly. Be concise and accurate; do not pad with filler.`

// GenerativeNeuron produces a free-text response for goals that don't
// need a tool or memory lookup.
type GenerativeNeuron struct {
	llm LLM
}

// NewGenerativeNeuron builds a GenerativeNeuron.
func NewGenerativeNeuron(llm LLM) *GenerativeNeuron {
	return &GenerativeNeuron{llm: llm}
}

func (n *GenerativeNeuron) Name() string { return "generative" }

func (n *GenerativeNeuron) Process(ctx context.Context, goal *domain.GoalContext, _ any) (any, error) {
	reply, err := n.llm.Generate(ctx, goal.GoalText, generativeSystemPrompt, 0.7, 2048)
	if err != nil {
		return nil, fmt.Errorf("%w: generative response: %w", domain.ErrLLM, err)
	}
	return reply, nil
}
