package neuron

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/axonforge/engine/pkg/domain"
)

// LLM is the subset of internal/llmclient.Client the neuron package needs.
type LLM interface {
	Generate(ctx context.Context, prompt, system string, temperature float32, maxTokens int) (string, error)
	GenerateJSON(ctx context.Context, prompt, system string) (json.RawMessage, error)
}

const intentSystemPrompt = `Classify the user's goal into exactly one label: generative, tool, memory_read, or memory_write. Respond with only the label, nothing else.`

// IntentNeuron classifies goal text into one of domain's four intents.
type IntentNeuron struct {
	llm   LLM
	cache *IntentCache
}

// NewIntentNeuron builds an IntentNeuron. cache may be nil to disable
// the fast-path.
func NewIntentNeuron(llm LLM, cache *IntentCache) *IntentNeuron {
	return &IntentNeuron{llm: llm, cache: cache}
}

func (n *IntentNeuron) Name() string { return "intent" }

func (n *IntentNeuron) Process(ctx context.Context, goal *domain.GoalContext, _ any) (any, error) {
	if n.cache != nil {
		if cached, ok := n.cache.Get(goal.GoalText); ok {
			return cached, nil
		}
	}

	raw, err := n.llm.Generate(ctx, goal.GoalText, intentSystemPrompt, 0, 16)
	if err != nil {
		return nil, fmt.Errorf("%w: intent classification: %w", domain.ErrLLM, err)
	}

	return classify(raw), nil
}

// RecordOutcome writes a cache entry if the goal succeeded, implementing
// "cache only what worked". No-op if caching is disabled.
func (n *IntentNeuron) RecordOutcome(goalText string, intent domain.Intent, succeeded bool) {
	if n.cache == nil || !succeeded {
		return
	}
	n.cache.Put(goalText, intent)
}

// classify normalizes an LLM's free-text label via substring heuristic,
// defaulting to generative for anything unrecognized.
func classify(raw string) domain.Intent {
	lower := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case strings.Contains(lower, "memory_write"), strings.Contains(lower, "memory write"):
		return domain.IntentMemoryWrite
	case strings.Contains(lower, "memory_read"), strings.Contains(lower, "memory read"):
		return domain.IntentMemoryRead
	case strings.Contains(lower, "tool"):
		return domain.IntentTool
	case strings.Contains(lower, "generative"):
		return domain.IntentGenerative
	default:
		return domain.IntentGenerative
	}
}
