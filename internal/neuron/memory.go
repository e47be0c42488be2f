package neuron

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/axonforge/engine/internal/kv"
	"github.com/axonforge/engine/pkg/domain"
)

const memoryExtractionPrompt = `Extract the memory operation's key (and value, if writing) from the goal text. Reply with JSON {"key": "...", "value": "..."} — omit "value" for a read.`

// MemoryNeuron reads or writes the key-value store depending on the
// goal's classified intent.
type MemoryNeuron struct {
	llm   LLM
	store kv.Store
}

// NewMemoryNeuron builds a MemoryNeuron.
func NewMemoryNeuron(llm LLM, store kv.Store) *MemoryNeuron {
	return &MemoryNeuron{llm: llm, store: store}
}

func (n *MemoryNeuron) Name() string { return "memory" }

type memoryExtraction struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func (n *MemoryNeuron) Process(ctx context.Context, goal *domain.GoalContext, _ any) (any, error) {
	raw, err := n.llm.GenerateJSON(ctx, fmt.Sprintf("Goal: %s\n\n%s", goal.GoalText, memoryExtractionPrompt),
		"You extract key-value memory operations from a goal. Respond with only JSON.")
	if err != nil {
		return nil, fmt.Errorf("%w: memory extraction: %w", domain.ErrLLM, err)
	}

	var extraction memoryExtraction
	if err := json.Unmarshal(raw, &extraction); err != nil || strings.TrimSpace(extraction.Key) == "" {
		return nil, fmt.Errorf("%w: could not determine memory key from goal", domain.ErrParse)
	}

	if goal.Intent == domain.IntentMemoryWrite {
		if err := n.store.Set(ctx, extraction.Key, extraction.Value); err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrStore, err)
		}
		return fmt.Sprintf("stored %q", extraction.Key), nil
	}

	return n.read(ctx, extraction.Key)
}

func (n *MemoryNeuron) read(ctx context.Context, key string) (string, error) {
	if value, ok, err := n.store.Get(ctx, key); err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrStore, err)
	} else if ok {
		return fmt.Sprintf("%s = %s", key, value), nil
	}

	keys, err := n.store.Keys(ctx, key, 5)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrStore, err)
	}
	if len(keys) == 0 {
		return fmt.Sprintf("no memory found matching %q", key), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "no exact match for %q; found %d related:\n", key, len(keys))
	for _, k := range keys {
		if value, ok, _ := n.store.Get(ctx, k); ok {
			fmt.Fprintf(&b, "- %s = %s\n", k, value)
		}
	}
	return strings.TrimRight(b.String(), "\n"), nil
}
