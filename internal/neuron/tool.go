package neuron

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/axonforge/engine/internal/tools"
	"github.com/axonforge/engine/pkg/domain"
)

// Registry is the subset of internal/tools.Registry the ToolNeuron needs.
type Registry interface {
	Search(query, toolDomain string, limit int) []domain.ToolDefinition
	Get(name string) (tools.Tool, bool)
}

// ToolNeuron selects and executes a registered tool for a goal.
type ToolNeuron struct {
	llm      LLM
	registry Registry
}

// NewToolNeuron builds a ToolNeuron.
func NewToolNeuron(llm LLM, registry Registry) *ToolNeuron {
	return &ToolNeuron{llm: llm, registry: registry}
}

func (n *ToolNeuron) Name() string { return "tool" }

type toolSelection struct {
	Name string `json:"name"`
}

type paramExtraction struct {
	Parameters map[string]any `json:"parameters"`
}

// Process implements the ToolNeuron protocol. It never returns a Go
// error for a tool-level failure: instead it returns one of the
// NO_MATCHING_TOOL:/TOOL_NOT_FOUND:/TOOL_ERROR:/TOOL_EXCEPTION: sentinel
// strings the orchestrator's recovery policy interprets.
func (n *ToolNeuron) Process(ctx context.Context, goal *domain.GoalContext, _ any) (any, error) {
	candidates := n.registry.Search(goal.GoalText, "", 5)
	if len(candidates) == 0 {
		return fmt.Sprintf("NO_MATCHING_TOOL:no tool matches %q", goal.GoalText), nil
	}

	chosen := candidates[0]
	if len(candidates) > 1 {
		chosen = n.selectTool(ctx, goal.GoalText, candidates)
	}

	tool, ok := n.registry.Get(chosen.Name)
	if !ok {
		return fmt.Sprintf("TOOL_NOT_FOUND:%s", chosen.Name), nil
	}

	params, err := n.extractParameters(ctx, goal.GoalText, chosen)
	if err != nil {
		return fmt.Sprintf("TOOL_EXCEPTION:%s", err.Error()), nil
	}

	goal.ToolName = chosen.Name
	goal.Parameters = params

	result, err := tool.Execute(ctx, params)
	if err != nil {
		return fmt.Sprintf("TOOL_EXCEPTION:%s", err.Error()), nil
	}
	if result.Error != "" {
		return fmt.Sprintf("TOOL_ERROR:%s", result.Error), nil
	}

	return formatOutput(result.Value), nil
}

func (n *ToolNeuron) selectTool(ctx context.Context, goalText string, candidates []domain.ToolDefinition) domain.ToolDefinition {
	names := make([]string, 0, len(candidates))
	for _, c := range candidates {
		names = append(names, c.Name)
	}

	prompt := fmt.Sprintf(
		"Goal: %s\n\nCandidate tools:\n%s\n\nReply with JSON {\"name\": \"<chosen tool name>\"} picking the single best match.",
		goalText, describeCandidates(candidates),
	)
	raw, err := n.llm.GenerateJSON(ctx, prompt, "You select the single best tool for a goal. Respond with only JSON.")
	if err == nil {
		var sel toolSelection
		if json.Unmarshal(raw, &sel) == nil {
			for _, c := range candidates {
				if c.Name == sel.Name {
					return c
				}
			}
		}
	}

	_ = names
	return candidates[0]
}

func describeCandidates(candidates []domain.ToolDefinition) string {
	var b strings.Builder
	for _, c := range candidates {
		fmt.Fprintf(&b, "- %s: %s\n", c.Name, c.Description)
	}
	return b.String()
}

// extractParameters prompts the LLM for the tool's parameter values,
// retrying once with a decomposed prompt if the first attempt fails to
// produce every required parameter.
func (n *ToolNeuron) extractParameters(ctx context.Context, goalText string, def domain.ToolDefinition) (map[string]any, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		prompt := extractionPrompt(goalText, def, attempt)
		raw, err := n.llm.GenerateJSON(ctx, prompt, "You extract tool parameters from a user's goal. Respond with only JSON.")
		if err != nil {
			lastErr = err
			continue
		}

		var extraction paramExtraction
		if err := json.Unmarshal(raw, &extraction); err != nil {
			// Some models reply with the parameter object directly
			// rather than nesting it under "parameters".
			var flat map[string]any
			if err2 := json.Unmarshal(raw, &flat); err2 == nil {
				extraction.Parameters = flat
			} else {
				lastErr = err
				continue
			}
		}

		if missing := missingRequired(def, extraction.Parameters); len(missing) == 0 {
			return applyDefaults(def, extraction.Parameters), nil
		}
		lastErr = fmt.Errorf("missing required parameters: %s", strings.Join(missingRequired(def, extraction.Parameters), ", "))
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("parameter extraction failed")
	}
	return nil, lastErr
}

func extractionPrompt(goalText string, def domain.ToolDefinition, attempt int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Goal: %s\n\nTool %q expects parameters:\n", goalText, def.Name)
	for _, p := range def.Parameters {
		fmt.Fprintf(&b, "- %s (%s)%s: %s\n", p.Name, p.Type, requiredSuffix(p.Required), p.Description)
	}
	if attempt > 0 {
		b.WriteString("\nThe previous attempt was incomplete. Break the goal into steps, identify each parameter's value from those steps, ")
	}
	b.WriteString("\nReply with JSON {\"parameters\": {<name>: <value>, ...}}.")
	return b.String()
}

func requiredSuffix(required bool) string {
	if required {
		return ", required"
	}
	return ", optional"
}

func missingRequired(def domain.ToolDefinition, params map[string]any) []string {
	var missing []string
	for _, p := range def.Parameters {
		if !p.Required {
			continue
		}
		if _, ok := params[p.Name]; !ok {
			missing = append(missing, p.Name)
		}
	}
	sort.Strings(missing)
	return missing
}

func applyDefaults(def domain.ToolDefinition, params map[string]any) map[string]any {
	if params == nil {
		params = make(map[string]any)
	}
	for _, p := range def.Parameters {
		if _, ok := params[p.Name]; !ok && p.Default != nil {
			params[p.Name] = p.Default
		}
	}
	return params
}

// formatOutput wraps a tool's raw return value per spec: maps with an
// "error" key become an error string; maps with a "result" key become
// that value stringified; any other map becomes formatted structured
// text; anything else is stringified directly.
func formatOutput(value any) string {
	if m, ok := value.(map[string]any); ok {
		if errVal, ok := m["error"]; ok {
			return fmt.Sprint(errVal)
		}
		if result, ok := m["result"]; ok {
			return fmt.Sprint(result)
		}
		return formatStructured(m)
	}
	return fmt.Sprint(value)
}

func formatStructured(m map[string]any) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s: %v", k, m[k])
	}
	return b.String()
}
