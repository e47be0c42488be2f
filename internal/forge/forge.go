// Package forge synthesizes a new Tool when no existing one satisfies a
// goal: it prompts the LLM for Go source, validates and compiles it,
// extracts a ToolDefinition, registers the result, and persists it as a
// domain.ForgedTool. No lifecycle status is recorded for a forged tool.
package forge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/axonforge/engine/internal/tools"
	"github.com/axonforge/engine/pkg/domain"
)

// LLM is the subset of internal/llmclient.Client the Forge needs.
type LLM interface {
	Generate(ctx context.Context, prompt, system string, temperature float32, maxTokens int) (string, error)
	GenerateJSON(ctx context.Context, prompt, system string) (json.RawMessage, error)
}

// EventRecorder is the subset of internal/execstore.Store the Forge
// needs to log a tool creation event. Declared locally so this package
// doesn't import execstore directly; execstore.Store already satisfies it.
type EventRecorder interface {
	RecordToolCreation(ctx context.Context, toolName, capability, goalText string) error
}

// Forge synthesizes, validates, sandboxes, and persists new tools.
type Forge struct {
	llm        LLM
	store      Store
	registry   *tools.Registry
	scratchDir string
	backupDir  string
	timeout    time.Duration
	events     EventRecorder
}

// New builds a Forge. timeout <= 0 defaults to 10s for the synthesized
// tool's sandbox execution timeout (compile has its own fixed budget).
// events may be nil, in which case tool creation goes unlogged (tests
// that don't care about the execution store's audit trail).
func New(llm LLM, store Store, registry *tools.Registry, scratchDir, backupDir string, timeout time.Duration, events EventRecorder) *Forge {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Forge{llm: llm, store: store, registry: registry, scratchDir: scratchDir, backupDir: backupDir, timeout: timeout, events: events}
}

// extractedDefinition is the JSON shape the LLM returns for step 4 of
// the forge protocol.
type extractedDefinition struct {
	Name                 string             `json:"name"`
	Description          string             `json:"description"`
	Domain               string             `json:"domain"`
	Parameters           []domain.Parameter `json:"parameters"`
	Concepts             []string           `json:"concepts"`
	Synonyms             []string           `json:"synonyms"`
	SideEffects          []string           `json:"side_effects"`
	Idempotent           bool               `json:"idempotent"`
	SafeForShadowTesting bool               `json:"safe_for_shadow_testing"`
}

// characteristics derives domain.Characteristics from an extracted
// definition, mirroring the decision order a shadow tester uses to
// decide whether parallel old/new execution is safe: an explicit
// safe_for_shadow_testing claim wins, then read-only side effects,
// then idempotence. Anything else defaults to unsafe, since running
// a tool with unknown or real side effects twice risks double writes.
func characteristics(e extractedDefinition) domain.Characteristics {
	c := domain.Characteristics{
		Idempotent:  e.Idempotent,
		SideEffects: e.SideEffects,
	}
	c.SafeForShadow = e.SafeForShadowTesting || c.ReadOnly() || e.Idempotent
	return c
}

// Synthesize runs the full Forge protocol for capability (the missing
// functionality) triggered by goalText, registering the resulting tool
// in the Forge's registry and persisting it as a domain.ForgedTool; the
// record carries no lifecycle status. Returns the new tool's name.
func (f *Forge) Synthesize(ctx context.Context, capability, goalText string) (string, error) {
	// 1-2: generate source.
	prompt := GenerationPrompt(capability, goalText)
	raw, err := f.llm.Generate(ctx, prompt, "You are a precise Go code generator. Output only code.", 0.2, 4096)
	if err != nil {
		return "", fmt.Errorf("forge: generation failed: %w", err)
	}
	code := stripFences(raw)

	// 3: validate.
	if err := Validate(code); err != nil {
		return "", err
	}

	// 4: extract definition.
	defPrompt := DefinitionExtractionPrompt(code)
	defJSON, err := f.llm.GenerateJSON(ctx, defPrompt, "You describe Go programs as strict JSON.")
	if err != nil {
		return "", fmt.Errorf("forge: definition extraction failed: %w", err)
	}
	var extracted extractedDefinition
	if err := json.Unmarshal(defJSON, &extracted); err != nil || strings.TrimSpace(extracted.Name) == "" {
		// Fall back to a derived name so a parse hiccup doesn't abort synthesis.
		extracted.Name = deriveName(capability)
		extracted.Description = capability
	}
	name := sanitizeName(extracted.Name)
	if name == "" {
		name = deriveName(capability)
	}

	// 5: instantiate in an isolated namespace — compile to a standalone
	// binary invoked as a subprocess (Go has no safe in-process eval).
	binPath, err := build(ctx, f.scratchDir, f.backupDir, name, code)
	if err != nil {
		return "", err
	}

	def := domain.ToolDefinition{
		Name:            name,
		Description:     extracted.Description,
		Parameters:      extracted.Parameters,
		Domain:          extracted.Domain,
		Concepts:        extracted.Concepts,
		Synonyms:        extracted.Synonyms,
		Characteristics: characteristics(extracted),
	}

	// 6: register and persist.
	f.registry.Register(tools.NewSandboxTool(def, binPath, nil, f.timeout))

	forged := domain.ForgedTool{
		Name:        name,
		Description: def.Description,
		Code:        code,
		Parameters:  def.Parameters,
		Domain:      def.Domain,
		Concepts:    def.Concepts,
		Version:     1,
		CreatedAt:   time.Now(),
		CodeHash:    codeHash(code),
	}
	if err := f.store.Save(ctx, forged); err != nil {
		return "", fmt.Errorf("forge: persist forged tool: %w", err)
	}

	if f.events != nil {
		if err := f.events.RecordToolCreation(ctx, name, capability, goalText); err != nil {
			slog.Default().With("component", "forge").Warn("record tool creation failed", "tool", name, "error", err)
		}
	}

	return name, nil
}

func stripFences(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```")
	if idx := strings.Index(trimmed, "\n"); idx >= 0 {
		firstLine := strings.TrimSpace(trimmed[:idx])
		if firstLine == "" || strings.EqualFold(firstLine, "go") || strings.EqualFold(firstLine, "golang") {
			trimmed = trimmed[idx+1:]
		}
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

func sanitizeName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	var b strings.Builder
	for _, r := range name {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '_' {
			b.WriteRune(r)
		} else if r == ' ' || r == '-' {
			b.WriteRune('_')
		}
	}
	return b.String()
}
