package forge

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/axonforge/engine/internal/tools"
	"github.com/axonforge/engine/pkg/domain"
)

// Candidate is an unreviewed replacement implementation for an existing
// tool: compiled to its own binary, distinct from the tool's live one,
// so the live tool keeps serving traffic while the candidate is tested.
type Candidate struct {
	Name         string
	Definition   domain.ToolDefinition
	Code         string
	BinPath      string
	PriorVersion int
}

// Tool wraps the candidate's binary as an executable tools.Tool for
// testing strategies to run without registering it.
func (c Candidate) Tool(timeout time.Duration) tools.Tool {
	return tools.NewSandboxTool(c.Definition, c.BinPath, nil, timeout)
}

// GenerateCandidate asks the LLM to regenerate name's implementation
// given investigation findings from the autonomous improvement loop,
// and compiles it to its own binary without touching the live tool.
func (f *Forge) GenerateCandidate(ctx context.Context, name, investigationFindings string) (Candidate, error) {
	prior, _, err := f.store.Get(ctx, name)
	if err != nil {
		return Candidate{}, fmt.Errorf("forge: load prior tool: %w", err)
	}

	prompt := GenerationPrompt(name, investigationFindings)
	raw, err := f.llm.Generate(ctx, prompt, "You are a precise Go code generator. Output only code.", 0.2, 4096)
	if err != nil {
		return Candidate{}, fmt.Errorf("forge: candidate generation failed: %w", err)
	}
	code := stripFences(raw)

	if err := Validate(code); err != nil {
		return Candidate{}, err
	}

	defPrompt := DefinitionExtractionPrompt(code)
	defJSON, err := f.llm.GenerateJSON(ctx, defPrompt, "You describe Go programs as strict JSON.")
	if err != nil {
		return Candidate{}, fmt.Errorf("forge: candidate definition extraction failed: %w", err)
	}
	var extracted extractedDefinition
	if err := json.Unmarshal(defJSON, &extracted); err != nil {
		extracted.Description = investigationFindings
	}

	binPath, err := build(ctx, f.scratchDir, f.backupDir, name+".candidate", code)
	if err != nil {
		return Candidate{}, err
	}

	def := domain.ToolDefinition{
		Name:            name,
		Description:     firstNonEmpty(extracted.Description, prior.Description),
		Parameters:      firstNonEmptyParams(extracted.Parameters, prior.Parameters),
		Domain:          firstNonEmpty(extracted.Domain, prior.Domain),
		Concepts:        extracted.Concepts,
		Characteristics: characteristics(extracted),
	}

	return Candidate{
		Name:         name,
		Definition:   def,
		Code:         code,
		BinPath:      binPath,
		PriorVersion: prior.Version,
	}, nil
}

// Promote moves a tested candidate's binary over the tool's live path,
// registers it, and persists the bumped-version ForgedTool record.
// Callers should back up the live binary (see internal/monitor) before
// calling Promote if they need a rollback target.
func (f *Forge) Promote(ctx context.Context, c Candidate) (domain.ForgedTool, error) {
	livePath := livePathFor(f.backupDir, c.Name)
	if err := os.Rename(c.BinPath, livePath); err != nil {
		return domain.ForgedTool{}, fmt.Errorf("forge: promote candidate binary: %w", err)
	}

	f.registry.Register(tools.NewSandboxTool(c.Definition, livePath, nil, f.timeout))

	forged := domain.ForgedTool{
		Name:        c.Name,
		Description: c.Definition.Description,
		Code:        c.Code,
		Parameters:  c.Definition.Parameters,
		Domain:      c.Definition.Domain,
		Concepts:    c.Definition.Concepts,
		Version:     c.PriorVersion + 1,
		CreatedAt:   time.Now(),
		CodeHash:    codeHash(c.Code),
	}
	if err := f.store.Save(ctx, forged); err != nil {
		return domain.ForgedTool{}, fmt.Errorf("forge: persist promoted tool: %w", err)
	}
	return forged, nil
}

func livePathFor(backupDir, name string) string {
	return filepath.Join(backupDir, name)
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func firstNonEmptyParams(a, b []domain.Parameter) []domain.Parameter {
	if len(a) > 0 {
		return a
	}
	return b
}
