// Package tools defines the executable Tool contract and a Registry
// that can register, look up, keyword-search, and bulk-load tools.
package tools

import (
	"context"

	"github.com/axonforge/engine/pkg/domain"
)

// Result is the outcome of executing a Tool.
type Result struct {
	// Error, when non-empty, means the call failed; Value is then ignored.
	Error string

	// Value is the raw return value: a map, slice, string, number, or bool.
	Value any
}

// Tool pairs a declarative ToolDefinition with an executable body.
type Tool interface {
	Definition() domain.ToolDefinition
	Execute(ctx context.Context, params map[string]any) (Result, error)
}

// FuncTool adapts a plain function into a Tool, the equivalent of the
// teacher's register_function helper.
type FuncTool struct {
	def domain.ToolDefinition
	fn  func(ctx context.Context, params map[string]any) (Result, error)
}

// NewFuncTool builds a Tool from a definition and an execute function.
func NewFuncTool(def domain.ToolDefinition, fn func(ctx context.Context, params map[string]any) (Result, error)) *FuncTool {
	return &FuncTool{def: def, fn: fn}
}

func (t *FuncTool) Definition() domain.ToolDefinition { return t.def }

func (t *FuncTool) Execute(ctx context.Context, params map[string]any) (Result, error) {
	return t.fn(ctx, params)
}
