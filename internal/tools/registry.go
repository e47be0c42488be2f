package tools

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/axonforge/engine/pkg/domain"
)

// Registry maps tool name to Tool. Keys are unique; insertion order is
// irrelevant to lookup but preserved for deterministic fallback listing.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	order []string
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds or replaces a tool by name.
func (r *Registry) Register(tool Tool) {
	name := tool.Definition().Name
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[name]; !exists {
		r.order = append(r.order, name)
	}
	r.tools[name] = tool
}

// Unregister removes a tool by name.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tools, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Get returns a tool by exact name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// List returns every registered tool's definition, in registration order.
func (r *Registry) List() []domain.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]domain.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.tools[name].Definition())
	}
	return defs
}

// scoredDef pairs a definition with its keyword-search score.
type scoredDef struct {
	def   domain.ToolDefinition
	score int
}

// Search ranks tools by keyword score against query: name match ×3,
// description match ×2, domain match +1, each concept/synonym hit +1.
// When two or more tools fall to the registry's fallback (no keyword
// matched at all), registration order breaks ties. Returns at most
// limit results, highest score first.
func (r *Registry) Search(query string, toolDomain string, limit int) []domain.ToolDefinition {
	terms := tokenize(query)

	r.mu.RLock()
	defer r.mu.RUnlock()

	scored := make([]scoredDef, 0, len(r.order))
	for _, name := range r.order {
		def := r.tools[name].Definition()
		score := scoreDefinition(def, terms, toolDomain)
		scored = append(scored, scoredDef{def: def, score: score})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})

	if limit <= 0 {
		limit = 5
	}
	out := make([]domain.ToolDefinition, 0, limit)
	for _, s := range scored {
		if s.score <= 0 {
			break
		}
		out = append(out, s.def)
		if len(out) >= limit {
			break
		}
	}

	// Fallback: no keyword matched anything — return the first `limit`
	// registered tools so the caller still has candidates to offer the LLM.
	if len(out) == 0 {
		for i, name := range r.order {
			if i >= limit {
				break
			}
			out = append(out, r.tools[name].Definition())
		}
	}
	return out
}

func scoreDefinition(def domain.ToolDefinition, terms []string, toolDomain string) int {
	score := 0
	name := strings.ToLower(def.Name)
	desc := strings.ToLower(def.Description)

	for _, term := range terms {
		if strings.Contains(name, term) {
			score += 3
		}
		if strings.Contains(desc, term) {
			score += 2
		}
		for _, concept := range def.Concepts {
			if strings.EqualFold(concept, term) {
				score++
			}
		}
		for _, syn := range def.Synonyms {
			if strings.EqualFold(syn, term) {
				score++
			}
		}
	}

	if toolDomain != "" && strings.EqualFold(def.Domain, toolDomain) {
		score++
	}
	return score
}

func tokenize(query string) []string {
	fields := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	out := fields[:0]
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}

// ErrNoSuchTool is returned by Execute-style callers when Get misses.
func ErrNoSuchTool(name string) error {
	return fmt.Errorf("tools: no tool registered with name %q", name)
}
