// Package thoughttree is an arena-indexed store of domain.Thought
// records. Thoughts reference their parent by ID rather than by
// pointer, so the tree has no cycles and can be serialized trivially.
package thoughttree

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/axonforge/engine/pkg/domain"
)

// Tree holds every thought for a process, indexed by goal and by ID.
type Tree struct {
	mu       sync.RWMutex
	thoughts map[string]*domain.Thought   // thought_id -> thought
	roots    map[string]string            // goal_id -> root thought_id
	children map[string][]string          // thought_id -> child ids, in creation order
}

// New returns an empty Tree.
func New() *Tree {
	return &Tree{
		thoughts: make(map[string]*domain.Thought),
		roots:    make(map[string]string),
		children: make(map[string][]string),
	}
}

// CreateRoot creates the root thought for goalID, called on goal_start.
func (t *Tree) CreateRoot(goalID, content string, now time.Time) *domain.Thought {
	thought := &domain.Thought{
		ThoughtID: uuid.NewString(),
		GoalID:    goalID,
		ParentID:  "",
		Content:   content,
		Type:      domain.ThoughtGoal,
		Status:    domain.ThoughtActive,
		Timestamp: now,
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.thoughts[thought.ThoughtID] = thought
	t.roots[goalID] = thought.ThoughtID

	cp := *thought
	return &cp
}

// AddThought appends a child thought under parentID.
func (t *Tree) AddThought(goalID, parentID, content string, thoughtType domain.ThoughtType, now time.Time) (*domain.Thought, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if parentID != "" {
		if _, ok := t.thoughts[parentID]; !ok {
			return nil, fmt.Errorf("thoughttree: unknown parent thought %q", parentID)
		}
	}

	thought := &domain.Thought{
		ThoughtID: uuid.NewString(),
		GoalID:    goalID,
		ParentID:  parentID,
		Content:   content,
		Type:      thoughtType,
		Status:    domain.ThoughtActive,
		Timestamp: now,
	}
	t.thoughts[thought.ThoughtID] = thought
	if parentID != "" {
		t.children[parentID] = append(t.children[parentID], thought.ThoughtID)
	}

	cp := *thought
	return &cp, nil
}

// Complete marks a thought completed.
func (t *Tree) Complete(thoughtID string) error {
	return t.setStatus(thoughtID, domain.ThoughtCompleted)
}

// Fail marks a thought failed.
func (t *Tree) Fail(thoughtID string) error {
	return t.setStatus(thoughtID, domain.ThoughtFailed)
}

func (t *Tree) setStatus(thoughtID string, status domain.ThoughtStatus) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	thought, ok := t.thoughts[thoughtID]
	if !ok {
		return fmt.Errorf("thoughttree: unknown thought %q", thoughtID)
	}
	thought.Status = status
	return nil
}

// GetRoot returns the root thought for goalID.
func (t *Tree) GetRoot(goalID string) (*domain.Thought, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rootID, ok := t.roots[goalID]
	if !ok {
		return nil, false
	}
	cp := *t.thoughts[rootID]
	return &cp, true
}

// GetThoughts returns every thought reachable from goalID's root, walked
// depth-first from the root with each node's children in creation order.
func (t *Tree) GetThoughts(goalID string) []domain.Thought {
	t.mu.RLock()
	defer t.mu.RUnlock()

	rootID, ok := t.roots[goalID]
	if !ok {
		return nil
	}

	var out []domain.Thought
	var walk func(id string)
	walk = func(id string) {
		out = append(out, *t.thoughts[id])
		for _, childID := range t.children[id] {
			walk(childID)
		}
	}
	walk(rootID)
	return out
}
