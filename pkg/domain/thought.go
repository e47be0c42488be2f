package domain

import "time"

// ThoughtType categorizes a thought node.
type ThoughtType string

const (
	ThoughtGoal      ThoughtType = "goal"
	ThoughtReasoning ThoughtType = "reasoning"
	ThoughtAction    ThoughtType = "action"
	ThoughtResult    ThoughtType = "result"
)

// ThoughtStatus is the lifecycle state of a thought node. A thought may
// progress active -> completed or active -> failed; no other transition
// is valid.
type ThoughtStatus string

const (
	ThoughtActive    ThoughtStatus = "active"
	ThoughtCompleted ThoughtStatus = "completed"
	ThoughtFailed    ThoughtStatus = "failed"
)

// Thought is a node of the thought tree. Nodes reference their parent by
// ID rather than by pointer — the tree is an arena, not a pointer graph,
// so there is no cycle to guard against. ParentID is empty iff this is
// the root thought for its goal.
type Thought struct {
	ThoughtID string         `json:"thought_id"`
	GoalID    string         `json:"goal_id"`
	ParentID  string         `json:"parent_id,omitempty"`
	Content   string         `json:"content"`
	Type      ThoughtType    `json:"thought_type"`
	Status    ThoughtStatus  `json:"status"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}
