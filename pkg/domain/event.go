package domain

import "time"

// EventType categorizes an Event for filtering and display.
type EventType string

const (
	EventGoalStart     EventType = "goal_start"
	EventGoalComplete  EventType = "goal_complete"
	EventNeuronStart   EventType = "neuron_start"
	EventNeuronComplete EventType = "neuron_complete"
	EventNeuronError   EventType = "neuron_error"
	EventToolCalled    EventType = "tool_called"
	EventThought       EventType = "thought"
	EventDeploymentAlert    EventType = "deployment_alert"
	EventDeploymentRollback EventType = "deployment_rollback"
)

// Event is an immutable record appended once to the event bus. Events
// within a single goal are totally ordered by their EventID; cross-goal
// ordering is best-effort.
type Event struct {
	EventID    int64          `json:"event_id"`
	EventType  EventType      `json:"event_type"`
	NeuronType string         `json:"neuron_type,omitempty"`
	GoalID     string         `json:"goal_id"`
	ParentID   string         `json:"parent_id,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
	DurationMS *int64         `json:"duration_ms,omitempty"`
	Payload    map[string]any `json:"payload,omitempty"`
}

// EventFilter narrows a call to get_events.
type EventFilter struct {
	GoalID     string
	NeuronType string
	EventType  EventType
	Limit      int
}
