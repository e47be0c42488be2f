package domain

import "time"

// ExecutionRecord is the durable record of one goal's processing, stored
// in the relational execution store.
type ExecutionRecord struct {
	ExecutionID string         `json:"execution_id"`
	GoalID      string         `json:"goal_id"`
	GoalText    string         `json:"goal_text"`
	Intent      Intent         `json:"intent"`
	Success     bool           `json:"success"`
	Error       string         `json:"error,omitempty"`
	DurationMS  int64          `json:"duration_ms"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// ToolExecutionRecord is a child record of an ExecutionRecord, one per
// tool invocation.
type ToolExecutionRecord struct {
	ID          string         `json:"id"`
	ExecutionID string         `json:"execution_id"`
	ToolName    string         `json:"tool_name"`
	Parameters  map[string]any `json:"parameters"`
	Result      string         `json:"result,omitempty"`
	Success     bool           `json:"success"`
	Error       string         `json:"error,omitempty"`
	DurationMS  int64          `json:"duration_ms"`
	CreatedAt   time.Time      `json:"created_at"`
}

// ToolStatistics summarizes a tool's observed performance for the
// autonomous loop and for operator inspection.
type ToolStatistics struct {
	ToolName     string    `json:"tool_name"`
	Total        int64     `json:"total"`
	SuccessRate  float64   `json:"success_rate"`
	LastUsed     time.Time `json:"last_used"`
	P50Duration  float64   `json:"p50_duration_ms"`
	P95Duration  float64   `json:"p95_duration_ms"`
	P99Duration  float64   `json:"p99_duration_ms"`
}
