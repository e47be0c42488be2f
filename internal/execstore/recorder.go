package execstore

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/axonforge/engine/pkg/domain"
)

// PerformanceRecorder adapts a Store to the orchestrator's narrow
// PerformanceRecorder interface: a lightweight tool_executions row per
// call, and a success-rate lookup from the same aggregate the
// autonomous loop reads.
type PerformanceRecorder struct {
	store Store
}

// NewPerformanceRecorder wraps store for use as an orchestrator.Config's
// Performance field.
func NewPerformanceRecorder(store Store) *PerformanceRecorder {
	return &PerformanceRecorder{store: store}
}

func (p *PerformanceRecorder) RecordToolCall(ctx context.Context, toolName string, success bool, durationMS int64, errText string) {
	_ = p.store.StoreToolExecution(ctx, domain.ToolExecutionRecord{
		ID:         uuid.NewString(),
		ToolName:   toolName,
		Success:    success,
		Error:      errText,
		DurationMS: durationMS,
		CreatedAt:  time.Now(),
	})
}

func (p *PerformanceRecorder) ToolSuccessRate(ctx context.Context, toolName string) (float64, bool) {
	stats, err := p.store.ToolStatistics(ctx, toolName)
	if err != nil || stats.Total == 0 {
		return 0, false
	}
	return stats.SuccessRate, true
}
