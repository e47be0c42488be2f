package autoloop_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axonforge/engine/internal/autoloop"
	"github.com/axonforge/engine/internal/eventbus"
	"github.com/axonforge/engine/internal/execstore"
	"github.com/axonforge/engine/internal/forge"
	"github.com/axonforge/engine/internal/lifecycle"
	"github.com/axonforge/engine/internal/monitor"
	"github.com/axonforge/engine/internal/tools"
	"github.com/axonforge/engine/pkg/domain"
)

type stubLLM struct {
	response json.RawMessage
	err      error
	calls    int
}

func (s *stubLLM) GenerateJSON(ctx context.Context, prompt, system string) (json.RawMessage, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.response, nil
}

func seedRuns(t *testing.T, store execstore.Store, toolName string, start time.Time, n, successes int) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < n; i++ {
		require.NoError(t, store.StoreToolExecution(ctx, domain.ToolExecutionRecord{
			ToolName:   toolName,
			Success:    i < successes,
			DurationMS: 20,
			CreatedAt:  start.Add(time.Duration(i) * time.Minute),
		}))
	}
}

func newLoop(t *testing.T, store execstore.Store, llm autoloop.LLM) (*autoloop.Loop, *tools.Registry, *forge.MemoryStore) {
	t.Helper()
	dir := t.TempDir()
	forged := forge.NewMemoryStore()
	registry := tools.NewRegistry()
	bus := eventbus.New(100)
	recon := lifecycle.New(dir, forged, store)
	mon := monitor.New(dir, forged, store, registry, bus)
	return autoloop.New(store, forged, nil, registry, recon, mon, llm), registry, forged
}

func TestDetectOpportunitiesFindsLowSuccessRateTool(t *testing.T) {
	store := execstore.NewMemoryStore()
	seedRuns(t, store, "flaky", time.Now().Add(-2*time.Hour), 20, 4)

	declineLLM := &stubLLM{response: json.RawMessage(`{"failure_mode":"unknown","improvement_warranted":false,"findings":"declined"}`)}
	loop, _, forged := newLoop(t, store, declineLLM)
	require.NoError(t, forged.Save(context.Background(), domain.ForgedTool{Name: "flaky", Version: 1}))

	report, err := loop.RunCycle(context.Background())
	require.NoError(t, err)

	var found bool
	for _, opp := range report.Opportunities {
		if opp.ToolName == "flaky" {
			found = true
			assert.Equal(t, autoloop.PriorityHigh, opp.Priority)
		}
	}
	assert.True(t, found, "expected flaky to be flagged as an opportunity")
}

func TestDetectOpportunitiesIgnoresHealthyTool(t *testing.T) {
	store := execstore.NewMemoryStore()
	seedRuns(t, store, "healthy", time.Now().Add(-2*time.Hour), 20, 19)

	loop, _, forged := newLoop(t, store, &stubLLM{})
	require.NoError(t, forged.Save(context.Background(), domain.ForgedTool{Name: "healthy", Version: 1}))

	report, err := loop.RunCycle(context.Background())
	require.NoError(t, err)

	for _, opp := range report.Opportunities {
		assert.NotEqual(t, "healthy", opp.ToolName)
	}
}

func TestProcessSkipsWhenInvestigationDeclinesImprovement(t *testing.T) {
	store := execstore.NewMemoryStore()
	seedRuns(t, store, "flaky", time.Now().Add(-2*time.Hour), 20, 4)

	llm := &stubLLM{response: json.RawMessage(`{"failure_mode":"transient network blip","improvement_warranted":false,"findings":"no code defect found"}`)}
	loop, _, forged := newLoop(t, store, llm)
	require.NoError(t, forged.Save(context.Background(), domain.ForgedTool{Name: "flaky", Version: 1}))

	report, err := loop.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Contains(t, report.Skipped, "flaky")
	assert.NotContains(t, report.Deployed, "flaky")
	assert.Equal(t, 1, llm.calls)
}

func TestRunCycleRunsMaintenanceOnFirstCall(t *testing.T) {
	store := execstore.NewMemoryStore()
	loop, _, _ := newLoop(t, store, &stubLLM{})

	report, err := loop.RunCycle(context.Background())
	require.NoError(t, err)
	assert.True(t, report.MaintenanceRan)
	require.NotNil(t, report.LifecycleReport)
}
