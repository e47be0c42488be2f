package autoloop

import (
	"context"
	"fmt"
	"sync"

	"github.com/axonforge/engine/internal/execstore"
	"github.com/axonforge/engine/internal/tools"
	"github.com/axonforge/engine/pkg/domain"
)

// Strategy identifies which of the four testing strategies §4.10
// describes was used for a TestOutcome.
type Strategy string

const (
	StrategyShadow    Strategy = "shadow"
	StrategyReplay    Strategy = "replay"
	StrategySynthetic Strategy = "synthetic"
	StrategyManual    Strategy = "manual"
)

const (
	shadowPassThreshold    = 0.95
	syntheticPassThreshold = 0.9
	replayHistoryLimit     = 50
	replayMinHistory       = 1
)

// TestOutcome is one testing strategy's verdict on a candidate tool.
type TestOutcome struct {
	Strategy    Strategy
	Passed      bool
	PassRate    float64
	SampleCount int
	Detail      string
}

// ChooseStrategy picks a testing strategy for newDef given its declared
// characteristics and, when neither shadow nor synthetic apply, whether
// the tool has replayable execution history.
func ChooseStrategy(ctx context.Context, store execstore.Store, newDef domain.ToolDefinition) (Strategy, error) {
	c := newDef.Characteristics
	if c.SafeForShadow || c.ReadOnly() || c.Idempotent {
		return StrategyShadow, nil
	}
	if len(newDef.TestCases) > 0 {
		return StrategySynthetic, nil
	}

	history, err := store.SuccessfulExecutions(ctx, newDef.Name, replayHistoryLimit)
	if err != nil {
		return "", fmt.Errorf("autoloop: check replay history: %w", err)
	}
	if len(history) >= replayMinHistory {
		return StrategyReplay, nil
	}

	return StrategyManual, nil
}

// RunShadowTest executes oldTool and newTool concurrently on each input
// and measures agreement. Logs the outcome to store.
func RunShadowTest(ctx context.Context, store execstore.Store, toolName string, oldTool, newTool tools.Tool, inputs []map[string]any) (TestOutcome, error) {
	var agreements, disagreements int

	for _, input := range inputs {
		var oldResult, newResult tools.Result
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			oldResult, _ = oldTool.Execute(ctx, input)
		}()
		go func() {
			defer wg.Done()
			newResult, _ = newTool.Execute(ctx, input)
		}()
		wg.Wait()

		if outputsAgree(oldResult.Value, newResult.Value) && oldResult.Error == newResult.Error {
			agreements++
		} else {
			disagreements++
		}
	}

	total := agreements + disagreements
	var rate float64
	if total > 0 {
		rate = float64(agreements) / float64(total)
	}

	outcome := TestOutcome{
		Strategy:    StrategyShadow,
		Passed:      rate >= shadowPassThreshold,
		PassRate:    rate,
		SampleCount: total,
		Detail:      fmt.Sprintf("%d/%d agreed", agreements, total),
	}
	if err := store.RecordTestResult(ctx, toolName, rate, total); err != nil {
		return outcome, fmt.Errorf("autoloop: record shadow test result: %w", err)
	}
	return outcome, nil
}

// RunReplayTest executes newTool against parameter sets drawn from
// toolName's historical successful runs, passing on execution success
// and, when the historical output is available, output agreement.
func RunReplayTest(ctx context.Context, store execstore.Store, toolName string, newTool tools.Tool) (TestOutcome, error) {
	history, err := store.SuccessfulExecutions(ctx, toolName, replayHistoryLimit)
	if err != nil {
		return TestOutcome{}, fmt.Errorf("autoloop: load replay history: %w", err)
	}

	var passed int
	for _, rec := range history {
		result, err := newTool.Execute(ctx, rec.Parameters)
		if err != nil || result.Error != "" {
			continue
		}
		if rec.Result == "" || outputsAgree(rec.Result, result.Value) {
			passed++
		}
	}

	total := len(history)
	var rate float64
	if total > 0 {
		rate = float64(passed) / float64(total)
	}

	outcome := TestOutcome{
		Strategy:    StrategyReplay,
		Passed:      rate >= shadowPassThreshold,
		PassRate:    rate,
		SampleCount: total,
		Detail:      fmt.Sprintf("%d/%d replayed runs passed", passed, total),
	}
	if err := store.RecordTestResult(ctx, toolName, rate, total); err != nil {
		return outcome, fmt.Errorf("autoloop: record replay test result: %w", err)
	}
	return outcome, nil
}

// RunSyntheticTest executes newTool against its own declared test
// cases, passing at a 0.9 match threshold. Not logged to the execution
// store: only shadow and replay results are, per §4.10.
func RunSyntheticTest(ctx context.Context, newDef domain.ToolDefinition, newTool tools.Tool) TestOutcome {
	var matches int
	for _, tc := range newDef.TestCases {
		result, err := newTool.Execute(ctx, tc.Parameters)
		if err != nil || result.Error != "" {
			continue
		}
		if tc.Expected == nil || outputsAgree(tc.Expected, result.Value) {
			matches++
		}
	}

	total := len(newDef.TestCases)
	var rate float64
	if total > 0 {
		rate = float64(matches) / float64(total)
	}

	return TestOutcome{
		Strategy:    StrategySynthetic,
		Passed:      rate >= syntheticPassThreshold,
		PassRate:    rate,
		SampleCount: total,
		Detail:      fmt.Sprintf("%d/%d declared cases matched", matches, total),
	}
}

// ManualReview marks a candidate as needing human sign-off. autoApprove
// lets a degraded environment's policy flag wave it through instead.
func ManualReview(autoApprove bool) TestOutcome {
	return TestOutcome{
		Strategy: StrategyManual,
		Passed:   autoApprove,
		Detail:   "no automated testing strategy applied; manual review required",
	}
}
