package lifecycle_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axonforge/engine/internal/execstore"
	"github.com/axonforge/engine/internal/forge"
	"github.com/axonforge/engine/internal/lifecycle"
	"github.com/axonforge/engine/pkg/domain"
)

func writeToolFile(t *testing.T, dir, name string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("#!/bin/sh\n"), 0o755))
}

func TestReconcileDetectsNewlyDeletedTool(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	forged := forge.NewMemoryStore()
	require.NoError(t, forged.Save(ctx, domain.ForgedTool{Name: "weather", Version: 1}))

	stats := execstore.NewMemoryStore()
	for i := 0; i < 25; i++ {
		require.NoError(t, stats.StoreToolExecution(ctx, domain.ToolExecutionRecord{ToolName: "weather", Success: true, DurationMS: 50}))
	}
	require.NoError(t, stats.MarkToolStatus(ctx, "weather", domain.ToolStatusActive, "deployed"))

	rec := lifecycle.New(dir, forged, stats)
	report, err := rec.Reconcile(ctx)
	require.NoError(t, err)

	require.Len(t, report.NewlyDeleted, 1)
	assert.Equal(t, "weather", report.NewlyDeleted[0].ToolName)
	assert.Equal(t, lifecycle.SeverityWarning, report.NewlyDeleted[0].Severity)

	status, _, _, ok, err := stats.ToolLifecycleStatus(ctx, "weather")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, domain.ToolStatusDeleted, status)
}

func TestReconcileDetectsRestoredTool(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	writeToolFile(t, dir, "weather")

	forged := forge.NewMemoryStore()
	require.NoError(t, forged.Save(ctx, domain.ForgedTool{Name: "weather", Version: 1}))

	stats := execstore.NewMemoryStore()
	require.NoError(t, stats.MarkToolStatus(ctx, "weather", domain.ToolStatusDeleted, "removed earlier"))

	rec := lifecycle.New(dir, forged, stats)
	report, err := rec.Reconcile(ctx)
	require.NoError(t, err)

	require.Len(t, report.Restored, 1)
	assert.Equal(t, "weather", report.Restored[0])

	status, _, _, _, err := stats.ToolLifecycleStatus(ctx, "weather")
	require.NoError(t, err)
	assert.Equal(t, domain.ToolStatusActive, status)
}

func TestReconcileFlagsNewManualTool(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	writeToolFile(t, dir, "scratchpad")

	forged := forge.NewMemoryStore()
	stats := execstore.NewMemoryStore()

	rec := lifecycle.New(dir, forged, stats)
	report, err := rec.Reconcile(ctx)
	require.NoError(t, err)

	require.Len(t, report.NewManual, 1)
	assert.Equal(t, "scratchpad", report.NewManual[0])
}

func TestReconcileArchivesOldLowUseDeletedTool(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	forged := forge.NewMemoryStore()
	require.NoError(t, forged.Save(ctx, domain.ForgedTool{Name: "stale", Version: 1}))

	stats := execstore.NewMemoryStore()
	require.NoError(t, stats.StoreToolExecution(ctx, domain.ToolExecutionRecord{ToolName: "stale", Success: true, DurationMS: 50}))
	require.NoError(t, stats.MarkToolStatus(ctx, "stale", domain.ToolStatusDeleted, "removed long ago"))

	frozen := time.Now().Add(100 * 24 * time.Hour)
	rec := lifecycle.New(dir, forged, stats, lifecycle.WithNow(func() time.Time { return frozen }))
	report, err := rec.Reconcile(ctx)
	require.NoError(t, err)

	require.Len(t, report.Archived, 1)
	assert.Equal(t, "stale", report.Archived[0])

	status, _, _, _, err := stats.ToolLifecycleStatus(ctx, "stale")
	require.NoError(t, err)
	assert.Equal(t, domain.ToolStatusArchived, status)
}

func TestReconcileKeepsOldDeletedToolWithHighUse(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	forged := forge.NewMemoryStore()
	require.NoError(t, forged.Save(ctx, domain.ForgedTool{Name: "popular", Version: 1}))

	stats := execstore.NewMemoryStore()
	for i := 0; i < 20; i++ {
		require.NoError(t, stats.StoreToolExecution(ctx, domain.ToolExecutionRecord{ToolName: "popular", Success: true, DurationMS: 50}))
	}
	require.NoError(t, stats.MarkToolStatus(ctx, "popular", domain.ToolStatusDeleted, "removed long ago"))

	frozen := time.Now().Add(100 * 24 * time.Hour)
	rec := lifecycle.New(dir, forged, stats, lifecycle.WithNow(func() time.Time { return frozen }))
	report, err := rec.Reconcile(ctx)
	require.NoError(t, err)

	assert.Empty(t, report.Archived)
}

func TestReconcileHandlesMissingToolsDir(t *testing.T) {
	ctx := context.Background()
	forged := forge.NewMemoryStore()
	stats := execstore.NewMemoryStore()

	rec := lifecycle.New(filepath.Join(t.TempDir(), "does-not-exist"), forged, stats)
	report, err := rec.Reconcile(ctx)
	require.NoError(t, err)
	assert.Empty(t, report.NewlyDeleted)
	assert.Empty(t, report.Restored)
	assert.Empty(t, report.NewManual)
}
