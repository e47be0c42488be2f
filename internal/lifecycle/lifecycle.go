// Package lifecycle reconciles the on-disk tool set against the
// database of known tools: detecting deletions, restorations, and
// unregistered manual additions, and archiving long-deleted tools.
package lifecycle

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/axonforge/engine/internal/execstore"
	"github.com/axonforge/engine/internal/forge"
	"github.com/axonforge/engine/pkg/domain"
)

// Severity is how urgently a deletion alert should be surfaced.
type Severity string

const (
	SeverityNone    Severity = "none"
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
)

// DeletionAlert describes a tool found missing from disk that was
// previously active.
type DeletionAlert struct {
	ToolName string
	Severity Severity
	Reason   string
}

// Report is the outcome of one Reconcile pass.
type Report struct {
	NewlyDeleted []DeletionAlert
	Restored     []string
	NewManual    []string
	Archived     []string
}

// archiveAfter and minUsesToKeep implement the auto-archive rule: tools
// deleted longer than this with fewer than this many total uses move to
// archived.
const (
	archiveAfter  = 90 * 24 * time.Hour
	minUsesToKeep = 10

	warningSuccessRate = 0.85
	warningMinUses     = 20
	recentUseWindow    = 7 * 24 * time.Hour
)

// Reconciler compares a directory of tool binaries against the Forge's
// persisted tool records and execstore's lifecycle status, applying the
// Forge's own scratchDir/backupDir layout to detect drift and prune
// dead entries.
type Reconciler struct {
	toolsDir string
	forged   forge.Store
	stats    execstore.Store
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures a Reconciler.
type Option func(*Reconciler)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Reconciler) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func WithNow(now func() time.Time) Option {
	return func(r *Reconciler) {
		if now != nil {
			r.now = now
		}
	}
}

// New builds a Reconciler over toolsDir (where tool binaries live on
// disk), forged (the Forge's persisted tool records), and stats (for
// per-tool lifecycle status and usage statistics).
func New(toolsDir string, forged forge.Store, stats execstore.Store, opts ...Option) *Reconciler {
	r := &Reconciler{
		toolsDir: toolsDir,
		forged:   forged,
		stats:    stats,
		logger:   slog.Default().With("component", "lifecycle"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reconcile computes the newly-deleted, restored, and new-manual deltas
// between disk and the database, marks lifecycle status transitions in
// stats, and archives tools deleted long enough with too little use.
func (r *Reconciler) Reconcile(ctx context.Context) (*Report, error) {
	onDisk, err := r.listDiskTools()
	if err != nil {
		return nil, err
	}

	known, err := r.forged.List(ctx)
	if err != nil {
		return nil, err
	}

	report := &Report{}
	now := r.now()

	for _, tool := range known {
		status, _, updatedAt, ok, err := r.stats.ToolLifecycleStatus(ctx, tool.Name)
		if err != nil {
			r.logger.Warn("lifecycle status lookup failed", "tool", tool.Name, "error", err)
			continue
		}
		present := onDisk[tool.Name]

		switch {
		case ok && status == domain.ToolStatusActive && !present:
			alert := r.deletionAlert(ctx, tool.Name)
			report.NewlyDeleted = append(report.NewlyDeleted, alert)
			if err := r.stats.MarkToolStatus(ctx, tool.Name, domain.ToolStatusDeleted, alert.Reason); err != nil {
				r.logger.Warn("lifecycle mark deleted failed", "tool", tool.Name, "error", err)
			}

		case ok && status == domain.ToolStatusDeleted && present:
			report.Restored = append(report.Restored, tool.Name)
			if err := r.stats.MarkToolStatus(ctx, tool.Name, domain.ToolStatusActive, "restored on disk"); err != nil {
				r.logger.Warn("lifecycle mark restored failed", "tool", tool.Name, "error", err)
			}

		case ok && status == domain.ToolStatusDeleted && !present && now.Sub(updatedAt) > archiveAfter:
			stats, statErr := r.stats.ToolStatistics(ctx, tool.Name)
			if statErr == nil && stats.Total < minUsesToKeep {
				report.Archived = append(report.Archived, tool.Name)
				if err := r.stats.MarkToolStatus(ctx, tool.Name, domain.ToolStatusArchived, "deleted over 90 days with few uses"); err != nil {
					r.logger.Warn("lifecycle mark archived failed", "tool", tool.Name, "error", err)
				}
			}
		}
	}

	knownNames := make(map[string]bool, len(known))
	for _, tool := range known {
		knownNames[tool.Name] = true
	}
	for name := range onDisk {
		if !knownNames[name] {
			report.NewManual = append(report.NewManual, name)
		}
	}

	return report, nil
}

func (r *Reconciler) deletionAlert(ctx context.Context, toolName string) DeletionAlert {
	stats, err := r.stats.ToolStatistics(ctx, toolName)
	if err != nil {
		return DeletionAlert{ToolName: toolName, Severity: SeverityNone, Reason: "removed from disk"}
	}

	switch {
	case stats.SuccessRate > warningSuccessRate && stats.Total > warningMinUses:
		return DeletionAlert{
			ToolName: toolName, Severity: SeverityWarning,
			Reason: "removed from disk despite high historical success rate",
		}
	case r.now().Sub(stats.LastUsed) < recentUseWindow:
		return DeletionAlert{
			ToolName: toolName, Severity: SeverityInfo,
			Reason: "removed from disk after recent use",
		}
	default:
		return DeletionAlert{ToolName: toolName, Severity: SeverityNone, Reason: "removed from disk"}
	}
}

func (r *Reconciler) listDiskTools() (map[string]bool, error) {
	entries, err := os.ReadDir(r.toolsDir)
	if os.IsNotExist(err) {
		return map[string]bool{}, nil
	}
	if err != nil {
		return nil, err
	}

	names := make(map[string]bool, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		names[entry.Name()] = true
	}
	return names, nil
}
