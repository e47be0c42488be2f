package execstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/axonforge/engine/pkg/domain"
)

// schema creates the eight tables the execution store owns if they do
// not already exist. Written against the Postgres/CockroachDB SQL
// dialect.
const schema = `
CREATE TABLE IF NOT EXISTS executions (
	execution_id TEXT PRIMARY KEY,
	goal_id TEXT NOT NULL,
	goal_text TEXT NOT NULL,
	intent TEXT NOT NULL,
	success BOOLEAN NOT NULL,
	error TEXT,
	duration_ms BIGINT NOT NULL,
	metadata JSONB,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS tool_executions (
	id TEXT PRIMARY KEY,
	execution_id TEXT,
	tool_name TEXT NOT NULL,
	parameters JSONB,
	result TEXT,
	success BOOLEAN NOT NULL,
	error TEXT,
	duration_ms BIGINT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS tool_statistics (
	tool_name TEXT PRIMARY KEY,
	status TEXT NOT NULL,
	reason TEXT,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS deployment_monitoring (
	id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	tool_name TEXT NOT NULL,
	deployment_time TIMESTAMPTZ NOT NULL,
	monitoring_window_hours DOUBLE PRECISION NOT NULL,
	baseline_window_days DOUBLE PRECISION NOT NULL,
	regression_threshold DOUBLE PRECISION NOT NULL,
	status TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS deployment_health_checks (
	id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	tool_name TEXT NOT NULL,
	baseline_success_rate DOUBLE PRECISION NOT NULL,
	current_success_rate DOUBLE PRECISION NOT NULL,
	success_rate_drop DOUBLE PRECISION NOT NULL,
	regression_detected BOOLEAN NOT NULL,
	regression_severity TEXT NOT NULL,
	needs_rollback BOOLEAN NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS deployment_rollbacks (
	id TEXT PRIMARY KEY,
	tool_name TEXT NOT NULL,
	reason TEXT NOT NULL,
	restored_from TEXT NOT NULL,
	success_rate_drop DOUBLE PRECISION NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS tool_creation_events (
	id TEXT PRIMARY KEY,
	tool_name TEXT NOT NULL,
	capability TEXT NOT NULL,
	goal_text TEXT NOT NULL,
	status TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS shadow_test_results (
	id TEXT PRIMARY KEY,
	tool_name TEXT NOT NULL,
	agreement_rate DOUBLE PRECISION NOT NULL,
	sample_count INT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
`

// SQLStore is a Store backed by database/sql, targeting Postgres or
// CockroachDB via lib/pq.
type SQLStore struct {
	db *sql.DB
}

// NewSQLStoreFromDSN opens a pooled connection and applies schema.
func NewSQLStoreFromDSN(dsn string) (*SQLStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open dsn: %v", domain.ErrStore, err)
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: ping: %v", domain.ErrStore, err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: apply schema: %v", domain.ErrStore, err)
	}

	return &SQLStore{db: db}, nil
}

func (s *SQLStore) StoreExecution(ctx context.Context, rec domain.ExecutionRecord) (string, error) {
	if rec.ExecutionID == "" {
		rec.ExecutionID = newID()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	metadata, err := json.Marshal(rec.Metadata)
	if err != nil {
		return "", fmt.Errorf("%w: marshal metadata: %v", domain.ErrStore, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO executions (execution_id, goal_id, goal_text, intent, success, error, duration_ms, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		rec.ExecutionID, rec.GoalID, rec.GoalText, string(rec.Intent), rec.Success, rec.Error, rec.DurationMS, metadata, rec.CreatedAt)
	if isDuplicate(err) {
		return rec.ExecutionID, nil
	}
	if err != nil {
		return "", fmt.Errorf("%w: insert execution: %v", domain.ErrStore, err)
	}
	return rec.ExecutionID, nil
}

func (s *SQLStore) StoreToolExecution(ctx context.Context, rec domain.ToolExecutionRecord) error {
	if rec.ID == "" {
		rec.ID = newID()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	params, err := json.Marshal(rec.Parameters)
	if err != nil {
		return fmt.Errorf("%w: marshal parameters: %v", domain.ErrStore, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tool_executions (id, execution_id, tool_name, parameters, result, success, error, duration_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		rec.ID, nullIfEmpty(rec.ExecutionID), rec.ToolName, params, rec.Result, rec.Success, rec.Error, rec.DurationMS, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("%w: insert tool execution: %v", domain.ErrStore, err)
	}
	return nil
}

func (s *SQLStore) ToolStatistics(ctx context.Context, toolName string) (domain.ToolStatistics, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(AVG(CASE WHEN success THEN 1.0 ELSE 0.0 END), 0),
			COALESCE(MAX(created_at), TIMESTAMPTZ 'epoch'),
			COALESCE(PERCENTILE_CONT(0.50) WITHIN GROUP (ORDER BY duration_ms), 0),
			COALESCE(PERCENTILE_CONT(0.95) WITHIN GROUP (ORDER BY duration_ms), 0),
			COALESCE(PERCENTILE_CONT(0.99) WITHIN GROUP (ORDER BY duration_ms), 0)
		FROM tool_executions WHERE tool_name = $1`, toolName)

	var stats domain.ToolStatistics
	stats.ToolName = toolName
	if err := row.Scan(&stats.Total, &stats.SuccessRate, &stats.LastUsed,
		&stats.P50Duration, &stats.P95Duration, &stats.P99Duration); err != nil {
		return domain.ToolStatistics{}, fmt.Errorf("%w: tool statistics: %v", domain.ErrStore, err)
	}
	return stats, nil
}

func (s *SQLStore) ToolStatisticsWindow(ctx context.Context, toolName string, start, end time.Time) (domain.ToolStatistics, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(AVG(CASE WHEN success THEN 1.0 ELSE 0.0 END), 0),
			COALESCE(MAX(created_at), TIMESTAMPTZ 'epoch'),
			COALESCE(PERCENTILE_CONT(0.50) WITHIN GROUP (ORDER BY duration_ms), 0),
			COALESCE(PERCENTILE_CONT(0.95) WITHIN GROUP (ORDER BY duration_ms), 0),
			COALESCE(PERCENTILE_CONT(0.99) WITHIN GROUP (ORDER BY duration_ms), 0)
		FROM tool_executions
		WHERE tool_name = $1 AND created_at >= $2 AND created_at < $3`, toolName, start, end)

	var stats domain.ToolStatistics
	stats.ToolName = toolName
	if err := row.Scan(&stats.Total, &stats.SuccessRate, &stats.LastUsed,
		&stats.P50Duration, &stats.P95Duration, &stats.P99Duration); err != nil {
		return domain.ToolStatistics{}, fmt.Errorf("%w: tool statistics window: %v", domain.ErrStore, err)
	}
	return stats, nil
}

func (s *SQLStore) rankTools(ctx context.Context, limit, minExecutions int, order string) ([]domain.ToolStatistics, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT
			tool_name,
			COUNT(*) AS total,
			AVG(CASE WHEN success THEN 1.0 ELSE 0.0 END) AS success_rate,
			MAX(created_at) AS last_used,
			COALESCE(PERCENTILE_CONT(0.50) WITHIN GROUP (ORDER BY duration_ms), 0),
			COALESCE(PERCENTILE_CONT(0.95) WITHIN GROUP (ORDER BY duration_ms), 0),
			COALESCE(PERCENTILE_CONT(0.99) WITHIN GROUP (ORDER BY duration_ms), 0)
		FROM tool_executions
		GROUP BY tool_name
		HAVING COUNT(*) >= $1
		ORDER BY success_rate %s
		LIMIT $2`, order), minExecutions, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: rank tools: %v", domain.ErrStore, err)
	}
	defer rows.Close()

	var out []domain.ToolStatistics
	for rows.Next() {
		var stats domain.ToolStatistics
		if err := rows.Scan(&stats.ToolName, &stats.Total, &stats.SuccessRate, &stats.LastUsed,
			&stats.P50Duration, &stats.P95Duration, &stats.P99Duration); err != nil {
			return nil, fmt.Errorf("%w: scan tool rank: %v", domain.ErrStore, err)
		}
		out = append(out, stats)
	}
	return out, rows.Err()
}

func (s *SQLStore) TopTools(ctx context.Context, limit, minExecutions int) ([]domain.ToolStatistics, error) {
	return s.rankTools(ctx, limit, minExecutions, "DESC")
}

func (s *SQLStore) BottomTools(ctx context.Context, limit, minExecutions int) ([]domain.ToolStatistics, error) {
	return s.rankTools(ctx, limit, minExecutions, "ASC")
}

func (s *SQLStore) SuccessfulExecutions(ctx context.Context, toolName string, limit int) ([]domain.ToolExecutionRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, COALESCE(execution_id, ''), tool_name, parameters, result, success, error, duration_ms, created_at
		FROM tool_executions
		WHERE tool_name = $1 AND success = TRUE
		ORDER BY created_at DESC
		LIMIT $2`, toolName, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: successful executions: %v", domain.ErrStore, err)
	}
	defer rows.Close()

	var out []domain.ToolExecutionRecord
	for rows.Next() {
		var rec domain.ToolExecutionRecord
		var params []byte
		if err := rows.Scan(&rec.ID, &rec.ExecutionID, &rec.ToolName, &params, &rec.Result, &rec.Success, &rec.Error, &rec.DurationMS, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan successful execution: %v", domain.ErrStore, err)
		}
		if len(params) > 0 {
			if err := json.Unmarshal(params, &rec.Parameters); err != nil {
				return nil, fmt.Errorf("%w: unmarshal parameters: %v", domain.ErrStore, err)
			}
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLStore) MarkToolStatus(ctx context.Context, toolName string, status domain.ToolStatus, reason string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tool_statistics (tool_name, status, reason, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (tool_name) DO UPDATE SET status = $2, reason = $3, updated_at = $4`,
		toolName, string(status), reason, time.Now())
	if err != nil {
		return fmt.Errorf("%w: mark tool status: %v", domain.ErrStore, err)
	}
	return nil
}

func (s *SQLStore) ToolLifecycleStatus(ctx context.Context, toolName string) (domain.ToolStatus, string, time.Time, bool, error) {
	var status string
	var reason sql.NullString
	var updatedAt time.Time
	err := s.db.QueryRowContext(ctx, `SELECT status, reason, updated_at FROM tool_statistics WHERE tool_name = $1`, toolName).
		Scan(&status, &reason, &updatedAt)
	if err == sql.ErrNoRows {
		return "", "", time.Time{}, false, nil
	}
	if err != nil {
		return "", "", time.Time{}, false, fmt.Errorf("%w: tool lifecycle status: %v", domain.ErrStore, err)
	}
	return domain.ToolStatus(status), reason.String, updatedAt, true, nil
}

func (s *SQLStore) KeywordFrequency(ctx context.Context, since time.Time, limit int) ([]KeywordCount, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT goal_text FROM executions WHERE created_at > $1`, since)
	if err != nil {
		return nil, fmt.Errorf("%w: keyword frequency: %v", domain.ErrStore, err)
	}
	defer rows.Close()

	var texts []string
	for rows.Next() {
		var text string
		if err := rows.Scan(&text); err != nil {
			return nil, fmt.Errorf("%w: scan goal text: %v", domain.ErrStore, err)
		}
		texts = append(texts, text)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return topKeywords(texts, limit), nil
}

func (s *SQLStore) RecordTestResult(ctx context.Context, toolName string, agreementRate float64, sampleCount int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO shadow_test_results (id, tool_name, agreement_rate, sample_count, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		newID(), toolName, agreementRate, sampleCount, time.Now())
	if err != nil {
		return fmt.Errorf("%w: record test result: %v", domain.ErrStore, err)
	}
	return nil
}

func (s *SQLStore) RecordMonitoringSession(ctx context.Context, sessionID, toolName string, deploymentTime time.Time, monitoringWindowHours, baselineWindowDays, regressionThreshold float64, status string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO deployment_monitoring (id, session_id, tool_name, deployment_time, monitoring_window_hours, baseline_window_days, regression_threshold, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		newID(), sessionID, toolName, deploymentTime, monitoringWindowHours, baselineWindowDays, regressionThreshold, status, time.Now())
	if err != nil {
		return fmt.Errorf("%w: record monitoring session: %v", domain.ErrStore, err)
	}
	return nil
}

func (s *SQLStore) RecordHealthCheck(ctx context.Context, sessionID, toolName string, baselineSuccessRate, currentSuccessRate, successRateDrop float64, regressionDetected bool, severity string, needsRollback bool) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO deployment_health_checks (id, session_id, tool_name, baseline_success_rate, current_success_rate, success_rate_drop, regression_detected, regression_severity, needs_rollback, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		newID(), sessionID, toolName, baselineSuccessRate, currentSuccessRate, successRateDrop, regressionDetected, severity, needsRollback, time.Now())
	if err != nil {
		return fmt.Errorf("%w: record health check: %v", domain.ErrStore, err)
	}
	return nil
}

func (s *SQLStore) RecordRollback(ctx context.Context, toolName, reason, restoredFrom string, successRateDrop float64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO deployment_rollbacks (id, tool_name, reason, restored_from, success_rate_drop, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		newID(), toolName, reason, restoredFrom, successRateDrop, time.Now())
	if err != nil {
		return fmt.Errorf("%w: record rollback: %v", domain.ErrStore, err)
	}
	return nil
}

func (s *SQLStore) RecordToolCreation(ctx context.Context, toolName, capability, goalText string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tool_creation_events (id, tool_name, capability, goal_text, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		newID(), toolName, capability, goalText, "active", time.Now())
	if err != nil {
		return fmt.Errorf("%w: record tool creation: %v", domain.ErrStore, err)
	}
	return nil
}

func (s *SQLStore) Close() error { return s.db.Close() }

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func isDuplicate(err error) bool {
	return err != nil && strings.Contains(err.Error(), "duplicate")
}

func newID() string {
	// Callers normally supply an ID (uuid.NewString()); this only covers
	// the defensive case of an empty ID reaching the store directly.
	return fmt.Sprintf("exec-%d", time.Now().UnixNano())
}
