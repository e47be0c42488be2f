package scheduler

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/axonforge/engine/pkg/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS scheduled_goals (
	id TEXT PRIMARY KEY,
	goal_text TEXT NOT NULL,
	schedule_type TEXT NOT NULL,
	schedule_value TEXT NOT NULL,
	conditions JSONB,
	enabled BOOLEAN NOT NULL,
	max_runs INT NOT NULL,
	max_failures INT NOT NULL,
	tags JSONB
);

CREATE TABLE IF NOT EXISTS goal_states (
	goal_id TEXT PRIMARY KEY,
	run_count INT NOT NULL,
	last_run TIMESTAMPTZ,
	last_result TEXT,
	last_success BOOLEAN NOT NULL,
	consecutive_failures INT NOT NULL,
	data JSONB
);

CREATE TABLE IF NOT EXISTS scheduled_runs (
	id TEXT PRIMARY KEY,
	goal_id TEXT NOT NULL,
	started_at TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL,
	success BOOLEAN NOT NULL,
	error TEXT
);
`

// SQLStateStore is a StateStore over database/sql + lib/pq, the same
// driver and connection-pool pattern as execstore.SQLStore.
type SQLStateStore struct {
	db *sql.DB
}

func NewSQLStateStoreFromDSN(dsn string) (*SQLStateStore, error) {
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
	return &SQLStateStore{db: db}, nil
}

func (s *SQLStateStore) SaveGoal(ctx context.Context, goal *domain.ScheduledGoal) error {
	conditions, err := json.Marshal(goal.Conditions)
	if err != nil {
		return fmt.Errorf("%w: marshal conditions: %v", domain.ErrStore, err)
	}
	tags, err := json.Marshal(goal.Tags)
	if err != nil {
		return fmt.Errorf("%w: marshal tags: %v", domain.ErrStore, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO scheduled_goals (id, goal_text, schedule_type, schedule_value, conditions, enabled, max_runs, max_failures, tags)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			goal_text = $2, schedule_type = $3, schedule_value = $4, conditions = $5,
			enabled = $6, max_runs = $7, max_failures = $8, tags = $9`,
		goal.ID, goal.GoalText, string(goal.ScheduleType), goal.ScheduleValue, conditions,
		goal.Enabled, goal.MaxRuns, goal.MaxFailures, tags)
	if err != nil {
		return fmt.Errorf("%w: save goal: %v", domain.ErrStore, err)
	}
	return nil
}

func (s *SQLStateStore) GetGoal(ctx context.Context, id string) (*domain.ScheduledGoal, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, goal_text, schedule_type, schedule_value, conditions, enabled, max_runs, max_failures, tags
		FROM scheduled_goals WHERE id = $1`, id)
	return scanGoal(row)
}

func (s *SQLStateStore) ListGoals(ctx context.Context, enabledOnly bool, tags []string) ([]*domain.ScheduledGoal, error) {
	query := `SELECT id, goal_text, schedule_type, schedule_value, conditions, enabled, max_runs, max_failures, tags FROM scheduled_goals`
	if enabledOnly {
		query += ` WHERE enabled = true`
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: list goals: %v", domain.ErrStore, err)
	}
	defer rows.Close()

	var out []*domain.ScheduledGoal
	for rows.Next() {
		goal, err := scanGoal(rows)
		if err != nil {
			return nil, err
		}
		if len(tags) > 0 && !hasAnyTag(goal.Tags, tags) {
			continue
		}
		out = append(out, goal)
	}
	return out, rows.Err()
}

type scannable interface {
	Scan(dest ...any) error
}

func scanGoal(row scannable) (*domain.ScheduledGoal, error) {
	var goal domain.ScheduledGoal
	var scheduleType, conditions, tags string
	if err := row.Scan(&goal.ID, &goal.GoalText, &scheduleType, &goal.ScheduleValue, &conditions,
		&goal.Enabled, &goal.MaxRuns, &goal.MaxFailures, &tags); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: scan goal: %v", domain.ErrStore, err)
	}
	goal.ScheduleType = domain.ScheduleType(scheduleType)
	_ = json.Unmarshal([]byte(conditions), &goal.Conditions)
	_ = json.Unmarshal([]byte(tags), &goal.Tags)
	return &goal, nil
}

func (s *SQLStateStore) DeleteGoal(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM scheduled_goals WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%w: delete goal: %v", domain.ErrStore, err)
	}
	_, _ = s.db.ExecContext(ctx, `DELETE FROM goal_states WHERE goal_id = $1`, id)
	return nil
}

func (s *SQLStateStore) GetState(ctx context.Context, id string) (*domain.GoalState, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT goal_id, run_count, last_run, last_result, last_success, consecutive_failures, data
		FROM goal_states WHERE goal_id = $1`, id)

	var state domain.GoalState
	var lastRun sql.NullTime
	var lastResult sql.NullString
	var data sql.NullString
	err := row.Scan(&state.GoalID, &state.RunCount, &lastRun, &lastResult, &state.LastSuccess, &state.ConsecutiveFailures, &data)
	if err == sql.ErrNoRows {
		return &domain.GoalState{GoalID: id}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get state: %v", domain.ErrStore, err)
	}
	state.LastRun = lastRun.Time
	state.LastResult = lastResult.String
	if data.Valid {
		_ = json.Unmarshal([]byte(data.String), &state.Data)
	}
	return &state, nil
}

func (s *SQLStateStore) SaveState(ctx context.Context, state *domain.GoalState) error {
	data, err := json.Marshal(state.Data)
	if err != nil {
		return fmt.Errorf("%w: marshal state data: %v", domain.ErrStore, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO goal_states (goal_id, run_count, last_run, last_result, last_success, consecutive_failures, data)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (goal_id) DO UPDATE SET
			run_count = $2, last_run = $3, last_result = $4, last_success = $5,
			consecutive_failures = $6, data = $7`,
		state.GoalID, state.RunCount, state.LastRun, state.LastResult, state.LastSuccess, state.ConsecutiveFailures, data)
	if err != nil {
		return fmt.Errorf("%w: save state: %v", domain.ErrStore, err)
	}
	return nil
}

func (s *SQLStateStore) SaveRun(ctx context.Context, run *domain.ScheduledRun) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scheduled_runs (id, goal_id, started_at, finished_at, success, error)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		run.ID, run.GoalID, run.StartedAt, run.FinishedAt, run.Success, run.Error)
	if err != nil {
		return fmt.Errorf("%w: save run: %v", domain.ErrStore, err)
	}
	return nil
}

func (s *SQLStateStore) GetRuns(ctx context.Context, goalID string, limit int) ([]*domain.ScheduledRun, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, goal_id, started_at, finished_at, success, error
		FROM scheduled_runs WHERE goal_id = $1 ORDER BY started_at DESC LIMIT $2`, goalID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: get runs: %v", domain.ErrStore, err)
	}
	defer rows.Close()

	var out []*domain.ScheduledRun
	for rows.Next() {
		var run domain.ScheduledRun
		var errText sql.NullString
		if err := rows.Scan(&run.ID, &run.GoalID, &run.StartedAt, &run.FinishedAt, &run.Success, &errText); err != nil {
			return nil, fmt.Errorf("%w: scan run: %v", domain.ErrStore, err)
		}
		run.Error = errText.String
		out = append(out, &run)
	}
	return out, rows.Err()
}

func (s *SQLStateStore) Close() error { return s.db.Close() }
