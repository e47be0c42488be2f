package forge

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	_ "github.com/lib/pq"

	"github.com/axonforge/engine/pkg/domain"
)

// Store persists ForgedTool records so they survive restarts.
type Store interface {
	Save(ctx context.Context, tool domain.ForgedTool) error
	Get(ctx context.Context, name string) (domain.ForgedTool, bool, error)
	List(ctx context.Context) ([]domain.ForgedTool, error)
}

// MemoryStore is an in-process Store, used by default and in tests.
type MemoryStore struct {
	mu    sync.RWMutex
	tools map[string]domain.ForgedTool
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tools: make(map[string]domain.ForgedTool)}
}

func (s *MemoryStore) Save(_ context.Context, tool domain.ForgedTool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tools[tool.Name] = tool
	return nil
}

func (s *MemoryStore) Get(_ context.Context, name string) (domain.ForgedTool, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tools[name]
	return t, ok, nil
}

func (s *MemoryStore) List(_ context.Context) ([]domain.ForgedTool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.ForgedTool, 0, len(s.tools))
	for _, t := range s.tools {
		out = append(out, t)
	}
	return out, nil
}

// SQLStore persists ForgedTool records in Postgres.
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore opens dsn, pings it, and ensures the forged_tools table exists.
func NewSQLStore(ctx context.Context, dsn string) (*SQLStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open forge database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping forge database: %w", err)
	}
	const schema = `CREATE TABLE IF NOT EXISTS forged_tools (
		name TEXT PRIMARY KEY,
		description TEXT NOT NULL,
		code TEXT NOT NULL,
		parameters JSONB NOT NULL,
		domain TEXT NOT NULL,
		concepts JSONB NOT NULL,
		version INT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		code_hash TEXT NOT NULL
	)`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate forged_tools: %w", err)
	}
	return &SQLStore{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *SQLStore) Close() error { return s.db.Close() }

func (s *SQLStore) Save(ctx context.Context, tool domain.ForgedTool) error {
	params, err := json.Marshal(tool.Parameters)
	if err != nil {
		return fmt.Errorf("marshal parameters: %w", err)
	}
	concepts, err := json.Marshal(tool.Concepts)
	if err != nil {
		return fmt.Errorf("marshal concepts: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO forged_tools (name, description, code, parameters, domain, concepts, version, created_at, code_hash)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (name) DO UPDATE SET
			description = EXCLUDED.description,
			code = EXCLUDED.code,
			parameters = EXCLUDED.parameters,
			domain = EXCLUDED.domain,
			concepts = EXCLUDED.concepts,
			version = EXCLUDED.version,
			created_at = EXCLUDED.created_at,
			code_hash = EXCLUDED.code_hash`,
		tool.Name, tool.Description, tool.Code, params, tool.Domain, concepts, tool.Version, tool.CreatedAt, tool.CodeHash)
	if err != nil {
		return fmt.Errorf("save forged tool: %w", err)
	}
	return nil
}

func (s *SQLStore) Get(ctx context.Context, name string) (domain.ForgedTool, bool, error) {
	var tool domain.ForgedTool
	var params, concepts []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT name, description, code, parameters, domain, concepts, version, created_at, code_hash
		 FROM forged_tools WHERE name = $1`, name).
		Scan(&tool.Name, &tool.Description, &tool.Code, &params, &tool.Domain, &concepts, &tool.Version, &tool.CreatedAt, &tool.CodeHash)
	if err == sql.ErrNoRows {
		return domain.ForgedTool{}, false, nil
	}
	if err != nil {
		return domain.ForgedTool{}, false, fmt.Errorf("get forged tool: %w", err)
	}
	if err := json.Unmarshal(params, &tool.Parameters); err != nil {
		return domain.ForgedTool{}, false, fmt.Errorf("unmarshal parameters: %w", err)
	}
	if err := json.Unmarshal(concepts, &tool.Concepts); err != nil {
		return domain.ForgedTool{}, false, fmt.Errorf("unmarshal concepts: %w", err)
	}
	return tool, true, nil
}

func (s *SQLStore) List(ctx context.Context) ([]domain.ForgedTool, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, description, code, parameters, domain, concepts, version, created_at, code_hash FROM forged_tools`)
	if err != nil {
		return nil, fmt.Errorf("list forged tools: %w", err)
	}
	defer rows.Close()

	var out []domain.ForgedTool
	for rows.Next() {
		var tool domain.ForgedTool
		var params, concepts []byte
		if err := rows.Scan(&tool.Name, &tool.Description, &tool.Code, &params, &tool.Domain, &concepts, &tool.Version, &tool.CreatedAt, &tool.CodeHash); err != nil {
			return nil, fmt.Errorf("scan forged tool: %w", err)
		}
		if err := json.Unmarshal(params, &tool.Parameters); err != nil {
			return nil, fmt.Errorf("unmarshal parameters: %w", err)
		}
		if err := json.Unmarshal(concepts, &tool.Concepts); err != nil {
			return nil, fmt.Errorf("unmarshal concepts: %w", err)
		}
		out = append(out, tool)
	}
	return out, rows.Err()
}
