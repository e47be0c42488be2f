// Package config loads AxonForge's single-source Config: endpoint URLs,
// filesystem paths, and tunables for every subsystem. A Config is
// immutable after creation and is passed by reference everywhere — no
// package-level globals.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/axonforge/engine/pkg/domain"
)

// Config is the root configuration value threaded through every
// constructor in the system.
type Config struct {
	LLM           LLMConfig           `yaml:"llm"`
	KV            KVConfig            `yaml:"kv"`
	SQL           SQLConfig           `yaml:"sql"`
	Tools         ToolsConfig         `yaml:"tools"`
	Forge         ForgeConfig         `yaml:"forge"`
	Autoloop      AutoloopConfig      `yaml:"autoloop"`
	Scheduler     SchedulerConfig     `yaml:"scheduler"`
	EventBus      EventBusConfig      `yaml:"event_bus"`
	Logging       LoggingConfig       `yaml:"logging"`
	Server        ServerConfig        `yaml:"server"`
}

// LLMConfig configures the HTTP client used to reach the LLM endpoint.
type LLMConfig struct {
	BaseURL        string        `yaml:"base_url"`
	Model          string        `yaml:"model"`
	APIKey         string        `yaml:"api_key"`
	Timeout        time.Duration `yaml:"timeout"`
	MaxRetries     int           `yaml:"max_retries"`
	DefaultTemp    float32       `yaml:"default_temperature"`
	DefaultMaxTokens int         `yaml:"default_max_tokens"`
}

// KVConfig configures the key-value store backend.
type KVConfig struct {
	// Backend is "memory" or "sql".
	Backend string `yaml:"backend"`
}

// SQLConfig configures the relational execution/scheduler store.
type SQLConfig struct {
	// Backend is "memory" or "postgres".
	Backend         string        `yaml:"backend"`
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout"`
}

// ToolsConfig configures the tool registry and forge directories.
type ToolsConfig struct {
	ToolsDir   string `yaml:"tools_dir"`
	PromptsDir string `yaml:"prompts_dir"`
}

// ForgeConfig tunes the tool-synthesis sandbox.
type ForgeConfig struct {
	Enabled        bool          `yaml:"enabled"`
	ScratchDir     string        `yaml:"scratch_dir"`
	BackupDir      string        `yaml:"backup_dir"`
	SandboxTimeout time.Duration `yaml:"sandbox_timeout"`
}

// AutoloopConfig tunes the autonomous improvement loop.
type AutoloopConfig struct {
	Enabled             bool          `yaml:"enabled"`
	CheckInterval       time.Duration `yaml:"check_interval"`
	MaintenanceInterval time.Duration `yaml:"maintenance_interval"`
	ImprovementThreshold float64      `yaml:"improvement_threshold"`
	MinExecutions       int           `yaml:"min_executions"`
	ShadowPassThreshold float64       `yaml:"shadow_pass_threshold"`
	SyntheticPassThreshold float64    `yaml:"synthetic_pass_threshold"`
	AutoApproveManual   bool          `yaml:"auto_approve_manual"`
}

// SchedulerConfig tunes the persistent job queue.
type SchedulerConfig struct {
	TickInterval time.Duration `yaml:"tick_interval"`
}

// EventBusConfig tunes the bounded event stream.
type EventBusConfig struct {
	MaxSize int `yaml:"max_size"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ServerConfig configures the thin HTTP entry point.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Default returns a Config with sane defaults for local development.
func Default() *Config {
	return &Config{
		LLM: LLMConfig{
			BaseURL:          "http://localhost:8080/v1",
			Model:            "gpt-4o-mini",
			Timeout:          120 * time.Second,
			MaxRetries:       3,
			DefaultTemp:      0.7,
			DefaultMaxTokens: 2048,
		},
		KV:  KVConfig{Backend: "memory"},
		SQL: SQLConfig{Backend: "memory", MaxOpenConns: 10, MaxIdleConns: 5, ConnMaxLifetime: time.Hour, ConnectTimeout: 5 * time.Second},
		Tools: ToolsConfig{ToolsDir: "./tools", PromptsDir: "./prompts"},
		Forge: ForgeConfig{Enabled: true, ScratchDir: "./tools/.scratch", BackupDir: "./tools/.backup", SandboxTimeout: 10 * time.Second},
		Autoloop: AutoloopConfig{
			Enabled:                true,
			CheckInterval:          5 * time.Minute,
			MaintenanceInterval:    24 * time.Hour,
			ImprovementThreshold:   0.7,
			MinExecutions:          10,
			ShadowPassThreshold:    0.95,
			SyntheticPassThreshold: 0.9,
		},
		Scheduler: SchedulerConfig{TickInterval: time.Second},
		EventBus:  EventBusConfig{MaxSize: 10000},
		Logging:   LoggingConfig{Level: "info", Format: "json"},
		Server:    ServerConfig{Host: "0.0.0.0", Port: 8090},
	}
}

// Load reads a YAML file into Default(), then applies environment
// variable overrides, then validates. Env vars recognized: AXONFORGE_LLM_BASE_URL,
// AXONFORGE_LLM_MODEL, AXONFORGE_LLM_API_KEY, AXONFORGE_KV_BACKEND,
// AXONFORGE_SQL_BACKEND, AXONFORGE_SQL_DSN, AXONFORGE_TOOLS_DIR,
// AXONFORGE_PROMPTS_DIR, AXONFORGE_LOG_LEVEL, AXONFORGE_LOG_FORMAT,
// AXONFORGE_SERVER_PORT.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("%w: read config: %w", domain.ErrConfig, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%w: parse config: %w", domain.ErrConfig, err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("AXONFORGE_LLM_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}
	if v := os.Getenv("AXONFORGE_LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("AXONFORGE_LLM_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("AXONFORGE_KV_BACKEND"); v != "" {
		cfg.KV.Backend = v
	}
	if v := os.Getenv("AXONFORGE_SQL_BACKEND"); v != "" {
		cfg.SQL.Backend = v
	}
	if v := os.Getenv("AXONFORGE_SQL_DSN"); v != "" {
		cfg.SQL.DSN = v
	}
	if v := os.Getenv("AXONFORGE_TOOLS_DIR"); v != "" {
		cfg.Tools.ToolsDir = v
	}
	if v := os.Getenv("AXONFORGE_PROMPTS_DIR"); v != "" {
		cfg.Tools.PromptsDir = v
	}
	if v := os.Getenv("AXONFORGE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("AXONFORGE_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("AXONFORGE_SERVER_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = p
		}
	}
}

// Validate checks the config is internally consistent, returning a
// wrapped ErrConfig on failure. Fatal at startup.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.LLM.BaseURL) == "" {
		return fmt.Errorf("%w: llm.base_url is required", domain.ErrConfig)
	}
	if c.SQL.Backend != "memory" && c.SQL.Backend != "postgres" {
		return fmt.Errorf("%w: sql.backend must be memory or postgres, got %q", domain.ErrConfig, c.SQL.Backend)
	}
	if c.SQL.Backend == "postgres" && strings.TrimSpace(c.SQL.DSN) == "" {
		return fmt.Errorf("%w: sql.dsn is required when sql.backend=postgres", domain.ErrConfig)
	}
	if c.KV.Backend != "memory" && c.KV.Backend != "sql" {
		return fmt.Errorf("%w: kv.backend must be memory or sql, got %q", domain.ErrConfig, c.KV.Backend)
	}
	if c.Autoloop.ImprovementThreshold <= 0 || c.Autoloop.ImprovementThreshold > 1 {
		return fmt.Errorf("%w: autoloop.improvement_threshold must be in (0,1]", domain.ErrConfig)
	}
	return nil
}
