// Package config loads and validates the orchestration core's runtime
// configuration: server/TLS binding, queue lease tuning, scheduler cadence
// and per-tick caps, committer tuning, router policy, and the optional
// archival sink DSN.
//
// Unlike the teacher's YAML-registry configuration (agents/chains/MCP
// servers), this core's configuration surface is entirely env-var driven
// (spec.md §6 "Port binding & config"); scheduler toggles are additionally
// adjustable at runtime over HTTP (spec.md §4.5), which this package does
// not own — Config only supplies process startup defaults.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the umbrella configuration object returned by Load.
type Config struct {
	Server    ServerConfig
	Queue     QueueConfig
	Scheduler SchedulerConfig
	Committer CommitterConfig
	Drainer   DrainerConfig
	Router    RouterConfig
	Archive   ArchiveConfig
}

// ServerConfig controls HTTP/HTTPS binding.
type ServerConfig struct {
	Port            string // default "3001", env BRIDGE_PORT
	UseHTTPS        bool   // env BRIDGE_USE_HTTPS
	SSLKeyPath      string // env BRIDGE_SSL_KEY_PATH
	SSLCertPath     string // env BRIDGE_SSL_CERT_PATH
	SSLCAPath       string // env BRIDGE_SSL_CA_PATH
	SSLPassphrase   string // env BRIDGE_SSL_PASSPHRASE
	TrustProxy      bool   // env BRIDGE_TRUST_PROXY
	DashboardDir    string // env BRIDGE_DASHBOARD_DIR
}

// QueueConfig tunes the Queue Manager's lease semantics.
type QueueConfig struct {
	LeaseTTL       time.Duration // default 30s
	SweepInterval  time.Duration // default 250ms, spec.md §4.2
	MaxAttempts    int           // default 5
	IdempotencyCap int           // default 100_000, spec.md §4.4
}

// SchedulerConfig controls the cooperative tick loop (spec.md §4.5).
type SchedulerConfig struct {
	CadenceMs       int
	EnablePlanner   bool
	EnableExecutor  bool
	EnableAuditor   bool
	MaxPerTickPlan  int
	MaxPerTickExec  int
	MaxPerTickAudit int
}

// DefaultSchedulerConfig matches spec.md §4.5's stated defaults.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		CadenceMs:       250,
		EnablePlanner:   true,
		EnableExecutor:  true,
		EnableAuditor:   true,
		MaxPerTickPlan:  10,
		MaxPerTickExec:  10,
		MaxPerTickAudit: 10,
	}
}

// CommitterConfig tunes the single-writer Committer loop (spec.md §4.4).
type CommitterConfig struct {
	TickInterval time.Duration // ~10 Hz => 100ms
	WindowMs     int           // 500
	MaxPerPull   int           // 200
}

// DrainerConfig tunes the Safety Drainer (spec.md §4.9).
type DrainerConfig struct {
	TickInterval time.Duration // 1s
	MaxPerPull   int           // 5
}

// RouterConfig tunes the Intent Router (spec.md §4.6).
type RouterConfig struct {
	// LegacyFastPath gates the heuristic side-paths (open/list/search/
	// connect/move/delete/recolor/rename) that bypass the planner DAG.
	// spec.md §9's second Open Question leaves this undecided; we resolve
	// it by making both paths available and config-gated, default on.
	LegacyFastPath bool
	LLMTimeout     time.Duration // 10-15s per spec.md §5
	DefaultModel   string
}

// ArchiveConfig controls the optional Postgres archival sink (SPEC_FULL §4.11).
// Disabled unless DSN is non-empty.
type ArchiveConfig struct {
	DSN         string
	BufferSize  int
	FlushEvery  time.Duration
}

// Load reads configuration from environment variables, optionally preceded
// by loading a .env file from configDir (mirrors the teacher's
// cmd/tarsy/main.go godotenv bootstrap).
func Load(configDir string) (*Config, error) {
	if configDir != "" {
		envPath := filepath.Join(configDir, ".env")
		if err := godotenv.Load(envPath); err != nil {
			slog.Warn("could not load .env file, continuing with existing environment", "path", envPath, "error", err)
		} else {
			slog.Info("loaded environment file", "path", envPath)
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:         getenv("BRIDGE_PORT", "3001"),
			UseHTTPS:     getenvBool("BRIDGE_USE_HTTPS", false),
			SSLKeyPath:   getenv("BRIDGE_SSL_KEY_PATH", ""),
			SSLCertPath:  getenv("BRIDGE_SSL_CERT_PATH", ""),
			SSLCAPath:    getenv("BRIDGE_SSL_CA_PATH", ""),
			SSLPassphrase: getenv("BRIDGE_SSL_PASSPHRASE", ""),
			TrustProxy:   getenvBool("BRIDGE_TRUST_PROXY", false),
			DashboardDir: getenv("BRIDGE_DASHBOARD_DIR", ""),
		},
		Queue: QueueConfig{
			LeaseTTL:       getenvDuration("QUEUE_LEASE_TTL", 30*time.Second),
			SweepInterval:  getenvDuration("QUEUE_SWEEP_INTERVAL", 250*time.Millisecond),
			MaxAttempts:    getenvInt("QUEUE_MAX_ATTEMPTS", 5),
			IdempotencyCap: getenvInt("QUEUE_IDEMPOTENCY_CAP", 100_000),
		},
		Scheduler: DefaultSchedulerConfig(),
		Committer: CommitterConfig{
			TickInterval: getenvDuration("COMMITTER_TICK_INTERVAL", 100*time.Millisecond),
			WindowMs:     getenvInt("COMMITTER_WINDOW_MS", 500),
			MaxPerPull:   getenvInt("COMMITTER_MAX_PER_PULL", 200),
		},
		Drainer: DrainerConfig{
			TickInterval: getenvDuration("DRAINER_TICK_INTERVAL", 1*time.Second),
			MaxPerPull:   getenvInt("DRAINER_MAX_PER_PULL", 5),
		},
		Router: RouterConfig{
			LegacyFastPath: getenvBool("ROUTER_LEGACY_FASTPATH", true),
			LLMTimeout:     getenvDuration("ROUTER_LLM_TIMEOUT", 12*time.Second),
			DefaultModel:   getenv("ROUTER_DEFAULT_MODEL", "openrouter/auto"),
		},
		Archive: ArchiveConfig{
			DSN:        getenv("ARCHIVE_DSN", ""),
			BufferSize: getenvInt("ARCHIVE_BUFFER_SIZE", 1000),
			FlushEvery: getenvDuration("ARCHIVE_FLUSH_INTERVAL", 2*time.Second),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field invariants that a Validate struct tag cannot
// express cleanly (e.g. "HTTPS requires both key and cert paths").
func (c *Config) Validate() error {
	if c.Server.UseHTTPS {
		if c.Server.SSLKeyPath == "" || c.Server.SSLCertPath == "" {
			return fmt.Errorf("%w: BRIDGE_USE_HTTPS=true requires BRIDGE_SSL_KEY_PATH and BRIDGE_SSL_CERT_PATH", ErrInvalidValue)
		}
	}
	if c.Queue.MaxAttempts < 1 {
		return fmt.Errorf("%w: QUEUE_MAX_ATTEMPTS must be >= 1", ErrInvalidValue)
	}
	if c.Scheduler.CadenceMs < 1 {
		return fmt.Errorf("%w: scheduler cadence must be >= 1ms", ErrInvalidValue)
	}
	return nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return b
}

func getenvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return n
}

func getenvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return d
}
