// Command bridge runs the orchestration core of a visual knowledge-graph
// editor: the durable in-memory multi-queue, the Planner->Executor->
// Auditor->Committer state machine, the pending-action lease store, the
// event/telemetry logs, and the natural-language intent router, all behind
// a single HTTP surface.
//
// Grounded on the teacher's cmd/tarsy/main.go bootstrap shape (flag +
// godotenv + sequential component wiring) for startup, and on the broader
// pack's graceful-shutdown idiom (signal.Notify + serverErrors channel +
// context-bounded Shutdown) for termination.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"strconv"
	"syscall"
	"time"

	"github.com/theredstring/redstring-sub011/pkg/api"
	"github.com/theredstring/redstring-sub011/pkg/archive"
	"github.com/theredstring/redstring-sub011/pkg/committer"
	"github.com/theredstring/redstring-sub011/pkg/config"
	"github.com/theredstring/redstring-sub011/pkg/continuer"
	"github.com/theredstring/redstring-sub011/pkg/database"
	"github.com/theredstring/redstring-sub011/pkg/drainer"
	"github.com/theredstring/redstring-sub011/pkg/events"
	"github.com/theredstring/redstring-sub011/pkg/graphmodel"
	"github.com/theredstring/redstring-sub011/pkg/mcpshim"
	"github.com/theredstring/redstring-sub011/pkg/pendingactions"
	"github.com/theredstring/redstring-sub011/pkg/pipeline"
	"github.com/theredstring/redstring-sub011/pkg/queue"
	"github.com/theredstring/redstring-sub011/pkg/router"
	"github.com/theredstring/redstring-sub011/pkg/scheduler"
)

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

const (
	eventLogCapacity  = 10_000
	telemetryCapacity = 10_000
	chatCapacity      = 2_000
)

func main() {
	configDir := flag.String("config-dir", getEnv("CONFIG_DIR", "./deploy/config"), "Path to configuration directory")
	flag.Parse()

	cfg, err := config.Load(*configDir)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	eventLog := events.NewLog(eventLogCapacity)
	telemetry := events.NewTelemetry(telemetryCapacity)
	chat := events.NewChat(chatCapacity)

	queues := queue.NewManager(cfg.Queue.LeaseTTL, cfg.Queue.MaxAttempts, func(name string, item queue.Item) {
		slog.Warn("item dead-lettered", "queue", name, "itemId", item.ID, "attempts", item.Attempts)
	})
	queues.Start(cfg.Queue.SweepInterval)
	pending := pendingactions.New(telemetry)

	var archiveSink *archive.Sink
	var archiveDB *database.Client
	if cfg.Archive.DSN != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		dbClient, err := database.NewClient(ctx, cfg.Archive.DSN, database.PoolConfig{})
		cancel()
		if err != nil {
			slog.Error("failed to connect archival database, continuing without archival", "error", err)
		} else {
			archiveDB = dbClient
			archiveSink = archive.New(archive.NewEntPersister(dbClient.Client), cfg.Archive.BufferSize, cfg.Archive.FlushEvery)
			archiveSink.Start(eventLog, telemetry)
			slog.Info("archival sink enabled")
		}
	}

	// srv is assigned after construction; storeProvider is only invoked
	// once routes start serving, by which point srv is set.
	var srv *api.Server
	storeProvider := func() graphmodel.ProjectedStore {
		return srv.Store()
	}

	executor := pipeline.NewExecutor(storeProvider)
	sched := scheduler.New(queues, pipeline.NewPlanner(), executor, pipeline.NewAuditor())
	ensureScheduler := func() {
		if sched.Status().Enabled {
			return
		}
		sched.Start(scheduler.Options{
			CadenceMs: cfg.Scheduler.CadenceMs,
			Toggles: scheduler.Toggles{
				Planner:  cfg.Scheduler.EnablePlanner,
				Executor: cfg.Scheduler.EnableExecutor,
				Auditor:  cfg.Scheduler.EnableAuditor,
			},
			MaxPerTick: scheduler.MaxPerTick{
				Planner:  cfg.Scheduler.MaxPerTickPlan,
				Executor: cfg.Scheduler.MaxPerTickExec,
				Auditor:  cfg.Scheduler.MaxPerTickAudit,
			},
		})
	}
	ensureScheduler()

	cont := continuer.New(fmt.Sprintf("http://127.0.0.1:%s", cfg.Server.Port), cfg.Router.LLMTimeout)
	comm := committer.New(
		queues, pending, eventLog,
		continuer.NewChatAppender(chat),
		cont,
		committer.DefaultMergeChecker{},
		cfg.Committer.WindowMs, cfg.Committer.MaxPerPull, cfg.Queue.IdempotencyCap,
	)
	comm.Start(cfg.Committer.TickInterval)

	drn := drainer.New(queues, pending, cfg.Drainer.MaxPerPull)
	drn.Start(cfg.Drainer.TickInterval)

	rtr := router.New(
		queues, pending, eventLog, chat, telemetry,
		storeProvider, ensureScheduler,
		cfg.Router.LegacyFastPath, cfg.Router.LLMTimeout, cfg.Router.DefaultModel,
	)

	mcp := mcpshim.New(
		[]mcpshim.Tool{
			{Name: pipeline.ToolVerifyState, Description: "Report a brief health summary of the graph store."},
			{Name: pipeline.ToolListAvailableGraphs, Description: "List every known graph with its id, name, and instance count."},
			{Name: pipeline.ToolSearchNodes, Description: "Search graphs, prototypes, and instances by name."},
		},
		map[string]mcpshim.ToolHandler{
			pipeline.ToolVerifyState: func(args map[string]interface{}) (interface{}, error) {
				return pipeline.VerifyState(storeProvider()), nil
			},
			pipeline.ToolListAvailableGraphs: func(args map[string]interface{}) (interface{}, error) {
				return pipeline.ListAvailableGraphs(storeProvider()), nil
			},
			pipeline.ToolSearchNodes: func(args map[string]interface{}) (interface{}, error) {
				query, _ := args["query"].(string)
				return pipeline.SearchNodes(storeProvider(), query)
			},
		},
	)

	srv = api.NewServer(queues, pending, eventLog, telemetry, chat, sched, comm, rtr, mcp)
	srv.ServeDashboard(cfg.Server.DashboardDir)

	addr := ":" + cfg.Server.Port
	if err := ensurePortAvailable(addr); err != nil {
		slog.Error("failed to bind listener", "addr", addr, "error", err)
		os.Exit(1)
	}

	serverErrors := make(chan error, 1)
	go func() {
		slog.Info("bridge listening", "addr", addr, "https", cfg.Server.UseHTTPS)
		if cfg.Server.UseHTTPS {
			serverErrors <- srv.StartTLS(addr, cfg.Server.SSLCertPath, cfg.Server.SSLKeyPath)
			return
		}
		serverErrors <- srv.Start(addr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, net.ErrClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	case sig := <-shutdown:
		slog.Info("shutdown initiated", "signal", sig.String())

		comm.Stop()
		sched.Stop()
		drn.Stop()
		queues.Stop()
		if archiveSink != nil {
			archiveSink.Stop()
		}
		if archiveDB != nil {
			if err := archiveDB.Close(); err != nil {
				slog.Warn("error closing archival database", "error", err)
			}
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			slog.Error("graceful shutdown failed", "error", err)
		}
	}

	slog.Info("bridge stopped")
	os.Exit(0)
}

// ensurePortAvailable probes addr, and on EADDRINUSE attempts a platform
// kill of the conflicting listener's pid before retrying once (spec.md §6
// "Port binding & config"). The probing listener is closed immediately
// rather than held open, since the actual server bind (Start/StartTLS)
// re-binds addr itself. Giving up returns the error of the retried bind.
func ensurePortAvailable(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err == nil {
		return ln.Close()
	}
	if !errors.Is(err, syscall.EADDRINUSE) {
		return err
	}

	slog.Warn("address in use, attempting one kill-and-retry", "addr", addr)
	if killErr := killListenerPID(addr); killErr != nil {
		slog.Warn("could not identify or kill conflicting process", "error", killErr)
	}
	time.Sleep(500 * time.Millisecond)

	ln, err = net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return ln.Close()
}

// killListenerPID uses lsof to find and kill whatever process is bound to
// addr's port. Best-effort and Linux/macOS-only; a missing lsof or an
// unidentifiable pid is reported back to the caller, which proceeds to
// retry the bind regardless (the process may have exited on its own).
func killListenerPID(addr string) error {
	if runtime.GOOS == "windows" {
		return fmt.Errorf("kill-and-retry is not implemented on windows")
	}
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return err
	}

	out, err := exec.Command("lsof", "-ti", ":"+port).Output()
	if err != nil {
		return fmt.Errorf("lsof failed: %w", err)
	}
	pid, err := strconv.Atoi(string(trimNewline(out)))
	if err != nil {
		return fmt.Errorf("could not parse pid from lsof output: %w", err)
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return proc.Signal(syscall.SIGTERM)
}

func trimNewline(b []byte) []byte {
	for len(b) > 0 && (b[len(b)-1] == '\n' || b[len(b)-1] == '\r') {
		b = b[:len(b)-1]
	}
	return b
}
