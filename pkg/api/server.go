// Package api is the HTTP Surface (C7): a thin adapter that validates
// inputs, stamps telemetry, and never mutates the projected store except
// via the dedicated bridge/state and bridge/layout endpoints (spec.md
// §4.7). Routing, Echo v5 wiring, and graceful shutdown are grounded on
// the teacher's pkg/api/server.go; the routes themselves are new.
package api

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	echo "github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"

	"github.com/theredstring/redstring-sub011/pkg/committer"
	"github.com/theredstring/redstring-sub011/pkg/events"
	"github.com/theredstring/redstring-sub011/pkg/graphmodel"
	"github.com/theredstring/redstring-sub011/pkg/mcpshim"
	"github.com/theredstring/redstring-sub011/pkg/pendingactions"
	"github.com/theredstring/redstring-sub011/pkg/queue"
	"github.com/theredstring/redstring-sub011/pkg/router"
	"github.com/theredstring/redstring-sub011/pkg/scheduler"
)

// Server is the HTTP Surface (C7).
type Server struct {
	echo       *echo.Echo
	httpServer *http.Server

	queues    *queue.Manager
	pending   *pendingactions.Store
	eventLog  *events.Log
	telemetry *events.Telemetry
	chat      *events.Chat
	sched     *scheduler.Scheduler
	committer *committer.Committer
	router    *router.Router
	mcp       *mcpshim.Shim

	stateMu sync.RWMutex
	store   graphmodel.ProjectedStore
	drainedReviewIDs map[string]bool // allocated by NewServer; no handler reads or writes it
}

// NewServer wires the HTTP Surface to the already-constructed orchestration
// components (spec.md §2's component graph).
func NewServer(
	queues *queue.Manager,
	pending *pendingactions.Store,
	eventLog *events.Log,
	telemetry *events.Telemetry,
	chat *events.Chat,
	sched *scheduler.Scheduler,
	comm *committer.Committer,
	rtr *router.Router,
	mcp *mcpshim.Shim,
) *Server {
	e := echo.New()
	e.Validator = newRequestValidator()
	s := &Server{
		echo:             e,
		queues:           queues,
		pending:          pending,
		eventLog:         eventLog,
		telemetry:        telemetry,
		chat:             chat,
		sched:            sched,
		committer:        comm,
		router:           rtr,
		mcp:              mcp,
		drainedReviewIDs: make(map[string]bool),
	}
	s.setupRoutes()
	return s
}

// Store returns the latest projected store snapshot. Passed to the Router
// as its StoreProvider (spec.md §4.6).
func (s *Server) Store() graphmodel.ProjectedStore {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.store
}

func (s *Server) setStore(store graphmodel.ProjectedStore) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	store.Summary.LastUpdate = time.Now()
	s.store = store
}

func (s *Server) setupRoutes() {
	s.echo.Use(middleware.BodyLimit(8 * 1024 * 1024))
	s.echo.Use(securityHeaders())

	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", s.handleMetrics)

	bridge := s.echo.Group("/api/bridge")
	bridge.POST("/state", s.handleBridgeStatePost)
	bridge.GET("/state", s.handleBridgeStateGet)
	bridge.POST("/layout", s.handleBridgeLayout)
	bridge.GET("/health", s.handleBridgeHealth)
	bridge.GET("/pending-actions", s.handlePendingActionsLease)
	bridge.POST("/action-completed", s.handleActionCompleted)
	bridge.POST("/action-feedback", s.handleActionFeedback)
	bridge.POST("/pending-actions/enqueue", s.handlePendingActionsEnqueue)
	bridge.GET("/telemetry", s.handleBridgeTelemetrySnapshot)

	ai := s.echo.Group("/api/ai")
	ai.POST("/chat", s.handleAIChat)
	ai.POST("/agent", s.handleAIAgent)
	ai.POST("/agent/continue", s.handleAIAgentContinue)

	q := s.echo.Group("/queue")
	q.POST("/goals.enqueue", s.handleGoalsEnqueue)
	q.POST("/tasks.pull", s.handleTasksPull)
	q.POST("/patches.submit", s.handlePatchesSubmit)
	q.POST("/reviews.pull", s.handleReviewsPull)
	q.POST("/reviews.submit", s.handleReviewsSubmit)
	q.GET("/metrics", s.handleQueueMetrics)
	q.GET("/peek", s.handleQueuePeek)
	q.POST("/patches.approve-next", s.handlePatchesApproveNext)

	s.echo.POST("/commit/apply", s.handleCommitApply)

	orch := s.echo.Group("/orchestration/scheduler")
	orch.POST("/start", s.handleSchedulerStart)
	orch.POST("/stop", s.handleSchedulerStop)
	orch.GET("/status", s.handleSchedulerStatus)

	s.echo.GET("/events/stream", s.handleEventsStream)
	s.echo.GET("/telemetry", s.handleTelemetryPolled)
	s.echo.GET("/telemetry/stream", s.handleTelemetryStream)

	s.echo.POST("/api/mcp/request", s.handleMCPRequest)

	s.echo.GET("/search", s.handleSearch)

	test := s.echo.Group("/test")
	test.POST("/create-task", s.handleTestCreateTask)
	test.POST("/commit-ops", s.handleTestCommitOps)
	test.GET("/ai/read-store", s.handleTestReadStore)
	test.POST("/ai/roundtrip/add-node", s.handleTestRoundtripAddNode)
}

// ServeDashboard mounts dir as a static file server at "/", for deployments
// that bundle the editor's frontend build alongside the bridge (env
// BRIDGE_DASHBOARD_DIR). A no-op when dir is empty.
func (s *Server) ServeDashboard(dir string) {
	if dir == "" {
		return
	}
	s.echo.Static("/", dir)
}

// Start starts the HTTP server on the given address and blocks until the
// server stops.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{Addr: addr, Handler: s.echo}
	return s.httpServer.ListenAndServe()
}

// StartWithListener starts the HTTP server on a pre-created listener and
// blocks until the server stops. cmd/bridge does not use it: it probes the
// port with ensurePortAvailable and then calls Start or StartTLS.
func (s *Server) StartWithListener(ln net.Listener) error {
	s.httpServer = &http.Server{Handler: s.echo}
	return s.httpServer.Serve(ln)
}

// StartTLS starts the HTTPS server using the configured cert/key pair
// (spec.md §6 "Port binding & config").
func (s *Server) StartTLS(addr, certFile, keyFile string) error {
	s.httpServer = &http.Server{Addr: addr, Handler: s.echo}
	return s.httpServer.ListenAndServeTLS(certFile, keyFile)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
