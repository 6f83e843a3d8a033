// Package api serves the stopwatch over HTTP: control endpoints, the event
// journal, a WebSocket feed of events and state snapshots, and Prometheus metrics.
package api

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mescon/beepwatch/internal/auth"
	"github.com/mescon/beepwatch/internal/config"
	"github.com/mescon/beepwatch/internal/db"
	"github.com/mescon/beepwatch/internal/domain"
	"github.com/mescon/beepwatch/internal/eventbus"
	"github.com/mescon/beepwatch/internal/logger"
	"github.com/mescon/beepwatch/internal/metrics"
	"github.com/mescon/beepwatch/internal/services"
	"github.com/mescon/beepwatch/internal/stopwatch"
)

// StopwatchController is the stopwatch surface the API drives.
type StopwatchController interface {
	Start()
	Stop()
	Reset()
	SetInterval(d time.Duration)
	Snapshot() stopwatch.Snapshot
	SessionID() string
}

// JournalReader reads the persisted event journal.
type JournalReader interface {
	QueryEvents(filter db.EventFilter) ([]domain.Event, error)
	CountEvents(filter db.EventFilter) (int64, error)
	ListSessions(limit int) ([]db.SessionSummary, error)
	GetDatabaseStats() (db.DatabaseStats, error)
}

// JournalWriter reports journal write counters.
type JournalWriter interface {
	Stats() services.JournalStats
}

// MaintenanceRunner triggers and reports journal maintenance.
type MaintenanceRunner interface {
	RunNow() db.MaintenanceResult
	Schedule() string
	LastRun() db.MaintenanceResult
}

type RESTServer struct {
	router         *gin.Engine
	httpServer     *http.Server
	cfg            *config.Config
	eventBus       *eventbus.EventBus
	stopwatch      StopwatchController
	journal        JournalReader
	journalWriter  JournalWriter
	scheduler      MaintenanceRunner
	metrics        *metrics.MetricsService
	verifier       *auth.KeyVerifier
	hub            *WebSocketHub
	controlLimiter *RateLimiter
	startTime      time.Time
}

// ServerDeps contains all dependencies required for the REST server.
// Journal, JournalWriter, Scheduler, Metrics and Verifier are optional.
type ServerDeps struct {
	Config        *config.Config
	EventBus      *eventbus.EventBus
	Stopwatch     StopwatchController
	Journal       JournalReader
	JournalWriter JournalWriter
	Scheduler     MaintenanceRunner
	Metrics       *metrics.MetricsService
	Verifier      *auth.KeyVerifier
	StatePeriod   time.Duration
}

func NewRESTServer(deps ServerDeps) *RESTServer {
	if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	cfg := deps.Config
	if cfg == nil {
		cfg = config.Get()
	}
	verifier := deps.Verifier
	if verifier == nil {
		verifier = auth.NewKeyVerifier(cfg.APIKeyHash)
	}
	statePeriod := deps.StatePeriod
	if statePeriod == 0 {
		statePeriod = DefaultStatePeriod
	}

	origins := parseOriginPolicy(os.Getenv("BEEPWATCH_CORS_ORIGIN"))

	r.Use(requestIDMiddleware())
	r.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		reqID := c.GetString("request_id")
		logger.Errorf("[PANIC RECOVERY] request_id=%s path=%s method=%s error=%v",
			reqID, c.Request.URL.Path, c.Request.Method, recovered)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":      ErrMsgInternalError,
			"request_id": reqID,
		})
	}))
	r.Use(origins.middleware())

	s := &RESTServer{
		router:         r,
		cfg:            cfg,
		eventBus:       deps.EventBus,
		stopwatch:      deps.Stopwatch,
		journal:        deps.Journal,
		journalWriter:  deps.JournalWriter,
		scheduler:      deps.Scheduler,
		metrics:        deps.Metrics,
		verifier:       verifier,
		hub:            NewWebSocketHub(deps.EventBus, deps.Stopwatch, statePeriod, origins),
		controlLimiter: NewRateLimiter(60, 30),
		startTime:      time.Now(),
	}

	s.setupRoutes()

	return s
}

func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader("X-Request-ID")
		if reqID == "" {
			reqID = fmt.Sprintf("%d-%d", time.Now().UnixNano(), c.Request.ContentLength)
		}
		c.Set("request_id", reqID)
		c.Header("X-Request-ID", reqID)
		c.Next()
	}
}

func (s *RESTServer) setupRoutes() {
	basePath := s.cfg.BasePath
	if basePath == "" {
		basePath = "/"
	}

	// Prometheus scrapes at the root regardless of base path
	if s.metrics != nil {
		s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	var base *gin.RouterGroup
	if basePath == "/" {
		base = s.router.Group("")
	} else {
		base = s.router.Group(basePath)
		s.router.GET("/", func(c *gin.Context) {
			c.Redirect(http.StatusMovedPermanently, basePath)
		})
	}

	api := base.Group("/api")
	{
		api.GET("/health", s.handleHealth)
		api.GET("/stopwatch", s.handleGetStopwatch)

		protected := api.Group("")
		protected.Use(s.authMiddleware())
		{
			control := protected.Group("/stopwatch")
			control.Use(s.controlLimiter.Middleware())
			{
				control.POST("/start", s.handleStart)
				control.POST("/stop", s.handleStop)
				control.POST("/reset", s.handleReset)
				control.PUT("/interval", s.handleSetInterval)
				control.DELETE("/interval", s.handleDisableInterval)
			}

			protected.GET("/events", s.handleGetEvents)
			protected.GET("/sessions", s.handleGetSessions)
			protected.GET("/journal/stats", s.handleJournalStats)
			protected.POST("/journal/maintenance", s.handleRunMaintenance)

			protected.GET("/ws", s.hub.HandleConnection)

			protected.GET("/logs/recent", s.handleRecentLogs)
			protected.GET("/logs/download", s.handleDownloadLogs)
		}
	}

	s.setupDashboard(base, basePath)
}

// Handler exposes the router, mainly for tests.
func (s *RESTServer) Handler() http.Handler {
	return s.router
}

func (s *RESTServer) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server and the WebSocket hub
func (s *RESTServer) Shutdown(ctx context.Context) error {
	s.hub.Stop()
	s.controlLimiter.Stop()
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// authMiddleware accepts the key from X-API-Key, a Bearer token or the
// token query parameter (browsers cannot set headers on WebSocket upgrades).
// It passes everything through when no key hash is configured.
func (s *RESTServer) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.verifier.Enabled() {
			c.Next()
			return
		}

		token := c.GetHeader("X-API-Key")
		if token == "" {
			token = strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		}
		if token == "" {
			token = c.Query("token")
		}

		if token == "" {
			abortJSON(c, http.StatusUnauthorized, ErrMsgNoToken, nil)
			return
		}
		if !s.verifier.Verify(token) {
			logger.Warnf("Rejected API key from %s for %s", c.ClientIP(), c.Request.URL.Path)
			abortJSON(c, http.StatusUnauthorized, ErrMsgUnauthorized, nil)
			return
		}

		c.Next()
	}
}
