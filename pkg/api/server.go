// Package api serves the local HTTP interface the onboarding and skill views
// talk to: permission snapshots, grant requests, onboarding state and a
// WebSocket stream of tracker events.
package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/odvcencio/flux/pkg/logging"
	"github.com/odvcencio/flux/pkg/onboarding"
	"github.com/odvcencio/flux/pkg/permission"
	"github.com/odvcencio/flux/pkg/skill"
	"github.com/odvcencio/flux/pkg/telemetry"
)

// DefaultAddress is the loopback address used when none is configured.
const DefaultAddress = "127.0.0.1:7849"

// ServerConfig configures the API server.
type ServerConfig struct {
	// Address to listen on (default: 127.0.0.1:7849)
	Address string

	// Onboarding owns the app-wide tracker served under /v1/permissions.
	Onboarding *onboarding.Flow

	// Skills backs /v1/skills (optional)
	Skills *skill.Registry

	// Capabilities used to build per-skill permission sheets.
	Capabilities permission.Capabilities

	// SheetOptions are passed to every skill sheet tracker, e.g. the settings
	// opener and the storage observer.
	SheetOptions []permission.Option

	// PollInterval for skill sheets opened with begin.
	PollInterval time.Duration

	Hub    *telemetry.Hub
	Logger *logging.Logger
}

// Server is the flux local API server.
type Server struct {
	cfg        ServerConfig
	router     chi.Router
	upgrader   websocket.Upgrader
	httpServer *http.Server

	// base outlives individual requests; polling started by /begin runs on it.
	base context.Context

	sheetMu sync.Mutex
	sheets  map[string]*permission.Tracker
}

// NewServer creates a new API server.
func NewServer(cfg ServerConfig) *Server {
	if cfg.Address == "" {
		cfg.Address = DefaultAddress
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = permission.DefaultPollInterval
	}

	s := &Server{
		cfg:    cfg,
		base:   context.Background(),
		sheets: make(map[string]*permission.Tracker),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     sameHostOrigin,
		},
	}

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(s.logRequests)

	router.Get("/healthz", s.handleHealthz)
	router.Get("/metrics", promhttp.Handler().ServeHTTP)

	router.Route("/v1", func(r chi.Router) {
		r.Route("/permissions", func(r chi.Router) {
			r.Get("/", s.handleGetPermissions)
			r.Post("/poll", s.handlePollPermissions)
			r.Post("/{key}/request", s.handleRequestPermission)
		})
		r.Route("/onboarding", func(r chi.Router) {
			r.Get("/", s.handleGetOnboarding)
			r.Post("/begin", s.handleBeginOnboarding)
			r.Post("/end", s.handleEndOnboarding)
			r.Post("/complete", s.handleCompleteOnboarding)
			r.Post("/reset", s.handleResetOnboarding)
		})
		r.Route("/skills", func(r chi.Router) {
			r.Get("/", s.handleListSkills)
			r.Get("/{name}", s.handleGetSkill)
			r.Get("/{name}/permissions", s.handleSkillPermissions)
			r.Post("/{name}/permissions/begin", s.handleBeginSkillSheet)
			r.Post("/{name}/permissions/end", s.handleEndSkillSheet)
			r.Post("/{name}/permissions/{key}/request", s.handleRequestSkillPermission)
		})
		r.Get("/events", s.handleEvents)
	})

	s.router = router
	s.httpServer = &http.Server{
		Addr:              cfg.Address,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
		MaxHeaderBytes:    1 << 20,
	}
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is done, then shuts down gracefully. Onboarding
// polling started through the API is stopped on the way out.
func (s *Server) Start(ctx context.Context) error {
	s.base = ctx

	ln, err := net.Listen("tcp", s.cfg.Address)
	if err != nil {
		return err
	}

	serverErr := make(chan error, 1)
	go func() {
		_ = s.cfg.Logger.Info(logging.CategoryServer, "listening", "", map[string]any{"addr": ln.Addr().String()})
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		if s.cfg.Onboarding != nil {
			s.cfg.Onboarding.End()
		}
		s.closeSheets()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-serverErr:
		return err
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		_ = s.cfg.Logger.Debug(logging.CategoryServer, "request", r.Method+" "+r.URL.Path, map[string]any{
			"status":   ww.Status(),
			"duration": time.Since(start).String(),
		})
	})
}

// sameHostOrigin admits clients without an Origin header (native views) and
// browser pages served from the same host.
func sameHostOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return u.Host == r.Host
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
