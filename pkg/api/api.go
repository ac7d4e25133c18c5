package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/ethpandaops/specviewer/pkg/api/docs"
	"github.com/ethpandaops/specviewer/pkg/auth"
	"github.com/ethpandaops/specviewer/pkg/config"
	"github.com/ethpandaops/specviewer/pkg/metrics"
	"github.com/ethpandaops/specviewer/pkg/page"
	"github.com/ethpandaops/specviewer/pkg/session"
	"github.com/ethpandaops/specviewer/pkg/store"
	"github.com/ethpandaops/specviewer/pkg/viewer"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

const wsPath = "/api/v1/ws"

// Server is the HTTP API server.
type Server interface {
	Start(ctx context.Context) error
	Stop() error
	Handler() http.Handler
}

// server implements Server.
type server struct {
	log      logrus.FieldLogger
	cfg      *config.Config
	settings viewer.Settings
	store    store.Store
	sessions session.Manager
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
	page     *page.Renderer
	admin    *auth.Authenticator
	hub      *Hub
	srv      *http.Server
	router   chi.Router

	rateLimiter *IPRateLimiter
}

// Ensure server implements Server.
var _ Server = (*server)(nil)

// Option configures a server.
type Option func(*server)

// WithGatherer sets the registry served on /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *server) {
		s.gatherer = g
	}
}

// NewServer creates a new API server.
func NewServer(
	log logrus.FieldLogger,
	cfg *config.Config,
	st store.Store,
	sessions session.Manager,
	m *metrics.Metrics,
	clock clockwork.Clock,
	opts ...Option,
) (Server, error) {
	renderer, err := page.New(cfg.Page, wsPath)
	if err != nil {
		return nil, fmt.Errorf("creating page renderer: %w", err)
	}

	s := &server{
		log:      log.WithField("component", "api"),
		cfg:      cfg,
		settings: cfg.ViewerSettings(),
		store:    st,
		sessions: sessions,
		metrics:  m,
		gatherer: prometheus.DefaultGatherer,
		page:     renderer,
		admin:    auth.NewAuthenticator(log, cfg.Auth),
		hub:      NewHub(log),
	}

	for _, opt := range opts {
		opt(s)
	}

	if cfg.Server.RateLimit.Enabled {
		s.rateLimiter = NewIPRateLimiter(cfg.Server.RateLimit.RequestsPerMinute, clock)

		s.log.WithField("rpm", cfg.Server.RateLimit.RequestsPerMinute).Info("Rate limiting enabled")
	}

	s.setupRouter()

	return s, nil
}

// Start starts the HTTP server.
func (s *server) Start(ctx context.Context) error {
	s.srv = &http.Server{
		Addr:              s.cfg.Server.Listen,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.log.WithField("addr", s.cfg.Server.Listen).Info("Starting API server")

	// Start WebSocket hub.
	go s.hub.Run(ctx)

	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.WithError(err).Error("Server error")
		}
	}()

	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *server) Stop() error {
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}

	if s.srv == nil {
		return nil
	}

	s.log.Info("Stopping API server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return s.srv.Shutdown(ctx)
}

// Handler returns the router.
func (s *server) Handler() http.Handler {
	return s.router
}

func (s *server) setupRouter() {
	r := chi.NewRouter()

	// Middleware.
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.log))
	r.Use(s.metricsMiddleware)
	r.Use(middleware.Recoverer)

	// CORS.
	if len(s.cfg.Server.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.cfg.Server.CORSOrigins,
			AllowedMethods:   []string{"GET", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	if s.rateLimiter != nil {
		r.Use(s.rateLimiter.Middleware)
	}

	// Plain HTTP routes.
	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))

		r.Get("/", s.handlePage)
		r.Get("/health", s.handleHealth)
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

		r.Route("/api/v1", func(r chi.Router) {
			r.Get("/openapi.json", s.handleOpenAPISpec)
			r.Get("/state", s.handleState)
			r.Get("/demos", s.handleListDemos)

			// Admin-only routes.
			r.Group(func(r chi.Router) {
				r.Use(s.admin.Middleware)

				r.Put("/demos/{value}", s.handlePutDemo)
				r.Delete("/demos/{value}", s.handleDeleteDemo)
			})
		})
	})

	// The WebSocket route is long-lived and must not be subject to the timeout.
	r.Get(wsPath, s.handleWebSocket)

	s.router = r
}

// requestLogger logs every request through logrus.
func requestLogger(log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			log.WithFields(logrus.Fields{
				"method":      r.Method,
				"path":        r.URL.Path,
				"status":      ww.Status(),
				"bytes":       ww.BytesWritten(),
				"duration":    time.Since(start).String(),
				"request_id":  middleware.GetReqID(r.Context()),
				"remote_addr": r.RemoteAddr,
			}).Debug("HTTP request")
		})
	}
}

// metricsMiddleware records request counts and latencies by route pattern.
func (s *server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		s.metrics.RecordHTTPRequest(r.Method, route, strconv.Itoa(status), time.Since(start).Seconds())
	})
}

// ============================================================================
// Response helpers
// ============================================================================

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error string `json:"error" example:"Something went wrong"`
}

// HealthResponse is the response of the health endpoint.
type HealthResponse struct {
	Status   string       `json:"status" example:"ok"`
	Database string       `json:"database" example:"ok"`
	Sessions int          `json:"sessions" example:"3"`
	Clients  int          `json:"clients" example:"3"`
	Config   HealthConfig `json:"config"`
}

// HealthConfig exposes non-secret configuration to the frontend.
type HealthConfig struct {
	Admin       bool   `json:"admin" example:"false"`
	DefaultSpec string `json:"default_spec" example:"openapi.yaml"`
	CORSProxy   string `json:"cors_proxy" example:"https://cors.redoc.ly/"`
}

// DemoRequest is the body of a catalog upsert.
type DemoRequest struct {
	Label    string `json:"label" example:"Petstore OpenAPI 3.1"`
	Position *int   `json:"position,omitempty" example:"0"`
}

func (s *server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.WithError(err).Error("Failed to encode JSON response")
	}
}

func (s *server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, ErrorResponse{Error: message})
}

// ============================================================================
// Handlers
// ============================================================================

// initialView derives the view a freshly opened tab at pageURL would show.
func (s *server) initialView(pageURL, search string) viewer.View {
	ctrl := viewer.NewController(s.log, s.settings, pageURL, viewer.NewMemoryHistory(search))
	defer ctrl.Close()

	return ctrl.View()
}

func (s *server) handlePage(w http.ResponseWriter, r *http.Request) {
	view := s.initialView(requestBaseURL(r)+r.URL.RequestURI(), searchOf(r))

	demos, err := s.store.ListDemos(r.Context())
	if err != nil {
		s.log.WithError(err).Error("Failed to list demos")
		http.Error(w, "Internal server error", http.StatusInternalServerError)

		return
	}

	options := make([]page.Option, 0, len(demos))
	for _, d := range demos {
		options = append(options, page.Option{Value: d.Value, Label: d.Label})
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	if err := s.page.Render(w, view, options); err != nil {
		s.log.WithError(err).Error("Failed to render page")
	}
}

// handleHealth godoc
//
//	@Summary		Health check
//	@Description	Returns the health status of the service
//	@Tags			system
//	@Produce		json
//	@Success		200	{object}	HealthResponse	"Service is healthy"
//	@Failure		503	{object}	HealthResponse	"Database unavailable"
//	@Router			/health [get]
func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:   "ok",
		Database: "ok",
		Sessions: s.sessions.Count(),
		Clients:  s.hub.ClientCount(),
		Config: HealthConfig{
			Admin:       s.admin.Enabled(),
			DefaultSpec: s.settings.DefaultSpec,
			CORSProxy:   s.settings.CORSProxy,
		},
	}

	status := http.StatusOK

	if err := s.store.Ping(r.Context()); err != nil {
		s.log.WithError(err).Warn("Database ping failed")

		resp.Status = "degraded"
		resp.Database = err.Error()
		status = http.StatusServiceUnavailable
	}

	s.writeJSON(w, status, resp)
}

// handleOpenAPISpec godoc
//
//	@Summary		OpenAPI specification
//	@Description	Returns the OpenAPI specification for the API
//	@Tags			system
//	@Produce		json
//	@Success		200	{object}	object	"OpenAPI specification"
//	@Router			/openapi.json [get]
func (s *server) handleOpenAPISpec(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(docs.SwaggerInfo.ReadDoc()))
}

// handleState godoc
//
//	@Summary		Derive viewer state
//	@Description	Returns the view a tab opened with the request's query string would show
//	@Tags			viewer
//	@Produce		json
//	@Param			url		query		string	false	"Spec source"
//	@Param			nocors	query		string	false	"Disable the CORS proxy when present"
//	@Param			page	query		string	false	"Absolute page URL; its query replaces url and nocors"
//	@Success		200		{object}	viewer.View
//	@Router			/state [get]
func (s *server) handleState(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.initialView(tabOf(r)))
}

// handleListDemos godoc
//
//	@Summary		List demos
//	@Description	Returns the source picker catalog in display order
//	@Tags			demos
//	@Produce		json
//	@Success		200	{array}		store.Demo
//	@Failure		500	{object}	ErrorResponse
//	@Router			/demos [get]
func (s *server) handleListDemos(w http.ResponseWriter, r *http.Request) {
	demos, err := s.store.ListDemos(r.Context())
	if err != nil {
		s.log.WithError(err).Error("Failed to list demos")
		s.writeError(w, http.StatusInternalServerError, "Failed to list demos")

		return
	}

	s.writeJSON(w, http.StatusOK, demos)
}

// handlePutDemo godoc
//
//	@Summary		Create or update a demo
//	@Description	Adds a source to the picker or relabels an existing one
//	@Tags			demos
//	@Accept			json
//	@Produce		json
//	@Security		BasicAuth
//	@Param			value	path		string		true	"Spec source (path-escaped)"
//	@Param			demo	body		DemoRequest	true	"Demo label and position"
//	@Success		200		{object}	store.Demo
//	@Failure		400		{object}	ErrorResponse
//	@Failure		401		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Router			/demos/{value} [put]
func (s *server) handlePutDemo(w http.ResponseWriter, r *http.Request) {
	value, err := url.PathUnescape(chi.URLParam(r, "value"))
	if err != nil || value == "" {
		s.writeError(w, http.StatusBadRequest, "Invalid demo value")

		return
	}

	var req DemoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid request body")

		return
	}

	if req.Label == "" {
		s.writeError(w, http.StatusBadRequest, "Label is required")

		return
	}

	ctx := r.Context()
	now := time.Now()

	demo := &store.Demo{
		Value:     value,
		Label:     req.Label,
		CreatedAt: now,
		UpdatedAt: now,
	}

	existing, err := s.store.GetDemo(ctx, value)

	switch {
	case err == nil:
		demo.Position = existing.Position
		demo.InConfig = existing.InConfig
		demo.CreatedAt = existing.CreatedAt
	case errors.Is(err, store.ErrNotFound):
		demos, err := s.store.ListDemos(ctx)
		if err != nil {
			s.log.WithError(err).Error("Failed to list demos")
			s.writeError(w, http.StatusInternalServerError, "Failed to save demo")

			return
		}

		demo.Position = len(demos)
	default:
		s.log.WithError(err).Error("Failed to get demo")
		s.writeError(w, http.StatusInternalServerError, "Failed to save demo")

		return
	}

	if req.Position != nil {
		demo.Position = *req.Position
	}

	if err := s.store.UpsertDemo(ctx, demo); err != nil {
		s.log.WithError(err).Error("Failed to upsert demo")
		s.writeError(w, http.StatusInternalServerError, "Failed to save demo")

		return
	}

	admin, _ := auth.AdminFromContext(ctx)
	s.log.WithFields(logrus.Fields{
		"demo":  value,
		"admin": admin,
	}).Info("Demo saved")

	s.catalogChanged(ctx)

	s.writeJSON(w, http.StatusOK, demo)
}

// handleDeleteDemo godoc
//
//	@Summary		Delete a demo
//	@Description	Removes a source from the picker
//	@Tags			demos
//	@Security		BasicAuth
//	@Param			value	path	string	true	"Spec source (path-escaped)"
//	@Success		204
//	@Failure		401	{object}	ErrorResponse
//	@Failure		404	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Router			/demos/{value} [delete]
func (s *server) handleDeleteDemo(w http.ResponseWriter, r *http.Request) {
	value, err := url.PathUnescape(chi.URLParam(r, "value"))
	if err != nil || value == "" {
		s.writeError(w, http.StatusBadRequest, "Invalid demo value")

		return
	}

	ctx := r.Context()

	if err := s.store.DeleteDemo(ctx, value); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "Demo not found")

			return
		}

		s.log.WithError(err).Error("Failed to delete demo")
		s.writeError(w, http.StatusInternalServerError, "Failed to delete demo")

		return
	}

	admin, _ := auth.AdminFromContext(ctx)
	s.log.WithFields(logrus.Fields{
		"demo":  value,
		"admin": admin,
	}).Info("Demo deleted")

	s.catalogChanged(ctx)

	w.WriteHeader(http.StatusNoContent)
}

// catalogChanged refreshes the demo gauge and pushes the catalog to all tabs.
func (s *server) catalogChanged(ctx context.Context) {
	demos, err := s.store.ListDemos(ctx)
	if err != nil {
		s.log.WithError(err).Warn("Failed to reload demos")

		return
	}

	s.metrics.SetDemoCount(len(demos))
	s.hub.BroadcastDemos(demos)
}

// handleWebSocket godoc
//
//	@Summary		Viewer session
//	@Description	Upgrades to a WebSocket carrying one tab's viewer session. The page parameter is the tab's address; its query is the tab's initial search. Without it the query string is the initial search.
//	@Tags			websocket
//	@Param			page	query	string	false	"Absolute page URL"
//	@Param			url		query	string	false	"Spec source"
//	@Param			nocors	query	string	false	"Disable the CORS proxy when present"
//	@Success		101
//	@Failure		403	{string}	string	"Origin not allowed"
//	@Failure		503	{string}	string	"Too many sessions"
//	@Router			/ws [get]
func (s *server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ServeWs(s.hub, s.sessions, s.cfg.Server.CORSOrigins, w, r)
}
