// Package server provides the HTTP server implementation.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/items-api/internal/auth"
	"github.com/vyrodovalexey/items-api/internal/config"
	"github.com/vyrodovalexey/items-api/internal/handler"
	"github.com/vyrodovalexey/items-api/internal/middleware"
	"github.com/vyrodovalexey/items-api/internal/service"
	"github.com/vyrodovalexey/items-api/internal/store"
)

// Deps are the collaborators the server routes requests to. They are
// built by the caller and shared by reference.
type Deps struct {
	Store         store.Store
	Items         *service.ItemService
	Authenticator auth.Authenticator
	Feed          *handler.WebSocketHandler

	// Issuer and Users enable /api/auth/login and /api/auth/logout.
	// Both nil disables session login (e.g. when tokens come from OIDC).
	Issuer handler.TokenIssuer
	Users  handler.CredentialChecker
}

// Server represents the HTTP server.
type Server struct {
	httpServer *http.Server
	router     *mux.Router
	config     *config.Config
	logger     *zap.Logger
	feed       *handler.WebSocketHandler
}

// New creates a new Server instance.
func New(cfg *config.Config, logger *zap.Logger, deps Deps) *Server {
	s := &Server{
		router: mux.NewRouter(),
		config: cfg,
		logger: logger,
		feed:   deps.Feed,
	}

	s.setupMiddleware(deps.Authenticator)
	s.setupRoutes(deps)
	s.setupHTTPServer()

	return s
}

// setupMiddleware configures the middleware chain. Auth runs innermost so
// unauthenticated requests are still logged, counted and given CORS headers.
func (s *Server) setupMiddleware(authenticator auth.Authenticator) {
	allowedMethods := []string{
		http.MethodGet,
		http.MethodPost,
		http.MethodPut,
		http.MethodDelete,
		http.MethodOptions,
	}
	allowedHeaders := []string{
		"Content-Type",
		"Authorization",
		middleware.RequestIDHeader,
	}

	s.router.Use(mux.MiddlewareFunc(middleware.Recovery(s.logger)))
	s.router.Use(mux.MiddlewareFunc(middleware.RequestID()))

	if s.config.MetricsEnabled {
		s.router.Use(mux.MiddlewareFunc(middleware.Metrics()))
	}

	s.router.Use(mux.MiddlewareFunc(middleware.Logging(s.logger)))
	s.router.Use(mux.MiddlewareFunc(middleware.CORS(s.config.AllowedOrigins(), allowedMethods, allowedHeaders)))
	s.router.Use(mux.MiddlewareFunc(middleware.Auth(authenticator, s.logger)))
}

// setupRoutes configures the API routes.
func (s *Server) setupRoutes(deps Deps) {
	handler.NewProbeHandler(deps.Store, s.logger).RegisterRoutes(s.router)

	api := s.router.PathPrefix("/api").Subrouter()
	handler.NewRESTHandler(deps.Items, s.logger).RegisterRoutes(api)
	handler.NewDebugHandler(deps.Items, s.config.Debug, s.config.SeedFile, s.logger).RegisterRoutes(api)

	if deps.Issuer != nil && deps.Users != nil {
		handler.NewAuthHandler(deps.Issuer, deps.Users, handler.CookieOptions{
			Secure:   s.config.CookieSecure,
			HTTPOnly: s.config.CookieHTTPOnly,
			SameSite: s.config.SameSite(),
			Domain:   s.config.CookieDomain,
		}, s.logger).RegisterRoutes(api)
	}

	if deps.Feed != nil {
		deps.Feed.RegisterRoutes(s.router)
	}

	if s.config.MetricsEnabled {
		s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	}

	// Preflight requests must match a route for the CORS middleware to run.
	// A MatcherFunc rather than Methods keeps unmatched paths at 404
	// instead of 405.
	s.router.MatcherFunc(func(r *http.Request, _ *mux.RouteMatch) bool {
		return r.Method == http.MethodOptions
	}).HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
}

// setupHTTPServer configures the HTTP server.
func (s *Server) setupHTTPServer() {
	s.httpServer = &http.Server{
		Addr:              s.config.Address(),
		Handler:           s.router,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MB
	}
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.logger.Info("starting server",
		zap.String("address", s.config.Address()),
		zap.Bool("metrics_enabled", s.config.MetricsEnabled),
		zap.Bool("debug", s.config.Debug),
	)

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server listen and serve: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")

	// Hijacked connections are not tracked by http.Server.
	if s.feed != nil {
		s.feed.CloseAllConnections()
	}

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	s.logger.Info("server shutdown complete")
	return nil
}

// Router returns the server's router for testing purposes.
func (s *Server) Router() *mux.Router {
	return s.router
}
