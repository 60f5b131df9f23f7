// Package api serves postbox over a JSON HTTP API.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/abdul-hamid-achik/postbox/packages/core/runner"
	"github.com/abdul-hamid-achik/postbox/packages/db"
	"github.com/abdul-hamid-achik/postbox/packages/export/metrics"
	"github.com/abdul-hamid-achik/postbox/packages/logger"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	DefaultAddr      = ":8080"
	DefaultBodyLimit = "2M"
	shutdownTimeout  = 5 * time.Second
)

// HttpJsonResp wraps every successful payload.
type HttpJsonResp[T any] struct {
	Data T `json:"data"`
}

// Server is the postbox JSON API.
type Server struct {
	echo     *echo.Echo
	store    *db.Client
	runner   *runner.Runner
	issuer   *Issuer
	log      logger.Logger
	gatherer prometheus.Gatherer

	addr         string
	bodyLimit    string
	allowOrigins []string
}

// Option is a functional option for Server
type Option func(*Server)

func WithAddr(addr string) Option {
	return func(s *Server) {
		if addr != "" {
			s.addr = addr
		}
	}
}

func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		s.log = logger.EnsureLogger(l)
	}
}

// WithMetrics exposes g on GET /metrics.
func WithMetrics(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// WithBodyLimit caps incoming request bodies, e.g. "2M".
func WithBodyLimit(limit string) Option {
	return func(s *Server) {
		if limit != "" {
			s.bodyLimit = limit
		}
	}
}

func WithAllowOrigins(origins ...string) Option {
	return func(s *Server) {
		s.allowOrigins = origins
	}
}

func NewServer(store *db.Client, run *runner.Runner, issuer *Issuer, opts ...Option) *Server {
	s := &Server{
		store:        store,
		runner:       run,
		issuer:       issuer,
		log:          logger.NewNoOpLogger(),
		addr:         DefaultAddr,
		bodyLimit:    DefaultBodyLimit,
		allowOrigins: []string{"*"},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.WithComponent("api")
	s.echo = s.routes()
	return s
}

func (s *Server) routes() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.handleError

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			kv := []any{"method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency.String()}
			if v.Error != nil {
				s.log.Warn("request failed", append(kv, "error", v.Error.Error())...)
				return nil
			}
			s.log.Info("request", kv...)
			return nil
		},
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.Secure())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{AllowOrigins: s.allowOrigins}))
	e.Use(middleware.BodyLimit(s.bodyLimit))
	e.Use(middleware.Gzip())

	e.GET("/up", s.handleUp)
	if s.gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(metrics.Handler(s.gatherer)))
	}

	api := e.Group("/api", s.issuer.Middleware())

	requests := api.Group("/requests")
	requests.POST("", s.submitRequest)
	requests.GET("", s.listRequests)
	requests.GET("/:id", s.getRequest)
	requests.PUT("/:id", s.updateRequest)
	requests.DELETE("/:id", s.deleteRequest)
	requests.POST("/:id/execute", s.executeRequest)
	requests.GET("/:id/attempts", s.listAttempts)
	requests.GET("/:id/stats", s.requestStats)

	collections := api.Group("/collections")
	collections.POST("", s.createCollection)
	collections.GET("", s.listCollections)
	collections.GET("/:id", s.getCollection)
	collections.PUT("/:id", s.updateCollection)
	collections.DELETE("/:id", s.deleteCollection)

	environments := api.Group("/environments")
	environments.POST("", s.createEnvironment)
	environments.GET("", s.listEnvironments)
	environments.GET("/:id", s.getEnvironment)
	environments.PUT("/:id", s.updateEnvironment)
	environments.DELETE("/:id", s.deleteEnvironment)

	return e
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) Addr() string {
	return s.addr
}

// StartWithContext serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) StartWithContext(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("HTTP server listening", "address", s.addr)
		errCh <- s.echo.Start(s.addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.log.Info("HTTP server shutting down")
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

func (s *Server) handleUp(c echo.Context) error {
	if err := s.store.Ping(c.Request().Context()); err != nil {
		return c.String(http.StatusServiceUnavailable, "pending...")
	}
	return c.String(http.StatusOK, "up")
}
