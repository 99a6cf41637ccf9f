package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docqa/internal/config"
)

// Pipeline is the document question-answering surface the server fronts.
type Pipeline interface {
	Ingest(ctx context.Context, filename string, content []byte, ov config.Overrides) (string, error)
	Answer(ctx context.Context, question, uploadID string, ov config.Overrides) (string, error)
	DeleteUpload(ctx context.Context, uploadID string, ov config.Overrides) error
	DeleteAll(ctx context.Context, password string, ov config.Overrides) error
}

// Server serves the document QA HTTP API.
type Server struct {
	echo     *echo.Echo
	pipeline Pipeline
	logger   *zap.Logger
	config   config.ServerConfig
}

// NewServer creates the HTTP server with routing and middleware wired.
func NewServer(pipeline Pipeline, logger *zap.Logger, cfg config.ServerConfig) (*Server, error) {
	if pipeline == nil {
		return nil, fmt.Errorf("pipeline is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.CORS())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})
	e.Use(metricsMiddleware())

	s := &Server{
		echo:     e,
		pipeline: pipeline,
		logger:   logger,
		config:   cfg,
	}
	s.registerRoutes()

	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.POST("/upload", s.handleUpload)
	s.echo.POST("/query", s.handleQuery)
	s.echo.DELETE("/delete/:upload_id", s.handleDelete)
	s.echo.GET("/deleteall", s.handleDeleteAll)
	s.echo.GET("/active", s.handleActive)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// Echo returns the underlying Echo instance for registering additional
// routes.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Start starts the server and blocks until ctx is cancelled, then shuts
// down gracefully within the configured timeout. Returns
// http.ErrServerClosed on graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))

	errCh := make(chan error, 1)
	go func() {
		if err := s.echo.Start(addr); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("server start: %w", err)
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(
			context.Background(),
			s.config.ShutdownTimeout.Duration(),
		)
		defer cancel()

		s.logger.Info("shutting down http server")
		if err := s.echo.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return http.ErrServerClosed
	}
}
