// Package server exposes the assistant over HTTP.
package server

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sweetpotato0/wanderai/assistant"
	"github.com/sweetpotato0/wanderai/pkg/logging"
	"github.com/sweetpotato0/wanderai/rag/webhook"
)

// Version is reported by the health endpoint.
const Version = "1.0.0"

const shutdownTimeout = 10 * time.Second

// Config holds the listener settings.
type Config struct {
	Host string
	Port int
}

// Addr returns the listen address.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Server is the HTTP front end of the assistant.
type Server struct {
	cfg    Config
	engine *gin.Engine
	logger *slog.Logger
}

// New builds the gin engine and registers every route. hooks may be nil,
// in which case the webhook endpoints answer 503.
func New(cfg Config, a *assistant.Assistant, hooks *webhook.Manager) *Server {
	logger := logging.WithComponent("server")
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(logger))

	handlers := NewHandlers(a, hooks)
	engine.GET("/healthz", handlers.HandleHealth)
	engine.GET("/metrics", handlers.HandleMetrics)
	RegisterRoutes(engine.Group("/v1"), handlers)

	return &Server{cfg: cfg, engine: engine, logger: logger}
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr(),
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen on %s: %w", srv.Addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
