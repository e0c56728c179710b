// SPDX-License-Identifier: EPL-2.0

// Package httpserver serves playback status: Prometheus metrics on /metrics,
// liveness on /healthz and a JSON snapshot of the counters on /stats.
package httpserver

import (
	"context"
	stderrors "errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/ik5/audplay/internal/coordinator"
	"github.com/ik5/audplay/internal/errors"
	"github.com/ik5/audplay/internal/logger"
	"github.com/ik5/audplay/internal/metrics"
	"github.com/ik5/audplay/internal/pipeline"
)

const shutdownTimeout = 5 * time.Second

// Source is what the server reports on.
type Source interface {
	metrics.StatsSource
	// Session identifies the current playback, empty when idle.
	Session() string
}

// StatsResponse is the body of GET /stats.
type StatsResponse struct {
	Session  string            `json:"session,omitempty"`
	Buffer   coordinator.Stats `json:"buffer"`
	Producer pipeline.Stats    `json:"producer"`
}

type Server struct {
	echo *echo.Echo
	addr string
	src  Source
	log  logger.Logger
}

// New builds the server. metricsHandler is mounted on /metrics when not nil.
func New(addr string, src Source, metricsHandler http.Handler, log logger.Logger) *Server {
	if log == nil {
		log = logger.NewDiscard()
	}

	s := &Server{
		echo: echo.New(),
		addr: addr,
		src:  src,
		log:  log.Module("httpserver"),
	}

	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			s.log.Debug("http request",
				logger.String("method", v.Method),
				logger.String("uri", v.URI),
				logger.Int("status", v.Status),
				logger.Duration("latency", v.Latency))
			return nil
		},
	}))

	s.echo.GET("/healthz", s.handleHealth)
	s.echo.GET("/stats", s.handleStats)
	if metricsHandler != nil {
		s.echo.GET("/metrics", echo.WrapHandler(metricsHandler))
	}

	return s
}

// Handler exposes the routes without a listener.
func (s *Server) Handler() http.Handler { return s.echo }

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":  "ok",
		"playing": s.src.Session() != "",
	})
}

func (s *Server) handleStats(c echo.Context) error {
	return c.JSON(http.StatusOK, StatsResponse{
		Session:  s.src.Session(),
		Buffer:   s.src.BufferStats(),
		Producer: s.src.ProducerStats(),
	})
}

// Run listens until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("status server listening", logger.String("addr", s.addr))
		errCh <- s.echo.Start(s.addr)
	}()

	select {
	case err := <-errCh:
		if err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			return errors.New(err).
				Component("httpserver").
				Category(errors.CategoryNetwork).
				Context("addr", s.addr).
				Build()
		}
		return nil

	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		s.log.Warn("status server shutdown", logger.Error(err))
	}
	if err := <-errCh; err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
