// Package server exposes the analysis service over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dyike/CortexAgents/internal/logger"
	"github.com/dyike/CortexAgents/internal/metrics"
	"github.com/dyike/CortexAgents/internal/service"
	"github.com/dyike/CortexAgents/models"
)

// Backend is the slice of the service the API needs.
type Backend interface {
	RunAnalysis(ctx context.Context, params models.AgentInitParams) (*service.Result, error)
	StartAnalysis(ctx context.Context, params models.AgentInitParams) (string, error)
	History(ctx context.Context, params models.HistoryParams) (*service.HistoryPage, error)
	GetSession(ctx context.Context, id string) (*service.SessionDetail, error)
	ListMessages(ctx context.Context, id string) ([]models.MessageRecord, error)
	Reflect(ctx context.Context, id string, params models.ReflectParams) ([]models.MemoryRecord, error)
}

type Server struct {
	addr   string
	router *gin.Engine
}

func New(addr string, backend Backend) *Server {
	if addr == "" {
		addr = ":8080"
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	NewRouter(backend).Register(router.Group("/api"))
	return &Server{addr: addr, router: router}
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Addr() string {
	return s.addr
}

// Start serves until ctx is cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.router, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	logger.L().Info().Str("addr", s.addr).Msg("http server listening")

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shCtx)
	case err := <-errCh:
		return err
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.L().Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Str("ip", c.ClientIP()).
			Dur("dur", time.Since(start)).
			Msg("http request")
	}
}
