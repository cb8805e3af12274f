// Package monitoring exposes the session over HTTP: a liveness probe and a
// read-only status endpoint. No mutating routes; admin actions go through
// the control file.
package monitoring

import (
	"context"
	"errors"
	"net/http"
	"time"

	"talon/internal/engine"
	"talon/internal/logger"

	"github.com/gin-gonic/gin"
)

type Server struct {
	addr      string
	eng       *engine.Engine
	heartbeat *Heartbeat
	startedAt time.Time
}

func New(addr string, eng *engine.Engine, heartbeat *Heartbeat) *Server {
	return &Server{addr: addr, eng: eng, heartbeat: heartbeat, startedAt: time.Now()}
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"uptime":    time.Since(s.startedAt).Round(time.Second).String(),
			"heartbeat": s.heartbeat.Snapshot(),
		})
	})
	router.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.eng.Snapshot())
	})

	srv := &http.Server{Addr: s.addr, Handler: router}
	errCh := make(chan error, 1)
	go func() {
		logger.Infof("monitoring server listening on %s", s.addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warnf("monitoring server shutdown: %v", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}
