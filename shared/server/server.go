// Package server runs a service's HTTP listener and event consumers until the
// context is cancelled.
package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/eaglebank/banking/shared/events"
	"github.com/eaglebank/banking/shared/middleware"
)

const shutdownTimeout = 10 * time.Second

// NewRouter returns a gin engine with recovery, access logging and /health.
func NewRouter(logger *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.LoggingMiddleware(logger))
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return router
}

// Run serves handler on addr and starts every consumer. It returns when ctx is
// cancelled or the listener fails, after the consumers have stopped.
func Run(ctx context.Context, addr string, handler http.Handler, logger *zap.Logger, consumers ...events.Runner) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	for _, consumer := range consumers {
		wg.Add(1)
		go func(r events.Runner) {
			defer wg.Done()
			if err := r.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("consumer stopped", zap.Error(err))
				cancel()
			}
		}(consumer)
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var err error
	select {
	case <-ctx.Done():
	case err = <-serveErr:
		cancel()
	}

	logger.Info("shutting down")
	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
		logger.Error("http shutdown failed", zap.Error(shutdownErr))
	}

	wg.Wait()
	return err
}
