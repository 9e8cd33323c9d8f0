package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/eaglebank/banking/api-gateway/internal/proxy"
	"github.com/eaglebank/banking/shared/config"
	"github.com/eaglebank/banking/shared/logger"
	"github.com/eaglebank/banking/shared/middleware"
	"github.com/eaglebank/banking/shared/server"
)

const serviceName = "api-gateway"

func main() {
	cfg, warnings, err := config.Load(serviceName)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zlog, err := logger.New(logger.Config{Service: serviceName, Environment: cfg.Env, Level: cfg.LogLevel})
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer zlog.Sync()
	for _, w := range warnings {
		zlog.Warn(w)
	}

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := server.NewRouter(zlog)

	v1 := router.Group("/v1")
	if cfg.JWTSecret != "" {
		v1.Use(middleware.AuthMiddleware([]byte(cfg.JWTSecret)))
	} else {
		zlog.Warn("JWT_SECRET is not set, requests are not authenticated")
	}
	proxy.New(zlog).RegisterRoutes(v1, proxy.Upstreams{
		BankingServiceURL: cfg.BankingServiceURL,
		AccountServiceURL: cfg.AccountServiceURL,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	zlog.Info("starting",
		zap.String("port", cfg.Port),
		zap.String("banking_service", cfg.BankingServiceURL),
		zap.String("account_service", cfg.AccountServiceURL),
	)
	if err := server.Run(ctx, ":"+cfg.Port, router, zlog); err != nil {
		zlog.Fatal("gateway stopped with error", zap.Error(err))
	}
}
