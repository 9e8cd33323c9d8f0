package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	bankcmd "github.com/eaglebank/banking/banking-service/internal/command"
	"github.com/eaglebank/banking/banking-service/internal/handler"
	bankqry "github.com/eaglebank/banking/banking-service/internal/query"
	"github.com/eaglebank/banking/banking-service/internal/repository"
	"github.com/eaglebank/banking/shared/config"
	"github.com/eaglebank/banking/shared/events"
	"github.com/eaglebank/banking/shared/ledger"
	"github.com/eaglebank/banking/shared/logger"
	redisClient "github.com/eaglebank/banking/shared/redis"
	"github.com/eaglebank/banking/shared/server"
)

const serviceName = "banking-service"

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
	zlog.Info("starting", cfg.Fields()...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, zlog); err != nil {
		zlog.Fatal("service stopped with error", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, zlog *zap.Logger) error {
	store, db, err := ledger.OpenPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	redis, err := redisClient.NewClient(ctx, redisClient.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, zlog)
	if err != nil {
		return err
	}
	defer redis.Close()

	owned, err := events.ParsePartitions(cfg.EventPartitionsOwned, cfg.EventPartitions)
	if err != nil {
		return err
	}
	broker, err := events.NewBroker(events.BrokerConfig{
		Kind:            cfg.EventBroker,
		RabbitMQURL:     cfg.RabbitMQURL,
		Partitions:      cfg.EventPartitions,
		OwnedPartitions: owned,
		Consumer:        cfg.ConsumerName,
	}, redis.Client, zlog)
	if err != nil {
		return err
	}
	defer broker.Close()

	// CQRS: read repositories over the Redis views with the ledger as fallback
	accountRepo := repository.NewAccountReadRepository(store, redis.Client, cfg.ViewCacheTTL, zlog)
	transactionRepo := repository.NewTransactionReadRepository(store, redis.Client, cfg.ViewCacheTTL, zlog)

	commandSvc := bankcmd.NewTransactionCommandService(store, transactionRepo, broker.Publisher, zlog.Named("orchestrator"))
	querySvc := bankqry.NewBankingQueryService(accountRepo, transactionRepo)

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := server.NewRouter(zlog)
	handler.NewBankingHandler(commandSvc, querySvc).RegisterRoutes(router.Group("/v1"))

	completions := broker.Subscribe(events.CompletionEventsTopic, serviceName, commandSvc.HandleCompletionEvent)

	return server.Run(ctx, ":"+cfg.Port, router, zlog, completions)
}
