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

	accountcmd "github.com/eaglebank/banking/account-service/internal/command"
	"github.com/eaglebank/banking/account-service/internal/handler"
	accountqry "github.com/eaglebank/banking/account-service/internal/query"
	"github.com/eaglebank/banking/account-service/internal/repository"
	"github.com/eaglebank/banking/shared/config"
	"github.com/eaglebank/banking/shared/events"
	"github.com/eaglebank/banking/shared/ledger"
	"github.com/eaglebank/banking/shared/logger"
	redisClient "github.com/eaglebank/banking/shared/redis"
	"github.com/eaglebank/banking/shared/server"
)

const serviceName = "account-service"

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
	// Database connection (ledger of record)
	store, db, err := ledger.OpenPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	// Redis connection (read models, and the event streams when EVENT_BROKER=redis)
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

	views := repository.NewViewRepository(redis.Client, cfg.ViewCacheTTL, zlog)
	processor := accountcmd.NewTransactionProcessor(store, views, broker.Publisher, zlog.Named("processor"))
	rollbacks := accountcmd.NewRollbackHandler(store, views, zlog.Named("rollback"))

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := server.NewRouter(zlog)
	handler.NewLedgerHandler(accountqry.NewLedgerQueryService(store)).RegisterRoutes(router.Group("/v1"))

	return server.Run(ctx, ":"+cfg.Port, router, zlog,
		broker.Subscribe(events.TransactionEventsTopic, serviceName, processor.HandleTransactionEvent),
		broker.Subscribe(events.RollbackEventsTopic, serviceName, rollbacks.HandleRollbackEvent),
	)
}
