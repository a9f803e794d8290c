package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/ariefcatur/go-storefront/internal/catalog"
	"github.com/ariefcatur/go-storefront/internal/config"
	"github.com/ariefcatur/go-storefront/internal/fulfillment"
	kafkax "github.com/ariefcatur/go-storefront/internal/kafka"
	"github.com/ariefcatur/go-storefront/internal/logging"
	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/ariefcatur/go-storefront/internal/postgres"
	"github.com/ariefcatur/go-storefront/internal/redisx"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := logging.New(cfg.LogLevel, cfg.ServiceName+"-fulfillment")
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	pctx, pcancel := context.WithCancel(context.Background())
	defer pcancel()
	statusProd := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicStatusChanged, 1024, logger)
	statusProd.Start(pctx)

	orderRepo := &orders.Repo{DB: db}
	svc := &fulfillment.Service{
		Orders: orderRepo,
		Cache:  catalog.NewService(&catalog.Repo{DB: db}, rdb, logger),
		Redis:  rdb,
		Events: &orders.Events{StatusChanged: statusProd, Service: cfg.ServiceName + "-fulfillment"},
		Log:    logger,
	}

	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.Fulfillment.Group, orders.TopicPaymentPaid, cfg.Fulfillment.Workers, logger)
	logger.Info("fulfillment consumer started",
		zap.String("group", cfg.Fulfillment.Group),
		zap.String("topic", orders.TopicPaymentPaid),
		zap.Int("workers", cfg.Fulfillment.Workers))
	if err := cons.Start(ctx, svc.HandleOrderPaid); err != nil {
		logger.Error("consumer exit", zap.Error(err))
	}

	logger.Info("shutting down consumer")
	statusProd.Close()
	statusProd.WaitClosed()
}
