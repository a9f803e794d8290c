package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-storefront/internal/catalog"
	"github.com/ariefcatur/go-storefront/internal/config"
	"github.com/ariefcatur/go-storefront/internal/engagement"
	"github.com/ariefcatur/go-storefront/internal/httpx"
	kafkax "github.com/ariefcatur/go-storefront/internal/kafka"
	"github.com/ariefcatur/go-storefront/internal/logging"
	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/ariefcatur/go-storefront/internal/payment"
	"github.com/ariefcatur/go-storefront/internal/postgres"
	"github.com/ariefcatur/go-storefront/internal/redisx"
	"github.com/ariefcatur/go-storefront/internal/users"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := logging.New(cfg.LogLevel, cfg.ServiceName)
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
	if err := postgres.Migrate(ctx, db); err != nil {
		logger.Fatal("db migrate", zap.Error(err))
	}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producers, one per topic. They outlive ctx so shutdown can flush them.
	pctx, pcancel := context.WithCancel(context.Background())
	defer pcancel()
	producers := map[string]*kafkax.Producer{}
	for _, topic := range []string{orders.TopicOrderPlaced, orders.TopicPaymentPaid, orders.TopicPaymentFailed, orders.TopicStatusChanged} {
		p := kafkax.NewProducer(cfg.KafkaBrokers, topic, 1024, logger)
		p.Start(pctx)
		producers[topic] = p
	}
	events := &orders.Events{
		Placed:        producers[orders.TopicOrderPlaced],
		Paid:          producers[orders.TopicPaymentPaid],
		Failed:        producers[orders.TopicPaymentFailed],
		StatusChanged: producers[orders.TopicStatusChanged],
		Service:       cfg.ServiceName,
	}

	// Repos & services
	orderRepo := &orders.Repo{DB: db}
	catalogSvc := catalog.NewService(&catalog.Repo{DB: db}, rdb, logger)
	engagementSvc := engagement.NewService(&engagement.Repo{DB: db}, catalogSvc, logger)
	userSvc := users.NewService(&users.Repo{DB: db}, orderRepo, logger)

	httpClient := &http.Client{Timeout: cfg.Payment.Timeout}
	dispatcher := payment.NewDispatcher(cfg.SiteURL, cfg.Currency, logger,
		&payment.WaveClient{BaseURL: cfg.Payment.WaveBaseURL, APIKey: cfg.Payment.WaveAPIKey, HTTP: httpClient},
		&payment.OrangeClient{
			BaseURL:     cfg.Payment.OrangeBaseURL,
			MerchantKey: cfg.Payment.OrangeMerchantKey,
			AccessToken: cfg.Payment.OrangeAccessToken,
			HTTP:        httpClient,
		},
	)
	callbacks := payment.NewCallbacks(orderRepo, rdb, events, map[orders.PaymentMethod]string{
		orders.MethodWave:   cfg.Payment.WaveWebhookSecret,
		orders.MethodOrange: cfg.Payment.OrangeNotifSecret,
	}, logger)

	// Handlers
	router := httpx.NewRouter(logger)
	(&httpx.CatalogHandler{Catalog: catalogSvc, Extras: engagementSvc, Log: logger}).Register(router)
	(&httpx.AccountHandler{Accounts: userSvc, Log: logger}).Register(router)
	(&httpx.EngagementHandler{Engagement: engagementSvc, Log: logger}).Register(router)
	(&httpx.OrdersHandler{
		Orders:     orderRepo,
		Builder:    orders.NewBuilder(orderRepo, cfg.ShippingCost),
		Payments:   dispatcher,
		Callbacks:  callbacks,
		Events:     events,
		AdminToken: cfg.AdminToken,
		Log:        logger,
	}).Register(router)
	if cfg.AdminToken == "" {
		logger.Warn("ADMIN_TOKEN not set, admin routes disabled")
	}

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 10 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	if err := g.Wait(); err != nil {
		logger.Error("server exit", zap.Error(err))
	}

	// Handlers still running after a timed-out Shutdown have their late
	// publishes dropped by the closed producers.
	for _, p := range producers {
		p.Close()
	}
	for _, p := range producers {
		p.WaitClosed()
	}
}
