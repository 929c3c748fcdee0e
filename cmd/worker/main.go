package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/Krisa786/glob-mart-sub001/internal/cart"
	"github.com/Krisa786/glob-mart-sub001/internal/catalog"
	"github.com/Krisa786/glob-mart-sub001/internal/checkout"
	"github.com/Krisa786/glob-mart-sub001/internal/config"
	"github.com/Krisa786/glob-mart-sub001/internal/inventory"
	kafkax "github.com/Krisa786/glob-mart-sub001/internal/kafka"
	"github.com/Krisa786/glob-mart-sub001/internal/logger"
	"github.com/Krisa786/glob-mart-sub001/internal/postgres"
	"github.com/Krisa786/glob-mart-sub001/internal/redisx"
	"github.com/Krisa786/glob-mart-sub001/internal/shipping"
	"github.com/Krisa786/glob-mart-sub001/internal/sweep"
	"github.com/Krisa786/glob-mart-sub001/internal/tax"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log, err := logger.New(cfg.Dev())
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Producers for the events the worker emits
	pReleased := kafkax.NewProducer(cfg.KafkaBrokers, checkout.TopicStockReleased, 1024)
	pReleased.Start(ctx)
	pCompleted := kafkax.NewProducer(cfg.KafkaBrokers, checkout.TopicCheckoutCompleted, 1024)
	pCompleted.Start(ctx)
	pExpired := kafkax.NewProducer(cfg.KafkaBrokers, checkout.TopicCheckoutExpired, 1024)
	pExpired.Start(ctx)

	invStore := &inventory.PGStore{DB: db}
	cartSvc := &cart.Service{
		Store:     &cart.PGStore{DB: db},
		Catalog:   &catalog.PGCatalog{DB: db},
		Inventory: invStore,
		Log:       log,
	}
	checkoutSvc := &checkout.Service{
		Store:    &checkout.PGStore{DB: db},
		Carts:    cartSvc,
		Tax:      &tax.RateTable{},
		Shipping: shipping.DefaultRates(),

		ProducerReleased:  pReleased,
		ProducerCompleted: pCompleted,
		ProducerExpired:   pExpired,

		Log:         log,
		ServiceName: cfg.ServiceName + "-worker",
		TTL:         cfg.CheckoutTTL,
	}
	cons := &checkout.Consumer{Service: checkoutSvc, Redis: rdb, Log: log}

	group := getenv("CHECKOUT_GROUP", "checkout-worker")
	workers := mustAtoi(os.Getenv("CHECKOUT_WORKERS"), "8")

	placed := kafkax.NewConsumer(cfg.KafkaBrokers, group, checkout.TopicOrderPlaced, workers, log)
	failed := kafkax.NewConsumer(cfg.KafkaBrokers, group, checkout.TopicPaymentFailed, workers, log)

	consumersDone := make(chan struct{}, 2)
	go func() {
		defer func() { consumersDone <- struct{}{} }()
		log.Info("order.placed consumer started", zap.String("group", group), zap.Int("workers", workers))
		if err := placed.Start(ctx, cons.HandleOrderPlaced); err != nil {
			log.Error("order.placed consumer exit", zap.Error(err))
			cancel()
		}
	}()
	go func() {
		defer func() { consumersDone <- struct{}{} }()
		log.Info("payment.failed consumer started", zap.String("group", group), zap.Int("workers", workers))
		if err := failed.Start(ctx, cons.HandlePaymentFailed); err != nil {
			log.Error("payment.failed consumer exit", zap.Error(err))
			cancel()
		}
	}()

	// Periodic sweep: expired holds back to the pool, idle carts abandoned.
	runner := &sweep.Runner{
		Checkout:   checkoutSvc,
		Carts:      cartSvc,
		Interval:   cfg.SweepInterval,
		AbandonTTL: cfg.CartAbandonTTL,
		Log:        log,
	}
	go runner.Run(ctx)

	// graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down worker")
	cancel()
	// Consumer.Start returns only after its in-flight handlers finish, so
	// once both consumers are down nothing publishes anymore and the
	// producer inboxes are safe to close.
	<-consumersDone
	<-consumersDone
	for _, p := range []*kafkax.Producer{pReleased, pCompleted, pExpired} {
		p.Close()
	}
	for _, p := range []*kafkax.Producer{pReleased, pCompleted, pExpired} {
		p.WaitClosed()
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func mustAtoi(s, def string) int {
	if s == "" {
		s = def
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return 1
	}
	return i
}
